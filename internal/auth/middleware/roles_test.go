package auth_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/rubriq/rubriq/internal/auth/middleware"
	"github.com/rubriq/rubriq/internal/db"
	"github.com/rubriq/rubriq/internal/rbac"
)

func rolesDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	_, err = dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ('u1','ana','x','teacher',0)`)
	require.NoError(t, err)
	return dbh
}

func serveWithRole(t *testing.T, dbh *sql.DB, sub, claim string, fallback bool) (int, string) {
	t.Helper()
	var seen string
	h := auth.AttachRoleFromDB(dbh, fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = rbac.RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	ctx := rbac.WithSubject(req.Context(), sub)
	ctx = rbac.WithRole(ctx, claim)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec.Code, seen
}

func TestAttachRoleDBOverridesClaim(t *testing.T) {
	dbh := rolesDB(t)
	// Roster role wins even when the token still claims student.
	code, role := serveWithRole(t, dbh, "ana", "student", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "teacher", role)
}

func TestAttachRoleClaimFallbackOffline(t *testing.T) {
	dbh := rolesDB(t)
	code, role := serveWithRole(t, dbh, "nadie", "student", true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "student", role)
}

func TestAttachRoleUnknownUserDeniedOnline(t *testing.T) {
	dbh := rolesDB(t)
	code, _ := serveWithRole(t, dbh, "nadie", "student", false)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAttachRoleAdminClaimSurvivesLookupMiss(t *testing.T) {
	dbh := rolesDB(t)
	code, role := serveWithRole(t, dbh, "nadie", "admin", false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", role)
}
