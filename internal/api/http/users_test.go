package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	api "github.com/rubriq/rubriq/internal/api/http"
	"github.com/rubriq/rubriq/internal/db"
	"github.com/rubriq/rubriq/internal/rbac"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedUser(t *testing.T, dbh *sql.DB, id, username, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	require.NoError(t, err)
	_, err = dbh.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		id, username, hash, role, 1700000000)
	require.NoError(t, err)
}

func userRole(t *testing.T, dbh *sql.DB, id string) string {
	t.Helper()
	var role string
	require.NoError(t, dbh.QueryRow(`SELECT role FROM users WHERE id=$1`, id).Scan(&role))
	return role
}

func TestImportRosterJSONInsertThenUpdate(t *testing.T) {
	dbh := testDB(t)
	h := api.ImportRosterHandler(dbh)

	body := `[{"id":"u1","username":"ana","password":"secreto123"},
	          {"id":"u2","username":"luis","password":"secreto123"}]`
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out["inserted"])
	assert.Equal(t, 0, out["updated"])

	// Re-importing the roster updates in place, password untouched.
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/users/bulk",
		strings.NewReader(`[{"id":"u1","username":"ana-maria"}]`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out["updated"])

	var username string
	require.NoError(t, dbh.QueryRow(`SELECT username FROM users WHERE id='u1'`).Scan(&username))
	assert.Equal(t, "ana-maria", username)
}

func TestImportRosterCSVSpanishHeaders(t *testing.T) {
	dbh := testDB(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("id,usuario,rol,contraseña\nu1,ana,ESTUDIANTE,secreto123\n"))
	require.NoError(t, err)

	// The institution sometimes exports roles in Spanish; only the three
	// known roles are accepted, so this row must be rejected whole.
	req := httptest.NewRequest("POST", "/users/bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, mw.Close())
	rec := httptest.NewRecorder()
	api.ImportRosterHandler(dbh)(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown role")
}

func TestImportRosterCSVDefaultsToStudent(t *testing.T) {
	dbh := testDB(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("id,usuario,contrasena\nu1,ana,secreto123\nu2,luis,secreto123\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/users/bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	api.ImportRosterHandler(dbh)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "student", userRole(t, dbh, "u1"))
	assert.Equal(t, "student", userRole(t, dbh, "u2"))
}

func TestImportRosterNewUserNeedsPassword(t *testing.T) {
	dbh := testDB(t)
	rec := httptest.NewRecorder()
	api.ImportRosterHandler(dbh)(rec, httptest.NewRequest("POST", "/users/bulk",
		strings.NewReader(`[{"id":"u1","username":"ana"}]`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "needs a password")
}

func TestListUsersFilterByRole(t *testing.T) {
	dbh := testDB(t)
	seedUser(t, dbh, "u1", "ana", "secreto123", "student")
	seedUser(t, dbh, "u2", "prof", "secreto123", "teacher")

	rec := httptest.NewRecorder()
	api.ListUsersHandler(dbh)(rec, httptest.NewRequest("GET", "/users?role=teacher", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "prof", out[0]["username"])

	rec = httptest.NewRecorder()
	api.ListUsersHandler(dbh)(rec, httptest.NewRequest("GET", "/users?role=wizard", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateUserRoleLastAdminGuard(t *testing.T) {
	dbh := testDB(t)
	seedUser(t, dbh, "u1", "root", "secreto123", "admin")
	seedUser(t, dbh, "u2", "ana", "secreto123", "student")

	r := chi.NewRouter()
	r.Patch("/users/{userID}", api.UpdateUserRoleHandler(dbh))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PATCH", "/users/u1",
		strings.NewReader(`{"role":"student"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "last admin")
	assert.Equal(t, "admin", userRole(t, dbh, "u1"))

	// Promoting a student works, and the admin can then step down.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PATCH", "/users/ana",
		strings.NewReader(`{"role":"admin"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PATCH", "/users/u1",
		strings.NewReader(`{"role":"teacher"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "teacher", userRole(t, dbh, "u1"))
}

func TestChangePassword(t *testing.T) {
	dbh := testDB(t)
	seedUser(t, dbh, "u1", "ana", "vieja-clave", "student")
	h := api.ChangePasswordHandler(dbh)

	asUser := func(body string) *http.Request {
		req := httptest.NewRequest("POST", "/users/change-password", strings.NewReader(body))
		return req.WithContext(rbac.WithSubject(req.Context(), "u1"))
	}

	rec := httptest.NewRecorder()
	h(rec, asUser(`{"old_password":"equivocada","new_password":"nueva-clave"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, asUser(`{"old_password":"vieja-clave","new_password":"corta"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, asUser(`{"old_password":"vieja-clave","new_password":"nueva-clave"}`))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var hash string
	require.NoError(t, dbh.QueryRow(`SELECT password_hash FROM users WHERE id='u1'`).Scan(&hash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("nueva-clave")))
}
