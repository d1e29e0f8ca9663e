// internal/auth/middleware/roles.go
package auth

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/rubriq/rubriq/internal/rbac"
)

// AttachRoleFromDB re-resolves the caller's role from the users table after
// JWTMiddleware has verified the token, so a roster re-import or a role
// change takes effect without re-issuing tokens.
//
// allowClaimFallback keeps offline classrooms usable before a roster exists:
// when the lookup finds nothing, the token's role claim is trusted. In
// online mode only an admin claim survives a failed lookup.
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, err := lookupRole(ctx, db, rbac.SubjectFromContext(ctx))
			if err == nil {
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
				return
			}

			claim := rbac.RoleFromContext(ctx) // set by JWTMiddleware
			if claim == "admin" || (allowClaimFallback && claim != "") {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// lookupRole accepts either the user id or the username as subject; offline
// tokens are issued with the username.
func lookupRole(ctx context.Context, db *sql.DB, sub string) (string, error) {
	var role string
	err := db.QueryRowContext(ctx,
		`SELECT role FROM users WHERE id=$1 OR username=$1`, sub).Scan(&role)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", sql.ErrNoRows
	}
	return role, nil
}
