// internal/api/http/roster.go
package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Course rosters arrive as the institution exports them: a CSV with Spanish
// or English column headers, or a JSON array. Rows are upserted into the
// users table so students can log in and submit work for evaluation.

type rosterRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"` // plaintext in the roster, hashed on import
}

// Column aliases accepted in roster CSV headers.
var rosterColumns = map[string]string{
	"id":         "id",
	"username":   "username",
	"usuario":    "username",
	"role":       "role",
	"rol":        "role",
	"password":   "password",
	"contrasena": "password",
	"contraseña": "password",
}

func ImportRosterHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := decodeRoster(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(rows) == 0 {
			writeJSON(w, map[string]any{"inserted": 0, "updated": 0})
			return
		}

		ins, upd, err := upsertRoster(r.Context(), db, rows)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"inserted": ins, "updated": upd})
	}
}

// decodeRoster reads a multipart "file" (CSV or JSON, sniffed by the first
// byte) or a raw JSON array body.
func decodeRoster(r *http.Request) ([]rosterRow, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var rows []rosterRow
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			return nil, errors.New("expected a JSON array or a multipart roster file")
		}
		return rows, nil
	}

	f, _, err := requireFile(r, "file")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(string(buf))
	if body == "" {
		return nil, errors.New("empty roster file")
	}
	if body[0] == '[' {
		var rows []rosterRow
		if err := json.Unmarshal([]byte(body), &rows); err != nil {
			return nil, errors.New("bad roster json: " + err.Error())
		}
		return rows, nil
	}
	return parseRosterCSV(strings.NewReader(body))
}

func parseRosterCSV(r io.Reader) ([]rosterRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		if col, ok := rosterColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			idx[col] = i
		}
	}
	for _, col := range []string{"id", "username"} {
		if _, ok := idx[col]; !ok {
			return nil, errors.New("roster is missing column: " + col)
		}
	}

	var rows []rosterRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := rosterRow{
			ID:       strings.TrimSpace(rec[idx["id"]]),
			Username: strings.TrimSpace(rec[idx["username"]]),
		}
		if i, ok := idx["role"]; ok {
			row.Role = strings.ToLower(strings.TrimSpace(rec[i]))
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func upsertRoster(ctx context.Context, db *sql.DB, rows []rosterRow) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, row := range rows {
		if row.ID == "" || row.Username == "" {
			return inserted, updated, errors.New("roster row needs id and username")
		}
		if row.Role == "" {
			row.Role = "student" // rosters are student lists unless told otherwise
		}
		if !validRole(row.Role) {
			return inserted, updated, errors.New("unknown role in roster: " + row.Role)
		}

		var phash string
		if row.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(row.Password), 12)
			if e != nil {
				return inserted, updated, e
			}
			phash = string(b)
		}

		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM users WHERE id=$1 OR username=$2`, row.ID, row.Username).Scan(new(int))
		switch {
		case err == nil:
			exists = true
		case errors.Is(err, sql.ErrNoRows):
			err = nil
		default:
			return inserted, updated, err
		}

		if exists {
			// Re-imports refresh username and role; the password only
			// changes when the roster carries one.
			if phash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2, password_hash=$3 WHERE id=$4`,
					row.Username, row.Role, phash, row.ID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2 WHERE id=$3`,
					row.Username, row.Role, row.ID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
			continue
		}

		if phash == "" {
			return inserted, updated, errors.New("new user needs a password: " + row.Username)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
			row.ID, row.Username, phash, row.Role, now)
		if err != nil {
			return inserted, updated, err
		}
		inserted++
	}
	return
}

func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		if role != "" && !validRole(role) {
			http.Error(w, "unknown role: "+role, http.StatusBadRequest)
			return
		}

		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		out := []rosterRow{}
		for rows.Next() {
			var row rosterRow
			if err := rows.Scan(&row.ID, &row.Username, &row.Role); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, row)
		}
		writeJSON(w, out)
	}
}

func validRole(role string) bool {
	switch role {
	case "student", "teacher", "admin":
		return true
	}
	return false
}
