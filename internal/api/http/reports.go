package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rubriq/rubriq/internal/rbac"
	"github.com/rubriq/rubriq/internal/report"
)

var reportChecker = rbac.NewChecker(nil)

// GET /evaluations?course=...&limit=...
//
// Students see their own history; a role with eval:view-all may filter by
// course instead.
func ListEvaluationsHandler(store report.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := rbac.SubjectFromContext(ctx)
		role := rbac.RoleFromContext(ctx)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		course := r.URL.Query().Get("course")

		var (
			recs []report.Record
			err  error
		)
		if course != "" && reportChecker.Has(role, "eval:view-all") {
			recs, err = store.ListByCourse(ctx, course, limit)
		} else {
			recs, err = store.ListByUser(ctx, userID, limit)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []report.Record{}
		}
		writeJSON(w, recs)
	}
}

// GET /evaluations/{id}
func GetEvaluationHandler(store report.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := fetchAuthorized(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, rec)
	}
}

// GET /evaluations/{id}/export
//
// Serves the stored EvaluationResult verbatim as a downloadable report.
func ExportEvaluationHandler(store report.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := fetchAuthorized(w, r, store)
		if !ok {
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="evaluacion-%s.json"`, rec.ID))
		writeJSON(w, rec.Result)
	}
}

func fetchAuthorized(w http.ResponseWriter, r *http.Request, store report.Store) (report.Record, bool) {
	ctx := r.Context()
	rec, err := store.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, report.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return report.Record{}, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return report.Record{}, false
	}
	if rec.UserID != rbac.SubjectFromContext(ctx) && !reportChecker.Has(rbac.RoleFromContext(ctx), "eval:view-all") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return report.Record{}, false
	}
	return rec, true
}
