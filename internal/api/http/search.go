package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rubriq/rubriq/internal/rubric"
	"github.com/rubriq/rubriq/internal/search"
)

// POST /courses/{course}/search  { "text": "...", "top_k": 3 }
func SearchCriteriaHandler(svc *search.Service, cache *rubric.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := chi.URLParam(r, "course")
		var req struct {
			Text string `json:"text"`
			TopK int    `json:"top_k"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "text required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		matches, err := svc.RelevantCriteria(ctx, course, req.Text, req.TopK)
		if err != nil {
			// Lazy-index the course on first use, then retry once.
			rb, rerr := cache.Rubric(course)
			if rerr != nil {
				http.Error(w, "rubric not found: "+rerr.Error(), http.StatusNotFound)
				return
			}
			if err := svc.IndexRubric(ctx, rb); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			matches, err = svc.RelevantCriteria(ctx, course, req.Text, req.TopK)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, map[string]any{"matches": matches})
	}
}
