package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rubriq/rubriq/internal/extract"
	"github.com/rubriq/rubriq/internal/feedback"
	"github.com/rubriq/rubriq/internal/guard"
	"github.com/rubriq/rubriq/internal/rbac"
	"github.com/rubriq/rubriq/internal/report"
	"github.com/rubriq/rubriq/internal/rubric"
	"github.com/rubriq/rubriq/internal/storage"
)

const maxUploadBytes = 20 << 20

// EvaluateDeps wires the evaluation pipeline into the HTTP surface.
type EvaluateDeps struct {
	Courses   *rubric.Cache
	Evaluator *feedback.Evaluator
	Guards    *guard.Checker
	Reports   report.Store
	Blobs     storage.BlobStore
}

// guardResponse is returned with 422 when a guard blocks evaluation.
type guardResponse struct {
	Blocked  bool            `json:"blocked"`
	Reason   string          `json:"reason"`
	Verdicts []guard.Verdict `json:"verdicts"`
}

// POST /courses/{course}/evaluate  (multipart, field "file")
func EvaluateHandler(deps EvaluateDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := chi.URLParam(r, "course")
		userID := rbac.SubjectFromContext(r.Context())

		rb, err := deps.Courses.Rubric(course)
		if err != nil {
			http.Error(w, "rubric not found: "+err.Error(), http.StatusNotFound)
			return
		}
		tasks, err := deps.Courses.Tasks(course)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		f, hdr, err := requireFile(r, "file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return
		}

		// Extraction failure aborts before any evaluation starts.
		res := extract.Extract(hdr.Filename, data)
		if !res.Success {
			http.Error(w, "extract: "+res.Error, http.StatusUnprocessableEntity)
			return
		}

		// Pre-evaluation guards. A high or medium confidence rejection is a
		// hard stop; low confidence becomes a warning in the report.
		ctx := r.Context()
		verdicts := []guard.Verdict{deps.Guards.CheckStudentWork(ctx, res.FullText)}
		if rb.Phase != "" {
			verdicts = append(verdicts, deps.Guards.CheckPhase(ctx, res.FullText, rb.Course, rb.Phase))
		}
		for _, v := range verdicts {
			if v.Blocks() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(w).Encode(guardResponse{Blocked: true, Reason: v.Explanation, Verdicts: verdicts})
				return
			}
		}

		if key := storage.UploadKey(course, userID, hdr.Filename); deps.Blobs != nil {
			if _, err := deps.Blobs.Put(key, bytes.NewReader(data)); err != nil {
				// Keeping the original file is best effort; grading proceeds.
				log.Printf("evaluate: store upload %s: %v", key, err)
			}
		}

		result := deps.Evaluator.Evaluate(ctx, rb, tasks, res.FullText, hdr.Filename)
		if !result.Success {
			http.Error(w, "evaluation failed: "+result.Error, http.StatusInternalServerError)
			return
		}

		rec, err := deps.Reports.Save(ctx, course, userID, hdr.Filename, result)
		if err != nil {
			http.Error(w, "save report: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rec)
	}
}
