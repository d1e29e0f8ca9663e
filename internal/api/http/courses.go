package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/rubriq/rubriq/internal/extract"
	"github.com/rubriq/rubriq/internal/rubric"
)

// GET /courses
func ListCoursesHandler(cache *rubric.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courses, err := cache.Courses()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"courses": courses})
	}
}

// GET /courses/{course}/rubric
func GetRubricHandler(cache *rubric.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := chi.URLParam(r, "course")
		rb, err := cache.Rubric(course)
		if err != nil {
			http.Error(w, "rubric not found: "+err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, rb)
	}
}

// POST /courses/{course}/rubric/import
//
// Accepts the text extracted from a rubric PDF (multipart "file" or raw
// body), parses the criteria out of it, and persists the structured rubric
// for the course. Existing cache entries are not touched; import is meant
// for onboarding new courses.
func ImportRubricHandler(coursesDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		course := chi.URLParam(r, "course")

		data, name, err := readUpload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res := extract.Extract(name, data)
		if !res.Success {
			http.Error(w, "extract: "+res.Error, http.StatusBadRequest)
			return
		}

		rb, err := rubric.ExtractFromText(res.FullText, course)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if err := rb.Validate(); err != nil {
			http.Error(w, "parsed rubric invalid: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		dir := filepath.Join(coursesDir, filepath.Clean(course))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		buf, err := json.MarshalIndent(rb, "", "  ")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := os.WriteFile(filepath.Join(dir, "rubrica_estructurada.json"), buf, 0o644); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rb)
	}
}

// readUpload returns either the multipart "file" contents or the raw body.
func readUpload(r *http.Request) ([]byte, string, error) {
	if f, h, err := r.FormFile("file"); err == nil {
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		return data, h.Filename, err
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	return data, "body.txt", err
}

// requireFile insists on a multipart "file" part.
func requireFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	f, h, err := r.FormFile(field)
	if err != nil {
		return nil, nil, errors.New("missing file field: " + field)
	}
	return f, h, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
