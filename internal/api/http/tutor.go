package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rubriq/rubriq/internal/extract"
	"github.com/rubriq/rubriq/internal/tutor"
)

// POST /tutor/questions  (multipart "file" with a study document, or raw text)
func TutorQuestionsHandler(t *tutor.Tutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, name, err := readUpload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res := extract.Extract(name, data)
		if !res.Success {
			http.Error(w, "extract: "+res.Error, http.StatusUnprocessableEntity)
			return
		}

		count, _ := strconv.Atoi(r.URL.Query().Get("count"))
		questions, err := t.GenerateQuestions(r.Context(), res.FullText, count)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, map[string]any{"preguntas": questions})
	}
}

// POST /tutor/answer  { "pregunta": {...}, "respuesta": "..." }
func TutorAnswerHandler(t *tutor.Tutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question tutor.Question `json:"pregunta"`
			Answer   string         `json:"respuesta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Question.Question == "" {
			http.Error(w, "pregunta required", http.StatusBadRequest)
			return
		}
		fb, err := t.EvaluateAnswer(r.Context(), req.Question, req.Answer)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, fb)
	}
}
