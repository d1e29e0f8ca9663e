// Package tutor implements the virtual-tutor mode: it generates quiz
// questions from a study document and grades spoken or typed answers.
package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubriq/rubriq/internal/llm"
)

// Question is one generated quiz item. Keywords drive the deterministic
// pre-check before the model grades the answer.
type Question struct {
	Question string   `json:"pregunta"`
	Expected string   `json:"respuesta_esperada"`
	Keywords []string `json:"palabras_clave"`
}

// AnswerFeedback grades one answer on a 0-10 scale.
type AnswerFeedback struct {
	Correct       bool    `json:"es_correcta"`
	Score         float64 `json:"puntaje"`
	Feedback      string  `json:"feedback"`
	Level         string  `json:"nivel"`
	Encouragement string  `json:"animo"`
}

const answerMaxScore = 10

type Tutor struct {
	cli    llm.Client
	budget int
}

func New(cli llm.Client, promptBudget int) *Tutor {
	if promptBudget <= 0 {
		promptBudget = 4000
	}
	return &Tutor{cli: cli, budget: promptBudget}
}

// GenerateQuestions builds n study questions from the document.
func (t *Tutor) GenerateQuestions(ctx context.Context, text string, n int) ([]Question, error) {
	if n <= 0 {
		n = 5
	}
	user := fmt.Sprintf(`Genera %d preguntas de estudio a partir del siguiente documento. Cada pregunta debe poder responderse con el contenido del documento.

Documento:
"""
%s
"""

Responde con JSON exacto:
{"preguntas": [{"pregunta": "...", "respuesta_esperada": "...", "palabras_clave": ["..."]}]}`,
		n, llm.Truncate(text, t.budget))

	system := "Eres un tutor virtual que prepara preguntas de repaso para un estudiante. Responde únicamente con JSON."
	raw, err := t.cli.CompleteJSON(ctx, system, user, llm.Options{Temperature: 0.5, MaxTokens: 1200})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	var resp struct {
		Questions []Question `json:"preguntas"`
	}
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, fmt.Errorf("generate questions: decode: %w", err)
	}
	if len(resp.Questions) == 0 {
		return nil, fmt.Errorf("generate questions: model returned none")
	}
	return resp.Questions, nil
}

type answerReply struct {
	Correct  bool    `json:"es_correcta"`
	Score    float64 `json:"puntaje"`
	Feedback string  `json:"feedback"`
	Level    string  `json:"nivel"`
}

// EvaluateAnswer grades an answer against a question. An empty answer, or
// one with no keyword overlap at all, is rejected deterministically without
// a model call.
func (t *Tutor) EvaluateAnswer(ctx context.Context, q Question, answer string) (AnswerFeedback, error) {
	if strings.TrimSpace(answer) == "" {
		return withEncouragement(AnswerFeedback{
			Correct:  false,
			Score:    0,
			Level:    "bajo",
			Feedback: "No se recibió una respuesta. Intenta responder con tus propias palabras.",
		}), nil
	}
	if len(q.Keywords) > 0 && keywordHits(answer, q.Keywords) == 0 {
		return withEncouragement(AnswerFeedback{
			Correct:  false,
			Score:    0,
			Level:    "bajo",
			Feedback: fmt.Sprintf("La respuesta no menciona los conceptos clave de la pregunta %q. Revisa el material y vuelve a intentarlo.", q.Question),
		}), nil
	}

	user := fmt.Sprintf(`Pregunta: %s
Respuesta esperada: %s

Respuesta del estudiante:
"""
%s
"""

Califica de 0 a %d. Responde con JSON exacto:
{"es_correcta": true o false, "puntaje": número, "feedback": "...", "nivel": "alto" | "medio" | "bajo"}`,
		q.Question, q.Expected, llm.Truncate(answer, t.budget), answerMaxScore)

	system := "Eres un tutor virtual paciente que califica respuestas orales de estudiantes. Responde únicamente con JSON."
	raw, err := t.cli.CompleteJSON(ctx, system, user, llm.Options{Temperature: 0.2, MaxTokens: 400})
	if err != nil {
		return AnswerFeedback{}, fmt.Errorf("evaluate answer: %w", err)
	}
	var reply answerReply
	if err := llm.DecodeJSON(raw, &reply); err != nil {
		return AnswerFeedback{}, fmt.Errorf("evaluate answer: decode: %w", err)
	}

	score := reply.Score
	if score < 0 {
		score = 0
	}
	if score > answerMaxScore {
		score = answerMaxScore
	}
	return withEncouragement(AnswerFeedback{
		Correct:  reply.Correct,
		Score:    score,
		Feedback: reply.Feedback,
		Level:    reply.Level,
	}), nil
}

// withEncouragement attaches the motivational closing line by score band.
func withEncouragement(fb AnswerFeedback) AnswerFeedback {
	switch {
	case fb.Score >= 8:
		fb.Encouragement = "¡Excelente trabajo! Dominas este tema."
	case fb.Score >= 5:
		fb.Encouragement = "¡Vas por buen camino! Repasa los detalles que faltaron."
	default:
		fb.Encouragement = "No te desanimes: repasa el material y vuelve a intentarlo."
	}
	return fb
}
