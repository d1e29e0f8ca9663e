// Package guard runs the pre-evaluation eligibility checks: is the uploaded
// document a real student submission, and does it belong to the rubric's
// phase. Guards fail open. A guard-service error allows evaluation, the
// opposite of the presence resolver's fail-closed default, because blocking
// legitimate work is worse than occasionally grading a mismatched upload.
package guard

import (
	"context"
	"fmt"
	"log"

	"github.com/rubriq/rubriq/internal/llm"
)

// Confidence labels shared with the rest of the pipeline.
const (
	ConfidenceHigh   = "alta"
	ConfidenceMedium = "media"
	ConfidenceLow    = "baja"
)

// Verdict is one guard's answer. OK=false only blocks when confidence is
// alta or media; a low-confidence rejection downgrades to a warning.
type Verdict struct {
	OK             bool   `json:"verdict"`
	Confidence     string `json:"confidence"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation,omitempty"`
}

// Blocks reports whether this verdict should stop evaluation.
func (v Verdict) Blocks() bool {
	return !v.OK && (v.Confidence == ConfidenceHigh || v.Confidence == ConfidenceMedium)
}

type Checker struct {
	cli    llm.Client
	budget int
}

func New(cli llm.Client, promptBudget int) *Checker {
	if promptBudget <= 0 {
		promptBudget = 3000
	}
	return &Checker{cli: cli, budget: promptBudget}
}

type guardReply struct {
	OK             bool   `json:"cumple"`
	Confidence     string `json:"confianza"`
	Explanation    string `json:"explicacion"`
	Recommendation string `json:"recomendacion"`
}

// CheckStudentWork decides whether the document is an actual submission
// rather than the assignment prompt or an instructions sheet.
func (c *Checker) CheckStudentWork(ctx context.Context, text string) Verdict {
	user := fmt.Sprintf(`Determina si el siguiente documento es el TRABAJO de un estudiante (desarrollo propio, resultados, análisis) o si es la GUÍA o enunciado de la actividad.

Documento:
"""
%s
"""

Responde con JSON exacto:
{"cumple": true si es trabajo del estudiante, "confianza": "alta" | "media" | "baja", "explicacion": "...", "recomendacion": "..."}`,
		llm.Truncate(text, c.budget))
	return c.run(ctx, "student-work", user)
}

// CheckPhase decides whether the document's apparent topic matches the
// rubric's declared course phase.
func (c *Checker) CheckPhase(ctx context.Context, text, course, phase string) Verdict {
	user := fmt.Sprintf(`Curso: %s
Fase esperada: %s

Determina si el siguiente documento corresponde a la fase esperada del curso.

Documento:
"""
%s
"""

Responde con JSON exacto:
{"cumple": true si corresponde a la fase, "confianza": "alta" | "media" | "baja", "explicacion": "...", "recomendacion": "..."}`,
		course, phase, llm.Truncate(text, c.budget))
	return c.run(ctx, "phase", user)
}

func (c *Checker) run(ctx context.Context, name, user string) Verdict {
	system := "Eres un filtro académico previo a la calificación. Responde únicamente con JSON."
	raw, err := c.cli.CompleteJSON(ctx, system, user, llm.Options{Temperature: 0.1, MaxTokens: 300})
	if err != nil {
		log.Printf("guard %s: check failed, allowing evaluation: %v", name, err)
		return allowOnFailure()
	}
	var reply guardReply
	if err := llm.DecodeJSON(raw, &reply); err != nil {
		log.Printf("guard %s: undecodable reply, allowing evaluation: %v", name, err)
		return allowOnFailure()
	}
	return Verdict{
		OK:             reply.OK,
		Confidence:     reply.Confidence,
		Explanation:    reply.Explanation,
		Recommendation: reply.Recommendation,
	}
}

func allowOnFailure() Verdict {
	return Verdict{
		OK:          true,
		Confidence:  ConfidenceLow,
		Explanation: "La verificación previa no estuvo disponible; se continúa con la evaluación.",
	}
}
