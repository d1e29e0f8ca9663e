package feedback

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rubriq/rubriq/internal/evidence"
	"github.com/rubriq/rubriq/internal/llm"
	"github.com/rubriq/rubriq/internal/rubric"
)

// Confidence labels returned by the model.
const (
	ConfidenceHigh   = "alta"
	ConfidenceMedium = "media"
	ConfidenceLow    = "baja"
)

// Resolver decides whether a criterion's subject matter appears in a
// submission at all. Cheap structural signals are checked first; the model
// is consulted only when keyword evidence is ambiguous, and its verdict is
// combined with the filename prior rather than trusted outright.
type Resolver struct {
	cli llm.Client
	cfg Config
}

func NewResolver(cli llm.Client, cfg Config) *Resolver {
	return &Resolver{cli: cli, cfg: cfg}
}

type presenceVerdict struct {
	Present    bool   `json:"presente"`
	Confidence string `json:"confianza"`
	Reason     string `json:"razon"`
}

// Resolve applies the presence rules in order; the first matching rule
// decides. Any failure while consulting the model resolves to ABSENT:
// infrastructure trouble must never over-credit a submission.
func (r *Resolver) Resolve(ctx context.Context, c rubric.Criterion, text string, ev evidence.Bundle) bool {
	// An explicit "Ejercicio N" heading beats every heuristic.
	if ev.HasExercise(c.Number) {
		return true
	}

	lower := strings.ToLower(text)
	if evidence.HasDirectMarker(c.Topic, lower) {
		return true
	}

	// Without a single keyword group hit there is no plausible topical
	// evidence; don't spend a model call to confirm it.
	if evidence.MatchKeywordGroups(c.Topic, c.Name, lower) < 1 {
		return false
	}

	hintMatches := ev.HintValid && ev.FilenameHint == c.Number

	verdict, err := r.probe(ctx, c, text, ev.HintValid)
	if err != nil {
		log.Printf("presence: criterion %d: model probe failed, resolving absent: %v", c.Number, err)
		return false
	}

	if !verdict.Present {
		// The filename naming the exercise is stronger prior evidence than a
		// single negative model call, when that policy is enabled.
		return r.cfg.HintOverridesModel && hintMatches
	}
	if verdict.Confidence == ConfidenceLow && !hintMatches {
		return false
	}
	return true
}

func (r *Resolver) probe(ctx context.Context, c rubric.Criterion, text string, hasHint bool) (presenceVerdict, error) {
	strictness := "El documento es la entrega completa del estudiante; ante la duda razonable, considera que el criterio SÍ está presente."
	if hasHint {
		strictness = "El documento corresponde a un ejercicio específico; evalúa de forma equilibrada si este criterio en particular está desarrollado."
	}

	system := "Eres un asistente académico que determina si un criterio de evaluación está presente en la entrega de un estudiante. Responde únicamente con JSON."
	user := fmt.Sprintf(`Criterio de evaluación: %q

%s

Documento del estudiante:
"""
%s
"""

Responde con JSON exacto:
{"presente": true o false, "confianza": "alta" | "media" | "baja", "razon": "explicación breve"}`,
		c.Name, strictness, llm.Truncate(text, r.cfg.PromptBudget))

	raw, err := r.cli.CompleteJSON(ctx, system, user, llm.Options{Temperature: 0.1, MaxTokens: 300})
	if err != nil {
		return presenceVerdict{}, err
	}
	var v presenceVerdict
	if err := llm.DecodeJSON(raw, &v); err != nil {
		return presenceVerdict{}, fmt.Errorf("decode presence verdict: %w", err)
	}
	return v, nil
}
