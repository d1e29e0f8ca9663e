package feedback

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rubriq/rubriq/internal/evidence"
	"github.com/rubriq/rubriq/internal/llm"
	"github.com/rubriq/rubriq/internal/rubric"
)

// Evaluator runs a full document evaluation: filename filtering, presence
// resolution and scoring per criterion in rubric order, then one decoupled
// overall-summary call. Criteria are evaluated sequentially; a single
// criterion's failure is recorded and the run continues.
type Evaluator struct {
	cli      llm.Client
	cfg      Config
	resolver *Resolver
	scorer   *Scorer
}

func NewEvaluator(cli llm.Client, cfg Config) *Evaluator {
	return &Evaluator{
		cli:      cli,
		cfg:      cfg,
		resolver: NewResolver(cli, cfg),
		scorer:   NewScorer(cli, cfg),
	}
}

// Evaluate grades a document against a rubric. A malformed rubric is fatal
// for the whole request; everything past that point degrades per criterion.
func (e *Evaluator) Evaluate(ctx context.Context, r *rubric.Rubric, tasks *rubric.TaskSet, text, filename string) *EvaluationResult {
	if err := r.Validate(); err != nil {
		return &EvaluationResult{
			Success:   false,
			Course:    r.Course,
			MaxScore:  r.TotalScore,
			Error:     err.Error(),
			Timestamp: time.Now().Unix(),
		}
	}

	// Deterministic signals are computed once and reused for every criterion.
	ev := evidence.NewBundle(text, filename, r.Size())

	var (
		feedbacks []CriterionFeedback
		total     float64
	)
	for _, c := range r.Criteria {
		if e.skipForFilename(c.Number, ev) {
			feedbacks = append(feedbacks, wrongFileFeedback(c, ev.FilenameHint))
			continue
		}

		present := e.resolver.Resolve(ctx, c, text, ev)
		fb := e.scorer.Score(ctx, c, r.Course, text, present, ev, tasks)
		if fb.Success {
			total += fb.Score
		}
		feedbacks = append(feedbacks, fb)
	}

	res := &EvaluationResult{
		Success:    true,
		Course:     r.Course,
		TotalScore: total,
		MaxScore:   r.TotalScore,
		Criteria:   feedbacks,
		Timestamp:  time.Now().Unix(),
	}

	overall, err := e.summarize(ctx, res)
	if err != nil {
		// Per-criterion results stand on their own.
		log.Printf("evaluate: overall summary failed, returning partial report: %v", err)
	} else {
		res.Overall = overall
	}
	return res
}

// skipForFilename reports whether a criterion is filtered out by the
// filename hint: when the upload names one exercise, only that criterion and
// the always-evaluated ones are graded.
func (e *Evaluator) skipForFilename(number int, ev evidence.Bundle) bool {
	if !ev.HintValid {
		return false
	}
	if number == ev.FilenameHint || e.cfg.AlwaysEvaluate[number] {
		return false
	}
	return true
}

func wrongFileFeedback(c rubric.Criterion, hint int) CriterionFeedback {
	return CriterionFeedback{
		Success:  true,
		Number:   c.Number,
		Name:     c.Name,
		MaxScore: c.MaxScore,
		Score:    0,
		Level:    rubric.LevelNotPresent,
		Feedback: fmt.Sprintf("El archivo entregado corresponde al ejercicio %d, por lo que el criterio %d no fue evaluado en esta entrega.", hint, c.Number),
		Improvements: []string{
			fmt.Sprintf("Suba el archivo correspondiente al ejercicio %d para evaluar este criterio.", c.Number),
		},
	}
}

// summarize requests the document-level narrative from the per-criterion
// summary, never from the raw document.
func (e *Evaluator) summarize(ctx context.Context, res *EvaluationResult) (*OverallFeedback, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Curso: %s\nPuntaje total: %.1f de %d\n\nResultados por criterio:\n", res.Course, res.TotalScore, res.MaxScore)
	for _, fb := range res.Criteria {
		if !fb.Success {
			fmt.Fprintf(&b, "- Criterio %d (%s): no pudo evaluarse\n", fb.Number, fb.Name)
			continue
		}
		fmt.Fprintf(&b, "- Criterio %d (%s): %.1f de %d, nivel %s\n", fb.Number, fb.Name, fb.Score, fb.MaxScore, fb.Level)
	}
	b.WriteString(`
Redacta una retroalimentación general para el estudiante. Responde con JSON exacto:
{"resumen": "...", "fortalezas": ["..."], "areas_mejora": ["..."], "conclusion": "..."}`)

	system := "Eres un profesor universitario que redacta retroalimentación general a partir de resultados por criterio. Responde únicamente con JSON."
	raw, err := e.cli.CompleteJSON(ctx, system, b.String(), llm.Options{Temperature: 0.3, MaxTokens: 600})
	if err != nil {
		return nil, err
	}
	var overall OverallFeedback
	if err := llm.DecodeJSON(raw, &overall); err != nil {
		return nil, fmt.Errorf("decode overall feedback: %w", err)
	}
	return &overall, nil
}
