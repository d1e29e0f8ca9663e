package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/rubriq/rubriq/internal/evidence"
	"github.com/rubriq/rubriq/internal/llm"
	"github.com/rubriq/rubriq/internal/rubric"
)

// Scorer turns a presence verdict into a CriterionFeedback. Absent criteria
// are handled deterministically, with no model call, so the model can never
// invent credit for missing work.
type Scorer struct {
	cli llm.Client
	cfg Config
}

func NewScorer(cli llm.Client, cfg Config) *Scorer {
	return &Scorer{cli: cli, cfg: cfg}
}

type scoreResponse struct {
	Level        string   `json:"nivel_alcanzado"`
	Score        float64  `json:"puntaje"`
	Feedback     string   `json:"feedback"`
	AspectsMet   []string `json:"aspectos_cumplidos"`
	Improvements []string `json:"mejoras"`
}

// Score evaluates one criterion. present=false short-circuits to the fixed
// zero record; model errors produce a Success=false record so the caller can
// tell "no evidence" apart from "could not judge".
func (s *Scorer) Score(ctx context.Context, c rubric.Criterion, course, text string, present bool, ev evidence.Bundle, tasks *rubric.TaskSet) CriterionFeedback {
	if !present {
		return absentFeedback(c)
	}

	resp, err := s.ask(ctx, c, course, text, ev, tasks)
	if err != nil {
		return CriterionFeedback{
			Success:  false,
			Number:   c.Number,
			Name:     c.Name,
			MaxScore: c.MaxScore,
			Error:    err.Error(),
		}
	}

	score := resp.Score
	if score < 0 {
		score = 0
	}
	if score > float64(c.MaxScore) {
		score = float64(c.MaxScore)
	}
	level := resp.Level
	if !validLevel(level) {
		level = levelForScore(c, score)
	}

	return CriterionFeedback{
		Success:      true,
		Number:       c.Number,
		Name:         c.Name,
		MaxScore:     c.MaxScore,
		Score:        score,
		Level:        level,
		Feedback:     resp.Feedback,
		AspectsMet:   resp.AspectsMet,
		Improvements: resp.Improvements,
	}
}

func absentFeedback(c rubric.Criterion) CriterionFeedback {
	return CriterionFeedback{
		Success:  true,
		Number:   c.Number,
		Name:     c.Name,
		MaxScore: c.MaxScore,
		Score:    0,
		Level:    rubric.LevelNotPresent,
		Feedback: fmt.Sprintf("No se encontró evidencia del criterio %q en el documento entregado.", c.Name),
		Improvements: []string{
			fmt.Sprintf("Desarrolle el criterio %q y vuelva a entregar el documento.", c.Name),
			"Verifique que el archivo subido corresponde a la actividad solicitada.",
		},
	}
}

func (s *Scorer) ask(ctx context.Context, c rubric.Criterion, course, text string, ev evidence.Bundle, tasks *rubric.TaskSet) (scoreResponse, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Curso: %s\nCriterio %d: %s (puntaje máximo %d)\n\nNiveles de desempeño:\n", course, c.Number, c.Name, c.MaxScore)
	for _, l := range c.Levels {
		fmt.Fprintf(&b, "- %s (%d a %d puntos): %s\n", l.Label, l.MinScore, l.MaxScore, l.Description)
	}

	taskList, deliverables := tasks.ForCriterion(c.Number)
	if len(taskList) > 0 {
		b.WriteString("\nTareas específicas a verificar punto por punto:\n")
		for _, t := range taskList {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	if len(deliverables) > 0 {
		b.WriteString("\nEntregables esperados:\n")
		for _, d := range deliverables {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if exs := ev.ExerciseList(); len(exs) > 0 {
		fmt.Fprintf(&b, "\nEjercicios detectados en el documento: %v\n", exs)
	}

	fmt.Fprintf(&b, "\nDocumento del estudiante:\n\"\"\"\n%s\n\"\"\"\n\n", llm.Truncate(text, s.cfg.PromptBudget))
	fmt.Fprintf(&b, `Asigna un nivel y un puntaje dentro del rango del nivel. Responde con JSON exacto:
{"nivel_alcanzado": "alto" | "medio" | "bajo", "puntaje": número, "feedback": "retroalimentación constructiva", "aspectos_cumplidos": ["..."], "mejoras": ["..."]}`)

	system := "Eres un profesor universitario que califica trabajos siguiendo una rúbrica al pie de la letra. Responde únicamente con JSON."
	raw, err := s.cli.CompleteJSON(ctx, system, b.String(), llm.Options{Temperature: 0.2, MaxTokens: 800})
	if err != nil {
		return scoreResponse{}, fmt.Errorf("score criterion %d: %w", c.Number, err)
	}
	var resp scoreResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return scoreResponse{}, fmt.Errorf("score criterion %d: decode: %w", c.Number, err)
	}
	return resp, nil
}

func validLevel(l string) bool {
	switch l {
	case rubric.LevelHigh, rubric.LevelMedium, rubric.LevelLow, rubric.LevelNotPresent:
		return true
	}
	return false
}

// levelForScore maps a clamped score back onto the criterion's own bands
// when the model names a level outside the rubric vocabulary.
func levelForScore(c rubric.Criterion, score float64) string {
	for _, l := range c.Levels {
		if score >= float64(l.MinScore) && score <= float64(l.MaxScore) {
			return l.Label
		}
	}
	if score == 0 {
		return rubric.LevelNotPresent
	}
	return rubric.LevelLow
}

// CheckTasks verifies the fine-grained tasks of a criterion one by one
// against the document. It is an optional detail pass; the regular scoring
// path does not depend on it.
func (s *Scorer) CheckTasks(ctx context.Context, c rubric.Criterion, text string, tasks *rubric.TaskSet) ([]TaskResult, error) {
	taskList, deliverables := tasks.ForCriterion(c.Number)
	taskList = append(taskList, deliverables...)
	if len(taskList) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Criterio %d: %s\n\nTareas a verificar:\n", c.Number, c.Name)
	for _, t := range taskList {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	fmt.Fprintf(&b, "\nDocumento del estudiante:\n\"\"\"\n%s\n\"\"\"\n\n", llm.Truncate(text, s.cfg.PromptBudget))
	b.WriteString(`Para cada tarea indica si fue completada. Responde con JSON exacto:
{"tareas": [{"tarea": "...", "completada": true o false, "evidencia": "cita breve del documento o vacío"}]}`)

	system := "Eres un revisor académico que verifica tareas específicas en la entrega de un estudiante. Responde únicamente con JSON."
	raw, err := s.cli.CompleteJSON(ctx, system, b.String(), llm.Options{Temperature: 0.1, MaxTokens: 900})
	if err != nil {
		return nil, fmt.Errorf("check tasks for criterion %d: %w", c.Number, err)
	}
	var resp struct {
		Tasks []TaskResult `json:"tareas"`
	}
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, fmt.Errorf("check tasks for criterion %d: decode: %w", c.Number, err)
	}
	return resp.Tasks, nil
}
