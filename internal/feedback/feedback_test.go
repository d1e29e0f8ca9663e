package feedback_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq/internal/evidence"
	"github.com/rubriq/rubriq/internal/feedback"
	"github.com/rubriq/rubriq/internal/llm"
	"github.com/rubriq/rubriq/internal/rubric"
)

// fakeClient scripts model responses and counts calls so tests can assert
// which paths consulted the model at all.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	respond func(system, user string) ([]byte, error)
}

func (f *fakeClient) CompleteJSON(_ context.Context, system, user string, _ llm.Options) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.respond == nil {
		return nil, errors.New("unexpected model call")
	}
	return f.respond(system, user)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func presenceReply(present bool, confidence string) []byte {
	return fmt.Appendf(nil, `{"presente": %t, "confianza": %q, "razon": "test"}`, present, confidence)
}

func scoreReply(level string, score float64) []byte {
	return fmt.Appendf(nil, `{"nivel_alcanzado": %q, "puntaje": %g, "feedback": "bien", "aspectos_cumplidos": ["a"], "mejoras": ["m"]}`, level, score)
}

func overallReply() []byte {
	return []byte(`{"resumen": "r", "fortalezas": ["f"], "areas_mejora": ["a"], "conclusion": "c"}`)
}

func criterion(number int, name string, maxScore int) rubric.Criterion {
	c := rubric.Criterion{
		Number:   number,
		Name:     name,
		MaxScore: maxScore,
		Levels: []rubric.Level{
			{Label: rubric.LevelHigh, MinScore: 2*maxScore/3 + 1, MaxScore: maxScore, Description: "alto"},
			{Label: rubric.LevelMedium, MinScore: maxScore/3 + 1, MaxScore: 2 * maxScore / 3, Description: "medio"},
			{Label: rubric.LevelLow, MinScore: 1, MaxScore: maxScore / 3, Description: "bajo"},
		},
		Topic: evidence.ClassifyTopic(name),
	}
	return c
}

func bundle(text, filename string, size int) evidence.Bundle {
	return evidence.NewBundle(text, filename, size)
}

func TestResolveExerciseHeadingDominates(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return presenceReply(false, "alta"), nil
	}}
	r := feedback.NewResolver(cli, feedback.DefaultConfig())

	c := criterion(2, "Modelo de regresión lineal", 30)
	text := "Ejercicio 2\nSe presenta el desarrollo completo."
	assert.True(t, r.Resolve(context.Background(), c, text, bundle(text, "", 5)))
	assert.Equal(t, 0, cli.callCount())
}

func TestResolveDirectMarkerSkipsModel(t *testing.T) {
	cli := &fakeClient{}
	r := feedback.NewResolver(cli, feedback.DefaultConfig())

	c := criterion(1, "K-Means Clustering", 60)
	text := "Se aplicó KMeans con k=3 sobre los datos normalizados."
	assert.True(t, r.Resolve(context.Background(), c, text, bundle(text, "", 1)))
	assert.Equal(t, 0, cli.callCount())
}

func TestResolveZeroGroupsAbsentWithoutModel(t *testing.T) {
	cli := &fakeClient{}
	r := feedback.NewResolver(cli, feedback.DefaultConfig())

	c := criterion(1, "Modelo de regresión lineal", 30)
	text := "Texto sobre historia del arte sin relación alguna."
	assert.False(t, r.Resolve(context.Background(), c, text, bundle(text, "", 3)))
	assert.Equal(t, 0, cli.callCount())
}

func TestResolveModelNegativeWithHintOverride(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return presenceReply(false, "alta"), nil
	}}
	cfg := feedback.DefaultConfig()
	r := feedback.NewResolver(cli, cfg)

	c := criterion(2, "Modelo de regresión lineal", 30)
	// Keyword evidence exists but no heading and no direct marker, so the
	// model is consulted; the filename hint flips its negative verdict.
	text := "Se ajustó un modelo de regresión simple entre las dos variables."
	assert.True(t, r.Resolve(context.Background(), c, text, bundle(text, "tarea_2.pdf", 5)))
	assert.Equal(t, 1, cli.callCount())
}

func TestResolveModelNegativeNoOverride(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return presenceReply(false, "alta"), nil
	}}
	cfg := feedback.DefaultConfig()
	cfg.HintOverridesModel = false
	r := feedback.NewResolver(cli, cfg)

	c := criterion(2, "Modelo de regresión lineal", 30)
	text := "Se ajustó un modelo de regresión simple entre las dos variables."
	assert.False(t, r.Resolve(context.Background(), c, text, bundle(text, "tarea_2.pdf", 5)))
}

func TestResolveLowConfidenceAffirmativeRejected(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return presenceReply(true, "baja"), nil
	}}
	r := feedback.NewResolver(cli, feedback.DefaultConfig())

	c := criterion(2, "Modelo de regresión lineal", 30)
	text := "Se ajustó un modelo de regresión simple entre las dos variables."
	assert.False(t, r.Resolve(context.Background(), c, text, bundle(text, "", 5)))

	// With a matching filename hint the same low-confidence yes stands.
	assert.True(t, r.Resolve(context.Background(), c, text, bundle(text, "tarea_2.pdf", 5)))
}

func TestResolveFailsClosedOnModelError(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return nil, errors.New("timeout")
	}}
	r := feedback.NewResolver(cli, feedback.DefaultConfig())

	c := criterion(2, "Modelo de regresión lineal", 30)
	text := "Se ajustó un modelo de regresión simple entre las dos variables."
	assert.False(t, r.Resolve(context.Background(), c, text, bundle(text, "", 5)))
}

func TestScoreAbsentIsDeterministic(t *testing.T) {
	cli := &fakeClient{}
	s := feedback.NewScorer(cli, feedback.DefaultConfig())

	c := criterion(1, "Preparación de los datos", 30)
	fb := s.Score(context.Background(), c, "curso", "texto", false, evidence.Bundle{}, nil)

	assert.True(t, fb.Success)
	assert.Zero(t, fb.Score)
	assert.Equal(t, rubric.LevelNotPresent, fb.Level)
	assert.NotEmpty(t, fb.Improvements)
	assert.Equal(t, 0, cli.callCount())
}

func TestScoreClampsOutOfRange(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return scoreReply("alto", 999), nil
	}}
	s := feedback.NewScorer(cli, feedback.DefaultConfig())

	c := criterion(1, "Preparación de los datos", 30)
	fb := s.Score(context.Background(), c, "curso", "texto", true, evidence.Bundle{}, nil)
	require.True(t, fb.Success)
	assert.Equal(t, float64(30), fb.Score)
}

func TestScoreModelErrorIsFailureNotAbsent(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return nil, errors.New("timeout")
	}}
	s := feedback.NewScorer(cli, feedback.DefaultConfig())

	c := criterion(1, "Preparación de los datos", 30)
	fb := s.Score(context.Background(), c, "curso", "texto", true, evidence.Bundle{}, nil)
	assert.False(t, fb.Success)
	assert.NotEmpty(t, fb.Error)
	assert.NotEqual(t, rubric.LevelNotPresent, fb.Level)
}

func fiveCriterionRubric() *rubric.Rubric {
	r := &rubric.Rubric{
		Course:     "Mineria de Datos",
		TotalScore: 150,
		Criteria: []rubric.Criterion{
			criterion(1, "Preparación de los datos", 30),
			criterion(2, "Modelo de regresión lineal", 30),
			criterion(3, "Agrupamiento con K-Means", 30),
			criterion(4, "Participación en el foro", 30),
			criterion(5, "Formato y referencias del documento", 30),
		},
	}
	return r
}

// scriptedClient answers presence probes affirmatively and scoring prompts
// with a fixed score, keyed on the requested JSON shape.
func scriptedClient(score float64) *fakeClient {
	return &fakeClient{respond: func(system, user string) ([]byte, error) {
		switch {
		case strings.Contains(user, `"presente"`):
			return presenceReply(true, "alta"), nil
		case strings.Contains(user, `"nivel_alcanzado"`):
			return scoreReply("alto", score), nil
		default:
			return overallReply(), nil
		}
	}}
}

const richDocument = `Ejercicio 1
Se realizó la limpieza de valores nulos y la normalización de los datos.
Ejercicio 2
Se ajustó una regresión lineal con variable dependiente e independiente.
Ejercicio 3
Se aplicó kmeans con k=3 y se interpretaron los clusters.
Ejercicio 4
Participación en el foro con dos aportes.
Ejercicio 5
El documento incluye portada, bibliografía y referencias en formato APA.`

func TestEvaluateTotalIsSumOfSuccessfulScores(t *testing.T) {
	cli := scriptedClient(20)
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	res := e.Evaluate(context.Background(), fiveCriterionRubric(), nil, richDocument, "")
	require.True(t, res.Success)
	require.Len(t, res.Criteria, 5)

	var sum float64
	for _, fb := range res.Criteria {
		require.True(t, fb.Success)
		sum += fb.Score
	}
	assert.Equal(t, sum, res.TotalScore)
	assert.NotNil(t, res.Overall)
}

func TestEvaluateFilenameHintFiltersCriteria(t *testing.T) {
	cli := scriptedClient(25)
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	res := e.Evaluate(context.Background(), fiveCriterionRubric(), nil, richDocument, "ejercicio_2.pdf")
	require.True(t, res.Success)
	require.Len(t, res.Criteria, 5)

	for _, fb := range res.Criteria {
		switch fb.Number {
		case 1, 3:
			assert.True(t, fb.Success)
			assert.Zero(t, fb.Score, "criterion %d should be skipped", fb.Number)
			assert.Contains(t, fb.Feedback, "no fue evaluado")
		case 2, 4, 5:
			assert.True(t, fb.Success)
			assert.NotZero(t, fb.Score, "criterion %d should be evaluated", fb.Number)
		}
	}
}

func TestEvaluateEmptyDocumentAllAbsent(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return overallReply(), nil
	}}
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	res := e.Evaluate(context.Background(), fiveCriterionRubric(), nil, "", "")
	require.True(t, res.Success)
	assert.Zero(t, res.TotalScore)
	for _, fb := range res.Criteria {
		assert.True(t, fb.Success)
		assert.Equal(t, rubric.LevelNotPresent, fb.Level)
	}
	// Only the overall-summary call touched the model.
	assert.Equal(t, 1, cli.callCount())
}

func TestEvaluateAllModelCallsFail(t *testing.T) {
	cli := &fakeClient{respond: func(_, _ string) ([]byte, error) {
		return nil, errors.New("timeout")
	}}
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	// Every criterion has an exercise heading, so presence is structural and
	// each scoring call fails.
	res := e.Evaluate(context.Background(), fiveCriterionRubric(), nil, richDocument, "")
	require.True(t, res.Success)
	assert.Zero(t, res.TotalScore)
	assert.Nil(t, res.Overall)
	for _, fb := range res.Criteria {
		assert.False(t, fb.Success)
	}
}

func TestEvaluateMalformedRubricIsFatal(t *testing.T) {
	cli := scriptedClient(10)
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	r := fiveCriterionRubric()
	r.Criteria[1].Number = 1
	res := e.Evaluate(context.Background(), r, nil, richDocument, "")
	assert.False(t, res.Success)
	assert.Empty(t, res.Criteria)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 0, cli.callCount())
}

func TestEvaluationResultRoundTrip(t *testing.T) {
	cli := scriptedClient(20)
	e := feedback.NewEvaluator(cli, feedback.DefaultConfig())

	res := e.Evaluate(context.Background(), fiveCriterionRubric(), nil, richDocument, "")
	buf, err := json.Marshal(res)
	require.NoError(t, err)

	var back feedback.EvaluationResult
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, *res, back)
}

func TestCheckTasks(t *testing.T) {
	cli := &fakeClient{respond: func(_, user string) ([]byte, error) {
		return []byte(`{"tareas": [{"tarea": "Normalizar variables", "completada": true, "evidencia": "se normalizó"}, {"tarea": "Elegir k", "completada": false}]}`), nil
	}}
	s := feedback.NewScorer(cli, feedback.DefaultConfig())

	ts := &rubric.TaskSet{Exercises: []rubric.ExerciseTasks{
		{Number: 3, Tasks: []string{"Normalizar variables", "Elegir k"}},
	}}
	c := criterion(3, "Agrupamiento con K-Means", 30)

	results, err := s.CheckTasks(context.Background(), c, "doc", ts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Completed)
	assert.False(t, results[1].Completed)

	// No tasks for the criterion means no model call.
	none, err := s.CheckTasks(context.Background(), criterion(1, "Otro", 10), "doc", ts)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Equal(t, 1, cli.callCount())
}
