package search_test

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq/internal/rubric"
	"github.com/rubriq/rubriq/internal/search"
)

// bagEmbedding is a deterministic word-hash embedding good enough to rank
// overlapping vocabularies in tests.
func bagEmbedding(_ context.Context, text string) ([]float32, error) {
	const dim = 128
	vec := make([]float32, dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,:;")))
		vec[h.Sum32()%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func testRubric() *rubric.Rubric {
	return &rubric.Rubric{
		Course:     "Mineria de Datos",
		TotalScore: 60,
		Criteria: []rubric.Criterion{
			{Number: 1, Name: "Agrupamiento con kmeans", MaxScore: 30, Levels: []rubric.Level{
				{Label: rubric.LevelHigh, MinScore: 1, MaxScore: 30, Description: "kmeans centroides clusters codo"},
			}},
			{Number: 2, Name: "Regresión lineal", MaxScore: 30, Levels: []rubric.Level{
				{Label: rubric.LevelHigh, MinScore: 1, MaxScore: 30, Description: "regresión pendiente variable dependiente"},
			}},
		},
	}
}

func TestRelevantCriteriaRanksMatchingTopic(t *testing.T) {
	s := search.New(bagEmbedding)
	ctx := context.Background()
	require.NoError(t, s.IndexRubric(ctx, testRubric()))

	matches, err := s.RelevantCriteria(ctx, "Mineria de Datos", "se aplicó kmeans y se analizaron los clusters y centroides", 2)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, 1, matches[0].Number)
	assert.Equal(t, "Agrupamiento con kmeans", matches[0].Name)
}

func TestRelevantCriteriaUnindexedCourse(t *testing.T) {
	s := search.New(bagEmbedding)
	_, err := s.RelevantCriteria(context.Background(), "desconocido", "texto", 3)
	assert.Error(t, err)
}

func TestIndexRubricIsIdempotent(t *testing.T) {
	s := search.New(bagEmbedding)
	ctx := context.Background()
	r := testRubric()
	require.NoError(t, s.IndexRubric(ctx, r))
	require.NoError(t, s.IndexRubric(ctx, r))

	matches, err := s.RelevantCriteria(ctx, r.Course, "regresión lineal con variable dependiente", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
