// Package search ranks rubric criteria by semantic similarity to a document.
// It is auxiliary context for the UI and tutor; presence and scoring
// decisions never depend on it.
package search

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rubriq/rubriq/internal/rubric"
)

// Match is one ranked criterion.
type Match struct {
	Number     int     `json:"numero"`
	Name       string  `json:"nombre"`
	Similarity float32 `json:"similitud"`
}

// Service keeps one in-memory collection per course. Indexing is idempotent;
// re-indexing a course replaces its collection.
type Service struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
}

// New builds a service around an embedding function, typically
// chromem.NewEmbeddingFuncOpenAI.
func New(embed chromem.EmbeddingFunc) *Service {
	return &Service{db: chromem.NewDB(), embed: embed}
}

// IndexRubric stores one document per criterion: the name plus its level
// descriptions, which is what a submission's text should resemble.
func (s *Service) IndexRubric(ctx context.Context, r *rubric.Rubric) error {
	name := collectionName(r.Course)
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("reset collection %s: %w", name, err)
	}
	col, err := s.db.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	for _, c := range r.Criteria {
		var b strings.Builder
		b.WriteString(c.Name)
		for _, l := range c.Levels {
			b.WriteString("\n")
			b.WriteString(l.Description)
		}
		doc := chromem.Document{
			ID:       fmt.Sprintf("%d", c.Number),
			Content:  b.String(),
			Metadata: map[string]string{"nombre": c.Name},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index criterion %d: %w", c.Number, err)
		}
	}
	return nil
}

// RelevantCriteria returns the topK criteria most similar to the document
// text. An unindexed course is an error; callers treat it as "no context".
func (s *Service) RelevantCriteria(ctx context.Context, course, text string, topK int) ([]Match, error) {
	col := s.db.GetCollection(collectionName(course), s.embed)
	if col == nil {
		return nil, fmt.Errorf("course %s not indexed", course)
	}
	if topK <= 0 {
		topK = 3
	}
	if n := col.Count(); topK > n {
		topK = n
	}
	results, err := col.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query course %s: %w", course, err)
	}
	out := make([]Match, 0, len(results))
	for _, r := range results {
		var number int
		fmt.Sscanf(r.ID, "%d", &number)
		out = append(out, Match{
			Number:     number,
			Name:       r.Metadata["nombre"],
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func collectionName(course string) string {
	return "rubric-" + strings.ToLower(strings.ReplaceAll(course, " ", "-"))
}
