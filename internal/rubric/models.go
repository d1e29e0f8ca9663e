package rubric

import (
	"fmt"
	"sort"

	"github.com/rubriq/rubriq/internal/evidence"
)

// Level labels used across rubrics. "no_presentado" always maps to score 0.
const (
	LevelHigh       = "alto"
	LevelMedium     = "medio"
	LevelLow        = "bajo"
	LevelNotPresent = "no_presentado"
)

type Level struct {
	Label       string `json:"nivel"`
	MinScore    int    `json:"puntaje_minimo"`
	MaxScore    int    `json:"puntaje_maximo"`
	Description string `json:"descripcion"`
}

type Criterion struct {
	Number   int     `json:"numero"`
	Name     string  `json:"nombre"`
	MaxScore int     `json:"puntaje_maximo"`
	Levels   []Level `json:"niveles"`

	// Topic is assigned once at load time, never re-derived per evaluation.
	Topic evidence.Topic `json:"-"`
}

type Rubric struct {
	Course     string      `json:"nombre_curso"`
	Phase      string      `json:"fase,omitempty"`
	TotalScore int         `json:"puntaje_total"`
	Criteria   []Criterion `json:"criterios_evaluacion"`
}

// Size returns the number of criteria.
func (r *Rubric) Size() int { return len(r.Criteria) }

// Tag assigns every criterion its topic. Called by the loaders; exposed for
// rubrics built in memory.
func (r *Rubric) Tag() {
	for i := range r.Criteria {
		r.Criteria[i].Topic = evidence.ClassifyTopic(r.Criteria[i].Name)
	}
}

// Validate enforces the structural invariants: 1-based unique criterion
// numbers matching the declared count, non-negative max scores, and monotone
// non-overlapping level ranges with no_presentado pinned to zero.
func (r *Rubric) Validate() error {
	if r.Course == "" {
		return fmt.Errorf("rubric: missing course name")
	}
	if len(r.Criteria) == 0 {
		return fmt.Errorf("rubric %q: no criteria", r.Course)
	}
	seen := map[int]bool{}
	for _, c := range r.Criteria {
		if c.Number < 1 || c.Number > len(r.Criteria) {
			return fmt.Errorf("rubric %q: criterion number %d out of range 1..%d", r.Course, c.Number, len(r.Criteria))
		}
		if seen[c.Number] {
			return fmt.Errorf("rubric %q: duplicate criterion number %d", r.Course, c.Number)
		}
		seen[c.Number] = true
		if c.MaxScore < 0 {
			return fmt.Errorf("rubric %q: criterion %d has negative max score", r.Course, c.Number)
		}
		if err := validateLevels(c); err != nil {
			return fmt.Errorf("rubric %q: criterion %d: %w", r.Course, c.Number, err)
		}
	}
	return nil
}

func validateLevels(c Criterion) error {
	ranges := make([]Level, 0, len(c.Levels))
	for _, l := range c.Levels {
		if l.Label == LevelNotPresent {
			if l.MinScore != 0 || l.MaxScore != 0 {
				return fmt.Errorf("level %s must map to score 0", LevelNotPresent)
			}
			continue
		}
		if l.MinScore > l.MaxScore {
			return fmt.Errorf("level %s: min %d > max %d", l.Label, l.MinScore, l.MaxScore)
		}
		if l.MaxScore > c.MaxScore {
			return fmt.Errorf("level %s: max %d exceeds criterion max %d", l.Label, l.MaxScore, c.MaxScore)
		}
		ranges = append(ranges, l)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].MinScore < ranges[j].MinScore })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].MinScore <= ranges[i-1].MaxScore {
			return fmt.Errorf("levels %s and %s overlap", ranges[i-1].Label, ranges[i].Label)
		}
	}
	return nil
}

// Criterion returns the criterion with the given number.
func (r *Rubric) Criterion(n int) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Number == n {
			return c, true
		}
	}
	return Criterion{}, false
}
