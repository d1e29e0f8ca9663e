package feedback

// CriterionFeedback is the scoring record for one rubric criterion. Success
// distinguishes "evaluated" (including a deliberate zero for absent work)
// from "could not judge": a failed model call yields Success=false and the
// record is excluded from the total.
type CriterionFeedback struct {
	Success      bool     `json:"success"`
	Number       int      `json:"criterion_number"`
	Name         string   `json:"criterion_name"`
	MaxScore     int      `json:"max_score"`
	Score        float64  `json:"score"`
	Level        string   `json:"level_achieved,omitempty"`
	Feedback     string   `json:"feedback,omitempty"`
	AspectsMet   []string `json:"aspects_met,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// OverallFeedback is the document-level narrative summary. It is produced by
// a separate model call after scoring, so a failure here never invalidates
// the per-criterion records.
type OverallFeedback struct {
	Summary      string   `json:"resumen"`
	Strengths    []string `json:"fortalezas"`
	Improvements []string `json:"areas_mejora"`
	Conclusion   string   `json:"conclusion"`
}

// EvaluationResult aggregates one full document evaluation. It is the unit
// of persistence and export; serializing and re-parsing it is lossless.
type EvaluationResult struct {
	Success    bool                `json:"success"`
	Course     string              `json:"course"`
	TotalScore float64             `json:"total_score"`
	MaxScore   int                 `json:"max_score"`
	Criteria   []CriterionFeedback `json:"criteria_feedbacks"`
	Overall    *OverallFeedback    `json:"overall_feedback,omitempty"`
	Timestamp  int64               `json:"timestamp"`
	Error      string              `json:"error,omitempty"`
}

// TaskResult reports whether one fine-grained task or deliverable from the
// course conditions file was completed in the submission.
type TaskResult struct {
	Task      string `json:"tarea"`
	Completed bool   `json:"completada"`
	Evidence  string `json:"evidencia,omitempty"`
}

// Config tunes the evaluation pipeline. Zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// HintOverridesModel lets a filename hint matching the criterion number
	// flip a negative model verdict to PRESENT. Institutions whose students
	// do not name files by exercise number should disable it.
	HintOverridesModel bool

	// AlwaysEvaluate lists criterion numbers evaluated even when a filename
	// hint points at a different criterion. These are typically format and
	// reference criteria that apply to any upload.
	AlwaysEvaluate map[int]bool

	// PromptBudget bounds the document characters included per model call.
	PromptBudget int
}

func DefaultConfig() Config {
	return Config{
		HintOverridesModel: true,
		AlwaysEvaluate:     map[int]bool{4: true, 5: true},
		PromptBudget:       4000,
	}
}
