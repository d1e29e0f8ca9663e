package evidence

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Bundle holds the deterministic, non-model signals computed once per
// document and shared by the presence resolver and the scorer. It is built at
// the start of an evaluation run and discarded afterwards.
type Bundle struct {
	Exercises    map[int]bool
	FilenameHint int
	HintValid    bool
}

// NewBundle computes all detectors for one document.
func NewBundle(text, filename string, rubricSize int) Bundle {
	b := Bundle{Exercises: DetectExercises(text)}
	b.FilenameHint, b.HintValid = DetectFilenameHint(filename, rubricSize)
	return b
}

func (b Bundle) HasExercise(n int) bool { return b.Exercises[n] }

// ExerciseList returns the detected exercise numbers in ascending order.
func (b Bundle) ExerciseList() []int {
	out := make([]int, 0, len(b.Exercises))
	for n := range b.Exercises {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// exerciseRe tolerates line breaks and repeated whitespace between the label
// and the number; OCR output frequently splits headings that way.
var exerciseRe = regexp.MustCompile(`(?i)(?:ejercicio|exercise|actividad|activity|punto|item|tarea|task)[\s\r\n]*(\d+)`)

// DetectExercises scans text for explicit "Exercise N" style headings in
// either working language and returns the distinct numbers in [1,10]. Page
// numbers and other stray digits outside this pattern are not matched.
func DetectExercises(text string) map[int]bool {
	found := map[int]bool{}
	for _, m := range exerciseRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= 10 {
			found[n] = true
		}
	}
	return found
}

var (
	// Parenthesized numbers in filenames are duplicate-download suffixes
	// like "tarea_2 (1).pdf", not criterion references.
	parenNumRe  = regexp.MustCompile(`\(\d+\)`)
	filenameRes = []*regexp.Regexp{
		regexp.MustCompile(`criterio[_\s-]?(\d)`),
		regexp.MustCompile(`tarea[_\s-]?(\d)`),
		regexp.MustCompile(`ejercicio[_\s-]?(\d)`),
		regexp.MustCompile(`actividad[_\s-]?(\d)`),
		regexp.MustCompile(`punto[_\s-]?(\d)`),
		regexp.MustCompile(`task[_\s-]?(\d)`),
		regexp.MustCompile(`criterion[_\s-]?(\d)`),
		regexp.MustCompile(`activity[_\s-]?(\d)`),
		regexp.MustCompile(`\bc(\d)`),
		regexp.MustCompile(`\bt(\d)`),
		regexp.MustCompile(`\be(\d)`),
	}
)

// DetectFilenameHint extracts a criterion number from an uploaded file's name
// ("criterio_2.pdf", "t3.ipynb"). The hint is a weak prior only. Returns
// false when no pattern matches or the number falls outside [1, rubricSize].
func DetectFilenameHint(filename string, rubricSize int) (int, bool) {
	if filename == "" || rubricSize <= 0 {
		return 0, false
	}
	clean := parenNumRe.ReplaceAllString(strings.ToLower(filename), "")
	for _, re := range filenameRes {
		m := re.FindStringSubmatch(clean)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= rubricSize {
			return n, true
		}
	}
	return 0, false
}
