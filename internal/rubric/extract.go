package rubric

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ExtractFromText builds a structured rubric out of text extracted from a
// rubric PDF. The university templates follow a fixed narrative form in
// Spanish ("Primer criterio de evaluación: ... Este criterio tiene una
// valoración máxima de N puntos") or English ("First evaluation criterion:
// ... This criterion has a maximum score of N points"), with three named
// performance levels per criterion.
func ExtractFromText(text, course string) (*Rubric, error) {
	var criteria []Criterion
	if isSpanish(text) {
		criteria = extractCriteria(text, spanishPatterns)
	} else {
		criteria = extractCriteria(text, englishPatterns)
	}
	if len(criteria) == 0 {
		return nil, fmt.Errorf("rubric text for %q: no criteria recognized", course)
	}

	r := &Rubric{
		Course:     course,
		TotalScore: extractTotalScore(text),
		Criteria:   criteria,
	}
	r.Tag()
	return r, nil
}

func isSpanish(text string) bool {
	low := strings.ToLower(text)
	return strings.Contains(low, "criterio") || strings.Contains(low, "evaluación")
}

type rubricPatterns struct {
	criterion *regexp.Regexp
	maxScore  *regexp.Regexp
	levels    map[string]*regexp.Regexp
	levelSpan *regexp.Regexp
	skipLine  []string
}

var spanishPatterns = rubricPatterns{
	criterion: regexp.MustCompile(`(?is)(Primer|Segundo|Tercer|Cuarto|Quinto|Sexto|Séptimo)\s+criterio\s+de[\s\n]+evaluaci[óo]n[:\s]+(.*?)Este\s+criterio\s+tiene`),
	maxScore:  regexp.MustCompile(`(?i)una\s+valoraci[óo]n\s+m[áa]xima\s+de[:\s]+(\d+)\s*puntos`),
	levels: map[string]*regexp.Regexp{
		LevelHigh:   regexp.MustCompile(`(?is)Nivel\s+alto[:\s]+(.*?)Si\s+su\s+trabajo`),
		LevelMedium: regexp.MustCompile(`(?is)Nivel\s+medio[:\s]+(.*?)Si\s+su\s+trabajo`),
		LevelLow:    regexp.MustCompile(`(?is)Nivel\s+bajo[:\s]+(.*?)Si\s+su\s+trabajo`),
	},
	levelSpan: regexp.MustCompile(`(?i)entre\s+(\d+)\s+puntos?\s+y\s+(\d+)\s+puntos?`),
	skipLine:  []string{"nivel", "si su", "en este", "obtener entre", "la ", "el ", "presenta", "aplica"},
}

var englishPatterns = rubricPatterns{
	criterion: regexp.MustCompile(`(?is)(First|Second|Third|Fourth|Fifth|Sixth|Seventh)\s+evaluation\s+criterion[:\s]+(.*?)This\s+criterion\s+has`),
	maxScore:  regexp.MustCompile(`(?i)maximum\s+score\s+of[:\s]+(\d+)\s*points`),
	levels: map[string]*regexp.Regexp{
		LevelHigh:   regexp.MustCompile(`(?is)High\s+Level[:\s]+(.*?)If\s+your\s+work`),
		LevelMedium: regexp.MustCompile(`(?is)Average\s+Level[:\s]+(.*?)If\s+your\s+work`),
		LevelLow:    regexp.MustCompile(`(?is)Low\s+Level[:\s]+(.*?)If\s+your\s+work`),
	},
	levelSpan: regexp.MustCompile(`(?i)between\s+(\d+)\s+points?\s+and\s+(\d+)\s+points?`),
	skipLine:  []string{"level", "if your", "in this"},
}

func extractCriteria(text string, pats rubricPatterns) []Criterion {
	matches := pats.criterion.FindAllStringSubmatchIndex(text, -1)
	var out []Criterion
	for i, m := range matches {
		// Each criterion owns the text up to the start of the next one.
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := text[m[0]:end]

		name := criterionName(text[m[4]:m[5]], pats.skipLine)
		if name == "" {
			name = strings.TrimSpace(text[m[2]:m[3]]) + " criterio de evaluación"
		}

		maxScore := 0
		if sm := pats.maxScore.FindStringSubmatch(section); sm != nil {
			maxScore, _ = strconv.Atoi(sm[1])
		}

		out = append(out, Criterion{
			Number:   i + 1,
			Name:     name,
			MaxScore: maxScore,
			Levels:   extractLevels(section, pats),
		})
	}
	return out
}

// criterionName picks the first line of the criterion section that looks like
// a title rather than a level header or template boilerplate.
func criterionName(section string, skip []string) string {
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 10 || len(line) >= 200 {
			continue
		}
		low := strings.ToLower(line)
		if strings.Contains(low, "alto:") || strings.Contains(low, "medio:") || strings.Contains(low, "bajo:") || strings.Contains(low, "level:") {
			continue
		}
		skipped := false
		for _, prefix := range skip {
			if strings.HasPrefix(low, prefix) {
				skipped = true
				break
			}
		}
		if !skipped {
			return line
		}
	}
	return ""
}

// clipRunes bounds s to n runes. Rubric text is Spanish, so a byte slice
// could land inside a multi-byte accented character.
func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func extractLevels(section string, pats rubricPatterns) []Level {
	var levels []Level
	for _, label := range []string{LevelHigh, LevelMedium, LevelLow} {
		re := pats.levels[label]
		m := re.FindStringSubmatchIndex(section)
		if m == nil {
			continue
		}
		desc := clipRunes(strings.TrimSpace(section[m[2]:m[3]]), 300)
		lvl := Level{Label: label, Description: desc}
		tail := clipRunes(section[m[1]:], 100)
		if sm := pats.levelSpan.FindStringSubmatch(tail); sm != nil {
			lvl.MinScore, _ = strconv.Atoi(sm[1])
			lvl.MaxScore, _ = strconv.Atoi(sm[2])
		}
		levels = append(levels, lvl)
	}
	return levels
}

var totalScoreRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Activity\s+score[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)Puntaje\s+de\s+la\s+actividad[:\s]+(\d+)`),
}

const defaultTotalScore = 150

func extractTotalScore(text string) int {
	for _, re := range totalScoreRes {
		if m := re.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	return defaultTotalScore
}
