package tutor

// Exported for tests in tutor_test.
var (
	Normalize   = normalize
	Levenshtein = levenshtein
	KeywordHits = keywordHits
)
