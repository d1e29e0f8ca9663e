package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rubriq/rubriq/internal/llm"
)

type probe struct {
	Present    bool   `json:"presente"`
	Confidence string `json:"confianza"`
	Reason     string `json:"razon"`
}

func TestDecodeJSONCleanPayload(t *testing.T) {
	var p probe
	err := llm.DecodeJSON([]byte(`{"presente":true,"confianza":"alta","razon":"ok"}`), &p)
	require.NoError(t, err)
	assert.True(t, p.Present)
	assert.Equal(t, "alta", p.Confidence)
}

func TestDecodeJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"presente\": false, \"confianza\": \"baja\", \"razon\": \"sin evidencia\"}\n```"
	var p probe
	require.NoError(t, llm.DecodeJSON([]byte(raw), &p))
	assert.False(t, p.Present)
	assert.Equal(t, "baja", p.Confidence)
}

func TestDecodeJSONRepairsTrailingComma(t *testing.T) {
	raw := `{"presente": true, "confianza": "media", "razon": "parcial",}`
	var p probe
	require.NoError(t, llm.DecodeJSON([]byte(raw), &p))
	assert.True(t, p.Present)
	assert.Equal(t, "media", p.Confidence)
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	var p probe
	assert.Error(t, llm.DecodeJSON([]byte("the model refused to answer"), &p))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", llm.Truncate("abc", 10))
	assert.Equal(t, "abc", llm.Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", llm.Truncate("abcdef", 0))
	// Rune-safe on multibyte text.
	assert.Equal(t, "evaluació", llm.Truncate("evaluación", 9))
}
