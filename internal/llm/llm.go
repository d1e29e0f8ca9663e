// Package llm wraps the text-completion backend behind a small interface.
// Every caller requests structured JSON and decodes it with DecodeJSON, which
// treats the model output as untrusted and repairs malformed payloads before
// giving up.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Options bound a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client is the Text Completion Service. Implementations must honor ctx
// cancellation; callers apply a per-call timeout and treat expiry as failure.
type Client interface {
	// CompleteJSON sends a system role plus user prompt and returns the raw
	// JSON object the model produced.
	CompleteJSON(ctx context.Context, system, user string, opts Options) ([]byte, error)
}

// DecodeJSON unmarshals a model response into v. Models occasionally wrap the
// object in markdown fences or emit slightly broken JSON; both are repaired
// before the payload is rejected.
func DecodeJSON(raw []byte, v any) error {
	s := stripFences(string(raw))
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	fixed, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return fmt.Errorf("repair model json: %w", err)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Truncate bounds document text to a fixed character budget before it is
// interpolated into a prompt.
func Truncate(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	return string(r[:budget])
}
