// Package extract turns uploaded files into plain text for the evaluation
// pipeline. Extraction has no decision logic of its own; the evaluator only
// consumes the resulting text.
package extract

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Result is the extraction outcome. Evaluation never starts on Success=false
// or empty text.
type Result struct {
	FullText string `json:"full_text"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Extractor converts one file type into plain text.
type Extractor interface {
	Extract(name string, data []byte) Result
}

// ForFile picks an extractor by file extension. Unknown extensions fall back
// to plain text.
func ForFile(name string) Extractor {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ipynb":
		return NotebookExtractor{}
	default:
		return TextExtractor{}
	}
}

// Extract runs the extension-matched extractor and validates the outcome.
func Extract(name string, data []byte) Result {
	res := ForFile(name).Extract(name, data)
	if res.Success && strings.TrimSpace(res.FullText) == "" {
		return Result{Success: false, Error: fmt.Sprintf("%s: no text extracted", name)}
	}
	return res
}

// TextExtractor accepts any UTF-8 text payload as-is. PDF and image uploads
// arrive here already converted by the external extraction service.
type TextExtractor struct{}

func (TextExtractor) Extract(name string, data []byte) Result {
	if !utf8.Valid(data) {
		return Result{Success: false, Error: fmt.Sprintf("%s: not valid UTF-8 text", name)}
	}
	return Result{FullText: string(data), Success: true}
}

// NotebookExtractor flattens a Jupyter notebook into readable text: markdown
// cells verbatim, code cells fenced, textual outputs appended so printed
// results and metrics count as evidence.
type NotebookExtractor struct{}

type notebook struct {
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string           `json:"cell_type"`
	Source   multiline        `json:"source"`
	Outputs  []notebookOutput `json:"outputs"`
}

type notebookOutput struct {
	OutputType string               `json:"output_type"`
	Text       multiline            `json:"text"`
	Data       map[string]multiline `json:"data"`
}

// multiline tolerates both notebook source encodings: a list of lines or a
// single string.
type multiline string

func (m *multiline) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*m = multiline(s)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	*m = multiline(strings.Join(lines, ""))
	return nil
}

func (NotebookExtractor) Extract(name string, data []byte) Result {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("%s: parse notebook: %v", name, err)}
	}

	var b strings.Builder
	for _, cell := range nb.Cells {
		src := strings.TrimRight(string(cell.Source), "\n")
		if src == "" && len(cell.Outputs) == 0 {
			continue
		}
		switch cell.CellType {
		case "markdown":
			b.WriteString(src)
			b.WriteString("\n\n")
		case "code":
			if src != "" {
				fmt.Fprintf(&b, "```\n%s\n```\n", src)
			}
			for _, out := range cell.Outputs {
				if txt := outputText(out); txt != "" {
					b.WriteString(txt)
					b.WriteString("\n")
				}
			}
			b.WriteString("\n")
		}
	}
	return Result{FullText: b.String(), Success: true}
}

func outputText(out notebookOutput) string {
	if out.Text != "" {
		return strings.TrimRight(string(out.Text), "\n")
	}
	if txt, ok := out.Data["text/plain"]; ok {
		return strings.TrimRight(string(txt), "\n")
	}
	return ""
}
