// Package diff implements the span-replacement instruction format reflection
// jobs use to evolve memory documents, plus change summaries built on the
// sergi/go-diff engine.
package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Instruction replaces the Occurrence-th literal occurrence of Previous
// with Next. Occurrence is 1-based; zero is treated as 1.
type Instruction struct {
	Previous   string `json:"previous"`
	Next       string `json:"next"`
	Occurrence int    `json:"occurrence,omitempty"`
}

// ApplyResult reports what happened while applying an instruction batch.
type ApplyResult struct {
	Text    string // resulting document text
	Applied int    // instructions applied
	Skipped int    // instructions whose target occurrence was not found
}

// Apply runs instructions in order, each against the result of the previous.
// An instruction whose target occurrence is missing is skipped; the batch
// never fails. Applying a batch to a document that no longer contains any
// of the previous-spans leaves the document unchanged.
func Apply(text string, instructions []Instruction) ApplyResult {
	result := ApplyResult{Text: text}

	for _, inst := range instructions {
		if inst.Previous == "" {
			result.Skipped++
			continue
		}
		occurrence := inst.Occurrence
		if occurrence < 1 {
			occurrence = 1
		}

		idx := nthIndex(result.Text, inst.Previous, occurrence)
		if idx < 0 {
			result.Skipped++
			continue
		}

		result.Text = result.Text[:idx] + inst.Next + result.Text[idx+len(inst.Previous):]
		result.Applied++
	}

	return result
}

// nthIndex returns the byte offset of the n-th (1-based) occurrence of sub
// in s, or -1 if there are fewer than n occurrences.
func nthIndex(s, sub string, n int) int {
	offset := 0
	for i := 0; i < n; i++ {
		idx := strings.Index(s[offset:], sub)
		if idx < 0 {
			return -1
		}
		if i == n-1 {
			return offset + idx
		}
		offset += idx + len(sub)
	}
	return -1
}

// ParseInstructions extracts a JSON instruction array from raw model output.
// Fenced code blocks and surrounding prose are tolerated. Returns an error
// when no parseable array is found so callers can fall back to treating the
// whole output as a full replacement.
func ParseInstructions(raw string) ([]Instruction, error) {
	candidate := extractJSONArray(raw)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON instruction array found")
	}

	var instructions []Instruction
	if err := json.Unmarshal([]byte(candidate), &instructions); err != nil {
		return nil, fmt.Errorf("failed to parse instructions: %w", err)
	}
	if len(instructions) == 0 {
		return nil, fmt.Errorf("empty instruction array")
	}
	return instructions, nil
}

// extractJSONArray finds the first top-level JSON array in s.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[':
			if !inString {
				depth++
			}
		case ']':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// =============================================================================
// CHANGE SUMMARIES
// =============================================================================

// Engine computes line-level change summaries for document mutations.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a diff engine tuned for prose documents.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton engine for general use.
var DefaultEngine = NewEngine()

// Summarize returns a compact "+added -removed lines" description of the
// change from oldText to newText, for audit logging.
func (e *Engine) Summarize(oldText, newText string) string {
	if oldText == newText {
		return "no change"
	}

	a, b, lineArray := e.dmp.DiffLinesToChars(oldText, newText)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	added, removed := 0, 0
	for _, d := range diffs {
		lines := strings.Count(d.Text, "\n")
		if lines == 0 && d.Text != "" {
			lines = 1
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += lines
		case diffmatchpatch.DiffDelete:
			removed += lines
		}
	}

	return fmt.Sprintf("+%d -%d lines (%d -> %d bytes)", added, removed, len(oldText), len(newText))
}

// Summarize is a convenience function using the default engine.
func Summarize(oldText, newText string) string {
	return DefaultEngine.Summarize(oldText, newText)
}
