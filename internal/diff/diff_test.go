package diff

import (
	"strings"
	"testing"
)

// TestApply_BasicReplacement tests single-instruction replacement
func TestApply_BasicReplacement(t *testing.T) {
	result := Apply("the quick brown fox", []Instruction{
		{Previous: "quick", Next: "slow"},
	})

	if result.Text != "the slow brown fox" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
	if result.Applied != 1 || result.Skipped != 0 {
		t.Errorf("Expected 1 applied / 0 skipped, got %d/%d", result.Applied, result.Skipped)
	}
}

// TestApply_Occurrence tests targeting the n-th occurrence
func TestApply_Occurrence(t *testing.T) {
	text := "a b a b a"

	result := Apply(text, []Instruction{
		{Previous: "a", Next: "X", Occurrence: 2},
	})
	if result.Text != "a b X b a" {
		t.Errorf("Occurrence 2: got %q", result.Text)
	}

	// Zero occurrence is treated as 1.
	result = Apply(text, []Instruction{
		{Previous: "a", Next: "X", Occurrence: 0},
	})
	if result.Text != "X b a b a" {
		t.Errorf("Occurrence 0: got %q", result.Text)
	}
}

// TestApply_SkipsMissingSpans tests that missing spans skip, never fail
func TestApply_SkipsMissingSpans(t *testing.T) {
	result := Apply("hello world", []Instruction{
		{Previous: "absent", Next: "X"},
		{Previous: "world", Next: "there"},
		{Previous: "hello", Next: "Y", Occurrence: 2},
		{Previous: "", Next: "Z"},
	})

	if result.Text != "hello there" {
		t.Errorf("Unexpected text: %q", result.Text)
	}
	if result.Applied != 1 {
		t.Errorf("Expected 1 applied, got %d", result.Applied)
	}
	if result.Skipped != 3 {
		t.Errorf("Expected 3 skipped, got %d", result.Skipped)
	}
}

// TestApply_SequentialAgainstPriorResult tests that each instruction sees
// the output of the previous one
func TestApply_SequentialAgainstPriorResult(t *testing.T) {
	result := Apply("aaa", []Instruction{
		{Previous: "aaa", Next: "bbb"},
		{Previous: "bbb", Next: "ccc"},
	})

	if result.Text != "ccc" || result.Applied != 2 {
		t.Errorf("Got %q applied=%d", result.Text, result.Applied)
	}
}

// TestApply_StaleBatchLeavesDocumentUnchanged tests re-applying a batch whose
// spans are already gone
func TestApply_StaleBatchLeavesDocumentUnchanged(t *testing.T) {
	original := "the cat sat on the mat"
	batch := []Instruction{{Previous: "cat", Next: "dog"}}

	first := Apply(original, batch)
	second := Apply(first.Text, batch)

	if second.Text != first.Text {
		t.Errorf("Stale re-application changed text: %q -> %q", first.Text, second.Text)
	}
	if second.Applied != 0 || second.Skipped != 1 {
		t.Errorf("Expected 0 applied / 1 skipped, got %d/%d", second.Applied, second.Skipped)
	}
}

// TestParseInstructions_PlainArray tests parsing a bare JSON array
func TestParseInstructions_PlainArray(t *testing.T) {
	raw := `[{"previous": "old", "next": "new", "occurrence": 2}]`

	instructions, err := ParseInstructions(raw)
	if err != nil {
		t.Fatalf("ParseInstructions failed: %v", err)
	}
	if len(instructions) != 1 {
		t.Fatalf("Expected 1 instruction, got %d", len(instructions))
	}
	if instructions[0].Previous != "old" || instructions[0].Next != "new" || instructions[0].Occurrence != 2 {
		t.Errorf("Unexpected instruction: %+v", instructions[0])
	}
}

// TestParseInstructions_FencedAndProse tests tolerance of model chatter
func TestParseInstructions_FencedAndProse(t *testing.T) {
	raw := "Here are the edits:\n```json\n[{\"previous\": \"a\", \"next\": \"b\"}]\n```\nDone."

	instructions, err := ParseInstructions(raw)
	if err != nil {
		t.Fatalf("ParseInstructions failed: %v", err)
	}
	if len(instructions) != 1 || instructions[0].Previous != "a" {
		t.Errorf("Unexpected instructions: %+v", instructions)
	}
}

// TestParseInstructions_BracketsInsideStrings tests the array extractor
// against brackets embedded in string values
func TestParseInstructions_BracketsInsideStrings(t *testing.T) {
	raw := `[{"previous": "list [1]", "next": "list [2]"}]`

	instructions, err := ParseInstructions(raw)
	if err != nil {
		t.Fatalf("ParseInstructions failed: %v", err)
	}
	if instructions[0].Previous != "list [1]" {
		t.Errorf("Unexpected previous: %q", instructions[0].Previous)
	}
}

// TestParseInstructions_RejectsNonDiffOutput tests the fallback signal
func TestParseInstructions_RejectsNonDiffOutput(t *testing.T) {
	cases := []string{
		"This document looks fine, no changes needed.",
		"[]",
		"[1, 2, 3",
	}
	for _, raw := range cases {
		if _, err := ParseInstructions(raw); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
}

// TestSummarize tests the change summary format
func TestSummarize(t *testing.T) {
	if got := Summarize("same", "same"); got != "no change" {
		t.Errorf("Expected no change, got %q", got)
	}

	got := Summarize("line one\nline two\n", "line one\nline three\n")
	if !strings.Contains(got, "+1") || !strings.Contains(got, "-1") {
		t.Errorf("Expected +1 -1 summary, got %q", got)
	}
}
