package reflect

import (
	"fmt"
	"sort"
	"strings"

	"talenerd/internal/memory"
)

// =============================================================================
// SYSTEM PROMPTS
// =============================================================================

const critiqueSystemPrompt = `You are a meticulous editor reviewing the output of a generative storytelling engine.
Given one invocation (its prompt and response), write a short, concrete critique:
what worked, what fell flat, and one specific improvement for the next invocation
of the same kind. Stay under 150 words. Critique only; never rewrite the output.`

const synthesisSystemPrompt = `You maintain a living style guide distilled from accumulated critique.
Given the per-category critique documents and a sample of recent call critiques,
rewrite the general guidance document: merge recurring observations, drop stale
ones, keep it actionable. Return only the new document text.`

const reportSystemPrompt = `You write the end-of-turn reflection note shown to the storyteller.
Given the current critique documents, summarize in a few sentences how this turn's
generation went and what will be done differently next turn. Critique only; no
story content, no praise padding. Return only the note text.`

// documentSystemPrompt frames the regeneration of one category document.
func documentSystemPrompt(name memory.Name) string {
	return fmt.Sprintf(`You maintain the %q critique document of a generative storytelling engine.
Fold new evidence into the document: keep observations that still hold, revise
ones the evidence contradicts, and add at most two new ones. Keep the document
under 400 words.`, string(name))
}

// =============================================================================
// USER PROMPTS
// =============================================================================

// buildCallCritiquePrompt embeds the original prompt/response excerpts.
func buildCallCritiquePrompt(rec CallRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invocation category: %s\n", rec.Category)
	fmt.Fprintf(&b, "Model: %s\n", rec.Model)
	if rec.DurationMs > 0 {
		fmt.Fprintf(&b, "Duration: %dms\n", rec.DurationMs)
	}
	fmt.Fprintf(&b, "\n--- PROMPT ---\n%s\n", rec.PromptExcerpt)
	fmt.Fprintf(&b, "\n--- RESPONSE ---\n%s\n", rec.ResponseExcerpt)
	b.WriteString("\nWrite the critique.")
	return b.String()
}

// callEvidence renders a critiqued call as document-update evidence.
func callEvidence(rec CallRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New %s invocation:\n", rec.Category)
	fmt.Fprintf(&b, "--- PROMPT ---\n%s\n", rec.PromptExcerpt)
	fmt.Fprintf(&b, "--- RESPONSE ---\n%s\n", rec.ResponseExcerpt)
	if rec.Critique != "" {
		fmt.Fprintf(&b, "--- CRITIQUE ---\n%s\n", rec.Critique)
	}
	return b.String()
}

// snapshotEvidence renders a transcript/world snapshot as evidence.
func snapshotEvidence(snap *Snapshot) string {
	if snap == nil {
		return "No snapshot available."
	}

	var b strings.Builder
	if snap.EditedText != "" {
		fmt.Fprintf(&b, "Edited text:\n%s\n\n", snap.EditedText)
	}
	if len(snap.History) > 0 {
		b.WriteString("Recent transcript:\n")
		for _, turn := range snap.History {
			fmt.Fprintf(&b, "[%s] %s\n", turn.Role, turn.Text)
		}
		b.WriteString("\n")
	}
	if len(snap.Nodes) > 0 {
		b.WriteString("World state:\n")
		for _, node := range snap.Nodes {
			fmt.Fprintf(&b, "- %s: %s\n", node.Name, node.Description)
		}
	}
	if b.Len() == 0 {
		return "No snapshot available."
	}
	return b.String()
}

// buildDocumentPrompt asks for a full rewrite of one document.
func buildDocumentPrompt(name memory.Name, current, evidence string) string {
	return fmt.Sprintf(`Current %q document:

%s

New evidence:

%s

Return the complete updated document.`, string(name), current, evidence)
}

// buildDiffPrompt asks for span-replacement instructions against a document.
func buildDiffPrompt(name memory.Name, current, evidence string) string {
	return fmt.Sprintf(`Current %q document:

%s

New evidence:

%s

Return a JSON array of edits, each {"previous": "<exact span from the current
document>", "next": "<replacement>", "occurrence": <1-based index>}. Only touch
spans the evidence justifies changing. If the whole document needs rewriting,
return the full new text instead of JSON.`, string(name), current, evidence)
}

// buildSynthesisPrompt assembles the general-document rebuild input.
func buildSynthesisPrompt(docs map[memory.Name]string, critiques []string, reason string) string {
	var b strings.Builder
	if reason != "" {
		fmt.Fprintf(&b, "Synthesis trigger: %s\n\n", reason)
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "=== %s document ===\n%s\n\n", name, docs[memory.Name(name)])
	}

	if len(critiques) > 0 {
		b.WriteString("=== recent call critiques ===\n")
		for i, c := range critiques {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
		b.WriteString("\n")
	}

	b.WriteString("Rewrite the general guidance document.")
	return b.String()
}

// buildReportPrompt assembles the end-of-turn report input.
func buildReportPrompt(docs map[memory.Name]string, snap *Snapshot) string {
	var b strings.Builder

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "=== %s document ===\n%s\n\n", name, docs[memory.Name(name)])
	}

	if snap != nil {
		fmt.Fprintf(&b, "Turn context: %d transcript turns, %d world entities.\n\n",
			len(snap.History), len(snap.Nodes))
	}

	b.WriteString("Write the end-of-turn reflection note.")
	return b.String()
}
