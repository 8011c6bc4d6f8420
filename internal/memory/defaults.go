package memory

// Name identifies a memory document.
type Name string

const (
	// DocGeneral is the cross-cutting synthesis document rebuilt from all others.
	DocGeneral Name = "general"
	// DocChatText accumulates critique of narrative chat generation.
	DocChatText Name = "chat_text"
	// DocWorldEdit accumulates critique of world-state edit generation.
	DocWorldEdit Name = "world_edit"
	// DocManualEdit accumulates critique derived from manual user edits.
	DocManualEdit Name = "manual_edit"
	// DocAssistantResult accumulates critique of assistant-directed edits.
	DocAssistantResult Name = "assistant_result"
)

// AllNames lists every document in a fixed order.
func AllNames() []Name {
	return []Name{DocGeneral, DocChatText, DocWorldEdit, DocManualEdit, DocAssistantResult}
}

// defaultTemplates seed each document; a document is never empty, it falls
// back to its template instead.
var defaultTemplates = map[Name]string{
	DocGeneral: `# General Writing Guidance

No synthesized guidance yet. This document is rebuilt from the per-category
critique documents as reflection accumulates.
`,
	DocChatText: `# Narrative Critique

No narrative critique recorded yet. Observations about pacing, voice, and
continuity of generated story text will accumulate here.
`,
	DocWorldEdit: `# World Edit Critique

No world-edit critique recorded yet. Observations about generated world-state
changes (consistency, granularity, side effects) will accumulate here.
`,
	DocManualEdit: `# Manual Edit Critique

No manual-edit critique recorded yet. Lessons drawn from edits the user made
by hand will accumulate here.
`,
	DocAssistantResult: `# Assistant Result Critique

No assistant-result critique recorded yet. Observations about assistant-directed
edits and their outcomes will accumulate here.
`,
}

// DefaultTemplate returns the seed text for a document name. Unknown names
// get an empty-header template so reads never return an empty string.
func DefaultTemplate(name Name) string {
	if tpl, ok := defaultTemplates[name]; ok {
		return tpl
	}
	return "# " + string(name) + "\n\nNo critique recorded yet.\n"
}
