package reflect

import "testing"

// TestSkipsReflection_ExactMembership tests that the skip-list is exhaustive
// and exact
func TestSkipsReflection_ExactMembership(t *testing.T) {
	skipped := []string{
		CategoryImagePrompt, CategoryActionList,
		CategoryReflection, CategorySynthesis, CategoryReport,
	}
	for _, category := range skipped {
		if !SkipsReflection(category) {
			t.Errorf("Category %q should be skip-listed", category)
		}
	}

	reflected := []string{
		CategoryChatText, CategoryWorldEdit, CategoryWorldEditApplied,
		CategoryManualEdit, CategoryAssistantResult,
		"freeform", "", "image_prompts",
	}
	for _, category := range reflected {
		if SkipsReflection(category) {
			t.Errorf("Category %q should not be skip-listed", category)
		}
	}
}

// TestKindForCategory tests the category-to-kind derivation
func TestKindForCategory(t *testing.T) {
	cases := []struct {
		category string
		want     TaskKind
	}{
		{CategoryChatText, TaskChatCritique},
		{CategoryWorldEdit, TaskWorldEditCritique},
		{CategoryWorldEditApplied, TaskWorldAppliedCritique},
		{CategoryManualEdit, TaskManualEditCritique},
		{CategoryAssistantResult, TaskAssistantEditCritique},
		{"freeform", TaskCallCritique},
		{"", TaskCallCritique},
	}
	for _, c := range cases {
		if got := kindForCategory(c.category); got != c.want {
			t.Errorf("kindForCategory(%q) = %s, want %s", c.category, got, c.want)
		}
	}
}

// TestTaskKind_Families tests flag-family membership
func TestTaskKind_Families(t *testing.T) {
	if !TaskWorldEditCritique.worldFamily() || !TaskWorldAppliedCritique.worldFamily() {
		t.Error("World kinds not in the world family")
	}
	if !TaskChatCritique.narrativeFamily() {
		t.Error("Chat kind not in the narrative family")
	}
	for _, kind := range []TaskKind{
		TaskCallCritique, TaskManualEditCritique, TaskAssistantEditCritique,
		TaskSynthesis, TaskTurnReport,
	} {
		if kind.worldFamily() || kind.narrativeFamily() {
			t.Errorf("Kind %s should not belong to a flag family", kind)
		}
	}
}

// TestTaskKind_String tests the kind names used in logs
func TestTaskKind_String(t *testing.T) {
	if TaskChatCritique.String() != "chat_critique" {
		t.Errorf("Unexpected name: %s", TaskChatCritique)
	}
	if got := TaskKind(99).String(); got != "unknown(99)" {
		t.Errorf("Unexpected unknown name: %s", got)
	}
}
