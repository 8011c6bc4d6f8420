// Package reflect implements the background reflection core: a call ledger,
// a reflection task queue with per-category admission rules, a completion-flag
// aggregator, and the single-threaded dispatcher that drives critique
// generation and memory-document evolution.
package reflect

import (
	"fmt"
	"time"
)

// =============================================================================
// TASK KINDS
// =============================================================================

// TaskKind is the closed set of reflection task variants.
type TaskKind int

const (
	// TaskCallCritique critiques a single call with no dedicated document.
	TaskCallCritique TaskKind = iota
	// TaskChatCritique critiques narrative chat generation and maintains the
	// chat-text document.
	TaskChatCritique
	// TaskWorldEditCritique critiques generated world-state edits and
	// maintains the world-edit document.
	TaskWorldEditCritique
	// TaskWorldAppliedCritique critiques world edits that were actually
	// applied. It is allowed to jump the queue because it rate-limits the
	// completion aggregator.
	TaskWorldAppliedCritique
	// TaskManualEditCritique folds manual user edits into the manual-edit
	// document. No per-call critique path.
	TaskManualEditCritique
	// TaskAssistantEditCritique folds assistant-directed edit outcomes into
	// the assistant-result document. No per-call critique path.
	TaskAssistantEditCritique
	// TaskSynthesis rebuilds the general document from all others.
	TaskSynthesis
	// TaskTurnReport emits the end-of-turn summary to the message sink.
	TaskTurnReport
)

// String returns the task kind name.
func (k TaskKind) String() string {
	switch k {
	case TaskCallCritique:
		return "call_critique"
	case TaskChatCritique:
		return "chat_critique"
	case TaskWorldEditCritique:
		return "world_edit_critique"
	case TaskWorldAppliedCritique:
		return "world_applied_critique"
	case TaskManualEditCritique:
		return "manual_edit_critique"
	case TaskAssistantEditCritique:
		return "assistant_edit_critique"
	case TaskSynthesis:
		return "synthesis"
	case TaskTurnReport:
		return "turn_report"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// worldFamily reports whether a completed task of this kind marks the
// world-edit reflection stream as done.
func (k TaskKind) worldFamily() bool {
	return k == TaskWorldEditCritique || k == TaskWorldAppliedCritique
}

// narrativeFamily reports whether a completed task of this kind marks the
// narrative reflection stream as done.
func (k TaskKind) narrativeFamily() bool {
	return k == TaskChatCritique
}

// =============================================================================
// CALL CATEGORIES
// =============================================================================

// Call categories supplied by the surrounding application. Any other string
// is accepted and treated as a generic generative call.
const (
	CategoryChatText         = "chat_text"
	CategoryWorldEdit        = "world_edit"
	CategoryWorldEditApplied = "world_edit_applied"
	CategoryManualEdit       = "manual_edit"
	CategoryAssistantResult  = "assistant_result"
	CategoryImagePrompt      = "image_prompt"
	CategoryActionList       = "action_list"

	// Internal categories used for the engine's own generator calls. These
	// are on the skip-list so reflection never reflects on itself.
	CategoryReflection = "reflection"
	CategorySynthesis  = "synthesis"
	CategoryReport     = "report"
)

// reflectionSkipList names the categories whose completion never enqueues a
// reflection task.
var reflectionSkipList = map[string]bool{
	CategoryImagePrompt: true,
	CategoryActionList:  true,
	CategoryReflection:  true,
	CategorySynthesis:   true,
	CategoryReport:      true,
}

// SkipsReflection reports whether a category is on the reflection skip-list.
func SkipsReflection(category string) bool {
	return reflectionSkipList[category]
}

// kindForCategory maps a finished call's category to the reflection task kind
// it spawns.
func kindForCategory(category string) TaskKind {
	switch category {
	case CategoryChatText:
		return TaskChatCritique
	case CategoryWorldEdit:
		return TaskWorldEditCritique
	case CategoryWorldEditApplied:
		return TaskWorldAppliedCritique
	case CategoryManualEdit:
		return TaskManualEditCritique
	case CategoryAssistantResult:
		return TaskAssistantEditCritique
	default:
		return TaskCallCritique
	}
}

// =============================================================================
// TASKS AND PAYLOADS
// =============================================================================

// Turn is one entry of the surrounding application's chat transcript.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Node is one entity of the surrounding application's world state.
type Node struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Snapshot captures transcript/world-state evidence for tasks that are not
// tied to a single call.
type Snapshot struct {
	History    []Turn `json:"history,omitempty"`
	Nodes      []Node `json:"nodes,omitempty"`
	EditedText string `json:"edited_text,omitempty"`
}

// Payload carries the kind-specific task data. Exactly one field group is
// meaningful per kind: CallID for critique kinds, Snapshot for manual and
// assistant edits, Reason for synthesis and reports.
type Payload struct {
	CallID   string    `json:"call_id,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Task is one unit of scheduled reflection work. A task is created on
// enqueue, removed from the queue exactly once on dispatch, and never
// mutated afterwards; the in-flight job owns its copy.
type Task struct {
	ID         int64
	Kind       TaskKind
	Payload    Payload
	EnqueuedAt time.Time
}

// =============================================================================
// CALL RECORDS
// =============================================================================

// CallStatus is the lifecycle state of a generative invocation.
type CallStatus string

const (
	StatusQueued    CallStatus = "queued"
	StatusRunning   CallStatus = "running"
	StatusCompleted CallStatus = "completed"
	StatusFailed    CallStatus = "failed"
)

// CallRecord tracks one generative invocation. Status only ever moves
// queued -> running -> {completed, failed}; Critique is set at most once and
// only on completed records.
type CallRecord struct {
	ID              string     `json:"id"`
	Category        string     `json:"category"`
	Model           string     `json:"model"`
	PromptExcerpt   string     `json:"prompt_excerpt"`
	ResponseExcerpt string     `json:"response_excerpt,omitempty"`
	Status          CallStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationMs      int64      `json:"duration_ms,omitempty"`
	Critique        string     `json:"critique,omitempty"`
}

// Message is the end-of-turn report published to the surrounding application.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// External accessors injected at engine construction.
type (
	// NodesFunc returns the current world-state entities.
	NodesFunc func() []Node
	// HistoryFunc returns the current chat transcript.
	HistoryFunc func() []Turn
	// MessageSink receives end-of-turn reports.
	MessageSink func(Message)
)
