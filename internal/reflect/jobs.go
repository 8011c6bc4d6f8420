package reflect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"talenerd/internal/diff"
	"talenerd/internal/logging"
	"talenerd/internal/memory"
)

// jobHandlers dispatches a launched task to its kind-specific work. Keeping
// this a lookup table keeps the admission logic in scheduler.go separable
// from the per-kind work below. Populated in init: a map literal here would
// form an initialization cycle through runJob.
var jobHandlers map[TaskKind]func(*Engine, *Task) error

func init() {
	jobHandlers = map[TaskKind]func(*Engine, *Task) error{
		TaskCallCritique:          (*Engine).runCallCritique,
		TaskChatCritique:          (*Engine).runChatCritique,
		TaskWorldEditCritique:     (*Engine).runWorldEditCritique,
		TaskWorldAppliedCritique:  (*Engine).runWorldAppliedCritique,
		TaskManualEditCritique:    (*Engine).runManualEditCritique,
		TaskAssistantEditCritique: (*Engine).runAssistantEditCritique,
		TaskSynthesis:             (*Engine).runSynthesis,
		TaskTurnReport:            (*Engine).runTurnReport,
	}
}

var errNoGenerator = errors.New("no critique generator configured")

// generate performs one generator call on behalf of a reflection job,
// registering it in the ledger under an internal (skip-listed) category so
// reflection never reflects on itself.
func (e *Engine) generate(category, systemPrompt, userPrompt string) (string, error) {
	if e.gen == nil {
		return "", errNoGenerator
	}

	id := "reflect-" + uuid.NewString()
	_ = e.ledger.Begin(id, category, e.model, userPrompt)

	text, err := e.gen.CompleteWithSystem(context.Background(), systemPrompt, userPrompt)
	if err != nil {
		e.ledger.Fail(id, err.Error())
		return "", err
	}

	e.ledger.Finish(id, text)
	return text, nil
}

// =============================================================================
// PER-CALL CRITIQUE
// =============================================================================

// critiqueCall produces and stores the critique for the task's target call.
// The boolean reports whether the record is usable as evidence for a
// document update. A missing or unfinished record is skipped silently: the
// record may have been evicted between enqueue and dispatch.
func (e *Engine) critiqueCall(task *Task) (CallRecord, bool, error) {
	rec, ok := e.ledger.Get(task.Payload.CallID)
	if !ok {
		logging.SchedulerDebug("Task #%d: call %q no longer in ledger", task.ID, task.Payload.CallID)
		return CallRecord{}, false, nil
	}
	if rec.Status != StatusCompleted {
		return rec, false, nil
	}
	if rec.Critique != "" {
		// Critique is written at most once; the record still serves as
		// evidence.
		return rec, true, nil
	}

	critique, err := e.generate(CategoryReflection,
		critiqueSystemPrompt, buildCallCritiquePrompt(rec))
	if err != nil {
		return rec, false, fmt.Errorf("critique generation for %q: %w", rec.ID, err)
	}

	e.ledger.SetCritique(rec.ID, critique)
	rec.Critique = critique

	// Every Nth critiqued call triggers a memory synthesis.
	n := e.mem.IncrementCritiqueCount()
	if e.cfg.SynthesisEvery > 0 && n%e.cfg.SynthesisEvery == 0 {
		e.Enqueue(TaskSynthesis, Payload{Reason: fmt.Sprintf("every_%d_critiques", e.cfg.SynthesisEvery)})
	}

	return rec, true, nil
}

func (e *Engine) runCallCritique(task *Task) error {
	_, _, err := e.critiqueCall(task)
	return err
}

// =============================================================================
// DOCUMENT-UPDATING CRITIQUES
// =============================================================================

// regenerateDocument rewrites a memory document from its current text plus
// fresh evidence, applying the model output as a full replacement.
func (e *Engine) regenerateDocument(name memory.Name, evidence string) error {
	current := e.mem.Read(name)
	out, err := e.generate(CategoryReflection,
		documentSystemPrompt(name), buildDocumentPrompt(name, current, evidence))
	if err != nil {
		return fmt.Errorf("document %q regeneration: %w", name, err)
	}
	e.mem.ApplyReplacement(name, out)
	return nil
}

// patchDocument asks the model for span-replacement instructions against the
// current document. Unparseable output falls back to a full replacement
// rather than failing the update.
func (e *Engine) patchDocument(name memory.Name, evidence string) error {
	current := e.mem.Read(name)
	out, err := e.generate(CategoryReflection,
		documentSystemPrompt(name), buildDiffPrompt(name, current, evidence))
	if err != nil {
		return fmt.Errorf("document %q patch: %w", name, err)
	}

	instructions, perr := diff.ParseInstructions(out)
	if perr != nil {
		logging.MemoryDebug("Document %q: no diff instructions (%v), applying as replacement", name, perr)
		e.mem.ApplyReplacement(name, out)
		return nil
	}

	e.mem.ApplyDiff(name, instructions)
	return nil
}

func (e *Engine) runChatCritique(task *Task) error {
	rec, usable, err := e.critiqueCall(task)
	if err != nil || !usable {
		return err
	}
	return e.regenerateDocument(memory.DocChatText, callEvidence(rec))
}

func (e *Engine) runWorldEditCritique(task *Task) error {
	rec, usable, err := e.critiqueCall(task)
	if err != nil || !usable {
		return err
	}
	return e.regenerateDocument(memory.DocWorldEdit, callEvidence(rec))
}

// runWorldAppliedCritique critiques the applied world edit but leaves the
// world-edit document to the generic slot. The sub-kind exists to feed the
// completion aggregator promptly; writing the shared document from a second
// slot would break the one-writer-per-document rule.
func (e *Engine) runWorldAppliedCritique(task *Task) error {
	_, _, err := e.critiqueCall(task)
	return err
}

func (e *Engine) runManualEditCritique(task *Task) error {
	return e.patchDocument(memory.DocManualEdit, snapshotEvidence(task.Payload.Snapshot))
}

func (e *Engine) runAssistantEditCritique(task *Task) error {
	return e.patchDocument(memory.DocAssistantResult, snapshotEvidence(task.Payload.Snapshot))
}

// =============================================================================
// SYNTHESIS AND REPORT
// =============================================================================

// runSynthesis rebuilds the general document from every category document
// plus a capped sample of recent per-call critiques.
func (e *Engine) runSynthesis(task *Task) error {
	critiques := e.ledger.RecentCritiques(e.cfg.CritiqueSampleLimit)
	prompt := buildSynthesisPrompt(e.categoryDocuments(), critiques, task.Payload.Reason)

	out, err := e.generate(CategorySynthesis, synthesisSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("synthesis: %w", err)
	}

	e.mem.ApplyReplacement(memory.DocGeneral, out)
	return nil
}

// runTurnReport produces the critique-only end-of-turn summary, publishes it
// to the message sink, and schedules a follow-up synthesis after a short
// delay.
func (e *Engine) runTurnReport(task *Task) error {
	prompt := buildReportPrompt(e.allDocuments(), e.captureSnapshot())

	out, err := e.generate(CategoryReport, reportSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("turn report: %w", err)
	}

	if e.sink != nil {
		e.sink(Message{
			ID:        "report-" + uuid.NewString(),
			Role:      "reflection",
			Text:      out,
			CreatedAt: time.Now(),
		})
	} else {
		logging.SchedulerWarn("Turn report generated but no message sink configured")
	}

	e.scheduleDelayed(e.cfg.ReportSynthesisDelay(), TaskSynthesis, Payload{Reason: "post_report"})
	return nil
}

// categoryDocuments returns the per-category documents (everything except
// the general one).
func (e *Engine) categoryDocuments() map[memory.Name]string {
	docs := make(map[memory.Name]string)
	for _, name := range memory.AllNames() {
		if name == memory.DocGeneral {
			continue
		}
		docs[name] = e.mem.Read(name)
	}
	return docs
}

// allDocuments returns every memory document.
func (e *Engine) allDocuments() map[memory.Name]string {
	docs := make(map[memory.Name]string)
	for _, name := range memory.AllNames() {
		docs[name] = e.mem.Read(name)
	}
	return docs
}
