package reflect

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"talenerd/internal/config"
	"talenerd/internal/debounce"
	"talenerd/internal/llm"
	"talenerd/internal/logging"
	"talenerd/internal/memory"
	"talenerd/internal/store"
)

// Deps are the external collaborators injected at engine construction.
// Nodes, History, and Sink may be nil; the engine then builds prompts from
// ledger and memory state alone and drops reports.
type Deps struct {
	Generator llm.Generator
	Blobs     store.BlobStore
	Model     string // model label recorded for the engine's own calls
	Nodes     NodesFunc
	History   HistoryFunc
	Sink      MessageSink
}

// Engine is the background reflection core. All queue, flag, and slot state
// is guarded by a single mutex; jobs hold it only between suspension points,
// so their mutations interleave like a single logical thread while their
// awaited generator I/O overlaps.
type Engine struct {
	cfg    config.ReflectionConfig
	gen    llm.Generator
	model  string
	blobs  store.BlobStore
	ledger *Ledger
	mem    *memory.Store

	nodes   NodesFunc
	history HistoryFunc
	sink    MessageSink

	mu     sync.Mutex
	queue  taskQueue
	flags  completionFlags
	active [numSlots]bool
	timers []*time.Timer
	closed bool

	deb  *debounce.Debouncer
	jobs sync.WaitGroup
}

// New constructs an engine, loading persisted ledger and memory state from
// deps.Blobs. Multiple engines can coexist; there is no ambient state.
func New(cfg config.ReflectionConfig, deps Deps) *Engine {
	model := deps.Model
	if model == "" {
		model = "critic"
	}

	e := &Engine{
		cfg:     cfg,
		gen:     deps.Generator,
		model:   model,
		blobs:   deps.Blobs,
		ledger:  NewLedger(deps.Blobs, cfg.LedgerCapacity, cfg.ExcerptLimit, cfg.ErrorLimit),
		mem:     memory.NewStore(deps.Blobs),
		nodes:   deps.Nodes,
		history: deps.History,
		sink:    deps.Sink,
		deb:     debounce.New(cfg.DebounceWindow()),
	}

	e.ledger.setFinalizedHook(e.onCallFinalized)

	logging.Boot("Reflection engine ready (capacity=%d, debounce=%v)",
		cfg.LedgerCapacity, cfg.DebounceWindow())
	return e
}

// onCallFinalized derives a reflection task from a finished call unless its
// category is on the skip-list.
func (e *Engine) onCallFinalized(rec CallRecord) {
	if SkipsReflection(rec.Category) {
		logging.QueueDebug("Call %q category %q is skip-listed, no reflection", rec.ID, rec.Category)
		e.requestDispatch()
		return
	}
	e.Enqueue(kindForCategory(rec.Category), Payload{CallID: rec.ID})
}

// =============================================================================
// EXPOSED SURFACE
// =============================================================================

// BeginCall registers the start of a generative invocation.
func (e *Engine) BeginCall(id, category, model, prompt string) error {
	err := e.ledger.Begin(id, category, model, prompt)
	e.requestDispatch()
	return err
}

// FinishCall registers a successful completion. Fire-and-forget: lifecycle
// errors are logged inside the ledger, never raised.
func (e *Engine) FinishCall(id, response string) {
	e.ledger.Finish(id, response)
	e.requestDispatch()
}

// FailCall registers a failed invocation.
func (e *Engine) FailCall(id, errorMessage string) {
	e.ledger.Fail(id, errorMessage)
	e.requestDispatch()
}

// RecordSystemEvent records a pre-completed ledger entry for an application
// event that is not a true generative call. An empty id is minted.
func (e *Engine) RecordSystemEvent(id, category, prompt, response string) {
	if id == "" {
		id = "event-" + uuid.NewString()
	}
	e.ledger.RecordExternalEvent(id, category, prompt, response)
	e.requestDispatch()
}

// Enqueue appends a reflection task and schedules a dispatch pass. Tasks
// that work from a transcript snapshot get one captured from the injected
// accessors when the payload carries none.
func (e *Engine) Enqueue(kind TaskKind, payload Payload) {
	if payload.Snapshot == nil && needsSnapshot(kind) {
		payload.Snapshot = e.captureSnapshot()
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue.enqueue(kind, payload)
	e.mu.Unlock()

	e.requestDispatch()
}

func needsSnapshot(kind TaskKind) bool {
	return kind == TaskManualEditCritique || kind == TaskAssistantEditCritique
}

func (e *Engine) captureSnapshot() *Snapshot {
	snap := &Snapshot{}
	if e.history != nil {
		snap.History = e.history()
	}
	if e.nodes != nil {
		snap.Nodes = e.nodes()
	}
	if len(snap.History) == 0 && len(snap.Nodes) == 0 {
		return nil
	}
	return snap
}

// ListCalls returns all ledger records ordered by start time, descending.
func (e *Engine) ListCalls() []CallRecord {
	return e.ledger.List()
}

// Critique returns the critique attached to a call, if any.
func (e *Engine) Critique(id string) (string, bool) {
	rec, ok := e.ledger.Get(id)
	if !ok || rec.Critique == "" {
		return "", false
	}
	return rec.Critique, true
}

// PendingTaskCount returns the number of queued (not in-flight) tasks.
func (e *Engine) PendingTaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.size()
}

// ExportMemory returns a deep copy of the memory document set.
func (e *Engine) ExportMemory() memory.DocumentSet {
	return e.mem.Export()
}

// ImportMemory replaces the memory document set.
func (e *Engine) ImportMemory(set memory.DocumentSet) {
	e.mem.Import(set)
}

// Reset restores all memory documents to their defaults, empties the ledger,
// and drops pending tasks and completion flags.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.queue.clear()
	e.flags.reset()
	e.mu.Unlock()

	e.mem.Reset()
	e.ledger.Clear()
	logging.Boot("Engine reset")
}

// Close stops the dispatch trigger and waits briefly for in-flight jobs.
// Queued tasks that never launched are dropped.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	timers := e.timers
	e.timers = nil
	e.mu.Unlock()

	e.deb.Cancel()
	for _, t := range timers {
		t.Stop()
	}

	done := make(chan struct{})
	go func() {
		e.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logging.SchedulerWarn("Close: timed out waiting for in-flight jobs")
	}
}

// =============================================================================
// INTERNAL PLUMBING
// =============================================================================

// requestDispatch coalesces bursts of enqueue/ledger events into a single
// dispatch pass.
func (e *Engine) requestDispatch() {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}
	e.deb.Trigger(e.dispatchPass)
}

// scheduleDelayed enqueues a task after a delay. The timer is tracked so
// Close can stop it.
func (e *Engine) scheduleDelayed(d time.Duration, kind TaskKind, payload Payload) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		e.Enqueue(kind, payload)
		e.mu.Lock()
		for i, t := range e.timers {
			if t == timer {
				e.timers = append(e.timers[:i], e.timers[i+1:]...)
				break
			}
		}
		e.mu.Unlock()
	})
	e.timers = append(e.timers, timer)
	e.mu.Unlock()
}
