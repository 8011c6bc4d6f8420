package reflect

import (
	"fmt"

	"talenerd/internal/logging"
)

// =============================================================================
// SLOT ADMISSION
// =============================================================================
//
// Each dedicated task category owns one activeJob slot: at most one in-flight
// job per category. Everything else shares the single "other" gate, which
// additionally requires all four dedicated slots to be idle.

type slot int

const (
	slotReport slot = iota
	slotChat
	slotWorldApplied
	slotWorldEdit
	slotOther
	numSlots
)

func (s slot) String() string {
	switch s {
	case slotReport:
		return "report"
	case slotChat:
		return "chat"
	case slotWorldApplied:
		return "world_applied"
	case slotWorldEdit:
		return "world_edit"
	case slotOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// slotForKind maps a task kind to the slot that admits it.
func slotForKind(kind TaskKind) slot {
	switch kind {
	case TaskTurnReport:
		return slotReport
	case TaskChatCritique:
		return slotChat
	case TaskWorldAppliedCritique:
		return slotWorldApplied
	case TaskWorldEditCritique:
		return slotWorldEdit
	default:
		return slotOther
	}
}

// dispatchPass decides which queued tasks may start given the admission
// rules and currently running jobs. At most one launch attempt per category
// per pass, in fixed priority order. All queue/flag/slot mutation happens
// here, under the engine mutex; jobs only overlap in their awaited I/O.
func (e *Engine) dispatchPass() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	// 1. End-of-turn report: highest priority, it summarizes everything else.
	if !e.active[slotReport] {
		if head := e.queue.head(); head != nil && head.Kind == TaskTurnReport {
			e.launchLocked(e.queue.dequeueHead(), slotReport)
		}
	}

	// 2. Chat-text critique at the queue head.
	if !e.active[slotChat] {
		if head := e.queue.head(); head != nil && head.Kind == TaskChatCritique {
			e.launchLocked(e.queue.dequeueHead(), slotChat)
		}
	}

	// 3. Applied world-edit critique: scan the entire queue, not just the
	// head. This sub-kind may overtake earlier-queued work because it is
	// rate-limiting for the completion aggregator.
	if !e.active[slotWorldApplied] {
		if task := e.queue.dequeueFirstMatching(func(t *Task) bool {
			return t.Kind == TaskWorldAppliedCritique
		}); task != nil {
			e.launchLocked(task, slotWorldApplied)
		}
	}

	// 4. Generic world-edit critique at the queue head.
	if !e.active[slotWorldEdit] {
		if head := e.queue.head(); head != nil && head.Kind == TaskWorldEditCritique {
			e.launchLocked(e.queue.dequeueHead(), slotWorldEdit)
		}
	}

	// 5. Everything else runs under the shared gate, and only while all four
	// dedicated slots are idle.
	if !e.active[slotOther] && e.dedicatedIdleLocked() {
		if head := e.queue.head(); head != nil && slotForKind(head.Kind) == slotOther {
			e.launchLocked(e.queue.dequeueHead(), slotOther)
		}
	}
}

// dedicatedIdleLocked reports whether all four dedicated slots are idle.
func (e *Engine) dedicatedIdleLocked() bool {
	return !e.active[slotReport] && !e.active[slotChat] &&
		!e.active[slotWorldApplied] && !e.active[slotWorldEdit]
}

// launchLocked marks the slot busy and starts the job goroutine. Caller
// holds e.mu.
func (e *Engine) launchLocked(task *Task, s slot) {
	e.active[s] = true
	e.jobs.Add(1)

	logging.Scheduler("Launching task #%d %s in slot %s (pending=%d)",
		task.ID, task.Kind, s, e.queue.size())

	go e.runJob(task, s)
}

// runJob executes one reflection task to completion. Errors are caught,
// logged, and treated as completion: the slot is freed and nothing retries.
func (e *Engine) runJob(task *Task, s slot) {
	defer e.jobs.Done()

	defer func() {
		if r := recover(); r != nil {
			logging.SchedulerWarn("Task #%d %s panicked: %v", task.ID, task.Kind, r)
			e.finishJob(task, s)
		}
	}()

	handler, ok := jobHandlers[task.Kind]
	if !ok {
		logging.SchedulerWarn("Task #%d has no handler for kind %s", task.ID, task.Kind)
	} else if err := handler(e, task); err != nil {
		logging.SchedulerWarn("Task #%d %s failed: %v", task.ID, task.Kind, err)
	}

	e.finishJob(task, s)
}

// finishJob clears the slot, feeds the completion aggregator, and re-triggers
// a dispatch pass so queued work is never stuck behind a finished slot.
func (e *Engine) finishJob(task *Task, s slot) {
	e.mu.Lock()
	e.active[s] = false
	e.flags.completed(task.Kind, &e.queue)
	e.mu.Unlock()

	logging.SchedulerDebug("Task #%d %s done, slot %s freed", task.ID, task.Kind, s)
	e.requestDispatch()
}
