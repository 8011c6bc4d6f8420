package reflect

import "talenerd/internal/logging"

// completionFlags detects when the world-edit and narrative reflection
// streams have both produced output since the last reset, and enqueues the
// end-of-turn report that summarizes them.
//
// This is the sole cross-task synchronization primitive in the engine. It
// has no lock of its own: it is only ever touched under the engine mutex,
// between job suspension points.
type completionFlags struct {
	worldEditDone bool
	narrativeDone bool
}

// completed records that a reflection task of the given kind finished. When
// both streams are done, it enqueues exactly one end-of-turn report (unless
// one is already queued) and resets both flags together.
func (f *completionFlags) completed(kind TaskKind, q *taskQueue) *Task {
	switch {
	case kind.worldFamily():
		f.worldEditDone = true
	case kind.narrativeFamily():
		f.narrativeDone = true
	default:
		return nil
	}

	if !f.worldEditDone || !f.narrativeDone {
		return nil
	}

	var report *Task
	if !q.containsKind(TaskTurnReport) {
		report = q.enqueue(TaskTurnReport, Payload{Reason: "both_streams_done"})
		logging.Queue("Both reflection streams done, enqueued turn report #%d", report.ID)
	}

	// Flags always reset together once both were observed true.
	f.worldEditDone = false
	f.narrativeDone = false
	return report
}

// reset clears both flags.
func (f *completionFlags) reset() {
	f.worldEditDone = false
	f.narrativeDone = false
}
