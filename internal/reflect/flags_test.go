package reflect

import "testing"

// TestCompletionFlags_OneStreamIsNotEnough tests that a single family never
// emits a report
func TestCompletionFlags_OneStreamIsNotEnough(t *testing.T) {
	var q taskQueue
	var f completionFlags

	if report := f.completed(TaskWorldEditCritique, &q); report != nil {
		t.Errorf("World stream alone emitted a report: %+v", report)
	}
	if !f.worldEditDone || f.narrativeDone {
		t.Errorf("Unexpected flag state: world=%v narrative=%v", f.worldEditDone, f.narrativeDone)
	}

	// Repeats of the same family stay a no-op.
	if report := f.completed(TaskWorldAppliedCritique, &q); report != nil {
		t.Errorf("Repeated world completion emitted a report: %+v", report)
	}
	if q.size() != 0 {
		t.Errorf("Queue touched before both streams were done: %d", q.size())
	}
}

// TestCompletionFlags_BothStreamsEmitOneReport tests the aggregation and
// joint reset
func TestCompletionFlags_BothStreamsEmitOneReport(t *testing.T) {
	var q taskQueue
	var f completionFlags

	f.completed(TaskChatCritique, &q)
	report := f.completed(TaskWorldAppliedCritique, &q)

	if report == nil {
		t.Fatal("Both streams done but no report enqueued")
	}
	if report.Kind != TaskTurnReport {
		t.Errorf("Expected turn report, got %s", report.Kind)
	}
	if q.size() != 1 {
		t.Errorf("Expected 1 queued task, got %d", q.size())
	}

	// Both flags reset together.
	if f.worldEditDone || f.narrativeDone {
		t.Error("Flags not reset after report")
	}

	// The next full cycle emits a fresh report.
	q.clear()
	f.completed(TaskWorldEditCritique, &q)
	if report := f.completed(TaskChatCritique, &q); report == nil {
		t.Error("Second cycle emitted no report")
	}
}

// TestCompletionFlags_NoDuplicateReport tests dedup against a queued report
func TestCompletionFlags_NoDuplicateReport(t *testing.T) {
	var q taskQueue
	var f completionFlags

	q.enqueue(TaskTurnReport, Payload{})

	f.completed(TaskChatCritique, &q)
	report := f.completed(TaskWorldEditCritique, &q)

	if report != nil {
		t.Errorf("Duplicate report enqueued: %+v", report)
	}
	if q.size() != 1 {
		t.Errorf("Expected the single pre-queued report, got %d tasks", q.size())
	}
	// Flags still reset even when the report was deduplicated.
	if f.worldEditDone || f.narrativeDone {
		t.Error("Flags not reset after deduplicated report")
	}
}

// TestCompletionFlags_OtherKindsDontParticipate tests family membership
func TestCompletionFlags_OtherKindsDontParticipate(t *testing.T) {
	var q taskQueue
	var f completionFlags

	for _, kind := range []TaskKind{
		TaskCallCritique, TaskManualEditCritique, TaskAssistantEditCritique,
		TaskSynthesis, TaskTurnReport,
	} {
		if report := f.completed(kind, &q); report != nil {
			t.Errorf("Kind %s emitted a report", kind)
		}
	}
	if f.worldEditDone || f.narrativeDone {
		t.Error("Non-family kinds set flags")
	}
}
