package reflect

import (
	"time"

	"talenerd/internal/logging"
)

// taskQueue holds pending reflection tasks in arrival order and mints
// monotonic task ids. It is not internally synchronized: all access happens
// under the engine mutex, between job suspension points, which is what makes
// the aggregator's read-modify-write safe without its own lock.
type taskQueue struct {
	tasks  []*Task
	nextID int64
}

// enqueue appends a task with a fresh monotonic id.
func (q *taskQueue) enqueue(kind TaskKind, payload Payload) *Task {
	q.nextID++
	task := &Task{
		ID:         q.nextID,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	q.tasks = append(q.tasks, task)

	logging.QueueDebug("Enqueued task #%d %s (pending=%d)", task.ID, kind, len(q.tasks))
	return task
}

// head returns the first queued task without removing it, or nil.
func (q *taskQueue) head() *Task {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

// dequeueHead removes and returns the first queued task, or nil.
func (q *taskQueue) dequeueHead() *Task {
	if len(q.tasks) == 0 {
		return nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task
}

// dequeueFirstMatching removes and returns the first queued task satisfying
// the predicate, or nil. Unlike dequeueHead this scans the whole queue.
func (q *taskQueue) dequeueFirstMatching(pred func(*Task) bool) *Task {
	for i, task := range q.tasks {
		if pred(task) {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return task
		}
	}
	return nil
}

// containsKind reports whether any queued task has the given kind.
func (q *taskQueue) containsKind(kind TaskKind) bool {
	for _, task := range q.tasks {
		if task.Kind == kind {
			return true
		}
	}
	return false
}

// size returns the number of pending tasks.
func (q *taskQueue) size() int {
	return len(q.tasks)
}

// clear drops all pending tasks.
func (q *taskQueue) clear() {
	q.tasks = nil
}
