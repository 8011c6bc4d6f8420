package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestDebouncer_CoalescesBurst verifies rapid triggers produce one callback
func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := New(30 * time.Millisecond)
	var calls int32

	for i := 0; i < 10; i++ {
		d.Trigger(func() { atomic.AddInt32(&calls, 1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 coalesced call, got %d", got)
	}
}

// TestDebouncer_SeparatedTriggersFireSeparately verifies spaced triggers each fire
func TestDebouncer_SeparatedTriggersFireSeparately(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls int32

	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	time.Sleep(50 * time.Millisecond)
	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

// TestDebouncer_Cancel verifies a pending call never fires after Cancel
func TestDebouncer_Cancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls int32

	d.Trigger(func() { atomic.AddInt32(&calls, 1) })
	d.Cancel()

	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("Expected 0 calls after cancel, got %d", got)
	}
}

// TestDebouncer_Flush verifies Flush runs immediately and drops the pending timer
func TestDebouncer_Flush(t *testing.T) {
	d := New(50 * time.Millisecond)
	var pending, flushed int32

	d.Trigger(func() { atomic.AddInt32(&pending, 1) })
	d.Flush(func() { atomic.AddInt32(&flushed, 1) })

	if got := atomic.LoadInt32(&flushed); got != 1 {
		t.Fatalf("Expected flush to run immediately, calls=%d", got)
	}

	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt32(&pending); got != 0 {
		t.Errorf("Expected pending trigger to be cancelled by flush, got %d", got)
	}
}
