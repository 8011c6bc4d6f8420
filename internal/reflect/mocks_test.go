package reflect

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"talenerd/internal/config"
	"talenerd/internal/store"
)

// mockGenerator for testing
type mockGenerator struct {
	completeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	delay        time.Duration
	callCount    int32

	mu      sync.Mutex
	systems []string
	users   []string
}

func (m *mockGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockGenerator) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	atomic.AddInt32(&m.callCount, 1)
	m.mu.Lock()
	m.systems = append(m.systems, systemPrompt)
	m.users = append(m.users, userPrompt)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.completeFunc != nil {
		return m.completeFunc(ctx, systemPrompt, userPrompt)
	}
	return "mock critique", nil
}

func (m *mockGenerator) calls() int {
	return int(atomic.LoadInt32(&m.callCount))
}

// messageCollector is a thread-safe MessageSink for tests.
type messageCollector struct {
	mu       sync.Mutex
	messages []Message
}

func (c *messageCollector) sink(msg Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

func (c *messageCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *messageCollector) first() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[0], true
}

// fastConfig returns a reflection config tuned for test speed. Synthesis
// cadence is pushed out of the way unless a test opts in.
func fastConfig() config.ReflectionConfig {
	cfg := config.DefaultReflectionConfig()
	cfg.DebounceWindowMs = 1
	cfg.ReportSynthesisDelayMs = 60_000
	cfg.SynthesisEvery = 1_000
	return cfg
}

// newTestEngine builds an engine over an in-memory blob store.
func newTestEngine(t *testing.T, cfg config.ReflectionConfig, gen *mockGenerator, sink MessageSink) *Engine {
	t.Helper()
	deps := Deps{Blobs: store.NewMemoryStore(), Sink: sink}
	if gen != nil {
		deps.Generator = gen
	}
	e := New(cfg, deps)
	t.Cleanup(e.Close)
	return e
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for: %s", msg)
}
