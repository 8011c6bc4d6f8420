// Package llm defines the critique-generation boundary of the reflection engine.
// The engine calls a Generator exactly once per reflection job; retries and
// provider fallback live outside this module.
package llm

import "context"

// Generator is the single point of contact with a generative backend.
// Reflection jobs pass the stream-specific framing as the system prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
