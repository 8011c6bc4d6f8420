package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"talenerd/internal/logging"
)

// =============================================================================
// GOOGLE GENAI GENERATOR
// =============================================================================

// GenAIGenerator produces critiques using Google's Gemini API.
type GenAIGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGenAIGenerator creates a Gemini-backed Generator.
func NewGenAIGenerator(apiKey, model string, timeout time.Duration) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete generates text for a single prompt.
func (g *GenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, nil, prompt)
}

// CompleteWithSystem generates text with a system instruction.
func (g *GenAIGenerator) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}
	return g.generate(ctx, cfg, userPrompt)
}

func (g *GenAIGenerator) generate(ctx context.Context, cfg *genai.GenerateContentConfig, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	timer := logging.StartTimer(logging.CategoryAPI, "GenAI generate")
	defer timer.StopWithThreshold(30 * time.Second)

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		logging.APIError("GenAI generate failed (model=%s): %v", g.model, err)
		return "", fmt.Errorf("genai generate: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("genai returned empty response (model=%s)", g.model)
	}

	logging.APIDebug("GenAI generate ok (model=%s, chars=%d)", g.model, len(text))
	return text, nil
}
