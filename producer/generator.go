package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph/llm"
	"github.com/randalmurphal/llmkit/model"
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyResponse is returned when a generator produced no text.
var ErrEmptyResponse = errors.New("generator returned an empty response")

// DefaultSystemPrompt asks for output in the format ParseFiles reads.
const DefaultSystemPrompt = `You generate source files for an existing project.
Emit every file as a block:

` + fileStartPrefix + `<relative/path>` + fileStartSuffix + `
<complete file content>
` + fileEnd + `

Paths are relative to the project root and use forward slashes.
Emit complete files only. Do not write anything outside the blocks.`

// Usage accumulates token counts across calls.
type Usage struct {
	Calls        int `json:"calls"`
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// LLMGenerator generates text through a flowgraph LLM client.
type LLMGenerator struct {
	client       llm.Client
	systemPrompt string
	model        model.ModelName
	logger       *slog.Logger

	mu    sync.Mutex
	usage Usage
}

// LLMOption configures an LLMGenerator.
type LLMOption func(*LLMGenerator)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) LLMOption {
	return func(g *LLMGenerator) {
		g.systemPrompt = prompt
	}
}

// WithModel records the model the client was configured with.
func WithModel(m model.ModelName) LLMOption {
	return func(g *LLMGenerator) {
		g.model = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(g *LLMGenerator) {
		g.logger = logger
	}
}

// NewLLMGenerator wraps client.
func NewLLMGenerator(client llm.Client, opts ...LLMOption) *LLMGenerator {
	g := &LLMGenerator{
		client:       client,
		systemPrompt: DefaultSystemPrompt,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewClaudeGenerator creates a generator backed by the Claude CLI running in
// workdir, using the model selected for kind.
func NewClaudeGenerator(kind Kind, workdir string, opts ...LLMOption) *LLMGenerator {
	m := SelectModel(kind)
	client := llm.NewClaudeCLI(
		llm.WithModel(string(m)),
		llm.WithWorkdir(workdir),
	)
	return NewLLMGenerator(client, append([]LLMOption{WithModel(m)}, opts...)...)
}

// Model returns the configured model name, if known.
func (g *LLMGenerator) Model() model.ModelName {
	return g.model
}

// Usage returns the tokens consumed so far.
func (g *LLMGenerator) Usage() Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Generate sends prompt to the client and returns the completion text.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("generate: empty prompt")
	}

	resp, err := g.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	g.mu.Lock()
	g.usage.Calls++
	g.usage.InputTokens += resp.Usage.InputTokens
	g.usage.OutputTokens += resp.Usage.OutputTokens
	g.mu.Unlock()

	g.logger.Debug("generation complete",
		"model", g.model,
		"tokens_in", resp.Usage.InputTokens,
		"tokens_out", resp.Usage.OutputTokens,
	)

	if strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
