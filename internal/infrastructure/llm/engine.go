// Package llm adapts the Anthropic Messages API to the answer-generation
// contract consumed by the response pipeline.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quokkaops/answer-bridge/internal/infrastructure/observability"
	"github.com/quokkaops/answer-bridge/internal/infrastructure/resilience"
	"github.com/quokkaops/answer-bridge/internal/usecase/respond"
)

const defaultSystemPrompt = "You are a helpful workplace assistant answering questions in a team chat. " +
	"Answer concisely in markdown. If you do not know, say so instead of guessing."

// Config holds the engine settings.
type Config struct {
	APIKey       string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	SystemPrompt string
}

// Engine implements respond.AnswerEngine over the Anthropic SDK. All
// calls pass through a circuit breaker so a dead backend fails fast
// instead of consuming the full processing budget of every event.
type Engine struct {
	client       *anthropic.Client
	model        string
	maxTokens    int64
	timeout      time.Duration
	systemPrompt string
	breaker      *resilience.CircuitBreaker
	metrics      *observability.Metrics
}

// NewEngine creates an answer engine. metrics may be nil in tests.
func NewEngine(cfg Config, breaker *resilience.CircuitBreaker, metrics *observability.Metrics) *Engine {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	return &Engine{
		client:       &client,
		model:        cfg.Model,
		maxTokens:    int64(cfg.MaxTokens),
		timeout:      cfg.Timeout,
		systemPrompt: prompt,
		breaker:      breaker,
		metrics:      metrics,
	}
}

// Generate implements respond.AnswerEngine.
func (e *Engine) Generate(ctx context.Context, query string, channelScope []string) (*respond.Answer, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: e.buildSystemPrompt(channelScope)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	}

	start := time.Now()
	var msg *anthropic.Message
	err := e.breaker.Execute(ctx, func() error {
		var callErr error
		msg, callErr = e.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordGeneration(ctx, e.model, time.Since(start), 0, 0, false)
		}
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if e.metrics != nil {
		e.metrics.RecordGeneration(ctx, e.model, time.Since(start), msg.Usage.InputTokens, msg.Usage.OutputTokens, true)
	}

	text := collectText(msg)
	if text == "" {
		return nil, fmt.Errorf("generating answer: empty response from model")
	}

	return &respond.Answer{
		Text:         text,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// buildSystemPrompt appends the channel scope so the model knows which
// knowledge sources the question belongs to.
func (e *Engine) buildSystemPrompt(channelScope []string) string {
	if len(channelScope) == 0 {
		return e.systemPrompt
	}
	return fmt.Sprintf("%s\n\nThe question was asked in: %s.",
		e.systemPrompt, strings.Join(channelScope, ", "))
}

// collectText concatenates the text blocks of a response.
func collectText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
