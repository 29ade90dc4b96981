package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/metrics"
)

const promptTemplate = "Answer the following question in the same language as the question. " +
	"Provide a clear and concise one-sentence answer with emojis, based on the following context: %s\n\n" +
	"Question: %s"

// Answerer phrases an answer from a context passage via chat completions.
type Answerer struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// AnswererConfig holds the chat model settings.
type AnswererConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      *zap.Logger
}

// NewAnswerer creates an OpenAI-compatible answerer.
func NewAnswerer(cfg *AnswererConfig) *Answerer {
	return &Answerer{
		client:      newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Answer asks the model for a one-sentence answer grounded in passage.
func (a *Answerer) Answer(ctx context.Context, question, passage string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(question, passage)},
		},
		MaxTokens:   a.maxTokens,
		// 0 is omitted on the wire, the provider default applies.
		Temperature: a.temperature,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.AnswerRequestsTotal.WithLabelValues(a.model, "error").Inc()
		a.logger.Warn("Chat completion failed",
			zap.String("model", a.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", parseAPIError(err, domain.ErrAnswerService, "chat")
	}

	if len(resp.Choices) == 0 {
		metrics.AnswerRequestsTotal.WithLabelValues(a.model, "error").Inc()
		return "", fmt.Errorf("empty chat completion response: %w", domain.ErrAnswerService)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		metrics.AnswerRequestsTotal.WithLabelValues(a.model, "error").Inc()
		return "", fmt.Errorf("blank chat completion: %w", domain.ErrAnswerService)
	}

	metrics.AnswerRequestsTotal.WithLabelValues(a.model, "success").Inc()
	metrics.AnswerRequestDuration.WithLabelValues(a.model).Observe(duration.Seconds())

	a.logger.Debug("Chat completion done",
		zap.String("model", a.model),
		zap.Duration("duration", duration),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return text, nil
}

func buildPrompt(question, passage string) string {
	return fmt.Sprintf(promptTemplate, passage, question)
}
