// Package llm wraps the OpenAI-compatible chat completion API used by the
// grading engine. Calls are bounded by per-kind timeouts and retried on
// transient failures so a flaky upstream degrades grading instead of
// blocking submission.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizdesk/attempt-service/internal/utils"
)

// Client is the completion surface the grading engine depends on.
type Client interface {
	// CompleteJSON requests a JSON-object response and returns the raw text.
	CompleteJSON(ctx context.Context, system, user string) (string, error)
	// CompleteText requests a free-form text response.
	CompleteText(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	TimeoutJSON time.Duration
	TimeoutText time.Duration
	RetryMax    int
	Backoff     time.Duration
}

type openAIClient struct {
	api    *openai.Client
	cfg    Config
	logger utils.Logger
}

func NewClient(cfg Config, logger utils.Logger) Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: logger,
	}
}

func (c *openAIClient) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	req := c.baseRequest(system, user)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return c.completeWithRetry(ctx, req, c.cfg.TimeoutJSON)
}

func (c *openAIClient) CompleteText(ctx context.Context, system, user string) (string, error) {
	return c.completeWithRetry(ctx, c.baseRequest(system, user), c.cfg.TimeoutText)
}

func (c *openAIClient) baseRequest(system, user string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
}

func (c *openAIClient) completeWithRetry(ctx context.Context, req openai.ChatCompletionRequest, timeout time.Duration) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff * time.Duration(attempt)
			c.logger.Warn("retrying completion", "attempt", attempt, "wait", wait.String(), "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("completion returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !retryable(err) {
			return "", fmt.Errorf("completion failed: %w", err)
		}
	}
	return "", fmt.Errorf("completion failed after %d retries: %w", c.cfg.RetryMax, lastErr)
}

// retryable reports whether the call may succeed on another attempt:
// rate limits, upstream 5xx, and network-level failures qualify.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
