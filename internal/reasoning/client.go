// Package reasoning is the boundary to the external text-completion service.
// The service is treated as unreliable: timeouts, transport errors and
// malformed output are all expected, and every caller has a documented
// degradation path.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pokemon-research/internal/common/config"
	cerrors "pokemon-research/internal/common/errors"
	"pokemon-research/internal/common/logger"
)

var (
	ErrReasoningTimeout = errors.New("REASONING_TIMEOUT")
	ErrReasoningFailed  = errors.New("REASONING_FAILED")
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	cfg    config.ReasoningConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.ReasoningConfig, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		// No transport timeout; the per-call context carries the deadline.
		client: &http.Client{},
		logger: log.With(map[string]interface{}{
			"component": "reasoning",
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteJSON sends a system+user prompt pair and returns the raw content of
// the first choice, requested in JSON mode. Callers validate the payload
// against their own schema before trusting it.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) ([]byte, error) {
	return c.complete(ctx, systemPrompt, userPrompt, true)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) ([]byte, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReasoningFailed, err)
	}

	var body []byte
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.timedOut(ctx)
			}
		}

		body, lastErr = c.doRequest(ctx, payload)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, c.timedOut(ctx)
		}

		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, c.timedOut(ctx)
		}
		return nil, fmt.Errorf("%w: %v", ErrReasoningFailed, lastErr)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrReasoningFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", ErrReasoningFailed)
	}

	return []byte(parsed.Choices[0].Message.Content), nil
}

// timedOut wraps the context cause so callers can tell a cancelled run
// (surfaced as a failure) from an expired per-stage deadline (degradable).
func (c *Client) timedOut(ctx context.Context) error {
	c.logger.WithError(cerrors.NewReasoningTimeoutError("chat-completions")).Warn("reasoning request timed out", map[string]interface{}{
		"model": c.cfg.Model,
	})
	if cause := ctx.Err(); cause != nil {
		return fmt.Errorf("%w: %w", ErrReasoningTimeout, cause)
	}
	return ErrReasoningTimeout
}

func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
