// Package llm implements the OpenAI-compatible completion client and the
// chat session built on top of it: transcript budgeting, system prompt
// placement, think-tag suppression, and bounded tool-call rounds.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"banter/internal/config"
	"banter/internal/logging"
)

// Client talks to one OpenAI-compatible chat completions endpoint. It does
// no retrying of its own; transport and API errors propagate to the caller.
type Client struct {
	cfg        config.LLMConfig
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

// NewClient creates a client from the LLM config section. A non-positive
// rate_per_second disables request pacing.
func NewClient(cfg config.LLMConfig) *Client {
	timeout := cfg.RequestTimeout()

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		cfg:     cfg,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		timeout: timeout,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Config returns the LLM config the client was built from.
func (c *Client) Config() config.LLMConfig {
	return c.cfg
}

// withDeadline applies the client timeout when the caller's context has no
// deadline of its own.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// send marshals req, paces it through the limiter, and returns the raw
// HTTP response. The caller owns the body.
func (c *Client) send(ctx context.Context, req Request, accept string) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if accept != "" {
		httpReq.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &RateLimitError{
			Message:    strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var wrapped Response
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
			apiErr.Message = wrapped.Error.Message
			apiErr.Type = wrapped.Error.Type
			apiErr.Code = wrapped.Error.Code
		}
		return nil, apiErr
	}

	return resp, nil
}

// Complete issues a non-streaming completion request.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	req.Stream = false
	logging.LLMDebug("Complete: model=%s messages=%d tools=%d", req.Model, len(req.Messages), len(req.Tools))

	resp, err := c.send(ctx, req, "")
	if err != nil {
		logging.Get(logging.CategoryLLM).Error("Complete failed after %v: %v", time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: out.Error.Message, Type: out.Error.Type, Code: out.Error.Code}
	}
	if len(out.Choices) == 0 {
		return nil, ErrNoChoices
	}

	logging.LLM("Complete: %d prompt + %d completion tokens in %v",
		out.Usage.PromptTokens, out.Usage.CompletionTokens, time.Since(start))
	return &out, nil
}

// StreamChunks issues a streaming completion request and decodes each SSE
// data line into a Response chunk. Both channels close when the stream
// ends; at most one error is delivered.
func (c *Client) StreamChunks(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	chunks := make(chan Response, 100)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errc)

		ctx, cancel := c.withDeadline(ctx)
		defer cancel()

		start := time.Now()
		req.Stream = true
		logging.LLMDebug("StreamChunks: model=%s messages=%d tools=%d", req.Model, len(req.Messages), len(req.Tools))

		resp, err := c.send(ctx, req, "text/event-stream")
		if err != nil {
			logging.Get(logging.CategoryLLM).Error("StreamChunks failed after %v: %v", time.Since(start), err)
			errc <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == "[DONE]" {
				logging.LLMDebug("StreamChunks: completed in %v", time.Since(start))
				return
			}

			var chunk Response
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				errc <- &APIError{StatusCode: resp.StatusCode, Message: chunk.Error.Message, Type: chunk.Error.Type, Code: chunk.Error.Code}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				errc <- ctx.Err()
				return
			}
			errc <- fmt.Errorf("stream error: %w", err)
		}
	}()

	return chunks, errc
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
