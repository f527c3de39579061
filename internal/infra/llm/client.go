// Package llm talks to an Ollama-compatible chat completion service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/classifier/internal/classify"
	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/observability/metrics"
	"github.com/vietddude/classifier/internal/retry"
)

// Config holds classification service settings.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"` // per attempt, independent of backoff
	Temperature float64       `yaml:"temperature"`
	NumPredict  int           `yaml:"num_predict"`
}

// Client issues classification requests with retries. It keeps no state
// between calls beyond the shared HTTP transport.
type Client struct {
	cfg        Config
	retryCfg   retry.Config
	httpClient *http.Client
}

// New creates a classification client. The HTTP client carries no timeout
// of its own; each attempt gets a context deadline instead.
func New(cfg Config, retryCfg retry.Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.NumPredict == 0 {
		cfg.NumPredict = 300
	}
	return &Client{
		cfg:      cfg,
		retryCfg: retryCfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Classify encodes rec, sends it to the service and decodes the reply.
// Transient and resource failures are retried with backoff; permanent
// failures and encode errors return after a single attempt. The attempt
// count is returned for result bookkeeping.
//
// Decode failures are retried: model output is stochastic, so a reply that
// did not parse may parse on the next attempt.
func (c *Client) Classify(ctx context.Context, rec *domain.Record) (domain.Classification, int, error) {
	messages, err := classify.BuildRequest(rec)
	if err != nil {
		return domain.Classification{}, 0, err
	}

	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) (domain.Classification, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		content, err := c.chat(attemptCtx, messages)
		if err != nil {
			metrics.LLMErrorsTotal.WithLabelValues(string(retry.Classify(err))).Inc()
			return domain.Classification{}, err
		}

		result, err := classify.ParseResponse(content)
		if err != nil {
			metrics.LLMErrorsTotal.WithLabelValues("decode").Inc()
			return domain.Classification{}, err
		}
		return result, nil
	})
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []classify.Message `json:"messages"`
	Options  chatOptions        `json:"options"`
	Stream   bool               `json:"stream"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// chat performs one POST against /api/chat and returns the reply text.
func (c *Client) chat(ctx context.Context, messages []classify.Message) (string, error) {
	start := time.Now()
	metrics.LLMRequestsTotal.Inc()

	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Options: chatOptions{
			NumPredict:  c.cfg.NumPredict,
			Temperature: c.cfg.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classification call: %w", err)
	}
	defer resp.Body.Close()

	metrics.LLMLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response envelope: %w", err)
	}
	return parsed.Message.Content, nil
}
