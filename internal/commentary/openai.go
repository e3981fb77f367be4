package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/upstream"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 150
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIClient is a Generator backed by an OpenAI-compatible Chat Completions API.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	policy      upstream.Policy
	circuit     *gobreaker.CircuitBreaker
}

type Option func(*OpenAIClient)

func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *OpenAIClient) {
		c.policy.Client = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.model = strings.TrimSpace(model)
	}
}

// WithMaxTokens caps the completion length requested from the provider.
func WithMaxTokens(n int) Option {
	return func(c *OpenAIClient) {
		c.maxTokens = n
	}
}

func WithPolicy(p upstream.Policy) Option {
	return func(c *OpenAIClient) {
		client := c.policy.Client
		c.policy = p
		if c.policy.Client == nil {
			c.policy.Client = client
		}
	}
}

// NewOpenAIClient creates a client authenticating with apiKey.
func NewOpenAIClient(apiKey string, opts ...Option) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	c := &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		maxTokens:   defaultMaxTokens,
		temperature: 0.9,
		policy:      upstream.Policy{Client: http.DefaultClient},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.policy.Client == nil {
		c.policy.Client = http.DefaultClient
	}
	c.circuit = upstream.BreakerFor("openai", c.policy)
	return c, nil
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Generate asks the model for commentary on summary. Every failure, including
// an empty answer, is reported as apperr.CodeGeneration.
func (c *OpenAIClient) Generate(ctx context.Context, summary string) (string, error) {
	temperature := c.temperature
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: Persona},
			{Role: "user", Content: summary},
		},
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", apperr.Generation("commentary generation failed", fmt.Errorf("openai: marshal request: %w", err))
	}

	url := chatURL(c.baseURL)
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("openai: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}

	resp, err := upstream.Do(ctx, c.policy, c.circuit, buildRequest)
	if err != nil {
		return "", apperr.Generation("commentary generation failed", fmt.Errorf("openai: request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Generation("commentary generation failed", fmt.Errorf("openai: read response body: %w", err))
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", apperr.Generation("commentary generation failed", fmt.Errorf("openai: decode response: %w", err))
	}
	if len(payload.Choices) == 0 {
		return "", apperr.Generation("commentary generation returned nothing", errors.New("openai: no choices in response"))
	}

	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", apperr.Generation("commentary generation returned nothing", errors.New("openai: empty content"))
	}
	return content, nil
}
