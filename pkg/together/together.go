// Package together provides a client for the Together AI chat completions API.
package together

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "deepseek-ai/DeepSeek-V3"

// Client calls the Together AI chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModel overrides the completion model.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a Together AI client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: "https://api.together.xyz",
		apiKey:  apiKey,
		model:   DefaultModel,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionReq struct {
	Messages          []message `json:"messages"`
	Model             string    `json:"model"`
	MaxTokens         int       `json:"max_tokens"`
	Temperature       float64   `json:"temperature"`
	TopP              float64   `json:"top_p"`
	TopK              int       `json:"top_k"`
	RepetitionPenalty float64   `json:"repetition_penalty"`
	Stop              []string  `json:"stop"`
}

type completionResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the first
// choice's content. Sampling parameters are fixed: the generator depends on
// bounded output and a stable temperature for parseable JSON replies.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(completionReq{
		Messages:          []message{{Role: "user", Content: prompt}},
		Model:             c.model,
		MaxTokens:         400,
		Temperature:       0.7,
		TopP:              0.7,
		TopK:              50,
		RepetitionPenalty: 1,
		Stop:              []string{"<|end_of_text|>"},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("together complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("together complete: status %d", resp.StatusCode)
	}

	var result completionResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("together complete decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("together complete: no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}
