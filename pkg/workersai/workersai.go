// Package workersai provides a client for the Cloudflare Workers AI text
// embedding model (@cf/baai/bge-base-en-v1.5).
package workersai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/scentmatch/scentmatch/engine/domain"
)

// EmbedModel is the text embedding model the index was built with. Query
// vectors must come from the same model or similarity scores are meaningless.
const EmbedModel = "@cf/baai/bge-base-en-v1.5"

// Client calls the Workers AI run endpoint for embeddings.
type Client struct {
	baseURL   string
	accountID string
	authEmail string
	authKey   string
	client    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a Workers AI embedding client.
func New(accountID, authEmail, authKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   "https://api.cloudflare.com/client/v4",
		accountID: accountID,
		authEmail: authEmail,
		authKey:   authKey,
		client:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedReq struct {
	Text string `json:"text"`
}

type embedResp struct {
	Result struct {
		Data [][]float32 `json:"data"`
	} `json:"result"`
}

// Embed converts text to a fixed-length vector. An empty vector is reported
// as domain.ErrEmptyEmbedding rather than returned: callers must never treat
// it as a valid zero-length embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Text: text})
	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, EmbedModel)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Email", c.authEmail)
	req.Header.Set("X-Auth-Key", c.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workersai embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("workersai embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("workersai embed decode: %w", err)
	}
	if len(result.Result.Data) == 0 || len(result.Result.Data[0]) == 0 {
		return nil, domain.ErrEmptyEmbedding
	}
	return result.Result.Data[0], nil
}
