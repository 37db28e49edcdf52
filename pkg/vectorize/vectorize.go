// Package vectorize provides a client for the Cloudflare Vectorize v2 index
// API: nearest-neighbor queries for the recommendation pipeline and vector
// inserts for the indexer.
package vectorize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client calls a single named Vectorize index.
type Client struct {
	baseURL   string
	accountID string
	index     string
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

// New creates a Vectorize client bound to the given index name.
func New(accountID, index, authEmail, authKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   "https://api.cloudflare.com/client/v4",
		accountID: accountID,
		index:     index,
		authEmail: authEmail,
		authKey:   authKey,
		client:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("X-Auth-Email", c.authEmail)
	req.Header.Set("X-Auth-Key", c.authKey)
}

type queryReq struct {
	Vector []float32 `json:"vector"`
	TopK   int       `json:"topK"`
}

type queryResp struct {
	Result struct {
		Matches []struct {
			ID string `json:"id"`
		} `json:"matches"`
	} `json:"result"`
}

// Query returns the IDs of the topK nearest neighbors, in the
// similarity-descending order the index supplies. No re-ranking happens here.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]string, error) {
	body, _ := json.Marshal(queryReq{Vector: vector, TopK: topK})
	url := fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s/query", c.baseURL, c.accountID, c.index)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("vectorize query: status %d", resp.StatusCode)
	}

	var result queryResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("vectorize query decode: %w", err)
	}

	ids := make([]string, len(result.Result.Matches))
	for i, m := range result.Result.Matches {
		ids[i] = m.ID
	}
	return ids, nil
}

// Vector is a single embedding to store in the index.
type Vector struct {
	ID     string    `json:"id"`
	Values []float32 `json:"values"`
}

// Upsert writes vectors to the index as an ndjson body, one vector per line.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, v := range vectors {
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("vectorize upsert encode: %w", err)
		}
	}

	url := fmt.Sprintf("%s/accounts/%s/vectorize/v2/indexes/%s/upsert", c.baseURL, c.accountID, c.index)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return err
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("vectorize upsert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("vectorize upsert: status %d", resp.StatusCode)
	}
	return nil
}
