// Package d1 provides a client for the Cloudflare D1 HTTP query API.
package d1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client executes SQL against a single D1 database over HTTP.
type Client struct {
	baseURL    string
	accountID  string
	databaseID string
	authEmail  string
	authKey    string
	client     *http.Client
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

// New creates a D1 client bound to the given database.
func New(accountID, databaseID, authEmail, authKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    "https://api.cloudflare.com/client/v4",
		accountID:  accountID,
		databaseID: databaseID,
		authEmail:  authEmail,
		authKey:    authKey,
		client:     &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryReq struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type queryResp struct {
	Success bool `json:"success"`
	Result  []struct {
		Success bool             `json:"success"`
		Results []map[string]any `json:"results"`
	} `json:"result"`
}

func (c *Client) do(ctx context.Context, sql string, params []any) (*queryResp, error) {
	body, _ := json.Marshal(queryReq{SQL: sql, Params: params})
	url := fmt.Sprintf("%s/accounts/%s/d1/database/%s/query", c.baseURL, c.accountID, c.databaseID)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Email", c.authEmail)
	req.Header.Set("X-Auth-Key", c.authKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("d1 query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("d1 query: status %d", resp.StatusCode)
	}

	var result queryResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("d1 query decode: %w", err)
	}
	return &result, nil
}

// Query runs a SELECT with positional placeholders and returns the rows of
// the first result set. Row order is whatever the store returns.
func (c *Client) Query(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	result, err := c.do(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	if len(result.Result) == 0 {
		return nil, fmt.Errorf("d1 query: empty result envelope")
	}
	return result.Result[0].Results, nil
}

// Exec runs a write statement with positional placeholders. A response that
// arrives but reports success=false is an error: the row was not written.
func (c *Client) Exec(ctx context.Context, sql string, params []any) error {
	result, err := c.do(ctx, sql, params)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("d1 exec: store reported failure")
	}
	return nil
}
