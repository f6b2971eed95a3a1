// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is a timeout-bounded HTTP client shared by outbound API adapters.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientFrom wraps an existing *http.Client, e.g. httptest.Server.Client().
func NewClientFrom(c *http.Client) *Client {
	return &Client{httpClient: c}
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}

// HTTPClient exposes the underlying client for SDKs that take an *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
