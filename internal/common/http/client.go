// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// userAgent identifies the pipeline when fetching wardrobe and profile
// images from user-supplied URLs.
const userAgent = "stylist-pipeline/1.0"

// Client wraps the standard client with the timeout image fetches need.
// Image handles can point at arbitrary hosts, so every request carries a
// deadline even when the caller's context has none.
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

// Get fetches the resource behind an image handle. The context bounds the
// exchange in addition to the client timeout.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")
	return c.httpClient.Do(req)
}
