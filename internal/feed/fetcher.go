package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ZenWatcher/internal/ports"
)

// HTTPFetcher retrieves pages as text. Used both for article pages and for
// the channel-listing API.
type HTTPFetcher struct {
	client *http.Client
}

var _ ports.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client; nil gets a 20s-timeout default.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// FetchText performs a GET and returns the body. Any transport error or
// non-200 status is an error.
func (f *HTTPFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ZenWatcher/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
