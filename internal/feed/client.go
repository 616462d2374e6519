// Package feed wraps the channel-listing JSON API: one page of items plus a
// pagination pointer to the next page.
package feed

import (
	"context"
	"fmt"
	"net/url"

	json "github.com/goccy/go-json"

	"ZenWatcher/internal/ports"
)

// Item is one listed article.
type Item struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Listing is one page of a channel's listing. More is empty on the last page.
type Listing struct {
	Items []Item
	More  string
}

type rawListing struct {
	Items []Item `json:"items"`
	More  struct {
		Link string `json:"link"`
	} `json:"more"`
}

// Client fetches channel listings through a Fetcher.
type Client struct {
	fetcher ports.Fetcher
	baseURL string
}

// NewClient binds the listing API base URL.
func NewClient(fetcher ports.Fetcher, baseURL string) *Client {
	return &Client{fetcher: fetcher, baseURL: baseURL}
}

// FirstPage fetches the head of a channel's listing.
func (c *Client) FirstPage(ctx context.Context, zenID string) (Listing, error) {
	pageURL, err := url.Parse(c.baseURL)
	if err != nil {
		return Listing{}, fmt.Errorf("invalid base url %s: %w", c.baseURL, err)
	}
	query := pageURL.Query()
	query.Set("channel_id", zenID)
	pageURL.RawQuery = query.Encode()

	return c.Page(ctx, pageURL.String())
}

// Page fetches and decodes one listing page by its full URL.
func (c *Client) Page(ctx context.Context, pageURL string) (Listing, error) {
	body, err := c.fetcher.FetchText(ctx, pageURL)
	if err != nil {
		return Listing{}, err
	}

	var raw rawListing
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Listing{}, fmt.Errorf("decode listing: %w", err)
	}

	return Listing{Items: raw.Items, More: raw.More.Link}, nil
}
