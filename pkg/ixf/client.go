package ixf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultFetchTimeout bounds a single feed fetch.
const DefaultFetchTimeout = 5 * time.Second

// SourceError is a feed-level error: the feed could not be fetched or
// its shape is unusable. Source errors abort the run; per-row problems
// do not produce them.
type SourceError struct {
	Reason string
}

func (e *SourceError) Error() string {
	return e.Reason
}

// Client fetches and caches IX-F member-export documents. The client
// performs no semantic validation beyond JSON decoding and Sanitize.
type Client struct {
	httpClient *http.Client
	cache      *Cache
	timeout    time.Duration
}

// NewClient creates a feed client with the given fetch timeout. A zero
// timeout uses DefaultFetchTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cache:      NewCache(),
		timeout:    timeout,
	}
}

// Fetch retrieves the member-export document from url, sanitizes it, and
// caches clean results with the URL as key. Transport failures, non-200
// statuses, non-JSON bodies and sanitize failures all return a
// *SourceError carrying a human-readable reason.
func (c *Client) Fetch(ctx context.Context, url string) (*MemberExport, error) {
	if url == "" {
		return nil, &SourceError{Reason: "IX-F import url not specified"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceError{Reason: fmt.Sprintf("invalid feed url: %v", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SourceError{Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceError{Reason: fmt.Sprintf("Got HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{Reason: err.Error()}
	}

	var doc MemberExport
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &SourceError{Reason: "No JSON could be parsed"}
	}

	Sanitize(&doc)
	if doc.Error != "" {
		return &doc, &SourceError{Reason: doc.Error}
	}

	c.cache.Set(url, &doc)

	return &doc, nil
}

// FetchCached returns the locally cached document for url. It never
// touches the network; a URL that has not been fetched yet is an error.
func (c *Client) FetchCached(url string) (*MemberExport, error) {
	if url == "" {
		return nil, &SourceError{Reason: "IX-F import url not specified"}
	}

	doc := c.cache.Get(url)
	if doc == nil {
		return nil, &SourceError{Reason: "IX-F data not locally cached for this resource yet."}
	}

	return doc, nil
}
