// Package search is the Serper web search client.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint = "https://google.serper.dev/search"
	maxSnippets     = 5
)

// failureContext is returned in place of results so the model can explain
// the situation instead of the command failing outright.
const failureContext = "Failed to retrieve web search results."

// Client queries the Serper search API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a Client. An empty apiKey is allowed; queries then return the
// failure stand-in.
func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Context returns the top organic result snippets for query, joined by
// newlines. Failures never propagate: the caller always gets usable context
// text, possibly the explanatory stand-in.
func (c *Client) Context(ctx context.Context, query string) string {
	body, _ := json.Marshal(map[string]string{"q": query})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Error("search: build request failed", "err", err)
		return failureContext
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("search: request failed", "err", err)
		return failureContext
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("search: unexpected status", "status", resp.StatusCode)
		return failureContext
	}

	var data struct {
		Organic []struct {
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		slog.Error("search: decode response failed", "err", err)
		return failureContext
	}

	var snippets []string
	for _, r := range data.Organic {
		if len(snippets) >= maxSnippets {
			break
		}
		snippets = append(snippets, r.Snippet)
	}
	return strings.Join(snippets, "\n")
}
