// Package sync implements the offline-first reconciliation engine: it pulls
// full snapshots and incremental feeds from a remote webhook, merges them into
// the local store, and pushes local mutations outward on a best-effort basis.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kitty/internal/core"
	"kitty/internal/store"
)

// Client talks to the remote endpoint described by the webhook contract:
// GET ?full=1 for a snapshot, GET ?entries=1&since=<watermark> for the
// incremental feed, POST for entry and backup pushes.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for the given endpoint. An empty endpoint yields
// a disabled client: Enabled reports false and callers skip all remote work.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether a remote endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Snapshot is the remote's full copy of configuration and history. Records
// arrive in heterogeneous shapes and are normalized by the caller.
type Snapshot struct {
	Config       *core.Config      `json:"config"`
	Transactions []json.RawMessage `json:"transactions"`
}

// FetchSnapshot pulls the full snapshot (GET ?full=1).
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.getJSON(ctx, url.Values{"full": {"1"}}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

type entriesResponse struct {
	Data []json.RawMessage `json:"data"`
	TS   string            `json:"ts"`
}

// FetchEntries pulls the incremental feed since the given watermark; an empty
// watermark requests everything. It returns the raw records and the server's
// new watermark.
func (c *Client) FetchEntries(ctx context.Context, since string) ([]json.RawMessage, string, error) {
	q := url.Values{"entries": {"1"}}
	if since != "" {
		q.Set("since", since)
	}
	var resp entriesResponse
	if err := c.getJSON(ctx, q, &resp); err != nil {
		return nil, "", err
	}
	return resp.Data, resp.TS, nil
}

// PushEntry sends one transaction. The response body is not inspected beyond
// the status code: the remote is write-only on this path.
func (c *Client) PushEntry(ctx context.Context, tx core.Transaction) error {
	return c.postJSON(ctx, map[string]any{"type": "entry", "entry": tx})
}

// PushBackup sends a full backup document.
func (c *Client) PushBackup(ctx context.Context, doc store.Document) error {
	return c.postJSON(ctx, doc)
}

func (c *Client) getJSON(ctx context.Context, q url.Values, out any) error {
	u := c.endpoint
	if strings.Contains(u, "?") {
		u += "&" + q.Encode()
	} else {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote get: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote post: unexpected status %d", resp.StatusCode)
	}
	return nil
}
