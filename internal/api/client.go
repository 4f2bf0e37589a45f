package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon bound at addr (host:port). The
// token may be empty when the API runs unauthenticated.
func NewClient(addr, token string) *Client {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Health checks whether the daemon is reachable and running.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.get(ctx, "/api/health", nil, &out)
	return out, err
}

// Status fetches the daemon status snapshot.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.get(ctx, "/api/status", nil, &out)
	return out, err
}

// Queue lists work items, optionally filtered by stage and user.
func (c *Client) Queue(ctx context.Context, stage, user string) ([]QueueItem, error) {
	query := url.Values{}
	if stage != "" {
		query.Set("stage", stage)
	}
	if user != "" {
		query.Set("user", user)
	}
	var out QueueListResponse
	if err := c.get(ctx, "/api/queue", query, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// History lists archived outcomes for a user, newest first.
func (c *Client) History(ctx context.Context, user string, limit int) ([]HistoryEntry, error) {
	query := url.Values{}
	if user != "" {
		query.Set("user", user)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	if err := c.get(ctx, "/api/history", query, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon api %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("daemon api %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode api response: %w", err)
	}
	return nil
}
