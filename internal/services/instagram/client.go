// Package instagram publishes media through a Graph-style two-step API: a
// container is created from the media upload, then the container is published.
// The post identifier returned by the publish step is the platform's
// confirmation; only after it arrives does the pipeline record the publish.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapflow/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second

	stageName = "publishing"
)

// Config captures the publishing endpoint settings. Credentials travel with
// each request instead, so a per-user credential model is a caller change.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the publish API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a publish client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://graph.instagram.com/v21.0"
	}
	return client
}

type containerResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Publish uploads one media file with its caption and confirms publication.
// The returned post identifier comes from the publish step, never the upload
// step, so a crash between the two cannot count as a publish.
func (c *Client) Publish(ctx context.Context, req services.PublishRequest) (services.PublishResult, error) {
	var empty services.PublishResult
	if strings.TrimSpace(req.Credentials.AccessToken) == "" || strings.TrimSpace(req.Credentials.AccountID) == "" {
		return empty, services.Wrap(services.ErrConfiguration, stageName, "publish", "account id and access token required", nil)
	}

	containerID, err := c.createContainer(ctx, req)
	if err != nil {
		return empty, err
	}

	postID, err := c.publishContainer(ctx, req.Credentials, containerID)
	if err != nil {
		return empty, err
	}
	return services.PublishResult{PostID: postID}, nil
}

// createContainer uploads the media and caption, returning the container id.
func (c *Client) createContainer(ctx context.Context, req services.PublishRequest) (string, error) {
	file, err := os.Open(req.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", services.Wrap(services.ErrPermanent, stageName, "create container", "media file missing", err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "create container", "open media file", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("source", filepath.Base(req.FilePath))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "create container", "build upload", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "create container", "read media file", err)
	}
	fields := map[string]string{
		"caption":    req.Caption,
		"media_type": mediaType(req.MediaKind),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", services.Wrap(services.ErrTransient, stageName, "create container", "build upload", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "create container", "build upload", err)
	}

	endpoint := fmt.Sprintf("%s/%s/media", c.cfg.BaseURL, req.Credentials.AccountID)
	resp, err := c.post(ctx, req.Credentials, endpoint, writer.FormDataContentType(), &body, "create container")
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "create container", "no container id in response", nil)
	}
	return resp.ID, nil
}

// publishContainer turns a container into a live post.
func (c *Client) publishContainer(ctx context.Context, creds services.Credentials, containerID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"creation_id": containerID})
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stageName, "publish container", "encode request", err)
	}
	endpoint := fmt.Sprintf("%s/%s/media_publish", c.cfg.BaseURL, creds.AccountID)
	resp, err := c.post(ctx, creds, endpoint, "application/json", bytes.NewReader(payload), "publish container")
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "publish container", "no post id in response", nil)
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, creds services.Credentials, endpoint, contentType string, body io.Reader, op string) (containerResponse, error) {
	var parsed containerResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return parsed, services.Wrap(services.ErrConfiguration, stageName, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return parsed, services.Wrap(services.ErrTransient, stageName, op, "request timed out", err)
		}
		return parsed, services.Wrap(services.ErrTransient, stageName, op, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return parsed, services.Wrap(services.ErrTransient, stageName, op, "read response", err)
	}
	if err := classifyStatus(resp.StatusCode, raw, op); err != nil {
		return parsed, err
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, services.Wrap(services.ErrTransient, stageName, op, "decode response", err)
	}
	if parsed.Error != nil {
		return parsed, services.Wrap(services.ErrTransient, stageName, op, strings.TrimSpace(parsed.Error.Message), nil)
	}
	return parsed, nil
}

func classifyStatus(status int, body []byte, op string) error {
	if status < http.StatusMultipleChoices {
		return nil
	}
	detail := fmt.Sprintf("http %d: %s", status, summarizeBody(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrPermanent, stageName, op, detail, nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrRateLimited, stageName, op, detail, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stageName, op, detail, nil)
	default:
		return services.Wrap(services.ErrPermanent, stageName, op, detail, nil)
	}
}

func mediaType(kind string) string {
	if kind == "video" {
		return "REELS"
	}
	return "IMAGE"
}

func summarizeBody(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
