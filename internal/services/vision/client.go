// Package vision analyzes media files through an OpenAI-compatible vision
// endpoint, returning descriptive labels with confidence scores and a content
// category used downstream for caption styling and hashtags.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapflow/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// stage name used in wrapped errors.
const stageName = "analyzing"

// Config captures the runtime settings required to talk to the vision model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps the vision chat completion API. It makes exactly one request
// per Analyze call; the retry budget belongs to the pipeline, not the adapter.
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

// NewClient constructs a vision client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1/chat/completions"
	}
	return client
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *mediaURL `json:"image_url,omitempty"`
	VideoURL *mediaURL `json:"video_url,omitempty"`
}

type mediaURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type analysisPayload struct {
	Labels     []string           `json:"labels"`
	Confidence map[string]float64 `json:"confidence"`
	Category   string             `json:"category"`
}

// Analyze inspects one media file. The file is inlined as a base64 data URI;
// oversized files never reach this adapter because the scanner enforces size
// limits at admission.
func (c *Client) Analyze(ctx context.Context, filePath, mediaKind string) (services.Analysis, error) {
	var empty services.Analysis
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, stageName, "analyze", "api key required", nil)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, services.Wrap(services.ErrPermanent, stageName, "analyze", "media file missing", err)
		}
		return empty, services.Wrap(services.ErrTransient, stageName, "analyze", "read media file", err)
	}

	payload := chatRequest{
		Model:          c.cfg.Model,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: userContent(filePath, mediaKind, data)},
		},
	}

	body, err := c.send(ctx, payload)
	if err != nil {
		return empty, err
	}

	var parsed analysisPayload
	if err := decodeModelJSON(body, &parsed); err != nil {
		// A garbled response is worth another attempt against the same model.
		return empty, services.Wrap(services.ErrTransient, stageName, "analyze", "parse analysis payload", err)
	}

	analysis := services.Analysis{
		Labels:     normalizeLabels(parsed.Labels),
		Confidence: parsed.Confidence,
		Category:   normalizeCategory(parsed.Category),
	}
	if len(analysis.Labels) == 0 {
		return empty, services.Wrap(services.ErrTransient, stageName, "analyze", "model returned no labels", nil)
	}
	return analysis, nil
}

func userContent(filePath, mediaKind string, data []byte) []contentPart {
	uri := dataURI(filePath, mediaKind, data)
	media := contentPart{Type: "image_url", ImageURL: &mediaURL{URL: uri}}
	if mediaKind == "video" {
		media = contentPart{Type: "video_url", VideoURL: &mediaURL{URL: uri}}
	}
	return []contentPart{
		{Type: "text", Text: fmt.Sprintf("Analyze this %s.", mediaKind)},
		media,
	}
}

func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stageName, "analyze", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "analyze", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTransient, stageName, "analyze", "request timed out", err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "analyze", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "analyze", "read response", err)
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "analyze", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "analyze", strings.TrimSpace(completion.Error.Message), nil)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "analyze", "empty completion", nil)
	}
	return completion.Choices[0].Message.Content, nil
}

func classifyStatus(status int, body []byte) error {
	if status < http.StatusMultipleChoices {
		return nil
	}
	detail := fmt.Sprintf("http %d: %s", status, summarizeBody(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrPermanent, stageName, "analyze", detail, nil)
	case status == http.StatusTooManyRequests:
		return services.Wrap(services.ErrTransient, stageName, "analyze", detail, nil)
	case status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stageName, "analyze", detail, nil)
	default:
		return services.Wrap(services.ErrPermanent, stageName, "analyze", detail, nil)
	}
}

func dataURI(filePath, mediaKind string, data []byte) string {
	mime := mimeType(filePath, mediaKind)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func mimeType(filePath, mediaKind string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	}
	if mediaKind == "video" {
		return "video/mp4"
	}
	return "image/jpeg"
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "general"
	}
	for _, known := range ContentCategories {
		if category == known {
			return category
		}
	}
	return "general"
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

// decodeModelJSON decodes JSON from a model response, tolerating code fences
// and leading prose.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return json.Unmarshal([]byte(trimmed[start:end+1]), target)
		}
	}
	return fmt.Errorf("no JSON object in payload: %s", summarizeBody([]byte(trimmed)))
}
