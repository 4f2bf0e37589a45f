// Package caption generates platform-ready captions from content analysis:
// an LLM writes the body text in the user's configured style, then hashtags
// are assembled deterministically from the content category and labels.
package caption

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"snapflow/internal/services"
	"snapflow/internal/textutil"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxLength   = 2200

	stageName = "captioning"
)

const systemPrompt = "You are an expert social media content creator who writes engaging captions that drive engagement and provide value to followers."

var (
	captionPrefixPattern = regexp.MustCompile(`^Caption:\s*`)
	mentionPattern       = regexp.MustCompile(`[#@]`)
)

// Config captures the runtime settings for caption generation.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	UseHashtags    bool
	MaxHashtags    int
	TimeoutSeconds int
}

// Client wraps a chat completion API for caption text. One request per call;
// retries belong to the pipeline.
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

// NewClient constructs a caption client using the supplied configuration.
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
			Temperature:    cfg.Temperature,
			UseHashtags:    cfg.UseHashtags,
			MaxHashtags:    cfg.MaxHashtags,
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
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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

// GenerateCaption produces the final caption for one item: model-written body
// text, a stable engagement line for engaging-style users, and the hashtag
// block, truncated to the platform limit at a word boundary.
func (c *Client) GenerateCaption(ctx context.Context, req services.CaptionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "generate", "api key required", nil)
	}
	if len(req.Analysis.Labels) == 0 {
		return "", services.Wrap(services.ErrPermanent, stageName, "generate", "no analysis labels", nil)
	}

	category := req.Analysis.Category
	if category == "" {
		category = "general"
	}
	mediaKind := req.MediaKind
	if mediaKind == "" {
		mediaKind = "post"
	}
	style := NormalizeStyle(req.Style)

	body, err := c.complete(ctx, buildPrompt(req.Analysis.Labels, category, mediaKind, style))
	if err != nil {
		return "", err
	}

	text := cleanModelCaption(body)
	if text == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "generate", "model returned empty caption", nil)
	}

	if style == StyleEngaging {
		text = text + " " + engagementSuffix(req.User+"|"+req.Analysis.Labels[0])
	}
	if c.cfg.UseHashtags {
		if tags := BuildHashtags(category, req.Analysis.Labels, c.cfg.MaxHashtags); tags != "" {
			text = text + "\n\n" + tags
		}
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	return textutil.TruncateCaption(text, maxLength), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   300,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stageName, "generate", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "generate", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTransient, stageName, "generate", "request timed out", err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "generate", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "generate", "read response", err)
	}
	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		return "", err
	}

	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "generate", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "generate", strings.TrimSpace(completion.Error.Message), nil)
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, stageName, "generate", "empty completion", nil)
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
		return services.Wrap(services.ErrPermanent, stageName, "generate", detail, nil)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, stageName, "generate", detail, nil)
	default:
		return services.Wrap(services.ErrPermanent, stageName, "generate", detail, nil)
	}
}

// cleanModelCaption strips the prompt echo and any hashtags or mentions the
// model emitted despite instructions; those are assembled separately.
func cleanModelCaption(text string) string {
	text = strings.TrimSpace(text)
	text = captionPrefixPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
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
