package monitoring

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"snapflow/internal/config"
)

const userAgent = "Snapflow-Go/0.1.0"

// Notifier defines the push notification surface exposed to the scheduler.
type Notifier interface {
	NotifyPublished(ctx context.Context, user, fileName, postID string) error
	NotifyItemFailed(ctx context.Context, user, fileName, stage string, cause error) error
	NotifyQueueDrained(ctx context.Context, succeeded, failed int) error
	TestNotification(ctx context.Context) error
}

// NewNotifier builds a notifier backed by ntfy when configured. When no topic
// is configured, a noop implementation is returned.
func NewNotifier(cfg *config.Config) Notifier {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyNotifier{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		published:    cfg.Notifications.Published,
		failures:     cfg.Notifications.Failures,
		queueDrained: cfg.Notifications.QueueDrained,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyNotifier struct {
	endpoint     string
	client       *http.Client
	published    bool
	failures     bool
	queueDrained bool
}

func (n *ntfyNotifier) NotifyPublished(ctx context.Context, user, fileName, postID string) error {
	if !n.published {
		return nil
	}
	user = strings.TrimSpace(user)
	fileName = strings.TrimSpace(fileName)
	message := fmt.Sprintf("Published for %s: %s", user, fileName)
	if postID = strings.TrimSpace(postID); postID != "" {
		message = fmt.Sprintf("%s\nPost: %s", message, postID)
	}
	data := payload{
		title:   "Snapflow - Published",
		message: message,
		tags:    []string{"snapflow", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) NotifyItemFailed(ctx context.Context, user, fileName, stage string, cause error) error {
	if !n.failures {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Failed at %s for %s: %s", strings.TrimSpace(stage), strings.TrimSpace(user), strings.TrimSpace(fileName))
	if cause != nil {
		builder.WriteString("\n")
		builder.WriteString(strings.TrimSpace(cause.Error()))
	}
	data := payload{
		title:    "Snapflow - Item Failed",
		message:  builder.String(),
		tags:     []string{"snapflow", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) NotifyQueueDrained(ctx context.Context, succeeded, failed int) error {
	if !n.queueDrained {
		return nil
	}
	var title, message string
	if failed == 0 {
		title = "Snapflow - Queue Drained"
		message = fmt.Sprintf("Queue drained: %d items published", succeeded)
	} else {
		title = "Snapflow - Queue Drained (with errors)"
		message = fmt.Sprintf("Queue drained: %d published, %d failed", succeeded, failed)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"snapflow", "queue", "drained"},
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Snapflow - Test",
		message:  "Notification system test",
		tags:     []string{"snapflow", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyNotifier) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyPublished(context.Context, string, string, string) error {
	return nil
}

func (noopNotifier) NotifyItemFailed(context.Context, string, string, string, error) error {
	return nil
}

func (noopNotifier) NotifyQueueDrained(context.Context, int, int) error {
	return nil
}

func (noopNotifier) TestNotification(context.Context) error {
	return nil
}
