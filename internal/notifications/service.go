package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"setlist/internal/config"
)

const userAgent = "Setlist/0.1.0"

// Service defines the notification surface exposed to scan and watch
// components.
type Service interface {
	NotifyScanCompleted(ctx context.Context, root string, projects, exports int, duration time.Duration) error
	NotifyScanFailed(ctx context.Context, root string, err error) error
	NotifyLocationDegraded(ctx context.Context, root string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.ScanComplete,
		failures:  cfg.Notifications.Errors,
		degraded:  cfg.Notifications.Degraded,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failures  bool
	degraded  bool
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, root string, projects, exports int, duration time.Duration) error {
	if !n.completed {
		return nil
	}
	data := payload{
		title: "Setlist - Scan Complete",
		message: fmt.Sprintf("Indexed %d projects and %d exports under %s in %s",
			projects, exports, root, duration.Round(time.Second)),
		tags: []string{"setlist", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanFailed(ctx context.Context, root string, err error) error {
	if !n.failures {
		return nil
	}
	data := payload{
		title:    "Setlist - Scan Failed",
		message:  fmt.Sprintf("Scan of %s failed: %v", root, err),
		tags:     []string{"setlist", "scan", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLocationDegraded(ctx context.Context, root string) error {
	if !n.degraded {
		return nil
	}
	data := payload{
		title:    "Setlist - Location Degraded",
		message:  fmt.Sprintf("Watching %s keeps failing; the index may fall behind until it recovers", root),
		tags:     []string{"setlist", "watch", "degraded"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Setlist - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"setlist", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

type noopService struct{}

func (noopService) NotifyScanCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyScanFailed(context.Context, string, error) error { return nil }
func (noopService) NotifyLocationDegraded(context.Context, string) error  { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
