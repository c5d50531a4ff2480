package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podscribe/internal/config"
)

const userAgent = "podscribe/0.1.0"

// Service defines the notification surface exposed to the pipeline and CLI.
type Service interface {
	NotifyEpisodeTranscribed(ctx context.Context, title, date string) error
	NotifyEpisodeFailed(ctx context.Context, title string, err error) error
	NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		episodes: cfg.Notifications.Episodes,
		run:      cfg.Notifications.Run,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	episodes bool
	run      bool
	errors   bool
}

func (n *ntfyService) NotifyEpisodeTranscribed(ctx context.Context, title, date string) error {
	if !n.episodes {
		return nil
	}
	message := fmt.Sprintf("📝 Transcribed: %s", strings.TrimSpace(title))
	if date = strings.TrimSpace(date); date != "" {
		message = fmt.Sprintf("%s (%s)", message, date)
	}
	return n.send(ctx, payload{
		title:   "Podscribe - Episode Transcribed",
		message: message,
		tags:    []string{"podscribe", "episode", "transcribed"},
	})
}

func (n *ntfyService) NotifyEpisodeFailed(ctx context.Context, title string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Failed: ")
	builder.WriteString(strings.TrimSpace(title))
	builder.WriteString("\n")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown error")
	}
	return n.send(ctx, payload{
		title:    "Podscribe - Episode Failed",
		message:  builder.String(),
		tags:     []string{"podscribe", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, succeeded, failed int, duration time.Duration) error {
	if !n.run {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "Podscribe - Run Complete"
	message := fmt.Sprintf("Run complete: %d episodes transcribed in %s", succeeded, duration)
	if failed > 0 {
		title = "Podscribe - Run Complete (with errors)"
		message = fmt.Sprintf("Run complete: %d succeeded, %d failed in %s", succeeded, failed, duration)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"podscribe", "run", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Podscribe - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"podscribe", "test"},
		priority: "low",
	})
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

func (noopService) NotifyEpisodeTranscribed(context.Context, string, string) error { return nil }
func (noopService) NotifyEpisodeFailed(context.Context, string, error) error       { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }

// IsNoop reports whether svc discards every notification.
func IsNoop(svc Service) bool {
	_, ok := svc.(noopService)
	return ok
}
