package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tipflow/internal/config"
)

const userAgent = "tipflow/1"

// Event names a notification type.
type Event string

const (
	EventVideoResourceCreated Event = "video_resource_created"
	EventRunCompleted         Event = "run_completed"
	EventError                Event = "error"
	EventTest                 Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
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
		enabled: map[Event]bool{
			EventVideoResourceCreated: cfg.Notifications.VideoResource,
			EventRunCompleted:         cfg.Notifications.RunComplete,
			EventError:                cfg.Notifications.Errors,
			EventTest:                 true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventVideoResourceCreated:
		fileName := payload.text("fileName")
		if fileName == "" {
			fileName = "unnamed upload"
		}
		body := fmt.Sprintf("🎬 Video resource created: %s", fileName)
		if id := payload.text("videoResourceId"); id != "" {
			body = fmt.Sprintf("%s\nResource: %s", body, id)
		}
		return message{
			title: "tipflow - Video Uploaded",
			body:  body,
			tags:  []string{"tipflow", "video", "created"},
		}, true
	case EventRunCompleted:
		body := fmt.Sprintf("✅ Ingestion complete: %s", payload.fallback("fileName", "run "+payload.text("runId")))
		if asset := payload.text("muxAssetId"); asset != "" {
			body = fmt.Sprintf("%s\nAsset: %s", body, asset)
		}
		return message{
			title: "tipflow - Complete",
			body:  body,
			tags:  []string{"tipflow", "workflow", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		builder.WriteString(payload.fallback("error", "unknown"))
		return message{
			title:    "tipflow - Error",
			body:     builder.String(),
			tags:     []string{"tipflow", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "tipflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"tipflow", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) fallback(key, def string) string {
	if v := p.text(key); v != "" {
		return v
	}
	return def
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
