package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"torrdrop/internal/config"
)

const userAgent = "torrdrop/0.1.0"

// Event identifies a notable lifecycle moment worth pushing to an operator.
type Event string

const (
	EventSubmitted    Event = "submitted"
	EventArchived     Event = "archived"
	EventQuarantined  Event = "quarantined"
	EventDaemonStart  Event = "daemon_start"
	EventDaemonStop   Event = "daemon_stop"
	EventEngineProbe  Event = "engine_probe_failed"
)

// Payload carries the free-form fields rendered into the message body.
type Payload map[string]string

// Service is the notification surface exposed to the daemon and loop.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no topic is configured, a noop implementation is returned.
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
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	title, message, priority := render(event, payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Title", title)
	req.Header.Set("Tags", "torrdrop,"+string(event))
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("ntfy returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func render(event Event, payload Payload) (title, message, priority string) {
	name := payload["name"]
	switch event {
	case EventSubmitted:
		return "torrdrop - Submitted", fmt.Sprintf("Sent %s to the download engine", name), ""
	case EventArchived:
		return "torrdrop - Archived", fmt.Sprintf("Archived %s", name), ""
	case EventQuarantined:
		reason := payload["reason"]
		if reason == "" {
			reason = "unknown reason"
		}
		return "torrdrop - Quarantined", fmt.Sprintf("Quarantined %s: %s", name, reason), "high"
	case EventDaemonStart:
		return "torrdrop - Started", "Watching " + payload["dir"], ""
	case EventDaemonStop:
		return "torrdrop - Stopped", "Daemon shut down", ""
	case EventEngineProbe:
		return "torrdrop - Engine unreachable", payload["error"], "high"
	default:
		return "torrdrop", string(event), ""
	}
}
