package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicebox/internal/config"
)

const userAgent = "Voicebox-Go/0.1.0"

// Service defines the notification surface exposed to import and playback
// components.
type Service interface {
	NotifyImportStarted(ctx context.Context, source string) error
	NotifyImportCompleted(ctx context.Context, packTitle string, voices int) error
	NotifyImportFailed(ctx context.Context, source, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		importEvents: cfg.Notifications.Imports,
		errorEvents:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	importEvents bool
	errorEvents  bool
}

func (n *ntfyService) NotifyImportStarted(ctx context.Context, source string) error {
	if !n.importEvents {
		return nil
	}
	source = strings.TrimSpace(source)
	data := payload{
		title:   "Voicebox - Import Started",
		message: fmt.Sprintf("Importing voice pack from %s", source),
		tags:    []string{"voicebox", "import", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, packTitle string, voices int) error {
	if !n.importEvents {
		return nil
	}
	packTitle = strings.TrimSpace(packTitle)
	data := payload{
		title:    "Voicebox - Import Complete",
		message:  fmt.Sprintf("Voice pack ready: %s (%d voices)", packTitle, voices),
		tags:     []string{"voicebox", "import", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportFailed(ctx context.Context, source, reason string) error {
	if !n.importEvents {
		return nil
	}
	source = strings.TrimSpace(source)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Voicebox - Import Failed",
		message:  fmt.Sprintf("Import from %s failed: %s", source, reason),
		tags:     []string{"voicebox", "import", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorEvents {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Voicebox - Error",
		message:  builder.String(),
		tags:     []string{"voicebox", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Voicebox - Test",
		message:  "Notification system test",
		tags:     []string{"voicebox", "test"},
		priority: "low",
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

func (noopService) NotifyImportStarted(context.Context, string) error        { return nil }
func (noopService) NotifyImportCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifyImportFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
