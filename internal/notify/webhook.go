package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emergenceguard/emergenceguard/internal/config"
	"github.com/emergenceguard/emergenceguard/internal/emergency"
)

const httpTimeout = 10 * time.Second

// Notifier delivers emergency events to configured webhook targets. It
// implements emergency.Sink, so delivery shares the controller's bounded
// write timeout and fault accounting.
type Notifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client
}

// New creates a Notifier for the given webhook targets. A Notifier with no
// targets is valid; Persist becomes a no-op.
func New(webhooks []config.WebhookConfig) *Notifier {
	return &Notifier{
		webhooks: webhooks,
		client:   &http.Client{Timeout: httpTimeout},
	}
}

// Name labels the notifier in controller fault logs.
func (n *Notifier) Name() string { return "webhook" }

// Persist delivers ev to every configured webhook. Individual delivery
// failures are logged and joined into the returned error; one unreachable
// target does not stop delivery to the rest.
func (n *Notifier) Persist(ctx context.Context, ev *emergency.Event) error {
	var errs []error
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Warn("notify: webhook url env unset, skipping", "type", wh.Type, "env", wh.URLEnv)
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = n.sendSlack(ctx, url, ev)
		case "teams":
			err = n.sendTeams(ctx, url, ev)
		default: // "http"
			err = n.sendHTTP(ctx, url, ev)
		}

		if err != nil {
			slog.Error("notify: webhook delivery failed", "type", wh.Type, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", wh.Type, err))
		} else {
			slog.Debug("notify: webhook delivered", "type", wh.Type, "event_id", ev.ID)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) sendSlack(ctx context.Context, url string, ev *emergency.Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[EMERGENCY]* shutdown triggered: %s (κ=%.3f, ε=%.3f, seq=%d)",
			ev.Verdict, ev.Sample.Kappa, ev.Sample.Epsilon, ev.Sample.Sequence),
	})
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, ev *emergency.Event) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "FF4F6A",
		"summary":    string(ev.Verdict),
		"title":      "Emergence Guard: emergency shutdown",
		"text": fmt.Sprintf("%s at sequence %d (κ=%.3f, ε=%.3f)",
			ev.Verdict, ev.Sample.Sequence, ev.Sample.Kappa, ev.Sample.Epsilon),
	}
	body, _ := json.Marshal(payload)
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, ev *emergency.Event) error {
	body, _ := json.Marshal(map[string]interface{}{"event": ev})
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
