package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"creatorhub-settlement/pkg/config"

	"go.uber.org/zap"
)

// Notice carries everything the outbound webhook needs to message a
// creator about a settled reward.
type Notice struct {
	TemplateID      string                 `json:"templateId"`
	ContactChannels []string               `json:"contactChannels"`
	Variables       map[string]interface{} `json:"variables"`
}

// Dispatcher delivers creator-facing notifications. Implementations are
// best-effort: settlement never depends on delivery succeeding.
type Dispatcher interface {
	Send(ctx context.Context, n Notice) error
}

// NewDispatcher picks the webhook dispatcher when a URL is configured and
// a logging no-op otherwise, so environments without messaging still run.
func NewDispatcher(cfg *config.Config) Dispatcher {
	if cfg.Notify.WebhookURL == "" {
		return noopDispatcher{}
	}
	return &WebhookDispatcher{
		url:    cfg.Notify.WebhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// WebhookDispatcher posts notices as JSON to the configured messaging
// webhook.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

func (d *WebhookDispatcher) Send(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}

type noopDispatcher struct{}

func (noopDispatcher) Send(_ context.Context, n Notice) error {
	zap.L().Info("[Notify] webhook not configured, dropping notice",
		zap.String("template_id", n.TemplateID),
		zap.Int("channels", len(n.ContactChannels)))
	return nil
}
