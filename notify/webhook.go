package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stepchain/stepchain/config"
)

// ============================================================================
// WEBHOOK NOTIFIER
// ============================================================================

// WebhookNotifier delivers notices as JSON documents POSTed to an endpoint
type WebhookNotifier struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(name, url string, timeout time.Duration) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		name: name,
		url:  url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewWebhookNotifierFromConfig creates a webhook notifier from configuration
func NewWebhookNotifierFromConfig(name string, cfg *config.NotifierConfig) *WebhookNotifier {
	return NewWebhookNotifier(name, cfg.URL, cfg.Timeout.Duration())
}

// Name implements Notifier.Name
func (w *WebhookNotifier) Name() string {
	return w.name
}

// NotifySuccess implements Notifier.NotifySuccess
func (w *WebhookNotifier) NotifySuccess(ctx context.Context, notice *SuccessNotice) error {
	return w.post(ctx, map[string]interface{}{
		"subject":     notice.Subject(),
		"message":     notice.Message(),
		"environment": notice.Environment,
		"pipeline":    notice.Pipeline,
		"run_id":      notice.RunID,
		"status":      "success",
	})
}

// NotifyFailure implements Notifier.NotifyFailure
func (w *WebhookNotifier) NotifyFailure(ctx context.Context, notice *FailureNotice) error {
	return w.post(ctx, map[string]interface{}{
		"subject":      notice.Subject(),
		"message":      notice.Message(),
		"environment":  notice.Environment,
		"pipeline":     notice.Pipeline,
		"run_id":       notice.RunID,
		"failing_step": notice.FailingStep,
		"status":       "failed",
	})
}

func (w *WebhookNotifier) post(ctx context.Context, doc map[string]interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification rejected: %s - %s", resp.Status, string(respBody))
	}

	return nil
}
