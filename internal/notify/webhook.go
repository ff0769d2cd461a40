package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook posts rendered messages to a Discord-compatible webhook as
// {"content": "..."}.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. An empty URL disables delivery
// entirely; use the returned Notifier either way.
func NewWebhook(url string, timeout time.Duration) Notifier {
	if url == "" {
		return Nop{}
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify renders and posts the message.
func (w *Webhook) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(map[string]string{"content": msg.Render()})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (w *Webhook) Close() {}
