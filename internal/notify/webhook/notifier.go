// Package webhook posts run summaries as JSON to an HTTP endpoint.
package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/eop-tender-crawler/internal/notify"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 10 * time.Second

// Notifier delivers summaries with resty.
type Notifier struct {
	url    string
	client *resty.Client
}

// New returns a Notifier posting to url.
func New(url string, timeout time.Duration) (*Notifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "eop-tender-crawler")
	return &Notifier{url: url, client: client}, nil
}

// Notify posts the summary and requires a 2xx answer.
func (n *Notifier) Notify(ctx context.Context, summary notify.Summary) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(summary).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook returned %s: %s", resp.Status(), strings.TrimSpace(resp.String()))
	}
	return nil
}
