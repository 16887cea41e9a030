package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	To         string `json:"to"`
	Content    string `json:"content"`
	Attachment string `json:"attachment,omitempty"`
}

// WebhookTransport delivers messages by posting them to an HTTP endpoint.
type WebhookTransport struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookTransport(endpoint string) (*WebhookTransport, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookTransportWithClient(endpoint, client)
}

func NewWebhookTransportWithClient(endpoint string, client *resty.Client) (*WebhookTransport, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	// Retries belong to the dispatcher.
	client.SetRetryCount(0)

	return &WebhookTransport{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (p *WebhookTransport) Name() string {
	return "webhook"
}

func (p *WebhookTransport) Initialize(ctx context.Context) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("webhook transport is not configured")
	}
	return ctx.Err()
}

// Authenticate has no session to check; a configured endpoint is ready.
func (p *WebhookTransport) Authenticate(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p != nil && p.endpoint != "", nil
}

func (p *WebhookTransport) SendOne(ctx context.Context, contact, message, attachment string) (bool, error) {
	if p == nil || p.client == nil {
		return false, fmt.Errorf("webhook transport is not configured")
	}

	reqBody := webhookRequest{
		To:      contact,
		Content: message,
	}
	if attachment != "" {
		reqBody.Attachment = filepath.Base(attachment)
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(p.endpoint)
	if err != nil {
		return false, &DeliveryError{
			Contact:   contact,
			Reason:    ReasonUnavailable,
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return false, &DeliveryError{
			Contact:   contact,
			Reason:    ReasonUnavailable,
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return true, nil
	}

	reason := ReasonRejected
	if isTransientHTTPStatus(statusCode) {
		reason = ReasonUnavailable
	}

	return false, &DeliveryError{
		Contact:    contact,
		Reason:     reason,
		StatusCode: statusCode,
		Message:    webhookErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func (p *WebhookTransport) Close() error {
	return nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func webhookErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
