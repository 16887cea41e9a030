package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

func TestWebhookTransportSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody webhookRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	p, err := NewWebhookTransport(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookTransport() error = %v", err)
	}

	ctx := context.Background()
	if err := p.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	ok, err := p.Authenticate(ctx)
	if err != nil || !ok {
		t.Fatalf("Authenticate() = %v, %v; want true, nil", ok, err)
	}

	sent, err := p.SendOne(ctx, "905551112233", "hello", "/tmp/uploads/attachment_1_menu.pdf")
	if err != nil {
		t.Fatalf("SendOne() unexpected error: %v", err)
	}
	if !sent {
		t.Fatal("SendOne() = false, want true")
	}

	if gotBody.To != "905551112233" {
		t.Fatalf("request.to = %q, want %q", gotBody.To, "905551112233")
	}
	if gotBody.Content != "hello" {
		t.Fatalf("request.content = %q, want %q", gotBody.Content, "hello")
	}
	if gotBody.Attachment != "attachment_1_menu.pdf" {
		t.Fatalf("request.attachment = %q, want %q", gotBody.Attachment, "attachment_1_menu.pdf")
	}
}

func TestWebhookTransportSendStatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		wantTransient bool
		wantReason    string
	}{
		{name: "too many requests is transient", statusCode: http.StatusTooManyRequests, wantTransient: true, wantReason: ReasonUnavailable},
		{name: "bad request is permanent", statusCode: http.StatusBadRequest, wantTransient: false, wantReason: ReasonRejected},
		{name: "internal server error is transient", statusCode: http.StatusInternalServerError, wantTransient: true, wantReason: ReasonUnavailable},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte("webhook failed"))
			}))
			defer server.Close()

			p, err := NewWebhookTransport(server.URL)
			if err != nil {
				t.Fatalf("NewWebhookTransport() error = %v", err)
			}

			sent, err := p.SendOne(context.Background(), "905551112233", "hello", "")
			if err == nil || sent {
				t.Fatalf("SendOne() = %v, %v; want false, error", sent, err)
			}

			if got := IsTransient(err); got != tc.wantTransient {
				t.Fatalf("IsTransient() = %v, want %v", got, tc.wantTransient)
			}
			if !errors.Is(err, domain.ErrDelivery) {
				t.Fatalf("errors.Is(err, ErrDelivery) = false (err=%v)", err)
			}

			var deliveryErr *DeliveryError
			if !errors.As(err, &deliveryErr) {
				t.Fatalf("expected DeliveryError, got %T", err)
			}
			if deliveryErr.StatusCode != tc.statusCode {
				t.Fatalf("DeliveryError.StatusCode = %d, want %d", deliveryErr.StatusCode, tc.statusCode)
			}
			if got := ReasonOf(err); got != tc.wantReason {
				t.Fatalf("ReasonOf() = %q, want %q", got, tc.wantReason)
			}
		})
	}
}

func TestWebhookTransportSendTimeoutIsTransient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := resty.New()
	client.SetTimeout(30 * time.Millisecond)

	p, err := NewWebhookTransportWithClient(server.URL, client)
	if err != nil {
		t.Fatalf("NewWebhookTransportWithClient() error = %v", err)
	}

	_, err = p.SendOne(context.Background(), "905551112233", "hello", "")
	if err == nil {
		t.Fatal("expected timeout error")
	}

	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestNewWebhookTransportValidation(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "   ", "not a url"} {
		if _, err := NewWebhookTransport(endpoint); err == nil {
			t.Fatalf("NewWebhookTransport(%q) error = nil, want error", endpoint)
		}
	}
	if _, err := NewWebhookTransportWithClient("http://example.com", nil); err == nil {
		t.Fatal("NewWebhookTransportWithClient(nil client) error = nil, want error")
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "permanent delivery error", err: &DeliveryError{Reason: ReasonNotRegistered}, want: false},
		{name: "transient delivery error", err: &DeliveryError{Reason: ReasonChatTimeout, Transient: true}, want: true},
		{name: "unclassified", err: errors.New("boom"), want: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestNameOf(t *testing.T) {
	t.Parallel()

	p, err := NewWebhookTransport("http://example.com/hook")
	if err != nil {
		t.Fatalf("NewWebhookTransport() error = %v", err)
	}
	if got := NameOf(p); got != "webhook" {
		t.Fatalf("NameOf() = %q, want %q", got, "webhook")
	}
}
