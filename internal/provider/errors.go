package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

// Reasons attached to DeliveryError. They double as metric labels.
const (
	ReasonNotRegistered = "not_registered"
	ReasonChatTimeout   = "chat_timeout"
	ReasonUploadTimeout = "upload_timeout"
	ReasonRejected      = "rejected"
	ReasonUnavailable   = "unavailable"
	ReasonSession       = "session"
	ReasonNotSent       = "not_sent"
)

// DeliveryError classifies a failed delivery as transient/permanent.
type DeliveryError struct {
	Contact    string
	Reason     string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 5)
	parts = append(parts, "delivery failed")

	if e.Contact != "" {
		parts = append(parts, "contact="+e.Contact)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause != nil {
		return e.Cause
	}
	return domain.ErrDelivery
}

// Is makes every DeliveryError match domain.ErrDelivery.
func (e *DeliveryError) Is(target error) bool {
	return target == domain.ErrDelivery
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return deliveryErr.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// Unclassified errors are retried; the attempt budget bounds them.
	return true
}

// ReasonOf returns the failure reason label for err.
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && deliveryErr.Reason != "" {
		return deliveryErr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
