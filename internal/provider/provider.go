package provider

import (
	"context"
)

// Transport is the outbound message delivery port. Implementations are used
// by a single worker at a time and need not be safe for concurrent SendOne.
type Transport interface {
	// Initialize acquires the underlying session resources.
	Initialize(ctx context.Context) error
	// Authenticate reports whether the session is logged in and ready to send.
	Authenticate(ctx context.Context) (bool, error)
	// SendOne delivers message (and the optional attachment path) to contact.
	// (false, nil) is a soft failure the caller may retry.
	SendOne(ctx context.Context, contact, message, attachment string) (bool, error)
	Close() error
}

// Named is implemented by transports that report a label for metrics and logs.
type Named interface {
	Name() string
}

// NameOf returns the transport label, or "unknown".
func NameOf(t Transport) string {
	if named, ok := t.(Named); ok {
		return named.Name()
	}
	return "unknown"
}
