// Package caption obtains short descriptive captions for images from an
// external image-understanding service.
package caption

import (
	"context"
	"errors"
	"fmt"
)

// Provider returns a short description of an encoded image in the given language.
// The text is free-form and must be sanitized before use as a file name.
type Provider interface {
	Caption(ctx context.Context, image []byte, lang string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, image []byte, lang string) (string, error)

// Caption calls f.
func (f ProviderFunc) Caption(ctx context.Context, image []byte, lang string) (string, error) {
	return f(ctx, image, lang)
}

// Kind classifies caption failures.
type Kind string

const (
	KindRequest   Kind = "request"   // request could not be built
	KindTransport Kind = "transport" // network failure, timeout or cancellation
	KindAuth      Kind = "auth"      // credential rejected
	KindStatus    Kind = "status"    // any other non-2xx response
	KindMalformed Kind = "malformed" // response body could not be understood
	KindEmpty     Kind = "empty"     // response carried no caption text
)

// Error is the failure variant of a caption request.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("caption %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a caption Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind == kind
	}
	return false
}
