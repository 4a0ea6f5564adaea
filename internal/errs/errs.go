package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failure for retry/surface decisions.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNetwork
	KindAsset
	KindExport
	KindOwnership
	KindSerialization
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindAsset:
		return "asset"
	case KindExport:
		return "export"
	case KindOwnership:
		return "ownership"
	case KindSerialization:
		return "serialization"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// StatusError carries an HTTP status from a backend response.
type StatusError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http status %d", e.StatusCode)
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if IsNetwork(err) {
		return KindNetwork
	}
	return KindInternal
}

// IsNetwork reports whether err is a transient network-class failure:
// timeouts, connection errors and 5xx backend responses.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindNetwork {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"timeout", "connection refused", "connection reset", "no such host", "network", "broken pipe", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// Message extracts the most specific human-readable message available,
// walking nested errors and details. It never returns an empty string.
func Message(err error) string {
	if err == nil {
		return "unknown error"
	}

	var ae *Error
	if errors.As(err, &ae) {
		parts := make([]string, 0, 2)
		if ae.Message != "" {
			parts = append(parts, ae.Message)
		}
		if len(ae.Details) > 0 {
			parts = append(parts, strings.Join(ae.Details, "; "))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}

	var se *StatusError
	if errors.As(err, &se) {
		parts := make([]string, 0, 2)
		if se.Message != "" {
			parts = append(parts, se.Message)
		}
		if len(se.Details) > 0 {
			parts = append(parts, strings.Join(se.Details, "; "))
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "unknown error"
}

// UserMessage maps a failure to a non-technical message suitable for display.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNetwork:
		return "Connection error. Please check your internet and try again."
	case KindValidation, KindSerialization:
		return Message(err)
	case KindOwnership:
		return "You can only modify your own memes."
	case KindExport:
		return "Failed to generate the image. Please try again."
	default:
		return "Something went wrong. Please try again later."
	}
}
