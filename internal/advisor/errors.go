package advisor

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrNotConfigured      = errors.New("advisor: AI service not configured")
	ErrServiceUnavailable = errors.New("advisor: AI service unavailable")
	ErrContentFiltered    = errors.New("advisor: content filtered by safety settings")
	ErrTruncated          = errors.New("advisor: response truncated")
	ErrNoMessages         = errors.New("advisor: messages are required")
)

// Kind classifies an advisor failure.
type Kind int

const (
	KindNotConfigured Kind = iota
	KindServiceUnavailable
	KindContentFiltered
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindContentFiltered:
		return "content_filtered"
	case KindTruncated:
		return "truncated"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindServiceUnavailable:
		return ErrServiceUnavailable
	case KindContentFiltered:
		return ErrContentFiltered
	case KindTruncated:
		return ErrTruncated
	}
	return ErrServiceUnavailable
}

// Error is returned by Generator methods. For KindTruncated, Partial holds
// the text that was produced before the cut-off.
type Error struct {
	Kind      Kind
	Partial   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
