package vision

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/tphakala/geocapture/internal/errors"
)

// Kind tells the caller whether retrying the same request can succeed.
type Kind int

const (
	// KindPermanent failures will not resolve by retrying.
	KindPermanent Kind = iota
	// KindTransient failures are upstream overload or unavailability.
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

var (
	// ErrEmptyResponse is returned when the response has no candidates or parts.
	ErrEmptyResponse = stderrors.New("vision response contained no candidates or parts")
	// ErrMalformedResult is returned when the response text holds no parseable JSON object.
	ErrMalformedResult = stderrors.New("vision response text contained no valid JSON object")
)

// Error is returned by Client.Analyze for every failure.
type Error struct {
	Kind       Kind
	StatusCode int    // HTTP status when the upstream answered, 0 otherwise
	Body       string // upstream error body, truncated
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("vision API error (%d %s): %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	case e.Err != nil:
		return "vision: " + e.Err.Error()
	default:
		return "vision: " + e.Kind.String() + " failure"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory lets the errors package group vision failures.
func (e *Error) ErrorCategory() errors.ErrorCategory {
	if e.StatusCode != 0 || e.Kind == KindTransient {
		return errors.CategoryVisionAPI
	}
	return errors.CategoryVisionResponse
}

// IsTransient reports whether err is a vision failure worth retrying.
// Errors that did not come from this package are classified by message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var verr *Error
	if stderrors.As(err, &verr) {
		return verr.Kind == KindTransient
	}
	return ClassifyMessage(err.Error()) == KindTransient
}

// transientMarkers are the substrings the upstream uses for overload and unavailability.
var transientMarkers = []string{"503", "overloaded", "UNAVAILABLE"}

// ClassifyMessage applies the substring rule to an upstream message.
func ClassifyMessage(msg string) Kind {
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}
	return KindPermanent
}

// classifyStatus decides the kind of a non-2xx answer. 503 is always
// transient; other statuses are transient only when the body says so.
func classifyStatus(status int, body string) Kind {
	if status == http.StatusServiceUnavailable {
		return KindTransient
	}
	return ClassifyMessage(body)
}

// classifyTransport decides the kind of a failure where no response arrived.
func classifyTransport(err error) Kind {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, gobreaker.ErrOpenState),
		stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return KindTransient
	}
	return ClassifyMessage(err.Error())
}

func newStatusError(status int, body string) *Error {
	return &Error{Kind: classifyStatus(status, body), StatusCode: status, Body: body}
}

func permanent(err error) *Error {
	return &Error{Kind: KindPermanent, Err: err}
}
