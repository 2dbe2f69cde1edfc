package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
)

// Kind classifies a failure so callers can tell retryable errors apart from
// permanent ones without inspecting the message.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not-found"
	}
	return "unknown"
}

// DefaultMessage is used when a failure carries no message of its own
const DefaultMessage = "An unexpected error occurred"

// Error is the single error shape surfaced by the gateway and the stores
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return DefaultMessage
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the call may succeed
func (e *Error) Retryable() bool { return e.Kind == KindNetwork }

// NewError builds an error of the given kind
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation wraps a precondition failure detected on the client
func Validation(err error) *Error {
	return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, KindUnknown when err is not an *Error
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

// AsError converts any error into an *Error. Transport and breaker failures
// become KindNetwork; anything else unrecognised becomes KindUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &Error{Kind: KindNetwork, Message: "service temporarily unavailable", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	case errors.As(err, &netErr):
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// kindForStatus maps an HTTP status onto an error kind
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound, status == http.StatusNotAcceptable:
		// 406 is what the REST layer returns when a single-row select matches nothing
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict,
		status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindNetwork
	}
	return KindUnknown
}

// errorBody covers the message fields used by the auth, REST and storage APIs
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             any    `json:"code"`
}

// responseError builds an *Error from a non-2xx response body
func responseError(status int, body []byte) *Error {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		for _, m := range []string{eb.ErrorDescription, eb.Message, eb.Msg, eb.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return &Error{Kind: kindForStatus(status), Status: status, Message: msg}
}
