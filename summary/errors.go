package summary

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies a relay failure.
type Kind int

const (
	// KindInput is a client input error, answered locally with 400.
	KindInput Kind = iota + 1
	// KindUpstream is a non-2xx answer from the summarization API.
	KindUpstream
	// KindTransport covers network failures and unparseable upstream bodies.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

const (
	msgArticleURLRequired = "Article URL is required"
	msgUpstreamFallback   = "Error fetching summary"
)

// Error is a classified relay failure. Status is only meaningful for
// KindUpstream.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Detail is the upstream "message" value relayed as is. It may be any
	// JSON value; Message holds its text form.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrArticleURLRequired is returned when articleUrl is missing or empty.
var ErrArticleURLRequired = &Error{Kind: KindInput, Message: msgArticleURLRequired}

// UpstreamError builds a KindUpstream error. A falsy message (nil, false,
// 0 or "") falls back to the generic one; any other JSON value is kept.
func UpstreamError(status int, message any) *Error {
	if !truthy(message) {
		message = msgUpstreamFallback
	}
	return &Error{Kind: KindUpstream, Status: status, Message: text(message), Detail: message}
}

// truthy reports whether a decoded JSON value counts as set.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case string:
		return v != ""
	default:
		return true
	}
}

func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return msgUpstreamFallback
	}
	return string(b)
}

// TransportError wraps a network or decoding failure. The client sees the
// raw error text.
func TransportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// ErrorBody is the JSON error shape of every non-2xx answer. Error is a
// string except when an upstream message is relayed, which can be any JSON
// value.
type ErrorBody struct {
	Error any `json:"error"`
}

// StatusAndBody maps err to the HTTP status and body sent to the client.
// Unclassified errors are treated as transport errors.
func StatusAndBody(err error) (int, ErrorBody) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, ErrorBody{Error: err.Error()}
	}

	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest, ErrorBody{Error: e.Message}
	case KindUpstream:
		status := e.Status
		if status < 100 || status > 999 {
			status = http.StatusBadGateway
		}
		if e.Detail != nil {
			return status, ErrorBody{Error: e.Detail}
		}
		return status, ErrorBody{Error: e.Message}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: e.Message}
	}
}
