package orchestration

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Sentinel errors wrapped by [Error.Err].
var (
	// ErrUnexpectedStatus indicates the service answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrMalformedResponse indicates a 2xx body that is not a valid result.
	ErrMalformedResponse = errors.New("malformed response body")
)

// ErrorKind classifies an orchestration failure.
type ErrorKind int

const (
	// KindTransport covers network failures, cancellation and timeouts.
	KindTransport ErrorKind = iota

	// KindStatus covers non-2xx responses.
	KindStatus

	// KindMalformed covers 2xx responses whose body cannot be decoded.
	KindMalformed

	// KindEncode covers payloads that cannot be encoded as JSON.
	KindEncode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	case KindEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// previewLength is the number of characters of a non-JSON failure body
// included in the error message.
const previewLength = 200

// defaultFailureMessage is used when a JSON failure body names no error.
const defaultFailureMessage = "API request failed"

// Error is a normalized orchestration failure.
//
// Message is the single human-readable string shown to the user. Err holds
// the underlying cause for errors.Is / errors.As matching.
type Error struct {
	Endpoint   Endpoint
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error returns the normalized message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// failureMessage extracts the message for a non-2xx response.
//
// A JSON body yields its "error" field, then its "message" field, then a
// generic message. Any other body yields the status code and a truncated
// preview of the raw text.
func failureMessage(statusCode int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"error", "message"} {
			if v := gjson.GetBytes(body, field); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return defaultFailureMessage
	}
	return fmt.Sprintf("Server Error (%d): %s", statusCode, truncate(string(body), previewLength))
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
