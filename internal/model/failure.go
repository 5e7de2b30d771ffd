package model

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why a page could not be fetched.
type ErrorKind int

const (
	// ErrorKindOther covers malformed URLs, body read errors and anything
	// that does not fit the other kinds.
	ErrorKindOther ErrorKind = iota

	// ErrorKindTimeout means the request exceeded the fetch timeout.
	ErrorKindTimeout

	// ErrorKindConnectionFailed means the host could not be resolved or
	// refused the connection.
	ErrorKindConnectionFailed

	// ErrorKindHTTPStatus means the server answered with a non-2xx status.
	ErrorKindHTTPStatus
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindConnectionFailed:
		return "connection_failed"
	case ErrorKindHTTPStatus:
		return "http_status"
	default:
		return "other"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseErrorKind converts a kind name back to an ErrorKind.
func ParseErrorKind(s string) (ErrorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeout":
		return ErrorKindTimeout, nil
	case "connection_failed":
		return ErrorKindConnectionFailed, nil
	case "http_status":
		return ErrorKindHTTPStatus, nil
	case "other":
		return ErrorKindOther, nil
	default:
		return ErrorKindOther, fmt.Errorf("unknown error kind %q", s)
	}
}

// Failure is a page-local fetch failure. It never aborts a crawl.
type Failure struct {
	// URL is the canonical URL that failed.
	URL string `json:"url"`

	// Kind classifies the failure.
	Kind ErrorKind `json:"kind"`

	// StatusCode is set when Kind is ErrorKindHTTPStatus.
	StatusCode int `json:"status_code,omitempty"`

	// Message is a human-readable description of the cause.
	Message string `json:"message"`
}
