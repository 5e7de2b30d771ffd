package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/nao1215/trugle/internal/model"
)

// ErrStatus is wrapped by a FetchError for non-2xx responses.
var ErrStatus = errors.New("unexpected HTTP status")

// FetchError describes why a page could not be fetched.
// Fetch returns only this error type.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// Kind classifies the failure.
	Kind model.ErrorKind

	// StatusCode is set for ErrorKindHTTPStatus.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	if e.Kind == model.ErrorKindHTTPStatus {
		return fmt.Sprintf("fetch %s: %s: %d", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Failure converts the error to a crawl report entry.
func (e *FetchError) Failure() model.Failure {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return model.Failure{
		URL:        e.URL,
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		Message:    msg,
	}
}

// classify maps a transport error to an ErrorKind.
func classify(err error) model.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorKindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.ErrorKindConnectionFailed
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return model.ErrorKindConnectionFailed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return model.ErrorKindConnectionFailed
	}

	return model.ErrorKindOther
}
