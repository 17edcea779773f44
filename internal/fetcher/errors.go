package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrInvalidPage is returned for page numbers below 1.
var ErrInvalidPage = errors.New("page number must be >= 1")

type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindHTTPStatus Kind = "http_status"
	KindDisallowed Kind = "disallowed"
	KindTooLarge   Kind = "body_too_large"
)

// FetchError is returned once a request has failed for good.
type FetchError struct {
	Kind     Kind
	Page     int //0 for non-listing requests
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	target := e.URL
	if e.Page > 0 {
		target = fmt.Sprintf("page %d (%s)", e.Page, e.URL)
	}
	msg := fmt.Sprintf("fetch %s: %s", target, e.Kind)
	if e.Kind == KindHTTPStatus {
		msg += fmt.Sprintf(" %d", e.Status)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection:
		return true
	case KindHTTPStatus:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// classify maps a transport or body-read error to a kind.
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnection
}
