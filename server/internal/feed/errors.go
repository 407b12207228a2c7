package feed

import (
	"errors"
	"fmt"
)

// NetworkError reports a failed fetch: the request could not be sent, the
// response could not be read, or the server answered with a non-200 status.
type NetworkError struct {
	URL string

	// StatusCode is the HTTP status when a response was received, else 0.
	StatusCode int

	// Attempts is how many requests were made before giving up.
	Attempts int

	Err error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: fetch %s: unexpected status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("feed: fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed. Client errors
// other than 408 and 429 will not change on retry, nor will an oversized body.
func (e *NetworkError) retryable() bool {
	switch {
	case errors.Is(e.Err, ErrTooLarge):
		return false
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// ParseError reports CSV content that cannot be turned into standings.
type ParseError struct {
	// Line is the 1-based CSV line number when known, else 0.
	Line int

	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "feed: parse csv"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
