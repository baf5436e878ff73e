package realtime

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	// ErrHandshake means the server answered the upgrade with a non-101 status.
	ErrHandshake = errors.New("websocket handshake rejected")
	// ErrConnectionRefused means nothing accepted the TCP connection.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrTransport covers every other network or OS level failure.
	ErrTransport = errors.New("transport error")
)

// ConnectionError describes a failed Dial. It matches exactly one of
// ErrHandshake, ErrConnectionRefused or ErrTransport with errors.Is.
type ConnectionError struct {
	URL        string
	StatusCode int

	kind error
	err  error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to connect to %s: %v (status %d): %v", e.URL, e.kind, e.StatusCode, e.err)
	}
	return fmt.Sprintf("failed to connect to %s: %v: %v", e.URL, e.kind, e.err)
}

func (e *ConnectionError) Unwrap() []error { return []error{e.kind, e.err} }

func classifyDialError(url string, statusCode int, err error) *ConnectionError {
	connErr := &ConnectionError{URL: url, StatusCode: statusCode, err: err}
	switch {
	case errors.Is(err, websocket.ErrBadHandshake):
		connErr.kind = ErrHandshake
	case errors.Is(err, syscall.ECONNREFUSED):
		connErr.kind = ErrConnectionRefused
	default:
		connErr.kind = ErrTransport
	}
	return connErr
}
