package geminilive

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors.
var (
	// ErrConnectionFailed is returned when the connection could not be opened
	// or the setup message could not be sent.
	ErrConnectionFailed = errors.New("geminilive: connection failed")

	// ErrProtocol reports a malformed or unexpected inbound frame.
	ErrProtocol = errors.New("geminilive: protocol error")

	// ErrAuthentication matches server errors that reject the credentials.
	ErrAuthentication = errors.New("geminilive: authentication rejected")

	// ErrNotReady is returned by send operations before setup has been
	// acknowledged.
	ErrNotReady = errors.New("geminilive: session not ready")

	// ErrClosed is returned by send operations after Close.
	ErrClosed = errors.New("geminilive: session closed")
)

// Status codes reported by the service.
const (
	StatusUnauthenticated   = "UNAUTHENTICATED"
	StatusPermissionDenied  = "PERMISSION_DENIED"
	StatusResourceExhausted = "RESOURCE_EXHAUSTED"
	StatusUnavailable       = "UNAVAILABLE"

	codeUnauthenticated  = 16
	codePermissionDenied = 7
)

// Error is an error reported by the service, either in an error frame or as
// a rejected WebSocket handshake.
type Error struct {
	// Code is the numeric code when the service sent one.
	Code int `json:"code,omitzero"`

	// Status is the symbolic status, e.g. "UNAUTHENTICATED".
	Status string `json:"status,omitzero"`

	Message string `json:"message,omitzero"`

	// HTTPStatus is set for handshake failures.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	var label string
	switch {
	case e.Status != "":
		label = e.Status
	case e.Code != 0:
		label = strconv.Itoa(e.Code)
	case e.HTTPStatus != 0:
		label = fmt.Sprintf("http %d", e.HTTPStatus)
	default:
		return "geminilive: " + e.Message
	}
	return fmt.Sprintf("geminilive: %s: %s", label, e.Message)
}

// IsAuth reports whether the service rejected the credentials.
func (e *Error) IsAuth() bool {
	switch e.Status {
	case StatusUnauthenticated, StatusPermissionDenied:
		return true
	}
	switch e.Code {
	case codeUnauthenticated, codePermissionDenied, 401, 403:
		return true
	}
	return e.HTTPStatus == 401 || e.HTTPStatus == 403
}

// IsRateLimit reports whether the request was throttled.
func (e *Error) IsRateLimit() bool {
	return e.Status == StatusResourceExhausted || e.Code == 429 || e.HTTPStatus == 429
}

// Is makes errors.Is(err, ErrAuthentication) true for credential rejections.
func (e *Error) Is(target error) bool {
	return target == ErrAuthentication && e.IsAuth()
}

// AsError attempts to cast an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
