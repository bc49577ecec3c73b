package client

import (
	"errors"
	"net/http"
)

// Status classifications carried by RemoteError
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeBadResponse     = "BAD_RESPONSE"
)

// RemoteError is a classified endpoint failure
type RemoteError struct {
	StatusCode string
	Message    string
	HTTPStatus int

	cause error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != "":
		return e.StatusCode + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.StatusCode != "":
		return e.StatusCode
	default:
		return "remote request failed"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.cause
}

// Temporary reports whether retrying the same request may succeed
func (e *RemoteError) Temporary() bool {
	switch e.StatusCode {
	case CodeNetworkError:
		return true
	case CodeUnauthenticated, CodeForbidden, CodeBadRequest, CodeBadResponse:
		return false
	}
	return e.HTTPStatus >= 500 || e.HTTPStatus == http.StatusTooManyRequests
}

// IsUnauthenticated reports whether err carries the UNAUTHENTICATED classification
func IsUnauthenticated(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == CodeUnauthenticated
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthenticated
	case status == http.StatusForbidden:
		return CodeForbidden
	case status >= 400 && status < 500:
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
