package errors

import (
	goerrors "errors"
	"fmt"
	"strings"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words found")

	ErrBind          = fmt.Errorf("unable to bind listener")
	ErrServerClosed  = fmt.Errorf("server closed")
	ErrHandshake     = fmt.Errorf("transport handshake failed")
	ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size")

	ErrAuthRejected       = fmt.Errorf("authentication rejected")
	ErrInvalidChoice      = fmt.Errorf("invalid choice, expected LOGIN or REGISTER")
	ErrInvalidUsername    = fmt.Errorf("invalid username")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrHandshakeTimeout   = fmt.Errorf("authentication timed out")
	ErrUsernameExists     = fmt.Errorf("username already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserOnline         = fmt.Errorf("user already connected")

	ErrAlreadyRegistered = fmt.Errorf("session already registered")
	ErrPeerSend          = fmt.Errorf("peer send failed")
	ErrStore             = fmt.Errorf("store operation failed")
)

// Wire codes sent back to a rejected client.
const (
	ReplyUsernameExists = "USERNAME_EXISTS"
	ReplyAuthFailed     = "AUTH_FAILED"
	ReplyErrorPrefix    = "ERROR: "
)

// MapToReply converts an authentication failure into the frame sent to the client.
// Store failures are reported as a generic error so internals never leak on the wire.
func MapToReply(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, ErrUsernameExists):
		return ReplyUsernameExists
	case goerrors.Is(err, ErrInvalidCredentials):
		return ReplyAuthFailed
	case goerrors.Is(err, ErrStore):
		return ReplyErrorPrefix + "service unavailable, try again later"
	}

	for _, reason := range publicReasons {
		if goerrors.Is(err, reason) {
			return ReplyErrorPrefix + reason.Error()
		}
	}
	for _, invalid := range []error{ErrInvalidUsername, ErrInvalidPassword} {
		if goerrors.Is(err, invalid) {
			return ReplyErrorPrefix + invalidInputMessage(err, invalid)
		}
	}
	return ReplyErrorPrefix + "authentication failed"
}

// Rejections whose message is sent as is.
var publicReasons = []error{ErrInvalidChoice, ErrHandshakeTimeout, ErrUserOnline, ErrFrameTooLarge}

// invalidInputMessage keeps the validation detail but drops any outer wrapping,
// so the reply starts with the sentinel text.
func invalidInputMessage(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return strings.TrimSpace(msg[i:])
	}
	return sentinel.Error()
}
