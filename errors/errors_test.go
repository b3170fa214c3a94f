package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToReply(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"No error", nil, ""},
		{"Username taken", fmt.Errorf("%w: %w", ErrAuthRejected, ErrUsernameExists), ReplyUsernameExists},
		{"Bad password", fmt.Errorf("%w: %w", ErrAuthRejected, ErrInvalidCredentials), ReplyAuthFailed},
		{"Malformed choice", fmt.Errorf("%w: %w", ErrAuthRejected, ErrInvalidChoice), "ERROR: invalid choice, expected LOGIN or REGISTER"},
		{"Timeout", fmt.Errorf("%w: %w", ErrAuthRejected, ErrHandshakeTimeout), "ERROR: authentication timed out"},
		{"Already online", fmt.Errorf("%w: %w", ErrAuthRejected, ErrUserOnline), "ERROR: user already connected"},
		{"Short username", fmt.Errorf("%w: must be at least 3 characters", ErrInvalidUsername), "ERROR: invalid username: must be at least 3 characters"},
		{"Wrapped short password", fmt.Errorf("%w: %w", ErrAuthRejected, fmt.Errorf("%w: must be at least 4 characters", ErrInvalidPassword)), "ERROR: invalid password: must be at least 4 characters"},
		{"Oversized frame", ErrFrameTooLarge, "ERROR: frame exceeds maximum size"},
		{"Store down", fmt.Errorf("%w: disk full", ErrStore), "ERROR: service unavailable, try again later"},
		{"Unknown", fmt.Errorf("boom"), "ERROR: authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, MapToReply(tt.err))
		})
	}
}
