package main

import (
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	color.Enable = false
	defer func() { color.Enable = true }()

	tests := []struct {
		frame    string
		expected string
	}{
		{"AUTH_REQUIRED", "Type LOGIN or REGISTER:"},
		{"ENTER_USERNAME", "Username:"},
		{"ENTER_PASSWORD", "Password:"},
		{"AUTH_SUCCESS|alice", "Welcome alice! Type /QUIT to leave."},
		{"USERNAME_EXISTS", "This username is already taken."},
		{"AUTH_FAILED", "Wrong username or password."},
		{"ERROR: user already connected", "user already connected"},
		{"[USERS_LIST] alice,bob", "Online: alice, bob"},
		{"[SERVER] bob joined the chat.", "[SERVER] bob joined the chat."},
		{"[HISTORY_START]", "--- recent messages ---"},
		{"bob: hi there", "bob: hi there"},
		{"[2026-01-02 03:04:05] bob: hi", "[2026-01-02 03:04:05] bob: hi"},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			require.Equal(t, tt.expected, render(tt.frame))
		})
	}
}
