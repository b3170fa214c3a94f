// Package protocol defines the text frames exchanged between chat clients and
// the server, and the newline-delimited framing that carries them.
package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Handshake frames.
const (
	AuthRequired   = "AUTH_REQUIRED"
	ChoiceLogin    = "LOGIN"
	ChoiceRegister = "REGISTER"
	EnterUsername  = "ENTER_USERNAME"
	EnterPassword  = "ENTER_PASSWORD"
	AuthSuccess    = "AUTH_SUCCESS"
	UsernameExists = "USERNAME_EXISTS"
	AuthFailed     = "AUTH_FAILED"
	ErrorPrefix    = "ERROR: "
)

// Post-authentication frames.
const (
	ServerPrefix    = "[SERVER] "
	UsersListPrefix = "[USERS_LIST] "
	HistoryStart    = "[HISTORY_START]"
	HistoryEnd      = "[HISTORY_END]"
	Quit            = "/QUIT"

	historyTimeLayout = "2006-01-02 15:04:05"
)

// AuthSuccessFrame confirms the authenticated username.
func AuthSuccessFrame(username string) string {
	return AuthSuccess + "|" + username
}

// ParseAuthSuccess extracts the username from an AUTH_SUCCESS frame.
func ParseAuthSuccess(frame string) (string, bool) {
	name, ok := strings.CutPrefix(frame, AuthSuccess+"|")
	return name, ok && name != ""
}

func ServerLine(text string) string {
	return ServerPrefix + text
}

func JoinedLine(username string) string {
	return ServerLine(username + " joined the chat.")
}

func LeftLine(username string) string {
	return ServerLine(username + " left the chat.")
}

// UsersList formats a presence snapshot.
func UsersList(usernames []string) string {
	return UsersListPrefix + strings.Join(usernames, ",")
}

// ParseUsersList returns the usernames of a presence frame.
func ParseUsersList(frame string) ([]string, bool) {
	list, ok := strings.CutPrefix(frame, UsersListPrefix)
	if !ok {
		return nil, false
	}
	if list == "" {
		return []string{}, true
	}
	return strings.Split(list, ","), true
}

// ChatLine is the relayed form of a message.
func ChatLine(username, text string) string {
	return username + ": " + text
}

// HistoryLine is the replayed form of a persisted message.
func HistoryLine(at time.Time, username, text string) string {
	return fmt.Sprintf("[%s] %s", at.UTC().Format(historyTimeLayout), ChatLine(username, text))
}

// IsQuit reports whether a client frame asks to close the session.
func IsQuit(frame string) bool {
	return strings.EqualFold(strings.TrimSpace(frame), Quit)
}
