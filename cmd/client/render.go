package main

import (
	"strings"

	"secure-chat/protocol"

	"github.com/gookit/color"
)

var (
	promptStyle  = color.New(color.FgCyan, color.OpBold)
	successStyle = color.New(color.FgGreen, color.OpBold)
	errorStyle   = color.New(color.FgRed, color.OpBold)
	serverStyle  = color.New(color.FgYellow)
	presence     = color.New(color.FgCyan)
	historyStyle = color.New(color.FgBlue)
	authorStyle  = color.New(color.FgMagenta, color.OpBold)
)

// render turns a server frame into the line shown to the user.
// An empty result means the frame is not displayed.
func render(frame string) string {
	switch {
	case frame == protocol.AuthRequired:
		return promptStyle.Render("Type LOGIN or REGISTER:")
	case frame == protocol.EnterUsername:
		return promptStyle.Render("Username:")
	case frame == protocol.EnterPassword:
		return promptStyle.Render("Password:")
	case frame == protocol.UsernameExists:
		return errorStyle.Render("This username is already taken.")
	case frame == protocol.AuthFailed:
		return errorStyle.Render("Wrong username or password.")
	case strings.HasPrefix(frame, protocol.ErrorPrefix):
		return errorStyle.Render(strings.TrimPrefix(frame, protocol.ErrorPrefix))
	case frame == protocol.HistoryStart:
		return historyStyle.Render("--- recent messages ---")
	case frame == protocol.HistoryEnd:
		return historyStyle.Render("-----------------------")
	case strings.HasPrefix(frame, protocol.ServerPrefix):
		return serverStyle.Render(frame)
	}

	if name, ok := protocol.ParseAuthSuccess(frame); ok {
		return successStyle.Render("Welcome " + name + "! Type /QUIT to leave.")
	}
	if users, ok := protocol.ParseUsersList(frame); ok {
		return presence.Render("Online: " + strings.Join(users, ", "))
	}
	if author, text, ok := strings.Cut(frame, ": "); ok && !strings.ContainsAny(author, " ") {
		return authorStyle.Render(author) + ": " + text
	}
	return frame
}
