// Package domain contains core concepts of the chat system.
// This file defines persisted chat messages.
// Messages are append-only and never mutated once logged.
package domain

import "time"

// ChatMessage is one line of the persisted conversation.
type ChatMessage struct {
	ID       uint64
	Username string
	Text     string
	At       time.Time
}
