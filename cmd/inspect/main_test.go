package main

import (
	"bytes"
	"testing"
	"time"

	"secure-chat/domain"
	"secure-chat/mocks"
	"secure-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeMessages []domain.ChatMessage

func (f fakeMessages) GetLastMessages(limit int) ([]domain.ChatMessage, error) {
	return f, nil
}

func TestPrintUsers_NeverShowsHashes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserRepository(ctrl)

	// Given one stored account
	users.EXPECT().ListUsers().Return([]repositories.User{
		{Username: "alice", PasswordHash: "$argon2id$secret", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}, nil)

	// When the table is printed
	var out bytes.Buffer
	req.NoError(printUsers(&out, users))

	// Then the username is listed without its hash
	req.Contains(out.String(), "alice")
	req.Contains(out.String(), "2026-01-02 03:04:05")
	req.NotContains(out.String(), "argon2id")
}

func TestPrintMessages(t *testing.T) {
	req := require.New(t)

	// Given two messages
	messages := fakeMessages{
		{ID: 1, Username: "alice", Text: "hello", At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{ID: 2, Username: "bob", Text: "hi", At: time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)},
	}

	// When the table is printed
	var out bytes.Buffer
	req.NoError(printMessages(&out, messages, 10))

	// Then both rows appear in order
	s := out.String()
	req.Contains(s, "hello")
	req.Less(bytes.Index(out.Bytes(), []byte("alice")), bytes.Index(out.Bytes(), []byte("bob")))
}
