package services

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"secure-chat/domain"
	apperrors "secure-chat/errors"
	"secure-chat/mocks"
	"secure-chat/repositories"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := repositories.OpenDB("", log)
	require.NoError(t, err)
	store, err := OpenStore(db, log, testParams)
	require.NoError(t, err)
	return store
}

func TestStore_Register_Then_Login(t *testing.T) {
	tests := []struct {
		username string
		password string
	}{
		{"alice", "pass1234"},
		{"bob", "pass5678"},
		{"abc", "1234"},
		{"élodie", "mot de passe"},
	}

	store := openTestStore(t)
	defer store.Close()

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			req := require.New(t)
			req.NoError(store.RegisterUser(tt.username, tt.password))
			req.NoError(store.Authenticate(tt.username, tt.password))
		})
	}
}

func TestStore_Duplicate_Registration_Keeps_First_Credentials(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	defer store.Close()

	req.NoError(store.RegisterUser("alice", "pass1234"))

	// When registering the same name again
	err := store.RegisterUser("alice", "other-password")

	// Then the name is reported as taken
	req.ErrorIs(err, apperrors.ErrUsernameExists)
	// And the first credentials still work
	req.NoError(store.Authenticate("alice", "pass1234"))
	req.ErrorIs(store.Authenticate("alice", "other-password"), apperrors.ErrInvalidCredentials)
}

func TestStore_Log_And_History(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	defer store.Close()

	_, err := store.LogMessage("alice", "hi")
	req.NoError(err)
	_, err = store.LogMessage("bob", "yo")
	req.NoError(err)

	history, err := store.GetHistory(20)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal("alice", history[0].Username)
	req.Equal("hi", history[0].Text)
	req.Equal("bob", history[1].Username)
	req.False(history[1].At.Before(history[0].At))
}

func TestChatService_Wraps_Repository_Errors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIMessageRepository(ctrl)
	svc := NewChatService(mockRepo)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	mockRepo.EXPECT().
		StoreMessage("alice", "hi", fixed).
		Return(domain.ChatMessage{}, fmt.Errorf("disk full")).
		Times(1)
	mockRepo.EXPECT().
		GetLastMessages(20).
		Return(nil, fmt.Errorf("disk full")).
		Times(1)

	_, err := svc.LogMessage("alice", "hi")
	req.ErrorIs(err, apperrors.ErrStore)

	_, err = svc.GetHistory(20)
	req.ErrorIs(err, apperrors.ErrStore)
}

func TestStore_Close_Releases_Sequence_And_Database(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockMessages.EXPECT().Close().Return(nil).Times(1)

	db, err := repositories.OpenDB("", slog.Default())
	req.NoError(err)
	store := NewStore(slog.Default(), mocks.NewMockIAuthService(ctrl), NewChatService(mockMessages), mockMessages, db)

	req.NoError(store.Close())
	req.True(db.IsClosed())
}
