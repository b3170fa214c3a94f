package services

import (
	"fmt"
	"testing"

	"secure-chat/auth"
	apperrors "secure-chat/errors"
	"secure-chat/mocks"
	"secure-chat/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testParams = auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, testParams)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		var storedHash string

		// Expect CreateUser to be called with a trimmed name and a hash, never the plain password
		mockRepo.EXPECT().
			CreateUser("alice", gomock.Any()).
			DoAndReturn(func(_ string, hash string) error {
				storedHash = hash
				return nil
			}).
			Times(1)

		err := svc.Register("  alice ", "pass1234")

		req.NoError(err)
		req.NotEqual("pass1234", storedHash)
		match, err := auth.ComparePassword("pass1234", storedHash)
		req.NoError(err)
		req.True(match)
	})

	t.Run("should fail when password is too short", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		err := svc.Register("alice", "123")

		req.ErrorIs(err, apperrors.ErrInvalidPassword)
	})

	t.Run("should fail when username is too short", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		err := svc.Register("al", "pass1234")

		req.ErrorIs(err, apperrors.ErrInvalidUsername)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", gomock.Any()).
			Return(apperrors.ErrUsernameExists).
			Times(1)

		err := svc.Register("bob", "pass5678")

		req.ErrorIs(err, apperrors.ErrUsernameExists)
		req.NotErrorIs(err, apperrors.ErrStore)
	})

	t.Run("should wrap storage failures as store errors", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("carol", gomock.Any()).
			Return(fmt.Errorf("disk full")).
			Times(1)

		err := svc.Register("carol", "pass5678")

		req.ErrorIs(err, apperrors.ErrStore)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewAuthService(mockRepo, testParams)

	hashedPassword, err := auth.HashPassword("pass1234", testParams)
	require.NoError(t, err)
	storedUser := repositories.User{Username: "alice", PasswordHash: hashedPassword}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(storedUser, nil).
			Times(1)

		req.NoError(svc.Login("alice", "pass1234"))
	})

	t.Run("should return invalid credentials on wrong password", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(storedUser, nil).
			Times(1)

		err := svc.Login("alice", "wrong-password")

		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
		req.NotErrorIs(err, apperrors.ErrUsernameExists)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("ghost").
			Return(repositories.User{}, apperrors.ErrInvalidCredentials).
			Times(1)

		err := svc.Login("ghost", "anyPassword")

		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials on malformed input without a lookup", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByUsername(gomock.Any()).Times(0)

		err := svc.Login("al", "pass1234")

		req.ErrorIs(err, apperrors.ErrInvalidCredentials)
	})

	t.Run("should report a corrupted hash as a store error", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(repositories.User{Username: "alice", PasswordHash: "garbage"}, nil).
			Times(1)

		err := svc.Login("alice", "pass1234")

		req.ErrorIs(err, apperrors.ErrStore)
	})
}
