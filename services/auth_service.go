//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"errors"
	"fmt"

	"secure-chat/auth"
	apperrors "secure-chat/errors"
	"secure-chat/repositories"
)

type IAuthService interface {
	Register(username, password string) error
	Login(username, password string) error
}

type AuthService struct {
	userRepository repositories.IUserRepository
	params         auth.Params
}

func NewAuthService(repo repositories.IUserRepository, params auth.Params) IAuthService {
	return &AuthService{userRepository: repo, params: params}
}

// Register validates the credentials, hashes the password and persists the user.
// Returns ErrUsernameExists if the name is taken and wraps ErrStore on any
// persistence failure.
func (s *AuthService) Register(username, password string) error {
	// Validation runs before any expensive cryptographic operation.
	creds, err := auth.NormalizeCredentials(username, password)
	if err != nil {
		return err
	}

	// Hashing stays here so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(creds.Password, s.params)
	if err != nil {
		return fmt.Errorf("%w: hashing failed: %v", apperrors.ErrStore, err)
	}

	if err = s.userRepository.CreateUser(creds.Username, hashedPassword); err != nil {
		if errors.Is(err, apperrors.ErrUsernameExists) {
			return err
		}
		return fmt.Errorf("%w: %v", apperrors.ErrStore, err)
	}
	return nil
}

// Login checks a username/password pair. Unknown users and wrong passwords
// both yield ErrInvalidCredentials.
func (s *AuthService) Login(username, password string) error {
	creds, err := auth.NormalizeCredentials(username, password)
	if err != nil {
		return apperrors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByUsername(creds.Username)
	if errors.Is(err, apperrors.ErrInvalidCredentials) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStore, err)
	}

	match, err := auth.ComparePassword(creds.Password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: stored hash for %q: %v", apperrors.ErrStore, creds.Username, err)
	}
	if !match {
		return apperrors.ErrInvalidCredentials
	}
	return nil
}
