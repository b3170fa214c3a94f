package services

import (
	"errors"
	"fmt"
	"log/slog"

	"secure-chat/auth"
	"secure-chat/domain"
	"secure-chat/repositories"

	"github.com/dgraph-io/badger/v4"
)

// Store is the credential and message store consumed by the chat server.
// It owns the database handle and closes it on Close.
type Store struct {
	authService IAuthService
	chatService IChatService
	messages    repositories.IMessageRepository
	db          *badger.DB
	log         *slog.Logger
}

func NewStore(log *slog.Logger, authService IAuthService, chatService IChatService,
	messages repositories.IMessageRepository, db *badger.DB) *Store {
	return &Store{authService: authService, chatService: chatService, messages: messages, db: db, log: log}
}

// OpenStore wires the repositories and services over an opened database.
func OpenStore(db *badger.DB, log *slog.Logger, params auth.Params) (*Store, error) {
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return nil, err
	}
	userRepository := repositories.NewUserRepository(db)
	return NewStore(log,
		NewAuthService(userRepository, params),
		NewChatService(messageRepository),
		messageRepository, db), nil
}

func (s *Store) RegisterUser(username, password string) error {
	return s.authService.Register(username, password)
}

func (s *Store) Authenticate(username, password string) error {
	return s.authService.Login(username, password)
}

func (s *Store) LogMessage(username, text string) (domain.ChatMessage, error) {
	return s.chatService.LogMessage(username, text)
}

func (s *Store) GetHistory(limit int) ([]domain.ChatMessage, error) {
	return s.chatService.GetHistory(limit)
}

// Close releases the message sequence then closes the database.
func (s *Store) Close() error {
	var errs []error
	if s.messages != nil {
		if err := s.messages.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release message sequence: %w", err))
		}
	}
	if s.db != nil {
		s.log.Info("Closing BadgerDB...")
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
