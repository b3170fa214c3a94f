package services

import (
	"fmt"
	"time"

	"secure-chat/domain"
	apperrors "secure-chat/errors"
	"secure-chat/repositories"
)

type IChatService interface {
	LogMessage(username, text string) (domain.ChatMessage, error)
	GetHistory(limit int) ([]domain.ChatMessage, error)
}

type ChatService struct {
	messageRepository repositories.IMessageRepository
	now               func() time.Time
}

func NewChatService(repo repositories.IMessageRepository) *ChatService {
	return &ChatService{messageRepository: repo, now: time.Now}
}

// LogMessage appends a message to the persisted log, stamped with the current time.
func (s *ChatService) LogMessage(username, text string) (domain.ChatMessage, error) {
	message, err := s.messageRepository.StoreMessage(username, text, s.now().UTC())
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: log message: %v", apperrors.ErrStore, err)
	}
	return message, nil
}

// GetHistory returns the last limit messages, oldest first.
func (s *ChatService) GetHistory(limit int) ([]domain.ChatMessage, error) {
	messages, err := s.messageRepository.GetLastMessages(limit)
	if err != nil {
		return nil, fmt.Errorf("%w: get history: %v", apperrors.ErrStore, err)
	}
	return messages, nil
}
