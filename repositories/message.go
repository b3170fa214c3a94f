//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"secure-chat/domain"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix   = "msg:"
	messageSequence = "seq:msg"
	// Leased ids per sequence round-trip. Unused ids are lost on restart, which
	// only leaves gaps in the numbering.
	sequenceBandwidth = 100
)

var errReadOnly = errors.New("message repository is read-only")

type IMessageRepository interface {
	StoreMessage(username, text string, at time.Time) (domain.ChatMessage, error)
	GetLastMessages(limit int) ([]domain.ChatMessage, error)
	Count() (int, error)
	Close() error
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// NewMessageReader builds a repository over a read-only database.
// StoreMessage always fails on it.
func NewMessageReader(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// StoreMessage appends a message under the next auto-increment id.
// Keys are "msg:{id padded to 20 digits}" so lexicographical order is id order.
func (m *MessageRepository) StoreMessage(username, text string, at time.Time) (domain.ChatMessage, error) {
	if m.seq == nil {
		return domain.ChatMessage{}, errReadOnly
	}
	next, err := m.seq.Next()
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("next message id: %w", err)
	}
	message := domain.ChatMessage{
		ID:       next + 1,
		Username: username,
		Text:     text,
		At:       at.UTC(),
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ID), encodeMessage(message))
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return message, nil
}

// GetLastMessages returns up to limit of the most recent messages, oldest first.
func (m *MessageRepository) GetLastMessages(limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var messages []domain.ChatMessage
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// Start past the highest possible id and walk backwards.
		seekKey := append([]byte(messagePrefix), []byte("99999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// Count walks the message keys without fetching values.
func (m *MessageRepository) Count() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close returns the leased but unused ids to the sequence.
func (m *MessageRepository) Close() error {
	if m.seq == nil {
		return nil
	}
	return m.seq.Release()
}

func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}
