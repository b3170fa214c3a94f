//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"time"

	apperrors "secure-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

const userPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, hashedPassword string) error
	GetUserByUsername(username string) (User, error)
	ListUsers() ([]User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the persisted account record. The password is only ever held as a hash.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser persists a new account keyed by username.
// The existence check and the write share one transaction, so two concurrent
// registrations of the same name cannot both succeed: the loser either sees
// the key or fails to commit with a conflict.
func (u UserRepository) CreateUser(username, hashedPassword string) error {
	key := []byte(userPrefix + username)
	data := encodeUser(User{
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	})

	err := u.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return apperrors.ErrUsernameExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return apperrors.ErrUsernameExists
	}
	return err
}

// GetUserByUsername returns ErrInvalidCredentials when no such user exists,
// so callers cannot tell an unknown name from a bad password.
func (u UserRepository) GetUserByUsername(username string) (User, error) {
	var user User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			user, err = decodeUser(val)
			return err
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return user, nil
}

// ListUsers returns every account in key order.
func (u UserRepository) ListUsers() ([]User, error) {
	var users []User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := decodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}
