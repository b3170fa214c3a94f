//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"net"
	"reflect"

	"secure-chat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// CredentialStore owns persisted users and the message log.
// Credentials are opaque strings here, hashing is the store's business.
type CredentialStore interface {
	RegisterUser(username, password string) error
	Authenticate(username, password string) error
	LogMessage(username, text string) (domain.ChatMessage, error)
	GetHistory(limit int) ([]domain.ChatMessage, error)
	Close() error
}

// SecureTransport wraps a raw connection with transport encryption.
// The returned connection behaves like a plain byte stream.
type SecureTransport interface {
	Secure(ctx context.Context, conn net.Conn) (net.Conn, error)
}
