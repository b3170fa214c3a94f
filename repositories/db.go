package repositories

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// OpenDB opens the Badger store at path. An empty path opens an in-memory
// store, used by tests and throwaway servers.
func OpenDB(path string, log *slog.Logger) (*badger.DB, error) {
	var options badger.Options
	if path == "" {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		options = badger.DefaultOptions(path)
	}
	// Level filtering is left to slog: WithLoggingLevel would replace this logger.
	options = options.WithLogger(badgerLogger{log: log})

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return db, nil
}

// OpenReadOnlyDB opens an existing store without taking the directory lock,
// so it can be inspected while the server is running.
func OpenReadOnlyDB(path string, log *slog.Logger) (*badger.DB, error) {
	options := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(badgerLogger{log: log})
	return badger.Open(options)
}

// badgerLogger routes Badger's printf-style logging into slog.
// Badger is chatty at info level (compactions, flushes), so info goes to debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(clean(format, args), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(clean(format, args), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(clean(format, args), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(clean(format, args), "component", "badger")
}

func clean(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
