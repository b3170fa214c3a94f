package internal

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"secure-chat/domain"
	"secure-chat/repositories"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	users    []repositories.User
	messages []domain.ChatMessage
	err      error
	limit    int
}

func (f *fakeSource) ListUsers() ([]repositories.User, error) {
	return f.users, f.err
}

func (f *fakeSource) GetLastMessages(limit int) ([]domain.ChatMessage, error) {
	f.limit = limit
	return f.messages, f.err
}

func inspect(t *testing.T, source InspectSource, url string) string {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	server := NewDebugServer("127.0.0.1:0", source, func() map[string]any {
		return map[string]any{"online": 2}
	}, log)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestDebugServer_Messages(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	source := &fakeSource{messages: []domain.ChatMessage{{ID: 7, Username: "alice", Text: "<b>hi</b>", At: at}}}

	body := inspect(t, source, "/inspect?limit=5")

	req.Equal(5, source.limit)
	req.Contains(body, "msg:7")
	req.Contains(body, "2026-03-04 05:06:07")
	req.Contains(body, "&lt;b&gt;hi&lt;/b&gt;")
	req.Contains(body, "online: 2")
}

func TestDebugServer_Users_Hide_Hashes(t *testing.T) {
	req := require.New(t)
	source := &fakeSource{users: []repositories.User{{Username: "bob", PasswordHash: "$argon2id$secret", CreatedAt: time.Now()}}}

	body := inspect(t, source, "/inspect?kind=users")

	req.Contains(body, "user:bob")
	req.NotContains(body, "secret")
}

func TestDebugServer_Reports_Errors(t *testing.T) {
	req := require.New(t)
	source := &fakeSource{err: errors.New("db closed")}

	body := inspect(t, source, "/inspect?limit=nope")

	req.Equal(defaultInspectLimit, source.limit)
	req.Contains(body, "db closed")
}
