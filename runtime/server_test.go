package runtime

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"os"
	"regexp"
	"testing"
	"time"

	"secure-chat/auth"
	"secure-chat/errors"
	"secure-chat/protocol"
	"secure-chat/repositories"
	"secure-chat/services"
	"secure-chat/transport"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var testParams = auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestServer(t *testing.T, cfg Config, filter MessageFilter) *Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	store := newTestStore(t)

	certPEM, keyPEM, err := transport.GenerateSelfSigned([]string{"localhost", "127.0.0.1"}, time.Hour)
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	server := NewServer(log, cfg, store, transport.NewTLSTransport(transport.ServerConfig(cert)), filter)
	require.NoError(t, server.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

func defaultTestConfig() Config {
	return Config{
		MaxConnections:   16,
		HistoryLimit:     20,
		MaxFrameSize:     1024,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     time.Second,
	}
}

type chatClient struct {
	t      *testing.T
	conn   net.Conn
	reader *protocol.Reader
}

func dialChat(t *testing.T, server *Server) *chatClient {
	t.Helper()
	dialer := &net.Dialer{Timeout: frameWait}
	conn, err := tls.DialWithDialer(dialer, "tcp", server.Addr().String(), &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &chatClient{t: t, conn: conn, reader: protocol.NewReader(conn, 4096)}
}

func (c *chatClient) send(frame string) {
	c.t.Helper()
	require.NoError(c.t, protocol.WriteFrame(c.conn, frame))
}

func (c *chatClient) next() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(frameWait)))
	frame, err := c.reader.ReadFrame()
	require.NoError(c.t, err)
	return frame
}

func (c *chatClient) expect(expected ...string) {
	c.t.Helper()
	for _, frame := range expected {
		require.Equal(c.t, frame, c.next())
	}
}

func (c *chatClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(frameWait)))
	_, err := c.reader.ReadFrame()
	require.Error(c.t, err)
	require.NotErrorIs(c.t, err, os.ErrDeadlineExceeded)
}

// handshake runs the authentication exchange and returns the final reply.
func (c *chatClient) handshake(choice, username, password string) string {
	c.t.Helper()
	c.expect(protocol.AuthRequired)
	c.send(choice)
	c.expect(protocol.EnterUsername)
	c.send(username)
	c.expect(protocol.EnterPassword)
	c.send(password)
	return c.next()
}

// join registers or logs in and consumes the replay, returning the history lines.
func (c *chatClient) join(choice, username, password string) []string {
	c.t.Helper()
	require.Equal(c.t, protocol.AuthSuccessFrame(username), c.handshake(choice, username, password))
	c.expect(protocol.HistoryStart)
	var history []string
	for {
		line := c.next()
		if line == protocol.HistoryEnd {
			return history
		}
		history = append(history, line)
	}
}

var historyLine = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] (.+)$`)

func TestServer_Chat_Scenario(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, defaultTestConfig(), nil)

	// Given alice registers on an empty server
	alice := dialChat(t, server)
	req.Empty(alice.join("REGISTER", "alice", "pass1234"))
	alice.expect("[USERS_LIST] alice")

	// When bob registers
	bob := dialChat(t, server)
	req.Empty(bob.join("REGISTER", "bob", "pass5678"))
	bob.expect("[USERS_LIST] alice,bob")

	// Then alice sees the presence update and the join announcement
	alice.expect("[USERS_LIST] alice,bob", "[SERVER] bob joined the chat.")

	// When alice speaks, bob hears it
	alice.send("hello")
	bob.expect("alice: hello")

	// When bob quits
	bob.send("/QUIT")
	bob.expectClosed()

	// Then alice is told, and never got her own message back
	alice.expect("[SERVER] bob left the chat.", "[USERS_LIST] alice")

	// When carol joins later, the history is replayed
	carol := dialChat(t, server)
	history := carol.join("REGISTER", "carol", "pass9999")
	req.Len(history, 1)
	match := historyLine.FindStringSubmatch(history[0])
	req.NotNil(match, "history line %q", history[0])
	req.Equal("alice: hello", match[1])
	carol.expect("[USERS_LIST] alice,carol")
	alice.expect("[USERS_LIST] alice,carol", "[SERVER] carol joined the chat.")

	req.Equal([]string{"alice", "carol"}, server.Online())
}

func TestServer_Login_Rejections(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, defaultTestConfig(), nil)

	alice := dialChat(t, server)
	alice.join("REGISTER", "alice", "pass1234")
	alice.expect("[USERS_LIST] alice")

	// A second registration of the same name
	again := dialChat(t, server)
	req.Equal("USERNAME_EXISTS", again.handshake("REGISTER", "alice", "other-pass"))
	again.expectClosed()

	// A wrong password
	wrong := dialChat(t, server)
	req.Equal("AUTH_FAILED", wrong.handshake("LOGIN", "alice", "wrong-pass"))
	wrong.expectClosed()

	// The right password while alice is still online
	twin := dialChat(t, server)
	req.Equal("ERROR: user already connected", twin.handshake("LOGIN", "alice", "pass1234"))
	twin.expectClosed()

	// A bad choice
	lost := dialChat(t, server)
	lost.expect(protocol.AuthRequired)
	lost.send("SIGNUP")
	lost.expect("ERROR: invalid choice, expected LOGIN or REGISTER")
	lost.expectClosed()

	// None of it reached alice
	req.Equal([]string{"alice"}, server.Online())

	// Once alice left, she can log in again
	alice.send("/quit")
	alice.expectClosed()
	req.Eventually(func() bool { return len(server.Online()) == 0 }, frameWait, 10*time.Millisecond)
	back := dialChat(t, server)
	back.join("LOGIN", "alice", "pass1234")
	back.expect("[USERS_LIST] alice")
}

type badgerFilter struct{}

func (badgerFilter) Censor(text string) (string, []string) {
	if text == "badger" {
		return "******", []string{"badger"}
	}
	return text, nil
}

func TestServer_Filters_Messages_Before_Storing(t *testing.T) {
	server := newTestServer(t, defaultTestConfig(), badgerFilter{})

	alice := dialChat(t, server)
	alice.join("REGISTER", "alice", "pass1234")
	alice.expect("[USERS_LIST] alice")
	bob := dialChat(t, server)
	bob.join("REGISTER", "bob", "pass5678")
	bob.expect("[USERS_LIST] alice,bob")
	alice.expect("[USERS_LIST] alice,bob", "[SERVER] bob joined the chat.")

	alice.send("badger")
	bob.expect("alice: ******")

	// Empty frames are ignored
	alice.send("   ")
	alice.send("still here")
	bob.expect("alice: still here")

	carol := dialChat(t, server)
	history := carol.join("REGISTER", "carol", "pass9999")
	require.Len(t, history, 2)
	require.Contains(t, history[0], "alice: ******")
}

func TestServer_Oversized_Frame_Closes_Session(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxFrameSize = 64
	server := newTestServer(t, cfg, nil)

	alice := dialChat(t, server)
	alice.join("REGISTER", "alice", "pass1234")
	alice.expect("[USERS_LIST] alice")

	alice.send(string(make([]byte, 200)))
	alice.expect("[SERVER] message too long, closing connection")
	alice.expectClosed()
}

func TestServer_Admission_Control(t *testing.T) {
	req := require.New(t)
	cfg := defaultTestConfig()
	cfg.MaxConnections = 1
	server := newTestServer(t, cfg, nil)

	// Given one connection holding the only slot
	first := dialChat(t, server)
	first.expect(protocol.AuthRequired)

	// When another client connects, its TLS handshake is not served
	raw, err := net.DialTimeout("tcp", server.Addr().String(), frameWait)
	req.NoError(err)
	defer raw.Close()
	req.NoError(raw.SetDeadline(time.Now().Add(300 * time.Millisecond)))
	waiting := tls.Client(raw, &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}) //nolint:gosec
	req.Error(waiting.Handshake())
	_ = raw.Close()

	// Then the slot is reusable once the first client leaves
	_ = first.conn.Close()
	next := dialChat(t, server)
	next.expect(protocol.AuthRequired)
}

func TestServer_Start_Errors(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, defaultTestConfig(), nil)

	// Binding a taken address
	log := logs.GetLoggerFromLevel(slog.LevelError)
	other := NewServer(log, defaultTestConfig(), newTestStore(t), nil, nil)
	req.ErrorIs(other.Start(server.Addr().String()), errors.ErrBind)
	req.NoError(other.Shutdown(context.Background()))

	// Starting twice
	req.ErrorIs(server.Start("127.0.0.1:0"), errors.ErrBind)
}

func TestServer_Shutdown_Is_Terminal(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, defaultTestConfig(), nil)

	alice := dialChat(t, server)
	alice.join("REGISTER", "alice", "pass1234")
	alice.expect("[USERS_LIST] alice")
	pending := dialChat(t, server)
	pending.expect(protocol.AuthRequired)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req.NoError(server.Shutdown(ctx))

	// Every connection is closed, authenticated or not
	alice.expectClosed()
	pending.expectClosed()

	// And the server cannot be restarted
	req.ErrorIs(server.Start("127.0.0.1:0"), errors.ErrServerClosed)
	req.NoError(server.Shutdown(ctx))
}

func newTestStore(t *testing.T) *services.Store {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := repositories.OpenDB("", log)
	require.NoError(t, err)
	store, err := services.OpenStore(db, log, testParams)
	require.NoError(t, err)
	return store
}
