package runtime

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"secure-chat/errors"
	"secure-chat/protocol"

	"github.com/google/uuid"
)

type AuthState int

const (
	AwaitingChoice AuthState = iota
	AwaitingUsername
	AwaitingPassword
	Authenticated
	Rejected
)

func (s AuthState) String() string {
	switch s {
	case AwaitingChoice:
		return "AWAITING_CHOICE"
	case AwaitingUsername:
		return "AWAITING_USERNAME"
	case AwaitingPassword:
		return "AWAITING_PASSWORD"
	case Authenticated:
		return "AUTHENTICATED"
	case Rejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// Session is one connected client.
// Reads happen on the connection goroutine only. Writes may come from any
// goroutine and are serialized by writeMu so frames never interleave.
type Session struct {
	ID         string
	RemoteAddr string

	conn         net.Conn
	reader       *protocol.Reader
	writeTimeout time.Duration
	writeMu      sync.Mutex

	mu       sync.RWMutex
	state    AuthState
	username string

	alive     atomic.Bool
	closeOnce sync.Once
}

func NewSession(conn net.Conn, maxFrameSize int, writeTimeout time.Duration) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		conn:         conn,
		reader:       protocol.NewReader(conn, maxFrameSize),
		writeTimeout: writeTimeout,
		state:        AwaitingChoice,
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.RemoteAddr = addr.String()
	}
	s.alive.Store(true)
	return s
}

func (s *Session) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Username is empty until the session is authenticated.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Alive() bool {
	return s.alive.Load()
}

func (s *Session) setState(state AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) authenticate(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticated
	s.username = username
}

// ReadFrame blocks for the next client frame. A positive timeout bounds the wait,
// zero waits forever.
func (s *Session) ReadFrame(timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	return s.reader.ReadFrame()
}

// Send writes one frame under the session write lock.
func (s *Session) Send(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.write(frame)
}

// Exclusive holds the write lock for the whole of fn, so a multi-frame
// sequence reaches the client without foreign frames in between.
// fn must write through the given send function only.
func (s *Session) Exclusive(fn func(send func(frame string) error) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return fn(s.write)
}

func (s *Session) write(frame string) error {
	if !s.alive.Load() {
		return fmt.Errorf("%w: session closed", errors.ErrPeerSend)
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return protocol.WriteFrame(s.conn, frame)
}

// Close marks the session dead and closes the stream. Safe to call many times
// from any goroutine; a blocked ReadFrame returns an error.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		err = s.conn.Close()
	})
	return err
}
