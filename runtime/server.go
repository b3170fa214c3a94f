// Package runtime runs the chat server: connection lifecycle, authentication,
// the online registry and message fan-out.
package runtime

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"secure-chat/contract"
	"secure-chat/domain"
	"secure-chat/errors"
	"secure-chat/protocol"
	"secure-chat/runtime/workers"

	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxConnections = 256
	DefaultHistoryLimit   = 20

	acceptBackoff = 50 * time.Millisecond
)

type Config struct {
	MaxConnections    int
	HistoryLimit      int
	MaxFrameSize      int
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

// MessageFilter rewrites a chat message before it is stored and relayed.
type MessageFilter interface {
	Censor(text string) (string, []string)
}

// Server accepts TLS clients, authenticates them and relays their messages.
// It owns the store and closes it on Shutdown. A shut down Server cannot be restarted.
type Server struct {
	log           *slog.Logger
	cfg           Config
	store         contract.CredentialStore
	transport     contract.SecureTransport
	filter        MessageFilter
	registry      *Registry
	broadcaster   *Broadcaster
	authenticator *Authenticator
	supervisor    *workers.Supervisor
	slots         *semaphore.Weighted

	mu          sync.Mutex
	listener    net.Listener
	conns       map[net.Conn]*Session
	closed      bool
	wg          sync.WaitGroup
	workersDone chan struct{}
}

// NewServer wires a server; filter may be nil.
func NewServer(log *slog.Logger, cfg Config, store contract.CredentialStore,
	transport contract.SecureTransport, filter MessageFilter) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	registry := NewRegistry()
	return &Server{
		log:           log,
		cfg:           cfg,
		store:         store,
		transport:     transport,
		filter:        filter,
		registry:      registry,
		broadcaster:   NewBroadcaster(registry, log),
		authenticator: NewAuthenticator(store, cfg.HandshakeTimeout, log),
		supervisor:    workers.NewSupervisor(log),
		slots:         semaphore.NewWeighted(int64(cfg.MaxConnections)),
		conns:         make(map[net.Conn]*Session),
	}
}

// Start binds addr and runs the accept loop in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrServerClosed
	}
	if s.listener != nil {
		return fmt.Errorf("%w: already listening on %s", errors.ErrBind, s.listener.Addr())
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrBind, addr, err)
	}
	s.listener = listener

	s.supervisor.Add(&AcceptWorker{server: s, listener: listener})
	if s.cfg.HeartbeatInterval > 0 {
		s.supervisor.Add(workers.NewHeartbeatWorker(s.log, s.cfg.HeartbeatInterval, s.registry))
	}
	done := make(chan struct{})
	s.workersDone = done
	go func() {
		defer close(done)
		s.supervisor.Run(context.Background())
	}()

	s.log.Info("Chat server listening", "addr", listener.Addr().String(), "max_connections", s.cfg.MaxConnections)
	return nil
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Online returns the sorted usernames currently connected.
func (s *Server) Online() []string {
	return s.registry.Snapshot()
}

// Shutdown stops accepting, closes every connection, waits for their goroutines
// then closes the store. If ctx expires first the store is closed anyway and
// ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	workersDone := s.workersDone
	conns := make(map[net.Conn]*Session, len(s.conns))
	for raw, session := range s.conns {
		conns[raw] = session
	}
	s.mu.Unlock()

	s.log.Info("Shutting down chat server", "connections", len(conns))
	if listener != nil {
		_ = listener.Close()
	}
	s.supervisor.Stop()
	for raw, session := range conns {
		if session != nil {
			_ = session.Close()
		} else {
			_ = raw.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		if workersDone != nil {
			<-workersDone
		}
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.log.Warn("Shutdown deadline reached before every connection ended", "error", err)
	}
	if closeErr := s.store.Close(); closeErr != nil {
		err = goerrors.Join(err, fmt.Errorf("close store: %w", closeErr))
	}
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track registers an accepted connection, refused once shutdown began.
func (s *Server) track(raw net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[raw] = nil
	s.wg.Add(1)
	return true
}

func (s *Server) attach(raw net.Conn, session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[raw] = session
	return true
}

func (s *Server) untrack(raw net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, raw)
}

// AcceptWorker is the supervised accept loop. A connection slot is taken
// before each Accept so clients beyond MaxConnections wait in the backlog.
type AcceptWorker struct {
	server   *Server
	listener net.Listener
}

func (w *AcceptWorker) Run(ctx context.Context) error {
	s := w.server
	for {
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil
		}
		raw, err := w.listener.Accept()
		if err != nil {
			s.slots.Release(1)
			if goerrors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}
		if !s.track(raw) {
			_ = raw.Close()
			s.slots.Release(1)
			return nil
		}
		go s.handle(ctx, raw)
	}
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	defer s.wg.Done()
	defer s.slots.Release(1)
	defer s.untrack(raw)
	defer raw.Close()

	remoteAddr := raw.RemoteAddr().String()
	handshakeCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.HandshakeTimeout > 0 {
		handshakeCtx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	}
	secured, err := s.transport.Secure(handshakeCtx, raw)
	cancel()
	if err != nil {
		s.log.Debug("Transport handshake failed", "remote_addr", remoteAddr, "error", err)
		return
	}

	session := NewSession(secured, s.cfg.MaxFrameSize, s.cfg.WriteTimeout)
	defer session.Close()
	if !s.attach(raw, session) {
		return
	}
	s.serve(session)
}

// serve runs the session lifecycle once the stream is secured.
func (s *Server) serve(session *Session) {
	log := s.log.With("session_id", session.ID, "remote_addr", session.RemoteAddr)
	log.Debug("Session opened")

	username, err := s.authenticator.Authenticate(session)
	if err != nil {
		log.Info("Authentication rejected", "error", err)
		return
	}
	if err := s.join(session, username); err != nil {
		log.Info("Join failed", "username", username, "error", err)
		return
	}

	log = log.With("username", username)
	log.Info("User joined", "online", s.registry.Len())
	defer s.leave(session, log)
	s.messageLoop(session, username, log)
}

// join registers the session, confirms authentication and replays history
// under the session write lock, then announces the newcomer.
func (s *Server) join(session *Session, username string) error {
	added := false
	err := session.Exclusive(func(send func(string) error) error {
		if err := s.registry.Add(session, username); err != nil {
			_ = send(errors.MapToReply(err))
			session.setState(Rejected)
			return fmt.Errorf("%w: %w", errors.ErrAuthRejected, err)
		}
		added = true
		session.authenticate(username)
		if err := send(protocol.AuthSuccessFrame(username)); err != nil {
			return err
		}
		return s.replayHistory(send)
	})
	if err != nil {
		if added {
			s.registry.Remove(session)
			s.broadcaster.Presence()
		}
		return err
	}

	s.broadcaster.Presence()
	s.broadcaster.Broadcast(protocol.JoinedLine(username), session)
	return nil
}

// replayHistory writes the last messages between the history markers.
// A store failure yields an empty replay.
func (s *Server) replayHistory(send func(string) error) error {
	var history []domain.ChatMessage
	if s.cfg.HistoryLimit > 0 {
		var err error
		history, err = s.store.GetHistory(s.cfg.HistoryLimit)
		if err != nil {
			s.log.Error("Unable to load history", "error", err)
			history = nil
		}
	}

	lines := lo.Map(history, func(m domain.ChatMessage, _ int) string {
		return protocol.HistoryLine(m.At, m.Username, m.Text)
	})
	for _, line := range append(append([]string{protocol.HistoryStart}, lines...), protocol.HistoryEnd) {
		if err := send(line); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) messageLoop(session *Session, username string, log *slog.Logger) {
	for {
		frame, err := session.ReadFrame(0)
		if err != nil {
			switch {
			case goerrors.Is(err, errors.ErrFrameTooLarge):
				log.Warn("Frame too large, closing session", "max_frame_size", s.cfg.MaxFrameSize)
				_ = session.Send(protocol.ServerLine("message too long, closing connection"))
			case goerrors.Is(err, io.EOF) || !session.Alive():
			default:
				log.Debug("Read failed", "error", err)
			}
			return
		}

		text := strings.TrimSpace(frame)
		if text == "" {
			continue
		}
		if protocol.IsQuit(text) {
			log.Debug("Client quit")
			return
		}
		if s.filter != nil {
			var censored []string
			if text, censored = s.filter.Censor(text); len(censored) > 0 {
				log.Info("Message censored", "matches", len(censored))
			}
		}

		if _, err := s.store.LogMessage(username, text); err != nil {
			log.Error("Unable to persist message, relaying anyway", "error", err)
		}
		report := s.broadcaster.Broadcast(protocol.ChatLine(username, text), session)
		log.Debug("Message relayed", "delivered", report.Delivered, "evicted", len(report.Evicted))
	}
}

// leave deregisters the session and tells the others, unless the broadcaster
// already evicted it. Departures during shutdown are not announced.
func (s *Server) leave(session *Session, log *slog.Logger) {
	username, ok := s.registry.Remove(session)
	_ = session.Close()
	if !ok {
		return
	}
	log.Info("User left", "online", s.registry.Len())
	if s.isClosed() {
		return
	}
	s.broadcaster.Leave(username)
}
