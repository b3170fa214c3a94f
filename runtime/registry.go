package runtime

import (
	"fmt"
	"slices"
	"sync"

	"secure-chat/errors"
)

// PeerSendError records a failed write to one registered peer.
type PeerSendError struct {
	Session  *Session
	Username string
	Err      error
}

func (e *PeerSendError) Error() string {
	return fmt.Sprintf("%v to %s: %v", errors.ErrPeerSend, e.Username, e.Err)
}

func (e *PeerSendError) Unwrap() []error {
	return []error{errors.ErrPeerSend, e.Err}
}

// Registry maps authenticated sessions to their username.
// The lock only guards the maps, it is never held while writing to a socket.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Session]string
	online   map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[*Session]string),
		online:   make(map[string]*Session),
	}
}

// Add registers an authenticated session.
// A session is added at most once and a username is online at most once.
func (r *Registry) Add(session *Session, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session]; ok {
		return errors.ErrAlreadyRegistered
	}
	if _, ok := r.online[username]; ok {
		return errors.ErrUserOnline
	}
	r.sessions[session] = username
	r.online[username] = session
	return nil
}

// Remove deregisters a session and returns its username.
// Removing an absent session is a no-op returning false.
func (r *Registry) Remove(session *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(session)
}

// RemoveAll deregisters sessions in one pass and returns the usernames
// actually removed, so each departure is reported once.
func (r *Registry) RemoveAll(sessions []*Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]string, 0, len(sessions))
	for _, session := range sessions {
		if username, ok := r.removeLocked(session); ok {
			removed = append(removed, username)
		}
	}
	return removed
}

func (r *Registry) removeLocked(session *Session) (string, bool) {
	username, ok := r.sessions[session]
	if !ok {
		return "", false
	}
	delete(r.sessions, session)
	delete(r.online, username)
	return username, true
}

// Snapshot returns the sorted online usernames.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	usernames := make([]string, 0, len(r.online))
	for username := range r.online {
		usernames = append(usernames, username)
	}
	r.mu.RUnlock()

	slices.Sort(usernames)
	return usernames
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Contains(session *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[session]
	return ok
}

type peer struct {
	session  *Session
	username string
}

// ForEachExcept calls fn for every registered session but exclude.
// The peer list is copied under the lock and fn runs after it is released.
// Sessions registered meanwhile are not visited; failures are returned per peer.
func (r *Registry) ForEachExcept(exclude *Session, fn func(*Session) error) []PeerSendError {
	r.mu.RLock()
	peers := make([]peer, 0, len(r.sessions))
	for session, username := range r.sessions {
		if session != exclude {
			peers = append(peers, peer{session: session, username: username})
		}
	}
	r.mu.RUnlock()

	var failures []PeerSendError
	for _, p := range peers {
		if err := fn(p.session); err != nil {
			failures = append(failures, PeerSendError{Session: p.session, Username: p.username, Err: err})
		}
	}
	return failures
}
