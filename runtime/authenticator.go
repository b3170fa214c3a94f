package runtime

import (
	goerrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"secure-chat/auth"
	"secure-chat/contract"
	"secure-chat/errors"
	"secure-chat/protocol"
)

// Authenticator drives the login/registration handshake of a session.
// One client frame is read per state, the prompt is always sent first.
type Authenticator struct {
	store   contract.CredentialStore
	timeout time.Duration
	log     *slog.Logger
}

func NewAuthenticator(store contract.CredentialStore, timeout time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{store: store, timeout: timeout, log: log}
}

// Authenticate runs the handshake up to verified credentials and returns the username.
// Registering the session as online is left to the caller. On failure the
// reason has been sent, the session is Rejected and the error wraps ErrAuthRejected.
func (a *Authenticator) Authenticate(session *Session) (string, error) {
	if err := session.Send(protocol.AuthRequired); err != nil {
		return "", a.abort(session, err)
	}

	choice, err := a.read(session)
	if err != nil {
		return "", a.fail(session, err)
	}
	choice = strings.ToUpper(strings.TrimSpace(choice))
	if choice != protocol.ChoiceLogin && choice != protocol.ChoiceRegister {
		return "", a.reject(session, errors.ErrInvalidChoice)
	}
	session.setState(AwaitingUsername)

	if err := session.Send(protocol.EnterUsername); err != nil {
		return "", a.abort(session, err)
	}
	username, err := a.read(session)
	if err != nil {
		return "", a.fail(session, err)
	}
	username = strings.TrimSpace(username)
	if err := auth.ValidateUsername(username); err != nil {
		return "", a.reject(session, err)
	}
	session.setState(AwaitingPassword)

	if err := session.Send(protocol.EnterPassword); err != nil {
		return "", a.abort(session, err)
	}
	password, err := a.read(session)
	if err != nil {
		return "", a.fail(session, err)
	}
	password = strings.TrimSpace(password)
	if err := auth.ValidatePassword(password); err != nil {
		return "", a.reject(session, err)
	}

	if choice == protocol.ChoiceRegister {
		err = a.store.RegisterUser(username, password)
	} else {
		err = a.store.Authenticate(username, password)
	}
	if err != nil {
		if goerrors.Is(err, errors.ErrStore) {
			a.log.Error("Credential store failure", "session_id", session.ID, "error", err)
		}
		return "", a.reject(session, err)
	}

	a.log.Debug("Credentials verified", "session_id", session.ID, "username", username, "choice", choice)
	return username, nil
}

func (a *Authenticator) read(session *Session) (string, error) {
	frame, err := session.ReadFrame(a.timeout)
	if goerrors.Is(err, os.ErrDeadlineExceeded) {
		return "", errors.ErrHandshakeTimeout
	}
	return frame, err
}

// fail handles a read error: timeouts and oversized frames still get a reason,
// a vanished client does not.
func (a *Authenticator) fail(session *Session, err error) error {
	if goerrors.Is(err, errors.ErrHandshakeTimeout) || goerrors.Is(err, errors.ErrFrameTooLarge) {
		return a.reject(session, err)
	}
	return a.abort(session, err)
}

// reject sends the reason matching err and moves the session to Rejected.
func (a *Authenticator) reject(session *Session, err error) error {
	if sendErr := session.Send(errors.MapToReply(err)); sendErr != nil {
		a.log.Debug("Unable to send rejection", "session_id", session.ID, "error", sendErr)
	}
	return a.abort(session, err)
}

func (a *Authenticator) abort(session *Session, err error) error {
	session.setState(Rejected)
	return fmt.Errorf("%w: %w", errors.ErrAuthRejected, err)
}
