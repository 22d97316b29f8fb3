// internal/session/session.go
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/jason-s-yu/wizard/internal/protocol"
	"github.com/sirupsen/logrus"
)

// RejectionText is sent to peers that fail the handshake before they are dropped.
const RejectionText = "You are not a wizard cardgame client."

var (
	ErrHandshakeFailed   = errors.New("handshake failed")
	ErrForbiddenUsername = errors.New("username must be non-empty and alphanumeric")
	ErrTakenUsername     = errors.New("username already taken")
	ErrNoTransition      = errors.New("no transition from state")
)

// State is the handshake state of a connection.
type State int

const (
	AwaitingHandshake State = iota
	AwaitingUsername
	Accepted
)

func (s State) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting_handshake"
	case AwaitingUsername:
		return "awaiting_username"
	case Accepted:
		return "accepted"
	}
	return fmt.Sprintf("state_%d", int(s))
}

// Next returns the state that follows s once its step has succeeded.
func (s State) Next() (State, error) {
	switch s {
	case AwaitingHandshake:
		return AwaitingUsername, nil
	case AwaitingUsername:
		return Accepted, nil
	}
	return s, fmt.Errorf("%w %s", ErrNoTransition, s)
}

// Conn is the line transport a session writes to.
type Conn interface {
	Send(line string) bool
	Close()
	RemoteAddr() string
}

// Outcome tells the caller what a handshake line led to.
type Outcome int

const (
	OutcomePending  Outcome = iota // still in the handshake, connection open
	OutcomeAccepted                // the session just became a player
	OutcomeRejected                // the peer was dropped
	OutcomeGameplay                // the line belongs to the game, session was already accepted
)

// Session is one connected peer.
type Session struct {
	ID       models.SessionID
	conn     Conn
	state    State
	username string
	closed   bool

	handshake HandshakeFunc
	logger    logrus.FieldLogger
}

// New wraps a fresh connection. Call Greet to start the handshake.
func New(id models.SessionID, conn Conn, handshake HandshakeFunc, logger logrus.FieldLogger) *Session {
	if handshake == nil {
		handshake = Identity
	}
	return &Session{
		ID:        id,
		conn:      conn,
		state:     AwaitingHandshake,
		handshake: handshake,
		logger: logger.WithFields(logrus.Fields{
			"session": id,
			"remote":  conn.RemoteAddr(),
		}),
	}
}

func (s *Session) State() State               { return s.state }
func (s *Session) Username() string           { return s.username }
func (s *Session) RemoteAddr() string         { return s.conn.RemoteAddr() }
func (s *Session) IsAccepted() bool           { return s.state == Accepted }
func (s *Session) Conn() Conn                 { return s.conn }
func (s *Session) Logger() logrus.FieldLogger { return s.logger }

// Greet sends the session id, the first line of the handshake.
func (s *Session) Greet() {
	s.Send(strconv.Itoa(int(s.ID)))
}

// Send writes a raw line. Returns false if the connection is gone.
func (s *Session) Send(line string) bool {
	if s.closed {
		return false
	}
	return s.conn.Send(line)
}

// SendMsg encodes and writes a protocol message.
func (s *Session) SendMsg(msg protocol.Outbound) bool {
	return s.Send(protocol.Encode(msg))
}

// Reject sends a plain-text reason and closes the connection.
func (s *Session) Reject(reason string) {
	s.Send(reason)
	s.Close()
}

// Close closes the connection once. Queued lines are still flushed.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	return s.closed
}

// Receive feeds one sanitized line through the handshake state machine.
// Lines from accepted sessions are left to the caller (OutcomeGameplay).
func (s *Session) Receive(line string, reg *Registry) Outcome {
	switch s.state {
	case AwaitingHandshake:
		if err := s.checkHandshake(line); err != nil {
			s.logger.WithError(err).Warn("non-wizard connection")
			s.Reject(RejectionText)
			return OutcomeRejected
		}
		s.advance()
		s.Send(protocol.EncodeBare(int(protocol.StateAwaitingUsername)))
		return OutcomePending

	case AwaitingUsername:
		if err := ValidateUsername(line); err != nil {
			s.logger.WithField("username", line).Info("refused username")
			s.Send(protocol.EncodeBare(int(protocol.ForbiddenUsername)))
			return OutcomePending
		}
		if reg.UsernameTaken(line) {
			s.logger.WithField("username", line).Info("username already taken")
			s.Send(protocol.EncodeBare(int(protocol.TakenUsername)))
			return OutcomePending
		}
		s.username = line
		s.advance()
		if err := reg.Admit(s); err != nil {
			s.logger.WithError(err).Warn("could not register session")
			s.Reject(err.Error())
			return OutcomeRejected
		}
		s.logger.WithField("username", line).Info("user accepted")
		return OutcomeAccepted

	default:
		return OutcomeGameplay
	}
}

func (s *Session) advance() {
	next, err := s.state.Next()
	if err != nil {
		s.logger.WithError(err).Error("invalid state transition")
		return
	}
	s.logger.WithFields(logrus.Fields{"from": s.state, "to": next}).Debug("handshake step")
	s.state = next
}

func (s *Session) checkHandshake(line string) error {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("%w: non-numeric answer %q", ErrHandshakeFailed, line)
	}
	if want := s.handshake(int(s.ID)); n != want {
		return fmt.Errorf("%w: got %d, want %d", ErrHandshakeFailed, n, want)
	}
	return nil
}

// ValidateUsername accepts non-empty ASCII alphanumeric names.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrForbiddenUsername
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return ErrForbiddenUsername
		}
	}
	return nil
}
