// internal/server/server.go
package server

import (
	"context"
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wizard/internal/cache"
	"github.com/jason-s-yu/wizard/internal/game"
	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/jason-s-yu/wizard/internal/protocol"
	"github.com/jason-s-yu/wizard/internal/session"
	"github.com/jason-s-yu/wizard/internal/transport"
	"github.com/sirupsen/logrus"
)

// ServerFullText is sent to connections that arrive once every seat is taken.
const ServerFullText = "The server is full."

// ErrMatchAborted is returned by Run when a seated player leaves mid-match.
var ErrMatchAborted = errors.New("match aborted: a player left")

const eventBuffer = 1024

type eventKind int

const (
	eventConnected eventKind = iota
	eventLine
	eventDisconnected
)

// event is one transport callback, queued for the dispatch loop.
type event struct {
	kind eventKind
	conn transport.Conn
	line string
	err  error
}

// Options configures a Server.
type Options struct {
	Rules     game.Rules
	Handshake session.HandshakeFunc
	Rand      *rand.Rand    // drives session ids, seating, shuffles and trumps
	Journal   cache.Journal // nil for none
}

// Server owns every session, the registry and the engine. All of them are
// touched only from the goroutine running Run.
type Server struct {
	events  chan event
	stopped chan struct{}

	handshake session.HandshakeFunc
	ids       *session.IDPool
	registry  *session.Registry
	engine    *game.Engine
	sessions  map[transport.Conn]*session.Session
	logger    logrus.FieldLogger

	finished bool
	result   error
}

// New builds a server for a single match.
func New(opts Options, logger logrus.FieldLogger) *Server {
	s := &Server{
		events:    make(chan event, eventBuffer),
		stopped:   make(chan struct{}),
		handshake: opts.Handshake,
		ids:       session.NewIDPool(opts.Rand),
		registry:  session.NewRegistry(opts.Rules.NumPlayers),
		sessions:  make(map[transport.Conn]*session.Session),
		logger:    logger,
	}
	s.engine = game.NewEngine(opts.Rules, opts.Rand, logger, opts.Journal)
	s.engine.BroadcastFn = s.registry.BroadcastToAll
	s.engine.SendFn = func(id models.SessionID, msg protocol.Outbound) {
		s.registry.Send(id, msg)
	}
	s.engine.OnMatchEnd = func(matchID uuid.UUID, winners []protocol.Winner) {
		s.logger.WithFields(logrus.Fields{"match_id": matchID, "winners": winners}).Info("final winners announced")
		s.finish(nil)
	}
	return s
}

// Engine exposes the match state, mainly for logging and tests.
func (s *Server) Engine() *game.Engine {
	return s.engine
}

// Connected implements transport.Sink.
func (s *Server) Connected(c transport.Conn) {
	s.enqueue(event{kind: eventConnected, conn: c})
}

// Line implements transport.Sink.
func (s *Server) Line(c transport.Conn, line string) {
	s.enqueue(event{kind: eventLine, conn: c, line: line})
}

// Disconnected implements transport.Sink.
func (s *Server) Disconnected(c transport.Conn, err error) {
	s.enqueue(event{kind: eventDisconnected, conn: c, err: err})
}

// enqueue hands an event to the dispatch loop, dropping it once Run has returned.
func (s *Server) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.stopped:
	}
}

// Run processes events one at a time until the match ends, it is aborted, or
// ctx is done. Every connection is closed (after flushing) before it returns.
func (s *Server) Run(ctx context.Context) error {
	defer close(s.stopped)
	defer s.closeAll()

	for {
		select {
		case <-ctx.Done():
			if s.engine.Running() {
				s.engine.Abort("server shutting down")
			}
			s.logger.Info("dispatcher stopped")
			return nil
		case ev := <-s.events:
			s.handle(ev)
			if s.finished {
				return s.result
			}
		}
	}
}

func (s *Server) handle(ev event) {
	switch ev.kind {
	case eventConnected:
		s.handleConnect(ev.conn)
	case eventLine:
		s.handleLine(ev.conn, ev.line)
	case eventDisconnected:
		s.handleDisconnect(ev.conn, ev.err)
	}
}

func (s *Server) handleConnect(c transport.Conn) {
	if s.registry.IsFull() {
		s.logger.WithField("remote", c.RemoteAddr()).Info("rejected connection, server is full")
		c.Send(ServerFullText)
		c.Close()
		return
	}
	id, err := s.ids.Next()
	if err != nil {
		s.logger.WithError(err).Error("cannot assign session id")
		c.Close()
		return
	}
	sess := session.New(id, c, s.handshake, s.logger)
	s.sessions[c] = sess
	sess.Logger().Debug("new connection")
	sess.Greet()
}

func (s *Server) handleLine(c transport.Conn, raw string) {
	sess, ok := s.sessions[c]
	if !ok {
		return
	}
	line := protocol.Sanitize(raw)
	sess.Logger().WithField("line", line).Debug("received")

	if !sess.IsAccepted() && s.registry.IsFull() {
		sess.Reject(ServerFullText)
		delete(s.sessions, c)
		return
	}

	switch sess.Receive(line, s.registry) {
	case session.OutcomeRejected:
		delete(s.sessions, c)
	case session.OutcomeAccepted:
		if s.registry.IsFull() {
			s.startMatch()
		}
	case session.OutcomeGameplay:
		s.handleGameplay(sess, line)
	}
}

func (s *Server) startMatch() {
	accepted := s.registry.Sessions()
	players := make([]*models.Player, len(accepted))
	for i, sess := range accepted {
		players[i] = models.NewPlayer(sess.ID, sess.Username())
	}
	if err := s.engine.Start(players); err != nil {
		s.logger.WithError(err).Error("failed to start match")
	}
}

func (s *Server) handleGameplay(sess *session.Session, line string) {
	msg, err := protocol.Decode(line)
	if err != nil {
		code := protocol.DecodeErrorCode(err)
		detail := line
		if code != protocol.UnknownMessage {
			_, detail, _ = protocol.Split(line)
		}
		sess.Logger().WithError(err).Info("rejected message")
		sess.SendMsg(protocol.ErrorReply{Code: code, Detail: detail})
		return
	}

	if chat, ok := msg.(protocol.ChatRequest); ok {
		s.registry.BroadcastToOthers(sess.ID, protocol.ChatNotice{From: sess.Username(), Text: chat.Text})
		return
	}

	if err := s.engine.Handle(sess.ID, msg); err != nil {
		_, payload, _ := protocol.Split(line)
		code := game.ErrorCode(err)
		sess.Logger().WithFields(logrus.Fields{
			"code":  code,
			"error": err,
		}).Info("rejected move")
		sess.SendMsg(protocol.ErrorReply{Code: code, Detail: payload})
	}
}

func (s *Server) handleDisconnect(c transport.Conn, err error) {
	sess, ok := s.sessions[c]
	if !ok {
		return
	}
	delete(s.sessions, c)
	sess.Close()

	if !sess.IsAccepted() {
		sess.Logger().Debug("connection closed during handshake")
		return
	}

	s.registry.Remove(sess.ID)
	s.registry.BroadcastToAll(protocol.UserLeftNotice{Username: sess.Username()})
	fields := logrus.Fields{"username": sess.Username()}
	if err != nil {
		fields["error"] = err
	}
	sess.Logger().WithFields(fields).Info("user left")

	if s.engine.Running() {
		s.engine.Abort("player " + sess.Username() + " left")
		s.finish(ErrMatchAborted)
	}
}

func (s *Server) finish(err error) {
	s.finished = true
	s.result = err
}

// closeAll flushes and closes every remaining connection.
func (s *Server) closeAll() {
	for c, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, c)
	}
}
