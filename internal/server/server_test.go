package server

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/wizard/internal/game"
	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/jason-s-yu/wizard/internal/session"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory transport.Conn.
type fakeConn struct {
	mu     sync.Mutex
	addr   string
	lines  []string
	closed bool
}

func (c *fakeConn) Send(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.lines = append(c.lines, line)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func (c *fakeConn) last() string {
	lines := c.all()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// bot is a scripted client that follows the protocol from what it receives.
type bot struct {
	name string
	conn *fakeConn
	read int

	stage   int // 0: expects id, 1: expects state marker, 2: expects own NewUser, 3: accepted
	hand    []models.Card
	trick   []models.Card
	lastBid int

	roundPoints int
	final       []int
	winners     [][]interface{}
	errors      []string
}

func newBot(name string, n int) *bot {
	return &bot{name: name, conn: &fakeConn{addr: "10.0.0." + strconv.Itoa(n) + ":4000"}}
}

// respond consumes unread lines and returns the replies the bot sends.
func (b *bot) respond(t *testing.T) []string {
	lines := b.conn.all()
	var out []string
	for ; b.read < len(lines); b.read++ {
		if reply, ok := b.react(t, lines[b.read]); ok {
			out = append(out, reply)
		}
	}
	return out
}

func (b *bot) react(t *testing.T, line string) (string, bool) {
	switch b.stage {
	case 0:
		b.stage = 1
		return line, true // identity handshake
	case 1:
		require.Equal(t, "1", line)
		b.stage = 2
		return b.name, true
	case 2:
		require.Equal(t, "100#"+b.name, line, "own NewUser confirms acceptance")
		b.stage = 3
		return "", false
	}

	id, payload, _ := strings.Cut(line, "#")
	switch id {
	case "104":
		b.hand = nil
		require.NoError(t, json.Unmarshal([]byte(payload), &b.hand))
	case "105":
		return "200#H", true
	case "107":
		b.lastBid = 0
		return "201#0", true
	case "404":
		require.Equal(t, "0", payload)
		b.lastBid = 1
		return "201#1", true
	case "110":
		_, tok, _ := strings.Cut(payload, "#")
		c, err := models.ParseCard(tok)
		require.NoError(t, err)
		b.trick = append(b.trick, c)
	case "111":
		b.trick = nil
	case "109":
		c := b.pick()
		for i, h := range b.hand {
			if h == c {
				b.hand = append(b.hand[:i], b.hand[i+1:]...)
				break
			}
		}
		return "202#" + c.String(), true
	case "112":
		b.roundPoints++
	case "113":
		require.NoError(t, json.Unmarshal([]byte(payload), &b.final))
	case "114":
		require.NoError(t, json.Unmarshal([]byte(payload), &b.winners))
	default:
		if len(id) == 3 && id[0] == '4' {
			b.errors = append(b.errors, line)
		}
	}
	return "", false
}

// pick returns a card that follows the led suit when possible.
func (b *bot) pick() models.Card {
	var led models.Suit
	for _, c := range b.trick {
		if !c.IsSpecial() {
			led = c.Suit
			break
		}
	}
	if led != 0 {
		for _, c := range b.hand {
			if c.Suit == led {
				return c
			}
		}
	}
	return b.hand[0]
}

// harness drives Server.handle synchronously.
type harness struct {
	t   *testing.T
	srv *Server
}

func newHarness(t *testing.T, players, rounds int) *harness {
	logger, _ := test.NewNullLogger()
	rules, err := game.NewRules(players, rounds, logger)
	require.NoError(t, err)
	srv := New(Options{
		Rules:     rules,
		Handshake: session.Identity,
		Rand:      rand.New(rand.NewSource(2024)),
	}, logger)
	return &harness{t: t, srv: srv}
}

func (h *harness) connect(c *fakeConn)           { h.srv.handle(event{kind: eventConnected, conn: c}) }
func (h *harness) send(c *fakeConn, line string) { h.srv.handle(event{kind: eventLine, conn: c, line: line}) }
func (h *harness) drop(c *fakeConn)              { h.srv.handle(event{kind: eventDisconnected, conn: c}) }

// pump lets every bot answer until nobody has anything left to say.
func (h *harness) pump(bots ...*bot) {
	for steps := 0; ; steps++ {
		require.Less(h.t, steps, 100000, "conversation should settle")
		progressed := false
		for _, b := range bots {
			for _, reply := range b.respond(h.t) {
				h.send(b.conn, reply)
				progressed = true
			}
		}
		if !progressed || h.srv.finished {
			return
		}
	}
}

func (h *harness) join(bots ...*bot) {
	for _, b := range bots {
		h.connect(b.conn)
		h.pump(bots...)
	}
}

// admit runs only the handshake of b. Later lines stay unread.
func (h *harness) admit(b *bot) {
	h.connect(b.conn)
	for b.stage < 3 {
		lines := b.conn.all()
		require.Less(h.t, b.read, len(lines), "%s is waiting for the server", b.name)
		reply, ok := b.react(h.t, lines[b.read])
		b.read++
		if ok {
			h.send(b.conn, reply)
		}
	}
}

func (h *harness) byName(bots []*bot, name string) *bot {
	for _, b := range bots {
		if b.name == name {
			return b
		}
	}
	h.t.Fatalf("no bot named %s", name)
	return nil
}

func TestFullMatchOverWire(t *testing.T) {
	h := newHarness(t, 4, 0)
	bots := []*bot{newBot("alice", 1), newBot("bob", 2), newBot("carol", 3), newBot("dave", 4)}
	h.join(bots...)
	for _, b := range bots {
		b.respond(t)
	}

	require.True(t, h.srv.finished)
	assert.NoError(t, h.srv.result)
	assert.True(t, h.srv.engine.Over())

	totals := h.srv.engine.Totals()
	for _, b := range bots {
		assert.Empty(t, b.errors, b.name)
		assert.Equal(t, 13, b.roundPoints, b.name)
		assert.Equal(t, totals, b.final, b.name)
		assert.Len(t, b.winners, len(game.Winners(totals)), b.name)
		assert.Empty(t, b.hand)
		assert.True(t, strings.HasPrefix(b.conn.last(), "114#"))
	}

	// StartGame lists every player once.
	var order []string
	for _, line := range bots[0].conn.all() {
		if payload, ok := strings.CutPrefix(line, "103#"); ok {
			require.NoError(t, json.Unmarshal([]byte(payload), &order))
		}
	}
	assert.ElementsMatch(t, []string{"alice", "bob", "carol", "dave"}, order)
}

func TestLobbyNotificationsAndChat(t *testing.T) {
	h := newHarness(t, 3, 0)
	alice, bob := newBot("alice", 1), newBot("bob", 2)
	h.join(alice, bob)

	assert.Contains(t, alice.conn.all(), "100#bob")
	assert.Contains(t, bob.conn.all(), "100#alice", "late joiners learn the lobby")

	h.send(alice.conn, "102#hello #table")
	assert.Equal(t, "102#alice#hello #table", bob.conn.last())
	assert.NotEqual(t, "102#alice#hello #table", alice.conn.last(), "chat is relayed to the others")

	h.send(bob.conn, "201#1")
	assert.Equal(t, "408#1", bob.conn.last(), "no match is running yet")

	h.send(bob.conn, "hello")
	assert.Equal(t, "401#hello", bob.conn.last())
	h.send(bob.conn, "77#x")
	assert.Equal(t, "401#77#x", bob.conn.last())
	h.send(bob.conn, "201#lots")
	assert.Equal(t, "404#lots", bob.conn.last())
	h.send(bob.conn, "102#caf\xc3\xa9")
	assert.Equal(t, "102#bob#caf  ", alice.conn.last(), "input is sanitized")
}

func TestHandshakeFailures(t *testing.T) {
	h := newHarness(t, 2, 0)
	c := &fakeConn{addr: "1.2.3.4:1"}
	h.connect(c)
	h.send(c, "not-a-number")
	assert.Equal(t, session.RejectionText, c.last())
	assert.True(t, c.isClosed())
	assert.Empty(t, h.srv.sessions)

	alice := newBot("alice", 1)
	h.join(alice)

	c2 := &fakeConn{addr: "1.2.3.4:2"}
	h.connect(c2)
	id := c2.all()[0]
	assert.NotEqual(t, alice.conn.all()[0], id, "ids are unique")
	h.send(c2, id)
	h.send(c2, "ALICE")
	assert.Equal(t, "402", c2.last())
	h.send(c2, "al ice")
	assert.Equal(t, "400", c2.last())
	assert.False(t, c2.isClosed())
	assert.Equal(t, 1, h.srv.registry.Count())
}

func TestServerFull(t *testing.T) {
	h := newHarness(t, 2, 1)
	alice, bob := newBot("alice", 1), newBot("bob", 2)

	pending := &fakeConn{addr: "9.9.9.9:1"}
	h.connect(pending)
	h.admit(alice)
	h.admit(bob)
	require.True(t, h.srv.engine.Running())

	late := &fakeConn{addr: "9.9.9.9:2"}
	h.connect(late)
	assert.Equal(t, []string{ServerFullText}, late.all())
	assert.True(t, late.isClosed())

	h.send(pending, pending.all()[0])
	assert.Equal(t, ServerFullText, pending.last())
	assert.True(t, pending.isClosed())
}

func TestTurnErrorsOverWire(t *testing.T) {
	h := newHarness(t, 3, 0)
	bots := []*bot{newBot("alice", 1), newBot("bob", 2), newBot("carol", 3)}
	for _, b := range bots {
		h.admit(b)
	}
	e := h.srv.engine
	require.True(t, e.Running())

	current := e.Players[e.Current]
	cur := h.byName(bots, current.Username)
	idle := h.byName(bots, e.Players[(e.Current+1)%3].Username)

	h.send(idle.conn, "201#0")
	assert.Equal(t, "403#0", idle.conn.last())

	if e.Phase == game.PhaseAwaitingBids {
		h.send(cur.conn, "202#"+current.Hand[0].String())
		assert.Equal(t, "408#"+current.Hand[0].String(), cur.conn.last())
		h.send(cur.conn, "201#9")
		assert.Equal(t, "404#9", cur.conn.last())
	} else {
		h.send(cur.conn, "200#N")
		assert.Equal(t, "405#N", cur.conn.last())
	}
}

func TestDisconnectBeforeMatchFreesSeat(t *testing.T) {
	h := newHarness(t, 3, 0)
	alice, bob := newBot("alice", 1), newBot("bob", 2)
	h.join(alice, bob)

	h.drop(bob.conn)
	assert.Equal(t, "101#bob", alice.conn.last())
	assert.Equal(t, 1, h.srv.registry.Count())
	assert.False(t, h.srv.finished)

	bob2 := newBot("bob", 3)
	h.join(alice, bob2)
	assert.Equal(t, 2, h.srv.registry.Count(), "username is free again")
}

func TestDisconnectMidMatchAborts(t *testing.T) {
	h := newHarness(t, 2, 0)
	alice, bob := newBot("alice", 1), newBot("bob", 2)
	h.admit(alice)
	h.admit(bob)
	require.True(t, h.srv.engine.Running())

	h.drop(alice.conn)
	assert.Equal(t, "101#alice", bob.conn.last())
	assert.True(t, h.srv.finished)
	assert.ErrorIs(t, h.srv.result, ErrMatchAborted)
	assert.True(t, h.srv.engine.Over())
}

func TestRunCompletesMatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rules, err := game.NewRules(2, 3, logger)
	require.NoError(t, err)
	srv := New(Options{Rules: rules, Handshake: session.Identity, Rand: rand.New(rand.NewSource(5))}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	bots := []*bot{newBot("alice", 1), newBot("bob", 2)}
	for _, b := range bots {
		srv.Connected(b.conn)
	}

	// bot state is only touched from this goroutine
	var runErr error
loop:
	for {
		select {
		case runErr = <-done:
			break loop
		case <-time.After(time.Millisecond):
			for _, b := range bots {
				for _, reply := range b.respond(t) {
					srv.Line(b.conn, reply)
				}
			}
		}
	}
	require.NoError(t, runErr)

	for _, b := range bots {
		b.respond(t)
		assert.True(t, b.conn.isClosed(), "connections are closed after the match")
		assert.Equal(t, 3, b.roundPoints)
		assert.NotEmpty(t, b.winners)
	}

	// events after Run returned are dropped instead of blocking
	srv.Disconnected(bots[0].conn, nil)
}

func TestRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rules, err := game.NewRules(2, 0, logger)
	require.NoError(t, err)
	srv := New(Options{Rules: rules, Rand: rand.New(rand.NewSource(1))}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	c := &fakeConn{addr: "1.1.1.1:1"}
	srv.Connected(c)
	require.Eventually(t, func() bool { return len(c.all()) == 1 }, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, c.isClosed())
}
