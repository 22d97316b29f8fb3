// internal/game/game.go
package game

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wizard/internal/cache"
	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/jason-s-yu/wizard/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Rule and turn errors. Each maps to exactly one protocol error code.
var (
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidMove      = errors.New("invalid move")
	ErrInvalidNumTricks = errors.New("invalid number of tricks")
	ErrInvalidTrump     = errors.New("invalid trump")
	ErrInvalidCard      = errors.New("invalid card")
	ErrNotFollowedSuit  = errors.New("suit not followed")

	ErrAlreadyStarted = errors.New("match already started")
	ErrSeatCount      = errors.New("wrong number of players")
)

// ErrorCode returns the protocol reply for an engine error.
func ErrorCode(err error) protocol.MessageID {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return protocol.NotYourTurn
	case errors.Is(err, ErrInvalidNumTricks):
		return protocol.InvalidNumTricks
	case errors.Is(err, ErrInvalidTrump):
		return protocol.InvalidTrump
	case errors.Is(err, ErrInvalidCard):
		return protocol.InvalidCard
	case errors.Is(err, ErrNotFollowedSuit):
		return protocol.NotFollowedSuit
	default:
		return protocol.InvalidMove
	}
}

// Phase is the turn phase of the match.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseAwaitingTrump
	PhaseAwaitingBids
	PhaseAwaitingCard
	PhaseMatchOver
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseAwaitingTrump:
		return "awaiting_trump"
	case PhaseAwaitingBids:
		return "awaiting_bids"
	case PhaseAwaitingCard:
		return "awaiting_card"
	case PhaseMatchOver:
		return "match_over"
	}
	return fmt.Sprintf("phase_%d", int(p))
}

// active reports whether a round is being played.
func (p Phase) active() bool {
	return p == PhaseAwaitingTrump || p == PhaseAwaitingBids || p == PhaseAwaitingCard
}

// OnMatchEndFunc receives the final winner set once the last round is scored.
type OnMatchEndFunc func(matchID uuid.UUID, winners []protocol.Winner)

// Engine holds the entire state of the single match a server runs.
// It is driven from one goroutine and is not safe for concurrent use.
type Engine struct {
	ID    uuid.UUID
	Rules Rules

	Players []*models.Player // seat order, fixed at Start
	Round   int
	Trump   models.Trump
	Phase   Phase

	Current int // seat whose move is expected
	Starter int // seat that opened the round
	trick   []Play

	// RoundHistory holds every round's score vector in seat order.
	RoundHistory [][]int

	dealer      *Dealer
	rng         *rand.Rand
	actionIndex int
	logger      logrus.FieldLogger
	journal     cache.Journal

	// BroadcastFn sends a message to every seated player. If nil, no broadcast is done.
	BroadcastFn func(msg protocol.Outbound)

	// SendFn sends a message to a single seated player.
	SendFn func(id models.SessionID, msg protocol.Outbound)

	// OnMatchEnd is invoked after the final winners are broadcast.
	OnMatchEnd OnMatchEndFunc
}

// NewEngine builds an idle engine. rng drives seat order, shuffles and trump draws.
func NewEngine(rules Rules, rng *rand.Rand, logger logrus.FieldLogger, journal cache.Journal) *Engine {
	id, _ := uuid.NewRandom()
	if journal == nil {
		journal = cache.NopJournal{}
	}
	return &Engine{
		ID:      id,
		Rules:   rules,
		Phase:   PhaseWaiting,
		dealer:  NewDealer(rng),
		rng:     rng,
		logger:  logger.WithField("match_id", id),
		journal: journal,
	}
}

// Start seats the players in a random order, announces it and deals round 1.
func (e *Engine) Start(players []*models.Player) error {
	if e.Phase != PhaseWaiting {
		return ErrAlreadyStarted
	}
	if len(players) != e.Rules.NumPlayers {
		return fmt.Errorf("%w: need %d, got %d", ErrSeatCount, e.Rules.NumPlayers, len(players))
	}

	e.Players = make([]*models.Player, len(players))
	copy(e.Players, players)
	e.rng.Shuffle(len(e.Players), func(i, j int) {
		e.Players[i], e.Players[j] = e.Players[j], e.Players[i]
	})

	order := e.usernames()
	e.logger.WithFields(logrus.Fields{
		"order":  order,
		"rounds": e.Rules.MaxRounds,
	}).Info("match started")
	e.logAction("", "match_start", map[string]interface{}{"order": order, "rounds": e.Rules.MaxRounds})
	e.fireEvent(protocol.StartGameNotice{Order: order})

	e.nextRound()
	return nil
}

// Running reports whether the match has started and not yet ended.
func (e *Engine) Running() bool {
	return e.Phase.active()
}

// Over reports whether the final winners have been announced or the match was aborted.
func (e *Engine) Over() bool {
	return e.Phase == PhaseMatchOver
}

// Seat returns the seat index of a session, or -1 if it is not seated.
func (e *Engine) Seat(id models.SessionID) int {
	for i, p := range e.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CurrentTrick returns a copy of the cards played in the running trick.
func (e *Engine) CurrentTrick() []Play {
	return append([]Play(nil), e.trick...)
}

// Handle applies a decoded gameplay request from a seated player.
func (e *Engine) Handle(id models.SessionID, msg protocol.Inbound) error {
	switch m := msg.(type) {
	case protocol.TrumpRequest:
		return e.SayTrump(id, m.Trump)
	case protocol.TricksRequest:
		return e.SayTricks(id, m.N)
	case protocol.CardRequest:
		return e.SayCard(id, m.Card)
	default:
		return fmt.Errorf("%w: %s is not a game move", ErrInvalidMove, msg.Kind())
	}
}

// checkTurn validates that id is the current seat and the match is in phase.
func (e *Engine) checkTurn(id models.SessionID, phase Phase) (*models.Player, error) {
	if !e.Phase.active() {
		return nil, fmt.Errorf("%w: no round in progress", ErrInvalidMove)
	}
	seat := e.Seat(id)
	if seat < 0 {
		return nil, fmt.Errorf("%w: session %d is not seated", ErrInvalidMove, id)
	}
	if seat != e.Current {
		return nil, ErrNotYourTurn
	}
	if e.Phase != phase {
		return nil, fmt.Errorf("%w: expected %s, match is in %s", ErrInvalidMove, phase, e.Phase)
	}
	return e.Players[seat], nil
}

// nextRound deals the next round and asks the starting seat for trump or bid.
func (e *Engine) nextRound() {
	e.Round++
	for _, p := range e.Players {
		p.ResetRound()
	}
	e.trick = nil

	n := len(e.Players)
	e.Starter = e.Round % n
	e.Current = e.Starter

	hands, _ := e.dealer.Deal(n, e.Round)
	for i, p := range e.Players {
		p.Hand = hands[i]
		e.fireEventToPlayer(p.ID, protocol.DealCardsNotice{Cards: p.Hand})
	}

	e.Trump = e.dealer.DrawTrump()
	e.logger.WithFields(logrus.Fields{
		"round":   e.Round,
		"trump":   e.Trump.String(),
		"starter": e.Players[e.Starter].Username,
	}).Info("round dealt")
	e.logAction("", "round_start", map[string]interface{}{
		"round":   e.Round,
		"trump":   e.Trump.String(),
		"starter": e.Players[e.Starter].Username,
		"hands":   e.handTokens(),
	})
	e.fireEvent(protocol.FoundTrumpNotice{Trump: e.Trump})

	starter := e.Players[e.Starter]
	if e.Trump == models.PlayerChoice {
		e.Phase = PhaseAwaitingTrump
		e.fireEventToPlayer(starter.ID, protocol.AskTrumpNotice{})
		return
	}
	e.Phase = PhaseAwaitingBids
	e.fireEventToPlayer(starter.ID, protocol.AskTricksNotice{Round: e.Round})
}

// SayTrump sets the trump when the starting seat was given the choice.
func (e *Engine) SayTrump(id models.SessionID, trump models.Trump) error {
	p, err := e.checkTurn(id, PhaseAwaitingTrump)
	if err != nil {
		return err
	}
	if _, ok := trump.Suit(); !ok {
		return fmt.Errorf("%w: %s is not a suit", ErrInvalidTrump, trump)
	}

	e.Trump = trump
	e.Phase = PhaseAwaitingBids
	e.logAction(p.Username, "say_trump", map[string]interface{}{"trump": trump.String()})
	e.fireEvent(protocol.FoundTrumpNotice{Trump: trump})
	e.fireEventToPlayer(p.ID, protocol.AskTricksNotice{Round: e.Round})
	return nil
}

// SayTricks records a bid. The last bidder may not bring the sum of bids to the round number.
func (e *Engine) SayTricks(id models.SessionID, bid int) error {
	p, err := e.checkTurn(id, PhaseAwaitingBids)
	if err != nil {
		return err
	}
	if bid < 0 || bid > e.Round {
		return fmt.Errorf("%w: %d not in 0..%d", ErrInvalidNumTricks, bid, e.Round)
	}

	n := len(e.Players)
	next := (e.Current + 1) % n
	if next == e.Starter {
		sum := bid
		for _, other := range e.Players {
			if other != p {
				sum += other.Bid
			}
		}
		if sum == e.Round {
			return fmt.Errorf("%w: bids may not add up to %d", ErrInvalidNumTricks, e.Round)
		}
	}

	p.Bid = bid
	e.logAction(p.Username, "say_tricks", map[string]interface{}{"tricks": bid})
	e.fireEvent(protocol.PlayerSaidTricksNotice{Username: p.Username, N: bid})

	e.Current = next
	if e.Current == e.Starter {
		e.Phase = PhaseAwaitingCard
	}
	e.askCurrent()
	return nil
}

// SayCard plays a card from the current seat's hand into the trick.
func (e *Engine) SayCard(id models.SessionID, card models.Card) error {
	p, err := e.checkTurn(id, PhaseAwaitingCard)
	if err != nil {
		return err
	}
	if !p.HasCard(card) {
		return fmt.Errorf("%w: %s is not in hand", ErrInvalidCard, card)
	}
	if err := checkFollowSuit(p.Hand, card, e.trick); err != nil {
		return err
	}

	p.RemoveCard(card)
	e.trick = append(e.trick, Play{Seat: e.Current, Card: card})
	e.logAction(p.Username, "say_card", map[string]interface{}{"card": card.String()})
	e.fireEvent(protocol.PlayerPlayedCardNotice{Username: p.Username, Card: card})

	if len(e.trick) < len(e.Players) {
		e.Current = (e.Current + 1) % len(e.Players)
		e.askCurrent()
		return nil
	}
	e.resolveTrick()
	return nil
}

// askCurrent prompts the current seat for the move its phase expects.
func (e *Engine) askCurrent() {
	p := e.Players[e.Current]
	switch e.Phase {
	case PhaseAwaitingBids:
		e.fireEventToPlayer(p.ID, protocol.AskTricksNotice{Round: e.Round})
	case PhaseAwaitingCard:
		e.fireEventToPlayer(p.ID, protocol.AskCardNotice{})
	case PhaseAwaitingTrump:
		e.fireEventToPlayer(p.ID, protocol.AskTrumpNotice{})
	}
}

// resolveTrick awards the completed trick and moves on to the next trick or round.
func (e *Engine) resolveTrick() {
	winner := e.trick[TrickWinner(e.trick, e.Trump)]
	p := e.Players[winner.Seat]
	p.Made++

	e.logger.WithFields(logrus.Fields{
		"round":  e.Round,
		"winner": p.Username,
		"card":   winner.Card.String(),
	}).Debug("trick resolved")
	e.logAction(p.Username, "wins_trick", map[string]interface{}{"card": winner.Card.String()})
	e.fireEvent(protocol.WinsTrickNotice{Username: p.Username})

	e.trick = nil
	e.Current = winner.Seat

	made := 0
	for _, pl := range e.Players {
		made += pl.Made
	}
	if made < e.Round {
		e.askCurrent()
		return
	}
	e.endRound()
}

// endRound scores the round and either deals the next one or finishes the match.
func (e *Engine) endRound() {
	points := scoreRound(e.Players)
	e.RoundHistory = append(e.RoundHistory, points)
	e.logAction("", "round_points", map[string]interface{}{"round": e.Round, "points": points})
	e.fireEvent(protocol.RoundPointsNotice{Points: points})

	if e.Round >= e.Rules.MaxRounds {
		e.endMatch()
		return
	}
	e.nextRound()
}

// endMatch broadcasts the totals and the winner set.
func (e *Engine) endMatch() {
	e.Phase = PhaseMatchOver

	totals := e.Totals()
	var winners []protocol.Winner
	for _, seat := range Winners(totals) {
		winners = append(winners, protocol.Winner{Username: e.Players[seat].Username, Score: totals[seat]})
	}

	e.logger.WithFields(logrus.Fields{
		"totals":  totals,
		"winners": winners,
	}).Info("match finished")
	e.logAction("", "match_end", map[string]interface{}{"totals": totals, "winners": len(winners)})
	e.fireEvent(protocol.FinalPointsNotice{Points: totals})
	e.fireEvent(protocol.FinalWinnersNotice{Winners: winners})

	if e.OnMatchEnd != nil {
		e.OnMatchEnd(e.ID, winners)
	}
}

// Abort ends a running match without scoring it.
func (e *Engine) Abort(reason string) {
	if e.Phase == PhaseMatchOver {
		return
	}
	e.Phase = PhaseMatchOver
	e.logger.WithField("reason", reason).Warn("match aborted")
	e.logAction("", "match_abort", map[string]interface{}{"reason": reason, "round": e.Round})
}

// Totals returns the running totals in seat order.
func (e *Engine) Totals() []int {
	totals := make([]int, len(e.Players))
	for i, p := range e.Players {
		totals[i] = p.Total
	}
	return totals
}

func (e *Engine) usernames() []string {
	names := make([]string, len(e.Players))
	for i, p := range e.Players {
		names[i] = p.Username
	}
	return names
}

func (e *Engine) handTokens() map[string][]string {
	hands := make(map[string][]string, len(e.Players))
	for _, p := range e.Players {
		toks := make([]string, len(p.Hand))
		for i, c := range p.Hand {
			toks[i] = c.String()
		}
		hands[p.Username] = toks
	}
	return hands
}

// fireEvent broadcasts to all seated players.
func (e *Engine) fireEvent(msg protocol.Outbound) {
	if e.BroadcastFn != nil {
		e.BroadcastFn(msg)
	}
}

// fireEventToPlayer sends to one seated player.
func (e *Engine) fireEventToPlayer(id models.SessionID, msg protocol.Outbound) {
	if e.SendFn != nil {
		e.SendFn(id, msg)
	}
}

// logAction hands an accepted action to the journal with the next action index.
func (e *Engine) logAction(actor string, actionType string, payload map[string]interface{}) {
	e.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	e.journal.Publish(cache.ActionRecord{
		MatchID:       e.ID,
		ActionIndex:   e.actionIndex,
		Actor:         actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	})
}
