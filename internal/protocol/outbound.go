// internal/protocol/outbound.go
package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/jason-s-yu/wizard/internal/models"
	log "github.com/sirupsen/logrus"
)

// Outbound is a typed message the server sends to clients.
type Outbound interface {
	Kind() MessageID
	Payload() string
}

// Encode renders a message as a wire line (without the line terminator).
func Encode(m Outbound) string {
	return strconv.Itoa(int(m.Kind())) + Separator + m.Payload()
}

// EncodeBare renders a pre-acceptance reply: a bare integer with no payload.
func EncodeBare(code int) string {
	return strconv.Itoa(code)
}

// Winner is one entry of the final winner set.
type Winner struct {
	Username string
	Score    int
}

// MarshalJSON encodes a winner as a [username, score] pair.
func (w Winner) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{w.Username, w.Score})
}

type (
	NewUserNotice struct {
		Username string
	}
	UserLeftNotice struct {
		Username string
	}
	ChatNotice struct {
		From string
		Text string
	}
	StartGameNotice struct {
		Order []string
	}
	DealCardsNotice struct {
		Cards []models.Card
	}
	AskTrumpNotice struct{}
	FoundTrumpNotice struct {
		Trump models.Trump
	}
	AskTricksNotice struct {
		Round int
	}
	PlayerSaidTricksNotice struct {
		Username string
		N        int
	}
	AskCardNotice struct{}
	PlayerPlayedCardNotice struct {
		Username string
		Card     models.Card
	}
	WinsTrickNotice struct {
		Username string
	}
	RoundPointsNotice struct {
		Points []int
	}
	FinalPointsNotice struct {
		Points []int
	}
	FinalWinnersNotice struct {
		Winners []Winner
	}
	// ErrorReply reports a rejected line back to its sender. Detail echoes the
	// offending payload so the client can match the reply to its request.
	ErrorReply struct {
		Code   MessageID
		Detail string
	}
)

func (NewUserNotice) Kind() MessageID          { return NewUser }
func (UserLeftNotice) Kind() MessageID         { return UserLeft }
func (ChatNotice) Kind() MessageID             { return Chat }
func (StartGameNotice) Kind() MessageID        { return StartGame }
func (DealCardsNotice) Kind() MessageID        { return DealCards }
func (AskTrumpNotice) Kind() MessageID         { return AskTrump }
func (FoundTrumpNotice) Kind() MessageID       { return FoundTrump }
func (AskTricksNotice) Kind() MessageID        { return AskTricks }
func (PlayerSaidTricksNotice) Kind() MessageID { return PlayerSaidTricks }
func (AskCardNotice) Kind() MessageID          { return AskCard }
func (PlayerPlayedCardNotice) Kind() MessageID { return PlayerPlayedCard }
func (WinsTrickNotice) Kind() MessageID        { return WinsTrick }
func (RoundPointsNotice) Kind() MessageID      { return RoundPoints }
func (FinalPointsNotice) Kind() MessageID      { return FinalPoints }
func (FinalWinnersNotice) Kind() MessageID     { return FinalWinners }
func (e ErrorReply) Kind() MessageID           { return e.Code }

func (m NewUserNotice) Payload() string  { return m.Username }
func (m UserLeftNotice) Payload() string { return m.Username }
func (m ChatNotice) Payload() string     { return m.From + Separator + m.Text }
func (m StartGameNotice) Payload() string {
	return encodeJSON(nonNilStrings(m.Order))
}
func (m DealCardsNotice) Payload() string {
	cards := m.Cards
	if cards == nil {
		cards = []models.Card{}
	}
	return encodeJSON(cards)
}
func (AskTrumpNotice) Payload() string     { return "" }
func (m FoundTrumpNotice) Payload() string { return m.Trump.String() }
func (m AskTricksNotice) Payload() string  { return strconv.Itoa(m.Round) }
func (m PlayerSaidTricksNotice) Payload() string {
	return m.Username + Separator + strconv.Itoa(m.N)
}
func (AskCardNotice) Payload() string { return "" }
func (m PlayerPlayedCardNotice) Payload() string {
	return m.Username + Separator + m.Card.String()
}
func (m WinsTrickNotice) Payload() string   { return m.Username }
func (m RoundPointsNotice) Payload() string { return encodeJSON(nonNilInts(m.Points)) }
func (m FinalPointsNotice) Payload() string { return encodeJSON(nonNilInts(m.Points)) }
func (m FinalWinnersNotice) Payload() string {
	winners := m.Winners
	if winners == nil {
		winners = []Winner{}
	}
	return encodeJSON(winners)
}
func (e ErrorReply) Payload() string { return e.Detail }

// encodeJSON marshals a structured payload. Logs a warning and returns "[]" on
// marshalling error so a broken payload never takes the dispatch loop down.
func encodeJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warnf("failed to marshal payload %T: %v", v, err)
		return "[]"
	}
	return string(data)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
