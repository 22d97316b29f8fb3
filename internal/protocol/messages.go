// internal/protocol/messages.go
package protocol

import "strconv"

// MessageID selects the kind of a line on the wire ("<id>#<payload>").
type MessageID int

// Handshake state markers sent as bare integers before a session is accepted.
const (
	StateAwaitingHandshake MessageID = 0
	StateAwaitingUsername  MessageID = 1
)

// Server notifications.
const (
	NewUser          MessageID = 100
	UserLeft         MessageID = 101
	Chat             MessageID = 102 // also accepted from clients
	StartGame        MessageID = 103
	DealCards        MessageID = 104
	AskTrump         MessageID = 105
	FoundTrump       MessageID = 106
	AskTricks        MessageID = 107
	PlayerSaidTricks MessageID = 108
	AskCard          MessageID = 109
	PlayerPlayedCard MessageID = 110
	WinsTrick        MessageID = 111
	RoundPoints      MessageID = 112
	FinalPoints      MessageID = 113
	FinalWinners     MessageID = 114
)

// Client requests.
const (
	SayTrump  MessageID = 200
	SayTricks MessageID = 201
	SayCard   MessageID = 202
)

// Error replies.
const (
	ForbiddenUsername MessageID = 400
	UnknownMessage    MessageID = 401
	TakenUsername     MessageID = 402
	NotYourTurn       MessageID = 403
	InvalidNumTricks  MessageID = 404
	InvalidTrump      MessageID = 405
	InvalidCard       MessageID = 406
	NotFollowedSuit   MessageID = 407
	InvalidMove       MessageID = 408
)

var messageNames = map[MessageID]string{
	NewUser:           "new_user",
	UserLeft:          "user_left",
	Chat:              "chat",
	StartGame:         "start_game",
	DealCards:         "deal_cards",
	AskTrump:          "ask_trump",
	FoundTrump:        "found_trump",
	AskTricks:         "ask_tricks",
	PlayerSaidTricks:  "player_said_tricks",
	AskCard:           "ask_card",
	PlayerPlayedCard:  "player_played_card",
	WinsTrick:         "wins_trick",
	RoundPoints:       "round_points",
	FinalPoints:       "final_points",
	FinalWinners:      "final_winners",
	SayTrump:          "say_trump",
	SayTricks:         "say_tricks",
	SayCard:           "say_card",
	ForbiddenUsername: "forbidden_username",
	UnknownMessage:    "unknown_message",
	TakenUsername:     "taken_username",
	NotYourTurn:       "not_your_turn",
	InvalidNumTricks:  "invalid_num_tricks",
	InvalidTrump:      "invalid_trump",
	InvalidCard:       "invalid_card",
	NotFollowedSuit:   "not_followed_suit",
	InvalidMove:       "invalid_move",
}

// String returns a readable name for logs.
func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return "message_" + strconv.Itoa(int(id))
}

// IsError reports whether the id is one of the error reply codes.
func (id MessageID) IsError() bool {
	return id >= 400 && id < 500
}
