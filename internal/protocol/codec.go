// internal/protocol/codec.go
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jason-s-yu/wizard/internal/models"
)

// Separator splits the message id from its payload.
const Separator = "#"

// ErrMalformed is returned by Split when a line is not "<id>#<payload>".
var ErrMalformed = errors.New("malformed message")

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var allowed [256]bool

func init() {
	for c := 'a'; c <= 'z'; c++ {
		allowed[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		allowed[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		allowed[c] = true
	}
	for i := 0; i < len(punctuation); i++ {
		allowed[punctuation[i]] = true
	}
	allowed[' '] = true
}

// Sanitize replaces every byte outside the allow-list with a space.
func Sanitize(line string) string {
	b := []byte(line)
	for i, c := range b {
		if !allowed[c] {
			b[i] = ' '
		}
	}
	return string(b)
}

// Split separates a line at its first '#' into message id and payload.
func Split(line string) (MessageID, string, error) {
	idPart, payload, found := strings.Cut(line, Separator)
	if !found {
		return 0, "", fmt.Errorf("%w: missing separator in %q", ErrMalformed, line)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil || id < 0 {
		return 0, "", fmt.Errorf("%w: non-integer message id in %q", ErrMalformed, line)
	}
	return MessageID(id), payload, nil
}

// DecodeError carries the error code that must be sent back for a line that
// could not be turned into a typed message.
type DecodeError struct {
	Code MessageID
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s: %v", e.Line, e.Code, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Inbound is a typed message sent by an accepted client.
type Inbound interface {
	Kind() MessageID
}

// ChatRequest is a free-text message to relay to the other players.
type ChatRequest struct {
	Text string
}

// TrumpRequest is the starting player's trump choice.
type TrumpRequest struct {
	Trump models.Trump
}

// TricksRequest is a bid.
type TricksRequest struct {
	N int
}

// CardRequest is a card play.
type CardRequest struct {
	Card models.Card
}

func (ChatRequest) Kind() MessageID   { return Chat }
func (TrumpRequest) Kind() MessageID  { return SayTrump }
func (TricksRequest) Kind() MessageID { return SayTricks }
func (CardRequest) Kind() MessageID   { return SayCard }

// Decode parses a sanitized line from an accepted session into a typed message.
// Any failure is a *DecodeError whose Code is the reply to send.
func Decode(line string) (Inbound, error) {
	id, payload, err := Split(line)
	if err != nil {
		return nil, &DecodeError{Code: UnknownMessage, Line: line, Err: err}
	}

	switch id {
	case Chat:
		return ChatRequest{Text: payload}, nil

	case SayTrump:
		trump, err := models.ParseTrump(strings.TrimSpace(payload))
		if err != nil {
			return nil, &DecodeError{Code: InvalidTrump, Line: line, Err: err}
		}
		return TrumpRequest{Trump: trump}, nil

	case SayTricks:
		n, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil {
			return nil, &DecodeError{Code: InvalidNumTricks, Line: line, Err: err}
		}
		return TricksRequest{N: n}, nil

	case SayCard:
		card, err := models.ParseCard(strings.TrimSpace(payload))
		if err != nil {
			return nil, &DecodeError{Code: InvalidCard, Line: line, Err: err}
		}
		return CardRequest{Card: card}, nil

	default:
		return nil, &DecodeError{Code: UnknownMessage, Line: line, Err: fmt.Errorf("unknown message id %d", id)}
	}
}

// DecodeErrorCode returns the reply code for err, defaulting to UnknownMessage.
func DecodeErrorCode(err error) MessageID {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return UnknownMessage
}
