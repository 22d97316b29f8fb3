// internal/models/card.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidCard is returned when a card token cannot be parsed.
var ErrInvalidCard = errors.New("invalid card token")

// ErrInvalidTrump is returned when a trump token cannot be parsed.
var ErrInvalidTrump = errors.New("invalid trump token")

// Suit is the category of a card. The four standard suits use the usual letters,
// wizards ("W") and jesters ("N") are the two special categories.
type Suit byte

const (
	Spades   Suit = 'S'
	Hearts   Suit = 'H'
	Diamonds Suit = 'D'
	Clubs    Suit = 'C'
	Wizard   Suit = 'W' // always wins the trick
	Jester   Suit = 'N' // always loses the trick
)

// StandardSuits are the four suits a trump can be made of.
var StandardSuits = []Suit{Spades, Hearts, Diamonds, Clubs}

// AllSuits lists every category in display order.
var AllSuits = []Suit{Spades, Hearts, Diamonds, Clubs, Wizard, Jester}

const (
	MinRank = 2
	Ten     = 10
	Jack    = 11
	Queen   = 12
	King    = 13
	Ace     = 14

	// SpecialCount is the number of cards in each special category.
	SpecialCount = 4

	// StandardDeckSize is the number of cards in the four standard suits.
	StandardDeckSize = 52
)

// String returns the single-letter token of the suit.
func (s Suit) String() string {
	return string(rune(s))
}

// IsSpecial reports whether the suit is one of the two special categories.
func (s Suit) IsSpecial() bool {
	return s == Wizard || s == Jester
}

// IsStandard reports whether the suit is one of the four standard suits.
func (s Suit) IsStandard() bool {
	switch s {
	case Spades, Hearts, Diamonds, Clubs:
		return true
	}
	return false
}

func suitIndex(s Suit) int {
	for i, v := range AllSuits {
		if v == s {
			return i
		}
	}
	return len(AllSuits)
}

// Card is an immutable card value. Rank is 2..14 for standard suits and 0..3 for specials.
type Card struct {
	Suit Suit
	Rank int
}

// NewCard builds a card without validation. Use ParseCard for untrusted input.
func NewCard(suit Suit, rank int) Card {
	return Card{Suit: suit, Rank: rank}
}

// IsSpecial reports whether the card is a wizard or a jester.
func (c Card) IsSpecial() bool {
	return c.Suit.IsSpecial()
}

// Valid reports whether the suit/rank combination exists in the deck.
func (c Card) Valid() bool {
	if c.Suit.IsSpecial() {
		return c.Rank >= 0 && c.Rank < SpecialCount
	}
	return c.Suit.IsStandard() && c.Rank >= MinRank && c.Rank <= Ace
}

var rankChars = map[int]byte{
	Ten: 'T', Jack: 'J', Queen: 'Q', King: 'K', Ace: 'A',
}

// String returns the two character wire token, e.g. "HT", "SA", "W0".
func (c Card) String() string {
	if c.IsSpecial() || c.Rank < Ten {
		return fmt.Sprintf("%c%d", c.Suit, c.Rank)
	}
	return fmt.Sprintf("%c%c", c.Suit, rankChars[c.Rank])
}

// ParseCard parses a wire token into a card.
func ParseCard(tok string) (Card, error) {
	if len(tok) != 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, tok)
	}
	c := Card{Suit: Suit(tok[0])}
	r := tok[1]
	switch {
	case r >= '0' && r <= '9':
		c.Rank = int(r - '0')
	default:
		found := false
		for rank, ch := range rankChars {
			if ch == r {
				c.Rank = rank
				found = true
				break
			}
		}
		if !found {
			return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, tok)
		}
	}
	// specials only use digit ranks
	if c.IsSpecial() && (r < '0' || r > '9') {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, tok)
	}
	if !c.Valid() {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, tok)
	}
	return c, nil
}

// MarshalJSON encodes the card as its wire token.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a wire token.
func (c *Card) UnmarshalJSON(data []byte) error {
	var tok string
	if err := json.Unmarshal(data, &tok); err != nil {
		return err
	}
	parsed, err := ParseCard(tok)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SortCards orders a hand by suit (S, H, D, C, W, N) and then by rank.
func SortCards(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		si, sj := suitIndex(cards[i].Suit), suitIndex(cards[j].Suit)
		if si != sj {
			return si < sj
		}
		return cards[i].Rank < cards[j].Rank
	})
}

// Trump is the trump of a round: one of the standard suits, NoTrump,
// or PlayerChoice while the starting player has yet to pick a suit.
type Trump byte

const (
	NoTrump      Trump = Trump(Jester)
	PlayerChoice Trump = Trump(Wizard)
)

// TrumpOf returns the trump value for a standard suit.
func TrumpOf(s Suit) Trump {
	return Trump(s)
}

// Suit returns the trump suit, and false if the trump is not a standard suit.
func (t Trump) Suit() (Suit, bool) {
	s := Suit(t)
	return s, s.IsStandard()
}

// String returns the wire token.
func (t Trump) String() string {
	return string(rune(t))
}

// ParseTrump parses a trump token ("S", "H", "D", "C", "N" or "W").
func ParseTrump(tok string) (Trump, error) {
	if len(tok) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTrump, tok)
	}
	s := Suit(tok[0])
	if !s.IsStandard() && !s.IsSpecial() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTrump, tok)
	}
	return Trump(s), nil
}
