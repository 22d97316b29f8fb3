// internal/game/trick.go
package game

import "github.com/jason-s-yu/wizard/internal/models"

// Play is one card laid in the current trick.
type Play struct {
	Seat int
	Card models.Card
}

// LedSuit returns the suit of the first non-special card of the trick.
func LedSuit(plays []Play) (models.Suit, bool) {
	for _, p := range plays {
		if !p.Card.IsSpecial() {
			return p.Card.Suit, true
		}
	}
	return 0, false
}

// checkFollowSuit returns ErrNotFollowedSuit if card ignores the led suit
// while the hand still holds it. Wizards and jesters may always be played.
func checkFollowSuit(hand []models.Card, card models.Card, plays []Play) error {
	if card.IsSpecial() {
		return nil
	}
	led, ok := LedSuit(plays)
	if !ok || card.Suit == led {
		return nil
	}
	for _, c := range hand {
		if c.Suit == led {
			return ErrNotFollowedSuit
		}
	}
	return nil
}

// TrickWinner returns the index into plays of the winning card.
// Order of precedence: earliest wizard, last card of an all-jester trick,
// highest trump, highest card of the led suit.
func TrickWinner(plays []Play, trump models.Trump) int {
	if len(plays) == 0 {
		return -1
	}

	for i, p := range plays {
		if p.Card.Suit == models.Wizard {
			return i
		}
	}

	led, ok := LedSuit(plays)
	if !ok {
		// nothing but jesters
		return len(plays) - 1
	}

	if suit, isSuit := trump.Suit(); isSuit {
		if i := highestOf(plays, suit); i >= 0 {
			return i
		}
	}
	return highestOf(plays, led)
}

// highestOf returns the index of the highest ranked card of suit, or -1.
func highestOf(plays []Play, suit models.Suit) int {
	best := -1
	for i, p := range plays {
		if p.Card.Suit != suit {
			continue
		}
		if best < 0 || p.Card.Rank > plays[best].Card.Rank {
			best = i
		}
	}
	return best
}
