package models

// SessionID is the random numeric id a connection receives at connect time.
type SessionID int

// Player is a seated participant of a match.
type Player struct {
	ID       SessionID `json:"id"`
	Username string    `json:"username"`
	Hand     []Card    `json:"-"` // hidden from other players

	Bid   int `json:"bid"`
	Made  int `json:"made"`
	Total int `json:"total"`
}

// NewPlayer returns a player with an empty hand.
func NewPlayer(id SessionID, username string) *Player {
	return &Player{
		ID:       id,
		Username: username,
		Hand:     []Card{},
	}
}

// HasCard checks if the player holds the given card.
func (p *Player) HasCard(card Card) bool {
	for _, c := range p.Hand {
		if c == card {
			return true
		}
	}
	return false
}

// HasSuit checks if the player holds at least one card of the suit.
func (p *Player) HasSuit(suit Suit) bool {
	for _, c := range p.Hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}

// RemoveCard removes the card from the hand, returning false if it was not there.
func (p *Player) RemoveCard(card Card) bool {
	for i, c := range p.Hand {
		if c == card {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// ResetRound clears the per-round counters.
func (p *Player) ResetRound() {
	p.Bid = 0
	p.Made = 0
}
