// internal/game/scoring.go
package game

import "github.com/jason-s-yu/wizard/internal/models"

const (
	hitBonus     = 20
	pointPerHit  = 10
	pointPerMiss = 10
)

// RoundScore is 20 + 10 per trick for an exact bid, minus 10 per trick of difference otherwise.
func RoundScore(bid, made int) int {
	if bid == made {
		return hitBonus + pointPerHit*made
	}
	diff := bid - made
	if diff < 0 {
		diff = -diff
	}
	return -pointPerMiss * diff
}

// scoreRound computes the round vector in seat order and adds it to the totals.
func scoreRound(players []*models.Player) []int {
	points := make([]int, len(players))
	for i, p := range players {
		points[i] = RoundScore(p.Bid, p.Made)
		p.Total += points[i]
	}
	return points
}

// Winners returns the seats whose total equals the maximum. Ties yield several seats.
func Winners(totals []int) []int {
	if len(totals) == 0 {
		return nil
	}
	best := totals[0]
	for _, t := range totals[1:] {
		if t > best {
			best = t
		}
	}
	var seats []int
	for i, t := range totals {
		if t == best {
			seats = append(seats, i)
		}
	}
	return seats
}
