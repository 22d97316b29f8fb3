// internal/session/idpool.go
package session

import (
	"errors"
	"math/rand"

	"github.com/jason-s-yu/wizard/internal/models"
)

// MaxSessionID is the largest id handed out to a connection.
const MaxSessionID = 99999

// ErrIDsExhausted is returned once every id has been used.
var ErrIDsExhausted = errors.New("session ids exhausted")

// IDPool hands out ids in 0..MaxSessionID without replacement, in random order.
type IDPool struct {
	ids []int
}

// NewIDPool draws the order of ids from rng.
func NewIDPool(rng *rand.Rand) *IDPool {
	return &IDPool{ids: rng.Perm(MaxSessionID + 1)}
}

// Next pops the next id.
func (p *IDPool) Next() (models.SessionID, error) {
	if len(p.ids) == 0 {
		return 0, ErrIDsExhausted
	}
	id := p.ids[len(p.ids)-1]
	p.ids = p.ids[:len(p.ids)-1]
	return models.SessionID(id), nil
}

// Remaining returns how many ids are left.
func (p *IDPool) Remaining() int {
	return len(p.ids)
}
