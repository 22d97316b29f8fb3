// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/wizard/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Rules are the match parameters fixed before the first deal.
type Rules struct {
	NumPlayers int `json:"numPlayers"` // seats at the table, also the registry capacity
	MaxRounds  int `json:"maxRounds"`  // last round to play; hand size equals the round number
}

// DerivedMaxRounds is the number of rounds the 52 standard cards allow for n seats.
func DerivedMaxRounds(numPlayers int) int {
	if numPlayers <= 0 {
		return 0
	}
	return models.StandardDeckSize / numPlayers
}

// NewRules validates the player count and resolves the round maximum.
// A configured value of 0 selects the derived maximum; a larger value than the
// derived maximum is logged and replaced by it.
func NewRules(numPlayers, configuredRounds int, logger logrus.FieldLogger) (Rules, error) {
	if numPlayers < MinPlayers || numPlayers > MaxPlayers {
		return Rules{}, fmt.Errorf("number of players must be between %d and %d, got %d", MinPlayers, MaxPlayers, numPlayers)
	}
	if configuredRounds < 0 {
		return Rules{}, fmt.Errorf("number of rounds must be non-negative, got %d", configuredRounds)
	}

	derived := DerivedMaxRounds(numPlayers)
	rounds := configuredRounds
	switch {
	case rounds == 0:
		rounds = derived
	case rounds > derived:
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"configured": configuredRounds,
				"max":        derived,
				"players":    numPlayers,
			}).Warn("configured rounds exceed the maximum, using the maximum instead")
		}
		rounds = derived
	}

	return Rules{NumPlayers: numPlayers, MaxRounds: rounds}, nil
}
