// internal/game/dealer.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/wizard/internal/models"
)

// trumpWeight maps a trump outcome to its share of the 60 card draw.
type trumpWeight struct {
	trump  models.Trump
	weight int
}

// trumpTable mirrors the composition of the deck: 13 cards per suit,
// 4 jesters (no trump) and 4 wizards (the starting player picks).
var trumpTable = []trumpWeight{
	{models.TrumpOf(models.Spades), 13},
	{models.TrumpOf(models.Hearts), 13},
	{models.TrumpOf(models.Diamonds), 13},
	{models.TrumpOf(models.Clubs), 13},
	{models.NoTrump, models.SpecialCount},
	{models.PlayerChoice, models.SpecialCount},
}

func trumpTableTotal() int {
	total := 0
	for _, tw := range trumpTable {
		total += tw.weight
	}
	return total
}

// Dealer shuffles and deals from an injected random source.
type Dealer struct {
	rng *rand.Rand
}

// NewDealer returns a dealer drawing from rng. The same seed yields the same deals.
func NewDealer(rng *rand.Rand) *Dealer {
	return &Dealer{rng: rng}
}

// NewDeck builds the 60 card deck in display order.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, models.StandardDeckSize+2*models.SpecialCount)
	for _, s := range models.StandardSuits {
		for r := models.MinRank; r <= models.Ace; r++ {
			deck = append(deck, models.NewCard(s, r))
		}
	}
	for _, s := range []models.Suit{models.Wizard, models.Jester} {
		for r := 0; r < models.SpecialCount; r++ {
			deck = append(deck, models.NewCard(s, r))
		}
	}
	return deck
}

// Deal shuffles a fresh deck and gives each of numPlayers seats cardsEach cards.
// Hands are sorted; the undealt remainder is returned as well.
func (d *Dealer) Deal(numPlayers, cardsEach int) (hands [][]models.Card, rest []models.Card) {
	deck := NewDeck()
	d.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	hands = make([][]models.Card, numPlayers)
	for seat := 0; seat < numPlayers; seat++ {
		hand := make([]models.Card, cardsEach)
		copy(hand, deck[seat*cardsEach:(seat+1)*cardsEach])
		models.SortCards(hand)
		hands[seat] = hand
	}
	rest = deck[numPlayers*cardsEach:]
	return hands, rest
}

// DrawTrump picks the trump of a round from the weighted table.
func (d *Dealer) DrawTrump() models.Trump {
	n := d.rng.Intn(trumpTableTotal())
	for _, tw := range trumpTable {
		if n < tw.weight {
			return tw.trump
		}
		n -= tw.weight
	}
	return models.NoTrump
}
