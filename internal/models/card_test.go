package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardTokens(t *testing.T) {
	cases := map[string]Card{
		"S2": {Suit: Spades, Rank: 2},
		"H9": {Suit: Hearts, Rank: 9},
		"DT": {Suit: Diamonds, Rank: Ten},
		"CJ": {Suit: Clubs, Rank: Jack},
		"HQ": {Suit: Hearts, Rank: Queen},
		"SK": {Suit: Spades, Rank: King},
		"DA": {Suit: Diamonds, Rank: Ace},
		"W0": {Suit: Wizard, Rank: 0},
		"N3": {Suit: Jester, Rank: 3},
	}
	for tok, want := range cases {
		got, err := ParseCard(tok)
		require.NoError(t, err, tok)
		assert.Equal(t, want, got, tok)
		assert.Equal(t, tok, got.String(), "token should round-trip")
	}
}

func TestParseCardRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "S", "S1", "S0", "X5", "W4", "NA", "H10", "hT"} {
		_, err := ParseCard(tok)
		assert.ErrorIs(t, err, ErrInvalidCard, tok)
	}
}

func TestCardJSONIsToken(t *testing.T) {
	hand := []Card{NewCard(Hearts, Ten), NewCard(Wizard, 1)}
	data, err := json.Marshal(hand)
	require.NoError(t, err)
	assert.Equal(t, `["HT","W1"]`, string(data))

	var back []Card
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, hand, back)
}

func TestSortCards(t *testing.T) {
	hand := []Card{
		NewCard(Jester, 0), NewCard(Clubs, 3), NewCard(Wizard, 2),
		NewCard(Spades, Ace), NewCard(Spades, 4), NewCard(Hearts, 2),
	}
	SortCards(hand)
	var toks []string
	for _, c := range hand {
		toks = append(toks, c.String())
	}
	assert.Equal(t, []string{"S4", "SA", "H2", "C3", "W2", "N0"}, toks)
}

func TestParseTrump(t *testing.T) {
	for _, tok := range []string{"S", "H", "D", "C", "N", "W"} {
		tr, err := ParseTrump(tok)
		require.NoError(t, err)
		assert.Equal(t, tok, tr.String())
	}
	_, err := ParseTrump("X")
	assert.ErrorIs(t, err, ErrInvalidTrump)
	_, err = ParseTrump("SH")
	assert.ErrorIs(t, err, ErrInvalidTrump)

	s, ok := TrumpOf(Hearts).Suit()
	assert.True(t, ok)
	assert.Equal(t, Hearts, s)
	_, ok = NoTrump.Suit()
	assert.False(t, ok)
	_, ok = PlayerChoice.Suit()
	assert.False(t, ok)
}

func TestPlayerHand(t *testing.T) {
	p := NewPlayer(7, "alice")
	p.Hand = []Card{NewCard(Diamonds, 5), NewCard(Hearts, 9)}
	assert.True(t, p.HasSuit(Diamonds))
	assert.False(t, p.HasSuit(Clubs))
	assert.True(t, p.HasCard(NewCard(Hearts, 9)))
	assert.True(t, p.RemoveCard(NewCard(Hearts, 9)))
	assert.False(t, p.RemoveCard(NewCard(Hearts, 9)))
	assert.Len(t, p.Hand, 1)
}
