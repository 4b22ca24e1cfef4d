package deck

import (
	"testing"

	"github.com/lox/blackjack/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardIndex(c Card) int {
	return int(c.Rank-Ace)*len(Suits) + int(c.Suit)
}

func TestNewShoeComposition(t *testing.T) {
	for deckCount := 0; deckCount <= 6; deckCount++ {
		shoe := NewShoe(deckCount, randutil.New(int64(deckCount)))
		require.Equal(t, CardsPerDeck*deckCount, shoe.Remaining(), "deck count %d", deckCount)

		counts := make(map[Card]int)
		for _, c := range shoe.Cards() {
			counts[c]++
		}
		if deckCount == 0 {
			assert.Empty(t, counts)
			continue
		}
		require.Len(t, counts, CardsPerDeck)
		for c, n := range counts {
			assert.Equal(t, deckCount, n, "card %s with %d decks", c, deckCount)
		}
	}
}

func TestNewShoeNegativeCount(t *testing.T) {
	shoe := NewShoe(-3, randutil.New(1))
	assert.True(t, shoe.IsEmpty())
}

func TestShoeDrawsFromTail(t *testing.T) {
	cards := MustParseCards("2c 3d 4h")
	shoe := NewShoeFromCards(cards)

	top, ok := shoe.Peek()
	require.True(t, ok)
	assert.Equal(t, cards[2], top)

	for i := len(cards) - 1; i >= 0; i-- {
		c, err := shoe.Draw()
		require.NoError(t, err)
		assert.Equal(t, cards[i], c)
	}

	_, err := shoe.Draw()
	require.ErrorIs(t, err, ErrShoeExhausted)
	assert.Equal(t, 0, shoe.Remaining())

	// Repeated draws keep failing without corrupting the shoe.
	_, err = shoe.Draw()
	require.ErrorIs(t, err, ErrShoeExhausted)
	_, ok = shoe.Peek()
	assert.False(t, ok)
}

func TestShuffleIsDeterministicPerSeed(t *testing.T) {
	a := NewShoe(2, randutil.New(99)).Cards()
	b := NewShoe(2, randutil.New(99)).Cards()
	c := NewShoe(2, randutil.New(100)).Cards()

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

// TestShuffleUniformity runs a chi-square test on the occupant of several
// positions. With 51 degrees of freedom the statistic averages 51; 100 is
// far beyond the 0.01% tail.
func TestShuffleUniformity(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	const trials = 52 * 200
	positions := []int{0, 13, 26, 51}
	counts := make([][CardsPerDeck]int, len(positions))

	rng := randutil.New(20240601)
	cards := Build(1)
	for range trials {
		Shuffle(cards, rng)
		for i, pos := range positions {
			counts[i][cardIndex(cards[pos])]++
		}
	}

	expected := float64(trials) / CardsPerDeck
	for i, pos := range positions {
		var chi2 float64
		for _, observed := range counts[i] {
			d := float64(observed) - expected
			chi2 += d * d / expected
		}
		assert.Less(t, chi2, 100.0, "position %d chi-square %.1f", pos, chi2)
	}
}
