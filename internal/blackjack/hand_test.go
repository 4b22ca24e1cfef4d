package blackjack

import (
	"testing"

	"github.com/lox/blackjack/internal/deck"
	"github.com/stretchr/testify/assert"
)

func handOf(s string) Hand {
	cards := deck.MustParseCards(s)
	h := make(Hand, len(cards))
	for i, c := range cards {
		h[i] = DealtCard{Card: c, FaceUp: true}
	}
	return h
}

func TestHandTotal(t *testing.T) {
	tests := []struct {
		name string
		hand string
		hard int
		soft int
		best int
	}{
		{name: "empty", hand: "", hard: 0, soft: 0, best: 0},
		{name: "no aces", hand: "10s 7h", hard: 17, soft: 17, best: 17},
		{name: "face cards capped", hand: "Ks Qh", hard: 20, soft: 20, best: 20},
		{name: "blackjack", hand: "As Kd", hard: 11, soft: 21, best: 21},
		{name: "soft seventeen", hand: "Ah 6c", hard: 7, soft: 17, best: 17},
		{name: "soft busts to hard", hand: "Ah 6c 9d", hard: 16, soft: 26, best: 16},
		{name: "two aces only first boosted", hand: "As Ad", hard: 2, soft: 12, best: 12},
		{name: "three aces", hand: "As Ad Ac 8h", hard: 11, soft: 21, best: 21},
		{name: "bust", hand: "Ks Qh 5d", hard: 25, soft: 25, best: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HandTotal(handOf(tt.hand))
			assert.Equal(t, tt.hard, got.Hard, "hard")
			assert.Equal(t, tt.soft, got.Soft, "soft")
			assert.Equal(t, tt.best, got.Best(), "best")
		})
	}
}

// A hand with exactly one Ace and other cards worth S scores S+1 hard and
// S+11 soft, whatever position the Ace is in.
func TestHandTotalSingleAce(t *testing.T) {
	others := []deck.Card{}
	for rank := deck.Two; rank <= deck.King; rank++ {
		others = append(others, deck.NewCard(rank, deck.Hearts))
	}

	for n := 0; n <= 3; n++ {
		for start := 0; start+n <= len(others); start++ {
			rest := others[start : start+n]
			sum := 0
			for _, c := range rest {
				sum += c.Points()
			}
			for pos := 0; pos <= len(rest); pos++ {
				var h Hand
				for i, c := range rest {
					if i == pos {
						h = append(h, DealtCard{Card: deck.NewCard(deck.Ace, deck.Spades), FaceUp: true})
					}
					h = append(h, DealtCard{Card: c, FaceUp: true})
				}
				if pos == len(rest) {
					h = append(h, DealtCard{Card: deck.NewCard(deck.Ace, deck.Spades), FaceUp: true})
				}

				got := HandTotal(h)
				assert.Equal(t, sum+1, got.Hard, "hand %s", h)
				assert.Equal(t, sum+11, got.Soft, "hand %s", h)
			}
		}
	}
}

func TestHandTotalIgnoresVisibility(t *testing.T) {
	h := handOf("As 9d")
	h[0].FaceUp = false
	assert.Equal(t, Totals{Hard: 10, Soft: 20}, HandTotal(h))
	assert.Equal(t, "?? 9♦", h.String())
}

func TestTotalsBust(t *testing.T) {
	assert.False(t, Totals{Hard: 21, Soft: 21}.Bust())
	assert.False(t, Totals{Hard: 12, Soft: 22}.Bust())
	assert.True(t, Totals{Hard: 22, Soft: 22}.Bust())
}
