package deck

import (
	"errors"
	rand "math/rand/v2"
)

// ErrShoeExhausted is returned when drawing from an empty shoe
var ErrShoeExhausted = errors.New("shoe exhausted")

// CardsPerDeck is the size of one standard deck
const CardsPerDeck = 52

// Shoe holds the remaining cards of one or more decks. Cards are drawn from
// the tail of the slice, which is the top of the shoe.
type Shoe struct {
	cards []Card
}

// NewShoe builds deckCount interleaved copies of the 52 card deck and
// shuffles them with rng. A deckCount of zero or less yields an empty shoe.
func NewShoe(deckCount int, rng *rand.Rand) *Shoe {
	s := &Shoe{cards: Build(deckCount)}
	Shuffle(s.cards, rng)
	return s
}

// NewShoeFromCards creates a shoe with a fixed order. The last card is drawn
// first.
func NewShoeFromCards(cards []Card) *Shoe {
	return &Shoe{cards: append([]Card(nil), cards...)}
}

// Build returns deckCount unshuffled copies of every rank and suit
func Build(deckCount int) []Card {
	if deckCount <= 0 {
		return []Card{}
	}

	cards := make([]Card, 0, CardsPerDeck*deckCount)
	for range deckCount {
		for _, suit := range Suits {
			for rank := Ace; rank <= King; rank++ {
				cards = append(cards, NewCard(rank, suit))
			}
		}
	}
	return cards
}

// Shuffle applies a Fisher-Yates permutation to cards in place
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Draw removes and returns the top card of the shoe
func (s *Shoe) Draw() (Card, error) {
	n := len(s.cards)
	if n == 0 {
		return Card{}, ErrShoeExhausted
	}

	card := s.cards[n-1]
	s.cards = s.cards[:n-1]
	return card, nil
}

// Peek returns the top card without removing it from the shoe
func (s *Shoe) Peek() (Card, bool) {
	if len(s.cards) == 0 {
		return Card{}, false
	}
	return s.cards[len(s.cards)-1], true
}

// Remaining returns the number of cards left in the shoe
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// IsEmpty returns true if the shoe has no cards left
func (s *Shoe) IsEmpty() bool {
	return len(s.cards) == 0
}

// Cards returns a copy of the remaining cards, bottom first
func (s *Shoe) Cards() []Card {
	return append([]Card(nil), s.cards...)
}
