package blackjack

import (
	"strings"

	"github.com/lox/blackjack/internal/deck"
)

// Blackjack is the target total
const Blackjack = 21

// DealtCard is a card in a hand together with its visibility
type DealtCard struct {
	Card   deck.Card
	FaceUp bool
}

// Hand is the ordered list of cards dealt to a player or the dealer
type Hand []DealtCard

// Cards returns the cards of the hand regardless of visibility
func (h Hand) Cards() []deck.Card {
	cards := make([]deck.Card, len(h))
	for i, dc := range h {
		cards[i] = dc.Card
	}
	return cards
}

// String renders the hand with hidden cards shown as "??"
func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, dc := range h {
		if dc.FaceUp {
			parts[i] = dc.Card.String()
		} else {
			parts[i] = "??"
		}
	}
	return strings.Join(parts, " ")
}

// Totals holds both scorings of a hand
type Totals struct {
	Hard int // every Ace counts 1
	Soft int // the first Ace counts 11
}

// Best returns the soft total when it does not bust, otherwise the hard total
func (t Totals) Best() int {
	if t.Soft <= Blackjack {
		return t.Soft
	}
	return t.Hard
}

// Bust reports whether even the hard total exceeds 21
func (t Totals) Bust() bool {
	return t.Hard > Blackjack
}

// HandTotal scores a hand. Only the first Ace encountered is boosted to 11
// in the soft total, so a hand holding an Ace always has Soft == Hard+10.
func HandTotal(h Hand) Totals {
	var t Totals
	boosted := false
	for _, dc := range h {
		points := dc.Card.Points()
		t.Hard += points
		if dc.Card.IsAce() && !boosted {
			boosted = true
			t.Soft += 11
			continue
		}
		t.Soft += points
	}
	return t
}
