package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// Suits lists every suit in deck-building order
var Suits = [...]Suit{Clubs, Diamonds, Hearts, Spades}

// String returns the glyph for a suit
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// Name returns the lowercase English name of the suit ("spades")
func (s Suit) Name() string {
	switch s {
	case Clubs:
		return "clubs"
	case Diamonds:
		return "diamonds"
	case Hearts:
		return "hearts"
	case Spades:
		return "spades"
	default:
		return "unknown"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank. Ace is low; blackjack scoring decides
// whether it counts as 1 or 11.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// String returns the short representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		if r >= Two && r <= Ten {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// Name returns the lowercase name used in asset file names ("ace", "7", "king")
func (r Rank) Name() string {
	switch r {
	case Ace:
		return "ace"
	case Jack:
		return "jack"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		if r >= Two && r <= Ten {
			return fmt.Sprintf("%d", int(r))
		}
		return "unknown"
	}
}

// Valid reports whether r is one of the thirteen ranks
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Card represents a playing card
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// IsFaceCard returns true if the card is a face card (J, Q, K)
func (c Card) IsFaceCard() bool {
	return c.Rank >= Jack && c.Rank <= King
}

// Points returns the hard blackjack value of the card: Ace is 1 and
// face cards are capped at 10.
func (c Card) Points() int {
	if c.Rank >= Ten {
		return 10
	}
	return int(c.Rank)
}

// FileName returns the asset name for the card, e.g. "ace_of_spades"
func (c Card) FileName() string {
	return c.Rank.Name() + "_of_" + c.Suit.Name()
}

// ParseRank parses a rank name ("ace", "2".."10", "jack", "queen", "king").
// Single letter forms ("A", "T", "J", "Q", "K") are accepted too.
func ParseRank(s string) (Rank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ace", "a", "1":
		return Ace, nil
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10", "t":
		return Ten, nil
	case "jack", "j":
		return Jack, nil
	case "queen", "q":
		return Queen, nil
	case "king", "k":
		return King, nil
	}
	return 0, fmt.Errorf("invalid card value %q", s)
}

// ParseSuit parses a suit name ("clubs") or its initial ("c")
func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clubs", "c":
		return Clubs, nil
	case "diamonds", "d":
		return Diamonds, nil
	case "hearts", "h":
		return Hearts, nil
	case "spades", "s":
		return Spades, nil
	}
	return 0, fmt.Errorf("invalid card suit %q", s)
}

// ParseCard builds a card from a rank and suit name
func ParseCard(rank, suit string) (Card, error) {
	r, err := ParseRank(rank)
	if err != nil {
		return Card{}, err
	}
	st, err := ParseSuit(suit)
	if err != nil {
		return Card{}, err
	}
	return NewCard(r, st), nil
}

// MustParseCards parses compact notation such as "As Td 7h" and panics on
// bad input. Intended for tests.
func MustParseCards(s string) []Card {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			panic(fmt.Sprintf("invalid card %q", f))
		}
		c, err := ParseCard(f[:len(f)-1], f[len(f)-1:])
		if err != nil {
			panic(err)
		}
		cards = append(cards, c)
	}
	return cards
}
