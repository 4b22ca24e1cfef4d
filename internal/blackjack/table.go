package blackjack

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"slices"

	"github.com/lox/blackjack/internal/deck"
)

var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrDuplicatePlayer = errors.New("player already seated")
	ErrTableNotFound   = errors.New("table not found")

	// ErrShoeExhausted is returned by every deal once the shoe is empty
	ErrShoeExhausted = deck.ErrShoeExhausted
)

// DefaultDecks is the number of decks in a shoe unless configured otherwise
const DefaultDecks = 6

// Player is a seated player and their hand
type Player struct {
	ID   string
	Hand Hand
}

// Table owns one shoe, the dealer's hand and every seated player
type Table struct {
	ID      string
	Dealer  Hand
	players []*Player
	shoe    *deck.Shoe
	decks   int
	rule    WinRule
}

// TableOption configures a Table during creation
type TableOption func(*Table)

// WithDecks sets the number of decks in the shoe
func WithDecks(n int) TableOption {
	return func(t *Table) { t.decks = n }
}

// WithRule sets the win rule used by DetermineWinner
func WithRule(r WinRule) TableOption {
	return func(t *Table) { t.rule = r }
}

// WithShoe replaces the shuffled shoe with a fixed one, for tests and replays
func WithShoe(s *deck.Shoe) TableOption {
	return func(t *Table) { t.shoe = s }
}

// NewTable creates a table with an empty player list and a freshly
// shuffled shoe drawn from rng.
func NewTable(id string, rng *rand.Rand, opts ...TableOption) *Table {
	t := &Table{ID: id, decks: DefaultDecks}
	for _, opt := range opts {
		opt(t)
	}
	if t.shoe == nil {
		if rng == nil {
			panic("rng is required for table creation")
		}
		t.shoe = deck.NewShoe(t.decks, rng)
	}
	return t
}

// Rule returns the table's win rule
func (t *Table) Rule() WinRule {
	return t.rule
}

// ShoeRemaining returns the number of undealt cards
func (t *Table) ShoeRemaining() int {
	return t.shoe.Remaining()
}

// ResetShoe rebuilds and reshuffles the shoe. It is only meant to be called
// between rounds; an in-progress round keeps whatever cards it already has.
func (t *Table) ResetShoe(decks int, rng *rand.Rand) {
	t.decks = decks
	t.shoe = deck.NewShoe(decks, rng)
}

// Players returns the seated players in seating order
func (t *Table) Players() []*Player {
	return slices.Clone(t.players)
}

// PlayerCount returns the number of seated players
func (t *Table) PlayerCount() int {
	return len(t.players)
}

// Player looks up a seated player
func (t *Table) Player(id string) (*Player, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return t.players[i], true
}

func (t *Table) indexOf(id string) int {
	return slices.IndexFunc(t.players, func(p *Player) bool { return p.ID == id })
}

// AddPlayer seats a new player with an empty hand
func (t *Table) AddPlayer(id string) error {
	if t.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicatePlayer, id)
	}
	t.players = append(t.players, &Player{ID: id})
	return nil
}

// RemovePlayer unseats a player and discards their hand
func (t *Table) RemovePlayer(id string) error {
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	t.players = slices.Delete(t.players, i, i+1)
	return nil
}

// DealToPlayer draws the top card of the shoe face up into the player's hand
func (t *Table) DealToPlayer(id string) error {
	p, ok := t.Player(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	card, err := t.shoe.Draw()
	if err != nil {
		return err
	}
	p.Hand = append(p.Hand, DealtCard{Card: card, FaceUp: true})
	return nil
}

// DealToDealer draws the top card face down (the hole card)
func (t *Table) DealToDealer() error {
	return t.dealDealer(false)
}

// DealToDealerFaceUp draws the top card face up into the dealer's hand
func (t *Table) DealToDealerFaceUp() error {
	return t.dealDealer(true)
}

func (t *Table) dealDealer(faceUp bool) error {
	card, err := t.shoe.Draw()
	if err != nil {
		return err
	}
	t.Dealer = append(t.Dealer, DealtCard{Card: card, FaceUp: faceUp})
	return nil
}

// RevealDealer turns every dealer card face up
func (t *Table) RevealDealer() {
	for i := range t.Dealer {
		t.Dealer[i].FaceUp = true
	}
}

// DealerRevealed reports whether every dealer card is face up
func (t *Table) DealerRevealed() bool {
	for _, dc := range t.Dealer {
		if !dc.FaceUp {
			return false
		}
	}
	return true
}

// ClearHands empties the dealer's and every player's hand
func (t *Table) ClearHands() {
	t.Dealer = nil
	for _, p := range t.players {
		p.Hand = nil
	}
}

// OpenRound clears all hands and deals the opening: one card to each
// player, the dealer's hole card, a second card to each player, then the
// dealer's up card. If the shoe runs out part way the cards already dealt
// stay where they are.
func (t *Table) OpenRound() error {
	t.ClearHands()
	for pass := 0; pass < 2; pass++ {
		for _, p := range t.players {
			if err := t.DealToPlayer(p.ID); err != nil {
				return err
			}
		}
		var err error
		if pass == 0 {
			err = t.DealToDealer()
		} else {
			err = t.DealToDealerFaceUp()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PlayDealer draws face-up cards for the dealer while the dealer's best
// total is below standOn.
func (t *Table) PlayDealer(standOn int) error {
	for HandTotal(t.Dealer).Best() < standOn {
		if err := t.DealToDealerFaceUp(); err != nil {
			return err
		}
	}
	return nil
}

// DetermineWinner compares a player's hand against the dealer's
func (t *Table) DetermineWinner(id string) (bool, error) {
	p, ok := t.Player(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return t.rule.Wins(HandTotal(t.Dealer), HandTotal(p.Hand)), nil
}

// WinningPlayers returns the sorted IDs of every seated player who wins
func (t *Table) WinningPlayers() ([]string, error) {
	winners := []string{}
	for _, p := range t.players {
		won, err := t.DetermineWinner(p.ID)
		if err != nil {
			return nil, err
		}
		if won {
			winners = append(winners, p.ID)
		}
	}
	slices.Sort(winners)
	return winners, nil
}
