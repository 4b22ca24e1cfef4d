package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/blackjack/internal/protocol"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true)

	RedCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	BlackCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true)

	HiddenCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var suitSymbols = map[string]string{
	"clubs":    "♣",
	"diamonds": "♦",
	"hearts":   "♥",
	"spades":   "♠",
}

var rankSymbols = map[string]string{
	"ace":   "A",
	"jack":  "J",
	"queen": "Q",
	"king":  "K",
}

// Renderer formats server messages for a terminal
type Renderer struct {
	color bool
}

// NewRenderer creates a renderer. With color off every style is skipped.
func NewRenderer(color bool) *Renderer {
	return &Renderer{color: color}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

// Card renders one card as rank and suit symbol, "??" when face down
func (r *Renderer) Card(c protocol.CardView) string {
	if !c.FaceUp {
		return r.style(HiddenCardStyle, "??")
	}
	rank := c.Rank
	if sym, ok := rankSymbols[rank]; ok {
		rank = sym
	}
	text := rank + suitSymbols[c.Suit]
	if c.Suit == "hearts" || c.Suit == "diamonds" {
		return r.style(RedCardStyle, text)
	}
	return r.style(BlackCardStyle, text)
}

// Hand renders cards separated by spaces
func (r *Renderer) Hand(cards []protocol.CardView) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = r.Card(c)
	}
	return strings.Join(parts, " ")
}

func totals(hard, soft int) string {
	if soft != hard && soft <= 21 {
		return fmt.Sprintf("%d/%d", hard, soft)
	}
	return fmt.Sprintf("%d", hard)
}

func playerLabel(p protocol.PlayerView) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// TableState renders the dealer and every seat
func (r *Renderer) TableState(s protocol.TableState) string {
	var b strings.Builder
	b.WriteString(r.style(HeaderStyle, " Table "+s.TableID+" "))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Dealer: %s (%s)\n", r.Hand(s.Dealer.Cards), totals(s.Dealer.Hard, s.Dealer.Soft))
	for _, p := range s.Players {
		fmt.Fprintf(&b, "  %s: %s (%s)\n", playerLabel(p), r.Hand(p.Cards), totals(p.Hard, p.Soft))
	}
	b.WriteString(r.style(InfoStyle, fmt.Sprintf("  %d cards left in shoe", s.ShoeRemaining)))
	return b.String()
}

// RoundResult renders the revealed dealer hand and who won
func (r *Renderer) RoundResult(res protocol.RoundResult) string {
	winners := make(map[string]bool, len(res.Winners))
	for _, id := range res.Winners {
		winners[id] = true
	}

	var b strings.Builder
	b.WriteString(r.style(HeaderStyle, " Round over at "+res.TableID+" "))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Dealer: %s (%s)\n", r.Hand(res.Dealer.Cards), totals(res.Dealer.Hard, res.Dealer.Soft))
	for i, p := range res.Players {
		outcome := r.style(ErrorStyle, "loses")
		if winners[p.ID] {
			outcome = r.style(SuccessStyle, "wins")
		}
		fmt.Fprintf(&b, "  %s: %s (%s) %s", playerLabel(p), r.Hand(p.Cards), totals(p.Hard, p.Soft), outcome)
		if i < len(res.Players)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Roster renders the connected keys
func (r *Renderer) Roster(keys []protocol.ConnKey) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return r.style(InfoStyle, fmt.Sprintf("%d connected: %s", len(keys), strings.Join(names, ", ")))
}

// Error renders a server error
func (r *Renderer) Error(e protocol.Error) string {
	return r.style(ErrorStyle, "error "+e.Code+": "+e.Message)
}
