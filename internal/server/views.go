package server

import (
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/protocol"
)

func cardViews(h blackjack.Hand, revealAll bool) []protocol.CardView {
	views := make([]protocol.CardView, len(h))
	for i, dc := range h {
		if !dc.FaceUp && !revealAll {
			views[i] = protocol.CardView{}
			continue
		}
		views[i] = protocol.CardView{
			Rank:   dc.Card.Rank.Name(),
			Suit:   dc.Card.Suit.Name(),
			FaceUp: true,
		}
	}
	return views
}

// visibleTotals scores only the face-up cards so hidden cards cannot be
// inferred from the totals.
func visibleTotals(h blackjack.Hand) blackjack.Totals {
	var shown blackjack.Hand
	for _, dc := range h {
		if dc.FaceUp {
			shown = append(shown, dc)
		}
	}
	return blackjack.HandTotal(shown)
}

func dealerView(t *blackjack.Table) protocol.DealerView {
	totals := visibleTotals(t.Dealer)
	return protocol.DealerView{
		Cards:    cardViews(t.Dealer, false),
		Hard:     totals.Hard,
		Soft:     totals.Soft,
		Revealed: len(t.Dealer) > 0 && t.DealerRevealed(),
	}
}

func playerViews(t *blackjack.Table, names map[string]string) []protocol.PlayerView {
	players := t.Players()
	views := make([]protocol.PlayerView, len(players))
	for i, p := range players {
		totals := blackjack.HandTotal(p.Hand)
		views[i] = protocol.PlayerView{
			ID:    p.ID,
			Name:  names[p.ID],
			Cards: cardViews(p.Hand, true),
			Hard:  totals.Hard,
			Soft:  totals.Soft,
		}
	}
	return views
}

func tableState(t *blackjack.Table, names map[string]string) protocol.TableState {
	return protocol.TableState{
		TableID:       t.ID,
		Dealer:        dealerView(t),
		Players:       playerViews(t, names),
		ShoeRemaining: t.ShoeRemaining(),
	}
}
