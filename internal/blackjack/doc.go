// Package blackjack implements the table and hand engine for a blackjack
// game: seating, dealing from a multi-deck shoe, hard and soft hand totals,
// and winner determination.
//
// # Basic Usage
//
//	rng := randutil.New(42)
//	t := blackjack.NewTable("t1", rng, blackjack.WithDecks(6))
//	_ = t.AddPlayer("p1")
//	_ = t.OpenRound()          // two cards each, dealer hole card face down
//	_ = t.DealToPlayer("p1")   // hit
//	_ = t.PlayDealer(17)
//	t.RevealDealer()
//	winners, _ := t.WinningPlayers()
//
// # Concurrency
//
// A Table has no locking of its own. Callers serialise access per table,
// normally through Registry.With, which holds one mutex per table so that
// unrelated tables proceed in parallel.
//
// # Win rules
//
// RuleStandard is the usual "closest to 21 without busting" comparison.
// RuleLegacy reproduces an older comparison kept for replaying historic
// results; it is not symmetric and should not be used for new tables.
package blackjack
