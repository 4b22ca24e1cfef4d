package blackjack

import (
	"slices"
	"testing"

	"github.com/lox/blackjack/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oracleWinner restates the standard rule directly from hand totals: a
// player wins with a total of 21 or less that beats the dealer, or when the
// dealer busts. Pushes lose. The legacy rule is deliberately not the oracle.
func oracleWinner(dealer, player Hand) bool {
	d, p := HandTotal(dealer), HandTotal(player)
	best := func(t Totals) int {
		if t.Soft <= 21 {
			return t.Soft
		}
		return t.Hard
	}
	if best(p) > 21 {
		return false
	}
	return best(d) > 21 || best(p) > best(d)
}

func TestRoundAgainstOracle(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		table := NewTable("t1", randutil.New(seed))
		require.NoError(t, table.AddPlayer("P1"))
		require.NoError(t, table.AddPlayer("P2"))

		for _, id := range []string{"P1", "P2"} {
			require.NoError(t, table.DealToPlayer(id))
			require.NoError(t, table.DealToPlayer(id))
		}
		require.NoError(t, table.DealToDealer())
		require.NoError(t, table.DealToDealerFaceUp())
		require.False(t, table.Dealer[0].FaceUp, "first dealer card is the hole card")

		table.RevealDealer()
		winners, err := table.WinningPlayers()
		require.NoError(t, err)

		var expected []string
		for _, p := range table.Players() {
			require.Len(t, p.Hand, 2)
			if oracleWinner(table.Dealer, p.Hand) {
				expected = append(expected, p.ID)
			}
		}
		slices.Sort(expected)
		if expected == nil {
			expected = []string{}
		}
		assert.Equal(t, expected, winners, "seed %d dealer %s", seed, table.Dealer)
	}
}
