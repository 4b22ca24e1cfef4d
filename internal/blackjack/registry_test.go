package blackjack

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lox/blackjack/internal/ident"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry(randutil.New(7), WithDecks(1))

	id := reg.CreateTable()
	require.NoError(t, ident.Validate(id))

	table, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, table.ID)
	assert.Equal(t, 52, table.ShoeRemaining())
	assert.Equal(t, 0, table.PlayerCount())

	other := reg.CreateTable()
	assert.NotEqual(t, id, other)
	assert.Equal(t, 2, reg.Len())
	assert.ElementsMatch(t, []string{id, other}, reg.IDs())

	assert.True(t, reg.Remove(id))
	assert.False(t, reg.Remove(id))
	_, ok = reg.Get(id)
	assert.False(t, ok)
	assert.Equal(t, []string{other}, reg.IDs())
}

func TestRegistryRemoveIf(t *testing.T) {
	reg := NewRegistry(randutil.New(7))
	id := reg.CreateTable()
	require.NoError(t, reg.With(id, func(table *Table) error {
		return table.AddPlayer("p1")
	}))

	occupied := errors.New("occupied")
	empty := func(table *Table) error {
		if table.PlayerCount() > 0 {
			return occupied
		}
		return nil
	}

	require.ErrorIs(t, reg.RemoveIf(id, empty), occupied)
	assert.Equal(t, 1, reg.Len())

	require.NoError(t, reg.With(id, func(table *Table) error {
		return table.RemovePlayer("p1")
	}))
	require.NoError(t, reg.RemoveIf(id, empty))
	assert.Equal(t, 0, reg.Len())

	require.ErrorIs(t, reg.RemoveIf(id, empty), ErrTableNotFound)
	err := reg.With(id, func(*Table) error { return nil })
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestRegistryTablesShuffleIndependently(t *testing.T) {
	reg := NewRegistry(randutil.New(7), WithDecks(1))
	a, _ := reg.Get(reg.CreateTable())
	b, _ := reg.Get(reg.CreateTable())
	assert.NotEqual(t, a.shoe.Cards(), b.shoe.Cards())
}

func TestRegistryRetriesCollidingIDs(t *testing.T) {
	reg := NewRegistry(randutil.New(7))
	ids := []string{"same", "same", "other"}
	reg.SetIDFunc(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})

	assert.Equal(t, "same", reg.CreateTable())
	assert.Equal(t, "other", reg.CreateTable())
}

func TestRegistryWith(t *testing.T) {
	reg := NewRegistry(randutil.New(7))
	id := reg.CreateTable()

	err := reg.With(id, func(table *Table) error {
		return table.AddPlayer("p1")
	})
	require.NoError(t, err)

	err = reg.With(id, func(table *Table) error {
		return table.AddPlayer("p1")
	})
	require.ErrorIs(t, err, ErrDuplicatePlayer)

	err = reg.With("missing", func(*Table) error { return nil })
	require.ErrorIs(t, err, ErrTableNotFound)
}

// Concurrent deals through With never lose or duplicate a card.
func TestRegistryWithSerialisesDeals(t *testing.T) {
	reg := NewRegistry(randutil.New(7), WithDecks(8))
	tables := []string{reg.CreateTable(), reg.CreateTable()}

	const workers = 8
	const deals = 40
	var wg sync.WaitGroup
	for _, id := range tables {
		for w := 0; w < workers; w++ {
			player := fmt.Sprintf("p%d", w)
			require.NoError(t, reg.With(id, func(table *Table) error { return table.AddPlayer(player) }))

			wg.Add(1)
			go func(id, player string) {
				defer wg.Done()
				for i := 0; i < deals; i++ {
					_ = reg.With(id, func(table *Table) error { return table.DealToPlayer(player) })
				}
			}(id, player)
		}
	}
	wg.Wait()

	for _, id := range tables {
		require.NoError(t, reg.With(id, func(table *Table) error {
			dealt := 0
			for _, p := range table.Players() {
				dealt += len(p.Hand)
			}
			assert.Equal(t, workers*deals, dealt)
			assert.Equal(t, 8*52-workers*deals, table.ShoeRemaining())
			return nil
		}))
	}
}
