package server

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/hub"
	"github.com/lox/blackjack/internal/protocol"
)

var (
	errNotSeated    = errors.New("not seated at this table")
	errNoRound      = errors.New("no round in progress")
	errRoundRunning = errors.New("round already in progress")
	errHandClosed   = errors.New("hand is already at 21 or bust")
	errEmptyTable   = errors.New("no players seated")
	errTableInUse   = errors.New("table still has players seated")
)

// GameService drives the blackjack engine from client requests and
// publishes table changes through the hub.
type GameService struct {
	registry *blackjack.Registry
	hub      *hub.Hub
	logger   *log.Logger
	now      func() time.Time
	settings TableSettings

	rngMu sync.Mutex
	rng   *rand.Rand

	// seats maps table ID -> player ID -> connection key. The engine only
	// knows player IDs; this is how results find their way back.
	mu    sync.Mutex
	seats map[string]map[string]hub.Key
}

// NewGameService creates a game service whose tables follow settings
func NewGameService(h *hub.Hub, logger *log.Logger, rng *rand.Rand, settings TableSettings, now func() time.Time) *GameService {
	logger = logger.WithPrefix("games")
	rule, err := blackjack.ParseWinRule(settings.WinRule)
	if err != nil {
		logger.Warn("Unknown win rule, using standard", "win_rule", settings.WinRule, "error", err)
		rule = blackjack.RuleStandard
	}
	return &GameService{
		registry: blackjack.NewRegistry(rng, blackjack.WithDecks(settings.Decks), blackjack.WithRule(rule)),
		hub:      h,
		logger:   logger,
		now:      now,
		settings: settings,
		rng:      rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())),
		seats:    make(map[string]map[string]hub.Key),
	}
}

// Registry exposes the table registry
func (gs *GameService) Registry() *blackjack.Registry {
	return gs.registry
}

func playerID(key hub.Key) string {
	return key.ID.String()
}

// CreateTable creates an empty table
func (gs *GameService) CreateTable() string {
	id := gs.registry.CreateTable()
	gs.mu.Lock()
	gs.seats[id] = make(map[string]hub.Key)
	gs.mu.Unlock()
	gs.logger.Info("Table created", "table", id)
	return id
}

// RemoveTable deletes a table nobody is seated at
func (gs *GameService) RemoveTable(id string) error {
	err := gs.registry.RemoveIf(id, func(t *blackjack.Table) error {
		if t.PlayerCount() > 0 {
			return fmt.Errorf("%w: %d at %s", errTableInUse, t.PlayerCount(), id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	gs.mu.Lock()
	delete(gs.seats, id)
	gs.mu.Unlock()
	gs.logger.Info("Table removed", "table", id)
	return nil
}

// Join seats key at tableID and publishes the new table state
func (gs *GameService) Join(ctx context.Context, key hub.Key, tableID string) error {
	return gs.registry.With(tableID, func(t *blackjack.Table) error {
		if err := t.AddPlayer(playerID(key)); err != nil {
			return err
		}
		gs.mu.Lock()
		if gs.seats[tableID] == nil {
			gs.seats[tableID] = make(map[string]hub.Key)
		}
		gs.seats[tableID][playerID(key)] = key
		gs.mu.Unlock()

		gs.logger.Info("Player joined", "table", tableID, "player", key)
		gs.publishState(ctx, t)
		return nil
	})
}

// Leave unseats key from tableID, discarding their hand
func (gs *GameService) Leave(ctx context.Context, key hub.Key, tableID string) error {
	return gs.registry.With(tableID, func(t *blackjack.Table) error {
		if err := t.RemovePlayer(playerID(key)); err != nil {
			return err
		}
		gs.mu.Lock()
		delete(gs.seats[tableID], playerID(key))
		gs.mu.Unlock()

		gs.logger.Info("Player left", "table", tableID, "player", key)
		gs.publishState(ctx, t)
		return nil
	})
}

// StartRound deals the opening hands. The shoe is rebuilt first when it
// has fallen below the reshuffle threshold.
func (gs *GameService) StartRound(ctx context.Context, key hub.Key, tableID string) error {
	return gs.registry.With(tableID, func(t *blackjack.Table) error {
		if err := gs.requireSeated(t, key); err != nil {
			return err
		}
		if t.PlayerCount() == 0 {
			return errEmptyTable
		}
		if roundOpen(t) {
			return errRoundRunning
		}

		if gs.settings.ReshuffleBelow > 0 && t.ShoeRemaining() < gs.settings.ReshuffleBelow {
			gs.rngMu.Lock()
			tableRNG := rand.New(rand.NewPCG(gs.rng.Uint64(), gs.rng.Uint64()))
			gs.rngMu.Unlock()
			t.ResetShoe(gs.settings.Decks, tableRNG)
			gs.logger.Info("Shoe rebuilt", "table", tableID, "cards", t.ShoeRemaining())
		}

		err := t.OpenRound()
		gs.publishState(ctx, t)
		return err
	})
}

// Hit deals one more card to key
func (gs *GameService) Hit(ctx context.Context, key hub.Key, tableID string) error {
	return gs.registry.With(tableID, func(t *blackjack.Table) error {
		if err := gs.requireSeated(t, key); err != nil {
			return err
		}
		if !roundOpen(t) {
			return errNoRound
		}
		p, _ := t.Player(playerID(key))
		if len(p.Hand) == 0 {
			return errNoRound
		}
		if blackjack.HandTotal(p.Hand).Hard >= blackjack.Blackjack {
			return errHandClosed
		}

		if err := t.DealToPlayer(p.ID); err != nil {
			return err
		}
		gs.publishState(ctx, t)
		return nil
	})
}

// Settle plays out the dealer, reveals the hole card and announces winners
func (gs *GameService) Settle(ctx context.Context, key hub.Key, tableID string) error {
	return gs.registry.With(tableID, func(t *blackjack.Table) error {
		if err := gs.requireSeated(t, key); err != nil {
			return err
		}
		if !roundOpen(t) {
			return errNoRound
		}

		playErr := t.PlayDealer(gs.settings.DealerStandsOn)
		t.RevealDealer()
		if playErr != nil {
			// The dealer could not finish drawing; the round is void.
			gs.publishState(ctx, t)
			return playErr
		}

		winners, err := dealtWinners(t)
		if err != nil {
			return err
		}

		names := gs.names(tableID)
		result := protocol.RoundResult{
			TableID: t.ID,
			Rule:    t.Rule().String(),
			Winners: winners,
			Dealer:  dealerView(t),
			Players: playerViews(t, names),
		}
		gs.logger.Info("Round settled", "table", tableID, "winners", len(winners), "players", t.PlayerCount())
		gs.publish(ctx, tableID, protocol.TypeRoundResult, result)
		return nil
	})
}

// dealtWinners returns the winners among players who were dealt into the
// round. Players who sat down after the deal hold no cards and wait for the
// next round.
func dealtWinners(t *blackjack.Table) ([]string, error) {
	all, err := t.WinningPlayers()
	if err != nil {
		return nil, err
	}
	winners := make([]string, 0, len(all))
	for _, id := range all {
		if p, ok := t.Player(id); ok && len(p.Hand) > 0 {
			winners = append(winners, id)
		}
	}
	return winners, nil
}

// roundOpen reports whether a round has been dealt and not yet settled
func roundOpen(t *blackjack.Table) bool {
	return len(t.Dealer) > 0 && !t.DealerRevealed()
}

func (gs *GameService) requireSeated(t *blackjack.Table, key hub.Key) error {
	if _, ok := t.Player(playerID(key)); !ok {
		return fmt.Errorf("%w: %s", errNotSeated, t.ID)
	}
	return nil
}

func (gs *GameService) names(tableID string) map[string]string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	names := make(map[string]string, len(gs.seats[tableID]))
	for id, key := range gs.seats[tableID] {
		names[id] = key.Name
	}
	return names
}

func (gs *GameService) seated(tableID string) []hub.Key {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	keys := make([]hub.Key, 0, len(gs.seats[tableID]))
	for _, key := range gs.seats[tableID] {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID.String() < keys[j].ID.String() })
	return keys
}

func (gs *GameService) publishState(ctx context.Context, t *blackjack.Table) {
	gs.publish(ctx, t.ID, protocol.TypeTableState, tableState(t, gs.names(t.ID)))
}

// publish sends one message to every player seated at tableID. It runs
// under the table lock so updates for a table arrive in order.
func (gs *GameService) publish(ctx context.Context, tableID string, msgType protocol.MessageType, data any) {
	env, err := protocol.NewEnvelope(msgType, data, gs.now())
	if err != nil {
		gs.logger.Error("Failed to create message", "type", msgType, "error", err)
		return
	}
	for _, key := range gs.seated(tableID) {
		if _, err := gs.hub.SendOne(ctx, key, env); err != nil {
			gs.logger.Warn("Failed to publish table update", "table", tableID, "key", key, "error", err)
		}
	}
}

// errorCode maps a gameplay error to its wire code
func errorCode(err error) string {
	switch {
	case errors.Is(err, blackjack.ErrTableNotFound), errors.Is(err, blackjack.ErrPlayerNotFound):
		return protocol.CodeNotFound
	case errors.Is(err, blackjack.ErrDuplicatePlayer), errors.Is(err, errTableInUse):
		return protocol.CodeConflict
	case errors.Is(err, blackjack.ErrShoeExhausted):
		return protocol.CodeShoeExhausted
	case errors.Is(err, errNotSeated):
		return protocol.CodeNotSeated
	case errors.Is(err, errNoRound), errors.Is(err, errRoundRunning),
		errors.Is(err, errHandClosed), errors.Is(err, errEmptyTable):
		return protocol.CodeInvalidState
	default:
		return protocol.CodeInternal
	}
}
