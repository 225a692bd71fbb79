package trader

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/storage/simstate"
)

// SimulateTrader fills orders at the ask against a paper account.
// Contract selection uses live chains.
type SimulateTrader struct {
	mu         sync.Mutex
	l          *zap.Logger
	planner    *planner
	cash       decimal.Decimal
	positions  []simstate.StoredPosition
	stateStore *simstate.Store
}

// NewSimulateTrader creates a paper trader. Persisted state, when present, overrides initialCash.
func NewSimulateTrader(l *zap.Logger, chains ChainSource, sizing Sizing, store *simstate.Store, initialCash decimal.Decimal) (*SimulateTrader, error) {
	if l == nil {
		l = zap.NewNop()
	}
	p, err := newPlanner(l, chains, sizing)
	if err != nil {
		return nil, err
	}

	trader := &SimulateTrader{
		l:          l,
		planner:    p,
		cash:       initialCash,
		stateStore: store,
	}
	if err := trader.restoreState(); err != nil {
		l.Warn("failed to restore simulate state", zap.Error(err))
	}

	l.Info("simulate init",
		zap.String("cash", trader.cash.String()),
		zap.Int("positions", len(trader.positions)))
	return trader, nil
}

// Execute simulates a market buy of the selected contract.
func (t *SimulateTrader) Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionOutcome, error) {
	p, skip, err := t.planner.plan(ctx, req)
	if err != nil {
		return domain.ExecutionOutcome{}, err
	}
	if skip != "" {
		return domain.Skipped(skip), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cash.LessThan(p.cost) {
		return domain.Skipped("insufficient paper cash: have " + t.cash.String() + " need " + p.cost.String()), nil
	}

	at := req.Time
	if at.IsZero() {
		at = time.Now()
	}

	t.cash = t.cash.Sub(p.cost)
	t.positions = append(t.positions, simstate.NewStoredPosition(req.CycleID, p.contract, p.quantity, p.unitPrice, p.cost, at))
	t.persist()

	orderID := "sim-" + uuid.NewString()
	t.l.Info("Simulated buy executed",
		zap.String("id", orderID),
		zap.String("option_symbol", p.contract.Symbol),
		zap.Int64("quantity", p.quantity),
		zap.String("price", p.unitPrice.String()),
		zap.String("cash", t.cash.String()))

	return p.outcome(domain.ExecutionExecuted, orderID), nil
}

// Cash returns the paper cash balance.
func (t *SimulateTrader) Cash() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cash
}

// Positions returns a copy of the paper positions.
func (t *SimulateTrader) Positions() []simstate.StoredPosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]simstate.StoredPosition(nil), t.positions...)
}

func (t *SimulateTrader) persist() {
	if t.stateStore == nil {
		return
	}

	state := simstate.State{
		Cash:      t.cash.String(),
		Positions: t.positions,
		UpdatedAt: time.Now().UTC(),
	}
	if err := t.stateStore.Save(state); err != nil {
		t.l.Warn("failed to persist simulate state", zap.Error(err))
	}
}

func (t *SimulateTrader) restoreState() error {
	if t.stateStore == nil {
		return nil
	}

	state, err := t.stateStore.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	cash, err := state.CashDecimal()
	if err != nil {
		return errors.Wrap(err, "restore cash")
	}

	t.cash = cash
	t.positions = state.Positions
	return nil
}
