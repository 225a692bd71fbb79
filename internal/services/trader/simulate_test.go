package trader

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/storage/simstate"
)

func newTestSimulateTrader(t *testing.T, store *simstate.Store, cash string) *SimulateTrader {
	t.Helper()

	tr, err := NewSimulateTrader(zap.NewNop(), spyChain(), Sizing{
		Budget:     domain.NewRiskBudget(decimal.NewFromInt(100)),
		Multiplier: 1,
	}, store, decimal.RequireFromString(cash))
	require.NoError(t, err)
	tr.planner.now = func() time.Time { return testNow }
	return tr
}

func TestSimulateTrader_FillsAtAsk(t *testing.T) {
	store, err := simstate.NewStore(t.TempDir(), "SPY")
	require.NoError(t, err)
	tr := newTestSimulateTrader(t, store, "1000")

	outcome, err := tr.Execute(context.Background(), callRequest("470"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionExecuted, outcome.Status)
	assert.Equal(t, int64(83), outcome.Quantity)
	assert.True(t, outcome.UnitPrice.Equal(decimal.RequireFromString("1.2")))
	assert.True(t, tr.Cash().Equal(decimal.RequireFromString("900.4")))
	require.Len(t, tr.Positions(), 1)
	assert.Equal(t, "cycle-1", tr.Positions()[0].CycleID)

	restored := newTestSimulateTrader(t, store, "1000")
	assert.True(t, restored.Cash().Equal(decimal.RequireFromString("900.4")))
	assert.Len(t, restored.Positions(), 1)
}

func TestSimulateTrader_InsufficientCash(t *testing.T) {
	tr := newTestSimulateTrader(t, nil, "50")

	outcome, err := tr.Execute(context.Background(), callRequest("470"))
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionSkipped, outcome.Status)
	assert.Contains(t, outcome.Reason, "insufficient paper cash")
	assert.True(t, tr.Cash().Equal(decimal.NewFromInt(50)))
	assert.Empty(t, tr.Positions())
}
