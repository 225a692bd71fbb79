package momentum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/services/market/indicators"
)

type stubBars struct {
	series *domain.Series
	errs   []error
}

func (s *stubBars) Refresh(context.Context) (*domain.Series, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.series, nil
}

// fixtureEngine returns queued snapshots or errors, one per Compute call.
type fixtureEngine struct {
	snapshots []domain.IndicatorSnapshot
	errs      []error
	calls     int
}

func (f *fixtureEngine) Compute(*domain.Series) (domain.IndicatorSnapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.IndicatorSnapshot{}, f.errs[i]
	}
	return f.snapshots[i], nil
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionOutcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ExecutionOutcome), args.Error(1)
}

type memJournal struct {
	events []domain.DecisionEvent
}

func (j *memJournal) Save(event domain.DecisionEvent) error {
	j.events = append(j.events, event)
	return nil
}

const testPrice = 100.0

func testSeries(t *testing.T) *domain.Series {
	t.Helper()

	s, err := domain.NewSeries(100)
	require.NoError(t, err)
	require.NoError(t, s.Append(domain.Bar{
		Time:   time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		Open:   testPrice,
		High:   testPrice + 1,
		Low:    testPrice - 1,
		Close:  testPrice,
		Volume: 5000,
	}))
	return s
}

func snapshotsFor(signals ...domain.Signal) []domain.IndicatorSnapshot {
	out := make([]domain.IndicatorSnapshot, len(signals))
	for i, s := range signals {
		switch s {
		case domain.SignalCall:
			out[i] = bullishSnapshot()
		case domain.SignalPut:
			out[i] = bearishSnapshot()
		default:
			snap := bullishSnapshot()
			snap.VolumeSpike = false
			out[i] = snap
		}
	}
	return out
}

func newTestStrategy(t *testing.T, bars *stubBars, engine indicators.Engine, exec executor, j journal) *Strategy {
	t.Helper()

	evaluator, err := NewEvaluator(DefaultRules())
	require.NoError(t, err)
	confirmer, err := NewConfirmer(DefaultConfirmationThreshold)
	require.NoError(t, err)

	s, err := NewStrategy(zap.NewNop(), "SPY", "simulate", bars, engine, evaluator, confirmer, exec,
		WithJournal(j),
		WithClock(func() time.Time { return time.Date(2024, 1, 2, 15, 0, 30, 0, time.UTC) }))
	require.NoError(t, err)
	return s
}

func executedOutcome() domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		Status:   domain.ExecutionExecuted,
		Contract: &domain.OptionContract{Symbol: "SPY240102C00100000"},
		Quantity: 83,
		OrderID:  "42",
	}
}

func TestStrategy_ConfirmedCallExecutesOnce(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.MatchedBy(func(req domain.TradeRequest) bool {
		return req.Direction == domain.SignalCall &&
			req.Underlying == "SPY" &&
			req.Spot.Equal(decimal.NewFromFloat(testPrice))
	})).Return(executedOutcome(), nil).Once()

	j := &memJournal{}
	s := newTestStrategy(t, &stubBars{series: testSeries(t)},
		&fixtureEngine{snapshots: snapshotsFor(domain.SignalCall, domain.SignalCall)}, exec, j)

	event, err := s.Trade(context.Background())
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Equal(t, "1/2 CALL confirmed, waiting", s.Status().Status)

	event, err = s.Trade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.ExecutionExecuted, event.Outcome.Status)
	assert.Equal(t, int64(83), event.Outcome.Quantity)

	exec.AssertExpectations(t)

	require.Len(t, j.events, 2)
	assert.False(t, j.events[0].Confirmed)
	assert.True(t, j.events[1].Confirmed)
	assert.Equal(t, "SPY240102C00100000", j.events[1].OptionSymbol)
	assert.Equal(t, event.Request.CycleID, j.events[1].CycleID)

	status := s.Status()
	assert.Equal(t, StateIdle.String(), status.State)
	assert.Zero(t, status.Count)
}

func TestStrategy_FetchFailureKeepsConfirmationState(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executedOutcome(), nil).Once()

	bars := &stubBars{series: testSeries(t), errs: []error{nil, errors.New("timeout")}}
	s := newTestStrategy(t, bars,
		&fixtureEngine{snapshots: snapshotsFor(domain.SignalCall, domain.SignalCall)}, exec, nil)

	_, err := s.Trade(context.Background())
	require.NoError(t, err)

	_, err = s.Trade(context.Background())
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.EqualError(t, err, "timeout: bar fetch failed")
	assert.Equal(t, domain.CycleFetchFailed, s.Status().LastOutcome)
	assert.Equal(t, 1, s.Status().Count)

	event, err := s.Trade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	exec.AssertExpectations(t)
}

func TestStrategy_NotReadyKeepsConfirmationState(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).Return(executedOutcome(), nil).Once()

	engine := &fixtureEngine{
		snapshots: snapshotsFor(domain.SignalPut, domain.SignalNone, domain.SignalPut),
		errs:      []error{nil, indicators.ErrNotReady, nil},
	}
	s := newTestStrategy(t, &stubBars{series: testSeries(t)}, engine, exec, nil)

	_, err := s.Trade(context.Background())
	require.NoError(t, err)

	_, err = s.Trade(context.Background())
	require.ErrorIs(t, err, ErrNotReady)

	event, err := s.Trade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.SignalPut, event.Request.Direction)
	exec.AssertExpectations(t)
}

func TestStrategy_ExecutionFailureResetsConfirmation(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(domain.ExecutionOutcome{}, errors.New("order rejected")).Once()

	j := &memJournal{}
	s := newTestStrategy(t, &stubBars{series: testSeries(t)},
		&fixtureEngine{snapshots: snapshotsFor(domain.SignalCall, domain.SignalCall, domain.SignalCall)}, exec, j)

	_, err := s.Trade(context.Background())
	require.NoError(t, err)

	_, err = s.Trade(context.Background())
	require.ErrorIs(t, err, ErrExecutionFailed)
	assert.Contains(t, err.Error(), "order rejected")

	// third CALL starts a new streak and must not execute
	event, err := s.Trade(context.Background())
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Equal(t, 1, s.Status().Count)

	exec.AssertExpectations(t)
	require.Len(t, j.events, 3)
	assert.Equal(t, domain.ExecutionFailed, j.events[1].Execution)
	assert.Equal(t, "order rejected", j.events[1].Error)
}

func TestStrategy_SkippedExecutionResetsConfirmation(t *testing.T) {
	exec := &mockExecutor{}
	exec.On("Execute", mock.Anything, mock.Anything).
		Return(domain.Skipped("quantity below 1"), nil).Once()

	s := newTestStrategy(t, &stubBars{series: testSeries(t)},
		&fixtureEngine{snapshots: snapshotsFor(domain.SignalPut, domain.SignalPut)}, exec, nil)

	_, err := s.Trade(context.Background())
	require.NoError(t, err)

	event, err := s.Trade(context.Background())
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, domain.ExecutionSkipped, event.Outcome.Status)
	assert.Equal(t, StateIdle.String(), s.Status().State)
}

func TestStrategy_NoneResetsStreak(t *testing.T) {
	exec := &mockExecutor{}

	s := newTestStrategy(t, &stubBars{series: testSeries(t)},
		&fixtureEngine{snapshots: snapshotsFor(domain.SignalCall, domain.SignalNone, domain.SignalCall)}, exec, nil)

	for i := 0; i < 3; i++ {
		event, err := s.Trade(context.Background())
		require.NoError(t, err)
		assert.Nil(t, event)
	}

	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	assert.Equal(t, 1, s.Status().Count)
}

func TestNewStrategy_RequiresCollaborators(t *testing.T) {
	confirmer, err := NewConfirmer(2)
	require.NoError(t, err)

	_, err = NewStrategy(zap.NewNop(), "SPY", "simulate", nil, &fixtureEngine{}, Evaluator{}, confirmer, &mockExecutor{})
	assert.Error(t, err)

	_, err = NewStrategy(zap.NewNop(), "", "simulate", &stubBars{}, &fixtureEngine{}, Evaluator{}, confirmer, &mockExecutor{})
	assert.Error(t, err)
}
