// Package momentum implements the intraday options momentum strategy: indicator snapshot,
// CALL/PUT/NONE evaluation, multi-cycle confirmation and hand-off to a trade executor.
package momentum

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/services/market/indicators"
)

var (
	// ErrNotReady the series is too short for indicators; confirmation state is untouched.
	ErrNotReady = errors.New("not enough bars")
	// ErrFetchFailed bars could not be refreshed; confirmation state is untouched.
	ErrFetchFailed = errors.New("bar fetch failed")
	// ErrExecutionFailed a confirmed signal could not be executed; confirmation state was reset.
	ErrExecutionFailed = errors.New("trade execution failed")
)

type barSource interface {
	Refresh(ctx context.Context) (*domain.Series, error)
}

type executor interface {
	Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionOutcome, error)
}

type journal interface {
	Save(event domain.DecisionEvent) error
}

type recorder interface {
	CycleCompleted(symbol string, outcome domain.CycleOutcome)
	SignalEvaluated(symbol string, signal domain.Signal)
	ConfirmationProgress(symbol string, count int)
	SignalConfirmed(symbol string, direction domain.Signal)
	TradeExecuted(symbol string, direction domain.Signal, status domain.ExecutionStatus)
}

type nopRecorder struct{}

func (nopRecorder) CycleCompleted(string, domain.CycleOutcome) {}
func (nopRecorder) SignalEvaluated(string, domain.Signal) {}
func (nopRecorder) ConfirmationProgress(string, int) {}
func (nopRecorder) SignalConfirmed(string, domain.Signal) {}
func (nopRecorder) TradeExecuted(string, domain.Signal, domain.ExecutionStatus) {}

// Option configures a Strategy.
type Option func(*Strategy)

// WithJournal records every evaluated cycle.
func WithJournal(j journal) Option {
	return func(s *Strategy) {
		s.journal = j
	}
}

// WithRecorder reports cycle metrics.
func WithRecorder(r recorder) Option {
	return func(s *Strategy) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Strategy) {
		s.now = now
	}
}

// Strategy runs one evaluation cycle per Trade call. Cycles must not overlap.
type Strategy struct {
	l         *zap.Logger
	symbol    string
	platform  string
	bars      barSource
	engine    indicators.Engine
	evaluator Evaluator
	confirmer *Confirmer
	executor  executor
	journal   journal
	recorder  recorder
	now       func() time.Time

	statusMu sync.RWMutex
	status   domain.BotStatus
}

// NewStrategy creates a momentum strategy for one underlying.
func NewStrategy(l *zap.Logger, symbol, platform string, bars barSource, engine indicators.Engine,
	evaluator Evaluator, confirmer *Confirmer, executor executor, opts ...Option) (*Strategy, error) {
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if bars == nil || engine == nil || confirmer == nil || executor == nil {
		return nil, errors.New("bar source, indicator engine, confirmer and executor are required")
	}
	if l == nil {
		l = zap.NewNop()
	}

	s := &Strategy{
		l:         l,
		symbol:    symbol,
		platform:  platform,
		bars:      bars,
		engine:    engine,
		evaluator: evaluator,
		confirmer: confirmer,
		executor:  executor,
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.status = domain.BotStatus{
		Symbol:    symbol,
		Platform:  platform,
		State:     StateIdle.String(),
		Threshold: confirmer.Threshold(),
		Status:    "waiting for first cycle",
	}

	return s, nil
}

// Initialize warms up the bar series. A failed warm-up is not fatal, the next cycle retries.
func (s *Strategy) Initialize(ctx context.Context) error {
	series, err := s.bars.Refresh(ctx)
	if err != nil {
		s.l.Warn("Initial bar fetch failed, will retry on next cycle", zap.Error(err))
		return nil
	}

	s.l.Info("Momentum strategy initialized",
		zap.Int("bars", series.Len()),
		zap.Int("capacity", series.Cap()),
		zap.Int("confirmation_threshold", s.confirmer.Threshold()))
	return nil
}

// Trade runs one cycle: refresh bars, compute indicators, evaluate, confirm and execute.
// Fetch and readiness failures return before the confirmation state is touched.
func (s *Strategy) Trade(ctx context.Context) (*domain.TradeEvent, error) {
	cycleTime := s.now()

	series, err := s.bars.Refresh(ctx)
	if err != nil {
		s.finishCycle(cycleTime, domain.CycleFetchFailed, err)
		return nil, errors.Wrap(ErrFetchFailed, err.Error())
	}

	snapshot, err := s.engine.Compute(series)
	if err != nil {
		if errors.Is(err, indicators.ErrNotReady) {
			s.finishCycle(cycleTime, domain.CycleNotReady, err)
			return nil, errors.Wrap(ErrNotReady, err.Error())
		}
		s.finishCycle(cycleTime, domain.CycleFailed, err)
		return nil, errors.Wrap(err, "compute indicators")
	}

	latest, ok := series.Latest()
	if !ok {
		s.finishCycle(cycleTime, domain.CycleNotReady, nil)
		return nil, errors.Wrap(ErrNotReady, "empty series")
	}
	price := latest.Close

	verdict := s.evaluator.Evaluate(snapshot, price)
	if verdict.Conflict {
		s.l.Error("CALL and PUT rules both hold, rule definitions overlap",
			zap.Float64("price", price),
			zap.Any("snapshot", snapshot))
	}

	tr := s.confirmer.Observe(verdict.Signal)
	s.recorder.SignalEvaluated(s.symbol, verdict.Signal)
	s.recorder.ConfirmationProgress(s.symbol, tr.Count)

	event := domain.DecisionEvent{
		Timestamp:     cycleTime,
		CycleID:       uuid.NewString(),
		Symbol:        s.symbol,
		BarTime:       latest.Time,
		Price:         price,
		Snapshot:      snapshot,
		Signal:        verdict.Signal,
		State:         tr.To.String(),
		PendingSignal: tr.Signal,
		Count:         tr.Count,
		Threshold:     tr.Threshold,
		Confirmed:     tr.Confirmed,
	}

	s.l.Info("Signal evaluated",
		zap.String("signal", verdict.Signal.String()),
		zap.Float64("price", price),
		zap.Float64("rsi", snapshot.RSI),
		zap.Float64("vwap", snapshot.VWAP),
		zap.Bool("volume_spike", snapshot.VolumeSpike),
		zap.String("status", tr.Status()))

	if !tr.Confirmed {
		s.saveDecision(event)
		s.updateStatus(cycleTime, verdict.Signal, tr, nil)
		return nil, nil
	}

	s.recorder.SignalConfirmed(s.symbol, tr.Signal)
	s.recorder.ConfirmationProgress(s.symbol, 0)
	req := domain.TradeRequest{
		CycleID:    event.CycleID,
		Underlying: s.symbol,
		Direction:  tr.Signal,
		Spot:       decimal.NewFromFloat(price),
		Time:       cycleTime,
	}

	outcome, err := s.executor.Execute(ctx, req)
	if err != nil {
		outcome.Status = domain.ExecutionFailed
		event.Execution = outcome.Status
		event.Error = err.Error()
		s.saveDecision(event)
		s.recorder.TradeExecuted(s.symbol, req.Direction, outcome.Status)
		s.updateStatus(cycleTime, verdict.Signal, tr, err)
		s.l.Error("Confirmed signal execution failed, confirmation reset",
			zap.String("direction", req.Direction.String()),
			zap.Error(err))
		return nil, errors.Wrap(ErrExecutionFailed, err.Error())
	}

	event.Execution = outcome.Status
	event.Reason = outcome.Reason
	event.Quantity = outcome.Quantity
	event.OrderID = outcome.OrderID
	if outcome.Contract != nil {
		event.OptionSymbol = outcome.Contract.Symbol
	}
	s.saveDecision(event)
	s.recorder.TradeExecuted(s.symbol, req.Direction, outcome.Status)
	s.updateStatus(cycleTime, verdict.Signal, tr, nil)

	if outcome.Status == domain.ExecutionSkipped {
		s.l.Warn("Confirmed signal skipped",
			zap.String("direction", req.Direction.String()),
			zap.String("reason", outcome.Reason))
	}

	return &domain.TradeEvent{Request: req, Outcome: outcome}, nil
}

// Status returns the latest bot status. Safe for concurrent use.
func (s *Strategy) Status() domain.BotStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	return s.status
}

// Close releases strategy resources.
func (s *Strategy) Close() error {
	return nil
}

func (s *Strategy) saveDecision(event domain.DecisionEvent) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(event); err != nil {
		s.l.Warn("Failed to journal decision", zap.String("cycle_id", event.CycleID), zap.Error(err))
	}
}

// finishCycle records a cycle that ended before evaluation.
func (s *Strategy) finishCycle(at time.Time, outcome domain.CycleOutcome, cause error) {
	s.recorder.CycleCompleted(s.symbol, outcome)

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.status.LastCycle = at
	s.status.LastOutcome = outcome
	s.status.LastError = ""
	if cause != nil {
		s.status.LastError = cause.Error()
	}
}

func (s *Strategy) updateStatus(at time.Time, signal domain.Signal, tr Transition, cause error) {
	s.recorder.CycleCompleted(s.symbol, domain.CycleEvaluated)

	state, pending, count := s.confirmer.State()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.status.LastCycle = at
	s.status.LastOutcome = domain.CycleEvaluated
	s.status.LastSignal = signal
	s.status.State = state.String()
	s.status.PendingSignal = pending
	s.status.Count = count
	s.status.Status = tr.Status()
	s.status.LastError = ""
	if cause != nil {
		s.status.LastError = cause.Error()
	}
}
