package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/config"
	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/metrics"
	"github.com/vadiminshakov/optibot/internal/services/strategy/momentum"
	"github.com/vadiminshakov/optibot/internal/storage/decisions"
)

type TradingStrategy interface {
	Initialize(ctx context.Context) error
	Trade(ctx context.Context) (*domain.TradeEvent, error)
	Status() domain.BotStatus
	Close() error
}

// Deps shared collaborators of all bots. Nil fields are disabled.
type Deps struct {
	Logger  *zap.Logger
	Journal *decisions.WALStore
	Metrics *metrics.Recorder
}

// TradingBot represents a single trading instance
type TradingBot struct {
	Config          config.Config
	tradingStrategy TradingStrategy
	logger          *zap.Logger
}

// NewTradingBot creates a new trading bot instance
func NewTradingBot(conf config.Config, deps Deps) (*TradingBot, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("symbol", conf.Symbol), zap.String("platform", conf.Platform))

	client := clients.NewTradierClient(conf.APIURL, conf.AccessToken, conf.AccountID, clients.WithLogger(logger))

	provider, err := newServiceProvider(conf, client, logger)
	if err != nil {
		return nil, err
	}

	tradingStrategy, err := newStrategyFactory(logger).createTradingStrategy(conf, provider, deps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create momentum strategy")
	}

	return newTradingBot(conf, tradingStrategy, logger), nil
}

func newTradingBot(conf config.Config, tradingStrategy TradingStrategy, logger *zap.Logger) *TradingBot {
	return &TradingBot{
		Config:          conf,
		tradingStrategy: tradingStrategy,
		logger:          logger,
	}
}

// Status returns the latest strategy status.
func (b *TradingBot) Status() domain.BotStatus {
	return b.tradingStrategy.Status()
}

// Close closes the trading bot
func (b *TradingBot) Close() {
	if err := b.tradingStrategy.Close(); err != nil {
		b.logger.Warn("Failed to close trading strategy", zap.Error(err))
	}
}

// Run executes a cycle right away and then one per poll interval until ctx is done.
// Cycle errors are logged and never stop the loop.
func (b *TradingBot) Run(ctx context.Context) error {
	if err := b.tradingStrategy.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize trading strategy")
	}

	ticker := time.NewTicker(b.Config.PollInterval)
	defer ticker.Stop()

	b.logger.Info("Starting trading loop", zap.Duration("poll_interval", b.Config.PollInterval))

	b.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context done, stopping trading bot run loop.")
			return ctx.Err()
		case <-ticker.C:
			b.runCycle(ctx)
		}
	}
}

func (b *TradingBot) runCycle(ctx context.Context) {
	tradeEvent, err := b.tradingStrategy.Trade(ctx)
	switch {
	case err == nil:
	case errors.Is(err, momentum.ErrNotReady):
		b.logger.Info("Not enough bars yet, continuing", zap.Error(err))
		return
	case errors.Is(err, momentum.ErrFetchFailed):
		b.logger.Warn("Bar fetch failed, continuing", zap.Error(err))
		return
	case ctx.Err() != nil:
		return
	default:
		b.logger.Error("Trading cycle failed", zap.Error(err))
		return
	}

	if tradeEvent != nil {
		b.logger.Info("Trade event occurred", zap.Stringer("event", tradeEvent))
	}
}

// Bots groups running bots for status readers.
type Bots []*TradingBot

// Statuses returns the status of every bot.
func (bs Bots) Statuses() []domain.BotStatus {
	out := make([]domain.BotStatus, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Status())
	}
	return out
}
