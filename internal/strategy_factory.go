package internal

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/config"
	"github.com/vadiminshakov/optibot/internal/services/market/collector"
	"github.com/vadiminshakov/optibot/internal/services/market/indicators"
	"github.com/vadiminshakov/optibot/internal/services/strategy/momentum"
)

// strategyFactory creates trading strategies.
type strategyFactory struct {
	logger *zap.Logger
}

// newStrategyFactory creates a new strategy factory.
func newStrategyFactory(logger *zap.Logger) *strategyFactory {
	return &strategyFactory{logger: logger}
}

// createTradingStrategy builds the momentum pipeline of one bot.
func (f *strategyFactory) createTradingStrategy(conf config.Config, provider serviceProvider, deps Deps) (TradingStrategy, error) {
	bars, err := collector.NewBarCollector(f.logger, provider.BarProvider(), conf.Symbol, conf.Interval, conf.WindowCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bar collector")
	}

	engine, err := indicators.NewEngine(conf.Indicators)
	if err != nil {
		return nil, err
	}

	evaluator, err := momentum.NewEvaluator(momentum.DefaultRules())
	if err != nil {
		return nil, err
	}

	confirmer, err := momentum.NewConfirmer(conf.ConfirmationThreshold)
	if err != nil {
		return nil, err
	}

	executor, err := provider.Executor()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create executor")
	}

	var opts []momentum.Option
	if deps.Journal != nil {
		opts = append(opts, momentum.WithJournal(deps.Journal))
	}
	if deps.Metrics != nil {
		opts = append(opts, momentum.WithRecorder(deps.Metrics))
	}

	return momentum.NewStrategy(f.logger, conf.Symbol, conf.Platform, bars, engine, evaluator, confirmer, executor, opts...)
}
