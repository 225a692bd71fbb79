package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/config"
	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/domain"
	"github.com/vadiminshakov/optibot/internal/services/market/collector"
	"github.com/vadiminshakov/optibot/internal/services/trader"
	"github.com/vadiminshakov/optibot/internal/storage/simstate"
)

type executorService interface {
	Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionOutcome, error)
}

// serviceProvider defines a factory interface for creating platform-specific services.
type serviceProvider interface {
	BarProvider() collector.BarProvider
	Executor() (executorService, error)
}

// newServiceProvider creates a service provider for conf.Platform.
// This is the single point of truth for dispatching to platform-specific implementations.
func newServiceProvider(conf config.Config, client *clients.TradierClient, logger *zap.Logger) (serviceProvider, error) {
	switch conf.Platform {
	case config.PlatformTradier:
		return &tradierProvider{conf: conf, client: client, logger: logger}, nil
	case config.PlatformSimulate:
		return &simulateProvider{conf: conf, client: client, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", conf.Platform)
	}
}

func sizing(conf config.Config) trader.Sizing {
	return trader.Sizing{
		Budget:     domain.NewRiskBudget(conf.RiskPerTrade),
		Multiplier: conf.ContractMultiplier,
	}
}

func tradierBars(conf config.Config, client *clients.TradierClient) collector.BarProvider {
	return collector.NewTradierBarProvider(client, conf.SessionFilter, conf.HistoryLookback)
}

type tradierProvider struct {
	conf   config.Config
	client *clients.TradierClient
	logger *zap.Logger
}

func (p *tradierProvider) BarProvider() collector.BarProvider {
	return tradierBars(p.conf, p.client)
}
func (p *tradierProvider) Executor() (executorService, error) {
	return trader.NewTradierTrader(p.logger, p.client, p.client, sizing(p.conf))
}

// simulateProvider reads live Tradier market data and fills orders on paper.
type simulateProvider struct {
	conf   config.Config
	client *clients.TradierClient
	logger *zap.Logger
}

func (p *simulateProvider) BarProvider() collector.BarProvider {
	return tradierBars(p.conf, p.client)
}
func (p *simulateProvider) Executor() (executorService, error) {
	store, err := simstate.NewStore(p.conf.StateDir, p.conf.Symbol)
	if err != nil {
		return nil, err
	}
	return trader.NewSimulateTrader(p.logger, p.client, sizing(p.conf), store, p.conf.SimulateCash)
}
