// Command optibot runs intraday momentum options bots on Tradier.
// Each configured underlying gets its own bot that evaluates RSI, EMA, VWAP, MACD
// and volume conditions on every bar poll and buys a near-the-money option once
// a CALL or PUT signal is confirmed on consecutive cycles.
//
// Usage:
//
//	optibot --config config.yaml
//	optibot --symbol SPY --platform simulate
//	optibot --setup
//	optibot --check
//
// Required environment variables (also read from .env):
//
//	TRADIER_ACCESS_TOKEN
//	TRADIER_ACCOUNT_ID (tradier platform only)
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/optibot/config"
	"github.com/vadiminshakov/optibot/internal"
	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/logger"
	"github.com/vadiminshakov/optibot/internal/metrics"
	"github.com/vadiminshakov/optibot/internal/setup"
	"github.com/vadiminshakov/optibot/internal/storage/decisions"
	"github.com/vadiminshakov/optibot/internal/web"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	app, configs, err := config.Get(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if app.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		configs, err = config.Load(path)
		if err != nil {
			log.Fatal(err)
		}
	}

	logOpts := logger.DefaultOptions()
	logOpts.Level = app.LogLevel
	logOpts.File = app.LogFile
	l, err := logger.New(logOpts)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()
	zap.ReplaceGlobals(l)

	for _, conf := range configs {
		if err := conf.Validate(); err != nil {
			l.Fatal("invalid configuration", zap.String("symbol", conf.Symbol), zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.Check {
		if err := checkAccounts(ctx, l, configs); err != nil {
			l.Fatal("credential check failed", zap.Error(err))
		}
		return
	}

	journal, err := decisions.NewWALStore(configs[0].StateDir)
	if err != nil {
		l.Fatal("failed to open decision journal", zap.Error(err))
	}
	defer journal.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.New(reg)
	if err != nil {
		l.Fatal("failed to register metrics", zap.Error(err))
	}

	deps := internal.Deps{Logger: l, Journal: journal, Metrics: recorder}
	bots := make(internal.Bots, 0, len(configs))
	for _, conf := range configs {
		bot, err := internal.NewTradingBot(conf, deps)
		if err != nil {
			l.Fatal("failed to create trading bot", zap.String("symbol", conf.Symbol), zap.Error(err))
		}
		defer bot.Close()
		bots = append(bots, bot)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, bot := range bots {
		g.Go(func() error {
			if err := bot.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
		l.Info("started", zap.String("symbol", bot.Config.Symbol), zap.String("platform", bot.Config.Platform))
	}

	if app.WebAddr != "" {
		srv := web.NewServer(app.WebAddr, bots, journal, l.Named("web"))
		g.Go(func() error {
			if domains := app.WebDomains(); len(domains) > 0 {
				return srv.StartWithAutoTLS(gctx, domains, app.CertCache)
			}
			return srv.Start(gctx)
		})
	}

	if app.MetricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, app.MetricsAddr, reg)
		})
	}

	if err := g.Wait(); err != nil {
		l.Error("shutting down", zap.Error(err))
	}
	l.Info("stopped")
}

// checkAccounts calls the profile endpoint once per configured token.
func checkAccounts(ctx context.Context, l *zap.Logger, configs []config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	checked := make(map[string]bool)
	for _, conf := range configs {
		key := conf.APIURL + "|" + conf.AccessToken
		if checked[key] {
			continue
		}
		checked[key] = true

		client := clients.NewTradierClient(conf.APIURL, conf.AccessToken, conf.AccountID, clients.WithLogger(l))
		profile, err := client.Profile(ctx)
		if err != nil {
			return err
		}

		accounts := make([]string, 0, len(profile.Accounts))
		for _, a := range profile.Accounts {
			accounts = append(accounts, a.AccountNumber)
		}
		l.Info("Tradier credentials OK",
			zap.String("api_url", conf.APIURL),
			zap.String("profile", profile.Name),
			zap.Strings("accounts", accounts))
	}
	return nil
}
