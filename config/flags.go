package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// App process-wide settings.
type App struct {
	ConfigPath  string
	Setup       bool
	Check       bool
	LogLevel    string
	LogFile     string
	WebAddr     string
	WebDomain   string
	CertCache   string
	MetricsAddr string
}

// WebDomains returns the domains listed in WebDomain.
func (a App) WebDomains() []string {
	var out []string
	for _, d := range strings.Split(a.WebDomain, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Get parses command line arguments. Bots come from the --config file when set,
// otherwise a single bot is built from flags. Configs are not validated here.
func Get(args []string) (App, []Config, error) {
	fs := flag.NewFlagSet("optibot", flag.ContinueOnError)

	var app App
	fs.StringVar(&app.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&app.Setup, "setup", false, "run the interactive configuration wizard")
	fs.BoolVar(&app.Check, "check", false, "check API credentials and exit")
	fs.StringVar(&app.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&app.LogFile, "log-file", "", "also write logs to this rotated file")
	fs.StringVar(&app.WebAddr, "web-addr", ":8080", "status web server address, empty to disable")
	fs.StringVar(&app.WebDomain, "web-domain", "", "serve the web UI over HTTPS with ACME certificates for these domains, comma separated")
	fs.StringVar(&app.CertCache, "cert-cache", "cert-cache", "directory for ACME certificates")
	fs.StringVar(&app.MetricsAddr, "metrics-addr", "", "prometheus metrics address, empty to disable")

	d := DefaultConfigTmp()
	cli := ConfigTmp{}
	fs.StringVar(&cli.Platform, "platform", d.Platform, "trading platform: simulate or tradier")
	fs.StringVar(&cli.Symbol, "symbol", d.Symbol, "underlying symbol, example: SPY")
	fs.StringVar(&cli.Interval, "interval", d.Interval, "bar interval: 1min, 5min, 15min")
	fs.StringVar(&cli.SessionFilter, "session", d.SessionFilter, "session filter: all or open")
	fs.StringVar(&cli.PollInterval, "poll-interval", d.PollInterval, "cycle interval, example: 1m")
	fs.IntVar(&cli.ConfirmationThreshold, "threshold", d.ConfirmationThreshold, "consecutive signals required")
	fs.StringVar(&cli.RiskPerTrade, "risk", d.RiskPerTrade, "budget per trade in account currency")
	fs.Int64Var(&cli.ContractMultiplier, "multiplier", d.ContractMultiplier, "contract price multiplier used for sizing")
	fs.StringVar(&cli.APIURL, "api-url", d.APIURL, "tradier API base URL")
	fs.StringVar(&cli.StateDir, "state-dir", d.StateDir, "directory for journals and paper state")

	if err := fs.Parse(args); err != nil {
		return App{}, nil, err
	}

	if app.Setup {
		return app, nil, nil
	}

	if app.ConfigPath != "" {
		configs, err := Load(app.ConfigPath)
		if err != nil {
			return App{}, nil, err
		}
		return app, configs, nil
	}

	conf, err := cli.toConfig()
	if err != nil {
		return App{}, nil, err
	}
	return app, []Config{conf}, nil
}

// LoadDotEnv loads variables from a .env file in the working directory if it exists.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
