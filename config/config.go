package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/optibot/internal/services/market/indicators"
)

const (
	PlatformSimulate = "simulate"
	PlatformTradier  = "tradier"

	TradierSandboxURL = "https://sandbox.tradier.com/v1"

	EnvAccessToken = "TRADIER_ACCESS_TOKEN"
	EnvAccountID   = "TRADIER_ACCOUNT_ID"
)

var (
	supportedIntervals = map[string]bool{"1min": true, "5min": true, "15min": true}
	supportedSessions  = map[string]bool{"all": true, "open": true}
)

// Config settings of one bot trading one underlying.
type Config struct {
	Platform      string
	Symbol        string
	Interval      string
	SessionFilter string
	PollInterval  time.Duration
	// WindowCapacity is the maximum number of bars kept in memory.
	WindowCapacity        int
	ConfirmationThreshold int
	Indicators            indicators.Params
	RiskPerTrade          decimal.Decimal
	ContractMultiplier    int64
	APIURL                string
	// HistoryLookback widens the bar request beyond the current session; zero means current session only.
	HistoryLookback time.Duration
	StateDir        string
	SimulateCash    decimal.Decimal

	AccessToken string
	AccountID   string
}

// ConfigTmp is the YAML representation of Config. Empty fields take defaults.
type ConfigTmp struct {
	Platform              string `yaml:"platform"`
	Symbol                string `yaml:"symbol"`
	Interval              string `yaml:"interval,omitempty"`
	SessionFilter         string `yaml:"session_filter,omitempty"`
	PollInterval          string `yaml:"poll_interval,omitempty"`
	WindowCapacity        int    `yaml:"window_capacity,omitempty"`
	MinBars               int    `yaml:"min_bars,omitempty"`
	ConfirmationThreshold int    `yaml:"confirmation_threshold,omitempty"`
	RSIPeriod             int    `yaml:"rsi_period,omitempty"`
	EMAFast               int    `yaml:"ema_fast,omitempty"`
	EMAMid                int    `yaml:"ema_mid,omitempty"`
	EMASlow               int    `yaml:"ema_slow,omitempty"`
	MACDFast              int    `yaml:"macd_fast,omitempty"`
	MACDSlow              int    `yaml:"macd_slow,omitempty"`
	MACDSignal            int    `yaml:"macd_signal,omitempty"`
	VolumeLookback        int    `yaml:"volume_lookback,omitempty"`
	VolumeMultiplier      string `yaml:"volume_multiplier,omitempty"`
	RiskPerTrade          string `yaml:"risk_per_trade,omitempty"`
	ContractMultiplier    int64  `yaml:"contract_multiplier,omitempty"`
	APIURL                string `yaml:"api_url,omitempty"`
	HistoryLookback       string `yaml:"history_lookback,omitempty"`
	StateDir              string `yaml:"state_dir,omitempty"`
	SimulateCash          string `yaml:"simulate_cash,omitempty"`
}

// DefaultConfigTmp returns a single SPY bot on the simulate platform.
func DefaultConfigTmp() ConfigTmp {
	return ConfigTmp{
		Platform:              PlatformSimulate,
		Symbol:                "SPY",
		Interval:              "1min",
		SessionFilter:         "open",
		PollInterval:          "1m",
		WindowCapacity:        100,
		MinBars:               100,
		ConfirmationThreshold: 2,
		RiskPerTrade:          "100",
		ContractMultiplier:    1,
		APIURL:                TradierSandboxURL,
		StateDir:              "./wal",
		SimulateCash:          "10000",
	}
}

// Validate checks the config can run a bot.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformSimulate, PlatformTradier:
	default:
		return fmt.Errorf("unsupported platform %q", c.Platform)
	}
	if c.Symbol == "" {
		return errors.New("symbol is required")
	}
	if !supportedIntervals[c.Interval] {
		return fmt.Errorf("unsupported interval %q (1min, 5min, 15min)", c.Interval)
	}
	if !supportedSessions[c.SessionFilter] {
		return fmt.Errorf("unsupported session filter %q (all, open)", c.SessionFilter)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.ConfirmationThreshold < 1 {
		return fmt.Errorf("confirmation threshold must be >= 1, got %d", c.ConfirmationThreshold)
	}
	if err := c.Indicators.Validate(); err != nil {
		return errors.Wrap(err, "indicators")
	}
	if required := c.Indicators.RequiredBars(); c.WindowCapacity < required {
		return fmt.Errorf("window capacity %d is below the %d bars indicators require", c.WindowCapacity, required)
	}
	if !c.RiskPerTrade.IsPositive() {
		return fmt.Errorf("risk per trade must be positive, got %s", c.RiskPerTrade)
	}
	if c.ContractMultiplier < 1 {
		return fmt.Errorf("contract multiplier must be >= 1, got %d", c.ContractMultiplier)
	}
	if c.HistoryLookback < 0 {
		return fmt.Errorf("history lookback must not be negative, got %s", c.HistoryLookback)
	}
	if c.Platform == PlatformSimulate && c.SimulateCash.IsNegative() {
		return fmt.Errorf("simulate cash must not be negative, got %s", c.SimulateCash)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%s environment variable must be set", EnvAccessToken)
	}
	if c.Platform == PlatformTradier && c.AccountID == "" {
		return fmt.Errorf("%s environment variable must be set for the tradier platform", EnvAccountID)
	}

	return nil
}

// toConfig fills defaults and parses c. Secrets are read from the environment.
func (c ConfigTmp) toConfig() (Config, error) {
	c = c.withDefaults()

	pollInterval, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'poll_interval' param %q: %w", c.PollInterval, err)
	}

	var lookback time.Duration
	if c.HistoryLookback != "" {
		lookback, err = time.ParseDuration(c.HistoryLookback)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'history_lookback' param %q: %w", c.HistoryLookback, err)
		}
	}

	risk, err := decimal.NewFromString(c.RiskPerTrade)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'risk_per_trade' param %q (must be a decimal): %w", c.RiskPerTrade, err)
	}

	cash, err := decimal.NewFromString(c.SimulateCash)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'simulate_cash' param %q (must be a decimal): %w", c.SimulateCash, err)
	}

	params := indicators.DefaultParams()
	overrideInt(&params.RSIPeriod, c.RSIPeriod)
	overrideInt(&params.EMAFast, c.EMAFast)
	overrideInt(&params.EMAMid, c.EMAMid)
	overrideInt(&params.EMASlow, c.EMASlow)
	overrideInt(&params.MACDFast, c.MACDFast)
	overrideInt(&params.MACDSlow, c.MACDSlow)
	overrideInt(&params.MACDSignal, c.MACDSignal)
	overrideInt(&params.VolumeLookback, c.VolumeLookback)
	overrideInt(&params.MinBars, c.MinBars)
	if c.VolumeMultiplier != "" {
		params.VolumeMultiplier, err = strconv.ParseFloat(c.VolumeMultiplier, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'volume_multiplier' param %q: %w", c.VolumeMultiplier, err)
		}
	}

	return Config{
		Platform:              c.Platform,
		Symbol:                c.Symbol,
		Interval:              c.Interval,
		SessionFilter:         c.SessionFilter,
		PollInterval:          pollInterval,
		WindowCapacity:        c.WindowCapacity,
		ConfirmationThreshold: c.ConfirmationThreshold,
		Indicators:            params,
		RiskPerTrade:          risk,
		ContractMultiplier:    c.ContractMultiplier,
		APIURL:                c.APIURL,
		HistoryLookback:       lookback,
		StateDir:              c.StateDir,
		SimulateCash:          cash,
		AccessToken:           os.Getenv(EnvAccessToken),
		AccountID:             os.Getenv(EnvAccountID),
	}, nil
}

func (c ConfigTmp) withDefaults() ConfigTmp {
	d := DefaultConfigTmp()
	if c.Platform == "" {
		c.Platform = d.Platform
	}
	if c.Interval == "" {
		c.Interval = d.Interval
	}
	if c.SessionFilter == "" {
		c.SessionFilter = d.SessionFilter
	}
	if c.PollInterval == "" {
		c.PollInterval = d.PollInterval
	}
	if c.WindowCapacity == 0 {
		c.WindowCapacity = d.WindowCapacity
	}
	if c.MinBars == 0 {
		c.MinBars = d.MinBars
	}
	if c.ConfirmationThreshold == 0 {
		c.ConfirmationThreshold = d.ConfirmationThreshold
	}
	if c.RiskPerTrade == "" {
		c.RiskPerTrade = d.RiskPerTrade
	}
	if c.ContractMultiplier == 0 {
		c.ContractMultiplier = d.ContractMultiplier
	}
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if c.StateDir == "" {
		c.StateDir = d.StateDir
	}
	if c.SimulateCash == "" {
		c.SimulateCash = d.SimulateCash
	}
	return c
}

func overrideInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Load reads bot configs from a YAML file.
func Load(path string) ([]Config, error) {
	var configsTmp []ConfigTmp

	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(f, &configsTmp); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if len(configsTmp) == 0 {
		return nil, fmt.Errorf("no bots configured in %s", path)
	}

	configs := make([]Config, 0, len(configsTmp))
	seen := make(map[string]bool, len(configsTmp))
	for i, c := range configsTmp {
		conf, err := c.toConfig()
		if err != nil {
			return nil, fmt.Errorf("bot %d: %w", i, err)
		}
		if seen[conf.Symbol] {
			return nil, fmt.Errorf("bot %d: duplicate symbol %q", i, conf.Symbol)
		}
		seen[conf.Symbol] = true
		configs = append(configs, conf)
	}

	return configs, nil
}

// WriteYaml stores bot configs in the format Get reads.
func WriteYaml(path string, configs []ConfigTmp) error {
	data, err := yaml.Marshal(configs)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}
