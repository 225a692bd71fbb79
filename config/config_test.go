package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGet_YamlDefaults(t *testing.T) {
	t.Setenv(EnvAccessToken, "token")
	t.Setenv(EnvAccountID, "VA000001")

	path := writeConfig(t, `
- platform: tradier
  symbol: SPY
  poll_interval: 30s
  risk_per_trade: "250.50"
- symbol: QQQ
  confirmation_threshold: 3
  volume_multiplier: "1.5"
  history_lookback: 24h
`)

	app, configs, err := Get([]string{"--config", path, "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", app.LogLevel)
	require.Len(t, configs, 2)

	spy := configs[0]
	assert.Equal(t, PlatformTradier, spy.Platform)
	assert.Equal(t, 30*time.Second, spy.PollInterval)
	assert.True(t, spy.RiskPerTrade.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, "1min", spy.Interval)
	assert.Equal(t, "open", spy.SessionFilter)
	assert.Equal(t, 100, spy.WindowCapacity)
	assert.Equal(t, 100, spy.Indicators.MinBars)
	assert.Equal(t, 14, spy.Indicators.RSIPeriod)
	assert.Equal(t, 2, spy.ConfirmationThreshold)
	assert.Equal(t, int64(1), spy.ContractMultiplier)
	assert.Equal(t, TradierSandboxURL, spy.APIURL)
	assert.Equal(t, "token", spy.AccessToken)
	assert.Equal(t, "VA000001", spy.AccountID)
	assert.NoError(t, spy.Validate())

	qqq := configs[1]
	assert.Equal(t, PlatformSimulate, qqq.Platform)
	assert.Equal(t, 3, qqq.ConfirmationThreshold)
	assert.Equal(t, 1.5, qqq.Indicators.VolumeMultiplier)
	assert.Equal(t, 24*time.Hour, qqq.HistoryLookback)
	assert.True(t, qqq.SimulateCash.Equal(decimal.NewFromInt(10000)))
	assert.NoError(t, qqq.Validate())
}

func TestGet_YamlErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ``},
		{name: "bad duration", body: "- symbol: SPY\n  poll_interval: soon\n"},
		{name: "bad risk", body: "- symbol: SPY\n  risk_per_trade: lots\n"},
		{name: "duplicate symbol", body: "- symbol: SPY\n- symbol: SPY\n"},
		{name: "not a list", body: "symbol: SPY\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Get([]string{"--config", writeConfig(t, tt.body)})
			assert.Error(t, err)
		})
	}
}

func TestGet_CLI(t *testing.T) {
	t.Setenv(EnvAccessToken, "token")

	app, configs, err := Get([]string{"--symbol", "IWM", "--threshold", "1", "--risk", "50", "--metrics-addr", ":9100"})
	require.NoError(t, err)
	assert.Equal(t, ":9100", app.MetricsAddr)
	assert.Equal(t, ":8080", app.WebAddr)
	require.Len(t, configs, 1)
	assert.Equal(t, "IWM", configs[0].Symbol)
	assert.Equal(t, 1, configs[0].ConfirmationThreshold)
	assert.True(t, configs[0].RiskPerTrade.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, time.Minute, configs[0].PollInterval)
	assert.NoError(t, configs[0].Validate())
}

func TestGet_WebDomains(t *testing.T) {
	t.Setenv(EnvAccessToken, "token")

	app, _, err := Get([]string{"--web-addr", ":443", "--web-domain", "bot.example.com, www.bot.example.com,"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bot.example.com", "www.bot.example.com"}, app.WebDomains())
	assert.Equal(t, "cert-cache", app.CertCache)

	app, _, err = Get(nil)
	require.NoError(t, err)
	assert.Empty(t, app.WebDomains())
}

func TestGet_Setup(t *testing.T) {
	app, configs, err := Get([]string{"--setup"})
	require.NoError(t, err)
	assert.True(t, app.Setup)
	assert.Nil(t, configs)
}

func TestGet_UnknownFlag(t *testing.T) {
	_, _, err := Get([]string{"--pair", "BTC_USDT"})
	assert.Error(t, err)
}

func validConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv(EnvAccessToken, "token")
	t.Setenv(EnvAccountID, "")

	conf, err := DefaultConfigTmp().toConfig()
	require.NoError(t, err)
	require.NoError(t, conf.Validate())
	return conf
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "platform", mutate: func(c *Config) { c.Platform = "binance" }},
		{name: "symbol", mutate: func(c *Config) { c.Symbol = "" }},
		{name: "interval", mutate: func(c *Config) { c.Interval = "1h" }},
		{name: "tick interval", mutate: func(c *Config) { c.Interval = "tick" }},
		{name: "session", mutate: func(c *Config) { c.SessionFilter = "pre" }},
		{name: "poll interval", mutate: func(c *Config) { c.PollInterval = 0 }},
		{name: "threshold", mutate: func(c *Config) { c.ConfirmationThreshold = 0 }},
		{name: "capacity below required bars", mutate: func(c *Config) { c.WindowCapacity = 60 }},
		{name: "indicator params", mutate: func(c *Config) { c.Indicators.MACDSlow = c.Indicators.MACDFast }},
		{name: "risk", mutate: func(c *Config) { c.RiskPerTrade = decimal.Zero }},
		{name: "multiplier", mutate: func(c *Config) { c.ContractMultiplier = 0 }},
		{name: "lookback", mutate: func(c *Config) { c.HistoryLookback = -time.Hour }},
		{name: "token", mutate: func(c *Config) { c.AccessToken = "" }},
		{name: "tradier account", mutate: func(c *Config) { c.Platform = PlatformTradier }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := validConfig(t)
			tt.mutate(&conf)
			assert.Error(t, conf.Validate())
		})
	}
}

func TestWriteYaml_RoundTrip(t *testing.T) {
	t.Setenv(EnvAccessToken, "token")

	path := filepath.Join(t.TempDir(), "config.gen.yaml")
	tmp := DefaultConfigTmp()
	tmp.Symbol = "QQQ"
	require.NoError(t, WriteYaml(path, []ConfigTmp{tmp}))

	_, configs, err := Get([]string{"--config", path})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "QQQ", configs[0].Symbol)
	assert.NoError(t, configs[0].Validate())
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadDotEnv())
}
