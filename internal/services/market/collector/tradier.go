package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/domain"
)

const timesalesTimeLayout = "2006-01-02T15:04:05"

type timesalesClient interface {
	Timesales(ctx context.Context, req clients.TimesalesRequest) ([]clients.TimesalesBar, error)
}

// TradierBarProvider implements BarProvider with Tradier time and sales data.
type TradierBarProvider struct {
	client        timesalesClient
	sessionFilter string
	lookback      time.Duration
	now           func() time.Time
}

// NewTradierBarProvider creates a provider. A zero lookback requests the current session only.
func NewTradierBarProvider(client timesalesClient, sessionFilter string, lookback time.Duration) *TradierBarProvider {
	return &TradierBarProvider{
		client:        client,
		sessionFilter: sessionFilter,
		lookback:      lookback,
		now:           time.Now,
	}
}

// GetBars fetches bars from Tradier and keeps the most recent limit of them.
func (p *TradierBarProvider) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	req := clients.TimesalesRequest{
		Symbol:        symbol,
		Interval:      interval,
		SessionFilter: p.sessionFilter,
	}
	if p.lookback > 0 {
		req.Start = p.now().In(domain.MarketLocation()).Add(-p.lookback)
	}

	rows, err := p.client.Timesales(ctx, req)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := barTime(row)
		if err != nil {
			return nil, errors.Wrapf(err, "bar %d", i)
		}
		bars = append(bars, domain.Bar{
			Time:   ts,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	return bars, nil
}

// barTime prefers the unix timestamp; the wall time is exchange-local.
func barTime(row clients.TimesalesBar) (time.Time, error) {
	if row.Timestamp > 0 {
		return time.Unix(row.Timestamp, 0).UTC(), nil
	}

	t, err := time.ParseInLocation(timesalesTimeLayout, row.Time, domain.MarketLocation())
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse bar time %q", row.Time)
	}
	return t.UTC(), nil
}
