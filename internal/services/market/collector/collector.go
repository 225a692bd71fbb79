// Package collector keeps the rolling bar window of an underlying up to date.
package collector

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/domain"
)

const fetchTimeout = 30 * time.Second

// BarProvider defines the interface for fetching recent OHLCV bars.
type BarProvider interface {
	// GetBars returns up to limit most recent bars of symbol, oldest first.
	// interval is the feed interval, e.g. "1min".
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)
}

// BarCollector refreshes a fixed-capacity bar series from a provider.
type BarCollector struct {
	l        *zap.Logger
	provider BarProvider
	symbol   string
	interval string
	series   *domain.Series
	now      func() time.Time
}

// NewBarCollector creates a collector holding at most capacity bars.
func NewBarCollector(l *zap.Logger, provider BarProvider, symbol, interval string, capacity int) (*BarCollector, error) {
	if provider == nil {
		return nil, errors.New("bar provider is required")
	}
	series, err := domain.NewSeries(capacity)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &BarCollector{
		l:        l,
		provider: provider,
		symbol:   symbol,
		interval: interval,
		series:   series,
		now:      time.Now,
	}, nil
}

// Refresh fetches the latest bars and merges them into the series.
// Bars from a previous market date are dropped once a new session starts: when the
// fetched bars all belong to a later date than the newest held bar, or when the feed
// returns nothing and the held bars are older than today. On error the series is left as it was.
func (c *BarCollector) Refresh(ctx context.Context) (*domain.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	bars, err := c.provider.GetBars(ctx, c.symbol, c.interval, c.series.Cap())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s bars for %s", c.interval, c.symbol)
	}

	slices.SortStableFunc(bars, func(a, b domain.Bar) int {
		return a.Time.Compare(b.Time)
	})

	valid := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			c.l.Warn("Dropping invalid bar", zap.Time("time", b.Time), zap.Error(err))
			continue
		}
		valid = append(valid, b)
	}

	latest, hasLatest := c.series.Latest()
	if hasLatest {
		session := domain.MarketDate(c.now())
		if len(valid) > 0 {
			session = domain.MarketDate(valid[0].Time)
		}
		if session > domain.MarketDate(latest.Time) {
			c.l.Info("New trading session, resetting bar window",
				zap.String("previous_session", domain.MarketDate(latest.Time)),
				zap.String("session", session),
				zap.Int("dropped", c.series.Len()))
			c.series.Reset()
			hasLatest = false
		}
	}

	fresh := make([]domain.Bar, 0, len(valid))
	for _, b := range valid {
		if hasLatest && b.Time.Before(latest.Time) {
			continue
		}
		fresh = append(fresh, b)
	}

	if err := c.series.Append(fresh...); err != nil {
		return nil, errors.Wrap(err, "merge bars")
	}

	c.l.Debug("Bars refreshed",
		zap.Int("fetched", len(bars)),
		zap.Int("merged", len(fresh)),
		zap.Int("series_len", c.series.Len()))

	return c.series, nil
}

// Series returns the collected series.
func (c *BarCollector) Series() *domain.Series {
	return c.series
}
