package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// ErrOutOfOrder is returned when a bar older than the latest series bar is appended.
var ErrOutOfOrder = errors.New("bar is older than the latest bar in series")

// Bar OHLCV candle for one interval.
type Bar struct {
	// Time is the interval open time.
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks candle consistency.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New("bar time is required")
	}
	for _, p := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if !(p > 0) || math.IsInf(p, 0) {
			return errors.Errorf("bar price %v must be positive and finite", p)
		}
	}
	if b.High < math.Max(b.Open, b.Close) {
		return errors.Errorf("bar high %v is below open/close", b.High)
	}
	if b.Low > math.Min(b.Open, b.Close) {
		return errors.Errorf("bar low %v is above open/close", b.Low)
	}
	if !(b.Volume >= 0) || math.IsInf(b.Volume, 0) {
		return errors.Errorf("bar volume %v is negative or not finite", b.Volume)
	}

	return nil
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Series is a fixed-capacity chronological window of bars.
// The oldest bar is evicted when an append exceeds capacity.
type Series struct {
	bars     []Bar
	capacity int
}

// NewSeries creates an empty series.
func NewSeries(capacity int) (*Series, error) {
	if capacity < 1 {
		return nil, errors.Errorf("series capacity must be positive, got %d", capacity)
	}

	return &Series{bars: make([]Bar, 0, capacity), capacity: capacity}, nil
}

// Append adds bars in order. A bar with the same time as the latest bar replaces it,
// which lets the feed update a still-forming candle. Bars older than the latest one
// are rejected with ErrOutOfOrder and the series is left unchanged.
func (s *Series) Append(bars ...Bar) error {
	last := time.Time{}
	if n := len(s.bars); n > 0 {
		last = s.bars[n-1].Time
	}
	for _, b := range bars {
		if !last.IsZero() && b.Time.Before(last) {
			return errors.Wrapf(ErrOutOfOrder, "bar %s, latest %s", b.Time.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		last = b.Time
	}

	for _, b := range bars {
		if n := len(s.bars); n > 0 && s.bars[n-1].Time.Equal(b.Time) {
			s.bars[n-1] = b
			continue
		}
		s.bars = append(s.bars, b)
	}

	if overflow := len(s.bars) - s.capacity; overflow > 0 {
		s.bars = append(s.bars[:0:0], s.bars[overflow:]...)
	}

	return nil
}

// Reset drops all bars.
func (s *Series) Reset() {
	s.bars = s.bars[:0]
}

// Len returns the number of bars held.
func (s *Series) Len() int {
	return len(s.bars)
}

// Cap returns the series capacity.
func (s *Series) Cap() int {
	return s.capacity
}

// Bars returns a copy of the bars, oldest first.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Latest returns the newest bar.
func (s *Series) Latest() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Closes returns close prices, oldest first.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns volumes, oldest first.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Volume
	}
	return out
}
