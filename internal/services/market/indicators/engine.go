package indicators

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/optibot/internal/domain"
)

// minBarsForIndicators is the smallest window that yields a stable snapshot.
const minBarsForIndicators = 50

// Engine turns a bar series into an indicator snapshot.
type Engine interface {
	Compute(series *domain.Series) (domain.IndicatorSnapshot, error)
}

// Params indicator periods and thresholds.
type Params struct {
	RSIPeriod        int
	EMAFast          int
	EMAMid           int
	EMASlow          int
	MACDFast         int
	MACDSlow         int
	MACDSignal       int
	VolumeLookback   int
	VolumeMultiplier float64
	// MinBars raises the readiness threshold above what the periods require.
	MinBars int
}

// DefaultParams returns RSI14, EMA 9/21/50, MACD 12/26/9 and a 10-bar volume lookback at 1.0x.
func DefaultParams() Params {
	return Params{
		RSIPeriod:        14,
		EMAFast:          9,
		EMAMid:           21,
		EMASlow:          50,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolumeLookback:   10,
		VolumeMultiplier: 1.0,
		MinBars:          minBarsForIndicators,
	}
}

// Validate checks periods are usable.
func (p Params) Validate() error {
	if p.RSIPeriod < 1 {
		return errors.Errorf("rsi period must be positive, got %d", p.RSIPeriod)
	}
	if p.EMAFast < 1 || p.EMAMid < 1 || p.EMASlow < 1 {
		return errors.Errorf("ema periods must be positive, got %d/%d/%d", p.EMAFast, p.EMAMid, p.EMASlow)
	}
	if p.MACDFast < 1 || p.MACDSlow <= p.MACDFast || p.MACDSignal < 1 {
		return errors.Errorf("macd periods must satisfy 0 < fast < slow and signal > 0, got %d/%d/%d",
			p.MACDFast, p.MACDSlow, p.MACDSignal)
	}
	if p.VolumeLookback < 1 {
		return errors.Errorf("volume lookback must be positive, got %d", p.VolumeLookback)
	}
	if p.VolumeMultiplier <= 0 {
		return errors.Errorf("volume multiplier must be positive, got %v", p.VolumeMultiplier)
	}

	return nil
}

// RequiredBars returns the number of bars needed before a snapshot is produced.
func (p Params) RequiredBars() int {
	return max(
		p.EMAFast,
		p.EMAMid,
		p.EMASlow,
		p.RSIPeriod+1,
		p.MACDSlow+p.MACDSignal-1,
		p.VolumeLookback+1,
		p.MinBars,
	)
}

// LibraryEngine computes snapshots with cinar/indicator.
type LibraryEngine struct {
	params Params
}

// NewEngine creates an indicator engine.
func NewEngine(params Params) (*LibraryEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid indicator params")
	}

	return &LibraryEngine{params: params}, nil
}

// Params returns the engine parameters.
func (e *LibraryEngine) Params() Params {
	return e.params
}

// Compute calculates the latest indicator values over the whole series.
// It returns ErrNotReady when the series is shorter than RequiredBars.
func (e *LibraryEngine) Compute(series *domain.Series) (domain.IndicatorSnapshot, error) {
	if series == nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(ErrNotReady, "no series")
	}
	if need := e.params.RequiredBars(); series.Len() < need {
		return domain.IndicatorSnapshot{}, errors.Wrapf(ErrNotReady, "need %d bars, got %d", need, series.Len())
	}

	bars := series.Bars()
	closes := series.Closes()

	rsi, err := RSI(closes, e.params.RSIPeriod)
	if err != nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(err, "rsi")
	}

	emas := make([]float64, 3)
	for i, period := range []int{e.params.EMAFast, e.params.EMAMid, e.params.EMASlow} {
		values, err := EMA(closes, period)
		if err != nil {
			return domain.IndicatorSnapshot{}, errors.Wrapf(err, "ema%d", period)
		}
		emas[i] = last(values)
	}

	line, signal, err := MACD(closes, e.params.MACDFast, e.params.MACDSlow, e.params.MACDSignal)
	if err != nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(err, "macd")
	}

	vwap, err := VWAP(bars)
	if err != nil {
		return domain.IndicatorSnapshot{}, errors.Wrap(err, "vwap")
	}

	latest := bars[len(bars)-1]

	return domain.IndicatorSnapshot{
		Time:    latest.Time,
		Bars:    len(bars),
		RSI:     last(rsi),
		EMAFast: emas[0],
		EMAMid:  emas[1],
		EMASlow: emas[2],
		VWAP:    vwap,
		MACD: domain.MACD{
			Line:   last(line),
			Signal: last(signal),
		},
		VolumeSpike: VolumeSpike(series.Volumes(), e.params.VolumeLookback, e.params.VolumeMultiplier),
	}, nil
}
