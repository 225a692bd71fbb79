// Package indicators computes the technical indicators used for signal evaluation
// (RSI, EMA, MACD, VWAP, volume spike) on top of cinar/indicator.
package indicators

import (
	"math"
	"sync"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/optibot/internal/domain"
)

// ErrNotReady is returned when there is not enough data to produce a value.
var ErrNotReady = errors.New("not enough data for indicators")

// neutralRSI is reported when a window has neither gains nor losses.
const neutralRSI = 50.0

// EMA calculates the Exponential Moving Average series for the given period.
// The first value is the SMA of the first period closes.
func EMA(closes []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, errors.Errorf("invalid EMA period %d", period)
	}
	if len(closes) < period {
		return nil, errors.Wrapf(ErrNotReady, "EMA%d: need %d, got %d", period, period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	values := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
	if len(values) == 0 {
		return nil, errors.Wrapf(ErrNotReady, "EMA%d produced no values", period)
	}

	return values, nil
}

// RSI calculates the Relative Strength Index series for the given period.
func RSI(closes []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, errors.Errorf("invalid RSI period %d", period)
	}
	if len(closes) < period+1 {
		return nil, errors.Wrapf(ErrNotReady, "RSI%d: need %d, got %d", period, period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	values := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
	if len(values) == 0 {
		return nil, errors.Wrapf(ErrNotReady, "RSI%d produced no values", period)
	}
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = neutralRSI
		}
	}

	return values, nil
}

// MACD calculates the MACD line and its signal line, aligned to the same length.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine []float64, err error) {
	if fast < 1 || slow <= fast || signal < 1 {
		return nil, nil, errors.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if need := slow + signal - 1; len(closes) < need {
		return nil, nil, errors.Wrapf(ErrNotReady, "MACD: need %d, got %d", need, len(closes))
	}

	macd := trend.NewMacdWithPeriod[float64](fast, slow, signal)
	macdChan, signalChan := macd.Compute(helper.SliceToChan(closes))

	// both outputs are fed by the same goroutine, drain them concurrently
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		signalLine = helper.ChanToSlice(signalChan)
	}()
	line = helper.ChanToSlice(macdChan)
	wg.Wait()

	if len(line) == 0 || len(signalLine) == 0 {
		return nil, nil, errors.Wrap(ErrNotReady, "MACD produced no values")
	}

	return line, signalLine, nil
}

// VWAP calculates the cumulative volume-weighted average price over all bars
// using the typical price (high + low + close) / 3.
func VWAP(bars []domain.Bar) (float64, error) {
	var pv, volume float64
	for _, b := range bars {
		pv += b.TypicalPrice() * b.Volume
		volume += b.Volume
	}
	if volume <= 0 {
		return 0, errors.Wrap(ErrNotReady, "VWAP: zero cumulative volume")
	}

	return pv / volume, nil
}

// VolumeSpike reports whether the latest volume exceeds the mean of the preceding
// lookback volumes multiplied by multiplier. It is false when there is not enough history.
func VolumeSpike(volumes []float64, lookback int, multiplier float64) bool {
	if lookback < 1 || len(volumes) < lookback+1 {
		return false
	}

	latest := volumes[len(volumes)-1]
	window := volumes[len(volumes)-1-lookback : len(volumes)-1]

	sma := trend.NewSmaWithPeriod[float64](lookback)
	means := helper.ChanToSlice(sma.Compute(helper.SliceToChan(window)))
	if len(means) == 0 {
		return false
	}

	return latest > means[len(means)-1]*multiplier
}

func last(values []float64) float64 {
	return values[len(values)-1]
}
