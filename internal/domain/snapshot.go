package domain

import "time"

// MACD latest MACD line and signal line values.
type MACD struct {
	Line   float64 `json:"line"`
	Signal float64 `json:"signal"`
}

// IndicatorSnapshot latest indicator values computed over a bar series.
// Snapshots are recomputed in full every cycle and never mutated.
type IndicatorSnapshot struct {
	// Time of the latest bar the snapshot was computed at.
	Time time.Time `json:"time"`
	// Bars number of bars used.
	Bars        int     `json:"bars"`
	RSI         float64 `json:"rsi"`
	EMAFast     float64 `json:"ema_fast"`
	EMAMid      float64 `json:"ema_mid"`
	EMASlow     float64 `json:"ema_slow"`
	VWAP        float64 `json:"vwap"`
	MACD        MACD    `json:"macd"`
	VolumeSpike bool    `json:"volume_spike"`
}

// EMAs returns the fast, mid and slow EMA values.
func (s IndicatorSnapshot) EMAs() [3]float64 {
	return [3]float64{s.EMAFast, s.EMAMid, s.EMASlow}
}
