package momentum

import (
	"github.com/pkg/errors"

	"github.com/vadiminshakov/optibot/internal/domain"
)

// Rules RSI bands of the CALL and PUT conditions. Bounds are exclusive.
type Rules struct {
	CallRSIMin float64
	CallRSIMax float64
	PutRSIMin  float64
	PutRSIMax  float64
}

// DefaultRules CALL on RSI in (50, 70), PUT on RSI in (30, 50).
func DefaultRules() Rules {
	return Rules{
		CallRSIMin: 50,
		CallRSIMax: 70,
		PutRSIMin:  30,
		PutRSIMax:  50,
	}
}

// Validate requires well-formed, non-overlapping bands.
func (r Rules) Validate() error {
	if r.CallRSIMin >= r.CallRSIMax {
		return errors.Errorf("call rsi band (%v, %v) is empty", r.CallRSIMin, r.CallRSIMax)
	}
	if r.PutRSIMin >= r.PutRSIMax {
		return errors.Errorf("put rsi band (%v, %v) is empty", r.PutRSIMin, r.PutRSIMax)
	}
	if r.PutRSIMax > r.CallRSIMin {
		return errors.Errorf("put rsi band max %v overlaps call band min %v", r.PutRSIMax, r.CallRSIMin)
	}

	return nil
}

// Verdict evaluation result with the raw rule outcomes.
type Verdict struct {
	Signal domain.Signal
	Call   bool
	Put    bool
	// Conflict is set when both rules held; CALL wins but the rules are broken.
	Conflict bool
}

// Evaluator maps an indicator snapshot and a price to a signal.
type Evaluator struct {
	rules Rules
}

// NewEvaluator creates an evaluator.
func NewEvaluator(rules Rules) (Evaluator, error) {
	if err := rules.Validate(); err != nil {
		return Evaluator{}, errors.Wrap(err, "invalid signal rules")
	}

	return Evaluator{rules: rules}, nil
}

// Evaluate returns the signal for snapshot at price using the default rules.
func Evaluate(snapshot domain.IndicatorSnapshot, price float64) domain.Signal {
	return Evaluator{rules: DefaultRules()}.Evaluate(snapshot, price).Signal
}

// Evaluate applies the CALL and PUT rules. It has no side effects.
func (e Evaluator) Evaluate(snapshot domain.IndicatorSnapshot, price float64) Verdict {
	v := Verdict{
		Call: e.callHolds(snapshot, price),
		Put:  e.putHolds(snapshot, price),
	}

	switch {
	case v.Call:
		v.Signal = domain.SignalCall
		v.Conflict = v.Put
	case v.Put:
		v.Signal = domain.SignalPut
	default:
		v.Signal = domain.SignalNone
	}

	return v
}

func (e Evaluator) callHolds(s domain.IndicatorSnapshot, price float64) bool {
	if !(s.RSI > e.rules.CallRSIMin && s.RSI < e.rules.CallRSIMax) {
		return false
	}
	if !(price > s.VWAP) {
		return false
	}
	for _, ema := range s.EMAs() {
		if !(price > ema) {
			return false
		}
	}

	return s.MACD.Line > s.MACD.Signal && s.VolumeSpike
}

func (e Evaluator) putHolds(s domain.IndicatorSnapshot, price float64) bool {
	if !(s.RSI > e.rules.PutRSIMin && s.RSI < e.rules.PutRSIMax) {
		return false
	}
	if !(price < s.VWAP) {
		return false
	}
	for _, ema := range s.EMAs() {
		if !(price < ema) {
			return false
		}
	}

	return s.MACD.Line < s.MACD.Signal && s.VolumeSpike
}
