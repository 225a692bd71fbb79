package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func contract(symbol string, typ OptionType, strike, ask string, exp time.Time) OptionContract {
	return OptionContract{
		Symbol:     symbol,
		Underlying: "SPY",
		Type:       typ,
		Strike:     decimal.RequireFromString(strike),
		Ask:        decimal.RequireFromString(ask),
		Expiration: exp,
	}
}

func TestSelectContract(t *testing.T) {
	today := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	nextWeek := today.AddDate(0, 0, 7)

	chain := []OptionContract{
		contract("C470", OptionTypeCall, "470", "1.20", today),
		contract("C471", OptionTypeCall, "471", "0.80", today),
		contract("C472", OptionTypeCall, "472", "0", today),
		contract("C470W", OptionTypeCall, "470.5", "2.10", nextWeek),
		contract("P470", OptionTypePut, "470", "1.10", today),
		contract("P469", OptionTypePut, "469", "0.70", today),
	}

	tests := []struct {
		name      string
		direction Signal
		spot      string
		want      string
		found     bool
	}{
		{name: "call closest strike", direction: SignalCall, spot: "470.9", want: "C471", found: true},
		{name: "call ignores later expiration", direction: SignalCall, spot: "470.5", want: "C470", found: true},
		{name: "call skips contracts without ask", direction: SignalCall, spot: "472.2", want: "C471", found: true},
		{name: "put closest strike", direction: SignalPut, spot: "469.2", want: "P469", found: true},
		{name: "none direction", direction: SignalNone, spot: "470", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectContract(chain, tt.direction, decimal.RequireFromString(tt.spot))
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got.Symbol)
			}
		})
	}
}

func TestSelectContract_NoMatchingType(t *testing.T) {
	chain := []OptionContract{
		contract("C470", OptionTypeCall, "470", "1.20", time.Now()),
	}

	_, ok := SelectContract(chain, SignalPut, decimal.NewFromInt(470))
	assert.False(t, ok)
}
