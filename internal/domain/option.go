package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionType call or put.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// OptionContract single listed option from a chain.
type OptionContract struct {
	// Symbol is the OCC option symbol, e.g. SPY240119C00470000.
	Symbol       string          `json:"symbol"`
	Underlying   string          `json:"underlying"`
	Type         OptionType      `json:"type"`
	Strike       decimal.Decimal `json:"strike"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	Expiration   time.Time       `json:"expiration"`
	ContractSize int             `json:"contract_size"`
}

// SelectContract picks the contract bought for a confirmed direction: matching type with a
// positive ask, nearest expiration present in the chain, strike closest to spot.
// Equal strike distances resolve to the lower strike.
func SelectContract(chain []OptionContract, direction Signal, spot decimal.Decimal) (OptionContract, bool) {
	optType, ok := direction.OptionType()
	if !ok {
		return OptionContract{}, false
	}

	var nearest time.Time
	candidates := make([]OptionContract, 0, len(chain))
	for _, c := range chain {
		if c.Type != optType || !c.Ask.IsPositive() {
			continue
		}
		candidates = append(candidates, c)
		if nearest.IsZero() || c.Expiration.Before(nearest) {
			nearest = c.Expiration
		}
	}

	var (
		best     OptionContract
		bestDist decimal.Decimal
		found    bool
	)
	for _, c := range candidates {
		if !c.Expiration.Equal(nearest) {
			continue
		}
		dist := c.Strike.Sub(spot).Abs()
		if !found || dist.LessThan(bestDist) || (dist.Equal(bestDist) && c.Strike.LessThan(best.Strike)) {
			best, bestDist, found = c, dist, true
		}
	}

	return best, found
}
