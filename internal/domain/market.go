package domain

import (
	"sync"
	"time"
	_ "time/tzdata"
)

var (
	marketLocOnce sync.Once
	marketLoc     *time.Location
)

// MarketLocation returns the US equity market time zone, falling back to UTC
// when zone data is unavailable.
func MarketLocation() *time.Location {
	marketLocOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		marketLoc = loc
	})

	return marketLoc
}

// MarketDate returns the trading date of t in the market time zone, formatted as 2006-01-02.
func MarketDate(t time.Time) string {
	return t.In(MarketLocation()).Format(time.DateOnly)
}
