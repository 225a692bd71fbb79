package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeRequest hand-off from the confirmation stage to a trade executor.
type TradeRequest struct {
	CycleID    string          `json:"cycle_id"`
	Underlying string          `json:"underlying"`
	Direction  Signal          `json:"direction"`
	// Spot is the underlying price the confirmed signal was evaluated at.
	Spot decimal.Decimal `json:"spot"`
	Time time.Time       `json:"time"`
}

// ExecutionStatus result kind of an execution attempt.
type ExecutionStatus string

const (
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionSkipped  ExecutionStatus = "skipped"
	ExecutionFailed   ExecutionStatus = "failed"
)

// ExecutionOutcome what the executor did with a trade request.
type ExecutionOutcome struct {
	Status   ExecutionStatus `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Contract *OptionContract `json:"contract,omitempty"`
	Quantity int64           `json:"quantity"`
	// UnitPrice is the price of one order unit (ask times contract multiplier).
	UnitPrice decimal.Decimal `json:"unit_price"`
	Cost      decimal.Decimal `json:"cost"`
	OrderID   string          `json:"order_id,omitempty"`
}

// Skipped builds a skipped outcome.
func Skipped(reason string) ExecutionOutcome {
	return ExecutionOutcome{Status: ExecutionSkipped, Reason: reason}
}

// TradeEvent trading event.
type TradeEvent struct {
	Request TradeRequest
	Outcome ExecutionOutcome
}

// String returns a human-readable string representation.
func (t *TradeEvent) String() string {
	contract := "-"
	if t.Outcome.Contract != nil {
		contract = t.Outcome.Contract.Symbol
	}
	return fmt.Sprintf("%s %s %s contract: %s quantity: %d cost: %s",
		t.Request.Underlying, t.Request.Direction, t.Outcome.Status, contract, t.Outcome.Quantity, t.Outcome.Cost.String())
}
