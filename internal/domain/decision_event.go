package domain

import "time"

// CycleOutcome how an evaluation cycle ended.
type CycleOutcome string

const (
	CycleEvaluated   CycleOutcome = "evaluated"
	CycleNotReady    CycleOutcome = "not_ready"
	CycleFetchFailed CycleOutcome = "fetch_failed"
	CycleFailed      CycleOutcome = "failed"
)

// DecisionEvent journal record of one evaluated cycle.
type DecisionEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	CycleID       string            `json:"cycle_id"`
	Symbol        string            `json:"symbol"`
	BarTime       time.Time         `json:"bar_time"`
	Price         float64           `json:"price"`
	Snapshot      IndicatorSnapshot `json:"snapshot"`
	Signal        Signal            `json:"signal"`
	State         string            `json:"state"`
	PendingSignal Signal            `json:"pending_signal"`
	Count         int               `json:"count"`
	Threshold     int               `json:"threshold"`
	Confirmed     bool              `json:"confirmed"`
	Execution     ExecutionStatus   `json:"execution,omitempty"`
	OptionSymbol  string            `json:"option_symbol,omitempty"`
	Quantity      int64             `json:"quantity,omitempty"`
	OrderID       string            `json:"order_id,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// DecisionEventRecord bundles a decision event with its journal index.
type DecisionEventRecord struct {
	Index uint64
	Event DecisionEvent
}

// BotStatus read-only view of a bot for status endpoints.
type BotStatus struct {
	Symbol        string       `json:"symbol"`
	Platform      string       `json:"platform"`
	LastCycle     time.Time    `json:"last_cycle"`
	LastOutcome   CycleOutcome `json:"last_outcome,omitempty"`
	LastSignal    Signal       `json:"last_signal"`
	State         string       `json:"state"`
	PendingSignal Signal       `json:"pending_signal"`
	Count         int          `json:"count"`
	Threshold     int          `json:"threshold"`
	Status        string       `json:"status"`
	LastError     string       `json:"last_error,omitempty"`
}
