package domain

import "github.com/shopspring/decimal"

// RiskBudget fixed quote amount spent per confirmed trade.
type RiskBudget struct {
	amount decimal.Decimal
}

// NewRiskBudget returns a risk budget.
func NewRiskBudget(amount decimal.Decimal) RiskBudget {
	return RiskBudget{amount: amount}
}

// Amount returns the budget per trade.
func (r RiskBudget) Amount() decimal.Decimal {
	return r.amount
}

// Contracts returns floor(amount / unitPrice), or 0 when either side is not positive.
func (r RiskBudget) Contracts(unitPrice decimal.Decimal) int64 {
	if !r.amount.IsPositive() || !unitPrice.IsPositive() {
		return 0
	}

	return r.amount.Div(unitPrice).Floor().IntPart()
}
