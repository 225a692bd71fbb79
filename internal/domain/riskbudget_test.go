package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRiskBudget_Contracts(t *testing.T) {
	tests := []struct {
		name   string
		budget string
		price  string
		want   int64
	}{
		{name: "floors fractional result", budget: "100", price: "1.20", want: 83},
		{name: "exact", budget: "100", price: "25", want: 4},
		{name: "price above budget", budget: "100", price: "120", want: 0},
		{name: "zero price", budget: "100", price: "0", want: 0},
		{name: "zero budget", budget: "0", price: "1", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRiskBudget(decimal.RequireFromString(tt.budget))
			assert.Equal(t, tt.want, rb.Contracts(decimal.RequireFromString(tt.price)))
		})
	}
}
