// Package trader turns confirmed signals into option orders.
package trader

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/domain"
)

const expirationLayout = "2006-01-02"

// ChainSource provides listed expirations and option chains.
type ChainSource interface {
	Expirations(ctx context.Context, symbol string) ([]string, error)
	OptionChain(ctx context.Context, symbol, expiration string) ([]clients.ChainOption, error)
}

// Sizing holds the per-trade budget and the price multiplier of one contract.
type Sizing struct {
	Budget     domain.RiskBudget
	Multiplier int64
}

// plan is the contract and quantity chosen for a trade request.
type plan struct {
	contract  domain.OptionContract
	quantity  int64
	unitPrice decimal.Decimal
	cost      decimal.Decimal
}

func (p plan) outcome(status domain.ExecutionStatus, orderID string) domain.ExecutionOutcome {
	contract := p.contract
	return domain.ExecutionOutcome{
		Status:    status,
		Contract:  &contract,
		Quantity:  p.quantity,
		UnitPrice: p.unitPrice,
		Cost:      p.cost,
		OrderID:   orderID,
	}
}

// planner selects and sizes the contract for a request.
type planner struct {
	l      *zap.Logger
	chains ChainSource
	sizing Sizing
	now    func() time.Time
}

func newPlanner(l *zap.Logger, chains ChainSource, sizing Sizing) (*planner, error) {
	if chains == nil {
		return nil, errors.New("chain source is required")
	}
	if !sizing.Budget.Amount().IsPositive() {
		return nil, errors.New("risk budget must be positive")
	}
	if sizing.Multiplier < 1 {
		return nil, errors.Errorf("contract multiplier must be >= 1, got %d", sizing.Multiplier)
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &planner{l: l, chains: chains, sizing: sizing, now: time.Now}, nil
}

// plan returns a skip reason instead of a plan when nothing can be bought.
func (p *planner) plan(ctx context.Context, req domain.TradeRequest) (plan, string, error) {
	if !req.Direction.IsDirectional() {
		return plan{}, "", errors.Errorf("cannot trade signal %s", req.Direction)
	}

	dates, err := p.chains.Expirations(ctx, req.Underlying)
	if err != nil {
		return plan{}, "", errors.Wrap(err, "load expirations")
	}

	expiration, ok := nearestExpiration(dates, p.now())
	if !ok {
		return plan{}, "no expiration on or after today", nil
	}

	rows, err := p.chains.OptionChain(ctx, req.Underlying, expiration)
	if err != nil {
		return plan{}, "", errors.Wrap(err, "load option chain")
	}

	chain := make([]domain.OptionContract, 0, len(rows))
	for _, row := range rows {
		c, err := toContract(row)
		if err != nil {
			p.l.Debug("Skipping chain row", zap.String("symbol", row.Symbol), zap.Error(err))
			continue
		}
		chain = append(chain, c)
	}

	contract, ok := domain.SelectContract(chain, req.Direction, req.Spot)
	if !ok {
		return plan{}, "no " + req.Direction.String() + " contract with a positive ask expiring " + expiration, nil
	}

	unitPrice := contract.Ask.Mul(decimal.NewFromInt(p.sizing.Multiplier))
	quantity := p.sizing.Budget.Contracts(unitPrice)
	if quantity < 1 {
		return plan{contract: contract, unitPrice: unitPrice},
			"budget " + p.sizing.Budget.Amount().String() + " below unit price " + unitPrice.String(), nil
	}

	return plan{
		contract:  contract,
		quantity:  quantity,
		unitPrice: unitPrice,
		cost:      unitPrice.Mul(decimal.NewFromInt(quantity)),
	}, "", nil
}

// nearestExpiration picks the earliest listed date that is not before today in market time.
func nearestExpiration(dates []string, now time.Time) (string, bool) {
	today := now.In(domain.MarketLocation()).Format(expirationLayout)

	candidates := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, err := time.Parse(expirationLayout, d); err != nil {
			continue
		}
		// ISO dates order lexicographically
		if d >= today {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Strings(candidates)
	return candidates[0], true
}

func toContract(row clients.ChainOption) (domain.OptionContract, error) {
	var optType domain.OptionType
	switch row.OptionType {
	case "call":
		optType = domain.OptionTypeCall
	case "put":
		optType = domain.OptionTypePut
	default:
		return domain.OptionContract{}, errors.Errorf("unknown option type %q", row.OptionType)
	}

	expiration, err := time.ParseInLocation(expirationLayout, row.ExpirationDate, domain.MarketLocation())
	if err != nil {
		return domain.OptionContract{}, errors.Wrapf(err, "parse expiration %q", row.ExpirationDate)
	}

	return domain.OptionContract{
		Symbol:       row.Symbol,
		Underlying:   row.Underlying,
		Type:         optType,
		Strike:       decimal.NewFromFloat(row.Strike),
		Bid:          decimal.NewFromFloat(row.Bid),
		Ask:          decimal.NewFromFloat(row.Ask),
		Expiration:   expiration,
		ContractSize: row.ContractSize,
	}, nil
}
