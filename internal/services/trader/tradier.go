package trader

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/internal/clients"
	"github.com/vadiminshakov/optibot/internal/domain"
)

// OrderPlacer submits option orders to a brokerage account.
type OrderPlacer interface {
	PlaceOptionOrder(ctx context.Context, order clients.OptionOrder) (clients.OrderAck, error)
}

// TradierTrader buys the selected contract with a market order in a Tradier account.
type TradierTrader struct {
	l       *zap.Logger
	planner *planner
	orders  OrderPlacer
}

// NewTradierTrader creates a trader that routes orders to Tradier.
func NewTradierTrader(l *zap.Logger, chains ChainSource, orders OrderPlacer, sizing Sizing) (*TradierTrader, error) {
	if orders == nil {
		return nil, errors.New("order placer is required")
	}
	if l == nil {
		l = zap.NewNop()
	}
	p, err := newPlanner(l, chains, sizing)
	if err != nil {
		return nil, err
	}

	return &TradierTrader{l: l, planner: p, orders: orders}, nil
}

// Execute opens a long option position for a confirmed signal.
func (t *TradierTrader) Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionOutcome, error) {
	p, skip, err := t.planner.plan(ctx, req)
	if err != nil {
		return domain.ExecutionOutcome{}, err
	}
	if skip != "" {
		return domain.Skipped(skip), nil
	}

	ack, err := t.orders.PlaceOptionOrder(ctx, clients.OptionOrder{
		Symbol:       req.Underlying,
		OptionSymbol: p.contract.Symbol,
		Side:         "buy_to_open",
		Quantity:     p.quantity,
		Type:         "market",
		Duration:     "day",
		Tag:          req.CycleID,
	})
	if err != nil {
		return domain.ExecutionOutcome{}, errors.Wrapf(err, "place order for %s", p.contract.Symbol)
	}

	t.l.Info("Option order placed",
		zap.String("cycle_id", req.CycleID),
		zap.String("option_symbol", p.contract.Symbol),
		zap.Int64("quantity", p.quantity),
		zap.String("ask", p.contract.Ask.String()),
		zap.String("estimated_cost", p.cost.String()),
		zap.Int64("order_id", ack.ID))

	return p.outcome(domain.ExecutionExecuted, strconv.FormatInt(ack.ID, 10)), nil
}
