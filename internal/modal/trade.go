package modal

import (
	"context"
	"fmt"
	"time"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/shopspring/decimal"
)

const (
	TradeCloseDelay = 1500 * time.Millisecond
	// QuantityPlaces is the precision asset quantities are entered with.
	QuantityPlaces = 8
)

var QuickFillPercents = []int{25, 50, 75, 100}

const (
	msgInvalidQuantity     = "Please enter a valid quantity"
	msgInsufficientBalance = "Insufficient balance"
	msgInsufficientAssets  = "Insufficient assets to sell"
	msgTradeComplete       = "Transaction successful! 🎉"
)

type TradeFunc func(ctx context.Context, direction model.Direction, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error)

type TradeAsset struct {
	ID     int64
	Symbol string
	Price  decimal.Decimal
}

type TradeParams struct {
	Mode    model.Direction
	Asset   TradeAsset
	Balance decimal.Decimal
	Owned   decimal.Decimal
}

type TradeOptions struct {
	OnTransaction func(ctx context.Context, result model.TransactionResult)
	OnClose       func()
	CloseDelay    time.Duration
	AfterFunc     AfterFunc
}

type Trade struct {
	machine
	params        TradeParams
	submit        TradeFunc
	onTransaction func(ctx context.Context, result model.TransactionResult)
}

func NewTrade(params TradeParams, submit TradeFunc, opts TradeOptions) (*Trade, error) {
	if !params.Mode.Valid() {
		return nil, fmt.Errorf("unknown trade mode %q", params.Mode)
	}
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = TradeCloseDelay
	}
	t := &Trade{params: params, submit: submit, onTransaction: opts.OnTransaction}
	t.init(opts.CloseDelay, opts.AfterFunc, opts.OnClose)
	return t, nil
}

func (t *Trade) Params() TradeParams {
	return t.params
}

func (t *Trade) TotalCost(quantity decimal.Decimal) decimal.Decimal {
	return quantity.Mul(t.params.Asset.Price)
}

// CanAfford reports whether the wallet (buy) or holding (sell) covers quantity.
func (t *Trade) CanAfford(quantity decimal.Decimal) bool {
	if t.params.Mode == model.Buy {
		return t.TotalCost(quantity).LessThanOrEqual(t.params.Balance)
	}
	return quantity.LessThanOrEqual(t.params.Owned)
}

// MaxQuantity is the largest affordable quantity, truncated to QuantityPlaces.
func (t *Trade) MaxQuantity() decimal.Decimal {
	return t.fraction(decimal.NewFromInt(1))
}

func (t *Trade) fraction(part decimal.Decimal) decimal.Decimal {
	if t.params.Mode == model.Sell {
		return t.params.Owned.Mul(part).Truncate(QuantityPlaces)
	}
	if !t.params.Asset.Price.IsPositive() {
		return decimal.Zero
	}
	return t.params.Balance.Mul(part).Div(t.params.Asset.Price).Truncate(QuantityPlaces)
}

// QuickFill sets the quantity to percent of the balance (buy) or holding (sell)
// and returns it formatted with QuantityPlaces decimals. Truncation keeps a
// 100% fill affordable.
func (t *Trade) QuickFill(percent int) (string, error) {
	if percent <= 0 || percent > 100 {
		return "", fmt.Errorf("quick fill percent %d out of range", percent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Submitting || t.state == Success {
		return "", ErrInFlight
	}

	quantity := t.fraction(decimal.NewFromInt(int64(percent)).Div(decimal.NewFromInt(100)))
	t.input = quantity.StringFixed(QuantityPlaces)
	t.message = ""
	return t.input, nil
}

// Hint explains why a parseable quantity cannot be submitted; empty when it can.
func (t *Trade) Hint(input string) string {
	quantity, ok := parsePositive(input)
	if !ok || t.CanAfford(quantity) {
		return ""
	}
	limit := t.MaxQuantity().StringFixed(QuantityPlaces)
	if t.params.Mode == model.Buy {
		return fmt.Sprintf("Insufficient balance. Max: %s %s", limit, t.params.Asset.Symbol)
	}
	return fmt.Sprintf("Insufficient assets. Max: %s %s", limit, t.params.Asset.Symbol)
}

func (t *Trade) validate(input string) (decimal.Decimal, string) {
	quantity, ok := parsePositive(input)
	if !ok {
		return decimal.Zero, msgInvalidQuantity
	}
	if !t.CanAfford(quantity) {
		if t.params.Mode == model.Buy {
			return decimal.Zero, msgInsufficientBalance
		}
		return decimal.Zero, msgInsufficientAssets
	}
	return quantity, ""
}

// Submit validates input and, when it passes, sends the trade.
// It returns a *ValidationError, the gateway error, ErrInFlight, ErrClosed or nil.
func (t *Trade) Submit(ctx context.Context, input string) (model.TransactionResult, error) {
	t.mu.Lock()
	if err := t.startLocked(input); err != nil {
		t.mu.Unlock()
		return model.TransactionResult{}, err
	}

	quantity, msg := t.validate(input)
	if msg != "" {
		err := t.rejectLocked(msg)
		t.mu.Unlock()
		return model.TransactionResult{}, err
	}

	gen := t.submittingLocked()
	t.mu.Unlock()

	result, err := t.submit(ctx, t.params.Mode, t.params.Asset.ID, quantity)
	if !t.finish(gen, err, msgTradeComplete) {
		if err != nil {
			return result, err
		}
		return result, ErrClosed
	}
	if err != nil {
		return result, err
	}

	if t.onTransaction != nil {
		t.onTransaction(ctx, result)
	}
	t.scheduleClose(gen)

	return result, nil
}
