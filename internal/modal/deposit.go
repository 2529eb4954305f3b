package modal

import (
	"context"
	"time"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/shopspring/decimal"
)

const DepositCloseDelay = 2 * time.Second

var (
	MinDeposit = decimal.NewFromInt(10)
	MaxDeposit = decimal.NewFromInt(100000)

	QuickDepositAmounts = []int64{100, 500, 1000, 5000}
)

const (
	msgInvalidAmount   = "Please enter a valid amount"
	msgMinDeposit      = "Minimum deposit amount is $10"
	msgMaxDeposit      = "Maximum deposit amount is $100,000"
	msgDepositComplete = "Deposit successful! 🎉"
)

type DepositFunc func(ctx context.Context, amount decimal.Decimal) (model.Wallet, error)

type DepositOptions struct {
	// OnSuccess receives the backend-confirmed wallet.
	OnSuccess  func(ctx context.Context, wallet model.Wallet)
	OnClose    func()
	CloseDelay time.Duration
	AfterFunc  AfterFunc
}

type Deposit struct {
	machine
	deposit   DepositFunc
	onSuccess func(ctx context.Context, wallet model.Wallet)
}

func NewDeposit(deposit DepositFunc, opts DepositOptions) *Deposit {
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = DepositCloseDelay
	}
	d := &Deposit{deposit: deposit, onSuccess: opts.OnSuccess}
	d.init(opts.CloseDelay, opts.AfterFunc, opts.OnClose)
	return d
}

// ValidateDepositAmount applies the rules in order and reports the first failure.
func ValidateDepositAmount(input string) (decimal.Decimal, error) {
	amount, ok := parsePositive(input)
	if !ok {
		return decimal.Zero, &ValidationError{Message: msgInvalidAmount}
	}
	if amount.LessThan(MinDeposit) {
		return decimal.Zero, &ValidationError{Message: msgMinDeposit}
	}
	if amount.GreaterThan(MaxDeposit) {
		return decimal.Zero, &ValidationError{Message: msgMaxDeposit}
	}
	return amount, nil
}

// ProjectedBalance is the balance shown before confirming; ok is false for unusable input.
func ProjectedBalance(current decimal.Decimal, input string) (projected decimal.Decimal, ok bool) {
	amount, ok := parsePositive(input)
	if !ok {
		return current, false
	}
	return current.Add(amount), true
}

// Submit validates input and, when it passes, sends the deposit.
// It returns a *ValidationError, the gateway error, ErrInFlight, ErrClosed or nil.
func (d *Deposit) Submit(ctx context.Context, input string) (model.Wallet, error) {
	d.mu.Lock()
	if err := d.startLocked(input); err != nil {
		d.mu.Unlock()
		return model.Wallet{}, err
	}

	amount, err := ValidateDepositAmount(input)
	if err != nil {
		err = d.rejectLocked(err.Error())
		d.mu.Unlock()
		return model.Wallet{}, err
	}

	gen := d.submittingLocked()
	d.mu.Unlock()

	wallet, err := d.deposit(ctx, amount)
	if !d.finish(gen, err, msgDepositComplete) {
		if err != nil {
			return wallet, err
		}
		return wallet, ErrClosed
	}
	if err != nil {
		return wallet, err
	}

	if d.onSuccess != nil {
		d.onSuccess(ctx, wallet)
	}
	d.scheduleClose(gen)

	return wallet, nil
}
