package model

import "github.com/shopspring/decimal"

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

func (d Direction) Valid() bool {
	return d == Buy || d == Sell
}

type TransactionResult struct {
	AssetID         int64           `json:"asset_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	Type            Direction       `json:"type"`
	Price           decimal.Decimal `json:"price"`

	// Date is kept as sent; the backend omits the zone offset.
	Date string `json:"date"`

	// Balance is only present when the backend reports the wallet after the trade.
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

// TradeTarget is what the buy/sell dialog needs to check affordability.
type TradeTarget struct {
	Asset   Asset
	Owned   decimal.Decimal
	Balance decimal.Decimal
}
