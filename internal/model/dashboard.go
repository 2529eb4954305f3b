package model

import "github.com/shopspring/decimal"

type OwnedAsset struct {
	AssetID      int64
	Symbol       string
	Name         string
	Amount       decimal.Decimal
	CurrentPrice decimal.Decimal
	Value        decimal.Decimal
	Change       decimal.Decimal
}

type TrendingAsset struct {
	AssetID int64
	Symbol  string
	Name    string
	Price   decimal.Decimal
	Change  decimal.Decimal
}

// ChartPoint belongs to a synthetic series derived from the current total,
// not to recorded history.
type ChartPoint struct {
	Date  string
	Value decimal.Decimal
}

type Dashboard struct {
	Username     string
	Balance      decimal.Decimal
	BalanceKnown bool
	Owned        []OwnedAsset
	TotalValue   decimal.Decimal
	Trending     []TrendingAsset
	Chart        []ChartPoint
}

// Report is an exported dashboard: either the file itself or a link to it.
type Report struct {
	File     []byte
	FileName string
	Link     string
}
