package model

import "github.com/shopspring/decimal"

type PortfolioEntry struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	AssetID         int64           `json:"asset_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
}

type PortfolioEntryChange struct {
	AssetID         int64
	Quantity        decimal.Decimal
	AverageBuyPrice decimal.Decimal
}

// FindEntry returns the entry holding assetID, if any.
func FindEntry(entries []PortfolioEntry, assetID int64) (PortfolioEntry, bool) {
	for _, entry := range entries {
		if entry.AssetID == assetID {
			return entry, true
		}
	}
	return PortfolioEntry{}, false
}
