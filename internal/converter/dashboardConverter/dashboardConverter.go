package dashboardConverter

import (
	"sort"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/shopspring/decimal"
)

const trendingLimit = 4

var hundred = decimal.NewFromInt(100)

// chartRatios scale the current total into a placeholder history.
var chartRatios = []struct {
	date  string
	ratio decimal.Decimal
}{
	{"Nov 21", decimal.RequireFromString("0.85")},
	{"Nov 28", decimal.RequireFromString("0.90")},
	{"Dec 5", decimal.RequireFromString("0.88")},
	{"Dec 12", decimal.RequireFromString("0.95")},
	{"Dec 19", decimal.RequireFromString("1.00")},
}

// BuildDashboard joins raw backend records into the display model.
// Username and balance flags are left to the caller.
func BuildDashboard(entries []model.PortfolioEntry, assets []model.Asset, balance decimal.Decimal) model.Dashboard {
	owned := OwnedAssets(entries, assets)
	total := TotalValue(owned)

	return model.Dashboard{
		Balance:    balance,
		Owned:      owned,
		TotalValue: total,
		Trending:   TrendingAssets(entries, assets),
		Chart:      ChartSeries(total),
	}
}

// PercentChange is the gain of a position over its purchase value, in percent.
// A position with no purchase value has no change.
func PercentChange(quantity, averageBuyPrice, currentPrice decimal.Decimal) decimal.Decimal {
	purchaseValue := quantity.Mul(averageBuyPrice)
	if purchaseValue.IsZero() {
		return decimal.Zero
	}
	currentValue := quantity.Mul(currentPrice)
	return currentValue.Sub(purchaseValue).Div(purchaseValue).Mul(hundred)
}

// OwnedAssets keeps portfolio order; entries whose asset is missing from the catalog are dropped.
func OwnedAssets(entries []model.PortfolioEntry, assets []model.Asset) []model.OwnedAsset {
	byID := make(map[int64]model.Asset, len(assets))
	for _, asset := range assets {
		if _, ok := byID[asset.ID]; !ok {
			byID[asset.ID] = asset
		}
	}

	res := make([]model.OwnedAsset, 0, len(entries))
	for _, entry := range entries {
		asset, ok := byID[entry.AssetID]
		if !ok {
			continue
		}
		res = append(res, model.OwnedAsset{
			AssetID:      asset.ID,
			Symbol:       asset.Symbol,
			Name:         asset.Name,
			Amount:       entry.Quantity,
			CurrentPrice: asset.CurrentPrice,
			Value:        entry.Quantity.Mul(asset.CurrentPrice),
			Change:       PercentChange(entry.Quantity, entry.AverageBuyPrice, asset.CurrentPrice),
		})
	}
	return res
}

func TotalValue(owned []model.OwnedAsset) decimal.Decimal {
	total := decimal.Zero
	for _, asset := range owned {
		total = total.Add(asset.Value)
	}
	return total
}

// TrendingAssets ranks the catalog by price, highest first; equal prices keep catalog order.
func TrendingAssets(entries []model.PortfolioEntry, assets []model.Asset) []model.TrendingAsset {
	sorted := make([]model.Asset, len(assets))
	copy(sorted, assets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentPrice.GreaterThan(sorted[j].CurrentPrice)
	})

	if len(sorted) > trendingLimit {
		sorted = sorted[:trendingLimit]
	}

	res := make([]model.TrendingAsset, 0, len(sorted))
	for _, asset := range sorted {
		change := decimal.Zero
		if entry, ok := model.FindEntry(entries, asset.ID); ok {
			change = PercentChange(entry.Quantity, entry.AverageBuyPrice, asset.CurrentPrice)
		}
		res = append(res, model.TrendingAsset{
			AssetID: asset.ID,
			Symbol:  asset.Symbol,
			Name:    asset.Name,
			Price:   asset.CurrentPrice,
			Change:  change,
		})
	}
	return res
}

func ChartSeries(total decimal.Decimal) []model.ChartPoint {
	res := make([]model.ChartPoint, 0, len(chartRatios))
	for _, point := range chartRatios {
		res = append(res, model.ChartPoint{Date: point.date, Value: total.Mul(point.ratio)})
	}
	return res
}
