package dashboardConverter

import (
	"testing"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name                      string
		quantity, avgPrice, price string
		want                      string
	}{
		{"gain", "2", "100", "150", "50"},
		{"loss", "4", "50", "40", "-20"},
		{"flat", "1.5", "10", "10", "0"},
		{"zero average price", "3", "0", "10", "0"},
		{"zero quantity", "0", "10", "12", "0"},
		{"fractional", "0.5", "20000", "30000", "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(d(tt.quantity), d(tt.avgPrice), d(tt.price))
			if !got.Equal(d(tt.want)) {
				t.Errorf("PercentChange(%s, %s, %s) = %s, want %s", tt.quantity, tt.avgPrice, tt.price, got, tt.want)
			}
		})
	}
}

func TestPercentChangeMatchesFormula(t *testing.T) {
	q, a, p := d("3"), d("3"), d("4")
	want := q.Mul(p).Sub(q.Mul(a)).Div(q.Mul(a)).Mul(decimal.NewFromInt(100))
	if got := PercentChange(q, a, p); !got.Equal(want) {
		t.Errorf("PercentChange() = %s, want %s", got, want)
	}
	if got := PercentChange(q, a, p).StringFixed(2); got != "33.33" {
		t.Errorf("PercentChange() rounded = %s, want 33.33", got)
	}
}

func TestOwnedAssetsDropsUnknownAssets(t *testing.T) {
	entries := []model.PortfolioEntry{
		{AssetID: 1, Quantity: d("2"), AverageBuyPrice: d("100")},
		{AssetID: 99, Quantity: d("5"), AverageBuyPrice: d("1")},
		{AssetID: 2, Quantity: d("10"), AverageBuyPrice: d("0")},
	}
	assets := []model.Asset{
		{ID: 2, Symbol: "ETH", Name: "Ethereum", CurrentPrice: d("3")},
		{ID: 1, Symbol: "BTC", Name: "Bitcoin", CurrentPrice: d("150")},
	}

	owned := OwnedAssets(entries, assets)
	if len(owned) != 2 {
		t.Fatalf("OwnedAssets() returned %d rows, want 2", len(owned))
	}

	if owned[0].Symbol != "BTC" || !owned[0].Value.Equal(d("300")) || !owned[0].Change.Equal(d("50")) {
		t.Errorf("owned[0] = %+v", owned[0])
	}
	if owned[1].Symbol != "ETH" || !owned[1].Value.Equal(d("30")) || !owned[1].Change.IsZero() {
		t.Errorf("owned[1] = %+v", owned[1])
	}
	if total := TotalValue(owned); !total.Equal(d("330")) {
		t.Errorf("TotalValue() = %s, want 330", total)
	}
}

func TestTrendingAssetsOrder(t *testing.T) {
	assets := []model.Asset{
		{ID: 1, Symbol: "A", CurrentPrice: d("10")},
		{ID: 2, Symbol: "B", CurrentPrice: d("50")},
		{ID: 3, Symbol: "C", CurrentPrice: d("5")},
		{ID: 4, Symbol: "D", CurrentPrice: d("100")},
	}

	trending := TrendingAssets(nil, assets)
	want := []string{"100", "50", "10", "5"}
	if len(trending) != len(want) {
		t.Fatalf("TrendingAssets() returned %d rows, want %d", len(trending), len(want))
	}
	for i, price := range want {
		if !trending[i].Price.Equal(d(price)) {
			t.Errorf("trending[%d].Price = %s, want %s", i, trending[i].Price, price)
		}
		if !trending[i].Change.IsZero() {
			t.Errorf("trending[%d].Change = %s, want 0 for unowned asset", i, trending[i].Change)
		}
	}

	if assets[0].Symbol != "A" {
		t.Error("TrendingAssets() must not reorder the catalog")
	}
}

func TestTrendingAssetsTiesAndLimit(t *testing.T) {
	assets := []model.Asset{
		{ID: 1, Symbol: "LOW", CurrentPrice: d("1")},
		{ID: 2, Symbol: "TIE1", CurrentPrice: d("20")},
		{ID: 3, Symbol: "TOP", CurrentPrice: d("90")},
		{ID: 4, Symbol: "TIE2", CurrentPrice: d("20")},
		{ID: 5, Symbol: "MID", CurrentPrice: d("5")},
		{ID: 6, Symbol: "TIE3", CurrentPrice: d("20")},
	}
	entries := []model.PortfolioEntry{
		{AssetID: 4, Quantity: d("1"), AverageBuyPrice: d("10")},
	}

	trending := TrendingAssets(entries, assets)
	want := []string{"TOP", "TIE1", "TIE2", "TIE3"}
	if len(trending) != len(want) {
		t.Fatalf("TrendingAssets() returned %d rows, want %d", len(trending), len(want))
	}
	for i, symbol := range want {
		if trending[i].Symbol != symbol {
			t.Errorf("trending[%d] = %s, want %s", i, trending[i].Symbol, symbol)
		}
	}
	if !trending[2].Change.Equal(d("100")) {
		t.Errorf("owned TIE2 change = %s, want 100", trending[2].Change)
	}
}

func TestChartSeries(t *testing.T) {
	chart := ChartSeries(d("1000"))
	want := []model.ChartPoint{
		{Date: "Nov 21", Value: d("850")},
		{Date: "Nov 28", Value: d("900")},
		{Date: "Dec 5", Value: d("880")},
		{Date: "Dec 12", Value: d("950")},
		{Date: "Dec 19", Value: d("1000")},
	}
	if len(chart) != len(want) {
		t.Fatalf("ChartSeries() returned %d points, want %d", len(chart), len(want))
	}
	for i := range want {
		if chart[i].Date != want[i].Date || !chart[i].Value.Equal(want[i].Value) {
			t.Errorf("chart[%d] = %+v, want %+v", i, chart[i], want[i])
		}
	}
}

func TestBuildDashboardEmpty(t *testing.T) {
	dash := BuildDashboard(nil, nil, d("42"))
	if len(dash.Owned) != 0 || len(dash.Trending) != 0 {
		t.Errorf("BuildDashboard() on empty input = %+v", dash)
	}
	if !dash.TotalValue.IsZero() || !dash.Balance.Equal(d("42")) {
		t.Errorf("BuildDashboard() totals = %s / %s", dash.TotalValue, dash.Balance)
	}
	for _, point := range dash.Chart {
		if !point.Value.IsZero() {
			t.Errorf("chart point %s = %s, want 0", point.Date, point.Value)
		}
	}
}
