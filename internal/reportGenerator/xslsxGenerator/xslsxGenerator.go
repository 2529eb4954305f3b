package xslsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	"github.com/xuri/excelize/v2"
)

const (
	portfolioSheet = "Portfolio"
	trendingSheet  = "Trending"
	chartSheet     = "Performance"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, dashboard model.Dashboard) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	header, err := headerStyle(f)
	if err != nil {
		return nil, "", err
	}

	if err := fillPortfolioSheet(f, dashboard, header); err != nil {
		return nil, "", err
	}
	if err := fillTrendingSheet(f, dashboard.Trending, header); err != nil {
		return nil, "", err
	}
	if err := fillChartSheet(f, dashboard.Chart, header); err != nil {
		return nil, "", err
	}

	// default sheet is replaced by the named ones above
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#d9ead3"},
		},
	})
}

func writeHeader(f *excelize.File, sheet string, row int, styleID int, titles ...string) error {
	for i, title := range titles {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		_ = f.SetCellStr(sheet, cell, title)
	}

	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(titles), row)
	if err := f.SetCellStyle(sheet, first, last, styleID); err != nil {
		return fmt.Errorf("can't apply header style: %w", err)
	}
	return nil
}

func fillPortfolioSheet(f *excelize.File, dashboard model.Dashboard, header int) error {
	if _, err := f.NewSheet(portfolioSheet); err != nil {
		return err
	}
	_ = f.SetColWidth(portfolioSheet, "A", "F", 16)

	_ = f.SetCellStr(portfolioSheet, "A1", "User")
	_ = f.SetCellStr(portfolioSheet, "B1", dashboard.Username)
	_ = f.SetCellStr(portfolioSheet, "A2", "Balance, USD")
	if dashboard.BalanceKnown {
		_ = f.SetCellValue(portfolioSheet, "B2", dashboard.Balance.InexactFloat64())
	} else {
		_ = f.SetCellStr(portfolioSheet, "B2", "unavailable")
	}
	_ = f.SetCellStr(portfolioSheet, "A3", "Total value, USD")
	_ = f.SetCellValue(portfolioSheet, "B3", dashboard.TotalValue.InexactFloat64())

	if err := writeHeader(f, portfolioSheet, 5, header, "symbol", "name", "amount", "price", "value", "change, %"); err != nil {
		return err
	}

	for i, asset := range dashboard.Owned {
		row := i + 6
		_ = f.SetCellStr(portfolioSheet, fmt.Sprintf("A%d", row), asset.Symbol)
		_ = f.SetCellStr(portfolioSheet, fmt.Sprintf("B%d", row), asset.Name)
		_ = f.SetCellValue(portfolioSheet, fmt.Sprintf("C%d", row), asset.Amount.InexactFloat64())
		_ = f.SetCellValue(portfolioSheet, fmt.Sprintf("D%d", row), asset.CurrentPrice.InexactFloat64())
		_ = f.SetCellValue(portfolioSheet, fmt.Sprintf("E%d", row), asset.Value.InexactFloat64())
		_ = f.SetCellValue(portfolioSheet, fmt.Sprintf("F%d", row), asset.Change.Round(2).InexactFloat64())
	}

	return nil
}

func fillTrendingSheet(f *excelize.File, trending []model.TrendingAsset, header int) error {
	if _, err := f.NewSheet(trendingSheet); err != nil {
		return err
	}
	_ = f.SetColWidth(trendingSheet, "A", "D", 16)

	if err := writeHeader(f, trendingSheet, 1, header, "symbol", "name", "price", "change, %"); err != nil {
		return err
	}

	for i, asset := range trending {
		row := i + 2
		_ = f.SetCellStr(trendingSheet, fmt.Sprintf("A%d", row), asset.Symbol)
		_ = f.SetCellStr(trendingSheet, fmt.Sprintf("B%d", row), asset.Name)
		_ = f.SetCellValue(trendingSheet, fmt.Sprintf("C%d", row), asset.Price.InexactFloat64())
		_ = f.SetCellValue(trendingSheet, fmt.Sprintf("D%d", row), asset.Change.Round(2).InexactFloat64())
	}

	return nil
}

func fillChartSheet(f *excelize.File, chart []model.ChartPoint, header int) error {
	if _, err := f.NewSheet(chartSheet); err != nil {
		return err
	}
	_ = f.SetColWidth(chartSheet, "A", "B", 16)

	if err := writeHeader(f, chartSheet, 1, header, "date", "value, USD"); err != nil {
		return err
	}

	for i, point := range chart {
		row := i + 2
		_ = f.SetCellStr(chartSheet, fmt.Sprintf("A%d", row), point.Date)
		_ = f.SetCellValue(chartSheet, fmt.Sprintf("B%d", row), point.Value.InexactFloat64())
	}

	if len(chart) == 0 {
		return nil
	}

	return f.AddChart(chartSheet, "D2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$B$1", chartSheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", chartSheet, len(chart)+1),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", chartSheet, len(chart)+1),
			},
		},
		Title: []excelize.RichTextRun{{Text: "Portfolio performance"}},
		Legend: excelize.ChartLegend{
			Position: "none",
		},
	})
}
