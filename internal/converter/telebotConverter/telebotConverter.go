package telebotConverter

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/modal"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const (
	InternalErrMsg = "Something went wrong. Please try again."
	chartBarWidth  = 10
)

func LandingResponse() (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("🚀 <b>Crypto Portfolio Tracker</b>\n\n")
	sb.WriteString("Track your crypto holdings, buy and sell assets and watch your portfolio grow.\n\n")
	sb.WriteString("▸ Real-time asset prices\n")
	sb.WriteString("▸ Paper trading with a USD wallet\n")
	sb.WriteString("▸ Portfolio performance at a glance\n")

	markup.Inline(
		markup.Row(
			markup.Data("🔑 Login", tgCallback.Login),
			markup.Data("📝 Sign up", tgCallback.Register),
		),
	)

	return sb.String(), markup
}

func DashboardResponse(d model.Dashboard) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("👋 Welcome back, <b>%s</b>\n\n", html.EscapeString(d.Username)))

	balance := "…"
	if d.BalanceKnown {
		balance = FormatUSD(d.Balance)
	}
	sb.WriteString(fmt.Sprintf("💰 Balance: <b>%s</b>\n", balance))
	sb.WriteString(fmt.Sprintf("📈 Portfolio value: <b>%s</b>\n\n", FormatUSD(d.TotalValue)))

	rows := make([]tele.Row, 0, len(d.Owned)+4)

	sb.WriteString("<b>Your assets</b>\n")
	if len(d.Owned) == 0 {
		sb.WriteString("You don't own any assets yet.\n")
	}
	for _, asset := range d.Owned {
		sb.WriteString(fmt.Sprintf("• <b>%s</b> %s\n", html.EscapeString(asset.Symbol), html.EscapeString(asset.Name)))
		sb.WriteString(fmt.Sprintf(
			"   %s × %s = <b>%s</b> (%s)\n",
			asset.Amount.String(),
			FormatUSD(asset.CurrentPrice),
			FormatUSD(asset.Value),
			FormatPercent(asset.Change),
		))

		id := strconv.FormatInt(asset.AssetID, 10)
		rows = append(rows, markup.Row(
			markup.Data("Buy more "+asset.Symbol, tgCallback.Buy, id),
			markup.Data("Sell "+asset.Symbol, tgCallback.Sell, id),
		))
	}

	if len(d.Trending) > 0 {
		sb.WriteString("\n<b>🔥 Trending</b>\n")
		trendingBtns := make([]tele.Btn, 0, len(d.Trending))
		for _, asset := range d.Trending {
			sb.WriteString(fmt.Sprintf(
				"• <b>%s</b> %s %s (%s)\n",
				html.EscapeString(asset.Symbol),
				html.EscapeString(asset.Name),
				FormatUSD(asset.Price),
				FormatPercent(asset.Change),
			))
			trendingBtns = append(trendingBtns, markup.Data("Buy "+asset.Symbol, tgCallback.Buy, strconv.FormatInt(asset.AssetID, 10)))
		}
		rows = append(rows, markup.Split(2, trendingBtns)...)
	}

	if len(d.Chart) > 0 {
		sb.WriteString("\n<b>Performance</b>\n")
		sb.WriteString(chartText(d.Chart))
	}

	rows = append(rows,
		markup.Row(
			markup.Data("💵 Deposit", tgCallback.Deposit),
			markup.Data("🔄 Refresh", tgCallback.Refresh),
		),
		markup.Row(
			markup.Data("📊 Export", tgCallback.Export),
			markup.Data("🚪 Logout", tgCallback.Logout),
		),
	)
	markup.Inline(rows...)

	return sb.String(), markup
}

func chartText(points []model.ChartPoint) string {
	top := decimal.Zero
	for _, p := range points {
		if p.Value.GreaterThan(top) {
			top = p.Value
		}
	}

	var sb strings.Builder
	sb.WriteString("<code>")
	for _, p := range points {
		width := 0
		if top.IsPositive() {
			width = int(p.Value.Div(top).Mul(decimal.NewFromInt(chartBarWidth)).Round(0).IntPart())
		}
		sb.WriteString(fmt.Sprintf("%-6s %-*s %s\n", p.Date, chartBarWidth, strings.Repeat("▇", width), FormatUSD(p.Value)))
	}
	sb.WriteString("</code>")
	return sb.String()
}

// DashboardErrorResponse replaces the dashboard when it could not be loaded.
func DashboardErrorResponse(err error) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("🔄 Try Again", tgCallback.Refresh)))
	return fmt.Sprintf("⚠️ <b>Error loading dashboard</b>\n\n%s", html.EscapeString(ErrorText(err))), markup
}

func DepositResponse(view modal.View, balance decimal.Decimal) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	var sb strings.Builder

	sb.WriteString("💵 <b>Deposit funds</b>\n\n")
	sb.WriteString(fmt.Sprintf("Current balance: %s\n", FormatUSD(balance)))

	if view.State == modal.Success {
		sb.WriteString(fmt.Sprintf("\n✅ %s\n", html.EscapeString(view.Message)))
		return sb.String(), nil
	}

	if view.Input != "" {
		sb.WriteString(fmt.Sprintf("Amount: %s\n", html.EscapeString(view.Input)))
		if projected, ok := modal.ProjectedBalance(balance, view.Input); ok {
			sb.WriteString(fmt.Sprintf("New balance: <b>%s</b>\n", FormatUSD(projected)))
		}
	}

	writeStatus(&sb, view)
	sb.WriteString(fmt.Sprintf("\nSend an amount between %s and %s or pick one below.", FormatUSD(modal.MinDeposit), FormatUSD(modal.MaxDeposit)))

	quickBtns := make([]tele.Btn, 0, len(modal.QuickDepositAmounts))
	for _, amount := range modal.QuickDepositAmounts {
		quickBtns = append(quickBtns, markup.Data(
			"$"+groupThousands(strconv.FormatInt(amount, 10)),
			tgCallback.QuickDeposit,
			strconv.FormatInt(amount, 10),
		))
	}

	rows := []tele.Row{markup.Row(quickBtns...)}
	rows = append(rows, controlRow(markup, view, "Deposit")...)
	markup.Inline(rows...)

	return sb.String(), markup
}

// DepositSuccessResponse shows the balance confirmed by the backend.
func DepositSuccessResponse(view modal.View, wallet model.Wallet) string {
	return fmt.Sprintf("💵 <b>Deposit funds</b>\n\n✅ %s\nNew balance: <b>%s</b>", html.EscapeString(view.Message), FormatUSD(wallet.Balance))
}

func TradeResponse(view modal.View, trade *modal.Trade) (text string, markup *tele.ReplyMarkup) {
	markup = &tele.ReplyMarkup{}
	params := trade.Params()
	var sb strings.Builder

	action := "Buy"
	if params.Mode == model.Sell {
		action = "Sell"
	}
	symbol := html.EscapeString(params.Asset.Symbol)

	sb.WriteString(fmt.Sprintf("<b>%s %s</b>\n\n", action, symbol))
	sb.WriteString(fmt.Sprintf("Price: %s\n", FormatUSD(params.Asset.Price)))
	if params.Mode == model.Buy {
		sb.WriteString(fmt.Sprintf("Available: %s\n", FormatUSD(params.Balance)))
	} else {
		sb.WriteString(fmt.Sprintf("Owned: %s %s\n", params.Owned.String(), symbol))
	}

	if view.State == modal.Success {
		sb.WriteString(fmt.Sprintf("\n✅ %s\n", html.EscapeString(view.Message)))
		return sb.String(), nil
	}

	if view.Input != "" {
		sb.WriteString(fmt.Sprintf("Quantity: %s %s\n", html.EscapeString(view.Input), symbol))
		if quantity, err := decimal.NewFromString(strings.TrimSpace(view.Input)); err == nil && quantity.IsPositive() {
			sb.WriteString(fmt.Sprintf("Total: <b>%s</b>\n", FormatUSD(trade.TotalCost(quantity))))
		}
		if hint := trade.Hint(view.Input); hint != "" {
			sb.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(hint)))
		}
	}

	writeStatus(&sb, view)
	sb.WriteString(fmt.Sprintf("\nSend the quantity of %s or pick a share below.", symbol))

	fillBtns := make([]tele.Btn, 0, len(modal.QuickFillPercents))
	for _, percent := range modal.QuickFillPercents {
		fillBtns = append(fillBtns, markup.Data(
			fmt.Sprintf("%d%%", percent),
			tgCallback.QuickFill,
			strconv.Itoa(percent),
		))
	}

	rows := []tele.Row{markup.Row(fillBtns...)}
	rows = append(rows, controlRow(markup, view, action)...)
	markup.Inline(rows...)

	return sb.String(), markup
}

// TradeSuccessResponse describes the executed transaction. The wallet line
// is shown only when the backend reported it.
func TradeSuccessResponse(view modal.View, params modal.TradeParams, result model.TransactionResult) string {
	var sb strings.Builder

	verb := "Bought"
	if result.Type == model.Sell {
		verb = "Sold"
	}

	sb.WriteString(fmt.Sprintf("✅ %s\n\n", html.EscapeString(view.Message)))
	sb.WriteString(fmt.Sprintf(
		"%s %s %s at %s\n",
		verb,
		result.Quantity.String(),
		html.EscapeString(params.Asset.Symbol),
		FormatUSD(result.Price),
	))
	if result.Balance != nil {
		sb.WriteString(fmt.Sprintf("New balance: <b>%s</b>\n", FormatUSD(*result.Balance)))
	}

	return sb.String()
}

func writeStatus(sb *strings.Builder, view modal.View) {
	switch view.State {
	case modal.Submitting:
		sb.WriteString("\n⏳ Processing…\n")
	case modal.Idle, modal.Failed:
		if view.Message != "" {
			sb.WriteString(fmt.Sprintf("\n⚠️ %s\n", html.EscapeString(view.Message)))
		}
	}
}

func controlRow(markup *tele.ReplyMarkup, view modal.View, action string) []tele.Row {
	if view.State == modal.Submitting {
		return nil
	}
	btns := make([]tele.Btn, 0, 2)
	if view.Input != "" {
		btns = append(btns, markup.Data("✅ "+action, tgCallback.Confirm))
	}
	btns = append(btns, markup.Data("✖️ Cancel", tgCallback.Cancel))
	return []tele.Row{markup.Row(btns...)}
}

// ErrorText turns an error into a message fit for the user.
func ErrorText(err error) string {
	var validationErr *modal.ValidationError
	var requestErr *externalApi.RequestError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.Is(err, service.ErrUnauthorized):
		return "Your session has expired. Please /login again."
	case errors.Is(err, service.ErrNotAuthenticated):
		return "Please /login first."
	case errors.Is(err, service.ErrPasswordsMismatch):
		return "Passwords do not match"
	case errors.Is(err, service.ErrInvalidEmail):
		return "Please enter a valid email"
	case errors.Is(err, service.ErrEmptyPassword):
		return "Password must not be empty"
	case errors.Is(err, service.ErrAssetNotFound):
		return "Asset not found"
	case errors.Is(err, service.ErrReportTooLarge):
		return "The report is too large to send."
	case errors.Is(err, modal.ErrInFlight):
		return "Processing…"
	case errors.As(err, &requestErr):
		return requestErr.Message
	default:
		return InternalErrMsg
	}
}

// FormatUSD renders an amount as $1,234.56.
func FormatUSD(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

// FormatPercent renders a change as +1.23% or -4.56%.
func FormatPercent(change decimal.Decimal) string {
	rounded := change.Round(2)
	if rounded.IsNegative() {
		return rounded.StringFixed(2) + "%"
	}
	return "+" + rounded.StringFixed(2) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	head := len(digits) % 3
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
