package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/crypto_portfolio_bot/config"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

type PortfolioService interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
	SaveSession(ctx context.Context, chatID int64, chatSession model.Session) error
	Register(ctx context.Context, email, password, confirmPassword string) (model.Account, error)
	Login(ctx context.Context, chatID int64, email, password string) (model.Session, error)
	Logout(ctx context.Context, chatID int64) error
	Dashboard(ctx context.Context, chatID int64) (model.Dashboard, error)
	WalletBalance(ctx context.Context, chatID int64) (model.Wallet, error)
	TradeTarget(ctx context.Context, chatID, assetID int64) (model.TradeTarget, error)
	Deposit(ctx context.Context, chatID int64, amount decimal.Decimal) (model.Wallet, error)
	Trade(ctx context.Context, chatID int64, direction model.Direction, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error)
	ExportReport(ctx context.Context, chatID int64) (model.Report, error)
}

type Controller struct {
	portfolioService  PortfolioService
	modals            *modalRegistry
	passwords         *pendingPasswords
	depositCloseDelay time.Duration
	tradeCloseDelay   time.Duration
	botOf             func(c tele.Context) messenger
}

func NewController(cfg *config.Config, portfolioService PortfolioService) *Controller {
	return &Controller{
		portfolioService:  portfolioService,
		modals:            newModalRegistry(),
		passwords:         newPendingPasswords(),
		depositCloseDelay: cfg.Modal.DepositCloseDelay,
		tradeCloseDelay:   cfg.Modal.TradeCloseDelay,
		botOf: func(c tele.Context) messenger {
			return c.Bot()
		},
	}
}

func htmlOpts(markup *tele.ReplyMarkup) []interface{} {
	opts := []interface{}{tele.ModeHTML}
	if markup != nil {
		opts = append(opts, markup)
	}
	return opts
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// respond answers the pressed button, if any, so the client stops its spinner.
func respond(c tele.Context, text string) {
	if c.Callback() == nil {
		return
	}
	if text == "" {
		_ = c.Respond()
		return
	}
	_ = c.Respond(&tele.CallbackResponse{Text: text})
}

// render edits the message behind a pressed button when edit is set,
// otherwise it sends a new message.
func (ctrl *Controller) render(ctx context.Context, c tele.Context, edit bool, text string, markup *tele.ReplyMarkup) error {
	if edit && c.Callback() != nil && c.Callback().Message != nil {
		err := c.Edit(text, htmlOpts(markup)...)
		if err == nil || isNotModified(err) {
			return nil
		}
		slog.Warn("can't edit message, sending a new one", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
	return c.Send(text, htmlOpts(markup)...)
}

func (ctrl *Controller) getSessionFromTeleCtxOrStorage(ctx context.Context, c tele.Context) (model.Session, error) {
	chatSession, ok := c.Get("session").(model.Session)
	if ok {
		return chatSession, nil
	}

	chatSession, err := ctrl.portfolioService.GetSession(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from portfolioService.GetSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return model.Session{}, err
	}
	return chatSession, nil
}

func (ctrl *Controller) saveSession(ctx context.Context, c tele.Context, chatSession model.Session) error {
	err := ctrl.portfolioService.SaveSession(ctx, c.Chat().ID, chatSession)
	if err != nil {
		slog.Error("got error from portfolioService.SaveSession", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return err
	}
	c.Set("session", chatSession)
	return nil
}

// handleAuthError sends the user back to the landing view when the chat is
// signed out or the backend rejected its token.
func (ctrl *Controller) handleAuthError(ctx context.Context, c tele.Context, err error) bool {
	if !errors.Is(err, service.ErrUnauthorized) && !errors.Is(err, service.ErrNotAuthenticated) {
		return false
	}

	slog.Info("chat is not signed in", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.Int64("chatID", c.Chat().ID))

	ctrl.closeModal(c.Chat().ID)
	_, markup := telebotConverter.LandingResponse()
	_ = c.Send(telebotConverter.ErrorText(err), markup)
	return true
}

func (ctrl *Controller) Start(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	if chatSession.IsAuthenticated() {
		return ctrl.showDashboard(ctx, c, false)
	}

	text, markup := telebotConverter.LandingResponse()
	return c.Send(text, htmlOpts(markup)...)
}

// Dashboard serves both the /dashboard command and the refresh button.
func (ctrl *Controller) Dashboard(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	respond(c, "")
	return ctrl.showDashboard(ctx, c, c.Callback() != nil)
}

func (ctrl *Controller) showDashboard(ctx context.Context, c tele.Context, edit bool) error {
	dashboard, err := ctrl.portfolioService.Dashboard(ctx, c.Chat().ID)
	if err != nil {
		if ctrl.handleAuthError(ctx, c, err) {
			return nil
		}
		slog.Error("got error from portfolioService.Dashboard", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		text, markup := telebotConverter.DashboardErrorResponse(err)
		return ctrl.render(ctx, c, edit, text, markup)
	}

	text, markup := telebotConverter.DashboardResponse(dashboard)
	return ctrl.render(ctx, c, edit, text, markup)
}

func (ctrl *Controller) Cancel(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	respond(c, "")

	ctrl.closeModal(c.Chat().ID)
	ctrl.passwords.drop(c.Chat().ID)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}
	if chatSession.State == model.DefaultState {
		return nil
	}

	chatSession.CloseForm()
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send("Cancelled.")
}

func (ctrl *Controller) Logout(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	respond(c, "")

	ctrl.closeModal(c.Chat().ID)
	ctrl.passwords.drop(c.Chat().ID)

	err := ctrl.portfolioService.Logout(ctx, c.Chat().ID)
	if err != nil {
		slog.Error("got error from portfolioService.Logout", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return c.Send(telebotConverter.InternalErrMsg)
	}
	c.Set("session", model.Session{})

	text, markup := telebotConverter.LandingResponse()
	return c.Send("👋 You have been logged out.\n\n"+text, htmlOpts(markup)...)
}

func (ctrl *Controller) Export(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	respond(c, "Preparing report…")

	_ = c.Notify(tele.UploadingDocument)

	report, err := ctrl.portfolioService.ExportReport(ctx, c.Chat().ID)
	if err != nil {
		if ctrl.handleAuthError(ctx, c, err) {
			return nil
		}
		slog.Error("got error from portfolioService.ExportReport", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.ErrorText(err))
	}

	if report.Link != "" {
		return c.Send(
			fmt.Sprintf("📊 Your report is ready: <a href=\"%s\">%s</a>", html.EscapeString(report.Link), html.EscapeString(report.FileName)),
			tele.ModeHTML,
		)
	}

	return c.Send(&tele.Document{
		File:     tele.FromReader(bytes.NewReader(report.File)),
		FileName: report.FileName,
		Caption:  "📊 Portfolio report",
	})
}

// Text answers a message that no form is waiting for.
func (ctrl *Controller) Text(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}
	if chatSession.IsAuthenticated() {
		return c.Send("Use /dashboard to see your portfolio or /deposit to add funds.")
	}
	return c.Send("Use /login or /register to get started.")
}
