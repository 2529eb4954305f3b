package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/modal"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v4"
)

const dialogClosedMsg = "This dialog is closed"

var errNoDialog = errors.New("no dialog is open for the chat")

// shownError is a backend failure as the dialog displays it. The cause
// stays reachable for errors.Is.
type shownError struct {
	err error
}

func (e shownError) Error() string {
	return telebotConverter.ErrorText(e.err)
}

func (e shownError) Unwrap() error {
	return e.err
}

func forDisplay(err error) error {
	if err == nil {
		return nil
	}
	return shownError{err: err}
}

func (ctrl *Controller) openDeposit(c tele.Context, balance decimal.Decimal) *openModal {
	chatID := c.Chat().ID
	entry := &openModal{bot: ctrl.botOf(c), chat: c.Chat()}

	deposit := modal.NewDeposit(
		func(ctx context.Context, amount decimal.Decimal) (model.Wallet, error) {
			wallet, err := ctrl.portfolioService.Deposit(ctx, chatID, amount)
			return wallet, forDisplay(err)
		},
		modal.DepositOptions{
			CloseDelay: ctrl.depositCloseDelay,
			OnSuccess: func(ctx context.Context, wallet model.Wallet) {
				text := telebotConverter.DepositSuccessResponse(entry.dialog.View(), wallet)
				ctrl.showModal(ctx, entry, text, nil, false)
			},
			OnClose: func() { ctrl.dismiss(chatID, entry) },
		},
	)

	entry.dialog = deposit
	entry.deposit = deposit
	entry.render = func(view modal.View) (string, *tele.ReplyMarkup) {
		return telebotConverter.DepositResponse(view, balance)
	}
	entry.submit = func(ctx context.Context, input string) error {
		_, err := deposit.Submit(ctx, input)
		return err
	}

	ctrl.install(chatID, entry)
	return entry
}

func (ctrl *Controller) openTrade(c tele.Context, mode model.Direction, target model.TradeTarget) (*openModal, error) {
	chatID := c.Chat().ID
	entry := &openModal{bot: ctrl.botOf(c), chat: c.Chat()}

	params := modal.TradeParams{
		Mode: mode,
		Asset: modal.TradeAsset{
			ID:     target.Asset.ID,
			Symbol: target.Asset.Symbol,
			Price:  target.Asset.CurrentPrice,
		},
		Balance: target.Balance,
		Owned:   target.Owned,
	}

	trade, err := modal.NewTrade(
		params,
		func(ctx context.Context, direction model.Direction, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error) {
			result, err := ctrl.portfolioService.Trade(ctx, chatID, direction, assetID, quantity)
			return result, forDisplay(err)
		},
		modal.TradeOptions{
			CloseDelay: ctrl.tradeCloseDelay,
			OnTransaction: func(ctx context.Context, result model.TransactionResult) {
				text := telebotConverter.TradeSuccessResponse(entry.dialog.View(), params, result)
				ctrl.showModal(ctx, entry, text, nil, false)
			},
			OnClose: func() { ctrl.dismiss(chatID, entry) },
		},
	)
	if err != nil {
		return nil, err
	}

	entry.dialog = trade
	entry.trade = trade
	entry.render = func(view modal.View) (string, *tele.ReplyMarkup) {
		return telebotConverter.TradeResponse(view, trade)
	}
	entry.submit = func(ctx context.Context, input string) error {
		_, err := trade.Submit(ctx, input)
		return err
	}

	ctrl.install(chatID, entry)
	return entry, nil
}

// install makes entry the open dialog of the chat, closing the previous one.
func (ctrl *Controller) install(chatID int64, entry *openModal) {
	if previous := ctrl.modals.put(chatID, entry); previous != nil {
		previous.dialog.Reset()
		ctrl.deleteModalMessage(previous)
	}
}

func (ctrl *Controller) closeModal(chatID int64) {
	entry := ctrl.modals.get(chatID)
	if entry == nil || !ctrl.modals.remove(chatID, entry) {
		return
	}
	entry.dialog.Reset()
	ctrl.deleteModalMessage(entry)
}

// dismiss runs when a dialog closes itself after a successful submit.
func (ctrl *Controller) dismiss(chatID int64, entry *openModal) {
	if ctrl.modals.remove(chatID, entry) {
		ctrl.deleteModalMessage(entry)
	}
}

func (ctrl *Controller) deleteModalMessage(entry *openModal) {
	msg := ctrl.modals.messageOf(entry)
	if msg == nil {
		return
	}
	ctrl.modals.setMessage(entry, nil)
	if err := entry.bot.Delete(msg); err != nil {
		slog.Warn("can't delete dialog message", slog.Int64("chatID", entry.chat.ID), slog.String("err", err.Error()))
	}
}

// showModal edits the dialog message in place. With resend, or when the
// edit fails, the old message is removed and the dialog is posted anew at
// the bottom of the chat. A dialog that is no longer open is only edited.
func (ctrl *Controller) showModal(ctx context.Context, entry *openModal, text string, markup *tele.ReplyMarkup, resend bool) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	msg := ctrl.modals.messageOf(entry)
	if msg != nil && !resend {
		_, err := entry.bot.Edit(msg, text, htmlOpts(markup)...)
		if err == nil || isNotModified(err) {
			return
		}
		slog.Warn("can't edit dialog message", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	if ctrl.modals.get(entry.chat.ID) != entry {
		return
	}

	ctrl.deleteModalMessage(entry)

	sent, err := entry.bot.Send(entry.chat, text, htmlOpts(markup)...)
	if err != nil {
		slog.Error("can't send dialog message", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return
	}
	ctrl.modals.setMessage(entry, sent)
}

func (ctrl *Controller) setFormState(ctx context.Context, c tele.Context, state model.State, assetID int64, mode model.Direction) error {
	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return err
	}

	chatSession.CloseForm()
	chatSession.State = state
	chatSession.AssetID = assetID
	chatSession.TradeMode = mode
	return ctrl.saveSession(ctx, c, chatSession)
}

func (ctrl *Controller) InitDeposit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	respond(c, "")

	wallet, err := ctrl.portfolioService.WalletBalance(ctx, c.Chat().ID)
	if err != nil {
		if ctrl.handleAuthError(ctx, c, err) {
			return nil
		}
		slog.Error("got error from portfolioService.WalletBalance", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.ErrorText(err))
	}

	entry := ctrl.openDeposit(c, wallet.Balance)
	if err := ctrl.setFormState(ctx, c, model.ExpectingDepositAmount, 0, ""); err != nil {
		ctrl.closeModal(c.Chat().ID)
		return c.Send(telebotConverter.InternalErrMsg)
	}

	text, markup := entry.render(entry.dialog.View())
	ctrl.showModal(ctx, entry, text, markup, true)
	return nil
}

func (ctrl *Controller) InitBuy(c tele.Context) error {
	return ctrl.initTrade(c, model.Buy)
}

func (ctrl *Controller) InitSell(c tele.Context) error {
	return ctrl.initTrade(c, model.Sell)
}

func (ctrl *Controller) initTrade(c tele.Context, mode model.Direction) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	respond(c, "")

	if c.Callback() == nil {
		return nil
	}

	assetID, err := strconv.ParseInt(c.Callback().Data, 10, 64)
	if err != nil {
		slog.Error("bad asset id in callback", slog.String("rqID", rqID), slog.String("data", c.Callback().Data))
		return c.Send(telebotConverter.InternalErrMsg)
	}

	target, err := ctrl.portfolioService.TradeTarget(ctx, c.Chat().ID, assetID)
	if err != nil {
		if ctrl.handleAuthError(ctx, c, err) {
			return nil
		}
		slog.Error("got error from portfolioService.TradeTarget", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.ErrorText(err))
	}

	entry, err := ctrl.openTrade(c, mode, target)
	if err != nil {
		slog.Error("can't open trade dialog", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.InternalErrMsg)
	}

	if err := ctrl.setFormState(ctx, c, model.ExpectingTradeQuantity, assetID, mode); err != nil {
		ctrl.closeModal(c.Chat().ID)
		return c.Send(telebotConverter.InternalErrMsg)
	}

	text, markup := entry.render(entry.dialog.View())
	ctrl.showModal(ctx, entry, text, markup, true)
	return nil
}

func (ctrl *Controller) QuickDeposit(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	entry := ctrl.modals.get(c.Chat().ID)
	if entry == nil || entry.deposit == nil || c.Callback() == nil {
		respond(c, dialogClosedMsg)
		return nil
	}

	if err := entry.deposit.SetInput(c.Callback().Data); err != nil {
		respond(c, telebotConverter.ErrorText(err))
		return nil
	}
	respond(c, "")

	text, markup := entry.render(entry.dialog.View())
	ctrl.showModal(ctx, entry, text, markup, false)
	return nil
}

func (ctrl *Controller) QuickFill(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	entry := ctrl.modals.get(c.Chat().ID)
	if entry == nil || entry.trade == nil || c.Callback() == nil {
		respond(c, dialogClosedMsg)
		return nil
	}

	percent, err := strconv.Atoi(c.Callback().Data)
	if err != nil {
		respond(c, telebotConverter.InternalErrMsg)
		return nil
	}

	if _, err := entry.trade.QuickFill(percent); err != nil {
		respond(c, telebotConverter.ErrorText(err))
		return nil
	}
	respond(c, "")

	text, markup := entry.render(entry.dialog.View())
	ctrl.showModal(ctx, entry, text, markup, false)
	return nil
}

// Confirm submits the amount or quantity already shown in the dialog.
func (ctrl *Controller) Confirm(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	entry := ctrl.modals.get(c.Chat().ID)
	if entry == nil {
		respond(c, dialogClosedMsg)
		return nil
	}
	respond(c, "")

	return ctrl.submitModal(ctx, c, entry, entry.dialog.View().Input, false)
}

// ProcessDialogInput submits a typed deposit amount or trade quantity.
func (ctrl *Controller) ProcessDialogInput(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	entry, err := ctrl.modalFor(ctx, c, chatSession)
	if err != nil {
		if ctrl.handleAuthError(ctx, c, err) {
			return nil
		}
		slog.Error("can't restore dialog", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return c.Send(telebotConverter.ErrorText(err))
	}

	return ctrl.submitModal(ctx, c, entry, c.Text(), true)
}

// modalFor returns the open dialog matching the session state. A dialog lost
// on restart is rebuilt from the session with fresh backend data.
func (ctrl *Controller) modalFor(ctx context.Context, c tele.Context, chatSession model.Session) (*openModal, error) {
	chatID := c.Chat().ID
	entry := ctrl.modals.get(chatID)

	switch chatSession.State {
	case model.ExpectingDepositAmount:
		if entry != nil && entry.deposit != nil {
			return entry, nil
		}
		wallet, err := ctrl.portfolioService.WalletBalance(ctx, chatID)
		if err != nil {
			return nil, err
		}
		return ctrl.openDeposit(c, wallet.Balance), nil
	case model.ExpectingTradeQuantity:
		if entry != nil && entry.trade != nil {
			params := entry.trade.Params()
			if params.Asset.ID == chatSession.AssetID && params.Mode == chatSession.TradeMode {
				return entry, nil
			}
		}
		target, err := ctrl.portfolioService.TradeTarget(ctx, chatID, chatSession.AssetID)
		if err != nil {
			return nil, err
		}
		return ctrl.openTrade(c, chatSession.TradeMode, target)
	}

	return nil, errNoDialog
}

// submitModal runs one submit of the dialog. After a confirmed mutation the
// form is closed and a fresh dashboard is fetched and posted; the dialog
// keeps showing the confirmed result until it closes itself.
func (ctrl *Controller) submitModal(ctx context.Context, c tele.Context, entry *openModal, input string, resend bool) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	if view := entry.dialog.View(); view.State == modal.Submitting || view.State == modal.Success {
		return c.Send(telebotConverter.ErrorText(modal.ErrInFlight))
	}

	text, markup := entry.render(modal.View{State: modal.Submitting, Input: input})
	ctrl.showModal(ctx, entry, text, markup, resend)

	err := entry.submit(ctx, input)

	var validationErr *modal.ValidationError
	switch {
	case err == nil:
		if err := ctrl.setFormState(ctx, c, model.DefaultState, 0, ""); err != nil {
			slog.Error("can't close form after submit", slog.String("rqID", rqID), slog.String("err", err.Error()))
		}
		return ctrl.showDashboard(ctx, c, false)
	case errors.Is(err, modal.ErrClosed):
		return nil
	case errors.Is(err, modal.ErrInFlight):
		return c.Send(telebotConverter.ErrorText(err))
	case ctrl.handleAuthError(ctx, c, err):
		return nil
	case errors.As(err, &validationErr):
		slog.Debug("dialog input rejected", slog.String("rqID", rqID), slog.String("reason", validationErr.Message))
	default:
		slog.Warn("dialog submit failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
	}

	text, markup = entry.render(entry.dialog.View())
	ctrl.showModal(ctx, entry, text, markup, false)
	return nil
}
