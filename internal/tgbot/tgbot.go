package tgbot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/crypto_portfolio_bot/config"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model/tg/tgCallback"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/transport/telegram"
	customMW "github.com/KotFed0t/crypto_portfolio_bot/internal/transport/telegram/middleware"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"
)

type Session interface {
	GetSession(ctx context.Context, chatID int64) (model.Session, error)
}

type TGBot struct {
	bot     *tele.Bot
	ctrl    *telegram.Controller
	session Session
}

func New(cfg *config.Config, ctrl *telegram.Controller, session Session) (*TGBot, error) {
	settings := tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Telegram.UpdTimeout},
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("tele.NewBot: %w", err)
	}

	return &TGBot{bot: b, ctrl: ctrl, session: session}, nil
}

func (b *TGBot) Start() {
	b.bot.Use(middleware.Recover(), customMW.Logger())

	b.setupRoutes()

	err := b.bot.SetCommands([]tele.Command{
		{Text: "dashboard", Description: "Show your portfolio"},
		{Text: "deposit", Description: "Add funds to your wallet"},
		{Text: "export", Description: "Download the portfolio report"},
		{Text: "login", Description: "Log in"},
		{Text: "register", Description: "Create an account"},
		{Text: "logout", Description: "Log out"},
		{Text: "cancel", Description: "Close the open form"},
	})
	if err != nil {
		slog.Warn("can't set bot commands", slog.String("err", err.Error()))
	}

	go b.bot.Start()
	slog.Info("tgbot started!")
}

func (b *TGBot) Stop() {
	slog.Info("start stopping tgbot")
	b.bot.Stop()
	slog.Info("tgbot stopped")
}

func (b *TGBot) setupRoutes() {
	// the chat session decides which form a plain message answers
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		ctx := utils.CreateCtxWithRqID(c)
		rqID := utils.GetRequestIDFromCtx(ctx)

		chatSession, err := b.session.GetSession(ctx, c.Chat().ID)
		if err != nil {
			slog.Error("got error from session.GetSession", slog.String("rqID", rqID), slog.String("err", err.Error()))
			return c.Send(telebotConverter.InternalErrMsg)
		}

		c.Set("session", chatSession)

		switch chatSession.State {
		case model.ExpectingRegisterEmail:
			return b.ctrl.ProcessRegisterEmail(c)
		case model.ExpectingRegisterPassword:
			return b.ctrl.ProcessRegisterPassword(c)
		case model.ExpectingRegisterConfirmPassword:
			return b.ctrl.ProcessRegisterConfirmPassword(c)
		case model.ExpectingLoginEmail:
			return b.ctrl.ProcessLoginEmail(c)
		case model.ExpectingLoginPassword:
			return b.ctrl.ProcessLoginPassword(c)
		case model.ExpectingDepositAmount, model.ExpectingTradeQuantity:
			return b.ctrl.ProcessDialogInput(c)
		default:
			slog.Debug("text outside of a form", slog.String("rqID", rqID), slog.Any("state", chatSession.State))
			return b.ctrl.Text(c)
		}
	})

	b.bot.Handle("/start", b.ctrl.Start)
	b.bot.Handle("/register", b.ctrl.InitRegistration)
	b.bot.Handle("/login", b.ctrl.InitLogin)
	b.bot.Handle("/dashboard", b.ctrl.Dashboard)
	b.bot.Handle("/deposit", b.ctrl.InitDeposit)
	b.bot.Handle("/export", b.ctrl.Export)
	b.bot.Handle("/logout", b.ctrl.Logout)
	b.bot.Handle("/cancel", b.ctrl.Cancel)

	b.bot.Handle(&tele.Btn{Unique: tgCallback.Register}, b.ctrl.InitRegistration)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Login}, b.ctrl.InitLogin)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Refresh}, b.ctrl.Dashboard)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Deposit}, b.ctrl.InitDeposit)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.QuickDeposit}, b.ctrl.QuickDeposit)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Buy}, b.ctrl.InitBuy)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Sell}, b.ctrl.InitSell)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.QuickFill}, b.ctrl.QuickFill)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Confirm}, b.ctrl.Confirm)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Cancel}, b.ctrl.Cancel)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Export}, b.ctrl.Export)
	b.bot.Handle(&tele.Btn{Unique: tgCallback.Logout}, b.ctrl.Logout)
}
