package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/KotFed0t/crypto_portfolio_bot/internal/converter/telebotConverter"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	tele "gopkg.in/telebot.v4"
)

const (
	askEmailMsg           = "Enter your email:"
	askPasswordMsg        = "Enter your password:"
	askNewPasswordMsg     = "Choose a password:"
	askConfirmPasswordMsg = "Repeat the password:"
	askPasswordAgainMsg   = "Your password was not kept, please choose it again:"
)

// pendingPasswords holds a registration password until its confirmation
// arrives. It lives in process memory only.
type pendingPasswords struct {
	mu    sync.Mutex
	items map[int64]string
}

func newPendingPasswords() *pendingPasswords {
	return &pendingPasswords{items: make(map[int64]string)}
}

func (p *pendingPasswords) put(chatID int64, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[chatID] = password
}

// take returns the pending password and forgets it.
func (p *pendingPasswords) take(chatID int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	password, ok := p.items[chatID]
	delete(p.items, chatID)
	return password, ok
}

func (p *pendingPasswords) drop(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, chatID)
}

// deletePassword removes a message carrying a password from the chat history.
func deletePassword(ctx context.Context, c tele.Context) {
	if err := c.Delete(); err != nil {
		slog.Warn("can't delete password message", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
	}
}

// startForm moves the chat into state with a clean form and asks the first question.
func (ctrl *Controller) startForm(c tele.Context, state model.State, title string) error {
	ctx := utils.CreateCtxWithRqID(c)
	respond(c, "")

	ctrl.closeModal(c.Chat().ID)
	ctrl.passwords.drop(c.Chat().ID)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	chatSession.CloseForm()
	chatSession.State = state
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send(fmt.Sprintf("%s\n\n%s\n/cancel to stop", title, askEmailMsg), tele.ModeHTML)
}

func (ctrl *Controller) InitRegistration(c tele.Context) error {
	return ctrl.startForm(c, model.ExpectingRegisterEmail, "📝 <b>Create an account</b>")
}

func (ctrl *Controller) InitLogin(c tele.Context) error {
	return ctrl.startForm(c, model.ExpectingLoginEmail, "🔑 <b>Login</b>")
}

func (ctrl *Controller) ProcessRegisterEmail(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	chatSession.Form.Email = strings.TrimSpace(c.Text())
	chatSession.State = model.ExpectingRegisterPassword
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send(askNewPasswordMsg)
}

func (ctrl *Controller) ProcessRegisterPassword(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	deletePassword(ctx, c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	ctrl.passwords.put(c.Chat().ID, c.Text())
	chatSession.State = model.ExpectingRegisterConfirmPassword
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send(askConfirmPasswordMsg)
}

// ProcessRegisterConfirmPassword submits the registration. On success the
// chat continues with the login form, email already filled in.
func (ctrl *Controller) ProcessRegisterConfirmPassword(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	deletePassword(ctx, c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	form := chatSession.Form
	password, ok := ctrl.passwords.take(c.Chat().ID)
	if !ok {
		chatSession.State = model.ExpectingRegisterPassword
		if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
			return c.Send(telebotConverter.InternalErrMsg)
		}
		return c.Send(askPasswordAgainMsg)
	}

	_, err = ctrl.portfolioService.Register(ctx, form.Email, password, c.Text())

	var reply string
	switch {
	case err == nil:
		chatSession.Form = model.LoginForm{Email: form.Email}
		chatSession.State = model.ExpectingLoginPassword
		reply = fmt.Sprintf("✅ Registration successful! Please log in.\n\nEmail: %s\n%s", html.EscapeString(form.Email), askPasswordMsg)
	case errors.Is(err, service.ErrPasswordsMismatch), errors.Is(err, service.ErrEmptyPassword):
		chatSession.State = model.ExpectingRegisterPassword
		reply = fmt.Sprintf("⚠️ %s\n\n%s", telebotConverter.ErrorText(err), askNewPasswordMsg)
	default:
		slog.Warn("registration rejected", slog.String("rqID", rqID), slog.String("err", err.Error()))
		chatSession.Form = model.LoginForm{}
		chatSession.State = model.ExpectingRegisterEmail
		reply = fmt.Sprintf("⚠️ %s\n\n%s", html.EscapeString(telebotConverter.ErrorText(err)), askEmailMsg)
	}

	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send(reply, tele.ModeHTML)
}

func (ctrl *Controller) ProcessLoginEmail(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	chatSession.Form.Email = strings.TrimSpace(c.Text())
	chatSession.State = model.ExpectingLoginPassword
	if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	return c.Send(askPasswordMsg)
}

func (ctrl *Controller) ProcessLoginPassword(c tele.Context) error {
	ctx := utils.CreateCtxWithRqID(c)
	rqID := utils.GetRequestIDFromCtx(ctx)
	deletePassword(ctx, c)

	chatSession, err := ctrl.getSessionFromTeleCtxOrStorage(ctx, c)
	if err != nil {
		return c.Send(telebotConverter.InternalErrMsg)
	}

	signedIn, err := ctrl.portfolioService.Login(ctx, c.Chat().ID, chatSession.Form.Email, c.Text())
	if err != nil {
		slog.Warn("login rejected", slog.String("rqID", rqID), slog.String("err", err.Error()))

		next := askPasswordMsg
		if errors.Is(err, service.ErrInvalidEmail) {
			chatSession.Form.Email = ""
			chatSession.State = model.ExpectingLoginEmail
			next = askEmailMsg
		}
		if err := ctrl.saveSession(ctx, c, chatSession); err != nil {
			return c.Send(telebotConverter.InternalErrMsg)
		}
		return c.Send(fmt.Sprintf("⚠️ %s\n\n%s", html.EscapeString(telebotConverter.ErrorText(err)), next), tele.ModeHTML)
	}

	c.Set("session", signedIn)
	_ = c.Send("✅ Logged in as "+html.EscapeString(signedIn.Email), tele.ModeHTML)

	return ctrl.showDashboard(ctx, c, false)
}
