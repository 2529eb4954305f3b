package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/crypto_portfolio_bot/data/session"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/converter/dashboardConverter"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type PortfolioApi interface {
	Register(ctx context.Context, email, password string) (model.Account, error)
	Login(ctx context.Context, email, password string) (model.Token, error)
	Logout(ctx context.Context, token string) error
	GetPortfolio(ctx context.Context, token string) ([]model.PortfolioEntry, error)
	GetAssets(ctx context.Context, token string) ([]model.Asset, error)
	GetWalletBalance(ctx context.Context, token string) (model.Wallet, error)
	Deposit(ctx context.Context, token string, amount decimal.Decimal) (model.Wallet, error)
	SubmitTransaction(ctx context.Context, token string, direction model.Direction, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error)
}

type Session interface {
	GetSession(ctx context.Context, key string) (model.Session, error)
	SetSession(ctx context.Context, key string, session model.Session) error
	DeleteSession(ctx context.Context, key string) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, dashboard model.Dashboard) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type PortfolioService struct {
	api             PortfolioApi
	session         Session
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	fileLimit       int
	validate        *validator.Validate
}

// New wires the service. cloudStorage may be nil, then oversized reports fail with ErrReportTooLarge.
func New(api PortfolioApi, session Session, reportGenerator ReportGenerator, cloudStorage CloudStorage, fileLimitInBytes int) *PortfolioService {
	return &PortfolioService{
		api:             api,
		session:         session,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
		fileLimit:       fileLimitInBytes,
		validate:        validator.New(),
	}
}

func sessionKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (s *PortfolioService) validateCredentials(email, password string) error {
	if err := s.validate.Var(strings.TrimSpace(email), "required,email"); err != nil {
		return service.ErrInvalidEmail
	}
	if password == "" {
		return service.ErrEmptyPassword
	}
	return nil
}

// GetSession loads the chat session; a chat never seen before gets an empty one.
func (s *PortfolioService) GetSession(ctx context.Context, chatID int64) (model.Session, error) {
	chatSession, err := s.session.GetSession(ctx, sessionKey(chatID))
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return model.Session{}, err
	}
	return chatSession, nil
}

func (s *PortfolioService) SaveSession(ctx context.Context, chatID int64, chatSession model.Session) error {
	return s.session.SetSession(ctx, sessionKey(chatID), chatSession)
}

// GetAccount returns the session of a signed-in chat or ErrNotAuthenticated.
func (s *PortfolioService) GetAccount(ctx context.Context, chatID int64) (model.Session, error) {
	chatSession, err := s.GetSession(ctx, chatID)
	if err != nil {
		return model.Session{}, err
	}
	if !chatSession.IsAuthenticated() {
		return model.Session{}, service.ErrNotAuthenticated
	}
	return chatSession, nil
}

// checkAuth drops the stored credentials once the backend rejects them.
func (s *PortfolioService) checkAuth(ctx context.Context, chatID int64, err error) error {
	if err == nil || !errors.Is(err, externalApi.ErrUnauthorized) {
		return err
	}

	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Warn("backend rejected token, signing out", slog.String("rqID", rqID), slog.Int64("chatID", chatID))

	if delErr := s.session.DeleteSession(ctx, sessionKey(chatID)); delErr != nil {
		slog.Error("got error from session.DeleteSession", slog.String("rqID", rqID), slog.String("err", delErr.Error()))
	}
	return fmt.Errorf("%w: %w", service.ErrUnauthorized, err)
}

func (s *PortfolioService) Register(ctx context.Context, email, password, confirmPassword string) (model.Account, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Register"

	slog.Debug("Register start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("Register finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	email = strings.TrimSpace(email)
	if err := s.validateCredentials(email, password); err != nil {
		return model.Account{}, err
	}
	if password != confirmPassword {
		return model.Account{}, service.ErrPasswordsMismatch
	}

	account, err := s.api.Register(ctx, email, password)
	if err != nil {
		slog.Warn("got error from api.Register", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Account{}, err
	}

	return account, nil
}

// Login obtains a token and persists it with the email for the chat.
func (s *PortfolioService) Login(ctx context.Context, chatID int64, email, password string) (model.Session, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Login"

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Login finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	email = strings.TrimSpace(email)
	if err := s.validateCredentials(email, password); err != nil {
		return model.Session{}, err
	}

	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		slog.Warn("got error from api.Login", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	chatSession, err := s.GetSession(ctx, chatID)
	if err != nil {
		return model.Session{}, err
	}

	chatSession.SignIn(token, email)
	err = s.SaveSession(ctx, chatID, chatSession)
	if err != nil {
		slog.Error("got error from session.SetSession", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Session{}, err
	}

	return chatSession, nil
}

// Logout tells the backend when possible and always clears the chat session.
func (s *PortfolioService) Logout(ctx context.Context, chatID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Logout"

	chatSession, err := s.GetSession(ctx, chatID)
	if err != nil {
		return err
	}

	if chatSession.IsAuthenticated() {
		if err := s.api.Logout(ctx, chatSession.Token); err != nil {
			slog.Warn("got error from api.Logout", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	err = s.session.DeleteSession(ctx, sessionKey(chatID))
	if err != nil {
		slog.Error("got error from session.DeleteSession", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// Dashboard refetches portfolio, catalog and balance in parallel and builds the view.
// A failed balance read leaves the balance unknown instead of failing the dashboard.
func (s *PortfolioService) Dashboard(ctx context.Context, chatID int64) (model.Dashboard, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Dashboard"

	slog.Debug("Dashboard start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("Dashboard finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	chatSession, err := s.GetAccount(ctx, chatID)
	if err != nil {
		return model.Dashboard{}, err
	}

	var (
		entries    []model.PortfolioEntry
		assets     []model.Asset
		wallet     model.Wallet
		balanceErr error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entries, err = s.api.GetPortfolio(gCtx, chatSession.Token)
		return err
	})
	g.Go(func() (err error) {
		assets, err = s.api.GetAssets(gCtx, chatSession.Token)
		return err
	})
	g.Go(func() error {
		wallet, balanceErr = s.api.GetWalletBalance(gCtx, chatSession.Token)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("can't fetch dashboard data", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Dashboard{}, s.checkAuth(ctx, chatID, err)
	}

	if balanceErr != nil {
		slog.Warn("can't fetch wallet balance", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", balanceErr.Error()))
		if errors.Is(balanceErr, externalApi.ErrUnauthorized) {
			return model.Dashboard{}, s.checkAuth(ctx, chatID, balanceErr)
		}
	}

	dashboard := dashboardConverter.BuildDashboard(entries, assets, wallet.Balance)
	dashboard.Username = utils.GenerateUsername(chatSession.Email)
	dashboard.BalanceKnown = balanceErr == nil

	return dashboard, nil
}

// TradeTarget reads fresh asset price, holding and balance for the buy/sell dialog.
func (s *PortfolioService) TradeTarget(ctx context.Context, chatID, assetID int64) (model.TradeTarget, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.TradeTarget"

	chatSession, err := s.GetAccount(ctx, chatID)
	if err != nil {
		return model.TradeTarget{}, err
	}

	var (
		entries []model.PortfolioEntry
		assets  []model.Asset
		wallet  model.Wallet
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		entries, err = s.api.GetPortfolio(gCtx, chatSession.Token)
		return err
	})
	g.Go(func() (err error) {
		assets, err = s.api.GetAssets(gCtx, chatSession.Token)
		return err
	})
	g.Go(func() (err error) {
		wallet, err = s.api.GetWalletBalance(gCtx, chatSession.Token)
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("can't fetch trade target", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TradeTarget{}, s.checkAuth(ctx, chatID, err)
	}

	target := model.TradeTarget{Balance: wallet.Balance}
	found := false
	for _, asset := range assets {
		if asset.ID == assetID {
			target.Asset = asset
			found = true
			break
		}
	}
	if !found {
		slog.Warn("asset not found in catalog", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("assetID", assetID))
		return model.TradeTarget{}, service.ErrAssetNotFound
	}

	if entry, ok := model.FindEntry(entries, assetID); ok {
		target.Owned = entry.Quantity
	}

	return target, nil
}

func (s *PortfolioService) WalletBalance(ctx context.Context, chatID int64) (model.Wallet, error) {
	chatSession, err := s.GetAccount(ctx, chatID)
	if err != nil {
		return model.Wallet{}, err
	}

	wallet, err := s.api.GetWalletBalance(ctx, chatSession.Token)
	if err != nil {
		slog.Warn("got error from api.GetWalletBalance", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()))
		return model.Wallet{}, s.checkAuth(ctx, chatID, err)
	}
	return wallet, nil
}

func (s *PortfolioService) Deposit(ctx context.Context, chatID int64, amount decimal.Decimal) (model.Wallet, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Deposit"

	chatSession, err := s.GetAccount(ctx, chatID)
	if err != nil {
		return model.Wallet{}, err
	}

	slog.Info("deposit", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID), slog.String("amount", amount.String()))

	wallet, err := s.api.Deposit(ctx, chatSession.Token, amount)
	if err != nil {
		slog.Warn("got error from api.Deposit", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Wallet{}, s.checkAuth(ctx, chatID, err)
	}

	return wallet, nil
}

func (s *PortfolioService) Trade(
	ctx context.Context,
	chatID int64,
	direction model.Direction,
	assetID int64,
	quantity decimal.Decimal,
) (model.TransactionResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.Trade"

	chatSession, err := s.GetAccount(ctx, chatID)
	if err != nil {
		return model.TransactionResult{}, err
	}

	slog.Info(
		"trade",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("chatID", chatID),
		slog.String("direction", string(direction)),
		slog.Int64("assetID", assetID),
		slog.String("quantity", quantity.String()),
	)

	result, err := s.api.SubmitTransaction(ctx, chatSession.Token, direction, assetID, quantity)
	if err != nil {
		slog.Warn("got error from api.SubmitTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.TransactionResult{}, fmt.Errorf("%w: %w", service.ErrAssetNotFound, err)
		}
		return model.TransactionResult{}, s.checkAuth(ctx, chatID, err)
	}

	return result, nil
}

// ExportReport renders the dashboard as a spreadsheet. Files above the
// telegram limit are uploaded to cloud storage and returned as a link.
func (s *PortfolioService) ExportReport(ctx context.Context, chatID int64) (model.Report, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ExportReport"

	slog.Debug("ExportReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	defer func() {
		slog.Debug("ExportReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("chatID", chatID))
	}()

	dashboard, err := s.Dashboard(ctx, chatID)
	if err != nil {
		return model.Report{}, err
	}

	fileBytes, ext, err := s.reportGenerator.Generate(ctx, dashboard)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Report{}, err
	}

	report := model.Report{
		FileName: fmt.Sprintf("portfolio_%s_%s%s", dashboard.Username, time.Now().UTC().Format("20060102_150405"), ext),
	}

	if s.fileLimit <= 0 || len(fileBytes) <= s.fileLimit {
		report.File = fileBytes
		return report, nil
	}

	if s.cloudStorage == nil {
		slog.Warn("report too large and cloud storage disabled", slog.String("rqID", rqID), slog.String("op", op), slog.Int("size", len(fileBytes)))
		return model.Report{}, service.ErrReportTooLarge
	}

	report.Link, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), report.FileName)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Report{}, err
	}

	return report, nil
}

// CleanupReports removes expired uploads; scheduled as a periodic job.
func (s *PortfolioService) CleanupReports(ctx context.Context) error {
	if s.cloudStorage == nil {
		return nil
	}
	return s.cloudStorage.DeleteOldFiles(ctx)
}
