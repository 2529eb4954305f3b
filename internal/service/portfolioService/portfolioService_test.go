package portfolioService

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/KotFed0t/crypto_portfolio_bot/data/session"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/service"
	"github.com/shopspring/decimal"
)

type fakeApi struct {
	mu           sync.Mutex
	token        model.Token
	loginErr     error
	registerErr  error
	entries      []model.PortfolioEntry
	assets       []model.Asset
	wallet       model.Wallet
	portfolioErr error
	balanceErr   error
	depositErr   error
	tradeErr     error
	logoutCalls  int
	registered   []string
	trades       []model.Direction
	seenTokens   []string
}

func (f *fakeApi) seen(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenTokens = append(f.seenTokens, token)
}

func (f *fakeApi) Register(ctx context.Context, email, password string) (model.Account, error) {
	f.registered = append(f.registered, email)
	return model.Account{ID: 1, Email: email}, f.registerErr
}

func (f *fakeApi) Login(ctx context.Context, email, password string) (model.Token, error) {
	return f.token, f.loginErr
}

func (f *fakeApi) Logout(ctx context.Context, token string) error {
	f.logoutCalls++
	return errors.New("Logout failed")
}

func (f *fakeApi) GetPortfolio(ctx context.Context, token string) ([]model.PortfolioEntry, error) {
	f.seen(token)
	return f.entries, f.portfolioErr
}

func (f *fakeApi) GetAssets(ctx context.Context, token string) ([]model.Asset, error) {
	f.seen(token)
	return f.assets, nil
}

func (f *fakeApi) GetWalletBalance(ctx context.Context, token string) (model.Wallet, error) {
	f.seen(token)
	return f.wallet, f.balanceErr
}

func (f *fakeApi) Deposit(ctx context.Context, token string, amount decimal.Decimal) (model.Wallet, error) {
	if f.depositErr != nil {
		return model.Wallet{}, f.depositErr
	}
	return model.Wallet{Balance: f.wallet.Balance.Add(amount)}, nil
}

func (f *fakeApi) SubmitTransaction(ctx context.Context, token string, direction model.Direction, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error) {
	if f.tradeErr != nil {
		return model.TransactionResult{}, f.tradeErr
	}
	f.trades = append(f.trades, direction)
	return model.TransactionResult{AssetID: assetID, Quantity: quantity, Type: direction}, nil
}

type memorySession struct {
	mu    sync.Mutex
	items map[string]model.Session
}

func newMemorySession() *memorySession {
	return &memorySession{items: map[string]model.Session{}}
}

func (m *memorySession) GetSession(ctx context.Context, key string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[key]
	if !ok {
		return model.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (m *memorySession) SetSession(ctx context.Context, key string, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = s
	return nil
}

func (m *memorySession) DeleteSession(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

type fakeGenerator struct {
	size int
}

func (g fakeGenerator) Generate(ctx context.Context, dashboard model.Dashboard) ([]byte, string, error) {
	return make([]byte, g.size), ".xlsx", nil
}

type fakeStorage struct {
	uploaded []string
	cleaned  int
}

func (s *fakeStorage) UploadFile(ctx context.Context, reader io.Reader, filename string) (string, error) {
	s.uploaded = append(s.uploaded, filename)
	return "https://drive.example/" + filename, nil
}

func (s *fakeStorage) DeleteOldFiles(ctx context.Context) error {
	s.cleaned++
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const chatID int64 = 100

func signedIn(t *testing.T, api *fakeApi, sessions *memorySession) *PortfolioService {
	t.Helper()
	api.token = model.Token{AccessToken: "tok-1", TokenType: "bearer"}
	srv := New(api, sessions, fakeGenerator{size: 10}, nil, 100)
	if _, err := srv.Login(context.Background(), chatID, "alice@example.com", "secret"); err != nil {
		t.Fatalf("Login() unexpected error = %v", err)
	}
	return srv
}

func TestLoginPersistsCredentials(t *testing.T) {
	sessions := newMemorySession()
	sessions.items["100"] = model.Session{State: model.ExpectingLoginPassword, Form: model.LoginForm{Email: "alice@example.com"}}
	srv := signedIn(t, &fakeApi{}, sessions)

	got, err := srv.GetSession(context.Background(), chatID)
	if err != nil {
		t.Fatalf("GetSession() unexpected error = %v", err)
	}
	if !got.IsAuthenticated() || got.Token != "tok-1" || got.TokenType != "bearer" || got.Email != "alice@example.com" {
		t.Errorf("session after login = %+v", got)
	}
	if got.State != model.DefaultState || got.Form != (model.LoginForm{}) {
		t.Errorf("login must close the form, got %+v", got)
	}
}

func TestLoginValidation(t *testing.T) {
	api := &fakeApi{}
	srv := New(api, newMemorySession(), nil, nil, 0)

	if _, err := srv.Login(context.Background(), chatID, "not-an-email", "pw"); !errors.Is(err, service.ErrInvalidEmail) {
		t.Errorf("Login() with bad email error = %v", err)
	}
	if _, err := srv.Login(context.Background(), chatID, "a@b.io", ""); !errors.Is(err, service.ErrEmptyPassword) {
		t.Errorf("Login() with empty password error = %v", err)
	}

	api.loginErr = &externalApi.RequestError{StatusCode: 401, Message: "Invalid email or password"}
	_, err := srv.Login(context.Background(), chatID, "a@b.io", "pw")
	if err == nil || err.Error() != "Invalid email or password" {
		t.Errorf("Login() error = %v, want backend detail", err)
	}
}

func TestRegister(t *testing.T) {
	api := &fakeApi{}
	srv := New(api, newMemorySession(), nil, nil, 0)
	ctx := context.Background()

	if _, err := srv.Register(ctx, "bob@example.com", "pw1", "pw2"); !errors.Is(err, service.ErrPasswordsMismatch) {
		t.Errorf("Register() mismatch error = %v", err)
	}
	if len(api.registered) != 0 {
		t.Fatal("backend called despite mismatching passwords")
	}

	if _, err := srv.Register(ctx, " bob@example.com ", "pw", "pw"); err != nil {
		t.Fatalf("Register() unexpected error = %v", err)
	}
	if len(api.registered) != 1 || api.registered[0] != "bob@example.com" {
		t.Errorf("registered = %v", api.registered)
	}
}

func TestLogoutClearsSessionEvenIfBackendFails(t *testing.T) {
	api := &fakeApi{}
	sessions := newMemorySession()
	srv := signedIn(t, api, sessions)

	if err := srv.Logout(context.Background(), chatID); err != nil {
		t.Fatalf("Logout() unexpected error = %v", err)
	}
	if api.logoutCalls != 1 {
		t.Errorf("backend logout calls = %d, want 1", api.logoutCalls)
	}
	got, _ := srv.GetSession(context.Background(), chatID)
	if got.IsAuthenticated() {
		t.Error("session still authenticated after logout")
	}
}

func TestDashboard(t *testing.T) {
	api := &fakeApi{
		entries: []model.PortfolioEntry{{AssetID: 1, Quantity: d("2"), AverageBuyPrice: d("100")}},
		assets:  []model.Asset{{ID: 1, Symbol: "BTC", Name: "Bitcoin", CurrentPrice: d("150")}},
		wallet:  model.Wallet{Balance: d("50")},
	}
	srv := signedIn(t, api, newMemorySession())

	dash, err := srv.Dashboard(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Dashboard() unexpected error = %v", err)
	}
	if dash.Username != "User214577" {
		t.Errorf("Username = %q, want User214577", dash.Username)
	}
	if !dash.BalanceKnown || !dash.Balance.Equal(d("50")) {
		t.Errorf("balance = %s known=%v", dash.Balance, dash.BalanceKnown)
	}
	if !dash.TotalValue.Equal(d("300")) || len(dash.Owned) != 1 || !dash.Owned[0].Change.Equal(d("50")) {
		t.Errorf("Dashboard() = %+v", dash)
	}
	for _, token := range api.seenTokens {
		if token != "tok-1" {
			t.Errorf("request sent with token %q", token)
		}
	}
}

func TestDashboardToleratesBalanceFailure(t *testing.T) {
	api := &fakeApi{balanceErr: errors.New("Failed to fetch wallet balance")}
	srv := signedIn(t, api, newMemorySession())

	dash, err := srv.Dashboard(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Dashboard() unexpected error = %v", err)
	}
	if dash.BalanceKnown {
		t.Error("BalanceKnown = true after a failed balance read")
	}
}

func TestDashboardRequiresLogin(t *testing.T) {
	srv := New(&fakeApi{}, newMemorySession(), nil, nil, 0)
	if _, err := srv.Dashboard(context.Background(), chatID); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Errorf("Dashboard() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestRejectedTokenSignsOut(t *testing.T) {
	api := &fakeApi{portfolioErr: &externalApi.RequestError{StatusCode: 401, Message: "Could not validate credentials"}}
	sessions := newMemorySession()
	srv := signedIn(t, api, sessions)

	_, err := srv.Dashboard(context.Background(), chatID)
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Fatalf("Dashboard() error = %v, want ErrUnauthorized", err)
	}
	if _, ok := sessions.items["100"]; ok {
		t.Error("session kept after the backend rejected the token")
	}
}

func TestTradeTarget(t *testing.T) {
	api := &fakeApi{
		entries: []model.PortfolioEntry{{AssetID: 2, Quantity: d("4"), AverageBuyPrice: d("10")}},
		assets: []model.Asset{
			{ID: 1, Symbol: "BTC", CurrentPrice: d("100")},
			{ID: 2, Symbol: "ETH", CurrentPrice: d("50")},
		},
		wallet: model.Wallet{Balance: d("100")},
	}
	srv := signedIn(t, api, newMemorySession())
	ctx := context.Background()

	target, err := srv.TradeTarget(ctx, chatID, 2)
	if err != nil {
		t.Fatalf("TradeTarget() unexpected error = %v", err)
	}
	if target.Asset.Symbol != "ETH" || !target.Owned.Equal(d("4")) || !target.Balance.Equal(d("100")) {
		t.Errorf("TradeTarget() = %+v", target)
	}

	target, _ = srv.TradeTarget(ctx, chatID, 1)
	if !target.Owned.IsZero() {
		t.Errorf("Owned for unheld asset = %s", target.Owned)
	}

	if _, err := srv.TradeTarget(ctx, chatID, 9); !errors.Is(err, service.ErrAssetNotFound) {
		t.Errorf("TradeTarget() for unknown asset error = %v", err)
	}
}

func TestDepositAndTrade(t *testing.T) {
	api := &fakeApi{wallet: model.Wallet{Balance: d("50")}}
	srv := signedIn(t, api, newMemorySession())
	ctx := context.Background()

	wallet, err := srv.Deposit(ctx, chatID, d("100"))
	if err != nil {
		t.Fatalf("Deposit() unexpected error = %v", err)
	}
	if !wallet.Balance.Equal(d("150")) {
		t.Errorf("Deposit() balance = %s, want 150", wallet.Balance)
	}

	result, err := srv.Trade(ctx, chatID, model.Sell, 3, d("1"))
	if err != nil {
		t.Fatalf("Trade() unexpected error = %v", err)
	}
	if result.Type != model.Sell || len(api.trades) != 1 {
		t.Errorf("Trade() = %+v, trades = %v", result, api.trades)
	}
}

func TestTradeUnknownAsset(t *testing.T) {
	api := &fakeApi{tradeErr: &externalApi.RequestError{StatusCode: http.StatusNotFound, Message: "Asset not found"}}
	srv := signedIn(t, api, newMemorySession())

	_, err := srv.Trade(context.Background(), chatID, model.Buy, 42, d("1"))
	if !errors.Is(err, service.ErrAssetNotFound) {
		t.Errorf("Trade() error = %v, want ErrAssetNotFound", err)
	}
	if errors.Is(err, service.ErrUnauthorized) {
		t.Error("a missing asset must not sign the chat out")
	}
}

func TestExportReport(t *testing.T) {
	api := &fakeApi{}
	sessions := newMemorySession()
	signedIn(t, api, sessions)
	ctx := context.Background()

	small := New(api, sessions, fakeGenerator{size: 10}, nil, 100)
	report, err := small.ExportReport(ctx, chatID)
	if err != nil {
		t.Fatalf("ExportReport() unexpected error = %v", err)
	}
	if len(report.File) != 10 || report.Link != "" {
		t.Errorf("small report = %d bytes, link %q", len(report.File), report.Link)
	}

	noStorage := New(api, sessions, fakeGenerator{size: 200}, nil, 100)
	if _, err := noStorage.ExportReport(ctx, chatID); !errors.Is(err, service.ErrReportTooLarge) {
		t.Errorf("ExportReport() without storage error = %v", err)
	}

	storage := &fakeStorage{}
	withStorage := New(api, sessions, fakeGenerator{size: 200}, storage, 100)
	report, err = withStorage.ExportReport(ctx, chatID)
	if err != nil {
		t.Fatalf("ExportReport() unexpected error = %v", err)
	}
	if report.File != nil || report.Link == "" || len(storage.uploaded) != 1 {
		t.Errorf("large report = %+v, uploads = %v", report, storage.uploaded)
	}

	if err := withStorage.CleanupReports(ctx); err != nil || storage.cleaned != 1 {
		t.Errorf("CleanupReports() err = %v, cleaned = %d", err, storage.cleaned)
	}
	if err := noStorage.CleanupReports(ctx); err != nil {
		t.Errorf("CleanupReports() without storage error = %v", err)
	}
}

func TestWalletBalance(t *testing.T) {
	api := &fakeApi{wallet: model.Wallet{Balance: d("42.5"), Currency: "USD"}}
	sessions := newMemorySession()
	srv := signedIn(t, api, sessions)

	wallet, err := srv.WalletBalance(context.Background(), chatID)
	if err != nil {
		t.Fatalf("WalletBalance() unexpected error = %v", err)
	}
	if !wallet.Balance.Equal(d("42.5")) {
		t.Errorf("WalletBalance() = %s, want 42.5", wallet.Balance)
	}

	api.balanceErr = &externalApi.RequestError{StatusCode: 401, Message: "expired"}
	if _, err := srv.WalletBalance(context.Background(), chatID); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("WalletBalance() error = %v, want ErrUnauthorized", err)
	}
	if _, err := srv.GetAccount(context.Background(), chatID); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Errorf("GetAccount() after 401 error = %v, want ErrNotAuthenticated", err)
	}
}
