package portfolioApi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KotFed0t/crypto_portfolio_bot/config"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/shopspring/decimal"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *PortfolioApi {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.Timeout = 5 * time.Second
	cfg.API.PortfolioApi.Url = srv.URL
	return New(cfg)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestLoginSendsCredentials(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("login must not carry Authorization, got %q", got)
		}
		var body credentialsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Email != "alice@example.com" || body.Password != "secret" {
			t.Errorf("unexpected credentials %+v", body)
		}
		writeJSON(w, http.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
	})

	token, err := api.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() unexpected error = %v", err)
	}
	if token.AccessToken != "tok-1" || token.TokenType != "bearer" {
		t.Errorf("Login() = %+v", token)
	}
}

func TestAuthenticatedRequestsCarryBearerToken(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		switch r.URL.Path {
		case "/portfolios/":
			writeJSON(w, http.StatusOK, `[{"id":7,"user_id":1,"asset_id":2,"quantity":1.5,"average_buy_price":20000}]`)
		case "/assets/":
			writeJSON(w, http.StatusOK, `[{"id":2,"symbol":"BTC","name":"Bitcoin","current_price":30000.5}]`)
		case "/wallet/balance":
			writeJSON(w, http.StatusOK, `{"user_id":1,"balance":"150.25","currency":"USD"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	entries, err := api.GetPortfolio(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetPortfolio() unexpected error = %v", err)
	}
	if len(entries) != 1 || entries[0].AssetID != 2 || !entries[0].Quantity.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("GetPortfolio() = %+v", entries)
	}

	assets, err := api.GetAssets(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetAssets() unexpected error = %v", err)
	}
	if len(assets) != 1 || assets[0].Symbol != "BTC" || !assets[0].CurrentPrice.Equal(decimal.RequireFromString("30000.5")) {
		t.Errorf("GetAssets() = %+v", assets)
	}

	wallet, err := api.GetWalletBalance(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetWalletBalance() unexpected error = %v", err)
	}
	if !wallet.Balance.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("GetWalletBalance() balance = %s", wallet.Balance)
	}
}

func TestSubmitTransactionRoutesByDirection(t *testing.T) {
	var gotPath string
	var gotBody transactionBody
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, `{"asset_id":3,"quantity":0.5,"average_buy_price":10,"type":"sell","price":12,"date":"2024-12-19T10:00:00"}`)
	})

	res, err := api.Sell(context.Background(), "tok", 3, decimal.RequireFromString("0.5"))
	if err != nil {
		t.Fatalf("Sell() unexpected error = %v", err)
	}
	if gotPath != "/transactions/sell" {
		t.Errorf("path = %s, want /transactions/sell", gotPath)
	}
	if gotBody.AssetID != 3 || gotBody.Quantity != 0.5 {
		t.Errorf("body = %+v", gotBody)
	}
	if res.Type != model.Sell || res.Balance != nil {
		t.Errorf("Sell() = %+v", res)
	}

	_, err = api.SubmitTransaction(context.Background(), "tok", model.Direction("hold"), 3, decimal.NewFromInt(1))
	if err == nil {
		t.Error("SubmitTransaction() with unknown direction must fail")
	}
}

func TestDepositSendsNumericAmount(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if amount, ok := raw["amount"].(float64); !ok || amount != 100 {
			t.Errorf("amount = %#v, want number 100", raw["amount"])
		}
		writeJSON(w, http.StatusOK, `{"user_id":1,"balance":150,"currency":"USD"}`)
	})

	wallet, err := api.Deposit(context.Background(), "tok", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Deposit() unexpected error = %v", err)
	}
	if !wallet.Balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Deposit() balance = %s, want 150", wallet.Balance)
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"Email already registered"}`, "Email already registered"},
		{"detail list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"value is not a valid email"}]}`, "field required; value is not a valid email"},
		{"no detail", http.StatusInternalServerError, `{"error":"boom"}`, "Registration failed"},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "Registration failed"},
		{"empty detail", http.StatusBadRequest, `{"detail":""}`, "Registration failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := api.Register(context.Background(), "a@b.c", "pw")
			var reqErr *externalApi.RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("Register() error = %v, want *RequestError", err)
			}
			if reqErr.Message != tt.wantMsg || reqErr.StatusCode != tt.status {
				t.Errorf("RequestError = {%d %q}, want {%d %q}", reqErr.StatusCode, reqErr.Message, tt.status, tt.wantMsg)
			}
		})
	}
}

func TestUnauthorizedIsRecognisable(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail":"Could not validate credentials"}`)
	})

	_, err := api.GetAssets(context.Background(), "expired")
	if !errors.Is(err, externalApi.ErrUnauthorized) {
		t.Errorf("GetAssets() error = %v, want ErrUnauthorized", err)
	}
	if err.Error() != "Could not validate credentials" {
		t.Errorf("GetAssets() message = %q", err.Error())
	}
}

func TestDeletePortfolioEntryAcceptsEmptyBody(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/portfolios/12" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := api.DeletePortfolioEntry(context.Background(), "tok", 12); err != nil {
		t.Errorf("DeletePortfolioEntry() unexpected error = %v", err)
	}
}

func TestUpdatePortfolioEntry(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/portfolios/4" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body portfolioEntryBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.AssetID != 2 || body.Quantity != 3 || body.AverageBuyPrice != 15.5 {
			t.Errorf("body = %+v", body)
		}
		writeJSON(w, http.StatusOK, `{"id":4,"user_id":1,"asset_id":2,"quantity":3,"average_buy_price":15.5}`)
	})

	entry, err := api.UpdatePortfolioEntry(context.Background(), "tok", 4, model.PortfolioEntryChange{
		AssetID:         2,
		Quantity:        decimal.NewFromInt(3),
		AverageBuyPrice: decimal.RequireFromString("15.5"),
	})
	if err != nil {
		t.Fatalf("UpdatePortfolioEntry() unexpected error = %v", err)
	}
	if entry.ID != 4 {
		t.Errorf("UpdatePortfolioEntry() = %+v", entry)
	}
}
