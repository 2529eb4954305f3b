package portfolioApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/KotFed0t/crypto_portfolio_bot/config"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/externalApi"
	"github.com/KotFed0t/crypto_portfolio_bot/internal/model"
	"github.com/KotFed0t/crypto_portfolio_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

type PortfolioApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *PortfolioApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.PortfolioApi.Url)
	return &PortfolioApi{client: client}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type portfolioEntryBody struct {
	AssetID         int64   `json:"asset_id"`
	Quantity        float64 `json:"quantity"`
	AverageBuyPrice float64 `json:"average_buy_price"`
}

type transactionBody struct {
	AssetID  int64   `json:"asset_id"`
	Quantity float64 `json:"quantity"`
}

type depositBody struct {
	Amount float64 `json:"amount"`
}

// call describes one backend request. result may be nil when the body is ignored.
type call struct {
	op       string
	method   string
	url      string
	token    string
	body     any
	result   any
	fallback string
}

func (a *PortfolioApi) do(ctx context.Context, c call) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start PortfolioApi request", slog.String("rqID", rqID), slog.String("op", c.op), slog.String("url", c.url))

	rq := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")

	if c.token != "" {
		rq.SetAuthToken(c.token)
	}

	if c.body != nil {
		rq.SetHeader("Content-Type", "application/json").SetBody(c.body)
	}

	resp, err := rq.Execute(c.method, c.url)
	if err != nil {
		slog.Error("error while dialing PortfolioApi", slog.String("rqID", rqID), slog.String("op", c.op), slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", c.op, err)
	}

	if !resp.IsSuccess() {
		reqErr := &externalApi.RequestError{
			StatusCode: resp.StatusCode(),
			Message:    detailMessage(resp.Body(), c.fallback),
		}
		slog.Warn(
			"PortfolioApi responded with error",
			slog.String("rqID", rqID),
			slog.String("op", c.op),
			slog.Int("status", reqErr.StatusCode),
			slog.String("detail", reqErr.Message),
		)
		return reqErr
	}

	if c.result != nil && len(resp.Body()) > 0 {
		err = json.Unmarshal(resp.Body(), c.result)
		if err != nil {
			slog.Error("can't unmarshall PortfolioApi response", slog.String("rqID", rqID), slog.String("op", c.op), slog.String("err", err.Error()))
			return fmt.Errorf("%s: %w", c.op, err)
		}
	}

	slog.Debug("PortfolioApi request complete", slog.String("rqID", rqID), slog.String("op", c.op))

	return nil
}

// detailMessage pulls the human readable "detail" out of an error body.
// Validation failures carry a list of {msg} objects instead of a string.
func detailMessage(body []byte, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		if text == "" {
			return fallback
		}
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	return fallback
}

func (a *PortfolioApi) Register(ctx context.Context, email, password string) (model.Account, error) {
	account := model.Account{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.Register",
		method:   http.MethodPost,
		url:      "/auth/register",
		body:     credentialsBody{Email: email, Password: password},
		result:   &account,
		fallback: "Registration failed",
	})
	return account, err
}

func (a *PortfolioApi) Login(ctx context.Context, email, password string) (model.Token, error) {
	token := model.Token{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.Login",
		method:   http.MethodPost,
		url:      "/auth/login",
		body:     credentialsBody{Email: email, Password: password},
		result:   &token,
		fallback: "Login failed",
	})
	return token, err
}

func (a *PortfolioApi) Logout(ctx context.Context, token string) error {
	return a.do(ctx, call{
		op:       "PortfolioApi.Logout",
		method:   http.MethodPost,
		url:      "/auth/logout",
		token:    token,
		body:     struct{}{},
		fallback: "Logout failed",
	})
}

func (a *PortfolioApi) GetPortfolio(ctx context.Context, token string) ([]model.PortfolioEntry, error) {
	entries := make([]model.PortfolioEntry, 0)
	err := a.do(ctx, call{
		op:       "PortfolioApi.GetPortfolio",
		method:   http.MethodGet,
		url:      "/portfolios/",
		token:    token,
		result:   &entries,
		fallback: "Failed to fetch portfolio",
	})
	return entries, err
}

func (a *PortfolioApi) CreateOrUpdatePortfolioEntry(ctx context.Context, token string, change model.PortfolioEntryChange) (model.PortfolioEntry, error) {
	entry := model.PortfolioEntry{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.CreateOrUpdatePortfolioEntry",
		method:   http.MethodPost,
		url:      "/portfolios/",
		token:    token,
		body:     newPortfolioEntryBody(change),
		result:   &entry,
		fallback: "Failed to update portfolio",
	})
	return entry, err
}

func (a *PortfolioApi) UpdatePortfolioEntry(ctx context.Context, token string, entryID int64, change model.PortfolioEntryChange) (model.PortfolioEntry, error) {
	entry := model.PortfolioEntry{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.UpdatePortfolioEntry",
		method:   http.MethodPut,
		url:      fmt.Sprintf("/portfolios/%d", entryID),
		token:    token,
		body:     newPortfolioEntryBody(change),
		result:   &entry,
		fallback: "Failed to update portfolio entry",
	})
	return entry, err
}

func (a *PortfolioApi) DeletePortfolioEntry(ctx context.Context, token string, entryID int64) error {
	return a.do(ctx, call{
		op:       "PortfolioApi.DeletePortfolioEntry",
		method:   http.MethodDelete,
		url:      fmt.Sprintf("/portfolios/%d", entryID),
		token:    token,
		fallback: "Failed to delete portfolio entry",
	})
}

func (a *PortfolioApi) GetAssets(ctx context.Context, token string) ([]model.Asset, error) {
	assets := make([]model.Asset, 0)
	err := a.do(ctx, call{
		op:       "PortfolioApi.GetAssets",
		method:   http.MethodGet,
		url:      "/assets/",
		token:    token,
		result:   &assets,
		fallback: "Failed to fetch assets",
	})
	return assets, err
}

func (a *PortfolioApi) Buy(ctx context.Context, token string, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error) {
	return a.SubmitTransaction(ctx, token, model.Buy, assetID, quantity)
}

func (a *PortfolioApi) Sell(ctx context.Context, token string, assetID int64, quantity decimal.Decimal) (model.TransactionResult, error) {
	return a.SubmitTransaction(ctx, token, model.Sell, assetID, quantity)
}

func (a *PortfolioApi) SubmitTransaction(
	ctx context.Context,
	token string,
	direction model.Direction,
	assetID int64,
	quantity decimal.Decimal,
) (model.TransactionResult, error) {
	if !direction.Valid() {
		return model.TransactionResult{}, fmt.Errorf("unknown transaction direction %q", direction)
	}

	fallback := "Failed to buy asset"
	if direction == model.Sell {
		fallback = "Failed to sell asset"
	}

	result := model.TransactionResult{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.SubmitTransaction",
		method:   http.MethodPost,
		url:      "/transactions/" + string(direction),
		token:    token,
		body:     transactionBody{AssetID: assetID, Quantity: quantity.InexactFloat64()},
		result:   &result,
		fallback: fallback,
	})
	return result, err
}

func (a *PortfolioApi) GetWalletBalance(ctx context.Context, token string) (model.Wallet, error) {
	wallet := model.Wallet{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.GetWalletBalance",
		method:   http.MethodGet,
		url:      "/wallet/balance",
		token:    token,
		result:   &wallet,
		fallback: "Failed to fetch wallet balance",
	})
	return wallet, err
}

func (a *PortfolioApi) Deposit(ctx context.Context, token string, amount decimal.Decimal) (model.Wallet, error) {
	wallet := model.Wallet{}
	err := a.do(ctx, call{
		op:       "PortfolioApi.Deposit",
		method:   http.MethodPost,
		url:      "/wallet/deposit",
		token:    token,
		body:     depositBody{Amount: amount.InexactFloat64()},
		result:   &wallet,
		fallback: "Deposit failed",
	})
	return wallet, err
}

func newPortfolioEntryBody(change model.PortfolioEntryChange) portfolioEntryBody {
	return portfolioEntryBody{
		AssetID:         change.AssetID,
		Quantity:        change.Quantity.InexactFloat64(),
		AverageBuyPrice: change.AverageBuyPrice.InexactFloat64(),
	}
}
