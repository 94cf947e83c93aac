package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/metrics"
	"github.com/Nzyazin/smartwallet/internal/core/middleware"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository/memory"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/Nzyazin/smartwallet/internal/server"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	cfg := usecase.LedgerConfig{
		OriginEntity: "Smart Wallet Ltd",
		PromoBalance: decimal.RequireFromString("50.00"),
		Currency:     "EUR",
	}
	services := server.NewServices(memory.NewStore(), cfg, usecase.Collaborators{Observer: metrics.NewLedger(reg)}, log)
	router := server.NewRouter(server.RouterConfig{Log: log, Registry: reg}, services.Handlers(log)...)
	return &api{t: t, router: router}
}

func (a *api) do(method, path string, actor uuid.UUID, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != uuid.Nil {
		req.Header.Set("X-User-ID", actor.String())
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (a *api) register(username string) usecase.Account {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/v1/users", uuid.Nil, `{"username":"`+username+`"}`)
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[usecase.Account](a.t, rr)
}

func TestLedgerOverHTTP(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	bob := a.register("bob")
	walletPath := "/api/v1/wallets/" + alice.Wallet.ID.String()

	t.Run("charge succeeds and then fails for insufficient funds", func(t *testing.T) {
		rr := a.do(http.MethodPost, walletPath+"/charge", alice.User.ID, `{"amount":"30,00","description":"Coffee beans"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		tx := decode[models.Transaction](t, rr)
		assert.Equal(t, models.TransactionSucceeded, tx.Status)
		assert.True(t, decimal.RequireFromString("20.00").Equal(tx.BalanceLeft))

		rr = a.do(http.MethodPost, walletPath+"/charge", alice.User.ID, `{"amount":"100","description":"Too much"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		tx = decode[models.Transaction](t, rr)
		assert.Equal(t, models.TransactionFailed, tx.Status)
		assert.Equal(t, usecase.ReasonInsufficientFunds, tx.Reason())
	})

	t.Run("top-up defaults to 20.00", func(t *testing.T) {
		rr := a.do(http.MethodPut, walletPath+"/top-up", alice.User.ID, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		tx := decode[models.Transaction](t, rr)
		assert.True(t, decimal.RequireFromString("20.00").Equal(tx.Amount))
		assert.True(t, decimal.RequireFromString("40.00").Equal(tx.BalanceLeft))
	})

	t.Run("transfer returns the receiver's deposit", func(t *testing.T) {
		body := `{"fromWalletId":"` + alice.Wallet.ID.String() + `","toUsername":"bob","amount":"10.50"}`
		rr := a.do(http.MethodPost, "/api/v1/transfers", alice.User.ID, body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		tx := decode[models.Transaction](t, rr)
		assert.Equal(t, models.TransactionDeposit, tx.Type)
		assert.Equal(t, bob.User.ID, tx.OwnerID)
		assert.True(t, decimal.RequireFromString("60.50").Equal(tx.BalanceLeft))
	})

	t.Run("wallet list carries recent activity", func(t *testing.T) {
		rr := a.do(http.MethodGet, "/api/v1/wallets", alice.User.ID, "")
		require.Equal(t, http.StatusOK, rr.Code)
		wallets := decode[[]models.WalletActivity](t, rr)
		require.Len(t, wallets, 1)
		assert.True(t, decimal.RequireFromString("29.50").Equal(wallets[0].Wallet.Balance))
		assert.Len(t, wallets[0].Transactions, 3)
	})

	t.Run("wallet limit follows the subscription", func(t *testing.T) {
		rr := a.do(http.MethodPost, "/api/v1/wallets", alice.User.ID, "")
		assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

		body := `{"walletId":"` + alice.Wallet.ID.String() + `","period":"monthly","tier":"premium"}`
		rr = a.do(http.MethodPost, "/api/v1/subscriptions", alice.User.ID, body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, models.TransactionSucceeded, decode[models.Transaction](t, rr).Status)

		rr = a.do(http.MethodPost, "/api/v1/wallets", alice.User.ID, "")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.True(t, decode[models.Wallet](t, rr).Balance.IsZero())

		rr = a.do(http.MethodGet, "/api/v1/subscriptions/history", alice.User.ID, "")
		require.Equal(t, http.StatusOK, rr.Code)
		history := decode[[]models.Subscription](t, rr)
		require.Len(t, history, 2)
		assert.Equal(t, models.TierPremium, history[0].Tier)
	})

	t.Run("status switch makes charges fail", func(t *testing.T) {
		rr := a.do(http.MethodPut, "/api/v1/wallets/"+bob.Wallet.ID.String()+"/status", bob.User.ID, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, models.WalletInactive, decode[models.Wallet](t, rr).Status)

		rr = a.do(http.MethodPost, "/api/v1/wallets/"+bob.Wallet.ID.String()+"/charge", bob.User.ID, `{"amount":"1"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		declined := decode[models.Transaction](t, rr)
		assert.Equal(t, usecase.ReasonWalletInactive, declined.Reason())
	})

	t.Run("transaction history is scoped to the caller", func(t *testing.T) {
		rr := a.do(http.MethodGet, "/api/v1/transactions", alice.User.ID, "")
		require.Equal(t, http.StatusOK, rr.Code)
		txs := decode[[]models.Transaction](t, rr)
		require.NotEmpty(t, txs)

		rr = a.do(http.MethodGet, "/api/v1/transactions/"+txs[0].ID.String(), alice.User.ID, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		rr = a.do(http.MethodGet, "/api/v1/transactions/"+txs[0].ID.String(), bob.User.ID, "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("contact update", func(t *testing.T) {
		rr := a.do(http.MethodPut, "/api/v1/users/me/contact", alice.User.ID, `{"email":"alice@example.com"}`)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		rr = a.do(http.MethodPut, "/api/v1/users/me/contact", uuid.New(), `{"email":"x@example.com"}`)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	bob := a.register("bob")
	aliceWallet := "/api/v1/wallets/" + alice.Wallet.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		actor  uuid.UUID
		body   string
		code   int
	}{
		{"missing actor", http.MethodGet, "/api/v1/wallets", uuid.Nil, "", http.StatusUnauthorized},
		{"unknown wallet", http.MethodPost, "/api/v1/wallets/" + uuid.NewString() + "/charge", alice.User.ID, `{"amount":"1"}`, http.StatusNotFound},
		{"foreign wallet", http.MethodPost, aliceWallet + "/charge", bob.User.ID, `{"amount":"1"}`, http.StatusForbidden},
		{"three decimals", http.MethodPost, aliceWallet + "/charge", alice.User.ID, `{"amount":"1.001"}`, http.StatusBadRequest},
		{"zero amount", http.MethodPut, aliceWallet + "/top-up", alice.User.ID, `{"amount":"0"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, aliceWallet + "/charge", alice.User.ID, `{"amount":`, http.StatusBadRequest},
		{"bad wallet id", http.MethodPut, "/api/v1/wallets/nope/status", alice.User.ID, "", http.StatusBadRequest},
		{"duplicate username", http.MethodPost, "/api/v1/users", uuid.Nil, `{"username":"alice"}`, http.StatusConflict},
		{"blank username", http.MethodPost, "/api/v1/users", uuid.Nil, `{"username":"  "}`, http.StatusBadRequest},
		{"unknown tier", http.MethodPost, "/api/v1/subscriptions", alice.User.ID, `{"walletId":"` + alice.Wallet.ID.String() + `","period":"WEEKLY","tier":"PREMIUM"}`, http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/api/v1/transactions/" + uuid.NewString(), alice.User.ID, "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := a.do(tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestTransferFailureIsNotAnError(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")

	body := `{"fromWalletId":"` + alice.Wallet.ID.String() + `","toUsername":"nobody","amount":"5"}`
	rr := a.do(http.MethodPost, "/api/v1/transfers", alice.User.ID, body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	tx := decode[models.Transaction](t, rr)
	assert.Equal(t, models.TransactionFailed, tx.Status)
	assert.Equal(t, usecase.ReasonInvalidTransfer, tx.Reason())
}

func TestOperationalEndpoints(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	a.do(http.MethodPost, "/api/v1/wallets/"+alice.Wallet.ID.String()+"/charge", alice.User.ID, `{"amount":"1"}`)

	rr := a.do(http.MethodGet, "/health", uuid.Nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))

	rr = a.do(http.MethodGet, "/metrics", uuid.Nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `smartwallet_ledger_operations_total{operation="charge",status="SUCCEEDED",type="WITHDRAWAL"} 1`)
	assert.True(t, strings.Contains(rr.Body.String(), "http_request_duration_seconds"))
}

func TestHealth_Unavailable(t *testing.T) {
	router := server.NewRouter(server.RouterConfig{
		Log:      logger.NewNop(),
		Registry: prometheus.NewRegistry(),
		Health: func(context.Context) error {
			return errors.New("connection refused")
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := server.NewRouter(server.RouterConfig{
		Log:            logger.NewNop(),
		Registry:       prometheus.NewRegistry(),
		AllowedOrigins: []string{"https://app.example.com"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/wallets", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestIdempotentChargeDebitsOnce(t *testing.T) {
	log := logger.NewNop()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := usecase.LedgerConfig{OriginEntity: "Smart Wallet Ltd", PromoBalance: decimal.RequireFromString("50.00"), Currency: "EUR"}
	services := server.NewServices(memory.NewStore(), cfg, usecase.Collaborators{}, log)
	a := &api{t: t, router: server.NewRouter(server.RouterConfig{
		Log:            log,
		Registry:       prometheus.NewRegistry(),
		Idempotency:    rdb,
		IdempotencyTTL: time.Hour,
	}, services.Handlers(log)...)}
	alice := a.register("alice")

	charge := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/"+alice.Wallet.ID.String()+"/charge",
			strings.NewReader(`{"amount":"5.00","description":"retry"}`))
		req.Header.Set("X-User-ID", alice.User.ID.String())
		req.Header.Set("Idempotency-Key", "charge-1")
		rr := httptest.NewRecorder()
		a.router.ServeHTTP(rr, req)
		return rr
	}

	first := charge()
	second := charge()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, decode[models.Transaction](t, first).ID, decode[models.Transaction](t, second).ID)

	rr := a.do(http.MethodGet, "/api/v1/wallets", alice.User.ID, "")
	wallets := decode[[]models.WalletActivity](t, rr)
	require.Len(t, wallets, 1)
	assert.True(t, decimal.RequireFromString("45.00").Equal(wallets[0].Wallet.Balance))
}
