package accounts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payvost/corebanking/internal/ledger"
	"github.com/payvost/corebanking/internal/logging"
	"github.com/payvost/corebanking/internal/middleware"
)

func newTestApp() (*fiber.App, ledger.Ledger) {
	led := ledger.NewInMemory()
	h := NewHandler(NewService(led, logging.Discard()), nil)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	app.Post("/account", h.Create)
	app.Get("/balance/:accountId", h.Balance)
	app.Get("/account/:accountId/entries", h.Entries)
	return app, led
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHandlerCreateAndBalance(t *testing.T) {
	app, led := newTestApp()

	status, body := call(t, app, http.MethodPost, "/account", `{"userId":"user-1","currency":"USD"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	id, _ := body["accountId"].(string)
	require.NotEmpty(t, id)

	status, body = call(t, app, http.MethodGet, "/balance/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["accountId"])
	assert.Equal(t, "0.00000000", body["balance"])
	assert.Equal(t, "USD", body["currency"])

	ledger.SeedBalance(led, id, decimal.RequireFromString("100"))
	_, body = call(t, app, http.MethodGet, "/balance/"+id, "")
	assert.Equal(t, "100.00000000", body["balance"])
}

func TestHandlerCreateValidation(t *testing.T) {
	app, _ := newTestApp()

	status, body := call(t, app, http.MethodPost, "/account", `{"currency":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "userId is required", body["error"])

	status, body = call(t, app, http.MethodPost, "/account", `{"userId":"u","currency":"usd"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestHandlerBalanceNotFound(t *testing.T) {
	app, _ := newTestApp()

	status, body := call(t, app, http.MethodGet, "/balance/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Account not found", body["error"])
}

func TestHandlerEntries(t *testing.T) {
	app, led := newTestApp()
	ctx := context.Background()
	a, err := led.CreateAccount(ctx, "user-a", "USD")
	require.NoError(t, err)
	b, err := led.CreateAccount(ctx, "user-b", "USD")
	require.NoError(t, err)
	ledger.SeedBalance(led, a.ID, decimal.RequireFromString("10"))
	_, err = led.Transfer(ctx, ledger.TransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        decimal.RequireFromString("2.5"),
		Currency:      "USD",
		Type:          ledger.TypeInternalTransfer,
	})
	require.NoError(t, err)

	status, body := call(t, app, http.MethodGet, "/account/"+a.ID+"/entries?limit=10", "")
	require.Equal(t, http.StatusOK, status)
	entries, _ := body["entries"].([]any)
	require.Len(t, entries, 1)
	first, _ := entries[0].(map[string]any)
	assert.Equal(t, "-2.50000000", first["amount"])
	assert.Equal(t, "7.50000000", first["balanceAfter"])
	assert.Equal(t, "debit", first["type"])

	status, _ = call(t, app, http.MethodGet, "/account/"+a.ID+"/entries?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, app, http.MethodGet, "/account/"+a.ID+"/entries?limit=201", "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, app, http.MethodGet, "/account/missing/entries", "")
	assert.Equal(t, http.StatusNotFound, status)
}
