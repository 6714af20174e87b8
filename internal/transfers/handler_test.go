package transfers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payvost/corebanking/internal/logging"
	"github.com/payvost/corebanking/internal/middleware"
)

func newTestApp(t *testing.T, seed string) (*fiber.App, fixture) {
	t.Helper()
	f := newFixture(t, seed)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(logging.Discard())})
	h := NewHandler(f.svc, nil)
	app.Post("/transfer", h.Transfer)
	app.Get("/transfer/:transferId", h.Get)
	return app, f
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
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

func TestHandlerTransferSuccess(t *testing.T) {
	app, f := newTestApp(t, "100")

	status, body := doJSON(t, app, http.MethodPost, "/transfer",
		`{"fromAccountId":"`+f.from.ID+`","toAccountId":"`+f.to.ID+`","amount":"50","currency":"USD"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["transferId"])
}

func TestHandlerTransferAcceptsNumericAmount(t *testing.T) {
	app, f := newTestApp(t, "100")

	status, body := doJSON(t, app, http.MethodPost, "/transfer",
		`{"fromAccountId":"`+f.from.ID+`","toAccountId":"`+f.to.ID+`","amount":12.25,"currency":"USD"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "87.75000000", f.balance(t, f.from.ID))
}

func TestHandlerTransferBusinessFailures(t *testing.T) {
	app, f := newTestApp(t, "10")

	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"insufficient funds", `{"fromAccountId":"` + f.from.ID + `","toAccountId":"` + f.to.ID + `","amount":"11","currency":"USD"}`, http.StatusBadRequest, "Insufficient funds"},
		{"invalid amount", `{"fromAccountId":"` + f.from.ID + `","toAccountId":"` + f.to.ID + `","amount":"-1","currency":"USD"}`, http.StatusBadRequest, "Invalid amount"},
		{"missing amount", `{"fromAccountId":"` + f.from.ID + `","toAccountId":"` + f.to.ID + `","currency":"USD"}`, http.StatusBadRequest, "Invalid amount"},
		{"unknown account", `{"fromAccountId":"` + f.from.ID + `","toAccountId":"nope","amount":"1","currency":"USD"}`, http.StatusBadRequest, "Account not found"},
		{"missing field", `{"toAccountId":"` + f.to.ID + `","amount":"1","currency":"USD"}`, http.StatusBadRequest, "fromAccountId is required"},
		{"malformed body", `{"fromAccountId":`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, "/transfer", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.msg, body["error"])
		})
	}
	assert.Equal(t, "10.00000000", f.balance(t, f.from.ID))
}

func TestHandlerTransferReplayReturnsSameID(t *testing.T) {
	app, f := newTestApp(t, "100")
	payload := `{"fromAccountId":"` + f.from.ID + `","toAccountId":"` + f.to.ID +
		`","amount":"5","currency":"USD","idempotencyKey":"abc-123"}`

	_, first := doJSON(t, app, http.MethodPost, "/transfer", payload)
	status, second := doJSON(t, app, http.MethodPost, "/transfer", payload)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, first["transferId"], second["transferId"])
	assert.Equal(t, true, second["replayed"])
	assert.Equal(t, "95.00000000", f.balance(t, f.from.ID))
}

func TestHandlerGetTransfer(t *testing.T) {
	app, f := newTestApp(t, "100")
	_, created := doJSON(t, app, http.MethodPost, "/transfer",
		`{"fromAccountId":"`+f.from.ID+`","toAccountId":"`+f.to.ID+`","amount":"50","currency":"USD","type":"DEPOSIT"}`)
	id, _ := created["transferId"].(string)
	require.NotEmpty(t, id)

	status, body := doJSON(t, app, http.MethodGet, "/transfer/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "50.00000000", body["amount"])
	assert.Equal(t, "DEPOSIT", body["type"])
	assert.Equal(t, "completed", body["status"])
	entries, _ := body["entries"].([]any)
	assert.Len(t, entries, 2)

	status, body = doJSON(t, app, http.MethodGet, "/transfer/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Transfer not found", body["error"])
}
