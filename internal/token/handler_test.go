package token

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/yotta-io/tokenledger/internal/middleware"
)

// bearerIsActor treats the bearer token as the account name.
type bearerIsActor struct{}

func (bearerIsActor) Verify(_ context.Context, token string) (string, error) {
	return token, nil
}

func newHandlerApp(f *fixture) *fiber.App {
	h := NewHandler(f.ledger)
	app := fiber.New()
	r := app.Group("", middleware.JWTAuth(bearerIsActor{}))
	r.Get("/currencies/:code", h.Currency)
	r.Post("/transfers", h.Transfer)
	r.Post("/transfers/batch", h.BatchTransfer)
	r.Post("/transfers/locked", h.LockedTransfer)
	r.Post("/transfers/delegated", h.DelegatedTransfer)
	r.Post("/unlocks", h.Unlock)
	r.Post("/delegations", h.Approve)
	r.Post("/rules", h.AddRule)
	r.Get("/accounts/:account/locks/:code", h.Locks)
	r.Get("/accounts/:account/balances/:code", h.Position)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, actor string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+actor)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHandler_StatusMapping(t *testing.T) {
	f := newFixture(t)
	app := newHandlerApp(f)

	code, _ := call(t, app, http.MethodGet, "/currencies/NOPE", "alice", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodPost, "/transfers", "alice", map[string]string{"to": "bob", "quantity": "5.0000 YTA"})
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = call(t, app, http.MethodPost, "/transfers", "alice", map[string]string{"to": "bob", "quantity": "five YTA"})
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, app, http.MethodPost, "/transfers/locked", "alice", map[string]any{"rule_id": 0, "to": "bob", "quantity": "0.1000 YTA"})
	require.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, app, http.MethodPost, "/transfers", "alice", map[string]string{"to": "alice", "quantity": "0.1000 YTA"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_CounterLockFlow(t *testing.T) {
	f := newFixture(t)
	app := newHandlerApp(f)

	code, out := call(t, app, http.MethodPost, "/transfers/locked", "pool", map[string]any{"rule_id": 0, "to": "bob", "quantity": "1.0000 YTA"})
	require.Equal(t, http.StatusCreated, code, out)

	code, out = call(t, app, http.MethodGet, "/accounts/bob/locks/YTA", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 10_000, out["counter"])

	code, out = call(t, app, http.MethodGet, "/accounts/bob/balances/YTA", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "0.0000 YTA", out["available"])

	code, _ = call(t, app, http.MethodPost, "/unlocks", "alice", map[string]string{"account": "bob", "quantity": "0.4000 YTA"})
	require.Equal(t, http.StatusForbidden, code)

	code, out = call(t, app, http.MethodPost, "/unlocks", "issuer", map[string]string{"account": "bob", "quantity": "0.4000 YTA"})
	require.Equal(t, http.StatusOK, code, out)
	require.EqualValues(t, 6_000, out["remaining"])

	code, _ = call(t, app, http.MethodPost, "/unlocks", "issuer", map[string]string{"account": "bob", "quantity": "0.7000 YTA"})
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestHandler_BatchAndDelegation(t *testing.T) {
	f := newFixture(t)
	app := newHandlerApp(f)

	code, out := call(t, app, http.MethodPost, "/transfers/batch", "pool", map[string]any{
		"symbol": "4,YTA",
		"entries": []BatchEntry{
			{Account: "alice", Amount: 500},
			{Account: "bob", Amount: 500},
			{Account: "ghost", Amount: 500},
		},
	})
	require.Equal(t, http.StatusCreated, code, out)
	require.EqualValues(t, 500, out["total"])
	require.Len(t, out["skipped"], 2)
	require.Equal(t, int64(10_500), f.balance(t, "alice"))

	code, out = call(t, app, http.MethodPost, "/delegations", "alice", map[string]string{"manager": "manager", "quantity": "0.5000 YTA"})
	require.Equal(t, http.StatusOK, code, out)

	code, _ = call(t, app, http.MethodPost, "/transfers/delegated", "bob", map[string]string{"from": "alice", "to": "carol", "quantity": "0.1000 YTA"})
	require.Equal(t, http.StatusForbidden, code)

	code, out = call(t, app, http.MethodPost, "/transfers/delegated", "manager", map[string]string{"from": "alice", "to": "carol", "quantity": "0.5000 YTA"})
	require.Equal(t, http.StatusCreated, code, out)
	require.Equal(t, int64(5_500), f.balance(t, "alice"))
	require.Equal(t, int64(5_000), f.balance(t, "carol"))
}
