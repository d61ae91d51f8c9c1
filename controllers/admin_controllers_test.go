package controllers_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/services"
)

func placeOrder(t *testing.T, app *testApp, c *http.Client) models.Order {
	t.Helper()
	app.cart(t, c, http.MethodPost, "/cart/add/2")
	code, env := app.call(t, c, http.MethodPost, "/checkout", nil)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var order models.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return order
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	app := newTestApp(t, nil)
	anon := app.browser(t)

	code, _ := app.call(t, anon, http.MethodGet, "/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	c := app.browser(t)
	app.register(t, c, "alice")
	app.login(t, c, "alice", "password123")
	code, _ = app.call(t, c, http.MethodGet, "/admin/orders", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = app.call(t, c, http.MethodGet, "/admin/audit", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAdminUpdatesOrderStatus(t *testing.T) {
	app := newTestApp(t, nil)
	customer := app.browser(t)
	app.register(t, customer, "alice")
	app.login(t, customer, "alice", "password123")
	order := placeOrder(t, app, customer)

	admin := app.browser(t)
	app.login(t, admin, adminUser, adminPass)

	path := fmt.Sprintf("/admin/orders/%d/status", order.ID)
	code, env := app.call(t, admin, http.MethodPatch, path, map[string]string{"status": models.OrderStatusPreparing})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, _ = app.call(t, admin, http.MethodPatch, path, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = app.call(t, admin, http.MethodPatch, "/admin/orders/9999/status", map[string]string{"status": models.OrderStatusCompleted})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = app.call(t, admin, http.MethodPatch, "/admin/orders/abc/status", map[string]string{"status": models.OrderStatusCompleted})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = app.call(t, admin, http.MethodGet, "/admin/orders?status=preparing", nil)
	require.Equal(t, http.StatusOK, code)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	require.NotNil(t, orders[0].User)
	assert.Equal(t, "alice", orders[0].User.Username)

	code, _ = app.call(t, admin, http.MethodGet, "/admin/orders?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = app.call(t, customer, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Equal(t, models.OrderStatusPreparing, orders[0].Status)

	code, env = app.call(t, admin, http.MethodGet, "/admin/audit?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	var entries []models.AuditLog
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditOrderStatusChanged, entries[0].Event)
}

func TestAdminExportReviews(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.browser(t)
	app.register(t, c, "alice")
	app.login(t, c, "alice", "password123")
	for _, item := range []int{1, 3} {
		code, _ := app.call(t, c, http.MethodPost, "/reviews", map[string]interface{}{"item_id": item, "rating": 4, "comment": "ok, fine"})
		require.Equal(t, http.StatusCreated, code)
	}

	admin := app.browser(t)
	app.login(t, admin, adminUser, adminPass)

	resp, raw := app.do(t, admin, http.MethodGet, "/admin/reviews/export?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="reviews_export_`)
	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ok, fine", rows[1][4])

	resp, raw = app.do(t, admin, http.MethodGet, "/admin/reviews/export?format=json&item_id=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, out[0]["item_id"])

	resp, _ = app.do(t, admin, http.MethodGet, "/admin/reviews/export?item_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = app.do(t, admin, http.MethodGet, "/admin/reviews/export?format=csv&item_id=", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type brokenExporter struct{}

func (brokenExporter) Export(context.Context, services.ExportQuery) (*services.ExportResult, error) {
	return nil, fmt.Errorf("%w: connection refused", services.ErrExportUnavailable)
}

func TestAdminExportUnavailable(t *testing.T) {
	app := newTestApp(t, brokenExporter{})
	admin := app.browser(t)
	app.login(t, admin, adminUser, adminPass)

	code, env := app.call(t, admin, http.MethodGet, "/admin/reviews/export", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, services.ErrExportUnavailable.Error(), env.Message)
}
