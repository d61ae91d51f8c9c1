package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/database"
	"github.com/yeremiapane/diner-app/docstore/memory"
	"github.com/yeremiapane/diner-app/feed"
	"github.com/yeremiapane/diner-app/functions"
	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/router"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

const internalToken = "internal-secret"

type deployment struct {
	app     *httptest.Server
	stats   *httptest.Server
	reviews *services.ReviewService
	hub     *feed.Hub
}

// deploy runs the web app with its rating updates and exports delegated to the
// two functions over HTTP, all sharing one in-memory document store.
func deploy(t *testing.T) *deployment {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: "file:e2e?mode=memory&cache=shared", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, log))
	require.NoError(t, database.Seed(db, config.AdminConfig{Username: "admin", Password: "admin-pass-123"}, log))

	store := memory.New()

	agg := services.NewRatingAggregator(store, 5, log)
	statsSrv := httptest.NewServer(functions.NewRouter("/", functions.StatsHandler(agg, internalToken, log), log))
	exportSrv := httptest.NewServer(functions.NewRouter("/", functions.ExportHandler(
		services.NewReviewExporter(store, nil, "exports/", log), internalToken, log), log))

	hub := feed.NewHub(log)
	auditor := services.NewAuditor(store, log)
	reviews := services.NewReviewService(db, store,
		services.NewStatsClient(statsSrv.URL, internalToken, 2*time.Second), auditor, 2*time.Second, log)

	cfg := config.Config{Env: "test"}
	cfg.Session.Secret = "e2e-session-secret"
	r := router.SetupRouter(router.Deps{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Tokens:   utils.NewTokenIssuer("e2e-jwt-secret", time.Hour),
		Auditor:  auditor,
		Catalog:  services.NewCatalogService(db, store, log),
		Checkout: services.NewCheckoutService(db, auditor, hub, log),
		Orders:   services.NewOrderService(db, config.StatusPolicyStrict, auditor, hub, log),
		Reviews:  reviews,
		Exporter: services.NewExportClient(exportSrv.URL, internalToken, 2*time.Second),
		Hub:      hub,
	})
	appSrv := httptest.NewServer(r)

	t.Cleanup(func() {
		appSrv.Close()
		reviews.Wait()
		hub.Close()
		statsSrv.Close()
		exportSrv.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &deployment{app: appSrv, stats: statsSrv, reviews: reviews, hub: hub}
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (d *deployment) newClient(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: d.app.URL, http: &http.Client{Jar: jar}}
}

func (c *client) send(method, path string, body interface{}) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, out
}

// data decodes the envelope's data field into v and returns the status code.
func (c *client) data(method, path string, body, v interface{}) int {
	c.t.Helper()
	resp, raw := c.send(method, path, body)
	var env utils.JSONResponse
	env.Data = v
	require.NoError(c.t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode
}

func readEvent(t *testing.T, ws *websocket.Conn) feed.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg feed.Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestEndToEndIntegration(t *testing.T) {
	d := deploy(t)

	// Admin signs in and subscribes to the live order feed.
	admin := d.newClient(t)
	var login struct {
		Token string `json:"token"`
	}
	require.Equal(t, http.StatusOK, admin.data(http.MethodPost, "/login",
		map[string]string{"username": "admin", "password": "admin-pass-123"}, &login))

	wsURL := "ws" + strings.TrimPrefix(d.app.URL, "http") + "/admin/feed?token=" + login.Token
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return d.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Customer registers, fills a cart and checks out.
	customer := d.newClient(t)
	require.Equal(t, http.StatusCreated, customer.data(http.MethodPost, "/register",
		map[string]string{"username": "alice", "password": "password123", "password2": "password123"}, nil))
	require.Equal(t, http.StatusOK, customer.data(http.MethodPost, "/login",
		map[string]string{"username": "alice", "password": "password123"}, nil))
	for _, id := range []int{1, 1, 3} {
		require.Equal(t, http.StatusOK, customer.data(http.MethodPost, fmt.Sprintf("/cart/add/%d", id), nil, nil))
	}
	var order models.Order
	require.Equal(t, http.StatusCreated, customer.data(http.MethodPost, "/checkout", nil, &order))
	assert.Equal(t, "24.47", order.TotalPrice.String())

	msg := readEvent(t, ws)
	assert.Equal(t, services.EventOrderCreated, msg.Event)

	// Strict policy: pending cannot jump to completed.
	statusPath := fmt.Sprintf("/admin/orders/%d/status", order.ID)
	assert.Equal(t, http.StatusConflict, admin.data(http.MethodPatch, statusPath,
		map[string]string{"status": models.OrderStatusCompleted}, nil))
	require.Equal(t, http.StatusOK, admin.data(http.MethodPatch, statusPath,
		map[string]string{"status": models.OrderStatusPreparing}, nil))
	msg = readEvent(t, ws)
	assert.Equal(t, services.EventOrderStatusChanged, msg.Event)
	require.Equal(t, http.StatusOK, admin.data(http.MethodPatch, statusPath,
		map[string]string{"status": models.OrderStatusCompleted}, nil))

	var history []models.Order
	require.Equal(t, http.StatusOK, customer.data(http.MethodGet, "/orders", nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusCompleted, history[0].Status)

	// Reviews are folded into the aggregate by the stats function.
	for _, rating := range []int{5, 2} {
		require.Equal(t, http.StatusCreated, customer.data(http.MethodPost, "/reviews",
			map[string]interface{}{"item_id": 1, "rating": rating, "comment": "burger"}, nil))
	}
	d.reviews.Wait()

	resp, raw := customer.send(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats []services.RatedMenuItem
	require.NoError(t, json.Unmarshal(raw, &stats))
	require.NotEmpty(t, stats)
	assert.Equal(t, int64(2), stats[0].ReviewCount)
	assert.Equal(t, 3.5, stats[0].AvgRating)

	// Exports go through the export function.
	resp, raw = admin.send(http.MethodGet, "/admin/reviews/export?format=csv&item_id=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// The functions refuse callers without the internal token.
	resp, err = http.Post(d.stats.URL, "application/json", strings.NewReader(`{"item_id":1,"rating":5}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
