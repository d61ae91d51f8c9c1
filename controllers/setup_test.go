package controllers_test

import (
	"bytes"
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
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/database"
	"github.com/yeremiapane/diner-app/docstore/memory"
	"github.com/yeremiapane/diner-app/feed"
	"github.com/yeremiapane/diner-app/router"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

const (
	adminUser = "admin"
	adminPass = "admin-pass-123"
)

type testApp struct {
	srv     *httptest.Server
	db      *gorm.DB
	store   *memory.Store
	reviews *services.ReviewService
}

// newTestApp wires the full router over sqlite and the in-memory docstore.
// The starter menu is 1 Chicken Burger 10.49, 2 Margherita Pizza 9.99,
// 3 Fries 3.49, 4 Coke 1.99.
func newTestApp(t *testing.T, exporter services.Exporter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, log))
	require.NoError(t, database.Seed(db, config.AdminConfig{Username: adminUser, Password: adminPass}, log))

	store := memory.New()
	hub := feed.NewHub(log)
	auditor := services.NewAuditor(store, log)
	reviews := services.NewReviewService(db, store, services.NewRatingAggregator(store, 5, log), auditor, 2*time.Second, log)
	if exporter == nil {
		exporter = services.NewReviewExporter(store, nil, "exports/", log)
	}

	cfg := config.Config{Env: "test"}
	cfg.Session.Secret = "test-session-secret"
	cfg.HTTP.AllowedOrigin = "http://localhost"

	r := router.SetupRouter(router.Deps{
		Config:   cfg,
		DB:       db,
		Log:      log,
		Tokens:   utils.NewTokenIssuer("test-jwt-secret", time.Hour),
		Auditor:  auditor,
		Catalog:  services.NewCatalogService(db, store, log),
		Checkout: services.NewCheckoutService(db, auditor, hub, log),
		Orders:   services.NewOrderService(db, config.StatusPolicyPermissive, auditor, hub, log),
		Reviews:  reviews,
		Exporter: exporter,
		Hub:      hub,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		reviews.Wait()
		hub.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &testApp{srv: srv, db: db, store: store, reviews: reviews}
}

// browser returns a client that carries the session cookie between requests.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, c *http.Client, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func (a *testApp) call(t *testing.T, c *http.Client, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	resp, raw := a.do(t, c, method, path, body)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func (a *testApp) register(t *testing.T, c *http.Client, username string) {
	t.Helper()
	code, env := a.call(t, c, http.MethodPost, "/register", map[string]string{
		"username": username, "password": "password123", "password2": "password123",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
}

func (a *testApp) login(t *testing.T, c *http.Client, username, password string) string {
	t.Helper()
	code, env := a.call(t, c, http.MethodPost, "/login", map[string]string{
		"username": username, "password": password,
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Token
}

type cartView struct {
	Items []struct {
		Item struct {
			ID uint `json:"id"`
		} `json:"item"`
		Quantity int `json:"quantity"`
	} `json:"items"`
	Total   string `json:"total"`
	Missing []int  `json:"missing"`
}

func (a *testApp) cart(t *testing.T, c *http.Client, method, path string) cartView {
	t.Helper()
	code, env := a.call(t, c, method, path, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var v cartView
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}
