package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsClientSendsRating(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "s3cret", r.Header.Get(InternalTokenHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewStatsClient(srv.URL, "s3cret", time.Second)
	require.NoError(t, client.UpdateRating(context.Background(), 3, 4))
	assert.Equal(t, map[string]int{"item_id": 3, "rating": 4}, got)
}

func TestStatsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewStatsClient(srv.URL, "", time.Second).UpdateRating(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestStatsClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := NewStatsClient(srv.URL, "", 20*time.Millisecond).UpdateRating(context.Background(), 1, 1)
	assert.Error(t, err)
}

func TestExportClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get(InternalTokenHeader))
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		assert.Equal(t, "7", r.URL.Query().Get("item_id"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="reviews_export_20240101_000000.csv"`)
		w.Header().Set(ArchiveKeyHeader, "exports/reviews_export_20240101_000000.csv")
		w.Write([]byte("id,username,item_id,rating,comment,created_at\n"))
	}))
	defer srv.Close()

	item := 7
	res, err := NewExportClient(srv.URL, "tok", time.Second).
		Export(context.Background(), ExportQuery{Format: ExportFormatCSV, ItemID: &item, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, "reviews_export_20240101_000000.csv", res.Filename)
	assert.Equal(t, "exports/reviews_export_20240101_000000.csv", res.ArchiveKey)
	assert.Contains(t, string(res.Body), "username")
}

func TestExportClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewExportClient(srv.URL, "", time.Second).Export(context.Background(), ExportQuery{Format: ExportFormatCSV, Limit: 1})
	assert.ErrorIs(t, err, ErrExportUnavailable)
}
