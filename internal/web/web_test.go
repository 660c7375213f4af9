package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caltrack/internal/config"
	"caltrack/internal/ledger"
	"caltrack/internal/model"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Calendars = []config.CalendarConfig{
		{ID: "work", Name: "Work"},
		{ID: "home", Name: "Home"},
	}
	return cfg
}

func seededCache() *ledger.Cache {
	c := ledger.New()
	c.Fold("work", []string{"2022-10-09", "2022-10-10"}, []model.Contribution{
		{Day: "2022-10-09", Minutes: 120},
	})
	return c
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(testConfig(), ledger.New(), time.UTC, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleUsage(t *testing.T) {
	s := NewServer(testConfig(), seededCache(), time.UTC, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage?from=2022-10-09&to=2022-10-11", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Days    map[string]map[string]float64 `json:"days"`
		Version uint64                        `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Days, 2, "to is exclusive")
	assert.Equal(t, 120.0, resp.Days["2022-10-09"]["work"])

	// Fetched-but-empty day is an explicit zero.
	v, ok := resp.Days["2022-10-10"]["work"]
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	// Never-fetched calendar stays absent.
	_, ok = resp.Days["2022-10-09"]["home"]
	assert.False(t, ok)
}

func TestHandleUsageMemoized(t *testing.T) {
	cache := seededCache()
	s := NewServer(testConfig(), cache, time.UTC, nil)

	get := func() string {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage?from=2022-10-09&to=2022-10-11", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		return rec.Body.String()
	}

	first := get()
	assert.Equal(t, first, get(), "same ledger version serves the memoized body")

	// A fold bumps the version and invalidates the memoized view.
	cache.Fold("home", []string{"2022-10-09"}, []model.Contribution{{Day: "2022-10-09", Minutes: 45}})
	assert.NotEqual(t, first, get())
}

func TestHandleUsageBadRange(t *testing.T) {
	s := NewServer(testConfig(), ledger.New(), time.UTC, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage?from=2022-10-11&to=2022-10-09", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage?from=banana&to=2022-10-09", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRefresh(t *testing.T) {
	var called bool
	s := NewServer(testConfig(), ledger.New(), time.UTC, func(context.Context) error {
		called = true
		return nil
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "user", Password: "secret"}
	s := NewServer(cfg, ledger.New(), time.UTC, nil)

	// /health stays open.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// API requires credentials.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usage?from=2022-10-09&to=2022-10-10", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/usage?from=2022-10-09&to=2022-10-10", nil)
	req.SetBasicAuth("user", "secret")
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
