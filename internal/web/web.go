// Package web serves the aggregated per-day, per-calendar minute totals
// over HTTP. It only reads the ledger; all writing happens in the
// refresh pipeline.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"caltrack/internal/config"
	"caltrack/internal/dayspan"
	"caltrack/internal/ledger"
	appLog "caltrack/internal/log"
	"caltrack/internal/model"
)

// RefreshFunc triggers one immediate refresh cycle; wired in by main.
type RefreshFunc func(ctx context.Context) error

// Server provides the usage API on top of the duration ledger.
type Server struct {
	cfg     *config.Config
	cache   *ledger.Cache
	loc     *time.Location
	refresh RefreshFunc
	mux     *http.ServeMux

	// Usage responses are memoized against the ledger version plus the
	// query, so repeated UI polls are free until the next fold.
	usageMu   sync.RWMutex
	usageKey  usageKey
	usageResp []byte
}

type usageKey struct {
	version  uint64
	from, to string
}

// NewServer constructs a Server. refresh may be nil, in which case
// /api/refresh reports that manual refresh is unavailable.
func NewServer(cfg *config.Config, cache *ledger.Cache, loc *time.Location, refresh RefreshFunc) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		cfg:     cfg,
		cache:   cache,
		loc:     loc,
		refresh: refresh,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, wrapped with basic auth
// when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="caltrack", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/usage", s.handleUsage)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// usageResponse is the JSON shape of /api/usage. Days carries minute
// totals per day per calendar; a present zero means "fetched, empty",
// an absent calendar entry means "not fetched yet".
type usageResponse struct {
	From    string                        `json:"from"`
	To      string                        `json:"to"`
	Days    map[string]map[string]float64 `json:"days"`
	Version uint64                        `json:"version"`
}

// handleUsage serves the dense ledger view for a date range.
//
// GET /api/usage?from=2022-10-09&to=2022-10-16
//
// from is inclusive, to exclusive; both are dates in the display
// timezone. Missing parameters default to the configured tracked
// window around today.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" || toStr == "" {
		now := time.Now().In(s.loc)
		fromStr = dayspan.DayStart(now).AddDate(0, 0, -s.cfg.BackfillDays).Format(model.DayKey)
		toStr = dayspan.DayStart(now).AddDate(0, 0, s.cfg.HorizonDays).Format(model.DayKey)
	}

	from, err := time.ParseInLocation(model.DayKey, fromStr, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := time.ParseInLocation(model.DayKey, toStr, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	key := usageKey{version: s.cache.Version(), from: fromStr, to: toStr}

	s.usageMu.RLock()
	if s.usageResp != nil && s.usageKey == key {
		body := s.usageResp
		s.usageMu.RUnlock()
		writeJSONRaw(w, body)
		return
	}
	s.usageMu.RUnlock()

	var calIDs []string
	for _, cal := range s.cfg.Calendars {
		calIDs = append(calIDs, cal.ID)
	}

	resp := usageResponse{
		From:    fromStr,
		To:      toStr,
		Days:    s.cache.Extract(calIDs, dayspan.DaysBetween(from, to)),
		Version: key.version,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode usage")
		return
	}

	s.usageMu.Lock()
	s.usageKey = key
	s.usageResp = body
	s.usageMu.Unlock()

	writeJSONRaw(w, body)
}

// handleRefresh triggers one immediate refresh cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "manual refresh unavailable")
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeJSONRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
