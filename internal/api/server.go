package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/eeg.report/internal/config"
	"github.com/banshee-data/eeg.report/internal/db"
	"github.com/banshee-data/eeg.report/internal/httputil"
	"github.com/banshee-data/eeg.report/internal/ingest"
	"github.com/banshee-data/eeg.report/internal/monitoring"
	"github.com/banshee-data/eeg.report/internal/serialmux"
	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// IngestStats is satisfied by *ingest.Consumer.
type IngestStats interface {
	Stats() ingest.Stats
}

// Server exposes the live series store, capture diagnostics and recorded
// sessions over HTTP. It only ever reads the store.
type Server struct {
	store  *series.Store
	m      serialmux.StatsSource
	ingest IngestStats
	db     *db.DB
	cfg    *config.Config
}

// NewServer wires a Server. ingest and database may be nil when the
// consumer is not running or recording is disabled; a nil cfg reports the
// built-in defaults.
func NewServer(store *series.Store, m serialmux.StatsSource, ingest IngestStats, database *db.DB, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	return &Server{
		store:  store,
		m:      m,
		ingest: ingest,
		db:     database,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/series", s.listSeries)
	mux.HandleFunc("/api/series/", s.showSeries)
	mux.HandleFunc("/api/latest", s.showLatest)
	mux.HandleFunc("/api/stats/", s.showSeriesStats)
	mux.HandleFunc("/api/export.csv", s.exportCSV)
	mux.HandleFunc("/api/diagnostics", s.showDiagnostics)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/", s.handleSession)
	mux.HandleFunc("/charts", s.showDashboard)
	mux.HandleFunc("/charts/raw.png", s.showRawPNG)
	return mux
}

// SeriesInfo describes one series without its values.
type SeriesInfo struct {
	Name     string `json:"name"`
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
}

func (s *Server) listSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	names := s.store.Names()
	out := make([]SeriesInfo, len(names))
	for i, name := range names {
		out[i] = SeriesInfo{Name: name, Len: s.store.Len(name), Capacity: s.store.Capacity(name)}
	}
	httputil.WriteJSONOK(w, out)
}

// SeriesValues is the body of /api/series/{name}.
type SeriesValues struct {
	Name   string  `json:"name"`
	Values []int64 `json:"values"`
}

func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/series/")
	n, err := parseCount(r, "n", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var values []int64
	if n > 0 {
		values, err = s.store.Tail(name, n)
	} else {
		values, err = s.store.Snapshot(name)
	}
	if err != nil {
		s.writeSeriesError(w, err)
		return
	}
	if values == nil {
		values = []int64{}
	}
	httputil.WriteJSONOK(w, SeriesValues{Name: name, Values: values})
}

// showLatest returns the newest value of every non-empty series.
func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	out := make(map[string]int64)
	for _, name := range s.store.Names() {
		if v, ok := s.store.Latest(name); ok {
			out[name] = v
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showSeriesStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/stats/")
	values, err := s.store.Snapshot(name)
	if err != nil {
		s.writeSeriesError(w, err)
		return
	}
	httputil.WriteJSONOK(w, series.Summarize(values))
}

func (s *Server) writeSeriesError(w http.ResponseWriter, err error) {
	if errors.Is(err, series.ErrUnknownSeries) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

// Diagnostics gathers every counter the capture pipeline keeps.
type Diagnostics struct {
	Serial         serialmux.Stats `json:"serial"`
	Ingest         *ingest.Stats   `json:"ingest,omitempty"`
	StoreEvictions uint64          `json:"store_evictions"`
	Recording      bool            `json:"recording"`
}

func (s *Server) showDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	d := Diagnostics{
		Serial:         s.m.Stats(),
		StoreEvictions: s.store.Evictions(),
		Recording:      s.db != nil,
	}
	if s.ingest != nil {
		st := s.ingest.Stats()
		d.Ingest = &st
	}
	httputil.WriteJSONOK(w, d)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg.Effective())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// parseCount reads a non-negative integer query parameter.
func parseCount(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid '%s' parameter", key)
	}
	return n, nil
}
