package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/banshee-data/eeg.report/internal/chart"
	"github.com/banshee-data/eeg.report/internal/export"
	"github.com/banshee-data/eeg.report/internal/httputil"
	"github.com/banshee-data/eeg.report/internal/monitoring"
	"github.com/banshee-data/eeg.report/internal/series"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// plotDisabled reports whether the caller asked to skip rendering with
// ?plot=0 and, if so, answers 204.
func plotDisabled(w http.ResponseWriter, r *http.Request) bool {
	if v := r.URL.Query().Get("plot"); v == "0" || v == "false" {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if plotDisabled(w, r) {
		return
	}
	window, err := parseCount(r, "n", chart.DefaultRawWindow)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	d := chart.Dashboard{
		Title:        "EEG",
		RawWindow:    window,
		RawRefresh:   s.cfg.GetRawRefreshInterval(),
		ChartRefresh: s.cfg.GetChartRefreshInterval(),
		Generated:    nowFunc(),
	}
	var buf bytes.Buffer
	if err := d.Render(&buf, s.store.SnapshotAll()); err != nil {
		monitoring.Logf("failed to render dashboard: %v", err)
		httputil.InternalServerError(w, "failed to render dashboard")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", refreshSeconds(d.ChartRefresh))
	w.Write(buf.Bytes())
}

// refreshSeconds rounds d up to whole seconds for the Refresh header.
func refreshSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprint(secs)
}

func (s *Server) showRawPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if plotDisabled(w, r) {
		return
	}
	n, err := parseCount(r, "n", chart.DefaultRawWindow)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	values, err := s.store.Tail(series.Raw, n)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderRawPNG(&buf, values, chart.DefaultPNGWidth, chart.DefaultPNGHeight); err != nil {
		monitoring.Logf("failed to render raw plot: %v", err)
		httputil.InternalServerError(w, "failed to render raw plot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	cols := export.DefaultColumns()
	snap := export.Snapshot(s.store.SnapshotAll(export.SeriesNames(cols)...))

	var buf bytes.Buffer
	if err := export.WriteColumns(&buf, snap, cols); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	filename := fmt.Sprintf("eeg-%s.csv", nowFunc().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}
