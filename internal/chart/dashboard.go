// Package chart renders series history as an HTML dashboard (go-echarts)
// and as a static PNG of the raw wave (gonum/plot).
package chart

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// AssetsHost is where the rendered pages load echarts.min.js from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// DefaultRawWindow is how many raw values the dashboard plots.
const DefaultRawWindow = 512

// Dashboard describes one rendering of the live charts.
type Dashboard struct {
	Title string
	// RawWindow caps the raw wave to its newest values; <=0 selects
	// DefaultRawWindow.
	RawWindow    int
	RawRefresh   time.Duration
	ChartRefresh time.Duration
	Generated    time.Time
}

// Render writes a page holding the raw wave, the latest band powers, the
// band history and the attention/meditation history. snap is keyed by
// series name as produced by series.Store.SnapshotAll.
func (d Dashboard) Render(w io.Writer, snap map[string][]int64) error {
	if d.Title == "" {
		d.Title = "EEG"
	}
	window := d.RawWindow
	if window <= 0 {
		window = DefaultRawWindow
	}

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.PageTitle = d.Title
	page.AddCharts(
		d.rawChart(tail(snap[series.Raw], window)),
		d.latestBandsChart(snap),
		d.bandHistoryChart(snap),
		d.esenseChart(snap),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func (d Dashboard) subtitle(refresh time.Duration) string {
	s := "generated " + d.Generated.Format(time.RFC3339)
	if refresh > 0 {
		s += ", refresh " + refresh.String()
	}
	return s
}

func (d Dashboard) init(title string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle:  title,
		Width:      "100%",
		Height:     "360px",
		AssetsHost: AssetsHost,
	})
}

func (d Dashboard) rawChart(raw []int64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		d.init("Raw wave"),
		charts.WithTitleOpts(opts.Title{Title: "Raw wave", Subtitle: d.subtitle(d.RawRefresh)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "sample"}),
	)
	line.SetXAxis(indexAxis(len(raw))).
		AddSeries(series.Raw, lineData(raw),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	return line
}

func (d Dashboard) latestBandsChart(snap map[string][]int64) *charts.Bar {
	names := thinkgear.BandNames()
	data := make([]opts.BarData, len(names))
	for i, name := range names {
		if v := snap[name]; len(v) > 0 {
			data[i] = opts.BarData{Value: v[len(v)-1]}
		} else {
			data[i] = opts.BarData{Value: 0}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		d.init("Band power"),
		charts.WithTitleOpts(opts.Title{Title: "Band power", Subtitle: d.subtitle(d.ChartRefresh)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("latest", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func (d Dashboard) bandHistoryChart(snap map[string][]int64) *charts.Line {
	names := thinkgear.BandNames()
	return d.historyChart("Band history", snap, names...)
}

func (d Dashboard) esenseChart(snap map[string][]int64) *charts.Line {
	return d.historyChart("Attention / meditation", snap, series.Attention, series.Meditation)
}

func (d Dashboard) historyChart(title string, snap map[string][]int64, names ...string) *charts.Line {
	longest := 0
	for _, name := range names {
		longest = max(longest, len(snap[name]))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		d.init(title),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: d.subtitle(d.ChartRefresh)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	line.SetXAxis(indexAxis(longest))
	for _, name := range names {
		line.AddSeries(name, lineData(snap[name]),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

func tail(v []int64, n int) []int64 {
	if len(v) > n {
		return v[len(v)-n:]
	}
	return v
}

func indexAxis(n int) []string {
	x := make([]string, n)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}
	return x
}

func lineData(v []int64) []opts.LineData {
	data := make([]opts.LineData, len(v))
	for i, x := range v {
		data[i] = opts.LineData{Value: x}
	}
	return data
}
