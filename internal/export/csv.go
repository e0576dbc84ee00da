// Package export serializes series history for offline analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// Source gives positional access to named series of possibly different
// lengths. *series.Store satisfies it, as does Snapshot.
type Source interface {
	Len(name string) int
	At(name string, i int) (int64, bool)
}

// Snapshot is a frozen copy of several series, as returned by
// series.Store.SnapshotAll.
type Snapshot map[string][]int64

func (s Snapshot) Len(name string) int { return len(s[name]) }

func (s Snapshot) At(name string, i int) (int64, bool) {
	v := s[name]
	if i < 0 || i >= len(v) {
		return 0, false
	}
	return v[i], true
}

// Column maps a CSV header to a series name.
type Column struct {
	Header string
	Series string
}

// DefaultColumns is the raw wave followed by the eight band powers.
func DefaultColumns() []Column {
	cols := []Column{{Header: "Raw Data", Series: series.Raw}}
	for _, name := range thinkgear.BandNames() {
		cols = append(cols, Column{Header: name, Series: name})
	}
	return cols
}

// SeriesNames returns the series backing cols.
func SeriesNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Series
	}
	return names
}

// WriteCSV writes DefaultColumns of src.
func WriteCSV(w io.Writer, src Source) error {
	return WriteColumns(w, src, DefaultColumns())
}

// WriteColumns writes a header row followed by one row per index up to the
// longest column. Columns that run out early are padded with empty cells.
func WriteColumns(w io.Writer, src Source, cols []Column) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(cols))
	rows := 0
	for i, c := range cols {
		header[i] = c.Header
		rows = max(rows, src.Len(c.Series))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(cols))
	for i := 0; i < rows; i++ {
		for j, c := range cols {
			if v, ok := src.At(c.Series, i); ok {
				record[j] = strconv.FormatInt(v, 10)
			} else {
				record[j] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
