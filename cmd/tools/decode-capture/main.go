// Command decode-capture runs a raw ThinkGear byte capture through the live
// framer and writes the resulting series as CSV, optionally recording the
// samples into a capture database as a new session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/eeg.report/internal/db"
	"github.com/banshee-data/eeg.report/internal/export"
	"github.com/banshee-data/eeg.report/internal/ingest"
	"github.com/banshee-data/eeg.report/internal/series"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// Config holds the command-line options.
type Config struct {
	Input     string
	Output    string
	ChunkSize int
	DBPath    string
	Capacity  int
}

// Result summarises one decode.
type Result struct {
	Framer  thinkgear.Stats `json:"framer"`
	Ingest  ingest.Stats    `json:"ingest"`
	Session string          `json:"session,omitempty"`
	Rows    int             `json:"rows"`
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.Input, "in", "-", "Capture file to decode (- for stdin)")
	flag.StringVar(&cfg.Output, "out", "-", "CSV output path (- for stdout)")
	flag.IntVar(&cfg.ChunkSize, "chunk", 4096, "Bytes fed to the framer per call")
	flag.StringVar(&cfg.DBPath, "db", "", "Also record samples into this capture database")
	flag.IntVar(&cfg.Capacity, "capacity", 0, "Series capacity (0 keeps every sample)")
	flag.Parse()

	res, err := run(context.Background(), cfg)
	if err != nil {
		log.Fatalf("decode-capture: %v", err)
	}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	enc.Encode(res)
}

func run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.ChunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}

	in := io.Reader(os.Stdin)
	size := int64(0)
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if fi, err := f.Stat(); err == nil {
			size = fi.Size()
		}
		in = f
	}

	// by default size the series to hold the whole capture: every raw frame
	// is at least 8 bytes
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = int(max(size/thinkgear.SmallFrameLen, series.DefaultRawCapacity))
	}
	store := series.NewStore(capacity, capacity)

	var (
		opts []ingest.Option
		res  Result
	)
	if cfg.DBPath != "" {
		database, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer database.Close()
		sess, err := database.StartSession(ctx, "file:"+cfg.Input, 0)
		if err != nil {
			return nil, err
		}
		defer database.EndSession(ctx, sess.ID)
		res.Session = sess.ID
		opts = append(opts, ingest.WithRecorder(database, sess.ID))
	}
	consumer := ingest.NewConsumer(store, opts...)

	framer := thinkgear.NewFramer()
	buf := make([]byte, cfg.ChunkSize)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n], consumer.Handle)
			consumer.Flush(ctx)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read capture: %w", err)
		}
	}
	out := io.Writer(os.Stdout)
	if cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		out = f
	}
	if err := export.WriteCSV(out, store); err != nil {
		return nil, err
	}

	res.Framer = framer.Stats()
	res.Ingest = consumer.Stats()
	res.Rows = store.MaxLen(export.SeriesNames(export.DefaultColumns())...)
	return &res, nil
}
