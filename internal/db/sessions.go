package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

var ErrSessionNotFound = errors.New("session not found")

// nowFunc is replaced in tests.
var nowFunc = time.Now

// Session is one continuous capture from a single port.
type Session struct {
	ID        string     `json:"id"`
	PortPath  string     `json:"port_path"`
	BaudRate  int        `json:"baud_rate"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	RawCount  int64      `json:"raw_count"`
	BandCount int64      `json:"band_count"`
}

// StartSession records the start of a capture and returns its id.
func (db *DB) StartSession(ctx context.Context, portPath string, baudRate int) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		PortPath:  portPath,
		BaudRate:  baudRate,
		StartedAt: nowFunc().UTC(),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, port_path, baud_rate, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.PortPath, s.BaudRate, s.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		nowFunc().UTC().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `s.session_id, s.port_path, s.baud_rate, s.started_at, s.ended_at,
	(SELECT COUNT(*) FROM raw_samples r WHERE r.session_id = s.session_id),
	(SELECT COUNT(*) FROM band_samples b WHERE b.session_id = s.session_id)`

// Sessions lists every session, newest first, with sample counts.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetSession returns one session by id.
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := r.Scan(&s.ID, &s.PortPath, &s.BaudRate, &started, &ended, &s.RawCount, &s.BandCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return &s, nil
}

// RawRow is one persisted raw-wave value.
type RawRow struct {
	ID         int64     `json:"id"`
	Value      int16     `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// BandRow is one persisted band-power reading.
type BandRow struct {
	ID            int64           `json:"id"`
	Bands         thinkgear.Bands `json:"bands"`
	SignalQuality uint8           `json:"signal_quality"`
	Attention     uint8           `json:"attention"`
	Meditation    uint8           `json:"meditation"`
	RecordedAt    time.Time       `json:"recorded_at"`
}
