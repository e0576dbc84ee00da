package db

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// RecordSamples writes a batch of decoded samples for a session in one
// transaction. Samples of unknown kind are skipped.
func (db *DB) RecordSamples(ctx context.Context, sessionID string, samples []thinkgear.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	now := nowFunc().UTC().UnixNano()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rawStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_samples (session_id, value, recorded_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare raw insert: %w", err)
	}
	defer rawStmt.Close()

	bandStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO band_samples (
			session_id, delta, theta, low_alpha, high_alpha, low_beta, high_beta,
			low_gamma, middle_gamma, signal_quality, attention, meditation, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare band insert: %w", err)
	}
	defer bandStmt.Close()

	for _, s := range samples {
		switch s.Kind {
		case thinkgear.KindSmallRaw:
			if _, err := rawStmt.ExecContext(ctx, sessionID, s.Raw, now); err != nil {
				return fmt.Errorf("failed to insert raw sample: %w", err)
			}
		case thinkgear.KindLargeBands:
			b := s.Bands
			if _, err := bandStmt.ExecContext(ctx, sessionID,
				b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7],
				s.SignalQuality, s.Attention, s.Meditation, now,
			); err != nil {
				return fmt.Errorf("failed to insert band sample: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	return nil
}

// RawSamples returns the newest limit raw values of a session in arrival
// order. A non-positive limit returns all of them.
func (db *DB) RawSamples(ctx context.Context, sessionID string, limit int) ([]RawRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT sample_id, value, recorded_at FROM (
			SELECT sample_id, value, recorded_at FROM raw_samples
			WHERE session_id = ? ORDER BY sample_id DESC LIMIT ?
		) ORDER BY sample_id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw samples: %w", err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var (
			r  RawRow
			at int64
		)
		if err := rows.Scan(&r.ID, &r.Value, &at); err != nil {
			return nil, fmt.Errorf("failed to scan raw sample: %w", err)
		}
		r.RecordedAt = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// BandSamples returns the newest limit band readings of a session in
// arrival order. A non-positive limit returns all of them.
func (db *DB) BandSamples(ctx context.Context, sessionID string, limit int) ([]BandRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT sample_id, delta, theta, low_alpha, high_alpha, low_beta, high_beta,
				low_gamma, middle_gamma, signal_quality, attention, meditation, recorded_at
			FROM band_samples WHERE session_id = ? ORDER BY sample_id DESC LIMIT ?
		) ORDER BY sample_id ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query band samples: %w", err)
	}
	defer rows.Close()

	var out []BandRow
	for rows.Next() {
		var (
			r  BandRow
			at int64
		)
		b := &r.Bands
		if err := rows.Scan(&r.ID, &b[0], &b[1], &b[2], &b[3], &b[4], &b[5], &b[6], &b[7],
			&r.SignalQuality, &r.Attention, &r.Meditation, &at); err != nil {
			return nil, fmt.Errorf("failed to scan band sample: %w", err)
		}
		r.RecordedAt = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sample converts a persisted row back into a decoded sample.
func (r BandRow) Sample() thinkgear.Sample {
	return thinkgear.BandSample(r.Bands, r.SignalQuality, r.Attention, r.Meditation)
}

// Sample converts a persisted row back into a decoded sample.
func (r RawRow) Sample() thinkgear.Sample {
	return thinkgear.RawSample(r.Value)
}
