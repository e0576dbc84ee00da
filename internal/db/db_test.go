package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func fixClock(t *testing.T, start time.Time) func() time.Time {
	t.Helper()
	now := start
	orig := nowFunc
	nowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	t.Cleanup(func() { nowFunc = orig })
	return func() time.Time { return now }
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous, "synchronous should be NORMAL")
	assert.Equal(t, 2, tempStore, "temp_store should be MEMORY")
	assert.Equal(t, 1, foreignKeys)
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeg.db")
	db, err := NewDB(path)
	require.NoError(t, err)

	migrations, err := getMigrationsFS()
	require.NoError(t, err)
	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())

	// reopening an up-to-date database is a no-op
	db, err = NewDB(path)
	require.NoError(t, err)
	db.Close()
}

func TestMigrateDownAndTo(t *testing.T) {
	db := newTestDB(t)
	migrations, err := getMigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(migrations))
	version, _, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'raw_samples'`).Scan(&n))
	assert.Zero(t, n, "raw_samples should be dropped")

	require.NoError(t, db.MigrateTo(migrations, 2))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'raw_samples'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	fixClock(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	first, err := db.StartSession(ctx, "/dev/ttyUSB0", 9600)
	require.NoError(t, err)
	second, err := db.StartSession(ctx, "/dev/ttyUSB1", 57600)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, db.EndSession(ctx, first.ID))
	err = db.EndSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	got, err := db.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "newest first")
	assert.Equal(t, 57600, got[0].BaudRate)
	assert.Nil(t, got[0].EndedAt)
	require.NotNil(t, got[1].EndedAt)
	assert.True(t, got[1].EndedAt.After(got[1].StartedAt))

	one, err := db.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", one.PortPath)
	assert.True(t, one.StartedAt.Equal(first.StartedAt))

	_, err = db.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRecordSamples(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sess, err := db.StartSession(ctx, "fixture", 9600)
	require.NoError(t, err)

	bands := thinkgear.Bands{100, 2, 3, 4, 5, 6, 7, 0xFFFFFF}
	batch := []thinkgear.Sample{
		thinkgear.RawSample(500),
		thinkgear.RawSample(-25536),
		thinkgear.BandSample(bands, 26, 80, 40),
		thinkgear.RawSample(7),
		{}, // unknown kind, skipped
	}
	require.NoError(t, db.RecordSamples(ctx, sess.ID, batch))
	require.NoError(t, db.RecordSamples(ctx, sess.ID, nil))

	raw, err := db.RawSamples(ctx, sess.ID, 0)
	require.NoError(t, err)
	values := make([]int16, len(raw))
	for i, r := range raw {
		values[i] = r.Value
	}
	if diff := cmp.Diff([]int16{500, -25536, 7}, values); diff != "" {
		t.Errorf("raw values mismatch (-want +got):\n%s", diff)
	}

	// limit keeps the newest rows, still oldest first
	raw, err = db.RawSamples(ctx, sess.ID, 2)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, int16(-25536), raw[0].Value)
	assert.Equal(t, thinkgear.RawSample(7), raw[1].Sample())

	band, err := db.BandSamples(ctx, sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, band, 1)
	if diff := cmp.Diff(thinkgear.BandSample(bands, 26, 80, 40), band[0].Sample()); diff != "" {
		t.Errorf("band sample mismatch (-want +got):\n%s", diff)
	}

	got, err := db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.RawCount)
	assert.Equal(t, int64(1), got.BandCount)
}

func TestRecordSamples_UnknownSessionRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.RecordSamples(ctx, "no-such-session", []thinkgear.Sample{thinkgear.RawSample(1)})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM raw_samples`).Scan(&n))
	assert.Zero(t, n)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand(&out, []string{"status"}, path))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "Outstanding migrations: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"up"}, path))
	assert.Contains(t, out.String(), "version 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"version", "1"}, path))
	assert.Contains(t, out.String(), "version 1")

	assert.Error(t, RunMigrateCommand(&out, []string{"version"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"version", "x"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"sideways"}, path))
	assert.Error(t, RunMigrateCommand(&out, nil, path))

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"help"}, path))
	assert.Contains(t, out.String(), "Usage: eeg migrate")
}

func localHostRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/tailsql/"))
	assert.NotEqual(t, http.StatusNotFound, w.Code, "tailsql should be mounted")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/backup"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	backup, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(backup, []byte("SQLite format 3")), "backup should be a sqlite file")
}
