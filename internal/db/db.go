package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/eeg.report/internal/monitoring"
)

// DefaultPath is where captures are recorded unless configured otherwise.
const DefaultPath = "eeg_data.db"

type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database at path and applies connection pragmas without
// touching the schema. The migrate subcommand uses it directly.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// pragmas are per connection; a single connection keeps them in force
	// and matches sqlite's single-writer model
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrationsFS); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "EEG capture DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("eeg-backup-%d.db", time.Now().Unix()))
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("Failed to remove backup file: %v", err)
			}
		}()

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer backupFile.Close()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
		w.Header().Set("Content-Type", "application/gzip")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			monitoring.Logf("Failed to stream backup: %v", err)
		}
	}))
}
