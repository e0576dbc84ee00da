package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status,
// version <n> and force <n>.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return errors.New("missing migrate action")
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return err
	}

	// migrations manage the schema, so open without applying it
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		return printVersion(w, database, migrationsFS)

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		return printVersion(w, database, migrationsFS)

	case "status":
		return printStatus(w, database, migrationsFS)

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: eeg migrate %s <version_number>", action)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		if action == "version" {
			err = database.MigrateTo(migrationsFS, uint(v))
		} else {
			err = database.MigrateForce(migrationsFS, int(v))
		}
		if err != nil {
			return err
		}
		return printVersion(w, database, migrationsFS)

	case "help":
		PrintMigrateHelp(w)
		return nil

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(w io.Writer, database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Database at version %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(w io.Writer, database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "=== Migration Status ===")
	fmt.Fprintf(w, "Current version: %d\n", version)
	fmt.Fprintf(w, "Latest version:  %d\n", latest)
	fmt.Fprintf(w, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(w, "A migration failed mid-execution. Inspect the database, then run: eeg migrate force <version>")
	} else if version < latest {
		fmt.Fprintf(w, "Outstanding migrations: %d (run: eeg migrate up)\n", latest-version)
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: eeg migrate <action> [args]

Actions:
  up             apply all pending migrations
  down           roll back the most recent migration
  status         show current and latest schema versions
  version <n>    migrate up or down to version n
  force <n>      mark the database as version n without running migrations
  help           show this message
`)
}
