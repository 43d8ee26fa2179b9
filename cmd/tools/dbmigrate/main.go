// cmd/tools/dbmigrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/codr1/ChargeEase/internal/config"
	"github.com/codr1/ChargeEase/internal/db"
)

func main() {
	var (
		configPath     = flag.String("config", "config.yaml", "Path to config file (used when -db is empty)")
		dbPath         = flag.String("db", "", "Path to SQLite database")
		migrationsPath = flag.String("migrations", "", "Migrations directory (defaults to the embedded set)")
		command        = flag.String("command", "", "Command to run (up, down, steps, force, version)")
		arg            = flag.String("n", "", "Step count for steps, version for force")
	)
	flag.Parse()

	if *command == "" {
		log.Println("-command is required:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *dbPath == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		*dbPath = cfg.Database.Filename
	}

	absDB, err := filepath.Abs(*dbPath)
	if err != nil {
		log.Fatalf("Invalid database path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(absDB), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	m, err := newMigrate(*migrationsPath, fmt.Sprintf("sqlite3://%s", absDB))
	if err != nil {
		log.Fatalf("Failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if err := run(m, *command, *arg); err != nil {
		log.Fatal(err)
	}
}

func newMigrate(migrationsPath, databaseURL string) (*migrate.Migrate, error) {
	if migrationsPath == "" {
		source, err := db.MigrationSource()
		if err != nil {
			return nil, err
		}
		return migrate.NewWithSourceInstance("iofs", source, databaseURL)
	}

	absMigrations, err := filepath.Abs(migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid migrations path: %w", err)
	}
	if _, err := os.Stat(absMigrations); os.IsNotExist(err) {
		return nil, fmt.Errorf("migrations directory does not exist: %s", absMigrations)
	}
	return migrate.New("file://"+absMigrations, databaseURL)
}

func run(m *migrate.Migrate, command, arg string) error {
	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("Successfully ran migrations up")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
		log.Println("Successfully ran migrations down")

	case "steps":
		n, err := strconv.Atoi(arg)
		if err != nil || n == 0 {
			return fmt.Errorf("steps needs a non-zero -n, got %q", arg)
		}
		if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to migrate %d steps: %w", n, err)
		}
		log.Printf("Migrated %d steps", n)

	case "force":
		version, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force needs a version in -n, got %q", arg)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("failed to force version %d: %w", version, err)
		}
		log.Printf("Forced version %d", version)

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Printf("Current version: %d (dirty: %v)", version, dirty)

	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}
