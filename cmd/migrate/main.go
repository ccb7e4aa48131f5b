package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/straye-as/offer-pipeline-api/internal/config"
)

const usage = "usage: migrate [-dir ./migrations] up|up-to N|down|down-to N|redo|status|version|create NAME"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", envOr("MIGRATIONS_DIR", "./migrations"), "directory holding the SQL migrations")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf(usage)
	}
	command, arguments := args[0], args[1:]

	// create needs no database connection
	if command == "create" {
		if len(arguments) == 0 {
			return fmt.Errorf("create requires a migration name")
		}
		if err := goose.Create(nil, *dir, arguments[0], "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	switch command {
	case "up":
		if err := goose.Up(db, *dir); err != nil {
			return fmt.Errorf("failed to run up migrations: %w", err)
		}
		fmt.Println("Migrations applied successfully")

	case "up-to", "down-to":
		version, err := versionArg(arguments)
		if err != nil {
			return err
		}
		if command == "up-to" {
			err = goose.UpTo(db, *dir, version)
		} else {
			err = goose.DownTo(db, *dir, version)
		}
		if err != nil {
			return fmt.Errorf("failed to migrate to version %d: %w", version, err)
		}
		fmt.Printf("Migrated to version %d\n", version)

	case "down":
		if err := goose.Down(db, *dir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
		fmt.Println("Migration rolled back successfully")

	case "redo":
		if err := goose.Redo(db, *dir); err != nil {
			return fmt.Errorf("failed to redo migration: %w", err)
		}

	case "status":
		if err := goose.Status(db, *dir); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

	case "version":
		if err := goose.Version(db, *dir); err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	return nil
}

func versionArg(arguments []string) (int64, error) {
	if len(arguments) == 0 {
		return 0, fmt.Errorf("a target version is required")
	}
	v, err := strconv.ParseInt(arguments[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", arguments[0], err)
	}
	return v, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
