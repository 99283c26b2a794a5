// Package main is the entry point for the Trove database migration tool.
// It applies the schema for whichever database driver is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/config"
	"github.com/campus-tf/trove/internal/repository/postgres"
	"github.com/campus-tf/trove/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Trove Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		if err := runUp(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runUp(args []string) error {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.MustLoad(*configPath)
	ctx := context.Background()
	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	} else {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	fmt.Println("Migrations applied")
	return nil
}

func printUsage() {
	fmt.Println(`Trove Migration Tool

Usage:
  trove-migrate <command> [arguments]

Commands:
  up          Apply all pending migrations
  version     Print version information
  help        Show this help message

Configuration:
  The database is selected by the same config file and TROVE_ environment
  variables the server uses.

Examples:
  trove-migrate up
  trove-migrate up --config ./configs/config.yaml`)
}
