// Package main is the entry point for the Trove admin CLI.
// This tool provides administrative commands for managing user accounts and
// running maintenance tasks against the configured database and image store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/config"
	"github.com/campus-tf/trove/internal/lock"
	"github.com/campus-tf/trove/internal/repository"
	"github.com/campus-tf/trove/internal/repository/postgres"
	"github.com/campus-tf/trove/internal/repository/sqlite"
	"github.com/campus-tf/trove/internal/service"
	"github.com/campus-tf/trove/internal/storage"
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
		fmt.Printf("Trove Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		if err := runUserCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "sweep":
		if err := runSweepCommand(os.Args[2:]); err != nil {
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

// openRepos connects to the configured database and returns its repositories.
func openRepos(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.UserRepository, repository.ItemRepository, func(), error) {
	if cfg.Database.IsEmbedded() {
		dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return sqlite.NewUserRepository(db), sqlite.NewItemRepository(db), func() { _ = db.Close() }, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return postgres.NewUserRepository(db), postgres.NewItemRepository(db), func() { db.Close() }, nil
}

func runUserCommand(args []string) error {
	if len(args) < 1 {
		printUserUsage()
		return fmt.Errorf("missing user subcommand")
	}

	sub := args[0]
	ctx := context.Background()
	logger := zerolog.Nop()

	switch sub {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		configPath := fs.String("config", "", "path to config file")
		username := fs.String("username", "", "username for the new account")
		email := fs.String("email", "", "email for the new account")
		password := fs.String("password", "", "password for the new account")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		cfg := config.MustLoad(*configPath)
		users, _, closeFn, err := openRepos(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		svc := service.NewUserService(users, nil, logger)
		out, err := svc.Register(ctx, service.RegisterInput{
			Username: *username,
			Email:    *email,
			Password: *password,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created user %d (%s)\n", out.User.ID, out.User.Username)
		return nil

	case "list":
		fs := flag.NewFlagSet("user list", flag.ExitOnError)
		configPath := fs.String("config", "", "path to config file")
		limit := fs.Int("limit", 50, "maximum number of users to list")
		offset := fs.Int("offset", 0, "number of users to skip")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		cfg := config.MustLoad(*configPath)
		users, _, closeFn, err := openRepos(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		result, err := users.List(ctx, repository.ListOptions{Limit: *limit, Offset: *offset})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tACTIVE\tCREATED")
		for _, u := range result.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n",
				u.ID, u.Username, u.Email, u.IsActive, u.CreatedAt.Format(time.RFC3339))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d\n", result.Total)
		return nil

	case "deactivate", "activate":
		fs := flag.NewFlagSet("user "+sub, flag.ExitOnError)
		configPath := fs.String("config", "", "path to config file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseIDArg(fs.Args())
		if err != nil {
			return err
		}

		cfg := config.MustLoad(*configPath)
		users, _, closeFn, err := openRepos(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		svc := service.NewUserService(users, nil, logger)
		if err := svc.SetActive(ctx, id, sub == "activate"); err != nil {
			return err
		}
		fmt.Printf("User %d %sd\n", id, sub)
		return nil

	case "delete":
		fs := flag.NewFlagSet("user delete", flag.ExitOnError)
		configPath := fs.String("config", "", "path to config file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseIDArg(fs.Args())
		if err != nil {
			return err
		}

		cfg := config.MustLoad(*configPath)
		users, _, closeFn, err := openRepos(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		svc := service.NewUserService(users, nil, logger)
		if err := svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("User %d deleted\n", id)
		return nil

	default:
		printUserUsage()
		return fmt.Errorf("unknown user subcommand: %s", sub)
	}
}

// runSweepCommand runs a one-off orphan image sweep.
func runSweepCommand(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	dryRun := fs.Bool("dry-run", false, "report orphans without deleting")
	force := fs.Bool("force", false, "delete orphans immediately, ignoring the grace period")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	logger := zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	cfg := config.MustLoad(*configPath)
	_, items, closeFn, err := openRepos(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	var images storage.Backend
	if cfg.Storage.Backend == "s3" {
		images, err = storage.NewS3Backend(ctx, cfg.Storage.S3, cfg.Storage.MaxImageSize, logger)
	} else {
		images, err = storage.NewFilesystemBackend(cfg.Storage.DataDir, cfg.Storage.PublicPath, cfg.Storage.MaxImageSize, logger)
	}
	if err != nil {
		return err
	}

	sweepCfg := service.SweeperConfig{
		Enabled:     true,
		Interval:    cfg.Sweeper.Interval,
		GracePeriod: cfg.Sweeper.GracePeriod,
		BatchSize:   cfg.Sweeper.BatchSize,
		DryRun:      *dryRun,
	}
	if *force {
		sweepCfg.GracePeriod = 0
	}

	sweeper := service.NewImageSweeper(items, images, lock.NewNoopLocker(), nil, logger, sweepCfg)

	// A first run only records orphan sightings, so deletion takes a
	// second pass once the grace period is zero.
	result := sweeper.RunOnce(ctx)
	if *force {
		result = sweeper.RunOnce(ctx)
	}

	fmt.Printf("Deleted: %d\nPending: %d\nErrors: %d\nDuration: %s\n",
		result.ImagesDeleted, result.OrphansPending, result.Errors, result.Duration)
	return nil
}

func parseIDArg(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing user id argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", args[0])
	}
	return id, nil
}

func printUsage() {
	fmt.Println(`Trove Admin CLI

Usage:
  trove-admin <command> [arguments]

Commands:
  user        Manage user accounts (create, list, activate, deactivate, delete)
  sweep       Run a one-off orphan image sweep
  version     Print version information
  help        Show this help message

Examples:
  trove-admin user create --username admin --email admin@campus.edu --password secret123
  trove-admin user list --limit 20
  trove-admin user deactivate 42
  trove-admin sweep --dry-run

Use "trove-admin <command> --help" for more information about a command.`)
}

func printUserUsage() {
	fmt.Println(`Trove user management

Usage:
  trove-admin user <subcommand> [flags] [id]

Subcommands:
  create      Create a new user account
  list        List user accounts
  activate    Reactivate a user account by id
  deactivate  Deactivate a user account by id
  delete      Delete a user account by id`)
}
