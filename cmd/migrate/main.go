package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for -cmd=create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (for -cmd=version)")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// Offline commands never touch config or the database.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "stockledger-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer dbClient.Close()

	if dbClient.IsSQLite() {
		if opts.cmd != "up" {
			return errors.New("sqlite databases only support -cmd=up")
		}
		if err := migrate.AutoMigrateSQLite(ctx, dbClient); err != nil {
			return err
		}
		logg.Info(ctx, "sqlite schema up to date")
		return nil
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	if err := runGoose(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration finished")
	return nil
}

func runGoose(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
