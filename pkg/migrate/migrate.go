package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir   = "pkg/migrate/migrations"
	versionTable = "ledger_schema_migrations"
)

// goose keeps its dialect and table name in package state.
var gooseMu sync.Mutex

func withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	// goose migrations are Postgres-only; sqlite goes through AutoMigrateSQLite.
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetTableName(versionTable)
	return fn()
}

// Run executes a goose command (up, down, status, ...) against db.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return withGoose(func() error {
		if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || len(targetVersion) != len(versionLayout) {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}

	return withGoose(func() error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < target:
			if err := goose.UpToContext(ctx, db, dir, target); err != nil {
				return fmt.Errorf("goose up-to %d: %w", target, err)
			}
		case current > target:
			if err := goose.DownToContext(ctx, db, dir, target); err != nil {
				return fmt.Errorf("goose down-to %d: %w", target, err)
			}
		}
		return nil
	})
}
