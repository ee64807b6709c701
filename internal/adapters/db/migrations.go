package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func prepareGoose() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose: failed to set dialect: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration
func (client *Connection) MigrateUp(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, client.db, migrationsDir); err != nil {
		return fmt.Errorf("goose migration failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the latest migration
func (client *Connection) MigrateDown(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, client.db, migrationsDir); err != nil {
		return fmt.Errorf("goose rollback failed: %w", err)
	}
	return nil
}

// MigrationStatus logs the state of each migration through goose's logger
func (client *Connection) MigrationStatus(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, client.db, migrationsDir); err != nil {
		return fmt.Errorf("goose status failed: %w", err)
	}
	return nil
}
