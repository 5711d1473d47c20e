package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/at-ishikawa/recipebook/internal/config"
)

// Migrate applies the pending NNN_name.up.sql files in fsys and returns the
// schema version reached. It runs on a connection of its own: migration files
// hold several statements, which the MySQL pool does not accept.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, fsys fs.FS) (uint, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return 0, err
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}

	conn, err := sql.Open(dialect.DriverName(), migrationDSN(dialect, cfg))
	if err != nil {
		_ = src.Close()
		return 0, fmt.Errorf("open migration connection: %w", err)
	}
	driver, err := migrationDriver(dialect, conn)
	if err != nil {
		_ = conn.Close()
		_ = src.Close()
		return 0, fmt.Errorf("prepare %s migrations: %w", dialect.Name(), err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect.Name(), driver)
	if err != nil {
		_ = driver.Close()
		_ = src.Close()
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	slog.Default().Info("migrations applied", "dialect", dialect.Name(), "version", version)
	return version, nil
}

func migrationDSN(dialect Dialect, cfg config.DatabaseConfig) string {
	if _, ok := dialect.(Postgres); ok {
		return postgresDSN(cfg)
	}
	mysqlCfg := mysqlConfig(cfg)
	mysqlCfg.MultiStatements = true
	return mysqlCfg.FormatDSN()
}

func migrationDriver(dialect Dialect, conn *sql.DB) (migratedb.Driver, error) {
	if _, ok := dialect.(Postgres); ok {
		return migratepostgres.WithInstance(conn, &migratepostgres.Config{})
	}
	return migratemysql.WithInstance(conn, &migratemysql.Config{})
}
