// Package database provides connection management and dialect-neutral statement execution.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/recipebook/internal/config"
)

// Open opens a connection pool for the configured driver.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var dsn string
	switch dialect.(type) {
	case Postgres:
		dsn = postgresDSN(cfg)
	default:
		dsn = mysqlDSN(cfg)
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	return db, nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	return mysqlConfig(cfg).FormatDSN()
}

func mysqlConfig(cfg config.DatabaseConfig) *mysql.Config {
	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.Username
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mysqlCfg.DBName = cfg.Database
	mysqlCfg.ParseTime = true
	// report matched rows so an update that changes nothing still counts as found
	mysqlCfg.ClientFoundRows = true
	if cfg.TLS {
		mysqlCfg.TLSConfig = "true"
	}
	if len(cfg.Params) > 0 {
		mysqlCfg.Params = cfg.Params
	}
	return mysqlCfg
}

func postgresDSN(cfg config.DatabaseConfig) string {
	query := url.Values{}
	for k, v := range cfg.Params {
		query.Set(k, v)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
		if cfg.TLS {
			sslMode = "require"
		}
	}
	query.Set("sslmode", sslMode)

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

// RunInTx runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back; otherwise, it is committed.
func RunInTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback transaction: %w (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// BuildMultiRowInsert renders an INSERT of rowCount rows with numbered placeholders.
func BuildMultiRowInsert(table string, columns []string, rowCount int) string {
	groups := make([]string, rowCount)
	for i := range groups {
		groups[i] = "(" + placeholders(i*len(columns)+1, len(columns)) + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(columns, ", "), strings.Join(groups, ", "))
}

// DB is the process-wide pool together with the dialect it speaks.
type DB struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewDB(db *sqlx.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// Connect opens the pool for cfg and pairs it with the matching dialect.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewDB(db, dialect), nil
}

func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Adapter runs statements directly on the pool.
func (d *DB) Adapter() *Adapter {
	return NewAdapter(d.db, d.dialect)
}

// InTx runs fn with an Adapter bound to a single transaction.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, tx *Adapter) error) error {
	return RunInTx(ctx, d.db, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, NewAdapter(tx, d.dialect))
	})
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
