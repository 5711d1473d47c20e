package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Result is what a mutation reports back.
type Result struct {
	RowsAffected int64
	// LastInsertID is only set by backends that report generated ids on Exec.
	LastInsertID int64
}

// Adapter runs dialect-neutral statements against a pool or a transaction.
type Adapter struct {
	ext     sqlx.ExtContext
	dialect Dialect
}

func NewAdapter(ext sqlx.ExtContext, dialect Dialect) *Adapter {
	return &Adapter{ext: ext, dialect: dialect}
}

func (a *Adapter) Dialect() Dialect {
	return a.dialect
}

// Select scans every row of query into dest, a pointer to a slice.
func (a *Adapter) Select(ctx context.Context, dest any, query string, args ...any) error {
	q, bound, err := a.dialect.Rebind(query, args)
	if err != nil {
		return &QueryError{Statement: query, Err: err}
	}
	if err := sqlx.SelectContext(ctx, a.ext, dest, q, bound...); err != nil {
		return a.wrap(ctx, q, err)
	}
	return nil
}

// Get scans a single row into dest. sql.ErrNoRows is returned unwrapped.
func (a *Adapter) Get(ctx context.Context, dest any, query string, args ...any) error {
	q, bound, err := a.dialect.Rebind(query, args)
	if err != nil {
		return &QueryError{Statement: query, Err: err}
	}
	if err := sqlx.GetContext(ctx, a.ext, dest, q, bound...); err != nil {
		return a.wrap(ctx, q, err)
	}
	return nil
}

func (a *Adapter) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	q, bound, err := a.dialect.Rebind(query, args)
	if err != nil {
		return Result{}, &QueryError{Statement: query, Err: err}
	}
	res, err := a.ext.ExecContext(ctx, q, bound...)
	if err != nil {
		return Result{}, a.wrap(ctx, q, err)
	}
	var out Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return Result{}, a.wrap(ctx, q, err)
	}
	if !a.dialect.SupportsReturning() {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
		}
	}
	return out, nil
}

// Insert runs an INSERT without a RETURNING clause and reports the generated id.
// The id is 0 when the statement supplied its own id on a backend without RETURNING.
func (a *Adapter) Insert(ctx context.Context, query string, args ...any) (int64, error) {
	if a.dialect.SupportsReturning() {
		var id int64
		if err := a.Get(ctx, &id, query+" RETURNING id", args...); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := a.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

var (
	returningPattern = regexp.MustCompile(`(?is)\s+RETURNING\s+.*$`)
	tablePattern     = regexp.MustCompile("(?i)^\\s*(?:INSERT\\s+INTO|UPDATE|DELETE\\s+FROM)\\s+[`\"]?(\\w+)")
	insertPattern    = regexp.MustCompile(`(?i)^\s*INSERT\s`)
)

// tableOf extracts the target table of an INSERT, UPDATE or DELETE statement.
func tableOf(query string) (string, bool) {
	m := tablePattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// InsertReturning runs an INSERT ... RETURNING * and scans the new row into dest.
// Backends without RETURNING get the row re-read by its generated id.
func (a *Adapter) InsertReturning(ctx context.Context, dest any, query string, args ...any) error {
	if a.dialect.SupportsReturning() {
		return a.Get(ctx, dest, query, args...)
	}

	stmt := returningPattern.ReplaceAllString(query, "")
	table, ok := tableOf(stmt)
	if !ok || !insertPattern.MatchString(stmt) {
		return &QueryError{Statement: query, Err: errors.New("RETURNING can only be emulated for INSERT statements")}
	}
	res, err := a.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if res.LastInsertID == 0 {
		return &QueryError{Statement: stmt, Err: fmt.Errorf("insert into %s reported no generated id", table)}
	}
	return a.Get(ctx, dest, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table), res.LastInsertID)
}

func (a *Adapter) wrap(ctx context.Context, query string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || IsTransportError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// drivers report their own cancellation errors when the deadline hits mid-statement
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	slog.Default().Debug("statement failed",
		"dialect", a.dialect.Name(),
		"statement", strings.Join(strings.Fields(query), " "),
		"error", err)
	return &QueryError{Statement: query, Err: err}
}
