// Package schemas provides the embedded DDL for each supported dialect.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
)

// Migrations contains the versioned NNN_name.up.sql and .down.sql files,
// one directory per dialect.
//
//go:embed migrations/*/*.sql
var Migrations embed.FS

// For returns the migration files of the named dialect ("postgres" or "mysql").
func For(dialect string) (fs.FS, error) {
	sub, err := fs.Sub(Migrations, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", dialect, err)
	}
	if _, err := fs.Stat(sub, "."); err != nil {
		return nil, fmt.Errorf("no migrations for %s: %w", dialect, err)
	}
	return sub, nil
}
