package recipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
)

// IDSource picks the id for a new recipe row. Zero means the store assigns one.
type IDSource interface {
	NextID(ctx context.Context, a *database.Adapter) (int64, error)
}

// NativeIDs lets the store generate recipe ids.
type NativeIDs struct{}

func (NativeIDs) NextID(context.Context, *database.Adapter) (int64, error) {
	return 0, nil
}

const DefaultMaxAttempts = 100

// Allocator hands out recipe ids on stores whose id column has no generator.
// A candidate must be unused in every recipe table variant.
type Allocator struct {
	tables      []string
	maxAttempts int
}

func NewAllocator(tables []string, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{tables: tables, maxAttempts: maxAttempts}
}

func (al *Allocator) NextID(ctx context.Context, a *database.Adapter) (int64, error) {
	var highest int64
	for _, table := range al.tables {
		var maxID int64
		if err := a.Get(ctx, &maxID, fmt.Sprintf("SELECT COALESCE(MAX(id), 0) FROM %s", table)); err != nil {
			return 0, fmt.Errorf("read highest id of %s: %w", table, err)
		}
		highest = max(highest, maxID)
	}

	candidate := highest + 1
	for attempt := 1; attempt <= al.maxAttempts; attempt++ {
		used, err := al.used(ctx, a, candidate)
		if err != nil {
			return 0, err
		}
		if !used {
			return candidate, nil
		}
		slog.Default().Debug("recipe id already taken", "id", candidate, "attempt", attempt)
		candidate++
	}
	return 0, &apperror.IdentifierExhaustionError{Attempts: al.maxAttempts, Last: candidate - 1}
}

func (al *Allocator) used(ctx context.Context, a *database.Adapter, id int64) (bool, error) {
	for _, table := range al.tables {
		var count int
		if err := a.Get(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = $1", table), id); err != nil {
			return false, fmt.Errorf("check id %d in %s: %w", id, table, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
