package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/at-ishikawa/recipebook/internal/apperror"
)

// RecipeTableVariants are the recipe table names found in deployed schemas, preferred first.
var RecipeTableVariants = []string{"Name", "Names"}

// Schema describes the optional parts of the deployed schema.
// It is detected once at startup and passed to the repositories.
type Schema struct {
	// RecipeTables lists the recipe tables that exist, preferred first.
	RecipeTables     []string
	HasDescription   bool
	HasCategoryFlags bool
	// HasRowOrder means dependent tables carry a row_id that records insertion order.
	HasRowOrder           bool
	RecipeIDAutoIncrement bool
}

// CurrentSchema is the schema created by the bundled migrations.
func CurrentSchema() Schema {
	return Schema{
		RecipeTables:          []string{"Name"},
		HasDescription:        true,
		HasCategoryFlags:      true,
		HasRowOrder:           true,
		RecipeIDAutoIncrement: true,
	}
}

// RecipeTable is the table new recipes are written to.
func (s Schema) RecipeTable() string {
	return s.RecipeTables[0]
}

// DetectSchema probes the store for the tables and columns it has.
func DetectSchema(ctx context.Context, a *Adapter) (Schema, error) {
	var s Schema
	for _, table := range RecipeTableVariants {
		ok, err := probe(ctx, a, fmt.Sprintf("SELECT 1 FROM %s WHERE 1 = 0", table))
		if err != nil {
			return Schema{}, fmt.Errorf("probe table %s: %w", table, err)
		}
		if ok {
			s.RecipeTables = append(s.RecipeTables, table)
		}
	}
	if len(s.RecipeTables) == 0 {
		return Schema{}, &apperror.SchemaCompatibilityError{Detail: "neither Name nor Names table exists"}
	}

	table := s.RecipeTable()
	var err error
	if s.HasDescription, err = probeColumns(ctx, a, table, "description"); err != nil {
		return Schema{}, fmt.Errorf("probe description column: %w", err)
	}
	if s.HasCategoryFlags, err = probeColumns(ctx, a, table, "meat", "fish", "poultry"); err != nil {
		return Schema{}, fmt.Errorf("probe category columns: %w", err)
	}
	if s.HasRowOrder, err = probeColumns(ctx, a, "Ingredients", "row_id"); err != nil {
		return Schema{}, fmt.Errorf("probe row order column: %w", err)
	}

	var count int
	if err := a.Get(ctx, &count, a.Dialect().AutoIncrementQuery(), table); err != nil {
		return Schema{}, fmt.Errorf("probe id generation: %w", err)
	}
	s.RecipeIDAutoIncrement = count > 0

	slog.Default().Debug("detected schema",
		"recipe_tables", s.RecipeTables,
		"description", s.HasDescription,
		"category_flags", s.HasCategoryFlags,
		"row_order", s.HasRowOrder,
		"auto_increment", s.RecipeIDAutoIncrement)
	return s, nil
}

func probeColumns(ctx context.Context, a *Adapter, table string, columns ...string) (bool, error) {
	query := "SELECT 1 FROM " + table + " WHERE 1 = 0"
	for _, c := range columns {
		query += " AND " + c + " IS NULL"
	}
	return probe(ctx, a, query)
}

// probe runs an always-empty select and reports whether the referenced objects exist.
func probe(ctx context.Context, a *Adapter, query string) (bool, error) {
	var rows []int
	err := a.Select(ctx, &rows, query)
	switch {
	case err == nil:
		return true, nil
	case a.Dialect().IsUndefinedTable(err), a.Dialect().IsUndefinedColumn(err):
		return false, nil
	}
	return false, err
}
