package recipe

import (
	"context"
	"fmt"

	"github.com/at-ishikawa/recipebook/internal/database"
)

// Part selects a dependent record set.
type Part uint8

const (
	PartIngredients Part = 1 << iota
	PartInstructions
	PartCookingTime
	PartRating

	PartAll = PartIngredients | PartInstructions | PartCookingTime | PartRating
)

// Related holds dependent records grouped by recipe id.
type Related struct {
	Ingredients  map[int64][]Ingredient
	Instructions map[int64][]Instruction
	CookingTimes map[int64]*CookingTime
	Ratings      map[int64]*Rating
}

// Apply copies the loaded records onto the recipes.
func (rel Related) Apply(recipes []Recipe) {
	for i := range recipes {
		id := recipes[i].ID
		if rel.Ingredients != nil {
			recipes[i].Ingredients = rel.Ingredients[id]
		}
		if rel.Instructions != nil {
			recipes[i].Instructions = rel.Instructions[id]
		}
		if rel.CookingTimes != nil {
			recipes[i].CookingTime = rel.CookingTimes[id]
		}
		if rel.Ratings != nil {
			recipes[i].Rating = rel.Ratings[id]
		}
	}
}

// Loader fetches dependent records for many recipes with one query per table.
type Loader struct {
	schema database.Schema
}

func NewLoader(schema database.Schema) *Loader {
	return &Loader{schema: schema}
}

// Load returns the selected dependent records of ids. An empty id set runs no queries.
func (l *Loader) Load(ctx context.Context, a *database.Adapter, ids []int64, parts Part) (Related, error) {
	var rel Related
	if len(ids) == 0 {
		return rel, nil
	}

	if parts&PartIngredients != 0 {
		var rows []Ingredient
		if err := l.selectFor(ctx, a, &rows, "id, amount, amount_type, ingredient", "Ingredients", ids, "id"); err != nil {
			return rel, fmt.Errorf("load ingredients: %w", err)
		}
		rel.Ingredients = make(map[int64][]Ingredient, len(ids))
		for _, row := range rows {
			rel.Ingredients[row.RecipeID] = append(rel.Ingredients[row.RecipeID], row)
		}
	}

	if parts&PartInstructions != 0 {
		var rows []Instruction
		if err := l.selectFor(ctx, a, &rows, "id, step, instruction", "Instructions", ids, "id, step"); err != nil {
			return rel, fmt.Errorf("load instructions: %w", err)
		}
		rel.Instructions = make(map[int64][]Instruction, len(ids))
		for _, row := range rows {
			rel.Instructions[row.RecipeID] = append(rel.Instructions[row.RecipeID], row)
		}
	}

	if parts&PartCookingTime != 0 {
		var rows []CookingTime
		if err := l.selectFor(ctx, a, &rows, "id, time, timeunit", "CookingTimes", ids, "id"); err != nil {
			return rel, fmt.Errorf("load cooking times: %w", err)
		}
		rel.CookingTimes = make(map[int64]*CookingTime, len(rows))
		for i := range rows {
			if _, ok := rel.CookingTimes[rows[i].RecipeID]; !ok {
				rel.CookingTimes[rows[i].RecipeID] = &rows[i]
			}
		}
	}

	if parts&PartRating != 0 {
		var rows []Rating
		if err := l.selectFor(ctx, a, &rows, "id, rating", "Ratings", ids, "id"); err != nil {
			return rel, fmt.Errorf("load ratings: %w", err)
		}
		rel.Ratings = make(map[int64]*Rating, len(rows))
		for i := range rows {
			if _, ok := rel.Ratings[rows[i].RecipeID]; !ok {
				rel.Ratings[rows[i].RecipeID] = &rows[i]
			}
		}
	}

	return rel, nil
}

// Hydrate loads the selected parts and attaches them to recipes.
func (l *Loader) Hydrate(ctx context.Context, a *database.Adapter, recipes []Recipe, parts Part) error {
	ids := make([]int64, len(recipes))
	for i := range recipes {
		ids[i] = recipes[i].ID
	}
	rel, err := l.Load(ctx, a, ids, parts)
	if err != nil {
		return err
	}
	rel.Apply(recipes)
	return nil
}

func (l *Loader) selectFor(ctx context.Context, a *database.Adapter, dest any, columns, table string, ids []int64, orderBy string) error {
	if l.schema.HasRowOrder {
		columns += ", row_id"
		orderBy += ", row_id"
	}
	clause, args := a.Dialect().MemberOf("id", ids, 1)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", columns, table, clause, orderBy)
	return a.Select(ctx, dest, query, args...)
}
