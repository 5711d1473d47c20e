// Package recipe stores recipes and their ingredients, instructions, cooking times and ratings.
package recipe

import (
	"math"
	"strings"

	"github.com/at-ishikawa/recipebook/internal/database"
)

// Recipe is a recipe row together with its dependent records.
type Recipe struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Type        *string `db:"type" json:"type,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`
	Meat        *bool   `db:"meat" json:"meat,omitempty"`
	Fish        *bool   `db:"fish" json:"fish,omitempty"`
	Poultry     *bool   `db:"poultry" json:"poultry,omitempty"`

	Ingredients  []Ingredient  `db:"-" json:"ingredients,omitempty"`
	Instructions []Instruction `db:"-" json:"instructions,omitempty"`
	CookingTime  *CookingTime  `db:"-" json:"cooking_time,omitempty"`
	Rating       *Rating       `db:"-" json:"rating,omitempty"`
}

// Ingredient rows reference their recipe through the id column.
type Ingredient struct {
	RecipeID   int64    `db:"id" json:"recipe_id"`
	RowID      int64    `db:"row_id" json:"row_id"`
	Amount     *float64 `db:"amount" json:"amount,omitempty"`
	AmountType *string  `db:"amount_type" json:"amount_type,omitempty"`
	Ingredient string   `db:"ingredient" json:"ingredient"`
}

type Instruction struct {
	RecipeID    int64  `db:"id" json:"recipe_id"`
	RowID       int64  `db:"row_id" json:"row_id"`
	Step        int    `db:"step" json:"step"`
	Instruction string `db:"instruction" json:"instruction"`
}

type CookingTime struct {
	RecipeID int64  `db:"id" json:"recipe_id"`
	RowID    int64  `db:"row_id" json:"row_id"`
	Time     int    `db:"time" json:"time"`
	Unit     string `db:"timeunit" json:"unit"`
}

type Rating struct {
	RecipeID int64   `db:"id" json:"recipe_id"`
	RowID    int64   `db:"row_id" json:"row_id"`
	Rating   float64 `db:"rating" json:"rating"`
}

// Input is the full description of a recipe used by Create and Update.
type Input struct {
	Name         string             `json:"name" yaml:"name" validate:"required,notblank"`
	Type         string             `json:"type" yaml:"type,omitempty"`
	Description  *string            `json:"description" yaml:"description,omitempty"`
	Meat         *bool              `json:"meat" yaml:"meat,omitempty"`
	Fish         *bool              `json:"fish" yaml:"fish,omitempty"`
	Poultry      *bool              `json:"poultry" yaml:"poultry,omitempty"`
	Ingredients  []IngredientInput  `json:"ingredients" yaml:"ingredients,omitempty" validate:"dive"`
	Instructions []InstructionInput `json:"instructions" yaml:"instructions,omitempty" validate:"dive"`
	CookingTime  *CookingTimeInput  `json:"cooking_time" yaml:"cooking_time,omitempty" validate:"omitempty"`
	Rating       *float64           `json:"rating" yaml:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type IngredientInput struct {
	Amount     *float64 `json:"amount" yaml:"amount,omitempty" validate:"omitempty,gte=0"`
	AmountType string   `json:"amount_type" yaml:"amount_type,omitempty"`
	Ingredient string   `json:"ingredient" yaml:"ingredient" validate:"required,notblank"`
}

type InstructionInput struct {
	Step        int    `json:"step" yaml:"step" validate:"gt=0"`
	Instruction string `json:"instruction" yaml:"instruction" validate:"required,notblank"`
}

type CookingTimeInput struct {
	Time int    `json:"time" yaml:"time" validate:"gt=0"`
	Unit string `json:"unit" yaml:"unit" validate:"required,notblank"`
}

// Columns lists the recipe columns present in schema, each prefixed with alias when one is given.
func Columns(schema database.Schema, alias string) string {
	cols := []string{"id", "name", "type"}
	if schema.HasDescription {
		cols = append(cols, "description")
	}
	if schema.HasCategoryFlags {
		cols = append(cols, "meat", "fish", "poultry")
	}
	if alias != "" {
		for i := range cols {
			cols[i] = alias + "." + cols[i]
		}
	}
	return strings.Join(cols, ", ")
}

// optionalText stores blank text as NULL.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Pagination describes one page of an ordered result.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Offset is the number of rows before the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is a page of recipes.
type Page struct {
	Recipes    []Recipe   `json:"recipes"`
	Pagination Pagination `json:"pagination"`
}
