package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/internal/validation"
)

const menuColumns = "id, week_start_date, week_end_date, name, active, created_at, updated_at"

// Repository stores weekly menus and their items.
type Repository struct {
	db        *database.DB
	schema    database.Schema
	validator *validation.Validator
}

func NewRepository(db *database.DB, schema database.Schema) *Repository {
	return &Repository{
		db:        db,
		schema:    schema,
		validator: validation.MustNewValidator(),
	}
}

func (r *Repository) Create(ctx context.Context, in Input) (*Menu, error) {
	if err := r.validator.Struct(in); err != nil {
		return nil, err
	}

	var m Menu
	err := r.db.Adapter().InsertReturning(ctx, &m,
		"INSERT INTO WeeklyMenus (week_start_date, week_end_date, name) VALUES ($1, $2, $3) RETURNING "+menuColumns,
		in.WeekStart, in.WeekEnd, optionalText(in.Name))
	if err != nil {
		return nil, fmt.Errorf("create menu: %w", err)
	}
	return &m, nil
}

func (r *Repository) Update(ctx context.Context, id int64, in Input) (*Menu, error) {
	if err := r.validator.Struct(in); err != nil {
		return nil, err
	}

	res, err := r.db.Adapter().Exec(ctx,
		"UPDATE WeeklyMenus SET week_start_date = $1, week_end_date = $2, name = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $4",
		in.WeekStart, in.WeekEnd, optionalText(in.Name), id)
	if err != nil {
		return nil, fmt.Errorf("update menu %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return nil, &apperror.NotFoundError{Entity: "menu", Key: id}
	}
	return r.Get(ctx, id)
}

// Get returns the menu with its items and the names of their recipes.
func (r *Repository) Get(ctx context.Context, id int64) (*Menu, error) {
	return r.get(ctx, r.db.Adapter(), "SELECT "+menuColumns+" FROM WeeklyMenus WHERE id = $1", id)
}

// Active returns the active menu with its items.
func (r *Repository) Active(ctx context.Context) (*Menu, error) {
	return r.get(ctx, r.db.Adapter(),
		"SELECT "+menuColumns+" FROM WeeklyMenus WHERE active = TRUE ORDER BY updated_at DESC, id DESC LIMIT 1")
}

func (r *Repository) get(ctx context.Context, a *database.Adapter, query string, args ...any) (*Menu, error) {
	var m Menu
	err := a.Get(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if len(args) == 0 {
			return nil, &apperror.NotFoundError{Entity: "menu", Key: "active"}
		}
		return nil, &apperror.NotFoundError{Entity: "menu", Key: args[0]}
	}
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}

	items, err := r.items(ctx, a, m.ID)
	if err != nil {
		return nil, err
	}
	m.Items = items
	return &m, nil
}

func (r *Repository) items(ctx context.Context, a *database.Adapter, menuID int64) ([]Item, error) {
	items := []Item{}
	query := fmt.Sprintf(`SELECT mi.id, mi.menu_id, mi.day_of_week, mi.recipe_id, mi.meal_type, r.name AS recipe_name, r.type AS recipe_type
FROM MenuItems mi LEFT JOIN %s r ON r.id = mi.recipe_id
WHERE mi.menu_id = $1 ORDER BY mi.day_of_week, mi.meal_type`, r.schema.RecipeTable())
	if err := a.Select(ctx, &items, query, menuID); err != nil {
		return nil, fmt.Errorf("load items of menu %d: %w", menuID, err)
	}
	return items, nil
}

// List returns every menu, newest week first, with its distinct recipe count.
func (r *Repository) List(ctx context.Context) ([]Summary, error) {
	cols := prefixed("m", menuColumns)
	menus := []Summary{}
	query := fmt.Sprintf(`SELECT %s, COUNT(DISTINCT mi.recipe_id) AS recipe_count
FROM WeeklyMenus m LEFT JOIN MenuItems mi ON mi.menu_id = m.id
GROUP BY %s ORDER BY m.week_start_date DESC, m.id DESC`, cols, cols)
	if err := r.db.Adapter().Select(ctx, &menus, query); err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	return menus, nil
}

// Delete removes the menu with its items and shopping lists.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		stmts := []string{
			"DELETE FROM ShoppingListItems WHERE shopping_list_id IN (SELECT id FROM ShoppingLists WHERE menu_id = $1)",
			"DELETE FROM ShoppingLists WHERE menu_id = $1",
			"DELETE FROM MenuItems WHERE menu_id = $1",
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete menu %d: %w", id, err)
			}
		}
		res, err := tx.Exec(ctx, "DELETE FROM WeeklyMenus WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("delete menu %d: %w", id, err)
		}
		if res.RowsAffected == 0 {
			return &apperror.NotFoundError{Entity: "menu", Key: id}
		}
		return nil
	})
}

// SetItem plans a recipe for a day and meal, replacing whatever was planned there.
func (r *Repository) SetItem(ctx context.Context, menuID int64, in ItemInput) (*Item, error) {
	if err := r.validator.Struct(in); err != nil {
		return nil, err
	}
	mealType := strings.ToLower(strings.TrimSpace(in.MealType))
	if mealType == "" {
		mealType = DefaultMealType
	}

	var item *Item
	err := r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		if err := r.exists(ctx, tx, "menu", "WeeklyMenus", menuID); err != nil {
			return err
		}
		if err := r.recipeExists(ctx, tx, in.RecipeID); err != nil {
			return err
		}

		upsert := tx.Dialect().Upsert("MenuItems",
			[]string{"menu_id", "day_of_week", "meal_type", "recipe_id"},
			[]string{"menu_id", "day_of_week", "meal_type"},
			[]string{"recipe_id"})
		if _, err := tx.Exec(ctx, upsert, menuID, in.DayOfWeek, mealType, in.RecipeID); err != nil {
			return fmt.Errorf("plan recipe %d in menu %d: %w", in.RecipeID, menuID, err)
		}

		var saved Item
		err := tx.Get(ctx, &saved, fmt.Sprintf(`SELECT mi.id, mi.menu_id, mi.day_of_week, mi.recipe_id, mi.meal_type, r.name AS recipe_name, r.type AS recipe_type
FROM MenuItems mi LEFT JOIN %s r ON r.id = mi.recipe_id
WHERE mi.menu_id = $1 AND mi.day_of_week = $2 AND mi.meal_type = $3`, r.schema.RecipeTable()),
			menuID, in.DayOfWeek, mealType)
		if err != nil {
			return fmt.Errorf("read back menu item: %w", err)
		}
		item = &saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *Repository) RemoveItem(ctx context.Context, menuID, itemID int64) error {
	res, err := r.db.Adapter().Exec(ctx, "DELETE FROM MenuItems WHERE id = $1 AND menu_id = $2", itemID, menuID)
	if err != nil {
		return fmt.Errorf("remove item %d from menu %d: %w", itemID, menuID, err)
	}
	if res.RowsAffected == 0 {
		return &apperror.NotFoundError{Entity: "menu item", Key: itemID}
	}
	return nil
}

// Activate makes id the only active menu.
func (r *Repository) Activate(ctx context.Context, id int64) (*Menu, error) {
	var activated *Menu
	err := r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		if _, err := tx.Exec(ctx, "UPDATE WeeklyMenus SET active = FALSE WHERE active = TRUE AND id <> $1", id); err != nil {
			return fmt.Errorf("deactivate menus: %w", err)
		}
		res, err := tx.Exec(ctx, "UPDATE WeeklyMenus SET active = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("activate menu %d: %w", id, err)
		}
		if res.RowsAffected == 0 {
			return &apperror.NotFoundError{Entity: "menu", Key: id}
		}
		activated, err = r.get(ctx, tx, "SELECT "+menuColumns+" FROM WeeklyMenus WHERE id = $1", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

func (r *Repository) exists(ctx context.Context, a *database.Adapter, entity, table string, id int64) error {
	var found int64
	err := a.Get(ctx, &found, fmt.Sprintf("SELECT id FROM %s WHERE id = $1", table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return &apperror.NotFoundError{Entity: entity, Key: id}
	}
	if err != nil {
		return fmt.Errorf("find %s %d: %w", entity, id, err)
	}
	return nil
}

func (r *Repository) recipeExists(ctx context.Context, a *database.Adapter, id int64) error {
	var lastErr error
	for _, table := range r.schema.RecipeTables {
		lastErr = r.exists(ctx, a, "recipe", table, id)
		if lastErr == nil || !apperror.IsNotFound(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i := range cols {
		cols[i] = alias + "." + cols[i]
	}
	return strings.Join(cols, ", ")
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
