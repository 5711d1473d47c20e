package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
)

const (
	listColumns = "id, menu_id, name, created_at, updated_at"
	itemColumns = "id, shopping_list_id, ingredient, total_amount, amount_type, is_purchased, random_id, name, created_at, updated_at"
)

// aggregateQuery sums each ingredient over every occurrence of its recipe in the menu.
// Ingredient and unit are case-folded so both backends form the same groups.
const aggregateQuery = `SELECT LOWER(TRIM(i.ingredient)) AS ingredient,
NULLIF(LOWER(COALESCE(i.amount_type, '')), '') AS amount_type,
SUM(i.amount * rc.recipe_count) AS total_amount
FROM Ingredients i
JOIN (SELECT recipe_id, COUNT(*) AS recipe_count FROM MenuItems WHERE menu_id = $1 GROUP BY recipe_id) rc ON i.id = rc.recipe_id
GROUP BY LOWER(TRIM(i.ingredient)), LOWER(COALESCE(i.amount_type, ''))
ORDER BY ingredient, LOWER(COALESCE(i.amount_type, ''))`

type aggregate struct {
	Ingredient  string   `db:"ingredient"`
	AmountType  *string  `db:"amount_type"`
	TotalAmount *float64 `db:"total_amount"`
}

// Aggregator builds shopping lists from menus.
type Aggregator struct {
	db    *database.DB
	newID func() string
}

type AggregatorOption func(*Aggregator)

// WithIDGenerator replaces the random item id source.
func WithIDGenerator(fn func() string) AggregatorOption {
	return func(a *Aggregator) { a.newID = fn }
}

func NewAggregator(db *database.DB, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{db: db, newID: newRandomID}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// newRandomID returns 32 lowercase hex characters.
func newRandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Generate creates a new shopping list for the menu and returns its items.
// Nothing is written unless every step succeeds.
func (a *Aggregator) Generate(ctx context.Context, menuID int64, listName string) ([]ItemView, error) {
	var list *List
	err := a.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		var err error
		list, err = a.generate(ctx, tx, menuID, listName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views(list.Items), nil
}

func (a *Aggregator) generate(ctx context.Context, tx *database.Adapter, menuID int64, listName string) (*List, error) {
	var found int64
	err := tx.Get(ctx, &found, "SELECT id FROM WeeklyMenus WHERE id = $1", menuID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Entity: "menu", Key: menuID}
	}
	if err != nil {
		return nil, fmt.Errorf("find menu %d: %w", menuID, err)
	}

	var planned int
	if err := tx.Get(ctx, &planned, "SELECT COUNT(*) FROM MenuItems WHERE menu_id = $1", menuID); err != nil {
		return nil, fmt.Errorf("count items of menu %d: %w", menuID, err)
	}
	if planned == 0 {
		return nil, &apperror.AggregationPreconditionError{MenuID: menuID}
	}

	var groups []aggregate
	if err := tx.Select(ctx, &groups, aggregateQuery, menuID); err != nil {
		return nil, fmt.Errorf("aggregate ingredients of menu %d: %w", menuID, err)
	}

	listName = strings.TrimSpace(listName)
	if listName == "" {
		listName = DefaultListName
	}
	var list List
	if err := tx.InsertReturning(ctx, &list,
		"INSERT INTO ShoppingLists (menu_id, name) VALUES ($1, $2) RETURNING "+listColumns,
		menuID, listName); err != nil {
		return nil, fmt.Errorf("create shopping list: %w", err)
	}

	list.Items = make([]Item, 0, len(groups))
	if len(groups) == 0 {
		return &list, nil
	}

	var args []any
	for _, g := range groups {
		name := displayName(g.Ingredient, g.TotalAmount, g.AmountType)
		item := Item{
			ListID:      list.ID,
			Ingredient:  g.Ingredient,
			TotalAmount: g.TotalAmount,
			AmountType:  g.AmountType,
			RandomID:    a.newID(),
			Name:        &name,
		}
		list.Items = append(list.Items, item)
		args = append(args, item.ListID, item.Ingredient, item.TotalAmount, item.AmountType, item.RandomID, name)
	}
	query := database.BuildMultiRowInsert("ShoppingListItems",
		[]string{"shopping_list_id", "ingredient", "total_amount", "amount_type", "random_id", "name"}, len(groups))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert shopping list items: %w", err)
	}
	return &list, nil
}
