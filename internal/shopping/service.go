package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/internal/menu"
	"github.com/at-ishikawa/recipebook/internal/validation"
)

const activeListQuery = `SELECT sl.id FROM ShoppingLists sl JOIN WeeklyMenus m ON m.id = sl.menu_id
WHERE m.active = TRUE ORDER BY sl.created_at DESC, sl.id DESC LIMIT 1`

// Service reads and edits generated shopping lists.
type Service struct {
	db         *database.DB
	aggregator *Aggregator
	validator  *validation.Validator
}

func NewService(db *database.DB, aggregator *Aggregator) *Service {
	return &Service{
		db:         db,
		aggregator: aggregator,
		validator:  validation.MustNewValidator(),
	}
}

// Active returns the newest list of the active menu, generating one when the menu has none.
func (s *Service) Active(ctx context.Context) (*List, error) {
	var list *List
	err := s.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		var m menu.Menu
		err := tx.Get(ctx, &m, "SELECT id, name, week_start_date FROM WeeklyMenus WHERE active = TRUE ORDER BY updated_at DESC, id DESC LIMIT 1")
		if errors.Is(err, sql.ErrNoRows) {
			return &apperror.NotFoundError{Entity: "menu", Key: "active"}
		}
		if err != nil {
			return fmt.Errorf("find active menu: %w", err)
		}

		list, err = s.newest(ctx, tx, m.ID)
		if err == nil || !apperror.IsNotFound(err) {
			return err
		}
		list, err = s.aggregator.generate(ctx, tx, m.ID, m.DisplayName()+" - "+DefaultListName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ForMenu returns the newest list generated for the menu.
func (s *Service) ForMenu(ctx context.Context, menuID int64) (*List, error) {
	return s.newest(ctx, s.db.Adapter(), menuID)
}

func (s *Service) Get(ctx context.Context, listID int64) (*List, error) {
	return s.load(ctx, s.db.Adapter(), "SELECT "+listColumns+" FROM ShoppingLists WHERE id = $1", listID)
}

func (s *Service) newest(ctx context.Context, a *database.Adapter, menuID int64) (*List, error) {
	return s.load(ctx, a,
		"SELECT "+listColumns+" FROM ShoppingLists WHERE menu_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1", menuID)
}

func (s *Service) load(ctx context.Context, a *database.Adapter, query string, key int64) (*List, error) {
	var list List
	err := a.Get(ctx, &list, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Entity: "shopping list", Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("load shopping list: %w", err)
	}

	list.Items = []Item{}
	if err := a.Select(ctx, &list.Items,
		"SELECT "+itemColumns+" FROM ShoppingListItems WHERE shopping_list_id = $1 ORDER BY ingredient, id", list.ID); err != nil {
		return nil, fmt.Errorf("load items of shopping list %d: %w", list.ID, err)
	}
	return &list, nil
}

// UpdateItem applies the set fields of patch to the item with randomID.
func (s *Service) UpdateItem(ctx context.Context, randomID string, patch ItemPatch) (*Item, error) {
	res, err := s.db.Adapter().Exec(ctx, `UPDATE ShoppingListItems SET name = COALESCE($1, name),
total_amount = COALESCE($2, total_amount), amount_type = COALESCE($3, amount_type),
is_purchased = COALESCE($4, is_purchased), updated_at = CURRENT_TIMESTAMP WHERE random_id = $5`,
		patch.Name, patch.TotalAmount, patch.AmountType, patch.Complete, randomID)
	if err != nil {
		return nil, fmt.Errorf("update shopping item %s: %w", randomID, err)
	}
	if res.RowsAffected == 0 {
		return nil, &apperror.NotFoundError{Entity: "shopping item", Key: randomID}
	}
	return s.item(ctx, s.db.Adapter(), randomID)
}

func (s *Service) item(ctx context.Context, a *database.Adapter, randomID string) (*Item, error) {
	var it Item
	err := a.Get(ctx, &it, "SELECT "+itemColumns+" FROM ShoppingListItems WHERE random_id = $1", randomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperror.NotFoundError{Entity: "shopping item", Key: randomID}
	}
	if err != nil {
		return nil, fmt.Errorf("load shopping item %s: %w", randomID, err)
	}
	return &it, nil
}

// AddItem appends a hand-written item to the active menu's newest list.
func (s *Service) AddItem(ctx context.Context, in ItemInput) (*Item, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	ingredient := strings.ToLower(strings.Fields(name)[0])

	var added *Item
	err := s.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		var listID int64
		err := tx.Get(ctx, &listID, activeListQuery)
		if errors.Is(err, sql.ErrNoRows) {
			return &apperror.NotFoundError{Entity: "shopping list", Key: "active"}
		}
		if err != nil {
			return fmt.Errorf("find active shopping list: %w", err)
		}

		randomID := s.aggregator.newID()
		if _, err := tx.Exec(ctx,
			"INSERT INTO ShoppingListItems (shopping_list_id, ingredient, total_amount, amount_type, random_id, name) VALUES ($1, $2, $3, $4, $5, $6)",
			listID, ingredient, in.TotalAmount, in.AmountType, randomID, name); err != nil {
			return fmt.Errorf("add shopping item: %w", err)
		}
		added, err = s.item(ctx, tx, randomID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Service) DeleteItem(ctx context.Context, randomID string) error {
	res, err := s.db.Adapter().Exec(ctx, "DELETE FROM ShoppingListItems WHERE random_id = $1", randomID)
	if err != nil {
		return fmt.Errorf("delete shopping item %s: %w", randomID, err)
	}
	if res.RowsAffected == 0 {
		return &apperror.NotFoundError{Entity: "shopping item", Key: randomID}
	}
	return nil
}

// DeleteList removes the list and its items.
func (s *Service) DeleteList(ctx context.Context, listID int64) error {
	return s.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		if _, err := tx.Exec(ctx, "DELETE FROM ShoppingListItems WHERE shopping_list_id = $1", listID); err != nil {
			return fmt.Errorf("delete items of shopping list %d: %w", listID, err)
		}
		res, err := tx.Exec(ctx, "DELETE FROM ShoppingLists WHERE id = $1", listID)
		if err != nil {
			return fmt.Errorf("delete shopping list %d: %w", listID, err)
		}
		if res.RowsAffected == 0 {
			return &apperror.NotFoundError{Entity: "shopping list", Key: listID}
		}
		return nil
	})
}

// PendingNames lists the distinct names still to buy on the active list.
func (s *Service) PendingNames(ctx context.Context) ([]string, error) {
	names := []string{}
	query := `SELECT DISTINCT COALESCE(sli.name, sli.ingredient) AS name FROM ShoppingListItems sli
WHERE sli.is_purchased = FALSE AND sli.shopping_list_id = (` + activeListQuery + `)
ORDER BY name`
	if err := s.db.Adapter().Select(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list pending shopping items: %w", err)
	}
	return names, nil
}
