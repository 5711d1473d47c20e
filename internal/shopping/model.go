// Package shopping aggregates the ingredients of a weekly menu into shopping lists.
package shopping

import (
	"strconv"
	"strings"
	"time"
)

const DefaultListName = "Shopping List"

// List is a generated shopping list of a menu.
type List struct {
	ID        int64      `db:"id" json:"id"`
	MenuID    int64      `db:"menu_id" json:"menu_id"`
	Name      *string    `db:"name" json:"name,omitempty"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	Items []Item `db:"-" json:"items"`
}

func (l List) Title() string {
	if l.Name != nil && *l.Name != "" {
		return *l.Name
	}
	return DefaultListName
}

// Item is one aggregated ingredient. RandomID is the handle external systems use.
type Item struct {
	ID          int64      `db:"id" json:"-"`
	ListID      int64      `db:"shopping_list_id" json:"shopping_list_id"`
	Ingredient  string     `db:"ingredient" json:"ingredient"`
	TotalAmount *float64   `db:"total_amount" json:"total_amount,omitempty"`
	AmountType  *string    `db:"amount_type" json:"amount_type,omitempty"`
	IsPurchased bool       `db:"is_purchased" json:"is_purchased"`
	RandomID    string     `db:"random_id" json:"random_id"`
	Name        *string    `db:"name" json:"name,omitempty"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// DisplayName is the stored name, or one built from the ingredient, amount and unit.
func (i Item) DisplayName() string {
	if i.Name != nil && *i.Name != "" {
		return *i.Name
	}
	return displayName(i.Ingredient, i.TotalAmount, i.AmountType)
}

func (i Item) View() ItemView {
	return ItemView{Name: i.DisplayName(), ID: i.RandomID, Complete: i.IsPurchased}
}

// ItemView is the shape shared with Home Assistant's shopping list.
type ItemView struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Complete bool   `json:"complete"`
}

// ItemPatch updates only the fields that are set.
type ItemPatch struct {
	Name        *string  `json:"name"`
	TotalAmount *float64 `json:"total_amount"`
	AmountType  *string  `json:"amount_type"`
	Complete    *bool    `json:"complete"`
}

type ItemInput struct {
	Name        string   `json:"name" validate:"required,notblank"`
	TotalAmount *float64 `json:"total_amount"`
	AmountType  *string  `json:"amount_type"`
}

func displayName(ingredient string, amount *float64, unit *string) string {
	parts := []string{strings.TrimSpace(ingredient)}
	if amount != nil {
		parts = append(parts, formatAmount(*amount))
	}
	if unit != nil && strings.TrimSpace(*unit) != "" {
		parts = append(parts, strings.TrimSpace(*unit))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// formatAmount drops trailing zeros: 2 not 2.0, 1.5 not 1.50.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func views(items []Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, it.View())
	}
	return out
}
