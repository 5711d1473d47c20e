// Package menu plans recipes into the days and meals of a week.
package menu

import (
	"time"
)

const DefaultMealType = "dinner"

// Menu is one planned week.
type Menu struct {
	ID        int64      `db:"id" json:"id"`
	WeekStart time.Time  `db:"week_start_date" json:"week_start_date"`
	WeekEnd   time.Time  `db:"week_end_date" json:"week_end_date"`
	Name      *string    `db:"name" json:"name,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	Items []Item `db:"-" json:"items,omitempty"`
}

// DisplayName is the menu name, or its week when it has none.
func (m Menu) DisplayName() string {
	if m.Name != nil && *m.Name != "" {
		return *m.Name
	}
	return "Week of " + m.WeekStart.Format(time.DateOnly)
}

// Summary is a menu with the number of distinct recipes planned in it.
type Summary struct {
	Menu
	RecipeCount int `db:"recipe_count" json:"recipe_count"`
}

// Item places a recipe on a day (0 = Sunday) and meal of a menu.
type Item struct {
	ID         int64   `db:"id" json:"id"`
	MenuID     int64   `db:"menu_id" json:"menu_id"`
	DayOfWeek  int     `db:"day_of_week" json:"day_of_week"`
	RecipeID   int64   `db:"recipe_id" json:"recipe_id"`
	MealType   string  `db:"meal_type" json:"meal_type"`
	RecipeName *string `db:"recipe_name" json:"recipe_name,omitempty"`
	RecipeType *string `db:"recipe_type" json:"recipe_type,omitempty"`
}

// Day is the weekday name of the item.
func (i Item) Day() string {
	return time.Weekday(i.DayOfWeek).String()
}

type Input struct {
	Name      string    `json:"name"`
	WeekStart time.Time `json:"week_start_date" validate:"required"`
	WeekEnd   time.Time `json:"week_end_date" validate:"required,gtefield=WeekStart"`
}

type ItemInput struct {
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	RecipeID  int64  `json:"recipe_id" validate:"required,gt=0"`
	MealType  string `json:"meal_type"`
}
