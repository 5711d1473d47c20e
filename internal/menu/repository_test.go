package menu

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
)

var (
	columns   = []string{"id", "week_start_date", "week_end_date", "name", "active", "created_at", "updated_at"}
	itemCols  = []string{"id", "menu_id", "day_of_week", "recipe_id", "meal_type", "recipe_name", "recipe_type"}
	weekStart = time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)
	weekEnd   = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	stamp     = time.Date(2026, 10, 10, 9, 30, 0, 0, time.UTC)
)

func newMockRepository(t *testing.T, dialect database.Dialect, schema database.Schema) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(database.NewDB(sqlx.NewDb(db, dialect.DriverName()), dialect), schema), mock
}

func TestRepository_Create(t *testing.T) {
	t.Run("postgres returns the inserted row", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO WeeklyMenus (week_start_date, week_end_date, name) VALUES ($1, $2, $3) RETURNING " + menuColumns)).
			WithArgs(weekStart, weekEnd, "Autumn week").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(1, weekStart, weekEnd, "Autumn week", false, stamp, stamp))

		got, err := repo.Create(context.Background(), Input{Name: " Autumn week ", WeekStart: weekStart, WeekEnd: weekEnd})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ID)
		assert.Equal(t, "Autumn week", got.DisplayName())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mysql re-reads the generated row", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.MySQL{}, database.CurrentSchema())
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO WeeklyMenus (week_start_date, week_end_date, name) VALUES (?, ?, ?)")).
			WithArgs(weekStart, weekEnd, nil).
			WillReturnResult(sqlmock.NewResult(4, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM WeeklyMenus WHERE id = ?")).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(4, weekStart, weekEnd, nil, false, stamp, stamp))

		got, err := repo.Create(context.Background(), Input{WeekStart: weekStart, WeekEnd: weekEnd})
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.ID)
		assert.Equal(t, "Week of 2026-10-11", got.DisplayName())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		_, err := repo.Create(context.Background(), Input{WeekStart: weekEnd, WeekEnd: weekStart})
		assert.True(t, apperror.IsValidation(err))

		_, err = repo.Create(context.Background(), Input{WeekEnd: weekEnd})
		assert.True(t, apperror.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Get(t *testing.T) {
	repo, mock := newMockRepository(t, database.Postgres{}, database.Schema{RecipeTables: []string{"Names"}})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + menuColumns + " FROM WeeklyMenus WHERE id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(2, weekStart, weekEnd, "Week", true, stamp, stamp))
	mock.ExpectQuery(regexp.QuoteMeta("FROM MenuItems mi LEFT JOIN Names r ON r.id = mi.recipe_id")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(10, 2, 1, 7, "dinner", "Chili", "Dinner").
			AddRow(11, 2, 3, 99, "lunch", nil, nil))

	got, err := repo.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, got.Active)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Monday", got.Items[0].Day())
	assert.Equal(t, "Chili", *got.Items[0].RecipeName)
	assert.Nil(t, got.Items[1].RecipeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Active_None(t *testing.T) {
	repo, mock := newMockRepository(t, database.MySQL{}, database.CurrentSchema())
	mock.ExpectQuery(regexp.QuoteMeta("FROM WeeklyMenus WHERE active = TRUE ORDER BY updated_at DESC, id DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Active(context.Background())
	var notFound *apperror.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "active", notFound.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
	cols := "m.id, m.week_start_date, m.week_end_date, m.name, m.active, m.created_at, m.updated_at"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + cols + ", COUNT(DISTINCT mi.recipe_id) AS recipe_count\nFROM WeeklyMenus m LEFT JOIN MenuItems mi ON mi.menu_id = m.id\nGROUP BY " + cols + " ORDER BY m.week_start_date DESC, m.id DESC")).
		WillReturnRows(sqlmock.NewRows(append(columns, "recipe_count")).
			AddRow(3, weekStart.AddDate(0, 0, 7), weekEnd.AddDate(0, 0, 7), nil, false, stamp, stamp, 0).
			AddRow(2, weekStart, weekEnd, "Week", true, stamp, stamp, 5))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, 5, got[1].RecipeCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t, database.MySQL{}, database.CurrentSchema())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE WeeklyMenus SET week_start_date = ?, week_end_date = ?, name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
		WithArgs(weekStart, weekEnd, "Renamed", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), 8, Input{Name: "Renamed", WeekStart: weekStart, WeekEnd: weekEnd})
	assert.True(t, apperror.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SetItem(t *testing.T) {
	t.Run("upserts the slot", func(t *testing.T) {
		tests := []struct {
			name    string
			dialect database.Dialect
			upsert  string
		}{
			{
				name:    "postgres",
				dialect: database.Postgres{},
				upsert:  "INSERT INTO MenuItems (menu_id, day_of_week, meal_type, recipe_id) VALUES ($1, $2, $3, $4) ON CONFLICT (menu_id, day_of_week, meal_type) DO UPDATE SET recipe_id = EXCLUDED.recipe_id",
			},
			{
				name:    "mysql",
				dialect: database.MySQL{},
				upsert:  "INSERT INTO MenuItems (menu_id, day_of_week, meal_type, recipe_id) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE recipe_id = VALUES(recipe_id)",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo, mock := newMockRepository(t, tt.dialect, database.CurrentSchema())
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT id FROM WeeklyMenus WHERE id").WithArgs(int64(2)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
				mock.ExpectQuery("SELECT id FROM Name WHERE id").WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
				mock.ExpectExec(regexp.QuoteMeta(tt.upsert)).
					WithArgs(int64(2), 5, "dinner", int64(7)).
					WillReturnResult(sqlmock.NewResult(30, 1))
				mock.ExpectQuery("WHERE mi.menu_id = .+ AND mi.day_of_week = .+ AND mi.meal_type = ").
					WithArgs(int64(2), 5, "dinner").
					WillReturnRows(sqlmock.NewRows(itemCols).AddRow(30, 2, 5, 7, "dinner", "Chili", "Dinner"))
				mock.ExpectCommit()

				got, err := repo.SetItem(context.Background(), 2, ItemInput{DayOfWeek: 5, RecipeID: 7, MealType: " "})
				require.NoError(t, err)
				assert.Equal(t, "Friday", got.Day())
				assert.Equal(t, "dinner", got.MealType)
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	})

	t.Run("recipe found in the legacy table", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.Schema{RecipeTables: []string{"Name", "Names"}})
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM WeeklyMenus").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery("SELECT id FROM Name WHERE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery("SELECT id FROM Names WHERE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectExec("INSERT INTO MenuItems").WithArgs(int64(2), 0, "lunch", int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM MenuItems mi").WillReturnRows(sqlmock.NewRows(itemCols).AddRow(31, 2, 0, 7, "lunch", "Stew", nil))
		mock.ExpectCommit()

		got, err := repo.SetItem(context.Background(), 2, ItemInput{DayOfWeek: 0, RecipeID: 7, MealType: "Lunch"})
		require.NoError(t, err)
		assert.Equal(t, "Sunday", got.Day())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing recipe rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM WeeklyMenus").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery("SELECT id FROM Name WHERE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.SetItem(context.Background(), 2, ItemInput{DayOfWeek: 1, RecipeID: 70})
		var notFound *apperror.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "recipe", notFound.Entity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("day out of range", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		_, err := repo.SetItem(context.Background(), 2, ItemInput{DayOfWeek: 7, RecipeID: 1})
		assert.True(t, apperror.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_RemoveItem(t *testing.T) {
	repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM MenuItems WHERE id = $1 AND menu_id = $2")).
		WithArgs(int64(30), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM MenuItems WHERE id = $1 AND menu_id = $2")).
		WithArgs(int64(30), int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.RemoveItem(context.Background(), 2, 30))
	assert.True(t, apperror.IsNotFound(repo.RemoveItem(context.Background(), 2, 30)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Activate(t *testing.T) {
	t.Run("clears the others and sets one", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE WeeklyMenus SET active = FALSE WHERE active = TRUE AND id <> $1")).
			WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE WeeklyMenus SET active = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1")).
			WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + menuColumns + " FROM WeeklyMenus WHERE id = $1")).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(2, weekStart, weekEnd, nil, true, stamp, stamp))
		mock.ExpectQuery("FROM MenuItems mi").WillReturnRows(sqlmock.NewRows(itemCols))
		mock.ExpectCommit()

		got, err := repo.Activate(context.Background(), 2)
		require.NoError(t, err)
		assert.True(t, got.Active)
		assert.Empty(t, got.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown menu leaves the active one alone", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		mock.ExpectBegin()
		mock.ExpectExec("SET active = FALSE").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("SET active = TRUE").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.Activate(context.Background(), 404)
		assert.True(t, apperror.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Delete(t *testing.T) {
	t.Run("removes lists and items first", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.MySQL{}, database.CurrentSchema())
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ShoppingListItems WHERE shopping_list_id IN (SELECT id FROM ShoppingLists WHERE menu_id = ?)")).
			WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 12))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ShoppingLists WHERE menu_id = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM MenuItems WHERE menu_id = ?")).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM WeeklyMenus WHERE id = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Delete(context.Background(), 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("statement failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t, database.Postgres{}, database.CurrentSchema())
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM ShoppingListItems").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM ShoppingLists").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM MenuItems").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM WeeklyMenus").WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
		mock.ExpectRollback()

		err := repo.Delete(context.Background(), 2)
		assert.True(t, database.IsQueryError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
