package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recipebook/internal/apperror"
)

func TestDetectSchema(t *testing.T) {
	empty := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"1"}) }

	t.Run("postgres current schema", func(t *testing.T) {
		a, mock := newMockAdapter(t, Postgres{})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0")).WillReturnRows(empty())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0")).WillReturnError(&pq.Error{Code: "42P01"})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0 AND description IS NULL")).WillReturnRows(empty())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0 AND meat IS NULL AND fish IS NULL AND poultry IS NULL")).WillReturnRows(empty())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Ingredients WHERE 1 = 0 AND row_id IS NULL")).WillReturnRows(empty())
		mock.ExpectQuery("FROM information_schema.columns").WithArgs("Name").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		got, err := DetectSchema(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, CurrentSchema(), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mariadb legacy schema", func(t *testing.T) {
		a, mock := newMockAdapter(t, MySQL{})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0")).WillReturnError(&mysql.MySQLError{Number: 1146})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0")).WillReturnRows(empty())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0 AND description IS NULL")).WillReturnError(&mysql.MySQLError{Number: 1054})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0 AND meat IS NULL")).WillReturnError(&mysql.MySQLError{Number: 1054})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Ingredients WHERE 1 = 0 AND row_id IS NULL")).WillReturnError(&mysql.MySQLError{Number: 1054})
		mock.ExpectQuery("FROM information_schema.columns").WithArgs("Names").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		got, err := DetectSchema(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, Schema{RecipeTables: []string{"Names"}}, got)
		assert.Equal(t, "Names", got.RecipeTable())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("both recipe tables are kept in preference order", func(t *testing.T) {
		a, mock := newMockAdapter(t, Postgres{})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0")).WillReturnRows(empty())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0")).WillReturnRows(empty())
		mock.ExpectQuery("description").WillReturnRows(empty())
		mock.ExpectQuery("meat").WillReturnRows(empty())
		mock.ExpectQuery("row_id").WillReturnRows(empty())
		mock.ExpectQuery("information_schema").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		got, err := DetectSchema(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, []string{"Name", "Names"}, got.RecipeTables)
	})

	t.Run("no recipe table", func(t *testing.T) {
		a, mock := newMockAdapter(t, Postgres{})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0")).WillReturnError(&pq.Error{Code: "42P01"})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Names WHERE 1 = 0")).WillReturnError(&pq.Error{Code: "42P01"})

		_, err := DetectSchema(context.Background(), a)
		var schemaErr *apperror.SchemaCompatibilityError
		assert.ErrorAs(t, err, &schemaErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failures are reported", func(t *testing.T) {
		a, mock := newMockAdapter(t, Postgres{})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM Name WHERE 1 = 0")).WillReturnError(&pq.Error{Code: "42501", Message: "permission denied"})

		_, err := DetectSchema(context.Background(), a)
		assert.True(t, IsQueryError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
