package database

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect hides the differences between PostgreSQL and MariaDB/MySQL.
// Statements are written once with numbered placeholders ($1, $2, ...)
// and the dialect rewrites them for its backend.
type Dialect interface {
	Name() string
	DriverName() string
	// Rebind returns query and args in the form the backend accepts.
	Rebind(query string, args []any) (string, []any, error)
	SupportsReturning() bool
	// MemberOf renders "column is one of ids" starting at placeholder number next.
	// It returns the clause and the args to append.
	MemberOf(column string, ids []int64, next int) (string, []any)
	// Upsert renders a single-row insert that updates the update columns
	// when a row with the same conflict columns already exists.
	Upsert(table string, columns, conflict, update []string) string
	// AutoIncrementQuery counts the id columns of table $1 that the store fills in.
	AutoIncrementQuery() string

	IsUndefinedTable(err error) bool
	IsUndefinedColumn(err error) bool
	IsUniqueViolation(err error) bool
	// IsMissingDefault reports an insert rejected because the id column has no default.
	IsMissingDefault(err error) bool
}

// DialectFor maps a configured driver name to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func placeholders(next, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$")
		b.WriteString(strconv.Itoa(next + i))
	}
	return b.String()
}

func insertClause(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(1, len(columns)))
}

type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "postgres" }

func (Postgres) Rebind(query string, args []any) (string, []any, error) {
	return query, args, nil
}

func (Postgres) SupportsReturning() bool { return true }

func (Postgres) MemberOf(column string, ids []int64, next int) (string, []any) {
	if len(ids) == 0 {
		return "1 = 0", nil
	}
	return fmt.Sprintf("%s = ANY($%d)", column, next), []any{pq.Array(ids)}
}

func (Postgres) Upsert(table string, columns, conflict, update []string) string {
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
		insertClause(table, columns), strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

func (Postgres) AutoIncrementQuery() string {
	return `SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = current_schema() AND LOWER(table_name) = LOWER($1) AND column_name = 'id'
AND (column_default LIKE 'nextval(%' OR is_identity = 'YES')`
}

func pqCode(err error) (pq.ErrorCode, *pq.Error) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr
	}
	return "", nil
}

func (Postgres) IsUndefinedTable(err error) bool {
	code, _ := pqCode(err)
	return code == "42P01"
}

func (Postgres) IsUndefinedColumn(err error) bool {
	code, _ := pqCode(err)
	return code == "42703"
}

func (Postgres) IsUniqueViolation(err error) bool {
	code, _ := pqCode(err)
	return code == "23505"
}

func (Postgres) IsMissingDefault(err error) bool {
	code, pqErr := pqCode(err)
	return code == "23502" && pqErr.Column == "id"
}

type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

var ilikePattern = regexp.MustCompile(`(?i)\bILIKE\b`)

// Rebind rewrites $n placeholders to ? outside quoted text and orders the
// args to follow placeholder occurrence, so one $n may appear several times.
func (MySQL) Rebind(query string, args []any) (string, []any, error) {
	var b strings.Builder
	b.Grow(len(query))
	bound := make([]any, 0, len(args))
	var quote byte
	segment := 0

	flush := func(upto int) {
		part := query[segment:upto]
		if quote == 0 {
			part = ilikePattern.ReplaceAllString(part, "LIKE")
		}
		b.WriteString(part)
		segment = upto
	}

	for i := 0; i < len(query); i++ {
		c := query[i]
		if quote != 0 {
			if c == quote {
				// doubled quote escapes itself
				if i+1 < len(query) && query[i+1] == quote {
					i++
					continue
				}
				flush(i + 1)
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			flush(i)
			quote = c
		case c == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(query[i+1 : j])
			if n < 1 || n > len(args) {
				return "", nil, fmt.Errorf("placeholder $%d has no argument (got %d)", n, len(args))
			}
			flush(i)
			b.WriteString("?")
			bound = append(bound, args[n-1])
			segment = j
			i = j - 1
		}
	}
	if quote != 0 {
		return "", nil, fmt.Errorf("unterminated quoted text in statement")
	}
	flush(len(query))
	return b.String(), bound, nil
}

func (MySQL) SupportsReturning() bool { return false }

func (MySQL) MemberOf(column string, ids []int64, next int) (string, []any) {
	if len(ids) == 0 {
		return "1 = 0", nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf("%s IN (%s)", column, placeholders(next, len(ids))), args
}

func (MySQL) Upsert(table string, columns, conflict, update []string) string {
	sets := make([]string, len(update))
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", insertClause(table, columns), strings.Join(sets, ", "))
}

func (MySQL) AutoIncrementQuery() string {
	return `SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = $1 AND column_name = 'id'
AND extra LIKE '%auto_increment%'`
}

func mysqlNumber(err error) (uint16, *mysql.MySQLError) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number, myErr
	}
	return 0, nil
}

func (MySQL) IsUndefinedTable(err error) bool {
	n, _ := mysqlNumber(err)
	return n == 1146
}

func (MySQL) IsUndefinedColumn(err error) bool {
	n, _ := mysqlNumber(err)
	return n == 1054
}

func (MySQL) IsUniqueViolation(err error) bool {
	n, _ := mysqlNumber(err)
	return n == 1062
}

func (MySQL) IsMissingDefault(err error) bool {
	n, myErr := mysqlNumber(err)
	return (n == 1364 || n == 1048) && strings.Contains(myErr.Message, "'id'")
}
