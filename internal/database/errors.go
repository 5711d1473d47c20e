package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// QueryError is a statement the backend rejected. It carries the statement
// text but never connection details.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Err.Error() + " [statement: " + e.Statement + "]"
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the connection rather than the statement.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	// context errors satisfy net.Error but are deadlines, not broken connections
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// class 08 is "connection exception"
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	return false
}

// IsQueryError reports whether err is a statement rejected by the backend.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
