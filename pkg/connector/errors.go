// pkg/connector/errors.go
package connector

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
)

// SQL Server error numbers of interest. Postgres equivalents are matched by
// SQLSTATE through the pq error type.
const (
	mssqlObjectExists     = 2714 // there is already an object named X
	mssqlIndexExists      = 1913 // index or statistics already exists
	mssqlUniqueConstraint = 2627 // violation of unique constraint
	mssqlDuplicateKey     = 2601 // cannot insert duplicate key row
	mssqlFKViolation      = 547  // conflicted with a foreign key constraint
)

// IsDuplicateObject reports whether err means a table, index or other schema
// object already exists. Bootstrap treats these as ignorable.
func IsDuplicateObject(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case "42P07", "42710", "42P06", "42P04": // duplicate table/object/schema/database
			return true
		}
		return false
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlObjectExists || msErr.Number == mssqlIndexExists
	}

	// Driver-agnostic fallback for DDL run through generic exec paths
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "ya existe")
}

// IsUniqueViolation reports whether err is a primary key or unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlUniqueConstraint || msErr.Number == mssqlDuplicateKey
	}

	return false
}

// IsForeignKeyViolation reports whether err is a foreign key constraint
// violation.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23503"
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == mssqlFKViolation
	}

	return false
}

// IsConnectionError reports whether err indicates the database connection
// itself failed rather than the statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// SQLSTATE class 08 covers connection exceptions
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return false
}
