// Package sqlgraph is the generic query-builder runtime. It executes reads,
// writes, relation traversal and transactional batches for registered
// entities against any dialect.Driver, working on dynamic rows.
package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	strata "github.com/syssam/strata"
)

// Violation is the class of a database constraint violation.
type Violation uint8

// Constraint violation classes.
const (
	ViolationNone Violation = iota
	ViolationUnique
	ViolationForeignKey
	ViolationCheck
)

// sqlStateError is implemented by driver errors that expose SQLSTATE codes
// (pgx among others).
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

type violationRule struct {
	class    Violation
	sqlState string
	numbers  []uint16
	needles  []string
}

// Classification probes the typed driver error interfaces first and falls
// back to string matching for drivers that implement none of them.
var violationRules = []violationRule{
	{
		class:    ViolationUnique,
		sqlState: pgUniqueViolation,
		numbers:  []uint16{mysqlDuplicateEntry},
		needles: []string{
			"Error 1062",                 // MySQL
			"violates unique constraint", // Postgres
			"UNIQUE constraint failed",   // SQLite
		},
	},
	{
		class:    ViolationForeignKey,
		sqlState: pgForeignKeyViolation,
		numbers:  []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		needles: []string{
			"Error 1451",                      // MySQL parent row
			"Error 1452",                      // MySQL child row
			"violates foreign key constraint", // Postgres
			"FOREIGN KEY constraint failed",   // SQLite
		},
	},
	{
		class:    ViolationCheck,
		sqlState: pgCheckViolation,
		numbers:  []uint16{mysqlCheckConstraintViolate},
		needles: []string{
			"Error 3819",                // MySQL
			"violates check constraint", // Postgres
			"CHECK constraint failed",   // SQLite
		},
	},
}

// Classify returns the constraint violation class of a driver error, or
// ViolationNone when the error is not a recognized constraint violation.
func Classify(err error) Violation {
	if err == nil {
		return ViolationNone
	}
	for _, rule := range violationRules {
		if e, ok := asError[*pq.Error](err); ok && string(e.Code) == rule.sqlState {
			return rule.class
		}
		if e, ok := asError[sqlStateError](err); ok && e.SQLState() == rule.sqlState {
			return rule.class
		}
		if e, ok := asError[*mysql.MySQLError](err); ok {
			for _, n := range rule.numbers {
				if e.Number == n {
					return rule.class
				}
			}
		}
		for e := err; e != nil; e = errors.Unwrap(e) {
			if containsAny(e.Error(), rule.needles...) {
				return rule.class
			}
		}
	}
	return ViolationNone
}

// WrapConstraint converts recognized constraint violations to a typed
// strata.ConstraintError, keeping the driver error reachable via Unwrap.
// Other errors pass through unmodified.
func WrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	switch Classify(err) {
	case ViolationUnique:
		return strata.NewConstraintError("unique violation", err)
	case ViolationForeignKey:
		return strata.NewConstraintError("foreign key violation", err)
	case ViolationCheck:
		return strata.NewConstraintError("check violation", err)
	}
	return err
}

// IsConstraintError reports whether the error is a recognized or already
// wrapped database constraint violation.
func IsConstraintError(err error) bool {
	return strata.IsConstraintError(err) || Classify(err) != ViolationNone
}

// IsUniqueConstraintError reports whether the error resulted from a
// uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return Classify(err) == ViolationUnique
}

// IsForeignKeyConstraintError reports whether the error resulted from a
// foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return Classify(err) == ViolationForeignKey
}

// IsCheckConstraintError reports whether the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	return Classify(err) == ViolationCheck
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
