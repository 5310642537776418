package sqlgraph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	strata "github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want sqlgraph.Violation
	}{
		{
			name: "postgres unique",
			err:  &pq.Error{Code: "23505", Message: "duplicate key value"},
			want: sqlgraph.ViolationUnique,
		},
		{
			name: "postgres foreign key",
			err:  &pq.Error{Code: "23503", Message: "insert or update violates foreign key"},
			want: sqlgraph.ViolationForeignKey,
		},
		{
			name: "postgres check",
			err:  &pq.Error{Code: "23514", Message: "new row violates check"},
			want: sqlgraph.ViolationCheck,
		},
		{
			name: "mysql duplicate entry",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'alice'"},
			want: sqlgraph.ViolationUnique,
		},
		{
			name: "mysql child row",
			err:  &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"},
			want: sqlgraph.ViolationForeignKey,
		},
		{
			name: "sqlite unique by message",
			err:  errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)"),
			want: sqlgraph.ViolationUnique,
		},
		{
			name: "sqlite foreign key by message",
			err:  errors.New("constraint failed: FOREIGN KEY constraint failed (787)"),
			want: sqlgraph.ViolationForeignKey,
		},
		{
			name: "wrapped driver error",
			err:  fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}),
			want: sqlgraph.ViolationUnique,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection refused"),
			want: sqlgraph.ViolationNone,
		},
		{
			name: "nil",
			err:  nil,
			want: sqlgraph.ViolationNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlgraph.Classify(tt.err))
		})
	}
}

func TestWrapConstraint(t *testing.T) {
	driverErr := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	err := sqlgraph.WrapConstraint(driverErr)
	assert.True(t, strata.IsConstraintError(err))
	// The driver error stays reachable through the chain, and the wrapped
	// error still classifies.
	var me *mysql.MySQLError
	assert.True(t, errors.As(err, &me))
	assert.True(t, sqlgraph.IsUniqueConstraintError(err))

	plain := errors.New("disk full")
	assert.Equal(t, plain, sqlgraph.WrapConstraint(plain))
	assert.NoError(t, sqlgraph.WrapConstraint(nil))
}

func TestViolationHelpers(t *testing.T) {
	assert.True(t, sqlgraph.IsUniqueConstraintError(&pq.Error{Code: "23505"}))
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(&pq.Error{Code: "23503"}))
	assert.True(t, sqlgraph.IsCheckConstraintError(&pq.Error{Code: "23514"}))
	assert.False(t, sqlgraph.IsConstraintError(errors.New("timeout")))
}
