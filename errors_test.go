package strata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("user")
	assert.EqualError(t, err, "strata: user not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("query failed: %w", err)))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("boom")))

	withID := NewNotFoundErrorWithID("user", int64(42))
	assert.EqualError(t, withID, "strata: user not found (key=42)")
	assert.Equal(t, "user", withID.Label())
	assert.Equal(t, int64(42), withID.ID())
}

func TestNotSingularError(t *testing.T) {
	err := NewNotSingularErrorWithCount("user", 3)
	assert.EqualError(t, err, "strata: user not singular (got 3 results, expected 1)")
	assert.True(t, errors.Is(err, ErrNotSingular))
	assert.True(t, IsNotSingular(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, 3, err.Count())
	assert.Equal(t, -1, NewNotSingularError("user").Count())
	assert.False(t, IsNotSingular(NewNotFoundError("user")))
}

func TestConstraintError(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed: users.name")
	err := NewConstraintError("insert user", cause)
	assert.EqualError(t, err, "strata: constraint failed: insert user")
	assert.True(t, IsConstraintError(err))
	assert.True(t, IsConstraintError(fmt.Errorf("tx: %w", err)))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConstraintError(cause))
}

func TestValidationError(t *testing.T) {
	cause := errors.New("value out of range")
	err := NewValidationError("age", cause)
	assert.EqualError(t, err, `strata: validator failed for field "age": value out of range`)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsValidationError(cause))
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := &RollbackError{Err: cause}
	assert.EqualError(t, err, "strata: rollback failed: driver: bad connection")
	assert.ErrorIs(t, err, cause)
}

func TestContractError(t *testing.T) {
	err := NewContractError("compile", struct{ x int }{})
	assert.Contains(t, err.Error(), "internal contract violation in compile")
	assert.True(t, IsContractError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsContractError(nil))
}

func TestAggregateError(t *testing.T) {
	assert.NoError(t, NewAggregateError())
	assert.NoError(t, NewAggregateError(nil, nil))

	single := errors.New("only")
	assert.Same(t, single, NewAggregateError(nil, single, nil))

	err := NewAggregateError(errors.New("first"), errors.New("second"))
	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)
	assert.Contains(t, err.Error(), "[1] first")
	assert.Contains(t, err.Error(), "[2] second")
}
