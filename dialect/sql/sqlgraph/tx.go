package sqlgraph

import (
	"context"
	"fmt"

	strata "github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
)

// WithTx runs fn inside a transaction: commit on success, rollback on error
// or panic. When the driver is already a transaction, fn runs on it with
// no-op commit and rollback, so nested operations share the outer
// transaction.
func WithTx(ctx context.Context, drv dialect.Driver, fn func(tx dialect.Tx) error) error {
	if _, ok := drv.(dialect.Tx); ok {
		return fn(dialect.NopTx(drv))
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, &strata.RollbackError{Err: rerr})
		}
		return err
	}
	return tx.Commit()
}
