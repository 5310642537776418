package sqlgraph

import (
	"context"

	"github.com/syssam/strata/dialect"
)

// BatchKind tags a batch result with the operation that produced it.
type BatchKind uint8

// Batch operation kinds.
const (
	BatchInsert BatchKind = iota
	BatchUpdate
	BatchDelete
	BatchUpsert
)

var batchKindNames = [...]string{
	BatchInsert: "insert",
	BatchUpdate: "update",
	BatchDelete: "delete",
	BatchUpsert: "upsert",
}

// String returns the kind name.
func (k BatchKind) String() string {
	if int(k) < len(batchKindNames) {
		return batchKindNames[k]
	}
	return "invalid"
}

// BatchResult is the outcome of one batch operation.
type BatchResult struct {
	Kind BatchKind
	Row  Row
}

type batchOp struct {
	kind BatchKind
	run  func(ctx context.Context, conn dialect.ExecQuerier) (Row, error)
}

// Batch is an ordered list of heterogeneous write operations executed in
// one transaction. The whole list commits only when every operation
// succeeds; the first failure rolls everything back.
type Batch struct {
	reg *Registry
	ops []batchOp
}

// Batch starts an empty transactional batch.
func (r *Registry) Batch() *Batch {
	return &Batch{reg: r}
}

// Create appends an insert.
func (b *Batch) Create(c *Create) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchInsert, run: c.exec})
	return b
}

// Update appends a single-row update.
func (b *Batch) Update(u *Update) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchUpdate, run: u.exec})
	return b
}

// Delete appends a single-row delete.
func (b *Batch) Delete(d *Delete) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchDelete, run: d.exec})
	return b
}

// Upsert appends an update-or-create.
func (b *Batch) Upsert(u *Upsert) *Batch {
	b.ops = append(b.ops, batchOp{kind: BatchUpsert, run: u.exec})
	return b
}

// Exec runs the batch in one transaction and returns one tagged result per
// operation, in order.
func (b *Batch) Exec(ctx context.Context) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(b.ops))
	err := WithTx(ctx, b.reg.drv, func(tx dialect.Tx) error {
		for _, op := range b.ops {
			row, err := op.run(ctx, tx)
			if err != nil {
				return err
			}
			results = append(results, BatchResult{Kind: op.kind, Row: row})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
