package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/key"
)

// SetRelation reconciles a to-many relation to an exact member set, in one
// transaction. Rows currently attached to the owner but outside the new set
// are detached: nulled out when the foreign key is nullable, deleted
// otherwise. Every row in the new set is then attached to the owner. The
// operation is idempotent.
type SetRelation struct {
	reg      *Registry
	entity   string
	relation string
	owner    key.Key
	targets  []key.Key
}

// SetRelation starts a membership reconciliation of the named relation.
func (r *Registry) SetRelation(entity, relation string) *SetRelation {
	return &SetRelation{reg: r, entity: entity, relation: relation}
}

// Owner selects the owning row by primary key.
func (s *SetRelation) Owner(k key.Key) *SetRelation {
	s.owner = k
	return s
}

// To sets the exact member set by target primary keys. An empty set
// detaches every current member.
func (s *SetRelation) To(ks ...key.Key) *SetRelation {
	s.targets = append(s.targets, ks...)
	return s
}

// Exec runs the reconciliation.
func (s *SetRelation) Exec(ctx context.Context) error {
	return WithTx(ctx, s.reg.drv, func(tx dialect.Tx) error {
		return s.exec(ctx, tx)
	})
}

func (s *SetRelation) exec(ctx context.Context, conn dialect.ExecQuerier) error {
	b, err := s.reg.Binding(s.entity)
	if err != nil {
		return err
	}
	rel, ok := b.Relations[s.relation]
	if !ok {
		return fmt.Errorf("sqlgraph: unknown relation %s.%s", s.entity, s.relation)
	}
	if !rel.ToMany {
		return fmt.Errorf("sqlgraph: relation %s.%s is not to-many", s.entity, s.relation)
	}
	tb, err := s.reg.Binding(rel.TargetEntity)
	if err != nil {
		return err
	}
	ownerKey, err := key.CoerceFor(s.reg, s.entity, b.IDField, s.owner)
	if err != nil {
		return err
	}
	ownerVal, err := ownerKey.Value()
	if err != nil {
		return err
	}
	targetVals := make([]any, len(s.targets))
	for i, k := range s.targets {
		ck, err := key.CoerceFor(s.reg, rel.TargetEntity, tb.IDField, k)
		if err != nil {
			return err
		}
		if targetVals[i], err = ck.Value(); err != nil {
			return err
		}
	}
	d := s.reg.drv.Dialect()
	fk := rel.TargetColumn
	// Detach current members outside the new set. NOT IN over an empty
	// set keeps every current member in scope, detaching them all.
	outside := sql.And(sql.EQ(fk, ownerVal), sql.NotIn(tb.ID, targetVals...))
	if rel.FKNullable {
		stmt, args := sql.Dialect(d).Update(rel.TargetTable).SetNull(fk).Where(outside).Query()
		if err := conn.Exec(ctx, stmt, args, nil); err != nil {
			return WrapConstraint(err)
		}
	} else {
		stmt, args := sql.Dialect(d).Delete(rel.TargetTable).Where(outside).Query()
		if err := conn.Exec(ctx, stmt, args, nil); err != nil {
			return WrapConstraint(err)
		}
	}
	if len(targetVals) == 0 {
		return nil
	}
	stmt, args := sql.Dialect(d).Update(rel.TargetTable).
		Set(fk, ownerVal).
		Where(sql.In(tb.ID, targetVals...)).
		Query()
	if err := conn.Exec(ctx, stmt, args, nil); err != nil {
		return WrapConstraint(err)
	}
	return nil
}

// Disconnect detaches members of a to-many relation from their owner by
// nulling out the foreign key, leaving the rest of the member set alone.
// Rows are never deleted, so the relation's foreign key must be nullable.
type Disconnect struct {
	reg      *Registry
	entity   string
	relation string
	owner    key.Key
	targets  []key.Key
}

// Disconnect starts a detach of the named relation.
func (r *Registry) Disconnect(entity, relation string) *Disconnect {
	return &Disconnect{reg: r, entity: entity, relation: relation}
}

// Owner selects the owning row by primary key.
func (d *Disconnect) Owner(k key.Key) *Disconnect {
	d.owner = k
	return d
}

// Of restricts the detach to the given target primary keys. Without it,
// every current member is detached.
func (d *Disconnect) Of(ks ...key.Key) *Disconnect {
	d.targets = append(d.targets, ks...)
	return d
}

// Exec runs the detach.
func (d *Disconnect) Exec(ctx context.Context) error {
	b, err := d.reg.Binding(d.entity)
	if err != nil {
		return err
	}
	rel, ok := b.Relations[d.relation]
	if !ok {
		return fmt.Errorf("sqlgraph: unknown relation %s.%s", d.entity, d.relation)
	}
	if !rel.ToMany {
		return fmt.Errorf("sqlgraph: relation %s.%s is not to-many", d.entity, d.relation)
	}
	if !rel.FKNullable {
		return fmt.Errorf("sqlgraph: relation %s.%s has a non-nullable foreign key; use SetRelation", d.entity, d.relation)
	}
	tb, err := d.reg.Binding(rel.TargetEntity)
	if err != nil {
		return err
	}
	ownerKey, err := key.CoerceFor(d.reg, d.entity, b.IDField, d.owner)
	if err != nil {
		return err
	}
	ownerVal, err := ownerKey.Value()
	if err != nil {
		return err
	}
	scope := sql.EQ(rel.TargetColumn, ownerVal)
	if len(d.targets) > 0 {
		targetVals := make([]any, len(d.targets))
		for i, k := range d.targets {
			ck, err := key.CoerceFor(d.reg, rel.TargetEntity, tb.IDField, k)
			if err != nil {
				return err
			}
			if targetVals[i], err = ck.Value(); err != nil {
				return err
			}
		}
		scope = sql.And(scope, sql.In(tb.ID, targetVals...))
	}
	stmt, args := sql.Dialect(d.reg.drv.Dialect()).
		Update(rel.TargetTable).
		SetNull(rel.TargetColumn).
		Where(scope).
		Query()
	if err := d.reg.drv.Exec(ctx, stmt, args, nil); err != nil {
		return WrapConstraint(err)
	}
	return nil
}
