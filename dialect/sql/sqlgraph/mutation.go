package sqlgraph

import (
	"context"
	"fmt"

	strata "github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/key"
	"github.com/syssam/strata/querylanguage"
)

// Lookup is one deferred relation connection of a Create: a unique selector
// on the target entity whose resolved primary key lands in the foreign key
// field. Lookups run strictly in enqueue order inside the write
// transaction, immediately before the INSERT; a failed lookup aborts the
// create with a typed not-found error and persists nothing.
type Lookup struct {
	// Field is the foreign key field assigned with the result.
	Field string
	// Target is the entity looked up.
	Target string
	// By is the unique selector.
	By []querylanguage.Predicate
	// Resolve extracts the key from the looked-up row. Defaults to the
	// target primary key.
	Resolve func(Row) (key.Key, error)
}

// Create is an insert under construction.
type Create struct {
	reg     *Registry
	entity  string
	setters []querylanguage.Setter
	lookups []Lookup
}

// Create starts an insert on the given entity.
func (r *Registry) Create(entity string) *Create {
	return &Create{reg: r, entity: entity}
}

// Set appends field assignments, in order.
func (c *Create) Set(setters ...querylanguage.Setter) *Create {
	c.setters = append(c.setters, setters...)
	return c
}

// Connect enqueues a deferred relation connection.
func (c *Create) Connect(l Lookup) *Create {
	c.lookups = append(c.lookups, l)
	return c
}

// Exec runs the create in its own transaction and returns the stored row.
func (c *Create) Exec(ctx context.Context) (Row, error) {
	var row Row
	err := WithTx(ctx, c.reg.drv, func(tx dialect.Tx) error {
		var err error
		row, err = c.exec(ctx, tx)
		return err
	})
	return row, err
}

func (c *Create) exec(ctx context.Context, conn dialect.ExecQuerier) (Row, error) {
	b, err := c.reg.Binding(c.entity)
	if err != nil {
		return nil, err
	}
	var (
		columns []string
		values  []any
		index   = make(map[string]int)
	)
	assign := func(column string, v any) {
		if i, ok := index[column]; ok {
			values[i] = v
			return
		}
		index[column] = len(columns)
		columns = append(columns, column)
		values = append(values, v)
	}
	for _, st := range c.setters {
		if st.Op != querylanguage.SetOpSet {
			return nil, strata.NewContractError("sqlgraph.Create", st.Op)
		}
		column, ok := b.Column(st.Field)
		if !ok {
			return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", c.entity, st.Field)
		}
		v, err := c.reg.storedValue(b, st.Field, st.Value)
		if err != nil {
			return nil, err
		}
		assign(column, v)
	}
	// Deferred lookups, in enqueue order.
	for _, l := range c.lookups {
		column, ok := b.Column(l.Field)
		if !ok {
			return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", c.entity, l.Field)
		}
		target, err := c.reg.Query(l.Target).withConn(conn).Where(l.By...).First(ctx)
		if err != nil {
			return nil, err
		}
		var k key.Key
		if l.Resolve != nil {
			k, err = l.Resolve(target)
		} else {
			tb, berr := c.reg.Binding(l.Target)
			if berr != nil {
				return nil, berr
			}
			k, err = target.Key(tb.ID, tb.IDKind())
		}
		if err != nil {
			return nil, err
		}
		k, err = key.CoerceFor(c.reg, c.entity, l.Field, k)
		if err != nil {
			return nil, err
		}
		v, err := k.Value()
		if err != nil {
			return nil, err
		}
		assign(column, v)
	}
	ins := sql.Dialect(c.reg.drv.Dialect()).Insert(b.Table).Columns(columns...).Values(values...)
	pkVal, hasPK := func() (any, bool) {
		i, ok := index[b.ID]
		if !ok {
			return nil, false
		}
		return values[i], true
	}()
	switch {
	case hasPK:
		stmt, args := ins.Query()
		if err := conn.Exec(ctx, stmt, args, nil); err != nil {
			return nil, WrapConstraint(err)
		}
	case c.reg.drv.Dialect() == dialect.Postgres:
		stmt, args := ins.Returning(b.ID).Query()
		var rows sql.Rows
		if err := conn.Query(ctx, stmt, args, &rows); err != nil {
			return nil, WrapConstraint(err)
		}
		returned, err := scanRows(&rows)
		if err != nil {
			return nil, err
		}
		if len(returned) == 0 {
			return nil, fmt.Errorf("sqlgraph: insert returned no key for %s", c.entity)
		}
		pkVal = returned[0][b.ID]
	default:
		stmt, args := ins.Query()
		var res sql.Result
		if err := conn.Exec(ctx, stmt, args, &res); err != nil {
			return nil, WrapConstraint(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		pkVal = id
	}
	return c.reg.fetchByPK(ctx, conn, c.entity, pkVal)
}

// CreateBulk runs several creates in one transaction, in order, and
// returns the stored rows. One failure rolls back the whole batch.
func (r *Registry) CreateBulk(ctx context.Context, creates ...*Create) ([]Row, error) {
	rows := make([]Row, 0, len(creates))
	err := WithTx(ctx, r.drv, func(tx dialect.Tx) error {
		for _, c := range creates {
			row, err := c.exec(ctx, tx)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Update is a single-row update under construction.
type Update struct {
	reg     *Registry
	entity  string
	preds   []querylanguage.Predicate
	setters []querylanguage.Setter
}

// Update starts a single-row update on the given entity.
func (r *Registry) Update(entity string) *Update {
	return &Update{reg: r, entity: entity}
}

// Where adds predicates selecting the row.
func (u *Update) Where(preds ...querylanguage.Predicate) *Update {
	u.preds = append(u.preds, preds...)
	return u
}

// Set appends field assignments, in order. Later assignments to the same
// field win.
func (u *Update) Set(setters ...querylanguage.Setter) *Update {
	u.setters = append(u.setters, setters...)
	return u
}

// Exec runs the update in its own transaction and returns the stored row.
// No matched row is a typed not-found error; an empty assignment list
// succeeds and returns the unchanged row.
func (u *Update) Exec(ctx context.Context) (Row, error) {
	var row Row
	err := WithTx(ctx, u.reg.drv, func(tx dialect.Tx) error {
		var err error
		row, err = u.exec(ctx, tx)
		return err
	})
	return row, err
}

func (u *Update) exec(ctx context.Context, conn dialect.ExecQuerier) (Row, error) {
	b, err := u.reg.Binding(u.entity)
	if err != nil {
		return nil, err
	}
	current, err := u.reg.Query(u.entity).withConn(conn).Where(u.preds...).First(ctx)
	if err != nil {
		return nil, err
	}
	if len(u.setters) == 0 {
		return current, nil
	}
	setters, err := u.reg.resolveSetters(b, u.setters)
	if err != nil {
		return nil, err
	}
	ub := sql.Dialect(u.reg.drv.Dialect()).Update(b.Table)
	if err := querylanguage.ApplySetters(u.reg, u.entity, ub, setters); err != nil {
		return nil, err
	}
	pkVal := current[b.ID]
	ub.Where(sql.EQ(b.ID, pkVal))
	stmt, args := ub.Query()
	if err := conn.Exec(ctx, stmt, args, nil); err != nil {
		return nil, WrapConstraint(err)
	}
	return u.reg.fetchByPK(ctx, conn, u.entity, pkVal)
}

// UpdateMany is a predicate-wide update under construction.
type UpdateMany struct {
	reg     *Registry
	entity  string
	preds   []querylanguage.Predicate
	setters []querylanguage.Setter
}

// UpdateMany starts a predicate-wide update on the given entity.
func (r *Registry) UpdateMany(entity string) *UpdateMany {
	return &UpdateMany{reg: r, entity: entity}
}

// Where adds predicates selecting the rows.
func (u *UpdateMany) Where(preds ...querylanguage.Predicate) *UpdateMany {
	u.preds = append(u.preds, preds...)
	return u
}

// Set appends field assignments, in order.
func (u *UpdateMany) Set(setters ...querylanguage.Setter) *UpdateMany {
	u.setters = append(u.setters, setters...)
	return u
}

// Exec runs the update and returns the number of affected rows.
func (u *UpdateMany) Exec(ctx context.Context) (int, error) {
	n, err := u.exec(ctx, u.reg.drv)
	return n, err
}

func (u *UpdateMany) exec(ctx context.Context, conn dialect.ExecQuerier) (int, error) {
	b, err := u.reg.Binding(u.entity)
	if err != nil {
		return 0, err
	}
	setters, err := u.reg.resolveSetters(b, u.setters)
	if err != nil {
		return 0, err
	}
	ub := sql.Dialect(u.reg.drv.Dialect()).Update(b.Table)
	if err := querylanguage.ApplySetters(u.reg, u.entity, ub, setters); err != nil {
		return 0, err
	}
	if ub.Empty() {
		return 0, nil
	}
	p, err := querylanguage.Compile(u.reg, u.entity, u.preds)
	if err != nil {
		return 0, err
	}
	if p != nil {
		ub.Where(p)
	}
	stmt, args := ub.Query()
	var res sql.Result
	if err := conn.Exec(ctx, stmt, args, &res); err != nil {
		return 0, WrapConstraint(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Delete is a single-row delete under construction.
type Delete struct {
	reg    *Registry
	entity string
	preds  []querylanguage.Predicate
}

// Delete starts a single-row delete on the given entity.
func (r *Registry) Delete(entity string) *Delete {
	return &Delete{reg: r, entity: entity}
}

// Where adds predicates selecting the row.
func (d *Delete) Where(preds ...querylanguage.Predicate) *Delete {
	d.preds = append(d.preds, preds...)
	return d
}

// Exec runs the delete in its own transaction and returns the removed row.
// No matched row is a typed not-found error.
func (d *Delete) Exec(ctx context.Context) (Row, error) {
	var row Row
	err := WithTx(ctx, d.reg.drv, func(tx dialect.Tx) error {
		var err error
		row, err = d.exec(ctx, tx)
		return err
	})
	return row, err
}

func (d *Delete) exec(ctx context.Context, conn dialect.ExecQuerier) (Row, error) {
	b, err := d.reg.Binding(d.entity)
	if err != nil {
		return nil, err
	}
	current, err := d.reg.Query(d.entity).withConn(conn).Where(d.preds...).First(ctx)
	if err != nil {
		return nil, err
	}
	del := sql.Dialect(d.reg.drv.Dialect()).Delete(b.Table).Where(sql.EQ(b.ID, current[b.ID]))
	stmt, args := del.Query()
	if err := conn.Exec(ctx, stmt, args, nil); err != nil {
		return nil, WrapConstraint(err)
	}
	return current, nil
}

// DeleteMany is a predicate-wide delete under construction.
type DeleteMany struct {
	reg    *Registry
	entity string
	preds  []querylanguage.Predicate
}

// DeleteMany starts a predicate-wide delete on the given entity.
func (r *Registry) DeleteMany(entity string) *DeleteMany {
	return &DeleteMany{reg: r, entity: entity}
}

// Where adds predicates selecting the rows.
func (d *DeleteMany) Where(preds ...querylanguage.Predicate) *DeleteMany {
	d.preds = append(d.preds, preds...)
	return d
}

// Exec runs the delete and returns the number of removed rows.
func (d *DeleteMany) Exec(ctx context.Context) (int, error) {
	return d.exec(ctx, d.reg.drv)
}

func (d *DeleteMany) exec(ctx context.Context, conn dialect.ExecQuerier) (int, error) {
	b, err := d.reg.Binding(d.entity)
	if err != nil {
		return 0, err
	}
	del := sql.Dialect(d.reg.drv.Dialect()).Delete(b.Table)
	p, err := querylanguage.Compile(d.reg, d.entity, d.preds)
	if err != nil {
		return 0, err
	}
	if p != nil {
		del.Where(p)
	}
	stmt, args := del.Query()
	var res sql.Result
	if err := conn.Exec(ctx, stmt, args, &res); err != nil {
		return 0, WrapConstraint(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Upsert updates the row matched by the unique selector, or creates it
// when no row matches, in one transaction.
type Upsert struct {
	reg    *Registry
	entity string
	by     []querylanguage.Predicate
	create []querylanguage.Setter
	update []querylanguage.Setter
}

// Upsert starts an update-or-create on the given entity.
func (r *Registry) Upsert(entity string) *Upsert {
	return &Upsert{reg: r, entity: entity}
}

// By sets the unique selector.
func (u *Upsert) By(preds ...querylanguage.Predicate) *Upsert {
	u.by = append(u.by, preds...)
	return u
}

// OnCreate sets the assignments of the create path.
func (u *Upsert) OnCreate(setters ...querylanguage.Setter) *Upsert {
	u.create = append(u.create, setters...)
	return u
}

// OnUpdate sets the assignments of the update path.
func (u *Upsert) OnUpdate(setters ...querylanguage.Setter) *Upsert {
	u.update = append(u.update, setters...)
	return u
}

// Exec runs the upsert in its own transaction and returns the stored row.
func (u *Upsert) Exec(ctx context.Context) (Row, error) {
	var row Row
	err := WithTx(ctx, u.reg.drv, func(tx dialect.Tx) error {
		var err error
		row, err = u.exec(ctx, tx)
		return err
	})
	return row, err
}

func (u *Upsert) exec(ctx context.Context, conn dialect.ExecQuerier) (Row, error) {
	up := &Update{reg: u.reg, entity: u.entity, preds: u.by, setters: u.update}
	row, err := up.exec(ctx, conn)
	if err == nil {
		return row, nil
	}
	if !strata.IsNotFound(err) {
		return nil, err
	}
	cr := &Create{reg: u.reg, entity: u.entity, setters: u.create}
	return cr.exec(ctx, conn)
}

// fetchByPK loads one row by primary key value on the given connection.
func (r *Registry) fetchByPK(ctx context.Context, conn dialect.ExecQuerier, entity string, pkVal any) (Row, error) {
	b, err := r.Binding(entity)
	if err != nil {
		return nil, err
	}
	q := r.Query(entity).withConn(conn)
	q.colIns = append(q.colIns, colIn{column: b.ID, values: []any{pkVal}})
	row, err := q.First(ctx)
	if err != nil {
		if strata.IsNotFound(err) {
			return nil, strata.NewNotFoundErrorWithID(entity, pkVal)
		}
		return nil, err
	}
	return row, nil
}

// storedValue converts a field value to its backend form: polymorphic keys
// through Value, opaque fields through their converter.
func (r *Registry) storedValue(b *Binding, field string, v any) (any, error) {
	if k, ok := v.(key.Key); ok {
		return k.Value()
	}
	if conv := b.Converters[field]; conv != nil && v != nil {
		return conv.ToBackend(v)
	}
	return v, nil
}

// resolveSetters converts setter values to their backend form, keeping
// order.
func (r *Registry) resolveSetters(b *Binding, setters []querylanguage.Setter) ([]querylanguage.Setter, error) {
	out := make([]querylanguage.Setter, len(setters))
	for i, st := range setters {
		v, err := r.storedValue(b, st.Field, st.Value)
		if err != nil {
			return nil, err
		}
		out[i] = querylanguage.Setter{Field: st.Field, Op: st.Op, Value: v}
	}
	return out, nil
}
