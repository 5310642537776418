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

// OrderTerm orders a result set by one field.
type OrderTerm struct {
	Field string
	Desc  bool
}

// Asc returns an ascending order term.
func Asc(field string) OrderTerm { return OrderTerm{Field: field} }

// Desc returns a descending order term.
func Desc(field string) OrderTerm { return OrderTerm{Field: field, Desc: true} }

// Agg is one aggregation applied by Aggregate or GroupBy. The result row
// carries the value under the alias.
type Agg struct {
	fn    string
	field string
	alias string
}

// Count counts the matched rows.
func Count() Agg { return Agg{fn: "COUNT", alias: "count"} }

// Sum sums the field over the matched rows.
func Sum(field string) Agg { return Agg{fn: "SUM", field: field, alias: "sum_" + field} }

// Min returns the minimum of the field over the matched rows.
func Min(field string) Agg { return Agg{fn: "MIN", field: field, alias: "min_" + field} }

// Max returns the maximum of the field over the matched rows.
func Max(field string) Agg { return Agg{fn: "MAX", field: field, alias: "max_" + field} }

// Avg returns the average of the field over the matched rows.
func Avg(field string) Agg { return Agg{fn: "AVG", field: field, alias: "avg_" + field} }

// Include is the fluent specification of one relation load attached to a
// query. The related rows land on each parent row under the relation name.
type Include struct {
	relation string
	preds    []querylanguage.Predicate
	order    []OrderTerm
	limit    int
	offset   int
	includes []*Include
	count    bool
	fields   []string
}

// NewInclude starts an include specification for the named relation.
func NewInclude(relation string) *Include {
	return &Include{relation: relation, limit: -1, offset: -1}
}

// Where filters the related rows.
func (i *Include) Where(preds ...querylanguage.Predicate) *Include {
	i.preds = append(i.preds, preds...)
	return i
}

// Order orders the related rows.
func (i *Include) Order(terms ...OrderTerm) *Include {
	i.order = append(i.order, terms...)
	return i
}

// Limit caps the related rows per parent.
func (i *Include) Limit(n int) *Include {
	i.limit = n
	return i
}

// Offset skips related rows per parent.
func (i *Include) Offset(n int) *Include {
	i.offset = n
	return i
}

// With nests further relation loads on the related rows.
func (i *Include) With(includes ...*Include) *Include {
	i.includes = append(i.includes, includes...)
	return i
}

// Count loads the related row count instead of the rows.
func (i *Include) Count() *Include {
	i.count = true
	return i
}

// Select restricts the loaded fields of the related rows.
func (i *Include) Select(fields ...string) *Include {
	i.fields = append(i.fields, fields...)
	return i
}

// Query is a read operation under construction.
type Query struct {
	reg    *Registry
	conn   dialect.ExecQuerier
	entity string

	preds    []querylanguage.Predicate
	colIns   []colIn
	order    []OrderTerm
	limit    int
	offset   int
	cursor   *key.Key
	includes []*Include
	distinct bool
	fields   []string
}

// colIn is an internal raw IN constraint on a column, used by relation
// fetches where the join column is known but not part of the typed surface.
type colIn struct {
	column string
	values []any
}

// Query starts a read on the given entity.
func (r *Registry) Query(entity string) *Query {
	return &Query{reg: r, conn: r.drv, entity: entity, limit: -1, offset: -1}
}

// withConn reroutes the query through the given connection, so reads that
// belong to a mutation run inside its transaction.
func (q *Query) withConn(c dialect.ExecQuerier) *Query {
	q.conn = c
	return q
}

// Where adds predicates, combined with AND semantics.
func (q *Query) Where(preds ...querylanguage.Predicate) *Query {
	q.preds = append(q.preds, preds...)
	return q
}

// Order adds order terms.
func (q *Query) Order(terms ...OrderTerm) *Query {
	q.order = append(q.order, terms...)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n matched rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Cursor resumes after the row with the given primary key. Combined with
// ordering on the primary key it pages without OFFSET.
func (q *Query) Cursor(k key.Key) *Query {
	q.cursor = &k
	return q
}

// Distinct deduplicates the result set.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// Select restricts the loaded fields.
func (q *Query) Select(fields ...string) *Query {
	q.fields = append(q.fields, fields...)
	return q
}

// With attaches relation loads to the query.
func (q *Query) With(includes ...*Include) *Query {
	q.includes = append(q.includes, includes...)
	return q
}

// selector builds the SELECT statement for the current specification.
func (q *Query) selector(b *Binding) (*sql.Selector, error) {
	columns := b.Columns
	if len(q.fields) > 0 {
		columns = make([]string, 0, len(q.fields)+1)
		seen := map[string]bool{}
		for _, f := range q.fields {
			c, ok := b.Column(f)
			if !ok {
				return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", q.entity, f)
			}
			columns = append(columns, c)
			seen[c] = true
		}
		// Include resolution joins on the primary key and on the owner-side
		// join column of every requested relation, so those must survive a
		// narrowed projection.
		if len(q.includes) > 0 {
			if !seen[b.ID] {
				columns = append(columns, b.ID)
				seen[b.ID] = true
			}
			for _, inc := range q.includes {
				rel, ok := b.Relations[inc.relation]
				if !ok {
					continue // resolveIncludes reports unknown relations.
				}
				if !seen[rel.OwnerColumn] {
					columns = append(columns, rel.OwnerColumn)
					seen[rel.OwnerColumn] = true
				}
			}
		}
	}
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = b.Table + "." + c
	}
	sel := sql.Dialect(q.reg.drv.Dialect()).Select(qualified...).From(b.Table)
	p, err := querylanguage.Compile(q.reg, q.entity, q.preds)
	if err != nil {
		return nil, err
	}
	sel.Where(p)
	for _, in := range q.colIns {
		sel.Where(sql.In(b.Table+"."+in.column, in.values...))
	}
	if q.cursor != nil {
		ck, err := q.cursor.Coerce(b.IDKind())
		if err != nil {
			return nil, err
		}
		v, err := ck.Value()
		if err != nil {
			return nil, err
		}
		if len(q.order) > 0 && q.order[0].Field == b.IDField && q.order[0].Desc {
			sel.Where(sql.LT(b.Table+"."+b.ID, v))
		} else {
			sel.Where(sql.GT(b.Table+"."+b.ID, v))
		}
	}
	for _, o := range q.order {
		c, ok := b.Column(o.Field)
		if !ok {
			return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", q.entity, o.Field)
		}
		term := b.Table + "." + c
		if o.Desc {
			term += " DESC"
		}
		sel.OrderBy(term)
	}
	if q.limit >= 0 {
		sel.Limit(q.limit)
	}
	if q.offset >= 0 {
		sel.Offset(q.offset)
	}
	if q.distinct {
		sel.Distinct()
	}
	return sel, nil
}

func (q *Query) query(ctx context.Context, sel *sql.Selector) ([]Row, error) {
	stmt, args := sel.Query()
	var rows sql.Rows
	if err := q.conn.Query(ctx, stmt, args, &rows); err != nil {
		return nil, err
	}
	return scanRows(&rows)
}

// All returns every matched row with its requested relation loads.
func (q *Query) All(ctx context.Context) ([]Row, error) {
	b, err := q.reg.Binding(q.entity)
	if err != nil {
		return nil, err
	}
	sel, err := q.selector(b)
	if err != nil {
		return nil, err
	}
	rows, err := q.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if err := q.reg.resolveIncludes(ctx, b, rows, q.includes); err != nil {
		return nil, err
	}
	return rows, nil
}

// First returns the first matched row, or a typed not-found error.
func (q *Query) First(ctx context.Context) (Row, error) {
	q.limit = 1
	rows, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, strata.NewNotFoundError(q.entity)
	}
	return rows[0], nil
}

// Only returns the single matched row. Zero rows is a typed not-found
// error, more than one a not-singular error.
func (q *Query) Only(ctx context.Context) (Row, error) {
	q.limit = 2
	rows, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, strata.NewNotFoundError(q.entity)
	case 1:
		return rows[0], nil
	}
	return nil, strata.NewNotSingularError(q.entity)
}

// Count returns the number of matched rows.
func (q *Query) Count(ctx context.Context) (int, error) {
	b, err := q.reg.Binding(q.entity)
	if err != nil {
		return 0, err
	}
	sel, err := q.selector(b)
	if err != nil {
		return 0, err
	}
	sel.CountSelection()
	rows, err := q.query(ctx, sel)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, v := range rows[0] {
		if n, ok := toInt64(v); ok {
			return int(n), nil
		}
	}
	return 0, fmt.Errorf("sqlgraph: cannot read count result")
}

// Exist reports whether any row matches.
func (q *Query) Exist(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// Aggregate computes the given aggregations over the matched rows and
// returns them in one row keyed by alias.
func (q *Query) Aggregate(ctx context.Context, aggs ...Agg) (Row, error) {
	b, err := q.reg.Binding(q.entity)
	if err != nil {
		return nil, err
	}
	sel, err := q.selector(b)
	if err != nil {
		return nil, err
	}
	cols, err := q.aggColumns(b, aggs)
	if err != nil {
		return nil, err
	}
	sel.Select(cols...)
	rows, err := q.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return Row{}, nil
	}
	return rows[0], nil
}

// GroupBy groups the matched rows by the given fields and computes the
// aggregations per group.
func (q *Query) GroupBy(ctx context.Context, fields []string, aggs ...Agg) ([]Row, error) {
	b, err := q.reg.Binding(q.entity)
	if err != nil {
		return nil, err
	}
	sel, err := q.selector(b)
	if err != nil {
		return nil, err
	}
	groupCols := make([]string, len(fields))
	for i, f := range fields {
		c, ok := b.Column(f)
		if !ok {
			return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", q.entity, f)
		}
		groupCols[i] = b.Table + "." + c
	}
	aggCols, err := q.aggColumns(b, aggs)
	if err != nil {
		return nil, err
	}
	sel.Select(append(append([]string{}, groupCols...), aggCols...)...)
	sel.GroupBy(groupCols...)
	return q.query(ctx, sel)
}

func (q *Query) aggColumns(b *Binding, aggs []Agg) ([]string, error) {
	cols := make([]string, len(aggs))
	for i, a := range aggs {
		arg := "*"
		if a.field != "" {
			c, ok := b.Column(a.field)
			if !ok {
				return nil, fmt.Errorf("sqlgraph: unknown field %s.%s", q.entity, a.field)
			}
			arg = b.Table + "." + c
		}
		cols[i] = sql.As(fmt.Sprintf("%s(%s)", a.fn, arg), a.alias)
	}
	return cols, nil
}

// tableFetcher is the default Fetcher: it loads related rows from the
// entity's own table through the regular query path.
type tableFetcher struct {
	reg    *Registry
	entity string
}

func (f *tableFetcher) Fetch(ctx context.Context, spec FetchSpec) ([]Row, error) {
	b, err := f.reg.Binding(f.entity)
	if err != nil {
		return nil, err
	}
	q := f.reg.Query(f.entity)
	q.preds = spec.Preds
	q.order = spec.Order
	if spec.Limit > 0 {
		q.limit = spec.Limit
	}
	if spec.Offset > 0 {
		q.offset = spec.Offset
	}
	if len(spec.Fields) > 0 {
		q.fields = spec.Fields
		// The join column must come back for grouping.
		if jf, ok := b.FieldByColumn(spec.Column); ok {
			q.fields = append(q.fields, jf)
		}
	}
	if spec.Column != "" {
		values := make([]any, len(spec.Keys))
		for i, k := range spec.Keys {
			v, err := k.Value()
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		q.colIns = append(q.colIns, colIn{column: spec.Column, values: values})
	}
	return q.All(ctx)
}

// resolveIncludes loads the requested relations for the given parent rows
// and attaches them under the relation names. Parents with a NULL join
// column get the empty result for their cardinality.
func (r *Registry) resolveIncludes(ctx context.Context, b *Binding, rows []Row, includes []*Include) error {
	if len(rows) == 0 || len(includes) == 0 {
		return nil
	}
	for _, inc := range includes {
		rel, ok := b.Relations[inc.relation]
		if !ok {
			return fmt.Errorf("sqlgraph: unknown relation %s.%s", b.Entity, inc.relation)
		}
		tb, err := r.Binding(rel.TargetEntity)
		if err != nil {
			return err
		}
		joinField, ok := tb.FieldByColumn(rel.TargetColumn)
		if !ok {
			return fmt.Errorf("sqlgraph: join column %q not bound on %s", rel.TargetColumn, rel.TargetEntity)
		}
		kind := tb.Kinds[joinField]

		// Per-parent pagination needs one fetch per parent; the common
		// case batches all parent keys into one fetch.
		perParent := inc.limit >= 0 || inc.offset >= 0
		var (
			keys    []key.Key
			keyed   = make(map[uint64][]Row)
			parents = make([]key.Key, len(rows))
			present = make([]bool, len(rows))
		)
		for i, row := range rows {
			v, ok := row[rel.OwnerColumn]
			if !ok || v == nil {
				continue
			}
			k, err := key.FromBackend(kind, v)
			if err != nil {
				return err
			}
			parents[i] = k
			present[i] = true
			if !perParent {
				keys = append(keys, k)
			}
		}
		fetch := func(ks []key.Key, limit, offset int) ([]Row, error) {
			return tb.Fetcher.Fetch(ctx, FetchSpec{
				Column: rel.TargetColumn,
				Keys:   ks,
				Preds:  inc.preds,
				Order:  inc.order,
				Limit:  limit,
				Offset: offset,
				Fields: inc.fields,
			})
		}
		var fetched []Row
		if !perParent {
			if len(keys) > 0 {
				if fetched, err = fetch(keys, 0, 0); err != nil {
					return err
				}
			}
			for _, row := range fetched {
				k, err := row.Key(rel.TargetColumn, kind)
				if err != nil {
					return err
				}
				keyed[k.Hash()] = append(keyed[k.Hash()], row)
			}
		}
		for i, row := range rows {
			if !present[i] {
				if inc.count {
					row[inc.relation] = 0
				} else if rel.ToMany {
					row[inc.relation] = []Row{}
				} else {
					row[inc.relation] = nil
				}
				continue
			}
			var related []Row
			if perParent {
				if related, err = fetch([]key.Key{parents[i]}, inc.limit, inc.offset); err != nil {
					return err
				}
			} else {
				related = keyed[parents[i].Hash()]
			}
			switch {
			case inc.count:
				row[inc.relation] = len(related)
			case rel.ToMany:
				if related == nil {
					related = []Row{}
				}
				row[inc.relation] = related
			case len(related) > 0:
				row[inc.relation] = related[0]
			default:
				row[inc.relation] = nil
			}
			if !inc.count && len(inc.includes) > 0 {
				if err := r.resolveIncludes(ctx, tb, related, inc.includes); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// QueryRaw executes a backend-native statement and returns the rows as-is.
// It bypasses the predicate surface entirely.
func (r *Registry) QueryRaw(ctx context.Context, query string, args ...any) ([]Row, error) {
	var rows sql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	return scanRows(&rows)
}

// Exec executes a backend-native statement and returns its summary.
func (r *Registry) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}
