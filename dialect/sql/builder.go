// Package sql provides the SQL statement builders and the dialect.Driver
// implementation used by the strata runtime. Statements are assembled as
// backend-neutral trees and rendered per-dialect only when queried.
package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/strata/dialect"
)

// Querier is the interface that wraps the Query method.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base writer shared by all statement builders.
// Nested builders (e.g. the selector of an EXISTS predicate) write into
// their parent builder so placeholder numbering stays consistent.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

// NewBuilder returns a fresh builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the builder dialect.
func (b *Builder) Dialect() string { return b.dialect }

// WriteString appends the given string to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends the given byte to the statement.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Arg appends a placeholder for the given value and records the value.
func (b *Builder) Arg(v any) *Builder {
	if q, ok := v.(Querier); ok {
		query, args := q.Query()
		b.sb.WriteString(query)
		b.args = append(b.args, args...)
		return b
	}
	b.args = append(b.args, v)
	if b.postgres() {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteByte('?')
	}
	return b
}

// Args appends placeholders for the given list of values, comma separated.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Ident appends the given identifier, quoted for the dialect.
// Qualified identifiers (table.column) are quoted per part. Strings that
// already look like expressions (contain parentheses, spaces or the `*`
// selector) are written as-is.
func (b *Builder) Ident(ident string) *Builder {
	if ident == "" {
		return b
	}
	if strings.ContainsAny(ident, "(* ") || isLiteral(ident) {
		b.sb.WriteString(ident)
		return b
	}
	q := byte('"')
	if b.dialect == dialect.MySQL {
		q = '`'
	}
	for i, part := range strings.Split(ident, ".") {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		b.sb.WriteByte(q)
		b.sb.WriteString(part)
		b.sb.WriteByte(q)
	}
	return b
}

// isLiteral reports whether the selection term is a numeric literal rather
// than an identifier (SELECT 1 subqueries).
func isLiteral(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// IdentComma writes the identifiers comma separated.
func (b *Builder) IdentComma(idents ...string) *Builder {
	for i, ident := range idents {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(ident)
	}
	return b
}

func (b *Builder) postgres() bool { return b.dialect == dialect.Postgres }

// String returns the accumulated statement.
func (b *Builder) String() string { return b.sb.String() }

// DialectBuilder is the entry point for building dialect-aware statements.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder for the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select returns a Selector for the given columns.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: columns}
}

// Insert returns an InsertBuilder for the given table.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// Update returns an UpdateBuilder for the given table.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete returns a DeleteBuilder for the given table.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// Select returns a Selector without a bound dialect. Used for subqueries
// that render through their parent statement's builder.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// Table qualifies a column name with a table (or alias) name.
func Table(name string) TableName { return TableName(name) }

// TableName is a table (or alias) reference used for column qualification.
type TableName string

// C returns the qualified column name.
func (t TableName) C(column string) string { return string(t) + "." + column }

// Asc returns an ascending order term for the given column.
func Asc(column string) string { return column }

// Desc returns a descending order term for the given column.
func Desc(column string) string { return column + " DESC" }

// Aggregation helpers used by GroupBy / Aggregate operations.

// Count returns the COUNT aggregation for the given column.
func Count(column string) string { return "COUNT(" + column + ")" }

// Sum returns the SUM aggregation for the given column.
func Sum(column string) string { return "SUM(" + column + ")" }

// Min returns the MIN aggregation for the given column.
func Min(column string) string { return "MIN(" + column + ")" }

// Max returns the MAX aggregation for the given column.
func Max(column string) string { return "MAX(" + column + ")" }

// Avg returns the AVG aggregation for the given column.
func Avg(column string) string { return "AVG(" + column + ")" }

// As returns the aliased form of an expression.
func As(expr, alias string) string { return expr + " AS " + alias }

// Predicate is a backend-neutral condition node. It renders itself into a
// Builder only when the enclosing statement is queried, so the same tree
// can serve any dialect.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new predicate, optionally from raw writer functions.
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

func (p *Predicate) append(fn func(*Builder)) *Predicate {
	p.fns = append(p.fns, fn)
	return p
}

func (p *Predicate) render(b *Builder) {
	for _, fn := range p.fns {
		fn(b)
	}
}

// Query renders the predicate standalone with the default placeholder style.
func (p *Predicate) Query() (string, []any) {
	b := NewBuilder("")
	p.render(b)
	return b.String(), b.args
}

// And combines the predicates with the AND operator between them.
func And(preds ...*Predicate) *Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return P(func(b *Builder) {
		b.WriteByte('(')
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p.render(b)
		}
		b.WriteByte(')')
	})
}

// Or combines the predicates with the OR operator between them.
func Or(preds ...*Predicate) *Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return P(func(b *Builder) {
		b.WriteByte('(')
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" OR ")
			}
			p.render(b)
		}
		b.WriteByte(')')
	})
}

// Not negates the given predicate.
func Not(p *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT (")
		p.render(b)
		b.WriteByte(')')
	})
}

func binary(column, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(column).WriteString(" " + op + " ").Arg(v)
	})
}

// EQ returns a column = value predicate.
func EQ(column string, v any) *Predicate { return binary(column, "=", v) }

// NEQ returns a column <> value predicate.
func NEQ(column string, v any) *Predicate { return binary(column, "<>", v) }

// GT returns a column > value predicate.
func GT(column string, v any) *Predicate { return binary(column, ">", v) }

// GTE returns a column >= value predicate.
func GTE(column string, v any) *Predicate { return binary(column, ">=", v) }

// LT returns a column < value predicate.
func LT(column string, v any) *Predicate { return binary(column, "<", v) }

// LTE returns a column <= value predicate.
func LTE(column string, v any) *Predicate { return binary(column, "<=", v) }

// ColumnsEQ returns a column = column predicate. Used for join conditions
// of correlated subqueries.
func ColumnsEQ(col1, col2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col1).WriteString(" = ").Ident(col2)
	})
}

// In returns a column IN (...) predicate. An empty list renders FALSE.
func In(column string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.Ident(column).WriteString(" IN (").Args(vs...).WriteByte(')')
	})
}

// NotIn returns a column NOT IN (...) predicate. An empty list renders TRUE.
func NotIn(column string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("TRUE")
			return
		}
		b.Ident(column).WriteString(" NOT IN (").Args(vs...).WriteByte(')')
	})
}

// IsNull returns a column IS NULL predicate.
func IsNull(column string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(column).WriteString(" IS NULL")
	})
}

// NotNull returns a column IS NOT NULL predicate.
func NotNull(column string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(column).WriteString(" IS NOT NULL")
	})
}

// escapeLike escapes the LIKE wildcards in the given literal.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// like renders a LIKE predicate. Patterns built from escapeLike carry an
// explicit ESCAPE clause: sqlite has no default escape character, so a bare
// backslash would match literally there.
func like(column, pattern string, fold, escaped bool) *Predicate {
	return P(func(b *Builder) {
		if fold {
			b.WriteString("LOWER(").Ident(column).WriteString(") LIKE ").Arg(strings.ToLower(pattern))
		} else {
			b.Ident(column).WriteString(" LIKE ").Arg(pattern)
		}
		if escaped {
			// MySQL string literals treat the backslash as an escape of
			// their own, so the clause needs a doubled one there.
			if b.dialect == dialect.MySQL {
				b.WriteString(` ESCAPE '\\'`)
			} else {
				b.WriteString(` ESCAPE '\'`)
			}
		}
	})
}

// Like returns a column LIKE pattern predicate. The pattern is used as-is.
func Like(column, pattern string) *Predicate { return like(column, pattern, false, false) }

// Contains returns a substring-match predicate.
func Contains(column, sub string) *Predicate {
	return like(column, "%"+escapeLike(sub)+"%", false, true)
}

// ContainsFold returns a case-insensitive substring-match predicate.
func ContainsFold(column, sub string) *Predicate {
	return like(column, "%"+escapeLike(sub)+"%", true, true)
}

// HasPrefix returns a prefix-match predicate.
func HasPrefix(column, prefix string) *Predicate {
	return like(column, escapeLike(prefix)+"%", false, true)
}

// HasPrefixFold returns a case-insensitive prefix-match predicate.
func HasPrefixFold(column, prefix string) *Predicate {
	return like(column, escapeLike(prefix)+"%", true, true)
}

// HasSuffix returns a suffix-match predicate.
func HasSuffix(column, suffix string) *Predicate {
	return like(column, "%"+escapeLike(suffix), false, true)
}

// HasSuffixFold returns a case-insensitive suffix-match predicate.
func HasSuffixFold(column, suffix string) *Predicate {
	return like(column, "%"+escapeLike(suffix), true, true)
}

// EqualFold returns a case-insensitive equality predicate.
func EqualFold(column, v string) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("LOWER(").Ident(column).WriteString(") = ").Arg(strings.ToLower(v))
	})
}

// Exists returns an EXISTS (subquery) predicate.
func Exists(s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("EXISTS (")
		s.renderInto(b)
		b.WriteByte(')')
	})
}

// NotExists returns a NOT EXISTS (subquery) predicate.
func NotExists(s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT EXISTS (")
		s.renderInto(b)
		b.WriteByte(')')
	})
}

// ExprP returns a predicate from a raw expression and its arguments.
func ExprP(expr string, args ...any) *Predicate {
	return P(func(b *Builder) {
		b.WriteString(expr)
		b.args = append(b.args, args...)
	})
}

// jsonPath renders a dotted path as the dialect's JSON path expression
// applied to the column.
func jsonPath(b *Builder, column, path string) {
	switch b.dialect {
	case dialect.Postgres:
		b.WriteString("jsonb_extract_path_text(").Ident(column)
		for _, part := range strings.Split(path, ".") {
			b.WriteString(", ").Arg(part)
		}
		b.WriteByte(')')
	default:
		b.WriteString("json_extract(").Ident(column).WriteString(", ").Arg("$." + path).WriteByte(')')
	}
}

// JSONValueEQ returns a predicate comparing the JSON value under the given
// dotted path with v.
func JSONValueEQ(column, path string, v any) *Predicate {
	return P(func(b *Builder) {
		jsonPath(b, column, path)
		b.WriteString(" = ").Arg(v)
	})
}

// JSONValueNEQ returns a predicate checking the JSON value under the given
// dotted path differs from v.
func JSONValueNEQ(column, path string, v any) *Predicate {
	return P(func(b *Builder) {
		jsonPath(b, column, path)
		b.WriteString(" <> ").Arg(v)
	})
}

// JSONHasKey returns a predicate checking the given dotted path exists.
func JSONHasKey(column, path string) *Predicate {
	return P(func(b *Builder) {
		switch b.dialect {
		case dialect.Postgres:
			b.WriteString("jsonb_extract_path(").Ident(column)
			for _, part := range strings.Split(path, ".") {
				b.WriteString(", ").Arg(part)
			}
			b.WriteString(") IS NOT NULL")
		default:
			b.WriteString("json_type(").Ident(column).WriteString(", ").Arg("$." + path).WriteString(") IS NOT NULL")
		}
	})
}

// JSONContains returns a predicate checking the JSON document contains the
// given serialized value. For array columns this is element containment.
func JSONContains(column string, v string) *Predicate {
	return P(func(b *Builder) {
		switch b.dialect {
		case dialect.Postgres:
			b.Ident(column).WriteString(" @> ").Arg(v)
		case dialect.MySQL:
			b.WriteString("JSON_CONTAINS(").Ident(column).WriteString(", ").Arg(v).WriteByte(')')
		default:
			b.WriteString("EXISTS (SELECT 1 FROM json_each(").Ident(column).
				WriteString(") WHERE json_each.value = json_extract(").Arg(v).WriteString(", '$'))")
		}
	})
}

// JSONTypeIs returns a predicate checking the JSON kind (null, array,
// object, ...) of the value under the given dotted path. An empty path
// checks the document root.
func JSONTypeIs(column, path, kind string) *Predicate {
	return P(func(b *Builder) {
		switch b.dialect {
		case dialect.Postgres:
			if path == "" {
				b.WriteString("jsonb_typeof(").Ident(column).WriteByte(')')
			} else {
				b.WriteString("jsonb_typeof(jsonb_extract_path(").Ident(column)
				for _, part := range strings.Split(path, ".") {
					b.WriteString(", ").Arg(part)
				}
				b.WriteString("))")
			}
			b.WriteString(" = ").Arg(kind)
		default:
			p := "$"
			if path != "" {
				p = "$." + path
			}
			b.WriteString("json_type(").Ident(column).WriteString(", ").Arg(p).
				WriteString(") = ").Arg(kind)
		}
	})
}

// Selector is a SELECT statement builder.
type Selector struct {
	dialect  string
	columns  []string
	table    string
	as       string
	where    *Predicate
	groupBy  []string
	having   *Predicate
	order    []string
	limit    *int
	offset   *int
	distinct bool
}

// From sets the table of the selector.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// As sets the table alias.
func (s *Selector) As(alias string) *Selector {
	s.as = alias
	return s
}

// TableName returns the name queries should use to qualify columns of this
// selector: the alias when set, the table otherwise.
func (s *Selector) TableName() string {
	if s.as != "" {
		return s.as
	}
	return s.table
}

// C returns a column qualified by the selector table (or alias).
func (s *Selector) C(column string) string {
	return s.TableName() + "." + column
}

// Where merges the given predicate into the selector with AND semantics.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where != nil {
		s.where = And(s.where, p)
	} else {
		s.where = p
	}
	return s
}

// GroupBy appends the given columns to the GROUP BY clause.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// Having sets the HAVING predicate.
func (s *Selector) Having(p *Predicate) *Selector {
	s.having = p
	return s
}

// OrderBy appends the given order terms.
func (s *Selector) OrderBy(terms ...string) *Selector {
	s.order = append(s.order, terms...)
	return s
}

// Limit sets the LIMIT clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Distinct marks the selection as DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Select replaces the selected columns.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	return s
}

// CountSelection replaces the selection with COUNT(*).
func (s *Selector) CountSelection() *Selector {
	s.columns = []string{"COUNT(*)"}
	return s
}

func (s *Selector) renderInto(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		b.IdentComma(s.columns...)
	}
	b.WriteString(" FROM ").Ident(s.table)
	if s.as != "" {
		b.WriteString(" AS ").Ident(s.as)
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.render(b)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(s.groupBy...)
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.render(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ").IdentComma(s.order...)
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

// Query returns the SELECT statement and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.renderInto(b)
	return b.String(), b.args
}

// InsertBuilder is an INSERT statement builder.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    [][]any
	returning []string
}

// Columns sets the insert columns.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = columns
	return i
}

// Values appends one row of values. Call repeatedly for bulk inserts.
func (i *InsertBuilder) Values(vs ...any) *InsertBuilder {
	i.values = append(i.values, vs)
	return i
}

// Returning sets the RETURNING clause. Ignored on dialects without
// RETURNING support (MySQL).
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the INSERT statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	b.WriteString("INSERT INTO ").Ident(i.table).WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES ")
	for j, row := range i.values {
		if j > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(').Args(row...).WriteByte(')')
	}
	if len(i.returning) > 0 && i.dialect != dialect.MySQL {
		b.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return b.String(), b.args
}

// set operation applied by an UpdateBuilder.
type setClause struct {
	column string
	op     string // "" for plain assignment, else +, -, *, /
	value  any
	null   bool
}

// UpdateBuilder is an UPDATE statement builder.
type UpdateBuilder struct {
	dialect string
	table   string
	sets    []setClause
	where   *Predicate
}

// Set assigns the given value to the column.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, value: v})
	return u
}

// Add increments the column by the given value.
func (u *UpdateBuilder) Add(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, op: "+", value: v})
	return u
}

// Sub decrements the column by the given value.
func (u *UpdateBuilder) Sub(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, op: "-", value: v})
	return u
}

// Mul multiplies the column by the given value.
func (u *UpdateBuilder) Mul(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, op: "*", value: v})
	return u
}

// Div divides the column by the given value.
func (u *UpdateBuilder) Div(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, op: "/", value: v})
	return u
}

// SetNull assigns NULL to the column.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	u.sets = append(u.sets, setClause{column: column, null: true})
	return u
}

// Where sets the UPDATE predicate.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where != nil {
		u.where = And(u.where, p)
	} else {
		u.where = p
	}
	return u
}

// Empty reports whether the builder carries no set clauses.
func (u *UpdateBuilder) Empty() bool { return len(u.sets) == 0 }

// Query returns the UPDATE statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, s := range u.sets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s.column).WriteString(" = ")
		switch {
		case s.null:
			b.WriteString("NULL")
		case s.op != "":
			b.Ident(s.column).WriteString(" " + s.op + " ").Arg(s.value)
		default:
			b.Arg(s.value)
		}
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.render(b)
	}
	return b.String(), b.args
}

// DeleteBuilder is a DELETE statement builder.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Where sets the DELETE predicate.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where != nil {
		d.where = And(d.where, p)
	} else {
		d.where = p
	}
	return d
}

// Query returns the DELETE statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.render(b)
	}
	return b.String(), b.args
}
