package querylanguage

import (
	"fmt"
	"strconv"

	strata "github.com/syssam/strata"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/key"
)

// RelationInfo is the resolved join metadata of one relation, as produced
// by the schema compiler. OwnerColumn and TargetColumn are the join columns
// on the declaring entity and the target table; which side carries the
// foreign key is already folded in.
type RelationInfo struct {
	Name         string
	TargetEntity string
	TargetTable  string
	OwnerColumn  string
	TargetColumn string
	ToMany       bool
}

// Schema resolves names against compiled entity metadata. The compiled
// entity graph implements it.
type Schema interface {
	// Table returns the backing table of the entity.
	Table(entity string) (string, bool)
	// Column returns the backing column of the entity field.
	Column(entity, field string) (string, bool)
	// Relation returns the resolved join metadata of the named relation.
	Relation(entity, name string) (RelationInfo, bool)
}

// Compile lowers a typed predicate list to a backend-neutral SQL condition
// tree. The whole list is pre-scanned for case-insensitivity markers first,
// so a marker applies to every string match on its field regardless of
// order. Relation quantifiers become correlated subqueries on the resolved
// join columns. A nil result means the list constrains nothing.
func Compile[P PredicateFunc](s Schema, entity string, preds []P) (*sql.Predicate, error) {
	table, ok := s.Table(entity)
	if !ok {
		return nil, fmt.Errorf("querylanguage: unknown entity %q", entity)
	}
	sc := &scope{schema: s, entity: entity, qual: table}
	return sc.compileList(exprs(preds))
}

// ApplySetters resolves the ordered setter list against the schema and
// applies it to the update statement. Assignment order is preserved.
func ApplySetters(s Schema, entity string, u *sql.UpdateBuilder, setters []Setter) error {
	for _, st := range setters {
		column, ok := s.Column(entity, st.Field)
		if !ok {
			return fmt.Errorf("querylanguage: unknown field %s.%s", entity, st.Field)
		}
		v, err := resolveValue(st.Value)
		if err != nil {
			return err
		}
		switch st.Op {
		case SetOpSet:
			if v == nil {
				u.SetNull(column)
			} else {
				u.Set(column, v)
			}
		case SetOpAdd:
			u.Add(column, v)
		case SetOpSub:
			u.Sub(column, v)
		case SetOpMul:
			u.Mul(column, v)
		case SetOpDiv:
			u.Div(column, v)
		default:
			return strata.NewContractError("querylanguage.ApplySetters", st.Op)
		}
	}
	return nil
}

// scope is one compilation frame: the entity under scrutiny, the qualifier
// its columns render under, and the fields marked case-insensitive in the
// current predicate list. Relation subqueries open a child scope.
type scope struct {
	schema Schema
	entity string
	qual   string
	fold   map[string]bool
	depth  int
}

func (sc *scope) compileList(xs []Expr) (*sql.Predicate, error) {
	sc.fold = map[string]bool{}
	collectFold(xs, sc.fold)
	var out []*sql.Predicate
	for _, x := range xs {
		p, err := sc.lower(x)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return sql.And(out...), nil
}

// collectFold gathers case-insensitivity markers from the list, descending
// through logical nodes but not into relation subscopes, which fold their
// own lists.
func collectFold(xs []Expr, fold map[string]bool) {
	for _, x := range xs {
		switch x := x.(type) {
		case *ModeExpr:
			fold[x.Field] = true
		case *AndExpr:
			collectFold(x.Xs, fold)
		case *OrExpr:
			collectFold(x.Xs, fold)
		case *NotExpr:
			collectFold([]Expr{x.X}, fold)
		}
	}
}

func (sc *scope) lower(x Expr) (*sql.Predicate, error) {
	switch x := x.(type) {
	case *ModeExpr:
		// Consumed by the fold pre-pass.
		return nil, nil
	case *AndExpr:
		var out []*sql.Predicate
		for _, c := range x.Xs {
			p, err := sc.lower(c)
			if err != nil {
				return nil, err
			}
			if p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return sql.And(out...), nil
	case *OrExpr:
		var out []*sql.Predicate
		for _, c := range x.Xs {
			p, err := sc.lower(c)
			if err != nil {
				return nil, err
			}
			if p != nil {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return sql.Or(out...), nil
	case *NotExpr:
		p, err := sc.lower(x.X)
		if err != nil {
			return nil, err
		}
		if p == nil {
			// NOT over an empty constraint matches nothing.
			return sql.ExprP("FALSE"), nil
		}
		return sql.Not(p), nil
	case *FieldExpr:
		return sc.lowerField(x)
	case *RelationExpr:
		return sc.lowerRelation(x)
	}
	return nil, strata.NewContractError("querylanguage.Compile", x)
}

func (sc *scope) lowerField(x *FieldExpr) (*sql.Predicate, error) {
	column, ok := sc.schema.Column(sc.entity, x.Field)
	if !ok {
		return nil, fmt.Errorf("querylanguage: unknown field %s.%s", sc.entity, x.Field)
	}
	qcol := sc.qual + "." + column
	fold := sc.fold[x.Field]
	v, err := resolveValue(x.Value)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case OpEQ:
		if s, ok := v.(string); ok && fold {
			return sql.EqualFold(qcol, s), nil
		}
		return sql.EQ(qcol, v), nil
	case OpNEQ:
		if s, ok := v.(string); ok && fold {
			return sql.Not(sql.EqualFold(qcol, s)), nil
		}
		return sql.NEQ(qcol, v), nil
	case OpGT:
		return sql.GT(qcol, v), nil
	case OpGTE:
		return sql.GTE(qcol, v), nil
	case OpLT:
		return sql.LT(qcol, v), nil
	case OpLTE:
		return sql.LTE(qcol, v), nil
	case OpIn:
		vs, err := valueList(v)
		if err != nil {
			return nil, err
		}
		return sql.In(qcol, vs...), nil
	case OpNotIn:
		vs, err := valueList(v)
		if err != nil {
			return nil, err
		}
		return sql.NotIn(qcol, vs...), nil
	case OpContains, OpHasPrefix, OpHasSuffix:
		s, ok := v.(string)
		if !ok {
			return nil, strata.NewContractError("querylanguage.Compile", x.Value)
		}
		switch x.Op {
		case OpContains:
			if fold {
				return sql.ContainsFold(qcol, s), nil
			}
			return sql.Contains(qcol, s), nil
		case OpHasPrefix:
			if fold {
				return sql.HasPrefixFold(qcol, s), nil
			}
			return sql.HasPrefix(qcol, s), nil
		default:
			if fold {
				return sql.HasSuffixFold(qcol, s), nil
			}
			return sql.HasSuffix(qcol, s), nil
		}
	case OpIsNull:
		return sql.IsNull(qcol), nil
	case OpNotNull:
		return sql.NotNull(qcol), nil
	case OpJSONHasKey, OpJSONValueEQ, OpJSONValueNEQ, OpJSONTypeIs, OpJSONContains:
		op, ok := x.Value.(JSONOperand)
		if !ok {
			return nil, strata.NewContractError("querylanguage.Compile", x.Value)
		}
		switch x.Op {
		case OpJSONHasKey:
			return sql.JSONHasKey(qcol, op.Path), nil
		case OpJSONValueEQ:
			return sql.JSONValueEQ(qcol, op.Path, op.Value), nil
		case OpJSONValueNEQ:
			return sql.JSONValueNEQ(qcol, op.Path, op.Value), nil
		case OpJSONTypeIs:
			return sql.JSONTypeIs(qcol, op.Path, op.Kind), nil
		default:
			s, _ := op.Value.(string)
			return sql.JSONContains(qcol, s), nil
		}
	}
	return nil, strata.NewContractError("querylanguage.Compile", x.Op)
}

// lowerRelation turns a quantified relation predicate into a correlated
// subquery. The join direction comes from the resolved metadata only:
//
//	some:  EXISTS  (join AND filters)
//	every: NOT EXISTS (join AND NOT filters)
//	none:  NOT EXISTS (join AND filters)
//
// The every and none forms hold vacuously for entities without related
// rows.
func (sc *scope) lowerRelation(x *RelationExpr) (*sql.Predicate, error) {
	info, ok := sc.schema.Relation(sc.entity, x.Relation)
	if !ok {
		return nil, fmt.Errorf("querylanguage: unknown relation %s.%s", sc.entity, x.Relation)
	}
	alias := "t" + strconv.Itoa(sc.depth+1)
	sub := &scope{
		schema: sc.schema,
		entity: info.TargetEntity,
		qual:   alias,
		depth:  sc.depth + 1,
	}
	filters, err := sub.compileList(x.Preds)
	if err != nil {
		return nil, err
	}
	join := sql.ColumnsEQ(alias+"."+info.TargetColumn, sc.qual+"."+info.OwnerColumn)
	sel := sql.Select("1").From(info.TargetTable).As(alias)
	switch x.Quant {
	case QuantSome:
		if filters != nil {
			join = sql.And(join, filters)
		}
		return sql.Exists(sel.Where(join)), nil
	case QuantEvery:
		if filters == nil {
			// Every row satisfies an empty filter list.
			return nil, nil
		}
		return sql.NotExists(sel.Where(sql.And(join, sql.Not(filters)))), nil
	case QuantNone:
		if filters != nil {
			join = sql.And(join, filters)
		}
		return sql.NotExists(sel.Where(join)), nil
	}
	return nil, strata.NewContractError("querylanguage.Compile", x.Quant)
}

// resolveValue converts polymorphic keys to their backend values. Other
// values pass through untouched.
func resolveValue(v any) (any, error) {
	switch x := v.(type) {
	case key.Key:
		return x.Value()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := resolveValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

func valueList(v any) ([]any, error) {
	vs, ok := v.([]any)
	if !ok {
		return nil, strata.NewContractError("querylanguage.Compile", v)
	}
	return vs, nil
}
