package querylanguage

import (
	"time"

	"github.com/google/uuid"

	"github.com/syssam/strata/key"
)

// Numeric is the constraint for numeric field values.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func fieldP[P PredicateFunc](name string, op Op, v any) P {
	return P(func() Expr {
		return &FieldExpr{Field: name, Op: op, Value: v}
	})
}

func anySlice[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// StringField is the typed query surface of a string field.
type StringField[P PredicateFunc] struct {
	Name string
}

// NewString returns the string surface for the given field.
func NewString[P PredicateFunc](name string) StringField[P] {
	return StringField[P]{Name: name}
}

// EQ matches the exact value.
func (f StringField[P]) EQ(v string) P { return fieldP[P](f.Name, OpEQ, v) }

// EqualsUnique is EQ on a uniquely constrained field. The resulting
// predicate identifies at most one row and is the selector form expected
// by single-row lookups and upserts.
func (f StringField[P]) EqualsUnique(v string) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches anything but the exact value.
func (f StringField[P]) NEQ(v string) P { return fieldP[P](f.Name, OpNEQ, v) }

// GT matches values ordered after v.
func (f StringField[P]) GT(v string) P { return fieldP[P](f.Name, OpGT, v) }

// GTE matches v and values ordered after it.
func (f StringField[P]) GTE(v string) P { return fieldP[P](f.Name, OpGTE, v) }

// LT matches values ordered before v.
func (f StringField[P]) LT(v string) P { return fieldP[P](f.Name, OpLT, v) }

// LTE matches v and values ordered before it.
func (f StringField[P]) LTE(v string) P { return fieldP[P](f.Name, OpLTE, v) }

// In matches any of the given values.
func (f StringField[P]) In(vs ...string) P { return fieldP[P](f.Name, OpIn, anySlice(vs)) }

// NotIn matches none of the given values.
func (f StringField[P]) NotIn(vs ...string) P { return fieldP[P](f.Name, OpNotIn, anySlice(vs)) }

// Contains matches values containing the substring.
func (f StringField[P]) Contains(v string) P { return fieldP[P](f.Name, OpContains, v) }

// HasPrefix matches values starting with the prefix.
func (f StringField[P]) HasPrefix(v string) P { return fieldP[P](f.Name, OpHasPrefix, v) }

// HasSuffix matches values ending with the suffix.
func (f StringField[P]) HasSuffix(v string) P { return fieldP[P](f.Name, OpHasSuffix, v) }

// IsNull matches NULL values.
func (f StringField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f StringField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Fold switches every string match on this field in the enclosing predicate
// list to case-insensitive matching, wherever in the list it appears.
func (f StringField[P]) Fold() P {
	return P(func() Expr { return &ModeExpr{Field: f.Name} })
}

// Set assigns the value on update.
func (f StringField[P]) Set(v string) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// SetNull assigns NULL on update.
func (f StringField[P]) SetNull() Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: nil} }

// NumericField is the typed query surface of a numeric field.
type NumericField[P PredicateFunc, T Numeric] struct {
	Name string
}

// NewNumeric returns the numeric surface for the given field.
func NewNumeric[P PredicateFunc, T Numeric](name string) NumericField[P, T] {
	return NumericField[P, T]{Name: name}
}

// EQ matches the exact value.
func (f NumericField[P, T]) EQ(v T) P { return fieldP[P](f.Name, OpEQ, v) }

// EqualsUnique is EQ on a uniquely constrained field. The resulting
// predicate identifies at most one row.
func (f NumericField[P, T]) EqualsUnique(v T) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches anything but the exact value.
func (f NumericField[P, T]) NEQ(v T) P { return fieldP[P](f.Name, OpNEQ, v) }

// GT matches values greater than v.
func (f NumericField[P, T]) GT(v T) P { return fieldP[P](f.Name, OpGT, v) }

// GTE matches values greater than or equal to v.
func (f NumericField[P, T]) GTE(v T) P { return fieldP[P](f.Name, OpGTE, v) }

// LT matches values less than v.
func (f NumericField[P, T]) LT(v T) P { return fieldP[P](f.Name, OpLT, v) }

// LTE matches values less than or equal to v.
func (f NumericField[P, T]) LTE(v T) P { return fieldP[P](f.Name, OpLTE, v) }

// In matches any of the given values.
func (f NumericField[P, T]) In(vs ...T) P { return fieldP[P](f.Name, OpIn, anySlice(vs)) }

// NotIn matches none of the given values.
func (f NumericField[P, T]) NotIn(vs ...T) P { return fieldP[P](f.Name, OpNotIn, anySlice(vs)) }

// IsNull matches NULL values.
func (f NumericField[P, T]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f NumericField[P, T]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the value on update.
func (f NumericField[P, T]) Set(v T) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// Add increments the stored value on update.
func (f NumericField[P, T]) Add(v T) Setter { return Setter{Field: f.Name, Op: SetOpAdd, Value: v} }

// Sub decrements the stored value on update.
func (f NumericField[P, T]) Sub(v T) Setter { return Setter{Field: f.Name, Op: SetOpSub, Value: v} }

// Mul multiplies the stored value on update.
func (f NumericField[P, T]) Mul(v T) Setter { return Setter{Field: f.Name, Op: SetOpMul, Value: v} }

// Div divides the stored value on update.
func (f NumericField[P, T]) Div(v T) Setter { return Setter{Field: f.Name, Op: SetOpDiv, Value: v} }

// SetNull assigns NULL on update.
func (f NumericField[P, T]) SetNull() Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: nil} }

// BoolField is the typed query surface of a boolean field.
type BoolField[P PredicateFunc] struct {
	Name string
}

// NewBool returns the boolean surface for the given field.
func NewBool[P PredicateFunc](name string) BoolField[P] {
	return BoolField[P]{Name: name}
}

// EQ matches the exact value.
func (f BoolField[P]) EQ(v bool) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches the opposite value.
func (f BoolField[P]) NEQ(v bool) P { return fieldP[P](f.Name, OpNEQ, v) }

// IsNull matches NULL values.
func (f BoolField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f BoolField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the value on update.
func (f BoolField[P]) Set(v bool) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// TimeField is the typed query surface of a timestamp field.
type TimeField[P PredicateFunc] struct {
	Name string
}

// NewTime returns the timestamp surface for the given field.
func NewTime[P PredicateFunc](name string) TimeField[P] {
	return TimeField[P]{Name: name}
}

// EQ matches the exact instant.
func (f TimeField[P]) EQ(v time.Time) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches anything but the exact instant.
func (f TimeField[P]) NEQ(v time.Time) P { return fieldP[P](f.Name, OpNEQ, v) }

// GT matches instants after v.
func (f TimeField[P]) GT(v time.Time) P { return fieldP[P](f.Name, OpGT, v) }

// GTE matches v and instants after it.
func (f TimeField[P]) GTE(v time.Time) P { return fieldP[P](f.Name, OpGTE, v) }

// LT matches instants before v.
func (f TimeField[P]) LT(v time.Time) P { return fieldP[P](f.Name, OpLT, v) }

// LTE matches v and instants before it.
func (f TimeField[P]) LTE(v time.Time) P { return fieldP[P](f.Name, OpLTE, v) }

// IsNull matches NULL values.
func (f TimeField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f TimeField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the value on update.
func (f TimeField[P]) Set(v time.Time) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// SetNull assigns NULL on update.
func (f TimeField[P]) SetNull() Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: nil} }

// UUIDField is the typed query surface of a UUID field.
type UUIDField[P PredicateFunc] struct {
	Name string
}

// NewUUID returns the UUID surface for the given field.
func NewUUID[P PredicateFunc](name string) UUIDField[P] {
	return UUIDField[P]{Name: name}
}

// EQ matches the exact value.
func (f UUIDField[P]) EQ(v uuid.UUID) P { return fieldP[P](f.Name, OpEQ, v) }

// EqualsUnique is EQ on a uniquely constrained field. The resulting
// predicate identifies at most one row.
func (f UUIDField[P]) EqualsUnique(v uuid.UUID) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches anything but the exact value.
func (f UUIDField[P]) NEQ(v uuid.UUID) P { return fieldP[P](f.Name, OpNEQ, v) }

// In matches any of the given values.
func (f UUIDField[P]) In(vs ...uuid.UUID) P { return fieldP[P](f.Name, OpIn, anySlice(vs)) }

// IsNull matches NULL values.
func (f UUIDField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f UUIDField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the value on update.
func (f UUIDField[P]) Set(v uuid.UUID) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// JSONField is the typed query surface of a JSON document field.
type JSONField[P PredicateFunc] struct {
	Name string
}

// NewJSON returns the JSON surface for the given field.
func NewJSON[P PredicateFunc](name string) JSONField[P] {
	return JSONField[P]{Name: name}
}

// HasKey matches documents where the dotted path exists.
func (f JSONField[P]) HasKey(path string) P {
	return fieldP[P](f.Name, OpJSONHasKey, JSONOperand{Path: path})
}

// ValueEQ matches documents where the value under the dotted path equals v.
func (f JSONField[P]) ValueEQ(path string, v any) P {
	return fieldP[P](f.Name, OpJSONValueEQ, JSONOperand{Path: path, Value: v})
}

// ValueNEQ matches documents where the value under the dotted path differs
// from v.
func (f JSONField[P]) ValueNEQ(path string, v any) P {
	return fieldP[P](f.Name, OpJSONValueNEQ, JSONOperand{Path: path, Value: v})
}

// TypeIs matches documents whose value under the dotted path has the given
// JSON kind.
func (f JSONField[P]) TypeIs(path, kind string) P {
	return fieldP[P](f.Name, OpJSONTypeIs, JSONOperand{Path: path, Kind: kind})
}

// Contains matches documents containing the given serialized value.
func (f JSONField[P]) Contains(serialized string) P {
	return fieldP[P](f.Name, OpJSONContains, JSONOperand{Value: serialized})
}

// IsNull matches NULL columns (not JSON null values).
func (f JSONField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL columns.
func (f JSONField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the serialized document on update.
func (f JSONField[P]) Set(serialized string) Setter {
	return Setter{Field: f.Name, Op: SetOpSet, Value: serialized}
}

// OtherField is the typed query surface of an opaque field. Values pass
// through the field's converter at execution time.
type OtherField[P PredicateFunc] struct {
	Name string
}

// NewOther returns the opaque surface for the given field.
func NewOther[P PredicateFunc](name string) OtherField[P] {
	return OtherField[P]{Name: name}
}

// EQ matches the exact value.
func (f OtherField[P]) EQ(v any) P { return fieldP[P](f.Name, OpEQ, v) }

// NEQ matches anything but the exact value.
func (f OtherField[P]) NEQ(v any) P { return fieldP[P](f.Name, OpNEQ, v) }

// IsNull matches NULL values.
func (f OtherField[P]) IsNull() P { return fieldP[P](f.Name, OpIsNull, nil) }

// NotNull matches non-NULL values.
func (f OtherField[P]) NotNull() P { return fieldP[P](f.Name, OpNotNull, nil) }

// Set assigns the value on update.
func (f OtherField[P]) Set(v any) Setter { return Setter{Field: f.Name, Op: SetOpSet, Value: v} }

// IDField is the typed query surface of a primary key field. It takes
// polymorphic keys, so lookups can be built before the backend key type of
// the entity is known.
type IDField[P PredicateFunc] struct {
	Name string
}

// NewID returns the primary key surface for the given field.
func NewID[P PredicateFunc](name string) IDField[P] {
	return IDField[P]{Name: name}
}

// EQ matches the exact key.
func (f IDField[P]) EQ(k key.Key) P { return fieldP[P](f.Name, OpEQ, k) }

// NEQ matches anything but the exact key.
func (f IDField[P]) NEQ(k key.Key) P { return fieldP[P](f.Name, OpNEQ, k) }

// In matches any of the given keys.
func (f IDField[P]) In(ks ...key.Key) P { return fieldP[P](f.Name, OpIn, anySlice(ks)) }

// RelationField is the typed query surface of a relation. P is the
// predicate type of the declaring entity, C the predicate type of the
// related entity.
type RelationField[P PredicateFunc, C PredicateFunc] struct {
	Name string
}

// NewRelation returns the relation surface for the given relation.
func NewRelation[P PredicateFunc, C PredicateFunc](name string) RelationField[P, C] {
	return RelationField[P, C]{Name: name}
}

func (f RelationField[P, C]) quant(q Quant, preds []C) P {
	return P(func() Expr {
		return &RelationExpr{Relation: f.Name, Quant: q, Preds: exprs(preds)}
	})
}

// Some matches when at least one related row satisfies the predicates.
func (f RelationField[P, C]) Some(preds ...C) P { return f.quant(QuantSome, preds) }

// Every matches when all related rows satisfy the predicates. Entities
// without related rows match vacuously.
func (f RelationField[P, C]) Every(preds ...C) P { return f.quant(QuantEvery, preds) }

// None matches when no related row satisfies the predicates. Entities
// without related rows match.
func (f RelationField[P, C]) None(preds ...C) P { return f.quant(QuantNone, preds) }
