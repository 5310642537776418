// Package querylanguage defines the predicate expression tree shared by the
// generated per-entity query surfaces and the runtime, and compiles it to
// backend-neutral SQL condition trees.
//
// Predicates are thunks over a closed expression union. Generated packages
// define their own predicate types over the same shape
// (type User func() querylanguage.Expr), so every entity gets a distinct,
// type-safe surface while the compiler works on one union.
package querylanguage

// Expr is a node of the closed predicate expression union.
type Expr interface {
	expr()
}

// Op is a field comparison operator.
type Op uint8

// Field operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIn
	OpNotIn
	OpContains
	OpHasPrefix
	OpHasSuffix
	OpIsNull
	OpNotNull
	OpJSONHasKey
	OpJSONValueEQ
	OpJSONValueNEQ
	OpJSONTypeIs
	OpJSONContains
)

var opNames = [...]string{
	OpEQ:           "=",
	OpNEQ:          "<>",
	OpGT:           ">",
	OpGTE:          ">=",
	OpLT:           "<",
	OpLTE:          "<=",
	OpIn:           "in",
	OpNotIn:        "not in",
	OpContains:     "contains",
	OpHasPrefix:    "has_prefix",
	OpHasSuffix:    "has_suffix",
	OpIsNull:       "is null",
	OpNotNull:      "not null",
	OpJSONHasKey:   "json has key",
	OpJSONValueEQ:  "json value =",
	OpJSONValueNEQ: "json value <>",
	OpJSONTypeIs:   "json type is",
	OpJSONContains: "json contains",
}

// String returns the operator name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "invalid"
}

// FieldExpr compares one field against a value.
type FieldExpr struct {
	Field string
	Op    Op
	Value any
}

// JSONOperand carries the extra operands of JSON field operators.
type JSONOperand struct {
	// Path is the dotted path into the document. Empty means the root.
	Path string
	// Value is the comparison value, when the operator takes one.
	Value any
	// Kind is the JSON type name for type checks.
	Kind string
}

// ModeExpr switches every string match on the field in the enclosing
// predicate list to case-insensitive matching, regardless of where in the
// list it appears.
type ModeExpr struct {
	Field string
}

// AndExpr is the conjunction of its children.
type AndExpr struct {
	Xs []Expr
}

// OrExpr is the disjunction of its children.
type OrExpr struct {
	Xs []Expr
}

// NotExpr negates its child.
type NotExpr struct {
	X Expr
}

// Quant is a relation quantifier.
type Quant uint8

// Relation quantifiers.
const (
	// QuantSome matches when at least one related row satisfies the
	// nested predicates.
	QuantSome Quant = iota
	// QuantEvery matches when all related rows satisfy the nested
	// predicates. Vacuously true without related rows.
	QuantEvery
	// QuantNone matches when no related row satisfies the nested
	// predicates. Vacuously true without related rows.
	QuantNone
)

var quantNames = [...]string{
	QuantSome:  "some",
	QuantEvery: "every",
	QuantNone:  "none",
}

// String returns the quantifier name.
func (q Quant) String() string {
	if int(q) < len(quantNames) {
		return quantNames[q]
	}
	return "invalid"
}

// RelationExpr quantifies nested predicates over a named relation.
type RelationExpr struct {
	Relation string
	Quant    Quant
	Preds    []Expr
}

func (*FieldExpr) expr()    {}
func (*ModeExpr) expr()     {}
func (*AndExpr) expr()      {}
func (*OrExpr) expr()       {}
func (*NotExpr) expr()      {}
func (*RelationExpr) expr() {}

// SetOp is an update assignment operator.
type SetOp uint8

// Update operators.
const (
	SetOpSet SetOp = iota
	SetOpAdd
	SetOpSub
	SetOpMul
	SetOpDiv
)

var setOpNames = [...]string{
	SetOpSet: "set",
	SetOpAdd: "add",
	SetOpSub: "sub",
	SetOpMul: "mul",
	SetOpDiv: "div",
}

// String returns the operator name.
func (o SetOp) String() string {
	if int(o) < len(setOpNames) {
		return setOpNames[o]
	}
	return "invalid"
}

// Setter is one ordered update assignment. Later setters on the same field
// win over earlier ones.
type Setter struct {
	Field string
	Op    SetOp
	Value any
}

// Predicate is the untyped predicate thunk. Generated per-entity predicate
// types share its underlying shape.
type Predicate func() Expr

// PredicateFunc constrains the generic field surfaces to any per-entity
// predicate type.
type PredicateFunc interface {
	~func() Expr
}

// And combines typed predicates into a conjunction.
func And[P PredicateFunc](preds ...P) P {
	return P(func() Expr {
		return &AndExpr{Xs: exprs(preds)}
	})
}

// Or combines typed predicates into a disjunction.
func Or[P PredicateFunc](preds ...P) P {
	return P(func() Expr {
		return &OrExpr{Xs: exprs(preds)}
	})
}

// Not negates a typed predicate.
func Not[P PredicateFunc](p P) P {
	return P(func() Expr {
		return &NotExpr{X: p()}
	})
}

func exprs[P PredicateFunc](preds []P) []Expr {
	xs := make([]Expr, len(preds))
	for i, p := range preds {
		xs[i] = p()
	}
	return xs
}
