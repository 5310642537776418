package sqlgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/key"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/field"
)

// RelationMeta is the resolved join metadata of one relation, in runtime
// form. OwnerColumn joins the declaring entity, TargetColumn the target
// table; the foreign key side is already folded in.
type RelationMeta struct {
	Name         string
	TargetEntity string
	TargetTable  string
	OwnerColumn  string
	TargetColumn string
	ToMany       bool
	// FKNullable reports whether the foreign key column accepts NULL.
	// It decides whether detached rows are nulled out or deleted.
	FKNullable bool
}

// Binding is the runtime metadata of one registered entity. The generated
// client registers one binding per entity; dynamic callers can register
// bindings by hand.
type Binding struct {
	Entity  string
	Table   string
	ID      string // primary key column.
	IDField string // primary key field name.
	Columns []string
	// Fields maps field names to backing columns.
	Fields map[string]string
	// Kinds maps field names to the key kinds that can address them.
	Kinds map[string]key.Kind
	// Nullable marks nullable fields.
	Nullable map[string]bool
	// Converters holds the value converters of opaque fields.
	Converters map[string]field.ValueConverter
	// Relations maps relation names to their resolved metadata.
	Relations map[string]RelationMeta
	// Fetcher loads related rows for this entity. Defaults to the
	// table-backed fetcher when nil.
	Fetcher Fetcher
}

// IDKind returns the key kind of the primary key.
func (b *Binding) IDKind() key.Kind { return b.Kinds[b.IDField] }

// Column returns the backing column of the given field.
func (b *Binding) Column(field string) (string, bool) {
	c, ok := b.Fields[field]
	return c, ok
}

// FieldByColumn returns the field backed by the given column.
func (b *Binding) FieldByColumn(column string) (string, bool) {
	for f, c := range b.Fields {
		if c == column {
			return f, true
		}
	}
	return "", false
}

// FetchSpec describes one related-row load going through a Fetcher.
type FetchSpec struct {
	// Column is the column the keys select on.
	Column string
	// Keys are the parent join keys. Empty means no key constraint.
	Keys []key.Key
	// Preds are extra predicates on the fetched entity.
	Preds []querylanguage.Predicate
	// Order, Limit, Offset and Fields shape the result.
	Order  []OrderTerm
	Limit  int
	Offset int
	Fields []string
}

// Fetcher loads rows of one entity for relation traversal. Implementations
// can serve entities that live outside the registry's database.
type Fetcher interface {
	Fetch(ctx context.Context, spec FetchSpec) ([]Row, error)
}

// Registry is the runtime entity hub: it holds one binding per entity and
// is the entry point for all queries and mutations. Entity lookup tolerates
// namespace-qualified (pkg.User) and case-varied names.
type Registry struct {
	drv dialect.Driver

	mu       sync.RWMutex
	bindings map[string]*Binding
}

// NewRegistry returns an empty registry bound to the given driver.
func NewRegistry(drv dialect.Driver) *Registry {
	return &Registry{drv: drv, bindings: make(map[string]*Binding)}
}

// Driver returns the registry driver.
func (r *Registry) Driver() dialect.Driver { return r.drv }

// Register adds an entity binding. Registering the same entity twice
// replaces the previous binding.
func (r *Registry) Register(b *Binding) error {
	switch {
	case b.Entity == "":
		return fmt.Errorf("sqlgraph: binding without entity name")
	case b.Table == "":
		return fmt.Errorf("sqlgraph: binding %s without table", b.Entity)
	case b.ID == "" || b.IDField == "":
		return fmt.Errorf("sqlgraph: binding %s without primary key", b.Entity)
	}
	if b.Fetcher == nil {
		b.Fetcher = &tableFetcher{reg: r, entity: b.Entity}
	}
	r.mu.Lock()
	r.bindings[normalizeEntity(b.Entity)] = b
	r.mu.Unlock()
	return nil
}

// Binding returns the binding of the given entity.
func (r *Registry) Binding(entity string) (*Binding, error) {
	r.mu.RLock()
	b := r.bindings[normalizeEntity(entity)]
	r.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("sqlgraph: entity %q not registered", entity)
	}
	return b, nil
}

// normalizeEntity strips a namespace qualifier and lowercases the name, so
// "pkg.User", "USER" and "user" address the same binding.
func normalizeEntity(entity string) string {
	if i := strings.LastIndexByte(entity, '.'); i >= 0 {
		entity = entity[i+1:]
	}
	return strings.ToLower(entity)
}

// Table implements querylanguage.Schema.
func (r *Registry) Table(entity string) (string, bool) {
	b, err := r.Binding(entity)
	if err != nil {
		return "", false
	}
	return b.Table, true
}

// Column implements querylanguage.Schema.
func (r *Registry) Column(entity, field string) (string, bool) {
	b, err := r.Binding(entity)
	if err != nil {
		return "", false
	}
	return b.Column(field)
}

// Relation implements querylanguage.Schema.
func (r *Registry) Relation(entity, name string) (querylanguage.RelationInfo, bool) {
	b, err := r.Binding(entity)
	if err != nil {
		return querylanguage.RelationInfo{}, false
	}
	rel, ok := b.Relations[name]
	if !ok {
		return querylanguage.RelationInfo{}, false
	}
	return querylanguage.RelationInfo{
		Name:         rel.Name,
		TargetEntity: rel.TargetEntity,
		TargetTable:  rel.TargetTable,
		OwnerColumn:  rel.OwnerColumn,
		TargetColumn: rel.TargetColumn,
		ToMany:       rel.ToMany,
	}, true
}

// KeyKind implements key.TypeRegistry.
func (r *Registry) KeyKind(entity, field string) (key.Kind, bool) {
	b, err := r.Binding(entity)
	if err != nil {
		return key.KindInvalid, false
	}
	kind, ok := b.Kinds[field]
	return kind, ok
}

var (
	_ querylanguage.Schema = (*Registry)(nil)
	_ key.TypeRegistry     = (*Registry)(nil)
)
