package gen

import (
	"fmt"
	"strings"

	"github.com/syssam/strata/key"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/relation"
)

// Field is the resolved form of a field descriptor.
type Field struct {
	Name       string
	Column     string
	Type       field.Type
	Nullable   bool
	Unique     bool
	PrimaryKey bool
	Converter  field.ValueConverter
}

// Relation is the resolved form of a relation descriptor. Target resolution
// happens in the second compilation pass, after every entity is known.
type Relation struct {
	Name        string
	Kind        relation.Kind
	Owner       *Entity
	TargetName  string
	TargetTable string
	Target      *Entity // nil when the target is outside the compiled set.
	Column      string  // foreign key column.
	Type        field.Type
	Nullable    bool
}

// ToMany reports whether the relation points at a collection.
func (r *Relation) ToMany() bool { return r.Kind == relation.KindHasMany }

// OwnerFK reports whether the foreign key lives on the declaring entity.
func (r *Relation) OwnerFK() bool { return r.Kind == relation.KindBelongsTo }

// Entity is the resolved, immutable metadata of one entity.
type Entity struct {
	Name        string
	Table       string
	ID          *Field // the primary key field.
	Fields      []*Field
	Relations   []*Relation
	ForeignKeys []*Field // FK fields owned by this entity, from belongs_to relations.

	fields    map[string]*Field
	relations map[string]*Relation
}

// Field returns the entity field with the given name, or nil.
func (e *Entity) Field(name string) *Field { return e.fields[name] }

// FieldByColumn returns the entity field backed by the given column, or nil.
func (e *Entity) FieldByColumn(column string) *Field {
	for _, f := range e.Fields {
		if f.Column == column {
			return f
		}
	}
	return nil
}

// Relation returns the entity relation with the given name, or nil.
func (e *Entity) Relation(name string) *Relation { return e.relations[name] }

// Columns returns the backing column names in field order.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		cols[i] = f.Column
	}
	return cols
}

// NewEntity runs the first compilation pass on one descriptor: field type
// resolution and the structural checks that do not need the rest of the
// entity set. The returned entity still has unresolved relation targets.
func NewEntity(sc *schema.Entity) (*Entity, error) {
	if sc.Name == "" {
		return nil, NewSchemaError("", "", "missing entity name", nil)
	}
	if sc.Table == "" {
		return nil, NewSchemaError(sc.Name, "", "missing table name", nil)
	}
	e := &Entity{
		Name:      sc.Name,
		Table:     sc.Table,
		fields:    make(map[string]*Field, len(sc.Fields)),
		relations: make(map[string]*Relation, len(sc.Relations)),
	}
	for _, fd := range sc.Fields {
		if fd.Err != nil {
			return nil, NewSchemaError(sc.Name, fd.Name, "invalid field", fd.Err)
		}
		if !fd.Type.Valid() {
			return nil, NewSchemaError(sc.Name, fd.Name, fmt.Sprintf("unresolvable type %q", fd.TypeName), nil)
		}
		if _, ok := e.fields[fd.Name]; ok {
			return nil, NewSchemaError(sc.Name, fd.Name, "duplicate field", nil)
		}
		f := &Field{
			Name:       fd.Name,
			Column:     fd.Column(),
			Type:       fd.Type,
			Nullable:   fd.Nullable,
			Unique:     fd.Unique,
			PrimaryKey: fd.PrimaryKey,
			Converter:  fd.Converter,
		}
		e.Fields = append(e.Fields, f)
		e.fields[f.Name] = f
		if f.PrimaryKey {
			if e.ID != nil {
				return nil, NewSchemaError(sc.Name, fd.Name, "multiple primary keys", nil)
			}
			e.ID = f
		}
	}
	if e.ID == nil {
		return nil, NewSchemaError(sc.Name, "", "missing primary key", nil)
	}
	for _, rd := range sc.Relations {
		if rd.Err != nil {
			return nil, NewRelationError(sc.Name, rd.Target, rd.Name, "invalid relation", rd.Err)
		}
		if rd.Ref == "" {
			return nil, NewRelationError(sc.Name, rd.Target, rd.Name, "missing foreign key reference", nil)
		}
		if _, ok := e.relations[rd.Name]; ok {
			return nil, NewRelationError(sc.Name, rd.Target, rd.Name, "duplicate relation", nil)
		}
		r := &Relation{
			Name:       rd.Name,
			Kind:       rd.Kind,
			Owner:      e,
			TargetName: rd.Target,
			Column:     rd.Ref,
		}
		e.Relations = append(e.Relations, r)
		e.relations[r.Name] = r
	}
	return e, nil
}

// Graph is the resolved entity set. It serves the generator, the predicate
// compiler (querylanguage.Schema) and key coercion (key.TypeRegistry).
type Graph struct {
	Entities []*Entity

	byName map[string]*Entity // lowercased entity name.
}

// NewGraph runs both compilation passes over the descriptor set and returns
// the resolved graph. Pass two back-fills relation targets and foreign key
// types; forward and self references resolve because every entity has been
// through pass one first.
func NewGraph(schemas ...*schema.Entity) (*Graph, error) {
	g := &Graph{byName: make(map[string]*Entity, len(schemas))}
	for _, sc := range schemas {
		e, err := NewEntity(sc)
		if err != nil {
			return nil, err
		}
		name := strings.ToLower(e.Name)
		if _, ok := g.byName[name]; ok {
			return nil, NewSchemaError(e.Name, "", "duplicate entity", nil)
		}
		g.Entities = append(g.Entities, e)
		g.byName[name] = e
	}
	for _, e := range g.Entities {
		for _, r := range e.Relations {
			if err := g.resolve(r); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// resolve back-fills one relation: target table and the foreign key field.
// Targets outside the compiled set fall back to the conventional table name
// and keep their FK type unresolved.
func (g *Graph) resolve(r *Relation) error {
	r.Target = g.byName[strings.ToLower(r.TargetName)]
	if r.Target != nil {
		r.TargetTable = r.Target.Table
	} else {
		r.TargetTable = tableOf(r.TargetName)
	}
	fkOwner := r.Target
	if r.OwnerFK() {
		fkOwner = r.Owner
	}
	if fkOwner == nil {
		return nil
	}
	fk := fkOwner.FieldByColumn(r.Column)
	if fk == nil {
		return NewRelationError(r.Owner.Name, r.TargetName, r.Name,
			fmt.Sprintf("foreign key column %q not found on %s", r.Column, fkOwner.Name), nil)
	}
	r.Type = fk.Type
	r.Nullable = fk.Nullable
	if r.OwnerFK() {
		r.Owner.ForeignKeys = append(r.Owner.ForeignKeys, fk)
	}
	return nil
}

// lookup resolves an entity by name, tolerating namespace-qualified
// (pkg.User) and case-varied spellings.
func (g *Graph) lookup(entity string) *Entity {
	if i := strings.LastIndexByte(entity, '.'); i >= 0 {
		entity = entity[i+1:]
	}
	return g.byName[strings.ToLower(entity)]
}

// Entity returns the resolved entity with the given name.
func (g *Graph) Entity(name string) (*Entity, bool) {
	e := g.lookup(name)
	return e, e != nil
}

// Table implements querylanguage.Schema.
func (g *Graph) Table(entity string) (string, bool) {
	e := g.lookup(entity)
	if e == nil {
		return "", false
	}
	return e.Table, true
}

// Column implements querylanguage.Schema.
func (g *Graph) Column(entity, field string) (string, bool) {
	e := g.lookup(entity)
	if e == nil {
		return "", false
	}
	f := e.Field(field)
	if f == nil {
		return "", false
	}
	return f.Column, true
}

// Relation implements querylanguage.Schema. The join columns follow the
// foreign key side: belongs_to joins owner.fk = target.pk, the has kinds
// join owner.pk = target.fk.
func (g *Graph) Relation(entity, name string) (querylanguage.RelationInfo, bool) {
	e := g.lookup(entity)
	if e == nil {
		return querylanguage.RelationInfo{}, false
	}
	r := e.Relation(name)
	if r == nil {
		return querylanguage.RelationInfo{}, false
	}
	info := querylanguage.RelationInfo{
		Name:         r.Name,
		TargetEntity: r.TargetName,
		TargetTable:  r.TargetTable,
		ToMany:       r.ToMany(),
	}
	if r.OwnerFK() {
		info.OwnerColumn = r.Column
		if r.Target != nil {
			info.TargetColumn = r.Target.ID.Column
		} else {
			info.TargetColumn = "id"
		}
	} else {
		info.OwnerColumn = e.ID.Column
		info.TargetColumn = r.Column
	}
	return info, true
}

// KeyKind implements key.TypeRegistry.
func (g *Graph) KeyKind(entity, field string) (key.Kind, bool) {
	e := g.lookup(entity)
	if e == nil {
		return key.KindInvalid, false
	}
	f := e.Field(field)
	if f == nil {
		return key.KindInvalid, false
	}
	return keyKind(f.Type)
}

var (
	_ querylanguage.Schema = (*Graph)(nil)
	_ key.TypeRegistry     = (*Graph)(nil)
)

// keyKind maps a field type to the key kind that can address it.
// Time, JSON and opaque fields are not usable as keys.
func keyKind(t field.Type) (key.Kind, bool) {
	switch t {
	case field.TypeBool:
		return key.KindBool, true
	case field.TypeString:
		return key.KindString, true
	case field.TypeInt8:
		return key.KindInt8, true
	case field.TypeInt16:
		return key.KindInt16, true
	case field.TypeInt32:
		return key.KindInt32, true
	case field.TypeInt64:
		return key.KindInt64, true
	case field.TypeUint8:
		return key.KindUint8, true
	case field.TypeUint16:
		return key.KindUint16, true
	case field.TypeUint32:
		return key.KindUint32, true
	case field.TypeUint64:
		return key.KindUint64, true
	case field.TypeFloat32:
		return key.KindFloat32, true
	case field.TypeFloat64:
		return key.KindFloat64, true
	case field.TypeUUID:
		return key.KindUUID, true
	}
	return key.KindInvalid, false
}
