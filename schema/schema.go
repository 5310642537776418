// Package schema holds the declarative entity descriptors consumed by the
// strata compiler. An Entity names its backing table and lists its field and
// relation descriptors; the compiler turns a set of entities into resolved,
// immutable metadata.
package schema

import (
	"github.com/syssam/strata/schema/field"
	"github.com/syssam/strata/schema/relation"
)

// Entity is the declarative description of one entity.
type Entity struct {
	// Name is the entity name (PascalCase by convention).
	Name string
	// Table is the backing table name. Required; the compiler rejects
	// entities without one.
	Table string
	// Fields are the entity attributes.
	Fields []*field.Descriptor
	// Relations are the entity relationships.
	Relations []*relation.Descriptor
}

// New returns an Entity with the given name and table.
func New(name, table string) *Entity {
	return &Entity{Name: name, Table: table}
}

// AddFields appends field descriptors built by the field package.
func (e *Entity) AddFields(fields ...*field.Builder) *Entity {
	for _, f := range fields {
		e.Fields = append(e.Fields, f.Descriptor())
	}
	return e
}

// AddRelations appends relation descriptors built by the relation package.
func (e *Entity) AddRelations(relations ...*relation.Builder) *Entity {
	for _, r := range relations {
		e.Relations = append(e.Relations, r.Descriptor())
	}
	return e
}
