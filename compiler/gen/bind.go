package gen

import (
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/key"
	"github.com/syssam/strata/schema/field"
)

// Binding converts one resolved entity to its runtime form. Fields whose
// type has no key kind (timestamps, JSON, opaque values) are bound without
// one; they cannot address rows but still load and store.
func (g *Graph) Binding(e *Entity) *sqlgraph.Binding {
	b := &sqlgraph.Binding{
		Entity:   e.Name,
		Table:    e.Table,
		ID:       e.ID.Column,
		IDField:  e.ID.Name,
		Columns:  e.Columns(),
		Fields:   make(map[string]string, len(e.Fields)),
		Kinds:    make(map[string]key.Kind, len(e.Fields)),
		Nullable: make(map[string]bool),
	}
	for _, f := range e.Fields {
		b.Fields[f.Name] = f.Column
		if kind, ok := keyKind(f.Type); ok {
			b.Kinds[f.Name] = kind
		}
		if f.Nullable {
			b.Nullable[f.Name] = true
		}
		if f.Type == field.TypeOther && f.Converter != nil {
			if b.Converters == nil {
				b.Converters = make(map[string]field.ValueConverter)
			}
			b.Converters[f.Name] = f.Converter
		}
	}
	if len(e.Relations) > 0 {
		b.Relations = make(map[string]sqlgraph.RelationMeta, len(e.Relations))
		for _, r := range e.Relations {
			info, ok := g.Relation(e.Name, r.Name)
			if !ok {
				continue
			}
			b.Relations[r.Name] = sqlgraph.RelationMeta{
				Name:         info.Name,
				TargetEntity: info.TargetEntity,
				TargetTable:  info.TargetTable,
				OwnerColumn:  info.OwnerColumn,
				TargetColumn: info.TargetColumn,
				ToMany:       info.ToMany,
				FKNullable:   r.Nullable,
			}
		}
	}
	return b
}

// NewRegistry builds a runtime registry for the whole graph on the given
// driver. It is the dynamic counterpart of the generated client: schemas
// compiled at runtime become queryable without code generation.
func (g *Graph) NewRegistry(drv dialect.Driver) (*sqlgraph.Registry, error) {
	reg := sqlgraph.NewRegistry(drv)
	for _, e := range g.Entities {
		if err := reg.Register(g.Binding(e)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
