package sql

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/strata/compiler/gen"
	"github.com/syssam/strata/schema/field"
)

func snakeName(s string) string  { return gen.Snake(s) }
func pascalName(s string) string { return gen.Pascal(s) }

// fieldConst returns the column constant name of a field (FieldViewCount).
func fieldConst(name string) string { return "Field" + pascalName(name) }

// relationConst returns the name constant of a relation (RelationPosts).
func relationConst(name string) string { return "Relation" + pascalName(name) }

// fieldVar returns the predicate surface name of a field. The primary key
// surface is always ID.
func fieldVar(e *gen.Entity, fd *gen.Field) string {
	if fd.PrimaryKey {
		return "ID"
	}
	return pascalName(fd.Name)
}

// surfaceCtor returns the typed surface constructor expression of a field,
// or nil when the field has no query surface.
func (g *Generator) surfaceCtor(e *gen.Entity, fd *gen.Field) jen.Code {
	pred := jen.Qual(g.predicateImport(), e.Name)
	col := jen.Id(fieldConst(fd.Name))
	if fd.PrimaryKey {
		return jen.Qual(pkgQL, "NewID").Index(pred).Call(col)
	}
	switch {
	case fd.Type == field.TypeString:
		return jen.Qual(pkgQL, "NewString").Index(pred).Call(col)
	case fd.Type == field.TypeBool:
		return jen.Qual(pkgQL, "NewBool").Index(pred).Call(col)
	case fd.Type.Numeric():
		return jen.Qual(pkgQL, "NewNumeric").Index(jen.List(pred, numericType(fd.Type))).Call(col)
	case fd.Type == field.TypeTime:
		return jen.Qual(pkgQL, "NewTime").Index(pred).Call(col)
	case fd.Type == field.TypeUUID:
		return jen.Qual(pkgQL, "NewUUID").Index(pred).Call(col)
	case fd.Type == field.TypeJSON:
		return jen.Qual(pkgQL, "NewJSON").Index(pred).Call(col)
	case fd.Type == field.TypeOther:
		return jen.Qual(pkgQL, "NewOther").Index(pred).Call(col)
	}
	return nil
}

// numericType returns the Go type expression of a numeric field type.
func numericType(t field.Type) *jen.Statement {
	switch t {
	case field.TypeInt8:
		return jen.Int8()
	case field.TypeInt16:
		return jen.Int16()
	case field.TypeInt32:
		return jen.Int32()
	case field.TypeInt64:
		return jen.Int64()
	case field.TypeUint8:
		return jen.Uint8()
	case field.TypeUint16:
		return jen.Uint16()
	case field.TypeUint32:
		return jen.Uint32()
	case field.TypeUint64:
		return jen.Uint64()
	case field.TypeFloat32:
		return jen.Float32()
	}
	return jen.Float64()
}

// goType returns the model struct type of a field. Nullable scalar fields
// become pointers; JSON and opaque fields already have a natural null.
func goType(fd *gen.Field) *jen.Statement {
	var base *jen.Statement
	switch fd.Type {
	case field.TypeBool:
		base = jen.Bool()
	case field.TypeString:
		base = jen.String()
	case field.TypeTime:
		base = jen.Qual("time", "Time")
	case field.TypeUUID:
		base = jen.Qual(pkgUUID, "UUID")
	case field.TypeJSON:
		return jen.Qual("encoding/json", "RawMessage")
	case field.TypeOther:
		return jen.Any()
	default:
		base = numericType(fd.Type)
	}
	if fd.Nullable {
		return jen.Op("*").Add(base)
	}
	return base
}

// modelFile emits the entity model struct and its row decoder in the
// generated root package.
func (g *Generator) modelFile(e *gen.Entity) *jen.File {
	f := g.newFile(g.cfg.Package, g.rootPackage())
	entityPkg := g.entityImport(e)

	fields := make([]jen.Code, len(e.Fields))
	for i, fd := range e.Fields {
		tag := snakeName(fd.Name)
		if fd.Nullable {
			tag += ",omitempty"
		}
		fields[i] = jen.Id(fieldVar(e, fd)).Add(goType(fd)).Tag(map[string]string{"json": tag})
	}
	f.Commentf("%s is the model entity of the %q table.", e.Name, e.Table)
	f.Type().Id(e.Name).Struct(fields...)

	stmts := []jen.Code{
		jen.Id("m").Op(":=").Op("&").Id(e.Name).Values(),
	}
	for _, fd := range e.Fields {
		stmts = append(stmts, decodeField(e, fd, entityPkg))
	}
	stmts = append(stmts, jen.Return(jen.Id("m")))

	f.Commentf("decode%s maps one runtime row onto the model struct.", e.Name)
	f.Func().Id("decode"+e.Name).
		Params(jen.Id("row").Qual(pkgSQLGraph, "Row")).
		Op("*").Id(e.Name).
		Block(stmts...)
	return f
}

// decodeField emits the decode statement of one field.
func decodeField(e *gen.Entity, fd *gen.Field, entityPkg string) jen.Code {
	target := jen.Id("m").Dot(fieldVar(e, fd))
	col := jen.Qual(entityPkg, fieldConst(fd.Name))

	assign := func(accessor string, convert func(v jen.Code) jen.Code) jen.Code {
		inner := jen.Add(target).Op("=").Add(convert(jen.Id("v")))
		if fd.Nullable {
			inner = jen.Id("val").Op(":=").Add(convert(jen.Id("v"))).Line().
				Add(target).Op("=").Op("&").Id("val")
		}
		stmt := jen.If(
			jen.List(jen.Id("v"), jen.Id("ok")).Op(":=").Id("row").Dot(accessor).Call(col),
			jen.Id("ok"),
		).Block(inner)
		if fd.Nullable {
			return jen.If(jen.Op("!").Id("row").Dot("Null").Call(col)).Block(stmt)
		}
		return stmt
	}
	ident := func(v jen.Code) jen.Code { return v }

	switch fd.Type {
	case field.TypeBool:
		return assign("Bool", ident)
	case field.TypeString:
		return assign("String", ident)
	case field.TypeTime:
		return assign("Time", ident)
	case field.TypeInt64:
		return assign("Int64", ident)
	case field.TypeInt8, field.TypeInt16, field.TypeInt32,
		field.TypeUint8, field.TypeUint16, field.TypeUint32, field.TypeUint64:
		return assign("Int64", func(v jen.Code) jen.Code {
			return numericType(fd.Type).Call(v)
		})
	case field.TypeFloat64:
		return assign("Float64", ident)
	case field.TypeFloat32:
		return assign("Float64", func(v jen.Code) jen.Code {
			return jen.Float32().Call(v)
		})
	case field.TypeJSON:
		return jen.If(
			jen.List(jen.Id("v"), jen.Id("ok")).Op(":=").Id("row").Dot("String").Call(col),
			jen.Id("ok"),
		).Block(
			jen.Add(target).Op("=").Qual("encoding/json", "RawMessage").Call(jen.Id("v")),
		)
	case field.TypeUUID:
		parse := jen.If(
			jen.List(jen.Id("u"), jen.Id("err")).Op(":=").Qual(pkgUUID, "Parse").Call(jen.Id("v")),
			jen.Id("err").Op("==").Nil(),
		)
		if fd.Nullable {
			parse.Block(jen.Add(target).Op("=").Op("&").Id("u"))
		} else {
			parse.Block(jen.Add(target).Op("=").Id("u"))
		}
		stmt := jen.If(
			jen.List(jen.Id("v"), jen.Id("ok")).Op(":=").Id("row").Dot("String").Call(col),
			jen.Id("ok"),
		).Block(parse)
		if fd.Nullable {
			return jen.If(jen.Op("!").Id("row").Dot("Null").Call(col)).Block(stmt)
		}
		return stmt
	default: // opaque fields keep the driver value.
		return jen.If(
			jen.List(jen.Id("v"), jen.Id("ok")).Op(":=").Id("row").Index(col),
			jen.Id("ok").Op("&&").Id("v").Op("!=").Nil(),
		).Block(jen.Add(target).Op("=").Id("v"))
	}
}
