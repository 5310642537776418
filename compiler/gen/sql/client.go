package sql

import (
	"github.com/dave/jennifer/jen"

	"github.com/syssam/strata/compiler/gen"
	"github.com/syssam/strata/key"
)

// kindConst returns the key package constant name of a kind.
func kindConst(k key.Kind) string {
	switch k {
	case key.KindBool:
		return "KindBool"
	case key.KindString:
		return "KindString"
	case key.KindInt8:
		return "KindInt8"
	case key.KindInt16:
		return "KindInt16"
	case key.KindInt32:
		return "KindInt32"
	case key.KindInt64:
		return "KindInt64"
	case key.KindUint8:
		return "KindUint8"
	case key.KindUint16:
		return "KindUint16"
	case key.KindUint32:
		return "KindUint32"
	case key.KindUint64:
		return "KindUint64"
	case key.KindFloat32:
		return "KindFloat32"
	case key.KindFloat64:
		return "KindFloat64"
	case key.KindUUID:
		return "KindUUID"
	}
	return "KindInvalid"
}

// bindingLiteral emits the runtime binding literal of one entity.
func (g *Generator) bindingLiteral(e *gen.Entity) jen.Code {
	entityPkg := g.entityImport(e)
	cols := make([]jen.Code, len(e.Fields))
	fieldsDict := jen.Dict{}
	kindsDict := jen.Dict{}
	nullableDict := jen.Dict{}
	for i, fd := range e.Fields {
		cols[i] = jen.Qual(entityPkg, fieldConst(fd.Name))
		fieldsDict[jen.Lit(fd.Name)] = jen.Qual(entityPkg, fieldConst(fd.Name))
		if kind, ok := g.graph.KeyKind(e.Name, fd.Name); ok {
			kindsDict[jen.Lit(fd.Name)] = jen.Qual(pkgKey, kindConst(kind))
		}
		if fd.Nullable {
			nullableDict[jen.Lit(fd.Name)] = jen.True()
		}
	}

	values := jen.Dict{
		jen.Id("Entity"):  jen.Lit(e.Name),
		jen.Id("Table"):   jen.Qual(entityPkg, "Table"),
		jen.Id("ID"):      jen.Qual(entityPkg, fieldConst(e.ID.Name)),
		jen.Id("IDField"): jen.Lit(e.ID.Name),
		jen.Id("Columns"): jen.Index().String().Values(cols...),
		jen.Id("Fields"):  jen.Map(jen.String()).String().Values(fieldsDict),
		jen.Id("Kinds"):   jen.Map(jen.String()).Qual(pkgKey, "Kind").Values(kindsDict),
	}
	if len(nullableDict) > 0 {
		values[jen.Id("Nullable")] = jen.Map(jen.String()).Bool().Values(nullableDict)
	}
	if len(e.Relations) > 0 {
		relDict := jen.Dict{}
		for _, r := range e.Relations {
			info, ok := g.graph.Relation(e.Name, r.Name)
			if !ok {
				continue
			}
			meta := jen.Dict{
				jen.Id("Name"):         jen.Lit(info.Name),
				jen.Id("TargetEntity"): jen.Lit(info.TargetEntity),
				jen.Id("TargetTable"):  jen.Lit(info.TargetTable),
				jen.Id("OwnerColumn"):  jen.Lit(info.OwnerColumn),
				jen.Id("TargetColumn"): jen.Lit(info.TargetColumn),
			}
			if info.ToMany {
				meta[jen.Id("ToMany")] = jen.True()
			}
			if r.Nullable {
				meta[jen.Id("FKNullable")] = jen.True()
			}
			relDict[jen.Qual(entityPkg, relationConst(r.Name))] = jen.Qual(pkgSQLGraph, "RelationMeta").Values(meta)
		}
		values[jen.Id("Relations")] = jen.Map(jen.String()).Qual(pkgSQLGraph, "RelationMeta").Values(relDict)
	}
	return jen.Op("&").Qual(pkgSQLGraph, "Binding").Values(values)
}

// clientFile emits the generated client: the registry wiring and one typed
// sub-client per entity.
func (g *Generator) clientFile() *jen.File {
	f := g.newFile(g.cfg.Package, g.rootPackage())

	clientFields := []jen.Code{jen.Id("reg").Op("*").Qual(pkgSQLGraph, "Registry")}
	for _, e := range g.graph.Entities {
		clientFields = append(clientFields,
			jen.Commentf("%s operates on %s entities.", e.Name, e.Name),
			jen.Id(e.Name).Op("*").Id(e.Name+"Client"),
		)
	}
	f.Comment("Client is the generated entry point to every entity operation.")
	f.Type().Id("Client").Struct(clientFields...)

	ctor := []jen.Code{
		jen.Id("reg").Op(":=").Qual(pkgSQLGraph, "NewRegistry").Call(jen.Id("drv")),
		jen.For(jen.List(jen.Id("_"), jen.Id("b")).Op(":=").Range().Id("bindings").Call()).Block(
			jen.If(
				jen.Id("err").Op(":=").Id("reg").Dot("Register").Call(jen.Id("b")),
				jen.Id("err").Op("!=").Nil(),
			).Block(jen.Return(jen.Nil(), jen.Id("err"))),
		),
		jen.Id("c").Op(":=").Op("&").Id("Client").Values(jen.Dict{jen.Id("reg"): jen.Id("reg")}),
	}
	for _, e := range g.graph.Entities {
		ctor = append(ctor, jen.Id("c").Dot(e.Name).Op("=").
			Op("&").Id(e.Name+"Client").Values(jen.Dict{jen.Id("reg"): jen.Id("reg")}))
	}
	ctor = append(ctor, jen.Return(jen.Id("c"), jen.Nil()))
	f.Comment("NewClient registers every entity binding on a fresh registry.")
	f.Func().Id("NewClient").
		Params(jen.Id("drv").Qual(pkgDialect, "Driver")).
		Params(jen.Op("*").Id("Client"), jen.Error()).
		Block(ctor...)

	f.Comment("Registry exposes the underlying runtime registry.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("Registry").
		Params().Op("*").Qual(pkgSQLGraph, "Registry").
		Block(jen.Return(jen.Id("c").Dot("reg")))

	f.Comment("Batch starts an ordered transactional batch.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("Batch").
		Params().Op("*").Qual(pkgSQLGraph, "Batch").
		Block(jen.Return(jen.Id("c").Dot("reg").Dot("Batch").Call()))

	binds := make([]jen.Code, len(g.graph.Entities))
	for i, e := range g.graph.Entities {
		binds[i] = g.bindingLiteral(e)
	}
	f.Func().Id("bindings").Params().Index().Op("*").Qual(pkgSQLGraph, "Binding").Block(
		jen.Return(jen.Index().Op("*").Qual(pkgSQLGraph, "Binding").Values(binds...)),
	)

	for _, e := range g.graph.Entities {
		g.entityClient(f, e)
	}
	return f
}

// entityClient emits one typed sub-client.
func (g *Generator) entityClient(f *jen.File, e *gen.Entity) {
	entityPkg := g.entityImport(e)
	name := e.Name + "Client"
	recv := func() *jen.Statement {
		return jen.Func().Params(jen.Id("c").Op("*").Id(name))
	}
	label := func() *jen.Statement { return jen.Qual(entityPkg, "Label") }
	pred := jen.Qual(g.predicateImport(), e.Name)

	f.Commentf("%s operates on %s entities.", name, e.Name)
	f.Type().Id(name).Struct(jen.Id("reg").Op("*").Qual(pkgSQLGraph, "Registry"))

	for _, op := range []struct{ method, doc string }{
		{"Query", "starts a query over"},
		{"Create", "starts a create of one"},
		{"Update", "starts an update of one"},
		{"UpdateMany", "starts a bulk update of"},
		{"Delete", "starts a delete of one"},
		{"DeleteMany", "starts a bulk delete of"},
		{"Upsert", "starts an upsert of one"},
	} {
		f.Commentf("%s %s %s.", op.method, op.doc, e.Name)
		recvStmt := recv().Id(op.method).Params().Op("*").Qual(pkgSQLGraph, op.method)
		f.Add(recvStmt.Block(
			jen.Return(jen.Id("c").Dot("reg").Dot(op.method).Call(label())),
		))
	}

	f.Commentf("CreateBulk persists several %s creates in one transaction, decoded.", e.Name)
	f.Add(recv().Id("CreateBulk").
		Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("creates").Op("...").Op("*").Qual(pkgSQLGraph, "Create"),
		).
		Params(jen.Index().Op("*").Id(e.Name), jen.Error()).
		Block(
			jen.List(jen.Id("rows"), jen.Id("err")).Op(":=").
				Id("c").Dot("reg").Dot("CreateBulk").Call(jen.Id("ctx"), jen.Id("creates").Op("...")),
			jen.If(jen.Id("err").Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Id("err"))),
			jen.Id("out").Op(":=").Make(jen.Index().Op("*").Id(e.Name), jen.Len(jen.Id("rows"))),
			jen.For(jen.List(jen.Id("i"), jen.Id("row")).Op(":=").Range().Id("rows")).Block(
				jen.Id("out").Index(jen.Id("i")).Op("=").Id("decode"+e.Name).Call(jen.Id("row")),
			),
			jen.Return(jen.Id("out"), jen.Nil()),
		))

	f.Commentf("SetRelation reconciles a to-many relation of one %s to an exact member set.", e.Name)
	f.Add(recv().Id("SetRelation").
		Params(jen.Id("relation").String()).
		Op("*").Qual(pkgSQLGraph, "SetRelation").
		Block(jen.Return(jen.Id("c").Dot("reg").Dot("SetRelation").Call(label(), jen.Id("relation")))))

	f.Commentf("Disconnect detaches members of a nullable to-many relation of one %s.", e.Name)
	f.Add(recv().Id("Disconnect").
		Params(jen.Id("relation").String()).
		Op("*").Qual(pkgSQLGraph, "Disconnect").
		Block(jen.Return(jen.Id("c").Dot("reg").Dot("Disconnect").Call(label(), jen.Id("relation")))))

	f.Commentf("All returns every %s matching the predicates, decoded.", e.Name)
	f.Add(recv().Id("All").
		Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("ps").Op("...").Add(pred),
		).
		Params(jen.Index().Op("*").Id(e.Name), jen.Error()).
		Block(
			jen.Id("q").Op(":=").Id("c").Dot("reg").Dot("Query").Call(label()),
			jen.For(jen.List(jen.Id("_"), jen.Id("p")).Op(":=").Range().Id("ps")).Block(
				jen.Id("q").Dot("Where").Call(jen.Qual(pkgQL, "Predicate").Call(jen.Id("p"))),
			),
			jen.List(jen.Id("rows"), jen.Id("err")).Op(":=").Id("q").Dot("All").Call(jen.Id("ctx")),
			jen.If(jen.Id("err").Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Id("err"))),
			jen.Id("out").Op(":=").Make(jen.Index().Op("*").Id(e.Name), jen.Len(jen.Id("rows"))),
			jen.For(jen.List(jen.Id("i"), jen.Id("row")).Op(":=").Range().Id("rows")).Block(
				jen.Id("out").Index(jen.Id("i")).Op("=").Id("decode"+e.Name).Call(jen.Id("row")),
			),
			jen.Return(jen.Id("out"), jen.Nil()),
		))

	f.Commentf("Only returns the single %s matching the predicates, decoded.", e.Name)
	f.Add(recv().Id("Only").
		Params(
			jen.Id("ctx").Qual("context", "Context"),
			jen.Id("ps").Op("...").Add(pred),
		).
		Params(jen.Op("*").Id(e.Name), jen.Error()).
		Block(
			jen.Id("q").Op(":=").Id("c").Dot("reg").Dot("Query").Call(label()),
			jen.For(jen.List(jen.Id("_"), jen.Id("p")).Op(":=").Range().Id("ps")).Block(
				jen.Id("q").Dot("Where").Call(jen.Qual(pkgQL, "Predicate").Call(jen.Id("p"))),
			),
			jen.List(jen.Id("row"), jen.Id("err")).Op(":=").Id("q").Dot("Only").Call(jen.Id("ctx")),
			jen.If(jen.Id("err").Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Id("err"))),
			jen.Return(jen.Id("decode"+e.Name).Call(jen.Id("row")), jen.Nil()),
		))
}
