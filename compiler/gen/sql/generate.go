// Package sql generates the typed query surfaces for a resolved entity
// graph: per-entity constants and predicate packages, model structs with
// row decoding, and a client wiring everything to the sqlgraph runtime.
// Files are rendered with jennifer and formatted with x/tools imports.
package sql

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/strata/compiler/gen"
)

// Import paths of the runtime packages referenced by generated code.
const (
	pkgDialect  = "github.com/syssam/strata/dialect"
	pkgSQLGraph = "github.com/syssam/strata/dialect/sql/sqlgraph"
	pkgKey      = "github.com/syssam/strata/key"
	pkgQL       = "github.com/syssam/strata/querylanguage"
	pkgUUID     = "github.com/google/uuid"
)

// Generator renders one graph into one target directory.
type Generator struct {
	cfg   *gen.Config
	graph *gen.Graph
}

// Generate writes the generated packages for the graph under cfg.Target.
// Entity packages render in parallel; the shared predicate package and the
// client render alongside them.
func Generate(graph *gen.Graph, cfg *gen.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	g := &Generator{cfg: cfg, graph: graph}
	var grp errgroup.Group
	for _, e := range graph.Entities {
		grp.Go(func() error {
			if err := g.writeFile(g.entityDir(e), g.entityPackage(e)+".go", g.constantsFile(e)); err != nil {
				return err
			}
			return g.writeFile(g.entityDir(e), "where.go", g.whereFile(e))
		})
	}
	grp.Go(func() error {
		return g.writeFile(filepath.Join(cfg.Target, "predicate"), "predicate.go", g.predicateFile())
	})
	grp.Go(func() error {
		for _, e := range graph.Entities {
			if err := g.writeFile(cfg.Target, snakeName(e.Name)+".go", g.modelFile(e)); err != nil {
				return err
			}
		}
		return g.writeFile(cfg.Target, "client.go", g.clientFile())
	})
	return grp.Wait()
}

// rootPackage returns the package name of the generated root directory.
func (g *Generator) rootPackage() string {
	return path.Base(g.cfg.Package)
}

// entityPackage returns the package (and directory) name of one entity.
func (g *Generator) entityPackage(e *gen.Entity) string {
	return strings.ToLower(e.Name)
}

func (g *Generator) entityDir(e *gen.Entity) string {
	return filepath.Join(g.cfg.Target, g.entityPackage(e))
}

// entityImport returns the import path of one entity package.
func (g *Generator) entityImport(e *gen.Entity) string {
	return g.cfg.Package + "/" + g.entityPackage(e)
}

// predicateImport returns the import path of the shared predicate package.
func (g *Generator) predicateImport() string {
	return g.cfg.Package + "/predicate"
}

// newFile returns a jennifer file for the given package with the configured
// header.
func (g *Generator) newFile(pkgPath, pkgName string) *jen.File {
	f := jen.NewFilePathName(pkgPath, pkgName)
	header := g.cfg.Header
	if header == "" {
		header = "Code generated by strata, DO NOT EDIT."
	}
	f.HeaderComment(header)
	return f
}

// writeFile renders, formats and writes one generated file.
func (g *Generator) writeFile(dir, name string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return gen.NewGenerationError("render", name, "cannot render file", err)
	}
	target := filepath.Join(dir, name)
	src, err := imports.Process(target, buf.Bytes(), nil)
	if err != nil {
		return gen.NewGenerationError("format", target, "generated code does not format", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gen.NewGenerationError("write", dir, "cannot create target directory", err)
	}
	if err := os.WriteFile(target, src, 0o644); err != nil {
		return gen.NewGenerationError("write", target, "cannot write file", err)
	}
	return nil
}

// constantsFile emits the entity constants package file: label, table,
// column constants and the column list.
func (g *Generator) constantsFile(e *gen.Entity) *jen.File {
	f := g.newFile(g.entityImport(e), g.entityPackage(e))

	consts := []jen.Code{
		jen.Comment("Label holds the registry name of the entity."),
		jen.Id("Label").Op("=").Lit(strings.ToLower(e.Name)),
		jen.Comment("Table holds the table name of the entity."),
		jen.Id("Table").Op("=").Lit(e.Table),
	}
	for _, fd := range e.Fields {
		consts = append(consts,
			jen.Commentf("%s holds the column of the %q field.", fieldConst(fd.Name), fd.Name),
			jen.Id(fieldConst(fd.Name)).Op("=").Lit(fd.Column),
		)
	}
	for _, r := range e.Relations {
		consts = append(consts,
			jen.Commentf("%s holds the name of the %q relation.", relationConst(r.Name), r.Name),
			jen.Id(relationConst(r.Name)).Op("=").Lit(r.Name),
		)
	}
	f.Const().Defs(consts...)

	cols := make([]jen.Code, len(e.Fields))
	for i, fd := range e.Fields {
		cols[i] = jen.Id(fieldConst(fd.Name))
	}
	f.Comment("Columns holds all table columns of the entity.")
	f.Var().Id("Columns").Op("=").Index().String().Values(cols...)

	f.Comment("ValidColumn reports whether the column name belongs to the entity.")
	f.Func().Id("ValidColumn").Params(jen.Id("column").String()).Bool().Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("c")).Op(":=").Range().Id("Columns")).Block(
			jen.If(jen.Id("column").Op("==").Id("c")).Block(jen.Return(jen.True())),
		),
		jen.Return(jen.False()),
	)
	return f
}

// whereFile emits the typed predicate surface of one entity.
func (g *Generator) whereFile(e *gen.Entity) *jen.File {
	f := g.newFile(g.entityImport(e), g.entityPackage(e))
	pred := func() *jen.Statement { return jen.Qual(g.predicateImport(), e.Name) }

	vars := make([]jen.Code, 0, len(e.Fields)+len(e.Relations))
	for _, fd := range e.Fields {
		ctor := g.surfaceCtor(e, fd)
		if ctor == nil {
			continue
		}
		vars = append(vars,
			jen.Commentf("%s filters on the %q field.", fieldVar(e, fd), fd.Name),
			jen.Id(fieldVar(e, fd)).Op("=").Add(ctor),
		)
	}
	for _, r := range e.Relations {
		child := jen.Qual(pkgQL, "Predicate")
		if r.Target != nil {
			child = jen.Qual(g.predicateImport(), r.Target.Name)
		}
		vars = append(vars,
			jen.Commentf("%s quantifies over the %q relation.", pascalName(r.Name), r.Name),
			jen.Id(pascalName(r.Name)).Op("=").Qual(pkgQL, "NewRelation").
				Index(jen.List(pred(), child)).Call(jen.Id(relationConst(r.Name))),
		)
	}
	f.Var().Defs(vars...)

	f.Comment("And groups predicates with the AND operator between them.")
	f.Func().Id("And").Params(jen.Id("ps").Op("...").Add(pred())).Add(pred()).Block(
		jen.Return(jen.Qual(pkgQL, "And").Call(jen.Id("ps").Op("..."))),
	)
	f.Comment("Or groups predicates with the OR operator between them.")
	f.Func().Id("Or").Params(jen.Id("ps").Op("...").Add(pred())).Add(pred()).Block(
		jen.Return(jen.Qual(pkgQL, "Or").Call(jen.Id("ps").Op("..."))),
	)
	f.Comment("Not negates a predicate.")
	f.Func().Id("Not").Params(jen.Id("p").Add(pred())).Add(pred()).Block(
		jen.Return(jen.Qual(pkgQL, "Not").Call(jen.Id("p"))),
	)
	return f
}

// predicateFile emits the shared predicate package: one defined predicate
// type per entity over the common thunk shape.
func (g *Generator) predicateFile() *jen.File {
	f := g.newFile(g.predicateImport(), "predicate")
	for _, e := range g.graph.Entities {
		f.Commentf("%s is the predicate type of the %s entity.", e.Name, e.Name)
		f.Type().Id(e.Name).Func().Params().Qual(pkgQL, "Expr")
	}
	return f
}
