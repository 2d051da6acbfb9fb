// Package testutil builds analysis snapshots from inline source fixtures so
// pipeline stages can be tested without loading real packages from disk.
package testutil

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// Builder accumulates type-checked fixture packages into one snapshot.
// Packages added earlier are importable by packages added later.
type Builder struct {
	Fset    *token.FileSet
	pkgs    map[string]*types.Package
	snap    *resolver.Snapshot
	lenient bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	fset := token.NewFileSet()
	return &Builder{
		Fset: fset,
		pkgs: make(map[string]*types.Package),
		snap: &resolver.Snapshot{Fset: fset, Sources: make(map[string][]byte)},
	}
}

// Lenient makes subsequent Add calls tolerate type errors, for fixtures that
// intentionally reference unknown types.
func (b *Builder) Lenient() *Builder {
	b.lenient = true
	return b
}

// Add parses and type-checks files (filename -> source) as one package and
// appends it to the snapshot.
func (b *Builder) Add(t *testing.T, pkgPath string, files map[string]string) *resolver.Package {
	t.Helper()

	var parsed []*ast.File
	for name, src := range files {
		f, err := parser.ParseFile(b.Fset, name, src, parser.ParseComments)
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		parsed = append(parsed, f)
		b.snap.Sources[name] = []byte(src)
	}

	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Instances:  make(map[*ast.Ident]types.Instance),
	}
	cfg := types.Config{Importer: b}
	if b.lenient {
		cfg.Error = func(error) {}
	}
	tpkg, err := cfg.Check(pkgPath, b.Fset, parsed, info)
	if err != nil && !b.lenient {
		t.Fatalf("typecheck %s: %v", pkgPath, err)
	}
	b.pkgs[pkgPath] = tpkg

	pkg := &resolver.Package{PkgPath: pkgPath, Files: parsed, Types: tpkg, Info: info}
	b.snap.Pkgs = append(b.snap.Pkgs, pkg)
	return pkg
}

// Import resolves previously added fixture packages, falling back to the
// compiler's importer for the standard library.
func (b *Builder) Import(path string) (*types.Package, error) {
	if p, ok := b.pkgs[path]; ok {
		return p, nil
	}
	return importer.Default().Import(path)
}

// Snapshot returns the accumulated snapshot.
func (b *Builder) Snapshot() *resolver.Snapshot { return b.snap }
