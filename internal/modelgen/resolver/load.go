package resolver

import (
	"context"
	"fmt"
	"go/token"

	"golang.org/x/tools/go/packages"
)

// loadMode asks for syntax and full type information. Dependencies are loaded
// too so that models embedded or referenced across package boundaries resolve
// from their own syntax whenever it is available; compiled-only dependencies
// still resolve through export data and the generated marker method.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports |
	packages.NeedDeps

// LoadSnapshot loads the packages matched by patterns (default "./...")
// rooted at dir into an analysis snapshot.
func LoadSnapshot(ctx context.Context, dir string, patterns ...string) (*Snapshot, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode:    loadMode,
		Dir:     dir,
		Fset:    fset,
		Context: ctx,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	snap := &Snapshot{Fset: fset, Sources: make(map[string][]byte)}
	for _, pkg := range pkgs {
		// Packages that failed to type-check still contribute their syntax;
		// the pipeline degrades to diagnostics instead of aborting.
		snap.Pkgs = append(snap.Pkgs, &Package{
			PkgPath: pkg.PkgPath,
			Files:   pkg.Syntax,
			Types:   pkg.Types,
			Info:    pkg.TypesInfo,
		})
	}
	return snap, nil
}
