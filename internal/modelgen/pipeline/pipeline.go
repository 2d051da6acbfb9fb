// Package pipeline composes the modelgen stages into one pass: resolve
// directives, build the reference graph, verify generic bindings, run the
// diagnostics engine, emit generated units. A pass never aborts on
// diagnostics; nodes with structural errors are skipped individually and
// everything else still emits.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/reactiveui/modelgen/internal/modelgen/analysis"
	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/emit"
	"github.com/reactiveui/modelgen/internal/modelgen/generics"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// Pass is the complete output of one pipeline run.
type Pass struct {
	Snapshot    *resolver.Snapshot
	Result      *resolver.Result
	Graph       *graph.Graph
	Diagnostics []domain.Diagnostic
	Units       []domain.GeneratedUnit
}

// Run executes a full pass over the snapshot.
func Run(ctx context.Context, snap *resolver.Snapshot, emitter *emit.Emitter) (*Pass, error) {
	if emitter == nil {
		emitter = emit.New()
	}
	res, err := resolver.New(snap).Resolve(ctx)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(ctx, res)
	if err != nil {
		return nil, err
	}
	pass := &Pass{Snapshot: snap, Result: res, Graph: g}

	diags, err := generics.Check(ctx, g)
	if err != nil {
		return nil, err
	}
	pass.Diagnostics = append(pass.Diagnostics, diags...)

	diags, err = analysis.New(g, res).Run(ctx)
	if err != nil {
		return nil, err
	}
	pass.Diagnostics = append(pass.Diagnostics, diags...)

	for _, node := range res.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if node.External || analysis.Blocked(g, node.ID) {
			continue
		}
		units, diags := emitter.Emit(node, g)
		pass.Units = append(pass.Units, units...)
		pass.Diagnostics = append(pass.Diagnostics, diags...)
	}
	return pass, nil
}

// HasErrors reports whether any diagnostic is error severity.
func (p *Pass) HasErrors() bool {
	for _, d := range p.Diagnostics {
		if d.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// ByCode returns the diagnostics with the given code, in engine order.
func (p *Pass) ByCode(code string) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, d := range p.Diagnostics {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// UnitPath returns the on-disk destination for a generated unit: the unit
// lands next to the model's declaring source file.
func (p *Pass) UnitPath(unit domain.GeneratedUnit) string {
	node := p.Result.ByID[unit.ModelID]
	if node == nil || node.Pos.Filename == "" {
		return unit.FileName
	}
	return filepath.Join(filepath.Dir(node.Pos.Filename), unit.FileName)
}

// Write flushes every generated unit to disk, skipping files whose current
// content already matches the unit hash. It returns the paths actually
// written.
func (p *Pass) Write() ([]string, error) {
	var written []string
	for _, unit := range p.Units {
		path := p.UnitPath(unit)
		if existing, err := os.ReadFile(path); err == nil {
			sum := sha256.Sum256(existing)
			if hex.EncodeToString(sum[:]) == unit.Hash {
				continue
			}
		}
		if err := os.WriteFile(path, []byte(unit.Content), 0o644); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
