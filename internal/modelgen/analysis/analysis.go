// Package analysis runs the graph diagnostics engine: model-reference cycle
// detection, trigger-chain cycle detection, scope consistency and usage
// checks. Every finding is an advisory diagnostic; the engine never aborts
// the pass, and emission keeps running best-effort on nodes that still
// resolve.
package analysis

import (
	"context"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// Analyzer runs the diagnostic checks over a built graph.
type Analyzer struct {
	graph *graph.Graph
	res   *resolver.Result
}

// New returns an analyzer over the graph and its resolver output.
func New(g *graph.Graph, res *resolver.Result) *Analyzer {
	return &Analyzer{graph: g, res: res}
}

// Run executes every check in a fixed order and returns the combined
// diagnostics. Results are reproducible regardless of symbol-table traversal
// order: each check walks nodes in discovery order and edges in declaration
// order.
func (a *Analyzer) Run(ctx context.Context) ([]domain.Diagnostic, error) {
	var diags []domain.Diagnostic

	checks := []func(context.Context) ([]domain.Diagnostic, error){
		a.unresolvedEdges,
		a.referenceCycles,
		a.triggerCycles,
		a.scopeConsistency,
		a.usage,
	}
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := check(ctx)
		if err != nil {
			return nil, err
		}
		diags = append(diags, ds...)
	}
	return diags, nil
}

// unresolvedEdges reports references whose target never resolved. These are
// the structural errors that suppress emission for the referencing node.
func (a *Analyzer) unresolvedEdges(ctx context.Context) ([]domain.Diagnostic, error) {
	var diags []domain.Diagnostic
	for _, edge := range a.graph.Edges() {
		if edge.State != domain.EdgeUnresolvedTarget {
			continue
		}
		diags = append(diags, domain.NewDiagnostic(
			domain.CodeUnresolvedRef, domain.SeverityError, edge.Pos,
			domain.UnresolvedRefDetail{Model: edge.From, RefName: edge.RefName, Reason: edge.StateDetail},
			edge.RefName, edge.From, edge.StateDetail,
		))
	}
	return diags, nil
}

// Blocked reports whether emission must be suppressed for the node: only
// truly unresolvable structural errors block, and only for that node.
func Blocked(g *graph.Graph, id string) bool {
	for _, edge := range g.EdgesFrom(id) {
		if edge.State == domain.EdgeUnresolvedTarget {
			return true
		}
	}
	return false
}
