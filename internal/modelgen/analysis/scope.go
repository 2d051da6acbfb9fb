package analysis

import (
	"context"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// scopeConsistency verifies lifetime rules over the graph. The effective
// required scope of a node is the narrowest lifetime among itself and every
// node reachable through its outgoing edges; narrowest-wins also resolves the
// case of a node reachable via multiple paths. A node declared broader than a
// reachable requirement would let a narrower-lived model outlive its
// lifetime, so it gets a violation carrying the computed requirement.
// Separately, a non-singleton model consumed by more than one distinct model
// is flagged: shared consumption requires a singleton.
func (a *Analyzer) scopeConsistency(ctx context.Context) ([]domain.Diagnostic, error) {
	required := make(map[string]domain.Scope)
	visiting := make(map[string]bool)

	var compute func(id string) domain.Scope
	compute = func(id string) domain.Scope {
		if s, ok := required[id]; ok {
			return s
		}
		node, ok := a.graph.Node(id)
		if !ok {
			return domain.ScopeSingleton
		}
		if visiting[id] {
			// Reference cycle; the cycle check reports it. Treat the
			// re-entered node as contributing its own declared scope.
			return node.Scope
		}
		visiting[id] = true
		s := node.Scope
		for _, edge := range a.graph.EdgesFrom(id) {
			if _, ok := a.graph.Node(edge.To); !ok {
				continue
			}
			s = domain.Narrowest(s, compute(edge.To))
		}
		delete(visiting, id)
		required[id] = s
		return s
	}

	var diags []domain.Diagnostic
	for _, node := range a.graph.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := compute(node.ID)
		if req.NarrowerThan(node.Scope) {
			via := ""
			for _, edge := range a.graph.EdgesFrom(node.ID) {
				if compute(edge.To) == req {
					via = edge.To
					break
				}
			}
			diags = append(diags, domain.NewDiagnostic(
				domain.CodeScopeViolation, domain.SeverityError, node.Pos,
				domain.ScopeDetail{Model: node.ID, Declared: node.Scope, Required: req, Via: via},
				node.ID, node.Scope, via, req,
			))
		}
	}

	for _, node := range a.graph.Nodes() {
		if node.Scope == domain.ScopeSingleton {
			continue
		}
		consumers := distinctConsumers(a, node.ID)
		if len(consumers) > 1 {
			diags = append(diags, domain.NewDiagnostic(
				domain.CodeSharedNotSingle, domain.SeverityWarning, node.Pos,
				domain.SharedScopeDetail{Model: node.ID, Declared: node.Scope, Consumers: consumers},
				node.ID, node.Scope, len(consumers),
			))
		}
	}
	return diags, nil
}

func distinctConsumers(a *Analyzer, id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, edge := range a.graph.EdgesTo(id) {
		if edge.From == id || seen[edge.From] {
			continue
		}
		seen[edge.From] = true
		out = append(out, edge.From)
	}
	return out
}
