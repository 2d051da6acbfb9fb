package analysis

import (
	"context"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// usage flags declared references and triggers that contribute no observable
// effect. Contributions to generated output count as use even without any
// explicit code reference: a triggers-only reference, a reference whose
// target surfaces triggers through forwarding, and a trigger that reacts to a
// real property are all "used" declaratively.
func (a *Analyzer) usage(ctx context.Context) ([]domain.Diagnostic, error) {
	var diags []domain.Diagnostic

	for _, edge := range a.graph.Edges() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if edge.Used || edge.TriggersOnly || edge.State == domain.EdgeUnresolvedTarget {
			continue
		}
		if target, ok := a.graph.Node(edge.To); ok && surfacesTriggers(target) {
			continue
		}
		diags = append(diags, domain.NewDiagnostic(
			domain.CodeUnusedReference, domain.SeverityWarning, edge.Pos,
			domain.UnusedRefDetail{
				Model:      edge.From,
				RefName:    edge.RefName,
				Site:       edge.Site,
				ParamIndex: edge.ParamIndex,
			},
			edge.RefName, edge.From,
		))
	}

	for _, node := range a.graph.Nodes() {
		props := make(map[string]bool)
		for _, m := range node.Members {
			if m.Kind == domain.MemberProperty {
				props[m.Name] = true
			}
		}
		for _, m := range node.Members {
			switch m.Kind {
			case domain.MemberTrigger, domain.MemberCallbackTrigger, domain.MemberComponentTrigger:
				if !props[m.On] {
					diags = append(diags, domain.NewDiagnostic(
						domain.CodeUnusedTrigger, domain.SeverityWarning, m.Pos,
						domain.UnusedTriggerDetail{Model: node.ID, Member: m.Name},
						m.Name, node.ID,
					))
				}
			}
		}
	}
	return diags, nil
}

// surfacesTriggers reports whether referencing the model forwards triggers or
// hooks into the referencing side's generated code.
func surfacesTriggers(node *domain.ModelNode) bool {
	for _, m := range node.Members {
		switch m.Kind {
		case domain.MemberTrigger, domain.MemberCallbackTrigger, domain.MemberComponentTrigger:
			return true
		}
	}
	return false
}
