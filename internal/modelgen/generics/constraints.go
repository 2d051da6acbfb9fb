// Package generics verifies type-argument bindings on reference edges whose
// target model is generic: arity, constraint satisfaction and open-generic
// usage. Each failing edge is classified into exactly one mismatch kind and
// produces one targeted diagnostic; the edge itself keeps the failing state
// so emission can skip just that binding.
package generics

import (
	"context"
	"go/types"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
)

// Check verifies every edge against its target's declared type parameters.
// It mutates edge states in place and returns the mismatch diagnostics.
func Check(ctx context.Context, g *graph.Graph) ([]domain.Diagnostic, error) {
	var diags []domain.Diagnostic
	for _, edge := range g.Edges() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, ok := g.Node(edge.To)
		if !ok || len(target.TypeParams) == 0 {
			continue
		}
		from, _ := g.Node(edge.From)
		if d, bad := checkEdge(edge, from, target); bad {
			diags = append(diags, d)
		}
	}
	return diags, nil
}

func checkEdge(edge *domain.ReferenceEdge, from, target *domain.ModelNode) (domain.Diagnostic, bool) {
	fromID := edge.From
	if from != nil {
		fromID = from.ID
	}

	if edge.State == domain.EdgeOpenGenericMisuse {
		return domain.NewDiagnostic(
			domain.CodeOpenGenericMisuse, domain.SeverityError, edge.Pos,
			domain.OpenGenericDetail{From: fromID, To: target.ID},
			fromID, target.ID,
		), true
	}
	if edge.State == domain.EdgeUnresolvedTarget {
		return domain.Diagnostic{}, false
	}

	want := len(target.TypeParams)
	got := len(edge.Bindings)
	if got != want {
		edge.State = domain.EdgeArityMismatch
		edge.StateDetail = domain.Format(domain.CodeArityMismatch, fromID, target.ID, got, want)
		missing := make([]domain.TypeParamInfo, 0, want-got)
		if got < want {
			missing = append(missing, target.TypeParams[got:]...)
		}
		return domain.NewDiagnostic(
			domain.CodeArityMismatch, domain.SeverityError, edge.Pos,
			domain.ArityDetail{From: fromID, To: target.ID, Want: want, Got: got, Missing: missing},
			fromID, target.ID, got, want,
		), true
	}

	for i, binding := range edge.Bindings {
		param := target.TypeParams[i]
		ok, constraint := satisfies(binding.Arg, param)
		if ok {
			continue
		}
		edge.State = domain.EdgeConstraintMismatch
		edge.StateDetail = "type argument " + binding.ArgText + " does not satisfy " + constraint
		return domain.NewDiagnostic(
			domain.CodeConstraintBroken, domain.SeverityError, edge.Pos,
			domain.ConstraintDetail{
				From:       fromID,
				To:         target.ID,
				Param:      param.Name,
				Arg:        binding.ArgText,
				Constraint: constraint,
			},
			binding.ArgText, param.Name, target.ID, constraint,
		), true
	}

	edge.State = domain.EdgeResolved
	edge.StateDetail = ""
	return domain.Diagnostic{}, false
}

// satisfies reports whether arg satisfies the parameter's constraint and
// returns the constraint's display text. A nil argument (the referencing
// package failed to type-check) is treated as satisfied; the missing
// information already surfaced as its own diagnostic.
func satisfies(arg types.Type, param domain.TypeParamInfo) (ok bool, constraint string) {
	constraint = param.ConstraintText
	if constraint == "" && param.TP != nil {
		constraint = types.TypeString(param.TP.Constraint(), nil)
	}
	if arg == nil || param.TP == nil {
		return true, constraint
	}
	iface := constraintInterface(param.TP)
	if iface == nil {
		return true, constraint
	}
	if iface.IsComparable() && iface.NumMethods() == 0 && iface.NumEmbeddeds() <= 1 {
		// A bare comparable constraint.
		if constraint == "comparable" {
			return comparableType(arg), constraint
		}
	}
	return safeSatisfies(arg, iface), constraint
}

func constraintInterface(tp *types.TypeParam) *types.Interface {
	c := tp.Constraint()
	if c == nil {
		return nil
	}
	iface, _ := c.Underlying().(*types.Interface)
	return iface
}

// safeSatisfies never panics: an internal invariant violation inside the type
// checker degrades to "satisfied" rather than crashing the host.
func safeSatisfies(arg types.Type, iface *types.Interface) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()
	if tp, isParam := arg.(*types.TypeParam); isParam {
		// Open-generic flow-through: the forwarded parameter satisfies the
		// target constraint iff its own constraint does.
		return types.Satisfies(tp, iface)
	}
	return types.Satisfies(arg, iface)
}

func comparableType(t types.Type) bool {
	if tp, ok := t.(*types.TypeParam); ok {
		iface := constraintInterface(tp)
		return iface != nil && iface.IsComparable()
	}
	return types.Comparable(t)
}
