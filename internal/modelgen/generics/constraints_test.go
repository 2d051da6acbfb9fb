package generics_test

import (
	"context"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/generics"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/testutil"
)

// genericTarget type-checks a generic model fixture and returns its node.
func genericTarget(t *testing.T, constraint string) *domain.ModelNode {
	t.Helper()
	src := `package app

//modelgen:model
type ListModel[T ` + constraint + `] struct {
	//modelgen:property
	selected T
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	res, err := resolver.New(b.Snapshot()).Resolve(context.Background())
	require.NoError(t, err)
	return res.ByID["example.com/app.ListModel"]
}

func referencer() *domain.ModelNode {
	return &domain.ModelNode{ID: "example.com/app.Host", Name: "Host", PkgPath: "example.com/app"}
}

func TestArityMismatch(t *testing.T) {
	target := genericTarget(t, "comparable")
	from := referencer()

	g := graph.New()
	g.AddNode(from)
	g.AddNode(target)
	edge := &domain.ReferenceEdge{From: from.ID, To: target.ID, RefName: "list", State: domain.EdgeResolved}
	g.AddEdge(edge)

	diags, err := generics.Check(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.CodeArityMismatch, diags[0].Code)
	assert.Equal(t, domain.SeverityError, diags[0].Severity)
	assert.Equal(t, domain.EdgeArityMismatch, edge.State)

	detail, ok := diags[0].Detail.(domain.ArityDetail)
	require.True(t, ok)
	assert.Equal(t, 1, detail.Want)
	assert.Equal(t, 0, detail.Got)
	require.Len(t, detail.Missing, 1)
	assert.Equal(t, "T", detail.Missing[0].Name)
	assert.Equal(t, "comparable", detail.Missing[0].ConstraintText)
}

func TestComparableConstraintViolation(t *testing.T) {
	target := genericTarget(t, "comparable")
	from := referencer()

	g := graph.New()
	g.AddNode(from)
	g.AddNode(target)
	sliceArg := types.NewSlice(types.Typ[types.String])
	edge := &domain.ReferenceEdge{
		From: from.ID, To: target.ID, RefName: "list", State: domain.EdgeResolved,
		Bindings: []domain.TypeArgBinding{{ParamName: "T", ArgText: "[]string", Arg: sliceArg}},
	}
	g.AddEdge(edge)

	diags, err := generics.Check(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.CodeConstraintBroken, diags[0].Code)
	assert.Equal(t, domain.EdgeConstraintMismatch, edge.State)

	detail, ok := diags[0].Detail.(domain.ConstraintDetail)
	require.True(t, ok)
	assert.Equal(t, "T", detail.Param)
	assert.Equal(t, "[]string", detail.Arg)
	assert.Equal(t, "comparable", detail.Constraint)
}

func TestSatisfiedBindingResolves(t *testing.T) {
	target := genericTarget(t, "comparable")
	from := referencer()

	g := graph.New()
	g.AddNode(from)
	g.AddNode(target)
	edge := &domain.ReferenceEdge{
		From: from.ID, To: target.ID, RefName: "list", State: domain.EdgeResolved,
		Bindings: []domain.TypeArgBinding{{ParamName: "T", ArgText: "string", Arg: types.Typ[types.String]}},
	}
	g.AddEdge(edge)

	diags, err := generics.Check(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, domain.EdgeResolved, edge.State)
}

func TestOpenGenericMisuse(t *testing.T) {
	target := genericTarget(t, "any")
	from := referencer()

	g := graph.New()
	g.AddNode(from)
	g.AddNode(target)
	edge := &domain.ReferenceEdge{From: from.ID, To: target.ID, RefName: "list", State: domain.EdgeOpenGenericMisuse}
	g.AddEdge(edge)

	diags, err := generics.Check(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.CodeOpenGenericMisuse, diags[0].Code)

	detail, ok := diags[0].Detail.(domain.OpenGenericDetail)
	require.True(t, ok)
	assert.Equal(t, target.ID, detail.To)
}

func TestNonGenericTargetIgnored(t *testing.T) {
	from := referencer()
	target := &domain.ModelNode{ID: "example.com/app.Plain", Name: "Plain"}

	g := graph.New()
	g.AddNode(from)
	g.AddNode(target)
	g.AddEdge(&domain.ReferenceEdge{From: from.ID, To: target.ID, RefName: "p", State: domain.EdgeResolved})

	diags, err := generics.Check(context.Background(), g)
	require.NoError(t, err)
	assert.Empty(t, diags)
}
