package analysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactiveui/modelgen/internal/modelgen/analysis"
	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/testutil"
)

func analyze(t *testing.T, b *testutil.Builder) (*graph.Graph, []domain.Diagnostic) {
	t.Helper()
	res, err := resolver.New(b.Snapshot()).Resolve(context.Background())
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), res)
	require.NoError(t, err)
	diags, err := analysis.New(g, res).Run(context.Background())
	require.NoError(t, err)
	return g, diags
}

func byCode(diags []domain.Diagnostic, code string) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func TestReferenceCycle(t *testing.T) {
	src := `package app

//modelgen:model
type A struct {
	//modelgen:ref
	b *B
}

//modelgen:model
type B struct {
	//modelgen:ref
	a *A
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	cycles := byCode(diags, domain.CodeCircularReference)
	require.Len(t, cycles, 1, "one diagnostic at the closing edge")
	assert.Equal(t, domain.SeverityError, cycles[0].Severity)

	detail, ok := cycles[0].Detail.(domain.CycleDetail)
	require.True(t, ok)
	assert.Equal(t, "example.com/app.B", detail.ClosingFrom)
	assert.Equal(t, "example.com/app.A", detail.ClosingTo)
	assert.Equal(t, []string{"example.com/app.A", "example.com/app.B", "example.com/app.A"}, detail.Path)
}

func TestSelfReferenceCycle(t *testing.T) {
	src := `package app

//modelgen:model
type Node struct {
	//modelgen:ref
	parent *Node
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	cycles := byCode(diags, domain.CodeCircularReference)
	require.Len(t, cycles, 1)
}

func TestTriggerCycle(t *testing.T) {
	src := `package app

//modelgen:model
type Counter struct {
	//modelgen:property
	count int
	//modelgen:property
	double int
}

func (c *Counter) SetCount(v int)  { c.count = v }
func (c *Counter) SetDouble(v int) { c.double = v }

//modelgen:trigger on=Count
func (c *Counter) SyncDouble() {
	c.SetDouble(c.count * 2)
}

//modelgen:trigger on=Double
func (c *Counter) SyncCount() {
	c.SetCount(c.double / 2)
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	cycles := byCode(diags, domain.CodeCircularTrigger)
	require.NotEmpty(t, cycles)
	detail, ok := cycles[0].Detail.(domain.TriggerCycleDetail)
	require.True(t, ok)
	assert.Equal(t, "example.com/app.Counter", detail.Model)
	assert.Greater(t, detail.StmtEnd, detail.StmtStart)
	assert.Contains(t, []string{"SyncDouble", "SyncCount"}, detail.Trigger)
}

func TestTriggerChainWithoutCycle(t *testing.T) {
	src := `package app

//modelgen:model
type Chain struct {
	//modelgen:property
	a int
	//modelgen:property
	b int
}

func (c *Chain) SetB(v int) { c.b = v }

//modelgen:trigger on=A
func (c *Chain) Derive() {
	c.SetB(c.a + 1)
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	assert.Empty(t, byCode(diags, domain.CodeCircularTrigger))
}

func TestScopeViolation(t *testing.T) {
	src := `package app

//modelgen:model scope=transient
type Draft struct {
	//modelgen:property
	text string
}

//modelgen:model scope=singleton
type Shell struct {
	//modelgen:ref
	draft *Draft
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	viol := byCode(diags, domain.CodeScopeViolation)
	require.Len(t, viol, 1)
	detail, ok := viol[0].Detail.(domain.ScopeDetail)
	require.True(t, ok)
	assert.Equal(t, "example.com/app.Shell", detail.Model)
	assert.Equal(t, domain.ScopeSingleton, detail.Declared)
	assert.Equal(t, domain.ScopeTransient, detail.Required)
	assert.Equal(t, "example.com/app.Draft", detail.Via)
}

func TestNarrowestWinsAcrossPaths(t *testing.T) {
	// Shell reaches Draft both directly and through Mid; the transient
	// requirement propagates along both paths.
	src := `package app

//modelgen:model scope=transient
type Draft struct{}

//modelgen:model scope=scoped
type Mid struct {
	//modelgen:ref
	draft *Draft
}

//modelgen:model scope=singleton
type Shell struct {
	//modelgen:ref
	mid *Mid
	//modelgen:ref
	draft *Draft
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	viol := byCode(diags, domain.CodeScopeViolation)
	models := make(map[string]domain.Scope)
	for _, d := range viol {
		detail := d.Detail.(domain.ScopeDetail)
		models[detail.Model] = detail.Required
	}
	assert.Equal(t, domain.ScopeTransient, models["example.com/app.Shell"])
	assert.Equal(t, domain.ScopeTransient, models["example.com/app.Mid"])
}

func TestSharedNonSingletonWarning(t *testing.T) {
	src := `package app

//modelgen:model scope=transient
type Shared struct{}

//modelgen:model scope=transient
type One struct {
	//modelgen:ref
	s *Shared
}

//modelgen:model scope=transient
type Two struct {
	//modelgen:ref
	s *Shared
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	shared := byCode(diags, domain.CodeSharedNotSingle)
	require.Len(t, shared, 1)
	assert.Equal(t, domain.SeverityWarning, shared[0].Severity)
	detail := shared[0].Detail.(domain.SharedScopeDetail)
	assert.Len(t, detail.Consumers, 2)
}

func TestUnusedReference(t *testing.T) {
	src := `package app

//modelgen:model
type Quiet struct {
	//modelgen:property
	v int
}

//modelgen:model
type Holder struct {
	//modelgen:ref
	quiet *Quiet
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	unused := byCode(diags, domain.CodeUnusedReference)
	require.Len(t, unused, 1)
	detail := unused[0].Detail.(domain.UnusedRefDetail)
	assert.Equal(t, "quiet", detail.RefName)
	assert.Equal(t, domain.SiteField, detail.Site)
}

func TestTriggersOnlyReferenceNotFlagged(t *testing.T) {
	src := `package app

//modelgen:model
type Quiet struct{}

//modelgen:model
type Holder struct {
	//modelgen:ref triggersonly
	quiet *Quiet
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	assert.Empty(t, byCode(diags, domain.CodeUnusedReference))
}

func TestUnusedTrigger(t *testing.T) {
	src := `package app

//modelgen:model
type Widget struct {
	//modelgen:property
	size int
}

//modelgen:trigger on=Missing
func (w *Widget) React() {}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	_, diags := analyze(t, b)

	unused := byCode(diags, domain.CodeUnusedTrigger)
	require.Len(t, unused, 1)
	detail := unused[0].Detail.(domain.UnusedTriggerDetail)
	assert.Equal(t, "ReactOnMissing", detail.Member)
}

func TestUnresolvedReferenceBlocksNode(t *testing.T) {
	src := `package app

//modelgen:model
type Broken struct {
	//modelgen:ref
	gone *Nowhere
}

//modelgen:model
type Fine struct {
	//modelgen:property
	v int
}
`
	b := testutil.NewBuilder().Lenient()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	g, diags := analyze(t, b)

	unresolved := byCode(diags, domain.CodeUnresolvedRef)
	require.Len(t, unresolved, 1)
	assert.True(t, analysis.Blocked(g, "example.com/app.Broken"))
	assert.False(t, analysis.Blocked(g, "example.com/app.Fine"))
}
