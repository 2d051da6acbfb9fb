package query_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactiveui/modelgen/internal/modelgen/analysis"
	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/query"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/testutil"
)

func newRouter(t *testing.T) *query.Router {
	t.Helper()
	src := `package app

//modelgen:model scope=transient
type Draft struct{}

//modelgen:model scope=singleton
type Shell struct {
	//modelgen:ref triggersonly
	draft *Draft
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})

	res, err := resolver.New(b.Snapshot()).Resolve(context.Background())
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), res)
	require.NoError(t, err)
	diags, err := analysis.New(g, res).Run(context.Background())
	require.NoError(t, err)

	r, err := query.NewRouter(g, diags)
	require.NoError(t, err)
	return r
}

func TestAnswerDependents(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("what depends on Draft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "example.com/app.Shell")

	// Alternate phrasing routes to the same lookup.
	alt, ok, err := r.Answer("who references Draft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, text, alt)
}

func TestAnswerReferences(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("what does Shell reference")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "example.com/app.Draft")
	assert.Contains(t, text, `"draft"`)
}

func TestAnswerScope(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("what scope is Shell")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "example.com/app.Shell is singleton", text)
}

func TestAnswerDiagnosticsForModel(t *testing.T) {
	r := newRouter(t)

	// Shell is a singleton holding a transient, so the pass carries a scope
	// violation mentioning it.
	text, ok, err := r.Answer("show diagnostics for Shell")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, domain.CodeScopeViolation)
}

func TestAnswerListModels(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("list models")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "example.com/app.Draft (transient)")
	assert.Contains(t, text, "example.com/app.Shell (singleton)")
}

func TestAnswerUnknownModel(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("what scope is Ghost")
	require.NoError(t, err)
	require.True(t, ok, "the pattern matched even though the model does not exist")
	assert.Contains(t, text, `no model named "Ghost"`)
}

func TestAnswerUnrecognizedQuestion(t *testing.T) {
	r := newRouter(t)

	text, ok, err := r.Answer("make me a sandwich")
	require.NoError(t, err)
	assert.False(t, ok)
	for _, p := range r.Patterns() {
		assert.Contains(t, text, p)
	}
}

func TestEmptyGraph(t *testing.T) {
	r, err := query.NewRouter(graph.New(), nil)
	require.NoError(t, err)

	text, ok, err := r.Answer("list models")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "no models discovered", text)

	text, ok, err = r.Answer("show all diagnostics")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text, "no diagnostics"))
}
