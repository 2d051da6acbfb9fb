package emit_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/emit"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/testutil"
)

func emitModel(t *testing.T, b *testutil.Builder, id string) ([]domain.GeneratedUnit, []domain.Diagnostic) {
	t.Helper()
	res, err := resolver.New(b.Snapshot()).Resolve(context.Background())
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), res)
	require.NoError(t, err)
	node := res.ByID[id]
	require.NotNil(t, node)
	return emit.New().Emit(node, g)
}

const sessionSrc = `package app

import "context"

//modelgen:model
//modelgen:hook on=Token
type Session struct {
	//modelgen:property
	token string
}

//modelgen:model scope=scoped
type Home struct {
	//modelgen:property
	title string

	//modelgen:ref
	session *Session
}

//modelgen:command canExecute=CanRefresh
func (h *Home) Refresh(ctx context.Context) error { return nil }

func (h *Home) CanRefresh() bool { return true }

//modelgen:trigger on=Title
func (h *Home) Retitle() {}
`

func TestDeterministicOutput(t *testing.T) {
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": sessionSrc})

	first, diags := emitModel(t, b, "example.com/app.Home")
	require.Empty(t, diags)
	second, _ := emitModel(t, b, "example.com/app.Home")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Hash, second[i].Hash)
	}

	sum := sha256.Sum256([]byte(first[0].Content))
	assert.Equal(t, hex.EncodeToString(sum[:]), first[0].Hash)
}

func TestModelFileContents(t *testing.T) {
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": sessionSrc})

	units, diags := emitModel(t, b, "example.com/app.Home")
	require.Empty(t, diags)
	require.Len(t, units, 1, "no hooks on Home, so no companion")

	u := units[0]
	assert.Equal(t, "home_modelgen.go", u.FileName)
	assert.False(t, u.Companion)

	c := u.Content
	assert.Contains(t, c, "// Code generated by modelgen. DO NOT EDIT.")
	assert.Contains(t, c, "package app")
	assert.Contains(t, c, `const HomeModelgenScope = "scoped"`)
	assert.Contains(t, c, "func (m *Home) modelgenModel() reactive.ModelMeta {")
	assert.Contains(t, c, `Name:  "example.com/app.Home",`)

	// Getter, change-guarded setter, publish under the model-qualified key.
	assert.Contains(t, c, "func (m *Home) Title() string { return m.title }")
	assert.Contains(t, c, "func (m *Home) SetTitle(v string) {")
	assert.Contains(t, c, "if m.title == v {")
	assert.Contains(t, c, `m.Publish("Home.Title")`)

	// Command accessor with the canExecute predicate.
	assert.Contains(t, c, "func (m *Home) RefreshCommand() *reactive.Command {")
	assert.Contains(t, c, "return reactive.NewCommand(m.Refresh, m.CanRefresh)")

	// Wiring: sync trigger subscription plus reference forwarding.
	assert.Contains(t, c, "func WireHome(ctx context.Context, m *Home, n reactive.Notifier) {")
	assert.Contains(t, c, "m.Attach(n)")
	assert.Contains(t, c, `m.Watch("Home.Title", func(reactive.ChangeKey) {`)
	assert.Contains(t, c, "m.Retitle()")
	assert.Contains(t, c, `m.Watch("Session.Token", func(reactive.ChangeKey) {`)
	assert.Contains(t, c, `n.Publish("Home.session.Token")`)
}

func TestNonComparablePropertySkipsEqualityGuard(t *testing.T) {
	src := `package app

//modelgen:model
type Feed struct {
	//modelgen:property
	messages []string

	//modelgen:property
	count int
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})

	units, diags := emitModel(t, b, "example.com/app.Feed")
	require.Empty(t, diags)
	c := units[0].Content

	// Slices have no ==, so the setter publishes unconditionally.
	assert.Contains(t, c, "func (m *Feed) SetMessages(v []string) {")
	assert.NotContains(t, c, "m.messages ==")
	assert.Contains(t, c, `m.Publish("Feed.Messages")`)

	// The comparable sibling keeps its change guard.
	assert.Contains(t, c, "if m.count == v {")
}

func TestAsyncTriggerRunner(t *testing.T) {
	src := `package app

//modelgen:model
type Search struct {
	//modelgen:property
	query string
}

//modelgen:trigger on=Query async mode=merge
func (s *Search) Run(ctx context.Context) {}
`
	b := testutil.NewBuilder().Lenient()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})

	units, _ := emitModel(t, b, "example.com/app.Search")
	require.Len(t, units, 2, "the trigger surfaces a hook, so a companion emits too")
	c := units[0].Content
	assert.Contains(t, c, "runnerRunOnQuery := reactive.NewAsyncRunner(reactive.ModeMerge)")
	assert.Contains(t, c, "runnerRunOnQuery.Run(ctx, func(ctx context.Context) {")
	assert.Contains(t, c, "m.Run(ctx)")

	comp := units[1]
	assert.True(t, comp.Companion)
	assert.Equal(t, "search_component_modelgen.go", comp.FileName)
	assert.Contains(t, comp.Content, "func (c *SearchComponent) OnQueryChanged() {}")
}

func TestCompanionFile(t *testing.T) {
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": sessionSrc})

	units, diags := emitModel(t, b, "example.com/app.Session")
	require.Empty(t, diags)
	require.Len(t, units, 2)

	comp := units[1]
	assert.Equal(t, "session_component_modelgen.go", comp.FileName)
	assert.True(t, comp.Companion)

	c := comp.Content
	assert.Contains(t, c, "type SessionComponent struct {")
	assert.Contains(t, c, "Model *Session")
	assert.Contains(t, c, "func BindSessionComponent(c *SessionComponent, n reactive.Notifier) []reactive.Subscription {")
	assert.Contains(t, c, `n.Subscribe("Session.Token", func(reactive.ChangeKey) {`)
	assert.Contains(t, c, "c.OnTokenChanged()")
	assert.Contains(t, c, "func (c *SessionComponent) OnTokenChanged() {}")
}

func TestAbstractModelSkipsWiring(t *testing.T) {
	src := `package app

//modelgen:model abstract
//modelgen:hook on=IsValid
type Validatable struct {
	//modelgen:property
	isValid bool
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})

	units, diags := emitModel(t, b, "example.com/app.Validatable")
	require.Empty(t, diags)
	require.Len(t, units, 1, "abstract models get no companion")

	c := units[0].Content
	assert.NotContains(t, c, "func WireValidatable")
	assert.NotContains(t, c, `"context"`)
	assert.Contains(t, c, "func (m *Validatable) SetIsValid(v bool) {")
}

func TestInheritedPropertyDelegates(t *testing.T) {
	baseSrc := `package base

//modelgen:model abstract
type Validatable struct {
	//modelgen:property
	isValid bool
}
`
	appSrc := `package app

import "example.com/base"

//modelgen:model
type Form struct {
	base.Validatable
	//modelgen:property
	title string
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/base", map[string]string{"base.go": baseSrc})
	b.Add(t, "example.com/app", map[string]string{"app.go": appSrc})

	units, diags := emitModel(t, b, "example.com/app.Form")
	require.Empty(t, diags)
	c := units[0].Content

	// The inherited setter delegates to the promoted base setter, then
	// re-publishes under the derived key.
	assert.Contains(t, c, "func (m *Form) IsValid() bool { return m.Validatable.IsValid() }")
	assert.Contains(t, c, "m.Validatable.SetIsValid(v)")
	assert.Contains(t, c, `m.Publish("Form.IsValid")`)
}

func TestInheritedTriggerHookOnDerivedCompanion(t *testing.T) {
	baseSrc := `package base

//modelgen:model abstract
type Feed struct {
	//modelgen:property
	messages []string
}

//modelgen:trigger on=Messages
func (f *Feed) Reload() {}
`
	appSrc := `package app

import "example.com/base"

//modelgen:model
type Inbox struct {
	base.Feed
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/base", map[string]string{"base.go": baseSrc})
	b.Add(t, "example.com/app", map[string]string{"app.go": appSrc})

	units, diags := emitModel(t, b, "example.com/app.Inbox")
	require.Empty(t, diags)
	require.Len(t, units, 2, "the inherited trigger surfaces a companion on the embedder")
	assert.Contains(t, units[1].Content, "func (c *InboxComponent) OnMessagesChanged() {}")
	assert.Contains(t, units[1].Content, `n.Subscribe("Inbox.Messages"`)
}

func TestGenericModelSignatures(t *testing.T) {
	src := `package app

//modelgen:model
type ListModel[T comparable] struct {
	//modelgen:property
	selected T
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})

	units, diags := emitModel(t, b, "example.com/app.ListModel")
	require.Empty(t, diags)
	c := units[0].Content
	assert.Contains(t, c, `const ListModelModelgenScope = "singleton"`)
	assert.Contains(t, c, "func (m *ListModel[T]) Selected() T { return m.selected }")
	assert.Contains(t, c, "func WireListModel[T comparable](ctx context.Context, m *ListModel[T], n reactive.Notifier) {")
}

func TestExternalModelEmitsNothing(t *testing.T) {
	node := &domain.ModelNode{ID: "example.com/gen.Session", Name: "Session", External: true}
	units, diags := emit.New().Emit(node, graph.New())
	assert.Empty(t, units)
	assert.Empty(t, diags)
}

func TestRuntimeImportOverride(t *testing.T) {
	src := `package app

//modelgen:model
type Tiny struct {
	//modelgen:property
	v int
}
`
	b := testutil.NewBuilder()
	b.Add(t, "example.com/app", map[string]string{"app.go": src})
	res, err := resolver.New(b.Snapshot()).Resolve(context.Background())
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), res)
	require.NoError(t, err)

	e := &emit.Emitter{RuntimeImport: "example.com/custom/reactive"}
	units, diags := e.Emit(res.ByID["example.com/app.Tiny"], g)
	require.Empty(t, diags)
	assert.Contains(t, units[0].Content, `"example.com/custom/reactive"`)
}
