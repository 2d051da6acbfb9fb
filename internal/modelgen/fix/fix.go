// Package fix turns diagnostics into concrete source edits. Each provider
// declares the diagnostic codes it handles and produces zero or more named
// actions; an action is a list of byte-offset text edits that leave every
// untouched sibling's trivia alone. Providers decline (return nothing) when
// the syntax they expect is not where the diagnostic says it is — a fix that
// cannot find its node must never panic.
package fix

import (
	"fmt"
	"os"
	"sort"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// Context gives providers access to the pass state and source bytes.
type Context struct {
	Res *resolver.Result
}

// Source returns the content of path, preferring the snapshot's in-memory
// sources over the filesystem.
func (c *Context) Source(path string) ([]byte, bool) {
	if src, ok := c.Res.Snapshot.Sources[path]; ok {
		return src, true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Provider is one code-fix provider.
type Provider interface {
	// Codes lists the diagnostic codes the provider fixes.
	Codes() []string
	// Fixes returns the available actions for one diagnostic instance.
	Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction
}

// Registry maps diagnostic codes to providers in registration order.
type Registry struct {
	providers []Provider
	byCode    map[string][]Provider
}

// NewRegistry returns a registry with the default provider set.
func NewRegistry() *Registry {
	r := &Registry{byCode: make(map[string][]Provider)}
	for _, p := range defaultProviders() {
		r.Register(p)
	}
	return r
}

// Register adds a provider for its declared codes.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, p)
	for _, code := range p.Codes() {
		r.byCode[code] = append(r.byCode[code], p)
	}
}

// For returns the actions available for a diagnostic.
func (r *Registry) For(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	var out []domain.FixAction
	for _, p := range r.byCode[d.Code] {
		out = append(out, p.Fixes(d, ctx)...)
	}
	return out
}

// Batch collects one batchable action per diagnostic across all instances,
// for uniform application in a single pass. Actions that opt out of batching
// are skipped.
func (r *Registry) Batch(diags []domain.Diagnostic, ctx *Context) []domain.FixAction {
	var out []domain.FixAction
	for _, d := range diags {
		for _, a := range r.For(d, ctx) {
			if a.Batchable {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// Apply splices a set of edits into their files and returns the new file
// contents keyed by path. Overlapping edits in one file are rejected.
func Apply(actions []domain.FixAction, ctx *Context) (map[string][]byte, error) {
	perFile := make(map[string][]domain.TextEdit)
	var paths []string
	for _, a := range actions {
		for _, e := range a.Edits {
			if _, ok := perFile[e.Path]; !ok {
				paths = append(paths, e.Path)
			}
			perFile[e.Path] = append(perFile[e.Path], e)
		}
	}
	sort.Strings(paths)

	out := make(map[string][]byte)
	for _, path := range paths {
		edits := perFile[path]
		sort.Slice(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })
		for i := 1; i < len(edits); i++ {
			if edits[i].Start < edits[i-1].End {
				return nil, fmt.Errorf("fix: overlapping edits in %s", path)
			}
		}
		src, ok := ctx.Source(path)
		if !ok {
			return nil, fmt.Errorf("fix: cannot read %s", path)
		}
		var buf []byte
		last := 0
		for _, e := range edits {
			if e.Start < last || e.End > len(src) {
				return nil, fmt.Errorf("fix: edit out of range in %s", path)
			}
			buf = append(buf, src[last:e.Start]...)
			buf = append(buf, e.NewText...)
			last = e.End
		}
		buf = append(buf, src[last:]...)
		out[path] = buf
	}
	return out, nil
}
