// Package query routes free-text questions about the model graph to concrete
// graph lookups. Questions are matched with cucumber expressions, so an agent
// can ask "what depends on LoginModel" without knowing any tool schema; the
// captured arguments select the graph operation.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	curex "github.com/cucumber/cucumber-expressions-go"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
)

// Router answers free-text questions against one pass result.
type Router struct {
	graph *graph.Graph
	diags []domain.Diagnostic

	registry *curex.ParameterTypeRegistry
	routes   []route
}

type route struct {
	pattern string
	expr    *curex.CucumberExpression
	answer  func(r *Router, args []string) (string, error)
}

// NewRouter builds a router over the graph and its diagnostics.
func NewRouter(g *graph.Graph, diags []domain.Diagnostic) (*Router, error) {
	r := &Router{graph: g, diags: diags, registry: curex.NewParameterTypeRegistry()}

	patterns := []struct {
		pattern string
		answer  func(r *Router, args []string) (string, error)
	}{
		{"what depends on {word}", (*Router).answerDependents},
		{"who references {word}", (*Router).answerDependents},
		{"what does {word} reference", (*Router).answerReferences},
		{"show diagnostics for {word}", (*Router).answerDiagnostics},
		{"show all diagnostics", (*Router).answerAllDiagnostics},
		{"what scope is {word}", (*Router).answerScope},
		{"list models", (*Router).answerModels},
	}
	for _, p := range patterns {
		expr, err := curex.NewCucumberExpression(p.pattern, r.registry)
		if err != nil {
			return nil, fmt.Errorf("query: bad pattern %q: %w", p.pattern, err)
		}
		r.routes = append(r.routes, route{pattern: p.pattern, expr: expr, answer: p.answer})
	}
	return r, nil
}

// Patterns lists the accepted question shapes, for discovery.
func (r *Router) Patterns() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.pattern
	}
	return out
}

// Answer matches the question against the known patterns and runs the first
// match. Unmatched questions return ok=false with a hint listing the shapes.
func (r *Router) Answer(question string) (string, bool, error) {
	q := strings.TrimSpace(question)
	for _, rt := range r.routes {
		args, err := rt.expr.Match(q)
		if err != nil || args == nil {
			continue
		}
		captured := make([]string, 0, len(args))
		for _, a := range args {
			captured = append(captured, fmt.Sprintf("%v", a.GetValue()))
		}
		text, err := rt.answer(r, captured)
		return text, true, err
	}
	return "unrecognized question; try one of:\n  " + strings.Join(r.Patterns(), "\n  "), false, nil
}

// findNode resolves a model by ID, bare name or case-insensitive name.
func (r *Router) findNode(name string) *domain.ModelNode {
	if n, ok := r.graph.Node(name); ok {
		return n
	}
	for _, n := range r.graph.Nodes() {
		if n.Name == name || strings.EqualFold(n.Name, name) {
			return n
		}
	}
	return nil
}

func (r *Router) answerDependents(args []string) (string, error) {
	node := r.findNode(args[0])
	if node == nil {
		return fmt.Sprintf("no model named %q", args[0]), nil
	}
	deps := r.graph.Dependents(node.ID)
	if len(deps) == 0 {
		return fmt.Sprintf("nothing depends on %s", node.ID), nil
	}
	return fmt.Sprintf("%s is depended on by:\n  %s", node.ID, strings.Join(deps, "\n  ")), nil
}

func (r *Router) answerReferences(args []string) (string, error) {
	node := r.findNode(args[0])
	if node == nil {
		return fmt.Sprintf("no model named %q", args[0]), nil
	}
	edges := r.graph.EdgesFrom(node.ID)
	if len(edges) == 0 {
		return fmt.Sprintf("%s references nothing", node.ID), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s references:\n", node.ID)
	for _, e := range edges {
		fmt.Fprintf(&sb, "  %s as %q (%s)\n", e.To, e.RefName, e.State)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (r *Router) answerDiagnostics(args []string) (string, error) {
	node := r.findNode(args[0])
	if node == nil {
		return fmt.Sprintf("no model named %q", args[0]), nil
	}
	var matched []domain.Diagnostic
	for _, d := range r.diags {
		if strings.Contains(d.Message, node.ID) || strings.Contains(d.Message, node.Name) {
			matched = append(matched, d)
		}
	}
	if len(matched) == 0 {
		return fmt.Sprintf("no diagnostics for %s", node.ID), nil
	}
	lines := make([]string, len(matched))
	for i, d := range matched {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Router) answerAllDiagnostics(_ []string) (string, error) {
	if len(r.diags) == 0 {
		return "no diagnostics", nil
	}
	data, err := json.MarshalIndent(r.diags, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Router) answerScope(args []string) (string, error) {
	node := r.findNode(args[0])
	if node == nil {
		return fmt.Sprintf("no model named %q", args[0]), nil
	}
	return fmt.Sprintf("%s is %s", node.ID, node.Scope), nil
}

func (r *Router) answerModels(_ []string) (string, error) {
	nodes := r.graph.Nodes()
	if len(nodes) == 0 {
		return "no models discovered", nil
	}
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		tag := ""
		if n.Abstract {
			tag = " abstract"
		}
		if n.External {
			tag = " external"
		}
		lines[i] = fmt.Sprintf("%s (%s%s)", n.ID, n.Scope, tag)
	}
	return strings.Join(lines, "\n"), nil
}
