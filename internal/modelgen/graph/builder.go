package graph

import (
	"context"
	"go/ast"
	"go/types"
	"strconv"
	"strings"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// Build constructs the reference graph from resolver output. Every declared
// reference becomes an edge; references that fail to resolve are retained
// with a failing state so the diagnostics engine can explain why. Build never
// drops an edge.
func Build(ctx context.Context, res *resolver.Result) (*Graph, error) {
	g := New()
	for _, node := range res.Models {
		g.AddNode(node)
	}

	for _, node := range res.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decl := res.Decls[node.ID]
		if decl == nil {
			continue
		}
		b := &builder{res: res, g: g, node: node, decl: decl}
		b.ctorEdges()
		b.fieldEdges()
		b.disambiguateRefNames()
		b.markUsage()
	}
	return g, nil
}

type builder struct {
	res  *resolver.Result
	g    *Graph
	node *domain.ModelNode
	decl *resolver.ModelDecl

	// refObjs maps edge reference names to the type-checker object backing
	// the declaration, for usage marking.
	refEdges []*domain.ReferenceEdge
	refObjs  []types.Object
}

// ctorEdges records one edge per constructor parameter whose type is a
// model. Parameter order is preserved exactly as declared; emission depends
// on it byte-for-byte.
func (b *builder) ctorEdges() {
	if b.node.Ctor == nil || b.decl.Ctor == nil {
		return
	}
	paramIdx := 0
	for _, field := range b.decl.Ctor.Type.Params.List {
		names := field.Names
		// An unnamed parameter still declares one reference; its edge
		// carries an empty RefName until disambiguateRefNames derives one.
		count := len(names)
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			param := b.node.Ctor.Params[paramIdx]
			paramIdx++
			if param.ModelID == "" {
				continue
			}
			edge := &domain.ReferenceEdge{
				From:       b.node.ID,
				To:         param.ModelID,
				Site:       domain.SiteCtorParam,
				ParamIndex: param.Index,
				RefName:    param.Name,
				Pos:        b.res.Snapshot.Fset.Position(field.Pos()),
			}
			b.resolveTarget(edge, field.Type)
			b.g.AddEdge(edge)
			b.refEdges = append(b.refEdges, edge)
			var obj types.Object
			if i < len(names) {
				obj = b.decl.Pkg.Info.Defs[names[i]]
			}
			b.refObjs = append(b.refObjs, obj)
		}
	}
}

// fieldEdges records one edge per ref-directive field.
func (b *builder) fieldEdges() {
	for _, ref := range b.decl.Refs {
		edge := &domain.ReferenceEdge{
			From:         b.node.ID,
			To:           "",
			Site:         domain.SiteField,
			RefName:      ref.Name,
			TriggersOnly: ref.TriggersOnly,
			Pos:          b.res.Snapshot.Fset.Position(ref.Field.Pos()),
		}
		b.resolveTarget(edge, ref.Field.Type)
		b.g.AddEdge(edge)
		b.refEdges = append(b.refEdges, edge)
		if len(ref.Field.Names) == 1 {
			b.refObjs = append(b.refObjs, b.decl.Pkg.Info.Defs[ref.Field.Names[0]])
		} else {
			b.refObjs = append(b.refObjs, nil)
		}
	}
}

// resolveTarget resolves the referenced type and records type-argument
// bindings. Unknown targets and unbound generics stay on the edge as
// explicit failing states.
func (b *builder) resolveTarget(edge *domain.ReferenceEdge, expr ast.Expr) {
	info := b.decl.Pkg.Info
	named := namedOfExpr(info, expr)
	if named == nil {
		// The expression did not type-check (or is not a named type). Fall
		// back to the syntactic name so diagnostics can still point at it.
		edge.State = domain.EdgeUnresolvedTarget
		edge.StateDetail = "type did not resolve"
		if edge.To == "" {
			edge.To = exprBaseName(expr)
		}
		b.syntacticOpenGenericCheck(edge, expr)
		return
	}
	id := resolver.NamedID(named)
	edge.To = id

	target, ok := b.res.ByID[id]
	if !ok {
		ext, isModel := resolver.ExternalModel(named)
		if !isModel {
			edge.State = domain.EdgeUnresolvedTarget
			edge.StateDetail = "referenced type is not a model"
			return
		}
		ext.DeclOrder = len(b.res.Models)
		b.res.ByID[ext.ID] = ext
		b.res.Models = append(b.res.Models, ext)
		b.g.AddNode(ext)
		target = ext
	}

	if len(target.TypeParams) == 0 {
		edge.State = domain.EdgeResolved
		return
	}

	args := named.TypeArgs()
	if args == nil || args.Len() == 0 {
		// A generic model referenced without any binding. Closed bindings
		// are required unless the referencing side forwards its own type
		// parameters, which go/types would have surfaced as arguments.
		edge.State = domain.EdgeOpenGenericMisuse
		edge.StateDetail = "no type arguments supplied"
		return
	}

	qualifier := types.RelativeTo(b.decl.Pkg.Types)
	for i := 0; i < args.Len(); i++ {
		arg := args.At(i)
		binding := domain.TypeArgBinding{
			ArgText: types.TypeString(arg, qualifier),
			Arg:     arg,
		}
		if i < len(target.TypeParams) {
			binding.ParamName = target.TypeParams[i].Name
		}
		if tp, ok := arg.(*types.TypeParam); ok {
			binding.Forwarded = ownTypeParam(b.node, tp)
		}
		edge.Bindings = append(edge.Bindings, binding)
	}
	// Arity and constraint verification happen in the generics resolver;
	// the edge stays pending-resolved until then.
	edge.State = domain.EdgeResolved
}

// syntacticOpenGenericCheck catches the unbound-generic spelling in packages
// that failed to type-check, where go/types gives us nothing to work with.
func (b *builder) syntacticOpenGenericCheck(edge *domain.ReferenceEdge, expr ast.Expr) {
	base := exprBaseName(expr)
	if base == "" {
		return
	}
	for _, m := range b.res.Models {
		if m.Name == base && len(m.TypeParams) > 0 {
			if !hasIndexExpr(expr) {
				edge.To = m.ID
				edge.State = domain.EdgeOpenGenericMisuse
				edge.StateDetail = "no type arguments supplied"
			}
			return
		}
	}
}

// disambiguateRefNames fills in reference names for unnamed declaration
// sites. When two referenced types share a type name (sibling models in
// different packages), both derived names are prefixed with the target's last
// package path segment so the generated aggregator has no collision.
func (b *builder) disambiguateRefNames() {
	nameCount := make(map[string]int)
	for _, e := range b.refEdges {
		if t, ok := b.g.Node(e.To); ok {
			nameCount[t.Name]++
		}
	}
	used := make(map[string]bool)
	for _, e := range b.refEdges {
		if e.RefName != "" {
			used[e.RefName] = true
		}
	}
	for i, e := range b.refEdges {
		if e.RefName != "" {
			continue
		}
		t, ok := b.g.Node(e.To)
		if !ok {
			e.RefName = "ref" + strconv.Itoa(i)
			continue
		}
		name := lowerFirst(t.Name)
		if nameCount[t.Name] > 1 {
			name = lowerFirst(lastSegment(t.PkgPath)) + t.Name
		}
		for used[name] {
			name += strconv.Itoa(i)
		}
		used[name] = true
		e.RefName = name
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// markUsage flags edges whose declaring reference is actually read in code.
// Storing a constructor parameter counts as use; a triggers-only reference is
// exempt by declaration.
func (b *builder) markUsage() {
	if b.decl.Pkg.Info == nil {
		return
	}
	used := make(map[types.Object]bool)
	bodies := make([]*ast.FuncDecl, 0, len(b.decl.Methods)+1)
	bodies = append(bodies, b.decl.Methods...)
	if b.decl.Ctor != nil {
		bodies = append(bodies, b.decl.Ctor)
	}
	for _, fd := range bodies {
		if fd.Body == nil {
			continue
		}
		ast.Inspect(fd.Body, func(n ast.Node) bool {
			if ident, ok := n.(*ast.Ident); ok {
				if obj := b.decl.Pkg.Info.Uses[ident]; obj != nil {
					used[obj] = true
				}
			}
			return true
		})
	}
	for i, edge := range b.refEdges {
		obj := b.refObjs[i]
		if obj == nil {
			continue
		}
		if used[obj] {
			edge.Used = true
			continue
		}
		// Field references may be read through the promoted selector path;
		// the Uses map above already covers that, since selection of a field
		// resolves to the field object.
	}
}

func namedOfExpr(info *types.Info, expr ast.Expr) *types.Named {
	if info == nil {
		return nil
	}
	t := info.TypeOf(expr)
	for {
		switch tt := t.(type) {
		case *types.Pointer:
			t = tt.Elem()
		case *types.Alias:
			t = types.Unalias(tt)
		case *types.Named:
			return tt
		default:
			return nil
		}
	}
}

func exprBaseName(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.SelectorExpr:
			return e.Sel.Name
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

func hasIndexExpr(expr ast.Expr) bool {
	found := false
	ast.Inspect(expr, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.IndexExpr, *ast.IndexListExpr:
			found = true
		}
		return !found
	})
	return found
}

// ownTypeParam reports whether tp is one of node's own declared parameters.
func ownTypeParam(node *domain.ModelNode, tp *types.TypeParam) bool {
	for _, p := range node.TypeParams {
		if p.TP == tp || p.Name == tp.Obj().Name() {
			return true
		}
	}
	return false
}
