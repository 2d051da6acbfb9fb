package resolver

import (
	"go/ast"
	"go/types"
	"strings"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// markerMethod is emitted into every generated model file. Its presence on a
// named type is how models are recognized in packages where only export data
// is available.
const markerMethod = "modelgenModel"

// scopeConstSuffix names the generated package-level constant that records a
// model's declared scope so it stays visible across package boundaries.
const scopeConstSuffix = "ModelgenScope"

// flatten copies members of embedded model types onto every embedding model,
// re-qualifying change keys with the embedder's type name. Members arrive
// exactly as if redeclared on the concrete type; DeclaredOn keeps the
// declaring model for tooling. Embedded models may live in other packages of
// the snapshot or be external (reconstructed from export data).
func flatten(snap *Snapshot, res *Result) {
	done := make(map[string]bool)
	var visit func(id string, stack map[string]bool)
	visit = func(id string, stack map[string]bool) {
		if done[id] || stack[id] {
			return
		}
		decl := res.Decls[id]
		node := res.ByID[id]
		if decl == nil || node == nil {
			return
		}
		stack[id] = true
		defer delete(stack, id)

		for _, field := range decl.Struct.Fields.List {
			if len(field.Names) != 0 {
				continue
			}
			base := embeddedModel(res, decl, field.Type, stack, visit)
			if base == nil {
				continue
			}
			order := len(node.Members)
			for _, m := range base.Members {
				copied := *m
				copied.Owner = node.ID
				if copied.DeclaredOn == "" {
					copied.DeclaredOn = base.ID
				}
				if copied.ChangeKey != "" {
					copied.ChangeKey = requalify(copied.ChangeKey, node.Name)
				}
				copied.DeclOrder = order
				order++
				node.Members = append(node.Members, &copied)
			}
		}
		done[id] = true
	}
	for _, node := range res.Models {
		visit(node.ID, map[string]bool{})
	}
}

// embeddedModel resolves an embedded field type to a (fully flattened) model
// node, recursing so that a base model's own embedded members are already in
// place before they are copied. External models are registered into the
// result the first time they are seen.
func embeddedModel(res *Result, decl *ModelDecl, expr ast.Expr, stack map[string]bool, visit func(string, map[string]bool)) *domain.ModelNode {
	if decl.Pkg.Info == nil {
		return nil
	}
	named := namedOf(decl.Pkg.Info.TypeOf(expr))
	if named == nil {
		return nil
	}
	id := NamedID(named)
	if base, ok := res.ByID[id]; ok {
		visit(id, stack)
		return base
	}
	ext, ok := ExternalModel(named)
	if !ok {
		return nil
	}
	ext.DeclOrder = len(res.Models)
	res.ByID[ext.ID] = ext
	res.Models = append(res.Models, ext)
	return ext
}

// requalify swaps the owning type segment of a change key.
func requalify(key, owner string) string {
	if i := strings.Index(key, "."); i >= 0 {
		return owner + key[i:]
	}
	return owner + "." + key
}

// ExternalModel reconstructs a model node from export data alone: the marker
// method proves the type is a model, the generated scope constant restores
// its lifetime, generated setter/getter pairs restore its properties and the
// companion type's hook methods restore its component triggers. Returns
// (nil, false) when named is not a generated model.
func ExternalModel(named *types.Named) (*domain.ModelNode, bool) {
	origin := named.Origin()
	if !hasMethod(origin, markerMethod) {
		return nil, false
	}
	obj := origin.Obj()
	pkg := obj.Pkg()
	node := &domain.ModelNode{
		ID:       NamedID(origin),
		Name:     obj.Name(),
		External: true,
		Scope:    domain.ScopeSingleton,
		Named:    origin,
		Obj:      obj,
	}
	if pkg != nil {
		node.PkgPath = pkg.Path()
		node.PkgName = pkg.Name()
		if c, ok := pkg.Scope().Lookup(obj.Name() + scopeConstSuffix).(*types.Const); ok {
			s, _ := domain.ParseScope(strings.Trim(c.Val().String(), `"`))
			node.Scope = s
		}
	}
	if tps := origin.TypeParams(); tps != nil {
		for i := 0; i < tps.Len(); i++ {
			tp := tps.At(i)
			node.TypeParams = append(node.TypeParams, domain.TypeParamInfo{
				Name:           tp.Obj().Name(),
				ConstraintText: SynthesizeConstraint(tp),
				TP:             tp,
			})
		}
	}

	order := 0
	for i := 0; i < origin.NumMethods(); i++ {
		m := origin.Method(i)
		name := m.Name()
		if !strings.HasPrefix(name, "Set") || len(name) <= 3 {
			continue
		}
		prop := name[3:]
		sig, ok := m.Type().(*types.Signature)
		if !ok || sig.Params().Len() != 1 {
			continue
		}
		if !hasMethod(origin, prop) {
			continue
		}
		node.Members = append(node.Members, &domain.MemberDescriptor{
			Owner:      node.ID,
			DeclaredOn: node.ID,
			Kind:       domain.MemberProperty,
			Name:       prop,
			ChangeKey:  node.Name + "." + prop,
			TypeText:   types.TypeString(sig.Params().At(0).Type(), types.RelativeTo(pkg)),
			DeclOrder:  order,
		})
		order++
	}

	if pkg != nil {
		if comp, ok := pkg.Scope().Lookup(obj.Name() + "Component").(*types.TypeName); ok {
			if compNamed, ok := comp.Type().(*types.Named); ok {
				for i := 0; i < compNamed.NumMethods(); i++ {
					name := compNamed.Method(i).Name()
					if !strings.HasPrefix(name, "On") || !strings.HasSuffix(name, "Changed") {
						continue
					}
					on := strings.TrimSuffix(strings.TrimPrefix(name, "On"), "Changed")
					if on == "" {
						continue
					}
					node.Members = append(node.Members, &domain.MemberDescriptor{
						Owner:      node.ID,
						DeclaredOn: node.ID,
						Kind:       domain.MemberComponentTrigger,
						Name:       name,
						On:         on,
						DeclOrder:  order,
					})
					order++
				}
			}
		}
	}
	return node, true
}

// SynthesizeConstraint renders a type parameter's constraint purely from
// symbol metadata, for use when the declaring source is unavailable.
func SynthesizeConstraint(tp *types.TypeParam) string {
	c := tp.Constraint()
	if c == nil {
		return "any"
	}
	s := types.TypeString(c, nil)
	// interface{} and interface{comparable} read better in their spec forms.
	switch s {
	case "interface{}":
		return "any"
	case "interface{comparable}":
		return "comparable"
	}
	return s
}

func hasMethod(named *types.Named, name string) bool {
	for i := 0; i < named.NumMethods(); i++ {
		if named.Method(i).Name() == name {
			return true
		}
	}
	return false
}
