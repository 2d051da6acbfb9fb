// Package resolver discovers annotated model declarations in type-checked Go
// packages. It merges directives across all files of a package (the partial
// declaration contract), flattens members of embedded model types onto their
// embedders, and recognizes models from already-compiled packages through the
// generated marker method when no syntax is available.
package resolver

import (
	"context"
	"go/ast"
	"go/printer"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

// Package is one type-checked package of the snapshot.
type Package struct {
	PkgPath string
	Files   []*ast.File
	Types   *types.Package
	Info    *types.Info
}

// Snapshot is the immutable input of one analysis pass.
type Snapshot struct {
	Fset *token.FileSet
	Pkgs []*Package
	// Sources optionally carries file contents keyed by filename. When a
	// file is absent the resolver falls back to reading it from disk, and
	// failing that to printing the AST node.
	Sources map[string][]byte
	// DefaultScope is the lifetime applied to models whose directive has no
	// scope argument. Empty means singleton.
	DefaultScope domain.Scope
}

// SourceText returns the original text of node when the underlying file is
// available, preserving the author's formatting. The boolean reports whether
// original text (as opposed to re-printed text) was found.
func (s *Snapshot) SourceText(node ast.Node) (string, bool) {
	start := s.Fset.Position(node.Pos())
	end := s.Fset.Position(node.End())
	if start.Filename != "" && start.Filename == end.Filename {
		src, ok := s.Sources[start.Filename]
		if !ok {
			if data, err := os.ReadFile(start.Filename); err == nil {
				src = data
				ok = true
			}
		}
		if ok && end.Offset <= len(src) && start.Offset <= end.Offset {
			return string(src[start.Offset:end.Offset]), true
		}
	}
	var b strings.Builder
	_ = printer.Fprint(&b, s.Fset, node)
	return b.String(), false
}

// RefField is a field-site reference declaration on a model.
type RefField struct {
	Name         string
	Field        *ast.Field
	Directive    *Directive
	TriggersOnly bool
}

// ModelDecl bundles the syntax handles of one in-snapshot model. Later stages
// (body analysis, fixes) work from these instead of re-walking files.
type ModelDecl struct {
	Pkg     *Package
	File    *ast.File
	GenDecl *ast.GenDecl
	Spec    *ast.TypeSpec
	Struct  *ast.StructType
	// Directives holds the directives attached to the type declaration.
	Directives []*Directive
	// Methods are all methods declared for the type, in any file of the
	// package, ordered by file then position.
	Methods []*ast.FuncDecl
	Ctor    *ast.FuncDecl
	Refs    []RefField
}

// Result is the resolver output consumed by the graph builder.
type Result struct {
	Snapshot *Snapshot
	// Models in discovery order (package order, then declaration order).
	Models []*domain.ModelNode
	ByID   map[string]*domain.ModelNode
	Decls  map[string]*ModelDecl
}

// Resolver discovers models in a snapshot.
type Resolver struct {
	snap *Snapshot
}

// New returns a resolver over the snapshot.
func New(snap *Snapshot) *Resolver { return &Resolver{snap: snap} }

// Resolve runs discovery. It returns normally even when individual
// declarations are malformed; such declarations simply do not become models.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	res := &Result{
		Snapshot: r.snap,
		ByID:     make(map[string]*domain.ModelNode),
		Decls:    make(map[string]*ModelDecl),
	}

	order := 0
	for _, pkg := range r.snap.Pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.discoverPackage(pkg, res, &order)
	}

	for _, node := range res.Models {
		r.collectMembers(node, res.Decls[node.ID])
	}
	flatten(r.snap, res)
	return res, nil
}

// discoverPackage finds model type declarations and their constructors and
// methods across every file of pkg.
func (r *Resolver) discoverPackage(pkg *Package, res *Result, order *int) {
	type pending struct {
		node *domain.ModelNode
		decl *ModelDecl
	}
	var found []pending

	for _, file := range pkg.Files {
		for _, d := range file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				dirs := parseDirectives(doc)
				md := firstDirective(dirs, DirModel)
				if md == nil {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					continue
				}

				scope := r.modelScope(md)
				id := pkg.PkgPath + "." + ts.Name.Name
				node := &domain.ModelNode{
					ID:        id,
					Name:      ts.Name.Name,
					PkgPath:   pkg.PkgPath,
					Scope:     scope,
					Abstract:  md.Flag("abstract"),
					DeclOrder: *order,
					Pos:       r.snap.Fset.Position(ts.Pos()),
				}
				*order++
				if pkg.Types != nil {
					node.PkgName = pkg.Types.Name()
					if obj, ok := pkg.Types.Scope().Lookup(ts.Name.Name).(*types.TypeName); ok {
						node.Obj = obj
						if named, ok := obj.Type().(*types.Named); ok {
							node.Named = named
						}
					}
				}
				node.TypeParams = r.typeParams(ts, node.Named)

				decl := &ModelDecl{
					Pkg:        pkg,
					File:       file,
					GenDecl:    gd,
					Spec:       ts,
					Struct:     st,
					Directives: dirs,
				}
				found = append(found, pending{node, decl})
				res.ByID[id] = node
				res.Decls[id] = decl
				res.Models = append(res.Models, node)
			}
		}
	}

	// Second sweep: attach methods and constructors. Directives for one type
	// may live in any file of the package, so every file is scanned for
	// every model.
	for _, file := range pkg.Files {
		for _, d := range file.Decls {
			fd, ok := d.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if fd.Recv != nil && len(fd.Recv.List) == 1 {
				base := receiverBaseName(fd.Recv.List[0].Type)
				for _, p := range found {
					if p.node.Name == base {
						p.decl.Methods = append(p.decl.Methods, fd)
					}
				}
				continue
			}
			for _, p := range found {
				if fd.Name.Name == "New"+p.node.Name {
					p.decl.Ctor = fd
				}
			}
		}
	}

	for _, p := range found {
		sort.SliceStable(p.decl.Methods, func(i, j int) bool {
			return p.decl.Methods[i].Pos() < p.decl.Methods[j].Pos()
		})
		if p.decl.Ctor != nil {
			p.node.Ctor = r.ctorInfo(p.node, p.decl)
		}
	}
}

// modelScope resolves the declared lifetime, falling back to the snapshot's
// default when the directive carries no scope argument.
func (r *Resolver) modelScope(md *Directive) domain.Scope {
	arg := md.Arg("scope")
	if arg == "" && r.snap.DefaultScope != "" {
		return r.snap.DefaultScope
	}
	scope, _ := domain.ParseScope(arg)
	return scope
}

// typeParams extracts declared type parameters with their constraint text as
// written at the declaration site.
func (r *Resolver) typeParams(ts *ast.TypeSpec, named *types.Named) []domain.TypeParamInfo {
	if ts.TypeParams == nil {
		return nil
	}
	var out []domain.TypeParamInfo
	idx := 0
	for _, field := range ts.TypeParams.List {
		text, _ := r.snap.SourceText(field.Type)
		for _, name := range field.Names {
			info := domain.TypeParamInfo{Name: name.Name, ConstraintText: text}
			if named != nil && named.TypeParams() != nil && idx < named.TypeParams().Len() {
				info.TP = named.TypeParams().At(idx)
			}
			out = append(out, info)
			idx++
		}
	}
	return out
}

// ctorInfo records the constructor's parameters in declared order. Parameter
// order is a correctness contract: emission reproduces it verbatim.
func (r *Resolver) ctorInfo(node *domain.ModelNode, decl *ModelDecl) *domain.CtorInfo {
	info := &domain.CtorInfo{
		Name: decl.Ctor.Name.Name,
		Pos:  r.snap.Fset.Position(decl.Ctor.Pos()),
	}
	idx := 0
	for _, field := range decl.Ctor.Type.Params.List {
		typeText, _ := r.snap.SourceText(field.Type)
		modelID := r.modelIDOfExpr(decl.Pkg, field.Type)
		names := field.Names
		if len(names) == 0 {
			info.Params = append(info.Params, domain.CtorParam{
				Index: idx, Name: "", TypeText: typeText, ModelID: modelID,
			})
			idx++
			continue
		}
		for _, name := range names {
			info.Params = append(info.Params, domain.CtorParam{
				Index:    idx,
				Name:     name.Name,
				TypeText: typeText,
				ModelID:  modelID,
			})
			idx++
		}
	}
	return info
}

// modelIDOfExpr resolves a type expression to a model identity when its
// underlying named type is (or could later be) a model. Resolution failures
// return "", never an error: "not a model" is a normal answer.
func (r *Resolver) modelIDOfExpr(pkg *Package, expr ast.Expr) string {
	if pkg.Info == nil {
		return ""
	}
	t := pkg.Info.TypeOf(expr)
	named := namedOf(t)
	if named == nil {
		return ""
	}
	return NamedID(named)
}

// NamedID is the model identity of a named type: "pkgpath.Name". Generic
// instantiations share the identity of their origin type.
func NamedID(named *types.Named) string {
	origin := named.Origin()
	obj := origin.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}

// namedOf unwraps pointers and aliases down to a named type.
func namedOf(t types.Type) *types.Named {
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

// collectMembers builds the member descriptor set of one model from its
// struct fields, its methods and its type-level hook directives.
func (r *Resolver) collectMembers(node *domain.ModelNode, decl *ModelDecl) {
	order := 0
	add := func(m *domain.MemberDescriptor) {
		m.Owner = node.ID
		m.DeclaredOn = node.ID
		m.DeclOrder = order
		order++
		node.Members = append(node.Members, m)
	}

	for _, field := range decl.Struct.Fields.List {
		if len(field.Names) == 0 {
			// Embedded model types are the inheritance analog; flattening
			// handles them after discovery.
			continue
		}
		dirs := parseDirectives(fieldDoc(field))
		if len(dirs) == 0 {
			continue
		}
		name := field.Names[0].Name
		pos := r.snap.Fset.Position(field.Pos())

		if pd := firstDirective(dirs, DirProperty); pd != nil {
			prop := Exported(name)
			typeText, _ := r.snap.SourceText(field.Type)
			var fieldType types.Type
			if decl.Pkg.Info != nil {
				fieldType = decl.Pkg.Info.TypeOf(field.Type)
			}
			add(&domain.MemberDescriptor{
				Kind:      domain.MemberProperty,
				Name:      prop,
				ChangeKey: node.Name + "." + prop,
				TypeText:  typeText,
				Type:      fieldType,
				Pos:       pos,
			})
			if target := pd.Arg("trigger"); target != "" {
				add(&domain.MemberDescriptor{
					Kind:   domain.MemberTrigger,
					Name:   prop + "Trigger",
					On:     prop,
					Target: target,
					Pos:    pos,
				})
			}
		}
		if rd := firstDirective(dirs, DirRef); rd != nil {
			decl.Refs = append(decl.Refs, RefField{
				Name:         name,
				Field:        field,
				Directive:    rd,
				TriggersOnly: rd.Flag("triggersonly"),
			})
		}
	}

	for _, method := range decl.Methods {
		dirs := parseDirectives(method.Doc)
		pos := r.snap.Fset.Position(method.Pos())

		if cd := firstDirective(dirs, DirCommand); cd != nil {
			add(&domain.MemberDescriptor{
				Kind:       domain.MemberCommand,
				Name:       method.Name.Name + "Command",
				Execute:    method.Name.Name,
				CanExecute: cd.Arg("canExecute"),
				Async:      cd.Flag("async"),
				Pos:        pos,
			})
		}
		for _, td := range directivesNamed(dirs, DirTrigger) {
			on := td.Arg("on")
			if on == "" {
				continue
			}
			kind := domain.MemberTrigger
			if td.Arg("callback") != "" {
				kind = domain.MemberCallbackTrigger
			}
			mode := td.Arg("mode")
			if td.Flag("async") && mode == "" {
				mode = domain.ModeSwitch
			}
			add(&domain.MemberDescriptor{
				Kind:     kind,
				Name:     method.Name.Name + "On" + on,
				On:       on,
				Target:   method.Name.Name,
				Callback: td.Arg("callback"),
				Async:    td.Flag("async"),
				Mode:     mode,
				Pos:      pos,
			})
		}
	}

	for _, hd := range directivesNamed(decl.Directives, DirHook) {
		on := hd.Arg("on")
		if on == "" {
			continue
		}
		add(&domain.MemberDescriptor{
			Kind:   domain.MemberComponentTrigger,
			Name:   domain.HookName(on),
			On:     on,
			Target: hd.Arg("target"),
			Pos:    r.snap.Fset.Position(hd.Pos),
		})
	}
}

// fieldDoc prefers the field's doc comment, falling back to its line comment.
// A directive in either spot resolves identically.
func fieldDoc(field *ast.Field) *ast.CommentGroup {
	if field.Doc != nil {
		return field.Doc
	}
	return field.Comment
}

// receiverBaseName strips pointers and type argument lists off a method
// receiver expression.
func receiverBaseName(expr ast.Expr) string {
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

// Exported upper-cases the first rune of name.
func Exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
