package analysis

import (
	"context"
	"go/ast"
	"go/token"
	"strings"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

// referenceCycles runs a depth-first traversal over reference edges. A path
// that revisits a node already on the traversal stack is a cycle; the
// diagnostic is attached at the edge that closes it.
func (a *Analyzer) referenceCycles(ctx context.Context) ([]domain.Diagnostic, error) {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	onPath := []string{}
	var diags []domain.Diagnostic
	reported := make(map[*domain.ReferenceEdge]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		color[id] = grey
		onPath = append(onPath, id)
		for _, edge := range a.graph.EdgesFrom(id) {
			switch color[edge.To] {
			case grey:
				if !reported[edge] {
					reported[edge] = true
					path := cyclePath(onPath, edge.To)
					diags = append(diags, domain.NewDiagnostic(
						domain.CodeCircularReference, domain.SeverityError, edge.Pos,
						domain.CycleDetail{Path: path, ClosingFrom: edge.From, ClosingTo: edge.To},
						strings.Join(path, " -> "),
					))
				}
			case white:
				if err := visit(edge.To); err != nil {
					return err
				}
			}
		}
		onPath = onPath[:len(onPath)-1]
		color[id] = black
		return nil
	}

	for _, node := range a.graph.Nodes() {
		if color[node.ID] == white {
			if err := visit(node.ID); err != nil {
				return nil, err
			}
		}
	}
	return diags, nil
}

// cyclePath slices the current traversal stack from the first occurrence of
// start and closes the loop.
func cyclePath(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			path := append([]string(nil), stack[i:]...)
			return append(path, start)
		}
	}
	return []string{start, start}
}

// propEdge is one "trigger on X modifies Y" relationship.
type propEdge struct {
	from, to  string // qualified property keys, "modelID#Prop"
	model     string
	trigger   string // member name of the trigger whose body modifies
	stmt      token.Position
	stmtStart int
	stmtEnd   int
}

// triggerCycles builds the secondary graph of "property X's trigger modifies
// property Y" relationships — including modifications inside command execute
// methods and internal observer methods — and reports every cycle with the
// statement that closes it, so a fix can remove exactly that statement.
func (a *Analyzer) triggerCycles(ctx context.Context) ([]domain.Diagnostic, error) {
	var edges []propEdge
	for _, node := range a.graph.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decl := a.res.Decls[node.ID]
		if decl == nil {
			continue
		}
		edges = append(edges, a.modelPropEdges(node, decl)...)
	}

	adj := make(map[string][]propEdge)
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e)
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var stack []string
	var diags []domain.Diagnostic

	var visit func(key string)
	visit = func(key string) {
		color[key] = grey
		stack = append(stack, key)
		for _, e := range adj[key] {
			switch color[e.to] {
			case grey:
				props := cyclePath(stack, e.to)
				display := make([]string, len(props))
				for i, p := range props {
					display[i] = strings.Replace(p, "#", ".", 1)
				}
				diags = append(diags, domain.NewDiagnostic(
					domain.CodeCircularTrigger, domain.SeverityError, e.stmt,
					domain.TriggerCycleDetail{
						Model:      e.model,
						Properties: display,
						Trigger:    e.trigger,
						Statement:  e.stmt,
						StmtStart:  e.stmtStart,
						StmtEnd:    e.stmtEnd,
					},
					e.model, strings.Join(display, " -> "),
				))
			case white:
				visit(e.to)
			}
		}
		stack = stack[:len(stack)-1]
		color[key] = black
	}

	keys := make([]string, 0, len(adj))
	for _, e := range edges {
		keys = append(keys, e.from)
	}
	for _, k := range keys {
		if color[k] == white {
			visit(k)
		}
	}
	return diags, nil
}

// modelPropEdges extracts property modification edges from the model's
// trigger target methods, command execute methods and hook-named observer
// methods.
func (a *Analyzer) modelPropEdges(node *domain.ModelNode, decl *resolver.ModelDecl) []propEdge {
	props := make(map[string]bool)
	fieldOfProp := make(map[string]string)
	for _, m := range node.Members {
		if m.Kind == domain.MemberProperty {
			props[m.Name] = true
			fieldOfProp[lowerFirst(m.Name)] = m.Name
		}
	}

	// Which method reacts to which property.
	reactsTo := make(map[string][]string)
	for _, m := range node.Members {
		switch m.Kind {
		case domain.MemberTrigger, domain.MemberCallbackTrigger:
			if m.Target != "" && props[m.On] {
				reactsTo[m.Target] = append(reactsTo[m.Target], m.On)
			}
		case domain.MemberComponentTrigger:
			// Observer methods on the model named like the hook.
			reactsTo[m.Name] = append(reactsTo[m.Name], m.On)
		case domain.MemberCommand:
			// Command bodies run on user action, not on a property change;
			// they participate as modification sources via triggers that
			// invoke them, which reactsTo above already captures when the
			// execute method doubles as a trigger target.
		}
	}

	var out []propEdge
	for _, method := range decl.Methods {
		sources, ok := reactsTo[method.Name.Name]
		if !ok || method.Body == nil {
			continue
		}
		mods := a.modifications(decl, method.Body, fieldOfProp)
		for _, src := range sources {
			for _, mod := range mods {
				if !props[mod.prop] {
					continue
				}
				out = append(out, propEdge{
					from:      node.ID + "#" + src,
					to:        node.ID + "#" + mod.prop,
					model:     node.ID,
					trigger:   method.Name.Name,
					stmt:      mod.stmt,
					stmtStart: mod.stmtStart,
					stmtEnd:   mod.stmtEnd,
				})
			}
		}
	}
	return out
}

type modification struct {
	prop      string
	stmt      token.Position
	stmtStart int
	stmtEnd   int
}

// modifications finds statements that write a property: generated setter
// calls (m.SetX(...)) and direct backing-field assignments (m.x = ...).
func (a *Analyzer) modifications(decl *resolver.ModelDecl, body *ast.BlockStmt, fieldOfProp map[string]string) []modification {
	fset := a.res.Snapshot.Fset
	var out []modification

	record := func(stmt ast.Stmt, prop string) {
		start := fset.Position(stmt.Pos())
		out = append(out, modification{
			prop:      prop,
			stmt:      start,
			stmtStart: start.Offset,
			stmtEnd:   fset.Position(stmt.End()).Offset,
		})
	}

	var walkStmt func(stmt ast.Stmt)
	inspectLeaf := func(stmt ast.Stmt) {
		ast.Inspect(stmt, func(n ast.Node) bool {
			switch nn := n.(type) {
			case *ast.CallExpr:
				if sel, ok := nn.Fun.(*ast.SelectorExpr); ok {
					name := sel.Sel.Name
					if strings.HasPrefix(name, "Set") && len(name) > 3 {
						record(stmt, name[3:])
					}
				}
			case *ast.AssignStmt:
				for _, lhs := range nn.Lhs {
					if sel, ok := lhs.(*ast.SelectorExpr); ok {
						if prop, ok := fieldOfProp[sel.Sel.Name]; ok {
							record(stmt, prop)
						}
					}
				}
			}
			return true
		})
	}
	walkStmt = func(stmt ast.Stmt) {
		switch s := stmt.(type) {
		case *ast.BlockStmt:
			for _, inner := range s.List {
				walkStmt(inner)
			}
		case *ast.IfStmt:
			walkStmt(s.Body)
			if s.Else != nil {
				walkStmt(s.Else)
			}
		case *ast.ForStmt:
			walkStmt(s.Body)
		case *ast.RangeStmt:
			walkStmt(s.Body)
		case *ast.SwitchStmt:
			walkStmt(s.Body)
		case *ast.CaseClause:
			for _, inner := range s.Body {
				walkStmt(inner)
			}
		default:
			inspectLeaf(stmt)
		}
	}
	for _, stmt := range body.List {
		walkStmt(stmt)
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
