package fix

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
)

func defaultProviders() []Provider {
	return []Provider{
		&unusedRefProvider{},
		&unusedTriggerProvider{},
		&scopeProvider{},
		&arityProvider{},
		&triggerCycleProvider{},
		&circularRefProvider{},
	}
}

// lineSpan expands offset to the whole enclosing line including its newline.
func lineSpan(src []byte, offset int) (int, int) {
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	if end < len(src) {
		end++
	}
	return start, end
}

// removeLineEdit deletes the full source line containing pos.
func removeLineEdit(ctx *Context, pos token.Pos) (domain.TextEdit, bool) {
	p := ctx.Res.Snapshot.Fset.Position(pos)
	src, ok := ctx.Source(p.Filename)
	if !ok || p.Offset > len(src) {
		return domain.TextEdit{}, false
	}
	start, end := lineSpan(src, p.Offset)
	return domain.TextEdit{Path: p.Filename, Start: start, End: end}, true
}

// --- MG3001: unused reference ---

type unusedRefProvider struct{}

func (*unusedRefProvider) Codes() []string { return []string{domain.CodeUnusedReference} }

func (*unusedRefProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.UnusedRefDetail)
	if !ok {
		return nil
	}
	decl := ctx.Res.Decls[detail.Model]
	if decl == nil {
		return nil
	}
	switch detail.Site {
	case domain.SiteField:
		for _, ref := range decl.Refs {
			if ref.Name != detail.RefName {
				continue
			}
			var actions []domain.FixAction
			if edit, ok := removeLineEdit(ctx, ref.Directive.Pos); ok {
				actions = append(actions, domain.FixAction{
					Title:     "Remove reference directive from " + detail.RefName,
					Code:      d.Code,
					Edits:     []domain.TextEdit{edit},
					Batchable: true,
				})
			}
			if edit, ok := removeLineEdit(ctx, ref.Field.Pos()); ok {
				actions = append(actions, domain.FixAction{
					Title: "Remove field " + detail.RefName,
					Code:  d.Code,
					Edits: []domain.TextEdit{edit},
				})
			}
			return actions
		}
	case domain.SiteCtorParam:
		if edit, ok := removeCtorParam(ctx, decl, detail.ParamIndex); ok {
			return []domain.FixAction{{
				Title: "Remove constructor parameter " + detail.RefName,
				Code:  d.Code,
				Edits: []domain.TextEdit{edit},
			}}
		}
	}
	return nil
}

// removeCtorParam splices one parameter out of the constructor signature,
// taking the separating comma with it and nothing else.
func removeCtorParam(ctx *Context, decl *resolver.ModelDecl, index int) (domain.TextEdit, bool) {
	if decl.Ctor == nil {
		return domain.TextEdit{}, false
	}
	fset := ctx.Res.Snapshot.Fset
	fields := decl.Ctor.Type.Params.List

	idx := 0
	for fi, field := range fields {
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for ni := range names {
			if idx != index {
				idx++
				continue
			}
			var startPos, endPos token.Pos
			if len(field.Names) > 1 {
				// Shared type field: drop just the name and its comma.
				name := field.Names[ni]
				if ni < len(field.Names)-1 {
					startPos, endPos = name.Pos(), field.Names[ni+1].Pos()
				} else {
					startPos, endPos = field.Names[ni-1].End(), name.End()
				}
			} else {
				switch {
				case fi < len(fields)-1:
					startPos, endPos = field.Pos(), fields[fi+1].Pos()
				case fi > 0:
					startPos, endPos = fields[fi-1].End(), field.End()
				default:
					startPos, endPos = field.Pos(), field.End()
				}
			}
			start := fset.Position(startPos)
			end := fset.Position(endPos)
			if start.Filename == "" || start.Filename != end.Filename {
				return domain.TextEdit{}, false
			}
			return domain.TextEdit{Path: start.Filename, Start: start.Offset, End: end.Offset}, true
		}
	}
	return domain.TextEdit{}, false
}

// --- MG3002: unused trigger ---

type unusedTriggerProvider struct{}

func (*unusedTriggerProvider) Codes() []string { return []string{domain.CodeUnusedTrigger} }

func (*unusedTriggerProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.UnusedTriggerDetail)
	if !ok {
		return nil
	}
	node := ctx.Res.ByID[detail.Model]
	decl := ctx.Res.Decls[detail.Model]
	if node == nil || decl == nil {
		return nil
	}
	member := node.Member(detail.Member)
	if member == nil {
		return nil
	}
	dir := findMemberDirective(decl, member)
	if dir == nil {
		return nil
	}
	edit, ok := removeLineEdit(ctx, dir.Pos)
	if !ok {
		return nil
	}
	return []domain.FixAction{{
		Title:     "Remove trigger directive " + detail.Member,
		Code:      d.Code,
		Edits:     []domain.TextEdit{edit},
		Batchable: true,
	}}
}

// findMemberDirective locates the directive line that declared the member.
func findMemberDirective(decl *resolver.ModelDecl, m *domain.MemberDescriptor) *resolver.Directive {
	if m.Kind == domain.MemberComponentTrigger {
		for _, dir := range decl.Directives {
			if dir.Name == resolver.DirHook && dir.Arg("on") == m.On {
				return dir
			}
		}
		return nil
	}
	for _, method := range decl.Methods {
		if method.Name.Name != m.Target {
			continue
		}
		for _, dir := range parseMethodDirectives(method) {
			if dir.Name == resolver.DirTrigger && dir.Arg("on") == m.On {
				return dir
			}
		}
	}
	return nil
}

func parseMethodDirectives(method *ast.FuncDecl) []*resolver.Directive {
	return resolver.ParseDirectives(method.Doc)
}

// --- MG2001: scope violation ---

type scopeProvider struct{}

func (*scopeProvider) Codes() []string { return []string{domain.CodeScopeViolation} }

func (*scopeProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.ScopeDetail)
	if !ok {
		return nil
	}
	decl := ctx.Res.Decls[detail.Model]
	if decl == nil {
		return nil
	}
	var modelDir *resolver.Directive
	for _, dir := range decl.Directives {
		if dir.Name == resolver.DirModel {
			modelDir = dir
			break
		}
	}
	if modelDir == nil {
		return nil
	}
	p := ctx.Res.Snapshot.Fset.Position(modelDir.Pos)
	src, ok := ctx.Source(p.Filename)
	if !ok {
		return nil
	}
	start, end := lineSpan(src, p.Offset)
	line := string(src[start:end])
	newline := ""
	if strings.HasSuffix(line, "\n") {
		line = strings.TrimSuffix(line, "\n")
		newline = "\n"
	}
	replacement, ok := rewriteScopeArg(line, string(detail.Required))
	if !ok {
		return nil
	}
	return []domain.FixAction{{
		Title:     fmt.Sprintf("Change scope of %s to %s", detail.Model, detail.Required),
		Code:      d.Code,
		Edits:     []domain.TextEdit{{Path: p.Filename, Start: start, End: end, NewText: replacement + newline}},
		Batchable: true,
	}}
}

// rewriteScopeArg swaps (or appends) the scope= argument on a model
// directive line, leaving everything else on the line untouched.
func rewriteScopeArg(line, scope string) (string, bool) {
	if !strings.Contains(line, "modelgen:model") {
		return "", false
	}
	if i := strings.Index(line, "scope="); i >= 0 {
		j := i + len("scope=")
		for j < len(line) && line[j] != ' ' && line[j] != '\t' {
			j++
		}
		return line[:i] + "scope=" + scope + line[j:], true
	}
	return line + " scope=" + scope, true
}

// --- MG4001: arity mismatch ---

type arityProvider struct{}

func (*arityProvider) Codes() []string { return []string{domain.CodeArityMismatch} }

// Fixes offers to add the missing type parameters to the referencing
// declaration, copying the referenced declaration's constraint clauses
// verbatim (or their metadata-synthesized form for external models).
func (*arityProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.ArityDetail)
	if !ok || len(detail.Missing) == 0 {
		return nil
	}
	decl := ctx.Res.Decls[detail.From]
	if decl == nil {
		return nil
	}
	fset := ctx.Res.Snapshot.Fset

	clauses := make([]string, len(detail.Missing))
	for i, tp := range detail.Missing {
		c := tp.ConstraintText
		if c == "" {
			c = "any"
		}
		clauses[i] = tp.Name + " " + c
	}
	joined := strings.Join(clauses, ", ")

	var edit domain.TextEdit
	if decl.Spec.TypeParams != nil {
		closing := fset.Position(decl.Spec.TypeParams.Closing)
		if closing.Filename == "" {
			return nil
		}
		edit = domain.TextEdit{Path: closing.Filename, Start: closing.Offset, End: closing.Offset, NewText: ", " + joined}
	} else {
		nameEnd := fset.Position(decl.Spec.Name.End())
		if nameEnd.Filename == "" {
			return nil
		}
		edit = domain.TextEdit{Path: nameEnd.Filename, Start: nameEnd.Offset, End: nameEnd.Offset, NewText: "[" + joined + "]"}
	}
	return []domain.FixAction{{
		Title:     fmt.Sprintf("Add missing type parameters to %s", detail.From),
		Code:      d.Code,
		Edits:     []domain.TextEdit{edit},
		Batchable: true,
	}}
}

// --- MG1002: circular trigger chain ---

type triggerCycleProvider struct{}

func (*triggerCycleProvider) Codes() []string { return []string{domain.CodeCircularTrigger} }

// Fixes removes exactly the statement performing the offending modification.
// Resolving a trigger cycle is a judgment call, so this provider never
// participates in batch fixing.
func (*triggerCycleProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.TriggerCycleDetail)
	if !ok || detail.Statement.Filename == "" {
		return nil
	}
	src, ok := ctx.Source(detail.Statement.Filename)
	if !ok || detail.StmtEnd > len(src) || detail.StmtStart >= detail.StmtEnd {
		return nil
	}
	start, _ := lineSpan(src, detail.StmtStart)
	_, end := lineSpan(src, detail.StmtEnd-1)
	return []domain.FixAction{{
		Title: "Remove the modification in " + detail.Trigger + " that closes the cycle",
		Code:  d.Code,
		Edits: []domain.TextEdit{{Path: detail.Statement.Filename, Start: start, End: end}},
	}}
}

// --- MG1001: circular model reference ---

type circularRefProvider struct{}

func (*circularRefProvider) Codes() []string { return []string{domain.CodeCircularReference} }

func (*circularRefProvider) Fixes(d domain.Diagnostic, ctx *Context) []domain.FixAction {
	detail, ok := d.Detail.(domain.CycleDetail)
	if !ok {
		return nil
	}
	node := ctx.Res.ByID[detail.ClosingFrom]
	decl := ctx.Res.Decls[detail.ClosingFrom]
	if node == nil || decl == nil {
		return nil
	}

	// Field-site reference to the closing target.
	targetName := detail.ClosingTo[strings.LastIndex(detail.ClosingTo, ".")+1:]
	for _, ref := range decl.Refs {
		if baseTypeName(ref.Field.Type) != targetName {
			continue
		}
		if edit, ok := removeLineEdit(ctx, ref.Field.Pos()); ok {
			return []domain.FixAction{{
				Title: fmt.Sprintf("Remove reference from %s to %s", detail.ClosingFrom, detail.ClosingTo),
				Code:  d.Code,
				Edits: []domain.TextEdit{edit},
			}}
		}
	}

	// Constructor-parameter reference.
	if node.Ctor != nil {
		for _, param := range node.Ctor.Params {
			if param.ModelID != detail.ClosingTo {
				continue
			}
			if edit, ok := removeCtorParam(ctx, decl, param.Index); ok {
				return []domain.FixAction{{
					Title: fmt.Sprintf("Remove constructor parameter %s closing the cycle", param.Name),
					Code:  d.Code,
					Edits: []domain.TextEdit{edit},
				}}
			}
		}
	}
	return nil
}

func baseTypeName(expr ast.Expr) string {
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
