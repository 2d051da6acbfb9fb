// Package emit renders generated source for resolved models. Emission is a
// pure function of the node, its members and its validated edges: identical
// input always produces byte-identical output. Every sequence that reaches
// the output is walked in declared order; nothing iterates a map.
package emit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"go/format"
	"go/types"
	"strings"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
)

// DefaultRuntimeImport is the import path generated code compiles against.
const DefaultRuntimeImport = "github.com/reactiveui/modelgen/reactive"

// Emitter renders generated units.
type Emitter struct {
	// RuntimeImport overrides the runtime package import path.
	RuntimeImport string
}

// New returns an emitter with the default runtime import.
func New() *Emitter { return &Emitter{RuntimeImport: DefaultRuntimeImport} }

// Emit produces the generated unit(s) for one model: the model file and,
// when the model surfaces hooks, a companion component file. External models
// emit nothing (their generated code lives in their own package). A
// formatting failure degrades to a diagnostic carrying the raw text.
func (e *Emitter) Emit(node *domain.ModelNode, g *graph.Graph) ([]domain.GeneratedUnit, []domain.Diagnostic) {
	if node.External {
		return nil, nil
	}
	var units []domain.GeneratedUnit
	var diags []domain.Diagnostic

	content, err := e.modelFile(node, g)
	unit := domain.GeneratedUnit{
		ModelID:  node.ID,
		FileName: strings.ToLower(node.Name) + "_modelgen.go",
		Content:  content,
		Hash:     hash(content),
	}
	if err != nil {
		diags = append(diags, domain.NewDiagnostic(
			domain.CodeEmitFailed, domain.SeverityWarning, node.Pos,
			domain.EmitDetail{Model: node.ID, Err: err.Error()},
			node.ID, err.Error(),
		))
	}
	units = append(units, unit)

	if hooks := Hooks(node); len(hooks) > 0 && !node.Abstract {
		content, err := e.componentFile(node, hooks)
		unit := domain.GeneratedUnit{
			ModelID:   node.ID,
			FileName:  strings.ToLower(node.Name) + "_component_modelgen.go",
			Content:   content,
			Companion: true,
			Hash:      hash(content),
		}
		if err != nil {
			diags = append(diags, domain.NewDiagnostic(
				domain.CodeEmitFailed, domain.SeverityWarning, node.Pos,
				domain.EmitDetail{Model: node.ID, Err: err.Error()},
				node.ID, err.Error(),
			))
		}
		units = append(units, unit)
	}
	return units, diags
}

// Hook describes one companion hook stub.
type Hook struct {
	Name string
	On   string
	Key  string
}

// Hooks returns the companion hook set of a model: one hook per trigger (own
// and inherited) plus the explicitly declared ones, deduplicated in declared
// order.
func Hooks(node *domain.ModelNode) []Hook {
	seen := make(map[string]bool)
	var out []Hook
	for _, m := range node.Members {
		switch m.Kind {
		case domain.MemberTrigger, domain.MemberCallbackTrigger, domain.MemberComponentTrigger:
			name := domain.HookName(m.On)
			if m.Kind == domain.MemberComponentTrigger && m.Name != "" {
				name = m.Name
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, Hook{Name: name, On: m.On, Key: node.Name + "." + m.On})
		}
	}
	return out
}

func hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// writer is a small indented line writer; output is gofmt'd afterwards, so
// its only job is getting the tokens out in order.
type writer struct {
	buf    bytes.Buffer
	indent int
}

func (w *writer) line(format string, args ...any) {
	for i := 0; i < w.indent; i++ {
		w.buf.WriteByte('\t')
	}
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func (w *writer) blank() { w.buf.WriteByte('\n') }

// typeParamsDecl renders "[T any, U comparable]" or "".
func typeParamsDecl(node *domain.ModelNode) string {
	if len(node.TypeParams) == 0 {
		return ""
	}
	parts := make([]string, len(node.TypeParams))
	for i, tp := range node.TypeParams {
		c := tp.ConstraintText
		if c == "" {
			c = "any"
		}
		parts[i] = tp.Name + " " + c
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// typeArgs renders "[T, U]" or "".
func typeArgs(node *domain.ModelNode) string {
	if len(node.TypeParams) == 0 {
		return ""
	}
	parts := make([]string, len(node.TypeParams))
	for i, tp := range node.TypeParams {
		parts[i] = tp.Name
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// selfType renders the instantiated receiver type, e.g. "ListModel[T]".
func selfType(node *domain.ModelNode) string { return node.Name + typeArgs(node) }

func (e *Emitter) modelFile(node *domain.ModelNode, g *graph.Graph) (string, error) {
	w := &writer{}
	w.line("// Code generated by modelgen. DO NOT EDIT.")
	w.blank()
	w.line("package %s", pkgName(node))
	w.blank()
	needsCtx := !node.Abstract
	w.line("import (")
	w.indent++
	if needsCtx {
		w.line("%q", "context")
	}
	w.blank()
	w.line("%q", e.runtime())
	w.indent--
	w.line(")")
	w.blank()

	self := selfType(node)
	recv := "m *" + self

	// Scope constant and marker keep the model recognizable from export
	// data after compilation.
	w.line("// %s%s records the declared lifetime of %s.", node.Name, "ModelgenScope", node.Name)
	w.line("const %sModelgenScope = %q", node.Name, string(node.Scope))
	w.blank()

	props := node.MembersOfKind(domain.MemberProperty)
	hooks := Hooks(node)

	w.line("// modelgenModel marks %s as a generated reactive model.", node.Name)
	w.line("func (%s) modelgenModel() reactive.ModelMeta {", recv)
	w.indent++
	w.line("return reactive.ModelMeta{")
	w.indent++
	w.line("Name:  %q,", node.ID)
	w.line("Scope: %sModelgenScope,", node.Name)
	if len(props) > 0 {
		w.line("ChangeKeys: []reactive.ChangeKey{")
		w.indent++
		for _, p := range props {
			w.line("%q,", p.ChangeKey)
		}
		w.indent--
		w.line("},")
	}
	if len(hooks) > 0 {
		w.line("Hooks: []string{")
		w.indent++
		for _, h := range hooks {
			w.line("%q,", h.Name)
		}
		w.indent--
		w.line("},")
	}
	w.indent--
	w.line("}")
	w.indent--
	w.line("}")
	w.blank()

	for _, p := range props {
		e.property(w, node, recv, p)
	}
	for _, c := range node.MembersOfKind(domain.MemberCommand) {
		e.command(w, node, recv, c)
	}
	if !node.Abstract {
		e.wire(w, node, g)
	}

	return gofmt(w.buf.Bytes())
}

// property emits the getter and the change-guarded setter. Inherited
// properties delegate to the declaring type's promoted setter and re-publish
// under the concrete type's key, exactly as if redeclared here.
func (e *Emitter) property(w *writer, node *domain.ModelNode, recv string, p *domain.MemberDescriptor) {
	field := lowerFirst(p.Name)
	if p.DeclaredOn != node.ID {
		baseName := typeName(p.DeclaredOn)
		w.line("// %s returns the current value of %s.", p.Name, p.Name)
		w.line("func (%s) %s() %s { return m.%s.%s() }", recv, p.Name, p.TypeText, baseName, p.Name)
		w.blank()
		w.line("// Set%s updates %s and publishes %q.", p.Name, p.Name, p.ChangeKey)
		w.line("func (%s) Set%s(v %s) {", recv, p.Name, p.TypeText)
		w.indent++
		w.line("m.%s.Set%s(v)", baseName, p.Name)
		w.line("m.Publish(%q)", p.ChangeKey)
		w.indent--
		w.line("}")
		w.blank()
		return
	}
	w.line("// %s returns the current value of %s.", p.Name, p.Name)
	w.line("func (%s) %s() %s { return m.%s }", recv, p.Name, p.TypeText, field)
	w.blank()
	// Slice, map and func properties have no ==; their setters publish
	// unconditionally.
	if comparableProperty(p) {
		w.line("// Set%s updates %s and publishes %q when the value changes.", p.Name, p.Name, p.ChangeKey)
		w.line("func (%s) Set%s(v %s) {", recv, p.Name, p.TypeText)
		w.indent++
		w.line("if m.%s == v {", field)
		w.indent++
		w.line("return")
		w.indent--
		w.line("}")
	} else {
		w.line("// Set%s updates %s and publishes %q.", p.Name, p.Name, p.ChangeKey)
		w.line("func (%s) Set%s(v %s) {", recv, p.Name, p.TypeText)
		w.indent++
	}
	w.line("m.%s = v", field)
	w.line("m.Publish(%q)", p.ChangeKey)
	w.indent--
	w.line("}")
	w.blank()
}

// comparableProperty reports whether the property's type supports ==. Without
// type information the declared text decides.
func comparableProperty(p *domain.MemberDescriptor) bool {
	if p.Type != nil {
		return types.Comparable(p.Type)
	}
	text := strings.TrimSpace(p.TypeText)
	return !strings.HasPrefix(text, "[]") &&
		!strings.HasPrefix(text, "map[") &&
		!strings.HasPrefix(text, "func")
}

func (e *Emitter) command(w *writer, node *domain.ModelNode, recv string, c *domain.MemberDescriptor) {
	w.line("// %s returns the command bound to %s.", c.Name, c.Execute)
	w.line("func (%s) %s() *reactive.Command {", recv, c.Name)
	w.indent++
	w.line("return m.Command(%q, func() *reactive.Command {", c.Execute)
	w.indent++
	can := "nil"
	if c.CanExecute != "" {
		can = "m." + c.CanExecute
	}
	w.line("return reactive.NewCommand(m.%s, %s)", c.Execute, can)
	w.indent--
	w.line("})")
	w.indent--
	w.line("}")
	w.blank()
}

// wire emits the Wire function: attach, trigger subscriptions and reference
// forwarding. Triggers subscribe in declared order; async triggers get one
// runner each, cancel-and-restart by default.
func (e *Emitter) wire(w *writer, node *domain.ModelNode, g *graph.Graph) {
	self := selfType(node)
	w.line("// Wire%s attaches m to n, then registers trigger subscriptions and", node.Name)
	w.line("// reference forwarding. Detach the model to drop them again.")
	w.line("func Wire%s%s(ctx context.Context, m *%s, n reactive.Notifier) {", node.Name, typeParamsDecl(node), self)
	w.indent++
	w.line("m.Attach(n)")

	for _, t := range node.Members {
		switch t.Kind {
		case domain.MemberTrigger, domain.MemberCallbackTrigger:
		default:
			continue
		}
		key := node.Name + "." + t.On
		if t.Async {
			mode := asyncMode(t.Mode)
			runner := "runner" + t.Name
			w.line("%s := reactive.NewAsyncRunner(%s)", runner, mode)
			w.line("m.Watch(%q, func(reactive.ChangeKey) {", key)
			w.indent++
			w.line("%s.Run(ctx, func(ctx context.Context) {", runner)
			w.indent++
			w.line("m.%s(ctx)", t.Target)
			e.callback(w, t)
			w.indent--
			w.line("})")
			w.indent--
			w.line("})")
		} else {
			w.line("m.Watch(%q, func(reactive.ChangeKey) {", key)
			w.indent++
			w.line("m.%s()", t.Target)
			e.callback(w, t)
			w.indent--
			w.line("})")
		}
	}

	for _, edge := range g.EdgesFrom(node.ID) {
		if edge.State != domain.EdgeResolved {
			continue
		}
		target, ok := g.Node(edge.To)
		if !ok {
			continue
		}
		for _, p := range target.MembersOfKind(domain.MemberProperty) {
			forwarded := node.Name + "." + edge.RefName + "." + p.Name
			w.line("m.Watch(%q, func(reactive.ChangeKey) {", p.ChangeKey)
			w.indent++
			w.line("n.Publish(%q)", forwarded)
			w.indent--
			w.line("})")
		}
	}

	w.indent--
	w.line("}")
	w.blank()
}

func (e *Emitter) callback(w *writer, t *domain.MemberDescriptor) {
	if t.Kind == domain.MemberCallbackTrigger && t.Callback != "" {
		w.line("m.%s()", t.Callback)
	}
}

func (e *Emitter) componentFile(node *domain.ModelNode, hooks []Hook) (string, error) {
	w := &writer{}
	w.line("// Code generated by modelgen. DO NOT EDIT.")
	w.blank()
	w.line("package %s", pkgName(node))
	w.blank()
	w.line("import (")
	w.indent++
	w.line("%q", e.runtime())
	w.indent--
	w.line(")")
	w.blank()

	comp := node.Name + "Component"
	self := comp + typeArgs(node)
	w.line("// %s hosts the generated hook stubs for %s. Embed it in a", comp, node.Name)
	w.line("// component type and shadow the hooks you need.")
	w.line("type %s%s struct {", comp, typeParamsDecl(node))
	w.indent++
	w.line("Model *%s", selfType(node))
	w.indent--
	w.line("}")
	w.blank()

	w.line("// Bind%s subscribes the component's hooks to the model's change keys.", comp)
	w.line("func Bind%s%s(c *%s, n reactive.Notifier) []reactive.Subscription {", comp, typeParamsDecl(node), self)
	w.indent++
	w.line("subs := make([]reactive.Subscription, 0, %d)", len(hooks))
	for _, h := range hooks {
		w.line("subs = append(subs, n.Subscribe(%q, func(reactive.ChangeKey) {", h.Key)
		w.indent++
		w.line("c.%s()", h.Name)
		w.indent--
		w.line("}))")
	}
	w.line("return subs")
	w.indent--
	w.line("}")
	w.blank()

	for _, h := range hooks {
		w.line("// %s reacts to %s.", h.Name, h.Key)
		w.line("func (c *%s) %s() {}", self, h.Name)
		w.blank()
	}
	return gofmt(w.buf.Bytes())
}

func (e *Emitter) runtime() string {
	if e.RuntimeImport != "" {
		return e.RuntimeImport
	}
	return DefaultRuntimeImport
}

func asyncMode(mode string) string {
	switch mode {
	case domain.ModeMerge:
		return "reactive.ModeMerge"
	case domain.ModeConcurrent:
		return "reactive.ModeConcurrent"
	default:
		return "reactive.ModeSwitch"
	}
}

// gofmt formats the buffer; on failure the raw text is returned with the
// error so the caller can surface both.
func gofmt(src []byte) (string, error) {
	out, err := format.Source(src)
	if err != nil {
		return string(src), err
	}
	return string(out), nil
}

func pkgName(node *domain.ModelNode) string {
	if node.PkgName != "" {
		return node.PkgName
	}
	return lastSegment(node.PkgPath)
}

func typeName(id string) string { return id[strings.LastIndex(id, ".")+1:] }

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
