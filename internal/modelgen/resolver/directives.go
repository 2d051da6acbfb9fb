package resolver

import (
	"go/ast"
	"go/token"
	"strings"
)

// The directive namespace. Only comment lines of the form
// "//modelgen:<name> ..." are recognized; everything else is ignored.
const namespace = "modelgen:"

// Canonical directive names.
const (
	DirModel    = "model"
	DirProperty = "property"
	DirCommand  = "command"
	DirTrigger  = "trigger"
	DirHook     = "hook"
	DirRef      = "ref"
)

// aliases maps accepted spellings to canonical names. Resolution goes through
// this table only; suffix or substring matching is never used, so two
// spellings of one directive always resolve identically.
var aliases = map[string]string{
	"model":      DirModel,
	"property":   DirProperty,
	"observable": DirProperty,
	"command":    DirCommand,
	"trigger":    DirTrigger,
	"hook":       DirHook,
	"ref":        DirRef,
	"reference":  DirRef,
}

// Directive is one parsed //modelgen: line.
type Directive struct {
	// Name is the canonical directive name.
	Name string
	// Args holds key=value arguments.
	Args map[string]string
	// Flags holds bare arguments such as "async" or "abstract".
	Flags map[string]bool
	Pos   token.Pos
	// End is the position just past the directive's comment line, used by
	// fixes that remove the whole line.
	End token.Pos
}

// Arg returns the named argument or "".
func (d *Directive) Arg(key string) string { return d.Args[key] }

// Flag reports whether the bare flag is present.
func (d *Directive) Flag(name string) bool { return d.Flags[name] }

// parseDirectives extracts all recognized directives from a comment group.
// Unrecognized names inside the namespace are dropped; a misspelled directive
// simply does not exist, it never half-applies.
func parseDirectives(cg *ast.CommentGroup) []*Directive {
	if cg == nil {
		return nil
	}
	var out []*Directive
	for _, c := range cg.List {
		d := parseDirectiveLine(c)
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func parseDirectiveLine(c *ast.Comment) *Directive {
	text := c.Text
	if !strings.HasPrefix(text, "//") {
		return nil
	}
	body := strings.TrimPrefix(text, "//")
	if !strings.HasPrefix(body, namespace) {
		return nil
	}
	body = strings.TrimPrefix(body, namespace)

	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil
	}
	canonical, ok := aliases[fields[0]]
	if !ok {
		return nil
	}

	d := &Directive{
		Name:  canonical,
		Args:  make(map[string]string),
		Flags: make(map[string]bool),
		Pos:   c.Pos(),
		End:   c.End(),
	}
	for _, f := range fields[1:] {
		if k, v, found := strings.Cut(f, "="); found {
			d.Args[k] = v
		} else {
			d.Flags[f] = true
		}
	}
	return d
}

// ParseDirectives extracts all recognized directives from a comment group.
// Fix providers use it to re-locate the directive line a member came from.
func ParseDirectives(cg *ast.CommentGroup) []*Directive {
	return parseDirectives(cg)
}

// firstDirective returns the first directive with the given canonical name.
func firstDirective(ds []*Directive, name string) *Directive {
	for _, d := range ds {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// directivesNamed returns every directive with the given canonical name, in
// declaration order.
func directivesNamed(ds []*Directive, name string) []*Directive {
	var out []*Directive
	for _, d := range ds {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}
