// Package domain defines the data model shared by the modelgen pipeline:
// model nodes, reference edges, member descriptors, diagnostics and generated
// units. Everything here is built once per analysis pass and treated as
// immutable by downstream stages.
package domain

import (
	"go/token"
	"go/types"
)

// Scope is the declared DI lifetime of a model.
type Scope string

const (
	ScopeTransient Scope = "transient"
	ScopeScoped    Scope = "scoped"
	ScopeSingleton Scope = "singleton"
)

// rank orders scopes from narrowest to broadest.
func (s Scope) rank() int {
	switch s {
	case ScopeTransient:
		return 0
	case ScopeScoped:
		return 1
	default:
		return 2
	}
}

// NarrowerThan reports whether s is a narrower lifetime than other.
func (s Scope) NarrowerThan(other Scope) bool { return s.rank() < other.rank() }

// Narrowest returns the narrower of the two scopes.
func Narrowest(a, b Scope) Scope {
	if a.rank() <= b.rank() {
		return a
	}
	return b
}

// ParseScope maps a directive argument to a Scope. Unknown values fall back
// to the singleton default, matching the declared default lifetime.
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "transient":
		return ScopeTransient, true
	case "scoped":
		return ScopeScoped, true
	case "singleton", "":
		return ScopeSingleton, true
	}
	return ScopeSingleton, false
}

// MemberKind classifies a reactive member declaration.
type MemberKind string

const (
	MemberProperty         MemberKind = "property"
	MemberCommand          MemberKind = "command"
	MemberTrigger          MemberKind = "trigger"
	MemberCallbackTrigger  MemberKind = "callback-trigger"
	MemberComponentTrigger MemberKind = "component-trigger"
)

// AsyncMode names for trigger scheduling. The zero value means synchronous.
const (
	ModeSwitch     = "switch"
	ModeMerge      = "merge"
	ModeConcurrent = "concurrent"
)

// TypeParamInfo describes one declared type parameter of a model.
type TypeParamInfo struct {
	Name string
	// ConstraintText is the constraint as written at the declaration site,
	// or synthesized from type metadata for external models.
	ConstraintText string
	// TP is the underlying type parameter when the model was type-checked
	// in this snapshot; nil for metadata-only models.
	TP *types.TypeParam
}

// CtorParam is one parameter of a model constructor, in declared order.
type CtorParam struct {
	Index    int
	Name     string
	TypeText string
	// ModelID is set when the parameter's type is a model; empty otherwise.
	ModelID string
}

// CtorInfo describes the NewXxx constructor of a model.
type CtorInfo struct {
	Name   string
	Pos    token.Position
	Params []CtorParam
}

// MemberDescriptor is one reactive property, command or trigger declaration,
// flattened onto its owning model (members of embedded models reappear on
// every concrete embedder).
type MemberDescriptor struct {
	// Owner is the model the descriptor belongs to after flattening.
	Owner string
	// DeclaredOn is the model that textually declares the member. Equal to
	// Owner unless the member came in through embedding.
	DeclaredOn string

	Kind MemberKind
	Name string

	// ChangeKey is the qualified notification key, "Type.Member", using the
	// owning type's name even for inherited members.
	ChangeKey string

	// TypeText is the property's Go type as written; empty for non-properties.
	TypeText string
	// Type is the property's checked type, nil when the package did not
	// type-check. The setter's equality guard depends on it.
	Type types.Type

	// Execute and CanExecute name the command's methods.
	Execute    string
	CanExecute string

	// On is the property a trigger reacts to.
	On string
	// Target is the method a trigger invokes. For component triggers this is
	// the hook stub name on the companion type.
	Target string
	// Callback names a user callback for callback triggers.
	Callback string

	Async bool
	// Mode is one of ModeSwitch, ModeMerge, ModeConcurrent for async
	// triggers; empty for synchronous ones.
	Mode string

	DeclOrder int
	Pos       token.Position
}

// HookName derives the companion hook stub name for a trigger on prop.
func HookName(prop string) string { return "On" + prop + "Changed" }

// EdgeState classifies how far a reference edge got through resolution.
// Edges that fail a check are retained with the failing state so diagnostics
// can explain exactly why, never silently dropped.
type EdgeState int

const (
	EdgeResolved EdgeState = iota
	EdgeUnresolvedTarget
	EdgeArityMismatch
	EdgeConstraintMismatch
	EdgeOpenGenericMisuse
)

func (s EdgeState) String() string {
	switch s {
	case EdgeResolved:
		return "resolved"
	case EdgeUnresolvedTarget:
		return "unresolved target"
	case EdgeArityMismatch:
		return "arity mismatch"
	case EdgeConstraintMismatch:
		return "constraint mismatch"
	case EdgeOpenGenericMisuse:
		return "open generic misuse"
	}
	return "unknown"
}

// RefSite says where a reference was declared.
type RefSite int

const (
	SiteCtorParam RefSite = iota
	SiteField
)

// TypeArgBinding maps one type parameter of the referenced model to the
// argument supplied by the referencing side.
type TypeArgBinding struct {
	// ParamName is the referenced model's type parameter name.
	ParamName string
	// ArgText is the supplied argument as written.
	ArgText string
	// Arg is the type-checked argument when available.
	Arg types.Type
	// Forwarded marks an open-generic flow-through of one of the
	// referencing model's own type parameters.
	Forwarded bool
}

// ReferenceEdge is a declared dependency from one model to another.
type ReferenceEdge struct {
	From string
	To   string

	Site       RefSite
	ParamIndex int
	// RefName is the declared reference name (field name or constructor
	// parameter name) used to prefix forwarded change keys.
	RefName string

	Bindings []TypeArgBinding

	// Used reports whether the reference is read anywhere in method bodies.
	Used bool
	// TriggersOnly marks references declared solely to surface the
	// referenced model's triggers.
	TriggersOnly bool

	State EdgeState
	// StateDetail carries the specific mismatch reason for failing states.
	StateDetail string

	DeclOrder int
	Pos       token.Position
}

// ModelNode is one discovered annotated type.
type ModelNode struct {
	// ID is the qualified name "pkgpath.Type".
	ID      string
	Name    string
	PkgPath string
	PkgName string

	Scope Scope
	// Abstract models only contribute members through embedding; they get no
	// generated constructor wiring of their own.
	Abstract bool
	// External models come from an already-compiled package (detected via the
	// generated marker method rather than directives).
	External bool

	TypeParams []TypeParamInfo
	Members    []*MemberDescriptor
	Ctor       *CtorInfo

	// Obj and Named are the type-checker handles; nil for metadata-only
	// external models.
	Obj   *types.TypeName
	Named *types.Named

	DeclOrder int
	Pos       token.Position
}

// MembersOfKind returns the node's members of one kind, in declared order.
func (n *ModelNode) MembersOfKind(kind MemberKind) []*MemberDescriptor {
	var out []*MemberDescriptor
	for _, m := range n.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Member returns the named member, or nil.
func (n *ModelNode) Member(name string) *MemberDescriptor {
	for _, m := range n.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// GeneratedUnit is the emitted text for one model (or its companion
// component). Content is byte-deterministic for identical inputs; Hash is the
// sha256 fingerprint the cache uses to skip rewriting identical output.
type GeneratedUnit struct {
	ModelID   string
	FileName  string
	Content   string
	Companion bool
	Hash      string
}

// TextEdit is a byte-offset splice into one source file. Edits never touch
// bytes outside [Start, End), which is how fixes preserve sibling trivia.
type TextEdit struct {
	Path    string
	Start   int
	End     int
	NewText string
}

// FixAction is one named, independently applicable resolution for a
// diagnostic.
type FixAction struct {
	Title string
	Code  string
	Edits []TextEdit
	// Batchable actions are safe to apply across every instance of the
	// diagnostic in one pass.
	Batchable bool
}
