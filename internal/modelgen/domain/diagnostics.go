package domain

import (
	"fmt"
	"go/token"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Diagnostic codes. The numeric block groups related rules: 1xxx cycles,
// 2xxx scope, 3xxx usage, 4xxx generics/resolution, 5xxx emission.
const (
	CodeCircularReference = "MG1001"
	CodeCircularTrigger   = "MG1002"
	CodeScopeViolation    = "MG2001"
	CodeSharedNotSingle   = "MG2002"
	CodeUnusedReference   = "MG3001"
	CodeUnusedTrigger     = "MG3002"
	CodeArityMismatch     = "MG4001"
	CodeConstraintBroken  = "MG4002"
	CodeOpenGenericMisuse = "MG4003"
	CodeUnresolvedRef     = "MG4004"
	CodeEmitFailed        = "MG5001"
)

// messageFormats holds the human-readable template per code. Positional
// arguments are filled by the engine when it raises the diagnostic.
var messageFormats = map[string]string{
	CodeCircularReference: "circular model reference: %s",
	CodeCircularTrigger:   "circular trigger chain on %s: %s",
	CodeScopeViolation:    "model %s is declared %s but references %s which requires scope %s",
	CodeSharedNotSingle:   "model %s is %s but is referenced by %d models; shared models must be singleton",
	CodeUnusedReference:   "reference %s on model %s is never used",
	CodeUnusedTrigger:     "trigger %s on model %s has no observable effect",
	CodeArityMismatch:     "model %s references %s with %d type argument(s), want %d",
	CodeConstraintBroken:  "type argument %s for parameter %s of %s does not satisfy constraint %s",
	CodeOpenGenericMisuse: "model %s references open generic %s without forwarding its type parameters",
	CodeUnresolvedRef:     "reference %s on model %s could not be resolved: %s",
	CodeEmitFailed:        "generated output for %s could not be formatted: %s",
}

// Format renders the message template for code with args.
func Format(code string, args ...any) string {
	f, ok := messageFormats[code]
	if !ok {
		return fmt.Sprintf("%s (%v)", code, args)
	}
	return fmt.Sprintf(f, args...)
}

// Detail is the typed payload attached to a diagnostic. Fix providers
// pattern-match on the concrete variant instead of probing string keys.
type Detail interface{ isDetail() }

// CycleDetail describes a model-reference cycle. Path lists the model IDs in
// traversal order; the diagnostic is attached at the edge that closes the
// cycle (ClosingFrom -> ClosingTo).
type CycleDetail struct {
	Path        []string
	ClosingFrom string
	ClosingTo   string
}

// TriggerCycleDetail describes a circular trigger chain. Statement is the
// position of the offending modification so a fix can remove exactly that
// statement.
type TriggerCycleDetail struct {
	Model      string
	Properties []string
	Trigger    string
	Statement  token.Position
	// StmtStart and StmtEnd are the byte offsets of the offending statement
	// in its file, including the trailing newline.
	StmtStart int
	StmtEnd   int
}

// ScopeDetail carries the computed required scope for a scope violation.
type ScopeDetail struct {
	Model    string
	Declared Scope
	Required Scope
	// Via is the referenced model that forced the requirement.
	Via string
}

// SharedScopeDetail flags a non-singleton model consumed from several models.
type SharedScopeDetail struct {
	Model     string
	Declared  Scope
	Consumers []string
}

// UnusedRefDetail identifies a declared-but-unused reference.
type UnusedRefDetail struct {
	Model   string
	RefName string
	Site    RefSite
	// ParamIndex is meaningful for constructor-parameter references.
	ParamIndex int
}

// UnusedTriggerDetail identifies a trigger with no observable effect.
type UnusedTriggerDetail struct {
	Model  string
	Member string
}

// ArityDetail carries everything the add-type-parameters fix needs: the
// missing parameters with their constraint clauses copied verbatim from the
// referenced declaration (or synthesized from metadata).
type ArityDetail struct {
	From    string
	To      string
	Want    int
	Got     int
	Missing []TypeParamInfo
}

// ConstraintDetail names the single violated constraint.
type ConstraintDetail struct {
	From       string
	To         string
	Param      string
	Arg        string
	Constraint string
}

// OpenGenericDetail flags an unbound open-generic reference.
type OpenGenericDetail struct {
	From string
	To   string
}

// UnresolvedRefDetail explains a reference whose target never resolved.
type UnresolvedRefDetail struct {
	Model   string
	RefName string
	Reason  string
}

// EmitDetail reports a formatting failure for one generated unit.
type EmitDetail struct {
	Model string
	Err   string
}

func (CycleDetail) isDetail()         {}
func (TriggerCycleDetail) isDetail()  {}
func (ScopeDetail) isDetail()         {}
func (SharedScopeDetail) isDetail()   {}
func (UnusedRefDetail) isDetail()     {}
func (UnusedTriggerDetail) isDetail() {}
func (ArityDetail) isDetail()         {}
func (ConstraintDetail) isDetail()    {}
func (OpenGenericDetail) isDetail()   {}
func (UnresolvedRefDetail) isDetail() {}
func (EmitDetail) isDetail()          {}

// Diagnostic is one advisory finding. The pipeline never aborts on
// diagnostics; emission degrades per-node instead.
type Diagnostic struct {
	Code     string
	Severity Severity
	Message  string
	Pos      token.Position
	Detail   Detail
}

// NewDiagnostic builds a diagnostic with the formatted message for code.
func NewDiagnostic(code string, sev Severity, pos token.Position, detail Detail, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: sev,
		Message:  Format(code, args...),
		Pos:      pos,
		Detail:   detail,
	}
}

func (d Diagnostic) String() string {
	loc := d.Pos.String()
	if !d.Pos.IsValid() {
		loc = "-"
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, d.Severity, d.Code, d.Message)
}
