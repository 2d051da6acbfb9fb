package store

import (
	"go/token"
	"path/filepath"
	"testing"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), ".modelgen"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordPassAndHistory(t *testing.T) {
	s := newTestStore(t)

	units := []domain.GeneratedUnit{
		{ModelID: "example.com/app.Home", FileName: "home_modelgen.go", Hash: "aaa"},
		{ModelID: "example.com/app.Session", FileName: "session_component_modelgen.go", Hash: "bbb", Companion: true},
	}
	diags := []domain.Diagnostic{
		{Code: domain.CodeUnusedReference, Severity: domain.SeverityWarning, Message: "reference quiet on model Holder is never used"},
		{Code: domain.CodeScopeViolation, Severity: domain.SeverityError, Message: "scope violation", Pos: token.Position{Filename: "app.go", Line: 4, Column: 1}},
	}

	runID, err := s.RecordPass(2, units, diags)
	if err != nil {
		t.Fatalf("RecordPass: %v", err)
	}
	if runID == 0 {
		t.Fatal("expected a non-zero run id")
	}

	history, err := s.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 run, got %d", len(history))
	}
	run := history[0]
	if run.Models != 2 || run.Units != 2 {
		t.Errorf("unexpected run counts: %+v", run)
	}
	if run.Errors != 1 || run.Warnings != 1 {
		t.Errorf("expected 1 error and 1 warning, got %d/%d", run.Errors, run.Warnings)
	}
}

func TestUnitHashUpsert(t *testing.T) {
	s := newTestStore(t)

	unit := domain.GeneratedUnit{ModelID: "example.com/app.Home", FileName: "home_modelgen.go", Hash: "aaa"}
	if _, err := s.RecordPass(1, []domain.GeneratedUnit{unit}, nil); err != nil {
		t.Fatalf("RecordPass: %v", err)
	}

	hash, err := s.UnitHash(unit.ModelID, unit.FileName)
	if err != nil {
		t.Fatalf("UnitHash: %v", err)
	}
	if hash != "aaa" {
		t.Errorf("expected hash aaa, got %q", hash)
	}

	unit.Hash = "bbb"
	if _, err := s.RecordPass(1, []domain.GeneratedUnit{unit}, nil); err != nil {
		t.Fatalf("RecordPass (update): %v", err)
	}
	hash, err = s.UnitHash(unit.ModelID, unit.FileName)
	if err != nil {
		t.Fatalf("UnitHash: %v", err)
	}
	if hash != "bbb" {
		t.Errorf("expected updated hash bbb, got %q", hash)
	}
}

func TestUnitHashUnknownUnit(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.UnitHash("example.com/app.Ghost", "ghost_modelgen.go")
	if err != nil {
		t.Fatalf("UnitHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash for unknown unit, got %q", hash)
	}
}

func TestDiagnosticsPerRun(t *testing.T) {
	s := newTestStore(t)

	first, err := s.RecordPass(1, nil, []domain.Diagnostic{
		{Code: domain.CodeCircularReference, Severity: domain.SeverityError, Message: "circular model reference"},
	})
	if err != nil {
		t.Fatalf("RecordPass: %v", err)
	}
	second, err := s.RecordPass(1, nil, []domain.Diagnostic{
		{Code: domain.CodeUnusedTrigger, Severity: domain.SeverityWarning, Message: "unused trigger"},
		{Code: domain.CodeUnusedReference, Severity: domain.SeverityWarning, Message: "unused reference"},
	})
	if err != nil {
		t.Fatalf("RecordPass: %v", err)
	}

	diags, err := s.Diagnostics(first)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(diags) != 1 || diags[0].Code != domain.CodeCircularReference {
		t.Errorf("unexpected diagnostics for first run: %+v", diags)
	}

	diags, err = s.Diagnostics(second)
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(diags))
	}
	if diags[0].Code != domain.CodeUnusedTrigger || diags[1].Code != domain.CodeUnusedReference {
		t.Errorf("diagnostics out of insertion order: %+v", diags)
	}
	if diags[0].Severity != domain.SeverityWarning {
		t.Errorf("severity not restored: %q", diags[0].Severity)
	}
}
