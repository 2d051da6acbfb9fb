package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGeneratePass runs an end-to-end pass over a scratch module: load, resolve,
// analyze, emit, write. It verifies that:
// 1. Annotated models produce generated units next to their source.
// 2. Diagnostics surface without aborting emission.
// 3. A second pass is a no-op because the unit hashes match.
func TestGeneratePass(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/scratch\n\ngo 1.24\n")
	writeFile(t, filepath.Join(root, "app", "app.go"), `package app

//modelgen:model
//modelgen:hook on=Token
type Session struct {
	//modelgen:property
	token string
}

//modelgen:model scope=scoped
type Home struct {
	//modelgen:property
	title string

	//modelgen:ref
	session *Session
}
`)

	pass, _, err := runPass(context.Background(), root)
	if err != nil {
		t.Fatalf("runPass: %v", err)
	}

	if len(pass.Result.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(pass.Result.Models))
	}
	if pass.HasErrors() {
		for _, d := range pass.Diagnostics {
			t.Logf("diagnostic: %s", d)
		}
		t.Fatal("clean fixture produced error diagnostics")
	}
	if len(pass.Units) != 3 {
		t.Fatalf("expected 3 generated units (2 models + 1 companion), got %d", len(pass.Units))
	}

	written, err := pass.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("expected 3 files written, got %d", len(written))
	}
	for _, path := range written {
		if filepath.Dir(path) != filepath.Join(root, "app") {
			t.Errorf("unit written away from its source: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !strings.HasPrefix(string(data), "// Code generated by modelgen. DO NOT EDIT.") {
			t.Errorf("%s is missing the generated header", path)
		}
	}

	// Unchanged input: the second pass rewrites nothing.
	pass, _, err = runPass(context.Background(), root)
	if err != nil {
		t.Fatalf("second runPass: %v", err)
	}
	written, err = pass.Write()
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("expected no rewrites on identical output, got %d", len(written))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
