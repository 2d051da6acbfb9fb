package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
)

func testGraph() *graph.Graph {
	g := graph.New()
	session := &domain.ModelNode{
		ID: "example.com/app.Session", Name: "Session",
		PkgPath: "example.com/app", Scope: domain.ScopeSingleton,
		Members: []*domain.MemberDescriptor{
			{Kind: domain.MemberProperty, Name: "Token", ChangeKey: "Session.Token"},
		},
	}
	home := &domain.ModelNode{
		ID: "example.com/app.Home", Name: "Home",
		PkgPath: "example.com/app", Scope: domain.ScopeScoped,
	}
	g.AddNode(session)
	g.AddNode(home)
	g.AddEdge(&domain.ReferenceEdge{
		From: home.ID, To: session.ID, RefName: "session", State: domain.EdgeResolved,
	})
	return g
}

func TestBuildJSON(t *testing.T) {
	doc := BuildJSON(testGraph(), []domain.Diagnostic{
		{Code: domain.CodeUnusedReference, Severity: domain.SeverityWarning, Message: "unused"},
	})

	if len(doc.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(doc.Nodes))
	}
	if doc.Nodes[0].ID != "example.com/app.Session" || doc.Nodes[0].Scope != "singleton" {
		t.Errorf("unexpected first node: %+v", doc.Nodes[0])
	}
	if len(doc.Nodes[0].Members) != 1 || doc.Nodes[0].Members[0] != "property:Token" {
		t.Errorf("unexpected members: %v", doc.Nodes[0].Members)
	}
	if len(doc.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(doc.Edges))
	}
	e := doc.Edges[0]
	if e.From != "example.com/app.Home" || e.To != "example.com/app.Session" || e.RefName != "session" {
		t.Errorf("unexpected edge: %+v", e)
	}
	if len(doc.Diagnostics) != 1 {
		t.Errorf("diagnostics not carried through")
	}
}

func TestExportJSONWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	if err := ExportJSON(testGraph(), nil, path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc JSONGraph
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
		t.Errorf("round trip lost data: %d nodes, %d edges", len(doc.Nodes), len(doc.Edges))
	}
}

func TestExportExcalidrawScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.excalidraw")
	if err := ExportExcalidraw(testGraph(), path); err != nil {
		t.Fatalf("ExportExcalidraw: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var scene ExcalidrawScene
	if err := json.Unmarshal(data, &scene); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if scene.Type != "excalidraw" || scene.Source != "modelgen" {
		t.Errorf("unexpected scene header: %+v", scene.Type)
	}

	var rects, texts, arrows int
	var arrowID string
	for _, el := range scene.Elements {
		switch el.Type {
		case "rectangle":
			rects++
		case "text":
			texts++
		case "arrow":
			arrows++
			arrowID = el.ID
		}
	}
	if rects != 2 || texts != 2 || arrows != 1 {
		t.Fatalf("unexpected element counts: %d rects, %d texts, %d arrows", rects, texts, arrows)
	}
	if arrowID != "example.com/app.Home-session-example.com/app.Session" {
		t.Errorf("unexpected arrow id %q", arrowID)
	}

	// Rows are keyed by lifetime: the singleton row sits above the scoped row.
	byID := make(map[string]ExcalidrawElement)
	for _, el := range scene.Elements {
		byID[el.ID] = el
	}
	if byID["example.com/app.Session"].Y >= byID["example.com/app.Home"].Y {
		t.Error("singleton row should be laid out above the scoped row")
	}
}
