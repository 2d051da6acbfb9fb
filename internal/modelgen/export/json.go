package export

import (
	"encoding/json"
	"os"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/graph"
)

// JSONNode is the machine-readable form of one model.
type JSONNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Package  string   `json:"package"`
	Scope    string   `json:"scope"`
	Abstract bool     `json:"abstract,omitempty"`
	External bool     `json:"external,omitempty"`
	Members  []string `json:"members,omitempty"`
}

// JSONEdge is the machine-readable form of one reference edge.
type JSONEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RefName      string `json:"ref_name"`
	TriggersOnly bool   `json:"triggers_only,omitempty"`
	State        string `json:"state"`
}

// JSONGraph is the full export document.
type JSONGraph struct {
	Nodes       []JSONNode          `json:"nodes"`
	Edges       []JSONEdge          `json:"edges"`
	Diagnostics []domain.Diagnostic `json:"diagnostics,omitempty"`
}

// BuildJSON assembles the export document in graph discovery order.
func BuildJSON(g *graph.Graph, diags []domain.Diagnostic) *JSONGraph {
	doc := &JSONGraph{Diagnostics: diags}
	for _, n := range g.Nodes() {
		jn := JSONNode{
			ID:       n.ID,
			Name:     n.Name,
			Package:  n.PkgPath,
			Scope:    string(n.Scope),
			Abstract: n.Abstract,
			External: n.External,
		}
		for _, m := range n.Members {
			jn.Members = append(jn.Members, string(m.Kind)+":"+m.Name)
		}
		doc.Nodes = append(doc.Nodes, jn)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, JSONEdge{
			From:         e.From,
			To:           e.To,
			RefName:      e.RefName,
			TriggersOnly: e.TriggersOnly,
			State:        e.State.String(),
		})
	}
	return doc
}

// ExportJSON writes the export document to outputPath.
func ExportJSON(g *graph.Graph, diags []domain.Diagnostic, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildJSON(g, diags))
}
