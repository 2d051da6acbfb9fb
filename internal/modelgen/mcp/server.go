package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reactiveui/modelgen/internal/modelgen/config"
	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/emit"
	"github.com/reactiveui/modelgen/internal/modelgen/fix"
	"github.com/reactiveui/modelgen/internal/modelgen/index"
	"github.com/reactiveui/modelgen/internal/modelgen/pipeline"
	"github.com/reactiveui/modelgen/internal/modelgen/query"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/store"
	"github.com/reactiveui/modelgen/internal/modelgen/watcher"
)

// ModelgenServer implements the MCP server interface for the generator.
// It acts as the central hub, coordinating the pipeline, store and watcher,
// and exposing them via MCP tools and resources.
type ModelgenServer struct {
	Store   *store.Store   // The pass history store.
	Config  *config.Config // Server configuration.
	Index   *index.Index   // Tree-sitter directive pre-scan.
	Watcher *watcher.Watcher
	RootDir string // The root directory of the generated codebase.

	mu     sync.RWMutex
	pass   *pipeline.Pass
	router *query.Router
	fixes  *fix.Registry
}

// NewServer initializes and returns a new MCP server instance.
// It loads configuration, initializes the database, runs an initial pass,
// and starts the file watcher.
func NewServer(ctx context.Context, rootDir string) (*mcp.Server, error) {
	cfg, err := config.LoadConfig(rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v. Using defaults.\n", err)
		cfg = &config.DefaultConfig
	}

	st, err := store.NewStore(filepath.Join(rootDir, cfg.CacheDir))
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	idx := index.New(rootDir, cfg.ExcludedDirs)
	if err := idx.Scan(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: initial scan failed: %v\n", err)
	}

	ms := &ModelgenServer{
		Store:   st,
		Config:  cfg,
		Index:   idx,
		RootDir: rootDir,
		fixes:   fix.NewRegistry(),
	}
	if err := ms.regenerate(ctx, true); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: initial pass failed: %v\n", err)
	}

	w, err := watcher.NewWatcher(rootDir, idx, cfg, func(ctx context.Context) {
		if err := ms.regenerate(ctx, true); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: regeneration failed: %v\n", err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to start file watcher: %v\n", err)
	} else {
		ms.Watcher = w
		w.Start(ctx)
	}

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "modelgen-mcp",
		Version: "0.0.1",
	}, &mcp.ServerOptions{})

	// Register Tools
	mcp.AddTool(s, &mcp.Tool{
		Name:        "generate",
		Description: "Run a full generation pass and write generated files",
	}, ms.generate)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "check",
		Description: "Run analysis without writing files and report diagnostics",
	}, ms.check)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "apply_fix",
		Description: "Apply batchable code fixes for a diagnostic code",
	}, ms.applyFix)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "blast_radius",
		Description: "List the models impacted by changing a model",
	}, ms.blastRadius)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "query",
		Description: "Answer a free-text question about the model graph",
	}, ms.query)

	// Register Resources
	s.AddResource(&mcp.Resource{
		Name: "status",
		URI:  "mcp://modelgen/status",
	}, ms.handleStatus)

	s.AddResource(&mcp.Resource{
		Name: "diagnostics",
		URI:  "mcp://modelgen/diagnostics",
	}, ms.handleDiagnostics)

	s.AddResource(&mcp.Resource{
		Name: "model_docs",
		URI:  "mcp://modelgen/model_docs",
	}, ms.handleModelDocs)

	return s, nil
}

// regenerate runs one pipeline pass over the repository and refreshes the
// served state. When write is true, generated units land on disk and the run
// is recorded in the store.
func (ms *ModelgenServer) regenerate(ctx context.Context, write bool) error {
	snap, err := resolver.LoadSnapshot(ctx, ms.RootDir, "./...")
	if err != nil {
		return err
	}
	snap.DefaultScope, _ = domain.ParseScope(ms.Config.DefaultScope)
	emitter := emit.New()
	emitter.RuntimeImport = ms.Config.RuntimeImport

	pass, err := pipeline.Run(ctx, snap, emitter)
	if err != nil {
		return err
	}
	if write {
		if _, err := pass.Write(); err != nil {
			return err
		}
		if _, err := ms.Store.RecordPass(len(pass.Result.Models), pass.Units, pass.Diagnostics); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record pass: %v\n", err)
		}
	}

	router, err := query.NewRouter(pass.Graph, pass.Diagnostics)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	ms.pass = pass
	ms.router = router
	ms.mu.Unlock()
	return nil
}

func (ms *ModelgenServer) current() (*pipeline.Pass, *query.Router) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.pass, ms.router
}

// Tool Inputs

// BlastRadiusInput defines the input parameters for the blast_radius tool.
type BlastRadiusInput struct {
	Model string `json:"model" jsonschema:"required"`
}

// ApplyFixInput defines the input parameters for the apply_fix tool.
type ApplyFixInput struct {
	Code string `json:"code" jsonschema:"required"`
}

// QueryInput defines the input parameters for the query tool.
type QueryInput struct {
	Question string `json:"question" jsonschema:"required"`
}

// EmptyInput defines an empty input structure for tools that require no parameters.
type EmptyInput struct{}

// Tool Handlers

func (ms *ModelgenServer) generate(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	if err := ms.regenerate(ctx, true); err != nil {
		return errorResult(err), nil, nil
	}
	pass, _ := ms.current()
	msg := fmt.Sprintf("Generated %d unit(s) for %d model(s); %d diagnostic(s)",
		len(pass.Units), len(pass.Result.Models), len(pass.Diagnostics))
	return textResult(msg), nil, nil
}

func (ms *ModelgenServer) check(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, any, error) {
	if err := ms.regenerate(ctx, false); err != nil {
		return errorResult(err), nil, nil
	}
	pass, _ := ms.current()
	if len(pass.Diagnostics) == 0 {
		return textResult("no diagnostics"), nil, nil
	}
	jsonBytes, _ := json.MarshalIndent(pass.Diagnostics, "", "  ")
	return textResult(string(jsonBytes)), nil, nil
}

func (ms *ModelgenServer) applyFix(ctx context.Context, req *mcp.CallToolRequest, input ApplyFixInput) (*mcp.CallToolResult, any, error) {
	pass, _ := ms.current()
	if pass == nil {
		return errorResult(fmt.Errorf("no pass available")), nil, nil
	}

	fctx := &fix.Context{Res: pass.Result}
	actions := ms.fixes.Batch(pass.ByCode(input.Code), fctx)
	if len(actions) == 0 {
		return textResult("no batchable fixes for " + input.Code), nil, nil
	}
	files, err := fix.Apply(actions, fctx)
	if err != nil {
		return errorResult(err), nil, nil
	}
	var paths []string
	for path, content := range files {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return errorResult(err), nil, nil
		}
		paths = append(paths, path)
	}

	// Source changed; re-run so served state matches disk.
	if err := ms.regenerate(ctx, true); err != nil {
		return errorResult(err), nil, nil
	}
	msg := fmt.Sprintf("Applied %d fix(es) across %d file(s)", len(actions), len(paths))
	return textResult(msg), nil, nil
}

func (ms *ModelgenServer) blastRadius(ctx context.Context, req *mcp.CallToolRequest, input BlastRadiusInput) (*mcp.CallToolResult, any, error) {
	pass, _ := ms.current()
	if pass == nil {
		return errorResult(fmt.Errorf("no pass available")), nil, nil
	}
	impacted := pass.Graph.Dependents(input.Model)

	res := map[string]interface{}{
		"model":           input.Model,
		"impacted_models": impacted,
	}
	jsonBytes, _ := json.MarshalIndent(res, "", "  ")
	return textResult(string(jsonBytes)), nil, nil
}

func (ms *ModelgenServer) query(ctx context.Context, req *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, any, error) {
	_, router := ms.current()
	if router == nil {
		return errorResult(fmt.Errorf("no pass available")), nil, nil
	}
	answer, _, err := router.Answer(input.Question)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(answer), nil, nil
}

// Resource Handlers

func (ms *ModelgenServer) handleStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	pass, _ := ms.current()
	status := map[string]interface{}{
		"status": "healthy",
	}
	if pass != nil {
		errors, warnings := 0, 0
		for _, d := range pass.Diagnostics {
			switch d.Severity {
			case domain.SeverityError:
				errors++
			case domain.SeverityWarning:
				warnings++
			}
		}
		status["models"] = len(pass.Result.Models)
		status["units"] = len(pass.Units)
		status["errors"] = errors
		status["warnings"] = warnings
	}
	if history, err := ms.Store.History(5); err == nil {
		status["recent_runs"] = history
	}
	bytes, _ := json.MarshalIndent(status, "", "  ")
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "application/json", Text: string(bytes)},
		},
	}, nil
}

func (ms *ModelgenServer) handleDiagnostics(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	pass, _ := ms.current()
	var diags []domain.Diagnostic
	if pass != nil {
		diags = pass.Diagnostics
	}
	bytes, _ := json.MarshalIndent(diags, "", "  ")
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "application/json", Text: string(bytes)},
		},
	}, nil
}

func (ms *ModelgenServer) handleModelDocs(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	pass, _ := ms.current()
	var sb strings.Builder
	sb.WriteString("# Model Graph\n\n")
	if pass != nil {
		for _, n := range pass.Graph.Nodes() {
			fmt.Fprintf(&sb, "## %s (%s)\n\n", n.ID, n.Scope)
			if n.Abstract {
				sb.WriteString("Abstract base model.\n\n")
			}
			if n.External {
				sb.WriteString("External model from a compiled package.\n\n")
			}
			for _, m := range n.Members {
				fmt.Fprintf(&sb, "- %s `%s`\n", m.Kind, m.Name)
			}
			for _, e := range pass.Graph.EdgesFrom(n.ID) {
				fmt.Fprintf(&sb, "- references `%s` as `%s`\n", e.To, e.RefName)
			}
			sb.WriteString("\n")
		}
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/markdown", Text: sb.String()},
		},
	}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: err.Error()},
		},
	}
}
