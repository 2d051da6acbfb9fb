package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reactiveui/modelgen/internal/modelgen/config"
	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/emit"
	"github.com/reactiveui/modelgen/internal/modelgen/export"
	"github.com/reactiveui/modelgen/internal/modelgen/fix"
	"github.com/reactiveui/modelgen/internal/modelgen/index"
	"github.com/reactiveui/modelgen/internal/modelgen/mcp"
	"github.com/reactiveui/modelgen/internal/modelgen/pipeline"
	"github.com/reactiveui/modelgen/internal/modelgen/resolver"
	"github.com/reactiveui/modelgen/internal/modelgen/store"
	"github.com/reactiveui/modelgen/internal/modelgen/tui"
	"github.com/reactiveui/modelgen/internal/modelgen/watcher"
)

// main is the entry point for the modelgen server. Without a subcommand it
// starts the MCP server over stdio for the given root directory; the
// subcommands run one-shot generation, checking, fixing, watching, the TUI
// browser, or graph export.
func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "generate":
			handleGenerate(os.Args[2:])
			return
		case "check":
			handleCheck(os.Args[2:])
			return
		case "fix":
			handleFix(os.Args[2:])
			return
		case "watch":
			handleWatch(os.Args[2:])
			return
		case "tui":
			handleTUI(os.Args[2:])
			return
		case "export":
			handleExport(os.Args[2:])
			return
		}
	}

	// Default: Run MCP Server
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	fmt.Fprintf(os.Stderr, "Starting modelgen server in %s...\n", root)

	server, err := mcp.NewServer(context.Background(), root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	if err := server.Run(context.Background(), &sdk.StdioTransport{}); err != nil {
		log.Fatal(err)
	}
}

// runPass loads the repository and runs one full pipeline pass.
func runPass(ctx context.Context, rootDir string) (*pipeline.Pass, *config.Config, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig(absRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v. Using defaults.\n", err)
		cfg = &config.DefaultConfig
	}

	snap, err := resolver.LoadSnapshot(ctx, absRoot, "./...")
	if err != nil {
		return nil, nil, err
	}
	snap.DefaultScope, _ = domain.ParseScope(cfg.DefaultScope)
	emitter := emit.New()
	emitter.RuntimeImport = cfg.RuntimeImport

	pass, err := pipeline.Run(ctx, snap, emitter)
	if err != nil {
		return nil, nil, err
	}
	return pass, cfg, nil
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func printDiagnostics(pass *pipeline.Pass) {
	for _, d := range pass.Diagnostics {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func handleGenerate(args []string) {
	rootDir := rootArg(args)
	ctx := context.Background()

	pass, cfg, err := runPass(ctx, rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
		os.Exit(1)
	}
	printDiagnostics(pass)

	written, err := pass.Write()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}

	absRoot, _ := filepath.Abs(rootDir)
	if st, err := store.NewStore(filepath.Join(absRoot, cfg.CacheDir)); err == nil {
		st.RecordPass(len(pass.Result.Models), pass.Units, pass.Diagnostics)
		st.Close()
	}

	fmt.Printf("Generated %d unit(s) for %d model(s), wrote %d file(s)\n",
		len(pass.Units), len(pass.Result.Models), len(written))
	if pass.HasErrors() {
		os.Exit(1)
	}
}

func handleCheck(args []string) {
	rootDir := rootArg(args)

	pass, _, err := runPass(context.Background(), rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
		os.Exit(1)
	}
	printDiagnostics(pass)
	fmt.Printf("%d model(s), %d diagnostic(s)\n", len(pass.Result.Models), len(pass.Diagnostics))
	if pass.HasErrors() {
		os.Exit(1)
	}
}

func handleFix(args []string) {
	fixCmd := flag.NewFlagSet("fix", flag.ExitOnError)
	code := fixCmd.String("code", "", "Only apply fixes for this diagnostic code")
	fixCmd.Parse(args)
	rootDir := rootArg(fixCmd.Args())

	pass, _, err := runPass(context.Background(), rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fix failed: %v\n", err)
		os.Exit(1)
	}

	diags := pass.Diagnostics
	if *code != "" {
		diags = pass.ByCode(*code)
	}

	registry := fix.NewRegistry()
	fctx := &fix.Context{Res: pass.Result}
	actions := registry.Batch(diags, fctx)
	if len(actions) == 0 {
		fmt.Println("No batchable fixes available")
		return
	}
	files, err := fix.Apply(actions, fctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fix failed: %v\n", err)
		os.Exit(1)
	}
	for path, content := range files {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Applied %d fix(es) across %d file(s)\n", len(actions), len(files))
}

func handleWatch(args []string) {
	rootDir := rootArg(args)
	absRoot, _ := filepath.Abs(rootDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig(absRoot)
	if err != nil {
		cfg = &config.DefaultConfig
	}
	idx := index.New(absRoot, cfg.ExcludedDirs)
	if err := idx.Scan(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	regenerate := func(ctx context.Context) {
		pass, _, err := runPass(ctx, absRoot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Regeneration failed: %v\n", err)
			return
		}
		printDiagnostics(pass)
		written, err := pass.Write()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			return
		}
		fmt.Printf("Regenerated: wrote %d file(s)\n", len(written))
	}
	regenerate(ctx)

	w, err := watcher.NewWatcher(absRoot, idx, cfg, regenerate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()
	w.Start(ctx)

	fmt.Printf("Watching %s for changes (ctrl+c to stop)...\n", absRoot)
	<-ctx.Done()
}

func handleTUI(args []string) {
	rootDir := rootArg(args)

	pass, _, err := runPass(context.Background(), rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to analyze: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(tui.NewModel(pass), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

func handleExport(args []string) {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	format := exportCmd.String("format", "json", "Export format (json, excalidraw)")
	out := exportCmd.String("out", "models.json", "Output file path")
	exportCmd.Parse(args)
	rootDir := rootArg(exportCmd.Args())

	pass, _, err := runPass(context.Background(), rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Exporting model graph from %s to %s (format: %s)...\n", rootDir, *out, *format)

	if *format == "excalidraw" {
		err = export.ExportExcalidraw(pass.Graph, *out)
	} else {
		err = export.ExportJSON(pass.Graph, pass.Diagnostics, *out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Export successful!")
}
