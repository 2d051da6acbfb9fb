// Package index keeps a fast syntactic pre-scan of the repository: which Go
// files carry modelgen directives and which type names they annotate. The
// scan is tree-sitter based so it never needs the package to type-check,
// which makes it cheap enough to re-run on every watch event; only files the
// index flags cause a full pipeline pass.
package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// DirectiveHit is one //modelgen: comment found in a file.
type DirectiveHit struct {
	Name string // directive name after the namespace, e.g. "model"
	Line int
}

// FileSummary is the pre-scan result for one file.
type FileSummary struct {
	Path       string // relative to the index root
	Directives []DirectiveHit
	Types      []string // declared type names, in source order
}

// Index is the repository-wide pre-scan state. Safe for concurrent use.
type Index struct {
	root     string
	excluded map[string]bool

	mu    sync.RWMutex
	files map[string]*FileSummary
}

// New builds an empty index for root. Directory names in excluded are
// skipped during scans in addition to .gitignore rules.
func New(root string, excluded []string) *Index {
	ex := make(map[string]bool, len(excluded))
	for _, d := range excluded {
		ex[d] = true
	}
	return &Index{root: root, excluded: ex, files: make(map[string]*FileSummary)}
}

// Scan walks the repository and pre-scans every non-ignored Go file.
func (ix *Index) Scan(ctx context.Context) error {
	gi := loadGitignore(ix.root)

	return filepath.WalkDir(ix.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		name := d.Name()
		if d.IsDir() {
			if path == ix.root {
				return nil
			}
			if ix.excluded[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_modelgen.go") {
			return nil
		}
		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		return ix.ScanFile(ctx, path)
	})
}

// ScanFile (re)scans a single file and updates the index. Generated files are
// never indexed.
func (ix *Index) ScanFile(ctx context.Context, path string) error {
	if strings.HasSuffix(path, "_modelgen.go") {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rel, rerr := filepath.Rel(ix.root, path)
	if rerr != nil {
		rel = path
	}

	summary, err := scanContent(ctx, rel, content)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if summary == nil || len(summary.Directives) == 0 {
		delete(ix.files, rel)
		return nil
	}
	ix.files[rel] = summary
	return nil
}

// Forget drops a file from the index (used on delete/rename events).
func (ix *Index) Forget(path string) {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		rel = path
	}
	ix.mu.Lock()
	delete(ix.files, rel)
	ix.mu.Unlock()
}

// HasDirectives reports whether the file carried directives at last scan.
func (ix *Index) HasDirectives(path string) bool {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		rel = path
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.files[rel]
	return ok
}

// PackageDirs returns the directories (relative to root) that contain at
// least one directive-carrying file, sorted.
func (ix *Index) PackageDirs() []string {
	ix.mu.RLock()
	seen := make(map[string]bool)
	for rel := range ix.files {
		seen[filepath.Dir(rel)] = true
	}
	ix.mu.RUnlock()

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Files returns the indexed summaries sorted by path.
func (ix *Index) Files() []*FileSummary {
	ix.mu.RLock()
	out := make([]*FileSummary, 0, len(ix.files))
	for _, f := range ix.files {
		out = append(out, f)
	}
	ix.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

const namespace = "//modelgen:"

// scanContent runs the tree-sitter queries over one file's content.
func scanContent(ctx context.Context, rel string, content []byte) (*FileSummary, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()

	summary := &FileSummary{Path: rel}

	queryStr := `
	(comment) @comment
	(type_spec name: (type_identifier) @type)
	`
	q, err := sitter.NewQuery([]byte(queryStr), golang.GetLanguage())
	if err != nil {
		return nil, err
	}
	qc := sitter.NewQueryCursor()
	qc.Exec(q, root)

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			text := string(content[c.Node.StartByte():c.Node.EndByte()])
			switch q.CaptureNameForId(c.Index) {
			case "comment":
				if !strings.HasPrefix(text, namespace) {
					continue
				}
				rest := strings.TrimPrefix(text, namespace)
				name := rest
				if i := strings.IndexAny(rest, " \t"); i >= 0 {
					name = rest[:i]
				}
				summary.Directives = append(summary.Directives, DirectiveHit{
					Name: name,
					Line: int(c.Node.StartPoint().Row) + 1,
				})
			case "type":
				summary.Types = append(summary.Types, text)
			}
		}
	}

	return summary, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
