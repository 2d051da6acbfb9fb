// Package tui is an interactive browser over one generation pass: models in
// columns by lifetime, with a detail pane showing each model's members,
// references, diagnostics and the fixes available for them.
package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reactiveui/modelgen/internal/modelgen/domain"
	"github.com/reactiveui/modelgen/internal/modelgen/fix"
	"github.com/reactiveui/modelgen/internal/modelgen/pipeline"
)

var (
	focusedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	normalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5555")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c"))
)

type item struct {
	title, desc string
	node        *domain.ModelNode
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type Model struct {
	pass  *pipeline.Pass
	fixes *fix.Registry

	lists    []list.Model
	focused  int
	viewport viewport.Model

	status string
	ready  bool
	width  int
	height int
}

func NewModel(pass *pipeline.Pass) Model {
	columns := []domain.Scope{domain.ScopeSingleton, domain.ScopeScoped, domain.ScopeTransient}
	titles := []string{"Singleton", "Scoped", "Transient"}
	lists := make([]list.Model, len(columns))

	grouped := make(map[domain.Scope][]list.Item)
	for _, n := range pass.Graph.Nodes() {
		desc := string(n.Scope)
		if n.Abstract {
			desc = "abstract"
		}
		if n.External {
			desc = "external"
		}
		grouped[n.Scope] = append(grouped[n.Scope], item{
			title: n.Name,
			desc:  desc,
			node:  n,
		})
	}

	for i, scope := range columns {
		items := grouped[scope]
		sort.Slice(items, func(a, b int) bool {
			return items[a].(item).title < items[b].(item).title
		})

		lists[i] = list.New(items, list.NewDefaultDelegate(), 0, 0)
		lists[i].Title = titles[i]
		lists[i].SetShowHelp(false)
	}

	return Model{
		pass:    pass,
		fixes:   fix.NewRegistry(),
		lists:   lists,
		focused: 0,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			m.focused--
			if m.focused < 0 {
				m.focused = len(m.lists) - 1
			}
		case "right", "l":
			m.focused++
			if m.focused >= len(m.lists) {
				m.focused = 0
			}
		case "f":
			m.status = m.applyBatchFixes()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height/3)
			m.viewport.YPosition = msg.Height - msg.Height/3
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height / 3
		}

		colWidth := msg.Width / 3
		listHeight := msg.Height - m.viewport.Height - 5

		for i := range m.lists {
			m.lists[i].SetSize(colWidth-2, listHeight)
		}
	}

	m.lists[m.focused], cmd = m.lists[m.focused].Update(msg)
	cmds = append(cmds, cmd)

	selectedItem := m.lists[m.focused].SelectedItem()
	if selectedItem != nil {
		it := selectedItem.(item)
		m.viewport.SetContent(m.renderDetails(it.node))
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	cols := make([]string, len(m.lists))
	for i, l := range m.lists {
		style := normalStyle
		if i == m.focused {
			style = focusedStyle
		}
		cols[i] = style.Render(l.View())
	}

	board := lipgloss.JoinHorizontal(lipgloss.Left, cols...)
	details := detailStyle.Width(m.width - 4).Render(m.viewport.View())

	out := lipgloss.JoinVertical(lipgloss.Left, board, details)
	if m.status != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, m.status)
	}
	return out
}

// diagnosticsFor filters the pass diagnostics down to one model.
func (m Model) diagnosticsFor(n *domain.ModelNode) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, d := range m.pass.Diagnostics {
		if strings.Contains(d.Message, n.ID) || strings.Contains(d.Message, n.Name) {
			out = append(out, d)
		}
	}
	return out
}

func (m Model) renderDetails(n *domain.ModelNode) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("ID: %s\n", n.ID))
	sb.WriteString(fmt.Sprintf("Scope: %s\n", n.Scope))
	if n.Abstract {
		sb.WriteString("Abstract base model\n")
	}
	if n.External {
		sb.WriteString("External (from compiled package)\n")
	}

	sb.WriteString("\nMembers:\n")
	for _, member := range n.Members {
		sb.WriteString(fmt.Sprintf("- %s %s\n", member.Kind, member.Name))
	}

	sb.WriteString("\nReferences:\n")
	for _, e := range m.pass.Graph.EdgesFrom(n.ID) {
		sb.WriteString(fmt.Sprintf("-> %s as %q (%s)\n", shortID(e.To), e.RefName, e.State))
	}
	for _, e := range m.pass.Graph.EdgesTo(n.ID) {
		sb.WriteString(fmt.Sprintf("<- %s as %q\n", shortID(e.From), e.RefName))
	}

	sb.WriteString("\nDiagnostics:\n")
	diags := m.diagnosticsFor(n)
	if len(diags) == 0 {
		sb.WriteString("No diagnostics.\n")
	}
	fctx := &fix.Context{Res: m.pass.Result}
	for _, d := range diags {
		line := fmt.Sprintf("- [%s] %s %s", d.Severity, d.Code, d.Message)
		if d.Severity == domain.SeverityError {
			sb.WriteString(errorStyle.Render(line) + "\n")
		} else {
			sb.WriteString(warnStyle.Render(line) + "\n")
		}
		for _, action := range m.fixes.For(d, fctx) {
			sb.WriteString(fmt.Sprintf("    fix: %s\n", action.Title))
		}
	}

	sb.WriteString("\nPress f to apply all batchable fixes, q to quit.\n")
	return sb.String()
}

// applyBatchFixes writes every batchable fix for the current diagnostics to
// disk. The pass shown on screen is stale afterwards; rerun to refresh.
func (m Model) applyBatchFixes() string {
	fctx := &fix.Context{Res: m.pass.Result}
	actions := m.fixes.Batch(m.pass.Diagnostics, fctx)
	if len(actions) == 0 {
		return "no batchable fixes"
	}
	files, err := fix.Apply(actions, fctx)
	if err != nil {
		return "fix failed: " + err.Error()
	}
	for path, content := range files {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return "write failed: " + err.Error()
		}
	}
	return fmt.Sprintf("applied %d fix(es) across %d file(s); rerun to refresh", len(actions), len(files))
}

func shortID(id string) string {
	parts := strings.Split(id, ".")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return id
}
