// Package tui renders the tunnel table shown to a developer over their
// SSH session's PTY. It is deliberately display-only: all keystroke
// interpretation and business logic (selection, rename, access changes)
// lives in the SSH session handler, which drives this package purely by
// sending messages. That split keeps the renderer ignorant of SSH and the
// handler ignorant of terminal layout.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const version = "1.0"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)

	keyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	textStyle = lipgloss.NewStyle().Faint(true)

	footerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Align(lipgloss.Center)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)
)

// Model is the bubbletea model backing one developer's TUI session.
type Model struct {
	table table.Model

	rows        []Row
	selected    *int
	renameInput *string
	helpText    *string
	closed      bool

	width, height int
}

// NewModel returns a freshly initialized, empty table.
func NewModel() Model {
	columns := make([]table.Column, len(Header))
	for i, h := range Header {
		columns[i] = table.Column{Title: h, Width: len(h) + 2}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
	)
	t.SetStyles(table.Styles{
		Header:   lipgloss.NewStyle().Bold(true).Reverse(true),
		Selected: lipgloss.NewStyle().Bold(true),
		Cell:     lipgloss.NewStyle(),
	})

	return Model{table: t}
}

// Init starts the once-a-second refresh that keeps traffic counters
// current even when nothing else changes.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case resizeMsg:
		m.width, m.height = msg.width, msg.height
		m.table.SetWidth(msg.width)
		m.table.SetHeight(max(3, msg.height-6))
		return m, nil

	case rowsMsg:
		m.rows = msg.rows
		m.table.SetColumns(computeColumns(m.rows, m.width))
		m.table.SetRows(toTableRows(m.rows))
		if m.selected != nil {
			m.table.SetCursor(*m.selected)
		}
		return m, nil

	case selectMsg:
		m.selected = msg.index
		if msg.index != nil {
			m.table.SetCursor(*msg.index)
		}
		return m, nil

	case renameMsg:
		m.renameInput = msg.input
		return m, nil

	case helpMsg:
		m.helpText = &msg.text
		return m, tea.Quit

	case closeMsg:
		m.closed = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) View() string {
	if m.helpText != nil {
		return strings.ReplaceAll(*m.helpText, "\n", "\r\n")
	}
	if m.closed {
		return ""
	}

	title := titleStyle.Width(m.width).Render(fmt.Sprintf("burrow (%s)", version))
	footer := footerStyle.Width(max(0, m.width-2)).Render(m.footerText())

	body := lipgloss.JoinVertical(lipgloss.Left, title, m.table.View(), footer)

	if m.renameInput != nil {
		box := modalStyle.Render("New name\n " + *m.renameInput)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	return body
}

// footerText renders the key-binding hints, varying by whether a row is
// selected, matching the two command sets the handler supports.
func (m Model) footerText() string {
	command := func(key, text string) string {
		return keyStyle.Render(key) + " " + textStyle.Render(text)
	}

	var commands []string
	if m.selected != nil {
		commands = []string{
			command("q", "quit"),
			command("esc", "deselect"),
			command("↓/j", "move down"),
			command("↑/k", "move up"),
			command("del", "remove"),
			command("r", "rename"),
			command("shift-r", "retry"),
			command("p", "make private"),
			command("ctrl-p", "make protected"),
			command("shift-p", "make public"),
		}
	} else {
		commands = []string{
			command("q", "quit"),
			command("↓/j", "select first"),
			command("↑/k", "select last"),
			command("p", "make all private"),
			command("ctrl-p", "make all protected"),
			command("shift-p", "make all public"),
		}
	}

	return strings.Join(commands, " | ")
}

func computeColumns(rows []Row, width int) []table.Column {
	widths := make([]int, len(Header))
	for i, h := range Header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i, c := range r.cells() {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	columns := make([]table.Column, len(Header))
	for i, h := range Header {
		columns[i] = table.Column{Title: h, Width: widths[i] + 2}
	}
	return columns
}

func toTableRows(rows []Row) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row(r.cells())
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
