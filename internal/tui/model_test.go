package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModel_RowsUpdatesTable(t *testing.T) {
	m := NewModel()

	rows := []Row{{Name: "otter", Access: "public", Port: "80", Address: "otter.example.com", Conns: "1", Rx: "10 B", Tx: "5 B"}}
	next, _ := m.Update(rowsMsg{rows: rows})
	m = next.(Model)

	if len(m.rows) != 1 || m.rows[0].Name != "otter" {
		t.Fatalf("rows = %+v, want one row named otter", m.rows)
	}
}

func TestModel_SelectClearsWithNil(t *testing.T) {
	m := NewModel()

	idx := 0
	next, _ := m.Update(selectMsg{index: &idx})
	m = next.(Model)
	if m.selected == nil || *m.selected != 0 {
		t.Fatalf("selected = %v, want 0", m.selected)
	}

	next, _ = m.Update(selectMsg{index: nil})
	m = next.(Model)
	if m.selected != nil {
		t.Fatalf("selected = %v, want nil", m.selected)
	}
}

func TestModel_FooterVariesBySelection(t *testing.T) {
	m := NewModel()
	m.width = 200

	unselected := m.footerText()
	if !strings.Contains(unselected, "select first") {
		t.Fatalf("unselected footer missing 'select first': %q", unselected)
	}

	idx := 0
	m.selected = &idx
	selected := m.footerText()
	if !strings.Contains(selected, "rename") {
		t.Fatalf("selected footer missing 'rename': %q", selected)
	}
}

func TestModel_CloseQuits(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(closeMsg{})
	if cmd == nil {
		t.Fatalf("Update(closeMsg) returned nil cmd, want tea.Quit")
	}
	msg := cmd()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("cmd() = %T, want tea.QuitMsg", msg)
	}
}
