package tui

import (
	"fmt"

	"github.com/burrowhq/burrow/internal/registry"
)

// Row is a snapshot of one tunnel's displayable state, built fresh each
// time the handler tells the renderer the tunnel list changed.
type Row struct {
	Name       string
	Access     string
	Port       string
	Address    string
	Conns      string
	Rx         string
	Tx         string
}

// Header names the table's columns, in the same order Row's fields are
// rendered.
var Header = []string{"Name", "Access", "Port", "Address", "Conn", "Rx", "Tx"}

// NewRow builds a Row from a tunnel's current state.
func NewRow(t *registry.Tunnel) Row {
	access := t.Inner.Access()
	accessText := access.Kind.String()
	if access.Kind == registry.AccessPrivate {
		accessText = fmt.Sprintf("private(%s)", access.Owner)
	}

	address, registered := t.Address()
	if !registered {
		address = "<detached>"
	}

	return Row{
		Name:    t.Name(),
		Access:  accessText,
		Port:    fmt.Sprintf("%d", t.Inner.Port()),
		Address: address,
		Conns:   fmt.Sprintf("%d", t.Inner.Stats.Connections()),
		Rx:      t.Inner.Stats.Rx().String(),
		Tx:      t.Inner.Stats.Tx().String(),
	}
}

func (r Row) cells() []string {
	return []string{r.Name, r.Access, r.Port, r.Address, r.Conns, r.Rx, r.Tx}
}
