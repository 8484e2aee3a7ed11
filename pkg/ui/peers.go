package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rescp17/lanGreeter/internal/app"
	"github.com/rescp17/lanGreeter/internal/style"
	"github.com/rescp17/lanGreeter/internal/util"
)

var columns = []table.Column{
	{Title: "Name", Width: 28},
	{Title: "Address", Width: 24},
	{Title: "Port", Width: 6},
	{Title: "Status", Width: 12},
}

func newPeerTable() table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(1),
	)
	t.SetStyles(style.NewTableStyles())
	return t
}

func peerRows(peers []app.PeerState) []table.Row {
	rows := make([]table.Row, 0, len(peers))
	for _, p := range peers {
		addr := ""
		if p.Service.Addr != nil {
			addr = p.Service.Addr.String()
		}
		rows = append(rows, table.Row{
			util.Printable(p.Service.Name),
			addr,
			strconv.Itoa(p.Service.Port),
			p.Status.String(),
		})
	}
	return rows
}

func (m *model) setPeers(peers []app.PeerState) {
	m.peers = peers
	m.table.SetRows(peerRows(peers))
	m.table.SetHeight(len(peers) + 1)
	if m.table.Cursor() >= len(peers) && len(peers) > 0 {
		m.table.SetCursor(len(peers) - 1)
	}
}

func (m model) selectedPeer() (app.PeerState, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.peers) {
		return app.PeerState{}, false
	}
	return m.peers[i], true
}

func (m model) peersView() string {
	if len(m.peers) == 0 {
		return fmt.Sprintf("%s Looking for peers...\n", m.spinner.View())
	}
	s := fmt.Sprintf("Found %d instance(s)\n", len(m.peers))
	s += style.BaseStyle.Render(m.table.View()) + "\n"
	return s
}
