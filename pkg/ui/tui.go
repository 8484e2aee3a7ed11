package ui

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/lanGreeter/internal/app"
	appevents "github.com/rescp17/lanGreeter/internal/app_events"
	peerevents "github.com/rescp17/lanGreeter/internal/app_events/peer"
	"github.com/rescp17/lanGreeter/internal/style"
	"github.com/rescp17/lanGreeter/internal/util"
)

// AppController is the part of peer.App the TUI drives.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
	InstanceName() string
	Greeting() string
}

const (
	maxLogLines  = 200
	shownLogLine = 10
	labelWidth   = 11
)

// listenerState follows the single inbound connection.
type listenerState int

const (
	listenerStarting listenerState = iota
	listenerWaiting
	listenerReceived
	listenerClosed
)

type runFinishedMsg struct {
	err error
}

type KeyMap struct {
	Greet key.Binding
	Quit  key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Greet: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "greet selected peer")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	appController AppController
	ctx           context.Context
	cancel        context.CancelFunc

	spinner  spinner.Model
	table    table.Model
	peers    []app.PeerState
	logLines []string

	state      listenerState
	listenAddr net.Addr
	greeting   string
	lastError  error
	finished   bool
}

func InitialModel(appController AppController) model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{
		appController: appController,
		ctx:           ctx,
		cancel:        cancel,
		spinner:       style.NewSpinner(),
		table:         newPeerTable(),
		state:         listenerStarting,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp(), m.listenForAppMessages())
}

// runApp runs the app controller for the lifetime of the program.
func (m model) runApp() tea.Cmd {
	return func() tea.Msg {
		return runFinishedMsg{err: m.appController.Run(m.ctx)}
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.appController.UIMessages():
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case runFinishedMsg:
		m.finished = true
		if msg.err != nil {
			m.lastError = msg.err
		}
		m.cancel()
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.handleAppMessage(msg) {
		return m, m.listenForAppMessages()
	}
	return m, nil
}

// handleAppMessage applies a message from the app controller and reports
// whether it was one.
func (m *model) handleAppMessage(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case appevents.NotifyMsg:
		m.appendLog(msg.At, msg.Text)
	case appevents.ErrorMsg:
		m.lastError = msg.Err
		m.appendLog(time.Now(), style.ErrorStyle.Render(util.Printable(msg.Err.Error())))
	case peerevents.ServerStartedMsg:
		m.listenAddr = msg.Addr
		m.state = listenerWaiting
	case peerevents.AnnouncedMsg:
	case peerevents.GreetingReceivedMsg:
		m.greeting = util.Printable(msg.Message)
		m.state = listenerReceived
	case peerevents.ListenerClosedMsg:
		if m.state != listenerReceived {
			m.state = listenerClosed
		}
	case peerevents.PeersUpdatedMsg:
		m.setPeers(msg.Peers)
	default:
		return false
	}
	return true
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, DefaultKeyMap.Greet):
		selected, ok := m.selectedPeer()
		if !ok {
			return m, nil
		}
		return m, m.sendAppEvent(peerevents.GreetPeerEvent{Key: selected.Service.Key()})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) sendAppEvent(event appevents.AppEvent) tea.Cmd {
	return func() tea.Msg {
		select {
		case m.appController.AppEvents() <- event:
		case <-m.ctx.Done():
		}
		return nil
	}
}

func (m *model) appendLog(at time.Time, text string) {
	line := fmt.Sprintf("%s %s", style.LogTimeStyle.Render(at.Format("15:04:05")), style.LogStyle.Render(text))
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(style.TitleStyle.Render("lanGreeter") + "\n\n")
	b.WriteString(field("Instance", style.HighlightFontStyle.Render(m.appController.InstanceName())))
	b.WriteString(field("Greeting", util.Printable(m.appController.Greeting())))
	b.WriteString(field("Listener", m.listenerView()))
	b.WriteString("\n")
	b.WriteString(m.peersView())
	b.WriteString("\n")

	start := 0
	if len(m.logLines) > shownLogLine {
		start = len(m.logLines) - shownLogLine
	}
	for _, line := range m.logLines[start:] {
		b.WriteString(line + "\n")
	}

	if m.lastError != nil {
		b.WriteString("\n" + style.ErrorStyle.Render("Error: "+util.Printable(m.lastError.Error())) + "\n")
	}

	help := fmt.Sprintf("\n↑/↓ select • %s %s • %s %s\n",
		DefaultKeyMap.Greet.Help().Key, DefaultKeyMap.Greet.Help().Desc,
		DefaultKeyMap.Quit.Help().Key, DefaultKeyMap.Quit.Help().Desc,
	)
	b.WriteString(style.HelpStyle.Render(help))
	return b.String()
}

func (m model) listenerView() string {
	switch m.state {
	case listenerStarting:
		return fmt.Sprintf("%s starting...", m.spinner.View())
	case listenerWaiting:
		return fmt.Sprintf("%s awaiting a greeting on %s", m.spinner.View(), m.listenAddr)
	case listenerReceived:
		return style.SuccessStyle.Render(fmt.Sprintf("received %q", m.greeting))
	case listenerClosed:
		return style.LabelStyle.Render("closed")
	default:
		return "Internal error: unknown listener state"
	}
}

func field(label, value string) string {
	return style.LabelStyle.Render(util.PadRight(label+":", labelWidth)) + value + "\n"
}
