// Package tui provides the BubbleTea-based live view of broker registrations.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeHelp
)

// DefaultRefreshInterval is how often the broker is polled when no change
// notifications arrive.
const DefaultRefreshInterval = 5 * time.Second

// Source is the broker view the TUI reads from.
type Source interface {
	ListApplications(ctx context.Context) ([]model.Application, error)
	GetStatus(ctx context.Context) (model.Status, error)
	ChangeStatus(ctx context.Context, status model.Status) error
}

// Options configures the TUI.
type Options struct {
	RefreshInterval  time.Duration
	Changes          <-chan struct{} // receives a value whenever the broker announces a change
	ClipboardCommand string
}

// Model is the main TUI model.
type Model struct {
	source Source
	opts   Options

	mode Mode

	// Components
	list     list.Model
	viewport viewport.Model
	help     help.Model

	// State
	apps         []model.Application
	globalStatus model.Status
	connected    bool
	selected     *model.Application
	width        int
	height       int
	ready        bool

	keys KeyMap

	statusMsg string
	statusErr bool
}

// appItem wraps a registration for the list component.
type appItem struct {
	app model.Application
}

func (i appItem) Title() string {
	return i.app.ID
}

func (i appItem) Description() string {
	status := i.app.Status.String()
	if !i.app.StatusSet {
		status += " (default)"
	}
	return fmt.Sprintf("%s · %s · registered %s", status, i.app.Owner, humanize.Time(i.app.RegisteredAt))
}

func (i appItem) FilterValue() string {
	return i.app.ID + " " + i.app.Owner
}

// New creates a new TUI model reading from src.
func New(src Source, opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Messaging Menu"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return Model{
		source: src,
		opts:   opts,
		mode:   ModeList,
		list:   l,
		help:   help.New(),
		keys:   DefaultKeyMap(),
	}
}

// Init starts loading and the refresh loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetch,
		m.tick(),
		m.watchForChanges,
	)
}

type snapshotMsg struct {
	apps   []model.Application
	status model.Status
	err    error
}

type tickMsg struct{}

type changeMsg struct{}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type statusChangedMsg struct {
	status model.Status
}

type copyResultMsg struct {
	err error
}

// fetch loads the current registrations and global status.
func (m Model) fetch() tea.Msg {
	if m.source == nil {
		return snapshotMsg{err: fmt.Errorf("no broker connection")}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	apps, err := m.source.ListApplications(ctx)
	if err != nil {
		return snapshotMsg{err: err}
	}
	status, err := m.source.GetStatus(ctx)
	if err != nil {
		return snapshotMsg{err: err}
	}
	return snapshotMsg{apps: apps, status: status}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// watchForChanges waits for the next broker change notification.
func (m Model) watchForChanges() tea.Msg {
	if m.opts.Changes == nil {
		return nil
	}
	if _, ok := <-m.opts.Changes; !ok {
		return nil
	}
	return changeMsg{}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		m.list.SetSize(msg.Width, msg.Height-3)
		m.viewport = viewport.New(msg.Width, msg.Height-4)
		m.viewport.YPosition = 2
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			return m, func() tea.Msg {
				return statusMsg{text: "Broker unavailable: " + msg.err.Error(), isErr: true}
			}
		}
		m.connected = true
		m.apps = msg.apps
		m.globalStatus = msg.status
		return m, m.list.SetItems(m.buildListItems())

	case tickMsg:
		return m, tea.Batch(m.fetch, m.tick())

	case changeMsg:
		return m, tea.Batch(m.fetch, m.watchForChanges)

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case statusChangedMsg:
		m.globalStatus = msg.status
		return m, tea.Batch(m.fetch, func() tea.Msg {
			return statusMsg{text: "Global status set to " + msg.status.String()}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Copy failed: " + msg.err.Error(), isErr: true}
			}
		}
		return m, func() tea.Msg {
			return statusMsg{text: "Copied to clipboard", isErr: false}
		}
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeList:
		m.list, cmd = m.list.Update(msg)
	case ModeDetail:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Typing into the list filter takes precedence over shortcuts.
	if m.mode == ModeList && m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeList
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(appItem); ok {
			m.selected = &item.app
			m.mode = ModeDetail
			m.viewport.SetContent(renderDetail(item.app))
			m.viewport.GotoTop()
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if item, ok := m.list.SelectedItem().(appItem); ok {
			return m, m.copyToClipboard(item.app.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.visibleApps(), "", "  ")
		if err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Failed to marshal JSON: " + err.Error(), isErr: true}
			}
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		data, err := yaml.Marshal(m.visibleApps())
		if err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Failed to marshal YAML: " + err.Error(), isErr: true}
			}
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CycleStatus):
		return m, m.changeStatus(nextStatus(m.globalStatus))

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetch
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// changeStatus asks the broker to switch the global status and reloads.
func (m Model) changeStatus(status model.Status) tea.Cmd {
	return func() tea.Msg {
		if m.source == nil {
			return statusMsg{text: "no broker connection", isErr: true}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := m.source.ChangeStatus(ctx, status); err != nil {
			return statusMsg{text: "Status change failed: " + err.Error(), isErr: true}
		}
		return statusChangedMsg{status: status}
	}
}

// nextStatus cycles through the presence values in menu order.
func nextStatus(current model.Status) model.Status {
	all := model.AllStatuses()
	for i, s := range all {
		if s == current {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}

func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.opts.ClipboardCommand
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

func (m Model) buildListItems() []list.Item {
	items := make([]list.Item, len(m.apps))
	for i, app := range m.apps {
		items[i] = appItem{app: app}
	}
	return items
}

func (m Model) visibleApps() []model.Application {
	items := m.list.VisibleItems()
	apps := make([]model.Application, 0, len(items))
	for _, item := range items {
		if ai, ok := item.(appItem); ok {
			apps = append(apps, ai.app)
		}
	}
	return apps
}

// statusStyle colours a presence value.
func statusStyle(status model.Status) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch status {
	case model.StatusAvailable:
		return style.Foreground(lipgloss.Color("10"))
	case model.StatusAway:
		return style.Foreground(lipgloss.Color("11"))
	case model.StatusBusy:
		return style.Foreground(lipgloss.Color("9"))
	default:
		return style.Foreground(lipgloss.Color("8"))
	}
}

func renderDetail(app model.Application) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	s := headerStyle.Render(app.ID) + "\n\n"
	s += labelStyle.Render("Menu path: ") + app.MenuPath + "\n"
	s += labelStyle.Render("Owner: ") + app.Owner + "\n"
	s += labelStyle.Render("Status: ") + statusStyle(app.Status).Render(app.Status.String())
	if !app.StatusSet {
		s += labelStyle.Render(" (never reported)")
	}
	s += "\n"
	s += labelStyle.Render("Registered: ") + humanize.Time(app.RegisteredAt) +
		" (" + app.RegisteredAt.Format(time.RFC3339) + ")\n"
	return s
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	switch m.mode {
	case ModeDetail:
		return m.viewDetail()
	case ModeHelp:
		return m.viewHelp()
	default:
		return m.viewList()
	}
}

func (m Model) header() string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	if !m.connected {
		return label.Render("Global status: ") + statusStyle(model.StatusOffline).Render("no broker")
	}
	return label.Render("Global status: ") + statusStyle(m.globalStatus).Render(m.globalStatus.String()) +
		label.Render(fmt.Sprintf("  ·  %d registered", len(m.apps)))
}

func (m Model) viewList() string {
	s := m.header() + "\n" + m.list.View()

	if m.statusMsg != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			style = style.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + style.Render(m.statusMsg)
	}

	s += "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
	return s
}

func (m Model) viewDetail() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	return headerStyle.Render("Application Detail") + "\n\n" + m.viewport.View()
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" + m.help.FullHelpView(m.keys.FullHelp()) +
		"\n\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

// Run starts the TUI and blocks until the user quits.
func Run(src Source, opts Options) error {
	p := tea.NewProgram(New(src, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
