// Package tui draws the dashboard in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/angeloszaimis/healthdash/internal/dashboard"
)

// Controller is the part of the dashboard controller the UI drives.
type Controller interface {
	Start(ctx context.Context)
	Snapshot() dashboard.State
	HandleKey(key string) bool
	ViewSystemInfo(ctx context.Context) *dashboard.Dialog
	DismissDialog() bool
}

// ChangedMsg tells the model to redraw from a fresh snapshot.
type ChangedMsg struct{}

// Notifier returns a callback for Controller.OnChange that wakes p. The
// send happens on its own goroutine because the controller may report a
// change from inside Update.
func Notifier(p *tea.Program) func() {
	return func() { go p.Send(ChangedMsg{}) }
}

type Model struct {
	ctx      context.Context
	ctrl     Controller
	interval time.Duration
	keys     keyMap
	help     help.Model
	styles   styles
	state    dashboard.State
	width    int
}

// New builds the model. interval is only displayed.
func New(ctx context.Context, ctrl Controller, interval time.Duration) *Model {
	return &Model{
		ctx:      ctx,
		ctrl:     ctrl,
		interval: interval,
		keys:     defaultKeyMap(),
		help:     help.New(),
		styles:   newStyles(),
		state:    ctrl.Snapshot(),
	}
}

// Run starts a full-screen program around ctrl and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, interval time.Duration, onChange func(func())) error {
	p := tea.NewProgram(New(ctx, ctrl, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	onChange(Notifier(p))

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts the controller once the program is running, so change
// notifications always have a receiver.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Start(m.ctx)
		return ChangedMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.state = m.ctrl.Snapshot()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case m.state.Dialog != nil:
		// An open dialog is modal: only dismissal gets through.
		if key.Matches(msg, m.keys.Dismiss) {
			m.ctrl.DismissDialog()
			m.state = m.ctrl.Snapshot()
		}
		return m, nil

	case key.Matches(msg, m.keys.Info):
		return m, m.fetchSystemInfo()

	case key.Matches(msg, m.keys.Refresh, m.keys.Toggle):
		m.ctrl.HandleKey(msg.String())
		m.state = m.ctrl.Snapshot()
		return m, nil
	}

	return m, nil
}

func (m *Model) fetchSystemInfo() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.ViewSystemInfo(m.ctx)
		return ChangedMsg{}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Health Monitor"))
	b.WriteString("\n")
	b.WriteString(m.renderServices())

	if notes := m.renderNotifications(); notes != "" {
		b.WriteString("\n\n")
		b.WriteString(notes)
	}

	if m.state.Dialog != nil {
		b.WriteString("\n\n")
		b.WriteString(m.renderDialog(m.state.Dialog))
	}

	b.WriteString("\n")
	b.WriteString(m.styles.footer.Render(m.footer()))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m *Model) renderServices() string {
	view := m.state.View
	if view.Empty() {
		msg := view.Placeholder
		if msg == "" {
			msg = "Loading..."
		}
		return m.styles.placeholder.Render(msg)
	}

	rows := make([][]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		restarts := strconv.Itoa(r.Restarts)
		if r.Restarted {
			restarts += " ↻"
		}
		rows = append(rows, []string{
			r.Name,
			r.Glyph + " " + r.Status,
			r.Error,
			restarts,
			r.LastChecked,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(draculaComment))).
		Headers("SERVICE", "STATUS", "LAST ERROR", "RESTARTS (1H)", "LAST CHECKED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return m.styles.header
			}
			if col == 1 && row >= 0 && row < len(view.Rows) {
				return m.styles.tier(view.Rows[row].Tier).Padding(0, 1)
			}
			return m.styles.cell
		})

	if m.width > 0 {
		t = t.Width(m.width)
	}

	return t.Render()
}

func (m *Model) renderNotifications() string {
	lines := make([]string, 0, len(m.state.Notifications))
	for _, n := range m.state.Notifications {
		style := m.styles.info
		if n.Severity == dashboard.SeverityError {
			style = m.styles.error
		}
		lines = append(lines, style.Render(n.Message))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderDialog(d *dashboard.Dialog) string {
	style := m.styles.dialog
	if d.Error {
		style = m.styles.dialogError
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.header.UnsetPadding().Render(d.Title),
		strings.Join(d.Lines, "\n"),
		m.styles.placeholder.Render("esc to close"),
	)
	return style.Render(body)
}

func (m *Model) footer() string {
	updated := "never"
	if m.state.LastUpdatedText != "" {
		updated = m.state.LastUpdatedText
	}

	auto := "off"
	if m.state.AutoRefreshEnabled {
		auto = fmt.Sprintf("on (%s)", m.interval)
	}

	parts := []string{
		"Last updated: " + updated,
		"Auto-refresh: " + auto,
	}
	if p := m.state.Polls; p != nil {
		parts = append(parts, fmt.Sprintf("Polls: %d ok, %d failed", p.Successes, p.FailureTotal))
	}

	return strings.Join(parts, " | ")
}
