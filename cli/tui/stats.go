package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/stitch/cli/reader"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// StatsModel is a Bubble Tea model for the stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStats:
		content = m.renderJournalStats()
	case ViewMetrics:
		content = m.renderMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := helpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderJournalStats() string {
	data, ok := m.data.(*reader.JournalStats)
	if !ok {
		return "Invalid data type for stats"
	}

	var b strings.Builder
	title := "Journal Statistics"
	if data.Node != "" {
		title += " (" + data.Node + ")"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Events", data.TotalEvents, accentColor),
		m.renderStatBox("Completed", data.Completed, deliveredColor),
		m.renderStatBox("Timeouts", data.Timeouts, shedColor),
		m.renderStatBox("Protocol Errors", data.Errors, lostColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Events by kind"))
	b.WriteString("\n")
	for _, kc := range reader.SortedCounts(data.EventsByKind) {
		b.WriteString(m.renderRow(kc.Kind, kc.Count, KindStyle(kc.Kind)))
	}

	if len(data.ErrorsByKind) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Protocol errors by kind"))
		b.WriteString("\n")
		for _, kc := range reader.SortedCounts(data.ErrorsByKind) {
			b.WriteString(m.renderRow(kc.Kind, kc.Count, valueStyle.Foreground(lostColor)))
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("Archived messages:"),
		valueStyle.Render(fmt.Sprintf("%d (%d bytes)", data.Messages, data.MessageBytes))))
	b.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Snapshots scanned:"),
		valueStyle.Render(fmt.Sprintf("%d", data.Snapshots))))

	return b.String()
}

func (m StatsModel) renderMetrics() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Node Metrics (%s @ %s)", data.Node, data.Ts)))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Datagrams", data.DatagramsReceived, accentColor),
		m.renderStatBox("Completed", data.MessagesCompleted, deliveredColor),
		m.renderStatBox("Rejected", data.ChunksRejected, lostColor),
		m.renderStatBox("Dropped Events", data.EventsDropped, shedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value int64
	}{
		{"Decode errors", data.DecodeErrors},
		{"Duplicate chunks", data.DuplicateChunks},
		{"Late chunks", data.LateChunks},
		{"Timeouts", data.Timeouts},
		{"Capacity evictions", data.CapacityEvictions},
		{"Dispatch ok", data.DispatchSuccess},
		{"Dispatch failed", data.DispatchFailure},
		{"Dispatch dropped", data.DispatchDropped},
		{"Events persisted", data.EventsPersisted},
		{"Lode writes ok", data.LodeWriteSuccess},
		{"Lode writes failed", data.LodeWriteFailure},
	}
	for _, r := range rows {
		b.WriteString(m.renderRow(r.label, r.value, valueStyle))
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Policy / backend / duplicates:"),
		valueStyle.Render(fmt.Sprintf("%s / %s / %s", data.Policy, data.StorageBackend, data.DuplicatePolicy))))

	return b.String()
}

func (m StatsModel) renderRow(label string, value int64, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label), style.Render(fmt.Sprintf("%d", value)))
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	return tileStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center,
		tileValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)),
		tileLabelStyle.Render(label),
	))
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without a running program.
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
