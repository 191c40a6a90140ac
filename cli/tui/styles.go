// Package tui provides Bubble Tea views for stitch stats.
//
// The TUI is opt-in (--tui) and renders the same payloads as the
// json, yaml and table formats.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/stitch/types"
)

// Colors by message fate.
var (
	accentColor    = lipgloss.Color("#0EA5E9") // Sky
	deliveredColor = lipgloss.Color("#22C55E") // Green
	shedColor      = lipgloss.Color("#EAB308") // Yellow
	lostColor      = lipgloss.Color("#DC2626") // Red
	dimColor       = lipgloss.Color("#71717A") // Zinc
	plainColor     = lipgloss.Color("#F4F4F5")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(accentColor)
	labelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(30)
	valueStyle = lipgloss.NewStyle().Foreground(plainColor)
	helpStyle  = lipgloss.NewStyle().Foreground(dimColor).Italic(true).MarginTop(1)

	tileStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Width(18).
			Align(lipgloss.Center)
	tileLabelStyle = lipgloss.NewStyle().Foreground(dimColor)
	tileValueStyle = lipgloss.NewStyle().Bold(true)
)

// KindStyle colors an event kind by what it says about a message:
// delivered, shed chunks the message survives, or lost.
func KindStyle(kind string) lipgloss.Style {
	k := types.EventKind(kind)
	switch {
	case k == types.EventKindCompleted:
		return valueStyle.Foreground(deliveredColor)
	case k == types.EventKindDuplicateChunk, k == types.EventKindLateChunk:
		return valueStyle.Foreground(shedColor)
	case k.IsFailure(), k == types.EventKindProtocolError:
		return valueStyle.Foreground(lostColor)
	default:
		return valueStyle
	}
}
