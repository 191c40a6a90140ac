package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/stitch/cli/reader"
	"github.com/pithecene-io/stitch/lode"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewStats, true},
		{ViewMetrics, true},
		{"replay", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("replay", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func TestRenderStatsStatic_JournalStats(t *testing.T) {
	stats := reader.FromSummary("node-1", lode.Summary{
		EventsByKind: map[string]int64{"completed": 12, "protocol_error": 2},
		ErrorsByKind: map[string]int64{"conflicting_chunk": 2},
		Messages:     3,
		MessageBytes: 300,
		Snapshots:    4,
	})

	out := RenderStatsStatic(ViewStats, stats)
	for _, want := range []string{"Journal Statistics", "node-1", "completed", "conflicting_chunk", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderStatsStatic_Metrics(t *testing.T) {
	snap := &reader.MetricsSnapshot{Node: "node-1", Ts: "2026-03-01T12:00:00Z", MessagesCompleted: 42, Policy: "strict"}
	out := RenderStatsStatic(ViewMetrics, snap)
	if !strings.Contains(out, "Node Metrics") || !strings.Contains(out, "42") {
		t.Errorf("unexpected metrics view:\n%s", out)
	}
}

func TestRenderStatsStatic_WrongData(t *testing.T) {
	out := RenderStatsStatic(ViewMetrics, "nope")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got:\n%s", out)
	}
}

func TestStatsModel_Quit(t *testing.T) {
	m := NewStatsModel(ViewStats, &reader.JournalStats{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.(StatsModel).View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestKindStyle(t *testing.T) {
	tests := []struct {
		kind string
		want any
	}{
		{"completed", deliveredColor},
		{"late_chunk", shedColor},
		{"duplicate_chunk", shedColor},
		{"incomplete_assembly_timeout", lostColor},
		{"capacity_eviction", lostColor},
		{"protocol_error", lostColor},
		{"something_else", plainColor},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := KindStyle(tt.kind).GetForeground(); got != tt.want {
				t.Errorf("KindStyle(%q) foreground = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}
