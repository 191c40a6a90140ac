package tui

import (
	"fmt"
	"slices"
)

// View types with a TUI.
const (
	ViewStats   = "stats"
	ViewMetrics = "stats_metrics"
)

// Run starts the TUI for the given view type.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return RunStatsTUI(viewType, data)
}

// IsTUISupported reports whether the view type has a TUI.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStats, ViewMetrics}
}
