// Package render formats sessions for terminal display.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmill/taskmill/internal/state"
)

// Color scheme - one consistent color per concern.
var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // White bold - headers

	goalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White

	// Phases
	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // Blue - active phases

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11")) // Yellow

	// Task outcomes
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray

	// Conversation
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")) // Cyan

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // Magenta

	// Trace timeline
	traceNodeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Width(14)
)

// phaseStyle picks the style for a phase badge.
func phaseStyle(p state.Phase) lipgloss.Style {
	switch p {
	case state.PhaseCompleted:
		return successStyle
	case state.PhaseError:
		return errorStyle
	case state.PhasePaused:
		return pausedStyle
	case state.PhaseIdle:
		return pendingStyle
	default:
		return runningStyle
	}
}

// statusMarker returns the one-character marker for a task status.
func statusMarker(s state.TaskStatus) string {
	switch s {
	case state.TaskCompleted:
		return successStyle.Render("✓")
	case state.TaskFailed:
		return errorStyle.Render("✗")
	case state.TaskInProgress:
		return runningStyle.Render("→")
	default:
		return pendingStyle.Render("·")
	}
}
