package shell

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the lipgloss styles used by the menu and chat prompts. They
// are bound to a renderer for the shell's writer, so output to a pipe or a
// test buffer carries no escape sequences.
type styles struct {
	// Title renders section banners.
	Title lipgloss.Style
	// Option renders menu entries.
	Option lipgloss.Style
	// Prompt renders input prompts.
	Prompt lipgloss.Style
	// Assistant renders the answer prefix.
	Assistant lipgloss.Style
	// Muted renders progress lines and summaries.
	Muted lipgloss.Style
	// Success renders completion banners.
	Success lipgloss.Style
	// Error renders per-turn and per-run failures.
	Error lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		Title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Option:    r.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
		Prompt:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Error:     r.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	}
}
