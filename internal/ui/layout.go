// Package ui renders a page in the terminal: a lipgloss text layout that the
// sync engines measure against, a bubbletea program showing players and
// synchronized text, and an fzf picker for the progress commands.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"vigil/internal/dom"
)

// TextLayout measures elements as word-wrapped terminal text, one row per line.
type TextLayout struct {
	Width int
	Rows  int
}

func (l TextLayout) Height(el *dom.Element) float64 {
	text := el.Text()
	if text == "" {
		return 0
	}
	return float64(lipgloss.Height(l.wrap(text)))
}

func (l TextLayout) ViewportHeight(*dom.Element) float64 {
	return float64(l.Rows)
}

func (l TextLayout) wrap(text string) string {
	return lipgloss.NewStyle().Width(l.Width).Render(text)
}
