package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vigil/internal/hook"
	"vigil/internal/player"
)

const refreshInterval = 200 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	stateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	textStyle   = lipgloss.NewStyle()
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8"))
)

type keyMap struct {
	Toggle key.Binding
	Prev   key.Binding
	Next   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Prev, k.Next, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "play/pause")),
	Prev:   key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p", "previous")),
	Next:   key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n", "next")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model for a running page.
type Model struct {
	title string
	page  *hook.Page
	// do runs fn on the engine goroutine and waits for it.
	do     func(fn func())
	layout TextLayout

	keys keyMap
	help help.Model
	snap Snapshot
}

// NewModel creates a model showing page. Text is wrapped with layout, which
// should be the layout the page measures with.
func NewModel(title string, page *hook.Page, do func(fn func()), layout TextLayout) Model {
	m := Model{title: title, page: page, do: do, layout: layout, keys: keys, help: help.New()}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tickMsg:
		m.refresh()
		return m, tick()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.do(func() { TogglePlayback(m.page) })
		case key.Matches(msg, m.keys.Next):
			m.do(func() { m.page.Click("[data-segment-next]") })
		case key.Matches(msg, m.keys.Prev):
			m.do(func() { m.page.Click("[data-segment-prev]") })
		}
		m.refresh()
	}
	return m, nil
}

func (m *Model) refresh() {
	var snap Snapshot
	m.do(func() { snap = Capture(m.page) })
	m.snap = snap
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	for _, p := range m.snap.Players {
		b.WriteString(m.renderPlayer(p))
		b.WriteString("\n")
	}
	for _, t := range m.snap.Texts {
		b.WriteString(boxStyle.Render(m.renderText(t)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderPlayer(p PlayerView) string {
	icon := "⏸"
	if p.State == "playing" {
		icon = "▶"
	}
	line := fmt.Sprintf("%s %s  %s  %s / %s",
		icon,
		p.ID,
		stateStyle.Render(p.State+" · "+p.Phase),
		player.FormatDuration(p.Position),
		player.FormatDuration(p.Duration),
	)
	if bar := progressBar(p.Position, p.Duration, 20); bar != "" {
		line += "  " + bar
	}
	if p.Segmented && p.Count > 0 {
		line += "\n  " + p.Label + dimStyle.Render(fmt.Sprintf(" (%d/%d)", p.Index+1, p.Count))
	}
	return line
}

func (m Model) renderText(t TextView) string {
	var lines []string
	for i, seg := range t.Segments {
		style := textStyle
		if t.Discrete && i == t.Active {
			style = activeStyle
		}
		lines = append(lines, strings.Split(style.Width(m.layout.Width).Render(seg), "\n")...)
	}

	rows := m.layout.Rows
	if rows <= 0 || rows > len(lines) {
		rows = len(lines)
	}
	start := int(math.Round(t.Offset))
	if start > len(lines)-rows {
		start = len(lines) - rows
	}
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:start+rows], "\n")
}

// progressBar draws pos/dur as a bar of width cells, or "" while dur is unknown.
func progressBar(pos, dur float64, width int) string {
	if math.IsNaN(dur) || math.IsInf(dur, 0) || dur <= 0 {
		return ""
	}
	ratio := math.Min(1, math.Max(0, pos/dur))
	filled := int(ratio * float64(width))
	return strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", width-filled))
}
