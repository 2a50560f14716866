// Package tui renders a live transcript in the terminal.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	transcript "github.com/koscakluka/ema-transcript/core"
	"github.com/koscakluka/ema-transcript/core/export"
	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/muesli/reflow/wordwrap"
)

// Source is the session state the viewer renders.
type Source interface {
	Snapshot() []items.Item
	CallStatus() transcript.CallStatus
}

type refreshMsg struct{}

// Refresh asks the viewer to re-read its source. Hosts send it with
// tea.Program.Send whenever the session changes.
func Refresh() tea.Msg { return refreshMsg{} }

type Model struct {
	source   Source
	keys     keyMap
	viewport viewport.Model
	ready    bool
	follow   bool
	width    int

	entries []items.Item
	status  transcript.CallStatus
}

func New(source Source) Model {
	return Model{
		source: source,
		keys:   defaultKeyMap(),
		follow: true,
		status: transcript.CallStatusIdle,
	}
}

func (m Model) Init() tea.Cmd {
	return Refresh
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Follow):
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-4, 1)
		if !m.ready {
			m.viewport = viewport.New(max(msg.Width-4, 1), height)
			m.ready = true
		} else {
			m.viewport.Width = max(msg.Width-4, 1)
			m.viewport.Height = height
		}
		m.render()
		return m, nil

	case refreshMsg:
		m.entries = export.Entries(m.source.Snapshot())
		m.status = m.source.CallStatus()
		m.render()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) render() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderEntries(m.entries, m.viewport.Width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading transcript..."
	}

	statusStyle, ok := statusStyles[string(m.status)]
	if !ok {
		statusStyle = statusStyles["idle"]
	}
	header := titleStyle.Render("Call transcript") + "  " + statusStyle.Render(strings.ToUpper(string(m.status)))

	follow := "off"
	if m.follow {
		follow = "on"
	}
	help := helpStyle.Render(fmt.Sprintf("%d items • f follow (%s) • q quit", len(m.entries), follow))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		transcriptStyle.Render(m.viewport.View()),
		help,
	)
}

func renderEntries(entries []items.Item, width int) string {
	if len(entries) == 0 {
		return runningStyle.Render("Waiting for the conversation to start...")
	}

	blocks := make([]string, 0, len(entries))
	for _, item := range entries {
		blocks = append(blocks, renderEntry(item, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderEntry(item items.Item, width int) string {
	roleStyle, ok := roleStyles[string(item.Role)]
	if !ok {
		roleStyle = roleStyles["tool"]
	}

	header := roleStyle.Render(export.RoleName(item.Role))
	if !item.Timestamp.IsZero() {
		header += " " + timestampStyle.Render(item.Timestamp.Format(export.TimestampLayout))
	}
	if !item.IsCompleted() {
		header += " " + runningStyle.Render("(speaking)")
	}
	for _, badge := range badges(item) {
		header += " " + badge
	}

	return header + "\n" + wordwrap.String(item.Text(), max(width, 10))
}

func badges(item items.Item) []string {
	badges := []string{}
	switch {
	case item.HasAnnotation(items.AnnotationTargetLocale):
		badges = append(badges, badgeStyle.Render("[Hindi text detected]"))
	case item.HasAnnotation(items.AnnotationNonDefaultLanguage):
		badges = append(badges, badgeStyle.Render("[Non-English text]"))
	}
	if item.HasAnnotation(items.AnnotationFallbackTranscribed) {
		badges = append(badges, badgeStyle.Render("[Re-transcribed]"))
	}
	if item.HasAnnotation(items.AnnotationFallbackFailed) {
		badges = append(badges, failedStyle.Render("[Re-transcription failed]"))
	}
	if item.HasAnnotation(items.AnnotationMalformedArguments) {
		badges = append(badges, failedStyle.Render("[Malformed arguments]"))
	}
	return badges
}
