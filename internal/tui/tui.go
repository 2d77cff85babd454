// Package tui provides an interactive timeline for a programme using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/baiirun/programme/internal/groups"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/model"
	"github.com/baiirun/programme/internal/schedule"
)

// Bar glyphs
const (
	glyphBar       = "█"
	glyphGroup     = "▬"
	glyphMilestone = "◆"
	glyphExpanded  = "▾"
	glyphCollapsed = "▸"
)

// Layout constants
const (
	nameWidth      = 28
	minBarWidth    = 10
	contentPadding = 2
)

// Row is one visible line of the timeline.
type Row struct {
	Task    model.Task      `json:"task"`
	Level   int             `json:"level"`
	Span    model.Span      `json:"span"`
	Color   string          `json:"color"`
	Summary *groups.Summary `json:"summary,omitempty"`
}

// Model is the main Bubble Tea model for the timeline.
type Model struct {
	ctx     context.Context
	svc     *schedule.Service
	project string

	rows    []Row
	mode    mode.Mode
	history schedule.HistoryState
	cursor  int

	keys KeyMap
	help help.Model

	// UI state
	width   int
	height  int
	err     error
	message string // temporary status message
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	reducedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// New creates a timeline model for one project.
func New(ctx context.Context, svc *schedule.Service, project string) Model {
	return Model{
		ctx:     ctx,
		svc:     svc,
		project: project,
		keys:    DefaultKeyMap(),
		help:    help.New(),
	}
}

// Messages
type timelineMsg struct {
	rows    []Row
	mode    mode.Mode
	history schedule.HistoryState
	err     error
}

type actionMsg struct {
	message string
	err     error
}

// loadTimeline reads the visible tasks, group bars and undo state.
func (m Model) loadTimeline() tea.Cmd {
	return func() tea.Msg {
		md, err := m.svc.Mode(m.ctx)
		if err != nil {
			return timelineMsg{err: err}
		}
		visible, err := m.svc.Tasks().Visible(m.ctx, m.project)
		if err != nil {
			return timelineMsg{err: err}
		}
		summaries, err := m.svc.Groups().Summaries(m.ctx, md, m.project)
		if err != nil {
			return timelineMsg{err: err}
		}
		hist, err := m.svc.HistoryState(m.ctx, m.project)
		if err != nil {
			return timelineMsg{err: err}
		}
		return timelineMsg{rows: BuildRows(visible, summaries, md), mode: md, history: hist}
	}
}

// BuildRows lays out visible tasks (in hierarchy order) with their nesting
// level. Groups take the span of their summary bar.
func BuildRows(visible []model.Task, summaries []groups.Summary, m mode.Mode) []Row {
	byID := make(map[string]groups.Summary, len(summaries))
	for _, s := range summaries {
		byID[s.TaskID] = s
	}
	levels := make(map[string]int, len(visible))
	rows := make([]Row, 0, len(visible))
	for _, t := range visible {
		level := 0
		if t.ParentID != nil {
			if parent, ok := levels[*t.ParentID]; ok {
				level = parent + 1
			}
		}
		levels[t.ID] = level
		row := Row{Task: t, Level: level, Span: t.Span(), Color: groups.Color(t, m)}
		if s, ok := byID[t.ID]; ok {
			row.Summary = &s
			row.Span = s.Span
			row.Color = s.Color
		}
		rows = append(rows, row)
	}
	return rows
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadTimeline()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Clear message on any key
		m.message = ""
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case timelineMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rows = msg.rows
		m.mode = msg.mode
		m.history = msg.history
		if m.cursor >= len(m.rows) {
			m.cursor = max(0, len(m.rows)-1)
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.message = msg.message
		}
		return m, m.loadTimeline()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Earlier):
		return m, m.shift(-1)

	case key.Matches(msg, m.keys.Later):
		return m, m.shift(1)

	case key.Matches(msg, m.keys.Collapse):
		return m, m.toggle()

	case key.Matches(msg, m.keys.Undo):
		return m, func() tea.Msg {
			a, err := m.svc.Undo(m.ctx, m.project)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Undid: " + a.Description}
		}

	case key.Matches(msg, m.keys.Redo):
		return m, func() tea.Msg {
			a, err := m.svc.Redo(m.ctx, m.project)
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{message: "Redid: " + a.Description}
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadTimeline()
	}
	return m, nil
}

func (m Model) selected() (Row, bool) {
	if len(m.rows) == 0 || m.cursor >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.cursor], true
}

// shift moves the selected bar by n working days.
func (m Model) shift(n int) tea.Cmd {
	row, ok := m.selected()
	if !ok {
		return nil
	}
	id := row.Task.ID
	return func() tea.Msg {
		res, err := m.svc.ShiftBar(m.ctx, m.project, id, n)
		if err != nil {
			return actionMsg{err: err}
		}
		message := fmt.Sprintf("Moved %s to %s", res.Task.Name, res.Task.Span())
		for _, w := range res.Warnings {
			message += " (warning: " + w.Message + ")"
		}
		return actionMsg{message: message}
	}
}

func (m Model) toggle() tea.Cmd {
	row, ok := m.selected()
	if !ok {
		return nil
	}
	id := row.Task.ID
	return func() tea.Msg {
		t, err := m.svc.ToggleCollapse(m.ctx, m.project, id)
		if err != nil {
			return actionMsg{err: err}
		}
		state := "Expanded"
		if t.Collapsed {
			state = "Collapsed"
		}
		return actionMsg{message: fmt.Sprintf("%s %s", state, t.Name)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render(m.project)
	if m.mode.Reduced {
		header += " " + reducedStyle.Render("[reduced]")
	}
	b.WriteString(header + "\n\n")

	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("No tasks"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.timelineView())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.historyLine()))

	// Status message
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	} else if m.message != "" {
		b.WriteString("\n")
		b.WriteString(messageStyle.Render(m.message))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	// Apply padding to entire content
	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) historyLine() string {
	line := fmt.Sprintf("undo %d · redo %d", m.history.Counts.Undo, m.history.Counts.Redo)
	if m.history.Next != "" {
		line += " · next undo: " + m.history.Next
	}
	return line
}

func (m Model) timelineView() string {
	barWidth := m.width - nameWidth - contentPadding*2 - 1
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	window := Window(m.rows)

	var b strings.Builder
	for i, row := range m.rows {
		name := padToWidth(m.label(row), nameWidth)
		if i == m.cursor {
			name = selectedRowStyle.Render(name)
		}
		b.WriteString(name + " " + RenderBar(row, window, barWidth) + "\n")
	}
	b.WriteString(strings.Repeat(" ", nameWidth+1))
	b.WriteString(dimStyle.Render(axis(window, barWidth)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) label(row Row) string {
	marker := "  "
	if row.Summary != nil || row.Task.Kind == model.TaskKindPhase {
		marker = glyphExpanded + " "
		if row.Task.Collapsed {
			marker = glyphCollapsed + " "
		}
	}
	return strings.Repeat("  ", row.Level) + marker + row.Task.Name
}

// Window is the date range covering every row.
func Window(rows []Row) model.Span {
	var w model.Span
	for i, row := range rows {
		if i == 0 {
			w = row.Span
			continue
		}
		w.Start = model.MinDate(w.Start, row.Span.Start)
		w.End = model.MaxDate(w.End, row.Span.End)
	}
	return w
}

// column maps a date to a column in [0, width).
func column(d model.Date, window model.Span, width int) int {
	days := window.Days() + 1
	col := window.Start.DaysUntil(d) * width / days
	return min(max(col, 0), width-1)
}

// RenderBar draws the row's span inside window scaled to width columns.
func RenderBar(row Row, window model.Span, width int) string {
	width = max(width, minBarWidth)
	start := column(row.Span.Start, window, width)
	end := column(row.Span.End, window, width)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(row.Color))

	var bar string
	switch {
	case row.Task.Kind == model.TaskKindMilestone:
		bar = glyphMilestone
	case row.Summary != nil:
		bar = strings.Repeat(glyphGroup, end-start+1)
	default:
		bar = strings.Repeat(glyphBar, end-start+1)
	}
	return strings.Repeat(" ", start) + style.Render(bar)
}

func axis(window model.Span, width int) string {
	left := window.Start.String()
	right := window.End.String()
	gap := width - len(left) - len(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func padToWidth(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		runes := []rune(s)
		if len(runes) > width-1 {
			runes = runes[:width-1]
		}
		return string(runes) + "…"
	}
	return s + strings.Repeat(" ", width-w)
}

// Run starts the TUI.
func Run(ctx context.Context, svc *schedule.Service, project string) error {
	m := New(ctx, svc, project)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
