// Package tui provides the live progress display for evaluation runs.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/articlebench/internal/runner"
)

// maxRowLines caps the per-row status lines shown under the bar.
const maxRowLines = 10

// ProgressMsg carries one runner progress event into the program.
type ProgressMsg struct {
	Event runner.ProgressEvent
}

// RunDoneMsg is sent when the run has finished. The program quits on it.
type RunDoneMsg struct {
	Err error
}

type tickMsg time.Time

type rowState struct {
	phase   runner.Phase
	request string
	err     error
	at      time.Time
}

// ProgressModel renders a progress bar and per-row status for a run.
type ProgressModel struct {
	title string
	total int
	rows  map[int]*rowState

	done   int
	failed int

	bar      progress.Model
	start    time.Time
	now      time.Time
	width    int
	finished bool
	runErr   error
	aborted  bool

	// Styles
	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	activeStyle  lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	dimStyle     lipgloss.Style
	requestStyle lipgloss.Style
}

// NewProgressModel creates a model for a run of total rows.
func NewProgressModel(title string, total int) *ProgressModel {
	now := time.Now()
	return &ProgressModel{
		title: title,
		total: total,
		rows:  make(map[int]*rowState),
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		start: now,
		now:   now,
		width: 80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		activeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(14),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Width(14),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Width(14),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		requestStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// Init implements tea.Model.
func (m *ProgressModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-20, 10), 60)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.finished {
				m.aborted = true
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		if m.finished {
			return m, nil
		}
		return m, tick()

	case ProgressMsg:
		m.apply(msg.Event)

	case RunDoneMsg:
		m.finished = true
		m.runErr = msg.Err
		m.now = time.Now()
		return m, tea.Quit
	}
	return m, nil
}

func (m *ProgressModel) apply(ev runner.ProgressEvent) {
	if ev.Total > 0 {
		m.total = ev.Total
	}
	row, ok := m.rows[ev.Index]
	if !ok {
		row = &rowState{}
		m.rows[ev.Index] = row
	}
	if ev.Request != "" {
		row.request = ev.Request
	}
	row.phase = ev.Phase
	row.at = time.Now()

	switch ev.Phase {
	case runner.PhaseDone:
		m.done++
	case runner.PhaseFailed:
		m.done++
		m.failed++
		row.err = ev.Err
	}
}

// Aborted reports whether the user quit before the run finished.
func (m *ProgressModel) Aborted() bool {
	return m.aborted
}

// Completed returns finished and failed row counts.
func (m *ProgressModel) Completed() (done, failed int) {
	return m.done, m.failed
}

// View implements tea.Model.
func (m *ProgressModel) View() string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Render(m.title))
	b.WriteString("\n")

	pct := 0.0
	if m.total > 0 {
		pct = float64(m.done) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n")

	stats := fmt.Sprintf("%d/%d rows", m.done, m.total)
	if m.failed > 0 {
		stats += m.failedStyle.UnsetWidth().Render(fmt.Sprintf("  %d failed", m.failed))
	}
	elapsed := m.now.Sub(m.start).Truncate(time.Second)
	b.WriteString(m.labelStyle.Render(stats))
	b.WriteString(m.dimStyle.Render(fmt.Sprintf("  elapsed %s", elapsed)))
	b.WriteString("\n\n")

	for _, idx := range m.visibleRows() {
		b.WriteString(m.renderRow(idx, m.rows[idx]))
		b.WriteString("\n")
	}

	switch {
	case m.finished && m.runErr != nil:
		b.WriteString("\n")
		b.WriteString(m.failedStyle.UnsetWidth().Render("Run stopped: " + m.runErr.Error()))
		b.WriteString("\n")
	case m.finished:
		b.WriteString("\n")
		b.WriteString(m.doneStyle.UnsetWidth().Render("Run complete"))
		b.WriteString("\n")
	default:
		b.WriteString(m.dimStyle.Render("\nq to abort"))
		b.WriteString("\n")
	}
	return b.String()
}

// visibleRows picks in-flight rows first, then the most recent finished
// ones, capped at maxRowLines and shown in row order.
func (m *ProgressModel) visibleRows() []int {
	idx := make([]int, 0, len(m.rows))
	for i := range m.rows {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		ra, rb := m.rows[idx[a]], m.rows[idx[b]]
		aa, ba := inFlight(ra.phase), inFlight(rb.phase)
		if aa != ba {
			return aa
		}
		if !ra.at.Equal(rb.at) {
			return ra.at.After(rb.at)
		}
		return idx[a] < idx[b]
	})
	if len(idx) > maxRowLines {
		idx = idx[:maxRowLines]
	}
	sort.Ints(idx)
	return idx
}

func inFlight(p runner.Phase) bool {
	return p == runner.PhaseOrchestrating || p == runner.PhaseEvaluating
}

func (m *ProgressModel) renderRow(i int, r *rowState) string {
	style := m.activeStyle
	switch r.phase {
	case runner.PhaseDone:
		style = m.doneStyle
	case runner.PhaseFailed:
		style = m.failedStyle
	}

	request := clip(r.request, max(m.width-24, 20))
	line := fmt.Sprintf("%s %s %s",
		m.dimStyle.Render(fmt.Sprintf("#%03d", i)),
		style.Render(string(r.phase)),
		m.requestStyle.Render(request))
	if r.err != nil {
		line += m.dimStyle.Render("  " + clip(r.err.Error(), 60))
	}
	return line
}

// clip shortens s to at most n runes, ending in "..." when cut.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// Forward sends every event from events into the program until the channel
// is closed.
func Forward(p *tea.Program, events <-chan runner.ProgressEvent) {
	for ev := range events {
		p.Send(ProgressMsg{Event: ev})
	}
}
