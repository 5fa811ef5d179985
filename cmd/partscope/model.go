package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/controls"
	"github.com/Faultbox/drone-explorer/internal/explorer"
)

const tickInterval = 50 * time.Millisecond

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model drives an explorer without a window: frames advance on a timer
// and parts are chosen from a list.
type model struct {
	app    *explorer.App
	ctx    context.Context
	cursor int
	last   time.Time
	err    error
}

func newModel(ctx context.Context, app *explorer.App) model {
	return model{app: app, ctx: ctx}
}

func (m model) Init() tea.Cmd { return tick() }

// rows returns the list: the whole model first, then every part.
func (m model) rows() []assembly.Entry {
	rows := []assembly.Entry{{Name: assembly.EntireModel, Label: "Entire model"}}
	return append(rows, m.app.State().Parts...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		now := time.Time(msg)
		dt := tickInterval
		if !m.last.IsZero() {
			dt = now.Sub(m.last)
		}
		m.last = now
		m.err = m.app.Frame(dt)
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows())-1 {
				m.cursor++
			}
		case "enter", " ":
			if rows := m.rows(); m.cursor < len(rows) {
				m.app.SelectPart(rows[m.cursor].Name)
			}
		case "tab":
			m.app.KeyDown(controls.CyclePart)
			m.cursor = m.rowOf(m.app.State().Selected)
		case "s":
			m.app.KeyDown(controls.StartStop)
		case "x":
			m.app.KeyDown(controls.Reset)
		case "f":
			m.app.KeyDown(controls.FreeView)
		case "r":
			m.err = m.app.Reload(m.ctx)
			m.cursor = 0
		}
	}
	return m, nil
}

func (m model) rowOf(name string) int {
	for i, r := range m.rows() {
		if r.Name == name {
			return i
		}
	}
	return 0
}

func (m model) View() string {
	st := m.app.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("partscope"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %s", st.Phase)))
	b.WriteString("\n\n")

	// Halted errors are shown below with the reload hint.
	if m.err != nil && st.Phase != explorer.PhaseHalted {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	switch st.Phase {
	case explorer.PhaseIdle, explorer.PhaseLoading:
		fmt.Fprintf(&b, "Loading model... %3.0f%%\n", st.Progress*100)
		return b.String()
	case explorer.PhaseHalted:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", st.Err)))
		b.WriteString("\n\nPress r to reload.\n")
		return b.String()
	}

	if st.Load.Degraded() {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Loaded with %d failure(s)", len(st.Load.Failures))))
		b.WriteString("\n\n")
	}

	var list strings.Builder
	for i, r := range m.rows() {
		line := r.Label
		if r.Name == st.Selected {
			line = selectedStyle.Render(line + " *")
		}
		if i == m.cursor {
			list.WriteString(cursorStyle.Render("> "))
		} else {
			list.WriteString("  ")
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	var info strings.Builder
	info.WriteString(titleStyle.Render(st.Info.Title))
	info.WriteString("\n")
	info.WriteString(st.Info.Description)
	info.WriteString("\n")
	for _, spec := range st.Info.Specs {
		info.WriteString(dimStyle.Render("- " + spec))
		info.WriteString("\n")
	}
	fmt.Fprintf(&info, "\ncamera: %s", st.Focus)
	if st.FreeControl {
		info.WriteString(" (free)")
	}
	if st.Spinning {
		info.WriteString("\npropeller spinning")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(strings.TrimRight(list.String(), "\n")),
		panelStyle.Render(info.String()),
	))
	b.WriteString("\n")

	f := st.Flight
	if f.Started {
		fmt.Fprintf(&b, "flight: pos (%.2f, %.2f, %.2f)  speed %.2f  thrust %.2f\n",
			f.Position.X, f.Position.Y, f.Position.Z, f.Velocity.Length(), f.Thrust)
	} else {
		b.WriteString("flight: stopped\n")
	}

	b.WriteString(dimStyle.Render("\nup/down move  enter select  tab cycle  s start/stop  x reset  f free view  r reload  q quit"))
	return b.String()
}
