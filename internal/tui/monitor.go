// Package tui shows a calibration run live in the terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/mattn/go-runewidth"
	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/viz"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	maxLogLines = 8
	maxHistory  = 120
)

type rowStartedMsg struct {
	row, last     int
	strain, force float64
}

type trialMsg ledger.Trial

type stressMsg ledger.StressTrial

type rowFinishedMsg calib.OutputRow

type logLineMsg string

type doneMsg struct {
	summary calib.Summary
	err     error
}

type tickMsg time.Time

type finishedRow struct {
	row int
	out calib.OutputRow
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	title  string
	cancel context.CancelFunc

	row, last    int
	targetStrain float64
	targetForce  float64
	started      time.Time
	now          time.Time

	tolPct      float64
	trial       ledger.Trial
	haveTrial   bool
	strainErrs  []float64 // |strain error %| per displacement trial
	forceDelta  []float64 // force delta per stress trial, current row
	invocations int

	finished []finishedRow
	logs     []string

	done    bool
	summary calib.Summary
	err     error

	width  int
	height int
}

func newModel(title string, tolPct float64, cancel context.CancelFunc) model {
	now := time.Now()
	return model{
		title:   title,
		cancel:  cancel,
		tolPct:  tolPct,
		started: now,
		now:     now,
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, tick()
	case rowStartedMsg:
		m.row, m.last = msg.row, msg.last
		m.targetStrain, m.targetForce = msg.strain, msg.force
		m.forceDelta = m.forceDelta[:0]
		m.haveTrial = false
		return m, nil
	case trialMsg:
		m.trial = ledger.Trial(msg)
		m.haveTrial = true
		m.invocations++
		m.strainErrs = appendCapped(m.strainErrs, math.Abs(msg.StrainErrPct))
		return m, nil
	case stressMsg:
		m.forceDelta = appendCapped(m.forceDelta, msg.ForceDelta)
		return m, nil
	case rowFinishedMsg:
		m.finished = append(m.finished, finishedRow{row: m.row, out: calib.OutputRow(msg)})
		return m, nil
	case logLineMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		return m, nil
	case doneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > maxHistory {
		s = s[len(s)-maxHistory:]
	}
	return s
}

func (m model) View() string {
	var b strings.Builder
	inner := m.width - 6
	if inner < 40 {
		inner = 40
	}

	icon, status := green.Render("●"), green.Render("running")
	switch {
	case m.done && m.err != nil:
		icon, status = red.Render("●"), red.Render("failed")
	case m.done:
		icon, status = cyan.Render("●"), cyan.Render("complete")
	}
	elapsed := m.now.Sub(m.started).Round(time.Second)
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n", icon, cyan.Render(m.title), status, dim.Render(elapsed.String())))

	progress := 0.0
	if m.last > 0 {
		progress = float64(len(m.finished)) / float64(m.last)
	}
	b.WriteString(fmt.Sprintf("   %s %s\n\n", viz.ProgressBar(progress, 36),
		dim.Render(fmt.Sprintf("%d/%d rows  %d runs", len(m.finished), m.last, m.invocations))))

	if m.row > 0 {
		b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
			dim.Render("row"), white.Render(fmt.Sprintf("%d", m.row)),
			dim.Render("target strain"), white.Render(fmt.Sprintf("%.6f", m.targetStrain)),
			dim.Render("target force"), white.Render(fmt.Sprintf("%.1f N", m.targetForce))))
	}
	if m.haveTrial {
		errStyle := yellow
		if math.Abs(m.trial.StrainErrPct) <= m.tolPct {
			errStyle = green
		}
		b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s  %s %s\n",
			dim.Render("stress"), white.Render(fmt.Sprintf("%.3f MPa", m.trial.Stress/1e6)),
			dim.Render("disp"), white.Render(fmt.Sprintf("%.6g m", m.trial.TrialDisp)),
			dim.Render("force"), white.Render(fmt.Sprintf("%.1f N", m.trial.Force)),
			dim.Render("strain err"), errStyle.Render(fmt.Sprintf("%+.3f %%", m.trial.StrainErrPct))))
	}

	if len(m.strainErrs) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("|strain err|"), viz.SparklineChart(m.strainErrs, 32)))
	}
	if len(m.forceDelta) > 1 {
		graph := asciigraph.Plot(m.forceDelta,
			asciigraph.Height(5),
			asciigraph.Width(inner-12),
			asciigraph.Caption("force delta per stress try [N]"))
		for _, line := range strings.Split(graph, "\n") {
			b.WriteString("   " + line + "\n")
		}
	}

	if n := len(m.finished); n > 0 {
		b.WriteString("\n")
		from := n - 4
		if from < 0 {
			from = 0
		}
		for _, f := range m.finished[from:] {
			r := f.out
			mark := green.Render("✓")
			if !r.Converged {
				mark = yellow.Render("!")
			}
			b.WriteString(fmt.Sprintf("   %s %s %s  %s\n", mark,
				dim.Render(fmt.Sprintf("row %-3d", f.row)),
				white.Render(fmt.Sprintf("%.3f MPa", r.TrueStress/1e6)),
				dim.Render(fmt.Sprintf("%d tries  %d runs", r.StressTries, r.Invocations))))
		}
	}

	if len(m.logs) > 0 {
		b.WriteString("\n   " + viz.Separator(inner) + "\n")
		for _, line := range m.logs {
			b.WriteString("   " + dimmer.Render(runewidth.Truncate(line, inner, "…")) + "\n")
		}
	}

	if m.done {
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString("   " + red.Render(runewidth.Truncate(m.err.Error(), inner, "…")) + "\n")
		}
		b.WriteString(fmt.Sprintf("   %s %d/%d converged  %d runs  %s\n",
			dim.Render("summary"), m.summary.Converged, m.summary.Rows, m.summary.Invocations,
			m.summary.Elapsed.Round(time.Second)))
		b.WriteString("\n" + dim.Render("   q quit") + "\n")
	} else {
		b.WriteString("\n" + dim.Render("   q abort") + "\n")
	}
	return b.String()
}
