package tui

import (
	"bytes"
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/ledger"
)

// Monitor forwards calibration progress to a running terminal program.
// It serves as the run's ledger.Sink, its calib.Observer and the console
// writer of its logger. Calls block until the program has read the update,
// and return immediately once the program has exited.
type Monitor struct {
	prog *tea.Program
	send func(tea.Msg)

	mu  sync.Mutex
	buf []byte
}

// NewMonitor builds the program. cancel aborts the calibration when the
// operator quits early. tolPct is the strain tolerance in percent.
func NewMonitor(title string, tolPct float64, cancel context.CancelFunc, opts ...tea.ProgramOption) *Monitor {
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	p := tea.NewProgram(newModel(title, tolPct, cancel), opts...)
	return &Monitor{prog: p, send: p.Send}
}

// Run blocks until the operator quits.
func (m *Monitor) Run() error {
	_, err := m.prog.Run()
	return err
}

func (m *Monitor) RecordTrial(t ledger.Trial) error {
	m.send(trialMsg(t))
	return nil
}

func (m *Monitor) RecordStress(st ledger.StressTrial) error {
	m.send(stressMsg(st))
	return nil
}

func (m *Monitor) RowStarted(row, last int, targetStrain, targetForce float64) {
	m.send(rowStartedMsg{row: row, last: last, strain: targetStrain, force: targetForce})
}

func (m *Monitor) RowFinished(r calib.OutputRow) {
	m.send(rowFinishedMsg(r))
}

// Write splits console output into lines; a trailing partial line waits for
// the next write.
func (m *Monitor) Write(p []byte) (int, error) {
	m.mu.Lock()
	m.buf = append(m.buf, p...)
	var lines []string
	for {
		i := bytes.IndexByte(m.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(m.buf[:i], "\r")))
		m.buf = m.buf[i+1:]
	}
	m.mu.Unlock()

	for _, l := range lines {
		m.send(logLineMsg(l))
	}
	return len(p), nil
}

// Done reports the end of the run. The program stays up until the operator quits.
func (m *Monitor) Done(sum calib.Summary, err error) {
	m.send(doneMsg{summary: sum, err: err})
}

var (
	_ ledger.Sink    = (*Monitor)(nil)
	_ calib.Observer = (*Monitor)(nil)
)
