// Package logx is the logging collaborator handed to every calibration
// component. It has two severities: Diagnostic lines go to the run log file
// only; Console lines go to the log file and are also shown to the operator.
//
// A Logger is created once per run and closed at the end. All methods are
// nil-safe so tests may pass a nil *Logger.
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/ifd/internal/viz"
)

// Level of a console line, used only for styling.
type Level int

const (
	Info Level = iota
	OK
	Warn
)

type Logger struct {
	file    *slog.Logger
	mu      sync.Mutex
	console io.Writer
	plain   bool
	closer  io.Closer
}

// New opens (truncating) the log file at path. Console lines are also written to console.
func New(path string, console io.Writer) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("logx: %w", err)
	}
	l := NewWriter(f, console)
	l.closer = f
	l.Diagnostic("log file created", "path", path)
	return l, nil
}

// NewWriter logs to arbitrary writers. Either may be nil.
func NewWriter(file, console io.Writer) *Logger {
	if file == nil {
		file = io.Discard
	}
	h := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{file: slog.New(h), console: console}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, nil)
}

// SetConsole redirects console-visible lines. Plain lines carry no styling,
// for consumers such as the live monitor that lay text out themselves.
func (l *Logger) SetConsole(w io.Writer, plain bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.console = w
	l.plain = plain
	l.mu.Unlock()
}

// Diagnostic records a line in the log file only.
func (l *Logger) Diagnostic(msg string, args ...any) {
	if l == nil {
		return
	}
	l.file.Debug(msg, args...)
}

// Console records a line in the log file and shows it to the operator.
func (l *Logger) Console(msg string, args ...any) {
	l.emit(Info, msg, args...)
}

// Success is Console styled as a positive outcome.
func (l *Logger) Success(msg string, args ...any) {
	l.emit(OK, msg, args...)
}

// Warn is Console styled as a recoverable problem: convergence failures and retries.
func (l *Logger) Warn(msg string, args ...any) {
	l.emit(Warn, msg, args...)
}

func (l *Logger) emit(level Level, msg string, args ...any) {
	if l == nil {
		return
	}
	slvl := slog.LevelInfo
	if level == Warn {
		slvl = slog.LevelWarn
	}
	l.file.Log(context.Background(), slvl, msg, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.console == nil {
		return
	}
	if l.plain {
		fmt.Fprintln(l.console, RenderPlain(time.Now(), msg, args...))
		return
	}
	fmt.Fprintln(l.console, Render(level, time.Now(), msg, args...))
}

// Render formats one console line.
func Render(level Level, at time.Time, msg string, args ...any) string {
	var sb strings.Builder
	sb.WriteString(viz.Subtle.Render(at.Format("15:04:05")))
	sb.WriteString(" ")
	switch level {
	case OK:
		sb.WriteString(viz.StatusOK.Render(msg))
	case Warn:
		sb.WriteString(viz.StatusWarn.Render(msg))
	default:
		sb.WriteString(msg)
	}
	for i := 0; i+1 < len(args); i += 2 {
		sb.WriteString(" ")
		sb.WriteString(viz.Subtle.Render(fmt.Sprint(args[i]) + "="))
		sb.WriteString(viz.MetricValue.Render(formatValue(args[i+1])))
	}
	if len(args)%2 == 1 {
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprint(args[len(args)-1]))
	}
	return sb.String()
}

// RenderPlain formats one console line without styling.
func RenderPlain(at time.Time, msg string, args ...any) string {
	var sb strings.Builder
	sb.WriteString(at.Format("15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%s", args[i], formatValue(args[i+1]))
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&sb, " %v", args[len(args)-1])
	}
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.6g", x)
	case time.Duration:
		return x.Round(time.Millisecond).String()
	case error:
		return x.Error()
	default:
		return fmt.Sprint(x)
	}
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
