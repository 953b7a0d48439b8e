// Package viz holds the lipgloss styles shared by the console logger, the
// live calibration monitor and the CLI summaries.
package viz
