package oracle

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/san-kum/ifd/internal/material"
)

var ErrExportFormat = errors.New("oracle: unreadable export file")

// ExportColumns are zero-based column indexes in the simulator's export row.
type ExportColumns struct {
	Displacement int `yaml:"displacement"`
	Force        int `yaml:"force"`
	MaxStrain    int `yaml:"max_strain"`
	Strain       int `yaml:"strain"`
}

// CommandConfig describes an external simulator driven through files.
type CommandConfig struct {
	Command         string        `yaml:"command"`
	Args            []string      `yaml:"args"`            // text/template, then $ENV expansion
	TemplateDir     string        `yaml:"template_dir"`    // clean project copied in before the run and after every kill
	ScriptTemplate  string        `yaml:"script_template"` // optional text/template rendered before every attempt
	ScriptName      string        `yaml:"script_name"`
	ExportFile      string        `yaml:"export_file"`
	SkipRows        int           `yaml:"skip_rows"`
	Columns         ExportColumns `yaml:"columns"`
	ForceMultiplier float64       `yaml:"force_multiplier"` // e.g. 4 for a quarter-symmetry model
	KillGrace       time.Duration `yaml:"kill_grace"`
}

func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		ScriptName:      "script.wbjn",
		ExportFile:      "export.csv",
		SkipRows:        7,
		Columns:         ExportColumns{Displacement: 1, Force: 2, MaxStrain: 3, Strain: 4},
		ForceMultiplier: 1,
		KillGrace:       30 * time.Second,
	}
}

// TemplateData is available to the script template and the command args.
type TemplateData struct {
	Displacement float64
	Disp         string // displacement formatted for scripts
	ElasticFile  string
	CurveFile    string
	ExportFile   string
	ScriptFile   string
	ProjectDir   string
	WorkDir      string
}

// Command runs an external simulator process per attempt. Inputs are written
// as CSV files in the work directory; the response is read from the export file.
type Command struct {
	cfg     CommandConfig
	workDir string
	script  *template.Template
	args    []*template.Template
}

func NewCommand(cfg CommandConfig, workDir string) (*Command, error) {
	if cfg.Command == "" {
		return nil, errors.New("oracle: command simulator needs a command")
	}
	if cfg.ForceMultiplier == 0 {
		cfg.ForceMultiplier = 1
	}
	c := &Command{cfg: cfg, workDir: workDir}

	if cfg.ScriptTemplate != "" {
		src, err := os.ReadFile(cfg.ScriptTemplate)
		if err != nil {
			return nil, fmt.Errorf("oracle: script template: %w", err)
		}
		c.script, err = template.New("script").Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("oracle: script template: %w", err)
		}
	}
	for i, a := range cfg.Args {
		t, err := template.New(fmt.Sprintf("arg%d", i)).Parse(a)
		if err != nil {
			return nil, fmt.Errorf("oracle: arg %d: %w", i, err)
		}
		c.args = append(c.args, t)
	}
	return c, nil
}

func (c *Command) data(req Request) TemplateData {
	return TemplateData{
		Displacement: req.Displacement,
		Disp:         strconv.FormatFloat(req.Displacement, 'g', -1, 64),
		ElasticFile:  filepath.Join(c.workDir, "elastic.csv"),
		CurveFile:    filepath.Join(c.workDir, "curve.csv"),
		ExportFile:   filepath.Join(c.workDir, c.cfg.ExportFile),
		ScriptFile:   filepath.Join(c.workDir, c.cfg.ScriptName),
		ProjectDir:   filepath.Join(c.workDir, "project"),
		WorkDir:      c.workDir,
	}
}

// Prepare cleans whatever an aborted earlier run left behind.
func (c *Command) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(c.workDir, 0755); err != nil {
		return err
	}
	return c.Reset(ctx)
}

// Reset replaces the working project with a fresh copy of the template.
func (c *Command) Reset(ctx context.Context) error {
	if c.cfg.TemplateDir == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	project := filepath.Join(c.workDir, "project")
	if err := os.RemoveAll(project); err != nil {
		return fmt.Errorf("oracle: remove locked project: %w", err)
	}
	if err := os.CopyFS(project, os.DirFS(c.cfg.TemplateDir)); err != nil {
		return fmt.Errorf("oracle: copy project template: %w", err)
	}
	return nil
}

func (c *Command) Run(ctx context.Context, req Request) Outcome {
	start := time.Now()
	d := c.data(req)

	if err := c.writeInputs(d, req); err != nil {
		return Failed(err, time.Since(start))
	}

	args := make([]string, len(c.args))
	for i, t := range c.args {
		var b strings.Builder
		if err := t.Execute(&b, d); err != nil {
			return Failed(fmt.Errorf("oracle: render arg %d: %w", i, err), time.Since(start))
		}
		args[i] = os.ExpandEnv(b.String())
	}

	cmd := exec.CommandContext(ctx, os.ExpandEnv(c.cfg.Command), args...)
	cmd.Dir = c.workDir
	cmd.WaitDelay = c.cfg.KillGrace
	killTree(cmd)
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TimedOut(elapsed)
	}
	if err != nil {
		return Failed(fmt.Errorf("oracle: %s: %w: %s", c.cfg.Command, err, tail(out, 400)), elapsed)
	}

	f, err := os.Open(d.ExportFile)
	if err != nil {
		return Failed(fmt.Errorf("oracle: export: %w", err), elapsed)
	}
	defer f.Close()

	resp, err := ParseExport(f, c.cfg.SkipRows, c.cfg.Columns, c.cfg.ForceMultiplier)
	if err != nil {
		return Failed(err, elapsed)
	}
	return Success(resp, elapsed)
}

func (c *Command) writeInputs(d TemplateData, req Request) error {
	if err := writeFile(d.ElasticFile, func(w io.Writer) error { return material.WriteElasticCSV(w, req.Elastic) }); err != nil {
		return fmt.Errorf("oracle: elastic file: %w", err)
	}
	if err := writeFile(d.CurveFile, func(w io.Writer) error { return material.WriteCSV(w, req.Curve) }); err != nil {
		return fmt.Errorf("oracle: curve file: %w", err)
	}
	if err := os.Remove(d.ExportFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("oracle: stale export: %w", err)
	}
	if c.script == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := c.script.Execute(&buf, d); err != nil {
		return fmt.Errorf("oracle: render script: %w", err)
	}
	return os.WriteFile(d.ScriptFile, buf.Bytes(), 0644)
}

// ParseExport reads the first data row after skip records.
func ParseExport(r io.Reader, skip int, cols ExportColumns, forceMult float64) (Response, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrExportFormat, err)
	}
	if len(records) <= skip {
		return Response{}, fmt.Errorf("%w: no data after %d rows", ErrExportFormat, skip)
	}
	rec := records[skip]

	get := func(i int, name string) (float64, error) {
		if i < 0 || i >= len(rec) {
			return 0, fmt.Errorf("%w: %s column %d missing", ErrExportFormat, name, i)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrExportFormat, name, err)
		}
		return v, nil
	}

	var resp Response
	if resp.Displacement, err = get(cols.Displacement, "displacement"); err != nil {
		return Response{}, err
	}
	if resp.Force, err = get(cols.Force, "force"); err != nil {
		return Response{}, err
	}
	if resp.MaxStrain, err = get(cols.MaxStrain, "max strain"); err != nil {
		return Response{}, err
	}
	if resp.Strain, err = get(cols.Strain, "strain"); err != nil {
		return Response{}, err
	}
	if forceMult != 0 {
		resp.Force *= forceMult
	}
	return resp, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
