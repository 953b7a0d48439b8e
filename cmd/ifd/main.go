package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/san-kum/ifd/internal/analysis"
	"github.com/san-kum/ifd/internal/automation"
	"github.com/san-kum/ifd/internal/calib"
	"github.com/san-kum/ifd/internal/config"
	"github.com/san-kum/ifd/internal/dataset"
	"github.com/san-kum/ifd/internal/experiment"
	"github.com/san-kum/ifd/internal/ledger"
	"github.com/san-kum/ifd/internal/models"
	"github.com/san-kum/ifd/internal/numeric"
	"github.com/san-kum/ifd/internal/storage"
	"github.com/san-kum/ifd/internal/tui"
	"github.com/san-kum/ifd/internal/viz"
)

var (
	dataDir    string
	configFile string

	input      string
	validation string
	name       string
	oracleKind string
	preset     string
	modulus    float64
	poisson    float64
	temp       float64
	area       float64
	liveTUI    bool
	noPlots    bool
	doValidate bool

	outFile   string
	synthOut  string
	fdOutFile string
	truthFile string
	guess     float64
	dispGuess float64
	fdPoints  int
)

func main() {
	_ = godotenv.Load(".env")

	rootCmd := &cobra.Command{
		Use:           "ifd",
		Short:         "iterative force-displacement calibration of true stress-strain curves",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "calibrate a true stress-strain curve",
		Args:  cobra.NoArgs,
		RunE:  runCalibration,
	}
	runCmd.Flags().StringVar(&input, "input", "", "experimental calibration CSV")
	runCmd.Flags().StringVar(&validation, "validation", "", "experimental force-displacement CSV")
	runCmd.Flags().StringVar(&name, "name", "ifd", "run name")
	runCmd.Flags().StringVar(&oracleKind, "oracle", "analytic", "simulator kind (analytic, command)")
	runCmd.Flags().StringVar(&preset, "preset", "", "material preset for the elastic constants")
	runCmd.Flags().Float64Var(&modulus, "modulus", config.DefaultModulusGPa, "elastic modulus [GPa]")
	runCmd.Flags().Float64Var(&poisson, "poisson", config.DefaultPoisson, "poisson's ratio")
	runCmd.Flags().Float64Var(&temp, "temp", 22, "reference temperature [C]")
	runCmd.Flags().Float64Var(&area, "area", config.DefaultArea, "specimen area excluding symmetries [m^2]")
	runCmd.Flags().BoolVar(&liveTUI, "tui", false, "show the live calibration monitor")
	runCmd.Flags().BoolVar(&noPlots, "no-plots", false, "skip the result plots")
	runCmd.Flags().BoolVar(&doValidate, "validate", false, "run the validation pass after calibrating")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	checkCmd := &cobra.Command{
		Use:   "check [run_id]",
		Short: "review force and strain errors of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  checkRun,
	}

	validateCmd := &cobra.Command{
		Use:   "validate [run_id]",
		Short: "replay the calibrated curve against a force-displacement curve",
		Args:  cobra.ExactArgs(1),
		RunE:  validateRun,
	}
	validateCmd.Flags().StringVar(&validation, "validation", "", "experimental force-displacement CSV")
	validateCmd.Flags().BoolVar(&noPlots, "no-plots", false, "skip the force-displacement plot")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run the calibrations listed in a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&noPlots, "no-plots", false, "skip the result plots")

	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "generate experimental input from a known curve",
		Args:  cobra.NoArgs,
		RunE:  synthesize,
	}
	synthCmd.Flags().StringVarP(&synthOut, "out", "o", "synthetic.csv", "calibration CSV to write")
	synthCmd.Flags().StringVar(&fdOutFile, "fd-out", "", "force-displacement CSV to write")
	synthCmd.Flags().StringVar(&truthFile, "truth", "", "known curve (yaml); default is a mild steel")
	synthCmd.Flags().Float64Var(&guess, "guess", 0.9, "starting stress as a fraction of the truth")
	synthCmd.Flags().Float64Var(&dispGuess, "disp-guess", 0.8, "estimated displacement as a fraction of the truth")
	synthCmd.Flags().IntVar(&fdPoints, "fd-points", 10, "force-displacement points")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list material presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tE [GPa]\tNU\tDESCRIPTION")
			for _, n := range config.ListPresets() {
				p := config.GetPreset(n)
				fmt.Fprintf(w, "%s\t%.1f\t%.2f\t%s\n", n, p.ModulusGPa, p.Poisson, p.Description)
			}
			return w.Flush()
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			}
			if err := config.Save(args[0], config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, checkCmd, validateCmd, batchCmd, synthCmd, presetsCmd, initCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusFail.Render("error:"), err)
		os.Exit(1)
	}
}

// loadConfig reads --config (or the defaults) and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data") || configFile == "" {
		cfg.DataDir = dataDir
	}
	if flags.Changed("input") {
		cfg.Input = input
	}
	if flags.Changed("validation") {
		cfg.Validation = validation
	}
	if flags.Changed("name") {
		cfg.Name = name
	}
	if flags.Changed("oracle") {
		cfg.Oracle.Kind = oracleKind
	}
	if flags.Changed("preset") {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}
	if flags.Changed("modulus") {
		cfg.Material.ModulusGPa = modulus
	}
	if flags.Changed("poisson") {
		cfg.Material.Poisson = poisson
	}
	if flags.Changed("temp") {
		cfg.Material.Temperature = temp
	}
	if flags.Changed("area") {
		cfg.Tolerance.Area = area
	}
	return cfg, cfg.Validate()
}

func runCalibration(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Input == "" {
		return errors.New("no input file: set --input or input in the config")
	}

	st := storage.New(cfg.DataDir)
	ctx := cmd.Context()

	var out *experiment.Outcome
	var exp *experiment.Experiment
	if liveTUI {
		out, exp, err = runWithMonitor(ctx, cfg, st)
	} else {
		exp = experiment.New(cfg, st, experiment.Options{Console: os.Stdout, NoPlots: noPlots})
		out, err = exp.Run(ctx)
	}
	if out != nil {
		printOutcome(out)
	}
	if err != nil {
		return err
	}

	if doValidate {
		pts, err := exp.Validate(ctx, out.Run.ID)
		if err != nil {
			return err
		}
		fmt.Printf("validation: %d points written to %s\n", len(pts)-1,
			out.Run.Path(storage.ResultsDir, experiment.ValidationFile))
	}
	return nil
}

// runWithMonitor runs the calibration in the background while the monitor
// owns the terminal. Quitting the monitor cancels the calibration.
func runWithMonitor(ctx context.Context, cfg *config.Config, st *storage.Store) (*experiment.Outcome, *experiment.Experiment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mon := tui.NewMonitor(cfg.Name, cfg.Tolerance.Strain*100, cancel)
	exp := experiment.New(cfg, st, experiment.Options{
		Console:  mon,
		Plain:    true,
		Sinks:    []ledger.Sink{mon},
		Observer: mon,
		NoPlots:  noPlots,
	})

	type result struct {
		out *experiment.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := exp.Run(ctx)
		var sum calib.Summary
		if out != nil {
			sum = out.Meta.Summary
		}
		mon.Done(sum, err)
		done <- result{out, err}
	}()

	if err := mon.Run(); err != nil {
		cancel()
		r := <-done
		return r.out, exp, errors.Join(err, r.err)
	}
	r := <-done
	return r.out, exp, r.err
}

func printOutcome(out *experiment.Outcome) {
	m := out.Meta
	status := viz.StatusOK.Render(m.Status)
	if m.Status != storage.StatusComplete {
		status = viz.StatusFail.Render(m.Status)
	}

	var b strings.Builder
	b.WriteString(viz.HeaderStyle.Render(out.Run.ID) + "\n")
	fmt.Fprintf(&b, "%s %s\n", viz.MetricLabel.Render("status"), status)
	fmt.Fprintf(&b, "%s %s\n", viz.MetricLabel.Render("converged"),
		viz.MetricValue.Render(fmt.Sprintf("%d/%d", m.Summary.Converged, m.Summary.Rows)))
	fmt.Fprintf(&b, "%s %s\n", viz.MetricLabel.Render("invocations"),
		viz.MetricValue.Render(fmt.Sprintf("%d", m.Summary.Invocations)))
	fmt.Fprintf(&b, "%s %s", viz.MetricLabel.Render("elapsed"),
		viz.MetricValue.Render(m.Summary.Elapsed.Round(time.Millisecond).String()))
	if len(m.Summary.Failed) > 0 {
		fmt.Fprintf(&b, "\n%s %s", viz.MetricLabel.Render("not converged"), viz.StatusWarn.Render(fmt.Sprint(m.Summary.Failed)))
	}
	for _, p := range out.Plots {
		fmt.Fprintf(&b, "\n%s %s", viz.MetricLabel.Render("plot"), filepath.Base(p))
	}
	fmt.Println()
	fmt.Println(viz.Panel.Render(b.String()))
	fmt.Println(viz.KeyHint.Render("ifd check " + out.Run.ID + " to review errors"))
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSTATUS\tORACLE\tCONVERGED\tCALLS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Oracle,
			run.Summary.Converged,
			run.Summary.Rows,
			run.Summary.Invocations,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	results, err := st.LoadResults(runID)
	if err != nil {
		return err
	}
	if len(results) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("input: %s\n", meta.Input)
	fmt.Printf("points: %d\n\n", len(results))

	xs := make([]float64, len(results))
	ys := make([]float64, len(results))
	for i, r := range results {
		xs[i] = r.TotalStrain
		ys[i] = r.TrueStress / 1e6
	}
	graph := asciigraph.Plot(resample(xs, ys, 80),
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("true stress [MPa] vs total strain 0 .. %.4g", xs[len(xs)-1])),
	)
	fmt.Println(graph)
	fmt.Println()

	solved := analysis.Solved(results)
	if len(solved) > 1 {
		errs := make([]float64, len(solved))
		for i, r := range solved {
			errs[i] = r.ForceError
		}
		graph = asciigraph.Plot(errs,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("force error [N] per solved row"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// resample evaluates the piecewise-linear curve (xs, ys) at n evenly spaced
// x values. xs must be increasing.
func resample(xs, ys []float64, n int) []float64 {
	out := make([]float64, n)
	lo, hi := xs[0], xs[len(xs)-1]
	j := 0
	for i := 0; i < n; i++ {
		x := lo + (hi-lo)*float64(i)/float64(n-1)
		for j < len(xs)-2 && x > xs[j+1] {
			j++
		}
		y, err := numeric.Interpolate(xs[j], xs[j+1], ys[j], ys[j+1], x)
		if err != nil {
			y = ys[j]
		}
		out[i] = y
	}
	return out
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	data, err := st.Export(args[0])
	if err != nil {
		return err
	}
	if review, err := review(cmd, data.Results); err == nil {
		data.Review = &review
	}

	if outFile == "" {
		return storage.EncodeJSON(os.Stdout, data)
	}
	if err := storage.ExportJSON(outFile, data); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], outFile)
	return nil
}

func review(cmd *cobra.Command, results []analysis.Result) (analysis.Review, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return analysis.Review{}, err
	}
	c := cfg.Calib()
	return analysis.Check(results, c.ForceTolerance(), c.StrainTolerance*100), nil
}

func checkRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	results, err := st.LoadResults(args[0])
	if err != nil {
		return err
	}
	rv, err := review(cmd, results)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", viz.Title.Render("review"), args[0])
	fmt.Printf("%s %d\n", viz.MetricLabel.Render("rows checked"), rv.Checked)
	fmt.Printf("%s %.4g N\n", viz.MetricLabel.Render("force tol"), rv.ForceTolerance)
	fmt.Printf("%s %.4g %%\n", viz.MetricLabel.Render("strain tol"), rv.StrainTolerance)
	fmt.Printf("%s %.4g N\n\n", viz.MetricLabel.Render("mean |dF|"), analysis.MeanAbsForceError(results))

	if rv.OK() {
		fmt.Println(viz.StatusOK.Render("all rows within tolerance"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tTOTAL STRAIN\tTRUE STRESS [MPa]\tFORCE ERR [N]\tSTRAIN ERR [%]")
	for _, r := range rv.ForceMisses {
		fmt.Fprintf(w, "force\t%.6f\t%.3f\t%.3f\t%.4f\n", r.TotalStrain, r.TrueStress/1e6, r.ForceError, r.StrainErrorPct)
	}
	for _, r := range rv.StrainMisses {
		fmt.Fprintf(w, "strain\t%.6f\t%.3f\t%.3f\t%.4f\n", r.TotalStrain, r.TrueStress/1e6, r.ForceError, r.StrainErrorPct)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.StatusWarn.Render(fmt.Sprintf("%d force and %d strain misses",
		len(rv.ForceMisses), len(rv.StrainMisses))))
	return nil
}

func validateRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	exp := experiment.New(cfg, storage.New(cfg.DataDir), experiment.Options{Console: os.Stdout, NoPlots: noPlots})
	pts, err := exp.Validate(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISPLACEMENT [m]\tEXP FORCE [N]\tFEA FORCE [N]\tDIFF [%]")
	for _, p := range pts[1:] {
		diff := 0.0
		if p.ExpForce != 0 {
			diff = (p.FEAForce - p.ExpForce) / p.ExpForce * 100
		}
		fmt.Fprintf(w, "%.6g\t%.3f\t%.3f\t%+.3f\n", p.Displacement, p.ExpForce, p.FEAForce, diff)
	}
	return w.Flush()
}

func runBatch(cmd *cobra.Command, args []string) error {
	b, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data") {
		b.DataDir, _ = filepath.Abs(dataDir)
	}

	fmt.Printf("%s %s (%d jobs)\n", viz.Title.Render("batch"), b.Name, len(b.Jobs))
	results, err := automation.RunBatch(cmd.Context(), b, automation.Options{NoPlots: noPlots},
		func(i, n int, job string) {
			fmt.Printf("\n%s %d/%d: %s\n", viz.Subtle.Render("job"), i+1, n, job)
		})

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tRUN\tCONVERGED\tVALIDATED\tSTATUS")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n", r.Job, r.RunID, r.Converged, r.Rows, r.Validated, status)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	completed, failed := automation.Stats(results)
	fmt.Printf("\n%d completed, %d failed\n", completed, failed)
	return err
}

func synthesize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	truth := models.DefaultTruth()
	if truthFile != "" {
		if truth, err = models.LoadTruth(truthFile); err != nil {
			return err
		}
	}

	spec := cfg.Oracle.Analytic.Specimen()
	if err := spec.Validate(); err != nil {
		return err
	}
	e := cfg.Elastic()
	rows := models.Synthesize(spec, truth, e.Youngs, guess, dispGuess)
	if err := writeCSV(synthOut, func(f *os.File) error { return dataset.Write(f, rows) }); err != nil {
		return err
	}
	fmt.Printf("wrote %d rows to %s\n", len(rows), synthOut)

	if fdOutFile != "" {
		dMax := spec.DisplacementFor(rows[len(rows)-1].TotalStrain)
		fd := models.ForceDisplacementCurve(spec, truth, e, dMax, fdPoints)
		if err := writeCSV(fdOutFile, func(f *os.File) error { return dataset.WriteForceDisplacement(f, fd) }); err != nil {
			return err
		}
		fmt.Printf("wrote %d force-displacement points to %s\n", len(fd), fdOutFile)
	}
	return nil
}

func writeCSV(path string, fn func(*os.File) error) error {
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
