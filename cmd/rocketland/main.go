package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/automation"
	"github.com/san-kum/rocketland/internal/config"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/experiment"
	"github.com/san-kum/rocketland/internal/export"
	"github.com/san-kum/rocketland/internal/optim"
	"github.com/san-kum/rocketland/internal/storage"
	"github.com/san-kum/rocketland/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	dt         float64
	knots      int
	integrator string
	seed       uint64
	initState  []float64
	noSave     bool
	// MPC
	horizon    int
	iterations int
	noise      float64
	// output
	outFile string
	kind    string
	// tuning
	penaltyInitial []float64
	penaltyScaling []float64
	tuneMetric     string
	// ensemble
	runs    int
	workers int
	// svg
	svgWidth, svgHeight int
	glideSlope          float64
	wireframe           bool
	// batch
	sweepParam         string
	sweepMin, sweepMax float64
	sweepSteps         int
	trials             int
	perturbation       float64

	logger = zap.NewNop()
)

// main is the entry point for the rocketland CLI; it registers commands and
// flags, launches the interactive preset menu when no subcommand is given,
// and exits with status 1 when the command fails.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "rocketland",
		Short: "powered descent guidance with ALTRO and MPC",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(verbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := useScreenLogger(); err != nil {
				return err
			}
			return viz.RunInteractive(cmd.Context(), launcher(logger))
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rocketland", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve the reference landing trajectory",
		RunE:  runSolve,
	}
	addProblemFlags(solveCmd)

	mpcCmd := &cobra.Command{
		Use:   "mpc",
		Short: "track the reference trajectory with MPC",
		RunE:  runMPC,
	}
	addProblemFlags(mpcCmd)
	addMPCFlags(mpcCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run MPC with live visualization",
		RunE:  runLive,
	}
	addProblemFlags(liveCmd)
	addMPCFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}
	listCmd.Flags().StringVar(&kind, "kind", "", "only list runs of this kind (solve, mpc)")

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a side view (or wireframe) of the landing to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 600, "image height")
	exportSVGCmd.Flags().Float64Var(&glideSlope, "glide", config.DefaultGlideSlope, "glide slope to draw in degrees (0 omits it)")
	exportSVGCmd.Flags().BoolVar(&wireframe, "wireframe", false, "render the 3D wireframe instead of the side view")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble",
		Short: "track one reference under many disturbance seeds",
		RunE:  runEnsemble,
	}
	addProblemFlags(ensembleCmd)
	addMPCFlags(ensembleCmd)
	ensembleCmd.Flags().IntVar(&runs, "runs", 8, "number of closed-loop runs")
	ensembleCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 runs all at once)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of landings",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve the reference across one parameter",
		RunE:  runSweep,
	}
	addProblemFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "z", fmt.Sprintf("parameter to sweep %v", automation.SweepParams()))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 10, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 40, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 4, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "solve the reference from randomly perturbed initial states",
		RunE:  runMonteCarlo,
	}
	addProblemFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturbation, "perturb", 1, "largest perturbation per state component")

	rmCmd := &cobra.Command{
		Use:   "rm [run_id]",
		Short: "delete a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.Open(dataDir)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Delete(cmd.Context(), args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINITIAL STATE\tMAX ANGLE\tGLIDE SLOPE\tNOISE")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%v\t%g°\t%g°\t%g\n", name, cfg.GetInitState(),
					cfg.Constraints.MaxAngle, cfg.Constraints.GlideSlope, cfg.MPC.Noise.Position)
			}
			return w.Flush()
		},
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search over the solver penalty parameters",
		RunE:  runTune,
	}
	addProblemFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&penaltyInitial, "penalty-initial", []float64{0.1, 1, 10}, "initial penalties to try")
	tuneCmd.Flags().Float64SliceVar(&penaltyScaling, "penalty-scaling", []float64{2, 10, 50}, "penalty scalings to try")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "iterations", "metric to minimize")

	rootCmd.AddCommand(solveCmd, mpcCmd, liveCmd, listCmd, showCmd, plotCmd, exportJSONCmd, exportCSVCmd, exportSVGCmd, rmCmd, presetsCmd, tuneCmd, ensembleCmd,
		scenarioCmd, sweepCmd, monteCarloCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newLogger writes to stderr unless outputs are given.
func newLogger(verbose bool, outputs ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if len(outputs) > 0 {
		cfg.OutputPaths = outputs
		cfg.ErrorOutputPaths = outputs
	}
	return cfg.Build()
}

// useScreenLogger points the logger at <data>/rocketland.log, since log
// lines on stderr would corrupt the alternate screen.
func useScreenLogger() error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	l, err := newLogger(verbose, filepath.Join(dataDir, "rocketland.log"))
	if err != nil {
		return err
	}
	_ = logger.Sync()
	logger = l
	return nil
}

func addProblemFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.Float64Var(&dt, "dt", config.DefaultDt, "time step")
	f.IntVar(&knots, "knots", config.DefaultKnots, "number of knot points")
	f.StringVar(&integrator, "integrator", experiment.Exact, "discretization (exact, rk4, rk45, euler)")
	f.Uint64Var(&seed, "seed", 1, "disturbance seed")
	f.Float64SliceVar(&initState, "x0", nil, "initial state x,y,z,vx,vy,vz")
	f.BoolVar(&noSave, "no-save", false, "do not record the run")
}

func addMPCFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&horizon, "horizon", config.DefaultHorizon, "MPC horizon in knots")
	f.IntVar(&iterations, "iterations", 0, "MPC steps (0 runs to the end of the reference)")
	f.Float64Var(&noise, "noise", 0, "position noise as a fraction of the position norm")
}

// loadConfig resolves the preset, the config file and the flags, in that
// order. Flags only override when set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("knots") {
		cfg.Knots = knots
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("x0") {
		if len(initState) != 6 {
			return nil, fmt.Errorf("--x0 needs 6 values, got %d", len(initState))
		}
		s := initState
		cfg.InitState = config.InitStateConfig{X: s[0], Y: s[1], Z: s[2], VX: s[3], VY: s[4], VZ: s[5]}
	}
	if flags.Lookup("horizon") != nil {
		if flags.Changed("horizon") {
			cfg.MPC.Horizon = horizon
		}
		if flags.Changed("iterations") {
			cfg.MPC.Iterations = iterations
		}
		if flags.Changed("noise") {
			cfg.MPC.Noise = config.NoiseConfig{Position: noise, Velocity: noise / 10}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newExperiment(cmd *cobra.Command) (*experiment.Experiment, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return exp, cfg, nil
}

func runMeta(cfg *config.Config, k storage.Kind, status string) storage.RunMetadata {
	return storage.RunMetadata{
		Kind:       k,
		Model:      cfg.Model,
		Integrator: cfg.Integrator,
		Preset:     preset,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration(),
		Knots:      cfg.Knots,
		Status:     status,
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	exp, cfg, err := newExperiment(cmd)
	if err != nil {
		return err
	}

	res, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("status: %s\n", res.Stats.Status)
	printMetrics(res.Metrics)

	if noSave {
		return nil
	}
	return save(cmd.Context(), runMeta(cfg, storage.KindSolve, res.Stats.Status.String()), &res.Result, nil)
}

func runMPC(cmd *cobra.Command, args []string) error {
	exp, cfg, err := newExperiment(cmd)
	if err != nil {
		return err
	}

	ref, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	if ref.Stats.Status != altro.Succeeded {
		logger.Warn("reference solve did not converge", zap.Stringer("status", ref.Stats.Status))
	}

	res, err := exp.RunMPC(cmd.Context(), ref)
	if err != nil {
		return err
	}
	solved := viz.Succeeded(res.Steps)
	status := fmt.Sprintf("%d/%d solved", solved, len(res.Steps))
	fmt.Printf("reference: %s\n", ref.Stats.Status)
	fmt.Printf("mpc: %s\n", status)
	printMetrics(res.Metrics)

	if noSave {
		return nil
	}
	meta := runMeta(cfg, storage.KindMPC, status)
	meta.Knots = len(res.States)
	return save(cmd.Context(), meta, &res.Result, storage.StepRecords(res.Steps))
}

func save(ctx context.Context, meta storage.RunMetadata, result *dynamo.Result, steps []storage.StepRecord) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(ctx, meta, result, steps)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved run %s\n", id)
	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%.6g\n", name, metrics[name])
	}
	w.Flush()
}

func glideTan(cfg *config.Config) float64 {
	if cfg.Constraints.GlideSlope <= 0 {
		return 0
	}
	return math.Tan(cfg.Constraints.GlideSlope * math.Pi / 180)
}

// launcher solves the reference of a config and hands its MPC driver to
// the live view.
func launcher(log *zap.Logger) viz.Launcher {
	return func(ctx context.Context, cfg *config.Config) (viz.Stepper, viz.Scene, error) {
		exp, err := experiment.New(cfg, experiment.WithLogger(log))
		if err != nil {
			return nil, viz.Scene{}, err
		}
		ref, err := exp.Run(ctx)
		if err != nil {
			return nil, viz.Scene{}, err
		}
		d, _, err := exp.Driver(ref)
		if err != nil {
			return nil, viz.Scene{}, err
		}
		title := "rocket landing"
		if preset != "" {
			title += " · " + preset
		}
		return d, viz.Scene{Title: title, Reference: ref.States, GlideTan: glideTan(cfg)}, nil
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := useScreenLogger(); err != nil {
		return err
	}
	stepper, scene, err := launcher(logger)(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	steps, err := viz.Run(cmd.Context(), stepper, scene)
	if err != nil {
		return err
	}
	fmt.Printf("%d steps, %d solved\n", len(steps), viz.Succeeded(steps))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context(), storage.Kind(kind))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tPRESET\tTIME\tKNOTS\tDT\tINTEG\tSTATUS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4fs\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.Preset,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Knots,
			run.Dt,
			run.Integrator,
			run.Status,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("run:        %s\n", meta.ID)
	fmt.Printf("kind:       %s\n", meta.Kind)
	if meta.Preset != "" {
		fmt.Printf("preset:     %s\n", meta.Preset)
	}
	fmt.Printf("created:    %s\n", meta.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("integrator: %s\n", meta.Integrator)
	fmt.Printf("knots:      %d (dt %.4fs)\n", meta.Knots, meta.Dt)
	fmt.Printf("status:     %s\n\n", meta.Status)
	printMetrics(meta.Metrics)

	if meta.Kind != storage.KindMPC {
		return nil
	}
	steps, err := st.Steps(cmd.Context(), meta.ID)
	if err != nil {
		return err
	}
	statuses := make(map[string]int)
	for _, s := range steps {
		statuses[s.Status]++
	}
	fmt.Println("\nsolver status per step:")
	for status, n := range statuses {
		fmt.Printf("  %-28s %d\n", status, n)
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := st.LoadResult(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(result.States) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Kind)
	fmt.Printf("samples: %d\n\n", len(result.States))

	altitude := make([]float64, len(result.States))
	lateral := make([]float64, len(result.States))
	speed := make([]float64, len(result.States))
	for i, x := range result.States {
		altitude[i] = x[2]
		lateral[i] = math.Hypot(x[0], x[1])
		speed[i] = dynamo.State(x[3:6]).Norm()
	}
	series := []struct {
		caption string
		data    []float64
	}{
		{"altitude (m)", altitude},
		{"lateral distance (m)", lateral},
		{"speed (m/s)", speed},
	}
	if len(result.Controls) > 1 {
		thrust := make([]float64, len(result.Controls))
		for i, u := range result.Controls {
			thrust[i] = u.Norm()
		}
		series = append(series, struct {
			caption string
			data    []float64
		}{"thrust (N)", thrust})
	}
	if meta.Kind == storage.KindMPC {
		steps, err := st.Steps(cmd.Context(), meta.ID)
		if err != nil {
			return err
		}
		if len(steps) > 1 {
			tracking := make([]float64, len(steps))
			for i, s := range steps {
				tracking[i] = s.TrackingError
			}
			series = append(series, struct {
				caption string
				data    []float64
			}{"tracking error (m)", tracking})
		}
	}

	for _, s := range series {
		graph := asciigraph.Plot(s.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func output() (*os.File, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := st.LoadResult(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	steps, err := st.Steps(cmd.Context(), meta.ID)
	if err != nil {
		return err
	}

	out, closeOut, err := output()
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(out, *meta, result, steps); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	_, result, err := st.LoadResult(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, closeOut, err := output()
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(out, result); err != nil {
		closeOut()
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return closeOut()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, result, err := st.LoadResult(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	glide := 0.0
	if glideSlope > 0 {
		glide = math.Tan(glideSlope * math.Pi / 180)
	}

	// solve runs store the reference, mpc runs the flown path
	var ref, flown []dynamo.State
	if meta.Kind == storage.KindMPC {
		flown = result.States
	} else {
		ref = result.States
	}

	var svg string
	if wireframe {
		top := 0.0
		for _, x := range result.States {
			top = math.Max(top, x[2])
		}
		c := viz.NewCanvas(svgWidth/8, svgHeight/16)
		viz.Render3D(c, viz.LandingScene(ref, flown, glide, top), viz.NewCamera())
		svg = export.CanvasToSVG(c, 4, "#00ff87")
	} else {
		svg = export.LandingSVG(ref, flown, glide, svgWidth, svgHeight)
	}
	if svg == "" {
		return fmt.Errorf("run %s has nothing to draw", meta.ID)
	}

	out, closeOut, err := output()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, svg); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	exp, cfg, err := newExperiment(cmd)
	if err != nil {
		return err
	}
	ref, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("reference: %s\n", ref.Stats.Status)

	ens, err := experiment.NewEnsemble(cfg, runs, cfg.Seed, workers, experiment.WithLogger(logger))
	if err != nil {
		return err
	}
	results, err := ens.Run(cmd.Context(), ref)
	if err != nil {
		return err
	}

	fmt.Printf("%d runs, seeds %d..%d\n\n", len(results), cfg.Seed, cfg.Seed+uint64(len(results))-1)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTD\tMIN\tMEDIAN\tMAX")
	for _, name := range []string{"max_tracking_error", "failed_solves", "mean_iterations", "mean_solve_ms", "control_effort", "min_altitude"} {
		s := experiment.MetricSpread(results, name)
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n", name, s.Mean, s.Std, s.Min, s.Median, s.Max)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if noSave {
		return nil
	}
	st, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer st.Close()
	for i, res := range results {
		meta := runMeta(cfg, storage.KindMPC, fmt.Sprintf("%d/%d solved", viz.Succeeded(res.Steps), len(res.Steps)))
		meta.Seed = cfg.Seed + uint64(i)
		meta.Knots = len(res.States)
		if _, err := st.Save(cmd.Context(), meta, &res.Result, storage.StepRecords(res.Steps)); err != nil {
			return err
		}
	}
	fmt.Printf("\nsaved %d runs\n", len(results))
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(
		[]string{"penalty_initial", "penalty_scaling"},
		[][]float64{penaltyInitial, penaltyScaling},
	)
	if err != nil {
		return err
	}

	fmt.Printf("searching %d combinations for the lowest %s\n", g.Size(), tuneMetric)
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := optim.ApplySolverParams(base, params)
		if err != nil {
			return nil, err
		}
		logger.Debug("grid point", zap.Any("params", params))
		return experiment.New(cfg, experiment.WithLogger(logger))
	}
	best, val, err := g.Search(cmd.Context(), build, tuneMetric)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, best[k])
	}
	fmt.Printf("best: %s (%s = %g)\n", strings.Join(parts, " "), tuneMetric, val)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if sc.Name != "" {
		fmt.Printf("scenario: %s\n", sc.Name)
	}
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}
	results, err := automation.RunScenario(cmd.Context(), sc, logger)
	for _, r := range results {
		fmt.Printf("\n%s [%s]: %s\n", r.Name, r.Mode, r.Status)
		printMetrics(r.Metrics)
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}, logger)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTATUS\tITERATIONS\tCOST\tVIOLATION\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%s\t%d\t%.6g\t%.3g\n", r.ParamValue, r.Status, r.Iterations, r.Cost, r.Violation)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
		Base:         base,
		Perturbation: perturbation,
		NumTrials:    trials,
		Seed:         base.Seed,
	}, logger)
	if err != nil {
		return err
	}

	ok, failed := automation.MonteCarloStats(results)
	worst := 0.0
	for _, r := range results {
		worst = math.Max(worst, r.TerminalError)
	}
	fmt.Printf("%d trials: %d converged, %d failed\n", len(results), ok, failed)
	fmt.Printf("worst terminal error: %.4g\n", worst)
	return nil
}
