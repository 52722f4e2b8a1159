package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"linkagelab/internal/config"
	"linkagelab/internal/dynamics"
	"linkagelab/internal/export"
	"linkagelab/internal/ik"
	"linkagelab/internal/linkage"
	"linkagelab/internal/mech"
	"linkagelab/internal/metrics"
	"linkagelab/internal/sim"
	"linkagelab/internal/storage"
	"linkagelab/internal/viz"
)

// constraint regularization for the forward dynamics solve
const dynamicsMu = 1e-10

var (
	dataDir    string
	configFile string
	preset     string
	dt         float64
	duration   float64
	crank      float64
	crankRate  float64
	stepper    string
	seed       int64
	gravity    float64
	correctKp  float64
	// solve flags
	perturb float64
	maxIter int
	tol     float64
	// phase plot joint index
	phaseJoint int
	// chart output
	outDir  string
	outPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linkagelab",
		Short: "closed kinematic chain simulation lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".linkagelab", "data directory")

	addRunFlags := func(c *cobra.Command) {
		c.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
		c.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
		c.Flags().Float64Var(&crank, "crank", config.DefaultCrank, "initial crank angle")
		c.Flags().Float64Var(&crankRate, "crank-rate", 0.0, "initial crank rate")
		c.Flags().StringVar(&stepper, "stepper", "symplectic_euler", "stepper (symplectic_euler, euler, rk4)")
		c.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
		c.Flags().Float64Var(&gravity, "gravity", 9.81, "gravity magnitude")
		c.Flags().Float64Var(&correctKp, "kp", 10.0, "closure corrector stiffness")
		c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		c.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run simulation and store the trajectory",
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run simulation with live visualization",
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve the loop closure from a perturbed guess",
		RunE:  solveClosure,
	}
	solveCmd.Flags().Float64Var(&perturb, "perturb", 0.5, "perturbation applied to the seed angles")
	solveCmd.Flags().IntVar(&maxIter, "max-iter", 100, "iteration budget")
	solveCmd.Flags().Float64Var(&tol, "tol", 1e-10, "feasibility tolerance")
	solveCmd.Flags().Int64Var(&seed, "seed", 42, "random seed for the perturbation")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot for one joint",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&phaseJoint, "joint", 0, "joint index")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export full run data to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSONFile,
	}
	exportJSONCmd.Flags().StringVar(&outPath, "out", "", "output path (default <run_id>.json)")

	chartCmd := &cobra.Command{
		Use:   "chart [run_id]",
		Short: "render run charts to image files",
		Args:  cobra.ExactArgs(1),
		RunE:  chartRun,
	}
	chartCmd.Flags().StringVar(&outDir, "out", ".", "output directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range config.ListPresets() {
				fmt.Println(p)
			}
			return nil
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [stepper1] [stepper2] ...",
		Short: "compare steppers on the same run",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareSteppers,
	}
	compareCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	compareCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	compareCmd.Flags().Float64Var(&crank, "crank", config.DefaultCrank, "initial crank angle")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the constrained dynamics",
		RunE:  benchDynamics,
	}

	rootCmd.AddCommand(runCmd, liveCmd, solveCmd, listCmd, plotCmd, phaseCmd,
		exportCmd, exportCSVCmd, exportJSONCmd, chartCmd, presetsCmd, compareCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig merges preset, config file, and CLI flags, with flags
// taking precedence over the file, and the file over the preset.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("crank") {
		cfg.InitState.Crank = crank
	}
	if cmd.Flags().Changed("crank-rate") {
		cfg.InitState.CrankRate = crankRate
	}
	if cmd.Flags().Changed("stepper") {
		cfg.Stepper = stepper
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("gravity") {
		cfg.Linkage.Gravity = gravity
	}
	if cmd.Flags().Changed("kp") {
		cfg.Linkage.CorrectorKp = correctKp
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildSystem(cfg *config.Config) (*linkage.FourBar, *dynamics.Constrained, mech.Stepper, error) {
	fb, err := linkage.NewFourBar(cfg.Linkage)
	if err != nil {
		return nil, nil, nil, err
	}
	dyn := dynamics.NewConstrained(fb.Model, fb.Constraint, dynamicsMu)
	step, err := dynamics.NewStepper(cfg.Stepper)
	if err != nil {
		return nil, nil, nil, err
	}
	return fb, dyn, step, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	fb, dyn, step, err := buildSystem(cfg)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s := sim.New(fb, dyn.Accel, step)
	s.AddMetric(metrics.NewEnergy(fb))
	s.AddMetric(metrics.NewEnergyDrift(fb))
	s.AddMetric(metrics.NewViolation(fb.Violation))
	s.AddMetric(metrics.NewStability(20.0))

	q0, v0 := cfg.GetInitState()

	fmt.Println("running four-bar simulation...")
	start := time.Now()

	result, err := s.Run(context.Background(), q0, v0, cfg.SimConfig())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, e := range result.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	for name, val := range result.Metrics {
		fmt.Printf("  %s: %.6g\n", name, val)
	}

	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	fb, dyn, step, err := buildSystem(cfg)
	if err != nil {
		return err
	}

	q0, v0 := cfg.GetInitState()
	m := viz.NewModel(fb, step, dyn.Accel, q0, v0, cfg.Dt)

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func solveClosure(cmd *cobra.Command, args []string) error {
	fb, err := linkage.NewFourBar(linkage.DefaultParams())
	if err != nil {
		return err
	}

	q0 := fb.ClosedGuess()
	for i := range q0 {
		q0[i] += perturb * math.Sin(float64(seed%97)+float64(i)*1.7)
	}

	opts := ik.DefaultOptions()
	opts.MaxIter = maxIter
	opts.Tol = tol

	fmt.Printf("seed configuration: %s\n", fmtVector(q0))
	fmt.Printf("initial violation: %.6g\n\n", fb.Violation(q0))

	sol, solveErr := ik.Solve(fb.Model, fb.Constraint, q0, opts)
	if sol == nil {
		return solveErr
	}

	if len(sol.Residuals) > 1 {
		logRes := make([]float64, len(sol.Residuals))
		for i, r := range sol.Residuals {
			logRes[i] = math.Log10(r + 1e-16)
		}
		graph := asciigraph.Plot(logRes,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("log10 constraint violation per iteration"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	fmt.Printf("converged: %v (%d iterations)\n", sol.Converged, sol.Iterations)
	fmt.Printf("primal feasibility: %.3e\n", sol.PrimalFeas)
	fmt.Printf("dual feasibility: %.3e\n", sol.DualFeas)
	fmt.Printf("solution: %s\n", fmtVector(sol.Q))
	fmt.Printf("residual violation: %.6g\n", fb.Violation(sol.Q))

	return solveErr
}

func fmtVector(v mech.Vector) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
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
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDT\tSTEPPER\tCRANK\tDRIFT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.4fs\t%s\t%.3f\t%.2e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Stepper,
			run.Crank,
			run.EnergyDrift,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if len(traj.Times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(traj.Times))

	nv := len(traj.Positions[0])
	for j := 0; j < nv; j++ {
		data := make([]float64, len(traj.Positions))
		for i := range traj.Positions {
			data[i] = traj.Positions[i][j]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("joint %d angle (rad)", j)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	logViol := make([]float64, len(traj.Violations))
	for i, c := range traj.Violations {
		logViol[i] = math.Log10(c + 1e-16)
	}
	graph := asciigraph.Plot(logViol,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.Caption("log10 closure violation (m)"),
	)
	fmt.Println(graph)

	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if len(traj.Times) == 0 {
		return fmt.Errorf("no data to plot")
	}
	if phaseJoint < 0 || phaseJoint >= len(traj.Positions[0]) {
		return fmt.Errorf("joint %d out of range", phaseJoint)
	}

	fmt.Printf("phase space: %s, joint %d\n\n", meta.ID, phaseJoint)

	xData := make([]float64, len(traj.Times))
	yData := make([]float64, len(traj.Times))
	for i := range traj.Times {
		xData[i] = traj.Positions[i][phaseJoint]
		yData[i] = traj.Velocities[i][phaseJoint]
	}

	xMin, xMax := minMax(xData)
	yMin, yMax := minMax(yData)
	xRange, yRange := xMax-xMin, yMax-yMin
	if xRange == 0 {
		xRange = 1
	}
	if yRange == 0 {
		yRange = 1
	}

	const width, height = 70, 20
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	for i := range xData {
		px := int(float64(width-1) * (xData[i] - xMin) / xRange)
		py := height - 1 - int(float64(height-1)*(yData[i]-yMin)/yRange)
		if px < 0 || px >= width || py < 0 || py >= height {
			continue
		}
		switch {
		case i < len(xData)/3:
			grid[py][px] = '.'
		case i < 2*len(xData)/3:
			grid[py][px] = 'o'
		default:
			grid[py][px] = '●'
		}
	}

	fmt.Printf("  %7.2f ┌%s┐\n", yMax, strings.Repeat("─", width))
	for i := range grid {
		label := "         "
		if i == height/2 {
			label = fmt.Sprintf("  %7.2f ", (yMax+yMin)/2)
		}
		fmt.Printf("%s│%s│\n", label, string(grid[i]))
	}
	fmt.Printf("  %7.2f └%s┘\n", yMin, strings.Repeat("─", width))
	fmt.Printf("          %.2f%s%.2f\n", xMin, strings.Repeat(" ", width-14), xMax)
	fmt.Println("\nlegend: . = early, o = middle, ● = late")

	return nil
}

func minMax(data []float64) (float64, float64) {
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if len(traj.Times) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	nv := len(traj.Positions[0])
	header := []string{"time"}
	for i := 0; i < nv; i++ {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < nv; i++ {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	header = append(header, "violation")
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range traj.Times {
		row := []string{strconv.FormatFloat(traj.Times[i], 'f', 6, 64)}
		for _, val := range traj.Positions[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		for _, val := range traj.Velocities[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		row = append(row, strconv.FormatFloat(traj.Violations[i], 'e', 6, 64))
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSONFile(cmd *cobra.Command, args []string) error {
	runID := args[0]
	path := outPath
	if path == "" {
		path = runID + ".json"
	}

	st := storage.New(dataDir)
	if err := st.ExportJSON(runID, path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func chartRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	// runs written before linkage params were persisted fall back to
	// the reference mechanism
	params := meta.Linkage
	if params.Validate() != nil {
		params = linkage.DefaultParams()
	}
	fb, err := linkage.NewFourBar(params)
	if err != nil {
		return err
	}

	outputs := []struct {
		name string
		fn   func(string) error
	}{
		{"angles.png", func(p string) error { return export.PlotAngles(traj, p) }},
		{"violation.png", func(p string) error { return export.PlotViolation(traj, p) }},
		{"energy.png", func(p string) error { return export.PlotEnergy(traj, fb, p) }},
		{"phase.png", func(p string) error { return export.PlotPhase(traj, 0, p) }},
	}

	for _, out := range outputs {
		path := filepath.Join(outDir, fmt.Sprintf("%s_%s", meta.ID, out.name))
		if err := out.fn(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}

	return nil
}

func compareSteppers(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("crank") {
		cfg.InitState.Crank = crank
	}

	fmt.Printf("comparing steppers (dt=%.4f, duration=%.1fs)\n\n", cfg.Dt, cfg.Duration)
	fmt.Printf("%-18s  %-12s  %-14s  %-14s  %-10s\n",
		"stepper", "final_crank", "energy_drift", "max_violation", "time_ms")
	fmt.Println(strings.Repeat("-", 76))

	for _, name := range args {
		cfg.Stepper = name
		fb, dyn, step, err := buildSystem(cfg)
		if err != nil {
			fmt.Printf("%-18s  error: %v\n", name, err)
			continue
		}

		s := sim.New(fb, dyn.Accel, step)
		s.AddMetric(metrics.NewViolation(fb.Violation))

		q0, v0 := cfg.GetInitState()
		start := time.Now()
		result, err := s.Run(context.Background(), q0, v0, cfg.SimConfig())
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-18s  error: %v\n", name, err)
			continue
		}

		finalCrank := 0.0
		if n := len(result.Positions); n > 0 {
			finalCrank = result.Positions[n-1][0]
		}
		fmt.Printf("%-18s  %12.6f  %14.2e  %14.2e  %10.2f\n",
			name, finalCrank, result.EnergyDrift,
			result.Metrics["max_violation"],
			float64(elapsed.Microseconds())/1000)
	}

	return nil
}

func benchDynamics(cmd *cobra.Command, args []string) error {
	durations := []float64{1.0, 5.0, 10.0}
	dts := []float64{0.001, 0.005, 0.01}

	cfg := config.DefaultConfig()

	fmt.Println("benchmarking constrained dynamics")
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tDT\tSTEPS\tTIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, h := range dts {
			cfg.Dt = h
			cfg.Duration = dur

			fb, dyn, step, err := buildSystem(cfg)
			if err != nil {
				return err
			}
			s := sim.New(fb, dyn.Accel, step)

			q0, v0 := cfg.GetInitState()
			start := time.Now()
			result, err := s.Run(context.Background(), q0, v0, cfg.SimConfig())
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			stepsPerSec := float64(result.StepsTaken) / elapsed.Seconds()
			fmt.Fprintf(w, "%.1fs\t%.4fs\t%d\t%v\t%.0f\n",
				dur, h, result.StepsTaken, elapsed, stepsPerSec)
		}
	}

	return w.Flush()
}
