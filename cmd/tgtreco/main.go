package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/config"
	"github.com/san-kum/tgtreco/internal/field"
	"github.com/san-kum/tgtreco/internal/monitoring"
	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

var (
	dataDir    string
	configFile string
	preset     string
	quiet      bool

	// field overrides
	fieldTable string
	fieldCache string
	angle      float64
	scale      float64

	// tracking overrides
	stepSize   float64
	integrator string
	particle   string
	workers    int

	// reconstruction
	method     string
	startFlag  string
	endFlag    string
	targetFlag string
	save       bool
	dumpFile   string
	pngFile    string
	jsonFile   string
	showTrace  bool

	// scan
	scanMin float64
	scanMax float64
	scanN   int

	// track
	posFlag string
	momFlag string
	csvFile string

	// batch
	histFile  string
	batchSave bool

	// field synth
	synthB    float64
	synthStep float64
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tgtreco",
		Short:        "target momentum reconstruction through a dipole field map",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if quiet {
				monitoring.SetLogger(nil)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".tgtreco", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress diagnostics")
	pf.StringVar(&fieldTable, "field", "", "field map table")
	pf.StringVar(&fieldCache, "cache", "", "field map cache (written after a table load)")
	pf.Float64Var(&angle, "angle", config.DefaultRotation, "magnet rotation about y (deg)")
	pf.Float64Var(&scale, "scale", 1, "field scale factor")
	pf.Float64Var(&stepSize, "step", trajectory.DefaultStepSize, "integration step (mm)")
	pf.StringVar(&integrator, "integrator", trajectory.DefaultIntegrator, "integrator")
	pf.StringVar(&particle, "particle", config.DefaultParticle, "particle species")
	pf.IntVar(&workers, "workers", 0, "parallel workers (0 = default)")

	rootCmd.AddCommand(
		fieldCommand(),
		trackCommand(),
		recoCommand(),
		scanCommand(),
		batchCommand(),
		listCommand(),
		showCommand(),
		presetsCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves preset, config file and explicitly set flags, in that
// order of increasing precedence.
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
	if flags.Changed("field") {
		cfg.Field.Table = fieldTable
	}
	if flags.Changed("cache") {
		cfg.Field.Cache = fieldCache
	}
	if flags.Changed("angle") {
		cfg.Field.RotationDeg = angle
	}
	if flags.Changed("scale") {
		cfg.Field.Scale = scale
	}
	if flags.Changed("step") {
		cfg.Tracking.StepSize = stepSize
	}
	if flags.Changed("integrator") {
		cfg.Tracking.Integrator = integrator
	}
	if flags.Changed("particle") {
		cfg.Particle = particle
	}
	if flags.Changed("workers") {
		cfg.Reconstruction.Workers = workers
	}
	if flags.Lookup("method") != nil && flags.Changed("method") {
		cfg.Reconstruction.Method = method
	}
	if flags.Lookup("target") != nil && flags.Changed("target") {
		v, err := parseVec(targetFlag)
		if err != nil {
			return nil, fmt.Errorf("--target: %w", err)
		}
		cfg.Target = config.Vec{v.X, v.Y, v.Z}
	}

	if cmd.Name() == "reco" && (dumpFile != "" || pngFile != "") {
		cfg.Reconstruction.SaveTrajectories = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type setup struct {
	cfg     *config.Config
	field   *field.Map
	tracker *trajectory.Tracker
	rec     *reconstruct.Reconstructor
}

func buildSetup(cmd *cobra.Command) (*setup, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	m, err := cfg.LoadField()
	if err != nil {
		return nil, err
	}
	tr, err := trajectory.New(m, cfg.TrackerConfig())
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ReconstructOptions()
	if err != nil {
		return nil, err
	}
	rec, err := reconstruct.New(tr, opts)
	if err != nil {
		return nil, err
	}
	return &setup{cfg: cfg, field: m, tracker: tr, rec: rec}, nil
}

// parseVec reads "x,y,z".
func parseVec(s string) (r3.Vec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vec{}, fmt.Errorf("expected x,y,z, got %q", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("component %d of %q: %w", i+1, s, err)
		}
		v[i] = f
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func trackFromFlags() (reconstruct.Track, error) {
	start, err := parseVec(startFlag)
	if err != nil {
		return reconstruct.Track{}, fmt.Errorf("--start: %w", err)
	}
	end, err := parseVec(endFlag)
	if err != nil {
		return reconstruct.Track{}, fmt.Errorf("--end: %w", err)
	}
	return reconstruct.Track{Start: start, End: end}, nil
}

func fmtVec(v r3.Vec) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}
