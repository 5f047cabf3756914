package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go-hep.org/x/hep/fmom"

	"github.com/san-kum/tgtreco/internal/batch"
	"github.com/san-kum/tgtreco/internal/config"
	"github.com/san-kum/tgtreco/internal/metrics"
	"github.com/san-kum/tgtreco/internal/physics"
	"github.com/san-kum/tgtreco/internal/plotting"
	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/storage"
)

func trackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "integrate one trajectory through the field",
		RunE:  runTrack,
	}
	cmd.Flags().StringVar(&posFlag, "pos", "0,0,0", "start position x,y,z (mm)")
	cmd.Flags().StringVar(&momFlag, "mom", "0,0,1000", "momentum px,py,pz (MeV/c)")
	cmd.Flags().StringVar(&csvFile, "csv", "", "write samples to CSV")
	return cmd
}

func recoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reco",
		Short: "reconstruct the target momentum of one track",
		RunE:  runReco,
	}
	addTrackFlags(cmd)
	cmd.Flags().StringVar(&method, "method", config.DefaultMethod, "method: "+fmt.Sprint(reconstruct.Methods()))
	cmd.Flags().BoolVar(&save, "save", false, "store the result as a run")
	cmd.Flags().StringVar(&dumpFile, "dump", "", "write a track dump CSV")
	cmd.Flags().StringVar(&pngFile, "png", "", "write a trajectory plot")
	cmd.Flags().StringVar(&jsonFile, "json", "", "write the result as JSON")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "plot the optimizer trace")
	return cmd
}

func scanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "scan closest approach against momentum",
		RunE:  runScan,
	}
	addTrackFlags(cmd)
	cmd.Flags().Float64Var(&scanMin, "pmin", 50, "lowest momentum (MeV/c)")
	cmd.Flags().Float64Var(&scanMax, "pmax", 3000, "highest momentum (MeV/c)")
	cmd.Flags().IntVar(&scanN, "n", 120, "number of points")
	cmd.Flags().StringVar(&pngFile, "png", "", "write a scan plot")
	return cmd
}

func addTrackFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&startFlag, "start", "", "first track point x,y,z (mm)")
	cmd.Flags().StringVar(&endFlag, "end", "", "second track point x,y,z (mm)")
	cmd.Flags().StringVar(&targetFlag, "target", "", "target x,y,z (mm); defaults to the config target")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runTrack(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd)
	if err != nil {
		return err
	}
	pos, err := parseVec(posFlag)
	if err != nil {
		return fmt.Errorf("--pos: %w", err)
	}
	mom, err := parseVec(momFlag)
	if err != nil {
		return fmt.Errorf("--mom: %w", err)
	}
	p, err := s.cfg.ParticleSpec()
	if err != nil {
		return err
	}

	start := time.Now()
	traj, err := s.tracker.Calculate(pos, fmom.NewPxPyPzE(mom.X, mom.Y, mom.Z, physics.Energy(mom, p.Mass)), p.Charge, p.Mass)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	vals := metrics.Apply(traj, metrics.NewPathLength(), metrics.NewMomentumDrift(), metrics.NewPeakField())
	final := traj.Final()
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s trajectory", p.Name)))
	fmt.Printf("  samples:   %d (%v)\n", len(traj), elapsed)
	fmt.Printf("  final:     %s mm at %.3f ns\n", fmtVec(final.Position), final.Time)
	fmt.Printf("  momentum:  %s MeV/c\n", fmtVec(final.Momentum))
	for _, name := range []string{"path_length", "momentum_drift", "peak_field"} {
		fmt.Printf("  %-15s %.6g\n", name+":", vals[name])
	}

	if csvFile == "" {
		return nil
	}
	f, err := os.Create(csvFile)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"t", "x", "y", "z", "px", "py", "pz", "bx", "by", "bz"})
	g := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, pt := range traj {
		w.Write([]string{
			g(pt.Time),
			g(pt.Position.X), g(pt.Position.Y), g(pt.Position.Z),
			g(pt.Momentum.X), g(pt.Momentum.Y), g(pt.Momentum.Z),
			g(pt.Field.X), g(pt.Field.Y), g(pt.Field.Z),
		})
	}
	w.Flush()
	return w.Error()
}

func runReco(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd)
	if err != nil {
		return err
	}
	track, err := trackFromFlags()
	if err != nil {
		return err
	}
	strategy, err := s.cfg.Strategy()
	if err != nil {
		return err
	}
	target := s.cfg.Target.R3()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	res, err := s.rec.Reconstruct(ctx, strategy, track, target)
	elapsed := time.Since(start)
	printResult(res, elapsed)
	if err != nil {
		return err
	}

	if showTrace && len(res.Trace) > 1 {
		losses := make([]float64, 0, len(res.Trace))
		for _, st := range res.Trace {
			if !math.IsInf(st.Loss, 0) {
				losses = append(losses, st.Loss)
			}
		}
		if len(losses) > 1 {
			fmt.Println()
			fmt.Println(asciigraph.Plot(losses,
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption("loss per step"),
			))
		}
	}

	if dumpFile != "" {
		f, err := os.Create(dumpFile)
		if err != nil {
			return err
		}
		if err := storage.WriteTrackDump(f, track, target, res); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if pngFile != "" {
		if err := plotting.TrajectoryPNG(pngFile, res, track, target); err != nil {
			return err
		}
	}
	if jsonFile != "" {
		if err := storage.ExportJSON(jsonFile, res, track, target); err != nil {
			return err
		}
	}
	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		records := []batch.Record{{Event: batch.Event{ID: "0", Track: track}, Result: res}}
		id, err := st.Save(runMeta(s, res.Method), records)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", id)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd)
	if err != nil {
		return err
	}
	track, err := trackFromFlags()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	trials, err := s.rec.Scan(ctx, track, s.cfg.Target.R3(), scanMin, scanMax, scanN)
	if err != nil {
		return err
	}

	best := 0
	data := make([]float64, len(trials))
	for i, t := range trials {
		data[i] = t.Distance
		if math.IsInf(t.Distance, 0) {
			data[i] = math.NaN()
		}
		if t.Distance < trials[best].Distance {
			best = i
		}
	}
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("closest approach (mm), |p| %g..%g MeV/c", scanMin, scanMax)),
	))
	fmt.Printf("\nminimum: %.3f mm at |p| = %.2f MeV/c\n", trials[best].Distance, trials[best].P)

	if pngFile != "" {
		return plotting.ScanPNG(pngFile, trials)
	}
	return nil
}

func printResult(res *reconstruct.Result, elapsed time.Duration) {
	status := okStyle.Render("success")
	if !res.Success {
		status = failStyle.Render("failed")
	}
	p := res.MomentumVec()
	fmt.Println(titleStyle.Render(fmt.Sprintf("reconstruction (%s)", res.Method)), status)
	fmt.Printf("  momentum:    %s MeV/c\n", fmtVec(p))
	fmt.Printf("  |p|:         %.3f MeV/c\n", res.PMag())
	fmt.Printf("  energy:      %.3f MeV\n", res.Momentum.E())
	fmt.Printf("  distance:    %.4f mm\n", res.FinalDistance)
	fmt.Printf("  iterations:  %d (%d evaluations, converged=%v)\n", res.Iterations, res.Evaluations, res.Converged)
	fmt.Println(dimStyle.Render(fmt.Sprintf("  elapsed %v", elapsed)))
	if res.Err != nil {
		fmt.Println(failStyle.Render("  error: " + res.Err.Error()))
	}
}

func runMeta(s *setup, method string) storage.RunMetadata {
	source := s.cfg.Field.Table
	if source == "" {
		source = s.cfg.Field.Cache
	}
	return storage.RunMetadata{
		Method:      method,
		Particle:    s.cfg.Particle,
		FieldMap:    source,
		RotationDeg: s.cfg.Field.RotationDeg,
		StepSize:    s.cfg.Tracking.StepSize,
		Target:      [3]float64(s.cfg.Target),
	}
}
