package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/tgtreco/internal/batch"
	"github.com/san-kum/tgtreco/internal/config"
	"github.com/san-kum/tgtreco/internal/plotting"
	"github.com/san-kum/tgtreco/internal/storage"
)

func batchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [tracks.csv]",
		Short: "reconstruct every track in a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().StringVar(&method, "method", config.DefaultMethod, "reconstruction method")
	cmd.Flags().StringVar(&targetFlag, "target", "", "default target x,y,z (mm)")
	cmd.Flags().BoolVar(&batchSave, "save", true, "store the results as a run")
	cmd.Flags().StringVar(&histFile, "hist", "", "write a histogram of |p|")
	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}
}

func showCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
}

func presetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-8s step %.2f mm, acceptance %.1f mm\n", name, cfg.Tracking.StepSize, cfg.Reconstruction.Acceptance)
			}
			return nil
		},
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	s, err := buildSetup(cmd)
	if err != nil {
		return err
	}
	strategy, err := s.cfg.Strategy()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	events, err := batch.ReadTracks(f)
	f.Close()
	if err != nil {
		return err
	}

	runner := &batch.Runner{
		Reconstructor: s.rec,
		Strategy:      strategy,
		Target:        s.cfg.Target.R3(),
		Workers:       s.cfg.Reconstruction.Workers,
		Progress: func(done, total int) {
			if !quiet && done%50 == 0 {
				fmt.Fprintf(os.Stderr, "\r%d/%d", done, total)
			}
		},
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("reconstructing %d events with %s...\n", len(events), strategy.Name())
	start := time.Now()
	records, err := runner.Run(ctx, events)
	if err != nil {
		return err
	}
	if !quiet && len(events) >= 50 {
		fmt.Fprintln(os.Stderr)
	}

	summary := batch.Summarize(records)
	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Println(titleStyle.Render(summary.String()))

	if histFile != "" {
		ps := make([]float64, 0, len(records))
		for _, rec := range records {
			if rec.Result != nil && rec.Result.Success {
				ps = append(ps, rec.Result.PMag())
			}
		}
		if err := plotting.HistogramPNG(histFile, "|p| (MeV/c)", ps, 50); err != nil {
			return err
		}
	}

	if !batchSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := runMeta(s, strategy.Name())
	meta.Summary = summary
	id, err := st.Save(meta, records)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
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
	fmt.Fprintln(w, "ID\tMETHOD\tTIME\tEVENTS\tEFF\t<P>")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f%%\t%.2f\n",
			run.ID,
			run.Method,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Summary.Events,
			100*run.Summary.Efficiency,
			run.Summary.MeanP,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	rows, err := st.LoadResults(args[0])
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("run " + meta.ID))
	fmt.Printf("  method:    %s (%s)\n", meta.Method, meta.Particle)
	fmt.Printf("  field:     %s at %.1f deg, step %.2f mm\n", meta.FieldMap, meta.RotationDeg, meta.StepSize)
	fmt.Printf("  target:    (%g, %g, %g) mm\n", meta.Target[0], meta.Target[1], meta.Target[2])
	fmt.Printf("  summary:   %s\n\n", meta.Summary)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tPX\tPY\tPZ\t|P|\tDIST\tOK")
	var ps []float64
	for _, r := range rows {
		ok := failStyle.Render("no")
		if r.Success {
			ok = okStyle.Render("yes")
			ps = append(ps, r.P)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.3f\t%s\n", r.Event, r.Px, r.Py, r.Pz, r.P, r.Distance, ok)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(ps) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("|p| per event (MeV/c)"),
		))
	}
	return nil
}
