package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/field"
)

func fieldCommand() *cobra.Command {
	fieldCmd := &cobra.Command{
		Use:   "field",
		Short: "inspect and convert field maps",
	}

	infoCmd := &cobra.Command{
		Use:   "info [map]",
		Short: "summarize a field table or cache",
		Args:  cobra.ExactArgs(1),
		RunE:  fieldInfo,
	}

	convertCmd := &cobra.Command{
		Use:   "convert [table] [cache]",
		Short: "convert a field table to the binary cache",
		Args:  cobra.ExactArgs(2),
		RunE:  fieldConvert,
	}

	probeCmd := &cobra.Command{
		Use:   "probe [x] [y] [z]",
		Short: "print the field at a lab point (mm)",
		Args:  cobra.ExactArgs(3),
		RunE:  fieldProbe,
	}

	synthCmd := &cobra.Command{
		Use:   "synth [out]",
		Short: "write a uniform dipole table for testing",
		Args:  cobra.ExactArgs(1),
		RunE:  fieldSynth,
	}
	synthCmd.Flags().Float64Var(&synthB, "b", 1, "vertical field (T)")
	synthCmd.Flags().Float64Var(&synthStep, "spacing", 50, "lattice spacing (mm)")

	fieldCmd.AddCommand(infoCmd, convertCmd, probeCmd, synthCmd)
	return fieldCmd
}

// openMap loads path as a cache when it has a .gob, .bin or .cache extension
// and as a table otherwise.
func openMap(path string) (*field.Map, error) {
	m := field.New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gob", ".bin", ".cache":
		if err := m.LoadSerialized(path); err != nil {
			return nil, err
		}
	default:
		if err := m.LoadTable(path, field.DefaultHeaderSkip); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func fieldInfo(cmd *cobra.Command, args []string) error {
	m, err := openMap(args[0])
	if err != nil {
		return err
	}
	info, err := m.Info()
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(args[0]))
	fmt.Printf("  lattice:  %d x %d x %d nodes\n", info.Lattice.N[0], info.Lattice.N[1], info.Lattice.N[2])
	fmt.Printf("  spacing:  %g, %g, %g mm\n", info.Lattice.Step[0], info.Lattice.Step[1], info.Lattice.Step[2])
	for axis, name := range []string{"x", "y", "z"} {
		fmt.Printf("  %s range:  [%g, %g] mm\n", name, info.Extent[axis][0], info.Extent[axis][1])
	}
	fmt.Printf("  |B| max:  %.4f T\n", info.PeakB)
	fmt.Printf("  nonzero:  %d nodes\n", info.NonZero)
	return nil
}

func fieldConvert(cmd *cobra.Command, args []string) error {
	m := field.New()
	if err := m.LoadTable(args[0], field.DefaultHeaderSkip); err != nil {
		return err
	}
	if err := m.SaveSerialized(args[1]); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[1])
	return nil
}

func fieldProbe(cmd *cobra.Command, args []string) error {
	var p [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		p[i] = v
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m, err := cfg.LoadField()
	if err != nil {
		return err
	}

	pos := r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	b := m.FieldAt(pos)
	fmt.Printf("B%s = %s T (|B| = %.5f T)\n", fmtVec(pos), fmtVec(b), r3.Norm(b))
	if !m.IsInRange(pos) {
		fmt.Println(dimStyle.Render("point is outside the mapped aperture"))
	}
	return nil
}

func fieldSynth(cmd *cobra.Command, args []string) error {
	s := synthStep
	if !(s > 0) {
		return fmt.Errorf("spacing must be positive, got %g", s)
	}
	l := field.Lattice{
		N:    [3]int{int(1500/s) + 1, int(600/s) + 1, int(1500/s) + 1},
		Min:  [3]float64{0, -300, 0},
		Step: [3]float64{s, s, s},
	}
	m, err := field.Build(l, func(x, y, z float64) r3.Vec { return r3.Vec{Y: synthB} })
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := m.WriteTable(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d nodes)\n", args[0], l.Size())
	return nil
}
