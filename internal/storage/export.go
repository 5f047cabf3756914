package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/reconstruct"
)

// ExportData is the JSON form of one reconstruction.
type ExportData struct {
	Method        string        `json:"method"`
	Track         [2][3]float64 `json:"track"`
	Target        [3]float64    `json:"target"`
	Momentum      [4]float64    `json:"momentum"`
	P             float64       `json:"p"`
	FinalDistance *float64      `json:"final_distance"`
	Success       bool          `json:"success"`
	Converged     bool          `json:"converged"`
	Iterations    int           `json:"iterations"`
	Evaluations   int           `json:"evaluations"`
	Error         string        `json:"error,omitempty"`
	Trajectory    [][3]float64  `json:"trajectory,omitempty"`
	Trace         []TraceStep   `json:"trace,omitempty"`
}

type TraceStep struct {
	P    float64  `json:"p"`
	Loss *float64 `json:"loss"`
}

// ExportJSON writes res with its track, target, trace and best trajectory.
// An infinite distance is written as null.
func ExportJSON(path string, res *reconstruct.Result, track reconstruct.Track, target r3.Vec) error {
	data := ExportData{
		Method:        res.Method,
		Track:         [2][3]float64{vec(track.Start), vec(track.End)},
		Target:        vec(target),
		Momentum:      [4]float64{res.Momentum.Px(), res.Momentum.Py(), res.Momentum.Pz(), res.Momentum.E()},
		P:             res.PMag(),
		FinalDistance: finite(res.FinalDistance),
		Success:       res.Success,
		Converged:     res.Converged,
		Iterations:    res.Iterations,
		Evaluations:   res.Evaluations,
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	for _, pt := range res.Trajectory {
		data.Trajectory = append(data.Trajectory, vec(pt.Position))
	}
	for _, st := range res.Trace {
		data.Trace = append(data.Trace, TraceStep{P: st.P, Loss: finite(st.Loss)})
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteTrackDump writes the measured points, the best trajectory and the
// target as kind,x,y,z rows below a commented header.
func WriteTrackDump(w io.Writer, track reconstruct.Track, target r3.Vec, res *reconstruct.Result) error {
	bw := bufio.NewWriter(w)
	p := res.MomentumVec()
	fmt.Fprintf(bw, "# method=%s\n", res.Method)
	fmt.Fprintf(bw, "# momentum=%g,%g,%g\n", p.X, p.Y, p.Z)
	fmt.Fprintf(bw, "# final_distance=%g\n", res.FinalDistance)
	fmt.Fprintf(bw, "# target=%g,%g,%g\n", target.X, target.Y, target.Z)
	fmt.Fprintln(bw, "kind,x,y,z")

	row := func(kind string, v r3.Vec) {
		fmt.Fprintf(bw, "%s,%g,%g,%g\n", kind, v.X, v.Y, v.Z)
	}
	row("pdc", track.Start)
	row("pdc", track.End)
	for _, pt := range res.Trajectory {
		row("track", pt.Position)
	}
	row("target", target)
	return bw.Flush()
}

func vec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
