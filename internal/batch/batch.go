// Package batch reconstructs many measured tracks concurrently.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/tgtreco/internal/dynamo"
	"github.com/san-kum/tgtreco/internal/monitoring"
	"github.com/san-kum/tgtreco/internal/reconstruct"
)

var ErrBadInput = errors.New("batch: malformed track file")

// Event is one measured track. Target is nil when the event uses the run's
// default target.
type Event struct {
	ID     string
	Track  reconstruct.Track
	Target *r3.Vec
}

// Record is the reconstruction of one event.
type Record struct {
	Event  Event
	Result *reconstruct.Result
}

// ReadTracks parses CSV rows of event,sx,sy,sz,ex,ey,ez with an optional
// per-event target tx,ty,tz. A leading header row and lines starting with
// '#' are skipped.
func ReadTracks(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var events []Event
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "event") {
			continue
		}
		if len(rec) != 7 && len(rec) != 10 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want 7 or 10", ErrBadInput, line, len(rec))
		}

		vals := make([]float64, len(rec)-1)
		for i, s := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %v", ErrBadInput, line, i+2, err)
			}
			vals[i] = v
		}

		ev := Event{
			ID: strings.TrimSpace(rec[0]),
			Track: reconstruct.Track{
				Start: r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]},
				End:   r3.Vec{X: vals[3], Y: vals[4], Z: vals[5]},
			},
		}
		if len(vals) == 9 {
			ev.Target = &r3.Vec{X: vals[6], Y: vals[7], Z: vals[8]}
		}
		events = append(events, ev)
	}
	return events, nil
}

// Runner reconstructs events with one strategy.
type Runner struct {
	Reconstructor *reconstruct.Reconstructor
	Strategy      reconstruct.Strategy
	Target        r3.Vec

	// Workers bounds concurrent events; zero means dynamo.DefaultWorkers.
	Workers int

	// Progress, if set, is called after each event completes. It may be
	// called from several goroutines at once.
	Progress func(done, total int)
}

// Run reconstructs every event and returns the records in input order. A
// failed event is logged and recorded with Success false; only context
// cancellation stops the run.
func (r *Runner) Run(ctx context.Context, events []Event) ([]Record, error) {
	records := make([]Record, len(events))
	workers := r.Workers
	if workers <= 0 {
		workers = dynamo.DefaultWorkers
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ev := range events {
		if gctx.Err() != nil {
			break
		}
		i, ev := i, ev
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target := r.Target
			if ev.Target != nil {
				target = *ev.Target
			}
			res, err := r.Reconstructor.Reconstruct(gctx, r.Strategy, ev.Track, target)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				monitoring.Logf("batch: event %s skipped: %v", ev.ID, err)
			}
			records[i] = Record{Event: ev, Result: res}
			n := done.Add(1)
			if r.Progress != nil {
				r.Progress(int(n), len(events))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, ctx.Err()
}

// Summary aggregates a batch.
type Summary struct {
	Events     int     `json:"events"`
	Successes  int     `json:"successes"`
	Efficiency float64 `json:"efficiency"`

	MeanP    float64 `json:"mean_p"`
	StdP     float64 `json:"std_p"`
	MeanDist float64 `json:"mean_distance"`
	StdDist  float64 `json:"std_distance"`
}

// Summarize computes momentum and distance statistics over the successful
// records. Statistics of an empty selection are zero.
func Summarize(records []Record) Summary {
	s := Summary{Events: len(records)}
	var ps, ds []float64
	for _, rec := range records {
		if rec.Result == nil || !rec.Result.Success {
			continue
		}
		s.Successes++
		ps = append(ps, rec.Result.PMag())
		ds = append(ds, rec.Result.FinalDistance)
	}
	if s.Events > 0 {
		s.Efficiency = float64(s.Successes) / float64(s.Events)
	}
	switch len(ps) {
	case 0:
	case 1:
		s.MeanP, s.MeanDist = ps[0], ds[0]
	default:
		s.MeanP, s.StdP = stat.MeanStdDev(ps, nil)
		s.MeanDist, s.StdDist = stat.MeanStdDev(ds, nil)
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d reconstructed (%.1f%%), <p>=%.2f±%.2f MeV/c, <d>=%.3f±%.3f mm",
		s.Successes, s.Events, 100*s.Efficiency, s.MeanP, s.StdP, s.MeanDist, s.StdDist)
}
