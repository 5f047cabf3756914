package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tgtreco/internal/batch"
	"github.com/san-kum/tgtreco/internal/reconstruct"
	"github.com/san-kum/tgtreco/internal/trajectory"
)

func sampleRecords() []batch.Record {
	ok := &reconstruct.Result{
		Method:        "grid",
		Momentum:      fmom.NewPxPyPzE(200, 0, 1000, 1385.76),
		FinalDistance: 0.75,
		Success:       true,
		Iterations:    4,
	}
	bad := &reconstruct.Result{
		Method:        "grid",
		FinalDistance: math.Inf(1),
		Err:           reconstruct.ErrDegenerateTrack,
	}
	return []batch.Record{
		{Event: batch.Event{ID: "7"}, Result: ok},
		{Event: batch.Event{ID: "8"}, Result: bad},
	}
}

func TestSaveLoadRun(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	meta := RunMetadata{Method: "grid", Particle: "proton", FieldMap: "map.table", RotationDeg: 30, StepSize: 1, Target: [3]float64{0, 0, -500}}
	id, err := s.Save(meta, sampleRecords())
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "run id should be a uuid")

	got, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "grid", got.Method)
	assert.Equal(t, 2, got.Summary.Events)
	assert.Equal(t, 1, got.Summary.Successes)
	assert.False(t, got.Timestamp.IsZero())

	rows, err := s.LoadResults(id)
	require.NoError(t, err)
	want := []ResultRow{
		{Event: "7", Px: 200, Pz: 1000, E: 1385.76, P: math.Hypot(200, 1000), Distance: 0.75, Success: true, Iterations: 4},
		{Event: "8", Distance: math.Inf(1)},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("LoadResults mismatch (-want +got):\n%s", diff)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	first, err := s.Save(RunMetadata{Method: "gd"}, nil)
	require.NoError(t, err)
	second, err := s.Save(RunMetadata{Method: "minimizer"}, nil)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(s.baseDir, "not-a-run"), 0755))

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)

	empty, err := New(filepath.Join(t.TempDir(), "missing")).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadMissingRun(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Load("nope")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExportJSON(t *testing.T) {
	res := sampleRecords()[0].Result
	res.Trajectory = trajectory.Trajectory{{Position: r3.Vec{Z: 2500}}, {Position: r3.Vec{Z: 2499}}}
	res.Trace = []reconstruct.Step{{P: 1000, Loss: math.Inf(1)}, {P: 1019, Loss: 0.75}}

	path := filepath.Join(t.TempDir(), "reco.json")
	track := reconstruct.Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{Z: 2500}}
	require.NoError(t, ExportJSON(path, res, track, r3.Vec{Z: -500}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got ExportData
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "grid", got.Method)
	require.NotNil(t, got.FinalDistance)
	assert.Equal(t, 0.75, *got.FinalDistance)
	assert.Len(t, got.Trajectory, 2)
	require.Len(t, got.Trace, 2)
	assert.Nil(t, got.Trace[0].Loss)

	failed := sampleRecords()[1].Result
	require.NoError(t, ExportJSON(path, failed, track, r3.Vec{}))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"final_distance": null`)
	assert.Contains(t, string(raw), "degenerate track")
}

func TestWriteTrackDump(t *testing.T) {
	res := sampleRecords()[0].Result
	res.Trajectory = trajectory.Trajectory{{Position: r3.Vec{Z: 2500}}, {Position: r3.Vec{X: 1, Z: 2498}}}

	var buf bytes.Buffer
	track := reconstruct.Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{Z: 2500}}
	require.NoError(t, WriteTrackDump(&buf, track, r3.Vec{Z: -500}, res))

	want := []string{
		"# method=grid",
		"# momentum=200,0,1000",
		"# final_distance=0.75",
		"# target=0,0,-500",
		"kind,x,y,z",
		"pdc,0,0,2000",
		"pdc,0,0,2500",
		"track,0,0,2500",
		"track,1,0,2498",
		"target,0,0,-500",
	}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSpace(buf.String()), "\n")); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}
