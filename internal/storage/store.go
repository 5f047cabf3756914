package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/tgtreco/internal/batch"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one stored reconstruction run.
type RunMetadata struct {
	ID          string        `json:"id"`
	Method      string        `json:"method"`
	Particle    string        `json:"particle"`
	Timestamp   time.Time     `json:"timestamp"`
	FieldMap    string        `json:"field_map"`
	RotationDeg float64       `json:"rotation_deg"`
	StepSize    float64       `json:"step_size"`
	Target      [3]float64    `json:"target"`
	Summary     batch.Summary `json:"summary"`
}

// ResultRow is one line of results.csv.
type ResultRow struct {
	Event      string
	Px, Py, Pz float64
	E          float64
	P          float64
	Distance   float64
	Success    bool
	Iterations int
}

var resultsHeader = []string{"event", "px", "py", "pz", "e", "p", "distance", "success", "iterations"}

// Save writes a run under a fresh ID. The ID and timestamp of meta are
// filled in.
func (s *Store) Save(meta RunMetadata, records []batch.Record) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()
	if meta.Summary.Events == 0 && len(records) > 0 {
		meta.Summary = batch.Summarize(records)
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "results.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(resultsHeader); err != nil {
		return "", err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, rec := range records {
		res := rec.Result
		if res == nil {
			continue
		}
		row := []string{
			rec.Event.ID,
			f(res.Momentum.Px()), f(res.Momentum.Py()), f(res.Momentum.Pz()), f(res.Momentum.E()),
			f(res.PMag()), f(res.FinalDistance),
			strconv.FormatBool(res.Success), strconv.Itoa(res.Iterations),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadResults(runID string) ([]ResultRow, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "results.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []ResultRow{}, nil
	}

	rows := make([]ResultRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(resultsHeader) {
			return nil, fmt.Errorf("storage: %s results line %d: %d columns", runID, i+2, len(record))
		}
		var vals [6]float64
		for j := range vals {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s results line %d: %w", runID, i+2, err)
			}
			vals[j] = v
		}
		ok, err := strconv.ParseBool(record[7])
		if err != nil {
			return nil, fmt.Errorf("storage: %s results line %d: %w", runID, i+2, err)
		}
		iters, err := strconv.Atoi(record[8])
		if err != nil {
			return nil, fmt.Errorf("storage: %s results line %d: %w", runID, i+2, err)
		}
		rows = append(rows, ResultRow{
			Event: record[0],
			Px:    vals[0], Py: vals[1], Pz: vals[2], E: vals[3],
			P: vals[4], Distance: vals[5],
			Success: ok, Iterations: iters,
		})
	}
	return rows, nil
}
