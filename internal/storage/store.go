package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ifd/internal/analysis"
	"github.com/san-kum/ifd/internal/calib"
)

var ErrNoResults = errors.New("storage: run has no results")

const (
	DiagnosticDir = "diagnostic"
	SimDir        = "sim"
	ResultsDir    = "results"
	LogFile       = "ifd-log.txt"
	ResultsFile   = "results.csv"
	metadataFile  = "metadata.json"
)

// Run status values recorded in metadata.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusAborted  = "aborted"
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

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Input     string             `json:"input"`
	Oracle    string             `json:"oracle"`
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Summary   calib.Summary      `json:"summary"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Run is the directory of one calibration run.
type Run struct {
	ID  string
	Dir string
}

func (r *Run) Path(elem ...string) string {
	return filepath.Join(append([]string{r.Dir}, elem...)...)
}

// Create makes a new run directory with its diagnostic, sim and results subdirectories.
func (s *Store) Create(name string) (*Run, error) {
	id := fmt.Sprintf("%s_%s_%s", name, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	run := &Run{ID: id, Dir: filepath.Join(s.baseDir, id)}
	for _, d := range []string{DiagnosticDir, SimDir, ResultsDir} {
		if err := os.MkdirAll(run.Path(d), 0755); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// Open returns an existing run.
func (s *Store) Open(runID string) (*Run, error) {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return nil, err
	}
	return &Run{ID: runID, Dir: dir}, nil
}

func (r *Run) SaveMetadata(meta *RunMetadata) error {
	meta.ID = r.ID
	f, err := os.Create(r.Path(metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (r *Run) SaveResults(results []analysis.Result) error {
	f, err := os.Create(r.Path(ResultsDir, ResultsFile))
	if err != nil {
		return err
	}
	if err := analysis.WriteCSV(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every run with readable metadata, newest first.
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
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadResults(runID string) ([]analysis.Result, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, ResultsDir, ResultsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, runID)
		}
		return nil, err
	}
	defer f.Close()
	return analysis.ReadCSV(f)
}
