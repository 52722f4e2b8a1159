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

	"linkagelab/internal/config"
	"linkagelab/internal/linkage"
	"linkagelab/internal/mech"
)

// Store persists simulation runs under a base directory, one
// subdirectory per run with metadata.json and states.csv.
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
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Stepper     string             `json:"stepper"`
	Linkage     linkage.Params     `json:"linkage"`
	Crank       float64            `json:"crank"`
	CrankRate   float64            `json:"crank_rate"`
	Steps       int                `json:"steps"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes a run to disk and returns its generated ID.
func (s *Store) Save(cfg *config.Config, result *mech.Result) (string, error) {
	runID := fmt.Sprintf("fourbar_%s", uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Timestamp:   time.Now(),
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Stepper:     cfg.Stepper,
		Linkage:     cfg.Linkage,
		Crank:       cfg.InitState.Crank,
		CrankRate:   cfg.InitState.CrankRate,
		Steps:       result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
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

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if len(result.Positions) == 0 {
		return runID, nil
	}

	nv := len(result.Positions[0])
	header := []string{"time"}
	for i := 0; i < nv; i++ {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < nv; i++ {
		header = append(header, fmt.Sprintf("v%d", i))
	}
	header = append(header, "violation")
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i := range result.Positions {
		row := make([]string, 0, 2*nv+2)
		row = append(row, strconv.FormatFloat(result.Times[i], 'f', 6, 64))
		for _, val := range result.Positions[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		for _, val := range result.Velocities[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		row = append(row, strconv.FormatFloat(result.Violations[i], 'e', 6, 64))
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

// List returns metadata for all stored runs, newest first.
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
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
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

// Trajectory is a run's recorded time series, parsed from states.csv.
type Trajectory struct {
	Times      []float64
	Positions  []mech.Vector
	Velocities []mech.Vector
	Violations []float64
}

func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
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
		return &Trajectory{}, nil
	}

	ncols := len(records[0])
	nv := (ncols - 2) / 2
	traj := &Trajectory{
		Times:      make([]float64, 0, len(records)-1),
		Positions:  make([]mech.Vector, 0, len(records)-1),
		Velocities: make([]mech.Vector, 0, len(records)-1),
		Violations: make([]float64, 0, len(records)-1),
	}

	for _, record := range records[1:] {
		if len(record) != ncols {
			continue
		}
		vals := make([]float64, ncols)
		ok := true
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			vals[j] = v
		}
		if !ok {
			continue
		}
		traj.Times = append(traj.Times, vals[0])
		traj.Positions = append(traj.Positions, mech.Vector(vals[1:1+nv]))
		traj.Velocities = append(traj.Velocities, mech.Vector(vals[1+nv:1+2*nv]))
		traj.Violations = append(traj.Violations, vals[ncols-1])
	}

	return traj, nil
}

// ExportJSON writes the full trajectory of a stored run as one JSON file.
func (s *Store) ExportJSON(runID, outPath string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	traj, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	out := struct {
		Metadata   *RunMetadata  `json:"metadata"`
		Times      []float64     `json:"times"`
		Positions  []mech.Vector `json:"positions"`
		Velocities []mech.Vector `json:"velocities"`
		Violations []float64     `json:"violations"`
	}{meta, traj.Times, traj.Positions, traj.Velocities, traj.Violations}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
