package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/physics"
	"github.com/san-kum/buoyopt/internal/sim"
)

const (
	metadataFile   = "metadata.json"
	configFile     = "config.yaml"
	outcomeFile    = "outcome.json"
	scanFile       = "scan.csv"
	trajectoryFile = "trajectory.csv"
)

var ErrNotFound = errors.New("storage: run not found")

var trajectoryHeader = []string{
	"time", "z", "z_dot", "z_ddot", "elevation",
	"f_wave", "f_hydrostatic", "f_pto", "f_radiation", "f_drag", "power",
}

var scanHeader = []string{
	"index", "mass", "damping", "status", "score", "mean_power",
	"peak_acceleration", "max_displacement", "max_pto_force", "reason",
}

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string { return filepath.Join(s.baseDir, runID) }

type RunMetadata struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Strategy  string             `json:"strategy,omitempty"`
	Seed      int64              `json:"seed"`
	Candidate optim.Candidate    `json:"candidate"`
	Status    optim.Status       `json:"status"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Record is everything one command wants persisted. Nil parts are skipped.
type Record struct {
	Kind       string
	Source     string
	Config     *config.Config
	Outcome    *optim.Outcome
	Scan       []optim.Evaluation
	Evaluation *optim.Evaluation
	Result     *sim.Result
	Power      []float64
}

func (s *Store) Save(rec Record) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	runID, err := s.allocate(rec.Kind)
	if err != nil {
		return "", err
	}
	dir := s.Dir(runID)

	meta := RunMetadata{
		ID:        runID,
		Kind:      rec.Kind,
		Source:    rec.Source,
		Timestamp: s.now().UTC(),
		Metrics:   make(map[string]float64),
	}
	if rec.Config != nil {
		meta.Seed = rec.Config.Optimizer.Seed
		meta.Strategy = rec.Config.Optimizer.Strategy
		if err := config.Save(filepath.Join(dir, configFile), rec.Config); err != nil {
			return "", err
		}
	}

	ev := rec.Evaluation
	if rec.Outcome != nil {
		meta.Strategy = rec.Outcome.Strategy
		ev = &rec.Outcome.Best
		meta.Metrics["evaluations"] = float64(rec.Outcome.Evaluations)
		meta.Metrics["generations"] = float64(rec.Outcome.Generations)
		if err := writeJSON(filepath.Join(dir, outcomeFile), rec.Outcome); err != nil {
			return "", err
		}
	}
	if ev == nil && len(rec.Scan) > 0 {
		ev = &rec.Scan[0]
		for i := range rec.Scan {
			if rec.Scan[i].Score < ev.Score {
				ev = &rec.Scan[i]
			}
		}
	}
	if ev != nil {
		meta.Candidate = ev.Candidate
		meta.Status = ev.Status
		meta.Metrics["mean_power"] = ev.MeanPower
		meta.Metrics["peak_acceleration"] = ev.PeakAcceleration
		meta.Metrics["max_displacement"] = ev.MaxDisplacement
		meta.Metrics["max_pto_force"] = ev.MaxPTOForce
	}
	if rec.Result != nil {
		for name, v := range rec.Result.Metrics {
			meta.Metrics[name] = v
		}
		if err := writeTrajectory(filepath.Join(dir, trajectoryFile), rec.Result, rec.Power); err != nil {
			return "", err
		}
	}
	if rec.Scan != nil {
		if err := writeScan(filepath.Join(dir, scanFile), rec.Scan); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return "", err
	}
	return runID, nil
}

// allocate creates a fresh run directory named after kind and the clock.
func (s *Store) allocate(kind string) (string, error) {
	if kind == "" {
		kind = "run"
	}
	base := fmt.Sprintf("%s_%s", kind, s.now().UTC().Format("20060102T150405"))
	for i := 0; ; i++ {
		id := base
		if i > 0 {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		err := os.Mkdir(s.Dir(id), 0755)
		if err == nil {
			return id, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}

// List returns all readable runs, oldest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := s.readJSON(runID, metadataFile, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadOutcome(runID string) (*optim.Outcome, error) {
	var out optim.Outcome
	if err := s.readJSON(runID, outcomeFile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path := filepath.Join(s.Dir(runID), configFile)
	if _, err := os.Stat(path); err != nil {
		return nil, notFound(runID, err)
	}
	return config.Load(path)
}

// LoadTrajectory rebuilds the sampled result and the power column.
func (s *Store) LoadTrajectory(runID string) (*sim.Result, []float64, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), trajectoryFile))
	if err != nil {
		return nil, nil, notFound(runID, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(trajectoryHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %s: %w", trajectoryFile, err)
	}

	res := &sim.Result{Metrics: make(map[string]float64)}
	power := make([]float64, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue
		}
		v := make([]float64, len(record))
		for j, cell := range record {
			if v[j], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, nil, fmt.Errorf("storage: %s line %d: %w", trajectoryFile, i+1, err)
			}
		}
		res.Append(sim.Sample{
			Time: v[0], Z: v[1], ZDot: v[2], ZDDot: v[3], Elevation: v[4],
			Forces: physics.Forces{
				Wave: v[5], Hydrostatic: v[6], PTO: v[7], Radiation: v[8], Drag: v[9],
			},
		})
		power = append(power, v[10])
	}
	return res, power, nil
}

// TrajectoryPath is where a run's trajectory CSV lives, whether or not it exists.
func (s *Store) TrajectoryPath(runID string) string {
	return filepath.Join(s.Dir(runID), trajectoryFile)
}

func (s *Store) readJSON(runID, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), name))
	if err != nil {
		return notFound(runID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: %s/%s: %w", runID, name, err)
	}
	return nil
}

func notFound(runID string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return err
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func writeTrajectory(path string, res *sim.Result, power []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(trajectoryHeader); err != nil {
		return err
	}
	for i := 0; i < res.Len(); i++ {
		p := 0.0
		if i < len(power) {
			p = power[i]
		}
		s := res.Sample(i)
		row := []string{
			format(s.Time), format(s.Z), format(s.ZDot), format(s.ZDDot), format(s.Elevation),
			format(s.Forces.Wave), format(s.Forces.Hydrostatic), format(s.Forces.PTO),
			format(s.Forces.Radiation), format(s.Forces.Drag), format(p),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeScan(path string, evals []optim.Evaluation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(scanHeader); err != nil {
		return err
	}
	for _, e := range evals {
		row := []string{
			strconv.Itoa(e.Index), format(e.Candidate.Mass), format(e.Candidate.Damping),
			e.Status.String(), format(e.Score), format(e.MeanPower),
			format(e.PeakAcceleration), format(e.MaxDisplacement), format(e.MaxPTOForce), e.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
