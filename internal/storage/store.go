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

	"github.com/pkg/errors"

	"github.com/san-kum/swerve/internal/sim"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

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
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Rate       float64            `json:"rate"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Limiter    string             `json:"limiter"`
	Modules    []string           `json:"modules"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
	Errors     []string           `json:"errors,omitempty"`
}

// Save writes the metadata and the state/control trace of a run into a new
// run directory and returns its id. ID, Timestamp, Steps and Errors are
// filled in from the result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, now.UnixNano())
	meta.Timestamp = now
	meta.Steps = result.StepsTaken
	meta.Metrics = result.Metrics
	meta.Errors = nil
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "create run directory")
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), meta.Modules, result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create metadata")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode metadata")
}

// TraceHeader names the trace columns: time, four state values per module,
// then the pivot and wheel command of each module. Unnamed modules are
// numbered.
func TraceHeader(modules []string, stateDim, controlDim int) []string {
	name := func(i int) string {
		if i < len(modules) {
			return modules[i]
		}
		return fmt.Sprintf("m%d", i)
	}

	header := []string{"time"}
	states := []string{"pivot_angle", "pivot_rate", "wheel_angle", "wheel_rate"}
	for i := 0; i < stateDim; i++ {
		header = append(header, name(i/len(states))+"."+states[i%len(states)])
	}
	controls := []string{"pivot_cmd", "wheel_cmd"}
	for i := 0; i < controlDim; i++ {
		header = append(header, name(i/len(controls))+"."+controls[i%len(controls)])
	}
	return header
}

func writeTrace(path string, modules []string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trace")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
	}
	if err := w.Write(TraceHeader(modules, len(result.States[0]), numControls)); err != nil {
		return errors.Wrap(err, "write trace")
	}

	row := make([]string, 0, 1+len(result.States[0])+numControls)
	for i := range result.States {
		row = append(row[:0], strconv.FormatFloat(result.Times[i], 'f', 6, 64))
		for _, val := range result.States[i] {
			row = append(row, strconv.FormatFloat(val, 'g', 10, 64))
		}
		// The final state has no control; repeat the last one so every
		// row is complete.
		u := i
		if u >= len(result.Controls) {
			u = len(result.Controls) - 1
		}
		for j := 0; j < numControls; j++ {
			row = append(row, strconv.FormatFloat(result.Controls[u][j], 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write trace")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "write trace")
}

// List returns every readable run, oldest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decode metadata of %s", runID)
	}
	return &meta, nil
}

// Trace is a loaded trace.csv.
type Trace struct {
	Header []string
	Times  []float64
	Rows   [][]float64
}

// Column returns the named column, or nil.
func (t *Trace) Column(name string) []float64 {
	for i, h := range t.Header {
		if h != name || i == 0 {
			continue
		}
		out := make([]float64, len(t.Rows))
		for r, row := range t.Rows {
			if i-1 < len(row) {
				out[r] = row[i-1]
			}
		}
		return out
	}
	return nil
}

func (s *Store) LoadTrace(runID string) (*Trace, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrRunNotFound, "%q", runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read trace of %s", runID)
	}

	trace := &Trace{}
	if len(records) == 0 {
		return trace, nil
	}
	trace.Header = records[0]

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "trace of %s, line %d", runID, i+1)
		}

		row := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "trace of %s, line %d", runID, i+1)
			}
			row = append(row, val)
		}
		trace.Times = append(trace.Times, t)
		trace.Rows = append(trace.Rows, row)
	}

	return trace, nil
}
