package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/mpc"
)

var ErrNotFound = errors.New("storage: run not found")

// Store keeps a catalog of runs in <baseDir>/runs.db and the sampled
// trajectory of each run in <baseDir>/<id>/states.csv.
type Store struct {
	baseDir string
	db      *sql.DB
	clock   clock.Clock
	entropy *ulid.MonotonicEntropy
}

type Option func(*Store)

func WithClock(c clock.Clock) Option { return func(s *Store) { s.clock = c } }

func Open(baseDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(baseDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		baseDir: baseDir,
		db:      db,
		clock:   clock.New(),
	}
	for _, o := range opts {
		o(s)
	}
	s.entropy = ulid.Monotonic(rand.New(rand.NewSource(s.clock.Now().UnixNano())), 0)

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		model       TEXT NOT NULL,
		integrator  TEXT NOT NULL,
		preset      TEXT,
		created_at  TEXT NOT NULL,
		seed        INTEGER NOT NULL DEFAULT 0,
		dt          REAL NOT NULL,
		duration    REAL NOT NULL,
		knots       INTEGER NOT NULL,
		status      TEXT NOT NULL,
		metrics     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);

	CREATE TABLE IF NOT EXISTS mpc_steps (
		run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		iteration       INTEGER NOT NULL,
		time            REAL NOT NULL,
		status          TEXT NOT NULL,
		iterations      INTEGER NOT NULL,
		solve_ms        REAL NOT NULL,
		cost            REAL NOT NULL,
		violation       REAL NOT NULL,
		tracking_error  REAL NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Kind tells reference solves and closed-loop runs apart.
type Kind string

const (
	KindSolve Kind = "solve"
	KindMPC   Kind = "mpc"
)

type RunMetadata struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"kind"`
	Model      string             `json:"model"`
	Integrator string             `json:"integrator"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       uint64             `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Knots      int                `json:"knots"`
	Status     string             `json:"status"`
	Metrics    map[string]float64 `json:"metrics"`
}

// StepRecord is the catalog row of one MPC step.
type StepRecord struct {
	Iteration     int     `json:"iteration"`
	Time          float64 `json:"time"`
	Status        string  `json:"status"`
	Iterations    int     `json:"iterations"`
	SolveMs       float64 `json:"solve_ms"`
	Cost          float64 `json:"cost"`
	Violation     float64 `json:"violation"`
	TrackingError float64 `json:"tracking_error"`
}

func StepRecords(steps []mpc.Step) []StepRecord {
	out := make([]StepRecord, len(steps))
	for i, st := range steps {
		out[i] = StepRecord{
			Iteration:     st.Iteration,
			Time:          st.Time,
			Status:        st.Status.String(),
			Iterations:    st.Iterations,
			SolveMs:       float64(st.SolveTime.Microseconds()) / 1e3,
			Cost:          st.Cost,
			Violation:     st.Violation,
			TrackingError: st.TrackingError,
		}
	}
	return out
}

// Save records meta in the catalog and writes the trajectory. The ID and
// timestamp of meta are assigned here.
func (s *Store) Save(ctx context.Context, meta RunMetadata, result *dynamo.Result, steps []StepRecord) (string, error) {
	now := s.clock.Now().UTC()
	meta.ID = s.newID(now)
	meta.Timestamp = now
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, result); err != nil {
		f.Close()
		return "", fmt.Errorf("write states: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	metricsJSON, err := json.Marshal(finite(meta.Metrics))
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, model, integrator, preset, created_at, seed, dt, duration, knots, status, metrics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, string(meta.Kind), meta.Model, meta.Integrator, meta.Preset,
		now.Format(time.RFC3339Nano), int64(meta.Seed), meta.Dt, meta.Duration, meta.Knots,
		meta.Status, string(metricsJSON))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, st := range steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO mpc_steps (run_id, iteration, time, status, iterations, solve_ms, cost, violation, tracking_error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			meta.ID, st.Iteration, st.Time, st.Status, st.Iterations, st.SolveMs,
			st.Cost, st.Violation, st.TrackingError)
		if err != nil {
			return "", fmt.Errorf("insert step %d: %w", st.Iteration, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

const runColumns = `id, kind, model, integrator, preset, created_at, seed, dt, duration, knots, status, metrics`

// List returns the catalog, newest first. An empty kind lists every run.
func (s *Store) List(ctx context.Context, kind Kind) ([]RunMetadata, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, m)
	}
	return runs, rows.Err()
}

func (s *Store) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	m, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, time, status, iterations, solve_ms, cost, violation, tracking_error
		 FROM mpc_steps WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var st StepRecord
		if err := rows.Scan(&st.Iteration, &st.Time, &st.Status, &st.Iterations,
			&st.SolveMs, &st.Cost, &st.Violation, &st.TrackingError); err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Delete removes a run from the catalog and disk.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}

// LoadResult reads the trajectory of a run back together with its
// metadata metrics.
func (s *Store) LoadResult(ctx context.Context, runID string) (*RunMetadata, *dynamo.Result, error) {
	meta, err := s.Load(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	result, err := ReadCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read states: %w", err)
	}
	result.Metrics = meta.Metrics
	return meta, result, nil
}

// finite drops values JSON cannot encode.
func finite(metrics map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var m RunMetadata
	var kind, createdAt string
	var preset, metricsJSON sql.NullString
	var seed int64

	err := row.Scan(&m.ID, &kind, &m.Model, &m.Integrator, &preset, &createdAt,
		&seed, &m.Dt, &m.Duration, &m.Knots, &m.Status, &metricsJSON)
	if err != nil {
		return m, err
	}

	m.Kind = Kind(kind)
	m.Seed = uint64(seed)
	if m.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return m, fmt.Errorf("run %s: created_at: %w", m.ID, err)
	}
	if preset.Valid {
		m.Preset = preset.String
	}
	m.Metrics = make(map[string]float64)
	if metricsJSON.Valid {
		if err := json.Unmarshal([]byte(metricsJSON.String), &m.Metrics); err != nil {
			return m, fmt.Errorf("decode metrics of %s: %w", m.ID, err)
		}
	}
	return m, nil
}
