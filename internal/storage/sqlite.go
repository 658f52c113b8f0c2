package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"autoloop/internal/config"
	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
)

// Document kinds for the documents table.
const (
	kindConfig      = "config"
	kindEngineState = "engine_state"
	kindBudgetState = "budget_state"
	kindObjective   = "objective"
	kindTask        = "task"
	kindCycle       = "cycle"
)

// Log kinds for the append-only table.
const (
	kindScan       = "scan"
	kindPlan       = "plan"
	kindRun        = "run"
	kindEvaluation = "evaluation"
	kindDecision   = "decision"
	kindExperiment = "experiment"
)

const singletonID = "singleton"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
);

CREATE TABLE IF NOT EXISTS log_entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	task_id    TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_log_entries_kind ON log_entries(kind);
CREATE INDEX IF NOT EXISTS idx_log_entries_task ON log_entries(kind, task_id);
`

// SQLiteStore is the durable Store backed by a single SQLite database.
// Entities are stored as JSON documents; append-only sets go to a log
// table keyed by kind. Single-statement writes are atomic under SQLite's
// transaction semantics, which satisfies the no-partial-read guarantee.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. The parent directory is created when missing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) saveDoc(kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "marshal %s %s", kind, id)
	}
	now := time.Now().UnixMilli()
	_, err = s.db.Exec(`
		INSERT INTO documents (kind, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		kind, id, string(data), now, now)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "save %s %s", kind, id)
	}
	return nil
}

func loadDoc[T any](s *SQLiteStore, kind, id string) (*T, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM documents WHERE kind = ? AND id = ?`, kind, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound(kind, id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, err, "load %s %s", kind, id)
	}
	v := new(T)
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, err, "unmarshal %s %s", kind, id)
	}
	return v, nil
}

func listDocs[T any](s *SQLiteStore, kind string) ([]*T, error) {
	rows, err := s.db.Query(`SELECT data FROM documents WHERE kind = ? ORDER BY created_at, rowid`, kind)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, err, "list %s", kind)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, err, "scan %s", kind)
		}
		v := new(T)
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, err, "unmarshal %s", kind)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) appendLog(kind, id, taskID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "marshal %s %s", kind, id)
	}
	_, err = s.db.Exec(`INSERT INTO log_entries (kind, id, task_id, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		kind, id, taskID, string(data), time.Now().UnixMilli())
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "append %s %s", kind, id)
	}
	return nil
}

func listLogs[T any](s *SQLiteStore, kind, taskID string) ([]*T, error) {
	query := `SELECT data FROM log_entries WHERE kind = ? ORDER BY seq`
	args := []any{kind}
	if taskID != "" {
		query = `SELECT data FROM log_entries WHERE kind = ? AND task_id = ? ORDER BY seq`
		args = append(args, taskID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, err, "list %s", kind)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, err, "scan %s", kind)
		}
		v := new(T)
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, err, "unmarshal %s", kind)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveConfig(cfg *config.Config) error {
	return s.saveDoc(kindConfig, singletonID, cfg)
}

func (s *SQLiteStore) LoadConfig() (*config.Config, error) {
	return loadDoc[config.Config](s, kindConfig, singletonID)
}

func (s *SQLiteStore) SaveEngineState(st *domain.EngineState) error {
	return s.saveDoc(kindEngineState, singletonID, st)
}

func (s *SQLiteStore) LoadEngineState() (*domain.EngineState, error) {
	return loadDoc[domain.EngineState](s, kindEngineState, singletonID)
}

func (s *SQLiteStore) SaveBudgetState(records []domain.CostRecord) error {
	return s.saveDoc(kindBudgetState, singletonID, records)
}

func (s *SQLiteStore) LoadBudgetState() ([]domain.CostRecord, error) {
	recs, err := loadDoc[[]domain.CostRecord](s, kindBudgetState, singletonID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return *recs, nil
}

func (s *SQLiteStore) SaveObjective(o *domain.Objective) error {
	return s.saveDoc(kindObjective, o.ID, o)
}

func (s *SQLiteStore) LoadObjective(id string) (*domain.Objective, error) {
	return loadDoc[domain.Objective](s, kindObjective, id)
}

func (s *SQLiteStore) LoadObjectives() ([]*domain.Objective, error) {
	return listDocs[domain.Objective](s, kindObjective)
}

func (s *SQLiteStore) DeleteObjective(id string) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE kind = ? AND id = ?`, kindObjective, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "delete objective %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrNotFound("objective", id)
	}
	return nil
}

func (s *SQLiteStore) SaveTask(t *domain.Task) error {
	return s.saveDoc(kindTask, t.ID, t)
}

func (s *SQLiteStore) LoadTask(id string) (*domain.Task, error) {
	return loadDoc[domain.Task](s, kindTask, id)
}

func (s *SQLiteStore) LoadTasks() ([]*domain.Task, error) {
	return listDocs[domain.Task](s, kindTask)
}

func (s *SQLiteStore) SaveCycle(c *domain.Cycle) error {
	return s.saveDoc(kindCycle, c.ID, c)
}

func (s *SQLiteStore) LoadCycle(id string) (*domain.Cycle, error) {
	return loadDoc[domain.Cycle](s, kindCycle, id)
}

func (s *SQLiteStore) LoadCycles() ([]*domain.Cycle, error) {
	return listDocs[domain.Cycle](s, kindCycle)
}

func (s *SQLiteStore) AppendScan(sc *domain.Scan) error {
	return s.appendLog(kindScan, sc.ID, "", sc)
}

func (s *SQLiteStore) LoadScans() ([]*domain.Scan, error) {
	return listLogs[domain.Scan](s, kindScan, "")
}

func (s *SQLiteStore) AppendPlan(p *domain.Plan) error {
	return s.appendLog(kindPlan, p.ID, "", p)
}

func (s *SQLiteStore) LoadPlans() ([]*domain.Plan, error) {
	return listLogs[domain.Plan](s, kindPlan, "")
}

func (s *SQLiteStore) AppendRun(r *domain.Run) error {
	return s.appendLog(kindRun, r.ID, r.TaskID, r)
}

func (s *SQLiteStore) LoadRuns() ([]*domain.Run, error) {
	return listLogs[domain.Run](s, kindRun, "")
}

func (s *SQLiteStore) LoadRunsForTask(taskID string) ([]*domain.Run, error) {
	return listLogs[domain.Run](s, kindRun, taskID)
}

func (s *SQLiteStore) AppendEvaluation(e *domain.Evaluation) error {
	return s.appendLog(kindEvaluation, e.ID, "", e)
}

func (s *SQLiteStore) LoadEvaluations() ([]*domain.Evaluation, error) {
	return listLogs[domain.Evaluation](s, kindEvaluation, "")
}

func (s *SQLiteStore) AppendDecision(d domain.DecisionLogEntry) error {
	return s.appendLog(kindDecision, d.ID, "", d)
}

func (s *SQLiteStore) LoadDecisions() ([]domain.DecisionLogEntry, error) {
	entries, err := listLogs[domain.DecisionLogEntry](s, kindDecision, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.DecisionLogEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}

func (s *SQLiteStore) AppendExperiment(e domain.ExperimentLogEntry) error {
	return s.appendLog(kindExperiment, e.ID, "", e)
}

func (s *SQLiteStore) LoadExperiments() ([]domain.ExperimentLogEntry, error) {
	entries, err := listLogs[domain.ExperimentLogEntry](s, kindExperiment, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExperimentLogEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}
