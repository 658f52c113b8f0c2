package storage

import (
	"encoding/json"
	"sort"
	"sync"

	"autoloop/internal/config"
	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and simulation
// runs. Entities are deep-copied through JSON on the way in and out so
// callers can never mutate stored state by reference.
type MemoryStore struct {
	mu sync.RWMutex

	cfg         *config.Config
	engineState *domain.EngineState
	budgetState []domain.CostRecord

	objectives map[string]*domain.Objective
	tasks      map[string]*domain.Task
	cycles     map[string]*domain.Cycle

	scans       []*domain.Scan
	plans       []*domain.Plan
	runs        []*domain.Run
	evaluations []*domain.Evaluation
	decisions   []domain.DecisionLogEntry
	experiments []domain.ExperimentLogEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objectives: make(map[string]*domain.Objective),
		tasks:      make(map[string]*domain.Task),
		cycles:     make(map[string]*domain.Cycle),
	}
}

func deepCopy[T any](src *T) *T {
	if src == nil {
		return nil
	}
	data, err := json.Marshal(src)
	if err != nil {
		panic("storage: marshal for copy: " + err.Error())
	}
	dst := new(T)
	if err := json.Unmarshal(data, dst); err != nil {
		panic("storage: unmarshal for copy: " + err.Error())
	}
	return dst
}

func (m *MemoryStore) SaveConfig(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = deepCopy(cfg)
	return nil
}

func (m *MemoryStore) LoadConfig() (*config.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil, apperrors.ErrNotFound("config", "singleton")
	}
	return deepCopy(m.cfg), nil
}

func (m *MemoryStore) SaveEngineState(s *domain.EngineState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineState = deepCopy(s)
	return nil
}

func (m *MemoryStore) LoadEngineState() (*domain.EngineState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.engineState == nil {
		return nil, apperrors.ErrNotFound("engine state", "singleton")
	}
	return deepCopy(m.engineState), nil
}

func (m *MemoryStore) SaveBudgetState(records []domain.CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgetState = append([]domain.CostRecord(nil), records...)
	return nil
}

func (m *MemoryStore) LoadBudgetState() ([]domain.CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.CostRecord(nil), m.budgetState...), nil
}

func (m *MemoryStore) SaveObjective(o *domain.Objective) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectives[o.ID] = deepCopy(o)
	return nil
}

func (m *MemoryStore) LoadObjective(id string) (*domain.Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objectives[id]
	if !ok {
		return nil, apperrors.ErrNotFound("objective", id)
	}
	return deepCopy(o), nil
}

func (m *MemoryStore) LoadObjectives() ([]*domain.Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Objective, 0, len(m.objectives))
	for _, o := range m.objectives {
		out = append(out, deepCopy(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteObjective(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objectives[id]; !ok {
		return apperrors.ErrNotFound("objective", id)
	}
	delete(m.objectives, id)
	return nil
}

func (m *MemoryStore) SaveTask(t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = deepCopy(t)
	return nil
}

func (m *MemoryStore) LoadTask(id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound("task", id)
	}
	return deepCopy(t), nil
}

func (m *MemoryStore) LoadTasks() ([]*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, deepCopy(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SaveCycle(c *domain.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[c.ID] = deepCopy(c)
	return nil
}

func (m *MemoryStore) LoadCycle(id string) (*domain.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cycles[id]
	if !ok {
		return nil, apperrors.ErrNotFound("cycle", id)
	}
	return deepCopy(c), nil
}

func (m *MemoryStore) LoadCycles() ([]*domain.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Cycle, 0, len(m.cycles))
	for _, c := range m.cycles {
		out = append(out, deepCopy(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryStore) AppendScan(s *domain.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, deepCopy(s))
	return nil
}

func (m *MemoryStore) LoadScans() ([]*domain.Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Scan, len(m.scans))
	for i, s := range m.scans {
		out[i] = deepCopy(s)
	}
	return out, nil
}

func (m *MemoryStore) AppendPlan(p *domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, deepCopy(p))
	return nil
}

func (m *MemoryStore) LoadPlans() ([]*domain.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Plan, len(m.plans))
	for i, p := range m.plans {
		out[i] = deepCopy(p)
	}
	return out, nil
}

func (m *MemoryStore) AppendRun(r *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, deepCopy(r))
	return nil
}

func (m *MemoryStore) LoadRuns() ([]*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Run, len(m.runs))
	for i, r := range m.runs {
		out[i] = deepCopy(r)
	}
	return out, nil
}

func (m *MemoryStore) LoadRunsForTask(taskID string) ([]*domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Run
	for _, r := range m.runs {
		if r.TaskID == taskID {
			out = append(out, deepCopy(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) AppendEvaluation(e *domain.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, deepCopy(e))
	return nil
}

func (m *MemoryStore) LoadEvaluations() ([]*domain.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Evaluation, len(m.evaluations))
	for i, e := range m.evaluations {
		out[i] = deepCopy(e)
	}
	return out, nil
}

func (m *MemoryStore) AppendDecision(d domain.DecisionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *MemoryStore) LoadDecisions() ([]domain.DecisionLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.DecisionLogEntry(nil), m.decisions...), nil
}

func (m *MemoryStore) AppendExperiment(e domain.ExperimentLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.experiments = append(m.experiments, e)
	return nil
}

func (m *MemoryStore) LoadExperiments() ([]domain.ExperimentLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ExperimentLogEntry(nil), m.experiments...), nil
}

func (m *MemoryStore) Close() error { return nil }
