// Package storage provides the durable store behind the engine: typed
// load/save for config, engine state and budget state, collections of
// objectives, tasks and cycles, and append-only phase/audit logs.
//
// Two backends ship: SQLite (modernc.org/sqlite) for real runs and an
// in-memory store for tests and simulation.
package storage

import (
	"autoloop/internal/config"
	"autoloop/internal/domain"
)

// Store is the persistence contract the engine consumes. Every save is
// atomic: a reader never observes a partially written entity. All
// implementations must be safe for concurrent access.
type Store interface {
	// Singular entities
	SaveConfig(cfg *config.Config) error
	LoadConfig() (*config.Config, error)
	SaveEngineState(s *domain.EngineState) error
	LoadEngineState() (*domain.EngineState, error)
	SaveBudgetState(records []domain.CostRecord) error
	LoadBudgetState() ([]domain.CostRecord, error)

	// Collections
	SaveObjective(o *domain.Objective) error
	LoadObjective(id string) (*domain.Objective, error)
	LoadObjectives() ([]*domain.Objective, error)
	DeleteObjective(id string) error

	SaveTask(t *domain.Task) error
	LoadTask(id string) (*domain.Task, error)
	LoadTasks() ([]*domain.Task, error)

	SaveCycle(c *domain.Cycle) error
	LoadCycle(id string) (*domain.Cycle, error)
	LoadCycles() ([]*domain.Cycle, error)

	// Append-only sets
	AppendScan(s *domain.Scan) error
	LoadScans() ([]*domain.Scan, error)
	AppendPlan(p *domain.Plan) error
	LoadPlans() ([]*domain.Plan, error)
	AppendRun(r *domain.Run) error
	LoadRuns() ([]*domain.Run, error)
	LoadRunsForTask(taskID string) ([]*domain.Run, error)
	AppendEvaluation(e *domain.Evaluation) error
	LoadEvaluations() ([]*domain.Evaluation, error)
	AppendDecision(d domain.DecisionLogEntry) error
	LoadDecisions() ([]domain.DecisionLogEntry, error)
	AppendExperiment(e domain.ExperimentLogEntry) error
	LoadExperiments() ([]domain.ExperimentLogEntry, error)

	// Lifecycle
	Close() error
}
