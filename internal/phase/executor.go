// Package phase executes the five pipeline phases. Every phase follows
// the same pre-flight contract: estimate cost, resolve the provider,
// clear the budget guard, load active objectives, then make at most the
// calls it is budgeted for, charging each through the cost ledger.
package phase

import (
	"context"
	"fmt"
	"log/slog"

	"autoloop/internal/budget"
	"autoloop/internal/domain"
	"autoloop/internal/events"
	"autoloop/internal/ledger"
	"autoloop/internal/router"
	"autoloop/internal/storage"
	"autoloop/internal/tier"
)

// estimates are conservative per-phase cost estimates used for admission
// control before the real call is made.
var estimates = map[domain.Phase]float64{
	domain.PhaseScan:      0.01,
	domain.PhasePlan:      0.05,
	domain.PhaseBuild:     0.25,
	domain.PhaseShipCheck: 0.10,
	domain.PhaseEval:      0.05,
}

// roles maps each phase to the role it routes through.
var roles = map[domain.Phase]router.Role{
	domain.PhaseScan:      router.RoleResearch,
	domain.PhasePlan:      router.RolePlanning,
	domain.PhaseBuild:     router.RoleBuilding,
	domain.PhaseShipCheck: router.RoleReviewing,
	domain.PhaseEval:      router.RolePlanning,
}

// Advisory planning bounds; the adapter is asked to respect them but the
// core does not truncate.
const (
	maxTasksPerPriority = 5
	maxTasksPerPlan     = 10
)

// Context carries inter-phase state within a single cycle. It is created
// per cycle run and discarded at the end of EVAL, never shared across
// cycles.
type Context struct {
	Scan  *domain.Scan
	Plan  *domain.Plan
	Tasks []*domain.Task
}

// Reset clears the inter-phase handoff.
func (c *Context) Reset() {
	c.Scan = nil
	c.Plan = nil
	c.Tasks = nil
}

// Result is the outcome of one phase execution.
type Result struct {
	Success        bool
	CostUsd        float64
	Error          string
	BudgetBlocked  bool
	TasksCreated   int
	TasksCompleted int
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Executor runs phases against the router, ledger, guard and store.
type Executor struct {
	store      storage.Store
	router     *router.Router
	ledger     *ledger.Ledger
	guard      *budget.Guard
	tiers      tier.Resolver
	events     events.Publisher
	logger     *slog.Logger
	workingDir string
}

// New creates a phase executor.
func New(store storage.Store, rt *router.Router, led *ledger.Ledger, guard *budget.Guard, tiers tier.Resolver, pub events.Publisher, workingDir string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if tiers == nil {
		tiers = tier.NewKeywordResolver()
	}
	return &Executor{
		store:      store,
		router:     rt,
		ledger:     led,
		guard:      guard,
		tiers:      tiers,
		events:     pub,
		logger:     logger,
		workingDir: workingDir,
	}
}

// Run executes one phase for the cycle. cycleSpend is the cycle's spend
// so far; pctx carries the intra-cycle handoff.
func (e *Executor) Run(ctx context.Context, cycle *domain.Cycle, pctx *Context, p domain.Phase) Result {
	est := estimates[p]

	var provider string
	if p == domain.PhaseBuild {
		provider = e.router.BuildWorker().Provider
	} else {
		provider = e.router.ProviderFor(roles[p])
	}

	decision := e.guard.Check(budget.Request{
		EstimatedCostUsd: est,
		CycleSpendUsd:    cycle.TotalCostUsd,
		Provider:         provider,
	})
	if !decision.Allowed {
		e.logger.Warn("phase blocked by budget guard",
			"phase", p, "level", decision.Level, "reason", decision.Reason)
		e.events.Publish(events.New(events.TypeBudgetExceeded, cycle.ID, "", decision))
		return Result{Success: false, BudgetBlocked: true, Error: decision.Reason}
	}

	objectives, err := e.store.LoadObjectives()
	if err != nil {
		return failure("load objectives: %v", err)
	}
	active := domain.ActiveObjectives(objectives)
	if p == domain.PhaseScan && len(active) == 0 {
		return failure("no active objectives; nothing to scan for")
	}

	switch p {
	case domain.PhaseScan:
		return e.runScan(ctx, cycle, pctx, active)
	case domain.PhasePlan:
		return e.runPlan(ctx, cycle, pctx, active)
	case domain.PhaseBuild:
		return e.runBuild(ctx, cycle, pctx)
	case domain.PhaseShipCheck:
		return e.runShipCheck(ctx, cycle)
	case domain.PhaseEval:
		return e.runEval(ctx, cycle, pctx)
	}
	return failure("unknown phase %q", p)
}

// record charges one external call: a cost record in the ledger and a Run
// in the store. Called before the phase reports success.
func (e *Executor) record(run *domain.Run) {
	e.ledger.Record(domain.CostRecord{
		Timestamp:    run.CreatedAt,
		Phase:        run.Phase,
		TaskID:       run.TaskID,
		Provider:     run.Provider,
		Model:        run.Model,
		InputTokens:  run.InputTokens,
		OutputTokens: run.OutputTokens,
		CostUsd:      run.CostUsd,
		LatencyMs:    run.LatencyMs,
	})
	if err := e.store.AppendRun(run); err != nil {
		e.logger.Warn("persist run failed", "run_id", run.ID, "error", err)
	}
}
