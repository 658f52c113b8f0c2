package phase

import (
	"context"
	"strings"

	"autoloop/internal/domain"
	"autoloop/internal/events"
	"autoloop/internal/llm"
	"autoloop/internal/tier"
)

// runBuild turns the plan's proposed tasks into real tasks and delegates
// T0/T1 work to the build worker. T2 tasks are parked in awaiting_approval
// without ever invoking the worker.
func (e *Executor) runBuild(ctx context.Context, cycle *domain.Cycle, pctx *Context) Result {
	if pctx.Plan == nil {
		return failure("build requires a plan from this cycle")
	}

	worker := e.router.BuildWorker()
	perTaskCap := e.guard.Caps().PerTaskUsd

	var (
		created  []*domain.Task
		phaseUsd float64
	)

	for _, priority := range pctx.Plan.Strategy.Priorities {
		for _, proposed := range priority.ProposedTasks {
			resolved := e.tiers.Resolve(proposed.Title, proposed.Description, tier.Coerce(proposed.SuggestedTier))

			now := domain.Now()
			task := &domain.Task{
				ID:           domain.NewID(),
				ObjectiveID:  priority.ObjectiveID,
				CycleID:      cycle.ID,
				Title:        proposed.Title,
				Description:  proposed.Description,
				State:        domain.TaskBuilding,
				AutonomyTier: int(resolved),
				BudgetCapUsd: perTaskCap,
				Truth:        domain.TruthLabel{Status: domain.TruthHypothesis, Confidence: domain.ConfidenceMedium},
				CreatedAt:    now,
				UpdatedAt:    now,
			}

			if resolved == tier.T2 {
				task.State = domain.TaskAwaitingApproval
				created = append(created, task)
				e.logger.Info("task requires approval", "task_id", task.ID, "title", task.Title)
				e.events.Publish(events.New(events.TypeApprovalRequired, cycle.ID, task.ID, task))
				continue
			}

			phaseUsd += e.executeTask(ctx, cycle, worker.Worker, worker.Provider, task)
			created = append(created, task)
		}
	}

	for _, task := range created {
		if err := e.store.SaveTask(task); err != nil {
			return failure("persist task %s: %v", task.ID, err)
		}
		e.events.Publish(events.New(events.TypeTaskUpdate, cycle.ID, task.ID, task))
	}

	pctx.Tasks = created
	e.logger.Info("build complete", "cycle", cycle.Number, "tasks_created", len(created), "cost_usd", phaseUsd)
	return Result{Success: true, CostUsd: phaseUsd, TasksCreated: len(created)}
}

// executeTask runs one task through the worker and settles its state.
// Returns the cost incurred.
func (e *Executor) executeTask(ctx context.Context, cycle *domain.Cycle, worker llm.Worker, provider string, task *domain.Task) float64 {
	instruction := task.Title
	if task.Description != "" {
		instruction += "\n\n" + task.Description
	}

	result, err := worker.Execute(ctx, llm.WorkOrder{
		TaskID:      task.ID,
		Instruction: instruction,
		WorkingDir:  e.workingDir,
		Context:     "cycle " + cycle.ID,
	})

	run := &domain.Run{
		ID:        domain.NewID(),
		CycleID:   cycle.ID,
		TaskID:    task.ID,
		Phase:     domain.PhaseBuild,
		Provider:  provider,
		Prompt:    instruction,
		CreatedAt: domain.Now(),
	}

	if err != nil {
		run.Success = false
		run.Error = err.Error()
		e.record(run)
		task.Fail(err.Error())
		return 0
	}

	run.Success = result.Success
	run.Error = result.Error
	run.Response = result.Output
	run.CostUsd = result.CostUsd
	run.LatencyMs = result.LatencyMs
	e.record(run)

	task.AddCost(result.CostUsd)
	if result.Success {
		task.State = domain.TaskReviewing
		task.UpdatedAt = domain.Now()
		task.Artifacts = coerceArtifacts(result.Artifacts)
	} else {
		task.Fail(result.Error)
	}
	return result.CostUsd
}

// coerceArtifacts restricts artifact types to the known set.
func coerceArtifacts(in []domain.Artifact) []domain.Artifact {
	out := make([]domain.Artifact, 0, len(in))
	for _, a := range in {
		a.Type = domain.CoerceArtifactType(string(a.Type))
		if strings.TrimSpace(a.Ref) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
