package phase

import (
	"context"
	"strings"

	"autoloop/internal/domain"
	"autoloop/internal/events"
	"autoloop/internal/llm"
)

// runShipCheck reviews every task sitting in reviewing state, whichever
// cycle built it: a task left in review by an earlier cycle gets settled
// here instead of stranding. The build worker's check capability delivers
// the verdict; one Run is recorded per task reviewed. Tasks in any other
// state are left untouched.
func (e *Executor) runShipCheck(ctx context.Context, cycle *domain.Cycle) Result {
	tasks, err := e.store.LoadTasks()
	if err != nil {
		return failure("load tasks: %v", err)
	}

	worker := e.router.BuildWorker()

	var (
		phaseUsd  float64
		completed int
	)
	for _, task := range tasks {
		if task.State != domain.TaskReviewing {
			continue
		}

		built := &llm.WorkResult{Success: true, Artifacts: task.Artifacts}
		verdict, err := worker.Worker.Check(ctx, task, built)

		run := &domain.Run{
			ID:        domain.NewID(),
			CycleID:   cycle.ID,
			TaskID:    task.ID,
			Phase:     domain.PhaseShipCheck,
			Provider:  worker.Provider,
			Prompt:    "review task: " + task.Title,
			CreatedAt: domain.Now(),
		}

		if err != nil {
			run.Success = false
			run.Error = err.Error()
			e.record(run)
			e.logger.Warn("ship check failed", "task_id", task.ID, "error", err)
			continue
		}

		run.Success = true
		run.Response = verdict.Summary
		run.CostUsd = verdict.CostUsd
		run.LatencyMs = verdict.LatencyMs
		e.record(run)

		task.AddCost(verdict.CostUsd)
		phaseUsd += verdict.CostUsd

		if verdict.Approved {
			task.Complete()
			completed++
		} else {
			reason := strings.Join(verdict.Issues, "; ")
			if reason == "" {
				reason = "rejected by ship check"
			}
			task.Fail(reason)
		}

		if err := e.store.SaveTask(task); err != nil {
			return failure("persist task %s: %v", task.ID, err)
		}
		e.events.Publish(events.New(events.TypeTaskUpdate, cycle.ID, task.ID, task))
	}

	e.logger.Info("ship check complete", "cycle", cycle.Number,
		"tasks_completed", completed, "cost_usd", phaseUsd)
	return Result{Success: true, CostUsd: phaseUsd, TasksCompleted: completed}
}
