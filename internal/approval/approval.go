// Package approval exposes the human-approval queue: the set of tasks
// parked in awaiting_approval and the two transitions out of it. These
// operations are the sole legal writers for externally blocked tasks.
package approval

import (
	"log/slog"

	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
	"autoloop/internal/events"
	"autoloop/internal/storage"
)

// Queue is a thin projection over the task collection.
type Queue struct {
	store  storage.Store
	events events.Publisher
	logger *slog.Logger
}

// New creates an approval queue over the store.
func New(store storage.Store, pub events.Publisher, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Queue{store: store, events: pub, logger: logger}
}

// Pending returns the tasks currently awaiting a human decision.
func (q *Queue) Pending() ([]*domain.Task, error) {
	tasks, err := q.store.LoadTasks()
	if err != nil {
		return nil, err
	}
	var pending []*domain.Task
	for _, t := range tasks {
		if t.State == domain.TaskAwaitingApproval {
			pending = append(pending, t)
		}
	}
	return pending, nil
}

// Approve moves an awaiting_approval task to building. Any other state is
// a precondition failure.
func (q *Queue) Approve(taskID string) (*domain.Task, error) {
	task, err := q.loadAwaiting(taskID)
	if err != nil {
		return nil, err
	}

	task.State = domain.TaskBuilding
	task.UpdatedAt = domain.Now()
	if err := q.store.SaveTask(task); err != nil {
		return nil, err
	}
	if err := q.store.AppendDecision(domain.NewDecision("operator", "task "+taskID, "approve", "")); err != nil {
		q.logger.Warn("record approval decision failed", "task_id", taskID, "error", err)
	}

	q.logger.Info("task approved", "task_id", taskID)
	q.events.Publish(events.New(events.TypeTaskUpdate, task.CycleID, task.ID, task))
	return task, nil
}

// Reject moves an awaiting_approval task to failed, recording the reason
// as the task error.
func (q *Queue) Reject(taskID, reason string) (*domain.Task, error) {
	task, err := q.loadAwaiting(taskID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "rejected by operator"
	}
	task.Fail(reason)
	if err := q.store.SaveTask(task); err != nil {
		return nil, err
	}
	if err := q.store.AppendDecision(domain.NewDecision("operator", "task "+taskID, "reject", reason)); err != nil {
		q.logger.Warn("record rejection decision failed", "task_id", taskID, "error", err)
	}

	q.logger.Info("task rejected", "task_id", taskID, "reason", reason)
	q.events.Publish(events.New(events.TypeTaskUpdate, task.CycleID, task.ID, task))
	return task, nil
}

func (q *Queue) loadAwaiting(taskID string) (*domain.Task, error) {
	task, err := q.store.LoadTask(taskID)
	if err != nil || task.State != domain.TaskAwaitingApproval {
		return nil, apperrors.ErrPrecondition("task %s not found or not awaiting approval", taskID)
	}
	return task, nil
}
