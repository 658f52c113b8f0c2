package domain

import "time"

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskQueued           TaskState = "queued"
	TaskScanning         TaskState = "scanning"
	TaskPlanning         TaskState = "planning"
	TaskBuilding         TaskState = "building"
	TaskReviewing        TaskState = "reviewing"
	TaskAwaitingApproval TaskState = "awaiting_approval"
	TaskApproved         TaskState = "approved"
	TaskRejected         TaskState = "rejected"
	TaskCompleted        TaskState = "completed"
	TaskFailed           TaskState = "failed"
	TaskCancelled        TaskState = "cancelled"
)

// IsTerminal reports whether no transition leads out of the state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled, TaskRejected:
		return true
	}
	return false
}

// Task is a unit of delegated work created during BUILD.
type Task struct {
	ID            string     `json:"id"`
	ObjectiveID   string     `json:"objectiveId"`
	CycleID       string     `json:"cycleId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	State         TaskState  `json:"state"`
	AutonomyTier  int        `json:"autonomyTier"`
	BudgetCapUsd  float64    `json:"budgetCapUsd"`
	ActualCostUsd float64    `json:"actualCostUsd"`
	Artifacts     []Artifact `json:"artifacts,omitempty"`
	RetryCount    int        `json:"retryCount"`
	Error         string     `json:"error,omitempty"`
	Truth         TruthLabel `json:"truth"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// AddCost accumulates spend on the task. actualCostUsd is monotonically
// non-decreasing until the task reaches a terminal state.
func (t *Task) AddCost(usd float64) {
	if usd <= 0 {
		return
	}
	t.ActualCostUsd += usd
	t.UpdatedAt = Now()
}

// Complete marks the task completed and promotes its truth label.
func (t *Task) Complete() {
	now := Now()
	t.State = TaskCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Truth = TruthLabel{Status: TruthImplemented, Confidence: ConfidenceMedium}
}

// Fail marks the task failed with the given error.
func (t *Task) Fail(errMsg string) {
	t.State = TaskFailed
	t.Error = errMsg
	t.UpdatedAt = Now()
}
