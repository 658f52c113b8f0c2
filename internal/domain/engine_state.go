package domain

import "time"

// EngineState is the process-wide durable snapshot of the engine loop.
// Exactly one loopState holds at a time; totalCyclesCompleted increments
// only when a cycle finalizes successfully.
type EngineState struct {
	LoopState            string     `json:"loopState"`
	CurrentCycleID       string     `json:"currentCycleId,omitempty"`
	CurrentPhase         Phase      `json:"currentPhase,omitempty"`
	CurrentTaskID        string     `json:"currentTaskId,omitempty"`
	LastCycleCompletedAt *time.Time `json:"lastCycleCompletedAt,omitempty"`
	NextCycleScheduledAt *time.Time `json:"nextCycleScheduledAt,omitempty"`
	TotalCyclesCompleted int        `json:"totalCyclesCompleted"`
	Error                string     `json:"error,omitempty"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}
