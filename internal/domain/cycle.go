package domain

import "time"

// CycleState is the lifecycle state of a cycle.
type CycleState string

const (
	CycleRunning   CycleState = "running"
	CycleCompleted CycleState = "completed"
	CycleFailed    CycleState = "failed"
	CyclePaused    CycleState = "paused"
)

// PhaseTiming records when a phase started and finished within a cycle.
type PhaseTiming struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Cycle is one full pass through the five-phase pipeline.
type Cycle struct {
	ID             string                `json:"id"`
	Number         int                   `json:"number"`
	State          CycleState            `json:"state"`
	Mode           string                `json:"mode"`
	PhaseTimings   map[Phase]PhaseTiming `json:"phaseTimings,omitempty"`
	TotalCostUsd   float64               `json:"totalCostUsd"`
	TasksCreated   int                   `json:"tasksCreated"`
	TasksCompleted int                   `json:"tasksCompleted"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
	StartedAt      time.Time             `json:"startedAt"`
	CompletedAt    *time.Time            `json:"completedAt,omitempty"`
}

// NewCycle creates a running cycle. number must be the predecessor's
// number plus one; the caller derives it from the cycle history.
func NewCycle(number int, mode string) *Cycle {
	now := Now()
	return &Cycle{
		ID:           NewID(),
		Number:       number,
		State:        CycleRunning,
		Mode:         mode,
		PhaseTimings: make(map[Phase]PhaseTiming),
		CreatedAt:    now,
		UpdatedAt:    now,
		StartedAt:    now,
	}
}

// StartPhase stamps the phase's startedAt.
func (c *Cycle) StartPhase(p Phase) {
	now := Now()
	t := c.PhaseTimings[p]
	t.StartedAt = &now
	c.PhaseTimings[p] = t
	c.UpdatedAt = now
}

// CompletePhase stamps the phase's completedAt and accumulates its cost.
func (c *Cycle) CompletePhase(p Phase, costUsd float64) {
	now := Now()
	t := c.PhaseTimings[p]
	t.CompletedAt = &now
	c.PhaseTimings[p] = t
	c.TotalCostUsd += costUsd
	c.UpdatedAt = now
}

// Finalize settles the cycle to completed or failed.
func (c *Cycle) Finalize(failed bool) {
	now := Now()
	if failed {
		c.State = CycleFailed
	} else {
		c.State = CycleCompleted
	}
	c.CompletedAt = &now
	c.UpdatedAt = now
}
