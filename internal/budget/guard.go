// Package budget implements pre-call admission control against the six
// spending caps: per-call, per-task, per-cycle, daily, weekly and
// per-provider-daily.
package budget

import (
	"fmt"
	"sync"

	"autoloop/internal/domain"
	"autoloop/internal/ledger"
)

// Level names the cap that blocked a call.
type Level string

const (
	LevelPerCall          Level = "per_call"
	LevelPerTask          Level = "per_task"
	LevelPerCycle         Level = "per_cycle"
	LevelDaily            Level = "daily"
	LevelWeekly           Level = "weekly"
	LevelPerProviderDaily Level = "per_provider_daily"
)

// Request describes a call awaiting admission.
type Request struct {
	EstimatedCostUsd float64
	TaskID           string
	CycleSpendUsd    float64
	Provider         string
}

// Decision is the guard's verdict. When Allowed is false, Level and Reason
// identify the first cap that would be exceeded.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Level   Level  `json:"level,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Guard admits or rejects calls against the configured caps. Caps are
// hot-reloadable via Update.
type Guard struct {
	mu     sync.RWMutex
	caps   domain.BudgetConfig
	ledger *ledger.Ledger
}

// New creates a guard reading spend history from l.
func New(caps domain.BudgetConfig, l *ledger.Ledger) *Guard {
	return &Guard{caps: caps, ledger: l}
}

// Update hot-swaps the caps.
func (g *Guard) Update(caps domain.BudgetConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.caps = caps
}

// Caps returns the current caps.
func (g *Guard) Caps() domain.BudgetConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.caps
}

// Check runs the six cap checks in fixed order; the first failing check
// wins. All comparisons are strict, so a call that lands exactly at a cap
// is admitted.
func (g *Guard) Check(req Request) Decision {
	g.mu.RLock()
	caps := g.caps
	g.mu.RUnlock()

	est := req.EstimatedCostUsd

	if est > caps.PerCallUsd {
		return blocked(LevelPerCall,
			fmt.Sprintf("estimated cost $%.4f exceeds per-call cap $%.4f", est, caps.PerCallUsd))
	}

	if req.TaskID != "" {
		if spent := g.ledger.CostForTask(req.TaskID); spent+est > caps.PerTaskUsd {
			return blocked(LevelPerTask,
				fmt.Sprintf("task %s spend $%.4f + $%.4f exceeds per-task cap $%.4f", req.TaskID, spent, est, caps.PerTaskUsd))
		}
	}

	if req.CycleSpendUsd+est > caps.PerCycleUsd {
		return blocked(LevelPerCycle,
			fmt.Sprintf("cycle spend $%.4f + $%.4f exceeds per-cycle cap $%.4f", req.CycleSpendUsd, est, caps.PerCycleUsd))
	}

	if daily := g.ledger.DailyCost(); daily+est > caps.DailyUsd {
		return blocked(LevelDaily,
			fmt.Sprintf("daily spend $%.4f + $%.4f exceeds daily cap $%.4f", daily, est, caps.DailyUsd))
	}

	if weekly := g.ledger.WeeklyCost(); weekly+est > caps.WeeklyUsd {
		return blocked(LevelWeekly,
			fmt.Sprintf("weekly spend $%.4f + $%.4f exceeds weekly cap $%.4f", weekly, est, caps.WeeklyUsd))
	}

	// A provider without an entry, or with a cap of 0, has no per-provider
	// ceiling of its own.
	if cap, ok := caps.PerProviderDailyUsd[req.Provider]; ok && cap > 0 {
		if spent := g.ledger.ProviderDailyCost(req.Provider); spent+est > cap {
			return blocked(LevelPerProviderDaily,
				fmt.Sprintf("provider %s daily spend $%.4f + $%.4f exceeds cap $%.4f", req.Provider, spent, est, cap))
		}
	}

	return Decision{Allowed: true}
}

func blocked(level Level, reason string) Decision {
	return Decision{Allowed: false, Level: level, Reason: reason}
}
