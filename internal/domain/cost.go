package domain

import "time"

// CostRecord is one immutable, append-only billing entry.
type CostRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Phase        Phase     `json:"phase"`
	TaskID       string    `json:"taskId,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	CostUsd      float64   `json:"costUsd"`
	LatencyMs    int64     `json:"latencyMs"`
}

// BudgetConfig holds the six spending caps. All caps are in USD and must
// be >= 0. A per-provider cap of 0 means the provider gets no autonomous
// spend ceiling of its own (the check is skipped).
type BudgetConfig struct {
	PerCallUsd          float64            `json:"perCallUsd" yaml:"per_call_usd"`
	PerTaskUsd          float64            `json:"perTaskUsd" yaml:"per_task_usd"`
	PerCycleUsd         float64            `json:"perCycleUsd" yaml:"per_cycle_usd"`
	DailyUsd            float64            `json:"dailyUsd" yaml:"daily_usd"`
	WeeklyUsd           float64            `json:"weeklyUsd" yaml:"weekly_usd"`
	PerProviderDailyUsd map[string]float64 `json:"perProviderDailyUsd" yaml:"per_provider_daily_usd"`
}

// DefaultBudgets returns conservative starting caps.
func DefaultBudgets() BudgetConfig {
	return BudgetConfig{
		PerCallUsd:  1.0,
		PerTaskUsd:  5.0,
		PerCycleUsd: 10.0,
		DailyUsd:    25.0,
		WeeklyUsd:   100.0,
		PerProviderDailyUsd: map[string]float64{
			"claude": 15.0,
			"openai": 10.0,
			"gemini": 10.0,
		},
	}
}
