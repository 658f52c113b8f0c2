package domain

import "time"

// Finding is one observation produced by SCAN.
type Finding struct {
	Title     string     `json:"title"`
	Detail    string     `json:"detail,omitempty"`
	Relevance float64    `json:"relevance"`
	Sources   []string   `json:"sources,omitempty"`
	Truth     TruthLabel `json:"truth"`
}

// Scan is the persisted output of one SCAN phase.
type Scan struct {
	ID           string    `json:"id"`
	CycleID      string    `json:"cycleId"`
	ObjectiveIDs []string  `json:"objectiveIds"`
	Findings     []Finding `json:"findings"`
	CostUsd      float64   `json:"costUsd"`
	Tokens       int       `json:"tokens"`
	LatencyMs    int64     `json:"latencyMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Complexity is a planner's size estimate for a proposed task.
type Complexity string

const (
	ComplexityTrivial Complexity = "trivial"
	ComplexitySmall   Complexity = "small"
	ComplexityMedium  Complexity = "medium"
	ComplexityLarge   Complexity = "large"
)

// CoerceComplexity returns c if known, otherwise ComplexityMedium.
func CoerceComplexity(c string) Complexity {
	switch Complexity(c) {
	case ComplexityTrivial, ComplexitySmall, ComplexityMedium, ComplexityLarge:
		return Complexity(c)
	}
	return ComplexityMedium
}

// ProposedTask is a planner suggestion that BUILD may turn into a Task.
type ProposedTask struct {
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	EstimatedComplexity Complexity `json:"estimatedComplexity"`
	SuggestedTier       int        `json:"suggestedTier"`
}

// Priority groups proposed tasks under the objective they advance.
type Priority struct {
	ObjectiveID   string         `json:"objectiveId"`
	Rationale     string         `json:"rationale,omitempty"`
	ProposedTasks []ProposedTask `json:"proposedTasks"`
}

// Strategy is the planner's summary plus ordered priorities.
type Strategy struct {
	Summary    string     `json:"summary"`
	Priorities []Priority `json:"priorities"`
}

// Plan is the persisted output of one PLAN phase.
type Plan struct {
	ID        string    `json:"id"`
	CycleID   string    `json:"cycleId"`
	ScanID    string    `json:"scanId"`
	Strategy  Strategy  `json:"strategy"`
	CostUsd   float64   `json:"costUsd"`
	Tokens    int       `json:"tokens"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// Run records a single external call that produced an artifact of record.
// SHIP_CHECK creates one Run per task reviewed.
type Run struct {
	ID           string    `json:"id"`
	CycleID      string    `json:"cycleId"`
	TaskID       string    `json:"taskId,omitempty"`
	Phase        Phase     `json:"phase"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Prompt       string    `json:"prompt"`
	Response     string    `json:"response,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	CostUsd      float64   `json:"costUsd"`
	LatencyMs    int64     `json:"latencyMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RecommendationPriority orders evaluation recommendations.
type RecommendationPriority string

const (
	RecommendationLow    RecommendationPriority = "low"
	RecommendationMedium RecommendationPriority = "medium"
	RecommendationHigh   RecommendationPriority = "high"
)

// CoerceRecommendationPriority returns p if known, otherwise medium.
func CoerceRecommendationPriority(p string) RecommendationPriority {
	switch RecommendationPriority(p) {
	case RecommendationLow, RecommendationMedium, RecommendationHigh:
		return RecommendationPriority(p)
	}
	return RecommendationMedium
}

// Recommendation is a forward-looking suggestion from EVAL.
type Recommendation struct {
	Text     string                 `json:"text"`
	Priority RecommendationPriority `json:"priority"`
	Truth    TruthLabel             `json:"truth"`
}

// Metrics summarizes a cycle's outcomes. tasksCompleted, tasksFailed and
// totalCostUsd are authoritative counts set by the engine, never the
// model's self-report.
type Metrics struct {
	TasksCompleted    int                `json:"tasksCompleted"`
	TasksFailed       int                `json:"tasksFailed"`
	TotalCostUsd      float64            `json:"totalCostUsd"`
	AvgTaskLatencyMs  int64              `json:"avgTaskLatencyMs"`
	ObjectiveProgress map[string]float64 `json:"objectiveProgress,omitempty"`
}

// Period bounds the window an evaluation covers.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Evaluation is the persisted output of one EVAL phase.
type Evaluation struct {
	ID              string           `json:"id"`
	CycleID         string           `json:"cycleId"`
	Period          Period           `json:"period"`
	Metrics         Metrics          `json:"metrics"`
	Insights        []string         `json:"insights,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}
