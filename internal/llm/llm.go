// Package llm defines the boundary contracts the engine consumes: a
// text-generation adapter per provider and a build/review worker. Concrete
// backends live outside the core; this package ships mocks that satisfy
// both contracts at zero cost.
package llm

import (
	"context"

	"autoloop/internal/domain"
)

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
}

// GenerateResponse is the adapter's reply plus its billing metadata.
// Adapters must report the cost they actually incurred; mocks report zero.
type GenerateResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	CostUsd      float64
}

// Adapter is the text-generation capability.
type Adapter interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Provider() string
	Model() string
}

// WorkOrder instructs the build worker.
type WorkOrder struct {
	TaskID      string
	Instruction string
	WorkingDir  string
	Context     string
}

// WorkResult is the worker's report for one executed order.
type WorkResult struct {
	Output    string
	Success   bool
	Error     string
	Artifacts []domain.Artifact
	LatencyMs int64
	CostUsd   float64
}

// CheckResult is the reviewer's verdict on a built task.
type CheckResult struct {
	Approved  bool
	Issues    []string
	Summary   string
	LatencyMs int64
	CostUsd   float64
}

// Worker is the build-and-review capability.
type Worker interface {
	Execute(ctx context.Context, order WorkOrder) (*WorkResult, error)
	Check(ctx context.Context, task *domain.Task, built *WorkResult) (*CheckResult, error)
	Provider() string
}
