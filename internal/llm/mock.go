package llm

import (
	"context"
	"strings"
	"sync"

	"autoloop/internal/domain"
)

// MockProvider is the provider name mocks report.
const MockProvider = "mock"

// MockAdapter satisfies Adapter without any external calls. Responses are
// canned JSON shaped like real phase output so simulation cycles exercise
// the same parsing path as live ones. Zero cost, zero tokens billed.
type MockAdapter struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

// NewMockAdapter creates a mock with default phase-aware responses.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// Enqueue sets explicit responses, consumed in order. Once drained the
// adapter falls back to prompt-sniffing defaults.
func (m *MockAdapter) Enqueue(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
}

// Calls returns how many times Generate ran.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate returns the next enqueued response, or a canned response chosen
// by sniffing the prompt for the phase it belongs to.
func (m *MockAdapter) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	m.calls++
	var text string
	if len(m.responses) > 0 {
		text = m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	if text == "" {
		text = cannedResponse(req.SystemPrompt + " " + req.UserPrompt)
	}

	return &GenerateResponse{
		Text:         text,
		InputTokens:  len(req.UserPrompt) / 4,
		OutputTokens: len(text) / 4,
		LatencyMs:    1,
		CostUsd:      0,
	}, nil
}

func (m *MockAdapter) Provider() string { return MockProvider }
func (m *MockAdapter) Model() string    { return "mock-v1" }

func cannedResponse(prompt string) string {
	// Order matters: the planning prompt mentions findings too, so the
	// more specific markers are checked first.
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "priorities"):
		return `{"strategy":{"summary":"Simulated plan.","priorities":[]}}`
	case strings.Contains(p, "insights"):
		return `{"metrics":{"tasksCompleted":0,"tasksFailed":0,"totalCostUsd":0,"avgTaskLatencyMs":0,"objectiveProgress":{}},"insights":["Simulation cycle; no real work executed."],"recommendations":[]}`
	case strings.Contains(p, "findings"):
		return `{"findings":[{"title":"Simulated finding","detail":"Nothing notable in simulation mode.","relevance":0.5,"sources":[],"truthStatus":"speculative","confidence":"low"}]}`
	}
	return `{}`
}

// MockWorker satisfies Worker without running anything. Every order
// succeeds with a log artifact; every check approves.
type MockWorker struct {
	mu       sync.Mutex
	executed []string
	checked  []string

	// FailExecute makes Execute report failure (not an error) when set.
	FailExecute bool
	// RejectCheck makes Check reject with a canned issue when set.
	RejectCheck bool
}

// NewMockWorker creates a mock build worker.
func NewMockWorker() *MockWorker {
	return &MockWorker{}
}

// Executed returns the task IDs Execute was called with.
func (w *MockWorker) Executed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.executed...)
}

// Checked returns the task IDs Check was called with.
func (w *MockWorker) Checked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.checked...)
}

func (w *MockWorker) Execute(_ context.Context, order WorkOrder) (*WorkResult, error) {
	w.mu.Lock()
	w.executed = append(w.executed, order.TaskID)
	fail := w.FailExecute
	w.mu.Unlock()

	if fail {
		return &WorkResult{Success: false, Error: "simulated build failure", LatencyMs: 1}, nil
	}
	return &WorkResult{
		Output:  "simulated build output",
		Success: true,
		Artifacts: []domain.Artifact{
			{Type: domain.ArtifactLog, Ref: "simulated.log", Note: "mock worker output"},
		},
		LatencyMs: 1,
	}, nil
}

func (w *MockWorker) Check(_ context.Context, task *domain.Task, _ *WorkResult) (*CheckResult, error) {
	w.mu.Lock()
	w.checked = append(w.checked, task.ID)
	reject := w.RejectCheck
	w.mu.Unlock()

	if reject {
		return &CheckResult{Approved: false, Issues: []string{"simulated review rejection"}, Summary: "rejected", LatencyMs: 1}, nil
	}
	return &CheckResult{Approved: true, Summary: "looks good", LatencyMs: 1}, nil
}

func (w *MockWorker) Provider() string { return MockProvider }
