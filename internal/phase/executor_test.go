package phase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoloop/internal/budget"
	"autoloop/internal/config"
	"autoloop/internal/domain"
	"autoloop/internal/ledger"
	"autoloop/internal/llm"
	"autoloop/internal/router"
	"autoloop/internal/storage"
	"autoloop/internal/tier"
)

type harness struct {
	store *storage.MemoryStore
	exec  *Executor
	rt    *router.Router
	led   *ledger.Ledger
	guard *budget.Guard
	mock  *llm.MockAdapter
	work  *llm.MockWorker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default()
	store := storage.NewMemoryStore()
	rt := router.New(cfg)
	led := ledger.New()
	guard := budget.New(domain.DefaultBudgets(), led)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	exec := New(store, rt, led, guard, tier.NewKeywordResolver(), nil, t.TempDir(), logger)

	return &harness{
		store: store,
		exec:  exec,
		rt:    rt,
		led:   led,
		guard: guard,
		mock:  rt.Adapter(router.RoleResearch).Adapter.(*llm.MockAdapter),
		work:  rt.BuildWorker().Worker.(*llm.MockWorker),
	}
}

func (h *harness) addObjective(t *testing.T) *domain.Objective {
	t.Helper()
	o, err := domain.NewObjective("Improve docs", "Keep the documentation current", 1)
	require.NoError(t, err)
	require.NoError(t, h.store.SaveObjective(o))
	return o
}

func planResponse(objectiveID, title string) string {
	return `{"strategy":{"summary":"one task","priorities":[{"objectiveId":"` + objectiveID +
		`","rationale":"worth doing","proposedTasks":[{"title":"` + title +
		`","description":"small edit","estimatedComplexity":"small","suggestedTier":0}]}]}}`
}

func TestScanProducesFindings(t *testing.T) {
	h := newHarness(t)
	h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	pctx := &Context{}

	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhaseScan)

	require.True(t, res.Success, res.Error)
	require.NotNil(t, pctx.Scan)
	assert.NotEmpty(t, pctx.Scan.Findings)

	scans, err := h.store.LoadScans()
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, cycle.ID, scans[0].CycleID)

	runs, err := h.store.LoadRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.PhaseScan, runs[0].Phase)
	assert.Equal(t, 1, h.led.Len())
}

func TestScanRequiresActiveObjectives(t *testing.T) {
	h := newHarness(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhaseScan)

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "no active objectives")
	assert.Equal(t, 0, h.mock.Calls())
}

func TestPlanRequiresScan(t *testing.T) {
	h := newHarness(t)
	h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhasePlan)

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "requires a scan")
}

func TestPlanUnknownObjectiveFallsBack(t *testing.T) {
	h := newHarness(t)
	o := h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	pctx := &Context{}

	h.mock.Enqueue(
		`{"findings":[]}`,
		planResponse("no-such-objective", "Tidy the readme"),
	)

	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhaseScan).Success)
	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhasePlan)

	require.True(t, res.Success, res.Error)
	require.NotNil(t, pctx.Plan)
	require.Len(t, pctx.Plan.Strategy.Priorities, 1)
	assert.Equal(t, o.ID, pctx.Plan.Strategy.Priorities[0].ObjectiveID)
	assert.Equal(t, pctx.Scan.ID, pctx.Plan.ScanID)
}

func TestBuildExecutesTasksThroughWorker(t *testing.T) {
	h := newHarness(t)
	o := h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	pctx := &Context{}

	h.mock.Enqueue(`{"findings":[]}`, planResponse(o.ID, "Tidy the readme"))

	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhaseScan).Success)
	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhasePlan).Success)
	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhaseBuild)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.TasksCreated)
	require.Len(t, pctx.Tasks, 1)

	task := pctx.Tasks[0]
	assert.Equal(t, domain.TaskReviewing, task.State)
	assert.Equal(t, o.ID, task.ObjectiveID)
	assert.NotEmpty(t, task.Artifacts)
	assert.Equal(t, []string{task.ID}, h.work.Executed())

	saved, err := h.store.LoadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskReviewing, saved.State)
}

func TestBuildDivertsTierTwoTasks(t *testing.T) {
	h := newHarness(t)
	o := h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	pctx := &Context{}

	h.mock.Enqueue(`{"findings":[]}`, planResponse(o.ID, "Deploy the new docs site to production"))

	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhaseScan).Success)
	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhasePlan).Success)
	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhaseBuild)

	require.True(t, res.Success, res.Error)
	require.Len(t, pctx.Tasks, 1)
	assert.Equal(t, domain.TaskAwaitingApproval, pctx.Tasks[0].State)
	assert.Equal(t, 2, pctx.Tasks[0].AutonomyTier)
	assert.Empty(t, h.work.Executed(), "worker must not run unapproved tier-2 work")
}

func TestBuildWorkerFailureFailsTask(t *testing.T) {
	h := newHarness(t)
	o := h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	pctx := &Context{}

	h.work.FailExecute = true
	h.mock.Enqueue(`{"findings":[]}`, planResponse(o.ID, "Tidy the readme"))

	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhaseScan).Success)
	require.True(t, h.exec.Run(context.Background(), cycle, pctx, domain.PhasePlan).Success)
	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhaseBuild)

	require.True(t, res.Success, res.Error)
	require.Len(t, pctx.Tasks, 1)
	assert.Equal(t, domain.TaskFailed, pctx.Tasks[0].State)
	assert.Contains(t, pctx.Tasks[0].Error, "simulated build failure")
}

func TestShipCheckSettlesReviewingTasks(t *testing.T) {
	h := newHarness(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)

	reviewing := &domain.Task{
		ID: domain.NewID(), CycleID: cycle.ID, Title: "Tidy the readme",
		State: domain.TaskReviewing, CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	untouched := &domain.Task{
		ID: domain.NewID(), CycleID: cycle.ID, Title: "Parked work",
		State: domain.TaskAwaitingApproval, CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	require.NoError(t, h.store.SaveTask(reviewing))
	require.NoError(t, h.store.SaveTask(untouched))

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhaseShipCheck)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.TasksCompleted)
	assert.Equal(t, []string{reviewing.ID}, h.work.Checked())

	saved, err := h.store.LoadTask(reviewing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, saved.State)
	assert.Equal(t, domain.TruthImplemented, saved.Truth.Status)

	parked, err := h.store.LoadTask(untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAwaitingApproval, parked.State)

	runs, err := h.store.LoadRunsForTask(reviewing.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.PhaseShipCheck, runs[0].Phase)
}

func TestShipCheckReviewsTasksFromEarlierCycles(t *testing.T) {
	h := newHarness(t)
	cycle := domain.NewCycle(2, config.ModeSimulation)

	stale := &domain.Task{
		ID: domain.NewID(), CycleID: "earlier-cycle", Title: "Tidy the readme",
		State: domain.TaskReviewing, CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	require.NoError(t, h.store.SaveTask(stale))

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhaseShipCheck)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.TasksCompleted)
	assert.Equal(t, []string{stale.ID}, h.work.Checked())

	saved, err := h.store.LoadTask(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, saved.State)
}

func TestShipCheckRejectionFailsTask(t *testing.T) {
	h := newHarness(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	h.work.RejectCheck = true

	task := &domain.Task{
		ID: domain.NewID(), CycleID: cycle.ID, Title: "Tidy the readme",
		State: domain.TaskReviewing, CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	require.NoError(t, h.store.SaveTask(task))

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhaseShipCheck)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 0, res.TasksCompleted)

	saved, err := h.store.LoadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, saved.State)
	assert.Contains(t, saved.Error, "simulated review rejection")
}

func TestEvalOverridesModelCounts(t *testing.T) {
	h := newHarness(t)
	h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)
	cycle.TotalCostUsd = 0.5
	pctx := &Context{Scan: &domain.Scan{ID: "s"}}

	done := &domain.Task{ID: domain.NewID(), CycleID: cycle.ID, State: domain.TaskCompleted}
	broken := &domain.Task{ID: domain.NewID(), CycleID: cycle.ID, State: domain.TaskFailed}
	require.NoError(t, h.store.SaveTask(done))
	require.NoError(t, h.store.SaveTask(broken))

	h.mock.Enqueue(`{"metrics":{"tasksCompleted":99,"tasksFailed":99,"totalCostUsd":123,` +
		`"avgTaskLatencyMs":42,"objectiveProgress":{"x":2.5}},"insights":["went fine"],` +
		`"recommendations":[{"text":"do more","priority":"urgent"}]}`)

	res := h.exec.Run(context.Background(), cycle, pctx, domain.PhaseEval)

	require.True(t, res.Success, res.Error)
	evals, err := h.store.LoadEvaluations()
	require.NoError(t, err)
	require.Len(t, evals, 1)

	eval := evals[0]
	assert.Equal(t, 1, eval.Metrics.TasksCompleted)
	assert.Equal(t, 1, eval.Metrics.TasksFailed)
	assert.Equal(t, 0.5, eval.Metrics.TotalCostUsd)
	assert.Equal(t, int64(42), eval.Metrics.AvgTaskLatencyMs)
	assert.Equal(t, 1.0, eval.Metrics.ObjectiveProgress["x"])
	assert.Equal(t, []string{"went fine"}, eval.Insights)
	require.Len(t, eval.Recommendations, 1)
	assert.Equal(t, domain.RecommendationMedium, eval.Recommendations[0].Priority)
	assert.Equal(t, domain.TruthSpeculative, eval.Recommendations[0].Truth.Status)

	assert.Nil(t, pctx.Scan, "eval discards the inter-phase context")

	experiments, err := h.store.LoadExperiments()
	require.NoError(t, err)
	require.Len(t, experiments, 1)
	assert.Equal(t, "do more", experiments[0].Hypothesis)
}

func TestBudgetBlockedPhase(t *testing.T) {
	h := newHarness(t)
	h.addObjective(t)
	cycle := domain.NewCycle(1, config.ModeSimulation)

	caps := domain.DefaultBudgets()
	caps.PerCallUsd = 0.001
	h.guard.Update(caps)

	res := h.exec.Run(context.Background(), cycle, &Context{}, domain.PhaseScan)

	require.False(t, res.Success)
	assert.True(t, res.BudgetBlocked)
	assert.Contains(t, res.Error, "per-call cap")
	assert.Equal(t, 0, h.mock.Calls())
}

func TestSanitizeJSONStripsFences(t *testing.T) {
	clean, ok := sanitizeJSON("```json\n{\"a\":1}\n```")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, clean)

	clean, ok = sanitizeJSON(`{"a":1,}`)
	require.True(t, ok)
	assert.Contains(t, clean, `"a"`)

	_, ok = sanitizeJSON("not json at all {{{")
	assert.False(t, ok)
}

func TestParseFindingsCoercion(t *testing.T) {
	findings := parseFindings(`{"findings":[{"title":"x","relevance":3.2,` +
		`"truthStatus":"implemented","confidence":"certain"}]}`)

	require.Len(t, findings, 1)
	assert.Equal(t, 1.0, findings[0].Relevance)
	assert.Equal(t, domain.TruthSpeculative, findings[0].Truth.Status)
	assert.Equal(t, domain.ConfidenceLow, findings[0].Truth.Confidence)
}

func TestParseFindingsGarbageYieldsSentinel(t *testing.T) {
	findings := parseFindings("complete nonsense")

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Title, "Parse error")
	assert.Zero(t, findings[0].Relevance)
}
