package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoloop/internal/approval"
	"autoloop/internal/config"
	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
	"autoloop/internal/events"
	"autoloop/internal/llm"
	"autoloop/internal/loop"
	"autoloop/internal/router"
	"autoloop/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *storage.MemoryStore, *events.MemoryPublisher) {
	t.Helper()

	store := storage.NewMemoryStore()
	pub := events.NewMemoryPublisher(events.WithBufferSize(256))
	eng := New(cfg, store, pub, testLogger())

	t.Cleanup(func() {
		_ = eng.Stop()
		pub.Close()
	})
	return eng, store, pub
}

func seedObjective(t *testing.T, store storage.Store, title string) *domain.Objective {
	t.Helper()
	o, err := domain.NewObjective(title, "seeded for testing", 1)
	require.NoError(t, err)
	require.NoError(t, store.SaveObjective(o))
	return o
}

func engineMock(e *Engine) *llm.MockAdapter {
	return e.Router().Adapter(router.RoleResearch).Adapter.(*llm.MockAdapter)
}

func TestSimulationCycle(t *testing.T) {
	eng, store, pub := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	sub := pub.Subscribe()
	defer pub.Unsubscribe(sub)

	cycleID, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	snap := eng.GetState()
	assert.Equal(t, loop.StateIdle, snap.State)
	assert.Equal(t, 1, snap.TotalCyclesCompleted)
	assert.Empty(t, snap.Error)

	cycle, err := store.LoadCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleCompleted, cycle.State)
	assert.Zero(t, cycle.TotalCostUsd, "simulation cycles cost nothing")

	var phases []string
	for done := false; !done; {
		select {
		case ev := <-sub:
			if ev.Type == events.TypePhaseComplete {
				pc := ev.Data.(events.PhaseComplete)
				require.True(t, pc.Success, pc.Error)
				phases = append(phases, pc.Phase)
			}
		default:
			done = true
		}
	}
	assert.Equal(t, []string{"scan", "plan", "build", "ship_check", "eval"}, phases)
}

func TestBudgetDeniedPlanFailsCycle(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeLive
	cfg.Budgets.PerCallUsd = 0.01
	eng, store, _ := newTestEngine(t, cfg)
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	cycleID, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	cycle, err := store.LoadCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleFailed, cycle.State)

	// SCAN cleared its estimate; PLAN hit the per-call cap.
	scans, err := store.LoadScans()
	require.NoError(t, err)
	assert.Len(t, scans, 1)
	plans, err := store.LoadPlans()
	require.NoError(t, err)
	assert.Empty(t, plans)

	snap := eng.GetState()
	assert.Equal(t, loop.StateIdle, snap.State)
	assert.Equal(t, 0, snap.TotalCyclesCompleted)
	assert.Contains(t, snap.Error, "per-call cap")
	assert.True(t, eng.timer.Pending(), "next cycle still scheduled after a failed one")
}

func TestApprovalDiversion(t *testing.T) {
	eng, store, pub := newTestEngine(t, config.Default())
	o := seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	engineMock(eng).Enqueue(
		`{"findings":[]}`,
		`{"strategy":{"summary":"risky","priorities":[{"objectiveId":"`+o.ID+
			`","proposedTasks":[{"title":"Deploy to production","suggestedTier":0}]}]}}`,
	)

	cycleID, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	cycle, err := store.LoadCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, 1, cycle.TasksCreated)
	assert.Equal(t, 0, cycle.TasksCompleted)

	tasks, err := store.LoadTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskAwaitingApproval, tasks[0].State)

	queue := approval.New(store, pub, testLogger())
	approved, err := queue.Approve(tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBuilding, approved.State)
}

func TestCycleNumbersAreMonotonic(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	first, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)
	second, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	c1, err := store.LoadCycle(first)
	require.NoError(t, err)
	c2, err := store.LoadCycle(second)
	require.NoError(t, err)
	assert.Equal(t, 1, c1.Number)
	assert.Equal(t, c1.Number+1, c2.Number)
}

func TestTriggerRejectedWhileBusy(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	eng.mu.Lock()
	eng.state = loop.StateScanning
	eng.mu.Unlock()

	_, err := eng.Trigger(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))
	assert.EqualError(t, err, "Cannot trigger: engine is scanning")
}

func TestTriggerRunsPreset(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	require.NoError(t, eng.Start())

	eng.RegisterPreset("seed", func(s storage.Store) error {
		seedObjective(t, s, "Seeded")
		return nil
	})

	cycleID, err := eng.Trigger(context.Background(), "seed")
	require.NoError(t, err)

	cycle, err := store.LoadCycle(cycleID)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleCompleted, cycle.State)
}

func TestTriggerUnknownPresetStillRuns(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	cycleID, err := eng.Trigger(context.Background(), "no-such-preset")
	require.NoError(t, err)
	assert.NotEmpty(t, cycleID)
}

func TestPauseResume(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())
	require.True(t, eng.timer.Pending())

	eng.Pause()
	assert.Equal(t, loop.StatePaused, eng.GetState().State)
	assert.False(t, eng.timer.Pending())

	eng.Pause() // idempotent
	assert.Equal(t, loop.StatePaused, eng.GetState().State)

	// Triggering from paused is allowed.
	_, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	eng.Pause()
	eng.Resume()
	assert.Equal(t, loop.StateIdle, eng.GetState().State)
	assert.True(t, eng.timer.Pending())
}

func TestPauseHoldsAcrossTriggeredCycle(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())

	eng.Pause()
	require.Equal(t, loop.StatePaused, eng.GetState().State)

	// The cycle's phase transitions move the loop state off paused; the
	// pause must still hold once the cycle ends.
	_, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, loop.StatePaused, eng.GetState().State)
	assert.False(t, eng.timer.Pending(), "paused engine must not reschedule")

	eng.Resume()
	assert.Equal(t, loop.StateIdle, eng.GetState().State)
	assert.True(t, eng.timer.Pending())
}

func TestStartRecoversTransientState(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	require.NoError(t, store.SaveEngineState(&domain.EngineState{
		LoopState:      string(loop.StateBuilding),
		CurrentCycleID: "stale",
		CurrentPhase:   domain.PhaseBuild,
	}))

	require.NoError(t, eng.Start())

	snap := eng.GetState()
	assert.Equal(t, loop.StateIdle, snap.State)
	assert.Empty(t, snap.CurrentCycleID)
	assert.Empty(t, snap.Phase)
}

func TestStartPreservesPausedState(t *testing.T) {
	eng, _, _ := newTestEngine(t, config.Default())
	require.NoError(t, eng.store.SaveEngineState(&domain.EngineState{
		LoopState: string(loop.StatePaused),
	}))

	require.NoError(t, eng.Start())
	assert.Equal(t, loop.StatePaused, eng.GetState().State)
	assert.False(t, eng.timer.Pending())
}

func TestEngineStatePersistedAcrossRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := config.Default()

	eng := New(cfg, store, nil, testLogger())
	seedObjective(t, store, "Test")
	require.NoError(t, eng.Start())
	_, err := eng.Trigger(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, eng.Stop())

	reborn := New(cfg, store, nil, testLogger())
	require.NoError(t, reborn.Start())
	defer reborn.Stop()

	snap := reborn.GetState()
	assert.Equal(t, 1, snap.TotalCyclesCompleted)
	assert.NotNil(t, snap.LastCycleCompletedAt)
}

func TestApplyConfigFansOut(t *testing.T) {
	eng, store, _ := newTestEngine(t, config.Default())
	require.NoError(t, eng.Start())

	cfg := config.Default()
	cfg.Mode = config.ModeLive
	cfg.Budgets.DailyUsd = 3
	require.NoError(t, eng.ApplyConfig(cfg))

	assert.Equal(t, config.ModeLive, eng.Config().Mode)
	assert.Equal(t, 3.0, eng.Guard().Caps().DailyUsd)

	saved, err := store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.ModeLive, saved.Mode)

	bad := config.Default()
	bad.Mode = "turbo"
	err = eng.ApplyConfig(bad)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigInvalid))
}
