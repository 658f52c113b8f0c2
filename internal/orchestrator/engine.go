// Package orchestrator drives the engine loop: it owns the state machine,
// runs cycles through the phase executor, schedules the next cycle and
// persists the engine state between runs.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"autoloop/internal/budget"
	"autoloop/internal/config"
	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
	"autoloop/internal/events"
	"autoloop/internal/ledger"
	"autoloop/internal/loop"
	"autoloop/internal/phase"
	"autoloop/internal/router"
	"autoloop/internal/storage"
	"autoloop/internal/tier"
)

// Preset is a hook run right before a triggered cycle, typically to seed
// objectives for a known workload.
type Preset func(store storage.Store) error

// Snapshot is a point-in-time view of the engine for callers.
type Snapshot struct {
	State                loop.State   `json:"state"`
	Mode                 string       `json:"mode"`
	Phase                domain.Phase `json:"phase,omitempty"`
	CurrentCycleID       string       `json:"currentCycleId,omitempty"`
	CurrentTaskID        string       `json:"currentTaskId,omitempty"`
	TotalCyclesCompleted int          `json:"totalCyclesCompleted"`
	LastCycleCompletedAt *time.Time   `json:"lastCycleCompletedAt,omitempty"`
	NextCycleScheduledAt *time.Time   `json:"nextCycleScheduledAt,omitempty"`
	Error                string       `json:"error,omitempty"`
}

// Engine is the orchestrator. At most one cycle runs at any time; a
// trigger while a cycle is in flight is rejected.
type Engine struct {
	mu sync.Mutex

	cfg    *config.Config
	store  storage.Store
	router *router.Router
	ledger *ledger.Ledger
	guard  *budget.Guard
	exec   *phase.Executor
	events events.Publisher
	logger *slog.Logger
	timer  cycleTimer

	state loop.State
	es    *domain.EngineState
	// pauseRequested latches an operator pause across a cycle in flight,
	// whose phase transitions legally move the loop state off paused.
	pauseRequested bool
	running        bool
	presets        map[string]Preset
}

// New creates an engine over the given store. The router, ledger and
// budget guard are owned by the engine; callers reach them through the
// accessors to register adapters or read spend.
func New(cfg *config.Config, store storage.Store, pub events.Publisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	led := ledger.New()
	return &Engine{
		cfg:     cfg,
		store:   store,
		router:  router.New(cfg),
		ledger:  led,
		guard:   budget.New(cfg.Budgets, led),
		events:  pub,
		logger:  logger,
		state:   loop.StateIdle,
		es:      &domain.EngineState{LoopState: string(loop.StateIdle)},
		presets: make(map[string]Preset),
	}
}

// Router returns the engine's model router for adapter registration.
func (e *Engine) Router() *router.Router { return e.router }

// Ledger returns the engine's cost ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Guard returns the engine's budget guard.
func (e *Engine) Guard() *budget.Guard { return e.guard }

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Start restores persisted state and schedules the first cycle. A
// transient loop state left behind by a crash resets to idle.
func (e *Engine) Start() error {
	st, err := e.store.LoadEngineState()
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			return apperrors.Wrap(apperrors.CodeStorage, err, "load engine state")
		}
		st = &domain.EngineState{LoopState: string(loop.StateIdle)}
	}

	s := loop.State(st.LoopState)
	if !loop.Valid(s) || loop.IsTransient(s) {
		if loop.Valid(s) {
			e.logger.Warn("recovering from transient state", "state", s)
		}
		s = loop.StateIdle
		st.LoopState = string(s)
		st.CurrentCycleID = ""
		st.CurrentPhase = ""
		st.CurrentTaskID = ""
	}

	if records, err := e.store.LoadBudgetState(); err == nil && len(records) > 0 {
		e.ledger.Load(records)
	}

	e.mu.Lock()
	e.state = s
	e.pauseRequested = s == loop.StatePaused
	e.es = st
	e.exec = phase.New(e.store, e.router, e.ledger, e.guard,
		tier.NewKeywordResolver(), e.events, e.cfg.WorkingDir, e.logger)
	e.running = true
	e.mu.Unlock()

	if s != loop.StatePaused {
		e.scheduleNext()
	}
	e.logger.Info("engine started", "state", s, "mode", e.cfg.Mode)
	return e.saveState()
}

// Stop halts the engine: the running flag drops, any scheduled cycle is
// cancelled and state plus spend history are persisted. An in-flight
// phase completes first.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.timer.Cancel()

	if err := e.store.SaveBudgetState(e.ledger.Records()); err != nil {
		e.logger.Warn("persist budget state failed", "error", err)
	}
	e.logger.Info("engine stopped")
	return e.saveState()
}

// GetState returns a snapshot of the engine.
func (e *Engine) GetState() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:                e.state,
		Mode:                 e.cfg.Mode,
		Phase:                e.es.CurrentPhase,
		CurrentCycleID:       e.es.CurrentCycleID,
		CurrentTaskID:        e.es.CurrentTaskID,
		TotalCyclesCompleted: e.es.TotalCyclesCompleted,
		LastCycleCompletedAt: e.es.LastCycleCompletedAt,
		NextCycleScheduledAt: e.es.NextCycleScheduledAt,
		Error:                e.es.Error,
	}
}

// Pause cancels the scheduled cycle and parks the engine. Idempotent; a
// cycle already in flight finishes its phases first, then parks instead
// of rescheduling.
func (e *Engine) Pause() {
	e.timer.Cancel()

	e.mu.Lock()
	e.pauseRequested = true
	if e.state == loop.StatePaused {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.transition(loop.StatePaused, "", "")
	if err := e.saveState(); err != nil {
		e.logger.Warn("persist engine state failed", "error", err)
	}
}

// Resume leaves paused for idle and reschedules. No-op in any other
// state.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.pauseRequested = false
	if e.state != loop.StatePaused {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.transition(loop.StateIdle, "", "")
	if err := e.saveState(); err != nil {
		e.logger.Warn("persist engine state failed", "error", err)
	}
	e.scheduleNext()
}

// RegisterPreset stores a named trigger hook.
func (e *Engine) RegisterPreset(name string, h Preset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.presets[name] = h
}

// Trigger runs one cycle now, synchronously with respect to the caller.
// Fails unless the engine sits in idle or paused. A named preset runs
// first; an unknown name logs a warning and the cycle still runs.
func (e *Engine) Trigger(ctx context.Context, preset string) (string, error) {
	e.mu.Lock()
	if e.state != loop.StateIdle && e.state != loop.StatePaused {
		st := e.state
		e.mu.Unlock()
		return "", apperrors.ErrPrecondition("Cannot trigger: engine is %s", st)
	}
	var hook Preset
	if preset != "" {
		hook = e.presets[preset]
	}
	e.mu.Unlock()

	e.timer.Cancel()

	if preset != "" {
		if hook == nil {
			e.logger.Warn("unknown preset", "preset", preset)
		} else if err := hook(e.store); err != nil {
			e.logger.Warn("preset failed", "preset", preset, "error", err)
		}
	}

	return e.RunCycle(ctx)
}

// ReloadConfig re-reads configuration from the store and fans it out to
// the router and budget guard. Scheduled cycles are not restarted.
func (e *Engine) ReloadConfig() error {
	cfg, err := e.store.LoadConfig()
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeStorage, err, "load config")
	}
	return e.ApplyConfig(cfg)
}

// ApplyConfig validates, persists and fans out a new configuration.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigInvalid, err, "apply config")
	}
	if err := e.store.SaveConfig(cfg); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "persist config")
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.router.Update(cfg)
	e.guard.Update(cfg.Budgets)
	e.logger.Info("config applied", "mode", cfg.Mode)
	return nil
}

// RunCycle executes one full cycle through the fixed phase order and
// returns its id. Any phase failure ends the cycle through error; the
// next cycle is scheduled either way.
func (e *Engine) RunCycle(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.state != loop.StateIdle && e.state != loop.StatePaused {
		st := e.state
		e.mu.Unlock()
		return "", apperrors.ErrPrecondition("Cannot trigger: engine is %s", st)
	}
	mode := e.cfg.Mode
	e.mu.Unlock()

	cycles, err := e.store.LoadCycles()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorage, err, "load cycles")
	}
	cycle := domain.NewCycle(len(cycles)+1, mode)
	if err := e.store.SaveCycle(cycle); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStorage, err, "persist cycle")
	}

	e.mu.Lock()
	e.es.CurrentCycleID = cycle.ID
	e.mu.Unlock()

	e.logger.Info("cycle started", "cycle", cycle.Number, "mode", mode)

	pctx := &phase.Context{}
	failed := false

	for _, p := range domain.Phases {
		if !e.isRunning() {
			break
		}

		target, _ := loop.StateForPhase(p)
		if !e.transition(target, p, cycle.ID) {
			e.logger.Warn("phase state unreachable, skipping", "phase", p)
			continue
		}

		e.mu.Lock()
		e.es.CurrentPhase = p
		e.mu.Unlock()
		cycle.StartPhase(p)

		res := e.exec.Run(ctx, cycle, pctx, p)

		cycle.CompletePhase(p, res.CostUsd)
		cycle.TasksCreated += res.TasksCreated
		cycle.TasksCompleted += res.TasksCompleted
		if err := e.store.SaveCycle(cycle); err != nil {
			e.logger.Warn("persist cycle failed", "cycle", cycle.Number, "error", err)
		}

		e.events.Publish(events.New(events.TypePhaseComplete, cycle.ID, "", events.PhaseComplete{
			Phase:       string(p),
			CycleID:     cycle.ID,
			CycleNumber: cycle.Number,
			Success:     res.Success,
			CostUsd:     res.CostUsd,
			Error:       res.Error,
		}))

		if !res.Success {
			failed = true
			e.transition(loop.StateError, "", cycle.ID)
			e.mu.Lock()
			e.es.Error = res.Error
			e.mu.Unlock()
			e.logger.Warn("cycle failed", "cycle", cycle.Number, "phase", p, "error", res.Error)
			break
		}
	}

	cycle.Finalize(failed)
	if err := e.store.SaveCycle(cycle); err != nil {
		e.logger.Warn("persist cycle failed", "cycle", cycle.Number, "error", err)
	}

	e.mu.Lock()
	if !failed {
		now := domain.Now()
		e.es.TotalCyclesCompleted++
		e.es.LastCycleCompletedAt = &now
		e.es.Error = ""
	}
	e.es.CurrentCycleID = ""
	e.es.CurrentPhase = ""
	e.es.CurrentTaskID = ""
	paused := e.pauseRequested || e.state == loop.StatePaused
	e.mu.Unlock()

	// An operator pause during the cycle sticks: park at the end,
	// schedule nothing.
	if paused {
		e.transition(loop.StatePaused, "", "")
	} else {
		e.transition(loop.StateIdle, "", "")
	}

	if err := e.store.SaveBudgetState(e.ledger.Records()); err != nil {
		e.logger.Warn("persist budget state failed", "error", err)
	}
	if err := e.saveState(); err != nil {
		e.logger.Warn("persist engine state failed", "error", err)
	}
	if !paused {
		e.scheduleNext()
	}

	e.logger.Info("cycle finished", "cycle", cycle.Number,
		"state", cycle.State, "cost_usd", cycle.TotalCostUsd)
	return cycle.ID, nil
}

// isRunning reports whether Stop has been called.
func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// transition moves the loop state to target, publishing a state_changed
// event per hop. When the direct edge is missing but idle is reachable
// from both sides, the transition detours via idle. Returns false when
// the target cannot be reached at all.
func (e *Engine) transition(to loop.State, p domain.Phase, cycleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.state
	if from == to {
		return true
	}

	var path []loop.State
	switch {
	case loop.CanTransition(from, to):
		path = []loop.State{to}
	case loop.CanTransition(from, loop.StateIdle) && loop.CanTransition(loop.StateIdle, to):
		path = []loop.State{loop.StateIdle, to}
	default:
		return false
	}

	for _, s := range path {
		prev := e.state
		e.state = s
		e.es.LoopState = string(s)
		e.es.UpdatedAt = domain.Now()
		e.events.Publish(events.New(events.TypeStateChanged, cycleID, "", events.StateChange{
			From:    string(prev),
			To:      string(s),
			Phase:   string(p),
			CycleID: cycleID,
		}))
	}
	return true
}

// scheduleNext arms the cycle timer for one cooldown from now.
func (e *Engine) scheduleNext() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	delay := time.Duration(e.cfg.CycleCooldownMinutes) * time.Minute
	e.mu.Unlock()

	at := e.timer.Schedule(delay, e.runScheduled)

	e.mu.Lock()
	e.es.NextCycleScheduledAt = &at
	e.mu.Unlock()
}

// runScheduled is the timer callback. It runs a cycle only when the
// engine still sits in idle.
func (e *Engine) runScheduled() {
	e.mu.Lock()
	ok := e.running && e.state == loop.StateIdle
	e.mu.Unlock()
	if !ok {
		return
	}
	if _, err := e.RunCycle(context.Background()); err != nil {
		e.logger.Warn("scheduled cycle failed to start", "error", err)
	}
}

// saveState persists the engine state snapshot. The save is awaited so a
// crash between cycles never loses the counter.
func (e *Engine) saveState() error {
	e.mu.Lock()
	st := *e.es
	e.mu.Unlock()

	st.UpdatedAt = domain.Now()
	if err := e.store.SaveEngineState(&st); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, err, "persist engine state")
	}
	return nil
}
