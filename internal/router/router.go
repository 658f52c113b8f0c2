// Package router maps engine roles to provider adapters under the current
// mode. The role table is static with deterministic fallbacks; simulation
// mode returns mocks unconditionally.
package router

import (
	"sync"

	"autoloop/internal/config"
	"autoloop/internal/llm"
)

// Role is an abstract capability used to select a backend.
type Role string

const (
	RoleResearch  Role = "research"
	RolePlanning  Role = "planning"
	RoleBuilding  Role = "building"
	RoleReviewing Role = "reviewing"
)

// Assignment is the static primary/fallback providers for a role.
type Assignment struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback,omitempty"`
}

// assignments is the fixed role-to-provider table.
var assignments = map[Role]Assignment{
	RoleResearch:  {Primary: "gemini", Fallback: "openai"},
	RolePlanning:  {Primary: "openai", Fallback: "gemini"},
	RoleBuilding:  {Primary: "claude"},
	RoleReviewing: {Primary: "claude", Fallback: "openai"},
}

// workerProvider is the single provider backing the build worker.
const workerProvider = "claude"

// Route is the routing result for one role lookup.
type Route struct {
	Adapter  llm.Adapter
	Provider string
	IsMock   bool
}

// WorkerRoute is the routing result for a build-worker lookup.
type WorkerRoute struct {
	Worker   llm.Worker
	Provider string
	IsMock   bool
}

// Router resolves roles to adapters. Registrations happen at startup;
// Update hot-swaps the effective config without touching registrations.
type Router struct {
	mu       sync.RWMutex
	cfg      *config.Config
	adapters map[string]llm.Adapter
	worker   llm.Worker
	mock     *llm.MockAdapter
	mockWork *llm.MockWorker
}

// New creates a router for the given config with no live registrations.
func New(cfg *config.Config) *Router {
	return &Router{
		cfg:      cfg,
		adapters: make(map[string]llm.Adapter),
		mock:     llm.NewMockAdapter(),
		mockWork: llm.NewMockWorker(),
	}
}

// Register installs a live adapter under the provider name it reports.
func (r *Router) Register(a llm.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Provider()] = a
}

// RegisterWorker installs the live build worker.
func (r *Router) RegisterWorker(w llm.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.worker = w
}

// Update hot-swaps the effective config. Registered adapters survive.
func (r *Router) Update(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// GetAssignment exposes the static table for debugging.
func (r *Router) GetAssignment(role Role) (Assignment, bool) {
	a, ok := assignments[role]
	return a, ok
}

// Adapter resolves the adapter for a role. Resolution order:
//   - simulation: always the mock.
//   - selective: primary if enabled and registered, else fallback if
//     enabled and registered, else the mock.
//   - live: primary if registered, else fallback if registered, else mock.
func (r *Router) Adapter(role Role) Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asn := assignments[role]

	if r.cfg.Mode == config.ModeSimulation {
		return Route{Adapter: r.mock, Provider: llm.MockProvider, IsMock: true}
	}

	for _, provider := range []string{asn.Primary, asn.Fallback} {
		if provider == "" {
			continue
		}
		if r.cfg.Mode == config.ModeSelective && !r.cfg.Enabled(provider) {
			continue
		}
		if a, ok := r.adapters[provider]; ok {
			return Route{Adapter: a, Provider: provider, IsMock: false}
		}
	}
	return Route{Adapter: r.mock, Provider: llm.MockProvider, IsMock: true}
}

// BuildWorker resolves the build worker following the same mode rules over
// the single provider claude.
func (r *Router) BuildWorker() WorkerRoute {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cfg.Mode == config.ModeSimulation {
		return WorkerRoute{Worker: r.mockWork, Provider: llm.MockProvider, IsMock: true}
	}
	if r.cfg.Mode == config.ModeSelective && !r.cfg.Enabled(workerProvider) {
		return WorkerRoute{Worker: r.mockWork, Provider: llm.MockProvider, IsMock: true}
	}
	if r.worker != nil {
		return WorkerRoute{Worker: r.worker, Provider: workerProvider, IsMock: false}
	}
	return WorkerRoute{Worker: r.mockWork, Provider: llm.MockProvider, IsMock: true}
}

// ProviderFor returns the provider name a role would bill against right
// now, without resolving the adapter. The budget guard keys caps on this.
func (r *Router) ProviderFor(role Role) string {
	return r.Adapter(role).Provider
}
