// Package ledger provides the in-memory, append-only cost ledger. Every
// billable adapter call is recorded here; the budget guard reads it for
// admission decisions.
package ledger

import (
	"sync"
	"time"

	"autoloop/internal/domain"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Daily windows are computed from
// this clock's local midnight; tests inject a fixed clock.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// Ledger is a concurrency-safe append-only record of billable calls.
type Ledger struct {
	mu      sync.RWMutex
	records []domain.CostRecord
	clock   func() time.Time
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends a cost record. No deduplication, no ordering requirement.
func (l *Ledger) Record(rec domain.CostRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Total returns the sum of all recorded costs.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, r := range l.records {
		sum += r.CostUsd
	}
	return sum
}

// CostSince sums records with timestamp >= t.
func (l *Ledger) CostSince(t time.Time) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, r := range l.records {
		if !r.Timestamp.Before(t) {
			sum += r.CostUsd
		}
	}
	return sum
}

// CostForTask sums records attributed to the task. Records without a task
// ID never count toward any task.
func (l *Ledger) CostForTask(taskID string) float64 {
	if taskID == "" {
		return 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, r := range l.records {
		if r.TaskID == taskID {
			sum += r.CostUsd
		}
	}
	return sum
}

// CostForPhase sums records charged in the given phase.
func (l *Ledger) CostForPhase(p domain.Phase) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, r := range l.records {
		if r.Phase == p {
			sum += r.CostUsd
		}
	}
	return sum
}

// CostForProvider sums records for a provider with timestamp >= since.
func (l *Ledger) CostForProvider(provider string, since time.Time) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sum float64
	for _, r := range l.records {
		if r.Provider == provider && !r.Timestamp.Before(since) {
			sum += r.CostUsd
		}
	}
	return sum
}

// DailyCost returns spend since local midnight today. Local midnight (not
// UTC) is the window boundary for every daily query on this ledger.
func (l *Ledger) DailyCost() float64 {
	return l.CostSince(l.localMidnight())
}

// WeeklyCost returns spend over a rolling 7-day window.
func (l *Ledger) WeeklyCost() float64 {
	return l.CostSince(l.clock().Add(-7 * 24 * time.Hour))
}

// ProviderDailyCost returns a provider's spend since local midnight today.
func (l *Ledger) ProviderDailyCost(provider string) float64 {
	return l.CostForProvider(provider, l.localMidnight())
}

// Records returns a defensive copy of all records.
func (l *Ledger) Records() []domain.CostRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.CostRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Load replaces the ledger's contents, for restoring from durable storage.
func (l *Ledger) Load(records []domain.CostRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make([]domain.CostRecord, len(records))
	copy(l.records, records)
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Ledger) localMidnight() time.Time {
	now := l.clock().Local()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
