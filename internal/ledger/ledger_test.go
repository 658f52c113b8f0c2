package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoloop/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func rec(ts time.Time, provider, taskID string, phase domain.Phase, usd float64) domain.CostRecord {
	return domain.CostRecord{
		Timestamp: ts,
		Phase:     phase,
		TaskID:    taskID,
		Provider:  provider,
		Model:     "test-model",
		CostUsd:   usd,
	}
}

func TestEmptyLedgerReturnsZero(t *testing.T) {
	l := New()

	assert.Zero(t, l.Total())
	assert.Zero(t, l.CostSince(time.Now().Add(-time.Hour)))
	assert.Zero(t, l.CostForTask("missing"))
	assert.Zero(t, l.CostForPhase(domain.PhaseScan))
	assert.Zero(t, l.CostForProvider("openai", time.Time{}))
	assert.Zero(t, l.DailyCost())
	assert.Zero(t, l.WeeklyCost())
	assert.Zero(t, l.ProviderDailyCost("openai"))
	assert.Empty(t, l.Records())
}

func TestTotalAndFilters(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	l := New(WithClock(fixedClock(now)))

	l.Record(rec(now.Add(-time.Hour), "openai", "t1", domain.PhaseScan, 1.0))
	l.Record(rec(now.Add(-time.Minute), "claude", "t1", domain.PhaseBuild, 2.5))
	l.Record(rec(now.Add(-time.Minute), "claude", "t2", domain.PhaseBuild, 0.5))
	l.Record(rec(now.Add(-30*time.Hour), "gemini", "", domain.PhaseEval, 4.0))

	assert.InDelta(t, 8.0, l.Total(), 1e-9)
	assert.InDelta(t, 3.5, l.CostForTask("t1"), 1e-9)
	assert.InDelta(t, 0.5, l.CostForTask("t2"), 1e-9)
	assert.InDelta(t, 3.0, l.CostForPhase(domain.PhaseBuild), 1e-9)
	assert.InDelta(t, 3.0, l.CostForProvider("claude", time.Time{}), 1e-9)

	// The gemini record is 30h old: outside today, inside the rolling week.
	assert.InDelta(t, 4.0, l.DailyCost(), 1e-9)
	assert.InDelta(t, 8.0, l.WeeklyCost(), 1e-9)
	assert.InDelta(t, 3.0, l.ProviderDailyCost("claude"), 1e-9)
	assert.Zero(t, l.ProviderDailyCost("gemini"))
}

// TestCostSinceSumLaw verifies costSince(t) <= total() for any cutoff.
func TestCostSinceSumLaw(t *testing.T) {
	now := time.Now()
	l := New()
	for i := 0; i < 100; i++ {
		l.Record(rec(now.Add(-time.Duration(i)*time.Hour), "openai", "", domain.PhaseScan, float64(i)*0.01))
	}

	total := l.Total()
	for _, cutoff := range []time.Time{
		{}, now.Add(-200 * time.Hour), now.Add(-50 * time.Hour), now.Add(-time.Hour), now,
	} {
		assert.LessOrEqual(t, l.CostSince(cutoff), total+1e-9)
	}
}

// TestTaskIsolation verifies costs of distinct tasks never double count.
func TestTaskIsolation(t *testing.T) {
	now := time.Now()
	l := New()
	l.Record(rec(now, "openai", "a", domain.PhaseBuild, 1.0))
	l.Record(rec(now, "openai", "b", domain.PhaseBuild, 2.0))
	l.Record(rec(now, "openai", "", domain.PhaseScan, 3.0))

	assert.LessOrEqual(t, l.CostForTask("a")+l.CostForTask("b"), l.Total()+1e-9)
	// Records without a task ID are excluded from every costForTask.
	assert.InDelta(t, 1.0, l.CostForTask("a"), 1e-9)
	assert.Zero(t, l.CostForTask(""))
}

// TestRecordsRoundTrip verifies Load(Records()) is the identity.
func TestRecordsRoundTrip(t *testing.T) {
	now := time.Now()
	l := New()
	for i := 0; i < 10; i++ {
		l.Record(rec(now.Add(time.Duration(i)*time.Second), "claude", fmt.Sprintf("t%d", i), domain.PhaseBuild, float64(i)))
	}

	snapshot := l.Records()

	restored := New()
	restored.Load(snapshot)

	require.Equal(t, snapshot, restored.Records())
	assert.InDelta(t, l.Total(), restored.Total(), 1e-9)
}

func TestRecordsIsDefensiveCopy(t *testing.T) {
	l := New()
	l.Record(rec(time.Now(), "openai", "t1", domain.PhaseScan, 1.0))

	snap := l.Records()
	snap[0].CostUsd = 999

	assert.InDelta(t, 1.0, l.Total(), 1e-9)
}

func TestDailyWindowBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.Local)
	l := New(WithClock(fixedClock(now)))

	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	l.Record(rec(midnight, "openai", "", domain.PhaseScan, 1.0))                  // at boundary: counts
	l.Record(rec(midnight.Add(-time.Second), "openai", "", domain.PhaseScan, 10)) // yesterday

	assert.InDelta(t, 1.0, l.DailyCost(), 1e-9)
	assert.InDelta(t, 1.0, l.ProviderDailyCost("openai"), 1e-9)
}

// TestAggregatesOverManyRecords exercises all aggregation queries over a
// 10k-record ledger spread across providers, phases and days.
func TestAggregatesOverManyRecords(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	l := New(WithClock(fixedClock(now)))

	providers := []string{"openai", "claude", "gemini"}
	phases := domain.Phases

	var total float64
	for i := 0; i < 10000; i++ {
		ts := now.Add(-time.Duration(i%240) * time.Hour) // spread over 10 days
		l.Record(rec(ts, providers[i%3], fmt.Sprintf("t%d", i%50), phases[i%5], 0.01))
		total += 0.01
	}

	assert.InDelta(t, total, l.Total(), 1e-6)
	assert.Equal(t, 10000, l.Len())

	var byPhase float64
	for _, p := range phases {
		byPhase += l.CostForPhase(p)
	}
	assert.InDelta(t, total, byPhase, 1e-6)

	var byProvider float64
	for _, p := range providers {
		byProvider += l.CostForProvider(p, time.Time{})
	}
	assert.InDelta(t, total, byProvider, 1e-6)

	assert.LessOrEqual(t, l.DailyCost(), l.WeeklyCost())
	assert.LessOrEqual(t, l.WeeklyCost(), l.Total())
	for _, p := range providers {
		assert.LessOrEqual(t, l.ProviderDailyCost(p), l.DailyCost()+1e-9)
	}
}
