package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoloop/internal/domain"
	apperrors "autoloop/internal/errors"
	"autoloop/internal/events"
	"autoloop/internal/storage"
)

func seedTask(t *testing.T, store storage.Store, state domain.TaskState) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID: domain.NewID(), ObjectiveID: "o1", CycleID: "c1",
		Title: "Deploy to production", State: state, AutonomyTier: 2,
		CreatedAt: domain.Now(), UpdatedAt: domain.Now(),
	}
	require.NoError(t, store.SaveTask(task))
	return task
}

func TestPending(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(store, nil, nil)

	seedTask(t, store, domain.TaskAwaitingApproval)
	seedTask(t, store, domain.TaskBuilding)
	seedTask(t, store, domain.TaskCompleted)

	pending, err := q.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.TaskAwaitingApproval, pending[0].State)
}

func TestApprove(t *testing.T) {
	store := storage.NewMemoryStore()
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	ch := pub.Subscribe()

	q := New(store, pub, nil)
	task := seedTask(t, store, domain.TaskAwaitingApproval)

	before := task.UpdatedAt
	approved, err := q.Approve(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBuilding, approved.State)
	assert.False(t, approved.UpdatedAt.Before(before))

	stored, err := store.LoadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBuilding, stored.State)

	ev := <-ch
	assert.Equal(t, events.TypeTaskUpdate, ev.Type)
	assert.Equal(t, task.ID, ev.TaskID)

	decisions, err := store.LoadDecisions()
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "approve", decisions[0].Decision)
}

func TestReject(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(store, nil, nil)
	task := seedTask(t, store, domain.TaskAwaitingApproval)

	rejected, err := q.Reject(task.ID, "too risky this week")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskFailed, rejected.State)
	assert.Equal(t, "too risky this week", rejected.Error)
}

func TestRejectDefaultReason(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(store, nil, nil)
	task := seedTask(t, store, domain.TaskAwaitingApproval)

	rejected, err := q.Reject(task.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "rejected by operator", rejected.Error)
}

func TestWrongStateOrMissingTask(t *testing.T) {
	store := storage.NewMemoryStore()
	q := New(store, nil, nil)

	building := seedTask(t, store, domain.TaskBuilding)

	_, err := q.Approve(building.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))

	_, err = q.Reject(building.ID, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))

	_, err = q.Approve("missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePrecondition))

	// The building task is untouched by the failed operations.
	stored, err := store.LoadTask(building.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskBuilding, stored.State)
}
