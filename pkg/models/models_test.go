package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCaseDefaultsFamilyToItself(t *testing.T) {
	kase := NewCase("building-permit", "")

	assert.Equal(t, CaseStatusRunning, kase.Status)
	assert.Equal(t, kase.ID, kase.FamilyID)
}

func TestNewCaseKeepsExplicitFamily(t *testing.T) {
	root := NewCase("building-permit", "")
	child := NewCase("circulation", root.FamilyID)

	assert.Equal(t, root.ID, child.FamilyID)
}

func TestCaseComplete(t *testing.T) {
	kase := NewCase("building-permit", "")
	now := time.Now().UTC()

	err := kase.Complete(Identity{Username: "admin", Group: "municipality"}, now)
	require.NoError(t, err)

	assert.Equal(t, CaseStatusCompleted, kase.Status)
	require.NotNil(t, kase.ClosedAt)
	assert.Equal(t, now, *kase.ClosedAt)
	assert.Equal(t, "admin", kase.ClosedByUser)
	assert.Equal(t, "municipality", kase.ClosedByGroup)
}

func TestCaseCompleteTwiceFails(t *testing.T) {
	kase := NewCase("building-permit", "")
	now := time.Now().UTC()

	require.NoError(t, kase.Complete(Identity{Username: "admin"}, now))

	err := kase.Cancel(Identity{Username: "admin"}, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNewWorkItemDefaultsFromTask(t *testing.T) {
	leadTime := 3600
	task := &Task{
		Slug:        "fill-form",
		Name:        "Fill out the form",
		Description: "Request the missing data",
		Type:        TaskTypeSimple,
		LeadTime:    &leadTime,
	}
	kase := NewCase("building-permit", "")

	item := NewWorkItem(task, kase, nil, nil)

	assert.Equal(t, WorkItemStatusReady, item.Status)
	assert.Equal(t, "Fill out the form", item.Name)
	assert.Equal(t, "Request the missing data", item.Description)
	assert.Equal(t, kase.ID, item.CaseID)
	assert.Empty(t, item.AddressedGroups)
	assert.Empty(t, item.ControllingGroups)

	require.NotNil(t, item.Deadline)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), *item.Deadline, time.Minute)
}

func TestNewWorkItemWithoutLeadTimeHasNoDeadline(t *testing.T) {
	task := &Task{Slug: "fill-form", Name: "Fill out the form", Type: TaskTypeSimple}

	item := NewWorkItem(task, NewCase("building-permit", ""), []string{"legal"}, []string{"audit"})

	assert.Nil(t, item.Deadline)
	assert.Equal(t, []string{"legal"}, item.AddressedGroups)
	assert.Equal(t, []string{"audit"}, item.ControllingGroups)
}

func TestWorkItemTransitions(t *testing.T) {
	identity := Identity{Username: "clerk", Group: "legal"}
	now := time.Now().UTC()

	tests := []struct {
		name       string
		transition func(*WorkItem) error
		status     WorkItemStatus
	}{
		{"complete", func(w *WorkItem) error { return w.Complete(identity, now) }, WorkItemStatusCompleted},
		{"cancel", func(w *WorkItem) error { return w.Cancel(identity, now) }, WorkItemStatusCanceled},
		{"skip", func(w *WorkItem) error { return w.Skip(identity, now) }, WorkItemStatusSkipped},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			task := &Task{Slug: "review", Name: "Review", Type: TaskTypeSimple}
			item := NewWorkItem(task, NewCase("building-permit", ""), nil, nil)

			require.NoError(t, testCase.transition(item))
			assert.Equal(t, testCase.status, item.Status)
			assert.Equal(t, "clerk", item.ClosedByUser)
			assert.Equal(t, "legal", item.ClosedByGroup)
			require.NotNil(t, item.ClosedAt)

			// Terminal: a second transition must fail without changes.
			err := testCase.transition(item)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, testCase.status, item.Status)
		})
	}
}

func TestReadyWorkItemHasNoClosingFields(t *testing.T) {
	task := &Task{Slug: "review", Name: "Review", Type: TaskTypeSimple}
	item := NewWorkItem(task, NewCase("building-permit", ""), nil, nil)

	assert.Nil(t, item.ClosedAt)
	assert.Empty(t, item.ClosedByUser)
	assert.Empty(t, item.ClosedByGroup)
}

func TestCalculateDeadline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	leadTime := 86400
	task := &Task{Slug: "review", LeadTime: &leadTime}

	deadline := task.CalculateDeadline(now)
	require.NotNil(t, deadline)
	assert.Equal(t, now.Add(24*time.Hour), *deadline)

	assert.Nil(t, (&Task{Slug: "review"}).CalculateDeadline(now))
}
