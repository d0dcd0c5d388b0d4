package models

import (
	"context"
	"testing"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionCase(t *testing.T) {
	cases := []struct {
		from, to CaseStatus
		want     bool
	}{
		{CaseStatusOpen, CaseStatusPending, true},
		{CaseStatusOpen, CaseStatusClosed, true},
		{CaseStatusPending, CaseStatusOpen, true},
		{CaseStatusClosed, CaseStatusOpen, true},
		{CaseStatusClosed, CaseStatusArchived, true},
		{CaseStatusArchived, CaseStatusClosed, true},
		{CaseStatusOpen, CaseStatusArchived, false},
		{CaseStatusPending, CaseStatusArchived, false},
		{CaseStatusArchived, CaseStatusOpen, false},
		{CaseStatusOpen, CaseStatusOpen, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransitionCase(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestApplyCaseStatus_TracksClosedAt(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	c := &Case{Status: CaseStatusOpen}

	require.NoError(t, applyCaseStatus(c, CaseStatusClosed, now))
	assert.Equal(t, CaseStatusClosed, c.Status)
	require.NotNil(t, c.ClosedAt)
	assert.Equal(t, now, *c.ClosedAt)

	// archiving keeps the original close time
	require.NoError(t, applyCaseStatus(c, CaseStatusArchived, now.Add(time.Hour)))
	assert.Equal(t, now, *c.ClosedAt)

	require.NoError(t, applyCaseStatus(c, CaseStatusClosed, now.Add(2*time.Hour)))
	require.NoError(t, applyCaseStatus(c, CaseStatusOpen, now.Add(3*time.Hour)))
	assert.Nil(t, c.ClosedAt)
}

func TestApplyCaseStatus_Rejects(t *testing.T) {
	c := &Case{Status: CaseStatusOpen}

	err := applyCaseStatus(c, CaseStatus("DONE"), time.Now())
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)

	err = applyCaseStatus(c, CaseStatusArchived, time.Now())
	assert.ErrorIs(t, err, utils.ErrInvalidState)
	assert.Equal(t, CaseStatusOpen, c.Status)
}

func TestCompletedAtFor(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	got := completedAtFor(TaskStatusDone, nil, now)
	require.NotNil(t, got)
	assert.Equal(t, now, *got)

	assert.Equal(t, &earlier, completedAtFor(TaskStatusDone, &earlier, now))
	assert.Nil(t, completedAtFor(TaskStatusInProgress, &earlier, now))
	assert.Nil(t, completedAtFor(TaskStatusTodo, nil, now))
}

func TestListTasks_ScopedThroughCase(t *testing.T) {
	db := dryRunDB(t)
	ctx := utils.SetOrganizationIdInContext(context.Background(), "org-a")

	var rows []Task
	stmt := db.WithContext(ctx).Where("case_id = ?", 9).Find(&rows).Statement

	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.SQL.String(), "`tasks`.`case_id` IN (SELECT id FROM `cases` WHERE organization_id = ?)")
	assert.Contains(t, stmt.Vars, "org-a")
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%smith%`, likePattern("  smith "))
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}
