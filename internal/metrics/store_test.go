package metrics

import (
	"context"
	"testing"
	"time"

	"meal-planner/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db.SQL)
	s.now = func() time.Time { return now }
	return s
}

func TestStoreRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	first, err := s.Record(ctx, Run{
		WeekStart: "2024-03-04",
		MealTypes: []string{"lunch", "dinner"},
		OpenCells: 10,
		Assigned:  10,
		Status:    StatusApplied,
		PlanID:    "plan-1",
		Latency:   420 * time.Millisecond,
		CreatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "cli", first.Origin)

	_, err = s.Record(ctx, Run{WeekStart: "2024-03-11", MealTypes: []string{"snack"}, DryRun: true, Status: StatusPreview, Origin: "telegram"})
	require.NoError(t, err)

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "2024-03-11", runs[0].WeekStart)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, "telegram", runs[0].Origin)

	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, []string{"lunch", "dinner"}, runs[1].MealTypes)
	assert.Equal(t, 420*time.Millisecond, runs[1].Latency)
	assert.Equal(t, "plan-1", runs[1].PlanID)
	assert.True(t, runs[1].CreatedAt.Equal(now.Add(-time.Hour)))

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreDailyUsage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	for _, r := range []Run{
		{Status: StatusApplied, Assigned: 10, CreatedAt: now},
		{Status: StatusFailed, Assigned: 0, CreatedAt: now.Add(-time.Minute)},
		{Status: StatusApplied, Assigned: 3, CreatedAt: now.AddDate(0, 0, -1)},
		{Status: StatusApplied, Assigned: 7, CreatedAt: now.AddDate(0, 0, -30)},
	} {
		r.WeekStart = "2024-03-04"
		_, err := s.Record(ctx, r)
		require.NoError(t, err)
	}

	usage, err := s.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, DailyUsage{Date: "2024-03-06", Runs: 2, Applied: 1, Assigned: 10}, usage[0])
	assert.Equal(t, DailyUsage{Date: "2024-03-05", Runs: 1, Applied: 1, Assigned: 3}, usage[1])
}

func TestStoreCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 6, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	_, err := s.Record(ctx, Run{WeekStart: "2024-01-01", Status: StatusApplied, CreatedAt: now.AddDate(0, 0, -60)})
	require.NoError(t, err)
	_, err = s.Record(ctx, Run{WeekStart: "2024-03-04", Status: StatusApplied, CreatedAt: now})
	require.NoError(t, err)

	removed, err := s.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2024-03-04", runs[0].WeekStart)
}
