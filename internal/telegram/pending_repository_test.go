package telegram

import (
	"context"
	"testing"
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/database"
	"meal-planner/internal/mealplan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingRepo(t *testing.T) (*PendingRepository, *time.Time) {
	t.Helper()
	db, err := database.NewDB(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
	repo := NewPendingRepository(db.SQL)
	repo.now = func() time.Time { return now }
	return repo, &now
}

func TestPendingRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo, _ := newPendingRepo(t)
		id, err := repo.Create(ctx, Pending{
			ChatID:    10,
			UserID:    42,
			WeekStart: calendar.New(2024, time.March, 4),
			MealTypes: []mealplan.MealType{mealplan.Lunch, mealplan.Dinner},
			Cuisine:   "korean",
			Assigned:  1,
			Slots: []PreviewSlot{{
				QuickPlanAssignment: mealplan.QuickPlanAssignment{
					Date: calendar.New(2024, time.March, 7), MealType: mealplan.Dinner,
					Source: mealplan.SourceTheMealDB, ExternalID: "52772", Servings: 3,
				},
				Title: "Teriyaki Chicken",
			}},
		}, 30*time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		p, err := repo.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, int64(42), p.UserID)
		assert.Equal(t, "2024-03-04", p.WeekStart.String())
		assert.Equal(t, []mealplan.MealType{mealplan.Lunch, mealplan.Dinner}, p.MealTypes)
		assert.Equal(t, "korean", p.Cuisine)
		assert.Equal(t, 1, p.Assigned)
		require.Len(t, p.Slots, 1)
		assert.Equal(t, "Teriyaki Chicken", p.Slots[0].Title)
		assert.Equal(t, []mealplan.QuickPlanAssignment{{
			Date: calendar.New(2024, time.March, 7), MealType: mealplan.Dinner,
			Source: mealplan.SourceTheMealDB, ExternalID: "52772", Servings: 3,
		}}, p.Assignments())
	})

	t.Run("Expired", func(t *testing.T) {
		repo, now := newPendingRepo(t)
		id, err := repo.Create(ctx, Pending{WeekStart: calendar.New(2024, time.March, 4), MealTypes: []mealplan.MealType{mealplan.Dinner}}, time.Minute)
		require.NoError(t, err)

		*now = now.Add(2 * time.Minute)
		p, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p)

		n, err := repo.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Delete", func(t *testing.T) {
		repo, _ := newPendingRepo(t)
		id, err := repo.Create(ctx, Pending{WeekStart: calendar.New(2024, time.March, 4), MealTypes: []mealplan.MealType{mealplan.Dinner}}, time.Minute)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, id))
		require.NoError(t, repo.Delete(ctx, id))
		p, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("UnknownID", func(t *testing.T) {
		repo, _ := newPendingRepo(t)
		p, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("InvalidTTL", func(t *testing.T) {
		repo, _ := newPendingRepo(t)
		_, err := repo.Create(ctx, Pending{}, 0)
		assert.Error(t, err)
	})
}
