package autofill

import (
	"time"

	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
)

// DefaultServings is used when Input.Servings is not positive.
const DefaultServings = 2

// Input is everything the allocator needs to fill one week.
type Input struct {
	WeekStart calendar.Date
	Today     calendar.Date
	// MealTypes is the caller's selection; its order decides which meal type
	// is filled first on each day.
	MealTypes []mealplan.MealType
	Existing  []mealplan.ExistingSlot
	Pools     map[mealplan.MealType][]mealplan.CandidateRecipe
	Servings  int
}

type cell struct {
	date     calendar.Date
	mealType mealplan.MealType
}

// Allocate assigns candidates to every empty, non-past cell of the week.
//
// Cells are visited day by day and, within a day, in MealTypes order. Each
// meal type walks its own pool with a cursor that wraps around, so a short
// pool repeats rather than leaving cells empty. A meal type with an empty
// pool contributes nothing. The result depends only on the input.
func Allocate(in Input) []mealplan.QuickPlanAssignment {
	servings := in.Servings
	if servings <= 0 {
		servings = DefaultServings
	}

	work := in.openCells()

	cursors := make(map[mealplan.MealType]int, len(in.MealTypes))
	out := make([]mealplan.QuickPlanAssignment, 0, len(work))
	for _, c := range work {
		pool := in.Pools[c.mealType]
		if len(pool) == 0 {
			continue
		}
		pick := pool[cursors[c.mealType]%len(pool)]
		cursors[c.mealType]++

		out = append(out, mealplan.QuickPlanAssignment{
			Date:       c.date,
			MealType:   c.mealType,
			Source:     pick.Source,
			ExternalID: pick.ExternalID,
			Servings:   servings,
		})
	}
	return out
}

// OpenCells counts the cells Allocate would try to fill: selected meal
// types on today or later that are not booked yet.
func (in Input) OpenCells() int {
	return len(in.openCells())
}

func (in Input) openCells() []cell {
	taken := make(map[string]bool, len(in.Existing))
	for _, s := range in.Existing {
		taken[mealplan.SlotKey(s.Date, s.MealType)] = true
	}

	var work []cell
	for offset := 0; offset < calendar.DaysInWeek; offset++ {
		date := in.WeekStart.AddDays(offset)
		if date.Before(in.Today) {
			continue
		}
		for _, mt := range in.MealTypes {
			key := mealplan.SlotKey(date, mt)
			if taken[key] {
				continue
			}
			taken[key] = true
			work = append(work, cell{date: date, mealType: mt})
		}
	}
	return work
}

// Allocator fills Input.Today from its clock before allocating.
type Allocator struct {
	Now func() time.Time
}

// Allocate runs the package-level Allocate with today's local date.
func (a Allocator) Allocate(in Input) []mealplan.QuickPlanAssignment {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	in.Today = calendar.Today(now())
	return Allocate(in)
}
