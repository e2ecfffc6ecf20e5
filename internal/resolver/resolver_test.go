package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/model"
)

func intPtr(v int) *int { return &v }

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func schedule(id, priority int, start time.Time, end *time.Time) model.Schedule {
	return model.Schedule{
		ID:        id,
		ContentID: intPtr(100 + id),
		StartTime: start,
		EndTime:   end,
		Priority:  priority,
		IsActive:  true,
	}
}

func TestHigherPriorityWinsRegardlessOfOrder(t *testing.T) {
	low := schedule(1, 2, at(8, 0), nil)
	high := schedule(2, 10, at(8, 0), nil)

	got := Pick([]model.Schedule{low, high}, at(9, 0))
	assert.NotNil(t, got)
	assert.Equal(t, high.ID, got.ID)

	got = Pick([]model.Schedule{high, low}, at(9, 0))
	assert.Equal(t, high.ID, got.ID)
}

func TestPriorityTieLaterStartWins(t *testing.T) {
	early := schedule(1, 5, at(8, 0), nil)
	late := schedule(2, 5, at(8, 30), nil)

	got := Pick([]model.Schedule{early, late}, at(9, 0))
	assert.Equal(t, late.ID, got.ID)
}

func TestOrderingIsTotal(t *testing.T) {
	// identical priority and start: id breaks the tie deterministically
	a := schedule(1, 5, at(8, 0), nil)
	b := schedule(2, 5, at(8, 0), nil)

	first := Pick([]model.Schedule{a, b}, at(9, 0))
	second := Pick([]model.Schedule{b, a}, at(9, 0))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, first.ID)
}

func TestExpiredScheduleNeverReturned(t *testing.T) {
	end := at(8, 30)
	expired := schedule(1, 10, at(8, 0), &end)
	assert.True(t, expired.IsActive)

	got := Pick([]model.Schedule{expired}, at(9, 0))
	assert.Nil(t, got)
}

func TestInactiveAndFutureExcluded(t *testing.T) {
	inactive := schedule(1, 10, at(8, 0), nil)
	inactive.IsActive = false
	future := schedule(2, 10, at(10, 0), nil)

	got := Pick([]model.Schedule{inactive, future}, at(9, 0))
	assert.Nil(t, got)
}

func TestWindowHandoffExample(t *testing.T) {
	// A: priority 5, starts 09:00, open-ended
	// B: priority 10, 09:30-10:00
	a := schedule(1, 5, at(9, 0), nil)
	endB := at(10, 0)
	b := schedule(2, 10, at(9, 30), &endB)
	candidates := []model.Schedule{a, b}

	got := Pick(candidates, at(9, 45))
	assert.Equal(t, b.ID, got.ID, "B is authoritative while its window is open")

	got = Pick(candidates, at(10, 1))
	assert.Equal(t, a.ID, got.ID, "A takes back over after B expires")
}

func TestResolveActiveSeesGroupSchedules(t *testing.T) {
	store := db.NewMemStore()
	member, _ := store.CreateDisplay("lobby", nil)
	outsider, _ := store.CreateDisplay("cafeteria", nil)
	group, _ := store.CreateDisplayGroup("ground floor", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, member.ID))

	_, err := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(7),
		StartTime:      at(8, 0),
		IsActive:       true,
	})
	assert.NoError(t, err)

	got, err := ResolveActive(store, member.ID, at(9, 0))
	assert.NoError(t, err)
	assert.NotNil(t, got, "group schedule is visible to a member display")

	got, err = ResolveActive(store, outsider.ID, at(9, 0))
	assert.NoError(t, err)
	assert.Nil(t, got, "group schedule is invisible to non-members")
}

func TestResolveActivePrefersDirectWhenHigherPriority(t *testing.T) {
	store := db.NewMemStore()
	d, _ := store.CreateDisplay("lobby", nil)
	group, _ := store.CreateDisplayGroup("all", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d.ID))

	groupSchedule, err := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(1),
		StartTime:      at(8, 0),
		Priority:       1,
		IsActive:       true,
	})
	assert.NoError(t, err)

	direct, err := store.CreateSchedule(db.ScheduleParams{
		DisplayID: &d.ID,
		ContentID: intPtr(2),
		StartTime: at(8, 0),
		Priority:  5,
		IsActive:  true,
	})
	assert.NoError(t, err)

	got, err := ResolveActive(store, d.ID, at(9, 0))
	assert.NoError(t, err)
	assert.Equal(t, direct.ID, got.ID)
	assert.NotEqual(t, groupSchedule.ID, got.ID)
}
