package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func newHarness(t *testing.T) (*db.MemStore, *TimerScheduler, *bus.Bus, *Dispatcher) {
	t.Helper()
	store := db.NewMemStore()
	sched := NewTimerScheduler()
	t.Cleanup(sched.Stop)
	b := bus.New()
	t.Cleanup(b.Close)
	return store, sched, b, NewDispatcher(store, sched, b)
}

func collect(b *bus.Bus, topic string) <-chan bus.Event {
	ch := make(chan bus.Event, 16)
	b.Subscribe(topic, func(ev bus.Event) { ch <- ev })
	return ch
}

func TestArmDirectTargetFiresEvents(t *testing.T) {
	store, _, b, d := newHarness(t)
	display, _ := store.CreateDisplay("lobby", nil)
	triggered := collect(b, bus.TopicScheduleTriggered)
	changed := collect(b, bus.TopicDisplayContentChanged)

	s, err := store.CreateSchedule(db.ScheduleParams{
		DisplayID: &display.ID,
		ContentID: intPtr(42),
		StartTime: time.Now().Add(20 * time.Millisecond),
		IsActive:  true,
	})
	assert.NoError(t, err)
	d.Arm(s)

	select {
	case ev := <-triggered:
		payload := ev.Payload.(bus.TriggeredPayload)
		assert.Equal(t, s.ID, payload.ScheduleID)
		assert.Equal(t, display.ID, payload.DisplayID)
		assert.Equal(t, 42, payload.ContentID)
	case <-time.After(2 * time.Second):
		t.Fatal("schedule.triggered never published")
	}
	select {
	case ev := <-changed:
		payload := ev.Payload.(bus.ContentChangedPayload)
		assert.Equal(t, "schedule", payload.Source)
		assert.Equal(t, 42, payload.ContentID)
	case <-time.After(2 * time.Second):
		t.Fatal("display.content.changed never published")
	}
}

func TestArmGroupFansOutPerMember(t *testing.T) {
	store, sched, _, d := newHarness(t)
	d1, _ := store.CreateDisplay("a", nil)
	d2, _ := store.CreateDisplay("b", nil)
	group, _ := store.CreateDisplayGroup("floor", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d1.ID))
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d2.ID))

	s, err := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(1),
		StartTime:      time.Now().Add(time.Hour),
		RecurrenceRule: strPtr("0 9 * * 1-5"),
		IsActive:       true,
	})
	assert.NoError(t, err)
	d.Arm(s)

	for _, id := range []int{d1.ID, d2.ID} {
		assert.True(t, sched.Live(oneShotKey(s.ID, id)), "one-shot job for display %d", id)
		assert.True(t, sched.Live(recurringKey(s.ID, id)), "recurring job for display %d", id)
	}
}

func TestDisarmCancelsOneShotAndRecurring(t *testing.T) {
	store, sched, _, d := newHarness(t)
	d1, _ := store.CreateDisplay("a", nil)
	group, _ := store.CreateDisplayGroup("floor", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d1.ID))

	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(1),
		StartTime:      time.Now().Add(time.Hour),
		RecurrenceRule: strPtr("0 9 * * *"),
		IsActive:       true,
	})
	d.Arm(s)
	assert.True(t, sched.Live(oneShotKey(s.ID, d1.ID)))

	d.Disarm(s)
	assert.False(t, sched.Live(oneShotKey(s.ID, d1.ID)))
	assert.False(t, sched.Live(recurringKey(s.ID, d1.ID)))
}

func TestDisarmSweepsRemovedGroupMembers(t *testing.T) {
	store, sched, _, d := newHarness(t)
	d1, _ := store.CreateDisplay("a", nil)
	group, _ := store.CreateDisplayGroup("floor", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d1.ID))

	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(1),
		StartTime:      time.Now().Add(time.Hour),
		IsActive:       true,
	})
	d.Arm(s)

	// the display leaves the group after expansion; cancellation must
	// still find its job
	assert.NoError(t, store.RemoveDisplayFromGroup(group.ID, d1.ID))
	d.Disarm(s)
	assert.False(t, sched.Live(oneShotKey(s.ID, d1.ID)))
}

func TestFireAfterDeleteIsNoOp(t *testing.T) {
	store, _, b, d := newHarness(t)
	display, _ := store.CreateDisplay("lobby", nil)
	triggered := collect(b, bus.TopicScheduleTriggered)

	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayID: &display.ID,
		ContentID: intPtr(1),
		StartTime: time.Now(),
		IsActive:  true,
	})
	assert.NoError(t, store.DeleteSchedule(s.ID))

	// simulate a trigger that raced the delete
	d.fire(s.ID, display.ID)

	select {
	case <-triggered:
		t.Fatal("deleted schedule must not trigger")
	case <-time.After(50 * time.Millisecond):
	}
	failures := d.FailedFirings()
	assert.Len(t, failures, 1, "missing schedule is retained as a failed firing")
	assert.Equal(t, s.ID, failures[0].ScheduleID)
}

func TestFireAfterEndTimeIsNoOp(t *testing.T) {
	store, _, b, d := newHarness(t)
	display, _ := store.CreateDisplay("lobby", nil)
	triggered := collect(b, bus.TopicScheduleTriggered)

	end := time.Now().Add(-time.Minute)
	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayID: &display.ID,
		ContentID: intPtr(1),
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   &end,
		IsActive:  true,
	})
	d.fire(s.ID, display.ID)

	select {
	case <-triggered:
		t.Fatal("expired schedule must not trigger")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, d.FailedFirings(), "expiry is not a failure")
}

func TestRearmGroupPicksUpNewMember(t *testing.T) {
	store, sched, _, d := newHarness(t)
	d1, _ := store.CreateDisplay("a", nil)
	d2, _ := store.CreateDisplay("b", nil)
	group, _ := store.CreateDisplayGroup("floor", nil)
	assert.NoError(t, store.AddDisplayToGroup(group.ID, d1.ID))

	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayGroupID: &group.ID,
		ContentID:      intPtr(1),
		StartTime:      time.Now().Add(time.Hour),
		IsActive:       true,
	})
	d.Arm(s)
	assert.False(t, sched.Live(oneShotKey(s.ID, d2.ID)))

	assert.NoError(t, store.AddDisplayToGroup(group.ID, d2.ID))
	assert.NoError(t, d.RearmGroup(group.ID))
	assert.True(t, sched.Live(oneShotKey(s.ID, d1.ID)))
	assert.True(t, sched.Live(oneShotKey(s.ID, d2.ID)))
}

func TestArmInactiveIsNoOp(t *testing.T) {
	store, sched, _, d := newHarness(t)
	display, _ := store.CreateDisplay("lobby", nil)

	s, _ := store.CreateSchedule(db.ScheduleParams{
		DisplayID: &display.ID,
		ContentID: intPtr(1),
		StartTime: time.Now().Add(time.Hour),
		IsActive:  false,
	})
	d.Arm(s)
	assert.False(t, sched.Live(oneShotKey(s.ID, display.ID)))
}
