package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleOnceFires(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.ScheduleOnce("k", 5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("one-shot trigger never fired")
	}
	assert.Eventually(t, func() bool { return !s.Live("k") }, time.Second, 5*time.Millisecond)
}

func TestScheduleOnceReplacesSameKey(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var count atomic.Int32
	s.ScheduleOnce("k", 10*time.Millisecond, func() { count.Add(1) })
	s.ScheduleOnce("k", 10*time.Millisecond, func() { count.Add(1) })
	s.ScheduleOnce("k", 10*time.Millisecond, func() { count.Add(1) })

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load(), "re-arming the same key must not duplicate live jobs")
}

func TestScheduleOnceReplaceWhileFiring(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	staleRan := make(chan struct{}, 1)
	s.ScheduleOnce("k", 10*time.Millisecond, func() { staleRan <- struct{}{} })

	// hold the lock across the firing so the timer's callback parks on it,
	// then re-arm the key while the superseded callback is still pending
	s.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	replacement := time.AfterFunc(time.Hour, func() {})
	s.timers["k"].Stop()
	s.timers["k"] = replacement
	s.mu.Unlock()

	select {
	case <-staleRan:
		t.Fatal("superseded trigger ran after its key was re-armed")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, s.Live("k"), "re-armed registration must survive a superseded firing")
}

func TestCancelStopsFiring(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	var fired atomic.Bool
	s.ScheduleOnce("k", 30*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, s.Cancel("k"))
	assert.False(t, s.Live("k"))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load(), "cancelled trigger must not fire")
	assert.False(t, s.Cancel("k"), "second cancel finds nothing")
}

func TestNegativeDelayFiresImmediately(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	fired := make(chan struct{})
	s.ScheduleOnce("k", -time.Hour, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("past-start trigger should fire immediately")
	}
}

func TestScheduleRepeatingValidatesSpec(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	assert.Error(t, s.ScheduleRepeating("k", "definitely not cron", func() {}))
	assert.False(t, s.Live("k"))

	assert.NoError(t, s.ScheduleRepeating("k", "*/5 * * * *", func() {}))
	assert.True(t, s.Live("k"))

	// replacing under the same key keeps exactly one registration
	assert.NoError(t, s.ScheduleRepeating("k", "0 9 * * 1-5", func() {}))
	assert.True(t, s.Cancel("k"))
	assert.False(t, s.Live("k"))
}

func TestCancelPrefix(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Stop()

	s.ScheduleOnce("12-1", time.Hour, func() {})
	s.ScheduleOnce("12-2", time.Hour, func() {})
	assert.NoError(t, s.ScheduleRepeating("12-2-recurring", "0 9 * * *", func() {}))
	s.ScheduleOnce("120-1", time.Hour, func() {})

	n := s.CancelPrefix("12-")
	assert.Equal(t, 3, n)
	assert.False(t, s.Live("12-1"))
	assert.False(t, s.Live("12-2"))
	assert.False(t, s.Live("12-2-recurring"))
	assert.True(t, s.Live("120-1"), "prefix must not leak across schedule ids")
}
