// Package jobs turns active schedules into deferred and repeating
// execution triggers and keeps them consistent with the store.
package jobs

import (
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/recurrence"
)

// Scheduler arms and cancels keyed triggers. Keys are stable so re-arming
// the same key replaces the live trigger instead of duplicating it.
type Scheduler interface {
	ScheduleOnce(key string, delay time.Duration, fn func())
	ScheduleRepeating(key, spec string, fn func()) error
	Cancel(key string) bool
	CancelPrefix(prefix string) int
	Stop()
}

// TimerScheduler backs one-shot triggers with a keyed timer map and
// repeating triggers with a cron runner.
type TimerScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
	stopped bool
}

var _ Scheduler = (*TimerScheduler)(nil)

func NewTimerScheduler() *TimerScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))
	c.Start()
	return &TimerScheduler{
		cron:    c,
		timers:  make(map[string]*time.Timer),
		entries: make(map[string]cron.EntryID),
	}
}

// ScheduleOnce arms a deferred trigger. An existing trigger under the same
// key is replaced.
func (t *TimerScheduler) ScheduleOnce(key string, delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if old, ok := t.timers[key]; ok {
		old.Stop()
	}
	var tm *time.Timer
	tm = time.AfterFunc(delay, func() {
		t.mu.Lock()
		// a replaced or cancelled timer may still fire; only the timer
		// currently registered under the key is allowed to run, so a stale
		// callback must not touch a registration it no longer owns
		owner := t.timers[key] == tm
		if owner {
			delete(t.timers, key)
		}
		stopped := t.stopped
		t.mu.Unlock()
		if !owner || stopped {
			return
		}
		fn()
	})
	t.timers[key] = tm
}

// ScheduleRepeating arms a cron-cadence trigger. An existing trigger under
// the same key is replaced.
func (t *TimerScheduler) ScheduleRepeating(key, spec string, fn func()) error {
	if err := recurrence.Validate(spec); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	if old, ok := t.entries[key]; ok {
		t.cron.Remove(old)
	}
	id, err := t.cron.AddFunc(spec, fn)
	if err != nil {
		return err
	}
	t.entries[key] = id
	return nil
}

// Cancel stops the trigger under the key, one-shot or repeating. Returns
// whether anything was live.
func (t *TimerScheduler) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(key)
}

func (t *TimerScheduler) cancelLocked(key string) bool {
	found := false
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
		found = true
	}
	if entry, ok := t.entries[key]; ok {
		t.cron.Remove(entry)
		delete(t.entries, key)
		found = true
	}
	return found
}

// CancelPrefix cancels every live trigger whose key starts with the prefix
// and returns how many were cancelled. Used to sweep up jobs for group
// members that left the group after expansion.
func (t *TimerScheduler) CancelPrefix(prefix string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys []string
	for key := range t.timers {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range t.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	n := 0
	for _, key := range keys {
		if t.cancelLocked(key) {
			n++
		}
	}
	return n
}

// Stop cancels everything and halts the cron runner.
func (t *TimerScheduler) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	for key, entry := range t.entries {
		t.cron.Remove(entry)
		delete(t.entries, key)
	}
	t.mu.Unlock()

	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Debug().Msg("job scheduler stopped")
}

// Live reports whether any trigger is currently armed under the key.
func (t *TimerScheduler) Live(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, a := t.timers[key]
	_, b := t.entries[key]
	return a || b
}
