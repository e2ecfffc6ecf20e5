package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/model"
)

// FailedFiring is a job firing that could not complete. Failures are
// retained for inspection, not retried.
type FailedFiring struct {
	Key        string    `json:"key"`
	ScheduleID int       `json:"schedule_id"`
	DisplayID  int       `json:"display_id"`
	At         time.Time `json:"at"`
	Reason     string    `json:"reason"`
}

const failedRetention = 100

// Dispatcher expands schedules into per-display triggers, arms them on the
// Scheduler and publishes firing events. Job state is a derived cache of
// the store: every mutation cancels and recreates rather than patching.
type Dispatcher struct {
	store db.Store
	sched Scheduler
	bus   *bus.Bus
	now   func() time.Time

	mu     sync.Mutex
	failed []FailedFiring
}

func NewDispatcher(store db.Store, sched Scheduler, b *bus.Bus) *Dispatcher {
	return &Dispatcher{
		store: store,
		sched: sched,
		bus:   b,
		now:   time.Now,
	}
}

// WithClock substitutes the dispatcher's clock. Tests only.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func oneShotKey(scheduleID, displayID int) string {
	return fmt.Sprintf("%d-%d", scheduleID, displayID)
}

func recurringKey(scheduleID, displayID int) string {
	return oneShotKey(scheduleID, displayID) + "-recurring"
}

func scheduleKeyPrefix(scheduleID int) string {
	return fmt.Sprintf("%d-", scheduleID)
}

// affectedDisplays resolves the display ids a schedule currently fans out
// to, re-reading group membership from the store every time.
func (d *Dispatcher) affectedDisplays(s model.Schedule) ([]int, error) {
	if s.DisplayID != nil {
		return []int{*s.DisplayID}, nil
	}
	if s.DisplayGroupID == nil {
		return nil, fmt.Errorf("schedule %d has no target", s.ID)
	}
	members, err := d.store.ListDisplaysInGroup(*s.DisplayGroupID)
	if err != nil {
		return nil, fmt.Errorf("expanding group %d: %w", *s.DisplayGroupID, err)
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Arm derives and schedules the triggers for an active schedule: one
// deferred trigger per affected display, plus one repeating trigger per
// display when a recurrence rule is present. Stable keys make re-arming
// idempotent. A group that cannot be expanded skips job creation but is
// not an error for the caller.
func (d *Dispatcher) Arm(s model.Schedule) {
	if !s.IsActive {
		return
	}
	displays, err := d.affectedDisplays(s)
	if err != nil {
		log.Warn().Err(err).Int("schedule_id", s.ID).Msg("skipping job fan-out")
		return
	}

	delay := s.StartTime.Sub(d.now())
	if delay < 0 {
		delay = 0
	}

	for _, displayID := range displays {
		id := displayID
		d.sched.ScheduleOnce(oneShotKey(s.ID, id), delay, func() {
			d.fire(s.ID, id)
		})
		if s.Recurring() {
			if err := d.sched.ScheduleRepeating(recurringKey(s.ID, id), *s.RecurrenceRule, func() {
				d.fire(s.ID, id)
			}); err != nil {
				log.Error().Err(err).
					Int("schedule_id", s.ID).
					Int("display_id", id).
					Msg("failed to arm recurring trigger")
			}
		}
	}
	log.Debug().Int("schedule_id", s.ID).Int("displays", len(displays)).Msg("schedule armed")
}

// Disarm cancels every live trigger derived from the schedule. Group
// membership is re-resolved at cancellation time, and a key-prefix sweep
// catches jobs for members that left the group after expansion. Runs
// synchronously so nothing can fire once the mutating call returns.
func (d *Dispatcher) Disarm(s model.Schedule) {
	if displays, err := d.affectedDisplays(s); err == nil {
		for _, displayID := range displays {
			d.sched.Cancel(oneShotKey(s.ID, displayID))
			d.sched.Cancel(recurringKey(s.ID, displayID))
		}
	}
	d.sched.CancelPrefix(scheduleKeyPrefix(s.ID))
}

// Rearm is the cancel-then-recreate path used on every schedule update.
func (d *Dispatcher) Rearm(s model.Schedule) {
	d.Disarm(s)
	if s.IsActive {
		d.Arm(s)
	}
}

// RearmGroup re-derives jobs for every active schedule targeting the group.
// Invoked by the membership endpoints so adding or removing a display takes
// effect without waiting for the schedule's next update.
func (d *Dispatcher) RearmGroup(groupID int) error {
	schedules, err := d.store.ListActiveSchedulesForGroup(groupID)
	if err != nil {
		return err
	}
	for _, s := range schedules {
		d.Rearm(s)
	}
	return nil
}

// ArmAll arms every active schedule. Called once at boot to rebuild the
// derived job state from the store.
func (d *Dispatcher) ArmAll() error {
	schedules, err := d.store.ListSchedules()
	if err != nil {
		return err
	}
	for _, s := range schedules {
		if s.IsActive {
			d.Arm(s)
		}
	}
	return nil
}

// fire executes one trigger. The store is consulted at fire time so a
// trigger that outlived its schedule (deleted, deactivated or expired) is
// a no-op rather than a stale push.
func (d *Dispatcher) fire(scheduleID, displayID int) {
	now := d.now()

	s, err := d.store.GetSchedule(scheduleID)
	if err != nil {
		d.recordFailure(scheduleID, displayID, now, fmt.Sprintf("load schedule: %v", err))
		return
	}
	if !s.IsActive {
		return
	}
	if s.EndTime != nil && s.EndTime.Before(now) {
		return
	}

	contentID := s.PrimaryContentID()
	d.bus.Publish(bus.TopicScheduleTriggered, bus.TriggeredPayload{
		ScheduleID:  scheduleID,
		DisplayID:   displayID,
		ContentID:   contentID,
		TriggeredAt: now,
	})
	changed := bus.ContentChangedPayload{
		DisplayID:  displayID,
		ContentID:  contentID,
		Source:     "schedule",
		ScheduleID: scheduleID,
	}
	d.bus.Publish(bus.DisplayContentTopic(displayID), changed)
	d.bus.Publish(bus.TopicDisplayContentChanged, changed)

	log.Info().
		Int("schedule_id", scheduleID).
		Int("display_id", displayID).
		Int("content_id", contentID).
		Msg("schedule triggered")
}

func (d *Dispatcher) recordFailure(scheduleID, displayID int, at time.Time, reason string) {
	log.Error().
		Int("schedule_id", scheduleID).
		Int("display_id", displayID).
		Str("reason", reason).
		Msg("job firing failed")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, FailedFiring{
		Key:        oneShotKey(scheduleID, displayID),
		ScheduleID: scheduleID,
		DisplayID:  displayID,
		At:         at,
		Reason:     reason,
	})
	if len(d.failed) > failedRetention {
		d.failed = d.failed[len(d.failed)-failedRetention:]
	}
}

// FailedFirings returns the retained firing failures, newest last.
func (d *Dispatcher) FailedFirings() []FailedFiring {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FailedFiring, len(d.failed))
	copy(out, d.failed)
	return out
}
