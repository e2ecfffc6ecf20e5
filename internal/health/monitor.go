// Package health ingests display heartbeats, demotes stale displays on a
// fixed-interval sweep, and scores display health.
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/model"
)

const (
	// AssumedHeartbeatInterval is the cadence displays are expected to
	// report on; it sizes the estimated offline time per missed beat.
	AssumedHeartbeatInterval = 30 * time.Second

	// StaleThreshold is how long a display may go silent before the sweep
	// flips it offline.
	StaleThreshold = 5 * time.Minute

	// SweepInterval is the cadence of the staleness sweep. The sweep runs
	// on its own timer, not per heartbeat, so its cost does not scale with
	// heartbeat frequency.
	SweepInterval = time.Minute

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// MetricsCache stores the latest performance-metrics blob per display.
type MetricsCache interface {
	SetMetrics(ctx context.Context, displayID int, m model.PerformanceMetrics)
	GetMetrics(ctx context.Context, displayID int) (model.PerformanceMetrics, bool)
}

// Monitor tracks display connectivity and health.
type Monitor struct {
	store db.Store
	bus   *bus.Bus
	cache MetricsCache
	now   func() time.Time
}

func NewMonitor(store db.Store, b *bus.Bus, cache MetricsCache) *Monitor {
	return &Monitor{store: store, bus: b, cache: cache, now: time.Now}
}

// WithClock substitutes the monitor's clock. Tests only.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Heartbeat processes one heartbeat: stamps last-seen, bumps the counter,
// flips an offline display back online (publishing display.online exactly
// once per transition) and recomputes uptime. Metrics are cached as-is;
// fields the blob does not carry are simply absent.
func (m *Monitor) Heartbeat(ctx context.Context, displayID int, metrics *model.PerformanceMetrics) error {
	now := m.now()

	d, err := m.store.GetDisplayByID(displayID)
	if err != nil {
		return err
	}
	if err := m.store.RecordHeartbeat(displayID, now); err != nil {
		return err
	}

	if d.Status != model.DisplayOnline {
		if err := m.store.MarkDisplayOnline(displayID, now); err != nil {
			return err
		}
		m.bus.Publish(bus.TopicDisplayOnline, bus.DisplayStatusPayload{
			DisplayID:   displayID,
			DisplayName: d.Name,
			Timestamp:   now,
		})
		log.Info().Int("display_id", displayID).Msg("display back online")
	}

	pct := uptimePercentage(d.CreatedAt, d.MissedHeartbeats, now)
	if err := m.store.SetDisplayUptime(displayID, pct); err != nil {
		return err
	}

	if metrics != nil && m.cache != nil {
		m.cache.SetMetrics(ctx, displayID, *metrics)
	}
	return nil
}

// uptimePercentage estimates uptime as the share of the display's lifetime
// it was not presumed offline, clamped to [0,100]. Offline time is
// estimated from missed heartbeats at the assumed cadence.
func uptimePercentage(createdAt time.Time, missedHeartbeats int, now time.Time) float64 {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 100
	}
	offline := time.Duration(missedHeartbeats) * AssumedHeartbeatInterval
	pct := (elapsed - offline).Seconds() / elapsed.Seconds() * 100
	return clamp(pct, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sweep finds displays still marked online with no heartbeat inside the
// staleness threshold, flips each offline and publishes display.offline
// once per flip.
func (m *Monitor) Sweep() {
	now := m.now()
	stale, err := m.store.ListStaleOnlineDisplays(now.Add(-StaleThreshold))
	if err != nil {
		log.Error().Err(err).Msg("staleness sweep query failed")
		return
	}
	for _, d := range stale {
		if err := m.store.MarkDisplayOffline(d.ID, now); err != nil {
			log.Error().Err(err).Int("display_id", d.ID).Msg("failed to mark display offline")
			continue
		}
		m.bus.Publish(bus.TopicDisplayOffline, bus.DisplayStatusPayload{
			DisplayID:   d.ID,
			DisplayName: d.Name,
			Timestamp:   now,
		})
		log.Warn().Int("display_id", d.ID).Time("last_heartbeat", deref(d.LastHeartbeat)).Msg("display went stale")
	}
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Run executes the staleness sweep on its fixed interval until the context
// ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// LogError prepends to the display's bounded error log. High-severity
// entries additionally publish display.error.high.
func (m *Monitor) LogError(displayID int, message, severity string) error {
	if err := m.store.InsertDisplayError(displayID, severity, message); err != nil {
		return err
	}
	if severity == SeverityHigh {
		name := ""
		if d, err := m.store.GetDisplayByID(displayID); err == nil {
			name = d.Name
		}
		m.bus.Publish(bus.TopicDisplayErrorHigh, bus.DisplayErrorPayload{
			DisplayID:   displayID,
			DisplayName: name,
			Message:     message,
			Timestamp:   m.now(),
		})
	}
	return nil
}

// HealthScore computes the display's 0-100 health score: start at 100,
// minus 50 when offline, minus the uptime shortfall below 95, minus 2 per
// error in the last 24h, minus 5 each for CPU and memory above 80%.
func (m *Monitor) HealthScore(ctx context.Context, displayID int) (float64, error) {
	d, err := m.store.GetDisplayByID(displayID)
	if err != nil {
		return 0, err
	}

	score := 100.0
	if d.Status != model.DisplayOnline {
		score -= 50
	}
	if d.UptimePercentage < 95 {
		score -= 95 - d.UptimePercentage
	}

	recent, err := m.store.CountRecentDisplayErrors(displayID, m.now().Add(-24*time.Hour))
	if err == nil {
		score -= float64(2 * recent)
	}

	if m.cache != nil {
		if metrics, ok := m.cache.GetMetrics(ctx, displayID); ok {
			if metrics.CPUPercent > 80 {
				score -= 5
			}
			if metrics.MemoryPercent > 80 {
				score -= 5
			}
		}
	}
	return clamp(score, 0, 100), nil
}
