package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock() func() time.Time {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func intPtr(v int) *int { return &v }

func drainConnected(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case ev := <-c.Events():
		assert.Equal(t, "connected", ev.Name)
	default:
		t.Fatal("expected initial connected event")
	}
}

func TestRegisterSendsConnectedEvent(t *testing.T) {
	h := New().WithClock(fixedClock())
	conn := h.Register("c1", nil)
	drainConnected(t, conn)
	assert.Equal(t, 1, h.Len())
}

func TestBroadcastTallyAndDeadConnectionRemoval(t *testing.T) {
	h := New().WithClock(fixedClock())
	alive1 := h.Register("c1", nil)
	alive2 := h.Register("c2", nil)
	dead := h.Register("c3", nil)
	drainConnected(t, alive1)
	drainConnected(t, alive2)
	drainConnected(t, dead)

	dead.CloseTransport()

	succeeded, failed := h.Broadcast("settings.updated", map[string]any{"key": "theme"})
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, h.Len(), "dead connection is removed after the attempt")

	for _, conn := range []*Connection{alive1, alive2} {
		select {
		case ev := <-conn.Events():
			assert.Equal(t, "settings.updated", ev.Name)
			assert.False(t, ev.Timestamp.IsZero())
		default:
			t.Fatal("live connection missed the broadcast")
		}
	}
}

func TestCastToDisplayScoping(t *testing.T) {
	h := New().WithClock(fixedClock())
	scoped := h.Register("c1", intPtr(7))
	other := h.Register("c2", intPtr(8))
	unscoped := h.Register("c3", nil)
	drainConnected(t, scoped)
	drainConnected(t, other)
	drainConnected(t, unscoped)

	succeeded, failed := h.CastToDisplay(7, "schedule.triggered", nil)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, failed)

	select {
	case ev := <-scoped.Events():
		assert.Equal(t, "schedule.triggered", ev.Name)
	default:
		t.Fatal("scoped connection missed its cast")
	}
	assert.Empty(t, other.Events())
	assert.Empty(t, unscoped.Events())
}

func TestSendFailureDeregisters(t *testing.T) {
	h := New().WithClock(fixedClock())
	conn := h.Register("c1", nil)
	drainConnected(t, conn)

	conn.CloseTransport()
	ok := h.Send("c1", "display.debug", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	// unknown connection id is a plain failure
	assert.False(t, h.Send("nope", "x", nil))
}

func TestStaleFailureKeepsReplacedConnection(t *testing.T) {
	h := New().WithClock(fixedClock())
	stale := h.Register("c1", nil)
	drainConnected(t, stale)
	stale.CloseTransport()

	// the id is taken over by a fresh connection while a broadcast may
	// still hold the dead one in its snapshot
	fresh := h.Register("c1", nil)
	drainConnected(t, fresh)

	h.deregisterConn(stale)
	assert.Equal(t, 1, h.Len(), "re-registered connection must survive the stale removal")
	assert.True(t, h.Send("c1", "display.debug", nil))

	h.deregisterConn(fresh)
	assert.Equal(t, 0, h.Len())
}

func TestDeregisterIsIdempotent(t *testing.T) {
	h := New().WithClock(fixedClock())
	h.Register("c1", nil)
	h.Deregister("c1")
	h.Deregister("c1")
	assert.Equal(t, 0, h.Len())
}

func TestKeepalivePushesHeartbeat(t *testing.T) {
	h := New().WithClock(fixedClock())
	conn := h.Register("c1", nil)
	drainConnected(t, conn)

	h.Keepalive()

	select {
	case ev := <-conn.Events():
		assert.Equal(t, "heartbeat", ev.Name)
	default:
		t.Fatal("keepalive frame missing")
	}
}

func TestSlowConsumerDoesNotBlockBroadcast(t *testing.T) {
	h := New().WithClock(fixedClock())
	conn := h.Register("c1", nil)
	drainConnected(t, conn)

	// fill the connection buffer without draining it
	for i := 0; i < connectionBuffer; i++ {
		h.Send("c1", "filler", i)
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast("settings.updated", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow consumer")
	}
	// the overflowing connection was treated as failed and removed
	assert.Equal(t, 0, h.Len())
}
