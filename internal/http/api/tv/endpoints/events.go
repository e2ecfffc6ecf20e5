package endpoints

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/middleware"
	livehub "github.com/Brightline-Displays/beacon/internal/hub"
)

type EventsController struct {
	hub    *livehub.Hub
	secret string
}

func NewEventsController(h *livehub.Hub, secret string) *EventsController {
	return &EventsController{hub: h, secret: secret}
}

// EventsModule serves the persistent event stream. A connection presenting
// a valid device token is display-scoped (broadcasts plus casts for that
// display); anything else is an unscoped broadcast-only stream.
func EventsModule(ctl *EventsController) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.Raw(http.MethodGet, "/events", ctl.stream)
	})
}

// wireFrame is the data portion of one SSE message.
type wireFrame struct {
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *EventsController) stream(c *gin.Context) {
	var displayID *int
	if tok := c.Query("token"); tok != "" {
		id, err := middleware.DisplayIDFromToken(tok, e.secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		displayID = &id
	}

	connID := newConnectionID()
	conn := e.hub.Register(connID, displayID)
	defer e.hub.Deregister(connID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-conn.Done():
			return false
		case ev := <-conn.Events():
			if err := sse.Encode(w, sse.Event{
				Event: ev.Name,
				Data:  wireFrame{Payload: ev.Payload, Timestamp: ev.Timestamp},
			}); err != nil {
				log.Debug().Err(err).Str("connection_id", connID).Msg("event stream write failed")
				conn.CloseTransport()
				return false
			}
			return true
		}
	})
}

func newConnectionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(buf)
}
