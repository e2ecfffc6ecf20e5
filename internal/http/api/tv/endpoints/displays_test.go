package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Brightline-Displays/beacon/internal/bus"
	"github.com/Brightline-Displays/beacon/internal/db"
	"github.com/Brightline-Displays/beacon/internal/health"
	"github.com/Brightline-Displays/beacon/internal/http/api"
	"github.com/Brightline-Displays/beacon/internal/http/middleware"
	"github.com/Brightline-Displays/beacon/internal/model"
)

const testSecret = "test-secret"

type tvHarness struct {
	router *gin.Engine
	store  *db.MemStore
	bus    *bus.Bus
}

func newTvHarness(t *testing.T) *tvHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := db.NewMemStore()
	b := bus.New()
	t.Cleanup(b.Close)
	monitor := health.NewMonitor(store, b, nil)

	ctl := NewTvController(store, monitor, nil, testSecret)

	router := gin.New()
	api.MountGroup(router, api.GroupConfig{Prefix: "/api/tv"}, PairingModule(ctl))
	api.MountGroup(router, api.GroupConfig{
		Prefix:     "/api/tv",
		Middleware: []gin.HandlerFunc{middleware.DeviceAuthMiddleware(testSecret)},
	}, DeviceModule(ctl))

	return &tvHarness{router: router, store: store, bus: b}
}

func (h *tvHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func deviceToken(t *testing.T, displayID int) string {
	t.Helper()
	token, err := middleware.GenerateDeviceToken(displayID, testSecret)
	assert.NoError(t, err)
	return token
}

func TestHeartbeatRequiresToken(t *testing.T) {
	h := newTvHarness(t)
	rec := h.do(t, http.MethodPost, "/api/tv/displays/heartbeat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/tv/displays/heartbeat", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHeartbeatRecordsAndFlipsOnline(t *testing.T) {
	h := newTvHarness(t)
	d, _ := h.store.CreateDisplay("lobby", nil)

	rec := h.do(t, http.MethodPost, "/api/tv/displays/heartbeat", deviceToken(t, d.ID), gin.H{
		"metrics": gin.H{"cpu_percent": 12.5},
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, _ := h.store.GetDisplayByID(d.ID)
	assert.Equal(t, model.DisplayOnline, got.Status)
	assert.Equal(t, 1, got.TotalHeartbeats)
}

func TestHeartbeatToleratesEmptyBody(t *testing.T) {
	h := newTvHarness(t)
	d, _ := h.store.CreateDisplay("lobby", nil)

	rec := h.do(t, http.MethodPost, "/api/tv/displays/heartbeat", deviceToken(t, d.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReportErrorDefaultsSeverity(t *testing.T) {
	h := newTvHarness(t)
	d, _ := h.store.CreateDisplay("lobby", nil)

	rec := h.do(t, http.MethodPost, "/api/tv/displays/errors", deviceToken(t, d.ID), gin.H{
		"message": "decoder stalled",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, _ := h.store.ListDisplayErrors(d.ID, 10)
	assert.Len(t, entries, 1)
	assert.Equal(t, health.SeverityLow, entries[0].Severity)
	assert.Equal(t, "decoder stalled", entries[0].Message)
}

func TestCurrentReturnsNoContentWhenNothingResolves(t *testing.T) {
	h := newTvHarness(t)
	d, _ := h.store.CreateDisplay("lobby", nil)

	rec := h.do(t, http.MethodGet, "/api/tv/displays/current", deviceToken(t, d.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCurrentReturnsWinningSchedule(t *testing.T) {
	h := newTvHarness(t)
	d, _ := h.store.CreateDisplay("lobby", nil)

	content := 7
	low, err := h.store.CreateSchedule(db.ScheduleParams{
		DisplayID: &d.ID,
		ContentID: &content,
		StartTime: time.Now().Add(-time.Hour),
		Priority:  1,
		IsActive:  true,
	})
	assert.NoError(t, err)

	other := 8
	high, err := h.store.CreateSchedule(db.ScheduleParams{
		DisplayID: &d.ID,
		ContentID: &other,
		StartTime: time.Now().Add(-30 * time.Minute),
		Priority:  5,
		IsActive:  true,
	})
	assert.NoError(t, err)
	_ = low

	rec := h.do(t, http.MethodGet, "/api/tv/displays/current", deviceToken(t, d.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ScheduleID int  `json:"schedule_id"`
		ContentID  *int `json:"content_id"`
		Priority   int  `json:"priority"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, high.ID, resp.ScheduleID)
	assert.Equal(t, 5, resp.Priority)
	assert.NotNil(t, resp.ContentID)
	assert.Equal(t, 8, *resp.ContentID)
}

func TestPairWithoutCacheUnavailable(t *testing.T) {
	h := newTvHarness(t)
	rec := h.do(t, http.MethodPost, "/api/tv/displays/pair", "", gin.H{
		"code":      "ABC123",
		"device_id": "pi-0001",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
