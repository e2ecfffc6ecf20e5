package db

import (
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/Brightline-Displays/beacon/internal/model"
)

// MemStore is an in-memory Store used by package tests and local
// experiments. It applies the same validations as the SQL store but keeps
// everything in maps.
type MemStore struct {
	mu sync.Mutex

	nextScheduleID int
	nextDisplayID  int
	nextGroupID    int
	nextErrorID    int

	schedules map[int]model.Schedule
	displays  map[int]model.Display
	groups    map[int]model.DisplayGroup
	members   map[int]map[int]bool // group id -> display id set
	errorLog  map[int][]model.DisplayErrorEntry

	now func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		nextScheduleID: 1,
		nextDisplayID:  1,
		nextGroupID:    1,
		nextErrorID:    1,
		schedules:      make(map[int]model.Schedule),
		displays:       make(map[int]model.Display),
		groups:         make(map[int]model.DisplayGroup),
		members:        make(map[int]map[int]bool),
		errorLog:       make(map[int][]model.DisplayErrorEntry),
		now:            time.Now,
	}
}

// WithClock substitutes the store's clock. Tests only.
func (m *MemStore) WithClock(now func() time.Time) *MemStore {
	m.now = now
	return m
}

func (m *MemStore) CreateSchedule(p ScheduleParams) (model.Schedule, error) {
	if err := ValidateScheduleParams(p); err != nil {
		return model.Schedule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := model.Schedule{
		ID:             m.nextScheduleID,
		DisplayID:      p.DisplayID,
		DisplayGroupID: p.DisplayGroupID,
		ContentID:      p.ContentID,
		ContentIDs:     p.ContentIDs,
		PlaylistID:     p.PlaylistID,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		RecurrenceRule: p.RecurrenceRule,
		Priority:       p.Priority,
		IsActive:       p.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.nextScheduleID++
	m.schedules[s.ID] = s
	return s, nil
}

func (m *MemStore) GetSchedule(id int) (model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return model.Schedule{}, sql.ErrNoRows
	}
	return s, nil
}

func (m *MemStore) ListSchedules() ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateSchedule(id int, p ScheduleParams) (model.Schedule, error) {
	if err := ValidateScheduleParams(p); err != nil {
		return model.Schedule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return model.Schedule{}, sql.ErrNoRows
	}
	s.DisplayID = p.DisplayID
	s.DisplayGroupID = p.DisplayGroupID
	s.ContentID = p.ContentID
	s.ContentIDs = p.ContentIDs
	s.PlaylistID = p.PlaylistID
	s.StartTime = p.StartTime
	s.EndTime = p.EndTime
	s.RecurrenceRule = p.RecurrenceRule
	s.Priority = p.Priority
	s.IsActive = p.IsActive
	s.UpdatedAt = m.now()
	m.schedules[id] = s
	return s, nil
}

func (m *MemStore) DeleteSchedule(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

func (m *MemStore) ListCandidateSchedules(displayID int) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.schedules {
		if !s.IsActive {
			continue
		}
		if s.DisplayID != nil && *s.DisplayID == displayID {
			out = append(out, s)
			continue
		}
		if s.DisplayGroupID != nil && m.members[*s.DisplayGroupID][displayID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListActiveSchedulesForGroup(groupID int) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.schedules {
		if s.IsActive && s.DisplayGroupID != nil && *s.DisplayGroupID == groupID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateDisplay(name string, location *string) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d := model.Display{
		ID:               m.nextDisplayID,
		Name:             name,
		Location:         location,
		Status:           model.DisplayOffline,
		UptimePercentage: 100,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.nextDisplayID++
	m.displays[d.ID] = d
	return d, nil
}

func (m *MemStore) GetDisplayByID(id int) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[id]
	if !ok {
		return model.Display{}, sql.ErrNoRows
	}
	return d, nil
}

func (m *MemStore) GetDisplayByDeviceID(deviceID string) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.displays {
		if d.DeviceID != nil && *d.DeviceID == deviceID {
			return d, nil
		}
	}
	return model.Display{}, sql.ErrNoRows
}

func (m *MemStore) ListDisplays() ([]model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Display, 0, len(m.displays))
	for _, d := range m.displays {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateDisplay(id int, name, location *string) (model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[id]
	if !ok {
		return model.Display{}, sql.ErrNoRows
	}
	if name != nil {
		d.Name = *name
	}
	if location != nil {
		d.Location = location
	}
	d.UpdatedAt = m.now()
	m.displays[id] = d
	return d, nil
}

func (m *MemStore) DeleteDisplay(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.displays, id)
	for _, set := range m.members {
		delete(set, id)
	}
	return nil
}

func (m *MemStore) PairDisplay(id int, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.DeviceID = &deviceID
	d.Paired = true
	m.displays[id] = d
	return nil
}

func (m *MemStore) RecordHeartbeat(displayID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return sql.ErrNoRows
	}
	d.LastHeartbeat = &at
	d.TotalHeartbeats++
	m.displays[displayID] = d
	return nil
}

func (m *MemStore) MarkDisplayOnline(displayID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = model.DisplayOnline
	d.LastOnlineAt = &at
	m.displays[displayID] = d
	return nil
}

func (m *MemStore) MarkDisplayOffline(displayID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = model.DisplayOffline
	d.LastOfflineAt = &at
	d.MissedHeartbeats++
	m.displays[displayID] = d
	return nil
}

func (m *MemStore) SetDisplayUptime(displayID int, pct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.displays[displayID]
	if !ok {
		return sql.ErrNoRows
	}
	d.UptimePercentage = pct
	m.displays[displayID] = d
	return nil
}

func (m *MemStore) ListStaleOnlineDisplays(olderThan time.Time) ([]model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Display
	for _, d := range m.displays {
		if d.Status != model.DisplayOnline {
			continue
		}
		if d.LastHeartbeat == nil || d.LastHeartbeat.Before(olderThan) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) InsertDisplayError(displayID int, severity, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := model.DisplayErrorEntry{
		ID:        m.nextErrorID,
		DisplayID: displayID,
		Severity:  severity,
		Message:   message,
		CreatedAt: m.now(),
	}
	m.nextErrorID++
	logEntries := append([]model.DisplayErrorEntry{entry}, m.errorLog[displayID]...)
	if len(logEntries) > 50 {
		logEntries = logEntries[:50]
	}
	m.errorLog[displayID] = logEntries
	return nil
}

func (m *MemStore) ListDisplayErrors(displayID, limit int) ([]model.DisplayErrorEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.errorLog[displayID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]model.DisplayErrorEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *MemStore) CountRecentDisplayErrors(displayID int, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.errorLog[displayID] {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CreateDisplayGroup(name string, description *string) (model.DisplayGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	g := model.DisplayGroup{
		ID:          m.nextGroupID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.nextGroupID++
	m.groups[g.ID] = g
	m.members[g.ID] = make(map[int]bool)
	return g, nil
}

func (m *MemStore) GetDisplayGroupByID(id int) (model.DisplayGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return model.DisplayGroup{}, sql.ErrNoRows
	}
	return g, nil
}

func (m *MemStore) ListDisplayGroups() ([]model.DisplayGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DisplayGroup, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) UpdateDisplayGroup(id int, name, description *string) (model.DisplayGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return model.DisplayGroup{}, sql.ErrNoRows
	}
	if name != nil {
		g.Name = *name
	}
	if description != nil {
		g.Description = description
	}
	g.UpdatedAt = m.now()
	m.groups[id] = g
	return g, nil
}

func (m *MemStore) DeleteDisplayGroup(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.groups, id)
	delete(m.members, id)
	return nil
}

func (m *MemStore) AddDisplayToGroup(groupID, displayID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[groupID]
	if !ok {
		return sql.ErrNoRows
	}
	set[displayID] = true
	return nil
}

func (m *MemStore) RemoveDisplayFromGroup(groupID, displayID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[groupID]
	if !ok || !set[displayID] {
		return sql.ErrNoRows
	}
	delete(set, displayID)
	return nil
}

func (m *MemStore) ListDisplaysInGroup(groupID int) ([]model.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.members[groupID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	var out []model.Display
	for id := range set {
		if d, ok := m.displays[id]; ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListGroupsForDisplay(displayID int) ([]model.DisplayGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DisplayGroup
	for groupID, set := range m.members {
		if set[displayID] {
			out = append(out, m.groups[groupID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
