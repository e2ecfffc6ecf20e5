// exposes a Store interface that is passed to API calls and background
// components so tests can substitute an in-memory implementation
package db

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Brightline-Displays/beacon/internal/model"
)

type Store interface {
	// schedule functions
	CreateSchedule(p ScheduleParams) (model.Schedule, error)
	GetSchedule(id int) (model.Schedule, error)
	ListSchedules() ([]model.Schedule, error)
	UpdateSchedule(id int, p ScheduleParams) (model.Schedule, error)
	DeleteSchedule(id int) error
	ListCandidateSchedules(displayID int) ([]model.Schedule, error)
	ListActiveSchedulesForGroup(groupID int) ([]model.Schedule, error)

	// display functions
	CreateDisplay(name string, location *string) (model.Display, error)
	GetDisplayByID(id int) (model.Display, error)
	GetDisplayByDeviceID(deviceID string) (model.Display, error)
	ListDisplays() ([]model.Display, error)
	UpdateDisplay(id int, name, location *string) (model.Display, error)
	DeleteDisplay(id int) error
	PairDisplay(id int, deviceID string) error

	// heartbeat / health functions
	RecordHeartbeat(displayID int, at time.Time) error
	MarkDisplayOnline(displayID int, at time.Time) error
	MarkDisplayOffline(displayID int, at time.Time) error
	SetDisplayUptime(displayID int, pct float64) error
	ListStaleOnlineDisplays(olderThan time.Time) ([]model.Display, error)
	InsertDisplayError(displayID int, severity, message string) error
	ListDisplayErrors(displayID, limit int) ([]model.DisplayErrorEntry, error)
	CountRecentDisplayErrors(displayID int, since time.Time) (int, error)

	// group functions
	CreateDisplayGroup(name string, description *string) (model.DisplayGroup, error)
	GetDisplayGroupByID(id int) (model.DisplayGroup, error)
	ListDisplayGroups() ([]model.DisplayGroup, error)
	UpdateDisplayGroup(id int, name, description *string) (model.DisplayGroup, error)
	DeleteDisplayGroup(id int) error
	AddDisplayToGroup(groupID, displayID int) error
	RemoveDisplayFromGroup(groupID, displayID int) error
	ListDisplaysInGroup(groupID int) ([]model.Display, error)
	ListGroupsForDisplay(displayID int) ([]model.DisplayGroup, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore() Store {
	return &pgStore{db: DB}
}
