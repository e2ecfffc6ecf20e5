package db

import (
	"database/sql"
	"fmt"

	"github.com/Brightline-Displays/beacon/internal/model"
)

func (s *pgStore) CreateDisplayGroup(name string, description *string) (model.DisplayGroup, error) {
	var g model.DisplayGroup
	if name == "" {
		return g, fmt.Errorf("group name is required")
	}
	err := s.db.Get(&g, `
		INSERT INTO display_groups (name, description, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id, name, description, created_at, updated_at
	`, name, description)
	return g, err
}

func (s *pgStore) GetDisplayGroupByID(id int) (model.DisplayGroup, error) {
	var g model.DisplayGroup
	err := s.db.Get(&g, `
		SELECT id, name, description, created_at, updated_at
		  FROM display_groups
		 WHERE id = $1
	`, id)
	return g, err
}

func (s *pgStore) ListDisplayGroups() ([]model.DisplayGroup, error) {
	var groups []model.DisplayGroup
	err := s.db.Select(&groups, `
		SELECT id, name, description, created_at, updated_at
		  FROM display_groups
		 ORDER BY name ASC, id ASC
	`)
	return groups, err
}

func (s *pgStore) UpdateDisplayGroup(id int, name, description *string) (model.DisplayGroup, error) {
	var g model.DisplayGroup
	err := s.db.Get(&g, `
		UPDATE display_groups
		   SET name        = COALESCE($1, name),
		       description = COALESCE($2, description),
		       updated_at  = now()
		 WHERE id = $3
		RETURNING id, name, description, created_at, updated_at
	`, name, description, id)
	if err == sql.ErrNoRows {
		return g, sql.ErrNoRows
	}
	return g, err
}

func (s *pgStore) DeleteDisplayGroup(id int) error {
	res, err := s.db.Exec(`DELETE FROM display_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *pgStore) AddDisplayToGroup(groupID, displayID int) error {
	// membership insert is idempotent
	_, err := s.db.Exec(`
		INSERT INTO display_group_members (group_id, display_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, groupID, displayID)
	return err
}

func (s *pgStore) RemoveDisplayFromGroup(groupID, displayID int) error {
	res, err := s.db.Exec(`
		DELETE FROM display_group_members
		 WHERE group_id = $1 AND display_id = $2
	`, groupID, displayID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *pgStore) ListDisplaysInGroup(groupID int) ([]model.Display, error) {
	var displays []model.Display
	err := s.db.Select(&displays, `
		SELECT d.id, d.device_id, d.name, d.location, d.status, d.paired,
		       d.last_heartbeat, d.last_online_at, d.last_offline_at,
		       d.total_heartbeats, d.missed_heartbeats, d.uptime_percentage,
		       d.created_at, d.updated_at
		  FROM display_group_members m
		  JOIN displays d ON d.id = m.display_id
		 WHERE m.group_id = $1
		 ORDER BY d.name ASC, d.id ASC
	`, groupID)
	return displays, err
}

func (s *pgStore) ListGroupsForDisplay(displayID int) ([]model.DisplayGroup, error) {
	var groups []model.DisplayGroup
	err := s.db.Select(&groups, `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at
		  FROM display_group_members m
		  JOIN display_groups g ON g.id = m.group_id
		 WHERE m.display_id = $1
		 ORDER BY g.name ASC, g.id ASC
	`, displayID)
	return groups, err
}
