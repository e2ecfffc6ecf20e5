package db

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Brightline-Displays/beacon/internal/model"
)

const displayColumns = `
	id, device_id, name, location, status, paired,
	last_heartbeat, last_online_at, last_offline_at,
	total_heartbeats, missed_heartbeats, uptime_percentage,
	created_at, updated_at`

func (s *pgStore) CreateDisplay(name string, location *string) (model.Display, error) {
	var d model.Display
	q := `
	INSERT INTO displays (name, location, status, created_at, updated_at)
	VALUES ($1, $2, 'offline', now(), now())
	RETURNING` + displayColumns + `;`
	if err := s.db.Get(&d, q, name, location); err != nil {
		log.Error().Err(err).Msg("CreateDisplay failed")
		return model.Display{}, err
	}
	return d, nil
}

func (s *pgStore) GetDisplayByID(id int) (model.Display, error) {
	var d model.Display
	err := s.db.Get(&d, `SELECT`+displayColumns+` FROM displays WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("display_id", id).Msg("GetDisplayByID failed")
	}
	return d, err
}

func (s *pgStore) GetDisplayByDeviceID(deviceID string) (model.Display, error) {
	var d model.Display
	err := s.db.Get(&d, `SELECT`+displayColumns+` FROM displays WHERE device_id = $1;`, deviceID)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("GetDisplayByDeviceID failed")
	}
	return d, err
}

func (s *pgStore) ListDisplays() ([]model.Display, error) {
	var out []model.Display
	err := s.db.Select(&out, `SELECT`+displayColumns+` FROM displays ORDER BY name ASC, id ASC;`)
	if err != nil {
		log.Error().Err(err).Msg("ListDisplays failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) UpdateDisplay(id int, name, location *string) (model.Display, error) {
	var d model.Display
	q := `
	UPDATE displays
	   SET name = COALESCE($1, name),
	       location = COALESCE($2, location),
	       updated_at = now()
	 WHERE id = $3
	RETURNING` + displayColumns + `;`
	if err := s.db.Get(&d, q, name, location, id); err != nil {
		log.Error().Err(err).Int("display_id", id).Msg("UpdateDisplay failed")
		return model.Display{}, err
	}
	return d, nil
}

func (s *pgStore) DeleteDisplay(id int) error {
	_, err := s.db.Exec(`DELETE FROM displays WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("display_id", id).Msg("DeleteDisplay failed")
	}
	return err
}

func (s *pgStore) PairDisplay(id int, deviceID string) error {
	_, err := s.db.Exec(`
	UPDATE displays SET device_id = $1, paired = true, updated_at = now()
	 WHERE id = $2;`, deviceID, id)
	if err != nil {
		log.Error().Err(err).Int("display_id", id).Msg("PairDisplay failed")
	}
	return err
}

func (s *pgStore) RecordHeartbeat(displayID int, at time.Time) error {
	_, err := s.db.Exec(`
	UPDATE displays
	   SET last_heartbeat = $1,
	       total_heartbeats = total_heartbeats + 1,
	       updated_at = now()
	 WHERE id = $2;`, at, displayID)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("RecordHeartbeat failed")
	}
	return err
}

func (s *pgStore) MarkDisplayOnline(displayID int, at time.Time) error {
	_, err := s.db.Exec(`
	UPDATE displays
	   SET status = 'online', last_online_at = $1, updated_at = now()
	 WHERE id = $2;`, at, displayID)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("MarkDisplayOnline failed")
	}
	return err
}

func (s *pgStore) MarkDisplayOffline(displayID int, at time.Time) error {
	_, err := s.db.Exec(`
	UPDATE displays
	   SET status = 'offline',
	       last_offline_at = $1,
	       missed_heartbeats = missed_heartbeats + 1,
	       updated_at = now()
	 WHERE id = $2;`, at, displayID)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("MarkDisplayOffline failed")
	}
	return err
}

func (s *pgStore) SetDisplayUptime(displayID int, pct float64) error {
	_, err := s.db.Exec(`
	UPDATE displays SET uptime_percentage = $1, updated_at = now()
	 WHERE id = $2;`, pct, displayID)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("SetDisplayUptime failed")
	}
	return err
}

// ListStaleOnlineDisplays finds displays still marked online whose last
// heartbeat is older than the threshold. Used by the staleness sweep.
func (s *pgStore) ListStaleOnlineDisplays(olderThan time.Time) ([]model.Display, error) {
	var out []model.Display
	q := `
	SELECT` + displayColumns + `
	  FROM displays
	 WHERE status = 'online'
	   AND (last_heartbeat IS NULL OR last_heartbeat < $1)
	 ORDER BY id;`
	if err := s.db.Select(&out, q, olderThan); err != nil {
		log.Error().Err(err).Msg("ListStaleOnlineDisplays failed")
		return nil, err
	}
	return out, nil
}

// InsertDisplayError prepends to the display's error log and trims the log
// to its 50 newest entries.
func (s *pgStore) InsertDisplayError(displayID int, severity, message string) error {
	_, err := s.db.Exec(`
	INSERT INTO display_error_log (display_id, severity, message, created_at)
	VALUES ($1, $2, $3, now());`, displayID, severity, message)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("InsertDisplayError failed")
		return err
	}
	_, err = s.db.Exec(`
	DELETE FROM display_error_log
	 WHERE display_id = $1
	   AND id NOT IN (
	       SELECT id FROM display_error_log
	        WHERE display_id = $1
	        ORDER BY created_at DESC, id DESC
	        LIMIT 50);`, displayID)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("trim display_error_log failed")
	}
	return err
}

func (s *pgStore) ListDisplayErrors(displayID, limit int) ([]model.DisplayErrorEntry, error) {
	var out []model.DisplayErrorEntry
	q := `
	SELECT id, display_id, severity, message, created_at
	  FROM display_error_log
	 WHERE display_id = $1
	 ORDER BY created_at DESC, id DESC
	 LIMIT $2;`
	if err := s.db.Select(&out, q, displayID, limit); err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("ListDisplayErrors failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) CountRecentDisplayErrors(displayID int, since time.Time) (int, error) {
	var n int
	err := s.db.Get(&n, `
	SELECT count(*) FROM display_error_log
	 WHERE display_id = $1 AND created_at >= $2;`, displayID, since)
	if err != nil {
		log.Error().Err(err).Int("display_id", displayID).Msg("CountRecentDisplayErrors failed")
		return 0, err
	}
	return n, nil
}
