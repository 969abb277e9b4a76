package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertOutcome reports how an upsert resolved against existing records.
type UpsertOutcome string

const (
	// OutcomeInserted means a new project record was created.
	OutcomeInserted UpsertOutcome = "inserted"
	// OutcomeUpdated means the record at the same path was refreshed in place.
	OutcomeUpdated UpsertOutcome = "updated"
	// OutcomeMoved means an existing record with the same content hash was
	// re-pathed rather than duplicated.
	OutcomeMoved UpsertOutcome = "moved"
)

// UpsertProject persists one parse result in a single transaction, applying
// the content-hash deduplication rules:
//
//   - a record with the same hash at a different path is re-pathed (the file
//     was moved or copied), never duplicated;
//   - a record at the same path with different content is updated in place;
//   - otherwise a new record is inserted.
//
// The input's ID field is ignored; the persisted record is returned.
func (s *Store) UpsertProject(ctx context.Context, p *Project) (*Project, UpsertOutcome, error) {
	if p == nil {
		return nil, "", errors.New("nil project")
	}
	if p.Path == "" || p.ContentHash == "" {
		return nil, "", fmt.Errorf("project path and content hash are required")
	}

	var (
		outcome UpsertOutcome
		finalID int64
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		byPath, err := projectIDWhere(ctx, tx, "path = ?", p.Path)
		if err != nil {
			return err
		}
		byHash, err := projectIDWhere(ctx, tx, "content_hash = ?", p.ContentHash)
		if err != nil {
			return err
		}

		switch {
		case byHash != 0 && (byPath == 0 || byPath == byHash):
			outcome = OutcomeUpdated
			if byPath == 0 {
				outcome = OutcomeMoved
			}
			finalID = byHash
			return updateProject(ctx, tx, byHash, p)
		case byPath != 0:
			outcome = OutcomeUpdated
			finalID = byPath
			return updateProject(ctx, tx, byPath, p)
		default:
			outcome = OutcomeInserted
			id, err := insertProject(ctx, tx, p)
			if err != nil {
				return err
			}
			finalID = id
			return nil
		}
	})
	if err != nil {
		return nil, "", err
	}

	persisted, err := s.GetProject(ctx, finalID)
	if err != nil {
		return nil, "", err
	}
	return persisted, outcome, nil
}

func projectIDWhere(ctx context.Context, tx *sql.Tx, where string, arg any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM projects WHERE "+where+" LIMIT 1", arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup project: %w", err)
	}
	return id, nil
}

func insertProject(ctx context.Context, tx *sql.Tx, p *Project) (int64, error) {
	warnings, plugins, devices, samples, markers, err := marshalProjectBlobs(p)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (
			location_id, path, content_hash, parse_status, fail_reason, warnings_json,
			tempo, key_signature, time_signature,
			audio_tracks, midi_tracks, return_tracks, group_tracks, scene_count,
			plugin_names_json, device_names_json, sample_refs_json, markers_json,
			arrangement_length, session_length, has_automation,
			creator, major_version, minor_version, file_mod_time, file_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(p.LocationID), p.Path, p.ContentHash, string(p.ParseStatus), p.FailReason, warnings,
		nullFloat(p.Tempo), nullString(p.KeySignature), nullString(p.TimeSignature),
		p.AudioTracks, p.MidiTracks, p.ReturnTracks, p.GroupTracks, p.SceneCount,
		plugins, devices, samples, markers,
		nullFloat(p.ArrangementLength), nullFloat(p.SessionLength), boolInt(p.HasAutomation),
		p.Creator, p.MajorVersion, p.MinorVersion, nullTime(&p.FileModTime), p.FileSize)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return res.LastInsertId()
}

func updateProject(ctx context.Context, tx *sql.Tx, id int64, p *Project) error {
	warnings, plugins, devices, samples, markers, err := marshalProjectBlobs(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET
			location_id = ?, path = ?, content_hash = ?, parse_status = ?, fail_reason = ?, warnings_json = ?,
			tempo = ?, key_signature = ?, time_signature = ?,
			audio_tracks = ?, midi_tracks = ?, return_tracks = ?, group_tracks = ?, scene_count = ?,
			plugin_names_json = ?, device_names_json = ?, sample_refs_json = ?, markers_json = ?,
			arrangement_length = ?, session_length = ?, has_automation = ?,
			creator = ?, major_version = ?, minor_version = ?, file_mod_time = ?, file_size = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		nullInt64(p.LocationID), p.Path, p.ContentHash, string(p.ParseStatus), p.FailReason, warnings,
		nullFloat(p.Tempo), nullString(p.KeySignature), nullString(p.TimeSignature),
		p.AudioTracks, p.MidiTracks, p.ReturnTracks, p.GroupTracks, p.SceneCount,
		plugins, devices, samples, markers,
		nullFloat(p.ArrangementLength), nullFloat(p.SessionLength), boolInt(p.HasAutomation),
		p.Creator, p.MajorVersion, p.MinorVersion, nullTime(&p.FileModTime), p.FileSize,
		id)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func marshalProjectBlobs(p *Project) (warnings, plugins, devices, samples, markers string, err error) {
	if warnings, err = marshalStrings(p.Warnings); err != nil {
		return
	}
	if plugins, err = marshalStrings(p.PluginNames); err != nil {
		return
	}
	if devices, err = marshalStrings(p.DeviceNames); err != nil {
		return
	}
	if samples, err = marshalStrings(p.SampleRefs); err != nil {
		return
	}
	markers, err = marshalMarkers(p.Markers)
	return
}

// GetProject fetches one project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), projectColumns+" FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return p, err
}

// GetProjectByPath fetches a project by its normalized path.
func (s *Store) GetProjectByPath(ctx context.Context, path string) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), projectColumns+" FROM projects WHERE path = ?", path)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project at %s: %w", path, ErrNotFound)
	}
	return p, err
}

// GetProjectByHash fetches a project by content hash.
func (s *Store) GetProjectByHash(ctx context.Context, hash string) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), projectColumns+" FROM projects WHERE content_hash = ?", hash)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project with hash %s: %w", hash, ErrNotFound)
	}
	return p, err
}

// ListProjects returns all projects ordered by path.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.queryProjects(ctx, projectColumns+" FROM projects ORDER BY path")
}

// ListProjectsByLocation returns the projects attached to one location.
func (s *Store) ListProjectsByLocation(ctx context.Context, locationID int64) ([]*Project, error) {
	return s.queryProjects(ctx, projectColumns+" FROM projects WHERE location_id = ? ORDER BY path", locationID)
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]*Project, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// MarkProjectMissing flags a project whose backing file disappeared. The
// record is kept; a later scan that finds the same content re-paths it.
func (s *Store) MarkProjectMissing(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE projects SET parse_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(ParseMissing), id)
	if err != nil {
		return fmt.Errorf("mark project missing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkProjectMissingByPath flags the project at path as missing, if indexed.
func (s *Store) MarkProjectMissingByPath(ctx context.Context, path string) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE projects SET parse_status = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?",
		string(ParseMissing), path)
	if err != nil {
		return fmt.Errorf("mark project missing by path: %w", err)
	}
	return nil
}

const projectColumns = `SELECT id, location_id, path, content_hash, parse_status, fail_reason, warnings_json,
	tempo, key_signature, time_signature,
	audio_tracks, midi_tracks, return_tracks, group_tracks, scene_count,
	plugin_names_json, device_names_json, sample_refs_json, markers_json,
	arrangement_length, session_length, has_automation,
	creator, major_version, minor_version, file_mod_time, file_size, created_at, updated_at`

func scanProject(row rowScanner) (*Project, error) {
	var (
		p                           Project
		locationID                  sql.NullInt64
		status                      string
		warnings, plugins, devices  string
		samples, markers            string
		tempo, arrangement, session sql.NullFloat64
		keySignature, timeSignature sql.NullString
		hasAutomation               int
		fileModTime                 sql.NullTime
	)
	if err := row.Scan(&p.ID, &locationID, &p.Path, &p.ContentHash, &status, &p.FailReason, &warnings,
		&tempo, &keySignature, &timeSignature,
		&p.AudioTracks, &p.MidiTracks, &p.ReturnTracks, &p.GroupTracks, &p.SceneCount,
		&plugins, &devices, &samples, &markers,
		&arrangement, &session, &hasAutomation,
		&p.Creator, &p.MajorVersion, &p.MinorVersion, &fileModTime, &p.FileSize,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if locationID.Valid {
		id := locationID.Int64
		p.LocationID = &id
	}
	p.ParseStatus = ParseStatus(status)
	p.Warnings = unmarshalStrings(warnings)
	p.PluginNames = unmarshalStrings(plugins)
	p.DeviceNames = unmarshalStrings(devices)
	p.SampleRefs = unmarshalStrings(samples)
	p.Markers = unmarshalMarkers(markers)
	if tempo.Valid {
		v := tempo.Float64
		p.Tempo = &v
	}
	if keySignature.Valid {
		v := keySignature.String
		p.KeySignature = &v
	}
	if timeSignature.Valid {
		v := timeSignature.String
		p.TimeSignature = &v
	}
	if arrangement.Valid {
		v := arrangement.Float64
		p.ArrangementLength = &v
	}
	if session.Valid {
		v := session.Float64
		p.SessionLength = &v
	}
	p.HasAutomation = hasAutomation != 0
	if fileModTime.Valid {
		p.FileModTime = fileModTime.Time
	}
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
