package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"setlist/internal/services"
)

// UpsertExport persists a discovered audio render keyed by its normalized
// path. Link state (project, confidence, origin) is preserved across
// re-discovery; only the file and format metadata refresh.
func (s *Store) UpsertExport(ctx context.Context, e *Export) (*Export, error) {
	if e == nil {
		return nil, errors.New("nil export")
	}
	if e.Path == "" {
		return nil, fmt.Errorf("export path is required")
	}

	var finalID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM exports WHERE path = ? LIMIT 1", e.Path).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO exports (location_id, path, format, sample_rate, bit_depth, channels,
					duration_seconds, file_mod_time, file_size)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				nullInt64(e.LocationID), e.Path, e.Format, e.SampleRate, e.BitDepth, e.Channels,
				e.DurationSeconds, nullTime(&e.FileModTime), e.FileSize)
			if err != nil {
				return fmt.Errorf("insert export: %w", err)
			}
			finalID, err = res.LastInsertId()
			return err
		case err != nil:
			return fmt.Errorf("lookup export: %w", err)
		default:
			finalID = existing
			_, err := tx.ExecContext(ctx, `
				UPDATE exports SET location_id = ?, format = ?, sample_rate = ?, bit_depth = ?,
					channels = ?, duration_seconds = ?, file_mod_time = ?, file_size = ?,
					updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`,
				nullInt64(e.LocationID), e.Format, e.SampleRate, e.BitDepth, e.Channels,
				e.DurationSeconds, nullTime(&e.FileModTime), e.FileSize, existing)
			if err != nil {
				return fmt.Errorf("update export: %w", err)
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return s.GetExport(ctx, finalID)
}

// LinkExport records an export-to-project link. An existing manual link is
// never overwritten by an automatic one; attempting it returns ErrValidation.
func (s *Store) LinkExport(ctx context.Context, exportID, projectID int64, confidence float64, origin LinkOrigin) error {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, "SELECT origin FROM exports WHERE id = ?", exportID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("export %d: %w", exportID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lookup export origin: %w", err)
		}
		if LinkOrigin(current) == OriginManual && origin != OriginManual {
			return services.Wrap(services.ErrValidation, "index", "link export",
				fmt.Sprintf("export %d has a manual link; automatic correlation cannot replace it", exportID), nil)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE exports SET project_id = ?, confidence = ?, origin = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			projectID, confidence, string(origin), exportID)
		if err != nil {
			return fmt.Errorf("link export: %w", err)
		}
		return nil
	})
}

// ConfirmExport pins an export to a project with a manual, full-confidence link.
func (s *Store) ConfirmExport(ctx context.Context, exportID, projectID int64) error {
	return s.LinkExport(ctx, exportID, projectID, 1.0, OriginManual)
}

// UnlinkExport clears an export's link. Used for explicit rejection; a manual
// unlink also clears the manual origin so automatic correlation may propose
// again.
func (s *Store) UnlinkExport(ctx context.Context, exportID int64) error {
	res, err := s.execWithRetry(ctx, `
		UPDATE exports SET project_id = NULL, confidence = 0, origin = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, exportID)
	if err != nil {
		return fmt.Errorf("unlink export: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("export %d: %w", exportID, ErrNotFound)
	}
	return nil
}

// DeleteExportByPath removes the export record for a file that no longer
// exists. Deleting an unknown path is not an error.
func (s *Store) DeleteExportByPath(ctx context.Context, path string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM exports WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

// GetExport fetches one export by id.
func (s *Store) GetExport(ctx context.Context, id int64) (*Export, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), exportColumns+" FROM exports WHERE id = ?", id)
	e, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export %d: %w", id, ErrNotFound)
	}
	return e, err
}

// GetExportByPath fetches an export by its normalized path.
func (s *Store) GetExportByPath(ctx context.Context, path string) (*Export, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), exportColumns+" FROM exports WHERE path = ?", path)
	e, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export at %s: %w", path, ErrNotFound)
	}
	return e, err
}

// ListExports returns every indexed export ordered by path.
func (s *Store) ListExports(ctx context.Context) ([]*Export, error) {
	return s.queryExports(ctx, exportColumns+" FROM exports ORDER BY path")
}

// ListExportsByLocation returns the exports attached to one location.
func (s *Store) ListExportsByLocation(ctx context.Context, locationID int64) ([]*Export, error) {
	return s.queryExports(ctx, exportColumns+" FROM exports WHERE location_id = ? ORDER BY path", locationID)
}

// ListUnlinkedExports returns exports without an owning project, optionally
// scoped to one location (zero means all).
func (s *Store) ListUnlinkedExports(ctx context.Context, locationID int64) ([]*Export, error) {
	if locationID > 0 {
		return s.queryExports(ctx,
			exportColumns+" FROM exports WHERE project_id IS NULL AND location_id = ? ORDER BY path", locationID)
	}
	return s.queryExports(ctx, exportColumns+" FROM exports WHERE project_id IS NULL ORDER BY path")
}

// ListExportsByProject returns the exports linked to one project.
func (s *Store) ListExportsByProject(ctx context.Context, projectID int64) ([]*Export, error) {
	return s.queryExports(ctx, exportColumns+" FROM exports WHERE project_id = ? ORDER BY path", projectID)
}

func (s *Store) queryExports(ctx context.Context, query string, args ...any) ([]*Export, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}

const exportColumns = `SELECT id, location_id, path, project_id, confidence, origin,
	format, sample_rate, bit_depth, channels, duration_seconds,
	file_mod_time, file_size, created_at, updated_at`

func scanExport(row rowScanner) (*Export, error) {
	var (
		e           Export
		locationID  sql.NullInt64
		projectID   sql.NullInt64
		origin      string
		fileModTime sql.NullTime
	)
	if err := row.Scan(&e.ID, &locationID, &e.Path, &projectID, &e.Confidence, &origin,
		&e.Format, &e.SampleRate, &e.BitDepth, &e.Channels, &e.DurationSeconds,
		&fileModTime, &e.FileSize, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if locationID.Valid {
		id := locationID.Int64
		e.LocationID = &id
	}
	if projectID.Valid {
		id := projectID.Int64
		e.ProjectID = &id
	}
	e.Origin = LinkOrigin(origin)
	if fileModTime.Valid {
		e.FileModTime = fileModTime.Time
	}
	return &e, nil
}
