package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"setlist/internal/fileutil"
	"setlist/internal/services"
)

// AddLocation registers a new root folder. The root must exist and be a
// directory; the stored path is normalized.
func (s *Store) AddLocation(ctx context.Context, rootPath string, locType LocationType) (*Location, error) {
	normalized, err := fileutil.NormalizePath(rootPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "index", "add location", "invalid root path", err)
	}
	if !fileutil.IsDir(normalized) {
		return nil, services.Wrap(services.ErrValidation, "index", "add location",
			fmt.Sprintf("root %s is not an accessible directory", normalized), nil)
	}
	if _, ok := locationTypes[locType]; !ok {
		locType = LocationLocal
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO locations (root_path, type) VALUES (?, ?)`, normalized, string(locType))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, services.Wrap(services.ErrValidation, "index", "add location",
				fmt.Sprintf("location %s already registered", normalized), nil)
		}
		return nil, fmt.Errorf("insert location: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("location id: %w", err)
	}
	return s.GetLocation(ctx, id)
}

// GetLocation fetches one location by id.
func (s *Store) GetLocation(ctx context.Context, id int64) (*Location, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		locationColumns+" FROM locations WHERE id = ?", id)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	return loc, err
}

// ListLocations returns all registered locations ordered by id.
func (s *Store) ListLocations(ctx context.Context) ([]*Location, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		locationColumns+" FROM locations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// ActiveLocations returns active locations ordered by id.
func (s *Store) ActiveLocations(ctx context.Context) ([]*Location, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		locationColumns+" FROM locations WHERE active = 1 ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list active locations: %w", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// SetLocationActive toggles the active flag. Deactivation leaves existing
// records intact.
func (s *Store) SetLocationActive(ctx context.Context, id int64, active bool) error {
	return s.updateLocationFlag(ctx, id, "active", active)
}

// SetLocationDegraded marks a location whose watcher subscription keeps
// failing. The flag clears once a subscription succeeds again.
func (s *Store) SetLocationDegraded(ctx context.Context, id int64, degraded bool) error {
	return s.updateLocationFlag(ctx, id, "degraded", degraded)
}

func (s *Store) updateLocationFlag(ctx context.Context, id int64, column string, value bool) error {
	flag := 0
	if value {
		flag = 1
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE locations SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", flag, id)
	if err != nil {
		return fmt.Errorf("update location %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("location %d: %w", id, ErrNotFound)
	}
	return nil
}

// TouchLocationScanned records the completion time of the latest scan.
func (s *Store) TouchLocationScanned(ctx context.Context, id int64, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE locations SET last_scan_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch location: %w", err)
	}
	return nil
}

// RemoveLocation deletes a location. Projects and exports under it are
// detached (location becomes NULL), never deleted.
func (s *Store) RemoveLocation(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE projects SET location_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE location_id = ?", id); err != nil {
			return fmt.Errorf("detach projects: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE exports SET location_id = NULL, updated_at = CURRENT_TIMESTAMP WHERE location_id = ?", id); err != nil {
			return fmt.Errorf("detach exports: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM locations WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete location: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("location %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

const locationColumns = `SELECT id, root_path, type, active, degraded, last_scan_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var locType string
	var active, degraded int
	var lastScan sql.NullTime
	if err := row.Scan(&loc.ID, &loc.RootPath, &locType, &active, &degraded,
		&lastScan, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		return nil, err
	}
	loc.Type = LocationType(locType)
	loc.Active = active != 0
	loc.Degraded = degraded != 0
	if lastScan.Valid {
		t := lastScan.Time
		loc.LastScanAt = &t
	}
	return &loc, nil
}
