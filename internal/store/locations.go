package store

import (
	"context"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/geodesy"
	"github.com/thurmanmarka/fujiglide/internal/model"
)

// ErrStaleGeometry marks a location whose derived (bearing, apparent
// elevation, distance) no longer match its geodetic inputs. The row must not
// serve queries until reconciled.
var ErrStaleGeometry = errors.New("location derived geometry is stale")

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// geometryTolDeg / geometryTolM bound the float drift we accept before
// declaring the derived triple stale.
const (
	geometryTolDeg = 1e-6
	geometryTolM   = 0.5
)

// DeriveGeometry computes the derived triple from the geodetic inputs.
func DeriveGeometry(lat, lon, elev, eyeHeightM float64) (bearingDeg, apparentElevDeg, distanceM float64) {
	bearingDeg = geodesy.BearingToFuji(lat, lon)
	apparentElevDeg = geodesy.ApparentElevationToFuji(lat, lon, elev, eyeHeightM)
	distanceM = geodesy.DistanceToFuji(lat, lon)
	return
}

// GeometryStale reports whether the stored derived triple disagrees with
// what the geodetic inputs produce under the given eye height.
func GeometryStale(loc *model.Location, eyeHeightM float64) bool {
	b, e, d := DeriveGeometry(loc.Latitude, loc.Longitude, loc.Elevation, eyeHeightM)
	return math.Abs(b-loc.FujiBearingDeg) > geometryTolDeg ||
		math.Abs(e-loc.FujiApparentElevationDeg) > geometryTolDeg ||
		math.Abs(d-loc.FujiDistanceM) > geometryTolM
}

// LocationRepo persists observation points.
type LocationRepo struct {
	pool *pgxpool.Pool
}

const locationColumns = `id, name, prefecture, latitude, longitude, elevation, access_note,
	fuji_bearing_deg, fuji_apparent_elevation_deg, fuji_distance_m, created_at, updated_at`

func scanLocation(row pgx.Row) (*model.Location, error) {
	var l model.Location
	err := row.Scan(&l.ID, &l.Name, &l.Prefecture, &l.Latitude, &l.Longitude, &l.Elevation,
		&l.AccessNote, &l.FujiBearingDeg, &l.FujiApparentElevationDeg, &l.FujiDistanceM,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Create inserts a location, deriving its summit geometry from the inputs.
func (r *LocationRepo) Create(ctx context.Context, loc *model.Location, eyeHeightM float64) error {
	b, e, d := DeriveGeometry(loc.Latitude, loc.Longitude, loc.Elevation, eyeHeightM)
	loc.FujiBearingDeg, loc.FujiApparentElevationDeg, loc.FujiDistanceM = b, e, d

	row := r.pool.QueryRow(ctx, `
		INSERT INTO locations (name, prefecture, latitude, longitude, elevation, access_note,
			fuji_bearing_deg, fuji_apparent_elevation_deg, fuji_distance_m)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		loc.Name, loc.Prefecture, loc.Latitude, loc.Longitude, loc.Elevation, loc.AccessNote,
		b, e, d)
	if err := row.Scan(&loc.ID, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		return errors.Wrap(err, "insert location")
	}
	return nil
}

// Update rewrites a location's editable fields, re-deriving geometry.
// Returns the previous row so the scheduler can tell whether the geodetic
// inputs changed.
func (r *LocationRepo) Update(ctx context.Context, loc *model.Location, eyeHeightM float64) (prev *model.Location, err error) {
	prev, err = r.Get(ctx, loc.ID)
	if err != nil {
		return nil, err
	}

	b, e, d := DeriveGeometry(loc.Latitude, loc.Longitude, loc.Elevation, eyeHeightM)
	loc.FujiBearingDeg, loc.FujiApparentElevationDeg, loc.FujiDistanceM = b, e, d

	tag, err := r.pool.Exec(ctx, `
		UPDATE locations
		SET name = $2, prefecture = $3, latitude = $4, longitude = $5, elevation = $6,
			access_note = $7, fuji_bearing_deg = $8, fuji_apparent_elevation_deg = $9,
			fuji_distance_m = $10, updated_at = now()
		WHERE id = $1`,
		loc.ID, loc.Name, loc.Prefecture, loc.Latitude, loc.Longitude, loc.Elevation,
		loc.AccessNote, b, e, d)
	if err != nil {
		return nil, errors.Wrap(err, "update location")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return prev, nil
}

// Delete removes the location; its events go with it via the FK cascade.
func (r *LocationRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete location")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one location. It does not verify derived geometry; read paths
// that must refuse stale rows call GetChecked.
func (r *LocationRepo) Get(ctx context.Context, id int64) (*model.Location, error) {
	return scanLocation(r.pool.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

// GetChecked fetches one location and refuses to serve it when its derived
// geometry is stale.
func (r *LocationRepo) GetChecked(ctx context.Context, id int64, eyeHeightM float64) (*model.Location, error) {
	loc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if GeometryStale(loc, eyeHeightM) {
		return loc, ErrStaleGeometry
	}
	return loc, nil
}

// List returns all locations ordered by id.
func (r *LocationRepo) List(ctx context.Context) ([]*model.Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list locations")
	}
	defer rows.Close()

	var out []*model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Reconcile recomputes and stores the derived triple for one location.
// Used by the scheduler when a read trips ErrStaleGeometry.
func (r *LocationRepo) Reconcile(ctx context.Context, id int64, eyeHeightM float64) (*model.Location, error) {
	loc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	b, e, d := DeriveGeometry(loc.Latitude, loc.Longitude, loc.Elevation, eyeHeightM)
	_, err = r.pool.Exec(ctx, `
		UPDATE locations
		SET fuji_bearing_deg = $2, fuji_apparent_elevation_deg = $3, fuji_distance_m = $4,
			updated_at = now()
		WHERE id = $1`, id, b, e, d)
	if err != nil {
		return nil, errors.Wrap(err, "reconcile location geometry")
	}
	loc.FujiBearingDeg, loc.FujiApparentElevationDeg, loc.FujiDistanceM = b, e, d
	return loc, nil
}

// Count returns the number of locations.
func (r *LocationRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM locations`).Scan(&n)
	return n, err
}
