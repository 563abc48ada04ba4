package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// EventRepo persists computed alignment events.
type EventRepo struct {
	pool *pgxpool.Pool
}

const eventColumns = `e.id, e.location_id, e.event_kind, e.event_date, e.event_time,
	e.celestial_azimuth_deg, e.celestial_altitude_deg, e.moon_phase,
	e.moon_illumination_fraction, e.quality_score, e.accuracy_tier, e.calculation_year`

const eventJoinColumns = eventColumns + `,
	l.id, l.name, l.prefecture, l.latitude, l.longitude, l.elevation, l.access_note,
	l.fuji_bearing_deg, l.fuji_apparent_elevation_deg, l.fuji_distance_m, l.created_at, l.updated_at`

func scanEventJoined(rows pgx.Rows) (*model.Event, error) {
	var (
		e model.Event
		l model.Location
	)
	err := rows.Scan(&e.ID, &e.LocationID, &e.Kind, &e.Date, &e.Time,
		&e.CelestialAzimuthDeg, &e.CelestialAltitudeDeg, &e.MoonPhase,
		&e.MoonIllumination, &e.QualityScore, &e.AccuracyTier, &e.CalculationYear,
		&l.ID, &l.Name, &l.Prefecture, &l.Latitude, &l.Longitude, &l.Elevation,
		&l.AccessNote, &l.FujiBearingDeg, &l.FujiApparentElevationDeg, &l.FujiDistanceM,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Location = &l
	// event_date comes back as a bare date; rebase it to midnight JST.
	e.Date = timeutil.DateJST(e.Date.Year(), e.Date.Month(), e.Date.Day())
	e.Time = e.Time.In(timeutil.JST)
	return &e, nil
}

// ReplaceDay atomically replaces the stored event set for one (location,
// civil date) with the freshly computed one. Re-running the same day
// converges on the same set, and a re-run that emits fewer events shrinks
// the stored set. Readers see either the prior complete set or the new one.
func (r *EventRepo) ReplaceDay(ctx context.Context, locationID int64, date time.Time, events []model.Event) error {
	day := timeutil.CivilDateJST(date)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin day replace")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM location_events WHERE location_id = $1 AND event_date = $2`,
		locationID, day); err != nil {
		return errors.Wrap(err, "clear day events")
	}

	for i := range events {
		e := &events[i]
		if !e.Kind.Valid() {
			return errors.Errorf("invalid event kind %q", e.Kind)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO location_events (location_id, event_kind, event_date, event_time,
				celestial_azimuth_deg, celestial_altitude_deg, moon_phase,
				moon_illumination_fraction, quality_score, accuracy_tier, calculation_year)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (location_id, event_date, event_time, event_kind) DO UPDATE SET
				celestial_azimuth_deg = EXCLUDED.celestial_azimuth_deg,
				celestial_altitude_deg = EXCLUDED.celestial_altitude_deg,
				moon_phase = EXCLUDED.moon_phase,
				moon_illumination_fraction = EXCLUDED.moon_illumination_fraction,
				quality_score = EXCLUDED.quality_score,
				accuracy_tier = EXCLUDED.accuracy_tier,
				calculation_year = EXCLUDED.calculation_year`,
			e.LocationID, e.Kind, day, e.Time,
			e.CelestialAzimuthDeg, e.CelestialAltitudeDeg, e.MoonPhase,
			e.MoonIllumination, e.QualityScore, e.AccuracyTier, e.CalculationYear); err != nil {
			return errors.Wrap(err, "insert event")
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit day replace")
}

// Upsert writes one event by its uniqueness key, replacing mutable fields.
func (r *EventRepo) Upsert(ctx context.Context, e *model.Event) error {
	day := timeutil.CivilDateJST(e.Date)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO location_events (location_id, event_kind, event_date, event_time,
			celestial_azimuth_deg, celestial_altitude_deg, moon_phase,
			moon_illumination_fraction, quality_score, accuracy_tier, calculation_year)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (location_id, event_date, event_time, event_kind) DO UPDATE SET
			celestial_azimuth_deg = EXCLUDED.celestial_azimuth_deg,
			celestial_altitude_deg = EXCLUDED.celestial_altitude_deg,
			moon_phase = EXCLUDED.moon_phase,
			moon_illumination_fraction = EXCLUDED.moon_illumination_fraction,
			quality_score = EXCLUDED.quality_score,
			accuracy_tier = EXCLUDED.accuracy_tier,
			calculation_year = EXCLUDED.calculation_year
		RETURNING id`,
		e.LocationID, e.Kind, day, e.Time,
		e.CelestialAzimuthDeg, e.CelestialAltitudeDeg, e.MoonPhase,
		e.MoonIllumination, e.QualityScore, e.AccuracyTier, e.CalculationYear)
	return errors.Wrap(row.Scan(&e.ID), "upsert event")
}

// queryJoined runs a query returning eventJoinColumns rows.
func (r *EventRepo) queryJoined(ctx context.Context, sql string, args ...any) ([]*model.Event, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		e, err := scanEventJoined(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ByDateRange returns all events with event_date in [from, to], joined with
// their location, ordered by date then time. Used for calendar grids that
// spill into neighboring months.
func (r *EventRepo) ByDateRange(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	return r.queryJoined(ctx, `
		SELECT `+eventJoinColumns+`
		FROM location_events e JOIN locations l ON l.id = e.location_id
		WHERE e.event_date BETWEEN $1 AND $2
		ORDER BY e.event_date, e.event_time`,
		timeutil.CivilDateJST(from), timeutil.CivilDateJST(to))
}

// ByDay returns the events of one civil date, ordered by time ascending.
func (r *EventRepo) ByDay(ctx context.Context, date time.Time) ([]*model.Event, error) {
	return r.queryJoined(ctx, `
		SELECT `+eventJoinColumns+`
		FROM location_events e JOIN locations l ON l.id = e.location_id
		WHERE e.event_date = $1
		ORDER BY e.event_time`,
		timeutil.CivilDateJST(date))
}

// Upcoming returns up to limit events at or after now, ordered ascending.
func (r *EventRepo) Upcoming(ctx context.Context, now time.Time, limit int) ([]*model.Event, error) {
	return r.queryJoined(ctx, `
		SELECT `+eventJoinColumns+`
		FROM location_events e JOIN locations l ON l.id = e.location_id
		WHERE e.event_time >= $1
		ORDER BY e.event_time
		LIMIT $2`,
		now, limit)
}

// ByLocationYear returns one location's full year of events.
func (r *EventRepo) ByLocationYear(ctx context.Context, locationID int64, year int) ([]*model.Event, error) {
	from := timeutil.DateJST(year, time.January, 1)
	to := timeutil.DateJST(year, time.December, 31)
	return r.queryJoined(ctx, `
		SELECT `+eventJoinColumns+`
		FROM location_events e JOIN locations l ON l.id = e.location_id
		WHERE e.location_id = $1 AND e.event_date BETWEEN $2 AND $3
		ORDER BY e.event_date, e.event_time`,
		locationID, from, to)
}

// YearlyStats holds the aggregate counts for one calendar year.
type YearlyStats struct {
	Year                int
	Total               int
	CountsByKind        map[model.EventKind]int
	ActiveLocationCount int
}

// StatsForYear returns the yearly aggregate counts partitioned by kind.
func (r *EventRepo) StatsForYear(ctx context.Context, year int) (*YearlyStats, error) {
	from := timeutil.DateJST(year, time.January, 1)
	to := timeutil.DateJST(year, time.December, 31)

	rows, err := r.pool.Query(ctx, `
		SELECT event_kind, count(*)
		FROM location_events
		WHERE event_date BETWEEN $1 AND $2
		GROUP BY event_kind`,
		from, to)
	if err != nil {
		return nil, errors.Wrap(err, "yearly stats")
	}
	defer rows.Close()

	stats := &YearlyStats{Year: year, CountsByKind: map[model.EventKind]int{}}
	for rows.Next() {
		var (
			kind model.EventKind
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		stats.CountsByKind[kind] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT location_id)
		FROM location_events
		WHERE event_date BETWEEN $1 AND $2`,
		from, to).Scan(&stats.ActiveLocationCount)
	return stats, errors.Wrap(err, "yearly active locations")
}

// DeleteForLocation purges all events of one location. The FK cascade covers
// location deletes; this is for geo-change invalidation where the location
// row itself survives.
func (r *EventRepo) DeleteForLocation(ctx context.Context, locationID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM location_events WHERE location_id = $1`, locationID)
	if err != nil {
		return 0, errors.Wrap(err, "delete location events")
	}
	return tag.RowsAffected(), nil
}

// CountForLocationMonth reports how many events a location has in the given
// civil month. The nightly scheduler uses zero as its refill signal.
func (r *EventRepo) CountForLocationMonth(ctx context.Context, locationID int64, year int, month time.Month) (int, error) {
	from := timeutil.DateJST(year, month, 1)
	to := timeutil.DateJST(year, month, timeutil.DaysInMonth(year, month))
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM location_events
		WHERE location_id = $1 AND event_date BETWEEN $2 AND $3`,
		locationID, from, to).Scan(&n)
	return n, errors.Wrap(err, "count month events")
}
