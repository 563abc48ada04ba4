package store

const schema = `
CREATE TABLE IF NOT EXISTS locations (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    prefecture TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    elevation DOUBLE PRECISION NOT NULL DEFAULT 0,
    access_note TEXT NOT NULL DEFAULT '',
    fuji_bearing_deg DOUBLE PRECISION NOT NULL,
    fuji_apparent_elevation_deg DOUBLE PRECISION NOT NULL,
    fuji_distance_m DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_locations_lat_lon ON locations (latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_locations_prefecture ON locations (prefecture);
CREATE INDEX IF NOT EXISTS idx_locations_fuji_geometry ON locations (fuji_bearing_deg, fuji_apparent_elevation_deg);

CREATE TABLE IF NOT EXISTS location_events (
    id BIGSERIAL PRIMARY KEY,
    location_id BIGINT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
    event_kind TEXT NOT NULL CHECK (event_kind IN ('diamond_sunrise', 'diamond_sunset', 'pearl_moonrise', 'pearl_moonset')),
    event_date DATE NOT NULL,
    event_time TIMESTAMPTZ NOT NULL,
    celestial_azimuth_deg DOUBLE PRECISION NOT NULL,
    celestial_altitude_deg DOUBLE PRECISION NOT NULL,
    moon_phase DOUBLE PRECISION CHECK (moon_phase IS NULL OR (moon_phase >= 0 AND moon_phase <= 1)),
    moon_illumination_fraction DOUBLE PRECISION CHECK (moon_illumination_fraction IS NULL OR (moon_illumination_fraction >= 0 AND moon_illumination_fraction <= 1)),
    quality_score DOUBLE PRECISION NOT NULL CHECK (quality_score >= 0 AND quality_score <= 1),
    accuracy_tier TEXT NOT NULL CHECK (accuracy_tier IN ('perfect', 'excellent', 'good', 'fair')),
    calculation_year INTEGER NOT NULL,
    UNIQUE (location_id, event_date, event_time, event_kind)
);

CREATE INDEX IF NOT EXISTS idx_location_events_date ON location_events (event_date);
CREATE INDEX IF NOT EXISTS idx_location_events_kind_date ON location_events (event_kind, event_date);
CREATE INDEX IF NOT EXISTS idx_location_events_location_date ON location_events (location_id, event_date);
CREATE INDEX IF NOT EXISTS idx_location_events_quality ON location_events (quality_score DESC);

CREATE TABLE IF NOT EXISTS admins (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS system_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    value_type TEXT NOT NULL DEFAULT 'string',
    description TEXT NOT NULL DEFAULT '',
    editable BOOLEAN NOT NULL DEFAULT TRUE
);

-- Queue-internal. Jobs reference locations by id without an enforced FK:
-- a delete can land before the job drains, and the worker treats the
-- vanished target as a no-op.
CREATE TABLE IF NOT EXISTS jobs (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    dedup_key TEXT NOT NULL,
    payload JSONB NOT NULL,
    priority INTEGER NOT NULL DEFAULT 5,
    not_before TIMESTAMPTZ NOT NULL DEFAULT now(),
    attempts INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL DEFAULT 3,
    state TEXT NOT NULL DEFAULT 'waiting' CHECK (state IN ('waiting', 'active', 'completed', 'failed', 'delayed')),
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at TIMESTAMPTZ,
    finished_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_dedup_pending
    ON jobs (dedup_key) WHERE state IN ('waiting', 'delayed');
CREATE INDEX IF NOT EXISTS idx_jobs_lease
    ON jobs (priority DESC, not_before ASC) WHERE state IN ('waiting', 'delayed');
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs (state);
`
