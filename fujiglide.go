// Package fujiglide computes the astronomy and observer geometry behind
// "Diamond Fuji" and "Pearl Fuji": the instants at which the Sun or Moon
// appears to sit on Mt. Fuji's summit as seen from a ground observation
// point.
//
// The public API is the pure kernel: topocentric Sun/Moon positions,
// rise/set searches, and the observer-to-summit geometry (bearing, distance,
// apparent elevation with curvature and refraction corrections). The event
// pipeline built on top of it (alignment search, persistence, job queue,
// workers, scheduling) lives under internal/ and is driven by
// cmd/fujiglide-worker.
//
// All functions here are pure and safe for concurrent use.
package fujiglide

import (
	"errors"
	"math"
	"time"

	"github.com/thurmanmarka/fujiglide/internal/geodesy"
	"github.com/thurmanmarka/fujiglide/internal/moon"
	"github.com/thurmanmarka/fujiglide/internal/solver"
	"github.com/thurmanmarka/fujiglide/internal/sun"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Body represents a celestial body.
type Body int

const (
	Sun Body = iota
	Moon
)

// Direction selects which horizon crossing a rise/set search looks for.
type Direction int

const (
	Rise Direction = iota
	Set
)

// Mt. Fuji summit constants, authoritative for the whole module.
const (
	FujiLat       = geodesy.FujiLat
	FujiLon       = geodesy.FujiLon
	FujiElevation = geodesy.FujiElevation
)

// Coordinates represent an observer's location.
type Coordinates struct {
	Lat       float64 // degrees, north positive
	Lon       float64 // degrees, east positive (west negative)
	Elevation float64 // metres above sea level
}

// Horizontal holds topocentric horizontal coordinates in degrees.
// Azimuth is measured from North, clockwise, in [0, 360); altitude is the
// geometric value in [-90, +90] (apply Refraction for the apparent value).
type Horizontal struct {
	Azimuth  float64
	Altitude float64
}

// MoonState extends Horizontal with the Moon's synodic phase and
// illuminated fraction, both in [0, 1].
type MoonState struct {
	Horizontal
	Phase        float64
	Illumination float64
}

// MoonPhase describes the illuminated fraction and qualitative phase
// of the Moon at a given instant.
type MoonPhase struct {
	Time       time.Time // the instant this phase is evaluated at
	Fraction   float64   // illuminated fraction [0..1], 0=new, 1=full
	Phase      float64   // synodic phase [0..1), 0=new, 0.5=full
	Waxing     bool      // true if waxing (illumination increasing)
	Name       string    // e.g. "New Moon", "Waxing Crescent", ...
}

var (
	// ErrInvalidInput is returned for NaN coordinates or out-of-range
	// latitude/longitude.
	ErrInvalidInput = errors.New("invalid observer coordinates")

	// ErrNoRiseNoSet is returned when a body does not rise or set within
	// the search window.
	ErrNoRiseNoSet = errors.New("body does not rise or set in this window")
)

// Validate checks the coordinates for NaN and out-of-range values.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsNaN(c.Elevation) {
		return ErrInvalidInput
	}
	if c.Lat < -90 || c.Lat > 90 {
		return ErrInvalidInput
	}
	if c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidInput
	}
	return nil
}

// SunHorizontal returns the Sun's apparent topocentric horizontal coordinates
// at instant t from the observer. Altitude is geometric (before refraction).
func SunHorizontal(t time.Time, obs Coordinates) (Horizontal, error) {
	if err := obs.Validate(); err != nil {
		return Horizontal{}, err
	}
	az, alt := sun.Horizontal(obs.Lat, obs.Lon, t)
	return Horizontal{Azimuth: az, Altitude: alt}, nil
}

// MoonHorizontal returns the Moon's topocentric horizontal coordinates at
// instant t from the observer, plus its synodic phase and illuminated
// fraction.
func MoonHorizontal(t time.Time, obs Coordinates) (MoonState, error) {
	if err := obs.Validate(); err != nil {
		return MoonState{}, err
	}
	az, alt := moon.Horizontal(obs.Lat, obs.Lon, t)
	phase, illum := moon.PhaseIllumination(t)
	return MoonState{
		Horizontal:   Horizontal{Azimuth: az, Altitude: alt},
		Phase:        phase,
		Illumination: illum,
	}, nil
}

// riseSetSearchWindow bounds NextRiseSet: a crossing further out than this
// is reported as not found.
const riseSetSearchWindow = 36 * time.Hour

// NextRiseSet returns the earliest instant at or after t0 at which the body
// crosses the horizon in the given direction, searching up to 36 hours ahead.
// Returns ErrNoRiseNoSet if no such crossing exists in the window.
func NextRiseSet(body Body, obs Coordinates, t0 time.Time, dir Direction) (time.Time, error) {
	if err := obs.Validate(); err != nil {
		return time.Time{}, err
	}

	var eventType solver.EventType
	switch dir {
	case Rise:
		eventType = solver.CrossingUp
	case Set:
		eventType = solver.CrossingDown
	default:
		return time.Time{}, ErrInvalidInput
	}

	var (
		crossing time.Time
		ok       bool
	)
	switch body {
	case Sun:
		crossing, ok = sun.NextHorizonCrossing(obs.Lat, obs.Lon, t0, eventType, riseSetSearchWindow)
	case Moon:
		crossing, ok = moon.NextHorizonCrossing(obs.Lat, obs.Lon, t0, eventType, riseSetSearchWindow)
	default:
		return time.Time{}, ErrInvalidInput
	}
	if !ok {
		return time.Time{}, ErrNoRiseNoSet
	}
	return crossing, nil
}

// BearingToFuji returns the forward azimuth from the observer to the summit,
// degrees in [0, 360).
func BearingToFuji(obs Coordinates) (float64, error) {
	if err := obs.Validate(); err != nil {
		return 0, err
	}
	return geodesy.BearingToFuji(obs.Lat, obs.Lon), nil
}

// DistanceToFuji returns the great-circle distance in metres from the
// observer to the summit.
func DistanceToFuji(obs Coordinates) (float64, error) {
	if err := obs.Validate(); err != nil {
		return 0, err
	}
	return geodesy.DistanceToFuji(obs.Lat, obs.Lon), nil
}

// ApparentElevationToFuji returns the signed angle of the summit above the
// observer's astronomical horizon, corrected for Earth curvature and
// terrestrial refraction. eyeHeightM is the observer's eye height stacked on
// the site elevation (1.7 m is a reasonable default).
func ApparentElevationToFuji(obs Coordinates, eyeHeightM float64) (float64, error) {
	if err := obs.Validate(); err != nil {
		return 0, err
	}
	return geodesy.ApparentElevationToFuji(obs.Lat, obs.Lon, obs.Elevation, eyeHeightM), nil
}

// Refraction returns the atmospheric refraction correction in degrees to add
// to the geometric altitude altDeg. coefficient is the local-atmosphere
// multiplier (1.02 for Japan latitudes).
func Refraction(altDeg, coefficient float64) float64 {
	return geodesy.Refraction(altDeg, coefficient)
}

// MoonPhaseAt computes the Moon's illuminated fraction and qualitative phase
// at the given time. Phase is a global property (independent of observer
// location), so we work in UTC internally and return the original time.
func MoonPhaseAt(t time.Time) MoonPhase {
	phase, fraction := moon.PhaseIllumination(t.UTC())
	waxing := phase < 0.5
	return MoonPhase{
		Time:     t,
		Fraction: fraction,
		Phase:    phase,
		Waxing:   waxing,
		Name:     classifyMoonPhaseName(fraction, waxing),
	}
}

func classifyMoonPhaseName(f float64, waxing bool) string {
	const (
		eps        = 0.01 // near 0 or 1
		quarterTol = 0.05 // fraction window around 0.5
	)

	switch {
	case f < eps:
		return "New Moon"
	case f > 1-eps:
		return "Full Moon"
	case math.Abs(f-0.5) < quarterTol:
		if waxing {
			return "First Quarter"
		}
		return "Last Quarter"
	case f < 0.5:
		if waxing {
			return "Waxing Crescent"
		}
		return "Waning Crescent"
	default: // f > 0.5 but not near 1
		if waxing {
			return "Waxing Gibbous"
		}
		return "Waning Gibbous"
	}
}

// JST is the fixed UTC+09:00 zone used for all civil-date bucketing.
var JST = timeutil.JST
