package sun

import (
	"math"
	"time"

	"github.com/thurmanmarka/fujiglide/internal/solver"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// StandardZenith is the commonly used zenith angle (in degrees) for sunrise/sunset:
// 90°50' ≈ 90.833°, accounting for refraction + Sun's apparent radius.
const StandardZenith = 90.833

// ApparentHorizonAltitudeSun is the altitude (in degrees) of the Sun's center
// when the apparent upper limb is on the horizon under "standard" conditions.
// Commonly taken as about -0.833 degrees.
const ApparentHorizonAltitudeSun = -0.833

// Horizontal computes the Sun's topocentric horizontal coordinates at (lat, lon)
// at time t. Azimuth is measured from North, clockwise, in [0, 360); altitude is
// geometric (no refraction applied), in [-90, +90].
func Horizontal(lat, lon float64, t time.Time) (azDeg, altDeg float64) {
	eq := GeocentricEquatorialApprox(t)
	return horizontalFromEquatorial(lat, lon, t, eq.RA, eq.Dec)
}

// horizontalFromEquatorial converts geocentric RA/Dec (degrees) to horizontal
// coordinates for an observer at (lat, lon) at time t.
func horizontalFromEquatorial(lat, lon float64, t time.Time, raDeg, decDeg float64) (azDeg, altDeg float64) {
	raRad := timeutil.Deg2Rad(raDeg)
	decRad := timeutil.Deg2Rad(decDeg)
	latRad := timeutil.Deg2Rad(lat)

	lstRad := timeutil.Deg2Rad(timeutil.LocalSiderealDeg(t, lon))
	H := timeutil.NormalizeHourAngle(lstRad - raRad)

	sinAlt := math.Sin(latRad)*math.Sin(decRad) + math.Cos(latRad)*math.Cos(decRad)*math.Cos(H)
	altRad := math.Asin(sinAlt)

	// Azimuth from North, clockwise. The atan2 form gives azimuth from South
	// (westward positive); adding 180° rebases it to North.
	azRad := math.Atan2(
		math.Sin(H),
		math.Cos(H)*math.Sin(latRad)-math.Tan(decRad)*math.Cos(latRad),
	)
	azDeg = timeutil.Normalize360(timeutil.Rad2Deg(azRad) + 180.0)
	altDeg = timeutil.Rad2Deg(altRad)
	return azDeg, altDeg
}

// RiseSetForDate computes sunrise and sunset for the Sun on the given calendar date
// for an observer at lat, lon (degrees). Returned times are in UTC.
// `zenith` is in degrees; for standard sunrise/sunset use StandardZenith.
func RiseSetForDate(lat, lon float64, date time.Time, zenith float64) (sunriseUTC, sunsetUTC time.Time, okRise, okSet bool) {
	// Target altitude: h = 90° - Z.
	targetAlt := 90.0 - zenith
	return eventsForDateAtAltitude(lat, lon, date, targetAlt)
}

// NextHorizonCrossing finds the earliest instant at or after t0 at which the
// Sun's center crosses ApparentHorizonAltitudeSun in the given direction,
// searching up to `window` ahead. Returns false if no crossing is found.
func NextHorizonCrossing(lat, lon float64, t0 time.Time, dir solver.EventType, window time.Duration) (time.Time, bool) {
	altFunc := func(t time.Time) float64 {
		_, alt := Horizontal(lat, lon, t)
		return alt
	}

	// 30-minute sampling is fine for the Sun's ~0.25°/min motion.
	steps := int(window/(30*time.Minute)) + 2
	res := solver.FindAltitudeEvent(altFunc, t0, t0.Add(window), ApparentHorizonAltitudeSun, dir, steps, 15*time.Second)
	if !res.OK {
		return time.Time{}, false
	}
	return res.Time, true
}

// eventsForDateAtAltitude finds the times when the Sun's altitude crosses
// targetAlt (degrees) during the local calendar day of `date` at (lat, lon).
// It returns the upward crossing (rise-like) and downward crossing (set-like)
// in UTC, along with booleans indicating if each event was found.
func eventsForDateAtAltitude(lat, lon float64, date time.Time, targetAlt float64) (riseUTC, setUTC time.Time, okRise, okSet bool) {
	loc := date.Location()
	year, month, day := date.Date()

	startLocal := time.Date(year, month, day, 0, 0, 0, 0, loc)
	endLocal := startLocal.Add(24 * time.Hour)

	altFunc := func(t time.Time) float64 {
		_, alt := Horizontal(lat, lon, t)
		return alt
	}

	const (
		steps = 48 // samples across the day (every 30 minutes)
		tol   = 30 * time.Second
	)

	// Upward crossing (dawn/sunrise-type event)
	riseRes := solver.FindAltitudeEvent(altFunc, startLocal, endLocal, targetAlt, solver.CrossingUp, steps, tol)
	if riseRes.OK {
		riseUTC = riseRes.Time.UTC()
		okRise = true
	}

	// Downward crossing (dusk/sunset-type event)
	setRes := solver.FindAltitudeEvent(altFunc, startLocal, endLocal, targetAlt, solver.CrossingDown, steps, tol)
	if setRes.OK {
		setUTC = setRes.Time.UTC()
		okSet = true
	}

	return riseUTC, setUTC, okRise, okSet
}
