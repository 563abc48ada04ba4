package moon

import (
	"math"
	"time"

	"github.com/thurmanmarka/fujiglide/internal/solver"
	"github.com/thurmanmarka/fujiglide/internal/sun"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

const moonSetExtraDropDeg = 0.16

// ApparentHorizonAltitudeMoon returns the apparent altitude (deg) of the Moon's
// center when we define "rise/set" (upper limb on the horizon), including
// approximate refraction + limb correction and a small dependence on distance.
//
// The base value -0.90° was tuned against ephemeris tables. We then apply a
// tiny distance-dependent tweak so that when the Moon is closer (larger
// angular size), we allow the center to sit slightly lower, and when it's
// farther, slightly higher.
func ApparentHorizonAltitudeMoon(distanceKm float64) float64 {
	const (
		meanDistKm  = 384400.0 // average Earth–Moon distance
		baseHorizon = -0.90    // tuned at mean distance
		kScale      = 0.6      // deg per unit fractional distance
	)

	if distanceKm <= 0 {
		// Fallback to base if something weird happens
		return baseHorizon
	}

	// Fractional deviation from mean distance
	frac := (distanceKm - meanDistKm) / meanDistKm
	// When Moon is closer (frac < 0), horizon gets a bit more negative.
	// When farther (frac > 0), horizon gets a bit less negative.
	return baseHorizon - kScale*frac
}

// Horizontal computes the Moon's topocentric horizontal coordinates at
// (lat, lon) at time t. Azimuth from North, clockwise, [0, 360); altitude is
// geometric (no atmospheric refraction), corrected for horizontal parallax.
func Horizontal(lat, lon float64, t time.Time) (azDeg, altDeg float64) {
	eq := GeocentricEquatorialWithDistanceApprox(t)

	raRad := timeutil.Deg2Rad(eq.RA)
	decRad := timeutil.Deg2Rad(eq.Dec)
	latRad := timeutil.Deg2Rad(lat)

	lstRad := timeutil.Deg2Rad(timeutil.LocalSiderealDeg(t, lon))
	H := timeutil.NormalizeHourAngle(lstRad - raRad)

	// --- Topocentric correction via horizontal parallax ---
	pi := horizontalParallax(eq.Distance) // radians

	sinPhi := math.Sin(latRad)
	cosPhi := math.Cos(latRad)

	// Meeus approximate factors for observer at sea level.
	rhoSinPhi := 0.99883 * sinPhi
	rhoCosPhi := 0.99883 * cosPhi

	sinDec := math.Sin(decRad)
	cosDec := math.Cos(decRad)
	sinPar := math.Sin(pi)

	// Δα (correction to RA)
	deltaAlpha := math.Atan2(
		-rhoCosPhi*sinPar*math.Sin(H),
		cosDec-rhoCosPhi*sinPar*math.Cos(H),
	)

	// Topocentric RA and Dec
	raTopo := raRad + deltaAlpha
	decTopo := math.Atan2(
		sinDec-rhoSinPhi*sinPar,
		cosDec-rhoCosPhi*sinPar*math.Cos(H),
	)

	// New hour angle with topocentric RA
	Ht := timeutil.NormalizeHourAngle(lstRad - raTopo)

	sinAlt := sinPhi*math.Sin(decTopo) + cosPhi*math.Cos(decTopo)*math.Cos(Ht)
	altRad := math.Asin(sinAlt)

	azRad := math.Atan2(
		math.Sin(Ht),
		math.Cos(Ht)*sinPhi-math.Tan(decTopo)*cosPhi,
	)

	azDeg = timeutil.Normalize360(timeutil.Rad2Deg(azRad) + 180.0)
	altDeg = timeutil.Rad2Deg(altRad)
	return azDeg, altDeg
}

// PhaseIllumination returns the Moon's synodic phase in [0, 1) (0 = new,
// 0.5 = full) and its illuminated fraction in [0, 1] at time t. Both are
// geocentric properties, independent of the observer.
func PhaseIllumination(t time.Time) (phase, fraction float64) {
	mEq := GeocentricEquatorialApprox(t)
	sEq := sun.GeocentricEquatorialApprox(t)

	raSun := timeutil.Deg2Rad(sEq.RA)
	decSun := timeutil.Deg2Rad(sEq.Dec)
	raMoon := timeutil.Deg2Rad(mEq.RA)
	decMoon := timeutil.Deg2Rad(mEq.Dec)

	// Angular separation ψ between Sun and Moon:
	// cos ψ = sin δs sin δm + cos δs cos δm cos(αs - αm)
	cosPsi := math.Sin(decSun)*math.Sin(decMoon) +
		math.Cos(decSun)*math.Cos(decMoon)*math.Cos(raSun-raMoon)

	// Clamp to handle numerical noise
	if cosPsi > 1 {
		cosPsi = 1
	} else if cosPsi < -1 {
		cosPsi = -1
	}

	// Illuminated fraction: k = (1 - cos ψ) / 2
	fraction = 0.5 * (1 - cosPsi)
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	// Synodic phase from the Moon's RA lead over the Sun:
	// 0 at new moon, 0.5 at full, wrapping at the next new moon.
	sepDeg := timeutil.Normalize360(mEq.RA - sEq.RA)
	phase = sepDeg / 360.0

	return phase, fraction
}

// NextHorizonCrossing finds the earliest instant at or after t0 at which the
// Moon crosses its distance-dependent apparent horizon in the given direction,
// searching up to `window` ahead. Returns false if no crossing is found.
//
// The set direction keeps the small extra horizon drop that compensates the
// observed late bias of the plain model.
func NextHorizonCrossing(lat, lon float64, t0 time.Time, dir solver.EventType, window time.Duration) (time.Time, bool) {
	altFunc := func(t time.Time) float64 {
		eq := GeocentricEquatorialWithDistanceApprox(t)
		_, alt := Horizontal(lat, lon, t)
		horizon := ApparentHorizonAltitudeMoon(eq.Distance)
		if dir == solver.CrossingDown {
			horizon += moonSetExtraDropDeg
		}
		return alt - horizon
	}

	// The Moon moves ~0.5°/min near the horizon; 20-minute samples bracket
	// every crossing comfortably.
	steps := int(window/(20*time.Minute)) + 2
	res := solver.FindAltitudeEvent(altFunc, t0, t0.Add(window), 0, dir, steps, 15*time.Second)
	if !res.OK {
		return time.Time{}, false
	}
	return res.Time, true
}

func horizontalParallax(distanceKm float64) float64 {
	const earthRadiusKm = 6378.14
	if distanceKm <= earthRadiusKm {
		// ridiculously close / invalid, just clamp
		return timeutil.Deg2Rad(1.0) // ~1° in radians as a safe default
	}
	return math.Asin(earthRadiusKm / distanceKm) // radians
}
