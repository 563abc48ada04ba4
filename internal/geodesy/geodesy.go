// Package geodesy provides the observer-to-summit geometry primitives:
// great-circle bearing and distance, and the apparent elevation of the
// summit above an observer's horizon after Earth-curvature and
// atmospheric-refraction corrections.
package geodesy

import (
	"math"

	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Mt. Fuji summit, authoritative for the whole module.
const (
	FujiLat       = 35.3606  // degrees north
	FujiLon       = 138.7274 // degrees east
	FujiElevation = 3776.0   // metres above sea level
)

// EarthRadiusM is the mean Earth radius used for curvature and distance.
const EarthRadiusM = 6371000.0

// RefractionK is the terrestrial refraction coefficient: the fraction of the
// Earth-curvature drop given back by atmospheric bending along the sightline.
const RefractionK = 0.13

// Bearing returns the forward azimuth (degrees, 0 = North, clockwise,
// [0, 360)) of the great circle from (lat1, lon1) to (lat2, lon2).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := timeutil.Deg2Rad(lat1)
	phi2 := timeutil.Deg2Rad(lat2)
	dLon := timeutil.Deg2Rad(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return timeutil.Normalize360(timeutil.Rad2Deg(math.Atan2(y, x)))
}

// Distance returns the great-circle distance in metres between two points,
// using the haversine form (stable for the short arcs we deal with).
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := timeutil.Deg2Rad(lat1)
	phi2 := timeutil.Deg2Rad(lat2)
	dPhi := timeutil.Deg2Rad(lat2 - lat1)
	dLon := timeutil.Deg2Rad(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLon := math.Sin(dLon / 2)

	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// BearingToFuji returns the forward azimuth from the observer to the summit.
func BearingToFuji(lat, lon float64) float64 {
	return Bearing(lat, lon, FujiLat, FujiLon)
}

// DistanceToFuji returns the great-circle distance in metres from the
// observer to the summit.
func DistanceToFuji(lat, lon float64) float64 {
	return Distance(lat, lon, FujiLat, FujiLon)
}

// ApparentElevationToFuji returns the signed angle (degrees) of the summit
// above the observer's astronomical horizon.
//
// The geometric height difference is reduced by the Earth-curvature drop
// d²/(2·R_e) and then partially restored by terrestrial refraction
// (k times the drop, k = 0.13). The observer's eye height stacks on the
// site elevation.
func ApparentElevationToFuji(lat, lon, elevM, eyeHeightM float64) float64 {
	d := DistanceToFuji(lat, lon)
	if d <= 0 {
		return 0
	}

	observerH := elevM + eyeHeightM
	heightDiff := FujiElevation - observerH

	curvatureDrop := d * d / (2 * EarthRadiusM)
	refractionLift := RefractionK * curvatureDrop

	apparent := heightDiff - curvatureDrop + refractionLift

	return timeutil.Rad2Deg(math.Atan2(apparent, d))
}

// Refraction returns the atmospheric refraction correction in degrees to add
// to a geometric altitude h (degrees). Below 15° it uses a Bennett-style
// polynomial; at 15° and above a simple cotangent term. The result is scaled
// by `coefficient`, the local-atmosphere multiplier (1.02 for Japan).
func Refraction(altDeg, coefficient float64) float64 {
	var r float64
	if altDeg < 15 {
		r = 0.1594 + 0.0196*altDeg + 0.00002*altDeg*altDeg
	} else {
		r = 0.00452 * timeutil.TanD(90.0-altDeg)
	}
	return r * coefficient
}
