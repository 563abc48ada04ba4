package moon

import (
	"math"
	"time"

	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Equatorial represents equatorial coordinates (right ascension and declination)
// in degrees. RA is in degrees (0–360) instead of hours to stay consistent with
// internal math helpers.
type Equatorial struct {
	RA  float64 // right ascension, degrees
	Dec float64 // declination, degrees
}

// EquatorialDistance extends Equatorial with the Earth–Moon distance.
type EquatorialDistance struct {
	RA       float64 // degrees
	Dec      float64 // degrees
	Distance float64 // km
}

// arcsecPerRad converts the series sums below (arcseconds) to radians.
const arcsecPerRad = 206264.8062

// frac returns the fractional part of x, in [0, 1) for the argument ranges
// the fundamental angles produce.
func frac(x float64) float64 {
	return x - math.Floor(x)
}

// fundamentals holds the Moon's fundamental arguments at one instant.
// l0 is the mean longitude in revolutions; the rest are radians.
type fundamentals struct {
	l0 float64 // mean longitude, revolutions of 2π
	l  float64 // mean anomaly of the Moon
	ls float64 // mean anomaly of the Sun
	d  float64 // mean elongation from the Sun
	f  float64 // mean distance from the ascending node
}

func fundamentalArgs(t time.Time) fundamentals {
	T := timeutil.JulianCenturies(t)
	return fundamentals{
		l0: frac(0.606433 + 1336.855225*T),
		l:  2 * math.Pi * frac(0.374897+1325.552410*T),
		ls: 2 * math.Pi * frac(0.993133+99.997361*T),
		d:  2 * math.Pi * frac(0.827361+1236.853086*T),
		f:  2 * math.Pi * frac(0.259086+1342.227825*T),
	}
}

// eclipticLonLat evaluates the truncated lunar theory of Montenbruck &
// Pfleger (the "low-precision" series from Astronomy on the Personal
// Computer) and returns the Moon's geocentric ecliptic longitude and
// latitude in radians. Good to a few arcminutes, which keeps topocentric
// altitude errors well under the alignment tolerances.
func eclipticLonLat(a fundamentals) (lonRad, latRad float64) {
	l, ls, d, f := a.l, a.ls, a.d, a.f

	// Perturbations in longitude, arcseconds.
	dl := 22640*math.Sin(l) -
		4586*math.Sin(l-2*d) +
		2370*math.Sin(2*d) +
		769*math.Sin(2*l) -
		668*math.Sin(ls) -
		412*math.Sin(2*f) -
		212*math.Sin(2*l-2*d) -
		206*math.Sin(l+ls-2*d) +
		192*math.Sin(l+2*d) -
		165*math.Sin(ls-2*d) +
		148*math.Sin(l-ls) -
		125*math.Sin(d) -
		110*math.Sin(l+ls) -
		55*math.Sin(2*f-2*d)

	// Latitude: the node argument picks up part of the longitude
	// perturbation, plus its own short-period terms.
	s := f + (dl+412*math.Sin(2*f)+541*math.Sin(ls))/arcsecPerRad
	h := f - 2*d
	n := -526*math.Sin(h) +
		44*math.Sin(l+h) -
		31*math.Sin(-l+h) -
		23*math.Sin(ls+h) +
		11*math.Sin(-ls+h) -
		25*math.Sin(-2*l+f) +
		21*math.Sin(-l+f)

	lonRad = 2 * math.Pi * frac(a.l0+dl/1296000)
	latRad = (18520.0*math.Sin(s) + n) / arcsecPerRad
	return lonRad, latRad
}

// distanceKm evaluates the main Meeus Σr terms with the same fundamental
// arguments. Truncation error is a couple hundred km at worst, which moves
// the horizontal parallax by under an arcsecond.
func distanceKm(a fundamentals) float64 {
	l, ls, d, f := a.l, a.ls, a.d, a.f

	return 385000.56 -
		20905.355*math.Cos(l) -
		3699.111*math.Cos(2*d-l) -
		2955.968*math.Cos(2*d) -
		569.925*math.Cos(2*l) +
		48.888*math.Cos(ls) -
		3.149*math.Cos(2*f) +
		246.158*math.Cos(2*d-2*l) -
		152.138*math.Cos(2*d-ls-l) -
		170.733*math.Cos(2*d+l) -
		204.586*math.Cos(2*d-ls) -
		129.620*math.Cos(ls-l) +
		108.743*math.Cos(d) +
		104.755*math.Cos(ls+l) +
		10.321*math.Cos(2*d-2*f)
}

// equatorialFromEcliptic rotates ecliptic (lon, lat) into equatorial RA/Dec
// using the mean obliquity at t.
func equatorialFromEcliptic(lonRad, latRad float64, t time.Time) Equatorial {
	d := timeutil.DaysSinceJ2000(t)
	eps := timeutil.Deg2Rad(23.439291 - 0.0000137*d)

	x := math.Cos(latRad) * math.Cos(lonRad)
	y := math.Cos(latRad) * math.Sin(lonRad)
	z := math.Sin(latRad)

	yEq := y*math.Cos(eps) - z*math.Sin(eps)
	zEq := y*math.Sin(eps) + z*math.Cos(eps)

	ra := math.Atan2(yEq, x)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	dec := math.Asin(zEq)

	return Equatorial{
		RA:  timeutil.Rad2Deg(ra),
		Dec: timeutil.Rad2Deg(dec),
	}
}

// GeocentricEquatorialApprox returns an approximate geocentric RA/Dec for the
// Moon at the given time t.
//
// The underlying series is the Montenbruck & Pfleger truncated lunar theory
// (arcminute-level accuracy), not a full ephemeris. That is more than enough
// headroom under the alignment tolerances this module works to.
func GeocentricEquatorialApprox(t time.Time) Equatorial {
	lon, lat := eclipticLonLat(fundamentalArgs(t))
	return equatorialFromEcliptic(lon, lat, t)
}

// GeocentricEquatorialWithDistanceApprox returns RA/Dec plus the Earth–Moon
// distance Δ (km).
func GeocentricEquatorialWithDistanceApprox(t time.Time) EquatorialDistance {
	a := fundamentalArgs(t)
	lon, lat := eclipticLonLat(a)
	eq := equatorialFromEcliptic(lon, lat, t)

	return EquatorialDistance{
		RA:       eq.RA,
		Dec:      eq.Dec,
		Distance: distanceKm(a),
	}
}
