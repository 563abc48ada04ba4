package geodesy

import (
	"math"
	"testing"
)

func TestBearing(t *testing.T) {
	// Due-east and due-north sanity on short arcs.
	if got := Bearing(35.0, 138.0, 35.0, 139.0); math.Abs(got-90) > 0.5 {
		t.Errorf("eastward bearing = %v, want ~90", got)
	}
	if got := Bearing(35.0, 138.0, 36.0, 138.0); math.Abs(got-0) > 1e-6 {
		t.Errorf("northward bearing = %v, want 0", got)
	}
	if got := Bearing(36.0, 138.0, 35.0, 138.0); math.Abs(got-180) > 1e-6 {
		t.Errorf("southward bearing = %v, want 180", got)
	}
}

func TestBearingToFuji(t *testing.T) {
	// Umihotaru, east of the summit: looks roughly west.
	if got := BearingToFuji(35.464815, 139.872861); math.Abs(got-263.96) > 0.3 {
		t.Errorf("Umihotaru bearing = %v, want ~263.96", got)
	}
	// Tenshigatake, west of the summit: looks roughly east.
	if got := BearingToFuji(35.329621, 138.535881); math.Abs(got-78.73) > 0.3 {
		t.Errorf("Tenshigatake bearing = %v, want ~78.73", got)
	}
}

func TestDistance(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := Distance(35.0, 138.0, 36.0, 138.0)
	if math.Abs(d-111_195) > 300 {
		t.Errorf("1° latitude distance = %v m, want ~111195 m", d)
	}

	// Symmetric.
	if d2 := Distance(36.0, 138.0, 35.0, 138.0); math.Abs(d-d2) > 1e-6 {
		t.Errorf("distance not symmetric: %v vs %v", d, d2)
	}

	// Zero for coincident points.
	if d0 := Distance(35.5, 138.5, 35.5, 138.5); d0 != 0 {
		t.Errorf("self distance = %v, want 0", d0)
	}
}

func TestApparentElevationToFuji(t *testing.T) {
	// Umihotaru at ~100 km: reference value about 2.07°.
	got := ApparentElevationToFuji(35.464815, 139.872861, 5, 1.7)
	if math.Abs(got-2.07) > 0.1 {
		t.Errorf("Umihotaru apparent elevation = %v, want ~2.07", got)
	}

	// Raising the observer lowers the summit's apparent elevation.
	low := ApparentElevationToFuji(35.33, 138.62, 100, 1.7)
	high := ApparentElevationToFuji(35.33, 138.62, 2000, 1.7)
	if high >= low {
		t.Errorf("elevation 2000 m (%v) should see the summit lower than 100 m (%v)", high, low)
	}

	// The curvature drop always pulls the angle below the flat-Earth one.
	d := DistanceToFuji(35.464815, 139.872861)
	naive := math.Atan2(FujiElevation-5-1.7, d) * 180 / math.Pi
	if got >= naive {
		t.Errorf("apparent %v not below naive %v", got, naive)
	}
}

func TestRefraction(t *testing.T) {
	tests := []struct {
		alt, coeff, want float64
	}{
		{0, 1.0, 0.1594},
		{5, 1.0, 0.1594 + 0.098 + 0.0005},
		{10, 1.0, 0.1594 + 0.196 + 0.002},
		{45, 1.0, 0.00452},
	}
	for _, tt := range tests {
		if got := Refraction(tt.alt, tt.coeff); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Refraction(%v, %v) = %v, want %v", tt.alt, tt.coeff, got, tt.want)
		}
	}

	// Coefficient scales linearly.
	if a, b := Refraction(3, 1.0), Refraction(3, 1.02); math.Abs(b/a-1.02) > 1e-9 {
		t.Errorf("coefficient scaling broken: %v vs %v", a, b)
	}

	// The cotangent branch shrinks toward the zenith.
	if Refraction(80, 1.0) >= Refraction(20, 1.0) {
		t.Errorf("high-altitude refraction not monotone")
	}
}
