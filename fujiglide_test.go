package fujiglide_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/thurmanmarka/fujiglide"
)

// Reference observation points used across the tests.
var (
	// Umihotaru parking area, Tokyo Bay Aqua-Line.
	umihotaru = fujiglide.Coordinates{Lat: 35.464815, Lon: 139.872861, Elevation: 5}

	// Tenshigatake, Shizuoka side.
	tenshigatake = fujiglide.Coordinates{Lat: 35.329621, Lon: 138.535881, Elevation: 1319}

	// Lake Tanuki, west of the summit.
	tanuki = fujiglide.Coordinates{Lat: 35.3333, Lon: 138.6167, Elevation: 650}
)

func TestBearingToFuji(t *testing.T) {
	tests := []struct {
		name    string
		obs     fujiglide.Coordinates
		wantDeg float64
		tolDeg  float64
	}{
		{"Umihotaru", umihotaru, 263.96, 0.3},
		{"Tenshigatake", tenshigatake, 78.73, 0.3},
		{"Lake Tanuki", tanuki, 73.0, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fujiglide.BearingToFuji(tt.obs)
			if err != nil {
				t.Fatalf("BearingToFuji() error = %v", err)
			}
			if got < 0 || got >= 360 {
				t.Errorf("bearing %.4f outside [0, 360)", got)
			}
			if math.Abs(got-tt.wantDeg) > tt.tolDeg {
				t.Errorf("bearing = %.3f°, want %.3f° ± %.2f°", got, tt.wantDeg, tt.tolDeg)
			}
		})
	}
}

func TestApparentElevationToFuji(t *testing.T) {
	const eyeHeight = 1.7

	got, err := fujiglide.ApparentElevationToFuji(umihotaru, eyeHeight)
	if err != nil {
		t.Fatalf("ApparentElevationToFuji() error = %v", err)
	}
	// Reference value for Umihotaru is about 2.07°.
	if math.Abs(got-2.07) > 0.1 {
		t.Errorf("Umihotaru apparent elevation = %.3f°, want ~2.07°", got)
	}

	// Any real ground observation point in Japan stays in (-1, +15).
	for _, obs := range []fujiglide.Coordinates{umihotaru, tenshigatake, tanuki} {
		e, err := fujiglide.ApparentElevationToFuji(obs, eyeHeight)
		if err != nil {
			t.Fatalf("ApparentElevationToFuji() error = %v", err)
		}
		if e <= -1 || e >= 15 {
			t.Errorf("apparent elevation %.3f° outside (-1, +15) for %+v", e, obs)
		}
	}

	// Curvature must pull the apparent angle below the naive flat-Earth one.
	d, _ := fujiglide.DistanceToFuji(umihotaru)
	naive := math.Atan2(fujiglide.FujiElevation-umihotaru.Elevation-eyeHeight, d) * 180 / math.Pi
	if got >= naive {
		t.Errorf("apparent elevation %.3f° not below naive %.3f°", got, naive)
	}
}

func TestDistanceToFuji(t *testing.T) {
	d, err := fujiglide.DistanceToFuji(umihotaru)
	if err != nil {
		t.Fatalf("DistanceToFuji() error = %v", err)
	}
	// Umihotaru sits roughly 100 km east of the summit.
	if d < 95_000 || d > 115_000 {
		t.Errorf("Umihotaru distance = %.0f m, want ~100-110 km", d)
	}

	d2, _ := fujiglide.DistanceToFuji(tenshigatake)
	if d2 > 25_000 {
		t.Errorf("Tenshigatake distance = %.0f m, want under 25 km", d2)
	}
}

func TestRefraction(t *testing.T) {
	// Below 15°: Bennett-style polynomial at coefficient 1.
	if got, want := fujiglide.Refraction(0, 1.0), 0.1594; math.Abs(got-want) > 1e-9 {
		t.Errorf("Refraction(0) = %v, want %v", got, want)
	}
	if got, want := fujiglide.Refraction(10, 1.0), 0.1594+0.196+0.002; math.Abs(got-want) > 1e-9 {
		t.Errorf("Refraction(10) = %v, want %v", got, want)
	}

	// At and above 15°: cotangent term.
	got := fujiglide.Refraction(45, 1.0)
	if math.Abs(got-0.00452) > 1e-9 {
		t.Errorf("Refraction(45) = %v, want 0.00452", got)
	}

	// Coefficient scales linearly.
	if a, b := fujiglide.Refraction(5, 1.0), fujiglide.Refraction(5, 1.02); math.Abs(b/a-1.02) > 1e-9 {
		t.Errorf("coefficient scaling broken: %v vs %v", a, b)
	}
}

func TestSunHorizontal_TokyoNoon(t *testing.T) {
	// Around local noon in winter the Sun sits low and due south of Tokyo.
	noon := time.Date(2025, time.January, 15, 12, 0, 0, 0, fujiglide.JST)
	h, err := fujiglide.SunHorizontal(noon, fujiglide.Coordinates{Lat: 35.68, Lon: 139.77})
	if err != nil {
		t.Fatalf("SunHorizontal() error = %v", err)
	}

	if h.Azimuth < 150 || h.Azimuth > 210 {
		t.Errorf("noon azimuth = %.2f°, want roughly south", h.Azimuth)
	}
	if h.Altitude < 20 || h.Altitude > 40 {
		t.Errorf("mid-January noon altitude = %.2f°, want 20-40°", h.Altitude)
	}
}

func TestMoonHorizontal_Ranges(t *testing.T) {
	ts := time.Date(2025, time.January, 16, 5, 0, 0, 0, fujiglide.JST)
	m, err := fujiglide.MoonHorizontal(ts, tenshigatake)
	if err != nil {
		t.Fatalf("MoonHorizontal() error = %v", err)
	}
	if m.Azimuth < 0 || m.Azimuth >= 360 {
		t.Errorf("azimuth %.2f outside [0, 360)", m.Azimuth)
	}
	if m.Altitude < -90 || m.Altitude > 90 {
		t.Errorf("altitude %.2f outside [-90, 90]", m.Altitude)
	}
	if m.Phase < 0 || m.Phase >= 1 {
		t.Errorf("phase %.3f outside [0, 1)", m.Phase)
	}
	if m.Illumination < 0 || m.Illumination > 1 {
		t.Errorf("illumination %.3f outside [0, 1]", m.Illumination)
	}
	// Two days past full moon (2025-01-14), still mostly lit.
	if m.Illumination < 0.8 {
		t.Errorf("illumination %.3f, want > 0.8 just after full moon", m.Illumination)
	}
}

func TestNextRiseSet_SunTokyo(t *testing.T) {
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, fujiglide.JST)
	tokyo := fujiglide.Coordinates{Lat: 35.68, Lon: 139.77}

	rise, err := fujiglide.NextRiseSet(fujiglide.Sun, tokyo, day, fujiglide.Rise)
	if err != nil {
		t.Fatalf("NextRiseSet(rise) error = %v", err)
	}
	set, err := fujiglide.NextRiseSet(fujiglide.Sun, tokyo, day, fujiglide.Set)
	if err != nil {
		t.Fatalf("NextRiseSet(set) error = %v", err)
	}

	// Reference: Tokyo 2025-03-10 sunrise ≈ 05:57 JST, sunset ≈ 17:40 JST.
	wantRise := time.Date(2025, time.March, 10, 5, 57, 0, 0, fujiglide.JST)
	wantSet := time.Date(2025, time.March, 10, 17, 40, 0, 0, fujiglide.JST)

	if got := absMinutes(rise, wantRise); got > 12 {
		t.Errorf("sunrise off by %.1f min (got %v, want ~%v)", got, rise.In(fujiglide.JST), wantRise)
	}
	if got := absMinutes(set, wantSet); got > 12 {
		t.Errorf("sunset off by %.1f min (got %v, want ~%v)", got, set.In(fujiglide.JST), wantSet)
	}
	if !rise.After(day) || !set.After(rise) {
		t.Errorf("ordering wrong: day=%v rise=%v set=%v", day, rise, set)
	}
}

func TestInvalidInput(t *testing.T) {
	bad := []fujiglide.Coordinates{
		{Lat: math.NaN(), Lon: 139},
		{Lat: 95, Lon: 139},
		{Lat: 35, Lon: 200},
		{Lat: 35, Lon: math.NaN()},
	}
	now := time.Now()

	for _, obs := range bad {
		if _, err := fujiglide.SunHorizontal(now, obs); err == nil {
			t.Errorf("SunHorizontal accepted %+v", obs)
		}
		if _, err := fujiglide.BearingToFuji(obs); err == nil {
			t.Errorf("BearingToFuji accepted %+v", obs)
		}
		if _, err := fujiglide.NextRiseSet(fujiglide.Moon, obs, now, fujiglide.Rise); err == nil {
			t.Errorf("NextRiseSet accepted %+v", obs)
		}
	}
}

func absMinutes(a, b time.Time) float64 {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}

// ExampleBearingToFuji demonstrates the summit geometry for an observer.
func ExampleBearingToFuji() {
	obs := fujiglide.Coordinates{Lat: 35.464815, Lon: 139.872861, Elevation: 5}

	bearing, _ := fujiglide.BearingToFuji(obs)
	distance, _ := fujiglide.DistanceToFuji(obs)
	elev, _ := fujiglide.ApparentElevationToFuji(obs, 1.7)

	fmt.Printf("bearing %.2f°, distance %.1f km, apparent elevation %.2f°\n",
		bearing, distance/1000, elev)
	// Intentionally no // Output: block so this stays a documentation example
	// and is not validated as a test.
}
