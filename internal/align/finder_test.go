package align

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thurmanmarka/fujiglide"
	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/settings"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// fakeEphemeris drives the finder with synthetic, perfectly linear bodies so
// the search logic is tested independently of astronomy accuracy.
//
// Each body's azimuth crosses crossAz at crossTime moving azRate degrees per
// minute; the raw altitude is constant.
type fakeEphemeris struct {
	sunCrossAz   float64
	sunCrossTime time.Time
	sunAltDeg    float64

	moonCrossAz   float64
	moonCrossTime time.Time
	moonAltDeg    float64
	moonIllum     float64
	moonRise      time.Time // zero means "no rise today"
	moonSet       time.Time // zero means "no set today"
}

// azRate approximates a celestial body's azimuth drift near the horizon.
const azRate = 0.25 // degrees per minute

func linearAz(crossAz float64, crossTime, t time.Time) float64 {
	return timeutil.Normalize360(crossAz + azRate*t.Sub(crossTime).Minutes())
}

func (f *fakeEphemeris) SunHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.Horizontal, error) {
	return fujiglide.Horizontal{
		Azimuth:  linearAz(f.sunCrossAz, f.sunCrossTime, t),
		Altitude: f.sunAltDeg,
	}, nil
}

func (f *fakeEphemeris) MoonHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.MoonState, error) {
	return fujiglide.MoonState{
		Horizontal: fujiglide.Horizontal{
			Azimuth:  linearAz(f.moonCrossAz, f.moonCrossTime, t),
			Altitude: f.moonAltDeg,
		},
		Phase:        0.5,
		Illumination: f.moonIllum,
	}, nil
}

func (f *fakeEphemeris) NextRiseSet(body fujiglide.Body, obs fujiglide.Coordinates, t0 time.Time, dir fujiglide.Direction) (time.Time, error) {
	if body != fujiglide.Moon {
		return time.Time{}, errors.New("fake: sun rise/set not modelled")
	}
	switch dir {
	case fujiglide.Rise:
		if f.moonRise.IsZero() {
			return time.Time{}, errors.New("fake: no moonrise")
		}
		return f.moonRise, nil
	default:
		if f.moonSet.IsZero() {
			return time.Time{}, errors.New("fake: no moonset")
		}
		return f.moonSet, nil
	}
}

// testLocation is close enough to the summit for the tightest tolerance
// band (0.25° Diamond azimuth at ≤ 50 km).
func testLocation() *model.Location {
	return &model.Location{
		ID:                       1,
		Name:                     "synthetic ridge",
		Latitude:                 35.33,
		Longitude:                138.62,
		Elevation:                650,
		FujiBearingDeg:           100.0,
		FujiApparentElevationDeg: 2.0,
		FujiDistanceM:            40_000,
	}
}

// rawAltFor returns a constant raw altitude whose refracted value lands on
// the location's apparent elevation within a few millidegrees.
func rawAltFor(apparent float64, snap settings.Snapshot) float64 {
	raw := apparent
	for i := 0; i < 4; i++ {
		raw = apparent - fujiglide.Refraction(raw, snap.RefractionCoeff)
	}
	return raw
}

func jst(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, timeutil.JST)
}

func TestSearchFindsDiamondSunrise(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	// January 15 is in the default Diamond season; the winter sunrise
	// window is 06:00-09:00 JST.
	cross := jst(2026, time.January, 15, 7, 0)
	eph := &fakeEphemeris{
		sunCrossAz:   loc.FujiBearingDeg,
		sunCrossTime: cross,
		sunAltDeg:    rawAltFor(loc.FujiApparentElevationDeg, snap),
	}

	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, jst(2026, time.January, 15, 0, 0), snap)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, model.DiamondSunrise, c.Kind)
	assert.WithinDuration(t, cross, c.Time, time.Minute)
	assert.InDelta(t, loc.FujiBearingDeg, c.AzimuthDeg, 0.3)
	assert.InDelta(t, loc.FujiApparentElevationDeg, c.AltitudeDeg, 0.05)
	assert.Greater(t, c.QualityScore, 0.9)
	assert.Equal(t, model.TierPerfect, c.AccuracyTier)
}

func TestSearchSkipsDiamondOutOfSeason(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	// Mid-June: the Sun would align, but the month is outside the default
	// season so no Diamond window even opens.
	cross := jst(2026, time.June, 15, 5, 0)
	eph := &fakeEphemeris{
		sunCrossAz:   loc.FujiBearingDeg,
		sunCrossTime: cross,
		sunAltDeg:    rawAltFor(loc.FujiApparentElevationDeg, snap),
	}

	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, jst(2026, time.June, 15, 0, 0), snap)
	require.NoError(t, err)
	assert.Empty(t, cands)

	// Widening the season to include June brings the event back.
	snap.DiamondSeasonMonths = []int{6}
	cands, err = f.Search(context.Background(), loc, jst(2026, time.June, 15, 0, 0), snap)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, model.DiamondSunrise, cands[0].Kind)
}

func TestSearchRejectsAltitudeMiss(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	// The Sun crosses the bearing exactly but tracks 1° above the summit's
	// apparent elevation the whole time: outside the 0.25° altitude gate.
	cross := jst(2026, time.January, 15, 7, 0)
	eph := &fakeEphemeris{
		sunCrossAz:   loc.FujiBearingDeg,
		sunCrossTime: cross,
		sunAltDeg:    rawAltFor(loc.FujiApparentElevationDeg+1.0, snap),
	}

	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, jst(2026, time.January, 15, 0, 0), snap)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchFindsPearlMoonriseAndGatesIllumination(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	// Mid-June: Diamond season is closed, so only the Moon windows run.
	day := jst(2026, time.June, 15, 0, 0)
	rise := jst(2026, time.June, 15, 18, 0)

	eph := &fakeEphemeris{
		moonCrossAz:   loc.FujiBearingDeg,
		moonCrossTime: rise,
		moonAltDeg:    rawAltFor(loc.FujiApparentElevationDeg, snap),
		moonIllum:     0.82,
		moonRise:      rise,
	}

	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, day, snap)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, model.PearlMoonrise, c.Kind)
	assert.WithinDuration(t, rise, c.Time, time.Minute)
	assert.InDelta(t, 0.82, c.MoonIllumination, 1e-9)
	assert.InDelta(t, 0.5, c.MoonPhase, 1e-9)

	// A nearly new Moon is filtered even on a perfect geometric alignment.
	eph.moonIllum = 0.05
	cands, err = f.Search(context.Background(), loc, day, snap)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchSkipsMoonRiseAfterCivilDate(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	day := jst(2026, time.June, 15, 0, 0)
	eph := &fakeEphemeris{
		moonCrossAz: loc.FujiBearingDeg,
		moonAltDeg:  rawAltFor(loc.FujiApparentElevationDeg, snap),
		moonIllum:   0.9,
		// Rise lands on the next civil date: not this day's event.
		moonRise: jst(2026, time.June, 16, 1, 0),
	}
	eph.moonCrossTime = eph.moonRise

	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, day, snap)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchKeepsEventsInsideCivilDate(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()
	day := jst(2026, time.June, 15, 0, 0)

	// A late moonrise whose bracket reaches past midnight but whose
	// aligned instant still lands on this date is kept.
	eph := &fakeEphemeris{
		moonCrossAz:   loc.FujiBearingDeg,
		moonCrossTime: jst(2026, time.June, 15, 23, 30),
		moonAltDeg:    rawAltFor(loc.FujiApparentElevationDeg, snap),
		moonIllum:     0.9,
		moonRise:      jst(2026, time.June, 15, 23, 10),
	}
	f := NewFinder(eph, zerolog.Nop())
	cands, err := f.Search(context.Background(), loc, day, snap)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.True(t, timeutil.CivilDateJST(cands[0].Time).Equal(day),
		"event at %v left the searched civil date", cands[0].Time)

	// Push the crossing past midnight: the rise still belongs to this
	// date, but the aligned instant does not, so nothing is emitted here.
	eph.moonRise = jst(2026, time.June, 15, 23, 45)
	eph.moonCrossTime = jst(2026, time.June, 16, 0, 30)
	cands, err = f.Search(context.Background(), loc, day, snap)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchHonorsCancellation(t *testing.T) {
	snap := settings.Defaults()
	loc := testLocation()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFinder(&fakeEphemeris{}, zerolog.Nop())
	_, err := f.Search(ctx, loc, jst(2026, time.January, 15, 0, 0), snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchRejectsInvalidObserver(t *testing.T) {
	loc := testLocation()
	loc.Latitude = 95

	f := NewFinder(&fakeEphemeris{}, zerolog.Nop())
	_, err := f.Search(context.Background(), loc, jst(2026, time.January, 15, 0, 0), settings.Defaults())
	assert.ErrorIs(t, err, fujiglide.ErrInvalidInput)
}

func TestDiamondAzimuthTol(t *testing.T) {
	tests := []struct {
		distanceM float64
		want      float64
	}{
		{10_000, 0.25},
		{50_000, 0.25},
		{50_001, 0.4},
		{100_000, 0.4},
		{100_001, 0.6},
		{250_000, 0.6},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DiamondAzimuthTol(tt.distanceM), 1e-12, "distance %v", tt.distanceM)
		assert.InDelta(t, 4*tt.want, PearlAzimuthTol(tt.distanceM), 1e-12, "distance %v", tt.distanceM)
	}
}

func TestQualityScore(t *testing.T) {
	// Perfect residuals.
	assert.InDelta(t, 1.0, QualityScore(0, 0.25, 0, 0.25), 1e-12)

	// Residuals exactly at tolerance: 1 - 0.5 - 0.5 = 0.
	assert.InDelta(t, 0.0, QualityScore(0.25, 0.25, 0.25, 0.25), 1e-12)

	// Half tolerance on both axes: 0.5.
	assert.InDelta(t, 0.5, QualityScore(0.125, 0.25, 0.125, 0.25), 1e-12)

	// Never negative.
	assert.InDelta(t, 0.0, QualityScore(1, 0.25, 1, 0.25), 1e-12)
}

func TestTierForQuality(t *testing.T) {
	tests := []struct {
		q    float64
		want model.AccuracyTier
	}{
		{1.0, model.TierPerfect},
		{0.90, model.TierPerfect},
		{0.89, model.TierExcellent},
		{0.75, model.TierExcellent},
		{0.74, model.TierGood},
		{0.50, model.TierGood},
		{0.49, model.TierFair},
		{0.0, model.TierFair},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.TierForQuality(tt.q), "q=%v", tt.q)
	}
}

func TestDiamondClockWindows(t *testing.T) {
	// Winter mornings start later than summer mornings.
	winterRise, _, _, _ := diamondClockWindows(time.December)
	summerRise, _, _, _ := diamondClockWindows(time.July)
	springRise, _, _, _ := diamondClockWindows(time.April)

	assert.Equal(t, 6*time.Hour, winterRise)
	assert.Equal(t, 4*time.Hour, summerRise)
	assert.Equal(t, 5*time.Hour, springRise)
}
