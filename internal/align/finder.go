// Package align implements the two-phase bracketed search that locates
// Diamond and Pearl Fuji alignments for one (civil date, location) pair.
//
// Phase A sweeps a coarse candidate window at 10-minute steps keeping every
// sample whose azimuth is within twice the fine tolerance of the bearing to
// the summit. Phase B brackets ±30 minutes around the best coarse sample at
// 1-minute steps and picks the instant minimizing the combined azimuth +
// altitude residual. Both residuals must pass their tolerances for an event
// to be emitted; "no alignment" is an empty result, not an error.
package align

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/thurmanmarka/fujiglide"
	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/settings"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Ephemeris is the slice of the astronomy kernel the finder needs. Tests
// inject synthetic bodies; production passes Kernel{}.
type Ephemeris interface {
	SunHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.Horizontal, error)
	MoonHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.MoonState, error)
	NextRiseSet(body fujiglide.Body, obs fujiglide.Coordinates, t0 time.Time, dir fujiglide.Direction) (time.Time, error)
}

// Kernel adapts the root package's pure functions to the Ephemeris interface.
type Kernel struct{}

func (Kernel) SunHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.Horizontal, error) {
	return fujiglide.SunHorizontal(t, obs)
}

func (Kernel) MoonHorizontal(t time.Time, obs fujiglide.Coordinates) (fujiglide.MoonState, error) {
	return fujiglide.MoonHorizontal(t, obs)
}

func (Kernel) NextRiseSet(body fujiglide.Body, obs fujiglide.Coordinates, t0 time.Time, dir fujiglide.Direction) (time.Time, error) {
	return fujiglide.NextRiseSet(body, obs, t0, dir)
}

// Candidate is one accepted alignment, ready to be persisted as an Event.
type Candidate struct {
	Kind             model.EventKind
	Time             time.Time
	AzimuthDeg       float64 // celestial azimuth at the instant
	AltitudeDeg      float64 // refracted celestial altitude at the instant
	MoonPhase        float64 // Pearl only
	MoonIllumination float64 // Pearl only
	QualityScore     float64
	AccuracyTier     model.AccuracyTier
}

// Search steps.
const (
	coarseStep    = 10 * time.Minute
	fineStep      = 1 * time.Minute
	fineBracket   = 30 * time.Minute
	pearlBracket  = 60 * time.Minute // coarse window around a Moon rise/set
	weightAzimuth = 1.0
	weightAlt     = 1.0
)

// Altitude tolerances (degrees).
const (
	diamondAltTol = 0.25
	pearlAltTol   = 0.5
)

// DiamondAzimuthTol returns the distance-adaptive fine azimuth tolerance in
// degrees for Diamond events.
func DiamondAzimuthTol(distanceM float64) float64 {
	switch {
	case distanceM <= 50_000:
		return 0.25
	case distanceM <= 100_000:
		return 0.4
	default:
		return 0.6
	}
}

// PearlAzimuthTol is the Diamond schedule scaled ×4: the Moon's angular
// diameter and elevation error dominate.
func PearlAzimuthTol(distanceM float64) float64 {
	return 4 * DiamondAzimuthTol(distanceM)
}

// QualityScore computes the quality of an accepted alignment from its
// residuals and the tolerances they were accepted under, clamped to [0, 1].
func QualityScore(azResidual, azTol, altResidual, altTol float64) float64 {
	q := 1 - (azResidual/azTol)*0.5 - (altResidual/altTol)*0.5
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// Finder runs alignment searches against an Ephemeris.
type Finder struct {
	eph    Ephemeris
	log    zerolog.Logger
	tracer trace.Tracer
}

// NewFinder builds a Finder. The logger is used only to record per-window
// ephemeris failures; "no alignment" is never logged as a failure.
func NewFinder(eph Ephemeris, log zerolog.Logger) *Finder {
	return &Finder{
		eph:    eph,
		log:    log,
		tracer: otel.Tracer("fujiglide/align"),
	}
}

// Search returns every Diamond/Pearl alignment on the civil date (midnight
// JST) for the location, using the tolerances and gates from snap. A single
// window's ephemeris failure is logged and skipped; the other windows still
// run. Cancellation is honored between windows and between fine-step
// samples.
func (f *Finder) Search(ctx context.Context, loc *model.Location, date time.Time, snap settings.Snapshot) ([]Candidate, error) {
	ctx, span := f.tracer.Start(ctx, "align.Search", trace.WithAttributes(
		attribute.Int64("location.id", loc.ID),
		attribute.String("date", date.In(timeutil.JST).Format("2006-01-02")),
	))
	defer span.End()

	obs := fujiglide.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude, Elevation: loc.Elevation}
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	day := timeutil.CivilDateJST(date)
	var out []Candidate

	for _, w := range f.windows(loc, obs, day, snap) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		cand, err := f.searchWindow(ctx, loc, obs, day, w, snap)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			// Transient ephemeris failure: isolate it to this window.
			f.log.Warn().
				Err(err).
				Int64("location_id", loc.ID).
				Str("kind", string(w.kind)).
				Time("window_start", w.start).
				Msg("alignment window failed")
			continue
		}
		if cand != nil {
			out = append(out, *cand)
		}
	}

	span.SetAttributes(attribute.Int("events", len(out)))
	return out, nil
}

// window is one candidate search interval with the event kind it would emit.
type window struct {
	kind  model.EventKind
	start time.Time
	end   time.Time
}

// windows enumerates the day's candidate windows: season-gated clock windows
// for Diamond, Moon rise/set brackets for Pearl.
func (f *Finder) windows(loc *model.Location, obs fujiglide.Coordinates, day time.Time, snap settings.Snapshot) []window {
	var ws []window

	if snap.InDiamondSeason(day.Month()) {
		riseStart, riseEnd, setStart, setEnd := diamondClockWindows(day.Month())
		ws = append(ws,
			window{model.DiamondSunrise, day.Add(riseStart), day.Add(riseEnd)},
			window{model.DiamondSunset, day.Add(setStart), day.Add(setEnd)},
		)
	}

	// Pearl candidates: the Moon's actual rise and set on this civil date.
	nextDay := day.Add(24 * time.Hour)
	if rise, err := f.eph.NextRiseSet(fujiglide.Moon, obs, day, fujiglide.Rise); err == nil && rise.Before(nextDay) {
		ws = append(ws, window{model.PearlMoonrise, rise.Add(-pearlBracket), rise.Add(pearlBracket)})
	}
	if set, err := f.eph.NextRiseSet(fujiglide.Moon, obs, day, fujiglide.Set); err == nil && set.Before(nextDay) {
		ws = append(ws, window{model.PearlMoonset, set.Add(-pearlBracket), set.Add(pearlBracket)})
	}

	return ws
}

// diamondClockWindows returns the season-keyed coarse clock offsets from
// midnight JST for the sunrise and sunset searches.
func diamondClockWindows(m time.Month) (riseStart, riseEnd, setStart, setEnd time.Duration) {
	switch {
	case m >= time.March && m <= time.May: // spring
		return 5 * time.Hour, 8 * time.Hour, 16 * time.Hour, 19 * time.Hour
	case m >= time.June && m <= time.September: // summer/autumn
		return 4 * time.Hour, 7 * time.Hour, 17 * time.Hour, 20 * time.Hour
	default: // winter: October through February
		return 6 * time.Hour, 9 * time.Hour, 15 * time.Hour, 19 * time.Hour
	}
}

// horizontalAt returns the body's azimuth and refracted altitude at t, plus
// Moon phase/illumination when the kind is Pearl.
func (f *Finder) horizontalAt(kind model.EventKind, t time.Time, obs fujiglide.Coordinates, snap settings.Snapshot) (az, alt, phase, illum float64, err error) {
	if kind.IsDiamond() {
		h, herr := f.eph.SunHorizontal(t, obs)
		if herr != nil {
			return 0, 0, 0, 0, herr
		}
		az, alt = h.Azimuth, h.Altitude
	} else {
		m, merr := f.eph.MoonHorizontal(t, obs)
		if merr != nil {
			return 0, 0, 0, 0, merr
		}
		az, alt = m.Azimuth, m.Altitude
		phase, illum = m.Phase, m.Illumination
	}
	alt += fujiglide.Refraction(alt, snap.RefractionCoeff)
	return az, alt, phase, illum, nil
}

// searchWindow runs the two-phase search in one window. A nil Candidate with
// nil error means no alignment there. Samples outside the civil date are
// skipped: a Pearl bracket around a near-midnight rise can poke into the
// neighboring day, and those instants belong to that day's search.
func (f *Finder) searchWindow(ctx context.Context, loc *model.Location, obs fujiglide.Coordinates, day time.Time, w window, snap settings.Snapshot) (*Candidate, error) {
	dayEnd := day.Add(24 * time.Hour)
	var azTol, altTol float64
	if w.kind.IsDiamond() {
		azTol = DiamondAzimuthTol(loc.FujiDistanceM)
		altTol = diamondAltTol
	} else {
		azTol = PearlAzimuthTol(loc.FujiDistanceM)
		altTol = pearlAltTol
	}
	coarseTol := 2 * azTol

	// Phase A: coarse sweep. Keep the sample closest in azimuth to the
	// summit bearing among those inside the coarse tolerance.
	var (
		bestCoarse    time.Time
		bestCoarseDev = coarseTol
		found         bool
	)
	for t := w.start; !t.After(w.end); t = t.Add(coarseStep) {
		if t.Before(day) || !t.Before(dayEnd) {
			continue
		}
		az, _, _, _, err := f.horizontalAt(w.kind, t, obs, snap)
		if err != nil {
			return nil, err
		}
		dev := timeutil.AzimuthDiff(az, loc.FujiBearingDeg)
		if dev <= bestCoarseDev {
			bestCoarse, bestCoarseDev = t, dev
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	// Phase B: bracket ±30 minutes at 1-minute steps, minimizing the
	// combined residual.
	var (
		bestT        time.Time
		bestScore    = -1.0
		bestAz       float64
		bestAlt      float64
		bestAzDev    float64
		bestAltDev   float64
		bestPhase    float64
		bestIllum    float64
		haveAccepted bool
	)
	for t := bestCoarse.Add(-fineBracket); !t.After(bestCoarse.Add(fineBracket)); t = t.Add(fineStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.Before(day) || !t.Before(dayEnd) {
			continue
		}

		az, alt, phase, illum, err := f.horizontalAt(w.kind, t, obs, snap)
		if err != nil {
			return nil, err
		}

		azDev := timeutil.AzimuthDiff(az, loc.FujiBearingDeg)
		altDev := alt - loc.FujiApparentElevationDeg
		if altDev < 0 {
			altDev = -altDev
		}

		combined := weightAzimuth*azDev + weightAlt*altDev
		if bestScore < 0 || combined < bestScore {
			bestScore = combined
			bestT, bestAz, bestAlt = t, az, alt
			bestAzDev, bestAltDev = azDev, altDev
			bestPhase, bestIllum = phase, illum
			haveAccepted = true
		}
	}
	if !haveAccepted {
		return nil, nil
	}

	// Accept only if both residuals pass their tolerances.
	if bestAzDev > azTol || bestAltDev > altTol {
		return nil, nil
	}

	// Pearl brightness gate: an effectively new Moon is invisible.
	if w.kind.IsPearl() && bestIllum < snap.PearlIlluminationMin {
		return nil, nil
	}

	q := QualityScore(bestAzDev, azTol, bestAltDev, altTol)
	return &Candidate{
		Kind:             w.kind,
		Time:             bestT,
		AzimuthDeg:       bestAz,
		AltitudeDeg:      bestAlt,
		MoonPhase:        bestPhase,
		MoonIllumination: bestIllum,
		QualityScore:     q,
		AccuracyTier:     model.TierForQuality(q),
	}, nil
}
