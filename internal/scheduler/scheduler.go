// Package scheduler turns location mutations and the nightly clock into
// queue jobs, and keeps materialized events consistent with their
// locations: a geo change purges the stale events before recomputation is
// queued, a delete cancels pending jobs, and the 02:00 JST pass tops up the
// rolling window.
package scheduler

import (
	"context"
	"time"

	"github.com/dromara/carbon/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// rollingHorizonYears is how far past the current year a location-range
// recomputation reaches.
const rollingHorizonYears = 2

// nightlyHour is the JST hour of the daily top-up pass.
const nightlyHour = 2

// Enqueuer is the queue surface the scheduler writes to.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind model.JobKind, payload model.JobPayload, priority int, notBefore time.Time) (int64, error)
	CancelForLocation(ctx context.Context, locationID int64) (int64, error)
}

// Locations is the location surface the scheduler reads.
type Locations interface {
	List(ctx context.Context) ([]*model.Location, error)
	Reconcile(ctx context.Context, id int64, eyeHeightM float64) (*model.Location, error)
}

// Events is the invalidation surface.
type Events interface {
	DeleteForLocation(ctx context.Context, locationID int64) (int64, error)
	CountForLocationMonth(ctx context.Context, locationID int64, year int, month time.Month) (int, error)
}

// Settings yields the delays the scheduler applies to non-urgent jobs.
type Settings interface {
	JobDelay(ctx context.Context) time.Duration
	EyeHeight(ctx context.Context) float64
}

// Scheduler wires the triggers together.
type Scheduler struct {
	jobs      Enqueuer
	locations Locations
	events    Events
	settings  Settings
	log       zerolog.Logger
}

// New builds a scheduler.
func New(jobs Enqueuer, locations Locations, events Events, settings Settings, log zerolog.Logger) *Scheduler {
	return &Scheduler{jobs: jobs, locations: locations, events: events, settings: settings, log: log}
}

// notBeforeFor applies the configured base delay to low/normal-priority
// jobs; high-priority work is eligible immediately.
func (s *Scheduler) notBeforeFor(ctx context.Context, priority int) time.Time {
	now := time.Now()
	if priority >= model.PriorityHigh {
		return now
	}
	return now.Add(s.settings.JobDelay(ctx))
}

// enqueue wraps the queue call so every trigger surfaces an enqueue failure
// to its caller and logs it: an unavailable queue is operator-visible.
func (s *Scheduler) enqueue(ctx context.Context, kind model.JobKind, payload model.JobPayload, priority int) error {
	id, err := s.jobs.Enqueue(ctx, kind, payload, priority, s.notBeforeFor(ctx, priority))
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Int64("location_id", payload.LocationID).
			Msg("enqueue failed")
		return err
	}
	s.log.Info().Int64("job_id", id).Str("kind", string(kind)).
		Int64("location_id", payload.LocationID).Int("priority", priority).
		Msg("job enqueued")
	return nil
}

// LocationCreated queues the initial rolling-horizon computation.
func (s *Scheduler) LocationCreated(ctx context.Context, loc *model.Location) error {
	year := time.Now().In(timeutil.JST).Year()
	return s.enqueue(ctx, model.JobLocationRange, model.JobPayload{
		LocationID: loc.ID,
		YearFrom:   year,
		YearTo:     year + rollingHorizonYears,
	}, model.PriorityNormal)
}

// LocationUpdated invalidates and requeues when any geodetic input changed.
// Non-geometric edits (name, notes) leave the events alone.
func (s *Scheduler) LocationUpdated(ctx context.Context, prev, cur *model.Location) error {
	if prev.Latitude == cur.Latitude && prev.Longitude == cur.Longitude && prev.Elevation == cur.Elevation {
		return nil
	}

	purged, err := s.events.DeleteForLocation(ctx, cur.ID)
	if err != nil {
		return errors.Wrap(err, "purge stale events")
	}
	s.log.Info().Int64("location_id", cur.ID).Int64("purged", purged).
		Msg("geodetic inputs changed, events purged")

	year := time.Now().In(timeutil.JST).Year()
	return s.enqueue(ctx, model.JobLocationRange, model.JobPayload{
		LocationID: cur.ID,
		YearFrom:   year,
		YearTo:     year + rollingHorizonYears,
	}, model.PriorityHigh)
}

// LocationDeleted cancels pending jobs for the vanished location. The event
// rows are already gone via the FK cascade; active jobs discover the missing
// row and complete as no-ops.
func (s *Scheduler) LocationDeleted(ctx context.Context, locationID int64) error {
	n, err := s.jobs.CancelForLocation(ctx, locationID)
	if err != nil {
		return errors.Wrap(err, "cancel pending jobs")
	}
	s.log.Info().Int64("location_id", locationID).Int64("cancelled", n).
		Msg("location deleted")
	return nil
}

// TriggerRecompute is the manual admin trigger: immediate, high priority.
func (s *Scheduler) TriggerRecompute(ctx context.Context, locationID int64, yearFrom, yearTo int) error {
	return s.enqueue(ctx, model.JobLocationRange, model.JobPayload{
		LocationID: locationID,
		YearFrom:   yearFrom,
		YearTo:     yearTo,
	}, model.PriorityHigh)
}

// RegenerateAll fans out a location-range job for every location.
func (s *Scheduler) RegenerateAll(ctx context.Context, yearFrom, yearTo int) (int, error) {
	locs, err := s.locations.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list locations")
	}

	queued := 0
	for _, loc := range locs {
		if err := s.enqueue(ctx, model.JobLocationRange, model.JobPayload{
			LocationID: loc.ID,
			YearFrom:   yearFrom,
			YearTo:     yearTo,
		}, model.PriorityNormal); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// ReconcileStale re-derives a location's summit geometry and requeues its
// rolling window. Called when a read trips the stale-geometry guard.
func (s *Scheduler) ReconcileStale(ctx context.Context, locationID int64) error {
	if _, err := s.locations.Reconcile(ctx, locationID, s.settings.EyeHeight(ctx)); err != nil {
		return errors.Wrap(err, "re-derive geometry")
	}
	year := time.Now().In(timeutil.JST).Year()
	return s.enqueue(ctx, model.JobLocationRange, model.JobPayload{
		LocationID: locationID,
		YearFrom:   year,
		YearTo:     year + rollingHorizonYears,
	}, model.PriorityHigh)
}

// RunNightly tops up next month for every location that has no events
// there yet. Low priority: it competes with nothing urgent.
func (s *Scheduler) RunNightly(ctx context.Context, now time.Time) error {
	// First of next month, not AddDate: adding a month to Jan 29-31
	// normalizes into March.
	nowJST := now.In(timeutil.JST)
	next := time.Date(nowJST.Year(), nowJST.Month()+1, 1, 0, 0, 0, 0, timeutil.JST)
	year, month := next.Year(), next.Month()

	locs, err := s.locations.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list locations")
	}

	for _, loc := range locs {
		n, err := s.events.CountForLocationMonth(ctx, loc.ID, year, month)
		if err != nil {
			return errors.Wrapf(err, "count events for location %d", loc.ID)
		}
		if n > 0 {
			continue
		}
		if err := s.enqueue(ctx, model.JobMonthlyRange, model.JobPayload{
			LocationID: loc.ID,
			Year:       year,
			Month:      int(month),
		}, model.PriorityLow); err != nil {
			return err
		}
	}
	return nil
}

// NextNightly returns the next 02:00 JST instant strictly after now.
func NextNightly(now time.Time) time.Time {
	next := carbon.CreateFromStdTime(now.In(timeutil.JST)).
		SetHour(nightlyHour).SetMinute(0).SetSecond(0)
	if !next.StdTime().After(now) {
		next = next.AddDay()
	}
	return next.StdTime()
}

// RunNightlyLoop fires RunNightly at 02:00 JST daily until ctx is
// cancelled.
func (s *Scheduler) RunNightlyLoop(ctx context.Context) {
	for {
		next := NextNightly(time.Now())
		s.log.Info().Time("next_run", next).Msg("nightly scheduler armed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := s.RunNightly(ctx, time.Now()); err != nil {
			s.log.Error().Err(err).Msg("nightly pass failed")
		}
	}
}
