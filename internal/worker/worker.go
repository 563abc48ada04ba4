// Package worker drains the job queue: it leases calculation jobs, runs the
// alignment finder over the requested span of civil dates, and writes each
// day's event set atomically. Parallelism is bounded by the
// worker_concurrency runtime setting and can be changed without a restart;
// in-flight jobs either finish or go back to waiting, never lost.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/thurmanmarka/fujiglide/internal/align"
	"github.com/thurmanmarka/fujiglide/internal/model"
	"github.com/thurmanmarka/fujiglide/internal/queue"
	"github.com/thurmanmarka/fujiglide/internal/settings"
	"github.com/thurmanmarka/fujiglide/internal/store"
	"github.com/thurmanmarka/fujiglide/internal/timeutil"
)

// Per-kind deadlines. A job exceeding its deadline is failed-with-timeout
// and retried under the queue's policy.
const (
	locationRangeDeadline = 20 * time.Minute
	monthlyRangeDeadline  = 5 * time.Minute
	dailyDeadline         = 1 * time.Minute
)

const (
	leasePollInterval = time.Second
	heartbeatInterval = 5 * time.Minute
)

// Jobs is the queue surface the pool consumes.
type Jobs interface {
	Lease(ctx context.Context) (*model.Job, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, job *model.Job, jobErr error) error
	Release(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*queue.Stats, error)
}

// Locations is the location surface the handlers read.
type Locations interface {
	GetChecked(ctx context.Context, id int64, eyeHeightM float64) (*model.Location, error)
	Reconcile(ctx context.Context, id int64, eyeHeightM float64) (*model.Location, error)
}

// Events is the write side of the event store.
type Events interface {
	ReplaceDay(ctx context.Context, locationID int64, date time.Time, events []model.Event) error
}

// Searcher produces the alignments of one (location, civil date).
type Searcher interface {
	Search(ctx context.Context, loc *model.Location, date time.Time, snap settings.Snapshot) ([]align.Candidate, error)
}

// Pool runs the worker loop at the configured parallelism.
type Pool struct {
	jobs      Jobs
	locations Locations
	events    Events
	finder    Searcher
	cache     *settings.Cache
	log       zerolog.Logger
	tracer    trace.Tracer

	mu          sync.Mutex
	concurrency int
	restart     chan struct{}
}

// New builds a pool. Run starts it.
func New(jobs Jobs, locations Locations, events Events, finder Searcher, cache *settings.Cache, log zerolog.Logger) *Pool {
	return &Pool{
		jobs:      jobs,
		locations: locations,
		events:    events,
		finder:    finder,
		cache:     cache,
		log:       log,
		tracer:    otel.Tracer("fujiglide/worker"),
		restart:   make(chan struct{}, 1),
	}
}

// Run drains the queue until ctx is cancelled. It supervises the runner
// goroutines, recreating them whenever the concurrency setting changes.
// In-flight jobs are released back to waiting on every teardown.
func (p *Pool) Run(ctx context.Context) {
	go p.heartbeat(ctx)
	go p.watchSettings(ctx)

	for {
		snap := p.cache.Current(ctx)
		n := settings.ClampConcurrency(snap.WorkerConcurrency)
		p.mu.Lock()
		p.concurrency = n
		p.mu.Unlock()

		p.log.Info().Int("concurrency", n).Msg("worker pool starting")

		runCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				p.runner(runCtx, id)
			}(i)
		}

		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			p.log.Info().Msg("worker pool stopped")
			return
		case <-p.restart:
			cancel()
			wg.Wait()
			p.log.Info().Msg("worker pool restarting at new concurrency")
		}
	}
}

// Resize requests a pool restart at the currently persisted concurrency.
// The settings write happens first (through the cache); this only kicks the
// supervisor.
func (p *Pool) Resize() {
	select {
	case p.restart <- struct{}{}:
	default:
	}
}

// watchSettings restarts the pool when a settings write changes the
// concurrency.
func (p *Pool) watchSettings(ctx context.Context) {
	sub := p.cache.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub:
			p.cache.Invalidate()
			snap := p.cache.Current(ctx)
			p.mu.Lock()
			changed := settings.ClampConcurrency(snap.WorkerConcurrency) != p.concurrency
			p.mu.Unlock()
			if changed {
				p.Resize()
			}
		}
	}
}

// heartbeat logs queue statistics every five minutes.
func (p *Pool) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := p.jobs.Stats(ctx)
			if err != nil {
				p.log.Warn().Err(err).Msg("heartbeat stats failed")
				continue
			}
			p.log.Info().
				Int("waiting", stats.Waiting).
				Int("active", stats.Active).
				Int("delayed", stats.Delayed).
				Int("completed", stats.Completed).
				Int("failed", stats.Failed).
				Msg("queue heartbeat")
		}
	}
}

// runner is one lease → process → ack loop.
func (p *Pool) runner(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.jobs.Lease(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Int("runner", id).Msg("lease failed")
		}
		if job == nil || err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(leasePollInterval):
			}
			continue
		}

		p.process(ctx, job)
	}
}

// process runs one job under its per-kind deadline and settles it with the
// queue. Pool teardown releases the job; a deadline or handler error fails
// it under the retry policy.
func (p *Pool) process(ctx context.Context, job *model.Job) {
	deadline := deadlineFor(job.Kind)
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	jobCtx, span := p.tracer.Start(jobCtx, "worker.process", trace.WithAttributes(
		attribute.Int64("job.id", job.ID),
		attribute.String("job.kind", string(job.Kind)),
		attribute.Int64("location.id", job.Payload.LocationID),
	))
	defer span.End()

	start := time.Now()
	err := p.handle(jobCtx, job)

	switch {
	case err == nil:
		if ackErr := p.jobs.Complete(context.WithoutCancel(ctx), job.ID); ackErr != nil {
			p.log.Error().Err(ackErr).Int64("job_id", job.ID).Msg("complete failed")
			return
		}
		p.log.Info().
			Int64("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Dur("took", time.Since(start)).
			Msg("job completed")

	case ctx.Err() != nil:
		// Pool is tearing down: hand the job back untouched.
		if relErr := p.jobs.Release(context.WithoutCancel(ctx), job.ID); relErr != nil {
			p.log.Error().Err(relErr).Int64("job_id", job.ID).Msg("release failed")
		}

	default:
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(err, "job timeout after %s", deadline)
		}
		if failErr := p.jobs.Fail(context.WithoutCancel(ctx), job, err); failErr != nil {
			p.log.Error().Err(failErr).Int64("job_id", job.ID).Msg("fail recording failed")
		}
	}
}

func deadlineFor(kind model.JobKind) time.Duration {
	switch kind {
	case model.JobLocationRange:
		return locationRangeDeadline
	case model.JobMonthlyRange:
		return monthlyRangeDeadline
	default:
		return dailyDeadline
	}
}

// handle dispatches to the per-kind handler. A vanished location completes
// as a no-op: the delete raced the queue and won.
func (p *Pool) handle(ctx context.Context, job *model.Job) error {
	snap := p.cache.Current(ctx)

	loc, err := p.locations.GetChecked(ctx, job.Payload.LocationID, snap.ObserverEyeHeightM)
	if errors.Is(err, store.ErrStaleGeometry) {
		loc, err = p.locations.Reconcile(ctx, job.Payload.LocationID, snap.ObserverEyeHeightM)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.log.Info().
				Int64("location_id", job.Payload.LocationID).
				Int64("job_id", job.ID).
				Msg("location vanished, job is a no-op")
			return nil
		}
		return errors.Wrap(err, "load location")
	}

	switch job.Kind {
	case model.JobLocationRange:
		return p.runLocationRange(ctx, loc, job.Payload.YearFrom, job.Payload.YearTo, snap)
	case model.JobMonthlyRange:
		return p.runMonth(ctx, loc, job.Payload.Year, time.Month(job.Payload.Month), snap, nil)
	case model.JobDaily:
		date, err := time.ParseInLocation("2006-01-02", job.Payload.Date, timeutil.JST)
		if err != nil {
			return errors.Wrapf(err, "daily job date %q", job.Payload.Date)
		}
		return p.runDay(ctx, loc, date, snap)
	default:
		return errors.Errorf("unknown job kind %q", job.Kind)
	}
}

// runLocationRange computes every civil date of [yearFrom, yearTo], pacing
// between years with processing_delay_ms.
func (p *Pool) runLocationRange(ctx context.Context, loc *model.Location, yearFrom, yearTo int, snap settings.Snapshot) error {
	if yearTo < yearFrom {
		return errors.Errorf("bad year range %d..%d", yearFrom, yearTo)
	}

	totalDays := 0
	for y := yearFrom; y <= yearTo; y++ {
		totalDays += daysInYear(y)
	}

	progress := newProgressLogger(p.log, loc.ID, totalDays)
	for y := yearFrom; y <= yearTo; y++ {
		for m := time.January; m <= time.December; m++ {
			if err := p.runMonth(ctx, loc, y, m, snap, progress); err != nil {
				return err
			}
		}
		if y < yearTo && snap.ProcessingDelayMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(snap.ProcessingDelayMs) * time.Millisecond):
			}
		}
	}
	return nil
}

// runMonth computes one civil month. progress may be nil.
func (p *Pool) runMonth(ctx context.Context, loc *model.Location, year int, month time.Month, snap settings.Snapshot, progress *progressLogger) error {
	days := timeutil.DaysInMonth(year, month)
	for d := 1; d <= days; d++ {
		if err := p.runDay(ctx, loc, timeutil.DateJST(year, month, d), snap); err != nil {
			return err
		}
		if progress != nil {
			progress.tick()
		}
	}
	return nil
}

// runDay computes one civil date and replaces its stored set atomically.
func (p *Pool) runDay(ctx context.Context, loc *model.Location, date time.Time, snap settings.Snapshot) error {
	cands, err := p.finder.Search(ctx, loc, date, snap)
	if err != nil {
		return err
	}

	events := make([]model.Event, 0, len(cands))
	calcYear := time.Now().In(timeutil.JST).Year()
	for _, c := range cands {
		events = append(events, candidateToEvent(loc.ID, date, c, calcYear))
	}
	return p.events.ReplaceDay(ctx, loc.ID, date, events)
}

// candidateToEvent maps a finder candidate onto the persistent row shape.
// Moon fields stay NULL for Diamond kinds.
func candidateToEvent(locationID int64, date time.Time, c align.Candidate, calcYear int) model.Event {
	e := model.Event{
		LocationID:           locationID,
		Kind:                 c.Kind,
		Date:                 timeutil.CivilDateJST(date),
		Time:                 c.Time,
		CelestialAzimuthDeg:  c.AzimuthDeg,
		CelestialAltitudeDeg: c.AltitudeDeg,
		QualityScore:         c.QualityScore,
		AccuracyTier:         c.AccuracyTier,
		CalculationYear:      calcYear,
	}
	if c.Kind.IsPearl() {
		phase, illum := c.MoonPhase, c.MoonIllumination
		e.MoonPhase = &phase
		e.MoonIllumination = &illum
	}
	return e
}

func daysInYear(y int) int {
	if timeutil.DaysInMonth(y, time.February) == 29 {
		return 366
	}
	return 365
}

// progressLogger emits a log line roughly every 1% of a long-running job.
type progressLogger struct {
	log     zerolog.Logger
	locID   int64
	total   int
	done    int
	lastPct int
}

func newProgressLogger(log zerolog.Logger, locID int64, total int) *progressLogger {
	return &progressLogger{log: log, locID: locID, total: total, lastPct: -1}
}

func (p *progressLogger) tick() {
	p.done++
	if p.total == 0 {
		return
	}
	pct := p.done * 100 / p.total
	if pct != p.lastPct {
		p.lastPct = pct
		p.log.Debug().
			Int64("location_id", p.locID).
			Int("percent", pct).
			Msg("range progress")
	}
}
