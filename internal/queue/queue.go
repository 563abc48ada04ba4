// Package queue is the persistent job broker: priority-ordered, delayed,
// retried with exponential backoff, and crash-safe. The jobs table in the
// relational store is the single source of truth for scheduling state; there
// is no in-process mirror. Workers lease with FOR UPDATE SKIP LOCKED so any
// number of them can drain concurrently without double delivery.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

// ErrUnavailable wraps enqueue failures so the scheduler can surface them
// synchronously to its caller.
var ErrUnavailable = errors.New("job queue unavailable")

// Retry policy defaults.
const (
	DefaultMaxAttempts = 3
	retryBase          = 5 * time.Second
	retryCeiling       = 5 * time.Minute
	retryMultiplier    = 2.0
)

// RetryDelay returns the backoff before retry number `attempt` (1-based):
// exponential from the base with a hard ceiling.
func RetryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBase
	b.MaxInterval = retryCeiling
	b.Multiplier = retryMultiplier
	b.RandomizationFactor = 0 // deterministic schedule
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d < 0 || d > retryCeiling {
		d = retryCeiling
	}
	return d
}

// DedupKey builds the logical identity of a job so duplicates in the
// waiting/delayed set collapse to one row.
func DedupKey(kind model.JobKind, p model.JobPayload) string {
	switch kind {
	case model.JobLocationRange:
		return fmt.Sprintf("range-%d-%d-%d", p.LocationID, p.YearFrom, p.YearTo)
	case model.JobMonthlyRange:
		return fmt.Sprintf("monthly-%d-%d-%d", p.Year, p.Month, p.LocationID)
	case model.JobDaily:
		return fmt.Sprintf("daily-%d-%s", p.LocationID, p.Date)
	default:
		return fmt.Sprintf("%s-%d", kind, p.LocationID)
	}
}

// Queue brokers jobs over the shared Postgres pool.
type Queue struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New builds a queue over the given pool.
func New(pool *pgxpool.Pool, log zerolog.Logger) *Queue {
	return &Queue{pool: pool, log: log}
}

const jobColumns = `id, kind, dedup_key, payload, priority, not_before, attempts,
	max_attempts, state, last_error, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.Kind, &j.DedupKey, &j.Payload, &j.Priority, &j.NotBefore,
		&j.Attempts, &j.MaxAttempts, &j.State, &j.LastError, &j.CreatedAt,
		&j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Enqueue inserts a job, collapsing onto an already-pending job with the
// same dedup key. Returns the id of the pending job (new or existing).
func (q *Queue) Enqueue(ctx context.Context, kind model.JobKind, payload model.JobPayload, priority int, notBefore time.Time) (int64, error) {
	if notBefore.IsZero() {
		notBefore = time.Now()
	}
	key := DedupKey(kind, payload)

	var id int64
	err := q.pool.QueryRow(ctx, `
		INSERT INTO jobs (kind, dedup_key, payload, priority, not_before, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dedup_key) WHERE state IN ('waiting', 'delayed') DO NOTHING
		RETURNING id`,
		kind, key, payload, priority, notBefore, DefaultMaxAttempts).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.Wrapf(ErrUnavailable, "enqueue %s: %v", key, err)
	}

	// Collapsed onto an existing pending job.
	err = q.pool.QueryRow(ctx, `
		SELECT id FROM jobs
		WHERE dedup_key = $1 AND state IN ('waiting', 'delayed')
		ORDER BY id LIMIT 1`, key).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(ErrUnavailable, "lookup deduped %s: %v", key, err)
	}
	return id, nil
}

// Lease claims the next eligible job: highest priority first, FIFO by
// not_before within a priority. Returns nil when nothing is eligible.
func (q *Queue) Lease(ctx context.Context) (*model.Job, error) {
	j, err := scanJob(q.pool.QueryRow(ctx, `
		UPDATE jobs SET state = 'active', started_at = now(), attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE state IN ('waiting', 'delayed') AND not_before <= now()
			ORDER BY priority DESC, not_before ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lease job")
	}
	return j, nil
}

// Complete marks an active job done.
func (q *Queue) Complete(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = 'completed', finished_at = now(), last_error = ''
		WHERE id = $1 AND state = 'active'`, id)
	return errors.Wrap(err, "complete job")
}

// exhausted reports whether a failed job has burned its last attempt.
// Pool teardown releases jobs instead of failing them, so every failure
// that reaches Fail counts against the budget.
func exhausted(job *model.Job) bool {
	return job.Attempts >= job.MaxAttempts
}

// Fail records a job failure. Attempt exhaustion is terminal; anything
// else is delayed for the backoff schedule.
func (q *Queue) Fail(ctx context.Context, job *model.Job, jobErr error) error {
	msg := jobErr.Error()

	if exhausted(job) {
		_, err := q.pool.Exec(ctx, `
			UPDATE jobs SET state = 'failed', finished_at = now(), last_error = $2
			WHERE id = $1`, job.ID, msg)
		return errors.Wrap(err, "fail job")
	}

	delay := RetryDelay(job.Attempts)
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = 'delayed', not_before = now() + make_interval(secs => $2), last_error = $3
		WHERE id = $1`, job.ID, delay.Seconds(), msg)
	if err == nil {
		q.log.Warn().
			Int64("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Int("attempt", job.Attempts).
			Dur("retry_in", delay).
			Str("error", msg).
			Msg("job retry scheduled")
	}
	return errors.Wrap(err, "delay job")
}

// Release returns an active job to waiting without consuming an attempt,
// used when the pool is resized or shut down mid-job.
func (q *Queue) Release(ctx context.Context, id int64) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = 'waiting', attempts = attempts - 1, started_at = NULL
		WHERE id = $1 AND state = 'active'`, id)
	return errors.Wrap(err, "release job")
}

// RecoverOrphans returns every active job to waiting. Called once at worker
// startup: anything active then belonged to a crashed process.
func (q *Queue) RecoverOrphans(ctx context.Context) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		UPDATE jobs SET state = 'waiting', attempts = attempts - 1, started_at = NULL
		WHERE state = 'active'`)
	if err != nil {
		return 0, errors.Wrap(err, "recover orphan jobs")
	}
	return tag.RowsAffected(), nil
}

// CancelForLocation drops every waiting/delayed job targeting the location.
// Active jobs finish on their own and no-op against the vanished target.
func (q *Queue) CancelForLocation(ctx context.Context, locationID int64) (int64, error) {
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE state IN ('waiting', 'delayed')
		  AND (payload->>'location_id')::bigint = $1`, locationID)
	if err != nil {
		return 0, errors.Wrap(err, "cancel location jobs")
	}
	return tag.RowsAffected(), nil
}

// CleanupFailed deletes failed jobs finished more than olderThanDays ago.
// Zero means all failed jobs.
func (q *Queue) CleanupFailed(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	tag, err := q.pool.Exec(ctx, `
		DELETE FROM jobs WHERE state = 'failed' AND finished_at <= $1`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "cleanup failed jobs")
	}
	return tag.RowsAffected(), nil
}

// FailedJob is one entry of the recent-failures diagnostic.
type FailedJob struct {
	ID       int64
	Kind     model.JobKind
	Payload  model.JobPayload
	Error    string
	Attempts int
}

// Stats is the queue's observable state.
type Stats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
	Delayed   int
	Recent    []FailedJob // up to five most recent failures
}

// Stats returns counts per state plus the five most recent failed jobs.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	rows, err := q.pool.Query(ctx, `SELECT state, count(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, errors.Wrap(err, "queue stats")
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var (
			state model.JobState
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		switch state {
		case model.JobWaiting:
			s.Waiting = n
		case model.JobActive:
			s.Active = n
		case model.JobCompleted:
			s.Completed = n
		case model.JobFailed:
			s.Failed = n
		case model.JobDelayed:
			s.Delayed = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	frows, err := q.pool.Query(ctx, `
		SELECT id, kind, payload, last_error, attempts
		FROM jobs WHERE state = 'failed'
		ORDER BY finished_at DESC NULLS LAST
		LIMIT 5`)
	if err != nil {
		return nil, errors.Wrap(err, "recent failures")
	}
	defer frows.Close()

	for frows.Next() {
		var f FailedJob
		if err := frows.Scan(&f.ID, &f.Kind, &f.Payload, &f.Error, &f.Attempts); err != nil {
			return nil, err
		}
		s.Recent = append(s.Recent, f)
	}
	return &s, frows.Err()
}
