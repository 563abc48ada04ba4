// Package admin is the operator surface exposed to the external HTTP layer:
// queue statistics, concurrency control, failed-job cleanup, recomputation
// triggers, and settings management. Contract only; no routing here.
package admin

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/queue"
	"github.com/thurmanmarka/fujiglide/internal/settings"
)

// Broker is the queue slice the operator surface needs.
type Broker interface {
	Stats(ctx context.Context) (*queue.Stats, error)
	CleanupFailed(ctx context.Context, olderThanDays int) (int64, error)
}

// Recomputer triggers calculation fan-out.
type Recomputer interface {
	TriggerRecompute(ctx context.Context, locationID int64, yearFrom, yearTo int) error
	RegenerateAll(ctx context.Context, yearFrom, yearTo int) (int, error)
}

// Resizer restarts the worker pool after a concurrency change.
type Resizer interface {
	Resize()
}

// Service implements the operator contract.
type Service struct {
	broker  Broker
	sched   Recomputer
	cache   *settings.Cache
	resizer Resizer // nil in scheduler-only mode
}

// New builds the operator service. resizer may be nil when no worker pool
// runs in this process.
func New(broker Broker, sched Recomputer, cache *settings.Cache, resizer Resizer) *Service {
	return &Service{broker: broker, sched: sched, cache: cache, resizer: resizer}
}

// QueueStats returns counts by state and the most recent failures.
func (s *Service) QueueStats(ctx context.Context) (*queue.Stats, error) {
	return s.broker.Stats(ctx)
}

// Concurrency returns the current worker parallelism.
func (s *Service) Concurrency(ctx context.Context) int {
	return s.cache.Current(ctx).WorkerConcurrency
}

// SetConcurrency persists a new parallelism (clamped to [1, 10]) and
// restarts the worker pool at the new width.
func (s *Service) SetConcurrency(ctx context.Context, n int) error {
	n = settings.ClampConcurrency(n)
	if err := s.cache.Set(ctx, settings.KeyWorkerConcurrency, strconv.Itoa(n)); err != nil {
		return errors.Wrap(err, "set concurrency")
	}
	if s.resizer != nil {
		s.resizer.Resize()
	}
	return nil
}

// ClearFailedJobs drops failed jobs finished more than olderThanDays ago;
// zero clears all of them.
func (s *Service) ClearFailedJobs(ctx context.Context, olderThanDays int) (int64, error) {
	return s.broker.CleanupFailed(ctx, olderThanDays)
}

// TriggerRecompute queues a high-priority recomputation for one location.
func (s *Service) TriggerRecompute(ctx context.Context, locationID int64, yearFrom, yearTo int) error {
	return s.sched.TriggerRecompute(ctx, locationID, yearFrom, yearTo)
}

// RegenerateAll fans out jobs for every location across the year range.
func (s *Service) RegenerateAll(ctx context.Context, yearFrom, yearTo int) (int, error) {
	return s.sched.RegenerateAll(ctx, yearFrom, yearTo)
}

// Setting reads the current value of one runtime setting key.
func (s *Service) Setting(ctx context.Context, key string) (string, error) {
	snap := s.cache.Current(ctx)
	switch key {
	case settings.KeyWorkerConcurrency:
		return strconv.Itoa(snap.WorkerConcurrency), nil
	case settings.KeyJobDelayMs:
		return strconv.Itoa(snap.JobDelayMs), nil
	case settings.KeyProcessingDelayMs:
		return strconv.Itoa(snap.ProcessingDelayMs), nil
	case settings.KeyRefractionCoeff:
		return strconv.FormatFloat(snap.RefractionCoeff, 'f', -1, 64), nil
	case settings.KeyObserverEyeHeightM:
		return strconv.FormatFloat(snap.ObserverEyeHeightM, 'f', -1, 64), nil
	case settings.KeyPearlIlluminationMin:
		return strconv.FormatFloat(snap.PearlIlluminationMin, 'f', -1, 64), nil
	case settings.KeyDiamondSeasonMonths:
		out := ""
		for i, m := range snap.DiamondSeasonMonths {
			if i > 0 {
				out += ","
			}
			out += strconv.Itoa(m)
		}
		return out, nil
	default:
		return "", errors.Errorf("unknown setting key %q", key)
	}
}

// SetSetting writes one runtime setting; the cache invalidates and
// broadcasts.
func (s *Service) SetSetting(ctx context.Context, key, value string) error {
	return s.cache.Set(ctx, key, value)
}

// ClearSettingsCache drops the in-process snapshot so the next read hits
// the store.
func (s *Service) ClearSettingsCache() {
	s.cache.Invalidate()
}
