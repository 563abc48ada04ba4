// Package settings provides the cached runtime settings that tune the
// worker pool and the alignment search. Values live in the relational
// store; reads go through an in-process snapshot refreshed at most every
// 60 seconds, so consumers grab one snapshot at the start of a job and
// never tear mid-run.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

// Recognized setting keys.
const (
	KeyWorkerConcurrency    = "worker_concurrency"
	KeyJobDelayMs           = "job_delay_ms"
	KeyProcessingDelayMs    = "processing_delay_ms"
	KeyRefractionCoeff      = "refraction_coefficient"
	KeyObserverEyeHeightM   = "observer_eye_height_m"
	KeyPearlIlluminationMin = "pearl_illumination_min"
	KeyDiamondSeasonMonths  = "diamond_season_months"
)

// CacheTTL is how long a snapshot may serve reads before being refreshed.
const CacheTTL = 60 * time.Second

// Snapshot is one consistent view of all runtime settings. Consumers read a
// snapshot once per job; they never see a mid-job change.
type Snapshot struct {
	WorkerConcurrency    int     // clamped to [1, 10]
	JobDelayMs           int     // base delay for low/normal-priority jobs
	ProcessingDelayMs    int     // inter-year pacing inside a job
	RefractionCoeff      float64 // multiplier on atmospheric refraction
	ObserverEyeHeightM   float64 // stacked on site elevation
	PearlIlluminationMin float64 // minimum Moon illumination for Pearl
	DiamondSeasonMonths  []int   // months in which Diamond search runs
}

// Defaults returns the snapshot used before any row exists in the store.
func Defaults() Snapshot {
	return Snapshot{
		WorkerConcurrency:    1,
		JobDelayMs:           5000,
		ProcessingDelayMs:    2000,
		RefractionCoeff:      1.02,
		ObserverEyeHeightM:   1.7,
		PearlIlluminationMin: 0.10,
		DiamondSeasonMonths:  []int{10, 11, 12, 1, 2, 3},
	}
}

// InDiamondSeason reports whether the month is in the Diamond Fuji season.
func (s Snapshot) InDiamondSeason(month time.Month) bool {
	for _, m := range s.DiamondSeasonMonths {
		if int(month) == m {
			return true
		}
	}
	return false
}

// ClampConcurrency bounds a requested worker concurrency to [1, 10].
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// Repo is the slice of the settings table the cache needs.
type Repo interface {
	All(ctx context.Context) ([]model.SystemSetting, error)
	Set(ctx context.Context, key, value string) error
}

// Cache is the read-through settings cache. A write persists first, then
// drops the snapshot so the next read rebuilds it.
type Cache struct {
	repo Repo

	mu        sync.Mutex
	snap      Snapshot
	fetchedAt time.Time

	// subscribers are notified (non-blocking) after every successful write.
	subMu sync.Mutex
	subs  []chan struct{}
}

// NewCache builds a cache over the given repo. The initial snapshot is the
// defaults; the first Current call hydrates from the store.
func NewCache(repo Repo) *Cache {
	return &Cache{repo: repo, snap: Defaults()}
}

// Current returns the current snapshot, refreshing from the store when the
// cached one is older than CacheTTL. A store failure serves the previous
// snapshot: settings reads must not take the pipeline down.
func (c *Cache) Current(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.fetchedAt) < CacheTTL && !c.fetchedAt.IsZero() {
		return c.snap
	}

	rows, err := c.repo.All(ctx)
	if err != nil {
		return c.snap
	}

	snap := Defaults()
	for _, row := range rows {
		applyRow(&snap, row)
	}
	c.snap = snap
	c.fetchedAt = time.Now()
	return c.snap
}

// Set persists a setting, invalidates the snapshot, and notifies
// subscribers.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	if err := c.repo.Set(ctx, key, value); err != nil {
		return errors.Wrapf(err, "persist setting %s", key)
	}

	c.Invalidate()
	c.broadcast()
	return nil
}

// JobDelay returns the base delay applied to low/normal-priority jobs.
func (c *Cache) JobDelay(ctx context.Context) time.Duration {
	return time.Duration(c.Current(ctx).JobDelayMs) * time.Millisecond
}

// EyeHeight returns the observer eye height in metres.
func (c *Cache) EyeHeight(ctx context.Context) float64 {
	return c.Current(ctx).ObserverEyeHeightM
}

// Invalidate drops the cached snapshot so the next read refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// Subscribe returns a channel that receives a tick after every successful
// write. The channel has capacity 1 and never blocks the writer.
func (c *Cache) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Cache) broadcast() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func applyRow(s *Snapshot, row model.SystemSetting) {
	switch row.Key {
	case KeyWorkerConcurrency:
		if v, err := strconv.Atoi(row.Value); err == nil {
			s.WorkerConcurrency = ClampConcurrency(v)
		}
	case KeyJobDelayMs:
		if v, err := strconv.Atoi(row.Value); err == nil && v >= 0 {
			s.JobDelayMs = v
		}
	case KeyProcessingDelayMs:
		if v, err := strconv.Atoi(row.Value); err == nil && v >= 0 {
			s.ProcessingDelayMs = v
		}
	case KeyRefractionCoeff:
		if v, err := strconv.ParseFloat(row.Value, 64); err == nil && v > 0 {
			s.RefractionCoeff = v
		}
	case KeyObserverEyeHeightM:
		if v, err := strconv.ParseFloat(row.Value, 64); err == nil && v >= 0 {
			s.ObserverEyeHeightM = v
		}
	case KeyPearlIlluminationMin:
		if v, err := strconv.ParseFloat(row.Value, 64); err == nil && v >= 0 && v <= 1 {
			s.PearlIlluminationMin = v
		}
	case KeyDiamondSeasonMonths:
		if months, err := ParseMonthList(row.Value); err == nil {
			s.DiamondSeasonMonths = months
		}
	}
}

// ParseMonthList parses a comma-separated month list like "10,11,12,1,2,3".
func ParseMonthList(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	months := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "month %q", p)
		}
		if m < 1 || m > 12 {
			return nil, errors.Errorf("month %d out of range", m)
		}
		months = append(months, m)
	}
	if len(months) == 0 {
		return nil, errors.New("empty month list")
	}
	return months, nil
}

func validate(key, value string) error {
	switch key {
	case KeyWorkerConcurrency, KeyJobDelayMs, KeyProcessingDelayMs:
		if _, err := strconv.Atoi(value); err != nil {
			return errors.Wrapf(err, "setting %s wants an integer", key)
		}
	case KeyRefractionCoeff, KeyObserverEyeHeightM, KeyPearlIlluminationMin:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return errors.Wrapf(err, "setting %s wants a float", key)
		}
	case KeyDiamondSeasonMonths:
		if _, err := ParseMonthList(value); err != nil {
			return errors.Wrapf(err, "setting %s", key)
		}
	default:
		return errors.Errorf("unknown setting key %q", key)
	}
	return nil
}
