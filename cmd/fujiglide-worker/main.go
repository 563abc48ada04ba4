// Command fujiglide-worker runs the calculation pipeline: it drains the job
// queue, runs the alignment finder, and keeps the rolling event window
// populated via the nightly scheduler. With --scheduler-only (or the
// FUJIGLIDE_SCHEDULER_ONLY env var) the worker role is disabled and the
// process only schedules.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thurmanmarka/fujiglide/internal/align"
	"github.com/thurmanmarka/fujiglide/internal/config"
	"github.com/thurmanmarka/fujiglide/internal/queue"
	"github.com/thurmanmarka/fujiglide/internal/scheduler"
	"github.com/thurmanmarka/fujiglide/internal/settings"
	"github.com/thurmanmarka/fujiglide/internal/store"
	"github.com/thurmanmarka/fujiglide/internal/worker"
)

// shutdownGrace is how long active jobs get to drain after a termination
// signal before the process gives up and exits.
const shutdownGrace = 30 * time.Second

func main() {
	var (
		configPath    string
		schedulerOnly bool
	)

	root := &cobra.Command{
		Use:   "fujiglide-worker",
		Short: "Diamond/Pearl Fuji calculation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if schedulerOnly {
				cfg.SchedulerOnly = true
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to JSON config file")
	root.Flags().BoolVar(&schedulerOnly, "scheduler-only", false, "disable the worker role")
	root.SilenceUsage = true

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	// The queue may live on a different Postgres host than the event store.
	queueURL, err := cfg.QueueURL()
	if err != nil {
		return err
	}
	queueStore := st
	if queueURL != cfg.DatabaseURL {
		queueStore, err = store.Open(ctx, queueURL)
		if err != nil {
			return err
		}
		defer queueStore.Close()
		if err := queueStore.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	jobs := queue.New(queueStore.Pool(), log)
	cache := settings.NewCache(st.Settings)
	seedConcurrency(ctx, st, cache, cfg.WorkerConcurrency, log)

	finder := align.NewFinder(align.Kernel{}, log)
	sched := scheduler.New(jobs, st.Locations, st.Events, cache, log)

	// Anything active at startup belonged to a crashed process.
	if n, err := jobs.RecoverOrphans(ctx); err != nil {
		log.Warn().Err(err).Msg("orphan recovery failed")
	} else if n > 0 {
		log.Info().Int64("recovered", n).Msg("orphaned jobs returned to waiting")
	}

	go sched.RunNightlyLoop(ctx)

	if cfg.SchedulerOnly {
		log.Info().Msg("scheduler-only mode, worker role disabled")
		<-ctx.Done()
		return nil
	}

	pool := worker.New(jobs, st.Locations, st.Events, finder, cache, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Run(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("termination signal, draining")

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Warn().Msg("drain grace expired")
	}
	return nil
}

// seedConcurrency writes the configured initial concurrency, but only when
// the setting has never been stored: a runtime change outlives restarts.
func seedConcurrency(ctx context.Context, st *store.Store, cache *settings.Cache, n int, log zerolog.Logger) {
	if n <= 0 {
		return
	}
	if _, err := st.Settings.Get(ctx, settings.KeyWorkerConcurrency); err == nil {
		return
	}
	if err := cache.Set(ctx, settings.KeyWorkerConcurrency, strconv.Itoa(settings.ClampConcurrency(n))); err != nil {
		log.Warn().Err(err).Msg("seed concurrency failed")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
