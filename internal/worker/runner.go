package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner ticks the pipeline in the background.
type Runner struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewRunner constructs a pipeline runner.
func NewRunner(pipeline *Pipeline, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		pipeline: pipeline,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background loop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(runCtx)
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ran, err := r.pipeline.Update(ctx)
			if err != nil {
				r.logger.Error("pipeline pass failed", slog.String("error", err.Error()))
				continue
			}
			if !ran {
				r.logger.Debug("pipeline pass skipped, lease busy")
			}
		}
	}
}
