// Package refresh re-renders every exit node's document on a cron schedule
// so render status and router gauges stay current between pulls.
package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule renders once a minute.
const DefaultSchedule = "* * * * *"

// Refresher renders all exit nodes. rendered and failed count per-node
// outcomes; err reports a failure to enumerate exit nodes.
type Refresher interface {
	RefreshAll(ctx context.Context) (rendered, failed int, err error)
}

// RunRecorder receives the outcome of each run. Optional.
type RunRecorder interface {
	RecordRefresh(failed int)
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Refresher Refresher
	Recorder  RunRecorder
	Schedule  string        // cron expression, default DefaultSchedule
	Timeout   time.Duration // per-run budget, 0 means none
}

// Worker drives periodic refreshes.
type Worker struct {
	refresher Refresher
	recorder  RunRecorder
	timeout   time.Duration

	cron       *cron.Cron
	runMu      sync.Mutex // serializes RunNow calls
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
}

// NewWorker creates a worker. An invalid schedule disables periodic runs.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Refresher == nil {
		panic("refresh: NewWorker requires non-nil Refresher")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	w := &Worker{
		refresher:  cfg.Refresher,
		recorder:   cfg.Recorder,
		timeout:    cfg.Timeout,
		cron:       cron.New(),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
	}
	if _, err := w.cron.AddFunc(cfg.Schedule, func() { w.RunNow() }); err != nil {
		log.Printf("[refresh] invalid cron expression %q: %v", cfg.Schedule, err)
	}
	return w
}

// Start triggers one background run and starts the scheduler.
func (w *Worker) Start() {
	go w.RunNow()
	w.cron.Start()
}

// Stop cancels an in-flight run and waits for the scheduler to drain.
func (w *Worker) Stop() {
	w.lifeCancel()
	<-w.cron.Stop().Done()
}

// RunNow performs one refresh and returns the number of failed exit nodes.
// A failure to enumerate exit nodes counts as one failure.
func (w *Worker) RunNow() int {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.lifeCtx.Err() != nil {
		return 0
	}
	ctx := w.lifeCtx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	rendered, failed, err := w.refresher.RefreshAll(ctx)
	if err != nil {
		log.Printf("[refresh] run aborted after %d exit nodes: %v", rendered, err)
		failed++
	} else if failed > 0 {
		log.Printf("[refresh] rendered %d exit nodes, %d failed (%s)", rendered, failed, time.Since(start))
	}
	if w.recorder != nil {
		w.recorder.RecordRefresh(failed)
	}
	return failed
}
