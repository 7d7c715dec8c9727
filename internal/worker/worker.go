package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// JobFunc defines the function signature for scheduled operations
type JobFunc func(ctx context.Context) error

// Status is a snapshot of a worker for health reporting
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Interval  string    `json:"interval"`
	Runs      int       `json:"runs"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Worker runs a job on a cron schedule. Runs never overlap.
type Worker struct {
	name     string
	cron     *cron.Cron
	job      JobFunc
	interval time.Duration
	logger   *logger.Logger
	entryID  cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc

	runMu sync.Mutex // held for the duration of a run
	mu    sync.Mutex
	runs  int
	last  time.Time
	err   error
}

// NewWorker creates a cron-scheduled worker. An empty interval uses def.
func NewWorker(name, interval string, def time.Duration, job JobFunc, log *logger.Logger) (*Worker, error) {
	every := def
	if interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid %s interval '%s': %v", name, interval, err)
		}
		if d < time.Second {
			return nil, fmt.Errorf("invalid %s interval '%s': must be at least 1s", name, interval)
		}
		every = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		name:     name,
		cron:     cron.New(),
		job:      job,
		interval: every,
		logger:   log.WithComponent("worker").With("worker", name),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start schedules and begins the worker
func (w *Worker) Start() error {
	w.logger.Info(fmt.Sprintf("Starting worker: %s (every %v)", w.name, w.interval))

	entryID, err := w.cron.AddFunc("@every "+w.interval.String(), func() {
		w.RunOnce()
	})
	if err != nil {
		w.logger.Error("Failed to schedule worker " + w.name + ": " + err.Error())
		return err
	}

	w.entryID = entryID
	w.cron.Start()
	return nil
}

// RunOnce executes the job now, unless a run is already in progress.
// It reports whether the job ran.
func (w *Worker) RunOnce() bool {
	if !w.runMu.TryLock() {
		w.logger.Debug("Skipping run, previous run of " + w.name + " still in progress")
		return false
	}
	defer w.runMu.Unlock()

	ctx, cancel := context.WithTimeout(w.ctx, w.interval)
	defer cancel()

	start := time.Now()
	err := w.job(ctx)

	w.mu.Lock()
	w.runs++
	w.last = start
	w.err = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Job failed for worker " + w.name + ": " + err.Error())
	} else {
		w.logger.Debug(fmt.Sprintf("Job for worker %s completed in %v", w.name, time.Since(start)))
	}
	return true
}

// Stop cancels a run in progress and waits for the scheduler to drain
func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker: " + w.name)

	if w.entryID > 0 {
		w.cron.Remove(w.entryID)
		w.entryID = 0
	}
	w.cancel()

	ctx := w.cron.Stop()
	<-ctx.Done()

	w.logger.Info("Worker stopped: " + w.name)
	return nil
}

// IsRunning checks if the worker has active cron entries
func (w *Worker) IsRunning() bool {
	return len(w.cron.Entries()) > 0
}

func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		Name:     w.name,
		Running:  w.IsRunning(),
		Interval: w.interval.String(),
		Runs:     w.runs,
		LastRun:  w.last,
	}
	if w.err != nil {
		st.LastError = w.err.Error()
	}
	return st
}
