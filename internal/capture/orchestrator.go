// Package capture launches out-of-process video recordings for alerts and
// reconciles the results with the alert store.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/centinela-home/centinela/internal/datastore/repository"
	"github.com/centinela-home/centinela/internal/errors"
	"github.com/centinela-home/centinela/internal/logger"
	"github.com/centinela-home/centinela/internal/observability"
)

const (
	// reconcileTimeout bounds the SetVideoPath call after a recording
	// finishes.
	reconcileTimeout = 3 * time.Second
)

var (
	// ErrCaptureInFlight is returned when a capture job for the same alert
	// is already running. Alerts are created once, so this guards against
	// caller bugs rather than a legitimate use case.
	ErrCaptureInFlight = errors.New("capture already in flight for alert")

	// ErrStopped is returned once shutdown has begun.
	ErrStopped = errors.New("capture orchestrator stopped")
)

// CompletionFunc is invoked after a capture result has been persisted.
type CompletionFunc func(alertID uint, path string)

// Job is the handle for one in-flight recording.
type Job struct {
	AlertID    uint
	OutputPath string
	Duration   time.Duration
	StartedAt  time.Time
	Deadline   time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done is closed when the job has finished and reconciliation completed.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job's failure, if any. Valid after Done is closed.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// Orchestrator runs at most one capture job per alert at a time. Jobs are
// detached from the request that created them; their failures are logged
// and counted, never propagated back.
type Orchestrator struct {
	recorder    Recorder
	alerts      repository.AlertRepository
	outputDir   string
	grace       time.Duration
	maxDuration time.Duration
	onComplete  CompletionFunc
	log         logger.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	inflight map[uint]*Job
	stopped  bool
	wg       sync.WaitGroup
}

// Config assembles an Orchestrator.
type Config struct {
	Recorder    Recorder
	Alerts      repository.AlertRepository
	OutputDir   string
	Grace       time.Duration
	MaxDuration time.Duration
	OnComplete  CompletionFunc
	Log         logger.Logger
	Metrics     *observability.Metrics
}

// NewOrchestrator creates a capture orchestrator and its output directory.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture output dir: %w", err)
	}
	return &Orchestrator{
		recorder:    cfg.Recorder,
		alerts:      cfg.Alerts,
		outputDir:   cfg.OutputDir,
		grace:       cfg.Grace,
		maxDuration: cfg.MaxDuration,
		onComplete:  cfg.OnComplete,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		inflight:    make(map[uint]*Job),
	}, nil
}

// Start launches a recording for the given alert and returns immediately.
// A second request for the same alert while one is in flight is rejected,
// not queued.
func (o *Orchestrator) Start(alertID uint, baseName string, duration time.Duration) (*Job, error) {
	if duration <= 0 {
		return nil, errors.Newf("capture duration must be positive").
			Component("capture").
			Category(errors.CategoryValidation).
			Context("alert_id", alertID).
			Build()
	}
	if o.maxDuration > 0 && duration > o.maxDuration {
		duration = o.maxDuration
	}

	outputPath := filepath.Join(o.outputDir,
		fmt.Sprintf("%s_%d_%s.mp4", baseName, alertID, uuid.NewString()[:8]))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(duration+o.grace))
	job := &Job{
		AlertID:    alertID,
		OutputPath: outputPath,
		Duration:   duration,
		StartedAt:  time.Now(),
		Deadline:   time.Now().Add(duration + o.grace),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		cancel()
		return nil, ErrStopped
	}
	if _, exists := o.inflight[alertID]; exists {
		o.mu.Unlock()
		cancel()
		return nil, ErrCaptureInFlight
	}
	o.inflight[alertID] = job
	o.wg.Add(1)
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.CaptureInFlight.Inc()
	}
	o.log.Info("capture started",
		logger.Uint64("alert_id", uint64(alertID)),
		logger.Duration("duration", duration),
		logger.String("output", outputPath))

	go o.run(ctx, job)
	return job, nil
}

// InFlight reports whether a capture job is currently running for alertID.
func (o *Orchestrator) InFlight(alertID uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[alertID]
	return ok
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	defer func() {
		job.cancel()
		o.mu.Lock()
		delete(o.inflight, job.AlertID)
		o.mu.Unlock()
		if o.metrics != nil {
			o.metrics.CaptureInFlight.Dec()
		}
		close(job.done)
		o.wg.Done()
	}()

	if err := o.recorder.Record(ctx, job.OutputPath, job.Duration); err != nil {
		o.fail(ctx, job, err)
		return
	}

	// A recording the duration asked for must exist and be non-empty; a
	// half-written file must never be linked by the alert record.
	info, err := os.Stat(job.OutputPath)
	if err != nil || info.Size() == 0 {
		o.fail(ctx, job, errors.Newf("capture produced no usable artifact").
			Component("capture").
			Category(errors.CategoryProcess).
			Context("alert_id", job.AlertID).
			Build())
		return
	}

	reconcileCtx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()
	if err := o.alerts.SetVideoPath(reconcileCtx, job.AlertID, job.OutputPath); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			// Alert deleted while recording. Drop the orphaned artifact.
			o.removeArtifact(job.OutputPath)
			o.log.Debug("alert gone before capture completed",
				logger.Uint64("alert_id", uint64(job.AlertID)))
			if o.metrics != nil {
				o.metrics.CaptureJobs.WithLabelValues(observability.OutcomeDropped).Inc()
			}
			return
		}
		o.removeArtifact(job.OutputPath)
		o.fail(ctx, job, err)
		return
	}

	if o.metrics != nil {
		o.metrics.CaptureJobs.WithLabelValues(observability.OutcomeSuccess).Inc()
	}
	o.log.Info("capture completed",
		logger.Uint64("alert_id", uint64(job.AlertID)),
		logger.String("path", job.OutputPath),
		logger.Duration("elapsed", time.Since(job.StartedAt)))

	if o.onComplete != nil {
		o.onComplete(job.AlertID, job.OutputPath)
	}
}

// fail records a capture failure. The alert's video path stays absent
// permanently; there is no retry.
func (o *Orchestrator) fail(ctx context.Context, job *Job, err error) {
	job.setErr(err)
	o.removeArtifact(job.OutputPath)

	outcome := observability.OutcomeFailed
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome = observability.OutcomeTimeout
	}
	if o.metrics != nil {
		o.metrics.CaptureJobs.WithLabelValues(outcome).Inc()
	}

	if IsOperationalError(err) {
		o.log.Warn("capture abandoned",
			logger.Uint64("alert_id", uint64(job.AlertID)),
			logger.String("outcome", outcome),
			logger.Error(err))
		return
	}
	o.log.Error("capture failed",
		logger.Uint64("alert_id", uint64(job.AlertID)),
		logger.String("outcome", outcome),
		logger.Error(err))
}

func (o *Orchestrator) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.log.Warn("failed to remove capture artifact",
			logger.String("path", path),
			logger.Error(err))
	}
}

// Stop rejects new jobs and waits for in-flight recordings to finish. When
// ctx expires first, remaining jobs are cancelled and cleanly abandoned:
// their partial files are removed and never reach the alert store.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	o.mu.Lock()
	for _, job := range o.inflight {
		job.cancel()
	}
	o.mu.Unlock()

	<-done
	return ctx.Err()
}
