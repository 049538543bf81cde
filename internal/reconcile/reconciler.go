package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
	"github.com/frahmantamala/pharmacy-management/pkg/metrics"
)

// PaymentService is the part of the payment service the reconciler drives.
type PaymentService interface {
	StaleIntents(ctx context.Context, age time.Duration, limit int) ([]*paymentDatamodel.PaymentIntent, error)
	UnfulfilledIntents(ctx context.Context, grace time.Duration, maxAttempts, limit int) ([]*paymentDatamodel.PaymentIntent, error)
	Reconcile(ctx context.Context, reference string) (*payment.VerifyResponse, error)
	RetryFulfillment(ctx context.Context, pharmacyID int64, reference, source string) (*payment.FulfillmentView, error)
}

type MetricsRecorder interface {
	ObserveDuration(job string, d time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
	IncDropped(job string)
}

type Config struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	FulfillGrace time.Duration
	MaxAttempts  int
	Workers      int
	BatchSize    int
	QueueSize    int
	JobTimeout   time.Duration
}

// Reconciler periodically sweeps intents the webhook path left behind and
// feeds them to a worker pool: stale initialized intents are re-verified with
// the gateway and paid intents with incomplete fulfillment are retried.
type Reconciler struct {
	payments PaymentService
	cfg      Config
	metrics  MetricsRecorder
	logger   *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job

	mu       sync.Mutex
	inFlight map[string]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(payments PaymentService, cfg Config, recorder MetricsRecorder, logger *slog.Logger) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.FulfillGrace <= 0 {
		cfg.FulfillGrace = cfg.StaleAfter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.BatchSize * 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewReconcileMetrics(nil)
	}

	return &Reconciler{
		payments:   payments,
		cfg:        cfg,
		metrics:    recorder,
		logger:     logger,
		jobQueue:   make(chan Job, cfg.QueueSize),
		workerPool: make(chan chan Job, cfg.Workers),
		inFlight:   make(map[string]struct{}),
	}
}

// Start launches the workers, the dispatcher and the sweep loop. The first
// sweep runs immediately.
func (r *Reconciler) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.ctx, r.cancel = context.WithCancel(ctx)

		for i := 0; i < r.cfg.Workers; i++ {
			worker := NewWorker(i, r.workerPool, r.logger)
			worker.Start(r.ctx, &r.wg, r.process)
		}

		r.wg.Add(2)
		go r.dispatch()
		go r.loop()

		r.logger.Info("reconciler started",
			"workers", r.cfg.Workers,
			"interval", r.cfg.Interval,
			"stale_after", r.cfg.StaleAfter,
			"max_attempts", r.cfg.MaxAttempts)
	})
}

// Shutdown stops sweeping and waits for in-flight jobs. Queued jobs that were
// not yet handed to a worker are dropped; the next run picks them up again.
func (r *Reconciler) Shutdown() {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			return
		}
		r.logger.Info("shutting down reconciler")
		r.cancel()
		r.wg.Wait()
		r.logger.Info("reconciler shutdown complete")
	})
}

// Sweep lists candidate intents and enqueues a job for each one not already
// queued or running. It returns the number of jobs enqueued.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	var errs []error
	enqueued := 0

	stale, err := r.payments.StaleIntents(ctx, r.cfg.StaleAfter, r.cfg.BatchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list stale intents: %w", err))
	}
	for _, intent := range stale {
		if r.enqueue(Job{Reference: intent.Reference, Kind: KindVerify}) {
			enqueued++
		}
	}

	unfulfilled, err := r.payments.UnfulfilledIntents(ctx, r.cfg.FulfillGrace, r.cfg.MaxAttempts, r.cfg.BatchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("list unfulfilled intents: %w", err))
	}
	for _, intent := range unfulfilled {
		if r.enqueue(Job{Reference: intent.Reference, Kind: KindFulfill}) {
			enqueued++
		}
	}

	return enqueued, errors.Join(errs...)
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	r.sweep()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reconciler) sweep() {
	n, err := r.Sweep(r.ctx)
	if err != nil {
		r.logger.Error("reconcile sweep failed", "error", err)
	}
	if n > 0 {
		r.logger.Info("reconcile sweep enqueued jobs", "jobs", n)
	}
}

func (r *Reconciler) enqueue(job Job) bool {
	r.mu.Lock()
	if _, busy := r.inFlight[job.Reference]; busy {
		r.mu.Unlock()
		return false
	}
	r.inFlight[job.Reference] = struct{}{}
	r.mu.Unlock()

	select {
	case r.jobQueue <- job:
		return true
	default:
		r.release(job.Reference)
		r.metrics.IncDropped(string(job.Kind))
		r.logger.Warn("reconcile queue full, job dropped",
			"reference", job.Reference,
			"kind", job.Kind,
			"queue_capacity", cap(r.jobQueue))
		return false
	}
}

func (r *Reconciler) release(reference string) {
	r.mu.Lock()
	delete(r.inFlight, reference)
	r.mu.Unlock()
}

func (r *Reconciler) dispatch() {
	defer r.wg.Done()

	for {
		select {
		case job := <-r.jobQueue:
			select {
			case jobChannel := <-r.workerPool:
				select {
				case jobChannel <- job:
				case <-r.ctx.Done():
					r.logger.Info("reconcile dispatcher shutting down")
					return
				}
			case <-r.ctx.Done():
				r.logger.Info("reconcile dispatcher shutting down")
				return
			}
		case <-r.ctx.Done():
			r.logger.Info("reconcile dispatcher shutting down")
			return
		}
	}
}

func (r *Reconciler) process(ctx context.Context, job Job) {
	defer r.release(job.Reference)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	kind := string(job.Kind)
	err := r.run(ctx, job)
	r.metrics.ObserveDuration(kind, time.Since(start))
	if err != nil {
		r.metrics.IncFailure(kind)
		r.logger.Warn("reconcile job failed",
			"reference", job.Reference,
			"kind", job.Kind,
			"error", err)
		return
	}
	r.metrics.IncSuccess(kind)
}

func (r *Reconciler) run(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindVerify:
		resp, err := r.payments.Reconcile(ctx, job.Reference)
		if err != nil {
			return err
		}
		r.logger.Info("stale intent reconciled",
			"reference", job.Reference,
			"paid", resp.Paid,
			"status", resp.Transaction.Status)
		return nil
	case KindFulfill:
		view, err := r.payments.RetryFulfillment(ctx, 0, job.Reference, payment.SourceReconcile)
		if err != nil {
			return err
		}
		if view.Status != string(paymentDatamodel.FulfillmentFulfilled) {
			return fmt.Errorf("fulfillment still %s after %d attempts", view.Status, view.Attempts)
		}
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}
