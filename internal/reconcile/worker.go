package reconcile

import (
	"context"
	"log/slog"
	"sync"
)

// Kind names what a job does to its intent.
type Kind string

const (
	// KindVerify asks the gateway about an intent still initialized past the
	// stale threshold.
	KindVerify Kind = "verify"
	// KindFulfill reruns fulfillment for a paid intent.
	KindFulfill Kind = "fulfill"
)

type Job struct {
	Reference string
	Kind      Kind
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

// Start registers the worker in the pool and runs processFunc for each job it
// is handed until ctx is done.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("reconcile worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("reconcile worker processing job",
					"worker_id", w.ID,
					"reference", job.Reference,
					"kind", job.Kind)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("reconcile worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}
