package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/folio/internal/storage"
)

// JobTypeCapture is the job type used for queued events.
const JobTypeCapture = "analytics_capture"

// JobQueue abstracts the job queue operations.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// Outbox is a Sink that persists events to the job queue. A Worker
// drains the queue into the real sink, so a slow or unreachable
// analytics backend never holds up a page render.
type Outbox struct {
	queue JobQueue
	now   func() time.Time
}

func NewOutbox(queue JobQueue) *Outbox {
	return &Outbox{queue: queue, now: time.Now}
}

func (o *Outbox) Capture(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = o.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return o.queue.EnqueueJob(ctx, storage.Job{
		ID:          ev.ID,
		Type:        JobTypeCapture,
		Tenant:      ev.DistinctID,
		PayloadJSON: string(payload),
	})
}

// Worker delivers queued analytics_capture jobs to a Sink.
type Worker struct {
	queue  JobQueue
	sink   Sink
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 1s.
func NewWorker(queue JobQueue, sink Sink, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		queue:  queue,
		sink:   sink,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("analytics worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and delivers a single event.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNextJob(ctx, []string{JobTypeCapture})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.deliver(ctx, job); err != nil {
		w.logger.Warn("analytics delivery failed", "job_id", job.ID, "tenant", job.Tenant, "error", err)
		// The claim must be released even when ctx is being torn down.
		if failErr := w.queue.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.queue.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) deliver(ctx context.Context, job *storage.Job) error {
	var ev Event
	if err := json.Unmarshal([]byte(job.PayloadJSON), &ev); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	return w.sink.Capture(ctx, ev)
}
