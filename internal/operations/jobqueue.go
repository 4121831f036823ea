package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"salesdash/pkg/contracts/domain"
)

// JobStatus represents the status of a job
type JobStatus = OperationStatusValue

const (
	JobStatusPending   = OperationStatusPending
	JobStatusRunning   = OperationStatusRunning
	JobStatusCompleted = OperationStatusCompleted
	JobStatusFailed    = OperationStatusFailed
	JobStatusCancelled = OperationStatusCancelled
)

// Job is one queued training run
type Job struct {
	ID              string                 `json:"id"`
	Status          JobStatus              `json:"status"`
	Hyperparameters domain.Hyperparameters `json:"hyperparameters"`
	TraceID         string                 `json:"trace_id,omitempty"`
	Progress        int                    `json:"progress"`
	Message         string                 `json:"message,omitempty"`
	Error           string                 `json:"error,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`

	// Result is set once the run completed
	Result *RunResult `json:"-"`
}

// JobStore interface for job persistence
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
	CleanupOldJobs(olderThan time.Duration) ([]string, error)
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Since  time.Time
	Limit  int
}

// JobQueue runs training jobs on a fixed pool of workers
type JobQueue struct {
	mu         sync.Mutex
	jobs       chan string
	workers    int
	wg         sync.WaitGroup
	store      JobStore
	manager    *Manager
	logger     *slog.Logger
	shutdown   chan struct{}
	stopOnce   sync.Once
	runTimeout time.Duration
	retention  time.Duration

	// cancels holds the cancel func of every running job
	cancels map[string]context.CancelFunc
	// done is closed when a job reaches a final status
	done map[string]chan struct{}
}

// NewJobQueue creates a new job queue
func NewJobQueue(workers, queueSize int, store JobStore, manager *Manager, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan string, queueSize),
		workers:  workers,
		store:    store,
		manager:  manager,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		cancels:  make(map[string]context.CancelFunc),
		done:     make(map[string]chan struct{}),
	}
}

// SetRunTimeout bounds the wall time of a single run. Zero means no limit.
func (q *JobQueue) SetRunTimeout(d time.Duration) {
	q.runTimeout = d
}

// SetRetention sets how long finished jobs are kept. Zero keeps them forever.
func (q *JobQueue) SetRetention(d time.Duration) {
	q.retention = d
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue",
		slog.Int("workers", q.workers),
		slog.Int("queue_cap", cap(q.jobs)))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	if q.retention > 0 {
		go q.janitor(ctx)
	}
}

// Stop gracefully shuts down the job queue. Running jobs that outlive the
// timeout are cancelled.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	q.stopOnce.Do(func() { close(q.shutdown) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded, cancelling running jobs")
		q.mu.Lock()
		for _, cancel := range q.cancels {
			cancel()
		}
		q.mu.Unlock()
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue creates a pending job for hp and queues it
func (q *JobQueue) Enqueue(hp domain.Hyperparameters, traceID string) (*Job, error) {
	select {
	case <-q.shutdown:
		return nil, fmt.Errorf("job queue is stopped")
	default:
	}

	job := &Job{
		ID:              uuid.NewString(),
		Status:          JobStatusPending,
		Hyperparameters: hp,
		TraceID:         traceID,
		Message:         "Run queued",
		CreatedAt:       time.Now(),
	}

	if err := q.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	q.mu.Lock()
	q.done[job.ID] = make(chan struct{})
	q.mu.Unlock()

	steps, err := q.manager.GetRegistry().GetDependencyOrder()
	if err != nil {
		steps = q.manager.GetRegistry().List()
	}
	broadcaster := q.manager.GetBroadcaster()
	broadcaster.CreateOperation(job.ID, steps)

	select {
	case q.jobs <- job.ID:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("trace_id", traceID))
		return job, nil
	default:
		q.forget(job.ID)
		return nil, ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter, newest first
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Wait blocks until the job reaches a final status or ctx is done
func (q *JobQueue) Wait(ctx context.Context, id string) (*Job, error) {
	q.mu.Lock()
	done, ok := q.done[id]
	q.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return q.store.GetJob(id)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cancel, running := q.cancels[id]; running {
		cancel()
		return nil
	}

	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.Status != JobStatusPending {
		return fmt.Errorf("%w: job %s (status: %s)", ErrRunFinished, id, job.Status)
	}

	now := time.Now()
	job.Status = JobStatusCancelled
	job.Message = "Run cancelled"
	job.Error = context.Canceled.Error()
	job.CompletedAt = &now
	if err := q.store.UpdateJob(job); err != nil {
		return err
	}
	q.manager.GetBroadcaster().FailOperation(id, NewCancellationError(""))
	q.closeDoneLocked(id)
	return nil
}

// worker processes jobs from the queue
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case id := <-q.jobs:
			q.processJob(ctx, id, logger)
		}
	}
}

// claim moves a pending job to running and registers its cancel func. It
// returns nil when the job was cancelled or removed while queued.
func (q *JobQueue) claim(id string, cancel context.CancelFunc) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil || job.Status != JobStatusPending {
		return nil
	}

	now := time.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.Message = "Run started"
	if err := q.store.UpdateJob(job); err != nil {
		return nil
	}
	q.cancels[id] = cancel
	return job
}

// processJob executes a single job
func (q *JobQueue) processJob(ctx context.Context, id string, logger *slog.Logger) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if q.runTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, q.runTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	job := q.claim(id, cancel)
	if job == nil {
		logger.Debug("skipping job that is no longer pending", slog.String("job_id", id))
		return
	}

	if job.TraceID != "" {
		runCtx = context.WithValue(runCtx, middleware.RequestIDKey, job.TraceID)
	}
	logger = logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job started")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))
			err := fmt.Errorf("job processing panicked: %v", r)
			q.finish(job, nil, err)
			q.manager.GetBroadcaster().FailOperation(job.ID, err)
		}
	}()

	resp, err := q.manager.Execute(runCtx, RunRequest{
		ID:              job.ID,
		Hyperparameters: job.Hyperparameters,
		TraceID:         job.TraceID,
	})

	var result *RunResult
	if err == nil && resp != nil && resp.State != nil {
		result, err = contextValue[*RunResult](resp.State, ContextKeyResult)
		if err != nil {
			q.manager.GetBroadcaster().FailOperation(job.ID, err)
		}
	}

	q.finish(job, result, err)
	if err != nil {
		logger.Error("job failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("processing job completed")
}

// finish records the final status of a job and releases its waiters
func (q *JobQueue) finish(job *Job, result *RunResult, err error) {
	now := time.Now()
	job.CompletedAt = &now
	job.Result = result

	switch {
	case err == nil:
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = "Run completed successfully"
	case GetErrorType(err) == ErrorTypeCancellation:
		job.Status = JobStatusCancelled
		job.Error = err.Error()
		job.Message = "Run cancelled"
	default:
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.Message = "Run failed"
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if uerr := q.store.UpdateJob(job); uerr != nil {
		q.logger.Error("failed to update job", slog.String("job_id", job.ID), slog.String("error", uerr.Error()))
	}
	delete(q.cancels, job.ID)
	q.closeDoneLocked(job.ID)
}

func (q *JobQueue) closeDoneLocked(id string) {
	if ch, ok := q.done[id]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// forget removes every trace of a job
func (q *JobQueue) forget(id string) {
	_ = q.store.DeleteJob(id)
	q.manager.GetBroadcaster().Forget(id)

	q.mu.Lock()
	q.closeDoneLocked(id)
	delete(q.done, id)
	q.mu.Unlock()
}

// janitor drops finished jobs and their snapshots once retention has passed
func (q *JobQueue) janitor(ctx context.Context) {
	interval := max(q.retention/4, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case <-ticker.C:
			q.CleanupOldJobs(ctx)
		}
	}
}

// CleanupOldJobs removes jobs finished longer ago than the retention period
func (q *JobQueue) CleanupOldJobs(ctx context.Context) int {
	ids, err := q.store.CleanupOldJobs(q.retention)
	if err != nil {
		q.logger.Error("failed to clean up jobs", slog.String("error", err.Error()))
		return 0
	}

	q.mu.Lock()
	for _, id := range ids {
		delete(q.done, id)
	}
	q.mu.Unlock()

	broadcaster := q.manager.GetBroadcaster()
	for _, id := range ids {
		broadcaster.Forget(id)
	}
	broadcaster.CleanupOldOperations(ctx, q.retention)

	if len(ids) > 0 {
		q.logger.Info("cleaned up finished jobs", slog.Int("count", len(ids)))
	}
	return len(ids)
}

// GetQueueStats returns queue statistics
func (q *JobQueue) GetQueueStats() map[string]interface{} {
	q.mu.Lock()
	activeCount := len(q.cancels)
	q.mu.Unlock()

	stats := map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
	if s, ok := q.store.(interface{ GetStats() map[string]int }); ok {
		stats["jobs"] = s.GetStats()
	}
	return stats
}
