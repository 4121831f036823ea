package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"salesdash/internal/config"
	"salesdash/internal/exporter"
	"salesdash/internal/infrastructure"
	"salesdash/internal/middleware"
	"salesdash/internal/operations"
	"salesdash/internal/report"
	api "salesdash/pkg/contracts/api/v1"
	"salesdash/pkg/contracts/domain"
)

// TrainingService submits training runs and serves their results
type TrainingService struct {
	queue       *operations.JobQueue
	broadcaster *operations.StatusBroadcaster
	paths       *config.Paths
	logger      *slog.Logger

	etagMu    sync.Mutex
	etagCache *PreprocessedFile

	previewMu    sync.Mutex
	previewCache *api.DataPreview
}

// PreprocessedFile describes the preprocessed CSV on disk
type PreprocessedFile struct {
	Path    string
	Size    int64
	ModTime time.Time
	ETag    string
}

// NewTrainingService creates a training service on top of a started job queue
func NewTrainingService(queue *operations.JobQueue, manager *operations.Manager, paths *config.Paths, logger *slog.Logger) *TrainingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingService{
		queue:       queue,
		broadcaster: manager.GetBroadcaster(),
		paths:       paths,
		logger:      logger.With(slog.String("service", "training")),
	}
}

// StartRun queues a run with the given hyperparameters. With wait set it
// blocks until the run is finished or ctx is done.
func (s *TrainingService) StartRun(ctx context.Context, hp domain.Hyperparameters, wait bool) (*api.RunDetail, error) {
	traceID := infrastructure.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = middleware.GetReqID(ctx)
	}

	job, err := s.queue.Enqueue(hp, traceID)
	if err != nil {
		s.logger.WarnContext(ctx, "run rejected", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to queue run: %w", err)
	}

	s.logger.InfoContext(ctx, "run queued",
		slog.String("run_id", job.ID),
		slog.String("trace_id", traceID),
		slog.Bool("wait", wait))

	if wait {
		finished, err := s.queue.Wait(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed waiting for run %s: %w", job.ID, err)
		}
		job = finished
	}

	return s.detail(job), nil
}

// GetRun returns the current view of a run
func (s *TrainingService) GetRun(ctx context.Context, id string) (*api.RunDetail, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}
	return s.detail(job), nil
}

// ListRuns returns up to limit runs, newest first. A limit of 0 means all.
func (s *TrainingService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	jobs, err := s.queue.ListJobs(operations.JobFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]domain.RunSummary, 0, len(jobs))
	for _, job := range jobs {
		runs = append(runs, s.summary(job))
	}
	return runs, nil
}

// CancelRun stops a queued or running run
func (s *TrainingService) CancelRun(ctx context.Context, id string) error {
	if _, err := s.job(id); err != nil {
		return err
	}
	if err := s.queue.CancelJob(id); err != nil {
		return fmt.Errorf("failed to cancel run %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "run cancelled", slog.String("run_id", id))
	return nil
}

// Report returns the report of a completed run
func (s *TrainingService) Report(ctx context.Context, id string) (*report.Report, error) {
	result, err := s.result(id)
	if err != nil {
		return nil, err
	}
	return result.Report, nil
}

// Chart returns one rendered chart of a completed run as PNG bytes
func (s *TrainingService) Chart(ctx context.Context, id, name string) ([]byte, error) {
	if !slices.Contains(report.ChartNames, name) {
		return nil, fmt.Errorf("%w: %s", report.ErrUnknownChart, name)
	}

	result, err := s.result(id)
	if err != nil {
		return nil, err
	}

	if png, ok := result.Charts[name]; ok {
		return png, nil
	}

	// charts that failed to pre-render are drawn on demand
	var buf bytes.Buffer
	if err := report.RenderChart(result.Report, name, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// WriteWorkbook writes the Excel export of a completed run to w
func (s *TrainingService) WriteWorkbook(ctx context.Context, id string, w io.Writer) error {
	result, err := s.result(id)
	if err != nil {
		return err
	}
	if err := report.WriteWorkbook(result.Report, w); err != nil {
		return fmt.Errorf("failed to write workbook for run %s: %w", id, err)
	}
	return nil
}

// PreprocessedCSV describes the latest preprocessed table. The ETag is
// recomputed only when the file changed.
func (s *TrainingService) PreprocessedCSV(ctx context.Context) (*PreprocessedFile, error) {
	path := s.paths.PreprocessedCSV()

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoPreprocessedData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat preprocessed data: %w", err)
	}

	s.etagMu.Lock()
	defer s.etagMu.Unlock()

	if c := s.etagCache; c != nil && c.Size == info.Size() && c.ModTime.Equal(info.ModTime()) {
		file := *c
		return &file, nil
	}

	etag, err := exporter.FileETag(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash preprocessed data: %w", err)
	}

	s.etagCache = &PreprocessedFile{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		ETag:    etag,
	}
	s.logger.DebugContext(ctx, "preprocessed data hashed",
		slog.String("etag", etag),
		slog.Int64("size", info.Size()))

	file := *s.etagCache
	return &file, nil
}

// PreprocessedPreview returns the header and first config.PreviewRows rows
// of the latest preprocessed table. The preview is reread only when the
// file's ETag changed.
func (s *TrainingService) PreprocessedPreview(ctx context.Context) (*api.DataPreview, error) {
	file, err := s.PreprocessedCSV(ctx)
	if err != nil {
		return nil, err
	}

	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	if c := s.previewCache; c != nil && c.ETag == file.ETag {
		preview := *c
		return &preview, nil
	}

	columns, rows, err := exporter.ReadHead(file.Path, config.PreviewRows)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoPreprocessedData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preprocessed data: %w", err)
	}

	s.previewCache = &api.DataPreview{
		Message: operations.PreprocessingCompleteMessage,
		Columns: columns,
		Rows:    rows,
		ETag:    file.ETag,
	}
	preview := *s.previewCache
	return &preview, nil
}

// Stats counts runs by status
func (s *TrainingService) Stats(ctx context.Context) (map[string]interface{}, error) {
	jobs, err := s.queue.ListJobs(operations.JobFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	counts := map[domain.RunStatus]int{}
	for _, job := range jobs {
		counts[job.Status.RunStatus()]++
	}

	return map[string]interface{}{
		"total_runs":    len(jobs),
		"idle_runs":     counts[domain.RunStatusIdle],
		"training_runs": counts[domain.RunStatusTraining],
		"complete_runs": counts[domain.RunStatusComplete],
		"failed_runs":   counts[domain.RunStatusFailed],
		"queue":         s.queue.GetQueueStats(),
		"timestamp":     time.Now().Unix(),
	}, nil
}

func (s *TrainingService) job(id string) (*operations.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, id)
	}
	job, err := s.queue.GetJob(id)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return job, nil
}

// result returns the output of a completed run
func (s *TrainingService) result(id string) (*operations.RunResult, error) {
	job, err := s.job(id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case operations.JobStatusCompleted:
		if job.Result == nil || job.Result.Report == nil {
			return nil, fmt.Errorf("run %s completed without a report: %w", id, operations.ErrRunNotComplete)
		}
		return job.Result, nil
	case operations.JobStatusFailed, operations.JobStatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrRunFailed, job.Error)
	default:
		return nil, fmt.Errorf("run %s is %s: %w", id, job.Status.RunStatus(), operations.ErrRunNotComplete)
	}
}

// summary merges the stored job with its live snapshot
func (s *TrainingService) summary(job *operations.Job) domain.RunSummary {
	sum := domain.RunSummary{
		ID:              job.ID,
		Status:          job.Status.RunStatus(),
		Hyperparameters: job.Hyperparameters,
		Progress:        job.Progress,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     job.CompletedAt,
	}
	if job.Status.IsFinished() {
		return sum
	}
	if snap, ok := s.broadcaster.GetSnapshot(job.ID); ok {
		sum.Progress = snap.Progress
		sum.CurrentStep = snap.CurrentStep
	}
	return sum
}

func (s *TrainingService) detail(job *operations.Job) *api.RunDetail {
	d := &api.RunDetail{
		RunSummary: s.summary(job),
		Message:    job.Message,
		StartedAt:  job.StartedAt,
	}

	if snap, ok := s.broadcaster.GetSnapshot(job.ID); ok {
		d.Steps = snap.Steps
		if !job.Status.IsFinished() && snap.Message != "" {
			d.Message = snap.Message
		}
	}

	if job.Result != nil && job.Result.Report != nil {
		d.Metrics = job.Result.Report.MetricsDisplay
	}
	return d
}
