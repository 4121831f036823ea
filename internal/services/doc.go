// Package services is the business layer between the HTTP handlers and the
// operations pipeline.
//
// # Services
//
//   - TrainingService: submits runs to the job queue, reads their progress
//     and serves the finished report, its charts and its workbook
//   - HealthService: liveness, readiness and version information
//
// Services receive their collaborators through their constructors and take a
// *slog.Logger, falling back to slog.Default when nil.
//
// # Errors
//
// Services return the sentinels of this package or of internal/operations,
// wrapped with context. Handlers translate them into problem details:
//
//	operations.ErrRunNotFound    -> 404
//	operations.ErrRunNotComplete -> 409
//	ErrRunFailed                 -> 409
//	operations.ErrQueueFull      -> 503
//	ErrNoPreprocessedData        -> 404
package services
