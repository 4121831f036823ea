// Package operations runs a training request as an ordered sequence of
// steps and reports its progress.
//
// A run goes through five steps, each depending on the previous one:
//
//	acquisition -> preprocessing -> split -> training -> reporting
//
// Core components:
//
// Manager executes the registered steps in dependency order for one run,
// tracking state and timing and publishing every change through the
// StatusBroadcaster.
//
// Step is a single unit of work. Steps exchange data through the
// OperationState context map, never through package globals, so runs are
// isolated from each other.
//
// Registry holds the steps and computes their execution order.
//
// JobQueue turns a submitted run into an asynchronous job executed by a
// bounded pool of workers; callers may wait for completion.
//
// StatusBroadcaster is the single authority for run snapshots. Every
// snapshot carries the run status (idle, training, complete, failed) and
// is pushed to WebSocket clients.
//
// Example:
//
//	manager := operations.NewManager(hub, nil, nil)
//	for _, step := range operations.NewRunSteps(deps) {
//		manager.RegisterStage(step)
//	}
//	queue := operations.NewJobQueue(1, 16, operations.NewMemoryJobStore(), manager, logger)
//	queue.Start(ctx)
//	job, err := queue.Enqueue(domain.DefaultHyperparameters(), "")
package operations
