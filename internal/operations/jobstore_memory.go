package operations

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryJobStore is an in-memory implementation of JobStore. Jobs are
// stored and returned by value so callers never share a *Job.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryJobStore creates a new in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*Job),
	}
}

// CreateJob creates a new job
func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// UpdateJob replaces an existing job
func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, job.ID)
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// ListJobs returns jobs matching the filter, newest first
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	result := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && job.CreatedAt.Before(filter.Since) {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DeleteJob removes a job from the store
func (s *MemoryJobStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	delete(s.jobs, id)
	return nil
}

// CleanupOldJobs removes finished jobs that completed more than olderThan
// ago and returns their IDs
func (s *MemoryJobStore) CleanupOldJobs(olderThan time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var deleted []string

	for id, job := range s.jobs {
		if !job.Status.IsFinished() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted = append(deleted, id)
		}
	}

	return deleted, nil
}

// GetStats returns job counts by status
func (s *MemoryJobStore) GetStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{
		"total_jobs":               len(s.jobs),
		string(JobStatusPending):   0,
		string(JobStatusRunning):   0,
		string(JobStatusCompleted): 0,
		string(JobStatusFailed):    0,
		string(JobStatusCancelled): 0,
	}

	for _, job := range s.jobs {
		stats[string(job.Status)]++
	}

	return stats
}
