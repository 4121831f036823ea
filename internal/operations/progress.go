package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker counts completed units of a long step (epochs during
// training) and estimates the remaining time.
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	current   int
	startTime time.Time
	now       func() time.Time
}

// NewProgressTracker creates a tracker for total units
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Update sets the number of completed units
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = min(current, p.total)
}

// Percent returns completion in [0, 100]
func (p *ProgressTracker) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total <= 0 {
		return 0
	}
	return p.current * 100 / p.total
}

// ETA estimates the time left from the average unit duration so far.
// It returns false until at least one unit is done.
func (p *ProgressTracker) ETA() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == 0 || p.total == 0 {
		return 0, false
	}
	perUnit := p.now().Sub(p.startTime) / time.Duration(p.current)
	return perUnit * time.Duration(p.total-p.current), true
}

// ETAString formats ETA for status messages
func (p *ProgressTracker) ETAString() string {
	remaining, ok := p.ETA()
	if !ok {
		return "calculating..."
	}
	switch {
	case remaining < time.Minute:
		return fmt.Sprintf("%.0f seconds", remaining.Seconds())
	case remaining < time.Hour:
		return fmt.Sprintf("%.1f minutes", remaining.Minutes())
	default:
		return fmt.Sprintf("%.1f hours", remaining.Hours())
	}
}
