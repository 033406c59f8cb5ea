package reconstruction

import (
	"sync"
	"time"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// DefaultCompletionDelay is how long the placeholder pipeline "works" on a job.
const DefaultCompletionDelay = 8 * time.Second

// Scheduler completes jobs after a constant delay, one timer per job.
type Scheduler struct {
	manager *Manager
	delay   time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler driving manager. A non-positive delay uses
// DefaultCompletionDelay.
func NewScheduler(manager *Manager, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultCompletionDelay
	}
	return &Scheduler{
		manager: manager,
		delay:   delay,
		timers:  make(map[string]*time.Timer),
	}
}

// Submit creates a job and arms its completion timer.
func (s *Scheduler) Submit(name string, imageCount int, settings types.JobSettings) string {
	id := s.manager.Create(name, imageCount, settings)
	s.Schedule(id)
	return id
}

// Schedule arms the completion timer for an existing job. Scheduling the
// same job twice, or after Stop, does nothing.
func (s *Scheduler) Schedule(id string) {
	s.scheduleAfter(id, s.delay)
}

// Resume picks up jobs a previous process left processing. Jobs older than
// the delay complete now; the rest are armed for the time they have left.
// It returns how many jobs completed immediately.
func (s *Scheduler) Resume() int {
	return s.resumeAt(time.Now())
}

func (s *Scheduler) resumeAt(now time.Time) int {
	completed := 0
	for _, job := range s.manager.List() {
		if job.Status != types.JobProcessing {
			continue
		}
		remaining := job.CreatedAt.Add(s.delay).Sub(now)
		if remaining <= 0 {
			if s.manager.Complete(job.ID) {
				completed++
				logging.Jobs("job %s completed on resume", job.ID)
			}
			continue
		}
		s.scheduleAfter(job.ID, remaining)
	}
	return completed
}

func (s *Scheduler) scheduleAfter(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, armed := s.timers[id]; armed {
		return
	}
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if s.manager.Complete(id) {
			logging.Jobs("job %s completed after %v", id, d)
		}
	})
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels outstanding timers and waits for running callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until every armed timer has fired.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
