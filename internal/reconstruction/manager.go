// Package reconstruction tracks 3D reconstruction jobs and their lifecycle.
package reconstruction

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// Journal persists job snapshots after every change.
type Journal interface {
	RecordJob(job types.ReconstructionJob) error
}

// Listener is notified after a job changes status.
type Listener func(job types.ReconstructionJob)

// Manager owns the job collection. It has no timing logic of its own; a
// Scheduler decides when jobs complete.
type Manager struct {
	mu        sync.RWMutex
	jobs      []*types.ReconstructionJob // most recent first
	byID      map[string]*types.ReconstructionJob
	journal   Journal
	listeners []Listener
	now       func() time.Time
	newID     func() string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithJournal persists every job change.
func WithJournal(j Journal) ManagerOption {
	return func(m *Manager) { m.journal = j }
}

// WithListener registers a status-change callback.
func WithListener(fn Listener) ManagerOption {
	return func(m *Manager) { m.listeners = append(m.listeners, fn) }
}

// NewManager creates an empty manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		byID:  make(map[string]*types.ReconstructionJob),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create records a new job in processing state and returns its ID.
// Callers validate name and image count before calling.
func (m *Manager) Create(name string, imageCount int, settings types.JobSettings) string {
	job := &types.ReconstructionJob{
		ID:         m.newID(),
		Name:       name,
		ImageCount: imageCount,
		Status:     types.JobProcessing,
		CreatedAt:  m.now(),
		Settings:   settings,
	}

	m.mu.Lock()
	m.jobs = append([]*types.ReconstructionJob{job}, m.jobs...)
	m.byID[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	logging.Jobs("created job %s %q (%d images, %s/%s)", job.ID, name, imageCount, settings.Resolution, settings.Mode)
	logging.Audit().JobTransition(job.ID, "", string(types.JobProcessing))
	m.publish(snapshot)
	return job.ID
}

// Complete marks a processing job completed. Missing or already finished
// jobs are left untouched, so repeated calls are harmless.
func (m *Manager) Complete(id string) bool {
	return m.transition(id, types.JobCompleted, "")
}

// Fail marks a processing job failed with reason.
func (m *Manager) Fail(id, reason string) bool {
	return m.transition(id, types.JobFailed, reason)
}

func (m *Manager) transition(id string, to types.JobStatus, reason string) bool {
	m.mu.Lock()
	job, ok := m.byID[id]
	if !ok || job.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	from := job.Status
	job.Status = to
	if to == types.JobFailed {
		job.FailureReason = reason
	}
	snapshot := *job
	m.mu.Unlock()

	logging.Jobs("job %s %s -> %s", id, from, to)
	logging.Audit().JobTransition(id, string(from), string(to))
	m.publish(snapshot)
	return true
}

func (m *Manager) publish(job types.ReconstructionJob) {
	if m.journal != nil {
		if err := m.journal.RecordJob(job); err != nil {
			logging.StoreWarn("journal job %s: %v", job.ID, err)
		}
	}
	for _, fn := range m.listeners {
		fn(job)
	}
}

// Get returns a copy of the job with id.
func (m *Manager) Get(id string) (types.ReconstructionJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.byID[id]
	if !ok {
		return types.ReconstructionJob{}, false
	}
	return *job, true
}

// List returns copies of all jobs, most recently created first.
func (m *Manager) List() []types.ReconstructionJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ReconstructionJob, len(m.jobs))
	for i, job := range m.jobs {
		out[i] = *job
	}
	return out
}

// Restore loads journaled jobs (most recent first) into an empty manager.
func (m *Manager) Restore(jobs []types.ReconstructionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) > 0 {
		return fmt.Errorf("restore into non-empty manager (%d jobs)", len(m.jobs))
	}
	for i := range jobs {
		job := jobs[i]
		if _, dup := m.byID[job.ID]; dup {
			return fmt.Errorf("duplicate job id %s", job.ID)
		}
		m.jobs = append(m.jobs, &job)
		m.byID[job.ID] = &job
	}
	return nil
}
