package store

import (
	"encoding/json"
	"fmt"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// =============================================================================
// RECONSTRUCTION JOB JOURNAL
// =============================================================================

// RecordJob upserts the latest snapshot of a job.
func (s *LocalStore) RecordJob(job types.ReconstructionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settingsJSON, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO jobs (id, name, image_count, status, settings_json, result_url, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result_url = excluded.result_url,
			failure_reason = excluded.failure_reason,
			updated_at = CURRENT_TIMESTAMP`,
		job.ID, job.Name, job.ImageCount, string(job.Status), string(settingsJSON), job.ResultURL, job.FailureReason, formatTime(job.CreatedAt),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to record job %s: %v", job.ID, err)
		return err
	}
	logging.StoreDebug("job %s journaled as %s", job.ID, job.Status)
	return nil
}

// LoadJobs returns all journaled jobs, most recently created first.
func (s *LocalStore) LoadJobs() ([]types.ReconstructionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, name, image_count, status, settings_json, result_url, failure_reason, created_at
		 FROM jobs ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ReconstructionJob
	for rows.Next() {
		var job types.ReconstructionJob
		var status, settingsJSON, created string
		if err := rows.Scan(&job.ID, &job.Name, &job.ImageCount, &status, &settingsJSON, &job.ResultURL, &job.FailureReason, &created); err != nil {
			return nil, err
		}
		job.Status = types.JobStatus(status)
		job.CreatedAt = parseTime(created)
		if err := json.Unmarshal([]byte(settingsJSON), &job.Settings); err != nil {
			logging.StoreWarn("job %s has unreadable settings: %v", job.ID, err)
			job.Settings = types.DefaultJobSettings()
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
