// Package runner executes Playwright suites in the background and records
// their results.
package runner

import (
	"sync"
	"time"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one queued test execution for a project.
type Job struct {
	mu          sync.RWMutex
	ID          string           `json:"jobId"`
	ProjectID   string           `json:"projectId"`
	Grep        string           `json:"grep,omitempty"`
	Status      JobStatus        `json:"status"`
	RunID       int64            `json:"runId,omitempty,string"`
	Stats       *models.RunStats `json:"stats,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// Snapshot returns a copy of the job that is safe to read without holding locks.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:          j.ID,
		ProjectID:   j.ProjectID,
		Grep:        j.Grep,
		Status:      j.Status,
		RunID:       j.RunID,
		Stats:       j.Stats,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}
