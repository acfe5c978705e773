package models

import (
	"encoding/json"
	"time"
)

// RunStats are the aggregate numbers of one automated test run.
type RunStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	Duration float64 `json:"duration"`
}

// ExitCode is 1 when any test failed.
func (s RunStats) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Run is one recorded automated test-suite execution.
type Run struct {
	ID        int64           `json:"id,string"`
	ProjectID string          `json:"projectId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Stats     RunStats        `json:"stats"`
	Source    string          `json:"source"`
	ExitCode  int             `json:"exitCode"`
	Suites    json.RawMessage `json:"suites,omitempty"`
	Errors    json.RawMessage `json:"errors,omitempty"`
}

// NewRun is the input for recording a run.
type NewRun struct {
	ProjectID string
	Stats     RunStats
	Suites    json.RawMessage
	Errors    json.RawMessage
	Source    string
}

// Project is a tracked web project.
type Project struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	BaseURL *string `json:"baseUrl"`
	Port    *int    `json:"port"`
}

// ProjectSummary is the latest state of one project for the overview screen.
type ProjectSummary struct {
	Name    string `json:"name"`
	LastRun *Run   `json:"lastRun"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}
