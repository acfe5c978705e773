// Package playwright reads Playwright JSON reporter output.
package playwright

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// Report is the subset of the JSON reporter output the dashboard records.
// Suites and Errors are kept verbatim for the results views.
type Report struct {
	Suites json.RawMessage `json:"suites"`
	Errors json.RawMessage `json:"errors"`
	Stats  Stats           `json:"stats"`
}

// Stats is the reporter's summary block. Duration is in milliseconds.
type Stats struct {
	StartTime  string  `json:"startTime"`
	Duration   float64 `json:"duration"`
	Expected   int     `json:"expected"`
	Unexpected int     `json:"unexpected"`
	Flaky      int     `json:"flaky"`
	Skipped    int     `json:"skipped"`
}

// Parse decodes a report. Anything printed before the opening brace, such
// as web server logs sharing stdout, is ignored.
func Parse(data []byte) (*Report, error) {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in playwright output")
	}
	var r Report
	if err := json.Unmarshal(data[start:], &r); err != nil {
		return nil, fmt.Errorf("failed to decode playwright report: %w", err)
	}
	return &r, nil
}

// ParseReader reads and decodes a report.
func ParseReader(rd io.Reader) (*Report, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to read playwright report: %w", err)
	}
	return Parse(data)
}

// RunStats maps reporter stats onto run stats. Flaky tests count as passed.
func (r *Report) RunStats() models.RunStats {
	s := r.Stats
	return models.RunStats{
		Total:    s.Expected + s.Unexpected + s.Flaky + s.Skipped,
		Passed:   s.Expected + s.Flaky,
		Failed:   s.Unexpected,
		Skipped:  s.Skipped,
		Duration: s.Duration,
	}
}

// NewRun builds the input for recording this report against a project.
func (r *Report) NewRun(projectID, source string) models.NewRun {
	return models.NewRun{
		ProjectID: projectID,
		Stats:     r.RunStats(),
		Suites:    nonNull(r.Suites),
		Errors:    nonNull(r.Errors),
		Source:    source,
	}
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
