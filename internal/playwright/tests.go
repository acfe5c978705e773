package playwright

import (
	"encoding/json"
	"fmt"
)

// Suite is a describe block or file in the report tree.
type Suite struct {
	Title  string  `json:"title"`
	File   string  `json:"file"`
	Specs  []Spec  `json:"specs"`
	Suites []Suite `json:"suites"`
}

// Spec is one test declaration.
type Spec struct {
	Title string `json:"title"`
	File  string `json:"file"`
	Line  int    `json:"line"`
	Tests []Test `json:"tests"`
}

// Test is one spec executed in one Playwright project.
type Test struct {
	ProjectName string   `json:"projectName"`
	Status      string   `json:"status"` // expected, unexpected, flaky, skipped
	Results     []Result `json:"results"`
}

// Result is one attempt of a test.
type Result struct {
	Status   string  `json:"status"`
	Duration float64 `json:"duration"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Failure is a failed test flattened for notifications and the CLI.
type Failure struct {
	Title   string
	File    string
	Line    int
	Message string
}

func (f Failure) String() string {
	if f.File == "" {
		return f.Title
	}
	return fmt.Sprintf("%s (%s:%d)", f.Title, f.File, f.Line)
}

// Failures walks the suite tree and returns every unexpected test in
// document order. Titles are joined with " > ".
func (r *Report) Failures() ([]Failure, error) {
	if len(r.Suites) == 0 {
		return nil, nil
	}
	var suites []Suite
	if err := json.Unmarshal(r.Suites, &suites); err != nil {
		return nil, fmt.Errorf("failed to decode suites: %w", err)
	}
	var out []Failure
	walk(suites, "", &out)
	return out, nil
}

func walk(suites []Suite, prefix string, out *[]Failure) {
	for _, s := range suites {
		name := s.Title
		if prefix != "" {
			name = prefix + " > " + s.Title
		}
		for _, spec := range s.Specs {
			for _, t := range spec.Tests {
				if t.Status != "unexpected" {
					continue
				}
				f := Failure{Title: name + " > " + spec.Title, File: spec.File, Line: spec.Line}
				if n := len(t.Results); n > 0 && t.Results[n-1].Error != nil {
					f.Message = t.Results[n-1].Error.Message
				}
				*out = append(*out, f)
			}
		}
		walk(s.Suites, name, out)
	}
}
