package models

import (
	"time"
)

// Task is one product URL to be processed. Tasks are created at ingestion and
// consumed exactly once.
type Task struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeNoReviews        Outcome = "no_reviews"
	OutcomeExtractorFailure Outcome = "extractor_failure"
	OutcomeSessionFailure   Outcome = "session_failure"
)

// TaskResult is the terminal record of one task.
type TaskResult struct {
	Task        Task      `json:"task"`
	Outcome     Outcome   `json:"outcome"`
	ProductName string    `json:"product_name"`
	ReviewCount int       `json:"review_count"`
	OutputPath  string    `json:"output_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	WorkerID    int       `json:"worker_id"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Succeeded reports whether the task reached Success and its output was kept.
func (r TaskResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess && r.Error == ""
}

// Reason is the failure reason shown in the final summary.
func (r TaskResult) Reason() string {
	if r.Error != "" {
		return r.Error
	}
	switch r.Outcome {
	case OutcomeNoReviews:
		return "no reviews"
	case OutcomeSuccess:
		return ""
	}
	return string(r.Outcome)
}

// Tally splits results into successes and failures.
type Tally struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Outcomes  map[Outcome]int `json:"outcomes"`
	Successes []TaskResult    `json:"successes"`
	Failures  []TaskResult    `json:"failures"`
}

func NewTally(results []TaskResult) Tally {
	t := Tally{
		Outcomes:  make(map[Outcome]int),
		Successes: make([]TaskResult, 0),
		Failures:  make([]TaskResult, 0),
	}
	for _, r := range results {
		t.Total++
		t.Outcomes[r.Outcome]++
		if r.Succeeded() {
			t.Succeeded++
			t.Successes = append(t.Successes, r)
			continue
		}
		t.Failed++
		t.Failures = append(t.Failures, r)
	}
	return t
}
