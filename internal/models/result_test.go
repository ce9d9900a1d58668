package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTally(t *testing.T) {
	results := []TaskResult{
		{Task: Task{URL: "a"}, Outcome: OutcomeSuccess, ReviewCount: 3},
		{Task: Task{URL: "b"}, Outcome: OutcomeNoReviews},
		{Task: Task{URL: "c"}, Outcome: OutcomeSessionFailure, Error: "browser crashed"},
		{Task: Task{URL: "d"}, Outcome: OutcomeSuccess, Error: "persist: disk full"},
	}

	tally := NewTally(results)

	assert.Equal(t, 4, tally.Total)
	assert.Equal(t, 1, tally.Succeeded)
	assert.Equal(t, 3, tally.Failed)
	assert.Equal(t, tally.Total, tally.Succeeded+tally.Failed)
	assert.Equal(t, 2, tally.Outcomes[OutcomeSuccess])
	assert.Equal(t, "a", tally.Successes[0].Task.URL)
}

func TestNewTallyEmpty(t *testing.T) {
	tally := NewTally(nil)

	assert.Zero(t, tally.Total)
	assert.NotNil(t, tally.Successes)
	assert.NotNil(t, tally.Failures)
}

func TestTaskResultReason(t *testing.T) {
	tests := []struct {
		name   string
		result TaskResult
		want   string
	}{
		{"Success", TaskResult{Outcome: OutcomeSuccess}, ""},
		{"No reviews", TaskResult{Outcome: OutcomeNoReviews}, "no reviews"},
		{"Explicit error", TaskResult{Outcome: OutcomeSessionFailure, Error: "launch failed"}, "launch failed"},
		{"Bare outcome", TaskResult{Outcome: OutcomeExtractorFailure}, "extractor_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Reason())
		})
	}
}
