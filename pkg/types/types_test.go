package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepStatusCompleted(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   bool
	}{
		{StepSuccess, true},
		{StepRetried, true},
		{StepSkipped, true},
		{StepFailed, false},
		{StepStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Completed())
		})
	}
}

func TestStepResultRetries(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     int
	}{
		{"skipped step never ran", 0, 0},
		{"single attempt", 1, 0},
		{"two attempts", 2, 1},
		{"exhausted budget", 5, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := StepResult{Attempts: tt.attempts}
			assert.Equal(t, tt.want, r.Retries())
		})
	}
}

func TestExecutionSummaryDuration(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s := ExecutionSummary{
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
	}
	assert.Equal(t, 95*time.Second, s.Duration())
}

func TestExecutionSummaryStep(t *testing.T) {
	s := ExecutionSummary{
		Steps: []StepResult{
			{Step: StepLogin, Status: StepSuccess},
			{Step: StepCheckin, Status: StepFailed},
			{Step: StepReply, Status: StepSuccess},
			{Step: "reply-2", Status: StepFailed},
		},
	}

	got, ok := s.Step(StepCheckin)
	assert.True(t, ok)
	assert.Equal(t, StepFailed, got.Status)

	got, ok = s.Step("reply-2")
	assert.True(t, ok)
	assert.Equal(t, StepFailed, got.Status)

	_, ok = s.Step(StepChallenge)
	assert.False(t, ok)
}
