package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lunarbay/rollcall/pkg/types"
)

func TestRenderSummary(t *testing.T) {
	started := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	summary := types.ExecutionSummary{
		RunID:   "0f52a6c1-4a51-4ee1-9c85-1ff36a0f9744",
		Account: "walker",
		Overall: types.RunSuccess,
		Steps: []types.StepResult{
			{Step: "login", Status: types.StepRetried, Attempts: 2},
			{Step: "checkin", Status: types.StepSuccess, Attempts: 1},
			{Step: "reply", Status: types.StepSkipped},
		},
		StartedAt:    started,
		FinishedAt:   started.Add(97 * time.Second),
		TotalRetries: 1,
	}

	block := RenderSummary(summary)

	assert.Contains(t, block, "rollcall 0f52a6c1")
	assert.Contains(t, block, "SUCCESS")
	assert.Contains(t, block, "walker")
	assert.Contains(t, block, "1m37s")
	assert.Contains(t, block, "retried (2 attempts)")
	assert.Contains(t, block, "✓")
	assert.Contains(t, block, "╭")
}

func TestRenderSummaryFailureDetails(t *testing.T) {
	summary := types.ExecutionSummary{
		RunID:       "run-1",
		Account:     "walker",
		Overall:     types.RunFailure,
		AbortReason: types.AbortAuthFailed,
		Steps: []types.StepResult{
			{
				Step:     "login",
				Status:   types.StepFailed,
				Attempts: 3,
				Error:    "account locked, wait before retrying",
			},
			{
				Step:    "challenge",
				Status:  types.StepSuccess,
				Warning: "page question does not match",
			},
		},
	}

	block := RenderSummary(summary)

	assert.Contains(t, block, "FAILURE")
	assert.Contains(t, block, "auth-failed")
	assert.Contains(t, block, "account locked, wait before retrying")
	assert.Contains(t, block, "warning: page question does not match")
	assert.Contains(t, block, "✗")
}
