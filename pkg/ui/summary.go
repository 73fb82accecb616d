// Package ui renders the end-of-run summary block for the terminal.
// It is presentation only; the notification report is rendered
// separately so terminal styling never leaks into Telegram messages.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lunarbay/rollcall/pkg/types"
)

var (
	mintGreen   = lipgloss.Color("#A8E6CF") // success states
	amberGold   = lipgloss.Color("#FFD3B6") // partial failure
	salmonPink  = lipgloss.Color("#FFB3BA") // failure states
	mutedGray   = lipgloss.Color("#6B7280") // secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // primary text
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	partialStyle = lipgloss.NewStyle().
			Foreground(amberGold).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	stepOkStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	stepSkipStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	stepFailStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	detailStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 2)
)

// RenderSummary renders the run outcome as a bordered terminal block.
func RenderSummary(summary types.ExecutionSummary) string {
	var lines []string

	lines = append(lines, titleStyle.Render("rollcall "+shortRunID(summary.RunID)))
	lines = append(lines, "")
	lines = append(lines, row("status", statusText(summary.Overall)))
	lines = append(lines, row("account", summary.Account))
	lines = append(lines, row("duration", summary.Duration().Round(time.Second).String()))
	if summary.TotalRetries > 0 {
		lines = append(lines, row("retries", fmt.Sprintf("%d", summary.TotalRetries)))
	}
	if summary.AbortReason != types.AbortNone {
		lines = append(lines, row("aborted", failureStyle.Render(string(summary.AbortReason))))
	}

	if len(summary.Steps) > 0 {
		lines = append(lines, "")
		for _, step := range summary.Steps {
			lines = append(lines, stepLine(step))
			if step.Error != "" {
				lines = append(lines, "    "+detailStyle.Render(step.Error))
			}
			if step.Warning != "" {
				lines = append(lines, "    "+detailStyle.Render("warning: "+step.Warning))
			}
		}
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-9s", label)), value)
}

func stepLine(step types.StepResult) string {
	var (
		glyph string
		style lipgloss.Style
	)
	switch step.Status {
	case types.StepSuccess, types.StepRetried:
		glyph, style = "✓", stepOkStyle
	case types.StepSkipped:
		glyph, style = "-", stepSkipStyle
	default:
		glyph, style = "✗", stepFailStyle
	}

	detail := string(step.Status)
	if step.Attempts > 1 {
		detail = fmt.Sprintf("%s (%d attempts)", detail, step.Attempts)
	}
	return fmt.Sprintf("  %s %-12s %s", style.Render(glyph), step.Step, labelStyle.Render(detail))
}

func statusText(overall types.OverallStatus) string {
	switch overall {
	case types.RunSuccess:
		return successStyle.Render("SUCCESS")
	case types.RunPartialFailure:
		return partialStyle.Render("PARTIAL FAILURE")
	default:
		return failureStyle.Render("FAILURE")
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
