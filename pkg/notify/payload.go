package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/lunarbay/rollcall/pkg/types"
)

// maxDetailRunes bounds per-step error text in the rendered report.
const maxDetailRunes = 200

// markdownEscaper escapes every character the Telegram MarkdownV2
// parser reserves outside code spans.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// codeEscaper escapes the two characters code spans reserve.
var codeEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`")

// EscapeMarkdownV2 escapes text for use outside code spans.
func EscapeMarkdownV2(text string) string {
	return markdownEscaper.Replace(text)
}

// code wraps a value in a MarkdownV2 code span.
func code(v string) string {
	return "`" + codeEscaper.Replace(v) + "`"
}

// RenderSummary renders an execution summary as a MarkdownV2 report.
func RenderSummary(summary types.ExecutionSummary) string {
	var b strings.Builder

	b.WriteString("*Daily check\\-in report*\n\n")
	fmt.Fprintf(&b, "*Account:* %s\n", code(summary.Account))
	fmt.Fprintf(&b, "*Date:* %s\n", code(summary.StartedAt.Format("2006-01-02")))
	fmt.Fprintf(&b, "*Window:* %s\n", code(summary.StartedAt.Format("15:04:05")+" to "+summary.FinishedAt.Format("15:04:05")))
	fmt.Fprintf(&b, "*Duration:* %s\n", code(summary.Duration().Round(time.Second).String()))
	fmt.Fprintf(&b, "*Status:* %s\n", overallLine(summary.Overall))
	fmt.Fprintf(&b, "*Steps:* %s\n", code(stepTally(summary.Steps)))
	if summary.TotalRetries > 0 {
		fmt.Fprintf(&b, "*Retries:* %s\n", code(fmt.Sprintf("%d", summary.TotalRetries)))
	}
	if summary.AbortReason != types.AbortNone {
		fmt.Fprintf(&b, "*Aborted:* %s\n", code(string(summary.AbortReason)))
	}

	b.WriteString("\n*Step details:*\n")
	for _, step := range summary.Steps {
		writeStepLine(&b, step)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTest renders the notify-test message.
func RenderTest(now time.Time) string {
	var b strings.Builder
	b.WriteString("*Notification test*\n\n")
	b.WriteString("Delivery is working\\.\n")
	fmt.Fprintf(&b, "*Time:* %s", code(now.Format("2006-01-02 15:04:05")))
	return b.String()
}

func writeStepLine(b *strings.Builder, step types.StepResult) {
	status := string(step.Status)
	if step.Attempts > 1 {
		status = fmt.Sprintf("%s, %d attempts", status, step.Attempts)
	}
	fmt.Fprintf(b, "%s *%s:* %s\n", statusEmoji(step.Status), EscapeMarkdownV2(step.Step), code(status))

	if step.Error != "" {
		fmt.Fprintf(b, "  _%s_\n", EscapeMarkdownV2(clipDetail(step.Error)))
	}
	if step.Warning != "" {
		fmt.Fprintf(b, "  ⚠️ _%s_\n", EscapeMarkdownV2(clipDetail(step.Warning)))
	}
}

func statusEmoji(status types.StepStatus) string {
	switch status {
	case types.StepSuccess, types.StepRetried:
		return "✅"
	case types.StepSkipped:
		return "➖"
	default:
		return "❌"
	}
}

func overallLine(overall types.OverallStatus) string {
	switch overall {
	case types.RunSuccess:
		return "✅ *SUCCESS*"
	case types.RunPartialFailure:
		return "⚠️ *PARTIAL FAILURE*"
	default:
		return "❌ *FAILURE*"
	}
}

// stepTally counts completed steps against the total.
func stepTally(steps []types.StepResult) string {
	ok := 0
	for _, s := range steps {
		if s.Status.Completed() {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d ok", ok, len(steps))
}

// clipDetail bounds detail text for the report.
func clipDetail(text string) string {
	runes := []rune(text)
	if len(runes) <= maxDetailRunes {
		return text
	}
	return string(runes[:maxDetailRunes]) + "…"
}
