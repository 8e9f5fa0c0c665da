package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.StrategyName != "" {
		sb.WriteString(fmt.Sprintf("Strategy: %s\n\n", r.StrategyName))
	}

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.RunID))
	sb.WriteString(fmt.Sprintf("| Algorithm | %s |\n", r.Algorithm))
	sb.WriteString(fmt.Sprintf("| Objectives | %s |\n", strings.Join(r.Objectives, ", ")))
	sb.WriteString(fmt.Sprintf("| Iterations | %d / %d |\n", r.TotalIterations, r.MaxIterations))
	sb.WriteString(fmt.Sprintf("| Total Time | %s |\n", r.TotalTime.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("| Cache Hit Rate | %.1f%% |\n", r.CacheHitRate*100))
	sb.WriteString("\n")

	// Robustness
	sb.WriteString("## Robustness\n\n")
	if r.Robustness.Verdict == VerdictNoData {
		sb.WriteString("No Pareto-optimal solutions; every candidate failed.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Verdict: %s** (mean frontier degradation %.2f%%, worst %.2f%%)\n\n",
			r.Robustness.Verdict, r.Robustness.MeanDegradationPct, r.Robustness.WorstDegradationPct))
	}

	// Pareto Frontier
	sb.WriteString("## Pareto Frontier\n\n")
	writeSolutionTable(&sb, r.Frontier, r.Objectives, "No Pareto-optimal solutions.\n")

	// All Solutions
	sb.WriteString("## All Solutions\n\n")
	writeSolutionTable(&sb, r.Solutions, r.Objectives, "No solutions evaluated.\n")

	// Errors
	if len(r.Errors) > 0 {
		sb.WriteString("## Evaluation Errors\n\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeSolutionTable writes one markdown table with an in/out column pair
// per objective.
func writeSolutionTable(sb *strings.Builder, rows []SolutionRow, objectives []string, emptyMsg string) {
	if len(rows) == 0 {
		sb.WriteString(emptyMsg)
		sb.WriteString("\n")
		return
	}

	sb.WriteString("| ID |")
	for _, obj := range objectives {
		sb.WriteString(fmt.Sprintf(" %s (in) | %s (out) |", obj, obj))
	}
	sb.WriteString(" Degradation% | Pareto | Parameters |\n")

	sb.WriteString("|----|")
	for range objectives {
		sb.WriteString("------|------|")
	}
	sb.WriteString("------|--------|------------|\n")

	for _, row := range rows {
		if row.Failed {
			sb.WriteString(fmt.Sprintf("| %s |", row.ID))
			for range objectives {
				sb.WriteString(" failed | failed |")
			}
			sb.WriteString(fmt.Sprintf(" %.2f | no | %s |\n", row.DegradationPct, row.FailureReason))
			continue
		}

		sb.WriteString(fmt.Sprintf("| %s |", row.ID))
		for _, obj := range objectives {
			sb.WriteString(fmt.Sprintf(" %.4f | %.4f |", row.InSample[obj], row.OutOfSample[obj]))
		}
		pareto := "no"
		if row.IsParetoOptimal {
			pareto = "yes"
		}
		sb.WriteString(fmt.Sprintf(" %.2f | %s | %s |\n", row.DegradationPct, pareto, row.Parameters))
	}
	sb.WriteString("\n")
}
