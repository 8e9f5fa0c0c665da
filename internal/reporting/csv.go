package reporting

import (
	"fmt"
	"strings"

	"defi-strategy-lab/internal/domain"
)

// RenderSolutionsCSV renders solution rows as a CSV string with one in/out
// column pair per objective. The parameters column uses "; " separators and
// never contains commas.
func RenderSolutionsCSV(rows []SolutionRow, objectives []string) string {
	var sb strings.Builder

	// Header
	sb.WriteString("solution_id")
	for _, obj := range objectives {
		sb.WriteString(fmt.Sprintf(",%s_in,%s_out", obj, obj))
	}
	sb.WriteString(",degradation_pct,is_pareto,failed,failure_reason,parameters\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(row.ID)
		for _, obj := range objectives {
			sb.WriteString(fmt.Sprintf(",%.6f,%.6f", row.InSample[obj], row.OutOfSample[obj]))
		}
		sb.WriteString(fmt.Sprintf(",%.6f,%t,%t,%s,%s\n",
			row.DegradationPct,
			row.IsParetoOptimal,
			row.Failed,
			csvEscape(row.FailureReason),
			csvEscape(row.Parameters),
		))
	}

	return sb.String()
}

// RenderEquityCSV renders an equity curve as a CSV string.
func RenderEquityCSV(points []domain.EquityCurvePoint) string {
	var sb strings.Builder

	sb.WriteString("timestamp_ms,equity_usd\n")
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%d,%.6f\n", p.TimestampMs, p.EquityUsd))
	}

	return sb.String()
}

// RenderTradesCSV renders a trade log as a CSV string, one row per executed
// trade in log order.
func RenderTradesCSV(trades []domain.Trade) string {
	var sb strings.Builder

	sb.WriteString("id,timestamp_ms,kind,input_token,output_token,input_amount,output_amount,price,slippage_pct,fees_usd,gas_cost_usd\n")
	for _, tr := range trades {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%s,%s,%.8f,%.8f,%.8f,%.6f,%.6f,%.6f\n",
			tr.ID,
			tr.TimestampMs,
			tr.Kind,
			tr.InputToken,
			tr.OutputToken,
			tr.InputAmount,
			tr.OutputAmount,
			tr.Price,
			tr.SlippagePct,
			tr.FeesUsd,
			tr.GasCostUsd,
		))
	}

	return sb.String()
}

// csvEscape replaces commas so free-text fields cannot split a row. Full
// RFC 4180 quoting is not needed for the values this package writes.
func csvEscape(s string) string {
	s = strings.ReplaceAll(s, ",", ";")
	return strings.ReplaceAll(s, "\n", " ")
}
