// Package export writes a collection of prompt variations as CSV.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/teilomillet/promptpilot/session"
)

// Filename is the suggested name for a downloaded export.
const Filename = "prompt_pilot_results.csv"

// ContentType is sent with CSV downloads.
const ContentType = "text/csv; charset=utf-8"

var header = []string{
	"id",
	"prompt",
	"evaluation_criteria",
	"model",
	"result",
	"quality_score",
	"quality_explanation",
	"length",
	"latency_ms",
	"tokens",
}

// WriteCSV writes a header and one row per variation in order. Free-text
// fields are always quoted; numeric fields are empty when there is no
// result or no evaluation.
func WriteCSV(w io.Writer, variations []session.PromptVariation) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(header, ","))

	for _, v := range variations {
		fields := []string{
			strconv.Itoa(v.ID),
			quote(v.Prompt),
			quote(v.EvaluationCriteria),
			quote(v.Model),
		}
		if r := v.Result; r != nil {
			score, explanation := "", ""
			if q := r.Quality(); q != nil {
				score = strconv.Itoa(q.Score)
				explanation = q.Explanation
			}
			fields = append(fields,
				quote(r.Text()),
				score,
				quote(explanation),
				strconv.Itoa(r.Length()),
				strconv.FormatInt(r.LatencyMs(), 10),
				strconv.FormatInt(r.TokenUsage(), 10),
			)
		} else {
			fields = append(fields, quote(""), "", quote(""), "", "", "")
		}
		bw.WriteByte('\n')
		bw.WriteString(strings.Join(fields, ","))
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
