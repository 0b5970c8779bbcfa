package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/promptpilot/evaluator"
	"github.com/teilomillet/promptpilot/pipeline"
	"github.com/teilomillet/promptpilot/session"
)

func TestWriteCSV(t *testing.T) {
	variations := []session.PromptVariation{
		{
			ID:                 1,
			Prompt:             `Write a slogan for "Morning Star", please`,
			EvaluationCriteria: "upbeat",
			Model:              "gemini-1.5-flash",
			Result: pipeline.NewExecutionResult("Rise, shine,\nrepeat.", 1234*time.Millisecond, 17,
				&evaluator.QualityScore{Score: 4, Explanation: `Catchy, but "repeat" is odd.`}),
		},
		{ID: 2, Prompt: "", Model: "gemini-1.5-pro"},
		{ID: 3, Prompt: "Say hi", Model: "gemini-1.5-flash", Result: pipeline.NewExecutionResult("Hello", 0, 3, nil)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, variations))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "id,prompt,evaluation_criteria,model,result,quality_score,quality_explanation,length,latency_ms,tokens\n"))
	assert.Contains(t, out, `"Write a slogan for ""Morning Star"", please"`)
	assert.Contains(t, out, "\n2,\"\",\"\",\"gemini-1.5-pro\",\"\",,\"\",,,")

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{
		"1", `Write a slogan for "Morning Star", please`, "upbeat", "gemini-1.5-flash",
		"Rise, shine,\nrepeat.", "4", `Catchy, but "repeat" is odd.`, "20", "1234", "17",
	}, records[1])
	assert.Equal(t, []string{"3", "Say hi", "", "gemini-1.5-flash", "Hello", "", "", "5", "0", "3"}, records[3])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(header, ","), buf.String())
}
