package reportbatch

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func logged(t *testing.T, err error) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Warn("warning", "err", err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	group, ok := record["err"].(map[string]any)
	require.True(t, ok, buf.String())
	return group
}

func TestErrorLogValues(t *testing.T) {
	remote := classify("daily", errThrottled)
	require.Equal(t, map[string]any{
		"report":      "daily",
		"transient":   true,
		"status_code": float64(429),
		"status":      "RESOURCE_EXHAUSTED",
		"cause":       errThrottled.Error(),
	}, logged(t, remote))

	_, parseErr := strconv.ParseInt("n/a", 10, 64)
	dropped := &DataFormatError{Report: "daily", Row: 3, Column: "activeUsers", Value: "n/a", Err: parseErr}
	require.Equal(t, map[string]any{
		"report": "daily",
		"row":    float64(3),
		"column": "activeUsers",
		"value":  "n/a",
		"cause":  parseErr.Error(),
	}, logged(t, dropped))
}

func TestPartialBatchError(t *testing.T) {
	table := &ReportTable{Name: "B"}
	err := &PartialBatchError{Outcomes: []ReportOutcome{
		{Report: "A", Err: classify("A", errRejected)},
		{Report: "B", Table: table},
		{Report: "C", Err: classify("C", errThrottled)},
	}}

	require.Equal(t, "2 of 3 reports failed: A, C", err.Error())
	require.False(t, err.AllFailed())
	require.Len(t, err.Failures(), 2)
	require.ErrorIs(t, err.Failures()["A"], errRejected)
}
