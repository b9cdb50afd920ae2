package telemetry

import (
	"fmt"
	"log/slog"
)

// SlogAPI implements API using the log/slog package.
//
// Params that are already a slog.Attr keep their key, errors are logged
// under `err` (errors implementing slog.LogValuer expand into a group) and
// everything else is numbered by position.
type SlogAPI struct{}

func (SlogAPI) formatParams(out *[]any, params []any) {
	errs := 0
	for i, p := range params {
		switch v := p.(type) {
		case slog.Attr:
			*out = append(*out, v)
		case error:
			key := "err"
			if errs > 0 {
				key = fmt.Sprintf("err.%d", errs)
			}
			errs++
			*out = append(*out, slog.Any(key, v))
		default:
			*out = append(*out, fmt.Sprintf("params.%d", i), p)
		}
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Info("count", "id", id, "n", count)
}
