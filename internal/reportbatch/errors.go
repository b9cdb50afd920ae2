package reportbatch

import (
	"fmt"
	"log/slog"
	"strings"
)

// ConfigError is a malformed report declaration or request option, it is
// always caught before anything is sent over the network.
type ConfigError struct {
	Report string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	var out strings.Builder
	out.WriteString("config")
	if e.Report != "" {
		out.WriteString(fmt.Sprintf(": report %q", e.Report))
	}
	if e.Field != "" {
		out.WriteString(fmt.Sprintf(": %s", e.Field))
	}
	out.WriteString(": ")
	out.WriteString(e.Reason)
	return out.String()
}

// RemoteCallError is a failed call to the reporting service on behalf of a report.
// Transient errors have been retried before they are surfaced.
type RemoteCallError struct {
	Report     string
	StatusCode int
	Status     string
	Transient  bool
	Err        error
}

func (e *RemoteCallError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("report %q: %s remote error: %s", e.Report, kind, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

func (e *RemoteCallError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("report", e.Report),
		slog.Bool("transient", e.Transient),
	}
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status_code", e.StatusCode))
	}
	if e.Status != "" {
		attrs = append(attrs, slog.String("status", e.Status))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// DataFormatError is a cell that could not be coerced to its column's type,
// the row containing it is dropped from the table.
type DataFormatError struct {
	Report string
	// Row is the index of the row in the response.
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf(
		"report %q: row %d: column %q: cannot coerce %q: %s",
		e.Report, e.Row, e.Column, e.Value, e.Err,
	)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

func (e *DataFormatError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("report", e.Report),
		slog.Int("row", e.Row),
	}
	if e.Column != "" {
		attrs = append(attrs, slog.String("column", e.Column), slog.String("value", e.Value))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// ReportOutcome is the result of a single report within a batch, exactly one
// of Table and Err is set.
type ReportOutcome struct {
	Report string
	Table  *ReportTable
	Err    error
}

// PartialBatchError is returned when at least one report in a batch failed.
// Outcomes lists every report of the batch in configuration order, the
// successful ones included.
type PartialBatchError struct {
	Outcomes []ReportOutcome
}

// Failures returns the failure reason of every report that failed, by name.
func (e *PartialBatchError) Failures() map[string]error {
	out := map[string]error{}
	for _, o := range e.Outcomes {
		if o.Err != nil {
			out[o.Report] = o.Err
		}
	}
	return out
}

// AllFailed is true when no report in the batch produced a table.
func (e *PartialBatchError) AllFailed() bool {
	for _, o := range e.Outcomes {
		if o.Err == nil {
			return false
		}
	}
	return true
}

func (e *PartialBatchError) Error() string {
	failed := []string{}
	for _, o := range e.Outcomes {
		if o.Err != nil {
			failed = append(failed, o.Report)
		}
	}
	return fmt.Sprintf(
		"%d of %d reports failed: %s",
		len(failed), len(e.Outcomes), strings.Join(failed, ", "),
	)
}
