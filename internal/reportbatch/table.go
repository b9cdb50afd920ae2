package reportbatch

import (
	"errors"
	"fmt"
	"strconv"

	"ga4-extract/lib/platforms/analyticsdata"

	"github.com/antzucaro/matchr"
)

// ErrMissingColumn is returned by Reconstruct when the response lacks a
// declared dimension or metric.
var ErrMissingColumn = errors.New("declared column missing from response")

// ReportTable is the tabular result of one report. Columns are the declared
// dimensions followed by the declared metrics. Dimension cells are strings,
// integer metrics are int64 and every other metric is float64.
type ReportTable struct {
	Name    string
	Columns []string
	Kinds   []ColumnKind
	Rows    [][]any
	// Dropped holds one error per row that was left out of Rows.
	Dropped []*DataFormatError
}

// Len returns the number of rows.
func (t *ReportTable) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *ReportTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func closestHeader(name string, headers []Header) string {
	best := ""
	bestScore := 0.0
	for _, h := range headers {
		score := matchr.JaroWinkler(name, h.Name, false)
		if score > bestScore {
			best = h.Name
			bestScore = score
		}
	}
	return best
}

func missingColumn(report, column string, headers []Header) error {
	suggestion := closestHeader(column, headers)
	if suggestion == "" {
		return fmt.Errorf("report %q: %w: %q", report, ErrMissingColumn, column)
	}
	return fmt.Errorf(
		"report %q: %w: %q (closest returned column is %q)",
		report, ErrMissingColumn, column, suggestion,
	)
}

type columnSource struct {
	index  int
	metric bool
	header Header
}

func coerceMetric(header Header, value string) (any, error) {
	switch analyticsdata.MetricType(header.MetricType) {
	case analyticsdata.MetricTypeInteger:
		return strconv.ParseInt(value, 10, 64)
	case "", analyticsdata.MetricTypeUnspecified:
		// untyped, prefer the integer form when it is one
		i, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return i, nil
		}
		return strconv.ParseFloat(value, 64)
	}
	return strconv.ParseFloat(value, 64)
}

// Reconstruct lays out the response in the declared column order, matching
// columns by name. A row with a metric that is not a number is dropped and
// recorded in Dropped.
func Reconstruct(spec ReportSpec, res RemoteResponse) (*ReportTable, error) {
	byName := make(map[string]int, len(res.Headers))
	for i, h := range res.Headers {
		byName[h.Name] = i
	}

	columns := spec.Columns()
	sources := make([]columnSource, len(columns))
	kinds := make([]ColumnKind, len(columns))
	for i, name := range columns {
		idx, ok := byName[name]
		if !ok {
			return nil, missingColumn(spec.Name, name, res.Headers)
		}
		metric := i >= len(spec.Dimensions)
		sources[i] = columnSource{index: idx, metric: metric, header: res.Headers[idx]}
		kinds[i] = ColumnString
		if metric {
			kinds[i] = ColumnNumeric
		}
	}

	table := &ReportTable{
		Name:    spec.Name,
		Columns: columns,
		Kinds:   kinds,
		Rows:    make([][]any, 0, len(res.Rows)),
	}

rows:
	for r, row := range res.Rows {
		if len(row) != len(res.Headers) {
			table.Dropped = append(table.Dropped, &DataFormatError{
				Report: spec.Name,
				Row:    r,
				Err:    fmt.Errorf("row has %d cells for %d columns", len(row), len(res.Headers)),
			})
			continue
		}

		out := make([]any, len(sources))
		for i, src := range sources {
			value := row[src.index]
			if !src.metric {
				out[i] = value
				continue
			}
			coerced, err := coerceMetric(src.header, value)
			if err != nil {
				table.Dropped = append(table.Dropped, &DataFormatError{
					Report: spec.Name,
					Row:    r,
					Column: columns[i],
					Value:  value,
					Err:    err,
				})
				continue rows
			}
			out[i] = coerced
		}
		table.Rows = append(table.Rows, out)
	}

	return table, nil
}
