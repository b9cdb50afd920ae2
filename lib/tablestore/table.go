package tablestore

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnInteger
	ColumnReal
	ColumnTimestamp
	ColumnDate
)

func (t ColumnType) sqlType() string {
	switch t {
	case ColumnInteger:
		return "INTEGER"
	case ColumnReal:
		return "REAL"
	}
	return "TEXT"
}

type Column struct {
	Name string
	Type ColumnType
}

// Table is a named set of rows, every row has one cell per column.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Format renders a cell of the column the way it is written to text outputs.
func (c Column) Format(value any) string {
	if v, ok := value.(time.Time); ok && c.Type == ColumnDate {
		return v.Format(time.DateOnly)
	}
	return FormatCell(value)
}

// sqlValue stores times as sortable text so every driver reads them back the same.
func (c Column) sqlValue(value any) any {
	if _, ok := value.(time.Time); ok {
		return c.Format(value)
	}
	return value
}

func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

const (
	InsertIdColumn  = "uuid"
	EmittedAtColumn = "emitted_at"
)

// WithInsertInfo returns a copy of the table with a random id on every row
// and the time the rows were emitted.
func (t Table) WithInsertInfo(emittedAt time.Time) Table {
	out := Table{
		Name: t.Name,
		Columns: append(
			append([]Column(nil), t.Columns...),
			Column{Name: InsertIdColumn, Type: ColumnText},
			Column{Name: EmittedAtColumn, Type: ColumnTimestamp},
		),
		Rows: make([][]any, len(t.Rows)),
	}
	for i, row := range t.Rows {
		id := uuid.New()
		decorated := make([]any, 0, len(row)+2)
		decorated = append(decorated, row...)
		decorated = append(decorated, hex.EncodeToString(id[:]), emittedAt)
		out.Rows[i] = decorated
	}
	return out
}

var dateDimensions = map[string]struct {
	layout string
	typ    ColumnType
}{
	"date":           {layout: "20060102", typ: ColumnDate},
	"dateHour":       {layout: "2006010215", typ: ColumnTimestamp},
	"dateHourMinute": {layout: "200601021504", typ: ColumnTimestamp},
}

func parseColumn(rows [][]any, col int, layout string, loc *time.Location) ([]time.Time, bool) {
	out := make([]time.Time, len(rows))
	for i, row := range rows {
		text, ok := row[col].(string)
		if !ok {
			return nil, false
		}
		parsed, err := time.ParseInLocation(layout, text, loc)
		if err != nil {
			return nil, false
		}
		out[i] = parsed
	}
	return out, true
}

// WithDates returns a copy of the table where the `date`, `dateHour` and
// `dateHourMinute` columns hold times in loc instead of the compact text the
// service returns. A column with any cell that is not a date, `(other)` for
// instance, stays text.
func (t Table) WithDates(loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}
	out := Table{
		Name:    t.Name,
		Columns: append([]Column(nil), t.Columns...),
		Rows:    t.Rows,
	}
	copied := false
	for i, c := range t.Columns {
		format, ok := dateDimensions[c.Name]
		if !ok || c.Type != ColumnText {
			continue
		}
		parsed, ok := parseColumn(t.Rows, i, format.layout, loc)
		if !ok {
			continue
		}
		if !copied {
			out.Rows = make([][]any, len(t.Rows))
			for r, row := range t.Rows {
				out.Rows[r] = append([]any(nil), row...)
			}
			copied = true
		}
		for r := range out.Rows {
			out.Rows[r][i] = parsed[r]
		}
		out.Columns[i].Type = format.typ
	}
	return out
}

// FormatCell renders a cell the way it is written to text outputs.
func FormatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(value)
}
