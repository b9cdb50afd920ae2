package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ga4-extract/internal/chrono"
	"ga4-extract/internal/reportbatch"
	"ga4-extract/lib/tablestore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var clock chrono.TimeAPI = chrono.NewStandardTime()

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	// column names are case sensitive
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(out)
	return t
}

// storeTable converts a report table into its stored form, integer and
// float metrics are told apart by the first row.
func storeTable(report *reportbatch.ReportTable) tablestore.Table {
	columns := make([]tablestore.Column, len(report.Columns))
	for i, name := range report.Columns {
		columns[i] = tablestore.Column{Name: name, Type: tablestore.ColumnText}
		if report.Kinds[i] != reportbatch.ColumnNumeric {
			continue
		}
		columns[i].Type = tablestore.ColumnReal
		for _, row := range report.Rows {
			if _, ok := row[i].(int64); ok {
				columns[i].Type = tablestore.ColumnInteger
			}
			break
		}
	}
	return tablestore.Table{
		Name:    report.Name,
		Columns: columns,
		Rows:    report.Rows,
	}
}

func storeTables(batch reportbatch.Batch, output OutputConfig, now time.Time) ([]tablestore.Table, error) {
	loc, err := output.location()
	if err != nil {
		return nil, err
	}
	out := make([]tablestore.Table, 0, len(batch.Names))
	for _, report := range batch.Ordered() {
		t := storeTable(report)
		if !output.DateText {
			t = t.WithDates(loc)
		}
		if output.InsertInfo {
			t = t.WithInsertInfo(now)
		}
		out = append(out, t)
	}
	return out, nil
}

func renderTable(out io.Writer, t tablestore.Table) {
	w := newTable(out)
	w.SetTitle(t.Name)

	header := table.Row{}
	configs := []table.ColumnConfig{}
	for i, c := range t.Columns {
		header = append(header, c.Name)
		if c.Type == tablestore.ColumnInteger || c.Type == tablestore.ColumnReal {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	w.AppendHeader(header)
	w.SetColumnConfigs(configs)

	for _, row := range t.Rows {
		cells := make(table.Row, len(row))
		for i, cell := range row {
			cells[i] = t.Columns[i].Format(cell)
		}
		w.AppendRow(cells)
	}
	w.AppendFooter(table.Row{fmt.Sprintf("%d rows", len(t.Rows))})
	w.Render()
}

// renderFailures lists every report that failed and why.
func renderFailures(out io.Writer, outcomes []reportbatch.ReportOutcome) {
	w := newTable(out)
	w.SetTitle("failed reports")
	w.AppendHeader(table.Row{"report", "kind", "status", "reason"})
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		kind, status := describeFailure(o.Err)
		w.AppendRow(table.Row{o.Report, kind, status, o.Err.Error()})
	}
	w.Render()
}

func describeFailure(err error) (kind string, status string) {
	var callErr *reportbatch.RemoteCallError
	if errors.As(err, &callErr) {
		kind = "permanent"
		if callErr.Transient {
			kind = "transient"
		}
		if callErr.StatusCode != 0 {
			status = fmt.Sprintf("%d %s", callErr.StatusCode, callErr.Status)
		}
		return "remote (" + kind + ")", status
	}
	return "response", ""
}

func renderDropped(out io.Writer, batch reportbatch.Batch) {
	dropped := 0
	for _, t := range batch.Ordered() {
		dropped += len(t.Dropped)
	}
	if dropped == 0 {
		return
	}

	w := newTable(out)
	w.SetTitle("dropped rows")
	w.AppendHeader(table.Row{"report", "row", "column", "value", "reason"})
	for _, t := range batch.Ordered() {
		for _, d := range t.Dropped {
			w.AppendRow(table.Row{d.Report, d.Row, d.Column, d.Value, d.Err.Error()})
		}
	}
	w.Render()
}

func renderReports(out io.Writer, cfg reportbatch.BatchConfig) {
	w := newTable(out)
	w.AppendHeader(table.Row{"report", "dimensions", "metrics", "columns"})
	for _, r := range cfg.Reports() {
		w.AppendRow(table.Row{r.Name, len(r.Dimensions), len(r.Metrics), fmt.Sprint(r.Columns())})
	}
	w.Render()
}

func writeBatch(ctx context.Context, out io.Writer, config Config, batch reportbatch.Batch) error {
	tables, err := storeTables(batch, config.Output, clock.Now())
	if err != nil {
		return err
	}

	switch config.Output.Format {
	case formatCsv:
		paths, err := tablestore.WriteCSVFiles(config.Output.Path, tables)
		for _, p := range paths {
			fmt.Fprintln(out, "wrote", p)
		}
		return err
	case formatSqlite:
		db, err := config.database().OpenDB()
		if err != nil {
			return err
		}
		defer db.Close()
		err = tablestore.NewStore(db).WriteAll(ctx, tables, tablestore.WriteOptions{Replace: config.Output.Replace})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d tables\n", len(tables))
		return nil
	}

	for _, t := range tables {
		renderTable(out, t)
	}
	return nil
}
