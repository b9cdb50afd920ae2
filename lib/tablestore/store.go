package tablestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/tablestore")

// Store writes tables into a sql database, one sql table per report.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createStatement(table Table) string {
	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), c.Type.sqlType())
	}
	return fmt.Sprintf(
		"create table if not exists %s (%s)",
		quoteIdent(table.Name), strings.Join(columns, ", "),
	)
}

func insertStatement(table Table) string {
	columns := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = quoteIdent(c.Name)
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"insert into %s (%s) values (%s)",
		quoteIdent(table.Name), strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}

type WriteOptions struct {
	// Replace drops any existing rows of the table before writing.
	Replace bool
}

// Write creates the table if it does not exist and inserts every row in a
// single transaction.
func (s Store) Write(ctx context.Context, table Table, opts WriteOptions) error {
	ctx, span := tracer.Start(ctx, "Write")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", table.Name),
		attribute.Int("rows", len(table.Rows)),
	)

	if table.Name == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", table.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	if opts.Replace {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("drop table if exists %s", quoteIdent(table.Name)))
		if err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, createStatement(table))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create table")
		return fmt.Errorf("create table %q: %w", table.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(table))
	if err != nil {
		return fmt.Errorf("prepare insert into %q: %w", table.Name, err)
	}
	defer stmt.Close()

	args := make([]any, len(table.Columns))
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("table %q: row %d has %d cells for %d columns", table.Name, i, len(row), len(table.Columns))
		}
		for j, cell := range row {
			args[j] = table.Columns[j].sqlValue(cell)
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert row")
			return fmt.Errorf("insert into %q: row %d: %w", table.Name, i, err)
		}
	}

	return tx.Commit()
}

// WriteAll writes every table, stopping at the first error.
func (s Store) WriteAll(ctx context.Context, tables []Table, opts WriteOptions) error {
	for _, t := range tables {
		err := s.Write(ctx, t, opts)
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of rows in a table.
func (s Store) Count(ctx context.Context, name string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("select count(*) from %s", quoteIdent(name))).Scan(&count)
	return count, err
}

// Read returns every row of a table as written, in insertion order.
func (s Store) Read(ctx context.Context, name string) ([]string, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("select * from %s order by rowid", quoteIdent(name)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		cells := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range cells {
			pointers[i] = &cells[i]
		}
		err := rows.Scan(pointers...)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, cells)
	}
	return columns, out, rows.Err()
}
