package tablestore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSV writes the table with a header row.
func WriteCSV(w io.Writer, table Table) error {
	out := csv.NewWriter(w)
	err := out.Write(table.ColumnNames())
	if err != nil {
		return err
	}

	record := make([]string, len(table.Columns))
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return fmt.Errorf("table %q: row %d has %d cells for %d columns", table.Name, i, len(row), len(table.Columns))
		}
		for j, cell := range row {
			record[j] = table.Columns[j].Format(cell)
		}
		err = out.Write(record)
		if err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

// WriteCSVFiles writes each table to `<dir>/<name>.csv` and returns the paths written.
func WriteCSVFiles(dir string, tables []Table) ([]string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, t := range tables {
		path := filepath.Join(dir, fmt.Sprintf("%s.csv", filepath.Base(t.Name)))
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = WriteCSV(f, t)
		closeErr := f.Close()
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		if closeErr != nil {
			return paths, closeErr
		}
		paths = append(paths, path)
	}
	return paths, nil
}
