package commands

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ga4-extract/internal/reportbatch"
	"ga4-extract/lib/platforms/analyticsdata"
	"ga4-extract/lib/tablestore"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ga4-extract.json5", `{property: "1", output: {format: "csv", path: "out"}}`)
	writeFile(t, dir, "ga4-extract.local.json5", `{property: "2"}`)
	t.Setenv("GA4_CONCURRENCY", "4")
	t.Setenv("GA4_OUTPUT_INSERT_INFO", "true")
	t.Setenv("GA4_DATABASE_URL", "libsql://reports.example.turso.io")

	config, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "2", config.Property)
	require.Equal(t, 4, config.Concurrency)
	require.Equal(t, "csv", config.Output.Format)
	require.Equal(t, "out", config.Output.Path)
	require.True(t, config.Output.InsertInfo)
	require.Equal(t, "libsql://reports.example.turso.io", config.Database.Url)
	require.Nil(t, config.MaxRetries)

	config, err = loadConfig(filepath.Join(dir, "missing.json5"))
	require.NoError(t, err)
	require.Equal(t, formatTable, config.Output.Format)
}

func TestGeneratorOptions(t *testing.T) {
	opts, err := Config{}.generatorOptions()
	require.NoError(t, err)
	require.Equal(t, reportbatch.DefaultRetryPolicy, opts.Executor.Retry)
	require.Equal(t, reportbatch.DateRange{}, opts.Request.DateRange)

	none := uint64(0)
	opts, err = Config{
		MaxRetries:       &none,
		RetryInterval:    "250ms",
		MaxRetryInterval: "3s",
		StartDate:        "28daysAgo",
		EndDate:          "yesterday",
		PageSize:         1000,
		BatchSize:        3,
	}.generatorOptions()
	require.NoError(t, err)
	require.Equal(t, reportbatch.RetryPolicy{
		MaxRetries:      reportbatch.NoRetries,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     3 * time.Second,
	}, opts.Executor.Retry)
	require.Equal(t, reportbatch.DateRange{StartDate: "28daysAgo", EndDate: "yesterday"}, opts.Request.DateRange)
	require.Equal(t, int64(1000), opts.Request.Limit)
	require.Equal(t, 3, opts.Executor.BatchSize)

	_, err = Config{RetryInterval: "soon"}.generatorOptions()
	require.True(t, reportbatch.IsConfigError(err))
}

func TestClientOptions(t *testing.T) {
	ctx := context.Background()
	t.Setenv(applicationCredentialsEnv, "")

	_, err := Config{}.clientOptions(ctx)
	require.ErrorContains(t, err, "no credentials")

	accessToken := func(opts analyticsdata.ClientOptions) string {
		t.Helper()
		token, err := opts.Credentials.Token()
		require.NoError(t, err)
		return token.AccessToken
	}

	opts, err := Config{AccessToken: "ya29.inline", RequestsPerSecond: 2}.clientOptions(ctx)
	require.NoError(t, err)
	require.Equal(t, "ya29.inline", accessToken(opts))
	require.Equal(t, 2.0, opts.RequestsPerSecond)

	dir := t.TempDir()
	path := writeFile(t, dir, "token.json", `{"access_token": "ya29.file", "token_type": "Bearer", "expires_in": 3599}`)
	opts, err = Config{TokenFile: path}.clientOptions(ctx)
	require.NoError(t, err)
	require.Equal(t, "ya29.file", accessToken(opts))

	path = writeFile(t, dir, "credentials.txt", "ya29.credentials")
	opts, err = Config{CredentialsFile: path}.clientOptions(ctx)
	require.NoError(t, err)
	require.Equal(t, "ya29.credentials", accessToken(opts))

	path = writeFile(t, dir, "adc.txt", "ya29.adc")
	t.Setenv(applicationCredentialsEnv, path)
	opts, err = Config{}.clientOptions(ctx)
	require.NoError(t, err)
	require.Equal(t, "ya29.adc", accessToken(opts))

	path = writeFile(t, dir, "unknown.json", `{"type": "impersonated_nothing"}`)
	_, err = Config{CredentialsFile: path}.clientOptions(ctx)
	require.ErrorContains(t, err, "unknown credential type")
}

func TestDatabase(t *testing.T) {
	config := Config{Output: OutputConfig{Path: "out.db"}}
	require.Equal(t, tablestore.DatabaseConfig{File: "out.db"}, config.database())

	config.Database = tablestore.DatabaseConfig{Url: "libsql://x.turso.io", AuthToken: "t"}
	require.Equal(t, config.Database, config.database())
}

func TestStoreTable(t *testing.T) {
	report := &reportbatch.ReportTable{
		Name:    "engagement",
		Columns: []string{"date", "sessions", "engagementRate"},
		Kinds:   []reportbatch.ColumnKind{reportbatch.ColumnString, reportbatch.ColumnNumeric, reportbatch.ColumnNumeric},
		Rows:    [][]any{{"20240401", int64(5), 0.5}},
	}

	out := storeTable(report)
	require.Equal(t, []tablestore.Column{
		{Name: "date", Type: tablestore.ColumnText},
		{Name: "sessions", Type: tablestore.ColumnInteger},
		{Name: "engagementRate", Type: tablestore.ColumnReal},
	}, out.Columns)
	require.Equal(t, report.Rows, out.Rows)

	empty := storeTable(&reportbatch.ReportTable{
		Name:    "empty",
		Columns: []string{"sessions"},
		Kinds:   []reportbatch.ColumnKind{reportbatch.ColumnNumeric},
	})
	require.Equal(t, tablestore.ColumnReal, empty.Columns[0].Type)
}

func TestStoreTables(t *testing.T) {
	batch := reportbatch.Batch{
		Names: []string{"daily"},
		Tables: map[string]*reportbatch.ReportTable{
			"daily": {
				Name:    "daily",
				Columns: []string{"date", "sessions"},
				Kinds:   []reportbatch.ColumnKind{reportbatch.ColumnString, reportbatch.ColumnNumeric},
				Rows:    [][]any{{"20240401", int64(5)}},
			},
		},
	}
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	tables, err := storeTables(batch, OutputConfig{}, now)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	require.Equal(t, tablestore.ColumnDate, tables[0].Columns[0].Type)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), tables[0].Rows[0][0])

	tables, err = storeTables(batch, OutputConfig{DateText: true, InsertInfo: true}, now)
	require.NoError(t, err)
	require.Equal(t, []string{"date", "sessions", "uuid", "emitted_at"}, tables[0].ColumnNames())
	require.Equal(t, "20240401", tables[0].Rows[0][0])
	require.Equal(t, now, tables[0].Rows[0][3])

	_, err = storeTables(batch, OutputConfig{TimeZone: "Not/AZone"}, now)
	require.True(t, reportbatch.IsConfigError(err))
	err = Config{Output: OutputConfig{Format: formatTable, TimeZone: "Not/AZone"}}.validateOutput()
	require.ErrorContains(t, err, "output.time_zone")

	loc, err := OutputConfig{}.location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}
