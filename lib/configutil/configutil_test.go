package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	PropertyId  string `json:"property_id" envconfig:"PROPERTY_ID"`
	Concurrency int    `json:"concurrency" envconfig:"CONCURRENCY"`
	Reports     string `json:"reports" envconfig:"REPORTS"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestLocalPath(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "config.json5", expected: "config.local.json5"},
		{input: "/etc/ga4/extract.json5", expected: "/etc/ga4/extract.local.json5"},
		{input: "noext", expected: "noext.local"},
	}
	for _, row := range table {
		require.Equal(t, row.expected, localPath(row.input))
	}
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "extract.json5"), `{
		// base config
		property_id: "123456",
		concurrency: 2,
		reports: "reports.yaml",
	}`)
	writeFile(t, filepath.Join(dir, "extract.local.json5"), `{ property_id: "999" }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "extract.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{
		PropertyId:  "999",
		Concurrency: 2,
		Reports:     "reports.yaml",
	}, cfg)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{ property_id: "42" }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, "42", cfg.PropertyId)
}

func TestLoadAppliesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extract.json5")
	writeFile(t, path, `{ property_id: "123", concurrency: 1 }`)

	t.Setenv("GA4TEST_CONCURRENCY", "8")

	cfg, err := Load[testConfig](path, "GA4TEST")
	require.NoError(t, err)
	require.Equal(t, "123", cfg.PropertyId)
	require.Equal(t, 8, cfg.Concurrency)

	t.Setenv("GA4TEST_PROPERTY_ID", "777")
	cfg, err = Load[testConfig](filepath.Join(dir, "absent.json5"), "GA4TEST")
	require.NoError(t, err)
	require.Equal(t, "777", cfg.PropertyId)
}
