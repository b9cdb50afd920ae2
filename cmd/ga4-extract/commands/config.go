package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"ga4-extract/internal/reportbatch"
	"ga4-extract/lib/configutil"
	"ga4-extract/lib/platforms/analyticsdata"
	"ga4-extract/lib/tablestore"

	"golang.org/x/oauth2"
)

const envPrefix = "GA4"

const applicationCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

type OutputConfig struct {
	// Format is one of table, csv or sqlite.
	Format string `json:"format" envconfig:"FORMAT"`
	// Path is the csv directory, for sqlite it is the database file.
	Path       string `json:"path" envconfig:"PATH"`
	InsertInfo bool   `json:"insert_info" envconfig:"INSERT_INFO"`
	Replace    bool   `json:"replace" envconfig:"REPLACE"`
	// DateText keeps date dimensions in the service's YYYYMMDD form.
	DateText bool `json:"date_text" envconfig:"DATE_TEXT"`
	// TimeZone is the property's reporting time zone, defaults to UTC.
	TimeZone string `json:"time_zone" envconfig:"TIME_ZONE"`
}

func (o OutputConfig) location() (*time.Location, error) {
	if o.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(o.TimeZone)
	if err != nil {
		return nil, &reportbatch.ConfigError{Field: "output.time_zone", Reason: err.Error()}
	}
	return loc, nil
}

type Config struct {
	Property string `json:"property" envconfig:"PROPERTY"`
	Reports  string `json:"reports" envconfig:"REPORTS"`

	AccessToken string `json:"access_token" envconfig:"ACCESS_TOKEN"`
	TokenFile   string `json:"token_file" envconfig:"TOKEN_FILE"`
	// CredentialsFile is a google credential file, GOOGLE_APPLICATION_CREDENTIALS
	// is used when no credentials are configured.
	CredentialsFile   string  `json:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	BaseUrl           string  `json:"base_url" envconfig:"BASE_URL"`
	RequestsPerSecond float64 `json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`

	StartDate string `json:"start_date" envconfig:"START_DATE"`
	EndDate   string `json:"end_date" envconfig:"END_DATE"`
	PageSize  int64  `json:"page_size" envconfig:"PAGE_SIZE"`

	BatchSize   int `json:"batch_size" envconfig:"BATCH_SIZE"`
	Concurrency int `json:"concurrency" envconfig:"CONCURRENCY"`
	// MaxRetries is left unset for the default, 0 disables retries.
	MaxRetries       *uint64 `json:"max_retries" envconfig:"MAX_RETRIES"`
	RetryInterval    string  `json:"retry_interval" envconfig:"RETRY_INTERVAL"`
	MaxRetryInterval string  `json:"max_retry_interval" envconfig:"MAX_RETRY_INTERVAL"`

	Output   OutputConfig              `json:"output"`
	Database tablestore.DatabaseConfig `json:"database"`
}

func loadConfig(path string) (Config, error) {
	config, err := configutil.Load[Config](path, envPrefix)
	if err != nil {
		return Config{}, err
	}
	if config.Output.Format == "" {
		config.Output.Format = formatTable
	}
	return config, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &reportbatch.ConfigError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

func (c Config) generatorOptions() (reportbatch.Options, error) {
	retry := reportbatch.DefaultRetryPolicy
	switch {
	case c.MaxRetries == nil:
	case *c.MaxRetries == 0:
		retry.MaxRetries = reportbatch.NoRetries
	default:
		retry.MaxRetries = int(*c.MaxRetries)
	}
	initial, err := parseDuration("retry_interval", c.RetryInterval)
	if err != nil {
		return reportbatch.Options{}, err
	}
	if initial > 0 {
		retry.InitialInterval = initial
	}
	maxInterval, err := parseDuration("max_retry_interval", c.MaxRetryInterval)
	if err != nil {
		return reportbatch.Options{}, err
	}
	if maxInterval > 0 {
		retry.MaxInterval = maxInterval
	}

	var dates reportbatch.DateRange
	if c.StartDate != "" || c.EndDate != "" {
		dates = reportbatch.DateRange{StartDate: c.StartDate, EndDate: c.EndDate}
	}

	return reportbatch.Options{
		Request: reportbatch.RequestOptions{
			DateRange: dates,
			Limit:     c.PageSize,
		},
		Executor: reportbatch.ExecutorOptions{
			BatchSize:   c.BatchSize,
			Concurrency: c.Concurrency,
			Retry:       retry,
		},
	}, nil
}

func (c Config) credentials(ctx context.Context) (oauth2.TokenSource, error) {
	switch {
	case c.AccessToken != "":
		token, err := analyticsdata.ParseToken([]byte(c.AccessToken))
		if err != nil {
			return nil, err
		}
		return token.TokenSource(), nil
	case c.TokenFile != "":
		return analyticsdata.LoadCredentials(ctx, c.TokenFile)
	case c.CredentialsFile != "":
		return analyticsdata.LoadCredentials(ctx, c.CredentialsFile)
	}
	if path := os.Getenv(applicationCredentialsEnv); path != "" {
		return analyticsdata.LoadCredentials(ctx, path)
	}
	return nil, errors.New(
		"no credentials, set credentials_file, access_token or token_file (ex. the output of `gcloud auth print-access-token`)",
	)
}

func (c Config) clientOptions(ctx context.Context) (analyticsdata.ClientOptions, error) {
	credentials, err := c.credentials(ctx)
	if err != nil {
		return analyticsdata.ClientOptions{}, err
	}
	return analyticsdata.ClientOptions{
		BaseUrl:           c.BaseUrl,
		Credentials:       credentials,
		RequestsPerSecond: c.RequestsPerSecond,
	}, nil
}

const (
	formatTable  = "table"
	formatCsv    = "csv"
	formatSqlite = "sqlite"
)

func (c Config) validateOutput() error {
	_, err := c.Output.location()
	if err != nil {
		return err
	}
	switch c.Output.Format {
	case formatTable:
		return nil
	case formatCsv:
		if c.Output.Path == "" {
			return &reportbatch.ConfigError{Field: "output.path", Reason: "csv output needs a directory"}
		}
		return nil
	case formatSqlite:
		if c.Output.Path == "" && c.Database.File == "" && c.Database.Url == "" {
			return &reportbatch.ConfigError{Field: "output.path", Reason: "sqlite output needs a database file or url"}
		}
		return nil
	}
	return &reportbatch.ConfigError{
		Field:  "output.format",
		Reason: fmt.Sprintf("%q is not one of %s, %s or %s", c.Output.Format, formatTable, formatCsv, formatSqlite),
	}
}

func (c Config) database() tablestore.DatabaseConfig {
	db := c.Database
	if c.Output.Path != "" && db.Url == "" {
		db.File = c.Output.Path
	}
	return db
}
