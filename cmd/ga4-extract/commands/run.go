package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"ga4-extract/internal/reportbatch"
	"ga4-extract/internal/telemetry"
	"ga4-extract/lib/platforms/analyticsdata"
	"ga4-extract/lib/restyutil"

	"github.com/spf13/cobra"
)

type runFlags struct {
	property    string
	reports     string
	format      string
	out         string
	insertInfo  bool
	replace     bool
	startDate   string
	endDate     string
	pageSize    int64
	dateText    bool
	timeZone    string
	tokenFile   string
	credentials string
	dumpHttp    string
}

var flags runFlags

func init() {
	f := runCmd.Flags()
	f.StringVar(&flags.property, "property", "", "The GA4 property, `123` or `properties/123`.")
	f.StringVar(&flags.reports, "reports", "", "The report configuration file (yaml or json).")
	f.StringVar(&flags.format, "format", "", "Output format: table, csv or sqlite.")
	f.StringVar(&flags.out, "out", "", "The csv directory or sqlite database to write to.")
	f.BoolVar(&flags.insertInfo, "insert-info", false, "Add uuid and emitted_at columns to every written row.")
	f.BoolVar(&flags.replace, "replace", false, "Replace existing sqlite tables instead of appending.")
	f.StringVar(&flags.startDate, "start-date", "", "First day of the report, YYYY-MM-DD or NdaysAgo.")
	f.StringVar(&flags.endDate, "end-date", "", "Last day of the report, YYYY-MM-DD, yesterday or today.")
	f.Int64Var(&flags.pageSize, "page-size", 0, "Rows per page, at most 250000.")
	f.BoolVar(&flags.dateText, "date-text", false, "Keep date dimensions as YYYYMMDD text instead of dates.")
	f.StringVar(&flags.timeZone, "time-zone", "", "The property's time zone for date dimensions, defaults to UTC.")
	f.StringVar(&flags.tokenFile, "token-file", "", "A file holding an OAuth access token.")
	f.StringVar(&flags.credentials, "credentials", "", "A service account key or authorized user file.")
	f.StringVar(&flags.dumpHttp, "dump-http", "", "Write every http exchange to this directory.")
	rootCmd.AddCommand(runCmd)
}

// applyFlags overrides the configuration with the flags that were set.
func applyFlags(cmd *cobra.Command, config *Config) {
	changed := cmd.Flags().Changed
	if changed("property") {
		config.Property = flags.property
	}
	if changed("reports") {
		config.Reports = flags.reports
	}
	if changed("format") {
		config.Output.Format = flags.format
	}
	if changed("out") {
		config.Output.Path = flags.out
	}
	if changed("insert-info") {
		config.Output.InsertInfo = flags.insertInfo
	}
	if changed("replace") {
		config.Output.Replace = flags.replace
	}
	if changed("start-date") {
		config.StartDate = flags.startDate
	}
	if changed("end-date") {
		config.EndDate = flags.endDate
	}
	if changed("page-size") {
		config.PageSize = flags.pageSize
	}
	if changed("date-text") {
		config.Output.DateText = flags.dateText
	}
	if changed("time-zone") {
		config.Output.TimeZone = flags.timeZone
	}
	if changed("token-file") {
		config.TokenFile = flags.tokenFile
		config.AccessToken = ""
	}
	if changed("credentials") {
		config.CredentialsFile = flags.credentials
		config.AccessToken = ""
		config.TokenFile = ""
	}
}

var runCmd = &cobra.Command{
	Use:   "run [--property <id>] [--reports <path>] [--format table|csv|sqlite] [--out <path>]",
	Short: "Fetches every report of a configuration and writes the resulting tables.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &config)

		if config.Reports == "" {
			return errors.New("no report configuration, pass --reports or set reports in the config file")
		}
		err = config.validateOutput()
		if err != nil {
			return err
		}
		cfg, err := reportbatch.LoadConfig(config.Reports)
		if err != nil {
			return err
		}
		err = reportbatch.ValidateProperty(config.Property)
		if err != nil {
			return err
		}

		opts, err := config.generatorOptions()
		if err != nil {
			return err
		}
		clientOpts, err := config.clientOptions(ctx)
		if err != nil {
			return err
		}
		if flags.dumpHttp != "" {
			output, err := restyutil.NewFilesystemOutput(flags.dumpHttp)
			if err != nil {
				return err
			}
			clientOpts.Transcripts = output
		}
		client, err := analyticsdata.NewClient(clientOpts)
		if err != nil {
			return err
		}

		generator, err := reportbatch.NewGenerator(
			reportbatch.NewAnalyticsTransport(client),
			telemetry.SlogAPI{},
			opts,
		)
		if err != nil {
			return err
		}

		slog.Info("generating reports", "property", config.Property, "reports", cfg.Names())
		batch, genErr := generator.Generate(ctx, config.Property, cfg)

		var partial *reportbatch.PartialBatchError
		if genErr != nil && !errors.As(genErr, &partial) {
			return genErr
		}

		err = writeBatch(ctx, out, config, batch)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		renderDropped(out, batch)

		if partial != nil {
			renderFailures(out, partial.Outcomes)
			return partial
		}
		return nil
	},
}
