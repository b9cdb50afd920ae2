package commands

import (
	"errors"

	"ga4-extract/internal/reportbatch"

	"github.com/spf13/cobra"
)

var validateReports string

func init() {
	validateCmd.Flags().StringVar(&validateReports, "reports", "", "The report configuration to check, overrides the config file.")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [--reports <path/to/reports.yaml>]",
	Short: "Parses a report configuration and lists the reports it declares.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("reports") {
			config.Reports = validateReports
		}
		if config.Reports == "" {
			return errors.New("no report configuration, pass --reports or set reports in the config file")
		}

		cfg, err := reportbatch.LoadConfig(config.Reports)
		if err != nil {
			return err
		}
		renderReports(cmd.OutOrStdout(), cfg)
		return nil
	},
}
