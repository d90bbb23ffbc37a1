package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"table-backup/internal/config"
	"table-backup/internal/errors"
)

var (
	showEffective bool
	showEnv       bool
)

// newConfigCommand creates the config subcommand for generating sample config
func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print a sample or the effective configuration",
		Long: `Print a sample configuration file that can be used with the --config flag,
or, with --effective, the configuration a run would use after merging the file,
environment variables, flags and defaults. Secrets are masked.

Examples:
  # Generate a config file
  table-backup config > .table-backup.yaml

  # Check what a scheduled run will use
  table-backup config --effective --config=/etc/table-backup.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case showEnv:
				fmt.Fprintln(out, strings.Join(config.EnvironmentVariables(), "\n"))
				return nil
			case !showEffective:
				fmt.Fprint(out, config.SampleConfig)
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Redacted().YAML()
			if err != nil {
				return err
			}
			out.Write(data)

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "\n# %s\n", strings.ReplaceAll(errors.FormatUserError(err), "\n", "\n# "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEffective, "effective", false, "print the merged configuration with secrets masked")
	cmd.Flags().BoolVar(&showEnv, "env", false, "list the environment variables that are read")
	return cmd
}
