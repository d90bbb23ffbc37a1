package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"table-backup/internal/config"
	"table-backup/internal/display"
	"table-backup/internal/errors"
	"table-backup/internal/logging"
)

var cfgFile string

// Global flag variables
var (
	verbose   bool
	quiet     bool
	debug     bool
	noColor   bool
	logFormat string
	logFile   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "table-backup",
	Short: "Export database tables and upload them to OneDrive",
	Long: `Table Backup runs a fixed set of queries against a database, writes one
file per query, obtains a Microsoft identity platform access token and uploads
every file to a OneDrive folder through Microsoft Graph.

Each invocation performs exactly one run; schedule it with cron or a systemd
timer. Nothing is uploaded unless every query succeeded.

Examples:
  # One run with a configuration file
  table-backup --config=/etc/table-backup.yaml

  # Bootstrap the refresh token once, interactively
  table-backup authorize --config=/etc/table-backup.yaml

  # Show the effective configuration with secrets masked
  table-backup config --effective`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBackup,
}

// Execute runs the root command and exits with the status of the failure
// class. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", errors.FormatUserError(err))
		if errors.GetErrorType(err) == errors.ErrorTypeUnknown {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(errors.ExitCode(err))
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.table-backup.yaml or $HOME/.table-backup.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVar(&debug, "debug", false, "enable debug output")
	flags.BoolVar(&noColor, "no-color", false, "disable color output")
	flags.StringVar(&logFormat, "log-format", "", "log format (text, json)")
	flags.StringVar(&logFile, "log-file", "", "also write logs to file")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet", "debug")

	addRunFlags(rootCmd)
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newAuthorizeCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// initConfig points viper at the config file, the environment and the flags
func initConfig() {
	v := viper.GetViper()
	cobra.CheckErr(config.Setup(v, cfgFile))

	flags := rootCmd.PersistentFlags()
	v.BindPFlag("log.format", flags.Lookup("log-format"))
	v.BindPFlag("log.file", flags.Lookup("log-file"))
	v.BindPFlag("export.directory", flags.Lookup("dir"))
	v.BindPFlag("export.format", flags.Lookup("format"))
	v.BindPFlag("export.compression", flags.Lookup("compression"))
	v.BindPFlag("onedrive.folder", flags.Lookup("folder"))
}

// loadConfig reads the file, applies flag overrides and returns the
// configuration without validating it
func loadConfig() (*config.Config, error) {
	if err := config.ReadFile(viper.GetViper(), cfgFile != ""); err != nil {
		return nil, err
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	switch {
	case debug:
		cfg.Log.Level = logging.LogLevelDebug
	case verbose:
		cfg.Log.Level = logging.LogLevelVerbose
	case quiet:
		cfg.Log.Level = logging.LogLevelQuiet
	}
	return cfg, nil
}

// newLogger builds the logger for a loaded configuration
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create logger", err)
	}
	return logger, nil
}

// newColors honours --no-color on top of terminal detection
func newColors() *display.ColorSystem {
	return display.NewColorSystem(!noColor)
}
