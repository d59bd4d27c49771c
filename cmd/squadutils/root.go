package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squadutils/internal/config"
	"squadutils/internal/logging"
	"squadutils/internal/reproducer"
	"squadutils/internal/search"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit statuses.
const (
	exitFailure  = 1
	exitNotFound = 2
)

var rootFlags struct {
	configPath string
	url        string
	token      string
	group      string
	logLevel   string
	logFormat  string
}

// settings is the merged file, environment and flag configuration, resolved
// before any subcommand runs.
var settings config.Config

var rootCmd = &cobra.Command{
	Use:   "squadutils",
	Short: "Find, fetch and customise reproducers of SQUAD test runs",
	Long: "squadutils searches a SQUAD instance for the most recent test run matching\n" +
		"build names, suites and environments, downloads its tuxsuite/tuxrun reproducer\n" +
		"and rewrites it to run a custom command or a tuxsuite plan.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", config.DefaultConfigPath(), "Path to the TOML config file")
	f.StringVar(&rootFlags.url, "url", "", "SQUAD instance URL (overrides config and $SQUAD_HOST)")
	f.StringVar(&rootFlags.token, "token", "", "SQUAD API token (overrides config and $SQUAD_TOKEN)")
	f.StringVar(&rootFlags.group, "group", "", "SQUAD group slug, e.g. lkft")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(reproduceCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(suiteRunsCmd)
	rootCmd.AddCommand(stableCmd)
	rootCmd.AddCommand(latestPassingCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.Version = version
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(rootFlags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if rootFlags.url != "" {
		cfg.Squad.URL = rootFlags.url
	}
	if rootFlags.token != "" {
		cfg.Squad.Token = rootFlags.token
	}
	if rootFlags.group != "" {
		cfg.Squad.Group = rootFlags.group
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		cfg.Log.Format = rootFlags.logFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	settings = cfg
	return nil
}

// exitCode maps an error to the process exit status. Searches that match
// nothing are an expected outcome and get their own status.
func exitCode(err error) int {
	if errors.Is(err, search.ErrNotFound) || errors.Is(err, reproducer.ErrReproducerNotFound) {
		return exitNotFound
	}
	return exitFailure
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
