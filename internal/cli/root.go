package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/UNCWMixedReality/NounExtractor/internal/config"
	"github.com/UNCWMixedReality/NounExtractor/internal/logging"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// RootOptions holds global flags for all commands, and the configuration
// and logger resolved from them before a subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Backend    string
	Path       string
	Driver     string
	LogFormat  string
	MetricsOut string

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the noun-cache CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "noun-cache",
		Short: "Content-addressed cache of text classification results",
		Long: `noun-cache stores classification results keyed by the SHA-256
fingerprint of the classified text, in an embedded SQLite file or a
PostgreSQL database.

Configuration comes from an optional YAML file (--config), NOUN_CACHE_*
environment variables and the flags below, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
		// With no subcommand, print usage and succeed.
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "YAML config file with a db: section")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (embedded|networked)")
	flags.StringVar(&opts.Path, "path", "", "SQLite file for the embedded backend")
	flags.StringVar(&opts.Driver, "driver", "", "SQLite driver (sqlite3|sqlite)")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format on stderr (text|json)")
	flags.StringVar(&opts.MetricsOut, "metrics-out", "", "write store metrics in Prometheus text format to this file")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewExistsCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// resolve validates global flags and loads configuration and logging.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		err := fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
		o.Format = "text"
		return o.formatter(cmd).FailWith(ErrCodeUsage, ExitCommandError, err)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return o.formatter(cmd).FailWith(ErrCodeUsage, ExitCommandError, fmt.Errorf("load config: %w", err))
	}
	if o.Backend != "" {
		cfg.Store.Backend = store.Backend(o.Backend)
	}
	if o.Path != "" {
		cfg.Store.Path = o.Path
	}
	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel, o.Verbose)
	if err != nil {
		return o.formatter(cmd).FailWith(ErrCodeUsage, ExitCommandError, fmt.Errorf("configure logging: %w", err))
	}

	o.Config = cfg
	o.Logger = logger
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
