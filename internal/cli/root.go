package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cmdpkg "github.com/berrythewa/clipkeep/internal/cli/cmd"
	"github.com/berrythewa/clipkeep/internal/common"
	"github.com/berrythewa/clipkeep/internal/config"
)

var (
	// Flags that apply to all commands
	cfgFile   string
	logLevel  string
	noFileLog bool
	verbose   bool
	noColor   bool
	detach    bool

	logger *zap.Logger

	// Version information - set by main
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "none"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "clipkeep",
	Short: "ClipKeep is a clipboard history daemon",
	Long: `ClipKeep watches the system clipboard, keeps a bounded searchable
history of what was copied and exposes it to scripts through a local,
token-protected automation API.

Running clipkeep without any commands starts the daemon in the foreground.
Use --detach to run it in the background.`,
	Annotations:   map[string]string{cmdpkg.DaemonAnnotation: "true"},
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdpkg.RunDaemon(cmd, detach)
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// only the daemon writes the rotating log file
		opts := common.LoggerOptions{Level: logLevel, NoFile: noFileLog}
		if cmd.Annotations[cmdpkg.DaemonAnnotation] == "" {
			opts.NoFile = true
			opts.Quiet = !verbose
		}
		if verbose && opts.Level == "" {
			opts.Level = "debug"
		}

		logger, err = common.NewLogger(cfg, opts)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger.Debug("Configuration loaded",
			zap.String("config_file", cfg.SystemPaths.ConfigFile),
			zap.String("db_path", cfg.Storage.DBPath),
			zap.Int("api_port", cfg.API.Port))

		cmdpkg.SetConfig(cfg)
		cmdpkg.SetZapLogger(logger)
		cmdpkg.SetNoColor(noColor || os.Getenv("NO_COLOR") != "")
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config dir)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	RootCmd.PersistentFlags().BoolVar(&noFileLog, "no-file-log", false, "disable the rotating log file")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colors and icons")
	RootCmd.Flags().BoolVar(&detach, "detach", false, "run the daemon in the background")

	for _, command := range cmdpkg.GetCommands() {
		RootCmd.AddCommand(command)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := RootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(version, buildTime, commit string) {
	Version = version
	BuildTime = buildTime
	Commit = commit
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}
