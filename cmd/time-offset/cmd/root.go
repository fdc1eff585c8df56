package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/group"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/probe"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "time-offset [args...]",
	Short: "Print local time, rank and hostname for each member of a process group",
	Long: `time-offset joins the process group it was launched into, prints one line

  [SCRIPT] TIME : <seconds> RANK : <rank> HOSTNAME : <host>

to stdout and leaves the group. Run one copy per member (mpirun, srun,
torchrun or 'time-offset launch') and compare the lines to see clock offsets
between hosts. Run alone it behaves as rank 0 of a group of one.

Arguments are forwarded to the group runtime without being examined.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
	CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
	RunE:               runEmit,
}

// Execute runs the command tree, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "time-offset: %v\n", err)
	}
	return err
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .time-offset.yaml, then ~/.config/time-offset/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (auto, text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.SetHelpCommand(helpCmd)
}

// helpCmd replaces cobra's help subcommand so "help" reaches the group
// runtime as an ordinary argument. Usage stays available via "-h" on
// subcommands.
var helpCmd = &cobra.Command{
	Use:                "help",
	Hidden:             true,
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmit(cmd, append([]string{"help"}, args...))
	},
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	rt := group.NewEnvRuntime(
		group.WithHostname(probe.LocalHostname),
		group.WithRuntimeLogger(logger),
	)
	emitter := probe.NewEmitter(logger)
	emitter.Out = cmd.OutOrStdout()
	return emitter.Run(cmd.Context(), rt, args)
}
