package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/config"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/launch"
)

var (
	launchProcs   int
	launchBind    string
	launchTimeout string
	launchAudit   string
)

var launchCmd = &cobra.Command{
	Use:   "launch [flags] [-- command [args...]]",
	Short: "Run a process group on this machine",
	Long: `Run N copies of a command as one process group. Each copy is told its
rank, the group size and the address of a rendezvous service it joins and
leaves. When every copy has exited, launch checks that each one joined and
released its membership exactly once.

Without a command, launch runs this executable, so

  time-offset launch -n 4

prints four diagnostic lines, one per rank.`,
	Args: cobra.ArbitraryArgs,
	RunE: runLaunch,
}

func init() {
	launchCmd.Flags().IntVarP(&launchProcs, "procs", "n", config.DefaultLaunchProcs,
		"number of group members")
	launchCmd.Flags().StringVar(&launchBind, "bind", config.DefaultLaunchBind,
		"rendezvous listen address")
	launchCmd.Flags().StringVar(&launchTimeout, "timeout", config.DefaultLaunchTimeout,
		"stop members still running after this long (e.g. 30s, 0 waits forever)")
	launchCmd.Flags().StringVar(&launchAudit, "audit", "",
		"write a JSON membership audit to this file")

	_ = viper.BindPFlag("launch.procs", launchCmd.Flags().Lookup("procs"))
	_ = viper.BindPFlag("launch.bind", launchCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("launch.timeout", launchCmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("launch.audit", launchCmd.Flags().Lookup("audit"))

	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Launch.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = cfg.Log.Level
	}
	logger := newLogger(level, cfg.Log.Format)

	timeout, err := config.ParseTimeout(cfg.Launch.Timeout)
	if err != nil {
		return fmt.Errorf("parsing timeout: %w", err)
	}

	command, err := launchCommand(args)
	if err != nil {
		return err
	}

	sup, err := launch.New(launch.Options{
		Procs:     cfg.Launch.Procs,
		Command:   command,
		Bind:      cfg.Launch.Bind,
		Timeout:   timeout,
		AuditFile: cfg.Launch.Audit,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	_, err = sup.Run(cmd.Context())
	return err
}

// launchCommand returns the member command: the arguments when given,
// otherwise this executable.
func launchCommand(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return []string{exe}, nil
}
