package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/hostinfo"
	"github.com/hugo-lorenzo-mato/timeoffset/internal/probe"
)

var envOutput string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show what this group member sees of its host",
	Long: `Print the detected group identity, hostname, PID, CPU affinity and the
host's CPU, NUMA, memory and load figures. Launch it like the diagnostic
itself (for example 'time-offset launch -n 2 -- time-offset env') to compare
members. Fields the platform cannot report are left empty.`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().StringVarP(&envOutput, "output", "o", "yaml", "output format (yaml, json)")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	collector := hostinfo.NewCollector(hostinfo.DefaultSources(probe.LocalHostname), logger)
	return writeSnapshot(cmd.OutOrStdout(), collector.Collect(cmd.Context()), envOutput)
}

func writeSnapshot(w io.Writer, s hostinfo.Snapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}
