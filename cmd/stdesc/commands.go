package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/stdesc/internal/config"
	"github.com/banshee-data/stdesc/internal/version"
)

// runFlags are the options of the run command.
type runFlags struct {
	datasetDir    string
	groundTruth   string
	configPath    string
	overrides     []string
	sequence      string
	resultsDir    string
	dbPath        string
	metricsAddr   string
	logEvery      int
	progressEvery int
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stdesc",
		Short:         "Stable triangle descriptor loop-closure detection for LiDAR scans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newConfigCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a scan directory and report loop closures",
		Long: `Replays every scan of --dataset in file-name order, reports the loop
closures found and, when --gt is given, precision and recall per score
threshold. Result files go to <results>/stdesc_results/<sequence>/<timestamp>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.datasetDir, "dataset", "", "directory of .bin or .bin.zst scans (required)")
	fl.StringVar(&f.groundTruth, "gt", "", "ground-truth closure pairs CSV (i,j per line)")
	fl.StringVar(&f.configPath, "config", "", "parameter file (.yaml, .yml or .json); defaults when empty")
	fl.StringArrayVar(&f.overrides, "set", nil, "override a parameter, name=value (repeatable)")
	fl.StringVar(&f.sequence, "sequence", "", "sequence name (default: dataset directory name)")
	fl.StringVar(&f.resultsDir, "results", "", "root directory for result files; none written when empty")
	fl.StringVar(&f.dbPath, "db", "", "SQLite database recording every frame decision")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	fl.IntVar(&f.logEvery, "log-every", 0, "log a per-frame summary every n frames")
	fl.IntVar(&f.progressEvery, "progress-every", 100, "log replay progress every n scans")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var (
		path      string
		overrides []string
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective parameter set as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadParameters(path, overrides)
			if err != nil {
				return err
			}
			if _, err := cfg.Build(); err != nil {
				return err
			}
			b, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "parameter file; defaults when empty")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a parameter, name=value (repeatable)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadParameters reads path (or the defaults) and applies name=value
// overrides on top.
func loadParameters(path string, overrides []string) (*config.STDescConfig, error) {
	cfg := config.Defaults()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(overrides) == 0 {
		return cfg, nil
	}

	values := cfg.ToMap()
	set, err := parseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	for name, v := range set {
		values[name] = v
	}
	return config.FromMap(values)
}

// parseOverrides turns name=value arguments into a map. Later arguments win.
func parseOverrides(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("override %q: want name=value", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", arg, err)
		}
		out[name] = v
	}
	return out, nil
}
