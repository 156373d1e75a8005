package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/danmuck/thriftsniff/internal/config"
	logs "github.com/danmuck/thriftsniff/internal/logging"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	logs.ConfigureRuntime()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "thriftsniff: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "thriftsniff",
		Short:         "Capture and decode Thrift RPC traffic",
		Long:          "thriftsniff decodes Apache Thrift Binary and Compact messages from live\ntraffic, pcap files or raw hex, with optional schema annotation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyLogLevel(opts.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "config file path (missing file means defaults)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newListenCmd(opts),
		newReplayCmd(opts),
		newDecodeCmd(opts),
		newSampleCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "thriftsniff %s\n", Version)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func applyLogLevel(raw string) error {
	if raw == "" {
		return nil
	}
	lvl, ok := logs.ParseLevel(raw)
	if !ok {
		return fmt.Errorf("unknown log level %q", raw)
	}
	cfg := logs.DefaultConfig()
	cfg.Level = lvl
	logs.Apply(cfg)
	return nil
}

// loadConfig reads the --config file and applies the config's log level
// unless --log-level was given.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f := cmd.Flag("log-level"); f == nil || !f.Changed {
		if err := applyLogLevel(cfg.Log.Level); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}
