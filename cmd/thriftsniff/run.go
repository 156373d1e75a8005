package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/capture/live"
	"github.com/danmuck/thriftsniff/internal/config"
	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
	"github.com/danmuck/thriftsniff/internal/server"
	"github.com/danmuck/thriftsniff/internal/sink"
	"github.com/danmuck/thriftsniff/internal/sniffer"
)

func newListenCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Decode Thrift messages from a live interface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			applyCaptureFlags(cmd, &cfg)
			if cfg.Capture.Interface == "" {
				return fmt.Errorf("listen: an interface is required (-i or capture.interface)")
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			src, err := live.Open(cfg.Capture.Interface, cfg.CaptureOptions())
			if err != nil {
				return err
			}
			defer src.Close()
			return runSniffer(cmd, cfg, src)
		},
	}
	cmd.Flags().StringP("interface", "i", "", "network interface to capture on")
	cmd.Flags().IntP("port", "p", capture.DefaultPort, "TCP port carrying Thrift traffic (0 for all)")
	cmd.Flags().String("bpf", "", "BPF filter replacing the port filter")
	cmd.Flags().Bool("admin", false, "serve /health, /metrics and /stats")
	return cmd
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Decode Thrift messages from a pcap or pcapng file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			applyCaptureFlags(cmd, &cfg)
			if cfg.Capture.PcapFile == "" {
				return fmt.Errorf("replay: a capture file is required (--file or capture.pcap_file)")
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			src, err := capture.OpenFile(cfg.Capture.PcapFile, cfg.CaptureOptions())
			if err != nil {
				return err
			}
			defer src.Close()
			return runSniffer(cmd, cfg, src)
		},
	}
	cmd.Flags().StringP("file", "f", "", "pcap or pcapng file to read")
	cmd.Flags().IntP("port", "p", capture.DefaultPort, "TCP port carrying Thrift traffic (0 for all)")
	cmd.Flags().Bool("admin", false, "serve /health, /metrics and /stats")
	return cmd
}

// applyCaptureFlags overrides cfg with the flags the user actually set.
func applyCaptureFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("interface") {
		cfg.Capture.Interface, _ = flags.GetString("interface")
	}
	if flags.Changed("file") {
		cfg.Capture.PcapFile, _ = flags.GetString("file")
	}
	if flags.Changed("port") {
		cfg.Capture.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("bpf") {
		cfg.Capture.BPF, _ = flags.GetString("bpf")
	}
	if flags.Changed("admin") {
		cfg.Admin.Enabled, _ = flags.GetBool("admin")
	}
}

func runSniffer(cmd *cobra.Command, cfg config.Config, src sniffer.Source) error {
	reg, err := cfg.LoadSchema()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, err := buildSinks(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	sn := sniffer.New(cfg.SnifferConfig(reg), protocol.NewDecoder(cfg.DecoderOptions()), sinks...)
	defer func() {
		if err := sn.Close(); err != nil {
			logs.Warnf("thriftsniff close sinks err=%v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelAdmin := context.WithCancel(gctx)
	if cfg.Admin.Enabled {
		admin := server.NewAdmin(cfg.AdminOptions(Version, sn.Stats().Snapshot))
		g.Go(func() error { return admin.Run(runCtx) })
	}
	g.Go(func() error {
		defer cancelAdmin()
		return sn.Run(gctx, src)
	})
	err = g.Wait()

	writeSummary(cmd.ErrOrStderr(), sn.Stats().Snapshot())
	return err
}

func buildSinks(ctx context.Context, cfg config.Config, out io.Writer) ([]sink.Sink, error) {
	var sinks []sink.Sink
	closeAll := func() {
		_ = sink.Multi(sinks).Close()
	}
	if cfg.Sinks.Report.Enabled {
		sinks = append(sinks, sink.NewReportSink(out, cfg.TextOptions()))
	}
	if cfg.Sinks.Log.Enabled {
		sinks = append(sinks, sink.NewLogSink(nil))
	}
	if n := cfg.Sinks.NATS; n.Enabled {
		s, err := sink.DialNATS(ctx, n.URL, n.Subject)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if r := cfg.Sinks.Redis; r.Enabled {
		s, err := sink.DialRedis(ctx, r.Addr, r.DB, r.KeyPrefix, r.RecentLimit)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func writeSummary(w io.Writer, s report.Summary) {
	fmt.Fprintln(w)
	report.WriteSummary(w, s)
}
