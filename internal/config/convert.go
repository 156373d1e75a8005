package config

import (
	"time"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
	"github.com/danmuck/thriftsniff/internal/report"
	"github.com/danmuck/thriftsniff/internal/server"
	"github.com/danmuck/thriftsniff/internal/sniffer"
)

// DecoderOptions assumes cfg has been validated.
func (c Config) DecoderOptions() protocol.Options {
	enc, _ := protocol.ParseSeqIDEncoding(c.Decoder.CompactSeqID)
	return protocol.Options{
		MaxDepth:     c.Decoder.MaxDepth,
		RequireStop:  c.Decoder.RequireStop,
		CompactSeqID: enc,
	}
}

func (c Config) CaptureOptions() capture.Options {
	opts := capture.Options{
		Port:        uint16(c.Capture.Port),
		Snaplen:     int32(c.Capture.Snaplen),
		Promiscuous: c.Capture.Promiscuous,
		BPF:         c.Capture.BPF,
	}
	if d, err := time.ParseDuration(c.Capture.Timeout); err == nil {
		opts.Timeout = d
	}
	return opts
}

func (c Config) SnifferConfig(reg *schema.Registry) sniffer.Config {
	return sniffer.Config{
		Workers:    c.Pipeline.Workers,
		Queue:      c.Pipeline.Queue,
		MaxPayload: c.Decoder.MaxPayload,
		Schema:     reg,
	}
}

func (c Config) AdminOptions(version string, stats server.StatsFunc) server.Options {
	return server.Options{
		Addr:        c.Admin.Addr,
		Version:     version,
		CORSOrigins: c.Admin.CORSOrigins,
		Token:       c.Admin.Token,
		Stats:       stats,
	}
}

func (c Config) TextOptions() report.TextOptions {
	return report.TextOptions{HexDump: c.Sinks.Report.HexDump}
}

// LoadSchema returns the schema file's registry, the builtin one, or nil.
func (c Config) LoadSchema() (*schema.Registry, error) {
	if c.Schema.File != "" {
		return schema.Load(c.Schema.File)
	}
	if c.Schema.Builtin {
		return schema.Builtin(), nil
	}
	return nil, nil
}
