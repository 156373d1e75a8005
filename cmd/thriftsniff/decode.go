package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/report"
	"github.com/danmuck/thriftsniff/internal/sniffer"
)

type decodeOptions struct {
	file        string
	requireStop bool
	seqVarint   bool
	jsonOut     bool
	hexdump     bool
}

func newDecodeCmd(root *rootOptions) *cobra.Command {
	opts := &decodeOptions{}
	cmd := &cobra.Command{
		Use:   "decode [HEX]",
		Short: "Decode one payload given as hex or read from a raw file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			data, err := readPayload(args, opts.file)
			if err != nil {
				return err
			}
			if opts.requireStop {
				cfg.Decoder.RequireStop = true
			}
			if opts.seqVarint {
				cfg.Decoder.CompactSeqID = protocol.SeqIDVarint.String()
			}
			if cmd.Flags().Changed("hexdump") {
				cfg.Sinks.Report.HexDump = opts.hexdump
			}
			reg, err := cfg.LoadSchema()
			if err != nil {
				return err
			}

			sn := sniffer.New(cfg.SnifferConfig(reg), protocol.NewDecoder(cfg.DecoderOptions()))
			ev := sn.Process(capture.Payload{Index: 1, Time: time.Now(), Data: data})

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report.NewDocument(ev)); err != nil {
					return err
				}
			} else if err := report.WriteMessage(out, ev, cfg.TextOptions()); err != nil {
				return err
			}
			if ev.Err != nil {
				return fmt.Errorf("decode failed: %w", ev.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read raw payload bytes from a file")
	cmd.Flags().BoolVar(&opts.requireStop, "require-stop", false, "treat a missing top-level STOP byte as truncation")
	cmd.Flags().BoolVar(&opts.seqVarint, "seq-varint", false, "read Compact seq ids as plain varints")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the decoded message as JSON")
	cmd.Flags().BoolVar(&opts.hexdump, "hexdump", true, "include a hex dump of the payload")
	return cmd
}

func readPayload(args []string, file string) ([]byte, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("decode: give either HEX or --file, not both")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return data, nil
	case len(args) == 1:
		return parseHex(args[0])
	default:
		return nil, fmt.Errorf("decode: a HEX argument or --file is required")
	}
}

// parseHex accepts an optional 0x prefix and ignores whitespace, colons
// and dashes between byte pairs.
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-':
			return -1
		}
		return r
	}, s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode: invalid hex: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("decode: empty payload")
	}
	return data, nil
}
