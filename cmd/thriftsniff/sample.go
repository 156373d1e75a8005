package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/frame"
	"github.com/danmuck/thriftsniff/internal/report"
)

type sampleOptions struct {
	protocol string
	envelope string
	kind     string
	seqID    int32
	hexdump  bool
}

func newSampleCmd(_ *rootOptions) *cobra.Command {
	opts := &sampleOptions{}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print an encoded ItemService.GetItem message as hex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := buildSample(*opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.hexdump {
				fmt.Fprint(out, report.HexDump(payload))
				return nil
			}
			fmt.Fprintln(out, hex.EncodeToString(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.protocol, "protocol", "binary", "binary or compact")
	cmd.Flags().StringVar(&opts.envelope, "envelope", "none", "none, framed or theader")
	cmd.Flags().StringVar(&opts.kind, "kind", "call", "call or reply")
	cmd.Flags().Int32Var(&opts.seqID, "seq", 1, "sequence id")
	cmd.Flags().BoolVar(&opts.hexdump, "hexdump", false, "print a hex dump instead of a hex string")
	return cmd
}

func buildSample(opts sampleOptions) ([]byte, error) {
	variant, err := protocol.ParseVariant(strings.ToLower(opts.protocol))
	if err != nil {
		return nil, err
	}
	msg, err := sampleMessage(variant, opts.kind, opts.seqID)
	if err != nil {
		return nil, err
	}
	body, err := protocol.Encode(msg)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(opts.envelope) {
	case "", "none":
		return body, nil
	case "framed":
		return frame.WrapFramed(body), nil
	case "theader":
		protoID := frame.ProtocolBinary
		if variant == protocol.VariantCompact {
			protoID = frame.ProtocolCompact
		}
		return frame.WrapTHeader(body, frame.THeaderOptions{
			ProtocolID: protoID,
			SeqID:   uint32(opts.seqID),
			Headers: map[string]string{"client": "thriftsniff"},
		}), nil
	default:
		return nil, fmt.Errorf("sample: unknown envelope %q", opts.envelope)
	}
}

func sampleMessage(variant protocol.Variant, kind string, seqID int32) (*protocol.Message, error) {
	msg := &protocol.Message{Variant: variant, Method: "GetItem", SeqID: seqID}
	switch strings.ToLower(kind) {
	case "call":
		msg.Kind = protocol.KindCall
		msg.Fields = []protocol.Field{{ID: 1, Value: structOf(
			protocol.Field{ID: 1, Value: protocol.Value{Type: protocol.TypeI64, I64: 42}},
		)}}
	case "reply":
		msg.Kind = protocol.KindReply
		item := structOf(
			protocol.Field{ID: 1, Value: protocol.Value{Type: protocol.TypeI64, I64: 42}},
			protocol.Field{ID: 2, Value: protocol.Value{Type: protocol.TypeString, String: "hello"}},
			protocol.Field{ID: 3, Value: protocol.Value{Type: protocol.TypeString, String: "thrift on the wire"}},
			protocol.Field{ID: 10, Value: protocol.Value{
				Type:      protocol.TypeMap,
				KeyType:   protocol.TypeString,
				ValueType: protocol.TypeString,
				Pairs: []protocol.Pair{{
					Key:   protocol.Value{Type: protocol.TypeString, String: "lang"},
					Value: protocol.Value{Type: protocol.TypeString, String: "go"},
				}},
			}},
		)
		msg.Fields = []protocol.Field{{ID: 0, Value: structOf(protocol.Field{ID: 1, Value: item})}}
	default:
		return nil, fmt.Errorf("sample: unknown kind %q", kind)
	}
	return msg, nil
}

func structOf(fields ...protocol.Field) protocol.Value {
	return protocol.Value{Type: protocol.TypeStruct, Fields: fields}
}
