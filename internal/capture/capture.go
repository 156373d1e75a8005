// Package capture turns captured packets into the TCP payloads the decoder
// consumes. Payloads come from pcap/pcapng files here and from live
// interfaces in package live.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	logs "github.com/danmuck/thriftsniff/internal/logging"
)

const (
	DefaultPort    uint16 = 9090
	DefaultSnaplen int32  = 65535
)

// ErrNoPacket is returned by a PacketDataSource when nothing arrived before
// its read timeout. Source retries on it.
var ErrNoPacket = errors.New("capture: no packet available")

type Options struct {
	// Port matches either side of the connection; 0 matches every port.
	Port        uint16
	Snaplen     int32
	Promiscuous bool
	// BPF replaces the filter derived from Port when set.
	BPF     string
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Port:        DefaultPort,
		Snaplen:     DefaultSnaplen,
		Promiscuous: true,
		Timeout:     500 * time.Millisecond,
	}
}

// Filter returns the BPF expression for live capture.
func (o Options) Filter() string {
	if o.BPF != "" {
		return o.BPF
	}
	if o.Port == 0 {
		return "tcp"
	}
	return fmt.Sprintf("tcp port %d", o.Port)
}

// Payload is the non-empty TCP payload of one IPv4 packet.
type Payload struct {
	Index   uint64
	Time    time.Time
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Data    []byte
}

// Flow renders "src:port -> dst:port", or "-" for payloads that did not
// come off the network.
func (p Payload) Flow() string {
	if !p.SrcIP.IsValid() && !p.DstIP.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%s -> %s",
		netip.AddrPortFrom(p.SrcIP, p.SrcPort),
		netip.AddrPortFrom(p.DstIP, p.DstPort))
}

// ExtractPayload returns the TCP payload of pkt when it is IPv4/TCP, either
// port equals port (or port is 0) and the payload is non-empty.
func ExtractPayload(pkt gopacket.Packet, port uint16) (Payload, bool) {
	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return Payload{}, false
	}
	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok {
		return Payload{}, false
	}
	src, dst := uint16(tcp.SrcPort), uint16(tcp.DstPort)
	if port != 0 && src != port && dst != port {
		return Payload{}, false
	}
	if len(tcp.Payload) == 0 {
		return Payload{}, false
	}
	srcIP, _ := netip.AddrFromSlice(ip.SrcIP.To4())
	dstIP, _ := netip.AddrFromSlice(ip.DstIP.To4())
	return Payload{
		Time:    pkt.Metadata().Timestamp,
		SrcIP:   srcIP,
		DstIP:   dstIP,
		SrcPort: src,
		DstPort: dst,
		Seq:     tcp.Seq,
		Data:    tcp.Payload,
	}, true
}

// Source yields matching payloads in capture order. It is not safe for
// concurrent use.
type Source struct {
	name    string
	data    gopacket.PacketDataSource
	decoder gopacket.Decoder
	port    uint16
	closeFn func() error

	seen    uint64
	matched uint64
}

// NewSource wraps a packet data source. closeFn may be nil.
func NewSource(name string, data gopacket.PacketDataSource, decoder gopacket.Decoder, port uint16, closeFn func() error) *Source {
	return &Source{name: name, data: data, decoder: decoder, port: port, closeFn: closeFn}
}

// OpenFile opens a pcap or pcapng capture file.
func OpenFile(path string, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	if r, err := pcapgo.NewReader(f); err == nil {
		logs.Infof("capture.OpenFile path=%s format=pcap link=%s port=%d", path, r.LinkType(), opts.Port)
		return NewSource(path, r, r.LinkType(), opts.Port, f.Close), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: rewind %s: %w", path, err)
	}
	ng, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("capture: %s is neither pcap nor pcapng: %w", path, err)
	}
	logs.Infof("capture.OpenFile path=%s format=pcapng link=%s port=%d", path, ng.LinkType(), opts.Port)
	return NewSource(path, ng, ng.LinkType(), opts.Port, f.Close), nil
}

func (s *Source) Name() string {
	return s.name
}

// Next blocks until the next matching payload. It returns io.EOF when the
// underlying source is exhausted and ctx.Err() once ctx is done.
func (s *Source) Next(ctx context.Context) (Payload, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Payload{}, err
		}
		data, ci, err := s.data.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			logs.Debugf("capture.Source.Next eof source=%s seen=%d matched=%d", s.name, s.seen, s.matched)
			return Payload{}, io.EOF
		case errors.Is(err, ErrNoPacket):
			continue
		default:
			return Payload{}, fmt.Errorf("capture: read %s: %w", s.name, err)
		}
		s.seen++

		pkt := gopacket.NewPacket(data, s.decoder, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		pkt.Metadata().CaptureInfo = ci
		p, ok := ExtractPayload(pkt, s.port)
		if !ok {
			continue
		}
		s.matched++
		p.Index = s.seen
		return p, nil
	}
}

// Counts returns packets read and payloads yielded so far.
func (s *Source) Counts() (seen, matched uint64) {
	return s.seen, s.matched
}

func (s *Source) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
