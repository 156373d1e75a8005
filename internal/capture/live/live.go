// Package live opens capture sources on network interfaces through libpcap.
package live

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/danmuck/thriftsniff/internal/capture"
	logs "github.com/danmuck/thriftsniff/internal/logging"
)

var ErrInterfaceNotFound = errors.New("capture: interface not found")

// Interfaces lists the devices libpcap can open.
func Interfaces() ([]string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("capture: list interfaces: %w", err)
	}
	out := make([]string, 0, len(devs))
	for _, d := range devs {
		out = append(out, d.Name)
	}
	return out, nil
}

// Open starts a live capture on iface filtered to TCP traffic on opts.Port.
// A missing interface or a handle that cannot be opened is an error the
// caller should treat as fatal.
func Open(iface string, opts capture.Options) (*capture.Source, error) {
	names, err := Interfaces()
	if err != nil {
		return nil, err
	}
	if !contains(names, iface) {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrInterfaceNotFound, iface, names)
	}

	snaplen := opts.Snaplen
	if snaplen <= 0 {
		snaplen = capture.DefaultSnaplen
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}
	handle, err := pcap.OpenLive(iface, snaplen, opts.Promiscuous, timeout)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", iface, err)
	}
	filter := opts.Filter()
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("capture: set filter %q on %s: %w", filter, iface, err)
	}
	logs.Infof("capture.live.Open iface=%s filter=%q snaplen=%d promisc=%t", iface, filter, snaplen, opts.Promiscuous)

	src := timeoutSource{handle: handle}
	return capture.NewSource(iface, src, handle.LinkType(), opts.Port, func() error {
		handle.Close()
		return nil
	}), nil
}

// timeoutSource reports read timeouts as capture.ErrNoPacket so the
// source can observe cancellation between packets.
type timeoutSource struct {
	handle *pcap.Handle
}

func (s timeoutSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	if errors.Is(err, pcap.NextErrorTimeoutExpired) {
		return nil, ci, capture.ErrNoPacket
	}
	return data, ci, err
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
