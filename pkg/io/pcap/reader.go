// Package pcap turns captured network packets into records, one per packet.
package pcap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fortio.org/safecast"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/hed1ad/ghostml/pkg/records"
)

// ErrUnbounded is returned when a live capture has neither a packet limit
// nor a deadline on its context.
var ErrUnbounded = errors.New("live capture needs a packet limit or a deadline")

// Reader reads packets from PCAP files or live interfaces.
type Reader struct {
	handle    *pcap.Handle
	extractor *FeatureExtractor
	limit     int
	isLive    bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithPacketLimit stops reading after n packets. Zero means no limit.
func WithPacketLimit(n int) Option {
	return func(r *Reader) {
		r.limit = n
	}
}

// NewFileReader creates a reader for PCAP files.
func NewFileReader(filename string, opts ...Option) (*Reader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, err
	}

	return newReader(handle, false, opts), nil
}

// NewLiveReader creates a reader for live packet capture.
func NewLiveReader(iface string, snaplen int, promisc bool, timeout time.Duration, opts ...Option) (*Reader, error) {
	snap, err := safecast.Conv[int32](snaplen)
	if err != nil {
		return nil, fmt.Errorf("snaplen %d: %w", snaplen, err)
	}
	handle, err := pcap.OpenLive(iface, snap, promisc, timeout)
	if err != nil {
		return nil, err
	}

	return newReader(handle, true, opts), nil
}

func newReader(handle *pcap.Handle, live bool, opts []Option) *Reader {
	r := &Reader{
		handle:    handle,
		extractor: NewFeatureExtractor(),
		isLive:    live,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns one record per packet, keyed by its zero-based ordinal.
// A live capture ends at the packet limit or when ctx is done; reaching the
// deadline is not an error once packets were collected.
func (r *Reader) Read(ctx context.Context) (records.RecordSet, error) {
	if r.handle == nil {
		return nil, errors.New("reader not initialized")
	}
	if _, ok := ctx.Deadline(); r.isLive && r.limit == 0 && !ok {
		return nil, ErrUnbounded
	}

	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	return r.collect(ctx, packetSource.Packets())
}

func (r *Reader) collect(ctx context.Context, packets <-chan gopacket.Packet) (records.RecordSet, error) {
	var set records.RecordSet
	for r.limit == 0 || len(set) < r.limit {
		select {
		case <-ctx.Done():
			if r.isLive && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return set, nil
			}
			return nil, ctx.Err()
		case packet, ok := <-packets:
			if !ok {
				return set, nil
			}
			set = append(set, r.extractor.Record(len(set), packet))
		}
	}
	return set, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.handle != nil {
		r.handle.Close()
	}
	return nil
}

// FeatureExtractor extracts numerical features from network packets.
type FeatureExtractor struct {
	lastTimestamp time.Time
}

// NewFeatureExtractor creates a new packet feature extractor.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Record wraps the features of packet number n into a record.
func (e *FeatureExtractor) Record(n int, packet gopacket.Packet) records.Record {
	features := e.Extract(packet)
	vals := make([]any, len(features))
	for i, f := range features {
		vals[i] = f
	}
	return records.Record{Key: strconv.Itoa(n), Vals: vals}
}

// Extract converts a packet to a feature vector.
// Features: [packet_size, inter_arrival_time, protocol, src_port, dst_port,
//            tcp_flags, ip_ttl, payload_size]
func (e *FeatureExtractor) Extract(packet gopacket.Packet) []float64 {
	features := make([]float64, 8)

	features[0] = float64(len(packet.Data()))

	metadata := packet.Metadata()
	if metadata != nil && !metadata.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			features[1] = metadata.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = metadata.Timestamp
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		features[2] = 6
		features[3] = float64(tcp.SrcPort)
		features[4] = float64(tcp.DstPort)
		features[5] = encodeTCPFlags(tcp)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		features[2] = 17
		features[3] = float64(udp.SrcPort)
		features[4] = float64(udp.DstPort)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		features[2] = 1
	}

	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		features[6] = float64(ipLayer.(*layers.IPv4).TTL)
	}

	if appLayer := packet.ApplicationLayer(); appLayer != nil {
		features[7] = float64(len(appLayer.Payload()))
	}

	return features
}

// FeatureNames returns the names of extracted features.
func (e *FeatureExtractor) FeatureNames() []string {
	return []string{
		"packet_size",
		"inter_arrival_time",
		"protocol",
		"src_port",
		"dst_port",
		"tcp_flags",
		"ip_ttl",
		"payload_size",
	}
}

// encodeTCPFlags packs the TCP flags into a bitmask.
func encodeTCPFlags(tcp *layers.TCP) float64 {
	var flags float64
	for i, set := range []bool{tcp.SYN, tcp.ACK, tcp.FIN, tcp.RST, tcp.PSH, tcp.URG} {
		if set {
			flags += float64(int(1) << i)
		}
	}
	return flags
}
