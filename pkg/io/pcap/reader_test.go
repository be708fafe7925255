package pcap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpPacket(t *testing.T, ts time.Time, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true, ACK: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	return packet
}

func TestExtract(t *testing.T) {
	e := NewFeatureExtractor()
	start := time.Unix(1700000000, 0)

	first := e.Extract(tcpPacket(t, start, []byte("hello")))
	assert.Len(t, first, len(e.FeatureNames()))
	assert.Equal(t, 0.0, first[1], "no previous packet")
	assert.Equal(t, 6.0, first[2])
	assert.Equal(t, 40000.0, first[3])
	assert.Equal(t, 443.0, first[4])
	assert.Equal(t, 3.0, first[5], "SYN|ACK")
	assert.Equal(t, 64.0, first[6])
	assert.Equal(t, 5.0, first[7])

	second := e.Extract(tcpPacket(t, start.Add(250*time.Millisecond), nil))
	assert.InDelta(t, 0.25, second[1], 1e-9)
}

func TestRecord(t *testing.T) {
	e := NewFeatureExtractor()
	rec := e.Record(7, tcpPacket(t, time.Unix(1, 0), nil))

	assert.Equal(t, "7", rec.Key)
	require.Len(t, rec.Vals, 8)
	assert.IsType(t, float64(0), rec.Vals[0])
}

func TestCollect(t *testing.T) {
	packets := make(chan gopacket.Packet, 3)
	for i := range 3 {
		packets <- tcpPacket(t, time.Unix(int64(i), 0), nil)
	}
	close(packets)

	r := &Reader{extractor: NewFeatureExtractor()}
	set, err := r.collect(context.Background(), packets)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, set.Keys())
}

func TestCollectLimit(t *testing.T) {
	packets := make(chan gopacket.Packet, 3)
	for i := range 3 {
		packets <- tcpPacket(t, time.Unix(int64(i), 0), nil)
	}

	r := &Reader{extractor: NewFeatureExtractor(), limit: 2}
	set, err := r.collect(context.Background(), packets)
	require.NoError(t, err)
	assert.Len(t, set, 2)
}

func TestCollectLiveDeadline(t *testing.T) {
	packets := make(chan gopacket.Packet, 1)
	packets <- tcpPacket(t, time.Unix(0, 0), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := &Reader{extractor: NewFeatureExtractor(), isLive: true}
	set, err := r.collect(ctx, packets)
	require.NoError(t, err)
	assert.Len(t, set, 1)
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Reader{extractor: NewFeatureExtractor()}
	_, err := r.collect(ctx, make(chan gopacket.Packet))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadUnbounded(t *testing.T) {
	r := &Reader{handle: nil, isLive: true}
	_, err := r.Read(context.Background())
	assert.Error(t, err)
}
