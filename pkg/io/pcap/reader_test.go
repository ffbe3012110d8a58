package pcap

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPacket(t *testing.T, ts time.Time, transport gopacket.SerializableLayer, payload []byte) gopacket.Packet {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		TTL:     64,
		SrcIP:   net.IP{10, 0, 0, 1},
		DstIP:   net.IP{10, 0, 0, 2},
	}

	toSerialize := []gopacket.SerializableLayer{eth, ip}
	switch l := transport.(type) {
	case *layers.TCP:
		ip.Protocol = layers.IPProtocolTCP
		require.NoError(t, l.SetNetworkLayerForChecksum(ip))
	case *layers.UDP:
		ip.Protocol = layers.IPProtocolUDP
		require.NoError(t, l.SetNetworkLayerForChecksum(ip))
	}
	toSerialize = append(toSerialize, transport, gopacket.Payload(payload))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, toSerialize...))

	packet := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	return packet
}

func TestExtractTCP(t *testing.T) {
	e := NewFeatureExtractor()
	start := time.Unix(1700000000, 0)

	tcp := &layers.TCP{SrcPort: 51000, DstPort: 443, SYN: true, ACK: true}
	first := e.Extract(buildPacket(t, start, tcp, []byte("hello")))

	require.Len(t, first, NumFeatures)
	assert.Equal(t, float64(layers.IPProtocolTCP), first[FeatureProtocol])
	assert.Equal(t, 51000.0, first[FeatureSrcPort])
	assert.Equal(t, 443.0, first[FeatureDstPort])
	assert.Equal(t, 3.0, first[FeatureTCPFlags])
	assert.Equal(t, 64.0, first[FeatureTTL])
	assert.Equal(t, 5.0, first[FeaturePayloadSize])
	assert.Zero(t, first[FeatureInterArrival])
	assert.Positive(t, first[FeaturePacketSize])

	second := e.Extract(buildPacket(t, start.Add(250*time.Millisecond), tcp, nil))
	assert.InDelta(t, 0.25, second[FeatureInterArrival], 1e-9)
}

func TestExtractUDP(t *testing.T) {
	e := NewFeatureExtractor()
	udp := &layers.UDP{SrcPort: 40000, DstPort: 9999}
	f := e.Extract(buildPacket(t, time.Unix(1, 0), udp, []byte{1, 2, 3}))

	assert.Equal(t, float64(layers.IPProtocolUDP), f[FeatureProtocol])
	assert.Equal(t, 40000.0, f[FeatureSrcPort])
	assert.Equal(t, 9999.0, f[FeatureDstPort])
	assert.Zero(t, f[FeatureTCPFlags])
}

func TestFeatureNames(t *testing.T) {
	names := NewFeatureExtractor().FeatureNames()
	require.Len(t, names, NumFeatures)
	assert.Equal(t, "packet_size", names[FeaturePacketSize])
	assert.Equal(t, "payload_size", names[FeaturePayloadSize])

	names[0] = "changed"
	assert.Equal(t, "packet_size", NewFeatureExtractor().FeatureNames()[0])
}

func TestTCPFlags(t *testing.T) {
	assert.Equal(t, 0.0, tcpFlags(&layers.TCP{}))
	assert.Equal(t, 1.0, tcpFlags(&layers.TCP{SYN: true}))
	assert.Equal(t, 63.0, tcpFlags(&layers.TCP{SYN: true, ACK: true, FIN: true, RST: true, PSH: true, URG: true}))
}
