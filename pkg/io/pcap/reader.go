// Package pcap turns captured network packets into feature vectors.
package pcap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	gio "github.com/hed1ad/goguardml/pkg/io"
)

var (
	_ gio.Reader           = (*Reader)(nil)
	_ gio.FeatureExtractor = (*FeatureExtractor)(nil)
)

// Reader reads packets from PCAP files or live interfaces.
type Reader struct {
	handle    *pcap.Handle
	extractor *FeatureExtractor
	logger    *slog.Logger
}

// NewFileReader creates a reader for PCAP files.
func NewFileReader(filename string, logger *slog.Logger) (*Reader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, err
	}
	return newReader(handle, logger), nil
}

// NewLiveReader creates a reader for live packet capture.
func NewLiveReader(iface string, snaplen int32, promisc bool, timeout time.Duration, logger *slog.Logger) (*Reader, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}
	return newReader(handle, logger), nil
}

func newReader(handle *pcap.Handle, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{
		handle:    handle,
		extractor: NewFeatureExtractor(),
		logger:    logger,
	}
}

// Extractor returns the extractor that names this reader's features.
func (r *Reader) Extractor() *FeatureExtractor {
	return r.extractor
}

// Read returns all packets as feature vectors.
func (r *Reader) Read() ([][]float64, error) {
	if r.handle == nil {
		return nil, errors.New("reader not initialized")
	}

	var data [][]float64
	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	for packet := range source.Packets() {
		data = append(data, r.extractor.Extract(packet))
	}

	r.logger.Debug("pcap read complete", "packets", len(data))
	return data, nil
}

// Stream returns a channel of feature vectors for real-time processing.
func (r *Reader) Stream(ctx context.Context) (<-chan []float64, error) {
	if r.handle == nil {
		return nil, errors.New("reader not initialized")
	}

	out := make(chan []float64, 1000)
	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-source.Packets():
				if !ok {
					return
				}
				select {
				case out <- r.extractor.Extract(packet):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.handle != nil {
		r.handle.Close()
		r.handle = nil
	}
	return nil
}

// Feature vector positions.
const (
	FeaturePacketSize = iota
	FeatureInterArrival
	FeatureProtocol
	FeatureSrcPort
	FeatureDstPort
	FeatureTCPFlags
	FeatureTTL
	FeaturePayloadSize

	NumFeatures
)

var featureNames = [NumFeatures]string{
	FeaturePacketSize:   "packet_size",
	FeatureInterArrival: "inter_arrival_time",
	FeatureProtocol:     "protocol",
	FeatureSrcPort:      "src_port",
	FeatureDstPort:      "dst_port",
	FeatureTCPFlags:     "tcp_flags",
	FeatureTTL:          "ip_ttl",
	FeaturePayloadSize:  "payload_size",
}

// FeatureExtractor extracts numerical features from network packets. It is
// stateful (inter-arrival time) and not safe for concurrent use.
type FeatureExtractor struct {
	lastTimestamp time.Time
}

// NewFeatureExtractor creates a new packet feature extractor.
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract converts a packet to a vector of NumFeatures values.
func (e *FeatureExtractor) Extract(packet gopacket.Packet) []float64 {
	features := make([]float64, NumFeatures)
	features[FeaturePacketSize] = float64(len(packet.Data()))

	if md := packet.Metadata(); md != nil && !md.Timestamp.IsZero() {
		if !e.lastTimestamp.IsZero() {
			features[FeatureInterArrival] = md.Timestamp.Sub(e.lastTimestamp).Seconds()
		}
		e.lastTimestamp = md.Timestamp
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		features[FeatureProtocol] = float64(layers.IPProtocolTCP)
		features[FeatureSrcPort] = float64(tcp.SrcPort)
		features[FeatureDstPort] = float64(tcp.DstPort)
		features[FeatureTCPFlags] = tcpFlags(tcp)
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		features[FeatureProtocol] = float64(layers.IPProtocolUDP)
		features[FeatureSrcPort] = float64(udp.SrcPort)
		features[FeatureDstPort] = float64(udp.DstPort)
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		features[FeatureProtocol] = float64(layers.IPProtocolICMPv4)
	}

	if ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		features[FeatureTTL] = float64(ip.TTL)
	}

	if app := packet.ApplicationLayer(); app != nil {
		features[FeaturePayloadSize] = float64(len(app.Payload()))
	}

	return features
}

// FeatureNames returns the names of extracted features.
func (e *FeatureExtractor) FeatureNames() []string {
	return append([]string(nil), featureNames[:]...)
}

// tcpFlags packs SYN, ACK, FIN, RST, PSH, URG into bits 0..5.
func tcpFlags(tcp *layers.TCP) float64 {
	var bits int
	for i, set := range []bool{tcp.SYN, tcp.ACK, tcp.FIN, tcp.RST, tcp.PSH, tcp.URG} {
		if set {
			bits |= 1 << i
		}
	}
	return float64(bits)
}
