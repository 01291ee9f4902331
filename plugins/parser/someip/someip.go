// Package someip implements the SOME/IP parser plugin.
//
// The parser classifies the first payload-carrying packet of every TCP or
// UDP flow and records the verdict in the shared FlowRegistry under the
// canonical flow key. Later packets of the same flow, in either direction,
// are not offered to the classifier again.
package someip

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
	"firestige.xyz/someip/pkg/plugin"
	"firestige.xyz/someip/pkg/someip"
)

const Name = "someip"

// PayloadType tags OutputPackets produced by this parser.
const PayloadType = "someip"

// Config lists destination ports accepted by the port fallback.
// An empty list keeps the default for that transport.
type Config struct {
	UDPPorts []int `mapstructure:"udp_ports"`
	TCPPorts []int `mapstructure:"tcp_ports"`
}

// Parser classifies flows as SOME/IP.
//
// It implements plugin.Parser and plugin.FlowRegistryAware.
type Parser struct {
	classifier   *someip.Classifier
	flowRegistry plugin.FlowRegistry
}

// NewParser creates a parser using the default port policy.
func NewParser() *Parser {
	return &Parser{classifier: someip.NewClassifier(someip.DefaultPolicy())}
}

func (p *Parser) Name() string { return Name }

// Init builds the port policy from cfg.
func (p *Parser) Init(cfg map[string]any) error {
	var c Config
	if err := mapstructure.Decode(cfg, &c); err != nil {
		return errors.Wrap(err, "decode someip parser config")
	}
	policy, err := c.Policy()
	if err != nil {
		return err
	}
	p.classifier = someip.NewClassifier(policy)
	return nil
}

// Policy converts the configured port lists into a classifier policy.
func (c Config) Policy() (someip.Policy, error) {
	def := someip.DefaultPolicy()
	udp, err := portList(c.UDPPorts, def.UDPPorts())
	if err != nil {
		return someip.Policy{}, errors.Wrap(err, "udp_ports")
	}
	tcp, err := portList(c.TCPPorts, def.TCPPorts())
	if err != nil {
		return someip.Policy{}, errors.Wrap(err, "tcp_ports")
	}
	return someip.NewPolicy(udp, tcp), nil
}

func portList(ports []int, fallback []uint16) ([]uint16, error) {
	if len(ports) == 0 {
		return fallback, nil
	}
	out := make([]uint16, 0, len(ports))
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port %d out of range: %w", port, core.ErrConfigInvalid)
		}
		out = append(out, uint16(port))
	}
	return out, nil
}

func (p *Parser) Start(_ context.Context) error { return nil }

func (p *Parser) Stop(_ context.Context) error { return nil }

// SetFlowRegistry satisfies plugin.FlowRegistryAware.
func (p *Parser) SetFlowRegistry(registry plugin.FlowRegistry) {
	p.flowRegistry = registry
}

// Policy returns the active port policy.
func (p *Parser) Policy() someip.Policy {
	return p.classifier.Policy()
}

// CanHandle accepts TCP or UDP packets with payload whose flow has no verdict yet.
func (p *Parser) CanHandle(pkt *core.DecodedPacket) bool {
	if !pkt.HasTransport() || len(pkt.Payload) == 0 {
		return false
	}
	if p.flowRegistry != nil {
		if _, ok := p.flowRegistry.Get(plugin.FlowKeyOf(pkt).Canonical()); ok {
			return false
		}
	}
	return true
}

// Handle classifies the payload and records the verdict for the flow.
// The returned payload is the someip.Result.
func (p *Parser) Handle(pkt *core.DecodedPacket) (any, core.Labels, error) {
	logger := log.GetLogger()
	debug := logger.IsDebugEnabled()

	res := p.classifier.Classify(pkt.Payload, someip.Transport{
		Protocol: pkt.Transport.Protocol,
		DstPort:  pkt.Transport.DstPort,
	})

	if p.flowRegistry != nil {
		p.flowRegistry.Set(plugin.FlowKeyOf(pkt).Canonical(), res)
	}

	if debug {
		traceClassification(logger, pkt, res)
	}
	return res, labelsOf(res), nil
}

func traceClassification(logger log.Logger, pkt *core.DecodedPacket, res someip.Result) {
	l := logger.WithFields(map[string]interface{}{
		"src":   pkt.IP.SrcIP.String() + ":" + strconv.Itoa(int(pkt.Transport.SrcPort)),
		"dst":   pkt.IP.DstIP.String() + ":" + strconv.Itoa(int(pkt.Transport.DstPort)),
		"bytes": len(pkt.Payload),
	})
	if res.HasHeader {
		l = l.WithFields(map[string]interface{}{
			"message_id": fmt.Sprintf("0x%08X", res.Header.MessageID),
			"length":     res.Header.Length,
		})
	}
	if res.Kind == someip.KindServiceDiscovery {
		l.Debug("SOME/IP-SD currently not supported")
	}
	if res.Confirmed() {
		l.WithField("reason", res.Reason.String()).Debug("SOME/IP found")
		return
	}
	l.WithField("reason", res.Reason.String()).Debug("excluding SOME/IP")
}

func labelsOf(res someip.Result) core.Labels {
	labels := core.Labels{
		core.LabelSomeIPVerdict: res.Verdict.String(),
		core.LabelSomeIPReason:  res.Reason.String(),
	}
	if !res.HasHeader {
		return labels
	}
	h := res.Header
	labels[core.LabelSomeIPKind] = res.Kind.String()
	labels[core.LabelSomeIPMessageID] = fmt.Sprintf("0x%08X", h.MessageID)
	labels[core.LabelSomeIPServiceID] = fmt.Sprintf("0x%04X", h.ServiceID())
	labels[core.LabelSomeIPMethodID] = fmt.Sprintf("0x%04X", h.MethodID())
	labels[core.LabelSomeIPRequestID] = fmt.Sprintf("0x%08X", h.RequestID)
	labels[core.LabelSomeIPLength] = strconv.FormatUint(uint64(h.Length), 10)
	labels[core.LabelSomeIPInterfaceVersion] = strconv.Itoa(int(h.InterfaceVersion))
	labels[core.LabelSomeIPMessageType] = h.MessageType.String()
	labels[core.LabelSomeIPReturnCode] = h.ReturnCode.String()
	return labels
}
