package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/pkg/someip"
	parser "firestige.xyz/someip/plugins/parser/someip"
)

type inspectOptions struct {
	proto string
	port  uint16
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <hex-payload>",
		Short: "Classify a single transport payload given as hex",
		Long: `Inspect decodes a transport payload written as hex (whitespace, colons and a
0x prefix are ignored), shows the SOME/IP header fields, the outcome of each
structural check and the final verdict.

Examples:
  someip inspect ffff000000000008deadbeef01010100 --proto udp --port 9999
  someip inspect "12 34 00 01 00 00 00 08 00 00 00 01 01 01 00 00" --port 30501`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&o.proto, "proto", "udp", "transport protocol (udp|tcp)")
	cmd.Flags().Uint16Var(&o.port, "port", someip.PortDefaultServer, "destination port")
	return cmd
}

func (o *inspectOptions) run(cmd *cobra.Command, opts *globalOptions, input string) error {
	payload, err := parseHex(input)
	if err != nil {
		return err
	}
	var proto uint8
	switch strings.ToLower(o.proto) {
	case "udp":
		proto = someip.ProtocolUDP
	case "tcp":
		proto = someip.ProtocolTCP
	default:
		return fmt.Errorf("unknown --proto %q: %w", o.proto, core.ErrConfigInvalid)
	}

	policy, err := parser.Config{
		UDPPorts: opts.cfg.Classifier.UDPPorts,
		TCPPorts: opts.cfg.Classifier.TCPPorts,
	}.Policy()
	if err != nil {
		return err
	}
	res := someip.NewClassifier(policy).Classify(payload, someip.Transport{Protocol: proto, DstPort: o.port})

	out := cmd.OutOrStdout()
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"payload", fmt.Sprintf("%d bytes, %s/%d", len(payload), core.TransportName(proto), o.port)})
	if res.HasHeader {
		h := res.Header
		t.AppendRows([]table.Row{
			{"message_id", fmt.Sprintf("0x%08X (service 0x%04X, method 0x%04X)", h.MessageID, h.ServiceID(), h.MethodID())},
			{"length", fmt.Sprintf("%d (message %d bytes)", h.Length, h.MessageLen())},
			{"request_id", fmt.Sprintf("0x%08X (client 0x%04X, session 0x%04X)", h.RequestID, h.ClientID(), h.SessionID())},
			{"protocol_version", h.ProtocolVersion},
			{"interface_version", h.InterfaceVersion},
			{"message_type", fmt.Sprintf("0x%02X %s", uint8(h.MessageType), h.MessageType)},
			{"return_code", fmt.Sprintf("0x%02X %s", uint8(h.ReturnCode), h.ReturnCode)},
			{"kind", res.Kind},
		})
	}
	t.AppendSeparator()
	for _, g := range someip.StructuralGates() {
		t.AppendRow(table.Row{"check " + g.Name, passFail(g.Pass(payload))})
	}
	t.Render()

	verdict := color.New(color.FgYellow).Sprint("EXCLUDED")
	if res.Confirmed() {
		verdict = color.New(color.FgGreen, color.Bold).Sprint("CONFIRMED")
	}
	fmt.Fprintf(out, "%s (%s)\n", verdict, res.Reason)
	return nil
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex payload")
	}
	return b, nil
}
