// Package ofp turns forwarding decisions into OpenFlow 1.3 messages and
// hands them to the agents that speak to the datapaths.
package ofp

import (
	"context"

	"github.com/contiv/libOpenflow/openflow13"
	"github.com/contiv/libOpenflow/util"
	"github.com/pkg/errors"

	"github.com/packethost/topoctl/topology"
)

// Sink delivers an encoded message to whatever manages the datapath.
type Sink interface {
	Send(ctx context.Context, dpid topology.DPID, msg []byte) error
}

// Binding encodes rule installs, rule deletes and packet-outs and passes
// them to a Sink.
type Binding struct {
	sink   Sink
	cookie uint64
	table  uint8
}

// The Option type describes functions that operate on Binding during NewBinding.
type Option func(*Binding)

// Cookie tags every flow installed by the binding.
func Cookie(c uint64) Option {
	return func(b *Binding) {
		b.cookie = c
	}
}

// Table selects the flow table rules go into. Defaults to 0.
func Table(t uint8) Option {
	return func(b *Binding) {
		b.table = t
	}
}

// NewBinding returns a Binding that encodes messages and hands them to sink.
func NewBinding(sink Sink, opts ...Option) *Binding {
	b := &Binding{sink: sink}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InstallForwardingRule sends an OFPFC_ADD for m with out as the only action.
func (b *Binding) InstallForwardingRule(ctx context.Context, d topology.DPID, m topology.Match, out uint32, priority uint16) error {
	msg, err := EncodeFlowAdd(m, out, priority, b.cookie, b.table)
	if err != nil {
		return err
	}
	return errors.Wrapf(b.sink.Send(ctx, d, msg), "install on %s", d)
}

// DeleteForwardingRule sends a non-strict OFPFC_DELETE for m.
func (b *Binding) DeleteForwardingRule(ctx context.Context, d topology.DPID, m topology.Match) error {
	msg, err := EncodeFlowDelete(m, b.table)
	if err != nil {
		return err
	}
	return errors.Wrapf(b.sink.Send(ctx, d, msg), "delete on %s", d)
}

// SendPacketOut sends frame out of port.
func (b *Binding) SendPacketOut(ctx context.Context, d topology.DPID, port uint32, frame []byte) error {
	msg, err := EncodePacketOut(port, frame)
	if err != nil {
		return err
	}
	return errors.Wrapf(b.sink.Send(ctx, d, msg), "packet-out on %s", d)
}

func match(fm *openflow13.FlowMod, m topology.Match) {
	fm.Match.AddField(*openflow13.NewInPortField(m.InPort))
	fm.Match.AddField(*openflow13.NewEthSrcField(m.Src, nil))
	fm.Match.AddField(*openflow13.NewEthDstField(m.Dst, nil))
}

// EncodeFlowAdd encodes an add-or-replace FLOW_MOD forwarding m out of port out.
func EncodeFlowAdd(m topology.Match, out uint32, priority uint16, cookie uint64, table uint8) ([]byte, error) {
	fm := openflow13.NewFlowMod()
	fm.Command = openflow13.FC_ADD
	fm.TableId = table
	fm.Priority = priority
	fm.Cookie = cookie
	match(fm, m)

	apply := openflow13.NewInstrApplyActions()
	if err := apply.AddAction(openflow13.NewActionOutput(out), false); err != nil {
		return nil, errors.Wrap(err, "add output action")
	}
	fm.AddInstruction(apply)

	b, err := fm.MarshalBinary()
	return b, errors.Wrap(err, "marshal flow add")
}

// EncodeFlowDelete encodes a FLOW_MOD delete of every rule at least as
// specific as m, whatever its priority.
func EncodeFlowDelete(m topology.Match, table uint8) ([]byte, error) {
	fm := openflow13.NewFlowMod()
	fm.Command = openflow13.FC_DELETE
	fm.TableId = table
	match(fm, m)

	b, err := fm.MarshalBinary()
	return b, errors.Wrap(err, "marshal flow delete")
}

// EncodePacketOut encodes a PACKET_OUT sending frame out of port.
func EncodePacketOut(port uint32, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, topology.Malformed("empty packet-out frame")
	}
	po := openflow13.NewPacketOut()
	po.InPort = openflow13.P_CONTROLLER
	po.AddAction(openflow13.NewActionOutput(port))
	buf := util.NewBuffer(frame)
	po.Data = buf

	b, err := po.MarshalBinary()
	return b, errors.Wrap(err, "marshal packet-out")
}
