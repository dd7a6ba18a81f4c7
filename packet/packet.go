// Package packet classifies frames punted to the controller and builds the
// ARP frames the controller sends back out.
package packet

import (
	"encoding/binary"
	"net"

	"github.com/contiv/libOpenflow/protocol"
	"github.com/pkg/errors"

	"github.com/packethost/topoctl/topology"
)

const (
	ethHeaderLen  = 14
	vlanTagLen    = 4
	arpIPv4Len    = 28
	etherTypeVLAN = 0x8100
)

// Kind is the classification of a decoded frame.
type Kind int

const (
	Ignored Kind = iota
	ARPRequest
	ARPReply
)

func (k Kind) String() string {
	switch k {
	case ARPRequest:
		return "arp-request"
	case ARPReply:
		return "arp-reply"
	}
	return "ignored"
}

// ARP is the IPv4 over Ethernet payload of an ARP frame.
type ARP struct {
	SenderMAC net.HardwareAddr
	SenderIP  net.IP
	TargetMAC net.HardwareAddr
	TargetIP  net.IP
}

// Gratuitous reports whether the sender is announcing its own address.
func (a *ARP) Gratuitous() bool {
	return a.SenderIP.Equal(a.TargetIP)
}

// Frame is what the controller cares about in a punted frame.
type Frame struct {
	Kind      Kind
	Src       net.HardwareAddr
	Dst       net.HardwareAddr
	EtherType uint16
	ARP       *ARP
}

// Decode classifies raw. Frames too short to carry what their ether type
// announces are reported as malformed events.
func Decode(raw []byte) (f *Frame, err error) {
	if len(raw) < ethHeaderLen {
		return nil, topology.Malformed("frame of %d bytes", len(raw))
	}

	offset := ethHeaderLen
	etherType := binary.BigEndian.Uint16(raw[12:14])
	if etherType == etherTypeVLAN {
		if len(raw) < ethHeaderLen+vlanTagLen {
			return nil, topology.Malformed("vlan frame of %d bytes", len(raw))
		}
		offset += vlanTagLen
		etherType = binary.BigEndian.Uint16(raw[16:18])
	}
	if etherType != protocol.ARP_MSG {
		return &Frame{
			Kind:      Ignored,
			Dst:       net.HardwareAddr(append([]byte(nil), raw[0:6]...)),
			Src:       net.HardwareAddr(append([]byte(nil), raw[6:12]...)),
			EtherType: etherType,
		}, nil
	}
	if len(raw) < offset+arpIPv4Len {
		return nil, topology.Malformed("arp frame of %d bytes", len(raw))
	}

	defer func() {
		if r := recover(); r != nil {
			f, err = nil, topology.Malformed("undecodable frame: %v", r)
		}
	}()

	eth := protocol.NewEthernet()
	if err := eth.UnmarshalBinary(raw); err != nil {
		return nil, topology.Malformed("ethernet: %v", err)
	}
	a, ok := eth.Data.(*protocol.ARP)
	if !ok {
		return nil, topology.Malformed("arp frame carries %T", eth.Data)
	}
	if a.HWLength != 6 || a.ProtoLength != 4 {
		return nil, topology.Malformed("arp hw len %d proto len %d", a.HWLength, a.ProtoLength)
	}

	f = &Frame{
		Src:       eth.HWSrc,
		Dst:       eth.HWDst,
		EtherType: eth.Ethertype,
		ARP: &ARP{
			SenderMAC: a.HWSrc,
			SenderIP:  a.IPSrc,
			TargetMAC: a.HWDst,
			TargetIP:  a.IPDst,
		},
	}
	switch a.Operation {
	case protocol.Type_Request:
		f.Kind = ARPRequest
	case protocol.Type_Reply:
		f.Kind = ARPReply
	default:
		f.Kind = Ignored
	}
	return f, nil
}

// Reply builds the unicast ARP reply telling requester that resolvedIP is at
// resolvedMAC.
func Reply(requesterMAC net.HardwareAddr, requesterIP net.IP, resolvedMAC net.HardwareAddr, resolvedIP net.IP) ([]byte, error) {
	return build(protocol.Type_Reply, resolvedMAC, resolvedIP, requesterMAC, requesterIP, requesterMAC)
}

// Request builds a broadcast ARP request for targetIP.
func Request(senderMAC net.HardwareAddr, senderIP, targetIP net.IP) ([]byte, error) {
	broadcast := net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	return build(protocol.Type_Request, senderMAC, senderIP, net.HardwareAddr{0, 0, 0, 0, 0, 0}, targetIP, broadcast)
}

func build(op int, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP, ethDst net.HardwareAddr) ([]byte, error) {
	sip, dip := srcIP.To4(), dstIP.To4()
	if sip == nil || dip == nil {
		return nil, topology.Malformed("arp needs ipv4 addresses, got %v and %v", srcIP, dstIP)
	}
	if len(srcMAC) != 6 || len(dstMAC) != 6 {
		return nil, topology.Malformed("arp needs ethernet addresses, got %v and %v", srcMAC, dstMAC)
	}

	a, err := protocol.NewARP(op)
	if err != nil {
		return nil, errors.Wrap(err, "new arp")
	}
	a.HWSrc = srcMAC
	a.IPSrc = sip
	a.HWDst = dstMAC
	a.IPDst = dip

	eth := protocol.NewEthernet()
	eth.HWDst = ethDst
	eth.HWSrc = srcMAC
	eth.Ethertype = protocol.ARP_MSG
	eth.Data = a

	b, err := eth.MarshalBinary()
	if err != nil {
		return nil, errors.Wrapf(err, "marshal arp op %d", op)
	}
	return b, nil
}
