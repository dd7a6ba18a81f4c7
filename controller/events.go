package controller

import (
	"net"

	"github.com/packethost/topoctl/topology"
)

// Event is one of SwitchJoin, SwitchLeave, HostJoin, LinkAdd, LinkRemove,
// PortStateChange, PacketIn or CommunicationRequest. The set is closed.
type Event interface {
	// Validate reports a topology.ErrMalformedEvent when required fields are missing.
	Validate() error
	kind() string
}

// SwitchJoin announces a datapath and its ports.
type SwitchJoin struct {
	DPID  topology.DPID
	Ports []topology.Port
}

// SwitchLeave announces a datapath went away.
type SwitchLeave struct {
	DPID topology.DPID
}

// HostJoin announces a host, or a host moving, at Switch:Port.
type HostJoin struct {
	MAC    net.HardwareAddr
	IPv4   []net.IP
	Switch topology.DPID
	Port   uint32
}

// LinkAdd announces a switch to switch link.
type LinkAdd struct {
	Src     topology.DPID
	SrcPort uint32
	Dst     topology.DPID
	DstPort uint32
}

// LinkRemove announces a link went down. Flows through either end are purged.
type LinkRemove struct {
	Src topology.DPID
	Dst topology.DPID
}

// PortStateChange is informational.
type PortStateChange struct {
	DPID topology.DPID
	Port uint32
	Up   bool
}

// PacketIn is a frame a switch punted to the controller.
type PacketIn struct {
	DPID   topology.DPID
	InPort uint32
	Data   []byte
}

// CommunicationRequest asks for a path between the hosts owning Src and
// Dst. It is built by Controller.RequestCommunication, which waits for the
// result.
type CommunicationRequest struct {
	Src net.IP
	Dst net.IP

	reply chan communicationResult
}

type communicationResult struct {
	res *InstallResult
	err error
}

func (SwitchJoin) kind() string           { return "SwitchJoin" }
func (SwitchLeave) kind() string          { return "SwitchLeave" }
func (HostJoin) kind() string             { return "HostJoin" }
func (LinkAdd) kind() string              { return "LinkAdd" }
func (LinkRemove) kind() string           { return "LinkRemove" }
func (PortStateChange) kind() string      { return "PortStateChange" }
func (PacketIn) kind() string             { return "PacketIn" }
func (CommunicationRequest) kind() string { return "CommunicationRequest" }

// Validate requires a dpid.
func (e SwitchJoin) Validate() error {
	if e.DPID == 0 {
		return topology.Malformed("switch join without dpid")
	}
	return nil
}

// Validate requires a dpid.
func (e SwitchLeave) Validate() error {
	if e.DPID == 0 {
		return topology.Malformed("switch leave without dpid")
	}
	return nil
}

// Validate requires an ethernet MAC and a dpid.
func (e HostJoin) Validate() error {
	if len(e.MAC) != 6 {
		return topology.Malformed("host join with mac %q", e.MAC.String())
	}
	if e.Switch == 0 {
		return topology.Malformed("host %s joined without dpid", e.MAC)
	}
	return nil
}

// Validate requires two distinct ends.
func (e LinkAdd) Validate() error {
	if e.Src == 0 || e.Dst == 0 {
		return topology.Malformed("link add %s-%s missing an end", e.Src, e.Dst)
	}
	if e.Src == e.Dst {
		return topology.Malformed("self link on %s", e.Src)
	}
	return nil
}

// Validate requires both ends.
func (e LinkRemove) Validate() error {
	if e.Src == 0 || e.Dst == 0 {
		return topology.Malformed("link remove %s-%s missing an end", e.Src, e.Dst)
	}
	return nil
}

// Validate requires a dpid.
func (e PortStateChange) Validate() error {
	if e.DPID == 0 {
		return topology.Malformed("port state change without dpid")
	}
	return nil
}

// Validate requires a dpid and a frame.
func (e PacketIn) Validate() error {
	if e.DPID == 0 {
		return topology.Malformed("packet-in without dpid")
	}
	if len(e.Data) == 0 {
		return topology.Malformed("empty packet-in from %s", e.DPID)
	}
	return nil
}

// Validate requires two IPv4 addresses.
func (e CommunicationRequest) Validate() error {
	if e.Src.To4() == nil || e.Dst.To4() == nil {
		return topology.Malformed("communication needs ipv4 addresses, got %v and %v", e.Src, e.Dst)
	}
	return nil
}
