package topology

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// DPID is an OpenFlow datapath identifier.
type DPID uint64

func (d DPID) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

type mac string

// ParseMAC normalizes a hardware address into the form used as a registry key.
func ParseMAC(s string) (net.HardwareAddr, error) {
	m, err := net.ParseMAC(strings.TrimSpace(strings.ToLower(s)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse mac")
	}
	return m, nil
}

func keyOf(hw net.HardwareAddr) mac {
	return mac(hw.String())
}

// Port is a switch port as announced on switch join.
type Port struct {
	No     uint32           `json:"port_no"`
	HWAddr net.HardwareAddr `json:"hw_addr,omitempty"`
	Name   string           `json:"name,omitempty"`
	Up     bool             `json:"up"`
}

// Attachment is where a host plugs into the network.
type Attachment struct {
	Switch DPID   `json:"dpid"`
	Port   uint32 `json:"port_no"`
}

// Device is either a *Switch or a *Host.
type Device interface {
	Name() string
	device()
}

// Switch is a registered datapath.
type Switch struct {
	DPID  DPID
	Ports []Port
	// Neighbors is informational, the graph holds the authoritative adjacency.
	Neighbors map[DPID]struct{}
}

func (s *Switch) Name() string { return fmt.Sprintf("switch_%d", uint64(s.DPID)) }
func (*Switch) device()        {}

func (s *Switch) clone() *Switch {
	c := &Switch{
		DPID:      s.DPID,
		Ports:     make([]Port, len(s.Ports)),
		Neighbors: make(map[DPID]struct{}, len(s.Neighbors)),
	}
	copy(c.Ports, s.Ports)
	for n := range s.Neighbors {
		c.Neighbors[n] = struct{}{}
	}
	return c
}

// Host is an end station identified by its MAC address.
type Host struct {
	MAC        net.HardwareAddr
	IPv4       []net.IP
	Attachment Attachment
}

func (h *Host) Name() string { return "host_" + h.MAC.String() }
func (*Host) device()        {}

func (h *Host) clone() *Host {
	c := &Host{
		MAC:        append(net.HardwareAddr(nil), h.MAC...),
		IPv4:       make([]net.IP, len(h.IPv4)),
		Attachment: h.Attachment,
	}
	for i, ip := range h.IPv4 {
		c.IPv4[i] = append(net.IP(nil), ip...)
	}
	return c
}
