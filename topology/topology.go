// Package topology is the control plane's model of the network: a registry
// of switches and hosts, the undirected graph over them, the per-switch
// port map, and the table of flow rules already installed.
//
// Mutating methods are meant to be called from a single dispatcher
// goroutine. Read methods take a read lock and hand back copies so they can
// be used from request handlers running concurrently with the dispatcher.
package topology

import (
	"net"
	"sync"

	"github.com/packethost/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"inet.af/netaddr"
)

// Topology owns the registry, graph, port map and flow table.
type Topology struct {
	gauges *prometheus.GaugeVec
	logger *log.Logger

	mu       sync.RWMutex
	switches map[DPID]*Switch
	hosts    map[mac]*Host
	order    []mac // host discovery order, first seen first
	graph    *graph
	ports    map[DPID]map[DPID]uint32
	flows    map[FlowKey]uint32
}

// The Option type describes functions that operate on Topology during New.
type Option func(*Topology)

// New returns an empty Topology.
func New(options ...Option) *Topology {
	t := &Topology{
		switches: map[DPID]*Switch{},
		hosts:    map[mac]*Host{},
		graph:    newGraph(),
		ports:    map[DPID]map[DPID]uint32{},
		flows:    map[FlowKey]uint32{},
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Gauges sets the gauge vector, labelled by "kind", used to export the
// number of switches, hosts, links and flows.
func Gauges(g *prometheus.GaugeVec) Option {
	return func(t *Topology) {
		t.gauges = g
	}
}

// Logger sets the logger used to report non-error but exceptional things.
func Logger(l log.Logger) Option {
	return func(t *Topology) {
		t.logger = &l
	}
}

// observe must be called with mu held.
func (t *Topology) observe() {
	if t.gauges == nil {
		return
	}
	t.gauges.With(prometheus.Labels{"kind": "switch"}).Set(float64(len(t.switches)))
	t.gauges.With(prometheus.Labels{"kind": "host"}).Set(float64(len(t.hosts)))
	t.gauges.With(prometheus.Labels{"kind": "link"}).Set(float64(t.linkCount()))
	t.gauges.With(prometheus.Labels{"kind": "flow"}).Set(float64(len(t.flows)))
}

func (t *Topology) linkCount() int {
	n := 0
	for _, peers := range t.ports {
		n += len(peers)
	}
	return n / 2
}

func (t *Topology) debug(msg string, args ...interface{}) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

// AddSwitch registers a switch. It returns false, leaving the existing entry
// untouched, when the switch is already registered.
func (t *Topology) AddSwitch(d DPID, ports []Port) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.switches[d]; ok {
		return false
	}

	sw := &Switch{
		DPID:      d,
		Ports:     append([]Port(nil), ports...),
		Neighbors: map[DPID]struct{}{},
	}
	t.switches[d] = sw
	t.graph.addNode(switchNode(d))

	// hosts and links may have been announced before the switch itself
	for _, m := range t.order {
		if h := t.hosts[m]; h.Attachment.Switch == d {
			t.graph.addEdge(switchNode(d), hostNode(m))
		}
	}
	for peer := range t.ports[d] {
		if _, ok := t.switches[peer]; ok {
			sw.Neighbors[peer] = struct{}{}
			t.switches[peer].Neighbors[d] = struct{}{}
		}
	}

	t.observe()
	t.debug("switch added", "dpid", d.String(), "nodes", t.graph.count())
	return true
}

// PortRef names one port of one switch.
type PortRef struct {
	Switch DPID
	Port   uint32
}

// RemoveSwitch drops the switch, its graph node and incident edges, its port
// map rows and columns and the flow records it held. It returns the ports on
// neighboring switches that faced the removed switch, and false if the
// switch was not registered.
func (t *Topology) RemoveSwitch(d DPID) ([]PortRef, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, registered := t.switches[d]
	delete(t.switches, d)
	t.graph.removeNode(switchNode(d))

	var facing []PortRef
	for peer, row := range t.ports {
		if p, ok := row[d]; ok {
			facing = append(facing, PortRef{Switch: peer, Port: p})
			delete(row, d)
		}
		if sw, ok := t.switches[peer]; ok {
			delete(sw.Neighbors, d)
		}
	}
	delete(t.ports, d)

	for k := range t.flows {
		if k.Switch == d {
			delete(t.flows, k)
		}
	}

	t.observe()
	return facing, registered
}

// AddHost records or overwrites a host. The most recent attachment wins. It
// reports whether the host moved from a previously recorded attachment.
func (t *Topology) AddHost(hw net.HardwareAddr, at Attachment, ipv4 []net.IP) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := keyOf(hw)
	moved := false
	if old, ok := t.hosts[m]; ok {
		if old.Attachment != at {
			moved = true
			t.graph.removeEdge(switchNode(old.Attachment.Switch), hostNode(m))
		}
	} else {
		t.order = append(t.order, m)
	}

	h := &Host{
		MAC:        append(net.HardwareAddr(nil), hw...),
		IPv4:       make([]net.IP, 0, len(ipv4)),
		Attachment: at,
	}
	for _, ip := range ipv4 {
		if ip4 := ip.To4(); ip4 != nil {
			h.IPv4 = append(h.IPv4, ip4)
		}
	}
	t.hosts[m] = h
	t.graph.addEdge(switchNode(at.Switch), hostNode(m))

	t.observe()
	return moved
}

// HostByMAC returns a copy of the host with the given MAC address.
func (t *Topology) HostByMAC(hw net.HardwareAddr) (*Host, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.hosts[keyOf(hw)]
	if !ok {
		return nil, notFound(ReasonHostUnresolved, "mac %s", hw)
	}
	return h.clone(), nil
}

// HostByIP returns a copy of the first host, in discovery order, that owns
// ip. Duplicate addresses across hosts are not detected; the earliest
// discovered host wins.
func (t *Topology) HostByIP(ip net.IP) (*Host, error) {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
	}
	want, ok := netaddr.FromStdIP(ip)
	if !ok {
		return nil, Malformed("invalid ip %q", ip.String())
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.order {
		h := t.hosts[m]
		for _, hip := range h.IPv4 {
			if got, ok := netaddr.FromStdIP(hip); ok && got == want {
				return h.clone(), nil
			}
		}
	}
	return nil, notFound(ReasonHostUnresolved, "ip %s", ip)
}

// Switch returns a copy of the registered switch.
func (t *Topology) Switch(d DPID) (*Switch, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sw, ok := t.switches[d]
	if !ok {
		return nil, false
	}
	return sw.clone(), true
}

// SetPortState records the link state of a switch port. Unknown ports are
// added. It reports whether the recorded state changed.
func (t *Topology) SetPortState(d DPID, port uint32, up bool) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sw, ok := t.switches[d]
	if !ok {
		return false, notFound(ReasonSwitchAbsent, "dpid %s", d)
	}
	for i := range sw.Ports {
		if sw.Ports[i].No == port {
			if sw.Ports[i].Up == up {
				return false, nil
			}
			sw.Ports[i].Up = up
			return true, nil
		}
	}
	sw.Ports = append(sw.Ports, Port{No: port, Up: up})
	return true, nil
}

// AddLink records a switch to switch link. The graph edge and both port map
// entries are always written; announcing the same link again overwrites it.
func (t *Topology) AddLink(src DPID, srcPort uint32, dst DPID, dstPort uint32) error {
	if src == dst {
		return Malformed("self link on %s", src)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a, aok := t.switches[src]
	b, bok := t.switches[dst]
	if aok && bok {
		a.Neighbors[dst] = struct{}{}
		b.Neighbors[src] = struct{}{}
	}

	t.graph.addEdge(switchNode(src), switchNode(dst))
	if t.ports[src] == nil {
		t.ports[src] = map[DPID]uint32{}
	}
	if t.ports[dst] == nil {
		t.ports[dst] = map[DPID]uint32{}
	}
	t.ports[src][dst] = srcPort
	t.ports[dst][src] = dstPort

	t.observe()
	return nil
}

// LinkRemoval reports what RemoveLink found and dropped.
type LinkRemoval struct {
	Edge    bool
	Forward *PortRef // src's port toward dst
	Reverse *PortRef // dst's port toward src
}

// RemoveLink drops the graph edge and both port map entries, each one
// independently of whether the others existed.
func (t *Topology) RemoveLink(src, dst DPID) LinkRemoval {
	t.mu.Lock()
	defer t.mu.Unlock()

	var r LinkRemoval
	r.Edge = t.graph.removeEdge(switchNode(src), switchNode(dst))
	if p, ok := t.ports[src][dst]; ok {
		r.Forward = &PortRef{Switch: src, Port: p}
		delete(t.ports[src], dst)
	}
	if p, ok := t.ports[dst][src]; ok {
		r.Reverse = &PortRef{Switch: dst, Port: p}
		delete(t.ports[dst], src)
	}
	if sw, ok := t.switches[src]; ok {
		delete(sw.Neighbors, dst)
	}
	if sw, ok := t.switches[dst]; ok {
		delete(sw.Neighbors, src)
	}

	t.observe()
	return r
}

// EgressPort returns the port on from that leads to to.
func (t *Topology) EgressPort(from, to DPID) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.ports[from][to]
	return p, ok
}

// Attachment returns where the host with the given MAC is plugged in.
func (t *Topology) Attachment(hw net.HardwareAddr) (Attachment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.hosts[keyOf(hw)]
	if !ok {
		return Attachment{}, false
	}
	return h.Attachment, true
}

// HasNode reports whether the device is a node of the graph.
func (t *Topology) HasNode(d Device) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch d := d.(type) {
	case *Switch:
		return t.graph.hasNode(switchNode(d.DPID))
	case *Host:
		return t.graph.hasNode(hostNode(keyOf(d.MAC)))
	}
	return false
}

// HasEdge reports whether the two devices are adjacent in the graph.
func (t *Topology) HasEdge(a, b Device) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.graph.hasEdge(nodeOf(a), nodeOf(b))
}

// NodeCount returns the number of graph nodes.
func (t *Topology) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.graph.count()
}

func nodeOf(d Device) Node {
	switch d := d.(type) {
	case *Switch:
		return switchNode(d.DPID)
	case *Host:
		return hostNode(keyOf(d.MAC))
	}
	return Node{}
}
