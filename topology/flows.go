package topology

import (
	"fmt"
	"net"
	"sort"
)

// Match selects the traffic a forwarding rule applies to.
type Match struct {
	InPort uint32
	Src    net.HardwareAddr
	Dst    net.HardwareAddr
}

func (m Match) String() string {
	return fmt.Sprintf("in_port=%d,dl_src=%s,dl_dst=%s", m.InPort, m.Src, m.Dst)
}

// Rule is one directional forwarding rule at one switch.
type Rule struct {
	Switch DPID
	Match  Match
	Out    uint32
	// Hop is the index of Switch along the planned path.
	Hop int
}

func (r Rule) String() string {
	return fmt.Sprintf("dpid=%s %s actions=output:%d", r.Switch, r.Match, r.Out)
}

// FlowKey identifies an installed rule.
type FlowKey struct {
	Switch DPID
	InPort uint32
	Src    mac
	Dst    mac
}

func (r Rule) key() FlowKey {
	return FlowKey{Switch: r.Switch, InPort: r.Match.InPort, Src: keyOf(r.Match.Src), Dst: keyOf(r.Match.Dst)}
}

// Flow is a recorded rule as returned by Flows.
type Flow struct {
	Switch DPID
	Match  Match
	Out    uint32
}

func (k FlowKey) flow(out uint32) Flow {
	src, _ := net.ParseMAC(string(k.Src))
	dst, _ := net.ParseMAC(string(k.Dst))
	return Flow{
		Switch: k.Switch,
		Match:  Match{InPort: k.InPort, Src: src, Dst: dst},
		Out:    out,
	}
}

// RecordFlow remembers that r was installed. Recording the same match again
// replaces the egress port.
func (t *Topology) RecordFlow(r Rule) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flows[r.key()] = r.Out
	t.observe()
}

// LookupFlow returns the egress port of the installed rule for the match.
func (t *Topology) LookupFlow(d DPID, m Match) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out, ok := t.flows[Rule{Switch: d, Match: m}.key()]
	return out, ok
}

// DeleteFlow forgets the rule for the match. It reports whether one existed.
func (t *Topology) DeleteFlow(d DPID, m Match) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := Rule{Switch: d, Match: m}.key()
	if _, ok := t.flows[k]; !ok {
		return false
	}
	delete(t.flows, k)
	t.observe()
	return true
}

// FlowsOnPort returns the recorded rules at p.Switch that enter or leave
// through p.Port.
func (t *Topology) FlowsOnPort(p PortRef) []Flow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Flow
	for k, egress := range t.flows {
		if k.Switch == p.Switch && (k.InPort == p.Port || egress == p.Port) {
			out = append(out, k.flow(egress))
		}
	}
	sortFlows(out)
	return out
}

// Flows returns every recorded rule.
func (t *Topology) Flows() []Flow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.flowsLocked()
}

func (t *Topology) flowsLocked() []Flow {
	out := make([]Flow, 0, len(t.flows))
	for k, egress := range t.flows {
		out = append(out, k.flow(egress))
	}
	sortFlows(out)
	return out
}

func sortFlows(fs []Flow) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Switch != b.Switch {
			return a.Switch < b.Switch
		}
		if a.Match.InPort != b.Match.InPort {
			return a.Match.InPort < b.Match.InPort
		}
		if s1, s2 := a.Match.Src.String(), b.Match.Src.String(); s1 != s2 {
			return s1 < s2
		}
		return a.Match.Dst.String() < b.Match.Dst.String()
	})
}
