package topology

import (
	"sort"

	"github.com/samber/lo"
)

// Link is one switch to switch link with the port used at each end.
type Link struct {
	Src     DPID
	SrcPort uint32
	Dst     DPID
	DstPort uint32
}

// Edge is an undirected graph edge between two named nodes.
type Edge struct {
	From string
	To   string
}

// Snapshot is a point in time copy of the topology, safe to hold across
// blocking I/O while the dispatcher keeps mutating the live state.
type Snapshot struct {
	Nodes    []string
	Edges    []Edge
	Switches []Switch
	Hosts    []Host
	Links    []Link
	Flows    []Flow
}

// Snapshot copies the current state out under the read lock.
func (t *Topology) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		Nodes: lo.Map(t.graph.nodes(), func(n Node, _ int) string { return n.String() }),
		Edges: lo.Map(t.graph.edges(), func(e [2]Node, _ int) Edge {
			return Edge{From: e[0].String(), To: e[1].String()}
		}),
		Flows: t.flowsLocked(),
	}

	dpids := lo.Keys(t.switches)
	sort.Slice(dpids, func(i, j int) bool { return dpids[i] < dpids[j] })
	for _, d := range dpids {
		s.Switches = append(s.Switches, *t.switches[d].clone())
	}

	for _, m := range t.order {
		s.Hosts = append(s.Hosts, *t.hosts[m].clone())
	}

	for _, src := range lo.Keys(t.ports) {
		for dst, p := range t.ports[src] {
			// each link shows up once, reported from its lower dpid end
			if src > dst {
				continue
			}
			back, ok := t.ports[dst][src]
			if !ok {
				continue
			}
			s.Links = append(s.Links, Link{Src: src, SrcPort: p, Dst: dst, DstPort: back})
		}
	}
	sort.Slice(s.Links, func(i, j int) bool {
		if s.Links[i].Src != s.Links[j].Src {
			return s.Links[i].Src < s.Links[j].Src
		}
		return s.Links[i].Dst < s.Links[j].Dst
	})

	return s
}

// PortMap returns a copy of the switch to switch egress port map.
func (t *Topology) PortMap() map[DPID]map[DPID]uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[DPID]map[DPID]uint32, len(t.ports))
	for src, row := range t.ports {
		out[src] = lo.Assign(row)
	}
	return out
}
