package topoctl

import (
	"net"
	"sort"

	"github.com/samber/lo"

	"github.com/packethost/topoctl/topology"
)

// FromRule converts a planned rule to its wire form.
func FromRule(r topology.Rule) Rule {
	return Rule{
		DPID:   uint64(r.Switch),
		InPort: r.Match.InPort,
		Src:    r.Match.Src.String(),
		Dst:    r.Match.Dst.String(),
		Out:    r.Out,
	}
}

func FromFlow(f topology.Flow) Rule {
	return FromRule(topology.Rule{Switch: f.Switch, Match: f.Match, Out: f.Out})
}

func FromFlows(fs []topology.Flow) []Rule {
	return lo.Map(fs, func(f topology.Flow, _ int) Rule { return FromFlow(f) })
}

func FromPath(path []topology.DPID) []uint64 {
	return lo.Map(path, func(d topology.DPID, _ int) uint64 { return uint64(d) })
}

func FromHost(h *topology.Host) *Host {
	return &Host{
		Name: h.Name(),
		MAC:  h.MAC.String(),
		IPv4: lo.Map(h.IPv4, func(ip net.IP, _ int) string { return ip.String() }),
		DPID: uint64(h.Attachment.Switch),
		Port: h.Attachment.Port,
	}
}

func fromPorts(ps []topology.Port) []Port {
	return lo.Map(ps, func(p topology.Port, _ int) Port {
		out := Port{No: p.No, Name: p.Name, Up: p.Up}
		if len(p.HWAddr) > 0 {
			out.HWAddr = p.HWAddr.String()
		}
		return out
	})
}

// FromSnapshot converts a topology snapshot to its wire form.
func FromSnapshot(s topology.Snapshot) *Snapshot {
	out := &Snapshot{
		Nodes: s.Nodes,
		Edges: lo.Map(s.Edges, func(e topology.Edge, _ int) Edge { return Edge{From: e.From, To: e.To} }),
		Links: lo.Map(s.Links, func(l topology.Link, _ int) Link {
			return Link{Src: uint64(l.Src), SrcPort: l.SrcPort, Dst: uint64(l.Dst), DstPort: l.DstPort}
		}),
		Flows: FromFlows(s.Flows),
	}
	for i := range s.Switches {
		sw := &s.Switches[i]
		neighbors := lo.Map(lo.Keys(sw.Neighbors), func(d topology.DPID, _ int) uint64 { return uint64(d) })
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })
		out.Switches = append(out.Switches, Switch{
			DPID:      uint64(sw.DPID),
			Name:      sw.Name(),
			Ports:     fromPorts(sw.Ports),
			Neighbors: neighbors,
		})
	}
	for i := range s.Hosts {
		out.Hosts = append(out.Hosts, *FromHost(&s.Hosts[i]))
	}
	return out
}

// ToDPIDs converts wire datapath ids.
func ToDPIDs(ds []uint64) []topology.DPID {
	return lo.Map(ds, func(d uint64, _ int) topology.DPID { return topology.DPID(d) })
}
