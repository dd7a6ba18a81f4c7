package topology

import "net"

// PlanPath computes the forwarding rules that connect two hosts in both
// directions along the shortest switch path between their attachments.
//
// Hosts on the same switch get exactly two rules using their own ports.
// Otherwise each switch on the path gets two rules: one for src->dst
// traffic and one for the reverse direction.
func (t *Topology) PlanPath(srcMAC, dstMAC net.HardwareAddr) ([]Rule, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src, ok := t.hosts[keyOf(srcMAC)]
	if !ok {
		return nil, notFound(ReasonHostUnresolved, "mac %s", srcMAC)
	}
	dst, ok := t.hosts[keyOf(dstMAC)]
	if !ok {
		return nil, notFound(ReasonHostUnresolved, "mac %s", dstMAC)
	}

	sa, da := src.Attachment, dst.Attachment
	if _, ok := t.switches[sa.Switch]; !ok {
		return nil, notFound(ReasonHostUnreachable, "switch %s of %s is not registered", sa.Switch, srcMAC)
	}
	if _, ok := t.switches[da.Switch]; !ok {
		return nil, notFound(ReasonHostUnreachable, "switch %s of %s is not registered", da.Switch, dstMAC)
	}

	path, err := t.shortestPath(sa.Switch, da.Switch)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, notFound(ReasonNoPath, "%s to %s", sa.Switch, da.Switch)
	}

	fwd := func(in uint32) Match { return Match{InPort: in, Src: src.MAC, Dst: dst.MAC} }
	rev := func(in uint32) Match { return Match{InPort: in, Src: dst.MAC, Dst: src.MAC} }

	if len(path) == 1 {
		d := path[0]
		return []Rule{
			{Switch: d, Match: fwd(sa.Port), Out: da.Port},
			{Switch: d, Match: rev(da.Port), Out: sa.Port},
		}, nil
	}

	port := func(from, to DPID) (uint32, error) {
		p, ok := t.ports[from][to]
		if !ok {
			return 0, notFound(ReasonPortUnresolved, "no port on %s toward %s", from, to)
		}
		return p, nil
	}

	rules := make([]Rule, 0, 2*len(path))
	last := len(path) - 1
	for i, d := range path {
		switch i {
		case 0:
			uplink, err := port(d, path[1])
			if err != nil {
				return nil, err
			}
			rules = append(rules,
				Rule{Switch: d, Match: rev(uplink), Out: sa.Port, Hop: i},
				Rule{Switch: d, Match: fwd(sa.Port), Out: uplink, Hop: i},
			)
		case last:
			uplink, err := port(d, path[i-1])
			if err != nil {
				return nil, err
			}
			rules = append(rules,
				Rule{Switch: d, Match: fwd(uplink), Out: da.Port, Hop: i},
				Rule{Switch: d, Match: rev(da.Port), Out: uplink, Hop: i},
			)
		default:
			in, err := port(d, path[i-1])
			if err != nil {
				return nil, err
			}
			out, err := port(d, path[i+1])
			if err != nil {
				return nil, err
			}
			rules = append(rules,
				Rule{Switch: d, Match: fwd(in), Out: out, Hop: i},
				Rule{Switch: d, Match: rev(out), Out: in, Hop: i},
			)
		}
	}
	return rules, nil
}
