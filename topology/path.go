package topology

import (
	"github.com/katalvlaran/lvlath/bfs"
	"github.com/pkg/errors"
)

// ShortestPath returns the switches on a minimum hop path from src to dst,
// both included. Every link costs one hop. A missing endpoint or an
// unreachable dst yields a *NotFoundError with ReasonNoPath.
func (t *Topology) ShortestPath(src, dst DPID) ([]DPID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.shortestPath(src, dst)
}

func (t *Topology) shortestPath(src, dst DPID) ([]DPID, error) {
	from, to := switchNode(src), switchNode(dst)
	if !t.graph.hasNode(from) {
		return nil, notFound(ReasonNoPath, "switch %s not in graph", src)
	}
	if !t.graph.hasNode(to) {
		return nil, notFound(ReasonNoPath, "switch %s not in graph", dst)
	}
	if src == dst {
		return []DPID{src}, nil
	}

	res, err := bfs.BFS(t.graph.g, from.String(),
		// hosts hang off a single switch and never carry transit traffic
		bfs.WithFilterNeighbor(func(_, next string) bool {
			return t.graph.kind(next) == SwitchNode
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "bfs from %s", src)
	}
	if _, ok := res.Depth[to.String()]; !ok {
		return nil, notFound(ReasonNoPath, "%s unreachable from %s", dst, src)
	}

	ids, err := res.PathTo(to.String())
	if err != nil {
		return nil, errors.Wrapf(err, "path from %s to %s", src, dst)
	}
	path := make([]DPID, len(ids))
	for i, id := range ids {
		path[i] = t.graph.node(id).DPID
	}
	return path, nil
}
