package topology

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/core"
)

// NodeKind tells switch nodes from host nodes.
type NodeKind uint8

const (
	SwitchNode NodeKind = iota + 1
	HostNode
)

// Node is a vertex of the topology graph.
type Node struct {
	Kind NodeKind
	DPID DPID
	MAC  mac
}

func switchNode(d DPID) Node { return Node{Kind: SwitchNode, DPID: d} }
func hostNode(m mac) Node    { return Node{Kind: HostNode, MAC: m} }

// String is the vertex id of n in the backing graph.
func (n Node) String() string {
	switch n.Kind {
	case SwitchNode:
		return fmt.Sprintf("switch_%d", uint64(n.DPID))
	case HostNode:
		return "host_" + string(n.MAC)
	}
	return "invalid"
}

func (n Node) less(o Node) bool {
	if n.Kind != o.Kind {
		return n.Kind < o.Kind
	}
	if n.DPID != o.DPID {
		return n.DPID < o.DPID
	}
	return n.MAC < o.MAC
}

type edgeKey [2]Node

func keyFor(a, b Node) edgeKey {
	if b.less(a) {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// graph is an undirected simple graph over lvlath vertices named by
// Node.String. Adding an edge adds missing endpoints.
type graph struct {
	g    *core.Graph
	byID map[string]Node
	eids map[edgeKey]string // lvlath edge id by endpoints
}

func newGraph() *graph {
	return &graph{
		g:    core.NewGraph(),
		byID: map[string]Node{},
		eids: map[edgeKey]string{},
	}
}

func (g *graph) addNode(n Node) {
	id := n.String()
	if _, ok := g.byID[id]; ok {
		return
	}
	if err := g.g.AddVertex(id); err != nil {
		panic(fmt.Sprintf("adding vertex %s: %v", id, err))
	}
	g.byID[id] = n
}

func (g *graph) hasNode(n Node) bool {
	_, ok := g.byID[n.String()]
	return ok
}

func (g *graph) count() int {
	return len(g.byID)
}

// removeNode drops n and every edge touching it.
func (g *graph) removeNode(n Node) bool {
	if !g.hasNode(n) {
		return false
	}
	for k := range g.eids {
		if k[0] == n || k[1] == n {
			delete(g.eids, k)
		}
	}
	id := n.String()
	if err := g.g.RemoveVertex(id); err != nil {
		panic(fmt.Sprintf("removing vertex %s: %v", id, err))
	}
	delete(g.byID, id)
	return true
}

func (g *graph) addEdge(a, b Node) {
	k := keyFor(a, b)
	if _, ok := g.eids[k]; ok {
		return
	}
	g.addNode(a)
	g.addNode(b)
	eid, err := g.g.AddEdge(a.String(), b.String(), 0)
	if err != nil {
		panic(fmt.Sprintf("adding edge %s-%s: %v", a, b, err))
	}
	g.eids[k] = eid
}

func (g *graph) hasEdge(a, b Node) bool {
	_, ok := g.eids[keyFor(a, b)]
	return ok
}

func (g *graph) removeEdge(a, b Node) bool {
	k := keyFor(a, b)
	eid, ok := g.eids[k]
	if !ok {
		return false
	}
	if err := g.g.RemoveEdge(eid); err != nil {
		panic(fmt.Sprintf("removing edge %s-%s: %v", a, b, err))
	}
	delete(g.eids, k)
	return true
}

// kind returns the kind of the vertex with the given id, 0 when unknown.
func (g *graph) kind(id string) NodeKind {
	return g.byID[id].Kind
}

func (g *graph) node(id string) Node {
	return g.byID[id]
}

func (g *graph) nodes() []Node {
	out := make([]Node, 0, len(g.byID))
	for _, n := range g.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// edges returns each undirected edge once, lower endpoint first.
func (g *graph) edges() [][2]Node {
	out := make([][2]Node, 0, len(g.eids))
	for k := range g.eids {
		out = append(out, [2]Node(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0].less(out[j][0])
		}
		return out[i][1].less(out[j][1])
	})
	return out
}
