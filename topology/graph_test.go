package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraph(t *testing.T) {
	assert := require.New(t)

	g := newGraph()
	s1, s2, s3 := switchNode(1), switchNode(2), switchNode(3)
	h := hostNode("00:00:00:00:00:01")

	g.addEdge(s2, s1)
	g.addEdge(s1, s2)
	g.addEdge(s2, s3)
	g.addEdge(s1, h)
	assert.Equal(4, g.count())
	assert.True(g.hasEdge(s1, s2))
	assert.True(g.hasEdge(s2, s1))
	assert.Equal([]Node{s1, s2, s3, h}, g.nodes())
	assert.Equal([][2]Node{{s1, s2}, {s1, h}, {s2, s3}}, g.edges())
	assert.Equal(HostNode, g.kind(h.String()))
	assert.Equal(NodeKind(0), g.kind("switch_9"))

	assert.True(g.removeEdge(s3, s2))
	assert.False(g.removeEdge(s3, s2))
	assert.True(g.hasNode(s3))

	// dropping a node takes its edges with it
	assert.True(g.removeNode(s1))
	assert.False(g.removeNode(s1))
	assert.False(g.hasEdge(s1, h))
	assert.False(g.hasEdge(s1, s2))
	assert.Empty(g.edges())
	assert.Equal(3, g.count())

	// and the name can be reused
	g.addEdge(s1, s3)
	assert.Equal([][2]Node{{s1, s3}}, g.edges())
}
