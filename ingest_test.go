package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/packethost/topoctl/controller"
	"github.com/packethost/topoctl/topology"
)

func TestDecodeSeed(t *testing.T) {
	assert := require.New(t)

	sd, err := decodeSeed(strings.NewReader(`
switches:
  - dpid: 2
    ports:
      - {port_no: 1, name: s2-eth1, hw_addr: "aa:bb:cc:dd:ee:01"}
      - {port_no: 2, down: true}
  - dpid: 1
links:
  - {src_dpid: 1, src_port_no: 1, dst_dpid: 2, dst_port_no: 2}
hosts:
  - mac: "00:00:00:00:00:0A"
    ipv4: ["10.0.0.10", "192.168.0.10"]
    dpid: 2
    port_no: 1
`))
	assert.NoError(err)

	evs, err := sd.events()
	assert.NoError(err)
	hw, _ := net.ParseMAC("aa:bb:cc:dd:ee:01")
	host, _ := net.ParseMAC("00:00:00:00:00:0a")
	assert.Equal([]controller.Event{
		controller.SwitchJoin{DPID: 2, Ports: []topology.Port{
			{No: 1, Name: "s2-eth1", HWAddr: hw, Up: true},
			{No: 2, Up: false},
		}},
		controller.SwitchJoin{DPID: 1, Ports: []topology.Port{}},
		controller.LinkAdd{Src: 1, SrcPort: 1, Dst: 2, DstPort: 2},
		controller.HostJoin{
			MAC:    host,
			IPv4:   []net.IP{net.IPv4(10, 0, 0, 10).To4(), net.IPv4(192, 168, 0, 10).To4()},
			Switch: 2,
			Port:   1,
		},
	}, evs)
}

func TestDecodeSeedErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field": "switches:\n  - dpid: 1\n    colour: red\n",
		"bad mac":       "hosts:\n  - {mac: nope, dpid: 1, port_no: 1}\n",
		"bad ipv4":      "hosts:\n  - {mac: \"00:00:00:00:00:01\", ipv4: [\"::1\"], dpid: 1, port_no: 1}\n",
		"bad port mac":  "switches:\n  - dpid: 1\n    ports: [{port_no: 1, hw_addr: xx}]\n",
		"not a list":    "switches: 3\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			sd, err := decodeSeed(strings.NewReader(doc))
			if err == nil {
				_, err = sd.events()
			}
			require.Error(t, err)
		})
	}
}

func TestDecodeSeedEmpty(t *testing.T) {
	assert := require.New(t)

	sd, err := decodeSeed(strings.NewReader(""))
	assert.NoError(err)
	evs, err := sd.events()
	assert.NoError(err)
	assert.Empty(evs)
}

func TestIngestSeeds(t *testing.T) {
	tests := map[string]struct {
		switches, hosts, links int
		src, dst               topology.DPID
		hops                   int
	}{
		"triangle.yaml":   {switches: 3, hosts: 3, links: 3, src: 1, dst: 3, hops: 2},
		"assign_one.yaml": {switches: 6, hosts: 10, links: 5, src: 5, dst: 6, hops: 4},
		"some_loops.yaml": {switches: 6, hosts: 4, links: 8, src: 1, dst: 4, hops: 3},
		"mesh.yaml":       {switches: 4, hosts: 4, links: 6, src: 1, dst: 4, hops: 2},
		"long_path.yaml":  {switches: 9, hosts: 4, links: 12, src: 5, dst: 7, hops: 5},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := require.New(t)

			f := newFixture(t)
			f.seed(t, filepath.Join("seeds", name))
			assert.Equal(float64(2), testutil.ToFloat64(controllerState))

			snap := f.ctrl.Topology().Snapshot()
			assert.Len(snap.Switches, test.switches)
			assert.Len(snap.Hosts, test.hosts)
			assert.Len(snap.Links, test.links)

			path, err := f.ctrl.Topology().ShortestPath(test.src, test.dst)
			assert.NoError(err)
			assert.Len(path, test.hops)
		})
	}
}

func TestIngestFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		err := ingest(context.Background(), f.ctrl, filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("rejected event", func(t *testing.T) {
		assert := require.New(t)

		path := filepath.Join(t.TempDir(), "seed.yaml")
		assert.NoError(os.WriteFile(path, []byte("switches:\n  - dpid: 1\n  - dpid: 0\n  - dpid: 2\n"), 0o644))

		f := newFixture(t)
		err := ingest(context.Background(), f.ctrl, path)
		assert.ErrorIs(err, topology.ErrMalformedEvent)

		_, ok := f.ctrl.Topology().Switch(1)
		assert.True(ok)
		_, ok = f.ctrl.Topology().Switch(2)
		assert.False(ok)
	})
}
