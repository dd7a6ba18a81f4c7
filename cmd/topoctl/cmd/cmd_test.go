package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/packethost/topoctl/protos/topoctl"
)

func TestDecodeEvent(t *testing.T) {
	assert := require.New(t)

	ev, err := decodeEvent(`{"host_join":{"mac":"00:00:00:00:00:01","ipv4":["10.0.0.1"],"dpid":1,"port_no":3}}`)
	assert.NoError(err)
	assert.Equal(&topoctl.Event{HostJoin: &topoctl.HostJoin{
		MAC:  "00:00:00:00:00:01",
		IPv4: []string{"10.0.0.1"},
		DPID: 1,
		Port: 3,
	}}, ev)

	_, err = decodeEvent(`{"switch_jion":{"dpid":1}}`)
	assert.Error(err)
	_, err = decodeEvent(`nope`)
	assert.Error(err)
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args func([]string) error
		ok   [][]string
		bad  [][]string
	}{
		{
			name: "communicate",
			args: func(a []string) error { return communicateCmd.Args(communicateCmd, a) },
			ok:   [][]string{{"10.0.0.1", "10.0.0.2"}},
			bad:  [][]string{{"10.0.0.1"}, {"10.0.0.1", "::1"}, {"a", "b"}},
		},
		{
			name: "path",
			args: func(a []string) error { return pathCmd.Args(pathCmd, a) },
			ok:   [][]string{{"1", "4"}, {"0x1", "0x00000000000000ff"}},
			bad:  [][]string{{"1"}, {"1", "-4"}, {"s1", "s2"}},
		},
		{
			name: "mac",
			args: func(a []string) error { return macCmd.Args(macCmd, a) },
			ok:   [][]string{{"00:00:00:00:00:01"}},
			bad:  [][]string{{"00:00:00:00:00"}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, a := range test.ok {
				require.NoError(t, test.args(a), "%v", a)
			}
			for _, a := range test.bad {
				require.Error(t, test.args(a), "%v", a)
			}
		})
	}
}
