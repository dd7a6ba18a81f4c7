package packet

import (
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/packethost/topoctl/topology"
)

var (
	macX = net.HardwareAddr{0, 0, 0, 0, 0, 0x01}
	macY = net.HardwareAddr{0, 0, 0, 0, 0, 0x02}
	ipX  = net.ParseIP("10.0.0.1")
	ipY  = net.ParseIP("10.0.0.2")
)

func TestRequestRoundTrip(t *testing.T) {
	assert := require.New(t)

	raw, err := Request(macX, ipX, ipY)
	assert.NoError(err)

	f, err := Decode(raw)
	assert.NoError(err)
	assert.Equal(ARPRequest, f.Kind)
	assert.Equal("ff:ff:ff:ff:ff:ff", f.Dst.String())
	assert.Equal(macX.String(), f.Src.String())
	assert.Equal(macX.String(), f.ARP.SenderMAC.String())
	assert.True(f.ARP.SenderIP.Equal(ipX))
	assert.True(f.ARP.TargetIP.Equal(ipY))
	assert.False(f.ARP.Gratuitous())
}

func TestReply(t *testing.T) {
	assert := require.New(t)

	raw, err := Reply(macX, ipX, macY, ipY)
	assert.NoError(err)

	f, err := Decode(raw)
	assert.NoError(err)
	assert.Equal(ARPReply, f.Kind)
	assert.Equal(macX.String(), f.Dst.String())
	assert.Equal(macY.String(), f.Src.String())
	assert.Equal(macY.String(), f.ARP.SenderMAC.String())
	assert.True(f.ARP.SenderIP.Equal(ipY))
	assert.Equal(macX.String(), f.ARP.TargetMAC.String())
	assert.True(f.ARP.TargetIP.Equal(ipX))
}

func TestGratuitous(t *testing.T) {
	assert := require.New(t)

	raw, err := Request(macX, ipX, ipX)
	assert.NoError(err)
	f, err := Decode(raw)
	assert.NoError(err)
	assert.True(f.ARP.Gratuitous())
}

func TestDecodeIgnored(t *testing.T) {
	assert := require.New(t)

	for _, etherType := range [][2]byte{
		{0x08, 0x00}, // ipv4
		{0x88, 0xcc}, // lldp
		{0x86, 0xdd}, // ipv6
	} {
		raw := append(append(append([]byte(nil), macY...), macX...), etherType[0], etherType[1])
		raw = append(raw, make([]byte, 46)...)
		f, err := Decode(raw)
		assert.NoError(err)
		assert.Equal(Ignored, f.Kind)
		assert.Nil(f.ARP)
		assert.Equal(macX.String(), f.Src.String())
	}
}

func TestDecodeMalformed(t *testing.T) {
	assert := require.New(t)

	full, err := Request(macX, ipX, ipY)
	assert.NoError(err)

	for _, raw := range [][]byte{
		nil,
		full[:10],
		full[:20],
		{0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 2, 0x81, 0x00, 0},
	} {
		_, err := Decode(raw)
		assert.Error(err)
		assert.True(errors.Is(err, topology.ErrMalformedEvent), err.Error())
	}
}

func TestBuildRejectsNonIPv4(t *testing.T) {
	assert := require.New(t)

	_, err := Reply(macX, net.ParseIP("fe80::1"), macY, ipY)
	assert.True(errors.Is(err, topology.ErrMalformedEvent))
	_, err = Request(net.HardwareAddr{1, 2}, ipX, ipY)
	assert.True(errors.Is(err, topology.ErrMalformedEvent))
}
