package controller

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/packethost/topoctl/packet"
	"github.com/packethost/topoctl/topology"
)

type install struct {
	Switch   topology.DPID
	Match    topology.Match
	Out      uint32
	Priority uint16
}

type packetOut struct {
	Switch topology.DPID
	Port   uint32
	Frame  []byte
}

type fakeBinding struct {
	mu       sync.Mutex
	installs []install
	deletes  []install
	outs     []packetOut

	failInstall  func(topology.DPID) error
	afterInstall func()
	panicOut     bool
}

// InstallForwardingRule refuses work on a done context, as the hub does.
func (b *fakeBinding) InstallForwardingRule(ctx context.Context, d topology.DPID, m topology.Match, out uint32, priority uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failInstall != nil {
		if err := b.failInstall(d); err != nil {
			return err
		}
	}
	b.installs = append(b.installs, install{Switch: d, Match: m, Out: out, Priority: priority})
	if b.afterInstall != nil {
		b.afterInstall()
	}
	return nil
}

func (b *fakeBinding) installCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.installs)
}

func (b *fakeBinding) DeleteForwardingRule(_ context.Context, d topology.DPID, m topology.Match) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, install{Switch: d, Match: m})
	return nil
}

func (b *fakeBinding) SendPacketOut(_ context.Context, d topology.DPID, port uint32, frame []byte) error {
	if b.panicOut {
		panic("binding exploded")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outs = append(b.outs, packetOut{Switch: d, Port: port, Frame: frame})
	return nil
}

var (
	macX = net.HardwareAddr{0, 0, 0, 0, 0, 0x01}
	macY = net.HardwareAddr{0, 0, 0, 0, 0, 0x02}
	ipX  = net.ParseIP("10.0.0.1")
	ipY  = net.ParseIP("10.0.0.2")
)

// lineEvents describes switches 1-2-3 in a line, host X on 1:5 and host Y
// on 3:7.
var lineEvents = []Event{
	SwitchJoin{DPID: 1},
	SwitchJoin{DPID: 2},
	SwitchJoin{DPID: 3},
	LinkAdd{Src: 1, SrcPort: 10, Dst: 2, DstPort: 20},
	LinkAdd{Src: 2, SrcPort: 11, Dst: 3, DstPort: 21},
	HostJoin{MAC: macX, IPv4: []net.IP{ipX}, Switch: 1, Port: 5},
	HostJoin{MAC: macY, IPv4: []net.IP{ipY}, Switch: 3, Port: 7},
}

func newController(t *testing.T, b Binding, opts ...Option) *Controller {
	return New(topology.New(), b, log.Test(t, "controller"), opts...)
}

// start runs the dispatcher for the duration of the test.
func start(t *testing.T, c *Controller) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
	})
	require.Eventually(t, c.Ready, time.Second, time.Millisecond)
}

func submitAll(t *testing.T, c *Controller, evs ...Event) {
	for _, ev := range evs {
		require.NoError(t, c.Submit(context.Background(), ev))
	}
}

func TestInstallPath(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b, Priority(1), Workers(2))
	start(t, c)
	submitAll(t, c, lineEvents...)

	res, err := c.RequestCommunication(context.Background(), ipX, ipY)
	assert.NoError(err)
	assert.Equal([]topology.DPID{1, 2, 3}, res.Path)
	assert.Len(res.Installed, 6)
	assert.Empty(res.Failed)

	fwd := func(in uint32) topology.Match { return topology.Match{InPort: in, Src: macX, Dst: macY} }
	rev := func(in uint32) topology.Match { return topology.Match{InPort: in, Src: macY, Dst: macX} }
	assert.ElementsMatch([]install{
		{Switch: 1, Match: rev(10), Out: 5, Priority: 1},
		{Switch: 1, Match: fwd(5), Out: 10, Priority: 1},
		{Switch: 2, Match: fwd(20), Out: 11, Priority: 1},
		{Switch: 2, Match: rev(11), Out: 20, Priority: 1},
		{Switch: 3, Match: fwd(21), Out: 7, Priority: 1},
		{Switch: 3, Match: rev(7), Out: 21, Priority: 1},
	}, b.installs)
	assert.Len(c.Topology().Flows(), 6)

	// installing again re-issues every rule and keeps one record per rule
	_, err = c.RequestCommunication(context.Background(), ipX, ipY)
	assert.NoError(err)
	assert.Len(b.installs, 12)
	assert.Len(c.Topology().Flows(), 6)
}

func TestInstallPathSameSwitch(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c,
		SwitchJoin{DPID: 1},
		HostJoin{MAC: macX, IPv4: []net.IP{ipX}, Switch: 1, Port: 1},
		HostJoin{MAC: macY, IPv4: []net.IP{ipY}, Switch: 1, Port: 2},
	)

	res, err := c.RequestCommunication(context.Background(), ipX, ipY)
	assert.NoError(err)
	assert.Len(res.Installed, 2)
	assert.Len(b.installs, 2)
}

func TestInstallPathPartial(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{failInstall: func(d topology.DPID) error {
		if d == 2 {
			return errors.New("switch 2 said no")
		}
		return nil
	}}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c, lineEvents...)

	res, err := c.RequestCommunication(context.Background(), ipX, ipY)
	assert.Error(err)
	assert.True(errors.Is(err, topology.ErrPartialInstallation))

	var partial *PartialInstallError
	assert.True(errors.As(err, &partial))
	assert.Len(partial.Installed, 4)
	assert.Len(partial.Failed, 2)
	for _, f := range partial.Failed {
		assert.Equal(topology.DPID(2), f.Rule.Switch)
	}

	assert.NotNil(res)
	assert.Len(res.Installed, 4)
	// nothing is rolled back
	assert.Len(c.Topology().Flows(), 4)
	assert.Empty(b.deletes)
}

func TestInstallPathWorkerPanic(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{failInstall: func(d topology.DPID) error {
		if d == 3 {
			panic("boom")
		}
		return nil
	}}
	c := newController(t, b)
	for _, ev := range lineEvents {
		assert.NoError(c.dispatch(context.Background(), ev))
	}

	res, err := c.InstallPath(context.Background(), macX, macY)
	assert.True(errors.Is(err, topology.ErrPartialInstallation))
	assert.Len(res.Failed, 2)
}

func TestRequestCommunicationNotFound(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c, lineEvents...)

	_, err := c.RequestCommunication(context.Background(), ipX, net.ParseIP("10.0.0.99"))
	assert.True(errors.Is(err, topology.ErrNotFound))
	reason, _ := topology.ReasonOf(err)
	assert.Equal(topology.ReasonHostUnresolved, reason)

	// cut the line, the hosts resolve but no path joins them
	submitAll(t, c, LinkRemove{Src: 2, Dst: 3})
	_, err = c.RequestCommunication(context.Background(), ipX, ipY)
	reason, _ = topology.ReasonOf(err)
	assert.Equal(topology.ReasonNoPath, reason)
	assert.Empty(b.installs)

	_, err = c.RequestCommunication(context.Background(), nil, ipY)
	assert.True(errors.Is(err, topology.ErrMalformedEvent))
}

func TestDuplicateJoin(t *testing.T) {
	assert := require.New(t)

	c := newController(t, &fakeBinding{})
	start(t, c)
	submitAll(t, c,
		SwitchJoin{DPID: 1, Ports: []topology.Port{{No: 1}}},
		LinkAdd{Src: 1, SrcPort: 1, Dst: 2, DstPort: 1},
	)
	nodes := c.Topology().NodeCount()
	ports := c.Topology().PortMap()

	assert.NoError(c.Submit(context.Background(), SwitchJoin{DPID: 1}))
	assert.Equal(nodes, c.Topology().NodeCount())
	assert.Equal(ports, c.Topology().PortMap())
	sw, _ := c.Topology().Switch(1)
	assert.Len(sw.Ports, 1)
}

func TestMalformedEvents(t *testing.T) {
	assert := require.New(t)

	totals := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_totals"}, []string{"method", "op"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_errors"}, []string{"method", "op"})
	c := newController(t, &fakeBinding{}, Counters(totals, errs))
	start(t, c)

	for _, ev := range []Event{
		SwitchJoin{},
		SwitchLeave{},
		HostJoin{MAC: macX},
		HostJoin{Switch: 1},
		LinkAdd{Src: 1, Dst: 1},
		LinkAdd{Src: 1},
		LinkRemove{Dst: 2},
		PortStateChange{},
		PacketIn{DPID: 1},
		PacketIn{DPID: 1, Data: []byte{1, 2, 3}},
	} {
		err := c.Submit(context.Background(), ev)
		assert.True(errors.Is(err, topology.ErrMalformedEvent), "%#v", ev)
	}
	assert.Equal(1.0, testutil.ToFloat64(errs.With(prometheus.Labels{"method": "PacketIn", "op": "handle"})))

	// the dispatcher keeps going
	assert.NoError(c.Submit(context.Background(), SwitchJoin{DPID: 1}))
	assert.Equal(1, c.Topology().NodeCount())
}

func TestPortStateChange(t *testing.T) {
	assert := require.New(t)

	c := newController(t, &fakeBinding{})
	start(t, c)
	// unknown switches are only logged
	assert.NoError(c.Submit(context.Background(), PortStateChange{DPID: 9, Port: 1}))
	submitAll(t, c,
		SwitchJoin{DPID: 1, Ports: []topology.Port{{No: 1, Up: true}}},
		PortStateChange{DPID: 1, Port: 1, Up: false},
	)
	sw, _ := c.Topology().Switch(1)
	assert.False(sw.Ports[0].Up)
}

func TestDispatcherRecovers(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{panicOut: true}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c, lineEvents...)

	req, err := packet.Request(macX, ipX, ipY)
	assert.NoError(err)
	err = c.Submit(context.Background(), PacketIn{DPID: 1, InPort: 5, Data: req})
	assert.Error(err)
	assert.Contains(err.Error(), "panicked")

	assert.NoError(c.Submit(context.Background(), SwitchJoin{DPID: 4}))
	_, ok := c.Topology().Switch(4)
	assert.True(ok)
}

func TestARPProxy(t *testing.T) {
	t.Run("known target", func(t *testing.T) {
		assert := require.New(t)

		b := &fakeBinding{}
		c := newController(t, b)
		start(t, c)
		submitAll(t, c, lineEvents...)

		req, err := packet.Request(macX, ipX, ipY)
		assert.NoError(err)
		assert.NoError(c.Submit(context.Background(), PacketIn{DPID: 1, InPort: 5, Data: req}))

		assert.Len(b.outs, 1)
		out := b.outs[0]
		assert.Equal(topology.DPID(1), out.Switch)
		assert.EqualValues(5, out.Port)

		f, err := packet.Decode(out.Frame)
		assert.NoError(err)
		assert.Equal(packet.ARPReply, f.Kind)
		assert.Equal(macX.String(), f.Dst.String())
		assert.Equal(macY.String(), f.Src.String())
		assert.True(f.ARP.SenderIP.Equal(ipY))
		assert.Empty(b.installs)
	})

	t.Run("unknown target", func(t *testing.T) {
		assert := require.New(t)

		b := &fakeBinding{}
		c := newController(t, b)
		start(t, c)
		submitAll(t, c, lineEvents...)

		req, err := packet.Request(macX, ipX, net.ParseIP("10.0.0.200"))
		assert.NoError(err)
		assert.NoError(c.Submit(context.Background(), PacketIn{DPID: 1, InPort: 5, Data: req}))
		assert.Empty(b.outs)
	})

	t.Run("gratuitous and replies", func(t *testing.T) {
		assert := require.New(t)

		b := &fakeBinding{}
		c := newController(t, b)
		start(t, c)
		submitAll(t, c, lineEvents...)

		req, err := packet.Request(macX, ipX, ipX)
		assert.NoError(err)
		assert.NoError(c.Submit(context.Background(), PacketIn{DPID: 1, InPort: 5, Data: req}))

		rep, err := packet.Reply(macX, ipX, macY, ipY)
		assert.NoError(err)
		assert.NoError(c.Submit(context.Background(), PacketIn{DPID: 1, InPort: 5, Data: rep}))
		assert.Empty(b.outs)
	})
}

func TestLinkRemovePurgesFlows(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c, lineEvents...)
	_, err := c.RequestCommunication(context.Background(), ipX, ipY)
	assert.NoError(err)

	submitAll(t, c, LinkRemove{Src: 2, Dst: 3})
	assert.Len(b.deletes, 4)
	for _, d := range b.deletes {
		assert.Contains([]topology.DPID{2, 3}, d.Switch)
	}
	flows := c.Topology().Flows()
	assert.Len(flows, 2)
	for _, f := range flows {
		assert.Equal(topology.DPID(1), f.Switch)
	}

	// nothing left to remove
	submitAll(t, c, LinkRemove{Src: 2, Dst: 3})
	assert.Len(b.deletes, 4)
}

func TestSwitchLeavePurgesFlows(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b)
	start(t, c)
	submitAll(t, c, lineEvents...)
	_, err := c.RequestCommunication(context.Background(), ipX, ipY)
	assert.NoError(err)

	submitAll(t, c, SwitchLeave{DPID: 2})
	// switch 2 is gone so only its neighbors are told
	assert.Len(b.deletes, 4)
	for _, d := range b.deletes {
		assert.NotEqual(topology.DPID(2), d.Switch)
	}
	assert.Empty(c.Topology().Flows())

	_, err = c.RequestCommunication(context.Background(), ipX, ipY)
	assert.True(errors.Is(err, topology.ErrNotFound))

	// leaving twice is harmless
	assert.NoError(c.Submit(context.Background(), SwitchLeave{DPID: 2}))
}

func TestWatch(t *testing.T) {
	assert := require.New(t)

	missed := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_watch_missed"})
	c := newController(t, &fakeBinding{}, WatchMissed(missed))
	start(t, c)

	_, ch, stop := c.Watch()
	submitAll(t, c, SwitchJoin{DPID: 1})
	snap := <-ch
	assert.Len(snap.Switches, 1)

	// the second update is missed while the first one sits unread
	submitAll(t, c, SwitchJoin{DPID: 2}, SwitchJoin{DPID: 3})
	assert.Equal(1.0, testutil.ToFloat64(missed))
	snap = <-ch
	assert.Len(snap.Switches, 2)

	stop()
	stop()
	_, ok := <-ch
	assert.False(ok)
}

func TestSubmitAfterStop(t *testing.T) {
	assert := require.New(t)

	c := newController(t, &fakeBinding{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()
	assert.Eventually(c.Ready, time.Second, time.Millisecond)
	assert.Error(c.Run(context.Background()))

	cancel()
	assert.NoError(<-done)
	assert.False(c.Ready())
	assert.Equal(ErrStopped, c.Submit(context.Background(), SwitchJoin{DPID: 1}))

	// a stopped dispatcher cannot be restarted
	assert.Equal(ErrStopped, c.Run(context.Background()))
	assert.False(c.Ready())
}

func TestInstallOutlivesCaller(t *testing.T) {
	assert := require.New(t)

	b := &fakeBinding{}
	c := newController(t, b, Workers(1))
	start(t, c)
	submitAll(t, c, lineEvents...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the caller gives up as soon as the first rule lands
	b.afterInstall = cancel

	res, err := c.RequestCommunication(ctx, ipX, ipY)
	if err != nil {
		assert.ErrorIs(err, context.Canceled)
	} else {
		assert.Len(res.Installed, 6)
		assert.Empty(res.Failed)
	}

	assert.Eventually(func() bool { return b.installCount() == 6 }, time.Second, time.Millisecond)
	assert.Eventually(func() bool { return len(c.Topology().Flows()) == 6 }, time.Second, time.Millisecond)
}

func TestWatchSkipsNoops(t *testing.T) {
	assert := require.New(t)

	c := newController(t, &fakeBinding{})
	start(t, c)

	_, ch, stop := c.Watch()
	defer stop()
	submitAll(t, c, SwitchJoin{DPID: 1, Ports: []topology.Port{{No: 1, Up: true}}})
	<-ch

	submitAll(t, c,
		SwitchJoin{DPID: 1},
		PortStateChange{DPID: 9, Port: 1, Up: true},
		PortStateChange{DPID: 1, Port: 1, Up: true},
	)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot with %d switches", len(snap.Switches))
	default:
	}

	submitAll(t, c, PortStateChange{DPID: 1, Port: 1, Up: false})
	snap := <-ch
	assert.False(snap.Switches[0].Ports[0].Up)
}
