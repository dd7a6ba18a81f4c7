// Package controller serializes topology discovery, packet-in and
// communication requests through a single dispatcher and drives the device
// binding to install paths and answer ARP on behalf of known hosts.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/packethost/topoctl/topology"
)

// ErrStopped is returned to submitters once the dispatcher has exited.
var ErrStopped = errors.New("dispatcher stopped")

// Binding is how the controller reaches the datapaths.
type Binding interface {
	InstallForwardingRule(ctx context.Context, d topology.DPID, m topology.Match, out uint32, priority uint16) error
	DeleteForwardingRule(ctx context.Context, d topology.DPID, m topology.Match) error
	SendPacketOut(ctx context.Context, d topology.DPID, port uint32, frame []byte) error
}

type envelope struct {
	ctx  context.Context
	ev   Event
	done chan error
}

// Controller owns the dispatcher. All topology mutations happen on the
// goroutine running Run.
type Controller struct {
	topo     *topology.Topology
	binding  Binding
	logger   log.Logger
	priority uint16
	workers  int

	events chan envelope
	quit   chan struct{}
	ready  int32

	totals   *prometheus.CounterVec
	errs     *prometheus.CounterVec
	duration prometheus.ObserverVec
	missed   prometheus.Counter

	watchLock sync.RWMutex
	watch     map[string]chan topology.Snapshot
}

// The Option type describes functions that operate on Controller during New.
type Option func(*Controller)

// Priority sets the priority of installed forwarding rules. Defaults to 1.
func Priority(p uint16) Option {
	return func(c *Controller) {
		c.priority = p
	}
}

// Workers bounds the binding calls one installation has in flight. Defaults to 4.
func Workers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Queue sets how many events may wait for the dispatcher. Defaults to 128.
func Queue(n int) Option {
	return func(c *Controller) {
		c.events = make(chan envelope, n)
	}
}

// Counters sets the vectors, labelled by method and op, counting handled
// events and handler errors.
func Counters(totals, errs *prometheus.CounterVec) Option {
	return func(c *Controller) {
		c.totals = totals
		c.errs = errs
	}
}

// Duration sets the observer, labelled by method and op, timing installs.
func Duration(o prometheus.ObserverVec) Option {
	return func(c *Controller) {
		c.duration = o
	}
}

// WatchMissed sets the counter bumped when a watcher is too slow for a snapshot.
func WatchMissed(m prometheus.Counter) Option {
	return func(c *Controller) {
		c.missed = m
	}
}

// New returns a Controller mutating topo and reaching datapaths through
// binding. Run must be called before events are submitted.
func New(topo *topology.Topology, binding Binding, logger log.Logger, options ...Option) *Controller {
	c := &Controller{
		topo:     topo,
		binding:  binding,
		logger:   logger,
		priority: 1,
		workers:  4,
		events:   make(chan envelope, 128),
		quit:     make(chan struct{}),
		watch:    map[string]chan topology.Snapshot{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Topology returns the topology the controller mutates.
func (c *Controller) Topology() *topology.Topology {
	return c.topo
}

// Ready reports whether the dispatcher is running.
func (c *Controller) Ready() bool {
	return atomic.LoadInt32(&c.ready) == 1
}

// Run dispatches events one at a time, in arrival order, until ctx is done.
// A Controller runs once; calling Run after it returned yields ErrStopped.
//
// Handlers get the submitter's context stripped of its cancellation, so a
// caller giving up does not cut an installation short.
func (c *Controller) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.ready, 0, 1) {
		return errors.New("dispatcher already running")
	}
	defer atomic.StoreInt32(&c.ready, 0)
	select {
	case <-c.quit:
		return ErrStopped
	default:
	}
	defer close(c.quit)

	c.logger.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dispatcher stopping")
			return nil
		case env := <-c.events:
			env.done <- c.dispatch(context.WithoutCancel(env.ctx), env.ev)
		}
	}
}

// Submit validates ev, queues it and waits for the dispatcher to handle it.
// Malformed events are logged and never reach the dispatcher.
func (c *Controller) Submit(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		c.count(ev.kind(), "drop", err)
		c.logger.With("event", ev.kind()).Error(err)
		return err
	}

	env := envelope{ctx: ctx, ev: ev, done: make(chan error, 1)}
	select {
	case c.events <- env:
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-env.done:
		return err
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) count(method, op string, err error) {
	labels := prometheus.Labels{"method": method, "op": op}
	if c.totals != nil {
		c.totals.With(labels).Inc()
	}
	if err != nil && c.errs != nil {
		c.errs.With(labels).Inc()
	}
}

// dispatch never lets a handler fault escape.
func (c *Controller) dispatch(ctx context.Context, ev Event) (err error) {
	l := c.logger.With("event", ev.kind())
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("%s handler panicked: %v", ev.kind(), r)
			l.Error(err)
		}
		c.count(ev.kind(), "handle", err)
	}()

	changed := true
	switch ev := ev.(type) {
	case SwitchJoin:
		changed = c.onSwitchJoin(ev)
	case SwitchLeave:
		err = c.onSwitchLeave(ctx, ev)
	case HostJoin:
		err = c.onHostJoin(ev)
	case LinkAdd:
		err = c.topo.AddLink(ev.Src, ev.SrcPort, ev.Dst, ev.DstPort)
	case LinkRemove:
		c.onLinkRemove(ctx, ev)
	case PortStateChange:
		var e error
		changed, e = c.topo.SetPortState(ev.DPID, ev.Port, ev.Up)
		if e != nil {
			l.With("port", ev.Port).Debug("port state for unknown switch", "error", e.Error())
		}
	case PacketIn:
		changed = false
		err = c.onPacketIn(ctx, ev)
	case CommunicationRequest:
		var res *InstallResult
		res, err = c.communicate(ctx, ev.Src, ev.Dst)
		if ev.reply != nil {
			ev.reply <- communicationResult{res: res, err: err}
		}
		if res != nil && len(res.Installed) > 0 {
			c.publish()
		}
		return err
	default:
		panic(fmt.Sprintf("unhandled event type %T", ev))
	}

	if changed && err == nil {
		c.publish()
	}
	return err
}

func (c *Controller) onSwitchJoin(ev SwitchJoin) bool {
	if !c.topo.AddSwitch(ev.DPID, ev.Ports) {
		err := errors.Wrap(topology.ErrDuplicateIgnored, ev.DPID.String())
		c.logger.With("dpid", ev.DPID.String()).Info(err.Error())
		return false
	}
	c.logger.With("dpid", ev.DPID.String(), "ports", len(ev.Ports)).Info("switch joined")
	return true
}

func (c *Controller) onSwitchLeave(ctx context.Context, ev SwitchLeave) error {
	facing, ok := c.topo.RemoveSwitch(ev.DPID)
	if !ok {
		c.logger.With("dpid", ev.DPID.String()).Debug("leave of unknown switch")
	}
	for _, p := range facing {
		c.purge(ctx, p)
	}
	c.logger.With("dpid", ev.DPID.String()).Info("switch left")
	return nil
}

func (c *Controller) onHostJoin(ev HostJoin) error {
	at := topology.Attachment{Switch: ev.Switch, Port: ev.Port}
	l := c.logger.With("mac", ev.MAC.String(), "dpid", ev.Switch.String(), "port", ev.Port)
	if c.topo.AddHost(ev.MAC, at, ev.IPv4) {
		l.Info("host moved")
		return nil
	}
	l.Info("host joined")
	return nil
}

func (c *Controller) onLinkRemove(ctx context.Context, ev LinkRemove) {
	r := c.topo.RemoveLink(ev.Src, ev.Dst)
	for _, p := range []*topology.PortRef{r.Forward, r.Reverse} {
		if p != nil {
			c.purge(ctx, *p)
		}
	}
}

// purge deletes the flows entering or leaving through p. A failed delete is
// logged; the record is dropped either way since the port no longer leads
// anywhere.
func (c *Controller) purge(ctx context.Context, p topology.PortRef) {
	for _, f := range c.topo.FlowsOnPort(p) {
		if err := c.binding.DeleteForwardingRule(ctx, f.Switch, f.Match); err != nil {
			c.count("DeleteForwardingRule", "delete", err)
			c.logger.With("dpid", f.Switch.String(), "match", f.Match.String()).Error(err)
		}
		c.topo.DeleteFlow(f.Switch, f.Match)
	}
}
