package controller

import (
	"context"

	"github.com/packethost/topoctl/packet"
	"github.com/packethost/topoctl/topology"
)

func (c *Controller) onPacketIn(ctx context.Context, ev PacketIn) error {
	f, err := packet.Decode(ev.Data)
	if err != nil {
		c.logger.With("dpid", ev.DPID.String(), "in_port", ev.InPort).Error(err)
		return err
	}

	switch f.Kind {
	case packet.ARPRequest:
		return c.proxyARP(ctx, ev, f.ARP)
	case packet.ARPReply:
		c.logger.Debug("arp reply",
			"dpid", ev.DPID.String(),
			"in_port", ev.InPort,
			"sender_mac", f.ARP.SenderMAC.String(),
			"sender_ip", f.ARP.SenderIP.String(),
		)
	case packet.Ignored:
	}
	return nil
}

// proxyARP answers a request for a known host straight back out of the port
// it arrived on. Requests for unknown addresses are left alone.
func (c *Controller) proxyARP(ctx context.Context, ev PacketIn, req *packet.ARP) error {
	l := c.logger.With("dpid", ev.DPID.String(), "in_port", ev.InPort, "target", req.TargetIP.String())
	if req.Gratuitous() {
		l.Debug("ignoring gratuitous arp")
		return nil
	}

	h, err := c.topo.HostByIP(req.TargetIP)
	if err != nil {
		if _, ok := topology.ReasonOf(err); ok {
			l.Debug("arp target unknown")
			return nil
		}
		return err
	}

	frame, err := packet.Reply(req.SenderMAC, req.SenderIP, h.MAC, req.TargetIP)
	if err != nil {
		l.Error(err)
		return err
	}
	err = c.binding.SendPacketOut(ctx, ev.DPID, ev.InPort, frame)
	c.count("SendPacketOut", "arp", err)
	if err != nil {
		l.Error(err)
		return err
	}
	l.With("mac", h.MAC.String()).Info("proxied arp reply")
	return nil
}
