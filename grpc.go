package main

import (
	"context"
	"net"

	"github.com/packethost/topoctl/controller"
	"github.com/packethost/topoctl/ofp"
	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/packethost/topoctl/topology"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type server struct {
	ctrl *controller.Controller
	hub  *ofp.Hub
	quit <-chan struct{}
}

// rpc wraps a unary call with the usual metrics and maps its error to a
// grpc status.
func rpc[Out any](method, op string, fn func() (Out, error)) (Out, error) {
	out, err := measure(method, op, fn)
	return out, grpcError(err)
}

func measure[Out any](method, op string, fn func() (Out, error)) (Out, error) {
	labels := prometheus.Labels{"method": method, "op": op}

	rpcTotals.With(labels).Inc()
	rpcInFlight.With(labels).Inc()
	defer rpcInFlight.With(labels).Dec()

	timer := prometheus.NewTimer(rpcDuration.With(labels))
	defer timer.ObserveDuration()

	out, err := fn()
	if err != nil {
		rpcErrors.With(labels).Inc()
	}
	return out, err
}

func grpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, topology.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, topology.ErrMalformedEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, controller.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

func parseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return nil, topology.Malformed("invalid ipv4 address %q", s)
	}
	return ip, nil
}

func portsFrom(ps []topoctl.Port) ([]topology.Port, error) {
	out := make([]topology.Port, 0, len(ps))
	for _, p := range ps {
		port := topology.Port{No: p.No, Name: p.Name, Up: p.Up}
		if p.HWAddr != "" {
			hw, err := topology.ParseMAC(p.HWAddr)
			if err != nil {
				return nil, topology.Malformed("port %d: %v", p.No, err)
			}
			port.HWAddr = hw
		}
		out = append(out, port)
	}
	return out, nil
}

// eventFrom converts a wire event into the dispatcher's closed event set.
// Exactly one field of in must be set.
func eventFrom(in *topoctl.Event) (controller.Event, error) {
	var evs []controller.Event
	if e := in.SwitchJoin; e != nil {
		ports, err := portsFrom(e.Ports)
		if err != nil {
			return nil, err
		}
		evs = append(evs, controller.SwitchJoin{DPID: topology.DPID(e.DPID), Ports: ports})
	}
	if e := in.SwitchLeave; e != nil {
		evs = append(evs, controller.SwitchLeave{DPID: topology.DPID(e.DPID)})
	}
	if e := in.HostJoin; e != nil {
		hw, err := topology.ParseMAC(e.MAC)
		if err != nil {
			return nil, topology.Malformed("host mac %q", e.MAC)
		}
		ips := make([]net.IP, 0, len(e.IPv4))
		for _, s := range e.IPv4 {
			ip, err := parseIPv4(s)
			if err != nil {
				return nil, err
			}
			ips = append(ips, ip)
		}
		evs = append(evs, controller.HostJoin{MAC: hw, IPv4: ips, Switch: topology.DPID(e.DPID), Port: e.Port})
	}
	if e := in.LinkAdd; e != nil {
		evs = append(evs, controller.LinkAdd{
			Src:     topology.DPID(e.Src),
			SrcPort: e.SrcPort,
			Dst:     topology.DPID(e.Dst),
			DstPort: e.DstPort,
		})
	}
	if e := in.LinkRemove; e != nil {
		evs = append(evs, controller.LinkRemove{Src: topology.DPID(e.Src), Dst: topology.DPID(e.Dst)})
	}
	if e := in.PortStateChange; e != nil {
		evs = append(evs, controller.PortStateChange{DPID: topology.DPID(e.DPID), Port: e.Port, Up: e.Up})
	}
	if e := in.PacketIn; e != nil {
		evs = append(evs, controller.PacketIn{DPID: topology.DPID(e.DPID), InPort: e.InPort, Data: e.Data})
	}

	if len(evs) != 1 {
		return nil, topology.Malformed("event must carry exactly one kind, got %d", len(evs))
	}
	return evs[0], nil
}

func communicationResponse(res *controller.InstallResult) *topoctl.CommunicationResponse {
	out := &topoctl.CommunicationResponse{
		Status:    topoctl.StatusInstalled,
		Src:       res.Src.String(),
		Dst:       res.Dst.String(),
		Path:      topoctl.FromPath(res.Path),
		Installed: lo.Map(res.Installed, func(r topology.Rule, _ int) topoctl.Rule { return topoctl.FromRule(r) }),
	}
	if len(res.Failed) > 0 {
		out.Status = topoctl.StatusPartial
		out.Failed = lo.Map(res.Failed, func(f controller.FailedRule, _ int) topoctl.FailedRule {
			return topoctl.FailedRule{Rule: topoctl.FromRule(f.Rule), Error: f.Err.Error()}
		})
	}
	return out
}

// Publish implements topoctl.ControllerServer
func (s *server) Publish(ctx context.Context, in *topoctl.Event) (*topoctl.Empty, error) {
	return rpc("Publish", "", func() (*topoctl.Empty, error) {
		ev, err := eventFrom(in)
		if err != nil {
			logger.Error(err)
			return &topoctl.Empty{}, err
		}
		return &topoctl.Empty{}, s.ctrl.Submit(ctx, ev)
	})
}

// communicate is shared by the grpc and http front ends. A partial
// installation comes back as a response with the partial status and a nil
// error.
func (s *server) communicate(ctx context.Context, src, dst string) (*topoctl.CommunicationResponse, error) {
	from, err := parseIPv4(src)
	if err != nil {
		return nil, err
	}
	to, err := parseIPv4(dst)
	if err != nil {
		return nil, err
	}

	res, err := s.ctrl.RequestCommunication(ctx, from, to)
	if res != nil && (err == nil || errors.Is(err, topology.ErrPartialInstallation)) {
		return communicationResponse(res), nil
	}
	return nil, err
}

// Communicate implements topoctl.ControllerServer
func (s *server) Communicate(ctx context.Context, in *topoctl.CommunicationRequest) (*topoctl.CommunicationResponse, error) {
	return rpc("Communicate", "install", func() (*topoctl.CommunicationResponse, error) {
		return s.communicate(ctx, in.Src, in.Dst)
	})
}

// Snapshot implements topoctl.ControllerServer
func (s *server) Snapshot(ctx context.Context, in *topoctl.Empty) (*topoctl.Snapshot, error) {
	return rpc("Snapshot", "get", func() (*topoctl.Snapshot, error) {
		return topoctl.FromSnapshot(s.ctrl.Topology().Snapshot()), nil
	})
}

// HostByMAC implements topoctl.ControllerServer
func (s *server) HostByMAC(ctx context.Context, in *topoctl.HostRequest) (*topoctl.Host, error) {
	return rpc("HostByMAC", "get", func() (*topoctl.Host, error) {
		hw, err := topology.ParseMAC(in.MAC)
		if err != nil {
			return nil, topology.Malformed("mac %q", in.MAC)
		}
		h, err := s.ctrl.Topology().HostByMAC(hw)
		if err != nil {
			return nil, err
		}
		return topoctl.FromHost(h), nil
	})
}

// HostByIP implements topoctl.ControllerServer
func (s *server) HostByIP(ctx context.Context, in *topoctl.HostRequest) (*topoctl.Host, error) {
	return rpc("HostByIP", "get", func() (*topoctl.Host, error) {
		ip, err := parseIPv4(in.IP)
		if err != nil {
			return nil, err
		}
		h, err := s.ctrl.Topology().HostByIP(ip)
		if err != nil {
			return nil, err
		}
		return topoctl.FromHost(h), nil
	})
}

// Path implements topoctl.ControllerServer
func (s *server) Path(ctx context.Context, in *topoctl.PathRequest) (*topoctl.PathResponse, error) {
	return rpc("Path", "get", func() (*topoctl.PathResponse, error) {
		path, err := s.ctrl.Topology().ShortestPath(topology.DPID(in.Src), topology.DPID(in.Dst))
		if err != nil {
			return nil, err
		}
		return &topoctl.PathResponse{Path: topoctl.FromPath(path)}, nil
	})
}

// Flows implements topoctl.ControllerServer
func (s *server) Flows(ctx context.Context, in *topoctl.Empty) (*topoctl.FlowsResponse, error) {
	return rpc("Flows", "get", func() (*topoctl.FlowsResponse, error) {
		return &topoctl.FlowsResponse{Flows: topoctl.FromFlows(s.ctrl.Topology().Flows())}, nil
	})
}

// Watch implements topoctl.ControllerServer
func (s *server) Watch(_ *topoctl.Empty, stream topoctl.Controller_WatchServer) error {
	id, ch, stop := s.ctrl.Watch()
	defer stop()
	l := logger.With("id", id)

	labels := prometheus.Labels{"method": "Watch", "op": "push"}
	rpcTotals.With(labels).Inc()
	rpcInFlight.With(labels).Inc()
	defer rpcInFlight.With(labels).Dec()

	if err := stream.Send(topoctl.FromSnapshot(s.ctrl.Topology().Snapshot())); err != nil {
		rpcErrors.With(labels).Inc()
		return errors.Wrap(err, "stream send")
	}

	for {
		select {
		case <-s.quit:
			l.Info("server is shutting down")
			return status.Error(codes.OK, "server is shutting down")
		case <-stream.Context().Done():
			l.Info("client disconnected")
			return status.Error(codes.OK, "client disconnected")
		case snap, ok := <-ch:
			if !ok {
				return status.Error(codes.Unknown, "watch closed")
			}
			if err := stream.Send(topoctl.FromSnapshot(snap)); err != nil {
				rpcErrors.With(labels).Inc()
				err = errors.Wrap(err, "stream send")
				l.Error(err)
				return err
			}
		}
	}
}

// Commands implements topoctl.ControllerServer
func (s *server) Commands(in *topoctl.CommandsRequest, stream topoctl.Controller_CommandsServer) error {
	sub := s.hub.Subscribe(topoctl.ToDPIDs(in.DPIDs)...)
	defer s.hub.Unsubscribe(sub)
	l := logger.With("subscription", sub.ID, "dpids", in.DPIDs)
	l.Info("agent connected")

	labels := prometheus.Labels{"method": "Commands", "op": "push"}
	rpcTotals.With(labels).Inc()
	rpcInFlight.With(labels).Inc()
	defer rpcInFlight.With(labels).Dec()

	for {
		select {
		case <-s.quit:
			l.Info("server is shutting down")
			return status.Error(codes.OK, "server is shutting down")
		case <-stream.Context().Done():
			l.Info("agent disconnected")
			return status.Error(codes.OK, "agent disconnected")
		case cmd, ok := <-sub.C:
			if !ok {
				return status.Error(codes.Unknown, "subscription closed")
			}
			err := stream.Send(&topoctl.Command{DPID: uint64(cmd.DPID), Message: cmd.Message})
			if err != nil {
				rpcErrors.With(labels).Inc()
				err = errors.Wrap(err, "stream send")
				l.Error(err)
				return err
			}
		}
	}
}
