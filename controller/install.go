package controller

import (
	"context"
	"fmt"
	"net"

	"github.com/gammazero/workerpool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/packethost/topoctl/topology"
)

var tracer = otel.Tracer("github.com/packethost/topoctl/controller")

// FailedRule is a planned rule the binding refused.
type FailedRule struct {
	Rule topology.Rule
	Err  error
}

// InstallResult describes one path installation.
type InstallResult struct {
	Src       net.HardwareAddr
	Dst       net.HardwareAddr
	Path      []topology.DPID
	Installed []topology.Rule
	Failed    []FailedRule
}

// PartialInstallError is returned, along with the InstallResult, when some
// rules of a path could not be installed. Installed rules stay in place.
type PartialInstallError struct {
	Installed []topology.Rule
	Failed    []FailedRule
}

func (e *PartialInstallError) Error() string {
	return fmt.Sprintf("%s: %d of %d rules failed, first: %v",
		topology.ErrPartialInstallation, len(e.Failed), len(e.Installed)+len(e.Failed), e.Failed[0].Err)
}

// Is lets errors.Is(err, topology.ErrPartialInstallation) match.
func (e *PartialInstallError) Is(target error) bool {
	return target == topology.ErrPartialInstallation
}

// RequestCommunication queues a request to connect the hosts owning src
// and dst and waits for the dispatcher to handle it.
func (c *Controller) RequestCommunication(ctx context.Context, src, dst net.IP) (*InstallResult, error) {
	ctx, span := tracer.Start(ctx, "RequestCommunication", trace.WithAttributes(
		attribute.String("src", src.String()),
		attribute.String("dst", dst.String()),
	))
	defer span.End()

	reply := make(chan communicationResult, 1)
	err := c.Submit(ctx, CommunicationRequest{Src: src, Dst: dst, reply: reply})
	select {
	case r := <-reply:
		if r.res != nil {
			span.SetAttributes(attribute.Int("installed", len(r.res.Installed)), attribute.Int("failed", len(r.res.Failed)))
		}
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		return r.res, r.err
	default:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
}

func (c *Controller) communicate(ctx context.Context, src, dst net.IP) (*InstallResult, error) {
	l := c.logger.With("src", src.String(), "dst", dst.String())

	from, err := c.topo.HostByIP(src)
	if err != nil {
		l.Info("source host not found")
		return nil, err
	}
	to, err := c.topo.HostByIP(dst)
	if err != nil {
		l.Info("destination host not found")
		return nil, err
	}

	res, err := c.InstallPath(ctx, from.MAC, to.MAC)
	if err != nil {
		if res != nil {
			l = l.With("installed", len(res.Installed), "failed", len(res.Failed))
		}
		l.Error(err)
		return res, err
	}
	l.With("path", fmt.Sprint(res.Path), "rules", len(res.Installed)).Info("path installed")
	return res, nil
}

// InstallPath plans and installs the rules connecting the two hosts. It
// records every rule the binding accepted and does not roll back on
// failure. It must only be called from the dispatcher goroutine, or when
// no dispatcher is running.
func (c *Controller) InstallPath(ctx context.Context, src, dst net.HardwareAddr) (*InstallResult, error) {
	labels := prometheus.Labels{"method": "InstallPath", "op": "install"}
	if c.duration != nil {
		timer := prometheus.NewTimer(c.duration.With(labels))
		defer timer.ObserveDuration()
	}

	rules, err := c.topo.PlanPath(src, dst)
	if err != nil {
		c.count("InstallPath", "plan", err)
		return nil, err
	}

	errs := make([]error, len(rules))
	pool := workerpool.New(c.workers)
	for i := range rules {
		i, r := i, rules[i]
		pool.Submit(func() {
			defer func() {
				if p := recover(); p != nil {
					errs[i] = errors.Errorf("install on %s panicked: %v", r.Switch, p)
				}
			}()
			errs[i] = c.binding.InstallForwardingRule(ctx, r.Switch, r.Match, r.Out, c.priority)
		})
	}
	pool.StopWait()

	res := &InstallResult{
		Src:  src,
		Dst:  dst,
		Path: lo.Uniq(lo.Map(rules, func(r topology.Rule, _ int) topology.DPID { return r.Switch })),
	}
	for i, r := range rules {
		c.count("InstallForwardingRule", "install", errs[i])
		if errs[i] != nil {
			res.Failed = append(res.Failed, FailedRule{Rule: r, Err: errs[i]})
			continue
		}
		c.topo.RecordFlow(r)
		res.Installed = append(res.Installed, r)
	}

	if len(res.Failed) > 0 {
		return res, &PartialInstallError{Installed: res.Installed, Failed: res.Failed}
	}
	return res, nil
}
