package main

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/packethost/topoctl/controller"
	"github.com/packethost/topoctl/topology"
)

// seed is a static topology description, replayed through the dispatcher
// at startup as if the switches, links and hosts had just been discovered.
type seed struct {
	Switches []seedSwitch `yaml:"switches"`
	Links    []seedLink   `yaml:"links"`
	Hosts    []seedHost   `yaml:"hosts"`
}

type seedSwitch struct {
	DPID  uint64     `yaml:"dpid"`
	Ports []seedPort `yaml:"ports"`
}

type seedPort struct {
	No   uint32 `yaml:"port_no"`
	Name string `yaml:"name"`
	MAC  string `yaml:"hw_addr"`
	Down bool   `yaml:"down"`
}

type seedLink struct {
	Src     uint64 `yaml:"src_dpid"`
	SrcPort uint32 `yaml:"src_port_no"`
	Dst     uint64 `yaml:"dst_dpid"`
	DstPort uint32 `yaml:"dst_port_no"`
}

type seedHost struct {
	MAC  string   `yaml:"mac"`
	IPv4 []string `yaml:"ipv4"`
	DPID uint64   `yaml:"dpid"`
	Port uint32   `yaml:"port_no"`
}

func decodeSeed(r io.Reader) (*seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sd seed
	if err := dec.Decode(&sd); err != nil {
		if errors.Is(err, io.EOF) {
			return &sd, nil
		}
		return nil, errors.Wrap(err, "decode seed")
	}
	return &sd, nil
}

// events converts the seed into the events announcing it: switches first,
// then links, then hosts.
func (sd *seed) events() ([]controller.Event, error) {
	var evs []controller.Event
	for _, s := range sd.Switches {
		ports := make([]topology.Port, 0, len(s.Ports))
		for _, p := range s.Ports {
			port := topology.Port{No: p.No, Name: p.Name, Up: !p.Down}
			if p.MAC != "" {
				hw, err := topology.ParseMAC(p.MAC)
				if err != nil {
					return nil, errors.Wrapf(err, "switch %d port %d", s.DPID, p.No)
				}
				port.HWAddr = hw
			}
			ports = append(ports, port)
		}
		evs = append(evs, controller.SwitchJoin{DPID: topology.DPID(s.DPID), Ports: ports})
	}

	for _, l := range sd.Links {
		evs = append(evs, controller.LinkAdd{
			Src:     topology.DPID(l.Src),
			SrcPort: l.SrcPort,
			Dst:     topology.DPID(l.Dst),
			DstPort: l.DstPort,
		})
	}

	for _, h := range sd.Hosts {
		hw, err := topology.ParseMAC(h.MAC)
		if err != nil {
			return nil, errors.Wrapf(err, "host %q", h.MAC)
		}
		ips, err := parseIPv4s(h.IPv4)
		if err != nil {
			return nil, errors.Wrapf(err, "host %s", hw)
		}
		evs = append(evs, controller.HostJoin{
			MAC:    hw,
			IPv4:   ips,
			Switch: topology.DPID(h.DPID),
			Port:   h.Port,
		})
	}
	return evs, nil
}

func parseIPv4s(ss []string) ([]net.IP, error) {
	ips := make([]net.IP, 0, len(ss))
	for _, s := range ss {
		ip := net.ParseIP(s).To4()
		if ip == nil {
			return nil, topology.Malformed("invalid ipv4 address %q", s)
		}
		ips = append(ips, ip)
	}
	return ips, nil
}

func loadSeed(ctx context.Context, path string, out chan<- controller.Event) error {
	defer close(out)

	labels := prometheus.Labels{"method": "Ingest", "op": "load"}
	ingestCount.With(labels).Inc()
	timer := prometheus.NewTimer(prometheus.ObserverFunc(ingestDuration.With(labels).Set))

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open seed")
	}
	defer f.Close()

	sd, err := decodeSeed(f)
	if err != nil {
		return err
	}
	evs, err := sd.events()
	if err != nil {
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("switches", len(sd.Switches)),
		attribute.Int("links", len(sd.Links)),
		attribute.Int("hosts", len(sd.Hosts)),
	)
	timer.ObserveDuration()

	for _, ev := range evs {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func submitSeed(ctx context.Context, ctrl *controller.Controller, in <-chan controller.Event) error {
	labels := prometheus.Labels{"method": "Ingest", "op": "submit"}
	ingestCount.With(labels).Inc()
	timer := prometheus.NewTimer(prometheus.ObserverFunc(ingestDuration.With(labels).Set))

	n := 0
	for ev := range in {
		if err := ctrl.Submit(ctx, ev); err != nil {
			return errors.Wrapf(err, "submit seed event %d", n)
		}
		n++
	}
	timer.ObserveDuration()
	logger.With("events", n).Info("seed submitted")
	return nil
}

// ingest replays the seed file at path through ctrl. The dispatcher must be
// running.
func ingest(ctx context.Context, ctrl *controller.Controller, path string) error {
	logger.With("seed", path).Info("ingestion is starting")
	defer logger.Info("ingestion is done")
	controllerState.Set(1)

	labels := prometheus.Labels{"method": "Ingest", "op": ""}
	ingestCount.With(labels).Inc()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	ch := make(chan controller.Event, 16)
	errCh := make(chan error, 2)
	tStart := time.Now()

	go func() {
		defer wg.Done()

		if err := loadSeed(ctx, path, ch); err != nil {
			ingestErrors.With(prometheus.Labels{"method": "Ingest", "op": "load"}).Inc()
			logger.Error(err)

			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			cancel()
			errCh <- err
		}
	}()

	go func() {
		defer wg.Done()

		if err := submitSeed(ctx, ctrl, ch); err != nil {
			ingestErrors.With(prometheus.Labels{"method": "Ingest", "op": "submit"}).Inc()
			logger.Error(err)

			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			cancel()
			errCh <- err
			// unblock the loader
			for range ch {
			}
		}
	}()

	wg.Wait()
	ingestDuration.With(labels).Set(time.Since(tStart).Seconds())

	select {
	case err := <-errCh:
		ingestErrors.With(labels).Inc()
		return err
	default:
	}

	logger.With("duration", time.Since(tStart)).Info("ingest done")
	controllerState.Set(2)
	return nil
}
