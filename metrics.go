package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcDuration prometheus.ObserverVec
	rpcErrors   *prometheus.CounterVec
	rpcInFlight *prometheus.GaugeVec
	rpcTotals   *prometheus.CounterVec

	eventErrors *prometheus.CounterVec
	eventTotals *prometheus.CounterVec

	installDuration prometheus.ObserverVec
	topologyCount   *prometheus.GaugeVec

	controllerState prometheus.Gauge

	ingestCount    *prometheus.CounterVec
	ingestDuration *prometheus.GaugeVec
	ingestErrors   *prometheus.CounterVec

	watchMissTotal   prometheus.Counter
	commandMissTotal prometheus.Counter
)

var eventKinds = []string{
	"SwitchJoin",
	"SwitchLeave",
	"HostJoin",
	"LinkAdd",
	"LinkRemove",
	"PortStateChange",
	"PacketIn",
	"CommunicationRequest",
}

func setupMetrics() {
	rpcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topoctl_rpc_duration_seconds",
		Help:    "Duration of controller API calls.",
		Buckets: prometheus.LinearBuckets(.01, .1, 10),
	}, []string{"method", "op"})
	rpcErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topoctl_rpc_errors_total",
		Help: "Number of failed controller API calls.",
	}, []string{"method", "op"})
	rpcInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "topoctl_rpc_current_total",
		Help: "Number of in flight controller API calls.",
	}, []string{"method", "op"})
	rpcTotals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topoctl_rpc_total",
		Help: "Number of controller API calls.",
	}, []string{"method", "op"})

	logger.Info("initializing label values")
	labels := []prometheus.Labels{
		{"method": "Publish", "op": ""},
		{"method": "Communicate", "op": "install"},
		{"method": "Snapshot", "op": "get"},
		{"method": "HostByMAC", "op": "get"},
		{"method": "HostByIP", "op": "get"},
		{"method": "Path", "op": "get"},
		{"method": "Flows", "op": "get"},
		{"method": "Watch", "op": "push"},
		{"method": "Commands", "op": "push"},
	}
	initObserverLabels(rpcDuration, labels)
	initCounterLabels(rpcErrors, labels)
	initGaugeLabels(rpcInFlight, labels)
	initCounterLabels(rpcTotals, labels)

	eventTotals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topoctl_events_total",
		Help: "Number of events handled by the dispatcher.",
	}, []string{"method", "op"})
	eventErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topoctl_events_errors_total",
		Help: "Number of events the dispatcher rejected or failed to handle.",
	}, []string{"method", "op"})
	labels = nil
	for _, k := range eventKinds {
		labels = append(labels,
			prometheus.Labels{"method": k, "op": "handle"},
			prometheus.Labels{"method": k, "op": "drop"},
		)
	}
	initCounterLabels(eventTotals, labels)
	initCounterLabels(eventErrors, labels)

	installDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topoctl_install_duration_seconds",
		Help:    "Duration of path installations.",
		Buckets: prometheus.LinearBuckets(.01, .1, 10),
	}, []string{"method", "op"})
	initObserverLabels(installDuration, []prometheus.Labels{{"method": "InstallPath", "op": "install"}})

	topologyCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "topoctl_topology_count_total",
		Help: "Number of switches, hosts, links and flows known to the controller.",
	}, []string{"kind"})
	initGaugeLabels(topologyCount, []prometheus.Labels{
		{"kind": "switch"},
		{"kind": "host"},
		{"kind": "link"},
		{"kind": "flow"},
	})

	controllerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topoctl_state",
		Help: "Reports controller state, 0:started, 1:ingesting, 2:ready",
	})

	ingestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_op_count_total",
		Help: "Number of attempts made to ingest a topology seed.",
	}, []string{"method", "op"})
	ingestDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingest_op_duration_seconds",
		Help: "Duration of successful ingestion actions while loading a topology seed.",
	}, []string{"method", "op"})
	ingestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_error_count_total",
		Help: "Number of errors occurred attempting to ingest a topology seed.",
	}, []string{"method", "op"})
	labels = []prometheus.Labels{
		{"method": "Ingest", "op": ""},
		{"method": "Ingest", "op": "load"},
		{"method": "Ingest", "op": "submit"},
	}
	initCounterLabels(ingestCount, labels)
	initGaugeLabels(ingestDuration, labels)
	initCounterLabels(ingestErrors, labels)

	watchMissTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watch_miss_count_total",
		Help: "Number of missed snapshots due to a blocked watcher.",
	})
	commandMissTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "command_miss_count_total",
		Help: "Number of OpenFlow messages dropped due to a blocked agent.",
	})
}

func initObserverLabels(m prometheus.ObserverVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}

func initGaugeLabels(m *prometheus.GaugeVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}

func initCounterLabels(m *prometheus.CounterVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}
