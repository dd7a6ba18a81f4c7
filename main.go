package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/equinix-labs/otel-init-go/otelinit"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/packethost/pkg/env"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/packethost/topoctl/controller"
	"github.com/packethost/topoctl/ofp"
	"github.com/packethost/topoctl/pkg/healthcheck"
	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/packethost/topoctl/topology"
)

var (
	gitRev     = "unknown"
	gitRevJSON []byte
	logger     log.Logger
	StartTime  = time.Now()
)

// flowPriority reads TOPOCTL_FLOW_PRIORITY, falling back to 1 when the
// value does not fit an OpenFlow priority.
func flowPriority() uint16 {
	p := env.Int("TOPOCTL_FLOW_PRIORITY", 1)
	if p < 0 || p > math.MaxUint16 {
		logger.Error(errors.Errorf("TOPOCTL_FLOW_PRIORITY %d out of range [0, %d], using 1", p, math.MaxUint16))
		return 1
	}
	return uint16(p)
}

// setupController builds the topology, the agent hub and the dispatcher.
// The dispatcher is not started.
func setupController() (*controller.Controller, *ofp.Hub) {
	topo := topology.New(
		topology.Gauges(topologyCount),
		topology.Logger(logger.Package("topology")),
	)
	hub := ofp.NewHub(
		ofp.Missed(commandMissTotal),
		ofp.HubLogger(logger.Package("ofp")),
	)
	ctrl := controller.New(topo, ofp.NewBinding(hub), logger.Package("controller"),
		controller.Priority(flowPriority()),
		controller.Workers(env.Int("TOPOCTL_CONCURRENT_INSTALLS", 4)),
		controller.Counters(eventTotals, eventErrors),
		controller.Duration(installDuration),
		controller.WatchMissed(watchMissTotal),
	)
	return ctrl, hub
}

// serverOptions returns the grpc server options and, when TLS is
// configured, the PEM certificate to publish on /cert.
func serverOptions() ([]grpc.ServerOption, []byte) {
	params := []grpc.ServerOption{
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}

	cert, key := env.Get("TOPOCTL_TLS_CERT"), env.Get("TOPOCTL_TLS_KEY")
	if cert == "" && key == "" {
		logger.Info("TOPOCTL_TLS_CERT not set, serving grpc without TLS")
		return params, nil
	}

	kp, err := tls.X509KeyPair([]byte(cert), []byte(key))
	if err != nil {
		err = errors.Wrap(err, "failed to ingest TLS files")
		logger.Error(err)
		panic(err)
	}
	return append(params, grpc.Creds(credentials.NewServerTLSFromCert(&kp))), []byte(cert)
}

func newGRPCServer(s *server, params ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(params...)
	topoctl.RegisterControllerServer(gs, s)
	grpc_health_v1.RegisterHealthServer(gs, healthcheck.GRPCHealthChecker(s.ctrl.Ready))
	grpc_prometheus.Register(gs)
	return gs
}

func setupGRPC(ctx context.Context, s *server, params []grpc.ServerOption, errCh chan<- error) *grpc.Server {
	gs := newGRPCServer(s, params...)

	go func() {
		logger.Info("serving grpc")
		lis, err := net.Listen("tcp", ":"+env.Get("TOPOCTL_GRPC_PORT", "42113"))
		if err != nil {
			err = errors.Wrap(err, "failed to listen")
			logger.Error(err)
			panic(err)
		}

		errCh <- gs.Serve(lis)
	}()

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	return gs
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(gitRevJSON)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	res := struct {
		GitRev     string  `json:"git_rev"`
		Uptime     float64 `json:"uptime"`
		Goroutines int     `json:"goroutines"`
	}{
		GitRev:     gitRev,
		Uptime:     time.Since(StartTime).Seconds(),
		Goroutines: runtime.NumGoroutine(),
	}

	b, err := json.Marshal(&res)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func setupGitRevJSON() {
	res := struct {
		GitRev  string `json:"git_rev"`
		Service string `json:"service_name"`
	}{
		GitRev:  gitRev,
		Service: "topoctl",
	}
	b, err := json.Marshal(&res)
	if err != nil {
		err = errors.Wrap(err, "could not marshal version json")
		logger.Error(err)
		panic(err)
	}
	gitRevJSON = b
}

func newMux(s *server, certPEM []byte) *http.ServeMux {
	mux := http.NewServeMux()
	if len(certPEM) > 0 {
		mux.HandleFunc("GET /cert", func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, "server.pem", StartTime, bytes.NewReader(certPEM))
		})
	}
	s.routes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /version", versionHandler)
	mux.HandleFunc("GET /_packet/healthcheck", healthCheckHandler)
	return mux
}

func setupHTTP(ctx context.Context, s *server, certPEM []byte, errCh chan<- error) *http.Server {
	setupGitRevJSON()
	srv := &http.Server{
		Addr:    ":" + env.Get("TOPOCTL_HTTP_PORT", "42114"),
		Handler: otelhttp.NewHandler(newMux(s, certPEM), "topoctl"),
	}
	go func() {
		logger.Info("serving http")
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	return srv
}

func main() {
	log, err := log.Init("github.com/packethost/topoctl")
	if err != nil {
		panic(err)
	}
	logger = log
	defer logger.Close()

	ctx, otelShutdown := otelinit.InitOpenTelemetry(context.Background(), "topoctl")
	defer otelShutdown(ctx)

	setupMetrics()
	controllerState.Set(0)

	ctx, closer := context.WithCancel(ctx)
	ctrl, hub := setupController()

	errCh := make(chan error, 3)
	go func() {
		errCh <- ctrl.Run(ctx)
	}()

	s := &server{ctrl: ctrl, hub: hub, quit: ctx.Done()}
	params, certPEM := serverOptions()
	setupGRPC(ctx, s, params, errCh)
	setupHTTP(ctx, s, certPEM, errCh)

	if path := env.Get("TOPOCTL_SEED_FILE"); path != "" {
		if err := ingest(ctx, ctrl, path); err != nil {
			logger.Error(err)
			panic(err)
		}
	} else {
		controllerState.Set(2)
	}

	if url := env.Get("TOPOCTL_NOTIFY_URL"); url != "" {
		interval := time.Duration(env.Int("TOPOCTL_NOTIFY_INTERVAL_SECONDS", 30)) * time.Second
		n, err := controller.NewNotifier(url, interval, ctrl.Topology(), logger.Package("notifier"))
		if err != nil {
			logger.Error(errors.Wrap(err, "TOPOCTL_NOTIFY_INTERVAL_SECONDS"))
		} else {
			go n.Run(ctx)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	select {
	case err = <-errCh:
		logger.Error(err)
		panic(err)
	case sig := <-sigs:
		logger.With("signal", sig.String()).Info("signal received, stopping servers")
	}
	closer()

	// wait for the dispatcher and both grpc and http servers to shutdown
	for i := 0; i < 3; i++ {
		if err = <-errCh; err != nil {
			logger.Error(err)
			panic(err)
		}
	}
}
