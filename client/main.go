package client

import (
	"crypto/x509"
	"io"
	"net/http"

	"github.com/packethost/pkg/env"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/packethost/topoctl/protos/topoctl"
)

// Client is a topoctl controller client that also exposes its connection,
// for the health service.
type Client struct {
	topoctl.ControllerClient
	Conn *grpc.ClientConn
}

var certClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

// New returns a new configured controller client for the given grpc
// address.
//
// TLS is off unless TOPOCTL_USE_TLS is set, in which case the server
// certificate is fetched from TOPOCTL_CERT_URL.
func New(addr string) (*Client, error) {
	var do grpc.DialOption

	if !env.Bool("TOPOCTL_USE_TLS", false) {
		do = grpc.WithTransportCredentials(insecure.NewCredentials())
	} else {
		url := env.Get("TOPOCTL_CERT_URL")
		if url == "" {
			return nil, errors.New("TOPOCTL_CERT_URL missing from environment")
		}

		var err error
		do, err = getCredentialsFromCertURL(url)
		if err != nil {
			return nil, errors.Wrap(err, "get credentials from url")
		}
	}

	conn, err := grpc.Dial(addr, do, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	if err != nil {
		return nil, errors.Wrap(err, "connect to topoctl")
	}

	return &Client{ControllerClient: topoctl.NewControllerClient(conn), Conn: conn}, nil
}

func getCredentialsFromCertURL(certURL string) (grpc.DialOption, error) {
	resp, err := certClient.Get(certURL)
	if err != nil {
		return nil, errors.Wrap(err, "fetch cert")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch cert: unexpected status %s", resp.Status)
	}

	certs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read cert")
	}

	cp := x509.NewCertPool()
	ok := cp.AppendCertsFromPEM(certs)

	if !ok {
		return nil, errors.New("parsing cert")
	}

	return grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(cp, "")), nil
}
