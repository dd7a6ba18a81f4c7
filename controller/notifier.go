package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/packethost/topoctl/protos/topoctl"
	"github.com/packethost/topoctl/topology"
)

// Notifier posts the topology snapshot to a webhook on a fixed interval.
// It reads the topology on its own schedule, independently of the
// dispatcher.
type Notifier struct {
	url      string
	interval time.Duration
	topo     *topology.Topology
	client   *http.Client
	logger   log.Logger
}

// NewNotifier returns a Notifier posting to url every interval, which must
// be positive.
func NewNotifier(url string, interval time.Duration, topo *topology.Topology, logger log.Logger) (*Notifier, error) {
	if interval <= 0 {
		return nil, errors.Errorf("notify interval must be positive, got %s", interval)
	}
	return &Notifier{
		url:      url,
		interval: interval,
		topo:     topo,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: interval},
		logger:   logger,
	}, nil
}

// Run notifies once right away and then on every tick until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		if err := n.Notify(ctx); err != nil {
			n.logger.With("url", n.url).Error(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Notify posts one snapshot.
func (n *Notifier) Notify(ctx context.Context) error {
	b, err := json.Marshal(topoctl.FromSnapshot(n.topo.Snapshot()))
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new notify request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "notify")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return errors.Errorf("notify: unexpected status %d", resp.StatusCode)
	}
	return nil
}
