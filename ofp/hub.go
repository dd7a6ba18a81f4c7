package ofp

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/packethost/topoctl/topology"
)

var (
	// ErrNoAgent means no agent is subscribed for the datapath.
	ErrNoAgent = errors.New("no agent subscribed for datapath")
	// ErrAgentBusy means every agent for the datapath had a full queue.
	ErrAgentBusy = errors.New("agent queue is full")
)

// Command is an encoded OpenFlow message addressed to one datapath.
type Command struct {
	DPID    topology.DPID
	Message []byte
}

// Subscription receives commands for the datapaths it was opened for.
type Subscription struct {
	ID string
	C  <-chan Command

	c     chan Command
	all   bool
	dpids map[topology.DPID]struct{}
}

func (s *Subscription) wants(d topology.DPID) bool {
	if s.all {
		return true
	}
	_, ok := s.dpids[d]
	return ok
}

// Hub fans commands out to subscribed agents. It implements Sink.
type Hub struct {
	depth  int
	missed prometheus.Counter
	logger *log.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// The HubOption type describes functions that operate on Hub during NewHub.
type HubOption func(*Hub)

// Depth sets the per subscription queue length. Defaults to 64.
func Depth(n int) HubOption {
	return func(h *Hub) {
		h.depth = n
	}
}

// Missed sets a counter bumped whenever a full queue drops a command.
func Missed(c prometheus.Counter) HubOption {
	return func(h *Hub) {
		h.missed = c
	}
}

// HubLogger sets the logger the hub reports drops with.
func HubLogger(l log.Logger) HubOption {
	return func(h *Hub) {
		h.logger = &l
	}
}

// NewHub returns a Hub with no subscriptions.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		depth: 64,
		subs:  map[string]*Subscription{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe opens a subscription for dpids. No dpids means every datapath.
func (h *Hub) Subscribe(dpids ...topology.DPID) *Subscription {
	c := make(chan Command, h.depth)
	s := &Subscription{
		ID:    uuid.New().String(),
		C:     c,
		c:     c,
		all:   len(dpids) == 0,
		dpids: map[topology.DPID]struct{}{},
	}
	for _, d := range dpids {
		s.dpids[d] = struct{}{}
	}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.mu.Unlock()
	return s
}

// Unsubscribe closes the subscription channel. It is safe to call twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.ID]; !ok {
		return
	}
	delete(h.subs, s.ID)
	close(s.c)
}

// Send queues msg for every subscription covering dpid. It fails when no
// subscription covers dpid or none of them had room.
func (h *Hub) Send(ctx context.Context, dpid topology.DPID, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	matched, queued := 0, 0
	for _, s := range h.subs {
		if !s.wants(dpid) {
			continue
		}
		matched++
		select {
		case s.c <- Command{DPID: dpid, Message: msg}:
			queued++
		default:
			if h.missed != nil {
				h.missed.Inc()
			}
			if h.logger != nil {
				h.logger.With("subscription", s.ID, "dpid", dpid.String()).Info("skipping blocked agent")
			}
		}
	}

	if matched == 0 {
		return errors.Wrap(ErrNoAgent, dpid.String())
	}
	if queued == 0 {
		return errors.Wrap(ErrAgentBusy, dpid.String())
	}
	return nil
}

// Agents returns the number of open subscriptions.
func (h *Hub) Agents() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}
