package controller

import (
	"github.com/google/uuid"

	"github.com/packethost/topoctl/topology"
)

// Watch registers for a snapshot after every change the dispatcher makes.
// A watcher that has not drained its last snapshot misses the next one.
// The returned func unregisters and closes the channel.
func (c *Controller) Watch() (string, <-chan topology.Snapshot, func()) {
	id := uuid.New().String()
	ch := make(chan topology.Snapshot, 1)

	c.watchLock.Lock()
	c.watch[id] = ch
	c.watchLock.Unlock()

	return id, ch, func() {
		c.watchLock.Lock()
		defer c.watchLock.Unlock()
		if _, ok := c.watch[id]; ok {
			delete(c.watch, id)
			close(ch)
		}
	}
}

func (c *Controller) publish() {
	c.watchLock.RLock()
	defer c.watchLock.RUnlock()

	if len(c.watch) == 0 {
		return
	}
	snap := c.topo.Snapshot()
	for id, ch := range c.watch {
		select {
		case ch <- snap:
		default:
			if c.missed != nil {
				c.missed.Inc()
			}
			c.logger.With("id", id).Info("skipping blocked watcher")
		}
	}
}
