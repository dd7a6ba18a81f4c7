package controller

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/packethost/pkg/log"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/packethost/topoctl/topology"
)

func TestNotify(t *testing.T) {
	assert := require.New(t)
	defer gock.Off()

	topo := topology.New()
	topo.AddSwitch(1, nil)
	topo.AddHost(macX, topology.Attachment{Switch: 1, Port: 5}, []net.IP{ipX})

	n, err := NewNotifier("http://observer.test/topology", time.Minute, topo, log.Test(t, "notifier"))
	assert.NoError(err)
	gock.InterceptClient(n.client)

	gock.New("http://observer.test").
		Post("/topology").
		MatchType("json").
		BodyString(`^\{"nodes":\["switch_1","host_00:00:00:00:00:01"\].*"mac":"00:00:00:00:00:01"`).
		Reply(204)

	assert.NoError(n.Notify(context.Background()))
	assert.True(gock.IsDone())
}

func TestNotifyStatus(t *testing.T) {
	assert := require.New(t)
	defer gock.Off()

	n, err := NewNotifier("http://observer.test/topology", time.Minute, topology.New(), log.Test(t, "notifier"))
	assert.NoError(err)
	gock.InterceptClient(n.client)

	gock.New("http://observer.test").
		Post("/topology").
		Reply(500)

	err = n.Notify(context.Background())
	assert.Error(err)
	assert.Contains(err.Error(), "500")
}

func TestNotifierRun(t *testing.T) {
	assert := require.New(t)
	defer gock.Off()

	n, err := NewNotifier("http://observer.test/topology", 10*time.Millisecond, topology.New(), log.Test(t, "notifier"))
	assert.NoError(err)
	gock.InterceptClient(n.client)

	gock.New("http://observer.test").
		Post("/topology").
		Times(2).
		Reply(200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx)
	}()
	assert.Eventually(gock.IsDone, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestNotifierInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		_, err := NewNotifier("http://observer.test/topology", d, topology.New(), log.Test(t, "notifier"))
		require.Error(t, err)
	}
}
