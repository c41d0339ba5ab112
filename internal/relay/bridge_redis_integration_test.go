//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformredis "coopmarket/internal/platform/redis"
	"coopmarket/pkg/testutil/containers"
)

func TestRedisBridgeFansOutAcrossHubs(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	client := &platformredis.Client{Client: rc.Client}

	// Two hubs standing in for two instances sharing one Redis.
	hubA := NewHub(testLogger(), nil)
	hubB := NewHub(testLogger(), nil)
	bridgeA := NewRedisBridge(client, hubA, testLogger())
	bridgeB := NewRedisBridge(client, hubB, testLogger())
	hubA.SetBridge(bridgeA)
	hubB.SetBridge(bridgeB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bridgeA.Run(ctx) }()
	go func() { _ = bridgeB.Run(ctx) }()

	localClient := testClient(t, hubA, "local@example.com", nil)
	remoteClient := testClient(t, hubB, "remote@example.com", nil)
	hubA.join("auction-1", localClient)
	hubB.join("auction-1", remoteClient)

	// Give both subscriptions a moment to attach before publishing.
	require.Eventually(t, func() bool {
		hubA.Broadcast(ctx, Message{Event: EventChatMessage, Room: "auction-1"})
		return len(frames(remoteClient)) > 0
	}, 5*time.Second, 100*time.Millisecond)

	// The publishing instance receives its own frame back from Redis too.
	assert.Eventually(t, func() bool {
		return len(frames(localClient)) > 0
	}, 2*time.Second, 50*time.Millisecond)
}
