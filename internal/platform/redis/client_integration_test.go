//go:build integration

package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/invalidation"
	"dossier/internal/platform/config"
	"dossier/pkg/testutil/containers"
)

func TestClientAgainstRealServer(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	cfg := config.Default().Redis
	cfg.URL = rc.Addr
	client, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Health(ctx))

	sub := rc.Client.Subscribe(ctx, "dossier.players.invalidate")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := invalidation.NewRedisPublisher(client.Client, "dossier.players.invalidate")
	require.NoError(t, publisher.Publish(ctx, invalidation.New("E7")))

	select {
	case msg := <-sub.Channel():
		var decoded invalidation.Message
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, []string{"E7"}, decoded.ExternalIDs)
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation message received")
	}
}
