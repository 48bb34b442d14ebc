package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherPublishesChangeEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), ChangeChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	publisher := NewPublisher(client, nil)
	change := Change{PrincipalID: 7, Added: []string{"Karnataka"}, Removed: []string{"Maharashtra"}}
	publisher.RegionAccessChanged(context.Background(), change)

	select {
	case msg := <-sub.Channel():
		var got Change
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, change, got)
	case <-time.After(time.Second):
		t.Fatal("no message received on change channel")
	}
}

func TestPublisherSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	publisher := NewPublisher(client, nil)
	publisher.RegionAccessChanged(context.Background(), Change{PrincipalID: 7, Added: []string{"Kerala"}})
}

func TestNilPublisherIsSafe(t *testing.T) {
	var publisher *Publisher
	publisher.RegionAccessChanged(context.Background(), Change{PrincipalID: 1})

	NewPublisher(nil, nil).RegionAccessChanged(context.Background(), Change{PrincipalID: 1})
}
