package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel is the pub/sub channel change events are published on.
// Map-rendering collaborators subscribe here to drop or draw region
// overlays without waiting for the next page load.
const ChangeChannel = "gridscape:region_access"

// Publisher forwards change events to Redis pub/sub. Publishing is
// best effort: a subscriber that missed an event reads fresh state on
// its next full load.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// RegionAccessChanged implements Subscriber.
func (p *Publisher) RegionAccessChanged(ctx context.Context, change Change) {
	if p == nil || p.client == nil {
		return
	}
	payload, err := json.Marshal(change)
	if err != nil {
		p.warn("marshal change event", err)
		return
	}
	if err := p.client.Publish(ctx, ChangeChannel, payload).Err(); err != nil {
		p.warn("publish change event", err)
	}
}

func (p *Publisher) warn(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn("reconcile: "+msg, slog.Any("error", err))
	}
}
