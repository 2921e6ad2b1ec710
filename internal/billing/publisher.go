package billing

import (
	"context"
	"strings"

	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/logger"
	"github.com/angelmondragon/feeledger/pkg/pubsub"
)

// NewPublisher returns a Pub/Sub publisher for the billing topic, or a no-op
// publisher when no topic is configured. The returned func releases the client.
func NewPublisher(ctx context.Context, cfg *config.Config, logg *logger.Logger) (events.Publisher, func(), error) {
	if strings.TrimSpace(cfg.PubSub.BillingTopic) == "" {
		logg.Warn(ctx, "billing topic not configured, events are not published")
		return events.NoopPublisher{}, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := events.NewPubSubPublisher(client.BillingPublisher())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}, nil
}
