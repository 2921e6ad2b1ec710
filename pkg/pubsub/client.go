// Package pubsub wraps the Pub/Sub v2 client used for order events and billing notifications.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

const (
	kindSubscriptions = "subscriptions"
	kindTopics        = "topics"
)

var (
	errProjectIDRequired       = errors.New("gcp project id is required")
	errNothingConfigured       = errors.New("neither an orders subscription nor a billing topic is configured")
	ErrOrdersSubscriptionUnset = errors.New("orders subscription is not configured")
)

// Client holds the billing service's view of Pub/Sub: the orders subscription
// it consumes and the billing topic it publishes to. Either may be unset.
type Client struct {
	client    *pubsub.Client
	projectID string
	orders    string
	billing   string
}

// NewClient connects to Pub/Sub and verifies that every configured resource exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	orders, billing := strings.TrimSpace(cfg.OrdersSubscription), strings.TrimSpace(cfg.BillingTopic)
	if orders == "" && billing == "" {
		return nil, errNothingConfigured
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, orders: orders, billing: billing}

	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"orders_subscription": orders,
			"billing_topic":       billing,
		}), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline service-account JSON over a credentials file.
// With neither set the client falls back to application default credentials,
// which also covers PUBSUB_EMULATOR_HOST in local runs.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(strings.TrimSpace(gcp.ApplicationCredentials))}
	}
	return nil
}

// Ping checks that the configured subscription and topic still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	if c.orders != "" {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: c.resourceName(kindSubscriptions, c.orders),
		})
		if err := describeLookup("subscription", c.orders, err); err != nil {
			return err
		}
	}
	if c.billing != "" {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: c.resourceName(kindTopics, c.billing),
		})
		if err := describeLookup("topic", c.billing, err); err != nil {
			return err
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// OrdersSubscription returns the subscriber for order lifecycle events.
func (c *Client) OrdersSubscription() (*pubsub.Subscriber, error) {
	if c == nil || c.client == nil || c.orders == "" {
		return nil, ErrOrdersSubscriptionUnset
	}
	return c.client.Subscriber(c.resourceName(kindSubscriptions, c.orders)), nil
}

// BillingPublisher returns the publisher for billing notifications, or nil when
// no billing topic is configured.
func (c *Client) BillingPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil || c.billing == "" {
		return nil
	}
	return c.client.Publisher(c.resourceName(kindTopics, c.billing))
}

// Close flushes publishers and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id into projects/<project>/<kind>/<id>; fully
// qualified names pass through.
func (c *Client) resourceName(kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
