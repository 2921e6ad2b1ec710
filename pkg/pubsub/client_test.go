package pubsub

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/feeledger/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{OrdersSubscription: "orders"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{OrdersSubscription: "  "}, nil); !errors.Is(err, errNothingConfigured) {
		t.Fatalf("expected nothing configured error, got %v", err)
	}
}

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "proj"}
	tests := []struct {
		kind, name, want string
	}{
		{kindSubscriptions, "orders-billing", "projects/proj/subscriptions/orders-billing"},
		{kindSubscriptions, "projects/other/subscriptions/orders", "projects/other/subscriptions/orders"},
		{kindTopics, "billing", "projects/proj/topics/billing"},
		{kindTopics, "projects/other/topics/billing", "projects/other/topics/billing"},
		{kindTopics, " ", ""},
	}
	for _, tt := range tests {
		if got := c.resourceName(tt.kind, tt.name); got != tt.want {
			t.Fatalf("resourceName(%q, %q) = %q, want %q", tt.kind, tt.name, got, tt.want)
		}
	}
}

func TestUnconfiguredHandles(t *testing.T) {
	var nilClient *Client
	if nilClient.BillingPublisher() != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if _, err := nilClient.OrdersSubscription(); !errors.Is(err, ErrOrdersSubscriptionUnset) {
		t.Fatalf("expected unset subscription error, got %v", err)
	}
	if err := nilClient.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}

func TestDescribeLookup(t *testing.T) {
	if err := describeLookup("topic", "billing", nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	notFound := describeLookup("subscription", "orders", status.Error(codes.NotFound, "gone"))
	if notFound == nil || notFound.Error() != `subscription "orders" does not exist` {
		t.Fatalf("unexpected not found error %v", notFound)
	}
	cause := status.Error(codes.PermissionDenied, "nope")
	if err := describeLookup("topic", "billing", cause); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestClientOptionsPrefersInlineJSON(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/billing/sa.json"}); len(opts) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ApplicationCredentials: "/etc/billing/sa.json"}); len(opts) != 1 {
		t.Fatalf("expected a credentials file option, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{ProjectID: "proj"}); opts != nil {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
}
