// Package pubsub wraps the Cloud Pub/Sub v2 client for the domain event bus.
// Publishers are cached per topic and flushed on Close.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

var (
	ErrProjectIDRequired = errors.New("pubsub: gcp project id is required")
	ErrNotConfigured     = errors.New("pubsub: resource name not configured")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	// probes run on boot and on every Ping.
	probes []func(context.Context) error

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewPublisherClient verifies the domain topic exists.
func NewPublisherClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	return newClient(ctx, gcp, cfg, logg, func(c *Client) func(context.Context) error {
		return func(ctx context.Context) error { return c.topicExists(ctx, cfg.DomainTopic) }
	})
}

// NewSubscriberClient verifies the domain subscription exists.
func NewSubscriberClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	return newClient(ctx, gcp, cfg, logg, func(c *Client) func(context.Context) error {
		return func(ctx context.Context) error { return c.subscriptionExists(ctx, cfg.DomainSubscription) }
	})
}

func newClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, probe func(*Client) func(context.Context) error) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub: new client: %w", err)
	}
	c := &Client{
		client:     ps,
		projectID:  projectID,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	c.probes = append(c.probes, probe(c))
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":      projectID,
			"topic":        cfg.DomainTopic,
			"subscription": cfg.DomainSubscription,
		}), "pubsub client ready")
	}
	return c, nil
}

func (c *Client) topicExists(ctx context.Context, name string) error {
	full := c.topicResourceName(name)
	if full == "" {
		return fmt.Errorf("%w: topic", ErrNotConfigured)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	return describeLookup("topic", name, err)
}

func (c *Client) subscriptionExists(ctx context.Context, name string) error {
	full := c.subscriptionResourceName(name)
	if full == "" {
		return fmt.Errorf("%w: subscription", ErrNotConfigured)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	return describeLookup("subscription", name, err)
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: %s %q does not exist", kind, name)
	default:
		return fmt.Errorf("pubsub: get %s %q: %w", kind, name, err)
	}
}

// Subscription accepts an ID or a full resource name and applies the
// configured flow control.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.subscriptionResourceName(name)
	if full == "" {
		return nil
	}
	sub := c.client.Subscriber(full)
	if c.cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstandingMessages
	}
	if c.cfg.ReceiveGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = c.cfg.ReceiveGoroutines
	}
	return sub
}

func (c *Client) DomainSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.DomainSubscription)
}

// Publisher returns the shared handle for a topic.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicResourceName(name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	c.publishers[full] = p
	return p
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub: client not initialized")
	}
	for _, probe := range c.probes {
		if err := probe(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) subscriptionResourceName(name string) string {
	return resourceName(c.projectID, "subscriptions", name)
}

func (c *Client) topicResourceName(name string) string {
	return resourceName(c.projectID, "topics", name)
}

// resourceName passes through names already qualified as projects/*/kind/*.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
