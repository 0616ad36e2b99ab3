package redis

import "strings"

// Every key lives under "fj:" followed by its purpose.
const (
	keyNamespace      = "fj"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	cartPrefix        = "cart"
	lockPrefix        = "lock"
	eventPrefix       = "event"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return buildKey(sessionPrefix, "access", accessID)
}

// CartKey holds a client's cart document.
func (c *Client) CartKey(clientID string) string {
	return buildKey(cartPrefix, clientID)
}

func (c *Client) LockKey(name string) string {
	return buildKey(lockPrefix, name)
}

// ProcessedEventKey marks a domain event as handled by one consumer.
func (c *Client) ProcessedEventKey(consumer, eventID string) string {
	return buildKey(eventPrefix, consumer, eventID)
}

func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
