package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitRule counts requests along one dimension. Subject returns the
// value to count against; an empty subject skips the rule for that request.
type RateLimitRule struct {
	Dimension string
	Limit     int
	Subject   func(r *http.Request) (string, error)
}

// RateLimitPolicy is a named fixed window shared by a set of rules.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	rules  []RateLimitRule
}

// NewRateLimitPolicy drops rules with a non-positive limit.
func NewRateLimitPolicy(name string, window time.Duration, rules ...RateLimitRule) RateLimitPolicy {
	p := RateLimitPolicy{name: strings.ToLower(strings.TrimSpace(name)), window: window}
	if p.name == "" {
		p.name = "default"
	}
	for _, rule := range rules {
		if rule.Limit > 0 && rule.Subject != nil {
			p.rules = append(p.rules, rule)
		}
	}
	return p
}

// NewAuthRateLimitPolicy throttles credential endpoints by client IP and by
// the email in the JSON body.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	return NewRateLimitPolicy(name, window, PerIP(ipLimit), PerBodyEmail(emailLimit))
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && len(p.rules) > 0
}

func PerIP(limit int) RateLimitRule {
	return RateLimitRule{Dimension: "ip", Limit: limit, Subject: func(r *http.Request) (string, error) {
		return clientIP(r), nil
	}}
}

// PerUser counts against the authenticated caller; mount it after Auth.
func PerUser(limit int) RateLimitRule {
	return RateLimitRule{Dimension: "user", Limit: limit, Subject: func(r *http.Request) (string, error) {
		if id := UserUUIDFromContext(r.Context()); id != uuid.Nil {
			return id.String(), nil
		}
		return "", nil
	}}
}

// PerBodyEmail buffers the body, hashes the normalized email and restores the
// body for the handler.
func PerBodyEmail(limit int) RateLimitRule {
	return RateLimitRule{Dimension: "email", Limit: limit, Subject: func(r *http.Request) (string, error) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		var payload struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(body, &payload) != nil {
			return "", nil
		}
		email := strings.ToLower(strings.TrimSpace(payload.Email))
		if email == "" {
			return "", nil
		}
		sum := sha256.Sum256([]byte(email))
		return hex.EncodeToString(sum[:]), nil
	}}
}

// RateLimit rejects with 429 once any rule of the policy exceeds its limit.
// Store failures answer 503 rather than letting traffic through.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, rule := range policy.rules {
				subject, err := rule.Subject(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request"))
					return
				}
				if subject == "" {
					continue
				}
				key := store.RateLimitKey(policy.name + ":" + rule.Dimension + ":" + subject)
				count, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(rule.Limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":    policy.name,
							"dimension": rule.Dimension,
							"attempts":  count,
							"limit":     rule.Limit,
						}), "rate_limit.blocked")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
