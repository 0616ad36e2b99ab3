package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

type principalKey struct{}

// principal is the authenticated caller; the zero value is anonymous.
type principal struct {
	userID    string
	role      string
	sessionID string
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, mutate func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	mutate(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

// UserUUIDFromContext is uuid.Nil for anonymous callers.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(principalFrom(ctx).userID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string { return principalFrom(ctx).role }

// SessionIDFromContext is the jti of the presented token.
func SessionIDFromContext(ctx context.Context) string { return principalFrom(ctx).sessionID }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithRole(ctx context.Context, role enums.UserRole) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = string(role) })
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.sessionID = sessionID })
}
