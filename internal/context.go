package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/survey-management/internal/core/identity"
)

type ctxKey string

const (
	ContextActorKey  ctxKey = "actor"
	ContextSourceKey ctxKey = "requestSource"
)

// RequestSource is the client address and agent of the request that caused an action.
type RequestSource struct {
	Address   string
	UserAgent string
}

func ContextWithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}

func ActorFromContext(ctx context.Context) (identity.Actor, bool) {
	if ctx == nil {
		return identity.Actor{}, false
	}
	actor, ok := ctx.Value(ContextActorKey).(identity.Actor)
	return actor, ok
}

func ContextWithRequestSource(ctx context.Context, src RequestSource) context.Context {
	return context.WithValue(ctx, ContextSourceKey, src)
}

// RequestSourceFromContext returns the zero value outside of a request (scheduled jobs).
func RequestSourceFromContext(ctx context.Context) RequestSource {
	if ctx == nil {
		return RequestSource{}
	}
	src, _ := ctx.Value(ContextSourceKey).(RequestSource)
	return src
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
