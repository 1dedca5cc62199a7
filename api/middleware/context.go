package middleware

import (
	"context"

	"github.com/openbasket/storefront/internal/session"
)

type contextKey string

const ctxSessionMode contextKey = "session_mode"

func ModeFromContext(ctx context.Context) session.Mode {
	if ctx == nil {
		return session.ModeAnonymous
	}
	if v, ok := ctx.Value(ctxSessionMode).(session.Mode); ok && v.Valid() {
		return v
	}
	return session.ModeAnonymous
}

// WithMode injects the resolved session mode into the context.
func WithMode(ctx context.Context, mode session.Mode) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionMode, mode)
}
