package middleware

import (
	"net/http"

	"github.com/openbasket/storefront/internal/session"
	"github.com/openbasket/storefront/pkg/logger"
)

// ModeSource resolves the current session mode.
type ModeSource interface {
	Mode() session.Mode
}

// SessionMode resolves the session mode once per request and threads it
// through the context, so every handler passes the same mode to the engine
// even if the token expires mid-request.
func SessionMode(source ModeSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mode := session.ModeAnonymous
			if source != nil {
				mode = source.Mode()
			}

			ctx := WithMode(r.Context(), mode)
			if logg != nil {
				ctx = logg.WithSessionMode(ctx, mode.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
