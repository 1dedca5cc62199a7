package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// The daemon only serves the presentation layer on this device, so the
// allowed origins are the local dev servers the UI runs from.
var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8081",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8081",
}

// CORS returns middleware that applies the loopback origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
