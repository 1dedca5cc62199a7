package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/openbasket/storefront/api/responses"
	"github.com/openbasket/storefront/api/validators"
	"github.com/openbasket/storefront/internal/engine"
	"github.com/openbasket/storefront/internal/session"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
)

// SessionService is the slice of the session manager the handlers call.
type SessionService interface {
	Login(ctx context.Context, token string) (uuid.UUID, error)
	Logout(ctx context.Context) error
	Mode() session.Mode
	UserID() uuid.UUID
}

// CartSource exposes the reconciled cart for session responses.
type CartSource interface {
	Current() *engine.Result
}

type loginRequest struct {
	Token string `json:"token" validate:"required"`
}

// SessionLogin installs the marketplace token the presentation layer obtained
// and returns the reconciled cart. A failed guest cart merge does not undo
// the login; the guest lines stay on the device for the next attempt.
func SessionLogin(svc SessionService, carts CartSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := svc.Login(r.Context(), payload.Token)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeAuthRequired) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "login succeeded but cart merge is incomplete")
			}
		}

		current := carts.Current()
		responses.WriteSuccess(w, map[string]any{
			"user_id": userID.String(),
			"mode":    svc.Mode().String(),
			"cart":    current.Cart,
			"source":  string(current.Source),
		})
	}
}

// SessionLogout drops the session and resets to a fresh anonymous cart.
func SessionLogout(svc SessionService, carts CartSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		current := carts.Current()
		responses.WriteSuccess(w, map[string]any{
			"mode":   svc.Mode().String(),
			"cart":   current.Cart,
			"source": string(current.Source),
		})
	}
}

// SessionStatus reports the current mode without touching either backend.
func SessionStatus(svc SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"mode": svc.Mode().String()}
		if userID := svc.UserID(); userID != uuid.Nil {
			payload["user_id"] = userID.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
