package cart

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openbasket/storefront/api/middleware"
	"github.com/openbasket/storefront/api/responses"
	"github.com/openbasket/storefront/api/validators"
	"github.com/openbasket/storefront/internal/engine"
	"github.com/openbasket/storefront/internal/session"
	pkgcart "github.com/openbasket/storefront/pkg/cart"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
)

// Service is the slice of the reconciliation engine the handlers call.
type Service interface {
	Load(ctx context.Context, mode session.Mode) (*engine.Result, error)
	AddItem(ctx context.Context, mode session.Mode, snap pkgcart.ProductSnapshot, quantity int) (*engine.Result, error)
	UpdateQuantity(ctx context.Context, mode session.Mode, itemID int64, quantity int) (*engine.Result, error)
	RemoveItem(ctx context.Context, mode session.Mode, itemID int64) (*engine.Result, error)
	ApplyCoupon(ctx context.Context, mode session.Mode, code string) (*engine.Result, error)
	RemoveCoupon(ctx context.Context, mode session.Mode) (*engine.Result, error)
	MoveToWishlist(ctx context.Context, mode session.Mode, itemID int64) (*engine.Result, error)
}

// Fetch returns the cart for the current session mode.
func Fetch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Load(r.Context(), middleware.ModeFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// AddItem adds a product to the cart.
func AddItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddItem(r.Context(), middleware.ModeFromContext(r.Context()), payload.snapshot(), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// UpdateQuantity sets the quantity on an existing line.
func UpdateQuantity(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateQuantity(r.Context(), middleware.ModeFromContext(r.Context()), itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// RemoveItem deletes a line from the cart.
func RemoveItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RemoveItem(r.Context(), middleware.ModeFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// ApplyCoupon attaches a coupon code to the cart.
func ApplyCoupon(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload ApplyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApplyCoupon(r.Context(), middleware.ModeFromContext(r.Context()), payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// RemoveCoupon detaches the active coupon.
func RemoveCoupon(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.RemoveCoupon(r.Context(), middleware.ModeFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

// MoveToWishlist saves a line's product for later and removes the line.
func MoveToWishlist(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.MoveToWishlist(r.Context(), middleware.ModeFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, result)
	}
}

func writeResult(w http.ResponseWriter, result *engine.Result) {
	responses.WriteCart(w, result.Cart, string(result.Source))
}

func itemIDFromURL(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "itemID")
	itemID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || itemID < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id")
	}
	return itemID, nil
}
