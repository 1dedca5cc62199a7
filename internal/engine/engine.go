package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/openbasket/storefront/internal/gateway"
	"github.com/openbasket/storefront/internal/session"
	"github.com/openbasket/storefront/pkg/cart"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
	"github.com/openbasket/storefront/pkg/metrics"
)

// LocalStore is the device-local guest cart surface.
type LocalStore interface {
	GetGuestCart(ctx context.Context) (*cart.Cart, error)
	AddItem(ctx context.Context, snap cart.ProductSnapshot, quantity int) (*cart.Cart, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, itemID int64) (*cart.Cart, error)
	Clear(ctx context.Context) error
}

// Gateway is the marketplace cart surface used for signed-in shoppers.
type Gateway interface {
	GetCart(ctx context.Context) (*cart.Cart, error)
	AddItem(ctx context.Context, req gateway.AddItemRequest) (*cart.Cart, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, itemID int64) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, code string) (*cart.Cart, error)
	RemoveCoupon(ctx context.Context) (*cart.Cart, error)
	MoveToWishlist(ctx context.Context, itemID int64, productID string) (*cart.Cart, error)
}

// Source tags where a returned cart came from.
type Source string

const (
	SourceServer   Source = "server"
	SourceGuest    Source = "guest"
	SourceFallback Source = "fallback"
)

// Result pairs a cart with its provenance. The cart is always a private copy;
// callers can hold or modify it freely.
type Result struct {
	Cart   *cart.Cart `json:"cart"`
	Source Source     `json:"source"`
}

const couponGateKey = "coupon"

// itemGate serializes mutations that target the same line and tracks the
// newest sequence applied, so a response that lost the race can never
// overwrite fresher state.
type itemGate struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Engine owns the canonical cart. Successful operations replace it wholesale;
// failed ones leave it untouched. Mutations on the same line are serialized,
// mutations on different lines run in parallel.
type Engine struct {
	local   LocalStore
	remote  Gateway
	metrics *metrics.CartMetrics
	logg    *logger.Logger

	mu        sync.RWMutex
	canonical *cart.Cart
	source    Source

	gatesMu sync.Mutex
	gates   map[string]*itemGate
}

// New builds the reconciliation engine over the two cart backends.
func New(local LocalStore, remote Gateway, cartMetrics *metrics.CartMetrics, logg *logger.Logger) (*Engine, error) {
	if local == nil {
		return nil, fmt.Errorf("local store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	return &Engine{
		local:     local,
		remote:    remote,
		metrics:   cartMetrics,
		logg:      logg,
		canonical: cart.Empty(),
		source:    SourceGuest,
		gates:     make(map[string]*itemGate),
	}, nil
}

// Current returns the canonical cart as last reconciled, without touching
// either backend.
func (e *Engine) Current() *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Result{Cart: e.canonical.Clone(), Source: e.source}
}

// Load fetches the cart for the given session mode. An unreachable
// marketplace degrades to the last known snapshot, tagged as fallback, so
// the shopper always sees a cart.
func (e *Engine) Load(ctx context.Context, mode session.Mode) (*Result, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveDuration("load", mode.String(), time.Since(start)) }()

	if mode == session.ModeAnonymous {
		guest, err := e.local.GetGuestCart(ctx)
		if err != nil {
			// A corrupt device database reads as an empty cart. The
			// shopper re-adds their items; they never see a dead screen.
			if pkgerrors.HasCode(err, pkgerrors.CodeStorage) {
				e.metrics.IncFallback("storage")
				if e.logg != nil {
					e.logg.Warn(e.logg.WithCartOp(ctx, "load"), "guest cart store unreadable, starting empty")
				}
				return e.replace(cart.Empty(), SourceGuest), nil
			}
			e.metrics.IncFailure("load", mode.String(), errCode(err))
			return nil, err
		}
		e.metrics.IncSuccess("load", mode.String())
		return e.replace(guest, SourceGuest), nil
	}

	server, err := e.remote.GetCart(ctx)
	if err != nil {
		// A rejected token on a read means the session died upstream
		// before the manager noticed; degrade like an outage rather
		// than bouncing the shopper off their cart screen.
		switch {
		case pkgerrors.HasCode(err, pkgerrors.CodeNetwork):
			e.metrics.IncFallback("network")
			if e.logg != nil {
				e.logg.Warn(e.logg.WithCartOp(ctx, "load"), "marketplace unreachable, serving local snapshot")
			}
			return e.fallback(ctx), nil
		case pkgerrors.HasCode(err, pkgerrors.CodeAuthRequired):
			e.metrics.IncFallback("auth")
			if e.logg != nil {
				e.logg.Warn(e.logg.WithCartOp(ctx, "load"), "marketplace rejected the session, serving local snapshot")
			}
			return e.fallback(ctx), nil
		}
		e.metrics.IncFailure("load", mode.String(), errCode(err))
		return nil, err
	}
	e.metrics.IncSuccess("load", mode.String())
	return e.replace(server, SourceServer), nil
}

// AddItem adds the product to whichever cart the mode names.
func (e *Engine) AddItem(ctx context.Context, mode session.Mode, snap cart.ProductSnapshot, quantity int) (*Result, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	key := "product:" + snap.ProductID.String() + ":" + cart.OptionsKey(snap.Options)
	return e.mutate(ctx, "add_item", mode, key, func(ctx context.Context) (*cart.Cart, error) {
		if mode == session.ModeAnonymous {
			return e.local.AddItem(ctx, snap, quantity)
		}
		return e.remote.AddItem(ctx, gateway.AddItemRequest{
			ProductID: snap.ProductID.String(),
			Quantity:  quantity,
			Options:   snap.Options,
		})
	})
}

// UpdateQuantity sets the quantity on an existing line.
func (e *Engine) UpdateQuantity(ctx context.Context, mode session.Mode, itemID int64, quantity int) (*Result, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return e.mutate(ctx, "update_quantity", mode, itemKey(itemID), func(ctx context.Context) (*cart.Cart, error) {
		if mode == session.ModeAnonymous {
			return e.local.UpdateItem(ctx, itemID, quantity)
		}
		return e.remote.UpdateItem(ctx, itemID, quantity)
	})
}

// RemoveItem deletes a line. Removing a line that is already gone succeeds
// and returns the cart as it stands.
func (e *Engine) RemoveItem(ctx context.Context, mode session.Mode, itemID int64) (*Result, error) {
	return e.mutate(ctx, "remove_item", mode, itemKey(itemID), func(ctx context.Context) (*cart.Cart, error) {
		if mode == session.ModeAnonymous {
			return e.local.RemoveItem(ctx, itemID)
		}
		updated, err := e.remote.RemoveItem(ctx, itemID)
		if err != nil && (pkgerrors.HasCode(err, pkgerrors.CodeNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeConflict)) {
			// The line is gone either way; whoever deleted it first won.
			e.mu.RLock()
			defer e.mu.RUnlock()
			return e.canonical.Clone(), nil
		}
		return updated, err
	})
}

// ApplyCoupon attaches a coupon. Coupons only exist server-side, so an
// anonymous shopper is told to sign in and the cart is left as it was.
func (e *Engine) ApplyCoupon(ctx context.Context, mode session.Mode, code string) (*Result, error) {
	if err := e.requireAuthenticated("apply_coupon", mode); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	return e.mutate(ctx, "apply_coupon", mode, couponGateKey, func(ctx context.Context) (*cart.Cart, error) {
		return e.remote.ApplyCoupon(ctx, code)
	})
}

// RemoveCoupon detaches the active coupon. Auth-gated like ApplyCoupon.
func (e *Engine) RemoveCoupon(ctx context.Context, mode session.Mode) (*Result, error) {
	if err := e.requireAuthenticated("remove_coupon", mode); err != nil {
		return nil, err
	}
	return e.mutate(ctx, "remove_coupon", mode, couponGateKey, func(ctx context.Context) (*cart.Cart, error) {
		return e.remote.RemoveCoupon(ctx)
	})
}

// MoveToWishlist saves a line's product for later and removes the line.
// The wishlist lives server-side only.
func (e *Engine) MoveToWishlist(ctx context.Context, mode session.Mode, itemID int64) (*Result, error) {
	if err := e.requireAuthenticated("move_to_wishlist", mode); err != nil {
		return nil, err
	}

	e.mu.RLock()
	item := e.canonical.FindItem(itemID)
	var productID string
	if item != nil {
		productID = item.ProductID.String()
	}
	e.mu.RUnlock()
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	return e.mutate(ctx, "move_to_wishlist", mode, itemKey(itemID), func(ctx context.Context) (*cart.Cart, error) {
		return e.remote.MoveToWishlist(ctx, itemID, productID)
	})
}

// OnLogin transfers the guest cart into the shopper's server cart. Lines are
// added one by one; the server merges duplicates by summing quantities. The
// guest cart is only cleared once every line made it across, so a partial
// transfer can be retried without losing anything.
func (e *Engine) OnLogin(ctx context.Context, userID uuid.UUID) error {
	start := time.Now()
	mode := session.ModeAuthenticated
	defer func() { e.metrics.ObserveDuration("login_merge", mode.String(), time.Since(start)) }()

	ctx = e.opCtx(ctx, "login_merge", mode)
	guest, err := e.local.GetGuestCart(ctx)
	if err != nil {
		e.metrics.IncFailure("login_merge", mode.String(), errCode(err))
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read guest cart for merge")
	}

	var transferErr error
	for _, item := range guest.Items {
		_, err := e.remote.AddItem(ctx, gateway.AddItemRequest{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			Options:   item.Options,
		})
		transferErr = multierr.Append(transferErr, err)
	}
	if transferErr != nil {
		e.metrics.IncFailure("login_merge", mode.String(), errCode(transferErr))
		return transferErr
	}

	if err := e.local.Clear(ctx); err != nil {
		e.metrics.IncFailure("login_merge", mode.String(), errCode(err))
		return err
	}

	server, err := e.remote.GetCart(ctx)
	if err != nil {
		e.metrics.IncFailure("login_merge", mode.String(), errCode(err))
		return err
	}
	e.replace(server, SourceServer)
	e.metrics.IncSuccess("login_merge", mode.String())
	if e.logg != nil {
		e.logg.Info(e.logg.WithField(ctx, "user_id", userID.String()), "guest cart merged into server cart")
	}
	return nil
}

// OnLogout resets to a fresh anonymous cart. Nothing from the signed-in
// session survives on the device.
func (e *Engine) OnLogout(ctx context.Context) error {
	ctx = e.opCtx(ctx, "logout_reset", session.ModeAnonymous)
	if err := e.local.Clear(ctx); err != nil {
		e.metrics.IncFailure("logout_reset", session.ModeAnonymous.String(), errCode(err))
		return err
	}
	e.replace(cart.Empty(), SourceGuest)
	e.metrics.IncSuccess("logout_reset", session.ModeAnonymous.String())
	return nil
}

func (e *Engine) mutate(ctx context.Context, op string, mode session.Mode, key string, call func(context.Context) (*cart.Cart, error)) (*Result, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveDuration(op, mode.String(), time.Since(start)) }()

	gate := e.gateFor(key)
	gate.mu.Lock()
	defer gate.mu.Unlock()
	gate.issued++
	seq := gate.issued

	updated, err := call(e.opCtx(ctx, op, mode))
	if err != nil {
		e.metrics.IncFailure(op, mode.String(), errCode(err))
		return nil, err
	}

	e.metrics.IncSuccess(op, mode.String())
	source := SourceGuest
	if mode == session.ModeAuthenticated {
		source = SourceServer
	}
	return e.commit(gate, seq, updated, source), nil
}

// commit installs the backend's cart as canonical unless a newer mutation on
// the same line already landed, in which case the stale payload is dropped.
func (e *Engine) commit(gate *itemGate, seq uint64, updated *cart.Cart, source Source) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq <= gate.applied {
		return &Result{Cart: e.canonical.Clone(), Source: e.source}
	}
	gate.applied = seq
	e.canonical = updated.Clone()
	e.source = source
	return &Result{Cart: e.canonical.Clone(), Source: source}
}

func (e *Engine) replace(updated *cart.Cart, source Source) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canonical = updated.Clone()
	e.source = source
	return &Result{Cart: e.canonical.Clone(), Source: source}
}

// fallback serves the best cart available without the marketplace: the last
// canonical copy if one exists, otherwise whatever the local store holds.
func (e *Engine) fallback(ctx context.Context) *Result {
	e.mu.RLock()
	hasCanonical := len(e.canonical.Items) > 0 || e.canonical.CouponCode != ""
	snapshot := e.canonical.Clone()
	e.mu.RUnlock()
	if hasCanonical {
		return &Result{Cart: snapshot, Source: SourceFallback}
	}
	if guest, err := e.local.GetGuestCart(ctx); err == nil {
		return &Result{Cart: guest.Clone(), Source: SourceFallback}
	}
	return &Result{Cart: cart.Empty(), Source: SourceFallback}
}

func (e *Engine) requireAuthenticated(op string, mode session.Mode) error {
	if mode == session.ModeAuthenticated {
		return nil
	}
	e.metrics.IncFailure(op, mode.String(), string(pkgerrors.CodeAuthRequired))
	return pkgerrors.New(pkgerrors.CodeAuthRequired, "sign in to use this feature")
}

func (e *Engine) gateFor(key string) *itemGate {
	e.gatesMu.Lock()
	defer e.gatesMu.Unlock()
	gate, ok := e.gates[key]
	if !ok {
		gate = &itemGate{}
		e.gates[key] = gate
	}
	return gate
}

func (e *Engine) opCtx(ctx context.Context, op string, mode session.Mode) context.Context {
	if e.logg == nil {
		return ctx
	}
	return e.logg.WithCartOp(e.logg.WithSessionMode(ctx, mode.String()), op)
}

func itemKey(itemID int64) string {
	return fmt.Sprintf("item:%d", itemID)
}

func errCode(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
