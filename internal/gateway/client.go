package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openbasket/storefront/pkg/cart"
	"github.com/openbasket/storefront/pkg/config"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
)

const (
	defaultTimeout             = 15 * time.Second
	errorBodyReadLimit   int64 = 2048
	defaultUserAgent           = "openbasket-storefront"
	cartPath                   = "/v1/cart"
	cartItemsPath              = "/v1/cart/items"
	cartCouponPath             = "/v1/cart/coupon"
	wishlistItemsPath          = "/v1/wishlist/items"
)

// TokenSource supplies the bearer token for authenticated marketplace calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the marketplace cart API. The server copy is authoritative:
// every successful call returns the full cart as the server now sees it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	tokens     TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the marketplace client from gateway config.
func NewClient(cfg config.GatewayConfig, tokens TokenSource, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  userAgent,
		tokens:     tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// AddItemRequest is the payload for creating a server cart line.
type AddItemRequest struct {
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Options   map[string]string `json:"options,omitempty"`
}

// GetCart fetches the authoritative cart for the signed-in shopper.
func (c *Client) GetCart(ctx context.Context) (*cart.Cart, error) {
	return c.doCart(ctx, http.MethodGet, cartPath, nil)
}

// AddItem creates or merges a server cart line.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (*cart.Cart, error) {
	return c.doCart(ctx, http.MethodPost, cartItemsPath, req)
}

// UpdateItem sets the quantity on an existing server cart line.
func (c *Client) UpdateItem(ctx context.Context, itemID int64, quantity int) (*cart.Cart, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return c.doCart(ctx, http.MethodPatch, fmt.Sprintf("%s/%d", cartItemsPath, itemID), body)
}

// RemoveItem deletes a server cart line.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) (*cart.Cart, error) {
	return c.doCart(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", cartItemsPath, itemID), nil)
}

// ApplyCoupon attaches a coupon code to the server cart.
func (c *Client) ApplyCoupon(ctx context.Context, code string) (*cart.Cart, error) {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return c.doCart(ctx, http.MethodPost, cartCouponPath, body)
}

// RemoveCoupon detaches the current coupon from the server cart.
func (c *Client) RemoveCoupon(ctx context.Context) (*cart.Cart, error) {
	return c.doCart(ctx, http.MethodDelete, cartCouponPath, nil)
}

// MoveToWishlist saves a cart line's product to the wishlist and then removes
// the line. The cart line is only touched after the wishlist write is
// acknowledged, so a failed save leaves the cart intact.
func (c *Client) MoveToWishlist(ctx context.Context, itemID int64, productID string) (*cart.Cart, error) {
	body := struct {
		ProductID string `json:"product_id"`
	}{ProductID: productID}
	if err := c.do(ctx, http.MethodPost, wishlistItemsPath, body, nil); err != nil {
		return nil, err
	}
	updated, err := c.RemoveItem(ctx, itemID)
	if err != nil && (pkgerrors.HasCode(err, pkgerrors.CodeNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeConflict)) {
		// Someone removed the line while the wishlist write was in
		// flight. The product is saved and the line is gone, which is
		// the state that was asked for.
		return c.GetCart(ctx)
	}
	return updated, err
}

func (c *Client) doCart(ctx context.Context, method, path string, body any) (*cart.Cart, error) {
	var payload struct {
		Data cart.Cart `json:"data"`
	}
	if err := c.do(ctx, method, path, body, &payload); err != nil {
		return nil, err
	}
	payload.Data.Recompute()
	return &payload.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "resolve session token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "reach marketplace")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "decode marketplace response")
	}
	return nil
}

// statusError maps the marketplace's HTTP status onto the client error
// taxonomy, carrying along whatever message the server returned.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	message := serverMessage(raw)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	cause := fmt.Errorf("status %d: %s", resp.StatusCode, message)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeAuthRequired, cause, "marketplace rejected session")
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, "marketplace resource not found")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "marketplace rejected request")
	case http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "marketplace reported conflict")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, cause, "marketplace request failed")
	}
}

func serverMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
