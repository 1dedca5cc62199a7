package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/openbasket/storefront/pkg/auth"
	"github.com/openbasket/storefront/pkg/config"
	pkgerrors "github.com/openbasket/storefront/pkg/errors"
	"github.com/openbasket/storefront/pkg/logger"
	redisclient "github.com/openbasket/storefront/pkg/redis"
)

type tokenStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type tokenKeyer interface {
	SessionTokenKey(deviceID string) string
}

// Listener is notified after the session transitions. Login listeners run
// before the caller sees the new session so cart reconciliation happens
// exactly once per transition.
type Listener interface {
	OnLogin(ctx context.Context, userID uuid.UUID) error
	OnLogout(ctx context.Context) error
}

// Manager owns the device's marketplace session: the cached bearer token,
// the derived mode, and the login/logout transitions.
type Manager struct {
	cfg      config.SessionConfig
	store    tokenStore
	keyer    tokenKeyer
	deviceID string
	logg     *logger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	token     string
	claims    *auth.SessionClaims
	listeners []Listener
}

// NewManager constructs a session manager backed by the Redis token cache.
// A token left over from a previous process is restored when still valid.
func NewManager(ctx context.Context, client *redisclient.Client, cfg config.SessionConfig, deviceID string, logg *logger.Logger) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("device id is required")
	}

	m := &Manager{
		cfg:      cfg,
		store:    client,
		keyer:    client,
		deviceID: deviceID,
		logg:     logg,
		now:      time.Now,
	}
	m.restore(ctx)
	return m, nil
}

// Subscribe registers a listener for session transitions. Not safe to call
// concurrently with Login/Logout; wire listeners during startup.
func (m *Manager) Subscribe(listener Listener) {
	if listener == nil {
		return
	}
	m.listeners = append(m.listeners, listener)
}

// Login installs the marketplace token handed over by the presentation layer
// and fans the transition out to listeners. The session is established even
// when a listener fails; those errors are aggregated and returned so the
// caller can surface the partial reconciliation.
func (m *Manager) Login(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := auth.InspectToken(m.cfg, token, m.now())
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "token rejected")
	}

	ttl := auth.RemainingTTL(m.cfg, claims, m.now())
	if err := m.store.Set(ctx, m.keyer.SessionTokenKey(m.deviceID), token, ttl); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cache session token")
	}

	m.mu.Lock()
	m.token = token
	m.claims = claims
	m.mu.Unlock()

	var listenerErr error
	for _, listener := range m.listeners {
		listenerErr = multierr.Append(listenerErr, listener.OnLogin(ctx, claims.UserID))
	}
	if listenerErr != nil && m.logg != nil {
		m.logg.Error(ctx, "login transition incomplete", listenerErr)
	}
	return claims.UserID, listenerErr
}

// Logout drops the cached token and fans the transition out to listeners.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.store.Del(ctx, m.keyer.SessionTokenKey(m.deviceID))
	if err != nil && !errors.Is(err, redislib.Nil) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "drop session token")
	}

	m.mu.Lock()
	m.token = ""
	m.claims = nil
	m.mu.Unlock()

	var listenerErr error
	for _, listener := range m.listeners {
		listenerErr = multierr.Append(listenerErr, listener.OnLogout(ctx))
	}
	return listenerErr
}

// Mode derives the current session mode. An expired token means anonymous;
// the stale cache entry is cleared on the way out.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	claims := m.claims
	token := m.token
	m.mu.RUnlock()

	if token == "" || claims == nil {
		return ModeAnonymous
	}
	if auth.Expired(m.cfg, claims, m.now()) {
		m.expire()
		return ModeAnonymous
	}
	return ModeAuthenticated
}

// Token implements the gateway token source. It fails with an auth error when
// no live session exists so authenticated calls cannot go out half-signed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	claims := m.claims
	token := m.token
	m.mu.RUnlock()

	if token == "" || claims == nil || auth.Expired(m.cfg, claims, m.now()) {
		return "", pkgerrors.New(pkgerrors.CodeAuthRequired, "no active session")
	}
	return token, nil
}

// UserID returns the signed-in shopper's id, or uuid.Nil when anonymous.
func (m *Manager) UserID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.claims == nil {
		return uuid.Nil
	}
	return m.claims.UserID
}

func (m *Manager) expire() {
	m.mu.Lock()
	m.token = ""
	m.claims = nil
	m.mu.Unlock()
	if err := m.store.Del(context.Background(), m.keyer.SessionTokenKey(m.deviceID)); err != nil && m.logg != nil {
		m.logg.Warn(context.Background(), "failed to drop expired session token")
	}
}

func (m *Manager) restore(ctx context.Context) {
	token, err := m.store.Get(ctx, m.keyer.SessionTokenKey(m.deviceID))
	if err != nil {
		if !errors.Is(err, redislib.Nil) && m.logg != nil {
			m.logg.Warn(ctx, "failed to read cached session token")
		}
		return
	}
	claims, err := auth.InspectToken(m.cfg, token, m.now())
	if err != nil {
		_ = m.store.Del(ctx, m.keyer.SessionTokenKey(m.deviceID))
		return
	}
	m.token = token
	m.claims = claims
}
