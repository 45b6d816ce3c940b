package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

const refreshTimeout = 15 * time.Second

// RefreshCoordinator exchanges the stored refresh token for a new
// credential pair. Concurrent demands are collapsed into one in-flight
// refresh: a page's worth of simultaneous 401s must produce exactly one
// call to the identity service, because a refresh rotates the refresh
// token and would invalidate itself for every caller but one.
type RefreshCoordinator struct {
	store      session.Store
	httpClient *http.Client
	authURL    string
	deviceInfo string
	logger     *zap.Logger

	group singleflight.Group

	// onSessionExpired tells the host to restart its authenticated state
	// after an irrecoverable refresh failure. The store is already
	// cleared when it fires.
	onSessionExpired func()
}

func NewRefreshCoordinator(store session.Store, httpClient *http.Client, authURL, deviceInfo string, logger *zap.Logger) *RefreshCoordinator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: refreshTimeout}
	}
	return &RefreshCoordinator{
		store:      store,
		httpClient: httpClient,
		authURL:    authURL,
		deviceInfo: deviceInfo,
		logger:     logger.Named("refresh"),
	}
}

// OnSessionExpired registers the host's reset hook.
func (c *RefreshCoordinator) OnSessionExpired(fn func()) {
	c.onSessionExpired = fn
}

// Refresh obtains a new access token, joining any refresh already in
// flight. Every waiter receives the same token or the same failure. On
// failure the session store has been cleared and the host signalled.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (string, error) {
	token, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		// The shared refresh must not be poisoned by one impatient
		// caller's context; it runs on its own deadline.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.doRefresh(refreshCtx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (c *RefreshCoordinator) doRefresh(ctx context.Context) (string, error) {
	pair, ok := c.store.Get()
	if !ok || pair.RefreshToken == "" {
		c.expireSession()
		return "", fmt.Errorf("%w: no refresh token", ErrRefreshDenied)
	}

	body, err := json.Marshal(map[string]string{
		"refreshToken": pair.RefreshToken,
		"deviceInfo":   c.deviceInfo,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/refresh", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.expireSession()
		return "", fmt.Errorf("%w: %v", ErrRefreshDenied, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.expireSession()
		return "", fmt.Errorf("%w: identity service returned %d", ErrRefreshDenied, resp.StatusCode)
	}

	var newPair domain.CredentialPair
	if err := json.NewDecoder(resp.Body).Decode(&newPair); err != nil || newPair.AccessToken == "" {
		c.expireSession()
		return "", fmt.Errorf("%w: malformed refresh response", ErrRefreshDenied)
	}

	// Both tokens rotate; the old pair is dead from here on. The store
	// must hold the new pair before any waiter resumes.
	if err := c.store.Set(newPair); err != nil {
		return "", fmt.Errorf("failed to persist refreshed session: %w", err)
	}

	c.logger.Debug("access token refreshed")
	return newPair.AccessToken, nil
}

func (c *RefreshCoordinator) expireSession() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear session store", zap.Error(err))
	}
	c.logger.Info("session expired, cleared credentials")
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}
