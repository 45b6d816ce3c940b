package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

// IdentityClient covers the identity service's credential-issuing flows:
// login, registration and the two logout variants. Refreshing lives in
// RefreshCoordinator.
type IdentityClient struct {
	store      session.Store
	api        *Client
	httpClient *http.Client
	authURL    string
	deviceInfo string
	logger     *zap.Logger
}

func NewIdentityClient(store session.Store, api *Client, httpClient *http.Client, authURL, deviceInfo string, logger *zap.Logger) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &IdentityClient{
		store:      store,
		api:        api,
		httpClient: httpClient,
		authURL:    authURL,
		deviceInfo: deviceInfo,
		logger:     logger.Named("identity"),
	}
}

// Login exchanges credentials for a token pair and stores it.
func (c *IdentityClient) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{
		"username":   username,
		"password":   password,
		"deviceInfo": c.deviceInfo,
	}

	var pair domain.CredentialPair
	if err := c.post(ctx, "/login", payload, &pair); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return fmt.Errorf("identity service returned an incomplete token pair")
	}

	if err := c.store.Set(pair); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.logger.Info("logged in", zap.String("username", username))
	return nil
}

// Register creates an account. The user logs in separately afterwards.
func (c *IdentityClient) Register(ctx context.Context, name, username, password string) error {
	payload := map[string]string{
		"name":     name,
		"username": username,
		"password": password,
	}
	return c.post(ctx, "/register", payload, nil)
}

// Logout revokes the refresh token remotely, best effort: the local
// session is cleared whether or not the identity service is reachable.
func (c *IdentityClient) Logout(ctx context.Context) error {
	if pair, ok := c.store.Get(); ok && pair.RefreshToken != "" {
		payload := map[string]string{"refreshToken": pair.RefreshToken}
		if err := c.post(ctx, "/logout", payload, nil); err != nil {
			c.logger.Warn("remote logout failed, logging out locally anyway", zap.Error(err))
		}
	}
	return c.store.Clear()
}

// LogoutAll revokes every refresh token for the account. The call is
// authenticated; local logout proceeds regardless of the outcome.
func (c *IdentityClient) LogoutAll(ctx context.Context) error {
	if pair, ok := c.store.Get(); ok && pair.RefreshToken != "" {
		payload := map[string]string{"refreshToken": pair.RefreshToken}
		if err := c.api.Do(ctx, http.MethodPost, c.authURL+"/logout-all", payload, nil); err != nil {
			c.logger.Warn("logout-all failed, logging out locally anyway", zap.Error(err))
		}
	}
	return c.store.Clear()
}

func (c *IdentityClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
