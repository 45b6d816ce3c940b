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

	"github.com/PickFolio/pickfolio-go/internal/session"
)

const fallbackErrorMessage = "An unknown error occurred"

// Client issues single logical requests against protected endpoints. It
// attaches the bearer token, retries exactly once after a coordinated
// refresh on a 401, and surfaces every failure as an error value the
// caller can inspect with errors.Is / errors.As.
type Client struct {
	store       session.Store
	coordinator *RefreshCoordinator
	httpClient  *http.Client
	logger      *zap.Logger
	now         func() time.Time
}

func NewClient(store session.Store, coordinator *RefreshCoordinator, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		store:       store,
		coordinator: coordinator,
		httpClient:  httpClient,
		logger:      logger.Named("client"),
		now:         time.Now,
	}
}

// envelope is the contest service's response convention. Endpoints that
// return a bare document leave both fields unset.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Do issues one authenticated request. A JSON-marshalable body may be nil;
// out may be nil to discard the response document.
func (c *Client) Do(ctx context.Context, method, url string, body, out interface{}) error {
	return c.DoWithHeaders(ctx, method, url, nil, body, out)
}

// DoWithHeaders is Do with extra request headers. Authorization and
// Content-Type are applied after the caller's headers, so callers cannot
// suppress them.
func (c *Client) DoWithHeaders(ctx context.Context, method, url string, header http.Header, body, out interface{}) error {
	pair, ok := c.store.Get()
	if !ok {
		return ErrUnauthenticated
	}
	token := pair.AccessToken

	// Proactive expiry check. Purely an optimization to skip a request
	// that is certain to bounce; the 401 path below stays authoritative.
	if claims, err := IntrospectAccessToken(token); err == nil && claims.Expired(c.now()) {
		token, err = c.coordinator.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, respBody, err := c.send(ctx, method, url, header, bodyBytes, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// One coordinated refresh, then one retry. Never more: a
		// service that keeps rejecting us must not be hammered in a loop.
		token, err = c.coordinator.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		resp, respBody, err = c.send(ctx, method, url, header, bodyBytes, token)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if len(respBody) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err == nil {
		if env.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
		}
		if env.Data != nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url string, header http.Header, body []byte, token string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, respBody, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fallbackErrorMessage
}
