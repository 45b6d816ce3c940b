package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PickFolio/pickfolio-go/internal/auth"
	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

func seededStore(t *testing.T, pair domain.CredentialPair) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(pair))
	return store
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	var refreshCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refresh", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "old-refresh", req["refreshToken"])
		require.Equal(t, "test-device", req["deviceInfo"])

		refreshCalls.Add(1)
		time.Sleep(100 * time.Millisecond)
		json.NewEncoder(w).Encode(domain.CredentialPair{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
		})
	}))
	defer srv.Close()

	store := seededStore(t, domain.CredentialPair{AccessToken: "old-access", RefreshToken: "old-refresh"})
	coordinator := auth.NewRefreshCoordinator(store, srv.Client(), srv.URL, "test-device", zap.NewNop())

	const callers = 16
	start := make(chan struct{})
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, refreshCalls.Load(), "concurrent refreshes must collapse into one")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "new-access", tokens[i])
	}

	stored, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, domain.CredentialPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, stored)
}

func TestRefreshDeniedClearsSessionAndSignalsHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"refresh token revoked"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := seededStore(t, domain.CredentialPair{AccessToken: "old-access", RefreshToken: "old-refresh"})
	coordinator := auth.NewRefreshCoordinator(store, srv.Client(), srv.URL, "test-device", zap.NewNop())

	var expired atomic.Int32
	coordinator.OnSessionExpired(func() { expired.Add(1) })

	_, err := coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, auth.ErrRefreshDenied)

	_, ok := store.Get()
	require.False(t, ok, "session must be cleared after a denied refresh")
	require.EqualValues(t, 1, expired.Load())
}

func TestRefreshWithoutRefreshTokenFailsWithoutNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	coordinator := auth.NewRefreshCoordinator(store, srv.Client(), srv.URL, "test-device", zap.NewNop())

	_, err := coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, auth.ErrRefreshDenied)
	require.EqualValues(t, 0, calls.Load())
}

func TestRefreshMalformedResponseIsDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	store := seededStore(t, domain.CredentialPair{AccessToken: "old-access", RefreshToken: "old-refresh"})
	coordinator := auth.NewRefreshCoordinator(store, srv.Client(), srv.URL, "test-device", zap.NewNop())

	_, err := coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, auth.ErrRefreshDenied)

	_, ok := store.Get()
	require.False(t, ok)
}
