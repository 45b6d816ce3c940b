package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PickFolio/pickfolio-go/internal/auth"
	"github.com/PickFolio/pickfolio-go/internal/domain"
	"github.com/PickFolio/pickfolio-go/internal/session"
)

// testBackend bundles a fake identity service and a fake protected
// resource behind one httptest server.
type testBackend struct {
	srv          *httptest.Server
	refreshCalls atomic.Int32
	apiCalls     atomic.Int32
	handleAPI    func(w http.ResponseWriter, r *http.Request, attempt int32)
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/refresh"):
			b.refreshCalls.Add(1)
			// Hold the refresh open briefly so concurrent callers pile up
			// on the single flight instead of racing past it.
			time.Sleep(50 * time.Millisecond)
			json.NewEncoder(w).Encode(domain.CredentialPair{
				AccessToken:  "new-access",
				RefreshToken: "new-refresh",
			})
		default:
			attempt := b.apiCalls.Add(1)
			b.handleAPI(w, r, attempt)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newTestClient(t *testing.T, b *testBackend, pair domain.CredentialPair) (*auth.Client, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(pair))
	coordinator := auth.NewRefreshCoordinator(store, b.srv.Client(), b.srv.URL, "test-device", zap.NewNop())
	return auth.NewClient(store, coordinator, b.srv.Client(), zap.NewNop()), store
}

func validPair(t *testing.T) domain.CredentialPair {
	return domain.CredentialPair{
		AccessToken:  mintToken(t, "user-1", time.Now().Add(time.Hour)),
		RefreshToken: "old-refresh",
	}
}

func TestDoWithoutSessionShortCircuits(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {}

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(validPair(t)))
	require.NoError(t, store.Clear())

	coordinator := auth.NewRefreshCoordinator(store, b.srv.Client(), b.srv.URL, "test-device", zap.NewNop())
	client := auth.NewClient(store, coordinator, b.srv.Client(), zap.NewNop())

	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, nil)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	require.EqualValues(t, 0, b.apiCalls.Load(), "no network call may happen without credentials")
	require.EqualValues(t, 0, b.refreshCalls.Load())
}

func TestDoRetriesOnceAfterRefresh(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		if attempt == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"value": "ok"})
	}

	client, _ := newTestClient(t, b, validPair(t))

	var out struct {
		Value string `json:"value"`
	}
	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, &out)
	require.NoError(t, err)
	require.Equal(t, "ok", out.Value)
	require.EqualValues(t, 2, b.apiCalls.Load())
	require.EqualValues(t, 1, b.refreshCalls.Load())
}

func TestDoNeverRetriesTwice(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		w.WriteHeader(http.StatusUnauthorized)
	}

	client, _ := newTestClient(t, b, validPair(t))

	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, nil)

	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.EqualValues(t, 2, b.apiCalls.Load(), "exactly one retry per logical call")
	require.EqualValues(t, 1, b.refreshCalls.Load())
}

func TestDoSessionExpiredWhenRefreshFails(t *testing.T) {
	var apiCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/refresh") {
			http.Error(w, `{"message":"revoked"}`, http.StatusUnauthorized)
			return
		}
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Set(validPair(t)))
	coordinator := auth.NewRefreshCoordinator(store, srv.Client(), srv.URL, "test-device", zap.NewNop())
	client := auth.NewClient(store, coordinator, srv.Client(), zap.NewNop())

	err := client.Do(context.Background(), http.MethodGet, srv.URL+"/thing", nil, nil)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.EqualValues(t, 1, apiCalls.Load(), "no retry after a failed refresh")

	_, ok := store.Get()
	require.False(t, ok)
}

func TestDoProactivelyRefreshesExpiredToken(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		require.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}

	expiredPair := domain.CredentialPair{
		AccessToken:  mintToken(t, "user-1", time.Now().Add(-time.Minute)),
		RefreshToken: "old-refresh",
	}
	client, _ := newTestClient(t, b, expiredPair)

	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, b.refreshCalls.Load())
	require.EqualValues(t, 1, b.apiCalls.Load())
}

func TestDoSurfacesErrorPayloadMessage(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		http.Error(w, `{"message":"Insufficient funds"}`, http.StatusBadRequest)
	}

	client, _ := newTestClient(t, b, validPair(t))

	err := client.Do(context.Background(), http.MethodPost, b.srv.URL+"/thing", map[string]int{"qty": 5}, nil)

	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Insufficient funds", apiErr.Message)
}

func TestDoFallsBackToGenericErrorMessage(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		http.Error(w, "<html>gateway error</html>", http.StatusBadGateway)
	}

	client, _ := newTestClient(t, b, validPair(t))

	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, nil)

	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "An unknown error occurred", apiErr.Message)
}

func TestDoEmptyBodyIsNotAnError(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		w.WriteHeader(http.StatusNoContent)
	}

	client, _ := newTestClient(t, b, validPair(t))

	var out map[string]string
	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, &out)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestDoUnwrapsEnvelope(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		w.Write([]byte(`{"data":{"name":"Weekly Showdown"}}`))
	}

	client, _ := newTestClient(t, b, validPair(t))

	var out struct {
		Name string `json:"name"`
	}
	err := client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, &out)
	require.NoError(t, err)
	require.Equal(t, "Weekly Showdown", out.Name)
}

func TestDoEnvelopeErrorBecomesAPIError(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		w.Write([]byte(`{"error":"Contest is full"}`))
	}

	client, _ := newTestClient(t, b, validPair(t))

	err := client.Do(context.Background(), http.MethodPost, b.srv.URL+"/thing", nil, nil)

	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Contest is full", apiErr.Message)
}

func TestCallerHeadersCannotSuppressAuthorization(t *testing.T) {
	b := newTestBackend(t)
	pair := validPair(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		require.Equal(t, "Bearer "+pair.AccessToken, r.Header.Get("Authorization"))
		require.Equal(t, "yes", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusNoContent)
	}

	client, _ := newTestClient(t, b, pair)

	header := http.Header{}
	header.Set("Authorization", "Bearer forged")
	header.Set("X-Custom", "yes")

	err := client.DoWithHeaders(context.Background(), http.MethodGet, b.srv.URL+"/thing", header, nil, nil)
	require.NoError(t, err)
}

func TestConcurrentExpiredCallsRefreshOnce(t *testing.T) {
	b := newTestBackend(t)
	b.handleAPI = func(w http.ResponseWriter, r *http.Request, attempt int32) {
		require.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}

	expiredPair := domain.CredentialPair{
		AccessToken:  mintToken(t, "user-1", time.Now().Add(-time.Minute)),
		RefreshToken: "old-refresh",
	}
	client, _ := newTestClient(t, b, expiredPair)

	const callers = 8
	start := make(chan struct{})
	errs := make([]error, callers)
	done := make(chan struct{})

	for i := 0; i < callers; i++ {
		go func(i int) {
			<-start
			errs[i] = client.Do(context.Background(), http.MethodGet, b.srv.URL+"/thing", nil, nil)
			done <- struct{}{}
		}(i)
	}
	close(start)
	for i := 0; i < callers; i++ {
		<-done
	}

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	require.EqualValues(t, 1, b.refreshCalls.Load(), "N concurrent expired calls must refresh exactly once")
	require.EqualValues(t, callers, b.apiCalls.Load())
}
