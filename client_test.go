package flare

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	remote "github.com/OrlandoBitencourt/flare/internal/flare"
)

func strPtr(s string) *string { return &s }

func newMockClient(entries ...domain.FlagEntry) *remote.MockClient {
	mock := remote.NewMockClient()
	for _, e := range entries {
		mock.AddFlag(e)
	}
	return mock
}

func newTestClient(t *testing.T, mock *remote.MockClient, opts ...Option) *Client {
	t.Helper()

	base := []Option{
		WithRemoteClient(mock),
		WithScope("production"),
		WithReloadInterval(0),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return client
}

// TestNew_Validation tests configuration errors surfaced by New
func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		field string
	}{
		{
			name:  "missing base URL",
			opts:  []Option{WithScope("production")},
			field: "Service.BaseURL",
		},
		{
			name:  "missing scope",
			opts:  []Option{WithBaseURL("http://localhost")},
			field: "Snapshot.Scope",
		},
		{
			name: "bad filter expression",
			opts: []Option{
				WithBaseURL("http://localhost"),
				WithScope("production"),
				WithFilterExpression("key startsWith"),
			},
			field: "Filter.Expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

// TestNew_OptionError tests that a failing option aborts New
func TestNew_OptionError(t *testing.T) {
	_, err := New(WithBaseURL(""))
	assert.Error(t, err)
}

// TestClient_Sync tests an on-demand poll populates the snapshot
func TestClient_Sync(t *testing.T) {
	mock := newMockClient(
		domain.FlagEntry{Key: "new-checkout", Value: true},
		domain.FlagEntry{Key: "dark-mode", Value: false},
	)
	client := newTestClient(t, mock)

	require.NoError(t, client.Sync(context.Background()))

	assert.Equal(t, map[string]string{
		"FeatureFlags:new-checkout": "true",
		"FeatureFlags:dark-mode":    "false",
	}, client.Snapshot())

	v, ok := client.Get("featureflags:NEW-CHECKOUT")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	assert.True(t, client.Enabled("new-checkout"))
	assert.False(t, client.Enabled("dark-mode"))
	assert.False(t, client.Enabled("missing"))

	assert.Equal(t, uint64(1), client.Stats().Generation)
	assert.Equal(t, 2, client.Metrics().SnapshotSize)
}

// TestClient_SyncFailureKeepsSnapshot tests that a failed poll leaves the
// previous snapshot in place
func TestClient_SyncFailureKeepsSnapshot(t *testing.T) {
	mock := newMockClient(domain.FlagEntry{Key: "a", Value: true})
	client := newTestClient(t, mock)

	require.NoError(t, client.Sync(context.Background()))

	mock.FetchAllFunc = func(ctx context.Context, scope string) ([]domain.FlagEntry, error) {
		return nil, domain.NewAPIErrorFromResponse(http.StatusInternalServerError, "boom")
	}

	err := client.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, IsAPI(err))

	assert.Equal(t, map[string]string{"FeatureFlags:a": "true"}, client.Snapshot())
	assert.Equal(t, 1, client.Stats().ConsecutiveFailures)
}

// TestClient_SyncAfterStop tests that a stopped client no longer publishes
func TestClient_SyncAfterStop(t *testing.T) {
	mock := newMockClient(domain.FlagEntry{Key: "a", Value: true})
	client := newTestClient(t, mock)

	require.NoError(t, client.Sync(context.Background()))
	require.NoError(t, client.Stop())

	mock.AddFlag(domain.FlagEntry{Key: "late", Value: true})

	assert.ErrorIs(t, client.Sync(context.Background()), ErrStopped)
	assert.Equal(t, map[string]string{"FeatureFlags:a": "true"}, client.Snapshot())
}

// TestClient_Listeners tests catch-up delivery and fan-out
func TestClient_Listeners(t *testing.T) {
	var (
		mu       sync.Mutex
		received []map[string]string
	)
	record := func(snapshot map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, snapshot)
	}

	mock := newMockClient(domain.FlagEntry{Key: "a", Value: true})
	client := newTestClient(t, mock, WithListener(record))

	require.NoError(t, client.Sync(context.Background()))

	mu.Lock()
	require.Len(t, received, 2)
	assert.Empty(t, received[0])
	assert.Equal(t, map[string]string{"FeatureFlags:a": "true"}, received[1])
	mu.Unlock()

	var late map[string]string
	unsubscribe := client.AddListener(func(snapshot map[string]string) { late = snapshot })
	assert.Equal(t, map[string]string{"FeatureFlags:a": "true"}, late)
	unsubscribe()

	client.SetValue("FeatureFlags:a", "false")
	assert.Equal(t, map[string]string{"FeatureFlags:a": "true"}, late)
	assert.False(t, client.Enabled("a"))
}

// TestClient_FilterExpression tests that filtered flags never enter the snapshot
func TestClient_FilterExpression(t *testing.T) {
	mock := newMockClient(
		domain.FlagEntry{Key: "checkout-v2", Value: true, Reason: "STATIC"},
		domain.FlagEntry{Key: "checkout-v3", Value: false, Reason: "DISABLED"},
		domain.FlagEntry{Key: "search-v2", Value: true, Reason: "STATIC"},
	)
	client := newTestClient(t, mock,
		WithFilterExpression(`key startsWith "checkout-" && reason != "DISABLED"`))

	require.NoError(t, client.Sync(context.Background()))
	assert.Equal(t, map[string]string{"FeatureFlags:checkout-v2": "true"}, client.Snapshot())
}

// TestClient_Section tests a custom key prefix
func TestClient_Section(t *testing.T) {
	mock := newMockClient(domain.FlagEntry{Key: "a", Value: true})
	client := newTestClient(t, mock, WithSection("Flags"))

	require.NoError(t, client.Sync(context.Background()))
	assert.Equal(t, map[string]string{"Flags:a": "true"}, client.Snapshot())
	assert.True(t, client.Enabled("a"))
}

// TestClient_Evaluate tests a successful resolution
func TestClient_Evaluate(t *testing.T) {
	updatedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock := newMockClient(domain.FlagEntry{
		Key:     "new-checkout",
		Value:   true,
		Variant: strPtr("on"),
		Reason:  "targeting_match",
		Metadata: &domain.FlagMetadata{
			ScopeAlias: strPtr("prod"),
			UpdatedAt:  updatedAt,
		},
	})
	client := newTestClient(t, mock)

	result, err := client.Evaluate(context.Background(), "new-checkout",
		NewContext("production").WithTargetingKey("user-1"), false)
	require.NoError(t, err)

	assert.True(t, result.IsEnabled())
	assert.Equal(t, "new-checkout", result.FlagKey)
	assert.Equal(t, "on", result.Variant)
	assert.Equal(t, "TARGETING_MATCH", result.Reason)
	assert.Empty(t, result.ErrorCode)
	assert.Equal(t, "prod", result.Metadata["scopeAlias"])

	got, ok := result.UpdatedAt()
	require.True(t, ok)
	assert.True(t, updatedAt.Equal(got))
}

// TestClient_Evaluate_Errors tests that failures resolve to the default
func TestClient_Evaluate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		evalCtx   Context
		fetchErr  error
		wantCode  string
		wantValue bool
	}{
		{
			name:      "missing scope",
			evalCtx:   Context{},
			wantCode:  string(of.GeneralCode),
			wantValue: true,
		},
		{
			name:      "api error",
			evalCtx:   NewContext("production"),
			fetchErr:  domain.NewAPIErrorFromResponse(http.StatusNotFound, ""),
			wantCode:  string(of.GeneralCode),
			wantValue: true,
		},
		{
			name:      "network error",
			evalCtx:   NewContext("production"),
			fetchErr:  domain.NewNetworkError("evaluate", false, assert.AnError),
			wantCode:  string(of.ProviderNotReadyCode),
			wantValue: true,
		},
		{
			name:      "parse error",
			evalCtx:   NewContext("production"),
			fetchErr:  domain.NewParseError("bad body", nil),
			wantCode:  string(of.ParseErrorCode),
			wantValue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockClient()
			mock.FetchOneFunc = func(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error) {
				return nil, tt.fetchErr
			}
			client := newTestClient(t, mock)

			result, err := client.Evaluate(context.Background(), "flag", tt.evalCtx, true)
			require.NoError(t, err)

			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantCode, result.ErrorCode)
			assert.Equal(t, string(of.ErrorReason), result.Reason)
			assert.False(t, result.IsEnabled())
		})
	}
}

// TestClient_Evaluate_Cancelled tests that cancellation is returned as an error
func TestClient_Evaluate_Cancelled(t *testing.T) {
	mock := newMockClient()
	mock.FetchOneFunc = func(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error) {
		<-ctx.Done()
		return nil, domain.NewNetworkError("evaluate", false, ctx.Err())
	}
	client := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Evaluate(ctx, "flag", NewContext("production"), false)
	assert.ErrorIs(t, err, context.Canceled)

	assert.True(t, client.Bool(ctx, "flag", NewContext("production"), true))
}

// TestClient_DefaultScope tests scope injection for contexts without one
func TestClient_DefaultScope(t *testing.T) {
	var (
		mu     sync.Mutex
		scopes []string
	)
	mock := newMockClient()
	mock.FetchOneFunc = func(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error) {
		mu.Lock()
		scopes = append(scopes, evalCtx.Scope)
		mu.Unlock()
		return &domain.FlagEntry{Key: flagKey, Value: true}, nil
	}
	client := newTestClient(t, mock, WithDefaultScope("staging"))

	assert.True(t, client.Bool(context.Background(), "flag", Context{TargetingKey: "user-1"}, false))
	assert.True(t, client.Bool(context.Background(), "flag", NewContext("production"), false))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"staging", "production"}, scopes)
}

// TestClient_EvaluationCache tests that repeated resolutions are served from cache
func TestClient_EvaluationCache(t *testing.T) {
	mock := newMockClient(domain.FlagEntry{Key: "flag", Value: true, Reason: "STATIC"})
	client := newTestClient(t, mock, WithEvaluationCache(time.Minute))
	require.NotNil(t, client.cache)

	evalCtx := NewContext("production").WithTargetingKey("user-1")

	first, err := client.Evaluate(context.Background(), "flag", evalCtx, false)
	require.NoError(t, err)
	assert.Equal(t, "STATIC", first.Reason)

	client.cache.Wait()

	second, err := client.Evaluate(context.Background(), "flag", evalCtx, false)
	require.NoError(t, err)
	assert.True(t, second.Value)
	assert.Equal(t, "CACHED", second.Reason)
	assert.Equal(t, 1, mock.FetchOneCalls())

	require.NoError(t, client.InvalidateCache(context.Background()))
	client.cache.Wait()

	third, err := client.Evaluate(context.Background(), "flag", evalCtx, false)
	require.NoError(t, err)
	assert.Equal(t, "STATIC", third.Reason)
	assert.Equal(t, 2, mock.FetchOneCalls())

	assert.Greater(t, client.Metrics().Cache.KeysAdded, uint64(0))
}

// TestClient_OpenFeature tests the provider through the OpenFeature SDK
func TestClient_OpenFeature(t *testing.T) {
	mock := newMockClient(domain.FlagEntry{Key: "new-checkout", Value: true, Reason: "STATIC"})
	client := newTestClient(t, mock)

	require.NoError(t, of.SetNamedProviderAndWait("flare-client-test", client.Provider()))
	ofClient := of.NewClient("flare-client-test")

	evalCtx := of.NewEvaluationContext("user-1", map[string]any{ScopeKey: "production"})

	details, err := ofClient.BooleanValueDetails(context.Background(), "new-checkout", false, evalCtx)
	require.NoError(t, err)
	assert.True(t, details.Value)
	assert.Equal(t, of.StaticReason, details.Reason)

	value, err := ofClient.StringValue(context.Background(), "new-checkout", "fallback", evalCtx)
	assert.Error(t, err)
	assert.Equal(t, "fallback", value)
}

// TestClient_StartStop tests the client lifecycle against a real HTTP server
func TestClient_StartStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdk/v1/flags/evaluate-all", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flags":[{"flagKey":"new-checkout","value":true,"variant":null,"reason":"STATIC","flagMetadata":null}]}`))
	}))
	defer server.Close()

	client, err := New(
		WithBaseURL(server.URL),
		WithAPIKey("secret"),
		WithScope("production"),
		WithReloadInterval(time.Hour),
	)
	require.NoError(t, err)

	require.NoError(t, client.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return client.Enabled("new-checkout")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, of.ReadyState, client.provider.Status())
	assert.NoError(t, client.Stop())
}
