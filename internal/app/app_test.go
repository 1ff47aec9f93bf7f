package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakley-grocery/backend/config"
	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/infrastructure/cache"
)

func testConfig(t *testing.T, baseURL, cacheType string) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", Environment: "test"},
		Log:     config.LogConfig{Level: "debug"},
		Storage: config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "grocery.db")},
		Cache: config.CacheConfig{
			Type:        cacheType,
			MemorySize:  64,
			StaleMaxAge: 24 * time.Hour,
			TTL:         config.CacheTTLConfig{Search: time.Hour, Product: 24 * time.Hour, Specials: 4 * time.Hour},
		},
		Woolworths: config.WoolworthsConfig{
			BaseURL:      baseURL,
			Timeout:      2 * time.Second,
			Retries:      1,
			RetryBackoff: time.Millisecond,
		},
		RateLimit: config.RateLimitConfig{Calls: 50, Period: time.Second},
		Resolver:  config.ResolverConfig{},
	}
}

func newProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Products":[{"Products":[
			{"Stockcode":100,"Name":"Full Cream Milk","Brand":"Pauls","Price":4.5,"IsOnSpecial":true,"PackageSize":"2L"},
			{"Stockcode":101,"Name":"Chocolate Drink 600mL","Brand":"Oak","Price":3.0,"PackageSize":"600mL"}
		]}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_ResolvesEndToEnd(t *testing.T) {
	for _, cacheType := range []string{"store", "memory"} {
		t.Run(cacheType, func(t *testing.T) {
			provider := newProviderServer(t)
			a, err := New(testConfig(t, provider.URL, cacheType), zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close() })

			ctx := context.Background()
			require.NoError(t, a.Health(ctx))

			result, err := a.Resolver.Resolve(ctx, domain.ResolveRequest{GenericName: "Full Cream Milk"})
			require.NoError(t, err)
			assert.True(t, result.IsResolved())
			assert.Equal(t, domain.SourceSearch, result.Source())
			assert.Equal(t, int64(100), result.Product().Code)

			_, err = a.Resolver.LearnPreference(ctx, domain.PreferenceInput{
				GenericName: "full cream milk",
				ProductCode: 100,
				ProductName: "Full Cream Milk",
			})
			require.NoError(t, err)

			result, err = a.Resolver.Resolve(ctx, domain.ResolveRequest{GenericName: "FULL CREAM MILK"})
			require.NoError(t, err)
			assert.Equal(t, domain.SourcePreference, result.Source())
		})
	}
}

func TestNew_StoreCacheIsDurable(t *testing.T) {
	provider := newProviderServer(t)
	cfg := testConfig(t, provider.URL, "store")

	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Provider.Search(context.Background(), domain.SearchQuery{Query: "milk"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// reopen against the same database with the provider gone
	provider.Close()
	a, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	products, err := a.Provider.Search(context.Background(), domain.SearchQuery{Query: "milk"})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestNewResultCache(t *testing.T) {
	c, err := newResultCache(config.CacheConfig{Type: "memory", MemorySize: 8}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)

	_, err = newResultCache(config.CacheConfig{Type: "redis"}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.LogConfig{Level: "warn"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	require.Contains(t, out, "shown")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "oakley-grocery", line["service"])
	assert.Equal(t, Version, line["version"])
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.LogConfig{Level: "nope"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestRouter_HealthReportsVersion(t *testing.T) {
	provider := newProviderServer(t)
	a, err := New(testConfig(t, provider.URL, "memory"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, "ok", body["store"])
}

func TestServe_StopsOnCancel(t *testing.T) {
	provider := newProviderServer(t)
	a, err := New(testConfig(t, provider.URL, "memory"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
