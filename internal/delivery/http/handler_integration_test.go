package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/infrastructure/cache"
	"github.com/oakley-grocery/backend/internal/infrastructure/ratelimit"
	"github.com/oakley-grocery/backend/internal/infrastructure/storage"
	"github.com/oakley-grocery/backend/internal/infrastructure/woolworths"
	"github.com/oakley-grocery/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

const searchFixture = `{"Products":[
	{"Products":[{"Stockcode":100,"Name":"Pauls Full Cream Milk 2L","Brand":"Pauls","Price":4.5,"PackageSize":"2L","IsAvailable":true}]},
	{"Products":[{"Stockcode":200,"Name":"Wholemeal Bread","Brand":"Tip Top","Price":3.8,"PackageSize":"700g"}]}
]}`

const detailFixture = `{"Product":{"Stockcode":100,"Name":"Pauls Full Cream Milk 2L","Brand":"Pauls","Price":4.5,"PackageSize":"2L"}}`

// stack is the real object graph behind the router, with the provider
// replaced by a local server
type stack struct {
	router      *gin.Engine
	searchCalls *atomic.Int32
	db          func() error
}

func newStack(t *testing.T) *stack {
	t.Helper()

	var searchCalls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			return
		case strings.HasPrefix(r.URL.Path, "/product/"):
			if r.URL.Path != "/product/100" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(detailFixture))
		default:
			searchCalls.Add(1)
			w.Write([]byte(searchFixture))
		}
	}))
	t.Cleanup(provider.Close)

	log := zerolog.Nop()
	db, err := storage.Open(storage.Config{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "grocery.db"),
	}, log)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })

	resultCache, err := cache.NewStoreCache(db, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewStoreCache() error = %v", err)
	}

	client := woolworths.NewClient(woolworths.Config{
		BaseURL:      provider.URL,
		SearchPath:   "/search",
		ProductPath:  "/product",
		Timeout:      2 * time.Second,
		Retries:      1,
		RetryBackoff: time.Millisecond,
	}, ratelimit.New(100, time.Second), resultCache, log)

	resolver := usecase.NewResolverService(storage.NewPreferenceRepository(db), client, usecase.ResolverConfig{}, log)
	health := func(ctx context.Context) error { return storage.Ping(ctx, db) }

	return &stack{
		router:      SetupRouter(testConfig(), NewHandler(resolver, health, "test", log), log),
		searchCalls: &searchCalls,
		db:          func() error { return storage.Close(db) },
	}
}

func TestIntegration_ResolveLearnResolve(t *testing.T) {
	s := newStack(t)

	w := doRequest(s.router, http.MethodPost, "/api/v1/resolve", `{"generic_name":"full cream milk","prefer_brand":"Pauls"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d (%s)", w.Code, w.Body.String())
	}
	var first domain.ResolutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !first.IsResolved() || first.Source() != domain.SourceSearch {
		t.Fatalf("first resolution = %+v, want resolved from search", first)
	}
	if first.Product().Code != 100 {
		t.Errorf("product code = %d, want 100", first.Product().Code)
	}
	if len(first.Candidates()) != 2 {
		t.Errorf("candidates = %d, want 2", len(first.Candidates()))
	}

	w = doRequest(s.router, http.MethodPost, "/api/v1/preferences",
		`{"generic_name":"Full Cream Milk","product_code":100,"product_name":"Pauls Full Cream Milk 2L","brand":"Pauls","package_size":"2L","price":4.5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("learn status = %d (%s)", w.Code, w.Body.String())
	}

	calls := s.searchCalls.Load()
	w = doRequest(s.router, http.MethodPost, "/api/v1/resolve", `{"generic_name":"  FULL cream milk "}`)
	var second domain.ResolutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Source() != domain.SourcePreference {
		t.Errorf("second source = %s, want preference", second.Source())
	}
	if s.searchCalls.Load() != calls {
		t.Error("preference hit should not search the provider")
	}

	w = doRequest(s.router, http.MethodGet, "/api/v1/preferences/full%20cream%20milk", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if decode(t, w)["purchase_count"] != float64(1) {
		t.Errorf("preference = %s", w.Body.String())
	}

	w = doRequest(s.router, http.MethodDelete, "/api/v1/preferences/full%20cream%20milk", "")
	if w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	w = doRequest(s.router, http.MethodGet, "/api/v1/preferences/full%20cream%20milk", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestIntegration_SearchIsCached(t *testing.T) {
	s := newStack(t)

	for i := 0; i < 3; i++ {
		w := doRequest(s.router, http.MethodPost, "/api/v1/resolve", `{"generic_name":"wholemeal bread"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
		}
	}

	if got := s.searchCalls.Load(); got != 1 {
		t.Errorf("provider searches = %d, want 1", got)
	}
}

func TestIntegration_ProductDetails(t *testing.T) {
	s := newStack(t)

	w := doRequest(s.router, http.MethodGet, "/api/v1/products/100", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if decode(t, w)["brand"] != "Pauls" {
		t.Errorf("body = %s", w.Body.String())
	}

	w = doRequest(s.router, http.MethodGet, "/api/v1/products/999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing product status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestIntegration_HealthReflectsStore(t *testing.T) {
	s := newStack(t)

	if w := doRequest(s.router, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	if err := s.db(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w := doRequest(s.router, http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
