// Package app wires configuration into the running object graph shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oakley-grocery/backend/config"
	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/infrastructure/cache"
	"github.com/oakley-grocery/backend/internal/infrastructure/ratelimit"
	"github.com/oakley-grocery/backend/internal/infrastructure/storage"
	"github.com/oakley-grocery/backend/internal/infrastructure/woolworths"
	"github.com/oakley-grocery/backend/internal/usecase"
)

// Version is reported by /health and the CLI, set at build time with -ldflags
var Version = "dev"

// App holds the constructed dependencies
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	DB       *gorm.DB
	Cache    domain.ResultCache
	Limiter  *ratelimit.Limiter
	Provider *woolworths.Client
	Resolver *usecase.ResolverService
}

// NewLogger builds the root logger from the log configuration
func NewLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "oakley-grocery").
		Str("version", Version).
		Logger()
}

// New opens the store and builds the resolver with its collaborators
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := storage.Open(storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}, log)
	if err != nil {
		return nil, err
	}

	resultCache, err := newResultCache(cfg.Cache, db, log)
	if err != nil {
		_ = storage.Close(db)
		return nil, err
	}

	limiter := ratelimit.New(cfg.RateLimit.Calls, cfg.RateLimit.Period)

	provider := woolworths.NewClient(woolworths.Config{
		BaseURL:      cfg.Woolworths.BaseURL,
		SearchPath:   cfg.Woolworths.SearchPath,
		ProductPath:  cfg.Woolworths.ProductPath,
		Timeout:      cfg.Woolworths.Timeout,
		Retries:      cfg.Woolworths.Retries,
		RetryBackoff: cfg.Woolworths.RetryBackoff,
		PageSize:     cfg.Woolworths.PageSize,
		Sort:         domain.SortOrder(cfg.Woolworths.Sort),
		SearchTTL:    cfg.Cache.TTL.Search,
		ProductTTL:   cfg.Cache.TTL.Product,
		SpecialsTTL:  cfg.Cache.TTL.Specials,
	}, limiter, resultCache, log)

	resolver := usecase.NewResolverService(
		storage.NewPreferenceRepository(db),
		provider,
		usecase.ResolverConfig{
			AutoResolveMinScore: cfg.Resolver.AutoResolveMinScore,
			AutoResolveGap:      cfg.Resolver.AutoResolveGap,
			FuzzyMatchThreshold: cfg.Resolver.FuzzyMatchThreshold,
			SearchPageSize:      cfg.Resolver.SearchPageSize,
			MaxCandidates:       cfg.Resolver.MaxCandidates,
			BatchConcurrency:    cfg.Resolver.BatchConcurrency,
		},
		log,
	)

	log.Info().
		Str("storage", cfg.Storage.Driver).
		Str("cache", cfg.Cache.Type).
		Str("rate_limit", limiter.String()).
		Str("provider", cfg.Woolworths.BaseURL).
		Msg("application initialized")

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Cache:    resultCache,
		Limiter:  limiter,
		Provider: provider,
		Resolver: resolver,
	}, nil
}

// newResultCache builds the configured cache. The durable cache shares the
// application database and drops entries past the staleness horizon on startup.
func newResultCache(cfg config.CacheConfig, db *gorm.DB, log zerolog.Logger) (domain.ResultCache, error) {
	switch cfg.Type {
	case "memory":
		return cache.NewMemoryCache(cfg.MemorySize, cfg.StaleMaxAge), nil
	case "store", "":
		store, err := cache.NewStoreCache(db, cfg.StaleMaxAge)
		if err != nil {
			return nil, err
		}
		pruned, err := store.Prune(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("failed to prune result cache")
		} else if pruned > 0 {
			log.Info().Int64("entries", pruned).Msg("pruned expired cache entries")
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// Health reports whether the store is reachable
func (a *App) Health(ctx context.Context) error {
	return storage.Ping(ctx, a.DB)
}

// Close releases the database
func (a *App) Close() error {
	return storage.Close(a.DB)
}
