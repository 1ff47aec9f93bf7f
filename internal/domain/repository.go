package domain

import (
	"context"
	"time"
)

// ResultCache stores provider payloads keyed by request. Get honours the
// caller's TTL; GetStale ignores it and is bounded only by the cache's own
// maximum staleness. Both return ErrCacheMiss when nothing can be served.
type ResultCache interface {
	Get(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	GetStale(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// RateLimiter bounds outbound provider calls. Acquire blocks until a permit
// is available and only fails when ctx is done.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// ProductProvider is the external product-search collaborator. Failures that
// cannot be covered by a stale cache entry wrap ErrProviderFailure.
type ProductProvider interface {
	Search(ctx context.Context, query SearchQuery) ([]CandidateProduct, error)
	GetDetails(ctx context.Context, code int64) (*CandidateProduct, error)
	Specials(ctx context.Context, page, pageSize int) ([]CandidateProduct, error)
}

// PreferenceReader is the read side of the preference store
type PreferenceReader interface {
	// Get returns ErrPreferenceNotFound when no preference exists
	Get(ctx context.Context, genericName string) (*Preference, error)
	// List returns every preference, most used first
	List(ctx context.Context) ([]Preference, error)
}

// PreferenceRepository is the durable preference store. Implementations
// normalize generic names with NormalizeGenericName.
type PreferenceRepository interface {
	PreferenceReader
	Save(ctx context.Context, input PreferenceInput) (uint, error)
	Delete(ctx context.Context, genericName string) (bool, error)
	Search(ctx context.Context, substring string) ([]Preference, error)
}
