package domain

import "errors"

var (
	// ErrProductNotFound is returned when the provider has no product for a code or query
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache, or is too old to be served
	ErrCacheMiss = errors.New("cache miss")

	// ErrProviderFailure is returned when a provider fetch fails and no stale
	// cached value can stand in for it
	ErrProviderFailure = errors.New("provider fetch failed")

	// ErrPreferenceNotFound is returned when no preference exists for a generic name
	ErrPreferenceNotFound = errors.New("preference not found")

	// ErrStoreUnavailable is returned when the durable store cannot be reached
	ErrStoreUnavailable = errors.New("preference store unavailable")
)
