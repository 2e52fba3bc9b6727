package domain

import "errors"

var (
	// ErrExcludedProduct is returned when a name matches a non-grocery or promo bundle pattern
	ErrExcludedProduct = errors.New("product excluded by name filter")

	// ErrInvalidPrice is returned when the normalized price is not positive
	ErrInvalidPrice = errors.New("price is not positive")

	// ErrUnclassified is returned when no taxonomy group matches the name
	ErrUnclassified = errors.New("product matches no group")

	// ErrFetchFailure is returned when a retailer request fails after retries
	ErrFetchFailure = errors.New("retailer request failed")

	// ErrStoreCapacityExceeded is returned when a sync would overflow the store segment.
	// The caller must partition into a new segment; nothing has been written.
	ErrStoreCapacityExceeded = errors.New("store segment capacity exceeded")

	// ErrSchemaCapped is reported when missing columns could not all be added
	ErrSchemaCapped = errors.New("store schema capped at column limit")

	// ErrStoreAuth is returned when the store rejects credentials
	ErrStoreAuth = errors.New("store authentication failed")

	// ErrRunInProgress is returned when a pipeline run is triggered while another is active
	ErrRunInProgress = errors.New("pipeline run already in progress")

	// ErrUnknownRetailer is returned when a run names a retailer with no fetcher
	ErrUnknownRetailer = errors.New("unknown retailer")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
