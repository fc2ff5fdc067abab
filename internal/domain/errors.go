package domain

import "errors"

var (
	// ErrProductNotFound is returned when the shopping search has no usable result
	ErrProductNotFound = errors.New("product not found in shopping search")

	// ErrLowConfidence is returned when no offer matches the query well enough
	ErrLowConfidence = errors.New("match confidence below threshold")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidPrice is returned when a comparison is asked for with a non-positive price
	ErrInvalidPrice = errors.New("price must be positive")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrShoppingAPIFailure is returned when a shopping search request fails
	ErrShoppingAPIFailure = errors.New("shopping API request failed")

	// ErrVisionAPIFailure is returned when a vision provider request fails
	ErrVisionAPIFailure = errors.New("vision API request failed")

	// ErrProviderNotConfigured is returned when a provider has no credentials
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrQuotaExceeded is returned when the monthly OCR quota is used up
	ErrQuotaExceeded = errors.New("monthly OCR quota exceeded")

	// ErrUnauthorized is returned when the session is missing or invalid
	ErrUnauthorized = errors.New("unauthorized")
)
