package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are opaque bytes so memory and redis backends behave the same.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ShoppingClient searches an online marketplace. Offers come back cheapest first
// when the provider supports price ordering.
type ShoppingClient interface {
	Name() string
	SearchOffers(ctx context.Context, query string) ([]OnlineOffer, error)
}

// TextRecognizer turns an image into the raw text printed on it
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image string) (string, error)
}

// ProductRecognizer turns an image directly into product records.
// The raw model output is returned alongside for fallback extraction.
type ProductRecognizer interface {
	RecognizeProducts(ctx context.Context, image string) ([]ProductRecord, string, error)
}

// UsageTracker keeps the monthly OCR quota
type UsageTracker interface {
	Status(ctx context.Context) (*UsageStatus, error)
	Increment(ctx context.Context) (*UsageStatus, error)
}
