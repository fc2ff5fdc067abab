package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CompareServiceConfig holds configuration for the compare service
type CompareServiceConfig struct {
	CacheTTL               time.Duration
	MinConfidenceThreshold float64
	EnableFuzzyMatching    bool
	FuzzyEditDistance      int
	Concurrency            int
	MaxBatchSize           int
	MartLabel              string
	OnlineLabel            string
}

// CompareService looks up the online price of a product and judges the store price against it
type CompareService struct {
	cache       domain.CacheRepository
	shopping    domain.ShoppingClient
	normalizer  *NameNormalizer
	matcher     *OfferMatcher
	comparator  *PriceComparator
	cacheTTL    time.Duration
	concurrency int
	maxBatch    int
	logger      *zap.Logger
}

// NewCompareService creates a new compare service with dependencies
func NewCompareService(
	cache domain.CacheRepository,
	shopping domain.ShoppingClient,
	config CompareServiceConfig,
	logger *zap.Logger,
) *CompareService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	maxBatch := config.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 20
	}

	return &CompareService{
		cache:      cache,
		shopping:   shopping,
		normalizer: NewNameNormalizer(logger),
		matcher: NewOfferMatcher(MatchConfig{
			MinConfidenceThreshold: config.MinConfidenceThreshold,
			EnableFuzzyMatching:    config.EnableFuzzyMatching,
			FuzzyEditDistance:      config.FuzzyEditDistance,
		}, logger),
		comparator:  NewPriceComparator(config.MartLabel, config.OnlineLabel),
		cacheTTL:    cacheTTL,
		concurrency: concurrency,
		maxBatch:    maxBatch,
		logger:      logger,
	}
}

// Compare finds the online offer for one product.
// Flow: normalize name -> check cache -> search provider -> pick offer -> unit prices -> verdict.
// A weak title match still returns the comparison, flagged, together with ErrLowConfidence.
func (s *CompareService) Compare(
	ctx context.Context,
	request *domain.CompareRequest,
) (*domain.PriceComparison, error) {
	if request == nil || strings.TrimSpace(request.ProductName) == "" || request.MartPrice < 0 {
		return nil, domain.ErrInvalidRequest
	}

	name := strings.TrimSpace(request.ProductName)
	query := s.normalizer.NormalizeForSearch(name)
	if query == "" {
		query = name
	}

	offers, source, err := s.lookupOffers(ctx, query)
	if err != nil {
		metrics.ComparisonsTotal.WithLabelValues("ERROR").Inc()
		return nil, err
	}

	match, err := s.matcher.SelectOffer(ctx, query, offers)
	lowConfidence := errors.Is(err, domain.ErrLowConfidence)
	if err != nil && !lowConfidence {
		metrics.ComparisonsTotal.WithLabelValues("ERROR").Inc()
		return nil, err
	}

	result := &domain.PriceComparison{
		ProductName:    name,
		Query:          query,
		MartPrice:      request.MartPrice,
		MartQuantity:   s.normalizer.ExtractQuantity(name),
		Offer:          match.Offer,
		OnlineQuantity: s.normalizer.ExtractTitleQuantity(match.Offer.Title),
		Confidence:     match.MatchScore,
		Source:         source,
		LowConfidence:  lowConfidence,
	}
	result.OnlineUnitPrice = UnitPrice(match.Offer.Price, result.OnlineQuantity)
	result.UnitPriceCompared = result.MartQuantity > 1 || result.OnlineQuantity > 1

	verdictLabel := "NONE"
	if request.MartPrice > 0 {
		result.MartUnitPrice = UnitPrice(request.MartPrice, result.MartQuantity)

		martSide, onlineSide := request.MartPrice, match.Offer.Price
		if result.UnitPriceCompared {
			martSide, onlineSide = result.MartUnitPrice, result.OnlineUnitPrice
		}

		verdict, err := s.comparator.Compare(martSide, onlineSide)
		if err == nil {
			result.Verdict = &verdict
			verdictLabel = string(verdict.CheaperSide)
		} else {
			s.logger.Warn("skipping verdict",
				zap.String("product", name),
				zap.Int64("martSide", martSide),
				zap.Int64("onlineSide", onlineSide),
				zap.Error(err))
		}
	}
	metrics.ComparisonsTotal.WithLabelValues(verdictLabel).Inc()

	s.logger.Info("compared product",
		zap.String("product", name),
		zap.String("query", query),
		zap.String("source", source),
		zap.Int64("martPrice", request.MartPrice),
		zap.Int64("onlinePrice", match.Offer.Price),
		zap.Float64("confidence", match.MatchScore),
		zap.String("verdict", verdictLabel))

	if lowConfidence {
		return result, domain.ErrLowConfidence
	}
	return result, nil
}

// CompareAll compares a batch of products concurrently. Results keep the input order and a
// failed item is reported in its outcome instead of failing the batch.
func (s *CompareService) CompareAll(
	ctx context.Context,
	requests []domain.CompareRequest,
) ([]domain.CompareOutcome, error) {
	if len(requests) == 0 || len(requests) > s.maxBatch {
		return nil, fmt.Errorf("%w: batch size must be between 1 and %d", domain.ErrInvalidRequest, s.maxBatch)
	}

	outcomes := make([]domain.CompareOutcome, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range requests {
		i := i
		req := requests[i]
		g.Go(func() error {
			outcome := domain.CompareOutcome{Request: req}
			result, err := s.Compare(gctx, &req)
			switch {
			case err == nil, errors.Is(err, domain.ErrLowConfidence) && result != nil:
				outcome.Result = result
			default:
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

// lookupOffers returns search results for the query from cache or from the shopping provider
func (s *CompareService) lookupOffers(ctx context.Context, query string) ([]domain.OnlineOffer, string, error) {
	cacheKey := s.generateCacheKey(query)

	if offers, err := s.getFromCache(ctx, cacheKey); err == nil && len(offers) > 0 {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return offers, "Cache", nil
	} else if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("offer cache read failed", zap.String("key", cacheKey), zap.Error(err))
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	offers, err := s.shopping.SearchOffers(ctx, query)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrProviderNotConfigured),
			errors.Is(err, domain.ErrRateLimited),
			errors.Is(err, domain.ErrShoppingAPIFailure),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return nil, "", err
		default:
			return nil, "", fmt.Errorf("%w: %v", domain.ErrShoppingAPIFailure, err)
		}
	}
	if len(offers) == 0 {
		return nil, "", domain.ErrProductNotFound
	}

	if err := s.setInCache(ctx, cacheKey, offers); err != nil {
		s.logger.Warn("offer cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}

	return offers, s.shopping.Name(), nil
}

// generateCacheKey creates the cache key for a normalized query.
// Format: "offers:{provider}:{lowercased query}"
func (s *CompareService) generateCacheKey(query string) string {
	return fmt.Sprintf("offers:%s:%s", s.shopping.Name(), strings.ToLower(query))
}

func (s *CompareService) getFromCache(ctx context.Context, key string) ([]domain.OnlineOffer, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var offers []domain.OnlineOffer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, fmt.Errorf("decode cached offers: %w", err)
	}
	return offers, nil
}

func (s *CompareService) setInCache(ctx context.Context, key string, offers []domain.OnlineOffer) error {
	if s.cache == nil {
		return nil
	}
	raw, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, raw, s.cacheTTL)
}
