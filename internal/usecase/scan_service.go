package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// Vision provider names accepted by Scan
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	providerText   = "text"
)

// NoProductsMessage is shown when a scan or extraction finds nothing
const NoProductsMessage = "상품 가격을 인식하지 못했습니다."

// ScanServiceConfig holds configuration for the scan service
type ScanServiceConfig struct {
	DefaultProvider string
}

// ScanService reads price tags from photos through a vision provider
type ScanService struct {
	productRecognizer domain.ProductRecognizer
	textRecognizer    domain.TextRecognizer
	usage             domain.UsageTracker
	extractor         *PriceExtractor
	defaultProvider   string
	logger            *zap.Logger
}

// NewScanService creates a scan service. Either recognizer may be nil when its provider is not
// deployed; a nil usage tracker disables the monthly quota.
func NewScanService(
	productRecognizer domain.ProductRecognizer,
	textRecognizer domain.TextRecognizer,
	usage domain.UsageTracker,
	config ScanServiceConfig,
	logger *zap.Logger,
) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(config.DefaultProvider))
	if defaultProvider == "" {
		defaultProvider = ProviderOpenAI
	}

	return &ScanService{
		productRecognizer: productRecognizer,
		textRecognizer:    textRecognizer,
		usage:             usage,
		extractor:         NewPriceExtractor(),
		defaultProvider:   defaultProvider,
		logger:            logger,
	}
}

// Scan recognizes the products on a price-tag photo.
// Flow: validate -> check quota -> recognize -> extract -> count usage.
// When the quota is used up the returned result carries the usage status with ErrQuotaExceeded.
func (s *ScanService) Scan(ctx context.Context, request *domain.ScanRequest) (*domain.ScanResult, error) {
	if request == nil || strings.TrimSpace(request.Image) == "" {
		return nil, domain.ErrInvalidRequest
	}

	provider := strings.ToLower(strings.TrimSpace(request.Provider))
	if provider == "" {
		provider = s.defaultProvider
	}
	if provider != ProviderOpenAI && provider != ProviderGoogle {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidRequest, request.Provider)
	}

	status := s.checkQuota(ctx)
	if status != nil && !status.Allowed {
		metrics.ScansTotal.WithLabelValues(provider, "quota_exceeded").Inc()
		return &domain.ScanResult{
			Provider: provider,
			Products: []domain.ProductRecord{},
			Message:  status.Message,
			Usage:    status,
		}, domain.ErrQuotaExceeded
	}

	var (
		products []domain.ProductRecord
		rawText  string
		err      error
	)
	switch provider {
	case ProviderOpenAI:
		products, rawText, err = s.recognizeProducts(ctx, request.Image)
	case ProviderGoogle:
		products, rawText, err = s.recognizeText(ctx, request.Image)
	}
	metrics.ScansTotal.WithLabelValues(provider, metrics.Status(err)).Inc()
	if err != nil {
		s.logger.Error("scan failed", zap.String("provider", provider), zap.Error(err))
		return nil, err
	}

	if s.usage != nil {
		updated, err := s.usage.Increment(ctx)
		if err != nil {
			s.logger.Warn("usage increment failed", zap.Error(err))
		} else {
			status = updated
			metrics.QuotaUsed.Set(float64(updated.Used))
		}
	}

	result := &domain.ScanResult{
		Provider: provider,
		Products: products,
		RawText:  rawText,
		Usage:    status,
	}
	switch {
	case len(products) == 0:
		result.Message = NoProductsMessage
	case status != nil:
		result.Message = status.Message
	}

	metrics.ExtractedProducts.Observe(float64(len(products)))
	s.logger.Info("scanned price tag",
		zap.String("provider", provider),
		zap.Int("products", len(products)),
		zap.Int("rawTextLength", len(rawText)))

	return result, nil
}

// ExtractText runs the extractor over text obtained elsewhere. It does not touch the quota.
func (s *ScanService) ExtractText(text string) *domain.ScanResult {
	products := s.extractor.Extract(text)
	metrics.ExtractedProducts.Observe(float64(len(products)))

	result := &domain.ScanResult{
		Provider: providerText,
		Products: products,
	}
	if len(products) == 0 {
		result.Message = NoProductsMessage
	}
	return result
}

// Usage returns the current month's OCR quota
func (s *ScanService) Usage(ctx context.Context) (*domain.UsageStatus, error) {
	if s.usage == nil {
		return nil, domain.ErrProviderNotConfigured
	}
	return s.usage.Status(ctx)
}

// checkQuota returns the quota status, or nil when it cannot be read.
// A broken quota store does not block scanning.
func (s *ScanService) checkQuota(ctx context.Context) *domain.UsageStatus {
	if s.usage == nil {
		return nil
	}
	status, err := s.usage.Status(ctx)
	if err != nil {
		s.logger.Warn("usage status unavailable, allowing scan", zap.Error(err))
		return nil
	}
	return status
}

// recognizeProducts asks the LLM for records and falls back to pattern extraction over its
// raw answer when none of the records survive sanitizing.
func (s *ScanService) recognizeProducts(ctx context.Context, image string) ([]domain.ProductRecord, string, error) {
	if s.productRecognizer == nil {
		return nil, "", domain.ErrProviderNotConfigured
	}

	records, raw, err := s.productRecognizer.RecognizeProducts(ctx, image)
	if err != nil {
		return nil, "", wrapVisionError(err)
	}

	products := s.extractor.SanitizeRecords(records)
	if len(products) == 0 && raw != "" {
		products = s.extractor.Extract(raw)
		s.logger.Debug("fell back to text extraction",
			zap.Int("records", len(records)),
			zap.Int("extracted", len(products)))
	}
	return products, raw, nil
}

func (s *ScanService) recognizeText(ctx context.Context, image string) ([]domain.ProductRecord, string, error) {
	if s.textRecognizer == nil {
		return nil, "", domain.ErrProviderNotConfigured
	}

	text, err := s.textRecognizer.RecognizeText(ctx, image)
	if err != nil {
		return nil, "", wrapVisionError(err)
	}
	return s.extractor.Extract(text), text, nil
}

// wrapVisionError keeps known sentinels and marks everything else as a provider failure
func wrapVisionError(err error) error {
	switch {
	case errors.Is(err, domain.ErrVisionAPIFailure),
		errors.Is(err, domain.ErrProviderNotConfigured),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrVisionAPIFailure, err)
	}
}
