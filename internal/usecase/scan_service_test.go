package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/pricelens/backend/internal/domain"
)

// MockProductRecognizer is a mock implementation of domain.ProductRecognizer
type MockProductRecognizer struct {
	records []domain.ProductRecord
	raw     string
	err     error
	calls   int
}

func (m *MockProductRecognizer) RecognizeProducts(ctx context.Context, image string) ([]domain.ProductRecord, string, error) {
	m.calls++
	return m.records, m.raw, m.err
}

// MockTextRecognizer is a mock implementation of domain.TextRecognizer
type MockTextRecognizer struct {
	text  string
	err   error
	calls int
}

func (m *MockTextRecognizer) RecognizeText(ctx context.Context, image string) (string, error) {
	m.calls++
	return m.text, m.err
}

// MockUsageTracker is a mock implementation of domain.UsageTracker
type MockUsageTracker struct {
	used      int
	limit     int
	statusErr error
	incErr    error
}

func (m *MockUsageTracker) status() *domain.UsageStatus {
	remaining := m.limit - m.used
	s := &domain.UsageStatus{Month: "2026-10", Used: m.used, Limit: m.limit, Remaining: remaining, Allowed: remaining > 0}
	if !s.Allowed {
		s.Remaining = 0
		s.Message = "quota used up"
	}
	return s
}

func (m *MockUsageTracker) Status(ctx context.Context) (*domain.UsageStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.status(), nil
}

func (m *MockUsageTracker) Increment(ctx context.Context) (*domain.UsageStatus, error) {
	if m.incErr != nil {
		return nil, m.incErr
	}
	m.used++
	return m.status(), nil
}

func TestScan(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty image and unknown provider", func(t *testing.T) {
		svc := NewScanService(&MockProductRecognizer{}, &MockTextRecognizer{}, nil, ScanServiceConfig{}, nil)

		for _, req := range []*domain.ScanRequest{nil, {Image: ""}, {Image: "  "}, {Image: "abc", Provider: "tesseract"}} {
			if _, err := svc.Scan(ctx, req); !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("Scan(%+v) error = %v, want ErrInvalidRequest", req, err)
			}
		}
	})

	t.Run("uses openai by default and counts usage", func(t *testing.T) {
		llm := &MockProductRecognizer{
			records: []domain.ProductRecord{
				{Name: "삼다수 2L", Price: 1200, RawPrice: "1,200원"},
				{Name: "?", Price: 1000},
			},
			raw: `{"products":[{"name":"삼다수 2L","price":1200}]}`,
		}
		usage := &MockUsageTracker{limit: 900}
		svc := NewScanService(llm, &MockTextRecognizer{}, usage, ScanServiceConfig{}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "data:image/png;base64,AAAA"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Provider != ProviderOpenAI {
			t.Errorf("Provider = %q, want openai", result.Provider)
		}
		if len(result.Products) != 1 || result.Products[0].Price != 1200 {
			t.Errorf("Products = %+v", result.Products)
		}
		if usage.used != 1 || result.Usage == nil || result.Usage.Used != 1 {
			t.Errorf("usage not counted: tracker %d, result %+v", usage.used, result.Usage)
		}
		if result.Message != "" {
			t.Errorf("Message = %q, want empty", result.Message)
		}
	})

	t.Run("falls back to text extraction over llm output", func(t *testing.T) {
		llm := &MockProductRecognizer{raw: "사진 속 상품: 삼다수 2L 1,200원"}
		svc := NewScanService(llm, nil, nil, ScanServiceConfig{}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA", Provider: "OpenAI"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Products) != 1 || result.Products[0].Name != "사진 속 상품: 삼다수 2L" {
			t.Errorf("Products = %+v", result.Products)
		}
	})

	t.Run("google provider extracts from text", func(t *testing.T) {
		ocr := &MockTextRecognizer{text: "신라면 5개입\n3,980원"}
		svc := NewScanService(nil, ocr, nil, ScanServiceConfig{DefaultProvider: "google"}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Provider != ProviderGoogle || result.RawText != ocr.text {
			t.Errorf("result = %+v", result)
		}
		if len(result.Products) != 1 || result.Products[0].Name != "신라면 5개입" {
			t.Errorf("Products = %+v", result.Products)
		}
	})

	t.Run("reports nothing recognized", func(t *testing.T) {
		ocr := &MockTextRecognizer{text: "영업시간 안내"}
		svc := NewScanService(nil, ocr, nil, ScanServiceConfig{}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA", Provider: "google"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Products) != 0 || result.Message != NoProductsMessage {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("missing recognizer is not configured", func(t *testing.T) {
		svc := NewScanService(nil, nil, nil, ScanServiceConfig{}, nil)

		if _, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA"}); !errors.Is(err, domain.ErrProviderNotConfigured) {
			t.Errorf("error = %v, want ErrProviderNotConfigured", err)
		}
	})

	t.Run("wraps provider failures and skips usage", func(t *testing.T) {
		llm := &MockProductRecognizer{err: errors.New("status 500")}
		usage := &MockUsageTracker{limit: 900}
		svc := NewScanService(llm, nil, usage, ScanServiceConfig{}, nil)

		_, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA"})
		if !errors.Is(err, domain.ErrVisionAPIFailure) {
			t.Errorf("error = %v, want ErrVisionAPIFailure", err)
		}
		if usage.used != 0 {
			t.Errorf("usage counted on failure: %d", usage.used)
		}
	})

	t.Run("blocks scans when quota is used up", func(t *testing.T) {
		llm := &MockProductRecognizer{}
		usage := &MockUsageTracker{used: 900, limit: 900}
		svc := NewScanService(llm, nil, usage, ScanServiceConfig{}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA"})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("error = %v, want ErrQuotaExceeded", err)
		}
		if result == nil || result.Usage == nil || result.Usage.Allowed {
			t.Errorf("expected usage status with result, got %+v", result)
		}
		if llm.calls != 0 {
			t.Errorf("recognizer called %d times, want 0", llm.calls)
		}
	})

	t.Run("scans when quota store is down", func(t *testing.T) {
		llm := &MockProductRecognizer{records: []domain.ProductRecord{{Name: "두부", Price: 1500}}}
		usage := &MockUsageTracker{limit: 900, statusErr: domain.ErrCacheUnavailable, incErr: domain.ErrCacheUnavailable}
		svc := NewScanService(llm, nil, usage, ScanServiceConfig{}, nil)

		result, err := svc.Scan(ctx, &domain.ScanRequest{Image: "AAAA"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Products) != 1 || result.Usage != nil {
			t.Errorf("result = %+v", result)
		}
	})
}

func TestExtractText(t *testing.T) {
	svc := NewScanService(nil, nil, nil, ScanServiceConfig{}, nil)

	result := svc.ExtractText("삼다수 2L 1,200원")
	if result.Provider != "text" || len(result.Products) != 1 {
		t.Errorf("result = %+v", result)
	}

	empty := svc.ExtractText("")
	if empty.Products == nil || len(empty.Products) != 0 || empty.Message != NoProductsMessage {
		t.Errorf("empty result = %+v", empty)
	}
}

func TestUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("without tracker", func(t *testing.T) {
		svc := NewScanService(nil, nil, nil, ScanServiceConfig{}, nil)
		if _, err := svc.Usage(ctx); !errors.Is(err, domain.ErrProviderNotConfigured) {
			t.Errorf("error = %v, want ErrProviderNotConfigured", err)
		}
	})

	t.Run("with tracker", func(t *testing.T) {
		svc := NewScanService(nil, nil, &MockUsageTracker{used: 10, limit: 900}, ScanServiceConfig{}, nil)
		status, err := svc.Usage(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Used != 10 || status.Remaining != 890 {
			t.Errorf("status = %+v", status)
		}
	})
}
