package usage

import (
	"context"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// MemoryTracker counts OCR calls in process memory; the count resets when the month changes
type MemoryTracker struct {
	mu    sync.Mutex
	cfg   Config
	month string
	count int
	now   func() time.Time
}

// NewMemoryTracker creates an in-memory quota tracker
func NewMemoryTracker(cfg Config) *MemoryTracker {
	return &MemoryTracker{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// Status returns the quota for the current month
func (t *MemoryTracker) Status(ctx context.Context) (*domain.UsageStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	return NewStatus(t.month, t.count, t.cfg.MonthlyLimit, t.cfg.WarnThreshold), nil
}

// Increment records one OCR call
func (t *MemoryTracker) Increment(ctx context.Context) (*domain.UsageStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()
	t.count++
	return NewStatus(t.month, t.count, t.cfg.MonthlyLimit, t.cfg.WarnThreshold), nil
}

// rollover resets the counter on a new month. Caller holds mu.
func (t *MemoryTracker) rollover() {
	month := t.cfg.monthOf(t.now())
	if month != t.month {
		t.month = month
		t.count = 0
	}
}
